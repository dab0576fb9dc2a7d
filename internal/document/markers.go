package document

import (
	"regexp"
	"strings"
)

// markerPattern matches an inline chart marker together with the line that
// follows it when that line is a URL. Any other following line is prose.
var markerPattern = regexp.MustCompile(`\[Chart:[^\]\n]*\](?:\n[a-zA-Z][a-zA-Z0-9+.-]*://\S*)?`)

// markerTitle pulls the bracketed part out of a marker.
var markerTitle = regexp.MustCompile(`^\[Chart:[^\]\n]*\]`)

// Segment is a run of prose or a single chart marker.
type Segment struct {
	Text   string
	Marker bool
}

// SplitMarkers splits text into ordered prose and marker segments. Only
// empty segments are dropped, so concatenating every Segment.Text yields the
// input exactly.
func SplitMarkers(text string) []Segment {
	var out []Segment
	last := 0
	for _, loc := range markerPattern.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			out = append(out, Segment{Text: text[last:loc[0]]})
		}
		out = append(out, Segment{Text: text[loc[0]:loc[1]], Marker: true})
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, Segment{Text: text[last:]})
	}
	return out
}

// Join reassembles segments into text.
func Join(segs []Segment) string {
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

// paragraphs splits prose on blank lines and drops empty pieces.
func paragraphs(prose string) []string {
	var out []string
	for _, p := range blankLine.Split(prose, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// markerLabel returns the display text of a marker: the bracketed title
// without the URL line.
func markerLabel(marker string) string {
	if m := markerTitle.FindString(marker); m != "" {
		return m
	}
	return strings.TrimSpace(marker)
}
