package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"
)

// Page geometry in points.
const (
	marginLeft   = 72
	marginRight  = 72
	marginTop    = 72
	marginBottom = 18

	fontFamily = "Helvetica"
)

// Document is a laid-out report.
type Document struct {
	Title     string
	Generated time.Time
	Blocks    []Block
}

// FileName returns the report file name for a generation time.
func FileName(t time.Time) string {
	return fmt.Sprintf("financial_market_summary_%s.pdf", t.Format("20060102_150405"))
}

// WriteFile renders the document to path, creating parent directories.
func (d *Document) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}

// WriteTo renders the document as PDF into w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	pdf := d.render()
	cw := &countingWriter{w: w}
	if err := pdf.Output(cw); err != nil {
		return cw.n, fmt.Errorf("rendering pdf: %w", err)
	}
	return cw.n, nil
}

func (d *Document) render() *fpdf.Fpdf {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetTitle(d.Title, true)
	pdf.SetCreator("MarketBrief", true)
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, marginBottom+18)
	pdf.AliasNbPages("")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-marginBottom - 14)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	usable := pageW - marginLeft - marginRight
	imageN := 0

	for _, b := range d.Blocks {
		switch b.Kind {
		case BlockTitle:
			pdf.SetFont(fontFamily, "B", 18)
			pdf.SetTextColor(0, 0, 139)
			pdf.MultiCell(0, 22, tr(b.Text), "", "C", false)
			pdf.Ln(20)
		case BlockMeta:
			pdf.SetFont(fontFamily, "", 10)
			pdf.SetTextColor(0, 0, 0)
			pdf.MultiCell(0, 14, tr(b.Text), "", "L", false)
			pdf.Ln(24)
		case BlockHeading:
			pdf.SetFont(fontFamily, "B", 14)
			pdf.SetTextColor(0, 0, 139)
			pdf.SetDrawColor(173, 216, 230)
			pdf.MultiCell(0, 20, tr(b.Text), "B", "L", false)
			pdf.Ln(14)
		case BlockParagraph:
			pdf.SetFont(fontFamily, "", 11)
			pdf.SetTextColor(0, 0, 0)
			pdf.MultiCell(0, 14, tr(b.Text), "", "L", false)
			pdf.Ln(12)
		case BlockChartMarker:
			pdf.SetFont(fontFamily, "I", 10)
			pdf.SetTextColor(80, 80, 80)
			pdf.MultiCell(0, 13, tr(b.Text), "", "L", false)
			pdf.Ln(8)
		case BlockCaption:
			pdf.SetFont(fontFamily, "I", 10)
			pdf.SetTextColor(0, 0, 0)
			pdf.MultiCell(0, 13, tr(b.Text), "", "L", false)
			pdf.Ln(6)
		case BlockUnavailable:
			pdf.SetFont(fontFamily, "I", 10)
			pdf.SetTextColor(120, 120, 120)
			pdf.MultiCell(0, 13, tr(b.Text), "", "L", false)
			pdf.Ln(15)
		case BlockImage:
			imageN++
			name := fmt.Sprintf("chart-%d", imageN)
			opts := fpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(b.PNG))
			w, h := float64(b.Width), float64(b.Height)
			if w > usable {
				h = h * usable / w
				w = usable
			}
			x := marginLeft + (usable-w)/2
			pdf.ImageOptions(name, x, -1, w, h, true, opts, 0, "")
			pdf.Ln(20)
		}
	}
	return pdf
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
