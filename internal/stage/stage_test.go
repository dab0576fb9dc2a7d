package stage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExtractNone(t *testing.T) {
	p, ok := Extract(None(), KeySummary)
	require.False(t, ok)
	require.Nil(t, p)

	_, ok = Extract(Single(nil), KeySummary)
	require.False(t, ok)

	_, ok = Extract(Sequence(), KeySummary)
	require.False(t, ok)
}

func TestExtractSingle(t *testing.T) {
	src := Payload{KeySummary: "text"}

	p, ok := Extract(Single(src), KeySummary)
	require.True(t, ok)
	require.Equal(t, "text", p.String(KeySummary))

	_, ok = Extract(Single(Payload{"other": 1}), KeySummary)
	require.False(t, ok)

	_, ok = Extract(Single(Payload{}), KeySummary)
	require.False(t, ok)
}

func TestExtractSequencePicksFirstMatch(t *testing.T) {
	first := Payload{KeyFormattedSummary: "a"}
	second := Payload{KeyFormattedSummary: "b"}
	up := Sequence(nil, Payload{KeyTranslations: 1}, first, second)

	p, ok := Extract(up, KeyFormattedSummary)
	require.True(t, ok)
	require.Equal(t, "a", p.String(KeyFormattedSummary))

	_, ok = Extract(Sequence(nil, Payload{"x": 1}), KeyFormattedSummary)
	require.False(t, ok)
}

func TestExtractReturnsCopy(t *testing.T) {
	src := Payload{KeySummary: "text"}
	p, ok := Extract(Single(src), KeySummary)
	require.True(t, ok)

	p[KeySummary] = "changed"
	require.Equal(t, "text", src.String(KeySummary))
}

func TestNormalize(t *testing.T) {
	require.Nil(t, None().Normalize())
	require.Len(t, Single(Payload{"a": 1}).Normalize(), 1)
	require.Len(t, Sequence(nil, Payload{"a": 1}, nil).Normalize(), 1)
	require.Equal(t, KindSequence, Sequence(nil).Kind())
}

func TestPayloadAccessors(t *testing.T) {
	p := Payload{
		"i":       3,
		"f":       float64(7),
		"b":       true,
		KeyStatus: "fallback",
	}
	require.Equal(t, 3, p.Int("i"))
	require.Equal(t, 7, p.Int("f"))
	require.Equal(t, 0, p.Int("missing"))
	require.True(t, p.Bool("b"))
	require.Equal(t, StatusFallback, p.Status())
	require.Equal(t, StatusOK, Payload{}.Status())
}

func TestFallback(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	p := Fallback(StatusFallback, "no upstream", at, Payload{KeySummary: ""})
	require.Equal(t, StatusFallback, p.Status())
	require.Equal(t, "no upstream", p.String(KeyError))
	require.Equal(t, at, p[KeyTimestamp])
	require.True(t, p.Has(KeySummary))
}
