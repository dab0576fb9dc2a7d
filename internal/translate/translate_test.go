package translate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/MarketBrief/internal/images"
	"github.com/TobiSchelling/MarketBrief/internal/stage"
)

type mockProvider struct {
	fail    map[string]bool
	prompts []string
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Generate(_ context.Context, prompt string, _ int) (string, error) {
	m.prompts = append(m.prompts, prompt)
	for code := range m.fail {
		if strings.Contains(prompt, "("+code+")") {
			return "", errors.New("quota exceeded")
		}
	}
	return "translated", nil
}

func (m *mockProvider) IsConfigured() bool { return true }

func bundleOf(t *testing.T, p stage.Payload) map[string]Translation {
	t.Helper()
	b, ok := p[stage.KeyTranslations].(map[string]Translation)
	require.True(t, ok)
	return b
}

func TestTranslateWithoutUpstream(t *testing.T) {
	log, _ := test.NewNullLogger()
	tr := NewTranslator(&mockProvider{}, log, nil)

	for _, up := range []stage.Upstream{stage.None(), stage.Single(stage.Payload{stage.KeySummary: "x"})} {
		p := tr.Translate(context.Background(), up)
		require.Equal(t, stage.StatusFallback, p.Status())
		b := bundleOf(t, p)
		require.Len(t, b, 3)
		for _, lang := range Languages() {
			require.Equal(t, NoContent, b[lang.Code].Content)
			require.Equal(t, lang.Native, b[lang.Code].Language)
		}
	}
}

func TestTranslateAllLanguages(t *testing.T) {
	log, _ := test.NewNullLogger()
	m := &mockProvider{}
	tr := NewTranslator(m, log, nil)

	imgs := []images.Descriptor{{URL: "https://x.com/a.png", Title: "A"}}
	p := tr.Translate(context.Background(), stage.Single(stage.Payload{
		stage.KeyFormattedSummary: "Stocks rose.",
		stage.KeyImages:           imgs,
	}))

	require.Equal(t, stage.StatusOK, p.Status())
	require.Equal(t, "Stocks rose.", p.String(stage.KeyOriginalContent))
	b := bundleOf(t, p)
	for _, code := range []string{"hindi", "arabic", "hebrew"} {
		require.Equal(t, "translated", b[code].Content)
		require.Equal(t, imgs, b[code].Images)
	}
	require.Len(t, m.prompts, 3)
	require.Contains(t, m.prompts[0], "Stocks rose.")
}

func TestTranslateFailureUsesLocalizedNotice(t *testing.T) {
	log, _ := test.NewNullLogger()
	var observed []string
	tr := NewTranslator(&mockProvider{fail: map[string]bool{"arabic": true}}, log, func(capability, provider string, _ error) {
		observed = append(observed, capability+"/"+provider)
	})

	p := tr.Translate(context.Background(), stage.Single(stage.Payload{stage.KeyFormattedSummary: "Bonds fell."}))
	require.Equal(t, stage.StatusFallback, p.Status())

	b := bundleOf(t, p)
	require.Equal(t, "translated", b["hindi"].Content)
	require.Equal(t, "ملخص السوق المالي - خدمة الترجمة غير متاحة\n\n[Original Content]\nBonds fell.", b["arabic"].Content)
	require.Equal(t, stage.StatusFallback, b["arabic"].Status)
	require.Equal(t, []string{"translation/mock"}, observed)
}

func TestTranslateWithoutProvider(t *testing.T) {
	log, _ := test.NewNullLogger()
	p := NewTranslator(nil, log, nil).Translate(context.Background(), stage.Single(stage.Payload{stage.KeyFormattedSummary: "Oil flat."}))
	b := bundleOf(t, p)
	for _, lang := range Languages() {
		require.Equal(t, Unavailable(lang, "Oil flat."), b[lang.Code].Content)
	}
}
