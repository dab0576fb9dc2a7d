// Package translate implements the translation stage.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/MarketBrief/internal/fallback"
	"github.com/TobiSchelling/MarketBrief/internal/images"
	"github.com/TobiSchelling/MarketBrief/internal/llm"
	"github.com/TobiSchelling/MarketBrief/internal/stage"
)

const (
	// Capability labels translation in logs and metrics.
	Capability = "translation"

	// NoContent is the text of every language when nothing was formatted.
	NoContent = "No content available for translation."

	maxTokens = 1500
)

// Language is one target language.
type Language struct {
	Code   string
	Native string
	// Unavailable is the localized notice shown when translation fails.
	Unavailable string
}

var languages = []Language{
	{Code: "hindi", Native: "हिन्दी", Unavailable: "वित्तीय बाजार सारांश - अनुवाद सेवा अनुपलब्ध"},
	{Code: "arabic", Native: "العربية", Unavailable: "ملخص السوق المالي - خدمة الترجمة غير متاحة"},
	{Code: "hebrew", Native: "עברית", Unavailable: "סיכום שוק פיננסי - שירות תרגום לא זמין"},
}

// Languages returns the fixed set of target languages in order.
func Languages() []Language {
	return append([]Language(nil), languages...)
}

// Translation is the result for one language.
type Translation struct {
	Language string              `json:"language"`
	Content  string              `json:"content"`
	Images   []images.Descriptor `json:"images"`
	Status   stage.Status        `json:"status,omitempty"`
}

const translatePrompt = `You are a professional financial translator. Translate the following financial market summary into %s (%s).

Important guidelines:
1. Maintain all formatting including line breaks and image placeholders
2. Preserve financial terms accuracy
3. Keep the professional tone
4. Do not translate image URLs or chart references - keep them as is
5. Ensure cultural appropriateness while maintaining technical accuracy

Content to translate:
%s

Provide only the translated content, maintaining exact formatting.`

// Translator runs the translation stage.
type Translator struct {
	provider llm.Provider
	log      logrus.FieldLogger
	observer fallback.Observer

	Now func() time.Time
}

// NewTranslator creates a translator. A nil provider yields the localized
// unavailable notice for every language.
func NewTranslator(provider llm.Provider, log logrus.FieldLogger, observer fallback.Observer) *Translator {
	if log == nil {
		log = logrus.New()
	}
	return &Translator{provider: provider, log: log.WithField("stage", "translate"), observer: observer, Now: time.Now}
}

// Translate runs the stage against the upstream formatting payload.
func (t *Translator) Translate(ctx context.Context, up stage.Upstream) stage.Payload {
	in, ok := stage.Extract(up, stage.KeyFormattedSummary)
	if !ok {
		t.log.Warn("no formatted content upstream, using fallback translations")
		bundle := make(map[string]Translation, len(languages))
		for _, lang := range languages {
			bundle[lang.Code] = Translation{
				Language: lang.Native,
				Content:  NoContent,
				Images:   []images.Descriptor{},
				Status:   stage.StatusFallback,
			}
		}
		return stage.Fallback(stage.StatusFallback, "missing formatted_summary", t.Now(), stage.Payload{
			stage.KeyOriginalContent: "",
			stage.KeyTranslations:    bundle,
			stage.KeyImages:          []images.Descriptor{},
		})
	}

	content := in.String(stage.KeyFormattedSummary)
	imgs := images.DescriptorsFrom(in[stage.KeyImages])

	bundle := make(map[string]Translation, len(languages))
	status := stage.StatusOK
	for _, lang := range languages {
		tr := t.translateOne(ctx, lang, content)
		tr.Images = imgs
		if tr.Status == stage.StatusFallback {
			status = stage.StatusFallback
		}
		bundle[lang.Code] = tr
	}

	t.log.WithField("languages", len(bundle)).WithField("status", status).Info("translation complete")
	return stage.Payload{
		stage.KeyOriginalContent: content,
		stage.KeyTranslations:    bundle,
		stage.KeyImages:          imgs,
		stage.KeyTimestamp:       t.Now(),
		stage.KeyStatus:          status,
	}
}

func (t *Translator) translateOne(ctx context.Context, lang Language, content string) Translation {
	var providers []fallback.Provider[string]
	if t.provider != nil && strings.TrimSpace(content) != "" {
		providers = append(providers, fallback.Provider[string]{
			Name: t.provider.Name(),
			Fetch: func(ctx context.Context) ([]string, error) {
				prompt := fmt.Sprintf(translatePrompt, lang.Native, lang.Code, content)
				out, err := t.provider.Generate(ctx, prompt, maxTokens)
				if err != nil {
					return nil, err
				}
				out = strings.TrimSpace(out)
				if out == "" {
					return nil, fmt.Errorf("empty translation")
				}
				return []string{out}, nil
			},
		})
	}

	res := fallback.Chain[string]{
		Capability: Capability,
		Providers:  providers,
		Min:        1,
		Static: func([]string) []string {
			return []string{Unavailable(lang, content)}
		},
		Log:      t.log.WithField("language", lang.Code),
		Observer: t.observer,
	}.Run(ctx)

	tr := Translation{Language: lang.Native, Content: res.Items[0]}
	if res.UsedStatic {
		tr.Status = stage.StatusFallback
	}
	return tr
}

// Unavailable renders the localized notice followed by the untranslated
// original.
func Unavailable(lang Language, original string) string {
	return lang.Unavailable + "\n\n[Original Content]\n" + original
}
