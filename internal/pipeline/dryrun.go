package pipeline

import (
	"fmt"
	"strings"

	"github.com/TobiSchelling/MarketBrief/internal/stage"
)

// DryRun reports what a run would do from configuration and credentials
// alone. It makes no network calls and writes nothing.
func (p *Pipeline) DryRun() *Result {
	r := &Result{Demo: p.demo, Status: "dry-run", StartedAt: p.now()}
	add := func(name, summary string) {
		r.Steps = append(r.Steps, StepResult{Name: name, Status: stage.StatusOK, Summary: "[dry-run] " + summary})
	}

	if p.cfg == nil {
		for _, name := range []string{StepRetrieval, StepSummarization, StepFormatting, StepTranslation, StepDistribution} {
			add(name, "custom stage")
		}
		r.FinishedAt = p.now()
		return r
	}

	cfg, creds := p.cfg, p.creds
	llmName := strings.ToLower(cfg.Summarization.Provider)
	hasLLM := creds.Has("llm", llmName)

	if p.demo {
		reason := "forced by --demo"
		if len(p.demoReasons) > 0 {
			reason = "missing credentials: " + strings.Join(p.demoReasons, ", ")
		}
		add(StepRetrieval, "demo mode ("+reason+"); synthetic news source")
		add(StepSummarization, "no LLM; headline digest fallback")
		add(StepFormatting, "placeholder chart images")
		add(StepTranslation, "localized unavailable notices")
		add(StepDistribution, fmt.Sprintf("PDF to %s; Telegram disabled", cfg.Output.Dir))
		r.FinishedAt = p.now()
		return r
	}

	var provs []string
	for _, name := range cfg.News.Providers {
		state := "no credentials"
		switch strings.ToLower(name) {
		case "feeds":
			state = fmt.Sprintf("%d feeds", len(cfg.News.Feeds))
		default:
			if creds.Has(strings.ToLower(name), llmName) {
				state = "configured"
			}
		}
		provs = append(provs, fmt.Sprintf("%s (%s)", name, state))
	}
	retrieval := fmt.Sprintf("providers %s; need %d items", strings.Join(provs, ", "), cfg.News.MinResults)
	if cfg.News.Enhancement.Enabled && creds.Groq != "" {
		retrieval += "; Groq enhancement on"
	}
	add(StepRetrieval, retrieval)

	llmState := "unavailable, headline digest fallback"
	if hasLLM {
		llmState = "via " + llmName
	}
	add(StepSummarization, fmt.Sprintf("up to %d words, LLM %s", cfg.Summarization.MaxWords, llmState))

	var searchers []string
	if creds.Serper != "" {
		searchers = append(searchers, "serper")
	}
	if creds.Tavily != "" {
		searchers = append(searchers, "tavily")
	}
	if len(searchers) == 0 {
		add(StepFormatting, "no image search configured; placeholder charts")
	} else {
		add(StepFormatting, "image search via "+strings.Join(searchers, ", "))
	}

	if hasLLM {
		add(StepTranslation, "hindi, arabic, hebrew via "+llmName)
	} else {
		add(StepTranslation, "localized unavailable notices")
	}

	tg := "Telegram disabled"
	if creds.TelegramToken != "" && creds.TelegramChat != "" {
		tg = "Telegram chat " + creds.TelegramChat
	}
	add(StepDistribution, fmt.Sprintf("PDF to %s; %s", cfg.Output.Dir, tg))

	r.FinishedAt = p.now()
	return r
}
