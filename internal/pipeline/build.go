package pipeline

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/MarketBrief/internal/collect"
	"github.com/TobiSchelling/MarketBrief/internal/config"
	"github.com/TobiSchelling/MarketBrief/internal/distribute"
	"github.com/TobiSchelling/MarketBrief/internal/document"
	"github.com/TobiSchelling/MarketBrief/internal/fallback"
	"github.com/TobiSchelling/MarketBrief/internal/fetch"
	"github.com/TobiSchelling/MarketBrief/internal/format"
	"github.com/TobiSchelling/MarketBrief/internal/images"
	"github.com/TobiSchelling/MarketBrief/internal/llm"
	summarizestage "github.com/TobiSchelling/MarketBrief/internal/summarize"
	"github.com/TobiSchelling/MarketBrief/internal/telegram"
	"github.com/TobiSchelling/MarketBrief/internal/translate"
)

// New wires the live stages from configuration. Missing required
// credentials, or opts.Demo, switch the whole run to demo mode: synthetic
// news, no LLM, placeholder images and no Telegram.
func New(cfg *config.Config, creds config.Credentials, opts Options) *Pipeline {
	log := opts.Log
	if log == nil {
		log = logrus.New()
	}
	reasons := cfg.DemoReasons(creds)
	demo := opts.Demo || len(reasons) > 0
	if demo && !opts.Demo {
		log.WithField("missing", reasons).Warn("required credentials missing, running in demo mode")
	}
	opts.Demo = demo

	var observer fallback.Observer
	if opts.Metrics != nil {
		observer = opts.Metrics.ProviderFailed
	}

	collectOpts := collect.Options{
		Min:      cfg.News.MinResults,
		Timeout:  cfg.Timeouts.Provider,
		Observer: observer,
		Log:      log,
	}
	var (
		provider  llm.Provider
		searchers []images.Searcher
		sender    distribute.Sender
	)

	if demo {
		collectOpts.Providers = collect.DemoProviders()
	} else {
		collectOpts.Providers = collect.LiveProviders(cfg, creds, log)
		if cfg.News.EnrichContent {
			collectOpts.Fetcher = fetch.NewContentFetcher(cfg.Timeouts.Provider)
		}
		if cfg.News.Enhancement.Enabled && creds.Groq != "" {
			collectOpts.Enhancer = &collect.Enhancer{
				LLM: llm.NewGroqProvider(cfg.News.Enhancement.Model, creds.Groq),
				Log: log,
			}
		}

		provider = llm.CreateProvider(cfg.Summarization, creds, log)

		if creds.Serper != "" {
			searchers = append(searchers, &images.SerperSearcher{Client: collect.NewSerperClient(creds.Serper, "")})
		}
		if creds.Tavily != "" {
			searchers = append(searchers, &images.TavilySearcher{Client: collect.NewTavilyClient(creds.Tavily, "")})
		}

		sender = &lazySender{opts: telegram.Options{
			Token:     creds.TelegramToken,
			ChatID:    creds.TelegramChat,
			MaxChars:  cfg.Telegram.MaxChars,
			ParseMode: cfg.Telegram.ParseMode,
			Log:       log,
		}}
	}

	collector := collect.NewCollector(collectOpts)
	summarizer := summarizestage.NewSummarizer(provider, cfg.Summarization.MaxWords, cfg.Summarization.MaxTokens, log)
	resolver := &images.Resolver{
		Searchers: searchers,
		Timeout:   cfg.Timeouts.Provider,
		Log:       log.WithField("component", "images"),
		Observer:  observer,
	}
	formatter := format.NewFormatter(resolver, log)
	translator := translate.NewTranslator(provider, log, observer)
	assembler := document.NewAssembler(cfg.Images.PlaceholderHosts, cfg.Images.FetchTimeout, log)
	distributor := distribute.NewDistributor(assembler, sender, cfg.Output.Dir, log)

	p := NewWithStages(Stages{
		Retrieve:   collector.Collect,
		Summarize:  summarizer.Summarize,
		Format:     formatter.Format,
		Translate:  translator.Translate,
		Distribute: distributor.Distribute,
	}, opts)
	p.cfg = cfg
	p.creds = creds
	p.demoReasons = reasons
	return p
}

// lazySender connects to Telegram on first use, so building a pipeline
// makes no network calls.
type lazySender struct {
	opts telegram.Options

	once sync.Once
	sink *telegram.Sink
	err  error
}

func (l *lazySender) Send(ctx context.Context, text string, imgs []images.Descriptor) telegram.Receipt {
	l.once.Do(func() {
		l.sink, l.err = telegram.NewSink(l.opts)
	})
	if l.err != nil {
		return telegram.Receipt{Error: l.err.Error(), Photos: []telegram.PhotoReceipt{}}
	}
	return l.sink.Send(ctx, text, imgs)
}

var _ distribute.Sender = (*lazySender)(nil)
