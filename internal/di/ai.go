package di

import (
	"context"
	"fmt"

	"github.com/roasbeef/clinbox/internal/analysis"
	"github.com/roasbeef/clinbox/internal/analysis/bedrock"
	"github.com/roasbeef/clinbox/internal/analysis/cache"
	"github.com/roasbeef/clinbox/internal/analysis/gemini"
	"github.com/roasbeef/clinbox/internal/analysis/openai"
	"github.com/roasbeef/clinbox/internal/build"
	"github.com/roasbeef/clinbox/internal/config"
)

// AI holds the model backed collaborators of a session. Both are nil when
// the provider is "none".
type AI struct {
	Analyzer analysis.Analyzer
	Composer analysis.Composer
}

// newCompleter returns the chat backend of provider for model.
func newCompleter(ctx context.Context, ai config.AI, model string,
	closers *Closers) (analysis.Completer, error) {

	switch ai.Provider {
	case config.ProviderOpenRouter:
		return openai.New(openai.Config{
			APIKey:  ai.APIKey,
			Model:   model,
			BaseURL: ai.BaseURL,
		}), nil

	case config.ProviderOpenAI:
		base := ai.BaseURL
		if base == "" {
			base = openai.OpenAIBaseURL
		}

		return openai.New(openai.Config{
			APIKey:  ai.APIKey,
			Model:   model,
			BaseURL: base,
		}), nil

	case config.ProviderGemini:
		client, err := gemini.New(ctx, ai.APIKey, model)
		if err != nil {
			return nil, err
		}
		closers.add(client.Close)

		return client, nil

	case config.ProviderBedrock:
		client, err := bedrock.New(ctx, ai.Region, model)
		if err != nil {
			return nil, err
		}

		return client, nil

	default:
		return nil, fmt.Errorf("unknown ai provider %q", ai.Provider)
	}
}

// provideAI builds the analyzer, with the result cache in front of it, and
// the reply composer.
func provideAI(ctx context.Context, cfg *config.Config,
	logging *build.Logging, closers *Closers) (*AI, error) {

	ai := cfg.AI()
	if ai.Provider == config.ProviderNone {
		return &AI{}, nil
	}

	log := logging.Logger(build.SubsystemAnalysis)
	clientCfg := analysis.Config{
		SummaryLanguage:   ai.SummaryLanguage,
		RequestsPerSecond: ai.RequestsPerSecond,
	}

	analysisLLM, err := newCompleter(ctx, ai, ai.AnalysisModel, closers)
	if err != nil {
		return nil, fmt.Errorf("unable to create analysis model: %w", err)
	}

	replyModel := ai.ReplyModel
	if replyModel == "" {
		replyModel = ai.AnalysisModel
	}
	replyLLM, err := newCompleter(ctx, ai, replyModel, closers)
	if err != nil {
		return nil, fmt.Errorf("unable to create reply model: %w", err)
	}

	var analyzer analysis.Analyzer = analysis.NewClient(
		analysisLLM, clientCfg, log,
	)

	if ai.CachePath != "" {
		store, err := cache.Open(ai.CachePath, ai.CacheTTL)
		switch {
		case err != nil:
			log.WarnContext(ctx, "Analysis cache unavailable",
				"path", ai.CachePath, "err", err)

		default:
			closers.add(store.Close)

			if n, err := store.Prune(); err != nil {
				log.WarnContext(ctx, "Unable to prune analysis cache",
					"err", err)
			} else if n > 0 {
				log.DebugContext(ctx, "Pruned analysis cache",
					"expired", n)
			}

			analyzer = cache.Wrap(analyzer, store, log)
		}
	}

	log.InfoContext(ctx, "Analysis enabled", "provider", ai.Provider,
		"analysis_model", analysisLLM.Model(),
		"reply_model", replyLLM.Model())

	return &AI{
		Analyzer: analyzer,
		Composer: analysis.NewClient(replyLLM, clientCfg, log),
	}, nil
}
