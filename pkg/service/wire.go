package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/duynguyendang/cyclopath/internal/config"
	"github.com/duynguyendang/cyclopath/pkg/extract"
	"github.com/duynguyendang/cyclopath/pkg/learnpath"
	"github.com/duynguyendang/cyclopath/pkg/service/ai"
)

// Build wires the extractors, the Gemini client and the generator from cfg.
// The returned close function releases the model client.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*PathService, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	prompt, err := ai.LoadPrompt(cfg.PromptFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load prompt: %w", err)
	}
	modelName := cfg.GeminiModel
	if modelName == "" {
		modelName = prompt.Config.Model
	}

	// Interfaces stay nil without a key so the pipeline reports a missing credential.
	var (
		uploader extract.AssetUploader
		assets   extract.AssetDeleter
		model    ai.Model
		files    ai.FileStore
		closeFn  = func() error { return nil }
	)
	if cfg.GeminiAPIKey != "" {
		client, err := ai.NewGeminiClient(ctx, ai.GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			Model:       modelName,
			Temperature: cfg.Temperature,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		uploader, assets, model, files = client, client, client, client
		closeFn = client.Close
	} else {
		logger.Warn("GEMINI_API_KEY not set; generation and vision escalation are disabled")
	}

	fetcher := extract.NewFetcher(extract.FetchConfig{
		Timeout:      cfg.HTTPTimeout,
		UserAgent:    cfg.UserAgent,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}, nil)

	captions := extract.NewYouTubeCaptions(fetcher, cfg.YouTubeWatchBase, cfg.CaptionLanguages)
	orchestrator := extract.NewOrchestrator(extract.OrchestratorOptions{
		Video: extract.NewVideoExtractor(captions, fetcher, cfg.YouTubeWatchBase, logger),
		Repository: extract.NewRepositoryExtractor(fetcher, extract.RepositoryConfig{
			APIBase: cfg.GitHubAPIBase,
			RawBase: cfg.GitHubRawBase,
			Token:   cfg.GitHubToken,
		}, logger),
		Article: extract.NewArticleExtractor(fetcher, logger),
		Document: extract.NewDocumentExtractor(
			extract.PDFTextLayer{},
			extract.NewVisionEscalator(uploader, cfg.TempDir, logger),
			cfg.VisionThreshold,
			logger,
		),
		Assets:     assets,
		Concurrent: cfg.ConcurrentExtraction,
		Logger:     logger,
	})

	generator := ai.NewPathGenerator(model, files, prompt, ai.GeneratorConfig{
		PollInterval:      cfg.PollInterval,
		MaxPollAttempts:   cfg.MaxPollAttempts,
		PrerequisiteCheck: learnpath.CheckMode(cfg.PrerequisiteCheck),
	}, logger)

	return NewPathService(orchestrator, generator, logger), closeFn, nil
}
