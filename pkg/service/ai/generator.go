package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"

	apperrors "github.com/duynguyendang/cyclopath/pkg/common/errors"
	"github.com/duynguyendang/cyclopath/pkg/common/logging"
	"github.com/duynguyendang/cyclopath/pkg/extract"
	"github.com/duynguyendang/cyclopath/pkg/learnpath"
)

const assetCleanupTimeout = 10 * time.Second

// Model is the JSON generation endpoint.
type Model interface {
	GenerateJSON(ctx context.Context, parts ...genai.Part) (string, error)
}

// FileStore reports and removes uploaded documents.
type FileStore interface {
	AssetStatus(ctx context.Context, name string) (extract.RemoteAsset, error)
	DeleteAsset(ctx context.Context, name string) error
}

// GeneratorConfig configures the path generator.
type GeneratorConfig struct {
	// PollInterval is the wait between asset status checks.
	PollInterval time.Duration
	// MaxPollAttempts bounds the number of status checks.
	MaxPollAttempts int
	// PrerequisiteCheck selects how inconsistent prerequisites are handled.
	PrerequisiteCheck learnpath.CheckMode
}

// PathGenerator turns an extraction result into a learning path.
type PathGenerator struct {
	model  Model
	files  FileStore
	prompt *Prompt
	cfg    GeneratorConfig
	logger *slog.Logger
}

// NewPathGenerator creates a PathGenerator. A nil model makes every call
// fail with apperrors.ErrMissingCredential.
func NewPathGenerator(model Model, files FileStore, prompt *Prompt, cfg GeneratorConfig, logger *slog.Logger) *PathGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 40
	}
	if cfg.PrerequisiteCheck == "" {
		cfg.PrerequisiteCheck = learnpath.CheckWarn
	}
	return &PathGenerator{
		model:  model,
		files:  files,
		prompt: prompt,
		cfg:    cfg,
		logger: logger.With("component", "path_generator"),
	}
}

// Generate builds the model request for res, invokes the model and returns
// the validated node array. Nothing is retried.
func (g *PathGenerator) Generate(ctx context.Context, res extract.Result) ([]learnpath.Node, error) {
	if g.model == nil {
		return nil, fmt.Errorf("path generation: %w", apperrors.ErrMissingCredential)
	}
	if g.prompt == nil {
		return nil, fmt.Errorf("path generation: no prompt loaded: %w", apperrors.ErrInternal)
	}

	var parts []genai.Part
	switch res.Kind() {
	case extract.KindText:
		text, _ := res.Text()
		instruction, err := g.prompt.Render(text, false)
		if err != nil {
			return nil, fmt.Errorf("render prompt: %w", err)
		}
		parts = []genai.Part{genai.Text(instruction)}

	case extract.KindVision:
		asset, _ := res.Vision()
		if g.files == nil {
			return nil, fmt.Errorf("vision generation: %w", apperrors.ErrMissingCredential)
		}
		defer g.deleteAsset(ctx, asset.AssetName)

		ready, err := g.waitForActive(ctx, asset.AssetName)
		if err != nil {
			return nil, err
		}
		uri, mimeType := asset.AssetURI, asset.MIMEType
		if ready.URI != "" {
			uri = ready.URI
		}
		if ready.MIMEType != "" {
			mimeType = ready.MIMEType
		}

		instruction, err := g.prompt.Render(asset.SupplementaryText, true)
		if err != nil {
			return nil, fmt.Errorf("render prompt: %w", err)
		}
		parts = []genai.Part{genai.Text(instruction), genai.FileData{MIMEType: mimeType, URI: uri}}

	default:
		return nil, fmt.Errorf("unsupported extraction result kind %v: %w", res.Kind(), apperrors.ErrInvalidInput)
	}

	log := logging.FromContext(ctx, g.logger)
	start := time.Now()
	raw, err := g.model.GenerateJSON(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrGeneration, err)
	}
	log.Info("model responded", "kind", res.Kind().String(), "bytes", len(raw), "duration_ms", time.Since(start).Milliseconds())

	nodes, err := learnpath.Parse([]byte(StripCodeFences(raw)))
	if err != nil {
		log.Warn("model returned invalid path", "error", err, "response", truncateForLog(raw, 512))
		return nil, fmt.Errorf("%w: %w", apperrors.ErrGeneration, err)
	}

	if err := g.checkPrerequisites(log, nodes); err != nil {
		return nil, err
	}

	log.Info("generated learning path", "nodes", len(nodes))
	return nodes, nil
}

// waitForActive checks the asset state, waiting PollInterval between checks,
// until it is ACTIVE or MaxPollAttempts checks have been made.
func (g *PathGenerator) waitForActive(ctx context.Context, name string) (extract.RemoteAsset, error) {
	log := logging.FromContext(ctx, g.logger)
	for attempt := 1; attempt <= g.cfg.MaxPollAttempts; attempt++ {
		asset, err := g.files.AssetStatus(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return extract.RemoteAsset{}, ctx.Err()
			}
			return extract.RemoteAsset{}, fmt.Errorf("%w: status check for %s: %w", apperrors.ErrAssetProcessing, name, err)
		}
		log.Debug("asset status", "name", name, "state", string(asset.State), "attempt", attempt)

		switch asset.State {
		case extract.AssetStateActive:
			return asset, nil
		case extract.AssetStateProcessing:
		default:
			return extract.RemoteAsset{}, fmt.Errorf("%w: %s is %s", apperrors.ErrAssetProcessing, name, asset.State)
		}

		if attempt == g.cfg.MaxPollAttempts {
			break
		}
		timer := time.NewTimer(g.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return extract.RemoteAsset{}, ctx.Err()
		case <-timer.C:
		}
	}
	return extract.RemoteAsset{}, fmt.Errorf("%w: %s still processing after %d checks", apperrors.ErrAssetTimeout, name, g.cfg.MaxPollAttempts)
}

// deleteAsset removes the uploaded document even when ctx is already done.
func (g *PathGenerator) deleteAsset(ctx context.Context, name string) {
	if name == "" {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), assetCleanupTimeout)
	defer cancel()
	if err := g.files.DeleteAsset(cleanupCtx, name); err != nil {
		logging.FromContext(ctx, g.logger).Warn("failed to delete uploaded document", "name", name, "error", err)
	}
}

func (g *PathGenerator) checkPrerequisites(log *slog.Logger, nodes []learnpath.Node) error {
	if g.cfg.PrerequisiteCheck == learnpath.CheckOff {
		return nil
	}
	report := learnpath.CheckPrerequisites(nodes)
	if report.Empty() {
		return nil
	}
	if g.cfg.PrerequisiteCheck == learnpath.CheckStrict {
		return fmt.Errorf("%w: inconsistent prerequisites: %s", apperrors.ErrGeneration, report)
	}
	log.Warn("learning path has inconsistent prerequisites", "problems", report.Problems())
	return nil
}

// StripCodeFences removes a surrounding markdown code fence from model output.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncateForLog(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
