package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/duynguyendang/cyclopath/pkg/common/errors"
	"github.com/duynguyendang/cyclopath/pkg/common/logging"
)

// URLExtractor converts one URL into an outcome. It never returns an error:
// failures are carried in Outcome.Failure.
type URLExtractor interface {
	Extract(ctx context.Context, rawURL string) Outcome
}

// DocumentSource converts an uploaded document into an outcome.
type DocumentSource interface {
	Extract(ctx context.Context, doc Document) Outcome
}

// AssetDeleter removes uploaded documents from the model's file store.
type AssetDeleter interface {
	DeleteAsset(ctx context.Context, name string) error
}

const assetCleanupTimeout = 10 * time.Second

// Request holds the optional inputs of one generation request.
type Request struct {
	VideoURL   string
	RepoURL    string
	ArticleURL string
	Document   *Document
}

// Requested lists the sources present in r, in merge order.
func (r Request) Requested() []Source {
	var out []Source
	if strings.TrimSpace(r.VideoURL) != "" {
		out = append(out, SourceVideo)
	}
	if strings.TrimSpace(r.RepoURL) != "" {
		out = append(out, SourceRepository)
	}
	if strings.TrimSpace(r.ArticleURL) != "" {
		out = append(out, SourceArticle)
	}
	if r.Document != nil && len(r.Document.Data) > 0 {
		out = append(out, SourceDocument)
	}
	return out
}

// Orchestrator fans out to the requested extractors and merges their outcomes.
type Orchestrator struct {
	video      URLExtractor
	repository URLExtractor
	article    URLExtractor
	document   DocumentSource
	assets     AssetDeleter
	concurrent bool
	logger     *slog.Logger
}

// OrchestratorOptions configures the orchestrator.
type OrchestratorOptions struct {
	Video      URLExtractor
	Repository URLExtractor
	Article    URLExtractor
	Document   DocumentSource
	// Assets removes uploads that are dropped when the request is cancelled.
	Assets AssetDeleter
	// Concurrent runs the extractors in parallel. Merge order is unaffected.
	Concurrent bool
	Logger     *slog.Logger
}

// NewOrchestrator creates a new instance of the orchestrator.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		video:      opts.Video,
		repository: opts.Repository,
		article:    opts.Article,
		document:   opts.Document,
		assets:     opts.Assets,
		concurrent: opts.Concurrent,
		logger:     opts.Logger.With("component", "orchestrator"),
	}
}

// Extract runs every requested extractor and returns the merged result.
// It returns apperrors.ErrNoContentExtracted when nothing was requested or
// nothing usable came back.
func (o *Orchestrator) Extract(ctx context.Context, req Request) (Result, error) {
	requested := req.Requested()
	if len(requested) == 0 {
		return Result{}, fmt.Errorf("no sources requested: %w", apperrors.ErrNoContentExtracted)
	}

	log := logging.FromContext(ctx, o.logger)
	log.Info("starting extraction", "sources", len(requested), "concurrent", o.concurrent)
	start := time.Now()

	outcomes := o.run(ctx, req, requested)
	for _, oc := range outcomes {
		logOutcome(log, oc)
	}

	if err := ctx.Err(); err != nil {
		o.discardAssets(ctx, outcomes)
		return Result{}, err
	}

	// Vision outcomes absorb the text of every other source.
	for _, oc := range outcomes {
		if oc.Vision == nil {
			continue
		}
		asset := *oc.Vision
		asset.SupplementaryText = mergeText(outcomes)
		log.Info("extraction completed", "kind", KindVision, "duration_ms", time.Since(start).Milliseconds())
		return VisionResult(asset), nil
	}

	anyOK := false
	for _, oc := range outcomes {
		if oc.OK() {
			anyOK = true
			break
		}
	}
	if !anyOK {
		return Result{}, fmt.Errorf("all %d requested sources failed: %w", len(requested), apperrors.ErrNoContentExtracted)
	}

	text := mergeText(outcomes)
	log.Info("extraction completed", "kind", KindText, "chars", len(text), "duration_ms", time.Since(start).Milliseconds())
	return TextResult(text), nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, requested []Source) []Outcome {
	outcomes := make([]Outcome, len(requested))
	exec := func(i int, src Source) {
		outcomes[i] = o.extractOne(ctx, req, src)
	}

	if !o.concurrent {
		for i, src := range requested {
			exec(i, src)
		}
		return outcomes
	}

	// Extractors never fail the group; errgroup only bounds the fan-out.
	var g errgroup.Group
	g.SetLimit(len(Sources))
	for i, src := range requested {
		g.Go(func() error {
			exec(i, src)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (o *Orchestrator) extractOne(ctx context.Context, req Request, src Source) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx, o.logger).Error("extractor panicked", "source", src.String(), "panic", r)
			out = failed(src, labelFor(src), "internal extractor error", fmt.Errorf("panic: %v", r))
		}
	}()

	switch src {
	case SourceVideo:
		return callURL(ctx, o.video, src, req.VideoURL)
	case SourceRepository:
		return callURL(ctx, o.repository, src, req.RepoURL)
	case SourceArticle:
		return callURL(ctx, o.article, src, req.ArticleURL)
	case SourceDocument:
		if o.document == nil {
			return failed(src, labelFor(src), "document extraction not configured", nil)
		}
		return o.document.Extract(ctx, *req.Document)
	default:
		return failed(src, labelFor(src), "unknown source", nil)
	}
}

func callURL(ctx context.Context, e URLExtractor, src Source, rawURL string) Outcome {
	if e == nil {
		return failed(src, labelFor(src), "extractor not configured", nil)
	}
	out := e.Extract(ctx, rawURL)
	out.Source = src
	if out.Label == "" {
		out.Label = labelFor(src)
	}
	if out.Failure == nil && out.Vision == nil && strings.TrimSpace(out.Text) == "" {
		return failed(src, out.Label, "no content extracted", nil)
	}
	return out
}

func labelFor(src Source) string {
	switch src {
	case SourceVideo:
		return LabelTranscript
	case SourceRepository:
		return LabelReadme
	case SourceArticle:
		return LabelArticle
	case SourceDocument:
		return LabelDocument
	}
	return strings.ToUpper(src.String())
}

// discardAssets deletes uploads that will never reach the generator.
func (o *Orchestrator) discardAssets(ctx context.Context, outcomes []Outcome) {
	log := logging.FromContext(ctx, o.logger)
	for _, oc := range outcomes {
		if oc.Vision == nil || oc.Vision.AssetName == "" {
			continue
		}
		if o.assets == nil {
			log.Warn("no asset store configured, uploaded document left behind", "name", oc.Vision.AssetName)
			continue
		}
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), assetCleanupTimeout)
		if err := o.assets.DeleteAsset(cleanupCtx, oc.Vision.AssetName); err != nil {
			log.Warn("failed to delete uploaded document", "name", oc.Vision.AssetName, "error", err)
		} else {
			log.Info("deleted uploaded document of cancelled request", "name", oc.Vision.AssetName)
		}
		cancel()
	}
}

func logOutcome(log *slog.Logger, oc Outcome) {
	attrs := []any{
		"source", oc.Source.String(),
		"ok", oc.OK(),
		"method", oc.Method,
		"chars", len(oc.Text),
		"duration_ms", oc.Duration.Milliseconds(),
	}
	if oc.Failure != nil {
		attrs = append(attrs, "reason", oc.Failure.Reason)
		log.Warn("source extraction failed", attrs...)
		return
	}
	log.Info("source extracted", attrs...)
}
