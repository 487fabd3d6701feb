package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/duynguyendang/cyclopath/pkg/common/logging"
	"github.com/duynguyendang/cyclopath/pkg/extract"
	"github.com/duynguyendang/cyclopath/pkg/learnpath"
)

// Extractor merges the requested sources into one payload.
type Extractor interface {
	Extract(ctx context.Context, req extract.Request) (extract.Result, error)
}

// Generator turns a merged payload into a learning path.
type Generator interface {
	Generate(ctx context.Context, res extract.Result) ([]learnpath.Node, error)
}

// WithRequestID attaches id to ctx; every pipeline log line of the request carries it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return logging.WithRequestID(ctx, id)
}

// RequestID returns the id attached by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	return logging.RequestID(ctx)
}

// PathService is the boundary between transports and the pipeline.
type PathService struct {
	extractor Extractor
	generator Generator
	logger    *slog.Logger
}

// NewPathService creates a new instance of PathService.
func NewPathService(extractor Extractor, generator Generator, logger *slog.Logger) *PathService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PathService{
		extractor: extractor,
		generator: generator,
		logger:    logger.With("component", "path_service"),
	}
}

// Generate extracts the requested sources and generates a learning path.
// The model is never invoked when extraction yields nothing.
func (s *PathService) Generate(ctx context.Context, req extract.Request) ([]learnpath.Node, error) {
	id := RequestID(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = WithRequestID(ctx, id)
	}
	log := logging.FromContext(ctx, s.logger)
	start := time.Now()

	res, err := s.extractor.Extract(ctx, req)
	if err != nil {
		log.Warn("extraction failed", "error", err)
		return nil, err
	}
	log.Info("extraction finished", "kind", res.Kind().String())

	nodes, err := s.generator.Generate(ctx, res)
	if err != nil {
		log.Error("generation failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	log.Info("request completed", "nodes", len(nodes), "duration_ms", time.Since(start).Milliseconds())
	return nodes, nil
}
