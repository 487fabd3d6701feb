package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/duynguyendang/cyclopath/internal/config"
	apperrors "github.com/duynguyendang/cyclopath/pkg/common/errors"
	"github.com/duynguyendang/cyclopath/pkg/extract"
	"github.com/duynguyendang/cyclopath/pkg/learnpath"
	"github.com/duynguyendang/cyclopath/pkg/service/ai"
)

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, req extract.Request) (extract.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(extract.Result), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, res extract.Result) ([]learnpath.Node, error) {
	args := m.Called(ctx, res)
	nodes, _ := args.Get(0).([]learnpath.Node)
	return nodes, args.Error(1)
}

func TestPathServiceGenerate(t *testing.T) {
	req := extract.Request{VideoURL: "https://youtu.be/dQw4w9WgXcQ"}
	merged := extract.TextResult("\n--- YOUTUBE TRANSCRIPT ---\nHello world\n")
	path := []learnpath.Node{{NodeID: "hello", Title: "Hello", DifficultyLevel: 1, Prerequisites: []string{}}}

	ext := new(MockExtractor)
	ext.On("Extract", mock.MatchedBy(func(ctx context.Context) bool { return RequestID(ctx) == "req-1" }), req).Return(merged, nil).Once()
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, merged).Return(path, nil).Once()

	svc := NewPathService(ext, gen, nil)
	nodes, err := svc.Generate(WithRequestID(context.Background(), "req-1"), req)

	require.NoError(t, err)
	assert.Equal(t, path, nodes)
	ext.AssertExpectations(t)
	gen.AssertExpectations(t)
}

func TestPathServiceAssignsRequestID(t *testing.T) {
	ext := new(MockExtractor)
	ext.On("Extract", mock.MatchedBy(func(ctx context.Context) bool { return RequestID(ctx) != "" }), mock.Anything).
		Return(extract.TextResult("x"), nil).Once()
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return([]learnpath.Node{}, nil).Once()

	_, err := NewPathService(ext, gen, nil).Generate(context.Background(), extract.Request{ArticleURL: "https://a"})
	require.NoError(t, err)
	ext.AssertExpectations(t)
}

func TestPathServiceShortCircuitsWithoutContent(t *testing.T) {
	ext := new(MockExtractor)
	ext.On("Extract", mock.Anything, mock.Anything).
		Return(extract.Result{}, fmt.Errorf("all 2 requested sources failed: %w", apperrors.ErrNoContentExtracted)).Once()
	gen := new(MockGenerator)

	nodes, err := NewPathService(ext, gen, nil).Generate(context.Background(), extract.Request{VideoURL: "v", RepoURL: "r"})

	assert.ErrorIs(t, err, apperrors.ErrNoContentExtracted)
	assert.Nil(t, nodes)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestPathServicePropagatesGenerationFailure(t *testing.T) {
	ext := new(MockExtractor)
	ext.On("Extract", mock.Anything, mock.Anything).Return(extract.TextResult("x"), nil).Once()
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("%w: bad json", apperrors.ErrGeneration)).Once()

	_, err := NewPathService(ext, gen, nil).Generate(context.Background(), extract.Request{ArticleURL: "https://a"})
	assert.ErrorIs(t, err, apperrors.ErrGeneration)
}

func TestBuildWithoutCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><article><p>Interfaces are satisfied implicitly.</p></article></body></html>`)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.GeminiAPIKey = ""

	svc, closeFn, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer closeFn()

	_, err = svc.Generate(context.Background(), extract.Request{ArticleURL: srv.URL})
	assert.ErrorIs(t, err, apperrors.ErrMissingCredential)

	_, err = svc.Generate(context.Background(), extract.Request{})
	assert.ErrorIs(t, err, apperrors.ErrNoContentExtracted)
}

func TestBuildRejectsMissingPromptFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PromptFile = "/nonexistent/learning_path.prompt"

	_, _, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}

type failingCaptions struct{}

func (failingCaptions) Captions(context.Context, string) ([]extract.CaptionFragment, error) {
	return nil, errors.New("captions endpoint unavailable")
}

type fixedModel string

func (m fixedModel) GenerateJSON(context.Context, ...genai.Part) (string, error) {
	return string(m), nil
}

func TestRequestIDOnEveryLogLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><article><p>Goroutines are cheap.</p></article></body></html>`)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	orchestrator := extract.NewOrchestrator(extract.OrchestratorOptions{
		Video:   extract.NewVideoExtractor(failingCaptions{}, nil, "", logger),
		Article: extract.NewArticleExtractor(extract.NewFetcher(extract.FetchConfig{}, nil), logger),
		Logger:  logger,
	})
	prompt, err := ai.DefaultPrompt()
	require.NoError(t, err)
	model := fixedModel(`[{"node_id": "goroutines", "title": "Goroutines", "description": "", "difficulty_level": 3, "prerequisites": ["channels"]}]`)
	generator := ai.NewPathGenerator(model, nil, prompt, ai.GeneratorConfig{}, logger)

	svc := NewPathService(orchestrator, generator, logger)
	_, err = svc.Generate(WithRequestID(context.Background(), "req-123"), extract.Request{
		VideoURL:   "https://youtu.be/dQw4w9WgXcQ",
		ArticleURL: srv.URL,
	})
	require.NoError(t, err)

	components := map[string]bool{}
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var line map[string]any
		require.NoError(t, dec.Decode(&line))
		assert.Equal(t, "req-123", line["request_id"], "log line %q", line["msg"])
		if c, ok := line["component"].(string); ok {
			components[c] = true
		}
	}
	for _, c := range []string{"orchestrator", "video_extractor", "path_generator", "path_service"} {
		assert.True(t, components[c], "no log line from %s", c)
	}
}
