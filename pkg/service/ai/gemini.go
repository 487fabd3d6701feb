package ai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	apperrors "github.com/duynguyendang/cyclopath/pkg/common/errors"
	"github.com/duynguyendang/cyclopath/pkg/common/logging"
	"github.com/duynguyendang/cyclopath/pkg/extract"
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
}

// GeminiClient is the model file store and JSON generation endpoint.
type GeminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

// NewGeminiClient creates a client. An empty API key is reported as
// apperrors.ErrMissingCredential.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set: %w", apperrors.ErrMissingCredential)
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Temperature)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = nodeArraySchema()

	return &GeminiClient{
		client: client,
		model:  model,
		logger: logger.With("component", "gemini", "model", cfg.Model),
	}, nil
}

// nodeArraySchema mirrors learnpath.Schema in the model's structured-output form.
func nodeArraySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"node_id":          {Type: genai.TypeString},
				"title":            {Type: genai.TypeString},
				"description":      {Type: genai.TypeString},
				"difficulty_level": {Type: genai.TypeInteger, Description: "1 (beginner) to 10 (expert)"},
				"prerequisites":    {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			},
			Required: []string{"node_id", "title", "description", "difficulty_level", "prerequisites"},
		},
	}
}

// UploadAsset implements extract.AssetUploader.
func (g *GeminiClient) UploadAsset(ctx context.Context, displayName string, r io.Reader, mimeType string) (extract.RemoteAsset, error) {
	f, err := g.client.UploadFile(ctx, "", r, &genai.UploadFileOptions{
		DisplayName: displayName,
		MIMEType:    mimeType,
	})
	if err != nil {
		return extract.RemoteAsset{}, fmt.Errorf("upload file: %w", err)
	}
	logging.FromContext(ctx, g.logger).Info("uploaded file", "name", f.Name, "mime_type", f.MIMEType, "state", string(assetState(f.State)))
	return toRemoteAsset(f), nil
}

// AssetStatus returns the current state of an uploaded file.
func (g *GeminiClient) AssetStatus(ctx context.Context, name string) (extract.RemoteAsset, error) {
	f, err := g.client.GetFile(ctx, name)
	if err != nil {
		return extract.RemoteAsset{}, fmt.Errorf("get file %s: %w", name, err)
	}
	return toRemoteAsset(f), nil
}

// DeleteAsset removes an uploaded file.
func (g *GeminiClient) DeleteAsset(ctx context.Context, name string) error {
	if err := g.client.DeleteFile(ctx, name); err != nil {
		return fmt.Errorf("delete file %s: %w", name, err)
	}
	return nil
}

// GenerateJSON sends parts to the model and returns the concatenated text of
// the first candidate.
func (g *GeminiClient) GenerateJSON(ctx context.Context, parts ...genai.Part) (string, error) {
	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		logging.FromContext(ctx, g.logger).Error("GenerateContent failed", "error", err)
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if resp.UsageMetadata != nil {
		logging.FromContext(ctx, g.logger).Debug("generation usage",
			"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
			"output_tokens", resp.UsageMetadata.CandidatesTokenCount,
		)
	}
	return sb.String(), nil
}

// Close releases the underlying client.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

func toRemoteAsset(f *genai.File) extract.RemoteAsset {
	return extract.RemoteAsset{
		Name:     f.Name,
		URI:      f.URI,
		MIMEType: f.MIMEType,
		State:    assetState(f.State),
	}
}

func assetState(s genai.FileState) extract.AssetState {
	switch s {
	case genai.FileStateProcessing:
		return extract.AssetStateProcessing
	case genai.FileStateActive:
		return extract.AssetStateActive
	case genai.FileStateFailed:
		return extract.AssetStateFailed
	default:
		return extract.AssetStateUnspecified
	}
}
