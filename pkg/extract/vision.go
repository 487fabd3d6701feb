package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	apperrors "github.com/duynguyendang/cyclopath/pkg/common/errors"
	"github.com/duynguyendang/cyclopath/pkg/common/logging"
	"github.com/google/uuid"
)

// AssetUploader uploads a document to the vision-capable model's file store.
type AssetUploader interface {
	UploadAsset(ctx context.Context, displayName string, r io.Reader, mimeType string) (RemoteAsset, error)
}

// VisionEscalator uploads scanned documents for multimodal generation.
// Readiness polling is left to the generator.
type VisionEscalator struct {
	uploader AssetUploader
	tempDir  string
	logger   *slog.Logger
}

// NewVisionEscalator creates a VisionEscalator. An empty tempDir uses os.TempDir().
func NewVisionEscalator(uploader AssetUploader, tempDir string, logger *slog.Logger) *VisionEscalator {
	if logger == nil {
		logger = slog.Default()
	}
	return &VisionEscalator{uploader: uploader, tempDir: tempDir, logger: logger.With("component", "vision_escalator")}
}

// Escalate stages doc in a per-request temp file, uploads it and removes the
// file whether or not the upload succeeded.
func (v *VisionEscalator) Escalate(ctx context.Context, doc Document, mimeType string) (VisionAsset, error) {
	if v == nil || v.uploader == nil {
		return VisionAsset{}, fmt.Errorf("vision escalation: %w", apperrors.ErrMissingCredential)
	}

	name := "cyclopath-" + uuid.NewString()
	f, err := os.CreateTemp(v.tempDir, name+"-*")
	if err != nil {
		return VisionAsset{}, fmt.Errorf("create staging file: %w", err)
	}
	defer func() {
		f.Close()
		if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
			logging.FromContext(ctx, v.logger).Warn("failed to remove staging file", "path", f.Name(), "error", err)
		}
	}()

	if _, err := f.Write(doc.Data); err != nil {
		return VisionAsset{}, fmt.Errorf("write staging file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return VisionAsset{}, fmt.Errorf("rewind staging file: %w", err)
	}

	logging.FromContext(ctx, v.logger).Info("uploading document for vision",
		"display_name", name,
		"mime_type", mimeType,
		"bytes", len(doc.Data),
	)
	asset, err := v.uploader.UploadAsset(ctx, name, f, mimeType)
	if err != nil {
		return VisionAsset{}, fmt.Errorf("upload document: %w", err)
	}

	if asset.MIMEType == "" {
		asset.MIMEType = mimeType
	}
	return VisionAsset{
		MIMEType:  asset.MIMEType,
		AssetName: asset.Name,
		AssetURI:  asset.URI,
	}, nil
}
