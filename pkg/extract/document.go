package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/duynguyendang/cyclopath/pkg/common/errors"
	"github.com/duynguyendang/cyclopath/pkg/common/logging"
	"rsc.io/pdf"
)

// DefaultVisionThreshold is the text-layer size below which a document is
// treated as scanned or handwritten.
const DefaultVisionThreshold = 750

// Document is an uploaded learning document.
type Document struct {
	Data     []byte
	Filename string
	// MIMEType is the declared type; it is sniffed from Data when empty or generic.
	MIMEType string
}

// ContentType returns the media type without parameters.
func (d Document) ContentType() string {
	declared, _, _ := mime.ParseMediaType(d.MIMEType)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	switch strings.ToLower(filepath.Ext(d.Filename)) {
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(d.Data))
	return sniffed
}

func isImage(mt string) bool {
	switch mt {
	case "image/png", "image/jpeg", "image/webp", "image/heic", "image/heif":
		return true
	}
	return false
}

// TextLayer extracts embedded text from a document.
type TextLayer interface {
	ExtractText(data []byte) (string, error)
}

// PDFTextLayer reads the text layer of a PDF.
type PDFTextLayer struct{}

// ExtractText implements TextLayer. Glyph positions are used to restore
// the word and line breaks the content stream does not encode.
func (PDFTextLayer) ExtractText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		var prev *pdf.Text
		for _, t := range p.Content().Text {
			if prev != nil {
				size := math.Max(prev.FontSize, 1)
				switch {
				case math.Abs(t.Y-prev.Y) > size*0.5:
					sb.WriteByte('\n')
				case t.X-(prev.X+prev.W) > size*0.15:
					sb.WriteByte(' ')
				}
			}
			sb.WriteString(t.S)
			cur := t
			prev = &cur
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// CountChars is the character count compared against the vision threshold.
func CountChars(text string) int {
	return utf8.RuneCountInString(strings.TrimSpace(text))
}

// DocumentExtractor decides between the text layer and vision escalation.
type DocumentExtractor struct {
	text      TextLayer
	vision    *VisionEscalator
	threshold int
	logger    *slog.Logger
}

// NewDocumentExtractor creates a DocumentExtractor. A nil vision escalator
// makes scanned documents fail with a missing-credential reason.
func NewDocumentExtractor(text TextLayer, vision *VisionEscalator, threshold int, logger *slog.Logger) *DocumentExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if text == nil {
		text = PDFTextLayer{}
	}
	if threshold <= 0 {
		threshold = DefaultVisionThreshold
	}
	return &DocumentExtractor{
		text:      text,
		vision:    vision,
		threshold: threshold,
		logger:    logger.With("component", "document_extractor"),
	}
}

// Extract implements DocumentSource.
func (d *DocumentExtractor) Extract(ctx context.Context, doc Document) Outcome {
	start := time.Now()
	if len(doc.Data) == 0 {
		return failed(SourceDocument, LabelDocument, "document is empty", nil)
	}

	mt := doc.ContentType()
	switch {
	case mt == "application/pdf":
		text, err := d.text.ExtractText(doc.Data)
		if err != nil {
			logging.FromContext(ctx, d.logger).Warn("text layer extraction failed", "filename", doc.Filename, "error", err)
			return failed(SourceDocument, LabelDocument, "could not extract text from the provided PDF", err)
		}
		chars := CountChars(text)
		if chars >= d.threshold {
			return Outcome{
				Source:   SourceDocument,
				Label:    LabelDocument,
				Method:   "pdf-text",
				Text:     strings.TrimSpace(text),
				Duration: time.Since(start),
			}
		}
		logging.FromContext(ctx, d.logger).Info("text layer below threshold, escalating to vision",
			"filename", doc.Filename,
			"chars", chars,
			"threshold", d.threshold,
		)
	case isImage(mt):
		logging.FromContext(ctx, d.logger).Info("image document has no text layer, escalating to vision", "filename", doc.Filename, "mime_type", mt)
	default:
		return failed(SourceDocument, LabelDocument, fmt.Sprintf("unsupported document type %q", mt), nil)
	}

	asset, err := d.vision.Escalate(ctx, doc, mt)
	if err != nil {
		reason := "vision upload failed"
		if errors.Is(err, apperrors.ErrMissingCredential) {
			reason = "vision credential not configured"
		}
		logging.FromContext(ctx, d.logger).Warn("vision escalation failed", "filename", doc.Filename, "error", err)
		return failed(SourceDocument, LabelDocument, reason, err)
	}
	return Outcome{
		Source:   SourceDocument,
		Label:    LabelDocument,
		Method:   "vision",
		Vision:   &asset,
		Duration: time.Since(start),
	}
}
