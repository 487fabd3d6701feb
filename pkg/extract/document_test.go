package extract

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	apperrors "github.com/duynguyendang/cyclopath/pkg/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTextLayer struct {
	text string
	err  error
}

func (f fakeTextLayer) ExtractText([]byte) (string, error) { return f.text, f.err }

type recordingUploader struct {
	stagedPath string
	body       []byte
	mimeType   string
	err        error
}

func (u *recordingUploader) UploadAsset(_ context.Context, displayName string, r io.Reader, mimeType string) (RemoteAsset, error) {
	if f, ok := r.(*os.File); ok {
		u.stagedPath = f.Name()
	}
	u.body, _ = io.ReadAll(r)
	u.mimeType = mimeType
	if u.err != nil {
		return RemoteAsset{}, u.err
	}
	return RemoteAsset{Name: "files/" + displayName, URI: "https://files.example/" + displayName, State: AssetStateProcessing}, nil
}

var pdfDoc = Document{Data: []byte("%PDF-1.4 fake"), Filename: "notes.pdf", MIMEType: "application/pdf"}

func TestDocumentExtractorTextLayer(t *testing.T) {
	ext := NewDocumentExtractor(fakeTextLayer{text: "  " + strings.Repeat("a", 800) + "\n"}, nil, 750, nil)

	oc := ext.Extract(context.Background(), pdfDoc)
	require.True(t, oc.OK())
	assert.Equal(t, "pdf-text", oc.Method)
	assert.Nil(t, oc.Vision)
	assert.Len(t, oc.Text, 800)
}

func TestDocumentExtractorThresholdIsInclusive(t *testing.T) {
	ext := NewDocumentExtractor(fakeTextLayer{text: strings.Repeat("é", 750)}, nil, 750, nil)

	oc := ext.Extract(context.Background(), pdfDoc)
	require.True(t, oc.OK())
	assert.Equal(t, "pdf-text", oc.Method)
}

func TestDocumentExtractorEscalatesSparsePDF(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{}
	ext := NewDocumentExtractor(fakeTextLayer{text: "Chapter 1."}, NewVisionEscalator(up, dir, nil), 750, nil)

	oc := ext.Extract(context.Background(), pdfDoc)
	require.True(t, oc.OK(), "failure: %v", oc.Failure)
	assert.Equal(t, "vision", oc.Method)
	require.NotNil(t, oc.Vision)
	assert.Equal(t, "application/pdf", oc.Vision.MIMEType)
	assert.True(t, strings.HasPrefix(oc.Vision.AssetName, "files/cyclopath-"))
	assert.Empty(t, oc.Vision.SupplementaryText)

	assert.Equal(t, pdfDoc.Data, up.body)
	assert.Equal(t, "application/pdf", up.mimeType)
	require.NotEmpty(t, up.stagedPath)
	_, err := os.Stat(up.stagedPath)
	assert.True(t, os.IsNotExist(err), "staging file should be removed")
}

func TestDocumentExtractorImageGoesStraightToVision(t *testing.T) {
	up := &recordingUploader{}
	layer := fakeTextLayer{err: errors.New("must not be called")}
	ext := NewDocumentExtractor(layer, NewVisionEscalator(up, t.TempDir(), nil), 750, nil)

	png := Document{Data: []byte("\x89PNG\r\n\x1a\n0000"), Filename: "board.png"}
	oc := ext.Extract(context.Background(), png)
	require.True(t, oc.OK(), "failure: %v", oc.Failure)
	assert.Equal(t, "image/png", up.mimeType)
}

func TestDocumentExtractorFailures(t *testing.T) {
	ctx := context.Background()

	oc := NewDocumentExtractor(fakeTextLayer{text: "short"}, nil, 750, nil).Extract(ctx, pdfDoc)
	require.NotNil(t, oc.Failure)
	assert.Equal(t, "vision credential not configured", oc.Failure.Reason)
	assert.ErrorIs(t, oc.Failure, apperrors.ErrMissingCredential)

	dir := t.TempDir()
	up := &recordingUploader{err: errors.New("quota exceeded")}
	oc = NewDocumentExtractor(fakeTextLayer{text: "short"}, NewVisionEscalator(up, dir, nil), 750, nil).Extract(ctx, pdfDoc)
	require.NotNil(t, oc.Failure)
	assert.Equal(t, "vision upload failed", oc.Failure.Reason)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	oc = NewDocumentExtractor(fakeTextLayer{err: errors.New("bad xref")}, nil, 750, nil).Extract(ctx, pdfDoc)
	require.NotNil(t, oc.Failure)
	assert.Equal(t, "could not extract text from the provided PDF", oc.Failure.Reason)

	oc = NewDocumentExtractor(nil, nil, 750, nil).Extract(ctx, Document{Data: []byte("plain words"), Filename: "a.txt"})
	require.NotNil(t, oc.Failure)
	assert.Contains(t, oc.Failure.Reason, "unsupported document type")

	oc = NewDocumentExtractor(nil, nil, 750, nil).Extract(ctx, Document{})
	require.NotNil(t, oc.Failure)
	assert.Equal(t, "document is empty", oc.Failure.Reason)
}

func TestDocumentContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", Document{MIMEType: "application/pdf; charset=binary"}.ContentType())
	assert.Equal(t, "image/heic", Document{Filename: "IMG_1.HEIC", MIMEType: "application/octet-stream"}.ContentType())
	assert.Equal(t, "application/pdf", Document{Data: []byte("%PDF-1.7\n")}.ContentType())
}

func TestPDFTextLayerRejectsGarbage(t *testing.T) {
	_, err := PDFTextLayer{}.ExtractText([]byte("not a pdf"))
	assert.Error(t, err)
}

func TestCountChars(t *testing.T) {
	assert.Equal(t, 3, CountChars("  héé \n"))
	assert.Equal(t, 0, CountChars("\n\t"))
}
