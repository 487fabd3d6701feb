package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeTextFixedOrder(t *testing.T) {
	outcomes := []Outcome{
		{Source: SourceArticle, Label: LabelArticle, Text: "blog body"},
		failed(SourceRepository, LabelReadme, "repository not found or private", nil),
		{Source: SourceVideo, Label: LabelTranscript, Text: "Hello world"},
	}

	got := mergeText(outcomes)

	want := "\n--- YOUTUBE TRANSCRIPT ---\nHello world\n" +
		"\n--- GITHUB README ---\n[GitHub extraction failed: repository not found or private]\n" +
		"\n--- BLOG POST ---\nblog body\n"
	assert.Equal(t, want, got)
}

func TestMergeTextSkipsVisionOutcome(t *testing.T) {
	outcomes := []Outcome{
		{Source: SourceDocument, Label: LabelDocument, Vision: &VisionAsset{AssetName: "files/x"}},
	}
	assert.Equal(t, "", mergeText(outcomes))
}

func TestOutcomeOK(t *testing.T) {
	assert.True(t, Outcome{Text: "x"}.OK())
	assert.True(t, Outcome{Vision: &VisionAsset{}}.OK())
	assert.False(t, Outcome{Text: "   "}.OK())
	assert.False(t, failed(SourceVideo, LabelTranscript, "boom", nil).OK())
}

func TestFailureUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	oc := failed(SourceArticle, LabelArticle, "could not fetch page", cause)

	assert.ErrorIs(t, oc.Failure, cause)
	assert.Contains(t, oc.Failure.Error(), "Blog extraction failed")
	assert.Equal(t, "[Blog extraction failed: could not fetch page]", oc.Failure.Placeholder())
}

func TestResultVariants(t *testing.T) {
	r := TextResult("merged")
	text, ok := r.Text()
	assert.True(t, ok)
	assert.Equal(t, "merged", text)
	_, ok = r.Vision()
	assert.False(t, ok)
	assert.Equal(t, KindText, r.Kind())

	v := VisionResult(VisionAsset{MIMEType: "application/pdf", AssetURI: "uri"})
	asset, ok := v.Vision()
	assert.True(t, ok)
	assert.Equal(t, "uri", asset.AssetURI)
	_, ok = v.Text()
	assert.False(t, ok)
	assert.Equal(t, "vision", v.Kind().String())

	var zero Result
	assert.Equal(t, "invalid", zero.Kind().String())
}
