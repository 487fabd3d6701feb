// Package extract turns learning-material sources into a single payload for
// path generation. Each source has its own extractor; failures are kept as
// visible placeholder text instead of aborting the request.
package extract

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies one input kind. The numeric order is the merge order.
type Source int

const (
	SourceVideo Source = iota + 1
	SourceRepository
	SourceArticle
	SourceDocument
)

// Sources lists every source in merge order.
var Sources = []Source{SourceVideo, SourceRepository, SourceArticle, SourceDocument}

func (s Source) String() string {
	switch s {
	case SourceVideo:
		return "YouTube"
	case SourceRepository:
		return "GitHub"
	case SourceArticle:
		return "Blog"
	case SourceDocument:
		return "PDF"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// Section labels used in merged text.
const (
	LabelTranscript = "YOUTUBE TRANSCRIPT"
	LabelMetadata   = "YOUTUBE METADATA"
	LabelReadme     = "GITHUB README"
	LabelArticle    = "BLOG POST"
	LabelDocument   = "PDF NOTES"
)

// Failure is a per-source extraction failure. It is rendered into the merged
// text and never returned from the orchestrator.
type Failure struct {
	Source Source
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s extraction failed: %s: %v", f.Source, f.Reason, f.Err)
	}
	return fmt.Sprintf("%s extraction failed: %s", f.Source, f.Reason)
}

func (f *Failure) Unwrap() error { return f.Err }

// Placeholder is the bracketed note that replaces a failed section body.
func (f *Failure) Placeholder() string {
	return fmt.Sprintf("[%s extraction failed: %s]", f.Source, f.Reason)
}

func failed(src Source, label, reason string, err error) Outcome {
	return Outcome{Source: src, Label: label, Failure: &Failure{Source: src, Reason: reason, Err: err}}
}

// Outcome is what one extractor produced for one requested source.
// Exactly one of Text, Failure or Vision is meaningful.
type Outcome struct {
	Source Source
	Label  string
	// Method names the strategy that produced the outcome, e.g. "captions",
	// "page-metadata", "raw", "pdf-text", "vision".
	Method   string
	Text     string
	Failure  *Failure
	Vision   *VisionAsset
	Duration time.Duration
}

// OK reports whether the source produced usable content.
func (o Outcome) OK() bool {
	return o.Failure == nil && (o.Vision != nil || strings.TrimSpace(o.Text) != "")
}

// body is the section body for text merging.
func (o Outcome) body() string {
	if o.Failure != nil {
		return o.Failure.Placeholder()
	}
	return o.Text
}

// AssetState is the processing state of an uploaded document.
type AssetState string

const (
	AssetStateProcessing  AssetState = "PROCESSING"
	AssetStateActive      AssetState = "ACTIVE"
	AssetStateFailed      AssetState = "FAILED"
	AssetStateUnspecified AssetState = "STATE_UNSPECIFIED"
)

// RemoteAsset is a document uploaded to the model's file store.
// It lives only for the request that created it.
type RemoteAsset struct {
	Name     string
	URI      string
	MIMEType string
	State    AssetState
}

// VisionAsset references an uploaded scanned document plus the merged text
// of every other requested source.
type VisionAsset struct {
	MIMEType          string
	AssetName         string
	AssetURI          string
	SupplementaryText string
}

// Kind discriminates Result.
type Kind int

const (
	KindText Kind = iota + 1
	KindVision
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindVision:
		return "vision"
	default:
		return "invalid"
	}
}

// Result is the merged extraction payload: either plain text or a vision
// asset. It deliberately has no String method; callers switch on Kind.
type Result struct {
	kind   Kind
	text   string
	vision VisionAsset
}

// TextResult wraps merged text.
func TextResult(text string) Result {
	return Result{kind: KindText, text: text}
}

// VisionResult wraps an uploaded document reference.
func VisionResult(v VisionAsset) Result {
	return Result{kind: KindVision, vision: v}
}

// Kind returns the variant held by r. The zero Result has no valid kind.
func (r Result) Kind() Kind { return r.kind }

// Text returns the merged text when r is the text variant.
func (r Result) Text() (string, bool) {
	if r.kind != KindText {
		return "", false
	}
	return r.text, true
}

// Vision returns the asset when r is the vision variant.
func (r Result) Vision() (VisionAsset, bool) {
	if r.kind != KindVision {
		return VisionAsset{}, false
	}
	return r.vision, true
}

// section renders one labeled block of merged text.
func section(label, body string) string {
	return "\n--- " + label + " ---\n" + body + "\n"
}

// mergeText concatenates outcomes in fixed source order regardless of the
// order they were collected in.
func mergeText(outcomes []Outcome) string {
	var sb strings.Builder
	for _, src := range Sources {
		for _, o := range outcomes {
			if o.Source != src || o.Vision != nil {
				continue
			}
			sb.WriteString(section(o.Label, o.body()))
		}
	}
	return sb.String()
}
