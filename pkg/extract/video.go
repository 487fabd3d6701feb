package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/duynguyendang/cyclopath/pkg/common/logging"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID extracts the 11-character video id from a watch, short,
// embed, shorts or live URL, or accepts a bare id.
func ParseVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if videoIDPattern.MatchString(raw) {
		return raw, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse video URL: %w", err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string
	switch host {
	case "youtu.be":
		id = segments[0]
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
		} else if len(segments) >= 2 {
			switch segments[0] {
			case "embed", "shorts", "live", "v":
				id = segments[1]
			}
		}
	default:
		return "", fmt.Errorf("unsupported video host %q", u.Hostname())
	}

	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("no video id in %q", raw)
	}
	return id, nil
}

// CaptionFragment is one timed caption line.
type CaptionFragment struct {
	Text     string
	Start    float64
	Duration float64
}

// CaptionService resolves a caption transcript for a video id.
// A video without captions yields an empty slice and a nil error.
type CaptionService interface {
	Captions(ctx context.Context, videoID string) ([]CaptionFragment, error)
}

// YouTubeCaptions reads caption tracks from the public watch page.
type YouTubeCaptions struct {
	fetcher   *Fetcher
	watchBase string
	languages []string
}

// NewYouTubeCaptions creates a caption service. languages is the track
// preference order; the first available track is used when none match.
func NewYouTubeCaptions(fetcher *Fetcher, watchBase string, languages []string) *YouTubeCaptions {
	return &YouTubeCaptions{fetcher: fetcher, watchBase: watchBase, languages: languages}
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

const captionTracksKey = `"captionTracks":`

// Captions implements CaptionService.
func (y *YouTubeCaptions) Captions(ctx context.Context, videoID string) ([]CaptionFragment, error) {
	page, err := y.fetcher.Get(ctx, watchURL(y.watchBase, videoID), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch watch page: %w", err)
	}

	idx := bytes.Index(page.Body, []byte(captionTracksKey))
	if idx < 0 {
		return nil, nil
	}
	var tracks []captionTrack
	dec := json.NewDecoder(bytes.NewReader(page.Body[idx+len(captionTracksKey):]))
	if err := dec.Decode(&tracks); err != nil {
		return nil, fmt.Errorf("decode caption tracks: %w", err)
	}

	track, ok := pickTrack(tracks, y.languages)
	if !ok {
		return nil, nil
	}

	resp, err := y.fetcher.Get(ctx, track.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch captions: %w", err)
	}
	return parseTimedText(resp.Body)
}

// pickTrack prefers manual over auto-generated captions within each language.
func pickTrack(tracks []captionTrack, languages []string) (captionTrack, bool) {
	if len(tracks) == 0 {
		return captionTrack{}, false
	}
	for _, lang := range languages {
		var auto *captionTrack
		for i, t := range tracks {
			if !strings.EqualFold(t.LanguageCode, lang) && !strings.HasPrefix(strings.ToLower(t.LanguageCode), strings.ToLower(lang)+"-") {
				continue
			}
			if t.Kind != "asr" {
				return t, true
			}
			if auto == nil {
				auto = &tracks[i]
			}
		}
		if auto != nil {
			return *auto, true
		}
	}
	return tracks[0], true
}

type timedText struct {
	Texts []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
	Paragraphs []struct {
		T        float64  `xml:"t,attr"`
		D        float64  `xml:"d,attr"`
		Body     string   `xml:",chardata"`
		Segments []string `xml:"s"`
	} `xml:"body>p"`
}

// parseTimedText accepts both the legacy <transcript><text> and the srv3
// <timedtext><body><p> formats.
func parseTimedText(data []byte) ([]CaptionFragment, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var tt timedText
	if err := xml.Unmarshal(data, &tt); err != nil {
		return nil, fmt.Errorf("decode timed text: %w", err)
	}

	frags := make([]CaptionFragment, 0, len(tt.Texts)+len(tt.Paragraphs))
	for _, t := range tt.Texts {
		frags = append(frags, CaptionFragment{Text: html.UnescapeString(t.Body), Start: t.Start, Duration: t.Dur})
	}
	for _, p := range tt.Paragraphs {
		text := p.Body
		if len(p.Segments) > 0 {
			text = strings.Join(p.Segments, "")
		}
		frags = append(frags, CaptionFragment{Text: html.UnescapeString(text), Start: p.T / 1000, Duration: p.D / 1000})
	}
	return frags, nil
}

// JoinCaptions concatenates fragments into one whitespace-collapsed paragraph.
func JoinCaptions(frags []CaptionFragment) string {
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		parts = append(parts, f.Text)
	}
	return collapseWhitespace(strings.Join(parts, " "))
}

func watchURL(base, videoID string) string {
	return base + "?v=" + url.QueryEscape(videoID)
}

// VideoExtractor converts a video URL into transcript text, falling back to
// page metadata when no transcript is available.
type VideoExtractor struct {
	captions  CaptionService
	fetcher   *Fetcher
	watchBase string
	logger    *slog.Logger
}

// NewVideoExtractor creates a VideoExtractor. A nil fetcher disables the
// metadata fallback.
func NewVideoExtractor(captions CaptionService, fetcher *Fetcher, watchBase string, logger *slog.Logger) *VideoExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoExtractor{
		captions:  captions,
		fetcher:   fetcher,
		watchBase: watchBase,
		logger:    logger.With("component", "video_extractor"),
	}
}

// Extract implements URLExtractor.
func (v *VideoExtractor) Extract(ctx context.Context, rawURL string) Outcome {
	start := time.Now()
	id, err := ParseVideoID(rawURL)
	if err != nil {
		return failed(SourceVideo, LabelTranscript, "malformed video URL", err)
	}

	frags, err := v.captions.Captions(ctx, id)
	if text := JoinCaptions(frags); err == nil && text != "" {
		return Outcome{Source: SourceVideo, Label: LabelTranscript, Method: "captions", Text: text, Duration: time.Since(start)}
	}

	reason := "no captions available; ensure the video has closed captions enabled"
	if err != nil {
		reason = "caption retrieval failed"
		logging.FromContext(ctx, v.logger).Warn("caption retrieval failed", "video_id", id, "error", err)
	}
	if ctx.Err() != nil {
		return failed(SourceVideo, LabelTranscript, reason, errors.Join(err, ctx.Err()))
	}

	if v.fetcher != nil {
		meta, mErr := v.metadata(ctx, id)
		if mErr == nil && !meta.Empty() {
			logging.FromContext(ctx, v.logger).Info("using page metadata instead of transcript", "video_id", id)
			return Outcome{
				Source:   SourceVideo,
				Label:    LabelMetadata,
				Method:   "page-metadata",
				Text:     formatMetadata(meta),
				Duration: time.Since(start),
			}
		}
		if mErr != nil {
			logging.FromContext(ctx, v.logger).Debug("metadata fallback failed", "video_id", id, "error", mErr)
		}
	}

	return failed(SourceVideo, LabelTranscript, reason, err)
}

func (v *VideoExtractor) metadata(ctx context.Context, videoID string) (PageMetadata, error) {
	page, err := v.fetcher.Get(ctx, watchURL(v.watchBase, videoID), nil)
	if err != nil {
		return PageMetadata{}, err
	}
	doc, err := parseHTML(page.Body)
	if err != nil {
		return PageMetadata{}, fmt.Errorf("parse watch page: %w", err)
	}
	return pageMetadata(doc), nil
}

func formatMetadata(m PageMetadata) string {
	var lines []string
	if m.Title != "" {
		lines = append(lines, "Title: "+m.Title)
	}
	if m.Description != "" {
		lines = append(lines, "Description: "+m.Description)
	}
	return strings.Join(lines, "\n")
}
