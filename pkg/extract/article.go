package extract

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/duynguyendang/cyclopath/pkg/common/logging"
)

// ArticleExtractor pulls readable text out of a web page.
type ArticleExtractor struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewArticleExtractor creates an ArticleExtractor.
func NewArticleExtractor(fetcher *Fetcher, logger *slog.Logger) *ArticleExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArticleExtractor{fetcher: fetcher, logger: logger.With("component", "article_extractor")}
}

// Extract implements URLExtractor.
func (a *ArticleExtractor) Extract(ctx context.Context, rawURL string) Outcome {
	start := time.Now()
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		if err == nil {
			err = fmt.Errorf("unsupported URL %q", rawURL)
		}
		return failed(SourceArticle, LabelArticle, "malformed article URL", err)
	}

	resp, err := a.fetcher.Get(ctx, u.String(), map[string]string{
		"Accept": "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8",
	})
	if err != nil {
		logging.FromContext(ctx, a.logger).Warn("article fetch failed", "url", u.String(), "error", err)
		return failed(SourceArticle, LabelArticle, "could not fetch page", err)
	}

	if ct := resp.ContentType; ct != "" {
		mt, _, _ := mime.ParseMediaType(ct)
		if mt != "text/html" && mt != "application/xhtml+xml" {
			return failed(SourceArticle, LabelArticle, fmt.Sprintf("unsupported content type %q", mt), nil)
		}
	}

	doc, err := parseHTML(resp.Body)
	if err != nil {
		return failed(SourceArticle, LabelArticle, "could not parse page", err)
	}

	text := readableText(doc)
	if text == "" {
		return failed(SourceArticle, LabelArticle, "no readable content found", nil)
	}
	return Outcome{Source: SourceArticle, Label: LabelArticle, Method: "html", Text: text, Duration: time.Since(start)}
}
