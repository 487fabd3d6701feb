package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/duynguyendang/cyclopath/pkg/common/logging"
)

const maxCachedBranches = 256

// readmeNames are tried in order on the discovered branch.
var readmeNames = []string{"README.md", "readme.md", "README.rst", "README.txt", "README"}

// fallbackBranches are tried when branch discovery is rate limited.
var fallbackBranches = []string{"main", "master"}

// RepoRef identifies a repository on the content host.
type RepoRef struct {
	Owner string
	Name  string
}

func (r RepoRef) String() string { return r.Owner + "/" + r.Name }

// ParseRepoURL accepts https://github.com/owner/repo[.git][/...] and the
// owner/repo shorthand.
func ParseRepoURL(raw string) (RepoRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RepoRef{}, errors.New("empty repository URL")
	}
	if !strings.Contains(raw, "://") {
		if strings.Count(raw, "/") == 1 && !strings.Contains(raw, ".") {
			raw = "https://github.com/" + raw
		} else {
			raw = "https://" + raw
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return RepoRef{}, fmt.Errorf("parse repository URL: %w", err)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "github.com" {
		return RepoRef{}, fmt.Errorf("unsupported repository host %q", u.Hostname())
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, errors.New("invalid GitHub URL format: expected /owner/repo")
	}
	return RepoRef{Owner: parts[0], Name: strings.TrimSuffix(parts[1], ".git")}, nil
}

// RepositoryConfig configures the repository extractor.
type RepositoryConfig struct {
	APIBase string
	RawBase string
	// Token is an optional API token; it lifts anonymous rate limits.
	Token string
}

// RepositoryExtractor fetches the primary documentation file of a repository.
type RepositoryExtractor struct {
	fetcher  *Fetcher
	cfg      RepositoryConfig
	branches *lru.Cache[string, string]
	logger   *slog.Logger
}

// NewRepositoryExtractor creates a RepositoryExtractor.
func NewRepositoryExtractor(fetcher *Fetcher, cfg RepositoryConfig, logger *slog.Logger) *RepositoryExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	cfg.RawBase = strings.TrimRight(cfg.RawBase, "/")
	// Only errors on a non-positive size.
	cache, _ := lru.New[string, string](maxCachedBranches)
	return &RepositoryExtractor{
		fetcher:  fetcher,
		cfg:      cfg,
		branches: cache,
		logger:   logger.With("component", "repository_extractor"),
	}
}

// Extract implements URLExtractor.
func (r *RepositoryExtractor) Extract(ctx context.Context, rawURL string) Outcome {
	start := time.Now()
	ref, err := ParseRepoURL(rawURL)
	if err != nil {
		return failed(SourceRepository, LabelReadme, "malformed repository URL", err)
	}

	text, method, err := r.readme(ctx, ref)
	if err != nil {
		reason := "could not fetch README"
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			reason = "repository not found or private"
		}
		logging.FromContext(ctx, r.logger).Warn("readme fetch failed", "repo", ref.String(), "error", err)
		return failed(SourceRepository, LabelReadme, reason, err)
	}
	if strings.TrimSpace(text) == "" {
		return failed(SourceRepository, LabelReadme, "README is empty", nil)
	}
	return Outcome{Source: SourceRepository, Label: LabelReadme, Method: method, Text: text, Duration: time.Since(start)}
}

func (r *RepositoryExtractor) readme(ctx context.Context, ref RepoRef) (string, string, error) {
	branch, err := r.defaultBranch(ctx, ref)
	switch {
	case err == nil:
		if text, err := r.rawReadme(ctx, ref, branch); err == nil {
			return text, "raw", nil
		} else if ctx.Err() != nil {
			return "", "", err
		}
	case isRateLimited(err):
		logging.FromContext(ctx, r.logger).Info("branch discovery rate limited, guessing branch names", "repo", ref.String())
		for _, b := range fallbackBranches {
			if text, err := r.rawReadme(ctx, ref, b); err == nil {
				return text, "raw", nil
			}
		}
	default:
		return "", "", err
	}

	text, err := r.apiReadme(ctx, ref)
	if err != nil {
		return "", "", err
	}
	return text, "api", nil
}

// defaultBranch asks the API for the repository's default branch.
func (r *RepositoryExtractor) defaultBranch(ctx context.Context, ref RepoRef) (string, error) {
	key := strings.ToLower(ref.String())
	if b, ok := r.branches.Get(key); ok {
		return b, nil
	}

	resp, err := r.fetcher.Get(ctx, fmt.Sprintf("%s/repos/%s/%s", r.cfg.APIBase, ref.Owner, ref.Name), r.apiHeaders("application/vnd.github+json"))
	if err != nil {
		return "", err
	}
	var repo struct {
		DefaultBranch string `json:"default_branch"`
		Private       bool   `json:"private"`
	}
	if err := json.Unmarshal(resp.Body, &repo); err != nil {
		return "", fmt.Errorf("decode repository: %w", err)
	}
	if repo.DefaultBranch == "" {
		return "", errors.New("repository has no default branch")
	}
	r.branches.Add(key, repo.DefaultBranch)
	return repo.DefaultBranch, nil
}

func (r *RepositoryExtractor) rawReadme(ctx context.Context, ref RepoRef, branch string) (string, error) {
	var lastErr error
	for _, name := range readmeNames {
		u := fmt.Sprintf("%s/%s/%s/%s/%s", r.cfg.RawBase, ref.Owner, ref.Name, url.PathEscape(branch), name)
		resp, err := r.fetcher.Get(ctx, u, nil)
		if err == nil {
			return string(resp.Body), nil
		}
		lastErr = err
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
			return "", err
		}
	}
	return "", lastErr
}

// apiReadme uses the readme endpoint, which resolves the file name and branch server-side.
func (r *RepositoryExtractor) apiReadme(ctx context.Context, ref RepoRef) (string, error) {
	resp, err := r.fetcher.Get(ctx, fmt.Sprintf("%s/repos/%s/%s/readme", r.cfg.APIBase, ref.Owner, ref.Name), r.apiHeaders("application/vnd.github.raw"))
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

func (r *RepositoryExtractor) apiHeaders(accept string) map[string]string {
	h := map[string]string{
		"Accept":               accept,
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if r.cfg.Token != "" {
		h["Authorization"] = "Bearer " + r.cfg.Token
	}
	return h
}

func isRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && (se.StatusCode == http.StatusForbidden || se.StatusCode == http.StatusTooManyRequests)
}
