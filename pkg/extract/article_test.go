package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<!DOCTYPE html>
<html>
<head><title>Ignored</title><style>p { color: red; }</style></head>
<body>
  <header><nav><ul><li>Home</li><li>About</li></ul></nav></header>
  <article>
    <h1>Understanding   Goroutines</h1>
    <p>Goroutines are <em>lightweight</em> threads.</p>
    <script>track("view")</script>
    <ul><li>Cheap to start</li><li>Multiplexed on OS threads</li></ul>
    <aside><p>Subscribe to the newsletter</p></aside>
  </article>
  <footer><p>Copyright</p></footer>
</body>
</html>`

func TestArticleExtractorReadableText(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articlePage)
	}))
	defer srv.Close()

	ext := NewArticleExtractor(NewFetcher(FetchConfig{UserAgent: "cyclopath-test"}, srv.Client()), nil)
	oc := ext.Extract(context.Background(), srv.URL+"/post")

	require.True(t, oc.OK(), "failure: %v", oc.Failure)
	assert.Equal(t, "Understanding Goroutines\nGoroutines are lightweight threads.\nCheap to start\nMultiplexed on OS threads", oc.Text)
	assert.Equal(t, "cyclopath-test", ua.Load())
}

func TestArticleExtractorFallsBackToBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><nav><p>menu</p></nav><p>Plain body text.</p></body></html>`)
	}))
	defer srv.Close()

	oc := NewArticleExtractor(NewFetcher(FetchConfig{}, srv.Client()), nil).Extract(context.Background(), srv.URL)
	require.True(t, oc.OK())
	assert.Equal(t, "Plain body text.", oc.Text)
}

func TestReadableTextKeepsArticleHeader(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{
			name: "header inside article",
			page: `<html><body>
				<header><h1>My Blog</h1></header>
				<article>
					<header><h1>Channels in Depth</h1><p>5 min read</p></header>
					<p>Channels synchronise goroutines.</p>
					<footer><p>Tagged: go</p></footer>
				</article>
				<footer><p>Copyright</p></footer>
			</body></html>`,
			want: "Channels in Depth\n5 min read\nChannels synchronise goroutines.\nTagged: go",
		},
		{
			name: "header outside main",
			page: `<html><body><header><h1>Site</h1></header><main><h2>Select</h2><p>Waits on many channels.</p></main></body></html>`,
			want: "Select\nWaits on many channels.",
		},
		{
			name: "body root drops page chrome",
			page: `<html><body><header><h1>Site</h1></header><p>Only text.</p><footer><p>Copyright</p></footer></body></html>`,
			want: "Only text.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := parseHTML([]byte(tt.page))
			require.NoError(t, err)
			assert.Equal(t, tt.want, readableText(doc))
		})
	}
}

func TestArticleExtractorFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{}`)
		case "/empty":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body><script>1</script></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ext := NewArticleExtractor(NewFetcher(FetchConfig{}, srv.Client()), nil)
	ctx := context.Background()

	tests := []struct {
		url    string
		reason string
	}{
		{url: "ftp://example.com/file", reason: "malformed article URL"},
		{url: srv.URL + "/missing", reason: "could not fetch page"},
		{url: srv.URL + "/json", reason: `unsupported content type "application/json"`},
		{url: srv.URL + "/empty", reason: "no readable content found"},
	}
	for _, tt := range tests {
		oc := ext.Extract(ctx, tt.url)
		require.NotNil(t, oc.Failure, tt.url)
		assert.Equal(t, tt.reason, oc.Failure.Reason, tt.url)
	}
}
