package crawling

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/prospect-reports/internal/fetch"
)

// fakePages serves canned pages and records the order they were read in.
type fakePages struct {
	mu    sync.Mutex
	pages map[string]*fetch.Page
	read  []string
}

func (f *fakePages) Page(_ context.Context, url string) (*fetch.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read = append(f.read, url)
	page, ok := f.pages[url]
	if !ok {
		return nil, errors.New("404")
	}
	return page, nil
}

func page(url, html, text string) *fetch.Page {
	return &fetch.Page{URL: url, HTML: html, Text: text}
}

const homeHTML = `<nav>
	<a href="/about">About</a>
	<a href="/login">Login</a>
	<a href="/blog">Blog</a>
	<a href="/missing">Missing</a>
	<a href="/mirror">Mirror</a>
</nav>`

func newFakeSite() *fakePages {
	return &fakePages{pages: map[string]*fetch.Page{
		"https://acme.test":        page("https://acme.test", homeHTML, "Acme makes anvils."),
		"https://acme.test/about":  page("https://acme.test/about", "", "Founded in 1949."),
		"https://acme.test/blog":   page("https://acme.test/blog", "", "New anvil line."),
		"https://acme.test/mirror": page("https://acme.test/mirror", "", "Acme makes anvils."),
	}}
}

func TestCrawler_Corpus(t *testing.T) {
	site := newFakeSite()
	crawler := NewCrawler(site, Options{MaxPages: 10, Delay: time.Millisecond})

	corpus, err := crawler.Corpus(context.Background(), "https://acme.test")
	require.NoError(t, err)

	assert.Equal(t, "Acme makes anvils.\n\n---\n\nFounded in 1949.\n\n---\n\nNew anvil line.", corpus.Text)
	require.Len(t, corpus.Sources, 3)
	assert.Equal(t, "https://acme.test/about", corpus.Sources[1].URL)
	assert.Equal(t, CategoryAbout, corpus.Sources[1].Category)
	assert.Equal(t, CategoryNews, corpus.Sources[2].Category)
	assert.Len(t, corpus.Sources[0].Hash, 64)

	assert.NotContains(t, site.read, "https://acme.test/login")
}

func TestCrawler_RespectsMaxPages(t *testing.T) {
	site := newFakeSite()
	crawler := NewCrawler(site, Options{MaxPages: 2, Delay: time.Millisecond})

	corpus, err := crawler.Corpus(context.Background(), "https://acme.test")
	require.NoError(t, err)
	assert.Len(t, corpus.Sources, 2)
	assert.Equal(t, []string{"https://acme.test", "https://acme.test/about"}, site.read)
}

func TestCrawler_TextTruncates(t *testing.T) {
	crawler := NewCrawler(newFakeSite(), Options{MaxPages: 1, MaxChars: 4, Delay: time.Millisecond})

	text, err := crawler.Text(context.Background(), "https://acme.test")
	require.NoError(t, err)
	assert.Equal(t, "Acme", text)
}

func TestCrawler_Errors(t *testing.T) {
	crawler := NewCrawler(newFakeSite(), Options{Delay: time.Millisecond})

	_, err := crawler.Corpus(context.Background(), "acme.test")
	var crawlErr *CrawlError
	require.ErrorAs(t, err, &crawlErr)
	assert.Contains(t, err.Error(), "invalid seed URL")

	_, err = crawler.Corpus(context.Background(), "https://unknown.test")
	require.ErrorAs(t, err, &crawlErr)
	assert.Contains(t, err.Error(), "failed to read homepage")

	empty := &fakePages{pages: map[string]*fetch.Page{"https://blank.test": page("https://blank.test", "", "  ")}}
	_, err = NewCrawler(empty, Options{Delay: time.Millisecond}).Corpus(context.Background(), "https://blank.test")
	require.ErrorAs(t, err, &crawlErr)
	assert.Contains(t, err.Error(), "no text found")
}

func TestCrawler_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCrawler(newFakeSite(), Options{Delay: time.Millisecond}).Corpus(ctx, "https://acme.test")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrawler_WithSiteReader(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><body><main><p>Home page</p><a href="/about">About</a></main></body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><main><p>About page</p></main></body></html>`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	crawler := NewCrawler(fetch.NewSiteReader(fetch.SiteOptions{}), Options{Delay: time.Millisecond})
	text, err := crawler.Text(context.Background(), server.URL)
	require.NoError(t, err)

	parts := strings.Split(text, pageSeparator)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0], "Home page")
	assert.Equal(t, "About page", parts[1])
}
