package fetch

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxChars bounds how much site text is passed on to a prompt.
const DefaultMaxChars = 12000

// SiteOptions configures a SiteReader.
type SiteOptions struct {
	UseBrowser     bool
	MaxChars       int
	BrowserTimeout time.Duration
	Fetch          *Options
	Logger         *zap.Logger
}

// SiteReader turns a company's website into plain text.
type SiteReader struct {
	fetchOpts      *Options
	useBrowser     bool
	maxChars       int
	browserTimeout time.Duration
	render         renderer
	logger         *zap.Logger
}

// NewSiteReader creates a SiteReader.
func NewSiteReader(opts SiteOptions) *SiteReader {
	r := &SiteReader{
		fetchOpts:      opts.Fetch,
		useBrowser:     opts.UseBrowser,
		maxChars:       opts.MaxChars,
		browserTimeout: opts.BrowserTimeout,
		render:         WithBrowser,
		logger:         opts.Logger,
	}
	if r.fetchOpts == nil {
		r.fetchOpts = DefaultOptions()
	}
	if r.maxChars <= 0 {
		r.maxChars = DefaultMaxChars
	}
	if r.browserTimeout <= 0 {
		r.browserTimeout = DefaultTimeout
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Page is a fetched page reduced to its main text. HTML is the markup the
// text came from, which is the rendered DOM when the browser was used.
type Page struct {
	URL  string
	HTML string
	Text string
}

// Text fetches url and returns its main text, truncated to the configured
// number of characters. When browser rendering is enabled it is used for
// pages whose plain HTTP response yields too little text.
func (r *SiteReader) Text(ctx context.Context, url string) (string, error) {
	page, err := r.Page(ctx, url)
	if err != nil {
		return "", err
	}
	return truncateRunes(page.Text, r.maxChars), nil
}

// Page fetches url and extracts its main text without truncation.
func (r *SiteReader) Page(ctx context.Context, url string) (*Page, error) {
	page := &Page{URL: url}
	res, fetchErr := URL(ctx, url, r.fetchOpts)
	if fetchErr == nil {
		page.HTML = res.HTML
		extracted, err := ExtractMainText(res.HTML, CompanyPageSelectors())
		if err != nil {
			fetchErr = &Error{URL: url, Message: "failed to extract text", Cause: err}
		} else {
			page.Text = extracted
		}
	}

	if r.useBrowser && (fetchErr != nil || ShouldUseBrowser(page.Text)) {
		html, err := r.render(ctx, url, r.browserTimeout, r.logger)
		if err != nil {
			r.logger.Debug("fetch: browser fallback failed", zap.String("url", url), zap.Error(err))
		} else if rendered, err := ExtractMainText(html, CompanyPageSelectors()); err == nil && len(rendered) > len(page.Text) {
			page.HTML = html
			page.Text = rendered
			fetchErr = nil
		}
	}

	if fetchErr != nil && page.Text == "" {
		return nil, fetchErr
	}
	return page, nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
