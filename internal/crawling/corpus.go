package crawling

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jonathan/prospect-reports/internal/fetch"
)

const (
	// MaxPagesLimit is the hard maximum number of pages to crawl
	MaxPagesLimit = 15
	// DefaultMaxPages is used when Options.MaxPages is unset.
	DefaultMaxPages = 3
	// DefaultRateLimitDelay is the delay between HTTP requests
	DefaultRateLimitDelay = 1 * time.Second

	maxCandidates = 30
	pageSeparator = "\n\n---\n\n"
)

// PageReader fetches one page. fetch.SiteReader satisfies it.
type PageReader interface {
	Page(ctx context.Context, url string) (*fetch.Page, error)
}

// Options configures a Crawler.
type Options struct {
	MaxPages int
	MaxChars int
	Delay    time.Duration
	Logger   *zap.Logger
}

// Source records one page that contributed to a corpus.
type Source struct {
	URL      string `json:"url"`
	Category string `json:"category"`
	Hash     string `json:"hash"`
}

// Corpus is the joined text of the crawled pages.
type Corpus struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Crawler reads a homepage plus the most useful linked pages of the same
// site.
type Crawler struct {
	pages    PageReader
	maxPages int
	maxChars int
	delay    time.Duration
	logger   *zap.Logger
}

// NewCrawler creates a Crawler. Requests to the same site are spaced by
// opts.Delay; concurrent crawls of different sites are not paced together.
func NewCrawler(pages PageReader, opts Options) *Crawler {
	c := &Crawler{
		pages:    pages,
		maxPages: opts.MaxPages,
		maxChars: opts.MaxChars,
		logger:   opts.Logger,
	}
	if c.maxPages <= 0 {
		c.maxPages = DefaultMaxPages
	}
	if c.maxPages > MaxPagesLimit {
		c.maxPages = MaxPagesLimit
	}
	if c.maxChars <= 0 {
		c.maxChars = fetch.DefaultMaxChars
	}
	c.delay = opts.Delay
	if c.delay <= 0 {
		c.delay = DefaultRateLimitDelay
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Text crawls the site at seed and returns its corpus text truncated to the
// configured number of characters.
func (c *Crawler) Text(ctx context.Context, seed string) (string, error) {
	corpus, err := c.Corpus(ctx, seed)
	if err != nil {
		return "", err
	}
	return truncateRunes(corpus.Text, c.maxChars), nil
}

// Corpus crawls the site at seed. The seed page must be readable; linked
// pages that fail are skipped.
func (c *Crawler) Corpus(ctx context.Context, seed string) (*Corpus, error) {
	parsed, err := url.Parse(seed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &CrawlError{Message: "invalid seed URL: " + seed, Cause: err}
	}

	builder := &corpusBuilder{seen: make(map[string]bool)}
	limiter := rate.NewLimiter(rate.Every(c.delay), 1)

	if err := limiter.Wait(ctx); err != nil {
		return nil, &CrawlError{Message: "crawl cancelled", Cause: err}
	}
	home, err := c.pages.Page(ctx, seed)
	if err != nil {
		return nil, &CrawlError{Message: "failed to read homepage", Cause: err}
	}
	builder.add(seed, CategoryHome, home.Text)

	links, err := ExtractLinks(home.HTML, seed)
	if err != nil {
		c.logger.Debug("crawl: no links extracted", zap.String("url", seed), zap.Error(err))
	}
	if len(links) > maxCandidates {
		links = links[:maxCandidates]
	}

	for _, link := range selectPages(ClassifyLinks(links), c.maxPages-1) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, &CrawlError{Message: "crawl cancelled", Cause: err}
		}
		page, err := c.pages.Page(ctx, link)
		if err != nil {
			c.logger.Debug("crawl: skipping page", zap.String("url", link), zap.Error(err))
			continue
		}
		builder.add(link, ClassifyLink(link), page.Text)
	}

	if len(builder.parts) == 0 {
		return nil, &CrawlError{Message: "no text found on " + seed}
	}

	c.logger.Debug("crawl: corpus built",
		zap.String("url", seed),
		zap.Int("pages", len(builder.sources)),
	)
	return &Corpus{
		Text:    strings.Join(builder.parts, pageSeparator),
		Sources: builder.sources,
	}, nil
}

// corpusBuilder collects page text, dropping empty and repeated pages.
type corpusBuilder struct {
	parts   []string
	sources []Source
	seen    map[string]bool
}

func (b *corpusBuilder) add(pageURL, category, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	hash := computeHash(text)
	if b.seen[hash] {
		return
	}
	b.seen[hash] = true
	b.parts = append(b.parts, text)
	b.sources = append(b.sources, Source{URL: pageURL, Category: category, Hash: hash})
}

// computeHash computes SHA256 hash of content and returns hex string
func computeHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
