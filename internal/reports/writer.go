// Package reports turns a company record into a sales intelligence report
// using the configured LLM. Generation happens in two calls: a raw report is
// written first and then reformatted into Markdown.
package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/prospect-reports/internal/llm"
	"github.com/jonathan/prospect-reports/internal/prompts"
	"github.com/jonathan/prospect-reports/internal/types"
)

// Stage names used in errors and logs.
const (
	StageGenerate = "generate"
	StageFormat   = "format"
	StageInsights = "insights"
)

// SiteReader supplies website text used as extra context for stage 1.
type SiteReader interface {
	Text(ctx context.Context, url string) (string, error)
}

// Options configures a Writer.
type Options struct {
	// Site enables website context when non-nil.
	Site SiteReader
	// StageTimeout bounds each LLM call. Zero means no per-call timeout.
	StageTimeout time.Duration
	GenerateTier llm.ModelTier
	FormatTier   llm.ModelTier
	InsightsTier llm.ModelTier
	Logger       *zap.Logger
}

// Writer produces reports. It is safe for concurrent use as long as the
// underlying llm.Client is.
type Writer struct {
	client       llm.Client
	site         SiteReader
	stageTimeout time.Duration
	generateTier llm.ModelTier
	formatTier   llm.ModelTier
	insightsTier llm.ModelTier
	logger       *zap.Logger
}

// NewWriter creates a Writer backed by client.
func NewWriter(client llm.Client, opts Options) (*Writer, error) {
	if client == nil {
		return nil, fmt.Errorf("reports: LLM client is required")
	}
	w := &Writer{
		client:       client,
		site:         opts.Site,
		stageTimeout: opts.StageTimeout,
		generateTier: opts.GenerateTier,
		formatTier:   opts.FormatTier,
		insightsTier: opts.InsightsTier,
		logger:       opts.Logger,
	}
	if w.generateTier == "" {
		w.generateTier = llm.TierAdvanced
	}
	if w.formatTier == "" {
		w.formatTier = llm.TierStandard
	}
	if w.insightsTier == "" {
		w.insightsTier = llm.TierLite
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w, nil
}

// Generate writes the raw report for rec. An empty string with a nil error
// means the model answered with nothing usable.
func (w *Writer) Generate(ctx context.Context, rec types.InputRecord) (string, error) {
	siteContext := w.siteContext(ctx, rec.WebsiteURL)

	prompt, err := prompts.Render(prompts.ReportsFile, prompts.KeyGenerateReport, map[string]string{
		"CompanyName": rec.CompanyName,
		"WebsiteURL":  rec.WebsiteURL,
		"Offer":       rec.Offer,
		"SiteContext": siteContext,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build report prompt: %w", err)
	}

	text, err := w.call(ctx, StageGenerate, prompt, w.generateTier)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Format restructures a raw report into Markdown.
func (w *Writer) Format(ctx context.Context, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyReport
	}

	prompt, err := prompts.Render(prompts.ReportsFile, prompts.KeyFormatReport, map[string]string{
		"RawReport": raw,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build format prompt: %w", err)
	}

	text, err := w.call(ctx, StageFormat, prompt, w.formatTier)
	if err != nil {
		return "", err
	}
	return llm.CleanMarkdownBlock(text), nil
}

// Insights extracts a short list of actionable insights from a finished report.
func (w *Writer) Insights(ctx context.Context, report string) (string, error) {
	if strings.TrimSpace(report) == "" {
		return "", ErrEmptyReport
	}

	prompt, err := prompts.Render(prompts.ReportsFile, prompts.KeyActionableInsights, map[string]string{
		"Report": report,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build insights prompt: %w", err)
	}

	text, err := w.call(ctx, StageInsights, prompt, w.insightsTier)
	if err != nil {
		return "", err
	}
	text = llm.CleanMarkdownBlock(text)
	if text == "" {
		return "", &APICallError{Stage: StageInsights, Message: "model returned no insights"}
	}
	return text, nil
}

func (w *Writer) call(ctx context.Context, stage, prompt string, tier llm.ModelTier) (string, error) {
	if w.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.stageTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := w.client.GenerateContent(ctx, prompt, tier)
	w.logger.Debug("reports: LLM call finished",
		zap.String("stage", stage),
		zap.String("tier", string(tier)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("ok", err == nil),
	)
	if err != nil {
		return "", &APICallError{Stage: stage, Message: "content generation failed", Cause: err}
	}
	return text, nil
}

// siteContext returns the prompt block describing the company's website, or
// an empty string when fetching is disabled or fails.
func (w *Writer) siteContext(ctx context.Context, url string) string {
	if w.site == nil {
		return ""
	}
	text, err := w.site.Text(ctx, url)
	if err != nil {
		w.logger.Warn("reports: website fetch failed, continuing without it",
			zap.String("url", url), zap.Error(err))
		return ""
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return "\nWebsite content:\n" + text + "\n"
}
