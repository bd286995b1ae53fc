// Package observability provides logging setup and formatted output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/prospect-reports/internal/ingestion"
	"github.com/jonathan/prospect-reports/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title, boxWidth-4))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", pad(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRecords lists accepted input records.
func (p *Printer) PrintRecords(records []types.InputRecord) {
	if len(records) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Accepted %d companies:\n\n", len(records)))
	count := min(len(records), maxItemsToShow)
	for i := 0; i < count; i++ {
		rec := records[i]
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, rec.CompanyName))
		sb.WriteString(fmt.Sprintf("   %s\n", rec.WebsiteURL))
		sb.WriteString(fmt.Sprintf("   Offer: %s\n", rec.Offer))
	}
	if len(records) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(records)-maxItemsToShow))
	}

	p.printBox("INPUT RECORDS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRejected lists rows the parser skipped and why.
func (p *Printer) PrintRejected(rows []ingestion.RejectedRow) {
	if len(rows) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Skipped %d rows:\n\n", len(rows)))
	count := min(len(rows), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("line %d: %s\n", rows[i].Line, rows[i].Reason))
	}
	if len(rows) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(rows)-maxItemsToShow))
	}

	p.printBox("SKIPPED ROWS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintJobs shows the status of each job in a batch.
func (p *Printer) PrintJobs(jobs []types.Job) {
	if len(jobs) == 0 {
		return
	}

	var sb strings.Builder
	for i, j := range jobs {
		sb.WriteString(fmt.Sprintf("%s %s\n", statusIcon(j.Status), j.Record.CompanyName))
		switch {
		case j.Status == types.JobFailed:
			sb.WriteString(fmt.Sprintf("  reason: %s\n", j.FailureReason))
		case j.ID != j.LocalID:
			sb.WriteString(fmt.Sprintf("  report: %s\n", j.ID))
		}
		if i == maxItemsToShow-1 && len(jobs) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("... and %d more\n", len(jobs)-maxItemsToShow))
			break
		}
	}

	p.printBox("JOBS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSummary prints the aggregate outcome of a batch.
func (p *Printer) PrintSummary(batchID string, s types.Summary) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Batch:      %s\n", batchID))
	sb.WriteString(fmt.Sprintf("Total:      %d\n", s.Total))
	sb.WriteString(fmt.Sprintf("Completed:  %d\n", s.Completed))
	sb.WriteString(fmt.Sprintf("Failed:     %d", s.Failed))
	if s.PersistFailures > 0 {
		sb.WriteString(fmt.Sprintf("\nNot saved:  %d", s.PersistFailures))
	}
	if !s.Done {
		sb.WriteString(fmt.Sprintf("\nPending:    %d", s.Queued+s.Processing))
	}

	p.printBox("BATCH SUMMARY", sb.String())
}

// PrintReport prints a Markdown report or insight text under a title.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintReport(title, body string) {
	border := strings.Repeat("═", boxWidth)
	fmt.Fprintf(p.out, "%s\n%s\n%s\n\n%s\n", border, title, border, strings.TrimSpace(body))
}

func statusIcon(s types.JobStatus) string {
	switch s {
	case types.JobCompleted:
		return "✓"
	case types.JobFailed:
		return "✗"
	case types.JobProcessing:
		return "…"
	default:
		return "·"
	}
}

// pad truncates or right-pads s to exactly width runes.
func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n > width {
		runes := []rune(s)
		return string(runes[:width-3]) + "..."
	}
	return s + strings.Repeat(" ", width-n)
}
