// Package ingestion turns uploaded company lists into validated input records.
package ingestion

import (
	"fmt"
	"os"
	"strings"

	"github.com/jonathan/prospect-reports/internal/types"
)

// ExpectedHeaders are the required leading columns, in order.
var ExpectedHeaders = []string{"Company_Name", "Website_URL", "Offer"}

// Rejection reasons recorded for dropped rows.
const (
	ReasonTooFewColumns = "fewer than three columns"
	ReasonEmptyField    = "empty company, URL or offer"
	ReasonBadScheme     = "URL does not start with http:// or https://"
	ReasonInvalidRecord = "record failed validation"
)

// RejectedRow describes a data row that was dropped.
type RejectedRow struct {
	Line   int    `json:"line"`
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

// ParseResult holds the accepted records and the rows that were dropped.
type ParseResult struct {
	Records  []types.InputRecord `json:"records"`
	Rejected []RejectedRow       `json:"rejected,omitempty"`
}

// ParseFile reads a company list from path and parses it.
func ParseFile(path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FormatError{
			Message: fmt.Sprintf("failed to read %s", path),
			Cause:   err,
		}
	}
	return ParseRecords(string(data))
}

// ParseRecords parses comma-separated company rows preceded by a header row.
//
// This is a tolerant line parser, not a CSV reader: commas inside the offer
// column are kept by re-joining the trailing fragments, and one layer of
// surrounding double quotes is stripped from the offer. Embedded newlines and
// escaped quotes are not supported.
func ParseRecords(text string) (*ParseResult, error) {
	text = normalizeLineEndings(text)
	if strings.TrimSpace(text) == "" {
		return nil, &FormatError{Message: "input is empty"}
	}

	lines := strings.Split(text, "\n")
	if err := checkHeader(lines[0]); err != nil {
		return nil, err
	}

	result := &ParseResult{}
	for i, line := range lines[1:] {
		lineNo := i + 2
		if strings.TrimSpace(line) == "" {
			continue
		}

		rec, reason := parseRow(line)
		if reason != "" {
			result.Rejected = append(result.Rejected, RejectedRow{Line: lineNo, Raw: line, Reason: reason})
			continue
		}
		result.Records = append(result.Records, rec)
	}

	if len(result.Records) == 0 {
		return result, &FormatError{Message: "no valid companies found in the file"}
	}

	return result, nil
}

func checkHeader(line string) error {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < len(ExpectedHeaders) {
		return &FormatError{Message: headerMessage()}
	}
	for i, want := range ExpectedHeaders {
		if strings.TrimSpace(fields[i]) != want {
			return &FormatError{Message: headerMessage()}
		}
	}
	return nil
}

func headerMessage() string {
	return "invalid headers, expected: " + strings.Join(ExpectedHeaders, ",")
}

// parseRow returns the record for line, or a non-empty rejection reason.
func parseRow(line string) (types.InputRecord, string) {
	values := strings.Split(line, ",")
	if len(values) < 3 {
		return types.InputRecord{}, ReasonTooFewColumns
	}

	rec := types.InputRecord{
		CompanyName: strings.TrimSpace(values[0]),
		WebsiteURL:  strings.TrimSpace(values[1]),
		Offer:       unquote(strings.TrimSpace(strings.Join(values[2:], ","))),
	}

	if rec.CompanyName == "" || rec.WebsiteURL == "" || strings.TrimSpace(rec.Offer) == "" {
		return types.InputRecord{}, ReasonEmptyField
	}
	if !hasWebScheme(rec.WebsiteURL) {
		return types.InputRecord{}, ReasonBadScheme
	}
	rec.WebsiteURL = lowerScheme(rec.WebsiteURL)
	if err := rec.Validate(); err != nil {
		return types.InputRecord{}, ReasonInvalidRecord + ": " + err.Error()
	}
	return rec, ""
}

// unquote strips one leading and one trailing double quote, independently.
func unquote(s string) string {
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return s
}

func hasWebScheme(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// lowerScheme rewrites "HTTPS://" and similar to lower case. The rest of the
// URL is left alone.
func lowerScheme(u string) string {
	i := strings.Index(u, "://")
	if i < 0 {
		return u
	}
	return strings.ToLower(u[:i]) + u[i:]
}

func normalizeLineEndings(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}
