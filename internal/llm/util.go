// Package llm - util.go provides shared utilities for LLM response processing.
package llm

import "strings"

// CleanMarkdownBlock removes a code fence wrapped around a whole response.
// Models sometimes return Markdown inside ```markdown ... ``` even when asked
// for plain Markdown. Fences inside the body are left alone.
func CleanMarkdownBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || len(text) < 6 {
		return text
	}

	body := strings.TrimPrefix(text, "```")
	body = strings.TrimSuffix(body, "```")

	// Skip a language identifier on the opening line
	if idx := strings.Index(body, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(body[:idx])
		if len(firstLine) < 20 && !strings.Contains(firstLine, " ") {
			body = body[idx+1:]
		}
	}

	return strings.TrimSpace(body)
}
