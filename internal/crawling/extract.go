package crawling

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// skippedExtensions are linked files that never carry page text.
var skippedExtensions = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".svg": true, ".webp": true, ".zip": true, ".mp4": true, ".css": true,
	".js": true, ".xml": true, ".ico": true,
}

// ExtractLinks returns the same-host page links found in htmlContent, in
// document order and without duplicates.
func ExtractLinks(htmlContent string, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, &LinkExtractionError{
			Message: "failed to parse base URL",
			Cause:   err,
		}
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, &LinkExtractionError{
			Message: fmt.Sprintf("invalid base URL: %s (must have scheme and host)", baseURL),
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, &LinkExtractionError{
			Message: "failed to parse HTML",
			Cause:   err,
		}
	}

	seen := map[string]bool{normalizeURL(base): true}
	links := make([]string, 0)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		linkURL, err := url.Parse(href)
		if err != nil {
			return
		}
		absoluteURL := base.ResolveReference(linkURL)
		if absoluteURL.Scheme != "http" && absoluteURL.Scheme != "https" {
			return
		}
		if absoluteURL.Host != base.Host {
			return
		}
		if skippedExtensions[strings.ToLower(path.Ext(absoluteURL.Path))] {
			return
		}

		normalized := normalizeURL(absoluteURL)
		if !seen[normalized] {
			seen[normalized] = true
			links = append(links, normalized)
		}
	})

	return links, nil
}

// normalizeURL drops the fragment and a trailing slash so that equivalent
// links compare equal.
func normalizeURL(u *url.URL) string {
	clean := *u
	clean.Fragment = ""
	return strings.TrimSuffix(clean.String(), "/")
}
