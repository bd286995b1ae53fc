package crawling

import (
	"net/url"
	"strings"
)

// Link categories, in the order pages are preferred when a site has more
// links than the crawl budget allows.
const (
	CategoryHome      = "home"
	CategoryAbout     = "about"
	CategoryProducts  = "products"
	CategoryServices  = "services"
	CategoryCustomers = "customers"
	CategoryPricing   = "pricing"
	CategoryNews      = "news"
	CategoryOther     = "other"
	CategorySkip      = "skip"
)

var categoryPriority = []string{
	CategoryAbout,
	CategoryProducts,
	CategoryServices,
	CategoryCustomers,
	CategoryPricing,
	CategoryNews,
	CategoryOther,
}

// categoryKeywords maps path keywords to a category. Checked in order, so
// skip rules win over content rules.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{CategorySkip, []string{"login", "signin", "sign-in", "signup", "sign-up", "register", "cart", "checkout", "privacy", "terms", "cookie", "legal", "account", "careers", "jobs"}},
	{CategoryAbout, []string{"about", "company", "who-we-are", "team", "mission", "story", "leadership"}},
	{CategoryProducts, []string{"product", "platform", "features", "solutions", "technology"}},
	{CategoryServices, []string{"service", "what-we-do", "offerings", "capabilities", "industries"}},
	{CategoryCustomers, []string{"customer", "case-stud", "clients", "partners", "success"}},
	{CategoryPricing, []string{"pricing", "plans"}},
	{CategoryNews, []string{"news", "press", "blog", "insights", "media"}},
}

// ClassifiedLink represents a link with its classification category
type ClassifiedLink struct {
	URL      string `json:"url"`
	Category string `json:"category"`
}

// ClassifyLink assigns a category from the words in the link's path.
func ClassifyLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return CategorySkip
	}
	p := strings.ToLower(u.Path)
	for _, rule := range categoryKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(p, kw) {
				return rule.category
			}
		}
	}
	return CategoryOther
}

// ClassifyLinks classifies every link, dropping those in the skip category.
func ClassifyLinks(links []string) []ClassifiedLink {
	classified := make([]ClassifiedLink, 0, len(links))
	for _, link := range links {
		category := ClassifyLink(link)
		if category == CategorySkip {
			continue
		}
		classified = append(classified, ClassifiedLink{URL: link, Category: category})
	}
	return classified
}

// selectPages picks up to n links, taking one from each category in priority
// order before filling the remaining slots.
func selectPages(classified []ClassifiedLink, n int) []string {
	if n <= 0 {
		return nil
	}

	byCategory := make(map[string][]string)
	for _, cl := range classified {
		byCategory[cl.Category] = append(byCategory[cl.Category], cl.URL)
	}

	selected := make([]string, 0, n)
	taken := make(map[string]bool)
	take := func(u string) {
		if !taken[u] && len(selected) < n {
			taken[u] = true
			selected = append(selected, u)
		}
	}

	for _, category := range categoryPriority {
		if urls := byCategory[category]; len(urls) > 0 {
			take(urls[0])
		}
	}
	for _, category := range categoryPriority {
		for _, u := range byCategory[category] {
			take(u)
		}
	}
	return selected
}
