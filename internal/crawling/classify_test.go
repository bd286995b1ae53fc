package crawling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyLink(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/about-us", CategoryAbout},
		{"https://example.com/company/leadership", CategoryAbout},
		{"https://example.com/platform", CategoryProducts},
		{"https://example.com/what-we-do", CategoryServices},
		{"https://example.com/case-studies/acme", CategoryCustomers},
		{"https://example.com/Pricing", CategoryPricing},
		{"https://example.com/blog/launch", CategoryNews},
		{"https://example.com/contact", CategoryOther},
		{"https://example.com/login", CategorySkip},
		{"https://example.com/about/careers", CategorySkip},
		{"https://example.com/privacy-policy", CategorySkip},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyLink(tt.url))
		})
	}
}

func TestClassifyLinks_DropsSkipped(t *testing.T) {
	got := ClassifyLinks([]string{
		"https://example.com/about",
		"https://example.com/signup",
		"https://example.com/contact",
	})

	assert.Equal(t, []ClassifiedLink{
		{URL: "https://example.com/about", Category: CategoryAbout},
		{URL: "https://example.com/contact", Category: CategoryOther},
	}, got)
}

func TestSelectPages_OnePerCategoryFirst(t *testing.T) {
	classified := []ClassifiedLink{
		{URL: "https://example.com/blog/1", Category: CategoryNews},
		{URL: "https://example.com/blog/2", Category: CategoryNews},
		{URL: "https://example.com/team", Category: CategoryAbout},
		{URL: "https://example.com/about", Category: CategoryAbout},
		{URL: "https://example.com/product", Category: CategoryProducts},
	}

	assert.Equal(t, []string{
		"https://example.com/team",
		"https://example.com/product",
		"https://example.com/blog/1",
	}, selectPages(classified, 3))

	assert.Equal(t, []string{
		"https://example.com/team",
		"https://example.com/product",
		"https://example.com/blog/1",
		"https://example.com/about",
		"https://example.com/blog/2",
	}, selectPages(classified, 10))
}

func TestSelectPages_NoBudget(t *testing.T) {
	classified := []ClassifiedLink{{URL: "https://example.com/about", Category: CategoryAbout}}
	assert.Empty(t, selectPages(classified, 0))
	assert.Empty(t, selectPages(nil, 5))
}
