package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Paginator finds the next listing page while the quota is not yet met.
type Paginator struct {
	next  goquery.Matcher
	quota int
}

// Paginator returns a Paginator for quota shops.
func (e *Extractor) Paginator(quota int) *Paginator {
	return &Paginator{next: e.m.next, quota: quota}
}

// Next returns the resolved target of the page's next-page control. ok is
// false once collected reaches the quota or when the page has no usable
// next control.
func (p *Paginator) Next(doc *goquery.Document, baseURL string, collected int) (string, bool) {
	if collected >= p.quota {
		return "", false
	}
	href, ok := doc.FindMatcher(p.next).First().Attr("href")
	if !ok {
		return "", false
	}
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", false
	}
	return resolve(baseURL, href), true
}
