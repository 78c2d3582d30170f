package extract

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/use-agent/shopcsv/models"
)

// Extractor reads shop records out of listing and detail pages.
// It is safe for concurrent use once built.
type Extractor struct {
	sel Selectors
	m   *matchers
}

// New compiles the selectors. An invalid selector is a *models.ConfigError.
func New(s Selectors) (*Extractor, error) {
	m, err := compileSelectors(s)
	if err != nil {
		return nil, err
	}
	return &Extractor{sel: s, m: m}, nil
}

// Selectors returns the selectors the extractor was built with.
func (e *Extractor) Selectors() Selectors { return e.sel }

// Parse builds a document from page HTML.
func Parse(page string) (*goquery.Document, error) {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// Listing returns one record per listing entry, in document order. Entries
// without a title link are not shops and are skipped; any other missing
// field is left empty.
func (e *Extractor) Listing(doc *goquery.Document, baseURL string) []models.ShopRecord {
	var records []models.ShopRecord
	doc.FindMatcher(e.m.item).Each(func(_ int, item *goquery.Selection) {
		link := item.FindMatcher(e.m.link).First()
		if link.Length() == 0 {
			return
		}
		href, _ := link.Attr("href")
		records = append(records, models.ShopRecord{
			Name:      cleanText(link.Text()),
			Category:  cleanText(item.FindMatcher(e.m.category).First().Text()),
			DetailURL: resolve(baseURL, href),
		})
	})
	return records
}

// Detail reads a shop's own page. Every field tolerates absence.
func (e *Extractor) Detail(doc *goquery.Document, baseURL string) models.ShopRecord {
	rec := models.ShopRecord{
		Name:     cleanText(doc.FindMatcher(e.m.name).First().Text()),
		Tel:      cleanText(doc.FindMatcher(e.m.tel).First().Text()),
		Building: cleanText(doc.FindMatcher(e.m.building).First().Text()),
	}

	if href, ok := doc.FindMatcher(e.m.email).First().Attr("href"); ok {
		rec.Email = strings.TrimSpace(strings.TrimPrefix(href, "mailto:"))
	}

	address := cleanText(doc.FindMatcher(e.m.address).First().Text())
	rec.Prefecture, rec.City, rec.Street = SplitAddress(address)

	return rec.WithOfficialURL(e.officialURL(doc, baseURL))
}

// homepageTarget is the JSON held in the data-o attribute of the
// homepage link: a is the host and path, b the scheme.
type homepageTarget struct {
	A string `json:"a"`
	B string `json:"b"`
}

// officialURL prefers the homepage link and falls back to the official
// page icon. The homepage link is always reported as https so that the
// TLS probe can decide whether to downgrade it.
func (e *Extractor) officialURL(doc *goquery.Document, baseURL string) string {
	if raw, ok := doc.FindMatcher(e.m.homepage).First().Attr("data-o"); ok && raw != "" {
		var target homepageTarget
		if err := json.Unmarshal([]byte(raw), &target); err == nil && target.A != "" {
			host := strings.TrimSpace(target.A)
			if i := strings.Index(host, "://"); i >= 0 {
				host = host[i+3:]
			}
			return "https://" + host
		}
	}
	if href, ok := doc.FindMatcher(e.m.icon).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		return resolve(baseURL, href)
	}
	return ""
}

// cleanText collapses runs of whitespace, NBSP included, to one space.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// resolve turns href into an absolute URL. If either side does not parse
// the trimmed href is returned as is.
func resolve(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
