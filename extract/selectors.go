package extract

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/shopcsv/models"
)

// Selectors holds the CSS selectors for listing and detail pages.
// Link and Category are matched inside each Item.
type Selectors struct {
	Item     string
	Link     string
	Category string
	NextPage string

	Name         string
	Tel          string
	Email        string
	Address      string
	Building     string
	HomepageLink string
	OfficialIcon string
}

// DefaultSelectors returns the selectors for gnavi listing and shop pages.
func DefaultSelectors() Selectors {
	return Selectors{
		Item:     "article",
		Link:     "div.style_title___HrjW > a.style_titleLink__oiHVJ",
		Category: `[class*="style_subTitle"]`,
		NextPage: "div.style_pageNation__AZy1A > nav > ul > li:nth-last-child(2) > a",

		Name:         "#info-name",
		Tel:          "#info-phone span.number",
		Email:        "#info-table > table > tbody a[href^=mailto]",
		Address:      "#info-table > table > tbody p.adr > span.region",
		Building:     "#info-table > table > tbody p.adr > span.locality",
		HomepageLink: "#info-table > table > tbody a.url",
		OfficialIcon: "#sv-site > li > a",
	}
}

// ListingWait is the element a browser waits for on a listing page.
func (s Selectors) ListingWait() string { return s.Item }

// DetailWait is the element a browser waits for on a shop page.
func (s Selectors) DetailWait() string { return s.Name }

type matchers struct {
	item, link, category, next          goquery.Matcher
	name, tel, email, address, building goquery.Matcher
	homepage, icon                      goquery.Matcher
}

func compileSelectors(s Selectors) (*matchers, error) {
	var (
		m   matchers
		err error
	)
	fields := []struct {
		name string
		src  string
		dst  *goquery.Matcher
	}{
		{"item", s.Item, &m.item},
		{"link", s.Link, &m.link},
		{"category", s.Category, &m.category},
		{"next page", s.NextPage, &m.next},
		{"name", s.Name, &m.name},
		{"tel", s.Tel, &m.tel},
		{"email", s.Email, &m.email},
		{"address", s.Address, &m.address},
		{"building", s.Building, &m.building},
		{"homepage link", s.HomepageLink, &m.homepage},
		{"official icon", s.OfficialIcon, &m.icon},
	}
	for _, f := range fields {
		*f.dst, err = compileOne(f.name, f.src)
		if err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func compileOne(name, src string) (goquery.Matcher, error) {
	if src == "" {
		return nil, models.NewConfigError("selector", "%s selector is empty", name)
	}
	sel, err := cascadia.Compile(src)
	if err != nil {
		return nil, models.NewConfigError("selector", "%s selector %q: %v", name, src, err)
	}
	return sel, nil
}
