package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/shopcsv/config"
	"github.com/use-agent/shopcsv/engine"
	"github.com/use-agent/shopcsv/extract"
	"github.com/use-agent/shopcsv/models"
)

// siteEngine serves pages from a map and records every requested URL.
type siteEngine struct {
	pages    map[string]string
	requests []string
}

func (s *siteEngine) Name() string { return "site" }

func (s *siteEngine) Fetch(_ context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	s.requests = append(s.requests, req.URL)
	page, ok := s.pages[req.URL]
	if !ok {
		return nil, models.NewStatusError(req.URL, 404)
	}
	return &engine.FetchResult{HTML: page, StatusCode: 200, FinalURL: req.URL, EngineName: s.Name()}, nil
}

func (s *siteEngine) count(prefix string) int {
	n := 0
	for _, u := range s.requests {
		if strings.HasPrefix(u, prefix) {
			n++
		}
	}
	return n
}

// downgradeAll reports every URL as http and counts calls.
type downgradeAll struct{ calls int }

func (d *downgradeAll) Check(_ context.Context, rawURL string) string {
	d.calls++
	return "http://" + strings.TrimPrefix(rawURL, "https://")
}

const siteURL = "https://r.example.jp"

func listingPage(next string, ids ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<article><div class="style_title___HrjW"><a class="style_titleLink__oiHVJ" href="/%s/">listing %s</a></div></article>`, id, id)
	}
	if next != "" {
		fmt.Fprintf(&b, `<div class="style_pageNation__AZy1A"><nav><ul><li><a href="%s">次へ</a></li><li><a href="?p=99">最後</a></li></ul></nav></div>`, next)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func detailPage(id, official string) string {
	return fmt.Sprintf(`<html><body><h1 id="info-name">shop %s</h1>
<table id="info-phone"><tr><td><span class="number">03-0000-%s</span></td></tr></table>
<div id="info-table"><table><tr><td><p class="adr"><span class="region">東京都港区六本木%s</span></p></td></tr></table></div>
<ul id="sv-site"><li><a href="%s">site</a></li></ul></body></html>`, id, id, id, official)
}

// newSite builds two listing pages that link to each other: page 1 lists
// shops 1-3, page 2 lists shops 4-5.
func newSite() *siteEngine {
	pages := map[string]string{
		siteURL + "/list?p=1": listingPage("/list?p=2", "1", "2", "3"),
		siteURL + "/list?p=2": listingPage("/list?p=1", "4", "5"),
	}
	for i := 1; i <= 5; i++ {
		id := fmt.Sprint(i)
		pages[siteURL+"/"+id+"/"] = detailPage(id, "https://shop"+id+".example.jp/")
	}
	return &siteEngine{pages: pages}
}

func runConfig(shops int) config.RunConfig {
	cfg := config.Default()
	cfg.URI = siteURL + "/list?p=1"
	cfg.Shops = shops
	cfg.Timeout = time.Second
	return cfg
}

func newCollector(t *testing.T, eng engine.Engine, prober Prober, cfg config.RunConfig) *Collector {
	t.Helper()
	ext, err := extract.New(extract.DefaultSelectors())
	require.NoError(t, err)
	return NewCollector(eng, ext, prober, cfg, zerolog.Nop())
}

func TestCollect_StopsOnVisitedPage(t *testing.T) {
	site := newSite()
	recs, err := newCollector(t, site, nil, runConfig(50)).Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, recs, 5)
	for i, rec := range recs {
		id := fmt.Sprint(i + 1)
		assert.Equal(t, "shop "+id, rec.Name)
		assert.Equal(t, "03-0000-"+id, rec.Tel)
		assert.Equal(t, "東京都", rec.Prefecture)
		assert.Equal(t, "港区六本木", rec.City)
		assert.Equal(t, id, rec.Street)
		assert.Equal(t, "https://shop"+id+".example.jp/", rec.OfficialURL)
		assert.True(t, rec.SSL)
	}
	assert.Equal(t, 2, site.count(siteURL+"/list"))
}

func TestCollect_QuotaTruncatesPage(t *testing.T) {
	site := newSite()
	recs, err := newCollector(t, site, nil, runConfig(4)).Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, recs, 4)
	assert.Equal(t, "shop 4", recs[3].Name)
	assert.Equal(t, 0, site.count(siteURL+"/5/"), "shops past the quota are never fetched")
}

func TestCollect_QuotaMetOnFirstPage(t *testing.T) {
	site := newSite()
	recs, err := newCollector(t, site, nil, runConfig(2)).Collect(context.Background())
	require.NoError(t, err)

	assert.Len(t, recs, 2)
	assert.Equal(t, 1, site.count(siteURL+"/list"))
}

func TestCollect_NoNextControl(t *testing.T) {
	site := &siteEngine{pages: map[string]string{
		siteURL + "/list?p=1": listingPage("", "1", "2"),
		siteURL + "/1/":       detailPage("1", ""),
		siteURL + "/2/":       detailPage("2", ""),
	}}
	recs, err := newCollector(t, site, nil, runConfig(50)).Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, 1, site.count(siteURL+"/list"))
}

func TestCollect_EmptyListing(t *testing.T) {
	site := &siteEngine{pages: map[string]string{
		siteURL + "/list?p=1": listingPage("/list?p=2"),
	}}
	recs, err := newCollector(t, site, nil, runConfig(50)).Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, []string{siteURL + "/list?p=1"}, site.requests)
}

func TestCollect_WithoutDetails(t *testing.T) {
	site := newSite()
	cfg := runConfig(3)
	cfg.Details = false

	recs, err := newCollector(t, site, nil, cfg).Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, recs, 3)
	assert.Equal(t, "listing 1", recs[0].Name)
	assert.Equal(t, siteURL+"/1/", recs[0].DetailURL)
	assert.Empty(t, recs[0].Tel)
	assert.Equal(t, 1, len(site.requests))
}

func TestCollect_DetailFailureEndsRun(t *testing.T) {
	site := newSite()
	delete(site.pages, siteURL+"/2/")

	_, err := newCollector(t, site, nil, runConfig(50)).Collect(context.Background())
	require.Error(t, err)

	var fe *models.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, models.FetchHTTPStatus, fe.Kind)
	assert.Equal(t, siteURL+"/2/", fe.URL)
}

func TestCollect_ListingFailureEndsRun(t *testing.T) {
	site := &siteEngine{pages: map[string]string{}}

	_, err := newCollector(t, site, nil, runConfig(50)).Collect(context.Background())
	var fe *models.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, err.Error(), "listing page 1")
}

func TestCollect_ProbesHTTPSOnly(t *testing.T) {
	site := newSite()
	site.pages[siteURL+"/3/"] = detailPage("3", "http://plain.example.jp/")
	prober := &downgradeAll{}

	recs, err := newCollector(t, site, prober, runConfig(3)).Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, recs, 3)
	assert.Equal(t, 2, prober.calls)
	assert.Equal(t, "http://shop1.example.jp/", recs[0].OfficialURL)
	assert.False(t, recs[0].SSL)
	assert.Equal(t, "http://plain.example.jp/", recs[2].OfficialURL)
}

func TestCollect_ProbeDisabled(t *testing.T) {
	site := newSite()
	prober := &downgradeAll{}
	cfg := runConfig(3)
	cfg.CheckSSL = false

	recs, err := newCollector(t, site, prober, cfg).Collect(context.Background())
	require.NoError(t, err)
	assert.Zero(t, prober.calls)
	assert.True(t, recs[0].SSL)
}

func TestCollect_RetriesThroughRetrier(t *testing.T) {
	flaky := &flakyEngine{inner: newSite(), failures: map[string]int{siteURL + "/1/": 2}}
	eng := engine.NewRetrier(flaky, 3, zerolog.Nop())

	recs, err := newCollector(t, eng, nil, runConfig(1)).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "shop 1", recs[0].Name)
}

// flakyEngine fails the first n fetches of selected URLs with a timeout.
type flakyEngine struct {
	inner    engine.Engine
	failures map[string]int
}

func (f *flakyEngine) Name() string { return "flaky" }

func (f *flakyEngine) Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	if f.failures[req.URL] > 0 {
		f.failures[req.URL]--
		return nil, models.NewFetchError(models.FetchTimeout, req.URL, "no response within timeout", nil)
	}
	return f.inner.Fetch(ctx, req)
}
