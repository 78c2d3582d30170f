package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/use-agent/shopcsv/config"
	"github.com/use-agent/shopcsv/engine"
	"github.com/use-agent/shopcsv/extract"
	"github.com/use-agent/shopcsv/models"
)

// Collector drives the fetch, extract and paginate loop for one run.
// It fetches one page at a time and is not safe for concurrent use.
type Collector struct {
	engine engine.Engine
	ext    *extract.Extractor
	prober Prober
	cfg    config.RunConfig
	log    zerolog.Logger
}

// NewCollector creates a Collector. eng is used as given, so wrap it in an
// engine.Retrier for retries. prober may be nil.
func NewCollector(eng engine.Engine, ext *extract.Extractor, prober Prober, cfg config.RunConfig, log zerolog.Logger) *Collector {
	return &Collector{engine: eng, ext: ext, prober: prober, cfg: cfg, log: log}
}

// Collect walks the listing from cfg.URI and returns at most cfg.Shops
// records in listing order. It stops when the quota is met, a page lists
// no shops, a page has no next control, or the next page was already
// visited. A fetch that still fails after retries ends the run.
func (c *Collector) Collect(ctx context.Context) ([]models.ShopRecord, error) {
	sel := c.ext.Selectors()
	pager := c.ext.Paginator(c.cfg.Shops)
	visited := make(map[string]struct{})

	var records []models.ShopRecord
	pageURL := c.cfg.URI

	for page := 1; ; page++ {
		visited[pageURL] = struct{}{}

		res, err := c.fetch(ctx, pageURL, sel.ListingWait())
		if err != nil {
			return nil, fmt.Errorf("listing page %d: %w", page, err)
		}
		doc, err := extract.Parse(res.HTML)
		if err != nil {
			return nil, fmt.Errorf("listing page %d: %w", page, err)
		}
		base := baseOf(res, pageURL)
		visited[base] = struct{}{}

		found := c.ext.Listing(doc, base)
		c.log.Info().Int("page", page).Str("url", pageURL).Int("entries", len(found)).Msg("listing page extracted")
		if len(found) == 0 {
			break
		}
		if remaining := c.cfg.Shops - len(records); len(found) > remaining {
			found = found[:remaining]
		}

		for _, rec := range found {
			rec, err = c.enrich(ctx, rec)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
			c.log.Debug().
				Str("progress", fmt.Sprintf("%d/%d", len(records), c.cfg.Shops)).
				Str("name", rec.Name).
				Str("url", rec.DetailURL).
				Msg("shop collected")
		}

		next, ok := pager.Next(doc, base, len(records))
		if !ok {
			break
		}
		if _, seen := visited[next]; seen {
			c.log.Warn().Str("url", next).Msg("next page already visited, stopping")
			break
		}
		pageURL = next
	}

	return records, nil
}

// enrich follows the shop's detail page and probes its official URL.
func (c *Collector) enrich(ctx context.Context, rec models.ShopRecord) (models.ShopRecord, error) {
	if c.cfg.Details && rec.DetailURL != "" {
		res, err := c.fetch(ctx, rec.DetailURL, c.ext.Selectors().DetailWait())
		if err != nil {
			return rec, fmt.Errorf("shop page: %w", err)
		}
		doc, err := extract.Parse(res.HTML)
		if err != nil {
			return rec, fmt.Errorf("shop page %s: %w", rec.DetailURL, err)
		}
		rec = rec.Merge(c.ext.Detail(doc, baseOf(res, rec.DetailURL)))
	}

	if c.cfg.CheckSSL && c.prober != nil && strings.HasPrefix(rec.OfficialURL, "https://") {
		rec = rec.WithOfficialURL(c.prober.Check(ctx, rec.OfficialURL))
	}
	return rec, nil
}

func (c *Collector) fetch(ctx context.Context, url, wait string) (*engine.FetchResult, error) {
	return c.engine.Fetch(ctx, &engine.FetchRequest{
		URL:          url,
		Timeout:      c.cfg.Timeout,
		WaitSelector: wait,
	})
}

func baseOf(res *engine.FetchResult, requested string) string {
	if res.FinalURL != "" {
		return res.FinalURL
	}
	return requested
}
