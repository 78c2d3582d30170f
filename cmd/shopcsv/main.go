package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/use-agent/shopcsv/config"
	"github.com/use-agent/shopcsv/engine"
	"github.com/use-agent/shopcsv/extract"
	"github.com/use-agent/shopcsv/logger"
	"github.com/use-agent/shopcsv/models"
	"github.com/use-agent/shopcsv/output"
	"github.com/use-agent/shopcsv/scraper"
)

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	env := config.LoadEnv()
	log := logger.Init(env.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd(env, log).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "shopcsv:", err)
		os.Exit(1)
	}
}

func newRootCmd(env config.Env, log zerolog.Logger) *cobra.Command {
	cfg := config.Default()
	timeoutSec := int(cfg.Timeout / time.Second)
	lib := string(cfg.Backend)
	var summary bool

	cmd := &cobra.Command{
		Use:   "shopcsv --uri URI",
		Short: "Export restaurant listings to CSV",
		Long: `shopcsv reads a restaurant search result, follows each shop's page and
writes one CSV row per shop. Pages are fetched with a plain HTTP client
(--lib requests) or a headless Chromium (--lib selenium).`,
		Example: `  shopcsv --uri "https://r.gnavi.co.jp/area/jp/rs/?fw=izakaya" --shops 20
  shopcsv --uri file:///srv/fixtures/list_01.html --lib requests --check-ssl=false`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Backend = config.Backend(lib)
			cfg.Timeout = time.Duration(timeoutSec) * time.Second
			records, err := run(cmd.Context(), cfg, env, log)
			if err != nil {
				return err
			}
			if summary {
				output.Summary(cmd.OutOrStdout(), records)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.URI, "uri", "", "listing page URL, file:// allowed (required)")
	f.StringVar(&lib, "lib", lib, "fetch backend: requests or selenium")
	f.StringVar(&cfg.Filename, "filename", cfg.Filename, "output CSV path")
	f.IntVar(&cfg.Shops, "shops", cfg.Shops, "maximum number of shops to collect")
	f.IntVar(&timeoutSec, "timeout", timeoutSec, "per-fetch timeout in seconds")
	f.IntVar(&cfg.Retry, "retry", cfg.Retry, "extra attempts after a failed fetch")
	f.BoolVar(&cfg.Details, "details", cfg.Details, "follow each shop's page for contact details")
	f.BoolVar(&cfg.CheckSSL, "check-ssl", cfg.CheckSSL, "report official URLs with broken TLS as http")
	f.BoolVar(&summary, "summary", false, "print a table of the collected shops to stdout")

	return cmd
}

// run collects shops and writes the CSV. It returns the written records.
func run(ctx context.Context, cfg config.RunConfig, env config.Env, log zerolog.Logger) ([]models.ShopRecord, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ext, err := extract.New(extract.DefaultSelectors())
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(cfg.Backend, env, logger.For(log, "engine"))
	if err != nil {
		return nil, err
	}
	fetcher := engine.NewRetrier(eng, cfg.Retry, logger.For(log, "retry"))

	var prober scraper.Prober
	if cfg.CheckSSL {
		prober = scraper.NewSSLProber(env.UserAgent, cfg.Timeout, logger.For(log, "probe"))
	}

	log.Info().
		Str("uri", cfg.URI).
		Str("lib", string(cfg.Backend)).
		Int("shops", cfg.Shops).
		Dur("timeout", cfg.Timeout).
		Int("retry", cfg.Retry).
		Msg("collecting shops")

	collector := scraper.NewCollector(fetcher, ext, prober, cfg, logger.For(log, "collector"))
	records, err := collector.Collect(ctx)
	if err != nil {
		return nil, err
	}

	if err := output.Write(cfg.Filename, records); err != nil {
		return nil, err
	}
	log.Info().Int("rows", len(records)).Str("file", cfg.Filename).Msg("csv written")
	return records, nil
}
