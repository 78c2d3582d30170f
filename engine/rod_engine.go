package engine

import (
	"context"
	"errors"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"
	"github.com/ysmood/gson"

	"github.com/use-agent/shopcsv/config"
	"github.com/use-agent/shopcsv/models"
)

// RodEngine renders pages in a headless Chromium. Each Fetch launches its
// own browser and tears it down before returning, so no browser state
// carries over between pages.
type RodEngine struct {
	cfg       config.BrowserConfig
	userAgent string
	blocked   map[proto.NetworkResourceType]struct{}
	log       zerolog.Logger
}

// NewRodEngine creates a RodEngine. No browser is started until Fetch.
func NewRodEngine(cfg config.BrowserConfig, userAgent string, log zerolog.Logger) *RodEngine {
	return &RodEngine{
		cfg:       cfg,
		userAgent: userAgent,
		blocked:   blockedSet(cfg.BlockedResources),
		log:       log,
	}
}

func (e *RodEngine) Name() string { return "rod" }

// browserSession is one launched browser and its connection.
type browserSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func (e *RodEngine) launch() (*browserSession, error) {
	l := launcher.New().
		Headless(e.cfg.Headless).
		NoSandbox(e.cfg.NoSandbox)
	if e.cfg.Bin != "" {
		l = l.Bin(e.cfg.Bin)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("lang"), "ja-JP")

	controlURL, err := l.Launch()
	if err != nil {
		l.Cleanup()
		return nil, err
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, err
	}
	e.log.Debug().Str("control_url", controlURL).Msg("browser launched")
	return &browserSession{launcher: l, browser: browser}, nil
}

// Close shuts the browser down and removes its profile directory.
func (s *browserSession) Close() {
	_ = s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
}

// Fetch loads req.URL, waits for req.WaitSelector when set and returns
// the rendered DOM.
//
// Setup order matters: stealth and hijack must be installed before
// Navigate or they do not apply to the first document.
func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	session, err := e.launch()
	if err != nil {
		return nil, models.NewFetchError(models.FetchBrowser, req.URL, "failed to launch browser", err)
	}
	defer session.Close()

	page, err := session.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewFetchError(models.FetchBrowser, req.URL, "failed to open tab", err)
	}

	if e.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			e.log.Warn().Err(err).Msg("stealth injection failed, proceeding without stealth")
		}
	}

	if e.userAgent != "" {
		_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: e.userAgent})
	}
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Accept-Language": "ja,en-US;q=0.9,en;q=0.8"}),
	}.Call(page)

	if router := setupHijack(page, e.blocked); router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	if err := p.Navigate(req.URL); err != nil {
		return nil, classifyBrowserError(ctx, req.URL, "navigation failed", err)
	}

	if req.WaitSelector != "" {
		if _, err := p.Element(req.WaitSelector); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, models.NewFetchError(models.FetchElementNotFound, req.URL,
				"element "+req.WaitSelector+" did not appear", err)
		}
	} else if err := p.WaitLoad(); err != nil {
		return nil, classifyBrowserError(ctx, req.URL, "page did not finish loading", err)
	}

	status := navigationStatus(p)
	if status >= 400 {
		return nil, models.NewStatusError(req.URL, status)
	}

	html, err := p.HTML()
	if err != nil {
		return nil, classifyBrowserError(ctx, req.URL, "failed to read page HTML", err)
	}

	finalURL := req.URL
	if info, err := p.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	return &FetchResult{
		HTML:       html,
		StatusCode: status,
		FinalURL:   finalURL,
		EngineName: e.Name(),
	}, nil
}

// navigationStatus reads the document's HTTP status from the Navigation
// Timing entry. It is 0 for file URLs and when the browser does not
// report it.
func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

func classifyBrowserError(ctx context.Context, url, msg string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.NewFetchError(models.FetchTimeout, url, msg, err)
	}
	return models.NewFetchError(models.FetchNetwork, url, msg, err)
}

// toHeadersMap converts a plain string map to proto.NetworkHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
