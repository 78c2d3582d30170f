package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	tls "github.com/refraction-networking/utls"
	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"

	"github.com/use-agent/shopcsv/models"
)

// HTTPEngine fetches pages with a single GET and no JavaScript rendering.
// file:// URLs are served from the local filesystem so fixtures behave
// like remote pages.
type HTTPEngine struct {
	client *resty.Client
}

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPEngine creates an HTTPEngine with a Chrome-like TLS fingerprint.
func NewHTTPEngine(userAgent string, log zerolog.Logger) *HTTPEngine {
	transport := &http.Transport{
		DialTLSContext:    dialTLSChrome,
		ForceAttemptHTTP2: false,
	}
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))

	client := resty.New().
		SetTransport(transport).
		SetLogger(restyLogger{log: log}).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "ja,en-US;q=0.9,en;q=0.8")

	return &HTTPEngine{client: client}
}

func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (e *HTTPEngine) Name() string { return "http" }

// Fetch issues one GET bounded by req.Timeout. A cancelled parent context
// is returned as is; every other failure is a *models.FetchError.
func (e *HTTPEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	resp, err := e.client.R().SetContext(ctx).Get(req.URL)
	if err != nil {
		return nil, classifyTransportError(req.URL, err)
	}

	if resp.StatusCode() >= 400 {
		return nil, models.NewStatusError(req.URL, resp.StatusCode())
	}

	body, err := decodeBody(resp.Body(), resp.Header().Get("Content-Type"))
	if err != nil {
		return nil, models.NewFetchError(models.FetchNetwork, req.URL, "failed to decode body", err)
	}

	return &FetchResult{
		HTML:       body,
		StatusCode: resp.StatusCode(),
		FinalURL:   finalURL(resp, req.URL),
		EngineName: e.Name(),
	}, nil
}

// classifyTransportError maps client errors onto fetch error kinds.
func classifyTransportError(url string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return models.NewFetchError(models.FetchTimeout, url, "no response within timeout", err)
	}
	return models.NewFetchError(models.FetchNetwork, url, "request failed", err)
}

// decodeBody converts the body to UTF-8 using the Content-Type header and
// any <meta charset> in the document.
func decodeBody(body []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", err
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// finalURL returns the URL after redirects. The file transport does not
// attach a request to its responses, so fall back to the requested URL.
func finalURL(resp *resty.Response, requested string) string {
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		return raw.Request.URL.String()
	}
	return requested
}

// restyLogger routes resty's own messages into zerolog.
type restyLogger struct {
	log zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) { l.log.Error().Msgf(format, v...) }
func (l restyLogger) Warnf(format string, v ...interface{})  { l.log.Warn().Msgf(format, v...) }
func (l restyLogger) Debugf(format string, v ...interface{}) { l.log.Debug().Msgf(format, v...) }
