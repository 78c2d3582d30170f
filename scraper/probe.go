package scraper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Prober decides which scheme a shop's official URL should be reported with.
type Prober interface {
	Check(ctx context.Context, rawURL string) string
}

// SSLProber requests https official URLs once and downgrades them to http
// when the TLS handshake or certificate check fails. Any other outcome
// keeps the URL unchanged, so a probe never fails a run.
type SSLProber struct {
	client  *resty.Client
	timeout time.Duration
	log     zerolog.Logger
}

// NewSSLProber creates a prober. The probe uses the standard TLS stack so
// certificate errors surface with their usual types.
func NewSSLProber(userAgent string, timeout time.Duration, log zerolog.Logger) *SSLProber {
	client := resty.New().
		SetHeader("User-Agent", userAgent).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetDoNotParseResponse(true)
	return &SSLProber{client: client, timeout: timeout, log: log}
}

// Check returns rawURL, or its http:// form when https is broken.
func (p *SSLProber) Check(ctx context.Context, rawURL string) string {
	if !strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := p.client.R().SetContext(ctx).Get(rawURL)
	if resp != nil && resp.RawBody() != nil {
		resp.RawBody().Close()
	}
	if err == nil {
		return rawURL
	}
	if isTLSError(err) {
		downgraded := "http://" + strings.TrimPrefix(rawURL, "https://")
		p.log.Info().Str("url", rawURL).Err(err).Msg("official site has a broken TLS setup, reporting http")
		return downgraded
	}
	p.log.Debug().Str("url", rawURL).Err(err).Msg("official site probe failed, keeping https")
	return rawURL
}

func isTLSError(err error) bool {
	var (
		verifyErr    *tls.CertificateVerificationError
		recordErr    tls.RecordHeaderError
		alertErr     tls.AlertError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &recordErr),
		errors.As(err, &alertErr),
		errors.As(err, &authorityErr),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr):
		return true
	}
	return strings.Contains(err.Error(), "tls: ")
}
