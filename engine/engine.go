package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/use-agent/shopcsv/config"
)

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier ("http" or "rod").
	Name() string

	// Fetch retrieves the page content for the given request. Failures are
	// *models.FetchError, except a cancelled ctx which is returned as is.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL string

	// Timeout bounds this single attempt.
	Timeout time.Duration

	// WaitSelector is the element a browser engine waits for before it
	// reads the DOM. Ignored by the HTTP engine.
	WaitSelector string
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML       string
	StatusCode int
	FinalURL   string
	EngineName string
}

// New returns the engine for the configured backend.
func New(backend config.Backend, env config.Env, log zerolog.Logger) (Engine, error) {
	switch backend {
	case config.BackendRequests:
		return NewHTTPEngine(env.UserAgent, log), nil
	case config.BackendSelenium:
		return NewRodEngine(env.Browser, env.UserAgent, log), nil
	default:
		return nil, fmt.Errorf("engine: unknown backend %q", backend)
	}
}
