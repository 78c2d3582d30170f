package models

import "fmt"

// FetchKind classifies why a page could not be fetched.
type FetchKind string

const (
	FetchTimeout         FetchKind = "TIMEOUT"
	FetchHTTPStatus      FetchKind = "HTTP_STATUS"
	FetchElementNotFound FetchKind = "ELEMENT_NOT_FOUND"

	// FetchNetwork covers transport failures that are neither a timeout
	// nor an HTTP status (DNS, refused connections, navigation errors).
	FetchNetwork FetchKind = "NETWORK"

	// FetchBrowser covers failures to launch or drive the browser process.
	FetchBrowser FetchKind = "BROWSER"
)

// FetchError is returned by every fetch engine. All kinds are retryable.
type FetchError struct {
	Kind       FetchKind
	URL        string
	StatusCode int // set for FetchHTTPStatus
	Message    string
	Err        error // wrapped original error
}

func (e *FetchError) Error() string {
	msg := e.Message
	if e.Kind == FetchHTTPStatus && e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.URL, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.URL, msg)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError.
func NewFetchError(kind FetchKind, url, message string, err error) *FetchError {
	return &FetchError{Kind: kind, URL: url, Message: message, Err: err}
}

// NewStatusError creates a FetchError for a non-success HTTP status.
func NewStatusError(url string, status int) *FetchError {
	return &FetchError{
		Kind:       FetchHTTPStatus,
		URL:        url,
		StatusCode: status,
		Message:    "unexpected status",
	}
}

// IOError reports a failure writing or reading the output file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ConfigError reports an invalid command-line value or selector.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}
