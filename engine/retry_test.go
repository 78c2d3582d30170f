package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/shopcsv/models"
)

// scriptedEngine returns errs[i] on call i and succeeds once they run out.
type scriptedEngine struct {
	errs  []error
	calls int
}

func (s *scriptedEngine) Name() string { return "scripted" }

func (s *scriptedEngine) Fetch(_ context.Context, req *FetchRequest) (*FetchResult, error) {
	s.calls++
	if s.calls <= len(s.errs) {
		return nil, s.errs[s.calls-1]
	}
	return &FetchResult{HTML: "<p>ok</p>", FinalURL: req.URL, EngineName: s.Name()}, nil
}

func timeoutErr(n int) error {
	return models.NewFetchError(models.FetchTimeout, "https://example.com", "attempt failed", fmt.Errorf("attempt %d", n))
}

func TestRetrier_SucceedsFirstTry(t *testing.T) {
	eng := &scriptedEngine{}
	res, err := NewRetrier(eng, 3, zerolog.Nop()).Fetch(context.Background(), &FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", res.HTML)
	assert.Equal(t, 1, eng.calls)
}

func TestRetrier_SucceedsAfterFailure(t *testing.T) {
	eng := &scriptedEngine{errs: []error{timeoutErr(0)}}
	res, err := NewRetrier(eng, 3, zerolog.Nop()).Fetch(context.Background(), &FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 2, eng.calls)
}

func TestRetrier_ExhaustsAttempts(t *testing.T) {
	last := timeoutErr(3)
	eng := &scriptedEngine{errs: []error{timeoutErr(0), timeoutErr(1), timeoutErr(2), last, timeoutErr(4)}}

	_, err := NewRetrier(eng, 3, zerolog.Nop()).Fetch(context.Background(), &FetchRequest{URL: "https://example.com"})
	require.Error(t, err)
	assert.Equal(t, 4, eng.calls, "retry=3 means four attempts")
	assert.Same(t, last, err)
}

func TestRetrier_ZeroRetries(t *testing.T) {
	first := timeoutErr(0)
	eng := &scriptedEngine{errs: []error{first}}

	_, err := NewRetrier(eng, 0, zerolog.Nop()).Fetch(context.Background(), &FetchRequest{URL: "https://example.com"})
	assert.Same(t, first, err)
	assert.Equal(t, 1, eng.calls)
}

func TestRetrier_StopsOnNonFetchError(t *testing.T) {
	eng := &scriptedEngine{errs: []error{context.Canceled, timeoutErr(1)}}

	_, err := NewRetrier(eng, 3, zerolog.Nop()).Fetch(context.Background(), &FetchRequest{URL: "https://example.com"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, eng.calls)
}

func TestRetrier_Name(t *testing.T) {
	assert.Equal(t, "scripted", NewRetrier(&scriptedEngine{}, 1, zerolog.Nop()).Name())
}
