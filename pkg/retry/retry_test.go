package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{}, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesOnFailureThenSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{Backoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsDeadlineExceededWithoutPropagatingUnderlyingError(t *testing.T) {
	err := Do(context.Background(), Options{Deadline: 10 * time.Millisecond, Backoff: time.Millisecond}, func(ctx context.Context) error {
		return errors.New("upstream down")
	})
	assert.ErrorIs(t, err, ErrDeadlineExceeded)
}

func TestDoHonoursRateLimitBackoff(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{Backoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return &StatusError{StatusCode: http.StatusTooManyRequests}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, Options{Backoff: time.Second}, func(ctx context.Context) error {
		return errors.New("boom")
	})
	assert.Error(t, err)
}

func TestScaledBackoffCapsAtMax(t *testing.T) {
	assert.Equal(t, maxBackoff, scaledBackoff(DefaultBackoff, 100, maxBackoff))
	assert.Equal(t, DefaultBackoff, scaledBackoff(DefaultBackoff, 1, maxBackoff))
}
