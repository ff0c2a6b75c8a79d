package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func TestRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), fastRetryConfig(), func() error {
			calls++
			if calls < 3 {
				return &ConnectivityError{Err: errors.New("connection reset")}
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), fastRetryConfig(), func() error {
			calls++
			return &ConnectivityError{Err: errors.New("still down")}
		})
		require.Error(t, err)
		assert.Equal(t, 4, calls)
		assert.True(t, IsConnectivity(err))
	})

	t.Run("rejections surface immediately", func(t *testing.T) {
		calls := 0
		rejection := &Rejection{Code: -2019, Message: "Margin is insufficient"}
		err := Retry(context.Background(), fastRetryConfig(), func() error {
			calls++
			return rejection
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		var rej *Rejection
		assert.ErrorAs(t, err, &rej)
	})

	t.Run("rate limits are never retried", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), fastRetryConfig(), func() error {
			calls++
			return &RateLimitError{Code: -1003, Message: "Too many requests"}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops the loop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Retry(ctx, fastRetryConfig(), func() error {
			return &ConnectivityError{Err: errors.New("down")}
		})
		require.Error(t, err)
		assert.True(t, IsConnectivity(err))
	})
}
