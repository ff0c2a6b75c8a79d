package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockSync(t *testing.T) {
	t.Run("computes offset from server time", func(t *testing.T) {
		clock := &Clock{}
		skew := 2500 * time.Millisecond

		offset, err := clock.Sync(context.Background(), func(context.Context) (int64, error) {
			return time.Now().Add(skew).UnixMilli(), nil
		})
		require.NoError(t, err)
		assert.InDelta(t, skew.Milliseconds(), offset.Milliseconds(), 100)
		assert.True(t, clock.Synced())
		assert.Equal(t, offset, clock.Offset())
	})

	t.Run("negative offset for a server behind us", func(t *testing.T) {
		clock := &Clock{}
		offset, err := clock.Sync(context.Background(), func(context.Context) (int64, error) {
			return time.Now().Add(-3 * time.Second).UnixMilli(), nil
		})
		require.NoError(t, err)
		assert.InDelta(t, -3000, offset.Milliseconds(), 100)
	})

	t.Run("failed sync leaves the clock untouched", func(t *testing.T) {
		clock := &Clock{}
		_, err := clock.Sync(context.Background(), func(context.Context) (int64, error) {
			return 0, errors.New("boom")
		})
		require.Error(t, err)
		assert.False(t, clock.Synced())
		assert.Zero(t, clock.Offset())
	})

	t.Run("timestamp applies the offset", func(t *testing.T) {
		clock := &Clock{}
		_, err := clock.Sync(context.Background(), func(context.Context) (int64, error) {
			return time.Now().Add(5 * time.Second).UnixMilli(), nil
		})
		require.NoError(t, err)
		assert.InDelta(t, time.Now().Add(5*time.Second).UnixMilli(), clock.Timestamp(), 100)
	})

	t.Run("resync replaces the previous offset", func(t *testing.T) {
		clock := &Clock{}
		_, err := clock.Sync(context.Background(), func(context.Context) (int64, error) {
			return time.Now().Add(10 * time.Second).UnixMilli(), nil
		})
		require.NoError(t, err)

		offset, err := clock.Sync(context.Background(), func(context.Context) (int64, error) {
			return time.Now().UnixMilli(), nil
		})
		require.NoError(t, err)
		assert.InDelta(t, 0, offset.Milliseconds(), 100)
	})
}
