package exchange

import (
	"context"
	"time"
)

// Clock tracks the offset between the local clock and the exchange server
// clock. The offset is explicit state owned by the client that created it,
// recomputed at session start and again when a request bounces with a
// recvWindow error. Single-threaded CLI sessions have no concurrent
// writers.
type Clock struct {
	offset time.Duration
	synced bool
}

// Sync fetches the server time via timeFn and stores
// offset = serverTime - localTime. Local time is sampled at the midpoint
// of the round trip to halve the network-latency skew.
func (c *Clock) Sync(ctx context.Context, timeFn func(context.Context) (int64, error)) (time.Duration, error) {
	before := time.Now()
	serverMillis, err := timeFn(ctx)
	if err != nil {
		return 0, err
	}
	rtt := time.Since(before)
	localMid := before.Add(rtt / 2).UnixMilli()

	c.offset = time.Duration(serverMillis-localMid) * time.Millisecond
	c.synced = true
	return c.offset, nil
}

// Offset returns the stored offset; zero until the first Sync
func (c *Clock) Offset() time.Duration {
	return c.offset
}

// OffsetMillis returns the stored offset in milliseconds
func (c *Clock) OffsetMillis() int64 {
	return c.offset.Milliseconds()
}

// Synced reports whether Sync has completed at least once
func (c *Clock) Synced() bool {
	return c.synced
}

// Timestamp returns the corrected unix-millisecond timestamp to use in
// signed requests.
func (c *Clock) Timestamp() int64 {
	return time.Now().UnixMilli() + c.OffsetMillis()
}
