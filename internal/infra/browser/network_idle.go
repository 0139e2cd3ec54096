package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// requestTracker counts in-flight requests of one page. It is fed from
// network events and answers whether the page has gone quiet.
type requestTracker struct {
	inflight     sync.Map // request id -> struct{}
	count        atomic.Int64
	lastActivity atomic.Int64 // unix nanos
	now          func() time.Time
}

func newRequestTracker() *requestTracker {
	t := &requestTracker{now: time.Now}
	t.touch()
	return t
}

func (t *requestTracker) touch() {
	t.lastActivity.Store(t.now().UnixNano())
}

// started registers a request; redirects reuse the id and are counted once.
func (t *requestTracker) started(id string) {
	if _, loaded := t.inflight.LoadOrStore(id, struct{}{}); !loaded {
		t.count.Add(1)
	}
	t.touch()
}

func (t *requestTracker) finished(id string) {
	if _, loaded := t.inflight.LoadAndDelete(id); loaded {
		t.count.Add(-1)
	}
	t.touch()
}

func (t *requestTracker) pending() int64 {
	return t.count.Load()
}

// reset forgets requests of a document that has been replaced.
func (t *requestTracker) reset() {
	t.inflight.Range(func(key, _ any) bool {
		t.inflight.Delete(key)
		return true
	})
	t.count.Store(0)
	t.touch()
}

func (t *requestTracker) idleFor() time.Duration {
	return t.now().Sub(time.Unix(0, t.lastActivity.Load()))
}

// waitIdle returns once nothing has been in flight for window. The wait
// starts a fresh window so requests triggered just before the call are seen.
func (t *requestTracker) waitIdle(ctx context.Context, window, timeout, interval time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	t.touch()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if t.pending() == 0 && t.idleFor() >= window {
			return nil
		}
		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("network still busy after %s (%d requests in flight): %w",
				timeout, t.pending(), context.DeadlineExceeded)
		case <-ticker.C:
		}
	}
}
