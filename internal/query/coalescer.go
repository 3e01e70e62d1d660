// Package query coalesces concurrent requests for the same resource into a
// single fetch whose outcome is shared by every caller.
package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/jwplayer/ott-web-app-sub004/internal/metrics"
	"github.com/jwplayer/ott-web-app-sub004/internal/queue"
)

// FetchFunc loads the value for one key
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Coalescer runs at most one fetch per key at a time. Callers arriving while
// a fetch is in flight wait for its result instead of starting another.
type Coalescer[T any] struct {
	kind     string
	logger   *slog.Logger
	inflight *xsync.MapOf[string, *queue.PromiseQueue[T]]
}

// NewCoalescer creates a Coalescer. kind labels metrics and log lines.
func NewCoalescer[T any](kind string, logger *slog.Logger) *Coalescer[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coalescer[T]{
		kind:     kind,
		logger:   logger,
		inflight: xsync.NewMapOf[string, *queue.PromiseQueue[T]](),
	}
}

// Do returns the result of fetch for key, sharing an in-flight fetch when
// there is one. The fetch is not canceled when the caller that started it
// gives up; ctx only bounds this caller's wait.
func (c *Coalescer[T]) Do(ctx context.Context, key string, fetch FetchFunc[T]) (T, error) {
	var (
		promise *queue.Promise[T]
		leader  bool
	)
	c.inflight.Compute(key, func(q *queue.PromiseQueue[T], loaded bool) (*queue.PromiseQueue[T], bool) {
		if !loaded {
			q = queue.New[T]()
			leader = true
		}
		promise = q.Enqueue()
		return q, false
	})

	if leader {
		go c.run(context.WithoutCancel(ctx), key, fetch)
	} else {
		metrics.IncCoalesced(c.kind)
		c.logger.Debug("joined in-flight fetch", "kind", c.kind, "key", key)
	}

	return promise.Wait(ctx)
}

// InFlight returns the number of callers waiting on key
func (c *Coalescer[T]) InFlight(key string) int {
	q, ok := c.inflight.Load(key)
	if !ok {
		return 0
	}
	return q.Len()
}

func (c *Coalescer[T]) run(ctx context.Context, key string, fetch FetchFunc[T]) {
	value, err := c.call(ctx, fetch)
	if err != nil {
		c.logger.Debug("fetch failed", "kind", c.kind, "key", key, "error", err)
	}

	// Settle and forget in one step so no caller joins a finished round
	c.inflight.Compute(key, func(q *queue.PromiseQueue[T], loaded bool) (*queue.PromiseQueue[T], bool) {
		if loaded {
			if err != nil {
				q.Reject(err)
			} else {
				q.Resolve(value)
			}
		}
		return q, true
	})
}

func (c *Coalescer[T]) call(ctx context.Context, fetch FetchFunc[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return fetch(ctx)
}
