package shelves

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/jwplayer/ott-web-app-sub004/internal/domain"
	"github.com/jwplayer/ott-web-app-sub004/internal/metrics"
)

const flushPollInterval = 5 * time.Millisecond

// SnapshotFunc returns the full lists to write to the account
type SnapshotFunc func() ([]domain.FavoriteItem, []domain.WatchHistoryItem)

// Syncer writes the personal shelves to the account in the background.
//
// Requests are coalesced with a dirty flag: at most one write runs at a time,
// and the lists are read when the write starts, so the last write always
// carries the latest state. Failures are logged and never retried; the next
// mutation writes the full lists again.
type Syncer struct {
	remote   domain.AccountRepository
	auth     domain.Authenticator
	pool     *ants.Pool
	snapshot SnapshotFunc
	timeout  time.Duration
	logger   *slog.Logger

	dirty   atomic.Bool
	running atomic.Bool
	holds   atomic.Int32
}

func NewSyncer(remote domain.AccountRepository, auth domain.Authenticator, pool *ants.Pool, snapshot SnapshotFunc, timeout time.Duration, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		remote:   remote,
		auth:     auth,
		pool:     pool,
		snapshot: snapshot,
		timeout:  timeout,
		logger:   logger,
	}
}

// Schedule requests a write of the current lists. It never blocks on the network.
func (s *Syncer) Schedule() {
	if s.remote == nil {
		return
	}
	s.dirty.Store(true)
	if s.holds.Load() > 0 {
		return
	}
	s.kick()
}

// Hold stops new writes from starting until a matching Release. A write
// already running is not interrupted.
func (s *Syncer) Hold() {
	s.holds.Add(1)
}

// Release undoes one Hold and starts any write requested meanwhile
func (s *Syncer) Release() {
	if s.holds.Add(-1) > 0 {
		return
	}
	if s.dirty.Load() {
		s.kick()
	}
}

// Discard drops a requested write that has not started yet
func (s *Syncer) Discard() {
	s.dirty.Store(false)
}

// Flush waits until no write is pending or running, or ctx is done.
// A write held back by Hold is not waited for.
func (s *Syncer) Flush(ctx context.Context) error {
	ticker := time.NewTicker(flushPollInterval)
	defer ticker.Stop()
	for {
		pending := s.dirty.Load() && s.holds.Load() == 0
		if !pending && !s.running.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Syncer) kick() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	if s.pool == nil {
		go s.drain()
		return
	}
	if err := s.pool.Submit(s.drain); err != nil {
		s.logger.Warn("worker pool rejected shelf sync, running inline goroutine", "error", err)
		go s.drain()
	}
}

func (s *Syncer) drain() {
	for {
		for s.holds.Load() == 0 && s.dirty.Swap(false) {
			s.push()
		}
		s.running.Store(false)

		// A Schedule that lost the CAS while we were finishing left dirty set.
		// Held writes are started by Release instead.
		if !s.dirty.Load() || s.holds.Load() > 0 || !s.running.CompareAndSwap(false, true) {
			return
		}
	}
}

func (s *Syncer) push() {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncSyncWrite("error")
			s.logger.Error("shelf sync panicked", "panic", r)
		}
	}()

	if s.auth != nil && !s.auth.IsAuthenticated() {
		s.logger.Debug("skipping shelf sync, customer signed out")
		return
	}

	favorites, history := s.snapshot()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.remote.UpdatePersonalShelves(ctx, favorites, history); err != nil {
		metrics.IncSyncWrite("error")
		s.logger.Error("failed to update personal shelves",
			"error", err,
			"favorites", len(favorites),
			"history", len(history),
		)
		return
	}
	metrics.IncSyncWrite("ok")
	s.logger.Debug("updated personal shelves", "favorites", len(favorites), "history", len(history))
}
