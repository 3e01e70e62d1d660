// Package shelves keeps the personal shelves (favorites and watch history)
// consistent between memory, local storage and the customer's account.
//
// Every mutation is applied in memory first. It is then persisted either to
// local storage (anonymous) or to the account through the Syncer
// (authenticated). Both paths write the full current list, so a later write
// always supersedes an earlier one.
package shelves

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/jwplayer/ott-web-app-sub004/internal/domain"
	"github.com/jwplayer/ott-web-app-sub004/internal/entity"
	"github.com/jwplayer/ott-web-app-sub004/internal/store"
)

const (
	kindFavorites = "favorites"
	kindHistory   = "history"
)

// Deps are the collaborators of the shelves
type Deps struct {
	Storage *store.Store
	Remote  domain.AccountRepository // may be nil when there is no account backend
	Auth    domain.Authenticator     // nil means never authenticated
	Pool    *ants.Pool               // runs remote writes; nil uses plain goroutines
	Logger  *slog.Logger
}

// Options tune shelf policy
type Options struct {
	AppID        string // namespaces persisted keys per deployed app
	Features     domain.Features
	MaxFavorites int
	MaxHistory   int
	ProgressMin  float64 // exclusive lower bound for resumable progress
	ProgressMax  float64 // exclusive upper bound for resumable progress
	SyncTimeout  time.Duration
}

// DefaultOptions returns the stock policy with both shelves enabled
func DefaultOptions() Options {
	return Options{
		Features: domain.Features{
			FavoritesEnabled:        true,
			ContinueWatchingEnabled: true,
		},
		MaxFavorites: 48,
		MaxHistory:   48,
		ProgressMin:  0.05,
		ProgressMax:  0.95,
		SyncTimeout:  10 * time.Second,
	}
}

// Shelves owns both shelf stores and their persistence
type Shelves struct {
	Favorites *Favorites
	History   *WatchHistory

	storage *store.Store
	remote  domain.AccountRepository
	auth    domain.Authenticator
	opts    Options
	logger  *slog.Logger
	syncer  *Syncer

	persistMu sync.Mutex // orders local writes so the last one holds the latest list

	// Account copies of disabled shelves, sent back unchanged on every write
	remoteMu        sync.Mutex
	remoteFavorites []domain.FavoriteItem
	remoteHistory   []domain.WatchHistoryItem
}

func New(deps Deps, opts Options) (*Shelves, error) {
	if deps.Storage == nil {
		return nil, fmt.Errorf("shelves: storage is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.MaxFavorites <= 0 {
		opts.MaxFavorites = def.MaxFavorites
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = def.MaxHistory
	}
	if opts.ProgressMax <= 0 {
		opts.ProgressMin, opts.ProgressMax = def.ProgressMin, def.ProgressMax
	}
	if opts.ProgressMin >= opts.ProgressMax {
		return nil, fmt.Errorf("shelves: progress bounds (%v, %v) are empty", opts.ProgressMin, opts.ProgressMax)
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = def.SyncTimeout
	}

	s := &Shelves{
		storage: deps.Storage,
		remote:  deps.Remote,
		auth:    deps.Auth,
		opts:    opts,
		logger:  deps.Logger,
	}
	s.Favorites = &Favorites{shelves: s, store: entity.NewStore[domain.FavoriteItem]()}
	s.History = &WatchHistory{shelves: s, store: entity.NewStore[domain.WatchHistoryItem]()}
	s.syncer = NewSyncer(deps.Remote, deps.Auth, deps.Pool, s.snapshot, opts.SyncTimeout, deps.Logger)
	return s, nil
}

// Options returns the effective policy
func (s *Shelves) Options() Options { return s.opts }

// Initialize restores both shelves for a new session and marks them loaded.
// Restoration problems are logged; an empty shelf is a valid result.
func (s *Shelves) Initialize(ctx context.Context) {
	s.restore(ctx)
	s.Favorites.store.MarkLoaded()
	s.History.store.MarkLoaded()
}

// Restore reloads both shelves from the current source of truth: the
// account when authenticated, local storage otherwise.
func (s *Shelves) Restore(ctx context.Context) {
	s.restore(ctx)
}

// Reconcile merges the local shelves into the account after login. Server
// entries win on conflicting ids; local-only entries are kept and written
// back to the account.
func (s *Shelves) Reconcile(ctx context.Context) error {
	if !s.authenticated() {
		return domain.ErrNotAuthenticated
	}
	if s.remote == nil {
		return fmt.Errorf("shelves: no account backend configured")
	}

	data, err := s.remote.GetExternalData(ctx)
	if err != nil {
		// Writes held for the merge would overwrite an account we never read
		s.syncer.Discard()
		s.logger.Error("failed to fetch external data", "error", err)
		return fmt.Errorf("failed to fetch external data: %w", err)
	}
	s.rememberRemote(data)

	if s.opts.Features.FavoritesEnabled {
		s.Favorites.store.Mutate(func(local []domain.FavoriteItem) []domain.FavoriteItem {
			return Merge(data.Favorites, local)
		})
	}
	if s.opts.Features.ContinueWatchingEnabled {
		s.History.store.Mutate(func(local []domain.WatchHistoryItem) []domain.WatchHistoryItem {
			return Merge(data.History, local)
		})
	}

	s.logger.Info("reconciled personal shelves",
		"favorites", s.Favorites.store.Len(),
		"history", s.History.store.Len(),
	)
	s.syncer.Schedule()
	return nil
}

// Flush waits until no remote write is pending or running. Writes held by
// HoldSync do not count as pending.
func (s *Shelves) Flush(ctx context.Context) error {
	return s.syncer.Flush(ctx)
}

// HoldSync keeps account writes queued until release is called. Login holds
// them from the moment the session becomes valid until Reconcile has merged
// the account's shelves, so a mutation in between cannot overwrite them.
func (s *Shelves) HoldSync() (release func()) {
	s.syncer.Hold()
	var once sync.Once
	return func() { once.Do(s.syncer.Release) }
}

func (s *Shelves) authenticated() bool {
	return s.auth != nil && s.auth.IsAuthenticated()
}

func (s *Shelves) key(kind string) string {
	if s.opts.AppID == "" {
		return kind
	}
	return kind + "-" + s.opts.AppID
}

func (s *Shelves) restore(ctx context.Context) {
	favEnabled := s.opts.Features.FavoritesEnabled
	histEnabled := s.opts.Features.ContinueWatchingEnabled
	if !favEnabled && !histEnabled {
		return
	}

	if s.authenticated() && s.remote != nil {
		data, err := s.remote.GetExternalData(ctx)
		if err != nil {
			s.logger.Error("failed to restore shelves from account", "error", err)
			return
		}
		s.rememberRemote(data)
		if favEnabled {
			s.Favorites.store.Replace(data.Favorites)
		}
		if histEnabled {
			s.History.store.Replace(data.History)
		}
		return
	}

	if favEnabled {
		items, _ := store.Get[[]domain.FavoriteItem](s.storage, s.key(kindFavorites))
		s.Favorites.store.Replace(items)
	}
	if histEnabled {
		items, _ := store.Get[[]domain.WatchHistoryItem](s.storage, s.key(kindHistory))
		s.History.store.Replace(items)
	}
}

// persist writes the shelf of the given kind after a mutation
func (s *Shelves) persist(kind string) {
	if s.authenticated() {
		s.syncer.Schedule()
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	switch kind {
	case kindFavorites:
		s.storage.SetItem(s.key(kind), nonNil(s.Favorites.store.Items()))
	case kindHistory:
		s.storage.SetItem(s.key(kind), nonNil(s.History.store.Items()))
	}
}

// snapshot returns the current lists for a remote write. A disabled shelf
// contributes the account's own copy so the write leaves it as it was.
func (s *Shelves) snapshot() ([]domain.FavoriteItem, []domain.WatchHistoryItem) {
	s.remoteMu.Lock()
	favorites, history := s.remoteFavorites, s.remoteHistory
	s.remoteMu.Unlock()

	if s.opts.Features.FavoritesEnabled {
		favorites = s.Favorites.store.Items()
	}
	if s.opts.Features.ContinueWatchingEnabled {
		history = s.History.store.Items()
	}
	return nonNil(favorites), nonNil(history)
}

// rememberRemote keeps the account's copy of any disabled shelf
func (s *Shelves) rememberRemote(data domain.ExternalData) {
	s.remoteMu.Lock()
	defer s.remoteMu.Unlock()
	if !s.opts.Features.FavoritesEnabled {
		s.remoteFavorites = slices.Clone(data.Favorites)
	}
	if !s.opts.Features.ContinueWatchingEnabled {
		s.remoteHistory = slices.Clone(data.History)
	}
}

// Merge combines server and local lists by id. Server entries come first in
// server order and win on conflict; local-only entries follow in local order.
func Merge[T domain.ShelfItem](server, local []T) []T {
	merged := make([]T, 0, len(server)+len(local))
	merged = append(merged, server...)
	merged = append(merged, local...)
	return entity.Dedup(merged)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
