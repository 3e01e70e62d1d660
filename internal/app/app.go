// Package app wires the state-sync layer together. Every component is an
// explicit instance owned by an App, so several apps can share one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jwplayer/ott-web-app-sub004/internal/account"
	"github.com/jwplayer/ott-web-app-sub004/internal/adapter"
	"github.com/jwplayer/ott-web-app-sub004/internal/adapter/api"
	"github.com/jwplayer/ott-web-app-sub004/internal/broadcast"
	"github.com/jwplayer/ott-web-app-sub004/internal/catalog"
	"github.com/jwplayer/ott-web-app-sub004/internal/domain"
	"github.com/jwplayer/ott-web-app-sub004/internal/screens"
	"github.com/jwplayer/ott-web-app-sub004/internal/shelves"
	"github.com/jwplayer/ott-web-app-sub004/internal/store"
)

type options struct {
	backend   store.Backend
	transport broadcast.Transport
	accounts  domain.AccountRepository
	media     domain.MediaRepository
}

// Option overrides a component New would otherwise build from config
type Option func(*options)

// WithBackend uses backend for key-value storage. The App does not close it.
func WithBackend(backend store.Backend) Option {
	return func(o *options) { o.backend = backend }
}

// WithTransport uses transport for account notifications
func WithTransport(transport broadcast.Transport) Option {
	return func(o *options) { o.transport = transport }
}

// WithRepositories replaces the REST client for account and catalog calls.
// Either argument may be nil to keep the REST client for that concern.
func WithRepositories(accounts domain.AccountRepository, media domain.MediaRepository) Option {
	return func(o *options) {
		o.accounts = accounts
		o.media = media
	}
}

// App is one running instance of the state-sync layer
type App struct {
	Config          *adapter.Config
	Storage         *store.Store
	Session         *account.Session
	Account         *account.Controller
	Shelves         *shelves.Shelves
	Catalog         *catalog.Service
	MediaScreens    *screens.Map[domain.PlaylistItem, string]
	PlaylistScreens *screens.Map[domain.Playlist, string]

	notifier *broadcast.Broadcaster[account.Notification]
	pool     *ants.Pool
	clients  []*redis.Client // created here, closed on Close
	logger   *slog.Logger
}

// New builds an App from cfg
func New(cfg *adapter.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, logger: logger}

	backend := o.backend
	if backend == nil {
		var err error
		backend, err = a.openBackend(cfg)
		if err != nil {
			a.closeClients()
			return nil, err
		}
	} else {
		backend = unowned{backend}
	}
	a.Storage = store.New(backend, cfg.App.StoragePrefix, logger)

	pool, err := ants.NewPool(cfg.Workers.PoolSize, ants.WithPanicHandler(func(p any) {
		logger.Error("background task panicked", "panic", p)
	}))
	if err != nil {
		a.Storage.Close()
		a.closeClients()
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	a.pool = pool

	a.Session = account.NewSession(a.Storage, logger)

	client := api.NewClient(cfg.API.BaseURL, a.Session, api.Options{
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		MaxRetries:        cfg.API.MaxRetries,
	}, logger)
	var accounts domain.AccountRepository = client
	if o.accounts != nil {
		accounts = o.accounts
	}
	var media domain.MediaRepository = client
	if o.media != nil {
		media = o.media
	}

	a.Shelves, err = shelves.New(shelves.Deps{
		Storage: a.Storage,
		Remote:  accounts,
		Auth:    a.Session,
		Pool:    pool,
		Logger:  logger,
	}, shelves.Options{
		AppID: cfg.App.ID,
		Features: domain.Features{
			FavoritesEnabled:        cfg.App.Features.Favorites,
			ContinueWatchingEnabled: cfg.App.Features.ContinueWatching,
		},
		MaxFavorites: cfg.Shelves.MaxFavorites,
		MaxHistory:   cfg.Shelves.MaxHistory,
		ProgressMin:  cfg.Shelves.ProgressMin,
		ProgressMax:  cfg.Shelves.ProgressMax,
		SyncTimeout:  cfg.Shelves.SyncTimeout,
	})
	if err != nil {
		a.release()
		return nil, err
	}

	transport := o.transport
	if transport == nil {
		transport = a.openTransport(cfg)
	}
	a.notifier = broadcast.New[account.Notification](transport, account.NotificationsChannel, broadcast.WithLogger(logger))
	a.Account = account.NewController(a.Session, a.Shelves, a.notifier, pool, logger)

	a.Catalog = catalog.NewService(media, logger)
	a.MediaScreens = NewMediaScreens()
	a.PlaylistScreens = NewPlaylistScreens()

	return a, nil
}

// Init restores the session and then the personal shelves
func (a *App) Init(ctx context.Context) {
	a.Account.Initialize(ctx)
	a.Shelves.Initialize(ctx)
	a.logger.Info("app initialized",
		"appID", a.Config.App.ID,
		"authenticated", a.Session.IsAuthenticated(),
		"favorites", a.Shelves.Favorites.Len(),
		"history", a.Shelves.History.Len(),
	)
}

// Close waits for pending account writes, then releases every resource
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Shelves.SyncTimeout)
	defer cancel()

	var errs []error
	if err := a.Shelves.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush shelves: %w", err))
	}
	a.Account.Close()
	if err := a.notifier.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.release(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) release() error {
	var errs []error
	a.pool.Release()
	if err := a.Storage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
	}
	if err := a.closeClients(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) openBackend(cfg *adapter.Config) (store.Backend, error) {
	switch cfg.Storage.Backend {
	case adapter.StorageMemory:
		return store.NewMemoryBackend(), nil
	case adapter.StorageFile:
		return store.NewFileBackend(cfg.Storage.Path)
	case adapter.StorageRedis:
		client := a.redisClient(cfg.Storage.Redis)
		return store.NewRedisBackend(client, cfg.Storage.Redis.KeyPrefix), nil
	default:
		return store.NewBoltBackend(cfg.Storage.Path, cfg.App.ID)
	}
}

func (a *App) openTransport(cfg *adapter.Config) broadcast.Transport {
	switch cfg.Broadcast.Transport {
	case adapter.TransportNone:
		return nil
	case adapter.TransportRedis:
		client := a.redisClient(cfg.Broadcast.Redis)
		return broadcast.NewRedisTransport(client, cfg.Broadcast.Redis.KeyPrefix, a.logger)
	default:
		return broadcast.NewHub()
	}
}

func (a *App) redisClient(cfg adapter.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	a.clients = append(a.clients, client)
	return client
}

func (a *App) closeClients() error {
	var errs []error
	for _, c := range a.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}
	a.clients = nil
	return errors.Join(errs...)
}

// unowned keeps Close from reaching a backend supplied by the caller
type unowned struct {
	store.Backend
}

func (unowned) Close() error { return nil }
