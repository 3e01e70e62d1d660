package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jwplayer/ott-web-app-sub004/internal/domain"
	"github.com/jwplayer/ott-web-app-sub004/internal/query"
)

const hydrateConcurrency = 4

// Service answers catalog lookups. Concurrent requests for the same id
// share a single API call.
type Service struct {
	repo         domain.MediaRepository
	media        *query.Coalescer[*domain.PlaylistItem]
	playlists    *query.Coalescer[*domain.Playlist]
	entitlements *query.Coalescer[*domain.Entitlement]
	now          func() time.Time
	logger       *slog.Logger
}

// NewService creates a new catalog service.
func NewService(repo domain.MediaRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:         repo,
		media:        query.NewCoalescer[*domain.PlaylistItem]("media", logger),
		playlists:    query.NewCoalescer[*domain.Playlist]("playlist", logger),
		entitlements: query.NewCoalescer[*domain.Entitlement]("entitlement", logger),
		now:          time.Now,
		logger:       logger,
	}
}

func (s *Service) GetMedia(ctx context.Context, mediaID string) (*domain.PlaylistItem, error) {
	return s.media.Do(ctx, mediaID, func(ctx context.Context) (*domain.PlaylistItem, error) {
		return s.repo.GetMedia(ctx, mediaID)
	})
}

func (s *Service) GetPlaylist(ctx context.Context, playlistID string) (*domain.Playlist, error) {
	return s.playlists.Do(ctx, playlistID, func(ctx context.Context) (*domain.Playlist, error) {
		return s.repo.GetPlaylist(ctx, playlistID)
	})
}

// CheckEntitlement reports whether the current customer may play mediaID
func (s *Service) CheckEntitlement(ctx context.Context, mediaID string) (bool, error) {
	e, err := s.entitlements.Do(ctx, mediaID, func(ctx context.Context) (*domain.Entitlement, error) {
		return s.repo.GetEntitlement(ctx, mediaID)
	})
	if err != nil {
		s.logger.Error("failed to check entitlement", "error", err, "mediaID", mediaID)
		return false, err
	}
	return e.Active(s.now()), nil
}

// ResolveSeries returns the series feed an item belongs to, or nil for
// items outside any series.
func (s *Service) ResolveSeries(ctx context.Context, item domain.PlaylistItem) (*domain.Playlist, error) {
	switch {
	case item.IsSeries():
		return s.GetPlaylist(ctx, item.MediaID)
	case item.SeriesID != "":
		return s.GetPlaylist(ctx, item.SeriesID)
	default:
		return nil, nil
	}
}

// GetMediaByIDs loads several items, preserving order. Items that no
// longer exist are skipped.
func (s *Service) GetMediaByIDs(ctx context.Context, ids []string) ([]domain.PlaylistItem, error) {
	results := make([]*domain.PlaylistItem, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(hydrateConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			item, err := s.GetMedia(ctx, id)
			if errors.Is(err, domain.ErrItemNotFound) {
				s.logger.Debug("skipping missing media", "mediaID", id)
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to load media", "error", err, "count", len(ids))
		return nil, err
	}

	items := make([]domain.PlaylistItem, 0, len(ids))
	for _, item := range results {
		if item != nil {
			items = append(items, *item)
		}
	}
	return items, nil
}
