package domain

import (
	"context"
)

// AccountRepository provides the remote copy of the personal shelves
type AccountRepository interface {
	// GetExternalData returns the shelves stored on the customer's account
	GetExternalData(ctx context.Context) (ExternalData, error)

	// UpdatePersonalShelves replaces both shelves on the customer's account.
	// Calls are full-list writes, so repeating one is harmless.
	UpdatePersonalShelves(ctx context.Context, favorites []FavoriteItem, history []WatchHistoryItem) error
}

// MediaRepository provides catalog lookups
type MediaRepository interface {
	// GetMedia returns a single media item by id
	GetMedia(ctx context.Context, mediaID string) (*PlaylistItem, error)

	// GetPlaylist returns a playlist (or series) feed by id
	GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error)

	// GetEntitlement returns the current customer's access to a media item
	GetEntitlement(ctx context.Context, mediaID string) (*Entitlement, error)
}

// Authenticator reports whether a customer is currently signed in
type Authenticator interface {
	IsAuthenticated() bool
}
