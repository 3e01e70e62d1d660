package app

import (
	"github.com/jwplayer/ott-web-app-sub004/internal/domain"
	"github.com/jwplayer/ott-web-app-sub004/internal/screens"
)

// Screen names
const (
	ScreenMovie        = "media-movie"
	ScreenSeries       = "media-series"
	ScreenEpisode      = "media-episode"
	ScreenLive         = "media-live"
	ScreenPlaylistGrid = "playlist-grid"
	ScreenLiveChannels = "playlist-live-channels"
	ScreenHub          = "playlist-hub"
)

// NewMediaScreens returns the dispatch map for single media items.
// Anything unrecognized renders as a movie.
func NewMediaScreens() *screens.Map[domain.PlaylistItem, string] {
	m := screens.New[domain.PlaylistItem, string]()
	m.RegisterByContentType(ScreenSeries, domain.ContentTypeSeries)
	m.Register(ScreenEpisode, func(item domain.PlaylistItem) bool { return item.IsEpisode() })
	m.Register(ScreenLive, func(item domain.PlaylistItem) bool { return item.IsLive() })
	m.RegisterDefault(ScreenMovie)
	return m
}

// NewPlaylistScreens returns the dispatch map for playlists
func NewPlaylistScreens() *screens.Map[domain.Playlist, string] {
	m := screens.New[domain.Playlist, string]()
	m.RegisterByContentType(ScreenLiveChannels, domain.ContentTypeLiveChannel)
	m.RegisterByContentType(ScreenHub, domain.ContentTypeHub)
	m.RegisterDefault(ScreenPlaylistGrid)
	return m
}
