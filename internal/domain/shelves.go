package domain

// FavoriteItem is the persisted shape of a favorited media item.
// Only identifying fields are stored; the full media object is not.
type FavoriteItem struct {
	MediaID  string  `json:"mediaid"`
	Title    string  `json:"title"`
	Tags     string  `json:"tags,omitempty"`
	Duration float64 `json:"duration"`
}

// NewFavoriteItem builds a FavoriteItem from a media item
func NewFavoriteItem(item PlaylistItem) FavoriteItem {
	return FavoriteItem{
		MediaID:  item.MediaID,
		Title:    item.Title,
		Tags:     item.Tags,
		Duration: item.Duration,
	}
}

func (f FavoriteItem) GetID() string    { return f.MediaID }
func (f FavoriteItem) GetTitle() string { return f.Title }

// WatchHistoryItem is the persisted shape of a continue-watching entry.
// Progress is the watched fraction in [0, 1].
type WatchHistoryItem struct {
	MediaID  string  `json:"mediaid"`
	Title    string  `json:"title"`
	Tags     string  `json:"tags,omitempty"`
	Duration float64 `json:"duration"`
	Progress float64 `json:"progress"`
	SeriesID string  `json:"seriesId,omitempty"`
}

// NewWatchHistoryItem builds a WatchHistoryItem from a media item and a progress fraction
func NewWatchHistoryItem(item PlaylistItem, progress float64) WatchHistoryItem {
	return WatchHistoryItem{
		MediaID:  item.MediaID,
		Title:    item.Title,
		Tags:     item.Tags,
		Duration: item.Duration,
		Progress: progress,
		SeriesID: item.SeriesID,
	}
}

func (w WatchHistoryItem) GetID() string    { return w.MediaID }
func (w WatchHistoryItem) GetTitle() string { return w.Title }

// Position returns the playback position in seconds
func (w WatchHistoryItem) Position() float64 {
	return w.Progress * w.Duration
}

// ExternalData is the server-confirmed copy of the personal shelves
// stored on the customer's account.
type ExternalData struct {
	Favorites []FavoriteItem     `json:"favorites,omitempty"`
	History   []WatchHistoryItem `json:"history,omitempty"`
}

// Features are the per-deployment switches for the personal shelves
type Features struct {
	FavoritesEnabled        bool
	ContinueWatchingEnabled bool
}
