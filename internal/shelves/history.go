package shelves

import (
	"math"

	"github.com/jwplayer/ott-web-app-sub004/internal/domain"
	"github.com/jwplayer/ott-web-app-sub004/internal/entity"
)

// WatchHistory is the continue-watching shelf
type WatchHistory struct {
	shelves *Shelves
	store   *entity.Store[domain.WatchHistoryItem]
}

func (w *WatchHistory) enabled() bool {
	return w.shelves.opts.Features.ContinueWatchingEnabled
}

func (w *WatchHistory) HasItem(mediaID string) bool {
	return w.store.Has(mediaID)
}

func (w *WatchHistory) GetItem(mediaID string) (domain.WatchHistoryItem, bool) {
	return w.store.Find(mediaID)
}

// SaveItem records the playback progress of item as the most recent entry.
// Progress is the watched fraction; values above 1 are clamped and values
// at or below 0 are ignored.
func (w *WatchHistory) SaveItem(item domain.PlaylistItem, progress float64) {
	if !w.enabled() || item.MediaID == "" {
		return
	}
	if math.IsNaN(progress) || progress <= 0 {
		return
	}
	progress = math.Min(progress, 1)

	entry := domain.NewWatchHistoryItem(item, progress)
	limit := w.shelves.opts.MaxHistory
	w.store.Mutate(func(items []domain.WatchHistoryItem) []domain.WatchHistoryItem {
		items = append([]domain.WatchHistoryItem{entry}, items...)
		items = entity.Dedup(items)
		if len(items) > limit {
			items = items[:limit]
		}
		return items
	})
	w.shelves.persist(kindHistory)
}

func (w *WatchHistory) RemoveItem(mediaID string) {
	if !w.enabled() {
		return
	}
	if w.store.Remove(mediaID) {
		w.shelves.persist(kindHistory)
	}
}

// Clear empties the shelf and persists the empty list
func (w *WatchHistory) Clear() {
	if !w.enabled() {
		return
	}
	w.store.Clear()
	w.shelves.persist(kindHistory)
}

// Progress returns the stored progress fraction for mediaID
func (w *WatchHistory) Progress(mediaID string) (float64, bool) {
	item, ok := w.store.Find(mediaID)
	if !ok {
		return 0, false
	}
	return item.Progress, true
}

// Resumable reports whether progress lies strictly inside the resume bounds
func (w *WatchHistory) Resumable(progress float64) bool {
	o := w.shelves.opts
	return progress > o.ProgressMin && progress < o.ProgressMax
}

// StartTime returns the offset in seconds to resume mediaID from. Items
// that are barely started or practically finished start from 0.
func (w *WatchHistory) StartTime(mediaID string) float64 {
	item, ok := w.store.Find(mediaID)
	if !ok || !w.Resumable(item.Progress) {
		return 0
	}
	return item.Position()
}

// ContinueWatching returns the resumable items, newest first, keeping only
// the most recent episode of each series.
func (w *WatchHistory) ContinueWatching() []domain.WatchHistoryItem {
	items := w.store.Items()
	seenSeries := make(map[string]struct{})
	out := make([]domain.WatchHistoryItem, 0, len(items))
	for _, it := range items {
		if !w.Resumable(it.Progress) {
			continue
		}
		if it.SeriesID != "" {
			if _, ok := seenSeries[it.SeriesID]; ok {
				continue
			}
			seenSeries[it.SeriesID] = struct{}{}
		}
		out = append(out, it)
	}
	return out
}

func (w *WatchHistory) Len() int { return w.store.Len() }

func (w *WatchHistory) Items() []domain.WatchHistoryItem {
	return w.store.Items()
}

func (w *WatchHistory) Snapshot() entity.State[domain.WatchHistoryItem] {
	return w.store.Snapshot()
}

func (w *WatchHistory) Subscribe(fn func(entity.State[domain.WatchHistoryItem])) func() {
	return w.store.Subscribe(fn)
}

func (w *WatchHistory) Search(query string) []domain.WatchHistoryItem {
	return w.store.Search(query)
}
