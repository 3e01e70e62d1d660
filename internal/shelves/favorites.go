package shelves

import (
	"fmt"
	"slices"

	"github.com/jwplayer/ott-web-app-sub004/internal/domain"
	"github.com/jwplayer/ott-web-app-sub004/internal/entity"
)

// Favorites is the favorites shelf
type Favorites struct {
	shelves *Shelves
	store   *entity.Store[domain.FavoriteItem]
}

func (f *Favorites) enabled() bool {
	return f.shelves.opts.Features.FavoritesEnabled
}

// LimitWarning is the message shown when the favorites limit is reached
func (f *Favorites) LimitWarning() string {
	return fmt.Sprintf("Maximum amount of favorite videos exceeded. You can only add up to %d favorite videos. Please delete one and repeat the operation.",
		f.shelves.opts.MaxFavorites)
}

func (f *Favorites) HasItem(mediaID string) bool {
	return f.store.Has(mediaID)
}

func (f *Favorites) GetItem(mediaID string) (domain.FavoriteItem, bool) {
	return f.store.Find(mediaID)
}

// SaveItem adds item to the front of the shelf. At the limit the item is
// not added and a warning is set instead.
func (f *Favorites) SaveItem(item domain.PlaylistItem) {
	if !f.enabled() || item.MediaID == "" {
		return
	}

	limitReached := false
	added := f.store.MutateIf(func(items []domain.FavoriteItem) ([]domain.FavoriteItem, bool) {
		if slices.ContainsFunc(items, func(it domain.FavoriteItem) bool { return it.MediaID == item.MediaID }) {
			return nil, false
		}
		if len(items) >= f.shelves.opts.MaxFavorites {
			limitReached = true
			return nil, false
		}
		return append([]domain.FavoriteItem{domain.NewFavoriteItem(item)}, items...), true
	})

	if limitReached {
		f.store.SetWarning(f.LimitWarning())
		return
	}
	if added {
		f.shelves.persist(kindFavorites)
	}
}

func (f *Favorites) RemoveItem(mediaID string) {
	if !f.enabled() {
		return
	}
	if f.store.Remove(mediaID) {
		f.shelves.persist(kindFavorites)
	}
}

// ToggleFavorite removes item when present and saves it otherwise
func (f *Favorites) ToggleFavorite(item domain.PlaylistItem) {
	if f.HasItem(item.MediaID) {
		f.RemoveItem(item.MediaID)
		return
	}
	f.SaveItem(item)
}

// Clear empties the shelf and persists the empty list
func (f *Favorites) Clear() {
	if !f.enabled() {
		return
	}
	f.store.Clear()
	f.shelves.persist(kindFavorites)
}

func (f *Favorites) ClearWarning() {
	f.store.ClearWarning()
}

func (f *Favorites) Len() int { return f.store.Len() }

func (f *Favorites) Items() []domain.FavoriteItem {
	return f.store.Items()
}

func (f *Favorites) Snapshot() entity.State[domain.FavoriteItem] {
	return f.store.Snapshot()
}

func (f *Favorites) Subscribe(fn func(entity.State[domain.FavoriteItem])) func() {
	return f.store.Subscribe(fn)
}

func (f *Favorites) Search(query string) []domain.FavoriteItem {
	return f.store.Search(query)
}
