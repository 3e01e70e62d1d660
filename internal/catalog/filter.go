package catalog

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/jwplayer/ott-web-app-sub004/internal/domain"
)

// titleIndex implements fuzzy.Source over lower-cased playlist titles
type titleIndex struct {
	items       []domain.PlaylistItem
	lowerTitles []string
}

func (idx *titleIndex) String(i int) string { return idx.lowerTitles[i] }
func (idx *titleIndex) Len() int            { return len(idx.items) }

// FilterPlaylist returns the items whose title fuzzy-matches query, best
// match first. An empty query returns every item in feed order.
func FilterPlaylist(playlist *domain.Playlist, query string) []domain.PlaylistItem {
	if playlist == nil {
		return nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return append([]domain.PlaylistItem(nil), playlist.Playlist...)
	}

	idx := &titleIndex{
		items:       playlist.Playlist,
		lowerTitles: make([]string, len(playlist.Playlist)),
	}
	for i, item := range playlist.Playlist {
		idx.lowerTitles[i] = strings.ToLower(item.Title)
	}

	matches := fuzzy.FindFrom(strings.ToLower(query), idx)
	out := make([]domain.PlaylistItem, len(matches))
	for i, m := range matches {
		out[i] = idx.items[m.Index]
	}
	return out
}
