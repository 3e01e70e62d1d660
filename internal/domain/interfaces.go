package domain

// ShelfItem is the interface shared by every record kept on a personal shelf.
// Domain entities (FavoriteItem, WatchHistoryItem) implement it with value receivers.
type ShelfItem interface {
	// GetID returns the unique media identifier; stores hold at most one item per id
	GetID() string

	// GetTitle returns the display title, used for search
	GetTitle() string
}

// ContentTyped is implemented by anything that can be routed by content type
type ContentTyped interface {
	GetContentType() string
}
