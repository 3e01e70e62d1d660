package domain

import (
	"fmt"
	"strings"
	"time"
)

// Content types carried in the delivery API's contentType field.
// Values are compared lower-cased.
const (
	ContentTypeMovie       = "movie"
	ContentTypeEpisode     = "episode"
	ContentTypeSeries      = "series"
	ContentTypeLiveChannel = "livechannel"
	ContentTypeLiveEvent   = "liveevent"
	ContentTypeHub         = "hub"
)

// PlaylistItem represents a media item as returned by the delivery API
type PlaylistItem struct {
	MediaID     string  `json:"mediaid"`               // Unique media identifier
	Title       string  `json:"title"`                 // Display title
	Description string  `json:"description,omitempty"` // Synopsis
	Tags        string  `json:"tags,omitempty"`        // Comma separated tags
	Duration    float64 `json:"duration"`              // Runtime in seconds (0 for live)
	ContentType string  `json:"contentType,omitempty"` // movie, episode, series, ...
	Image       string  `json:"image,omitempty"`       // Poster URL
	PubDate     int64   `json:"pubdate,omitempty"`     // Unix timestamp of publication

	// Episode-specific fields (empty for movies)
	SeriesID      string `json:"seriesId,omitempty"`      // Parent series media id
	SeasonNumber  int    `json:"seasonNumber,omitempty"`  // Season number (0 = specials)
	EpisodeNumber int    `json:"episodeNumber,omitempty"` // Episode number within season
}

// GetContentType returns the content type used for screen dispatch
func (p PlaylistItem) GetContentType() string { return p.ContentType }

// IsSeries reports whether the item is a series container
func (p PlaylistItem) IsSeries() bool {
	return strings.EqualFold(p.ContentType, ContentTypeSeries)
}

// IsEpisode reports whether the item belongs to a series
func (p PlaylistItem) IsEpisode() bool {
	return strings.EqualFold(p.ContentType, ContentTypeEpisode) || p.SeriesID != ""
}

// IsLive reports whether the item is a live channel or live event
func (p PlaylistItem) IsLive() bool {
	return strings.EqualFold(p.ContentType, ContentTypeLiveChannel) ||
		strings.EqualFold(p.ContentType, ContentTypeLiveEvent)
}

// HasTag reports whether tag appears in the item's comma separated tag list
func (p PlaylistItem) HasTag(tag string) bool {
	for _, t := range strings.Split(p.Tags, ",") {
		if strings.EqualFold(strings.TrimSpace(t), tag) {
			return true
		}
	}
	return false
}

// EpisodeCode returns the formatted episode code (e.g., "S01E05")
func (p PlaylistItem) EpisodeCode() string {
	if !p.IsEpisode() || p.EpisodeNumber == 0 {
		return ""
	}
	return fmt.Sprintf("S%02dE%02d", p.SeasonNumber, p.EpisodeNumber)
}

// RunTime returns the duration as a time.Duration
func (p PlaylistItem) RunTime() time.Duration {
	return time.Duration(p.Duration * float64(time.Second))
}

// Playlist represents a feed of media items
type Playlist struct {
	FeedID      string         `json:"feedid"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	ContentType string         `json:"contentType,omitempty"`
	Playlist    []PlaylistItem `json:"playlist"`
}

// GetContentType returns the content type used for screen dispatch
func (p Playlist) GetContentType() string { return p.ContentType }

// Customer is the authenticated account holder
type Customer struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Entitlement describes whether the current customer may play a media item
type Entitlement struct {
	MediaID   string `json:"mediaid"`
	Granted   bool   `json:"granted"`
	ExpiresAt int64  `json:"expiresAt,omitempty"` // Unix timestamp, 0 = no expiry
}

// Active reports whether the entitlement is granted and not expired at now
func (e Entitlement) Active(now time.Time) bool {
	if !e.Granted {
		return false
	}
	return e.ExpiresAt == 0 || now.Unix() < e.ExpiresAt
}
