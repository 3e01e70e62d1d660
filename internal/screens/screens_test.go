package screens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwplayer/ott-web-app-sub004/internal/domain"
)

func item(contentType string) domain.PlaylistItem {
	return domain.PlaylistItem{MediaID: "m", ContentType: contentType}
}

func TestMap_FirstMatchWins(t *testing.T) {
	m := New[domain.PlaylistItem, string]()
	m.Register("first", func(domain.PlaylistItem) bool { return true })
	m.Register("second", func(domain.PlaylistItem) bool { return true })
	m.RegisterDefault("default")

	got, err := m.GetScreen(item("movie"))
	require.NoError(t, err)
	assert.Equal(t, "first", got)
}

func TestMap_RegisterByContentTypeIgnoresCase(t *testing.T) {
	m := New[domain.PlaylistItem, string]()
	m.RegisterByContentType("series", "Series")
	m.RegisterByContentType("live", "liveChannel", "LIVEEVENT")
	m.RegisterDefault("movie")

	cases := map[string]string{
		"SERIES":      "series",
		"series":      "series",
		"livechannel": "live",
		"liveEvent":   "live",
		"episode":     "movie",
		"":            "movie",
	}
	for contentType, want := range cases {
		got, err := m.GetScreen(item(contentType))
		require.NoError(t, err)
		assert.Equal(t, want, got, "content type %q", contentType)
	}
}

func TestMap_DefaultLastWriteWins(t *testing.T) {
	m := New[domain.PlaylistItem, string]()
	m.RegisterDefault("a")
	m.RegisterDefault("b")

	got, err := m.GetScreen(item("movie"))
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}

func TestMap_MissingDefaultIsAnError(t *testing.T) {
	m := New[domain.PlaylistItem, string]()

	_, err := m.GetScreen(item("movie"))
	assert.ErrorIs(t, err, ErrNoDefaultScreen)
	assert.Panics(t, func() { m.MustGetScreen(item("movie")) })

	m.RegisterByContentType("series", "series")
	assert.Equal(t, "series", m.MustGetScreen(item("series")))
	_, err = m.GetScreen(item("movie"))
	assert.ErrorIs(t, err, ErrNoDefaultScreen)
}

func TestMap_FunctionComponents(t *testing.T) {
	type render func(domain.Playlist) string

	m := New[domain.Playlist, render]()
	m.RegisterByContentType(func(p domain.Playlist) string { return "grid:" + p.FeedID }, "playlist")
	m.RegisterDefault(func(p domain.Playlist) string { return "shelf:" + p.FeedID })

	p := domain.Playlist{FeedID: "f1", ContentType: "Playlist"}
	assert.Equal(t, "grid:f1", m.MustGetScreen(p)(p))
}
