package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlaylistItem_HasTag(t *testing.T) {
	item := PlaylistItem{Tags: "drama, Featured ,kids"}

	assert.True(t, item.HasTag("drama"))
	assert.True(t, item.HasTag("featured"), "tags match case-insensitively after trimming")
	assert.True(t, item.HasTag("kids"))
	assert.False(t, item.HasTag("kid"))
	assert.False(t, PlaylistItem{}.HasTag("drama"))
}

func TestPlaylistItem_RunTime(t *testing.T) {
	assert.Equal(t, 90*time.Minute, PlaylistItem{Duration: 5400}.RunTime())
	assert.Equal(t, 1500*time.Millisecond, PlaylistItem{Duration: 1.5}.RunTime())
	assert.Zero(t, PlaylistItem{ContentType: ContentTypeLiveChannel}.RunTime())
}

func TestPlaylistItem_EpisodeCode(t *testing.T) {
	tests := []struct {
		name string
		item PlaylistItem
		want string
	}{
		{"episode", PlaylistItem{ContentType: ContentTypeEpisode, SeasonNumber: 1, EpisodeNumber: 5}, "S01E05"},
		{"series child", PlaylistItem{SeriesID: "s1", SeasonNumber: 12, EpisodeNumber: 3}, "S12E03"},
		{"special", PlaylistItem{ContentType: ContentTypeEpisode, EpisodeNumber: 2}, "S00E02"},
		{"no number", PlaylistItem{ContentType: ContentTypeEpisode, SeasonNumber: 1}, ""},
		{"movie", PlaylistItem{ContentType: ContentTypeMovie, EpisodeNumber: 4}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.EpisodeCode())
		})
	}
}

func TestEntitlement_Active(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	assert.True(t, Entitlement{Granted: true}.Active(now))
	assert.True(t, Entitlement{Granted: true, ExpiresAt: now.Unix() + 1}.Active(now))
	assert.False(t, Entitlement{Granted: true, ExpiresAt: now.Unix()}.Active(now))
	assert.False(t, Entitlement{ExpiresAt: now.Unix() + 60}.Active(now))
}
