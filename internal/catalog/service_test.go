package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwplayer/ott-web-app-sub004/internal/domain"
)

// fakeRepo counts calls and can hold them until released
type fakeRepo struct {
	mediaCalls    atomic.Int32
	playlistCalls atomic.Int32
	release       chan struct{}
	failMedia     error
	entitlement   domain.Entitlement
}

func (f *fakeRepo) wait() {
	if f.release != nil {
		<-f.release
	}
}

func (f *fakeRepo) GetMedia(ctx context.Context, mediaID string) (*domain.PlaylistItem, error) {
	f.mediaCalls.Add(1)
	f.wait()
	if f.failMedia != nil {
		return nil, f.failMedia
	}
	if mediaID == "gone" {
		return nil, domain.ErrItemNotFound
	}
	return &domain.PlaylistItem{MediaID: mediaID, Title: "Title " + mediaID}, nil
}

func (f *fakeRepo) GetPlaylist(ctx context.Context, playlistID string) (*domain.Playlist, error) {
	f.playlistCalls.Add(1)
	f.wait()
	return &domain.Playlist{FeedID: playlistID}, nil
}

func (f *fakeRepo) GetEntitlement(ctx context.Context, mediaID string) (*domain.Entitlement, error) {
	e := f.entitlement
	e.MediaID = mediaID
	return &e, nil
}

func TestService_GetMediaCoalesces(t *testing.T) {
	repo := &fakeRepo{release: make(chan struct{})}
	svc := NewService(repo, nil)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			item, err := svc.GetMedia(context.Background(), "m1")
			assert.NoError(t, err)
			assert.Equal(t, "m1", item.MediaID)
		}()
	}

	require.Eventually(t, func() bool { return svc.media.InFlight("m1") == n }, time.Second, time.Millisecond)
	close(repo.release)
	wg.Wait()

	assert.Equal(t, int32(1), repo.mediaCalls.Load())
}

func TestService_ResolveSeries(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, nil)
	ctx := context.Background()

	p, err := svc.ResolveSeries(ctx, domain.PlaylistItem{MediaID: "s1", ContentType: "Series"})
	require.NoError(t, err)
	assert.Equal(t, "s1", p.FeedID)

	p, err = svc.ResolveSeries(ctx, domain.PlaylistItem{MediaID: "e1", ContentType: "episode", SeriesID: "s2"})
	require.NoError(t, err)
	assert.Equal(t, "s2", p.FeedID)

	p, err = svc.ResolveSeries(ctx, domain.PlaylistItem{MediaID: "m1", ContentType: "movie"})
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, int32(2), repo.playlistCalls.Load())
}

func TestService_CheckEntitlement(t *testing.T) {
	repo := &fakeRepo{entitlement: domain.Entitlement{Granted: true, ExpiresAt: 2000}}
	svc := NewService(repo, nil)

	svc.now = func() time.Time { return time.Unix(1000, 0) }
	ok, err := svc.CheckEntitlement(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, ok)

	svc.now = func() time.Time { return time.Unix(3000, 0) }
	ok, err = svc.CheckEntitlement(context.Background(), "m1")
	require.NoError(t, err)
	assert.False(t, ok, "expired entitlement")
}

func TestService_GetMediaByIDs(t *testing.T) {
	svc := NewService(&fakeRepo{}, nil)

	items, err := svc.GetMediaByIDs(context.Background(), []string{"a", "gone", "b", "c"})
	require.NoError(t, err)

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.MediaID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestService_GetMediaByIDsFails(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(&fakeRepo{failMedia: boom}, nil)

	_, err := svc.GetMediaByIDs(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, boom)
}
