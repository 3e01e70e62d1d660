package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwplayer/ott-web-app-sub004/internal/adapter"
	"github.com/jwplayer/ott-web-app-sub004/internal/broadcast"
	"github.com/jwplayer/ott-web-app-sub004/internal/domain"
	"github.com/jwplayer/ott-web-app-sub004/internal/store"
)

type fakeAccount struct {
	mu      sync.Mutex
	data    domain.ExternalData
	updates int
}

func (f *fakeAccount) GetExternalData(ctx context.Context) (domain.ExternalData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.ExternalData{
		Favorites: append([]domain.FavoriteItem(nil), f.data.Favorites...),
		History:   append([]domain.WatchHistoryItem(nil), f.data.History...),
	}, nil
}

func (f *fakeAccount) UpdatePersonalShelves(ctx context.Context, favorites []domain.FavoriteItem, history []domain.WatchHistoryItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = domain.ExternalData{Favorites: favorites, History: history}
	f.updates++
	return nil
}

func (f *fakeAccount) favoriteIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.data.Favorites))
	for i, item := range f.data.Favorites {
		ids[i] = item.MediaID
	}
	return ids
}

type fakeMedia struct{}

func (fakeMedia) GetMedia(ctx context.Context, mediaID string) (*domain.PlaylistItem, error) {
	return &domain.PlaylistItem{MediaID: mediaID, Title: "Media " + mediaID, ContentType: domain.ContentTypeMovie}, nil
}

func (fakeMedia) GetPlaylist(ctx context.Context, playlistID string) (*domain.Playlist, error) {
	return &domain.Playlist{FeedID: playlistID}, nil
}

func (fakeMedia) GetEntitlement(ctx context.Context, mediaID string) (*domain.Entitlement, error) {
	return &domain.Entitlement{MediaID: mediaID, Granted: true}, nil
}

func testConfig() *adapter.Config {
	cfg := adapter.DefaultConfig()
	cfg.App.ID = "test-app"
	cfg.Storage.Backend = adapter.StorageMemory
	cfg.Workers.PoolSize = 4
	cfg.Shelves.SyncTimeout = 2 * time.Second
	return cfg
}

func testToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "customer-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newTestApp(t *testing.T, backend store.Backend, transport broadcast.Transport, accounts domain.AccountRepository) *App {
	t.Helper()
	a, err := New(testConfig(), adapter.NullLogger(),
		WithBackend(backend),
		WithTransport(transport),
		WithRepositories(accounts, fakeMedia{}),
	)
	require.NoError(t, err)
	a.Init(context.Background())
	return a
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.App.Integrations.Cleeng.PublisherID = "pub"
	cfg.App.Integrations.InPlayer.ClientID = "client"

	_, err := New(cfg, adapter.NullLogger())
	assert.ErrorIs(t, err, adapter.ErrConflictingIntegrations)
}

func TestNewFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Broadcast.Transport = adapter.TransportNone

	a, err := New(cfg, adapter.NullLogger())
	require.NoError(t, err)
	a.Init(context.Background())

	assert.False(t, a.Session.IsAuthenticated())
	assert.Equal(t, 0, a.Shelves.Favorites.Len())
	require.NoError(t, a.Close())
}

func TestShelvesSurviveRestart(t *testing.T) {
	backend := store.NewMemoryBackend()
	item := domain.PlaylistItem{MediaID: "m1", Title: "First", Duration: 100}

	first := newTestApp(t, backend, broadcast.NewHub(), &fakeAccount{})
	first.Shelves.Favorites.SaveItem(item)
	first.Shelves.History.SaveItem(item, 0.5)
	require.NoError(t, first.Close())

	second := newTestApp(t, backend, broadcast.NewHub(), &fakeAccount{})
	defer second.Close()

	assert.True(t, second.Shelves.Favorites.HasItem("m1"))
	progress, ok := second.Shelves.History.Progress("m1")
	require.True(t, ok)
	assert.InDelta(t, 0.5, progress, 1e-9)
}

func TestLoginAndLogoutReachPeer(t *testing.T) {
	backend := store.NewMemoryBackend()
	hub := broadcast.NewHub()
	remote := &fakeAccount{data: domain.ExternalData{
		Favorites: []domain.FavoriteItem{{MediaID: "b", Title: "B"}},
	}}

	first := newTestApp(t, backend, hub, remote)
	defer first.Close()
	second := newTestApp(t, backend, hub, remote)
	defer second.Close()

	require.False(t, second.Session.IsAuthenticated())

	ctx := context.Background()
	require.NoError(t, first.Account.Login(ctx, testToken(t), domain.Customer{ID: "customer-1"}))
	assert.True(t, first.Shelves.Favorites.HasItem("b"))

	assert.Eventually(t, func() bool {
		return second.Session.IsAuthenticated() && second.Shelves.Favorites.HasItem("b")
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, first.Account.Logout(ctx))
	assert.Eventually(t, func() bool {
		return !second.Session.IsAuthenticated() && second.Shelves.Favorites.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseFlushesAccountWrites(t *testing.T) {
	remote := &fakeAccount{}
	a := newTestApp(t, store.NewMemoryBackend(), broadcast.NewHub(), remote)

	ctx := context.Background()
	require.NoError(t, a.Account.Login(ctx, testToken(t), domain.Customer{ID: "customer-1"}))
	a.Shelves.Favorites.SaveItem(domain.PlaylistItem{MediaID: "x", Title: "X"})
	require.NoError(t, a.Close())

	assert.Equal(t, []string{"x"}, remote.favoriteIDs())
}

func TestCatalogUsesMediaRepository(t *testing.T) {
	a := newTestApp(t, store.NewMemoryBackend(), nil, &fakeAccount{})
	defer a.Close()

	item, err := a.Catalog.GetMedia(context.Background(), "m9")
	require.NoError(t, err)
	assert.Equal(t, "Media m9", item.Title)
	assert.Equal(t, ScreenMovie, a.MediaScreens.MustGetScreen(*item))
}
