package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/flixdeck/internal/model"
	"github.com/user/flixdeck/internal/repository"
)

func newTestRegistry(t *testing.T, size int) *SessionRegistry {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"id":1,"media_type":"tv","name":"Dark"}]}`))
	}))
	t.Cleanup(srv.Close)

	client := NewTMDBClient(TMDBOptions{BaseURL: srv.URL, Timeout: time.Second, OriginalsNetworkID: 213})
	registry, err := NewSessionRegistry(client, newMemoryPersister(), RegistryOptions{
		Size:             size,
		Categories:       []model.Category{model.CategoryOriginals, model.CategoryTrending},
		FeaturedInterval: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(registry.Close)
	return registry
}

func TestRegistryReturnsOneSessionPerUser(t *testing.T) {
	registry := newTestRegistry(t, 10)
	ctx := context.Background()

	a1, err := registry.Get(ctx, model.SessionUser{ID: "a"})
	require.NoError(t, err)
	a2, err := registry.Get(ctx, model.SessionUser{ID: "a"})
	require.NoError(t, err)
	b, err := registry.Get(ctx, model.SessionUser{ID: "b"})
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.Equal(t, "b", b.Watchlist().UserID())
	assert.Equal(t, 2, registry.Len())

	_, err = registry.Get(ctx, model.SessionUser{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRegistryLoadsWatchlistAfterClientDisconnect(t *testing.T) {
	fileStore, err := repository.NewFileStore(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	persister := repository.NewWatchlistRepository(fileStore)
	require.NoError(t, persister.Save(context.Background(), "a", []model.WatchlistEntry{
		model.NewWatchlistEntry(movie(1, "Heat"), fixedTime),
	}))
	registry, err := NewSessionRegistry(NewTMDBClient(TMDBOptions{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}), persister, RegistryOptions{
		Size:             10,
		Categories:       []model.Category{model.CategoryTrending},
		FeaturedInterval: time.Hour,
	})
	require.NoError(t, err)
	defer registry.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := registry.Get(ctx, model.SessionUser{ID: "a"})
	require.NoError(t, err)

	assert.NoError(t, s.Watchlist().HydrationError())
	assert.True(t, s.IsInWatchlist(model.KindMovie, 1))
}

func TestRegistrySessionsAggregateEndToEnd(t *testing.T) {
	registry := newTestRegistry(t, 10)
	s, err := registry.Get(context.Background(), model.SessionUser{ID: "a"})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	snap := s.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, model.CategoryOriginals, snap.Featured.Source)
	assert.Equal(t, "Dark", snap.Featured.Item.Title)
}

func TestRegistryRemoveAndEvictCloseSessions(t *testing.T) {
	registry := newTestRegistry(t, 1)
	ctx := context.Background()

	a, err := registry.Get(ctx, model.SessionUser{ID: "a"})
	require.NoError(t, err)
	_, err = registry.Get(ctx, model.SessionUser{ID: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, registry.Len())

	// 被淘汰的会话异步关闭
	assert.Eventually(t, func() bool {
		return errors.Is(a.Start(ctx), ErrSuperseded)
	}, time.Second, 5*time.Millisecond)

	again, err := registry.Get(ctx, model.SessionUser{ID: "a"})
	require.NoError(t, err)
	assert.NotSame(t, a, again)

	registry.Remove("a")
	assert.Equal(t, 0, registry.Len())
}
