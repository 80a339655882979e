package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/flixdeck/internal/model"
	"github.com/user/flixdeck/internal/utils"
)

func TestDetailCacheCachesSuccess(t *testing.T) {
	fetcher := &fakeDetails{}
	cache := NewDetailCache(fetcher, nil, time.Second)
	ctx := context.Background()

	first, err := cache.Get(ctx, model.KindMovie, 1)
	require.NoError(t, err)
	second, err := cache.Get(ctx, model.KindMovie, 1)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	peeked, ok := cache.Peek(model.KindMovie, 1)
	assert.True(t, ok)
	assert.Same(t, first, peeked)
}

func TestDetailCacheKeysIncludeKind(t *testing.T) {
	fetcher := &fakeDetails{}
	cache := NewDetailCache(fetcher, nil, time.Second)
	ctx := context.Background()

	m, err := cache.Get(ctx, model.KindMovie, 7)
	require.NoError(t, err)
	s, err := cache.Get(ctx, model.KindSeries, 7)
	require.NoError(t, err)

	assert.Equal(t, model.KindMovie, m.Key.Kind)
	assert.Equal(t, model.KindSeries, s.Key.Kind)
	assert.Equal(t, int32(2), fetcher.calls.Load())
	assert.Equal(t, 2, cache.Len())
}

func TestDetailCacheDoesNotCacheFailures(t *testing.T) {
	fetcher := &fakeDetails{}
	key := model.ItemKey{Kind: model.KindMovie, ID: 3}
	fetcher.failWith(key, &RemoteError{Status: 404, Message: "not found"})
	cache := NewDetailCache(fetcher, nil, time.Second)
	ctx := context.Background()

	_, err := cache.Get(ctx, key.Kind, key.ID)
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, 404, remoteErr.Status)
	assert.Equal(t, 0, cache.Len())

	fetcher.failWith(key, nil)
	record, err := cache.Get(ctx, key.Kind, key.ID)
	require.NoError(t, err)
	assert.Equal(t, key, record.Key)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestDetailCacheCoalescesConcurrentRequests(t *testing.T) {
	fetcher := &fakeDetails{release: make(chan struct{}), started: make(chan struct{}, 1)}
	cache := NewDetailCache(fetcher, nil, time.Second)

	const callers = 10
	var wg sync.WaitGroup
	results := make([]*model.DetailRecord, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record, err := cache.Get(context.Background(), model.KindSeries, 42)
			assert.NoError(t, err)
			results[i] = record
		}(i)
	}

	<-fetcher.started
	time.Sleep(10 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestDetailCacheCallerCancelDoesNotAbortSharedFetch(t *testing.T) {
	fetcher := &fakeDetails{release: make(chan struct{}), started: make(chan struct{}, 1)}
	cache := NewDetailCache(fetcher, nil, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := cache.Get(ctx, model.KindMovie, 5)
		errCh <- err
	}()
	<-fetcher.started

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(fetcher.release)
	assert.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, time.Millisecond)

	record, err := cache.Get(context.Background(), model.KindMovie, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, record.Key.ID)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestDetailCacheInvalidateDiscardsInFlightResult(t *testing.T) {
	fetcher := &fakeDetails{release: make(chan struct{}), started: make(chan struct{}, 1)}
	cache := NewDetailCache(fetcher, nil, time.Second)

	done := make(chan *model.DetailRecord, 1)
	go func() {
		record, _ := cache.Get(context.Background(), model.KindMovie, 9)
		done <- record
	}()
	<-fetcher.started

	cache.Invalidate()
	close(fetcher.release)

	// 调用方仍拿到结果，但不会写回已清空的缓存
	require.NotNil(t, <-done)
	assert.Equal(t, 0, cache.Len())
}

func TestDetailCacheWithLRUStore(t *testing.T) {
	fetcher := &fakeDetails{}
	cache := NewDetailCache(fetcher, utils.NewLRUCache[*model.DetailRecord](2, 0), time.Second)
	ctx := context.Background()

	for id := 1; id <= 3; id++ {
		_, err := cache.Get(ctx, model.KindMovie, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())

	_, ok := cache.Peek(model.KindMovie, 1)
	assert.False(t, ok)
}
