package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/flixdeck/internal/model"
)

func strPtr(s string) *string { return &s }

var fixedTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func movie(id int, title string) model.CatalogItem {
	return model.CatalogItem{ID: id, Kind: model.KindMovie, Title: title, VoteAverage: 7, GenreIDs: []int{28}}
}

func series(id int, title string) model.CatalogItem {
	return model.CatalogItem{ID: id, Kind: model.KindSeries, Title: title, VoteAverage: 8, GenreIDs: []int{18}}
}

func items(kind model.MediaKind, n int) []model.CatalogItem {
	out := make([]model.CatalogItem, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, model.CatalogItem{ID: i, Kind: kind, Title: fmt.Sprintf("%s-%d", kind, i), GenreIDs: []int{}})
	}
	return out
}

// fakeDetails 可控的详情获取
type fakeDetails struct {
	calls   atomic.Int32
	release chan struct{} // 非 nil 时阻塞到关闭
	started chan struct{}

	mu   sync.Mutex
	errs map[model.ItemKey]error
}

func (f *fakeDetails) FetchDetails(ctx context.Context, kind model.MediaKind, id int) (*model.DetailRecord, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	key := model.ItemKey{Kind: kind, ID: id}
	f.mu.Lock()
	err := f.errs[key]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	runtime := 100 + id
	return &model.DetailRecord{
		Key:            key,
		Genres:         []model.Genre{{ID: 28, Name: "Action"}},
		RuntimeMinutes: &runtime,
		Cast:           []model.CastMember{},
	}, nil
}

func (f *fakeDetails) failWith(key model.ItemKey, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[model.ItemKey]error)
	}
	if err == nil {
		delete(f.errs, key)
		return
	}
	f.errs[key] = err
}

// memoryPersister 内存片单持久化
type memoryPersister struct {
	mu      sync.Mutex
	data    map[string][]model.WatchlistEntry
	saves   int
	loadErr error
	saveErr error
}

func newMemoryPersister() *memoryPersister {
	return &memoryPersister{data: make(map[string][]model.WatchlistEntry)}
}

func (p *memoryPersister) Load(ctx context.Context, userID string) ([]model.WatchlistEntry, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return nil, false, p.loadErr
	}
	return append([]model.WatchlistEntry{}, p.data[userID]...), false, nil
}

func (p *memoryPersister) Save(ctx context.Context, userID string, entries []model.WatchlistEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	if p.saveErr != nil {
		return p.saveErr
	}
	p.data[userID] = append([]model.WatchlistEntry{}, entries...)
	return nil
}

func (p *memoryPersister) saved(userID string) []model.WatchlistEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data[userID]
}
