package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/user/flixdeck/internal/model"
	"github.com/user/flixdeck/internal/repository"
	"github.com/user/flixdeck/internal/utils"
)

// WatchlistPersister 片单持久化，按用户隔离
type WatchlistPersister interface {
	Load(ctx context.Context, userID string) ([]model.WatchlistEntry, bool, error)
	Save(ctx context.Context, userID string, entries []model.WatchlistEntry) error
}

// WatchlistStore 单个用户的片单
// 每次修改在返回前同步写入持久化存储；写入失败只记日志，内存状态仍然有效
type WatchlistStore struct {
	userID    string
	persister WatchlistPersister
	timeout   time.Duration
	now       func() time.Time

	mu         sync.Mutex
	entries    []model.WatchlistEntry
	keys       map[model.ItemKey]struct{}
	hydrateErr error
	// 读取失败（非损坏）时为 true：存储里可能仍有数据，重新读取成功前不写回
	unloaded bool

	notifier utils.Notifier[[]model.WatchlistEntry]
}

// NewWatchlistStore 创建并从持久化存储恢复片单
// 数据损坏时按空片单处理；其他读取失败时先按空片单展示，
// 之后每次访问都会重新读取，读取成功前不会覆盖存储中的数据
func NewWatchlistStore(ctx context.Context, persister WatchlistPersister, userID string) *WatchlistStore {
	s := &WatchlistStore{
		userID:    userID,
		persister: persister,
		timeout:   5 * time.Second,
		now:       time.Now,
		entries:   []model.WatchlistEntry{},
		keys:      make(map[model.ItemKey]struct{}),
	}
	s.hydrate(ctx)
	return s
}

func (s *WatchlistStore) hydrate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)
}

// loadLocked 读取存储并合并到内存，已在内存中的条目排在存储条目之后
func (s *WatchlistStore) loadLocked(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entries, migrated, err := s.persister.Load(ctx, s.userID)
	if err != nil {
		if errors.Is(err, repository.ErrCorrupt) {
			s.hydrateErr = fmt.Errorf("%w: %v", ErrPersistenceCorruption, err)
			s.unloaded = false
			log.Printf("[Watchlist] 用户 %s 片单数据损坏，按空片单处理: %v", s.userID, s.hydrateErr)
			return
		}
		s.hydrateErr = err
		s.unloaded = true
		log.Printf("[Watchlist] 用户 %s 片单读取失败，暂不写回存储: %v", s.userID, err)
		return
	}
	s.hydrateErr = nil
	if migrated {
		log.Printf("[Watchlist] 用户 %s 片单为旧格式，下次修改时写回新格式", s.userID)
	}

	pending := s.entries
	wasUnloaded := s.unloaded
	s.unloaded = false
	s.entries = make([]model.WatchlistEntry, 0, len(entries)+len(pending))
	s.keys = make(map[model.ItemKey]struct{}, len(entries)+len(pending))

	dropped := 0
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			dropped++
			continue
		}
		if _, ok := s.keys[e.Key()]; ok {
			dropped++
			continue
		}
		s.keys[e.Key()] = struct{}{}
		s.entries = append(s.entries, e)
	}
	if dropped > 0 {
		log.Printf("[Watchlist] 用户 %s 片单中丢弃 %d 条无效或重复条目", s.userID, dropped)
	}

	merged := 0
	for _, e := range pending {
		if _, ok := s.keys[e.Key()]; ok {
			continue
		}
		s.keys[e.Key()] = struct{}{}
		s.entries = append(s.entries, e)
		merged++
	}
	if wasUnloaded && merged > 0 {
		log.Printf("[Watchlist] 用户 %s 片单重新读取成功，合并 %d 条未保存条目", s.userID, merged)
		s.persistLocked()
	}
}

// ensureLoadedLocked 上次读取失败时重试
func (s *WatchlistStore) ensureLoadedLocked() {
	if s.unloaded {
		s.loadLocked(context.Background())
	}
}

// UserID 片单所属用户
func (s *WatchlistStore) UserID() string {
	return s.userID
}

// HydrationError 最近一次读取遇到的错误，仅用于诊断
func (s *WatchlistStore) HydrationError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrateErr
}

// Add 不存在时加入片单，返回是否发生了插入
func (s *WatchlistStore) Add(item model.CatalogItem) bool {
	s.mu.Lock()
	s.ensureLoadedLocked()
	added := s.addLocked(item)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if added {
		s.notifier.Publish(snapshot)
	}
	return added
}

// Remove 按复合键删除，不存在时什么都不做
func (s *WatchlistStore) Remove(key model.ItemKey) bool {
	s.mu.Lock()
	s.ensureLoadedLocked()
	removed := s.removeLocked(key)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if removed {
		s.notifier.Publish(snapshot)
	}
	return removed
}

// Contains 是否在片单中
func (s *WatchlistStore) Contains(key model.ItemKey) bool {
	s.mu.Lock()
	s.ensureLoadedLocked()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// Toggle 在片单中则移除，否则加入；返回操作后是否在片单中
func (s *WatchlistStore) Toggle(item model.CatalogItem) bool {
	s.mu.Lock()
	s.ensureLoadedLocked()
	var inList bool
	if _, ok := s.keys[item.Key()]; ok {
		s.removeLocked(item.Key())
	} else {
		inList = s.addLocked(item)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notifier.Publish(snapshot)
	return inList
}

// Entries 按加入顺序返回片单副本
func (s *WatchlistStore) Entries() []model.WatchlistEntry {
	s.mu.Lock()
	s.ensureLoadedLocked()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len 片单条数
func (s *WatchlistStore) Len() int {
	s.mu.Lock()
	s.ensureLoadedLocked()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Subscribe 订阅片单变化
func (s *WatchlistStore) Subscribe(fn func([]model.WatchlistEntry)) func() {
	return s.notifier.Subscribe(fn)
}

func (s *WatchlistStore) addLocked(item model.CatalogItem) bool {
	key := item.Key()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	s.entries = append(s.entries, model.NewWatchlistEntry(item, s.now()))
	s.persistLocked()
	return true
}

func (s *WatchlistStore) removeLocked(key model.ItemKey) bool {
	if _, ok := s.keys[key]; !ok {
		return false
	}
	delete(s.keys, key)
	s.entries = slices.DeleteFunc(s.entries, func(e model.WatchlistEntry) bool {
		return e.Key() == key
	})
	s.persistLocked()
	return true
}

// persistLocked 在锁内写入，保证落盘顺序与修改顺序一致
// 读取失败期间只保留在内存中，避免覆盖存储里尚未读到的数据
func (s *WatchlistStore) persistLocked() {
	if s.unloaded {
		log.Printf("[Watchlist] 用户 %s 片单尚未读取成功，跳过保存", s.userID)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.persister.Save(ctx, s.userID, s.entries); err != nil {
		log.Printf("[Watchlist] 用户 %s 片单保存失败: %v", s.userID, err)
	}
}

func (s *WatchlistStore) snapshotLocked() []model.WatchlistEntry {
	return slices.Clone(s.entries)
}
