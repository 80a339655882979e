package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/user/flixdeck/internal/model"
)

// WatchlistSchemaVersion 当前片单存储格式版本
const WatchlistSchemaVersion = 1

// ErrCorrupt 存储的数据无法解析
var ErrCorrupt = errors.New("stored data is corrupt")

// watchlistDocument 片单持久化格式
type watchlistDocument struct {
	Version int                    `json:"version"`
	Entries []model.WatchlistEntry `json:"entries"`
}

type WatchlistRepository struct {
	store KVStore
}

func NewWatchlistRepository(store KVStore) *WatchlistRepository {
	return &WatchlistRepository{store: store}
}

// WatchlistKey 按用户隔离的存储键
func WatchlistKey(userID string) string {
	return "watchlist:" + userID
}

// Load 读取用户片单
// 不存在时返回空列表；旧版（裸数组）格式会被迁移，migrated 为 true
func (r *WatchlistRepository) Load(ctx context.Context, userID string) (entries []model.WatchlistEntry, migrated bool, err error) {
	data, err := r.store.Get(ctx, WatchlistKey(userID))
	if errors.Is(err, ErrNotFound) {
		return []model.WatchlistEntry{}, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		// 版本 0：直接存的条目数组
		var legacy []model.WatchlistEntry
		if err := json.Unmarshal(trimmed, &legacy); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return legacy, true, nil
	}

	var doc watchlistDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if doc.Version < 1 || doc.Version > WatchlistSchemaVersion {
		return nil, false, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, doc.Version)
	}
	if doc.Entries == nil {
		doc.Entries = []model.WatchlistEntry{}
	}
	return doc.Entries, false, nil
}

// Save 整体覆盖写入用户片单
func (r *WatchlistRepository) Save(ctx context.Context, userID string, entries []model.WatchlistEntry) error {
	if entries == nil {
		entries = []model.WatchlistEntry{}
	}
	data, err := json.Marshal(watchlistDocument{
		Version: WatchlistSchemaVersion,
		Entries: entries,
	})
	if err != nil {
		return err
	}
	return r.store.Set(ctx, WatchlistKey(userID), data)
}
