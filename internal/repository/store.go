package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"gorm.io/gorm"
)

// ErrNotFound 键不存在
var ErrNotFound = errors.New("key not found")

// KVStore 持久化键值存储
// 所有实现都必须在 Set 返回时已完成落盘
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Repositories 仓库集合
type Repositories struct {
	Store     KVStore
	User      *UserRepository
	Watchlist *WatchlistRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(store KVStore) *Repositories {
	return &Repositories{
		Store:     store,
		User:      NewUserRepository(store),
		Watchlist: NewWatchlistRepository(store),
	}
}

// StoreOptions 存储驱动配置
type StoreOptions struct {
	Driver      string // file / memory / postgres / redis
	DataDir     string
	DatabaseURL string
	RedisURL    string
}

// OpenStore 按驱动打开键值存储
func OpenStore(ctx context.Context, opts StoreOptions) (KVStore, error) {
	var (
		store KVStore
		err   error
	)
	switch opts.Driver {
	case "", "file":
		store, err = NewFileStore(afero.NewOsFs(), opts.DataDir)
	case "memory":
		store, err = NewFileStore(afero.NewMemMapFs(), "/data")
	case "postgres":
		var db *gorm.DB
		if db, err = InitDB(opts.DatabaseURL); err == nil {
			store, err = NewPostgresStore(db)
		}
	case "redis":
		store, err = NewRedisStore(ctx, opts.RedisURL, "flixdeck:")
	default:
		err = fmt.Errorf("未知的存储驱动: %s", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
