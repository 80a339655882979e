package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/patrickmn/go-cache"
)

// Cache 按字符串键存取的进程内缓存
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Clear()
	Len() int
}

// MemoryCache 不限容量、不过期的缓存
type MemoryCache[T any] struct {
	storage *cache.Cache
}

// NewMemoryCache 创建不过期缓存（清理协程不启动）
func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{storage: cache.New(cache.NoExpiration, 0)}
}

func (c *MemoryCache[T]) Get(key string) (T, bool) {
	var zero T
	v, ok := c.storage.Get(key)
	if !ok {
		return zero, false
	}
	value, ok := v.(T)
	if !ok {
		return zero, false
	}
	return value, true
}

func (c *MemoryCache[T]) Set(key string, value T) {
	c.storage.Set(key, value, cache.NoExpiration)
}

func (c *MemoryCache[T]) Delete(key string) {
	c.storage.Delete(key)
}

func (c *MemoryCache[T]) Clear() {
	c.storage.Flush()
}

func (c *MemoryCache[T]) Len() int {
	return c.storage.ItemCount()
}

// CacheItem 包装实际的数据，增加过期时间
type CacheItem[T any] struct {
	Value     T
	ExpiredAt time.Time
}

// LRUCache 有容量上限的缓存，ttl 为 0 表示不过期
type LRUCache[T any] struct {
	storage *lru.Cache[string, CacheItem[T]]
	ttl     time.Duration
	now     func() time.Time
}

// NewLRUCache 初始化，size 是最大缓存条数，ttl 是数据有效期
func NewLRUCache[T any](size int, ttl time.Duration) *LRUCache[T] {
	if size <= 0 {
		size = 1
	}
	// lru.New 是线程安全的，size > 0 时不会返回错误
	c, _ := lru.New[string, CacheItem[T]](size)
	return &LRUCache[T]{
		storage: c,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Set Add 会自动处理 Update
func (c *LRUCache[T]) Set(key string, value T) {
	item := CacheItem[T]{Value: value}
	if c.ttl > 0 {
		item.ExpiredAt = c.now().Add(c.ttl)
	}
	c.storage.Add(key, item)
}

// Get 带过期检查
func (c *LRUCache[T]) Get(key string) (T, bool) {
	var zero T
	item, ok := c.storage.Get(key)
	if !ok {
		return zero, false
	}

	if !item.ExpiredAt.IsZero() && c.now().After(item.ExpiredAt) {
		c.storage.Remove(key)
		return zero, false
	}

	return item.Value, true
}

func (c *LRUCache[T]) Delete(key string) {
	c.storage.Remove(key)
}

func (c *LRUCache[T]) Clear() {
	c.storage.Purge()
}

func (c *LRUCache[T]) Len() int {
	return c.storage.Len()
}
