package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/user/flixdeck/internal/model"
	"github.com/user/flixdeck/internal/utils"
	"golang.org/x/sync/singleflight"
)

// DetailFetcher 获取条目详情
type DetailFetcher interface {
	FetchDetails(ctx context.Context, kind model.MediaKind, id int) (*model.DetailRecord, error)
}

// DetailCache 按 (kind, id) 缓存详情，同一个键同时只会有一个远端请求
// 失败不缓存；默认不限容量，可以传入 LRU 存储
type DetailCache struct {
	fetcher DetailFetcher
	store   utils.Cache[*model.DetailRecord]
	group   singleflight.Group
	timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// NewDetailCache 创建详情缓存，store 为 nil 时使用不限容量的内存缓存
func NewDetailCache(fetcher DetailFetcher, store utils.Cache[*model.DetailRecord], timeout time.Duration) *DetailCache {
	if store == nil {
		store = utils.NewMemoryCache[*model.DetailRecord]()
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &DetailCache{
		fetcher: fetcher,
		store:   store,
		timeout: timeout,
	}
}

// Peek 只查缓存，不发请求
func (c *DetailCache) Peek(kind model.MediaKind, id int) (*model.DetailRecord, bool) {
	return c.store.Get(model.ItemKey{Kind: kind, ID: id}.String())
}

// Get 命中缓存直接返回，否则请求远端并缓存成功结果
// 并发的相同请求共享同一个远端调用；调用方的 ctx 只影响自己的等待
func (c *DetailCache) Get(ctx context.Context, kind model.MediaKind, id int) (*model.DetailRecord, error) {
	key := model.ItemKey{Kind: kind, ID: id}.String()
	if record, ok := c.store.Get(key); ok {
		return record, nil
	}

	c.mu.Lock()
	generation := c.generation
	c.mu.Unlock()

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// 前一个请求刚写入
		if record, ok := c.store.Get(key); ok {
			return record, nil
		}
		// 共享请求不跟随任何单个调用方取消
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		record, err := c.fetcher.FetchDetails(fetchCtx, kind, id)
		if err != nil {
			log.Printf("[DetailCache] 获取详情失败 (%s): %v", key, err)
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		// 缓存已被清空（会话重启），结果不写回
		if c.generation == generation {
			c.store.Set(key, record)
		}
		return record, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.DetailRecord), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate 清空缓存，进行中的请求完成后不会写回
func (c *DetailCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.store.Clear()
}

// Len 已缓存条数
func (c *DetailCache) Len() int {
	return c.store.Len()
}
