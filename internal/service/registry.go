package service

import (
	"context"
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/user/flixdeck/internal/model"
	"github.com/user/flixdeck/internal/utils"
)

// RegistryOptions 会话工厂参数
type RegistryOptions struct {
	Size             int
	Categories       []model.Category
	CategoryTimeout  time.Duration
	DetailTimeout    time.Duration
	DetailCacheSize  int // 0 表示不限
	SearchCacheSize  int
	SearchCacheTTL   time.Duration
	FeaturedPriority []model.Category
	FeaturedWindow   int
	FeaturedInterval time.Duration
}

// SessionRegistry 按用户管理会话
// 切换用户得到的是新会话，被淘汰的会话会被关闭
type SessionRegistry struct {
	client    MetadataClient
	persister WatchlistPersister
	opts      RegistryOptions

	mu       sync.Mutex
	sessions *lru.Cache[string, *CatalogSession]
}

// NewSessionRegistry 创建会话注册表
func NewSessionRegistry(client MetadataClient, persister WatchlistPersister, opts RegistryOptions) (*SessionRegistry, error) {
	if opts.Size <= 0 {
		opts.Size = 1000
	}
	if len(opts.Categories) == 0 {
		opts.Categories = model.AllCategories
	}
	sessions, err := lru.NewWithEvict[string, *CatalogSession](opts.Size, func(userID string, s *CatalogSession) {
		log.Printf("[Registry] 会话被淘汰: %s", userID)
		go s.Close()
	})
	if err != nil {
		return nil, err
	}
	return &SessionRegistry{
		client:    client,
		persister: persister,
		opts:      opts,
		sessions:  sessions,
	}, nil
}

// Get 返回用户的会话，不存在时创建（不会自动开始聚合）
func (r *SessionRegistry) Get(ctx context.Context, identity Identity) (*CatalogSession, error) {
	if identity == nil || !identity.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions.Get(identity.UserID()); ok {
		return s, nil
	}

	s, err := r.newSession(ctx, identity)
	if err != nil {
		return nil, err
	}
	r.sessions.Add(identity.UserID(), s)
	return s, nil
}

// Remove 关闭并移除用户的会话（登出）
func (r *SessionRegistry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Remove 会触发淘汰回调
	r.sessions.Remove(userID)
}

// Close 关闭全部会话
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, userID := range r.sessions.Keys() {
		if s, ok := r.sessions.Peek(userID); ok {
			s.Close()
		}
	}
	r.sessions.Purge()
}

// Len 当前会话数
func (r *SessionRegistry) Len() int {
	return r.sessions.Len()
}

func (r *SessionRegistry) newSession(ctx context.Context, identity Identity) (*CatalogSession, error) {
	aggregator, err := NewCategoryAggregator(r.client, r.opts.Categories, r.opts.CategoryTimeout)
	if err != nil {
		return nil, err
	}

	var detailStore utils.Cache[*model.DetailRecord]
	if r.opts.DetailCacheSize > 0 {
		detailStore = utils.NewLRUCache[*model.DetailRecord](r.opts.DetailCacheSize, 0)
	}

	searchSize := r.opts.SearchCacheSize
	if searchSize <= 0 {
		searchSize = 100
	}

	return NewCatalogSession(SessionDeps{
		Identity:   identity,
		Aggregator: aggregator,
		Searcher:   r.client,
		Details:    NewDetailCache(r.client, detailStore, r.opts.DetailTimeout),
		Featured: NewFeaturedSelector(FeaturedOptions{
			Priority:   r.opts.FeaturedPriority,
			WindowSize: r.opts.FeaturedWindow,
			Interval:   r.opts.FeaturedInterval,
		}),
		// 会话比请求活得久，客户端断开不能让片单按空处理
		Watchlist:   NewWatchlistStore(context.WithoutCancel(ctx), r.persister, identity.UserID()),
		SearchCache: utils.NewLRUCache[[]model.CatalogItem](searchSize, r.opts.SearchCacheTTL),
	})
}
