package service

import (
	"context"
	"errors"
	"log"
	"slices"
	"strings"
	"sync"

	"github.com/user/flixdeck/internal/model"
	"github.com/user/flixdeck/internal/utils"
)

// Identity 当前用户
type Identity interface {
	UserID() string
	IsAuthenticated() bool
}

// Aggregator 分类聚合
type Aggregator interface {
	Aggregate(ctx context.Context) (*AggregationResult, error)
}

// Searcher 搜索
type Searcher interface {
	Search(ctx context.Context, query string) ([]model.CatalogItem, error)
}

// SessionState 会话状态
type SessionState string

const (
	StateIdle    SessionState = "idle"
	StateLoading SessionState = "loading"
	StateReady   SessionState = "ready"
	StateFailed  SessionState = "failed"
)

// Selection 当前打开的详情（弹窗）
type Selection struct {
	Item    model.CatalogItem   `json:"item"`
	Detail  *model.DetailRecord `json:"detail,omitempty"`
	Loading bool                `json:"loading"`
	Error   string              `json:"error,omitempty"`
}

// Snapshot 会话只读视图
// 加载中不暴露分类快照
type Snapshot struct {
	State      SessionState       `json:"state"`
	Categories *model.CategorySet `json:"categories"`
	Featured   FeaturedState      `json:"featured"`
	Failures   []CategoryFailure  `json:"failures"`
	Error      string             `json:"error,omitempty"`
	Selection  *Selection         `json:"selection,omitempty"`
}

// SessionDeps 会话依赖
type SessionDeps struct {
	Identity    Identity
	Aggregator  Aggregator
	Searcher    Searcher
	Details     *DetailCache
	Featured    *FeaturedSelector
	Watchlist   *WatchlistStore
	SearchCache utils.Cache[[]model.CatalogItem]
}

// CatalogSession 组合根：聚合生命周期、推荐轮播、详情和片单
type CatalogSession struct {
	identity    Identity
	aggregator  Aggregator
	searcher    Searcher
	details     *DetailCache
	featured    *FeaturedSelector
	watchlist   *WatchlistStore
	searchCache utils.Cache[[]model.CatalogItem]

	// applyMu 串行化聚合结果的应用
	applyMu sync.Mutex

	mu           sync.RWMutex
	state        SessionState
	categories   *model.CategorySet
	failures     []CategoryFailure
	lastErr      error
	generation   uint64
	selection    *Selection
	selectionSeq uint64
	closed       bool

	notifier utils.Notifier[Snapshot]
}

// NewCatalogSession 创建会话，未登录返回 ErrUnauthenticated
func NewCatalogSession(deps SessionDeps) (*CatalogSession, error) {
	if deps.Identity == nil || !deps.Identity.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	if deps.Aggregator == nil || deps.Details == nil || deps.Featured == nil || deps.Watchlist == nil {
		return nil, errors.New("catalog session: missing dependency")
	}
	if deps.Watchlist.UserID() != deps.Identity.UserID() {
		return nil, errors.New("catalog session: watchlist belongs to another user")
	}
	if deps.SearchCache == nil {
		deps.SearchCache = utils.NewLRUCache[[]model.CatalogItem](100, 0)
	}
	return &CatalogSession{
		identity:    deps.Identity,
		aggregator:  deps.Aggregator,
		searcher:    deps.Searcher,
		details:     deps.Details,
		featured:    deps.Featured,
		watchlist:   deps.Watchlist,
		searchCache: deps.SearchCache,
		state:       StateIdle,
	}, nil
}

// UserID 会话所属用户
func (s *CatalogSession) UserID() string {
	return s.identity.UserID()
}

// Start Idle 状态下开始首次聚合，其他状态忽略
func (s *CatalogSession) Start(ctx context.Context) error {
	return s.load(ctx, false, func(st SessionState) bool { return st == StateIdle })
}

// Retry 失败后重试，或就绪后整体刷新；加载中忽略
func (s *CatalogSession) Retry(ctx context.Context) error {
	return s.load(ctx, false, func(st SessionState) bool { return st != StateLoading })
}

// Restart 重启会话：清空详情缓存并重新聚合，进行中的聚合结果被丢弃
func (s *CatalogSession) Restart(ctx context.Context) error {
	return s.load(ctx, true, nil)
}

// load 状态检查和切换到 Loading 在同一把锁内完成
func (s *CatalogSession) load(ctx context.Context, invalidate bool, allow func(SessionState) bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSuperseded
	}
	if allow != nil && !allow(s.state) {
		s.mu.Unlock()
		return nil
	}
	s.generation++
	generation := s.generation
	s.state = StateLoading
	s.categories = nil
	s.failures = nil
	s.lastErr = nil
	s.mu.Unlock()

	if invalidate {
		s.details.Invalidate()
	}
	s.publish()

	result, err := s.aggregator.Aggregate(ctx)

	s.applyMu.Lock()
	s.mu.Lock()
	if s.closed || s.generation != generation {
		s.mu.Unlock()
		s.applyMu.Unlock()
		log.Printf("[Session] 用户 %s 的聚合结果已过期，丢弃", s.UserID())
		return ErrSuperseded
	}
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
		var aggErr *AggregationError
		if errors.As(err, &aggErr) {
			s.failures = aggErr.Failures
		}
	} else {
		s.state = StateReady
		s.categories = result.Categories
		s.failures = result.Failures
	}
	s.mu.Unlock()

	if err == nil {
		s.featured.Reset(result.Categories)
		s.featured.Start(func(FeaturedState) { s.publish() })
	} else {
		// 分类已隐藏，推荐不再展示旧窗口
		s.featured.Stop()
		s.featured.Reset(nil)
	}
	s.applyMu.Unlock()

	if err != nil {
		log.Printf("[Session] 用户 %s 聚合失败: %v", s.UserID(), err)
	}
	s.publish()
	return err
}

// Snapshot 当前只读视图
func (s *CatalogSession) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		State:    s.state,
		Failures: slices.Clone(s.failures),
	}
	if s.state == StateReady {
		snap.Categories = s.categories
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	if s.selection != nil {
		sel := *s.selection
		snap.Selection = &sel
	}
	s.mu.RUnlock()

	if snap.Failures == nil {
		snap.Failures = []CategoryFailure{}
	}
	snap.Featured = s.featured.Snapshot()
	return snap
}

// Subscribe 订阅视图变化
func (s *CatalogSession) Subscribe(fn func(Snapshot)) func() {
	return s.notifier.Subscribe(fn)
}

func (s *CatalogSession) publish() {
	s.notifier.Publish(s.Snapshot())
}

// SetFeaturedManually 手动切换推荐条目，下一次轮播从原游标继续
func (s *CatalogSession) SetFeaturedManually(item model.CatalogItem) FeaturedState {
	st := s.featured.SetFeatured(item)
	s.publish()
	return st
}

// GetDetails 获取条目详情（带缓存）
func (s *CatalogSession) GetDetails(ctx context.Context, kind model.MediaKind, id int) (*model.DetailRecord, error) {
	return s.details.Get(ctx, kind, id)
}

// OpenDetails 打开详情：记录选中条目并加载详情
// 若加载期间选中了别的条目或已关闭，结果丢弃并返回 ErrSuperseded
func (s *CatalogSession) OpenDetails(ctx context.Context, item model.CatalogItem) (*model.DetailRecord, error) {
	s.mu.Lock()
	s.selectionSeq++
	seq := s.selectionSeq
	s.selection = &Selection{Item: item, Loading: true}
	s.mu.Unlock()
	s.publish()

	record, err := s.details.Get(ctx, item.Kind, item.ID)

	s.mu.Lock()
	if s.selectionSeq != seq || s.selection == nil {
		s.mu.Unlock()
		return nil, ErrSuperseded
	}
	s.selection = &Selection{Item: item, Detail: record}
	if err != nil {
		// 详情失败只在弹窗内提示，不关闭弹窗
		s.selection.Error = err.Error()
	}
	s.mu.Unlock()
	s.publish()

	return record, err
}

// CloseDetails 关闭详情，进行中的加载结果会被丢弃
func (s *CatalogSession) CloseDetails() {
	s.mu.Lock()
	s.selectionSeq++
	s.selection = nil
	s.mu.Unlock()
	s.publish()
}

// Search 搜索，结果按规范化后的关键词缓存，失败不缓存
func (s *CatalogSession) Search(ctx context.Context, query string) ([]model.CatalogItem, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if normalized == "" {
		return []model.CatalogItem{}, nil
	}
	if items, ok := s.searchCache.Get(normalized); ok {
		return slices.Clone(items), nil
	}
	if s.searcher == nil {
		return nil, errors.New("search is not configured")
	}

	items, err := s.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	s.searchCache.Set(normalized, items)
	return slices.Clone(items), nil
}

// ToggleWatchlist 切换片单状态，返回操作后是否在片单中
func (s *CatalogSession) ToggleWatchlist(item model.CatalogItem) bool {
	return s.watchlist.Toggle(item)
}

// IsInWatchlist 是否在片单中
func (s *CatalogSession) IsInWatchlist(kind model.MediaKind, id int) bool {
	return s.watchlist.Contains(model.ItemKey{Kind: kind, ID: id})
}

// Watchlist 片单
func (s *CatalogSession) Watchlist() *WatchlistStore {
	return s.watchlist
}

// Details 详情缓存
func (s *CatalogSession) Details() *DetailCache {
	return s.details
}

// Close 停止轮播，进行中的聚合结果会被丢弃；重复调用无副作用
func (s *CatalogSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	s.mu.Unlock()

	// 等待正在应用的聚合结果，避免关闭后又启动轮播
	s.applyMu.Lock()
	s.featured.Stop()
	s.applyMu.Unlock()
}
