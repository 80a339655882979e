package service

import (
	"log"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/user/flixdeck/internal/model"
	"github.com/user/flixdeck/internal/utils"
)

// FeaturedState 当前推荐条目和轮播游标
type FeaturedState struct {
	Item   *model.CatalogItem  `json:"item"`
	Cursor int                 `json:"cursor"`
	Window []model.CatalogItem `json:"window"`
	Source model.Category      `json:"source,omitempty"`
}

func (s FeaturedState) clone() FeaturedState {
	out := s
	out.Window = slices.Clone(s.Window)
	if s.Item != nil {
		item := *s.Item
		out.Item = &item
	}
	return out
}

// FeaturedOptions 推荐轮播配置
type FeaturedOptions struct {
	// Priority 轮播来源的分类优先级，取第一个非空分类
	Priority   []model.Category
	WindowSize int
	Interval   time.Duration
	// Pick 返回 [0, n) 内的随机下标，测试时可替换
	Pick func(n int) int
}

// FeaturedSelector 选出并定时轮换推荐条目
// 状态变更都在锁内完成，读者不会看到一半的更新
type FeaturedSelector struct {
	opts FeaturedOptions

	mu    sync.RWMutex
	state FeaturedState

	runMu sync.Mutex
	stop  chan struct{}
	done  chan struct{}

	notifier utils.Notifier[FeaturedState]
}

// NewFeaturedSelector 创建推荐选择器
func NewFeaturedSelector(opts FeaturedOptions) *FeaturedSelector {
	if len(opts.Priority) == 0 {
		opts.Priority = []model.Category{model.CategoryOriginals, model.CategoryTrending}
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = 5
	}
	if opts.Interval <= 0 {
		opts.Interval = 8 * time.Second
	}
	if opts.Pick == nil {
		opts.Pick = rand.Intn
	}
	return &FeaturedSelector{opts: opts}
}

// Reset 根据新的分类快照重新初始化轮播窗口，随机选初始条目
func (s *FeaturedSelector) Reset(set *model.CategorySet) FeaturedState {
	next := FeaturedState{Window: []model.CatalogItem{}}
	for _, category := range s.opts.Priority {
		items := set.Items(category)
		if len(items) == 0 {
			continue
		}
		size := min(s.opts.WindowSize, len(items))
		next.Source = category
		next.Window = items[:size:size]
		next.Cursor = s.opts.Pick(size)
		item := next.Window[next.Cursor]
		next.Item = &item
		break
	}

	s.mu.Lock()
	s.state = next
	snapshot := s.state.clone()
	s.mu.Unlock()

	if next.Item == nil {
		log.Printf("[Featured] 没有可用的轮播来源")
	}
	s.notifier.Publish(snapshot)
	return snapshot
}

// Advance 游标前进一位（循环），窗口为空时不变
func (s *FeaturedSelector) Advance() FeaturedState {
	s.mu.Lock()
	if len(s.state.Window) == 0 {
		snapshot := s.state.clone()
		s.mu.Unlock()
		return snapshot
	}
	s.state.Cursor = (s.state.Cursor + 1) % len(s.state.Window)
	item := s.state.Window[s.state.Cursor]
	s.state.Item = &item
	snapshot := s.state.clone()
	s.mu.Unlock()

	s.notifier.Publish(snapshot)
	return snapshot
}

// SetFeatured 手动指定推荐条目，不改变窗口和游标
func (s *FeaturedSelector) SetFeatured(item model.CatalogItem) FeaturedState {
	s.mu.Lock()
	s.state.Item = &item
	snapshot := s.state.clone()
	s.mu.Unlock()

	s.notifier.Publish(snapshot)
	return snapshot
}

// Snapshot 当前状态副本
func (s *FeaturedSelector) Snapshot() FeaturedState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe 订阅状态变化
func (s *FeaturedSelector) Subscribe(fn func(FeaturedState)) func() {
	return s.notifier.Subscribe(fn)
}

// Start 启动定时轮播，已启动时忽略
// onTick 在轮播协程中执行，不能在其中调用 Stop
func (s *FeaturedSelector) Start(onTick func(FeaturedState)) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.stop != nil {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				st := s.Advance()
				if onTick != nil {
					onTick(st)
				}
			}
		}
	}()
}

// Stop 停止轮播并等待协程退出，重复调用无副作用
func (s *FeaturedSelector) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop, s.done = nil, nil
}

// Running 轮播是否在运行
func (s *FeaturedSelector) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.stop != nil
}
