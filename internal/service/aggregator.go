package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/user/flixdeck/internal/model"
)

// CategoryFetcher 获取单个分类
// 不做并发，并发由 CategoryAggregator 控制
type CategoryFetcher interface {
	FetchCategory(ctx context.Context, category model.Category) ([]model.CatalogItem, error)
}

// AggregationResult 聚合结果，Failures 非空表示部分失败
type AggregationResult struct {
	Categories *model.CategorySet `json:"categories"`
	Failures   []CategoryFailure  `json:"failures"`
}

// CategoryAggregator 并发获取所有分类并组装快照
type CategoryAggregator struct {
	fetcher    CategoryFetcher
	categories []model.Category
	timeout    time.Duration // 单分类最大超时时间
}

// NewCategoryAggregator 创建聚合器，分类列表不能为空且不能重复
func NewCategoryAggregator(fetcher CategoryFetcher, categories []model.Category, timeout time.Duration) (*CategoryAggregator, error) {
	if len(categories) == 0 {
		return nil, errors.New("at least one category is required")
	}
	seen := make(map[model.Category]bool, len(categories))
	for _, c := range categories {
		if seen[c] {
			return nil, fmt.Errorf("duplicate category: %s", c)
		}
		seen[c] = true
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &CategoryAggregator{
		fetcher:    fetcher,
		categories: append([]model.Category(nil), categories...),
		timeout:    timeout,
	}, nil
}

// Categories 配置的分类列表
func (a *CategoryAggregator) Categories() []model.Category {
	return append([]model.Category(nil), a.categories...)
}

type categoryOutcome struct {
	category model.Category
	items    []model.CatalogItem
	err      error
}

// Aggregate 等待所有分类完成（不提前失败）
// 失败的分类映射为空列表并记入 Failures；全部失败时返回 AggregationError
func (a *CategoryAggregator) Aggregate(ctx context.Context) (*AggregationResult, error) {
	started := time.Now()

	p := pool.NewWithResults[categoryOutcome]()
	for _, category := range a.categories {
		category := category
		p.Go(func() categoryOutcome {
			return a.fetchOne(ctx, category)
		})
	}
	outcomes := make(map[model.Category]categoryOutcome, len(a.categories))
	for _, o := range p.Wait() {
		outcomes[o.category] = o
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("aggregation cancelled: %w", err)
	}

	items := make(map[model.Category][]model.CatalogItem, len(a.categories))
	var failures []CategoryFailure
	for _, category := range a.categories {
		o := outcomes[category]
		if o.err != nil {
			log.Printf("[Aggregator] 分类 %s 获取失败: %v", category, o.err)
			failures = append(failures, CategoryFailure{
				Category: category,
				Reason:   o.err.Error(),
				Err:      o.err,
			})
			continue
		}
		items[category] = o.items
	}

	if len(failures) == len(a.categories) {
		return nil, &AggregationError{Failures: failures}
	}

	log.Printf("[Aggregator] 聚合完成: %d 个分类, %d 个失败, 耗时 %v",
		len(a.categories), len(failures), time.Since(started))

	return &AggregationResult{
		Categories: model.NewCategorySet(a.categories, items),
		Failures:   failures,
	}, nil
}

// fetchOne 获取单个分类，panic 也当作失败处理
func (a *CategoryAggregator) fetchOne(ctx context.Context, category model.Category) (out categoryOutcome) {
	out.category = category
	defer func() {
		if r := recover(); r != nil {
			out.items = nil
			out.err = fmt.Errorf("panic while fetching %s: %v", category, r)
		}
	}()

	// 创建带超时的上下文
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out.items, out.err = a.fetcher.FetchCategory(reqCtx, category)
	return out
}
