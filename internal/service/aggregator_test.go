package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/flixdeck/internal/model"
)

type fetchFunc func(ctx context.Context, category model.Category) ([]model.CatalogItem, error)

func (f fetchFunc) FetchCategory(ctx context.Context, category model.Category) ([]model.CatalogItem, error) {
	return f(ctx, category)
}

var testCategories = []model.Category{
	model.CategoryOriginals,
	model.CategoryTrending,
	model.CategoryHorror,
}

func TestNewCategoryAggregatorValidatesCategories(t *testing.T) {
	noop := fetchFunc(func(context.Context, model.Category) ([]model.CatalogItem, error) { return nil, nil })

	_, err := NewCategoryAggregator(noop, nil, 0)
	assert.Error(t, err)

	_, err = NewCategoryAggregator(noop, []model.Category{model.CategoryHorror, model.CategoryHorror}, 0)
	assert.Error(t, err)
}

func TestAggregateAllSucceed(t *testing.T) {
	agg, err := NewCategoryAggregator(fetchFunc(func(_ context.Context, c model.Category) ([]model.CatalogItem, error) {
		if c == model.CategoryOriginals {
			return items(model.KindSeries, 3), nil
		}
		return items(model.KindMovie, 2), nil
	}), testCategories, time.Second)
	require.NoError(t, err)

	result, err := agg.Aggregate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Failures)
	assert.Equal(t, testCategories, result.Categories.Categories())
	assert.Len(t, result.Categories.Items(model.CategoryOriginals), 3)
	assert.Len(t, result.Categories.Items(model.CategoryHorror), 2)
}

func TestAggregateRunsConcurrently(t *testing.T) {
	// 所有分类都开始后才放行，顺序执行会超时
	var started sync.WaitGroup
	started.Add(len(testCategories))
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	agg, err := NewCategoryAggregator(fetchFunc(func(ctx context.Context, c model.Category) ([]model.CatalogItem, error) {
		started.Done()
		select {
		case <-allStarted:
			return items(model.KindMovie, 1), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}), testCategories, 2*time.Second)
	require.NoError(t, err)

	result, err := agg.Aggregate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Failures)
}

func TestAggregatePartialFailure(t *testing.T) {
	agg, err := NewCategoryAggregator(fetchFunc(func(_ context.Context, c model.Category) ([]model.CatalogItem, error) {
		switch c {
		case model.CategoryTrending:
			return nil, &RemoteError{Status: 500, Message: "boom"}
		case model.CategoryHorror:
			return nil, &RemoteError{Message: "connection refused"}
		}
		return items(model.KindSeries, 4), nil
	}), testCategories, time.Second)
	require.NoError(t, err)

	result, err := agg.Aggregate(context.Background())
	require.NoError(t, err)

	// 失败分类按配置顺序排列，并映射为空列表
	require.Len(t, result.Failures, 2)
	assert.Equal(t, model.CategoryTrending, result.Failures[0].Category)
	assert.Equal(t, model.CategoryHorror, result.Failures[1].Category)
	assert.Contains(t, result.Failures[0].Reason, "boom")

	var remoteErr *RemoteError
	require.ErrorAs(t, result.Failures[0].Err, &remoteErr)
	assert.Equal(t, 500, remoteErr.Status)

	assert.True(t, result.Categories.Has(model.CategoryTrending))
	assert.Empty(t, result.Categories.Items(model.CategoryTrending))
	assert.Len(t, result.Categories.Items(model.CategoryOriginals), 4)
}

func TestAggregateAllFail(t *testing.T) {
	agg, err := NewCategoryAggregator(fetchFunc(func(context.Context, model.Category) ([]model.CatalogItem, error) {
		return nil, &RemoteError{Status: 401, Message: "Invalid API key"}
	}), testCategories, time.Second)
	require.NoError(t, err)

	result, err := agg.Aggregate(context.Background())
	assert.Nil(t, result)

	var aggErr *AggregationError
	require.ErrorAs(t, err, &aggErr)
	assert.Len(t, aggErr.Failures, len(testCategories))
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestAggregatePanicAndTimeoutBecomeFailures(t *testing.T) {
	agg, err := NewCategoryAggregator(fetchFunc(func(ctx context.Context, c model.Category) ([]model.CatalogItem, error) {
		switch c {
		case model.CategoryTrending:
			panic("bad payload")
		case model.CategoryHorror:
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return items(model.KindSeries, 1), nil
	}), testCategories, 50*time.Millisecond)
	require.NoError(t, err)

	result, err := agg.Aggregate(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Failures, 2)
	assert.Contains(t, result.Failures[0].Reason, "panic")
	assert.True(t, errors.Is(result.Failures[1].Err, context.DeadlineExceeded))
}

func TestAggregateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	agg, err := NewCategoryAggregator(fetchFunc(func(ctx context.Context, c model.Category) ([]model.CatalogItem, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}), testCategories, time.Second)
	require.NoError(t, err)

	_, err = agg.Aggregate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
