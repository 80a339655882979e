package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/user/flixdeck/internal/model"
)

var (
	// ErrPersistenceCorruption 持久化的片单数据无法读取
	ErrPersistenceCorruption = errors.New("persisted watchlist is corrupt")
	// ErrUnauthenticated 未登录不允许启动会话
	ErrUnauthenticated = errors.New("user is not authenticated")
	// ErrSuperseded 请求已被更新的请求取代，结果被丢弃
	ErrSuperseded = errors.New("request superseded by a newer one")
)

// RemoteError 单次远端调用失败
// Status 为 0 表示网络层错误（未拿到 HTTP 响应）
type RemoteError struct {
	Status  int
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return "remote error: " + e.Message
	}
	return fmt.Sprintf("remote error %d: %s", e.Status, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// CategoryFailure 单个分类的失败原因
type CategoryFailure struct {
	Category model.Category `json:"category"`
	Reason   string         `json:"reason"`
	Err      error          `json:"-"`
}

// AggregationError 所有分类都失败
type AggregationError struct {
	Failures []CategoryFailure
}

func (e *AggregationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, string(f.Category)+": "+f.Reason)
	}
	return fmt.Sprintf("all %d categories failed (%s)", len(e.Failures), strings.Join(parts, "; "))
}
