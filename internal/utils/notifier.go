package utils

import (
	"sync"
)

// Notifier 简单的发布订阅，回调在发布者的协程中同步执行
type Notifier[T any] struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(T)
}

// Subscribe 订阅变化，返回取消订阅函数（可重复调用）
func (n *Notifier[T]) Subscribe(fn func(T)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners == nil {
		n.listeners = make(map[int]func(T))
	}
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, id)
			n.mu.Unlock()
		})
	}
}

// Publish 通知所有订阅者
func (n *Notifier[T]) Publish(v T) {
	n.mu.Lock()
	fns := make([]func(T), 0, len(n.listeners))
	for _, fn := range n.listeners {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
