package container

import (
	"sync"
)

// Inbox 跨协程的写入缓冲区
// 功能：生产者在任意协程Add，消费者在每一步开始时统一Drain
// 说明：Drain返回的顺序即Add的顺序，保证同一批输入在消费侧的处理顺序确定
type Inbox[T any] struct {
	pending []T
	mtx     sync.Mutex
}

// NewInbox 创建空的缓冲区
func NewInbox[T any]() *Inbox[T] {
	return &Inbox[T]{pending: make([]T, 0)}
}

// Add 写入一个元素（等到Drain时才会被消费）
func (b *Inbox[T]) Add(value T) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.pending = append(b.pending, value)
}

// Len 当前待消费的元素数量
func (b *Inbox[T]) Len() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return len(b.pending)
}

// Drain 取出全部待消费元素并清空缓冲区
func (b *Inbox[T]) Drain() []T {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	out := b.pending
	b.pending = make([]T, 0, len(out))
	return out
}

// Requeue 将未能处理的元素放回缓冲区头部，保持它们之间的相对顺序
func (b *Inbox[T]) Requeue(values []T) {
	if len(values) == 0 {
		return
	}
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.pending = append(append(make([]T, 0, len(values)+len(b.pending)), values...), b.pending...)
}
