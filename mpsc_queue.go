package rxext

import "sync/atomic"

type mpscNode[T any] struct {
	next  atomic.Pointer[mpscNode[T]]
	value T
}

// mpscLinkedQueue 多生产者单消费者无界链表队列
//
// 生产者通过交换头指针加入节点，然后链接前驱；消费者独占尾指针。
// 链接完成之前的节点对消费者不可见，生产者必须在Offer返回之后
// 再进入排水循环。
type mpscLinkedQueue[T any] struct {
	head atomic.Pointer[mpscNode[T]]
	tail *mpscNode[T]
}

func newMpscLinkedQueue[T any]() *mpscLinkedQueue[T] {
	stub := &mpscNode[T]{}
	q := &mpscLinkedQueue[T]{tail: stub}
	q.head.Store(stub)
	return q
}

// Offer 入队，多个生产者可并发调用
func (q *mpscLinkedQueue[T]) Offer(item T) {
	n := &mpscNode[T]{value: item}
	prev := q.head.Swap(n)
	prev.next.Store(n)
}

// TryPoll 出队，只能由消费者调用
func (q *mpscLinkedQueue[T]) TryPoll() (T, bool) {
	var zero T
	next := q.tail.next.Load()
	if next == nil {
		return zero, false
	}
	v := next.value
	next.value = zero
	q.tail = next
	return v, true
}

// IsEmpty 只能由消费者调用
func (q *mpscLinkedQueue[T]) IsEmpty() bool {
	return q.tail.next.Load() == nil
}

// Clear 只能由消费者调用
func (q *mpscLinkedQueue[T]) Clear() {
	for {
		if _, ok := q.TryPoll(); !ok {
			return
		}
	}
}
