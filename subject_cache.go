// CacheSubject for rxext
// 缓存主题：保留全部历史，迟到的订阅者先重放历史再接收实时事件
package rxext

import "sync/atomic"

// cacheNode 固定容量的缓存节点
type cacheNode[T any] struct {
	items []T
	next  atomic.Pointer[cacheNode[T]]
}

// CacheSubject 缓存主题
//
// 生产者向尾节点追加元素后发布 size，每个订阅者持有独立的游标
// (index/offset/node) 和自己的排水计数器，互不阻塞。
type CacheSubject[T any] struct {
	subscribers *subscriberList[*cacheHandle[T]]
	capacity    int

	head *cacheNode[T]
	// tail 和 tailOffset 只由生产者访问
	tail       *cacheNode[T]
	tailOffset int

	size     atomic.Int64
	done     atomic.Bool
	terminal ErrorCell
}

var _ Subject[int] = (*CacheSubject[int])(nil)

// NewCacheSubject 创建缓存主题，WithCapacityHint 设置节点容量
func NewCacheSubject[T any](options ...Option) *CacheSubject[T] {
	config := newConfig(options)
	head := &cacheNode[T]{items: make([]T, config.CapacityHint)}
	return &CacheSubject[T]{
		subscribers: newSubscriberList[*cacheHandle[T]](),
		capacity:    config.CapacityHint,
		head:        head,
		tail:        head,
	}
}

// cacheHandle 订阅者句柄和重放游标
type cacheHandle[T any] struct {
	downstream Observer[T]
	parent     atomic.Pointer[CacheSubject[T]]
	disposed   atomic.Bool
	trampoline Trampoline

	// 游标只由该句柄的排水者访问
	node   *cacheNode[T]
	offset int
	index  int64
}

// Dispose 停止重放并从主题中移除
func (h *cacheHandle[T]) Dispose() {
	if h.disposed.CompareAndSwap(false, true) {
		if p := h.parent.Swap(nil); p != nil {
			p.subscribers.remove(h, false)
		}
	}
}

// IsDisposed 检查是否已释放
func (h *cacheHandle[T]) IsDisposed() bool {
	return h.disposed.Load()
}

// Subscribe 订阅观察者，立即开始重放
func (s *CacheSubject[T]) Subscribe(observer Observer[T]) {
	h := &cacheHandle[T]{downstream: observer, node: s.head}
	h.parent.Store(s)
	observer.OnSubscribe(h)

	if s.subscribers.add(h) && h.IsDisposed() {
		s.subscribers.remove(h, false)
		return
	}
	s.replay(h)
}

// OnSubscribe 缓存主题不持有上游，终止后直接释放
func (s *CacheSubject[T]) OnSubscribe(d Disposable) {
	if s.done.Load() {
		d.Dispose()
	}
}

// OnNext 追加到缓存并驱动所有订阅者重放
func (s *CacheSubject[T]) OnNext(item T) {
	if s.done.Load() {
		return
	}
	if s.tailOffset == s.capacity {
		n := &cacheNode[T]{items: make([]T, s.capacity)}
		s.tail.next.Store(n)
		s.tail = n
		s.tailOffset = 0
	}
	s.tail.items[s.tailOffset] = item
	s.tailOffset++
	s.size.Add(1)

	for _, h := range s.subscribers.snapshot() {
		s.replay(h)
	}
}

// OnError 以错误终止
func (s *CacheSubject[T]) OnError(err error) {
	if !s.terminal.TrySet(err) {
		reportDropped(err)
		return
	}
	s.finish()
}

// OnCompleted 以完成终止
func (s *CacheSubject[T]) OnCompleted() {
	if !s.terminal.TryComplete() {
		return
	}
	s.finish()
}

// finish 终止单元必须先于 done 发布，done 必须先于数组冻结
func (s *CacheSubject[T]) finish() {
	s.done.Store(true)
	for _, h := range s.subscribers.terminate() {
		s.replay(h)
	}
}

func (s *CacheSubject[T]) replay(h *cacheHandle[T]) {
	h.trampoline.Drain(func() {
		s.replayPass(h)
	})
}

func (s *CacheSubject[T]) replayPass(h *cacheHandle[T]) {
	downstream := h.downstream
	for {
		if h.IsDisposed() {
			h.node = nil
			return
		}

		d := s.done.Load()
		size := s.size.Load()

		if h.index == size {
			if d {
				h.disposed.Store(true)
				h.parent.Store(nil)
				h.node = nil
				err, completed := s.terminal.Load()
				if completed {
					downstream.OnCompleted()
				} else {
					downstream.OnError(err)
				}
			}
			return
		}

		for h.index != size {
			if h.IsDisposed() {
				h.node = nil
				return
			}
			if h.offset == s.capacity {
				h.node = h.node.next.Load()
				h.offset = 0
			}
			item := h.node.items[h.offset]
			h.offset++
			h.index++
			downstream.OnNext(item)
		}
	}
}

// Size 已缓存的元素数量
func (s *CacheSubject[T]) Size() int {
	return int(s.size.Load())
}

// HasObservers 检查是否有观察者
func (s *CacheSubject[T]) HasObservers() bool {
	return s.subscribers.len() != 0
}

// HasCompleted 是否以完成终止
func (s *CacheSubject[T]) HasCompleted() bool {
	return s.terminal.IsTerminated()
}

// HasException 是否以错误终止
func (s *CacheSubject[T]) HasException() bool {
	return subjectException(&s.terminal) != nil
}

// Exception 返回终止错误
func (s *CacheSubject[T]) Exception() error {
	return subjectException(&s.terminal)
}
