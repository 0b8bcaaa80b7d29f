// PublishSubject for rxext
// 发布主题：只向当前订阅者广播新值，迟到者只收到缓存的终止事件
package rxext

import "sync/atomic"

// PublishSubject 发布主题
type PublishSubject[T any] struct {
	subscribers *subscriberList[*publishHandle[T]]
	terminal    ErrorCell
	upstream    Resource
	refCount    bool
}

var _ Subject[int] = (*PublishSubject[int])(nil)

// NewPublishSubject 创建发布主题，WithRefCount 启用引用计数
func NewPublishSubject[T any](options ...Option) *PublishSubject[T] {
	config := newConfig(options)
	return &PublishSubject[T]{
		subscribers: newSubscriberList[*publishHandle[T]](),
		refCount:    config.RefCount,
	}
}

// publishHandle 订阅者句柄，持有对主题的显式回引用，移除时清除
type publishHandle[T any] struct {
	downstream Observer[T]
	parent     atomic.Pointer[PublishSubject[T]]
}

// Dispose 从主题中移除，幂等
func (h *publishHandle[T]) Dispose() {
	if p := h.parent.Swap(nil); p != nil {
		p.remove(h)
	}
}

// IsDisposed 检查是否已释放
func (h *publishHandle[T]) IsDisposed() bool {
	return h.parent.Load() == nil
}

func (h *publishHandle[T]) onNext(item T) {
	if h.parent.Load() != nil {
		h.downstream.OnNext(item)
	}
}

func (h *publishHandle[T]) onError(err error) {
	if h.parent.Swap(nil) != nil {
		h.downstream.OnError(err)
	}
}

func (h *publishHandle[T]) onCompleted() {
	if h.parent.Swap(nil) != nil {
		h.downstream.OnCompleted()
	}
}

// Subscribe 订阅观察者
func (s *PublishSubject[T]) Subscribe(observer Observer[T]) {
	h := &publishHandle[T]{downstream: observer}
	h.parent.Store(s)
	observer.OnSubscribe(h)

	if s.subscribers.add(h) {
		if h.IsDisposed() {
			s.remove(h)
		}
		return
	}

	err, completed := lateTerminal(&s.terminal)
	if completed {
		h.onCompleted()
	} else {
		h.onError(err)
	}
}

func (s *PublishSubject[T]) remove(h *publishHandle[T]) {
	if s.subscribers.remove(h, s.refCount) {
		s.terminal.TrySet(ErrSubjectDisposed)
		s.upstream.Dispose()
	}
}

// OnSubscribe 接收上游令牌，引用计数模式下持有它以便释放
func (s *PublishSubject[T]) OnSubscribe(d Disposable) {
	if s.refCount {
		s.upstream.SetOnce(d)
		return
	}
	if s.subscribers.isTerminated() {
		d.Dispose()
	}
}

// OnNext 向当前快照中的所有订阅者广播
func (s *PublishSubject[T]) OnNext(item T) {
	if !s.terminal.IsEmpty() {
		return
	}
	for _, h := range s.subscribers.snapshot() {
		h.onNext(item)
	}
}

// OnError 以错误终止
func (s *PublishSubject[T]) OnError(err error) {
	if !s.terminal.TrySet(err) {
		reportDropped(err)
		return
	}
	for _, h := range s.subscribers.terminate() {
		h.onError(err)
	}
}

// OnCompleted 以完成终止
func (s *PublishSubject[T]) OnCompleted() {
	if !s.terminal.TryComplete() {
		return
	}
	for _, h := range s.subscribers.terminate() {
		h.onCompleted()
	}
}

// HasObservers 检查是否有观察者
func (s *PublishSubject[T]) HasObservers() bool {
	return s.subscribers.len() != 0
}

// HasCompleted 是否以完成终止
func (s *PublishSubject[T]) HasCompleted() bool {
	return s.terminal.IsTerminated()
}

// HasException 是否以错误终止
func (s *PublishSubject[T]) HasException() bool {
	return subjectException(&s.terminal) != nil
}

// Exception 返回终止错误
func (s *PublishSubject[T]) Exception() error {
	return subjectException(&s.terminal)
}
