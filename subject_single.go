// SingleSubject for rxext
// 单值主题：最多携带一个成功值或一个错误
package rxext

import "sync/atomic"

// SingleSubject 单值主题
type SingleSubject[T any] struct {
	subscribers *subscriberList[*singleHandle[T]]
	once        atomic.Bool
	value       T
	terminal    ErrorCell
	upstream    Resource
	refCount    bool
}

var _ SingleSubjectAPI[int] = (*SingleSubject[int])(nil)

// NewSingleSubject 创建单值主题，WithRefCount 启用引用计数
func NewSingleSubject[T any](options ...Option) *SingleSubject[T] {
	config := newConfig(options)
	return &SingleSubject[T]{
		subscribers: newSubscriberList[*singleHandle[T]](),
		refCount:    config.RefCount,
	}
}

type singleHandle[T any] struct {
	downstream SingleObserver[T]
	parent     atomic.Pointer[SingleSubject[T]]
}

func (h *singleHandle[T]) Dispose() {
	if p := h.parent.Swap(nil); p != nil {
		p.remove(h)
	}
}

func (h *singleHandle[T]) IsDisposed() bool {
	return h.parent.Load() == nil
}

func (h *singleHandle[T]) onSuccess(item T) {
	if h.parent.Swap(nil) != nil {
		h.downstream.OnSuccess(item)
	}
}

func (h *singleHandle[T]) onError(err error) {
	if h.parent.Swap(nil) != nil {
		h.downstream.OnError(err)
	}
}

// Subscribe 订阅观察者，终止后的订阅者立即得到缓存的结果
func (s *SingleSubject[T]) Subscribe(observer SingleObserver[T]) {
	h := &singleHandle[T]{downstream: observer}
	h.parent.Store(s)
	observer.OnSubscribe(h)

	if s.subscribers.add(h) {
		if h.IsDisposed() {
			s.remove(h)
		}
		return
	}

	err, success := lateTerminal(&s.terminal)
	if success {
		h.onSuccess(s.value)
	} else {
		h.onError(err)
	}
}

func (s *SingleSubject[T]) remove(h *singleHandle[T]) {
	if s.subscribers.remove(h, s.refCount) {
		s.terminal.TrySet(ErrSubjectDisposed)
		s.upstream.Dispose()
	}
}

// OnSubscribe 引用计数模式下持有上游令牌
func (s *SingleSubject[T]) OnSubscribe(d Disposable) {
	if s.refCount {
		s.upstream.SetOnce(d)
		return
	}
	if s.subscribers.isTerminated() {
		d.Dispose()
	}
}

// OnSuccess 以成功值终止
func (s *SingleSubject[T]) OnSuccess(item T) {
	if !s.once.CompareAndSwap(false, true) {
		return
	}
	s.value = item
	if !s.terminal.TryComplete() {
		return
	}
	for _, h := range s.subscribers.terminate() {
		h.onSuccess(item)
	}
}

// OnError 以错误终止
func (s *SingleSubject[T]) OnError(err error) {
	if !s.once.CompareAndSwap(false, true) || !s.terminal.TrySet(err) {
		reportDropped(err)
		return
	}
	for _, h := range s.subscribers.terminate() {
		h.onError(err)
	}
}

// HasObservers 检查是否有观察者
func (s *SingleSubject[T]) HasObservers() bool {
	return s.subscribers.len() != 0
}

// HasValue 是否以成功值终止
func (s *SingleSubject[T]) HasValue() bool {
	return s.terminal.IsTerminated()
}

// TryGetValue 返回成功值
func (s *SingleSubject[T]) TryGetValue() (T, bool) {
	if s.terminal.IsTerminated() {
		return s.value, true
	}
	var zero T
	return zero, false
}

// HasException 是否以错误终止
func (s *SingleSubject[T]) HasException() bool {
	return subjectException(&s.terminal) != nil
}

// Exception 返回终止错误
func (s *SingleSubject[T]) Exception() error {
	return subjectException(&s.terminal)
}
