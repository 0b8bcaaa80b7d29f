// Unicast and Monocast subjects for rxext
// 单播主题：缓冲事件直到唯一的观察者到来
package rxext

import "sync/atomic"

// ============================================================================
// UnicastSubject 单播主题
// ============================================================================

// UnicastSubject 一生只允许一个观察者
//
// 观察者到来之前的事件缓冲在SPSC队列中；第二个订阅者立即收到
// ErrAlreadySubscribed。终止或观察者释放时调用一次 onTerminate。
type UnicastSubject[T any] struct {
	queue       *SpscLinkedArrayQueue[T]
	onTerminate atomic.Pointer[func()]
	once        atomic.Bool
	downstream  atomic.Pointer[Observer[T]]
	disposed    atomic.Bool
	done        atomic.Bool
	terminal    ErrorCell
	trampoline  Trampoline

	// 以下字段只由排水者访问
	fused     bool
	delivered bool
}

var _ Subject[int] = (*UnicastSubject[int])(nil)

// NewUnicastSubject 创建单播主题
func NewUnicastSubject[T any](options ...Option) *UnicastSubject[T] {
	config := newConfig(options)
	s := &UnicastSubject[T]{
		queue: NewSpscLinkedArrayQueue[T](config.CapacityHint),
	}
	if config.OnTerminate != nil {
		fn := config.OnTerminate
		s.onTerminate.Store(&fn)
	}
	return s
}

// unicastHandle 交给观察者的令牌，同时提供异步融合
type unicastHandle[T any] struct {
	parent *UnicastSubject[T]
}

func (h unicastHandle[T]) Dispose() {
	h.parent.dispose()
}

func (h unicastHandle[T]) IsDisposed() bool {
	return h.parent.disposed.Load()
}

// RequestFusion 只支持异步融合
func (h unicastHandle[T]) RequestFusion(mode FusionMode) FusionMode {
	if mode&FusionAsync != 0 {
		h.parent.fused = true
		return FusionAsync
	}
	return FusionNone
}

func (h unicastHandle[T]) TryPoll() (T, PollState, error) {
	if v, ok := h.parent.queue.TryPoll(); ok {
		return v, PollReady, nil
	}
	var zero T
	return zero, PollEmpty, nil
}

func (h unicastHandle[T]) IsEmpty() bool {
	return h.parent.queue.IsEmpty()
}

func (h unicastHandle[T]) Clear() {
	h.parent.queue.Clear()
}

// Subscribe 订阅观察者，只有第一个订阅者会成功
func (s *UnicastSubject[T]) Subscribe(observer Observer[T]) {
	if !s.once.CompareAndSwap(false, true) {
		observer.OnSubscribe(Disposed())
		observer.OnError(ErrAlreadySubscribed)
		return
	}
	observer.OnSubscribe(unicastHandle[T]{parent: s})
	if s.disposed.Load() {
		return
	}
	s.downstream.Store(&observer)
	s.drain()
}

// OnSubscribe 终止或释放后到来的上游令牌直接释放
func (s *UnicastSubject[T]) OnSubscribe(d Disposable) {
	if s.done.Load() || s.disposed.Load() {
		d.Dispose()
	}
}

// OnNext 入队并驱动排水
func (s *UnicastSubject[T]) OnNext(item T) {
	if s.done.Load() || s.disposed.Load() {
		return
	}
	s.queue.Offer(item)
	s.drain()
}

// OnError 以错误终止
func (s *UnicastSubject[T]) OnError(err error) {
	if s.done.Load() || !s.terminal.TrySet(err) {
		reportDropped(err)
		return
	}
	s.done.Store(true)
	s.fireTerminate()
	s.drain()
}

// OnCompleted 以完成终止
func (s *UnicastSubject[T]) OnCompleted() {
	if s.done.Load() || !s.terminal.TryComplete() {
		return
	}
	s.done.Store(true)
	s.fireTerminate()
	s.drain()
}

func (s *UnicastSubject[T]) dispose() {
	if s.disposed.CompareAndSwap(false, true) {
		s.fireTerminate()
		s.downstream.Store(nil)
		s.drain()
	}
}

func (s *UnicastSubject[T]) fireTerminate() {
	if fn := s.onTerminate.Swap(nil); fn != nil {
		tryRun("rxext: unicast onTerminate", *fn)
	}
}

func (s *UnicastSubject[T]) drain() {
	s.trampoline.Drain(s.drainPass)
}

func (s *UnicastSubject[T]) drainPass() {
	if s.disposed.Load() {
		s.clear()
		return
	}
	ref := s.downstream.Load()
	if ref == nil || s.delivered {
		return
	}
	downstream := *ref

	if s.fused {
		d := s.done.Load()
		var zero T
		downstream.OnNext(zero)
		if d {
			s.deliverTerminal(downstream)
		}
		return
	}

	for {
		if s.disposed.Load() {
			s.clear()
			return
		}
		d := s.done.Load()
		item, ok := s.queue.TryPoll()
		if !ok {
			if d {
				s.deliverTerminal(downstream)
			}
			return
		}
		downstream.OnNext(item)
	}
}

// clear 融合模式下队列归消费者所有，由消费者清空
func (s *UnicastSubject[T]) clear() {
	if !s.fused {
		s.queue.Clear()
	}
}

func (s *UnicastSubject[T]) deliverTerminal(downstream Observer[T]) {
	s.delivered = true
	s.downstream.Store(nil)
	err, completed := s.terminal.Load()
	if completed {
		downstream.OnCompleted()
	} else {
		downstream.OnError(err)
	}
}

// HasObservers 检查是否有观察者
func (s *UnicastSubject[T]) HasObservers() bool {
	return s.downstream.Load() != nil
}

// HasCompleted 是否以完成终止
func (s *UnicastSubject[T]) HasCompleted() bool {
	return s.terminal.IsTerminated()
}

// HasException 是否以错误终止
func (s *UnicastSubject[T]) HasException() bool {
	return subjectException(&s.terminal) != nil
}

// Exception 返回终止错误
func (s *UnicastSubject[T]) Exception() error {
	return subjectException(&s.terminal)
}

// ============================================================================
// MonocastSubject 单观察者主题
// ============================================================================

// MonocastSubject 同一时刻只允许一个观察者
//
// 与 UnicastSubject 不同，当前观察者释放后新的观察者可以接入，
// 并从缓冲中剩余的元素继续接收。终止事件会重放给之后的观察者。
// onTerminate 只在主题终止时调用一次，观察者释放不触发。
type MonocastSubject[T any] struct {
	queue       *SpscLinkedArrayQueue[T]
	current     atomic.Pointer[monocastHandle[T]]
	done        atomic.Bool
	terminal    ErrorCell
	trampoline  Trampoline
	onTerminate atomic.Pointer[func()]
}

var _ Subject[int] = (*MonocastSubject[int])(nil)

// NewMonocastSubject 创建单观察者主题
func NewMonocastSubject[T any](options ...Option) *MonocastSubject[T] {
	config := newConfig(options)
	s := &MonocastSubject[T]{
		queue: NewSpscLinkedArrayQueue[T](config.CapacityHint),
	}
	if config.OnTerminate != nil {
		fn := config.OnTerminate
		s.onTerminate.Store(&fn)
	}
	return s
}

func (s *MonocastSubject[T]) fireTerminate() {
	if fn := s.onTerminate.Swap(nil); fn != nil {
		tryRun("rxext: monocast onTerminate", *fn)
	}
}

type monocastHandle[T any] struct {
	downstream Observer[T]
	parent     atomic.Pointer[MonocastSubject[T]]
}

// Dispose 断开当前观察者，主题重新接受订阅
func (h *monocastHandle[T]) Dispose() {
	if p := h.parent.Swap(nil); p != nil {
		p.current.CompareAndSwap(h, nil)
	}
}

func (h *monocastHandle[T]) IsDisposed() bool {
	return h.parent.Load() == nil
}

// Subscribe 在没有当前观察者时接入，否则以 ErrAlreadySubscribed 拒绝
func (s *MonocastSubject[T]) Subscribe(observer Observer[T]) {
	h := &monocastHandle[T]{downstream: observer}
	h.parent.Store(s)
	if !s.current.CompareAndSwap(nil, h) {
		observer.OnSubscribe(Disposed())
		observer.OnError(ErrAlreadySubscribed)
		return
	}
	observer.OnSubscribe(h)
	s.drain()
}

// OnSubscribe 终止后到来的上游令牌直接释放
func (s *MonocastSubject[T]) OnSubscribe(d Disposable) {
	if s.done.Load() {
		d.Dispose()
	}
}

// OnNext 入队并驱动排水
func (s *MonocastSubject[T]) OnNext(item T) {
	if s.done.Load() {
		return
	}
	s.queue.Offer(item)
	s.drain()
}

// OnError 以错误终止
func (s *MonocastSubject[T]) OnError(err error) {
	if !s.terminal.TrySet(err) {
		reportDropped(err)
		return
	}
	s.done.Store(true)
	s.fireTerminate()
	s.drain()
}

// OnCompleted 以完成终止
func (s *MonocastSubject[T]) OnCompleted() {
	if !s.terminal.TryComplete() {
		return
	}
	s.done.Store(true)
	s.fireTerminate()
	s.drain()
}

func (s *MonocastSubject[T]) drain() {
	s.trampoline.Drain(s.drainPass)
}

func (s *MonocastSubject[T]) drainPass() {
	for {
		h := s.current.Load()
		if h == nil || h.IsDisposed() {
			return
		}
		d := s.done.Load()
		item, ok := s.queue.TryPoll()
		if !ok {
			if d && h.parent.Swap(nil) != nil {
				// 终止后释放观察者位置，之后的订阅者得到终止事件的重放
				s.current.CompareAndSwap(h, nil)
				err, completed := s.terminal.Load()
				if completed {
					h.downstream.OnCompleted()
				} else {
					h.downstream.OnError(err)
				}
			}
			return
		}
		h.downstream.OnNext(item)
	}
}

// HasObservers 检查是否有观察者
func (s *MonocastSubject[T]) HasObservers() bool {
	return s.current.Load() != nil
}

// HasCompleted 是否以完成终止
func (s *MonocastSubject[T]) HasCompleted() bool {
	return s.terminal.IsTerminated()
}

// HasException 是否以错误终止
func (s *MonocastSubject[T]) HasException() bool {
	return subjectException(&s.terminal) != nil
}

// Exception 返回终止错误
func (s *MonocastSubject[T]) Exception() error {
	return subjectException(&s.terminal)
}
