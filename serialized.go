// Serialized observers and subjects for rxext
// 串行化观察者：允许多个生产者并发调用OnNext/OnError/OnCompleted
package rxext

import "sync/atomic"

type signalKind uint8

const (
	signalNext signalKind = iota
	signalError
	signalCompleted
)

// signal 排队的信号
type signal[T any] struct {
	kind  signalKind
	value T
	err   error
}

// serializer 把并发信号汇入MPSC队列，由排水循环串行投递给sink
type serializer[T any] struct {
	sink       Sink[T]
	queue      *mpscLinkedQueue[signal[T]]
	trampoline Trampoline
	done       atomic.Bool
	// terminated 只由排水者读写
	terminated bool
}

func newSerializer[T any](sink Sink[T]) *serializer[T] {
	return &serializer[T]{
		sink:  sink,
		queue: newMpscLinkedQueue[signal[T]](),
	}
}

func (s *serializer[T]) onNext(item T) {
	if s.done.Load() {
		return
	}
	if s.trampoline.TryEnter() {
		// 快速路径：没有排水者时直接投递
		if !s.terminated {
			s.sink.OnNext(item)
		}
		if s.trampoline.Leave(1) == 0 {
			return
		}
		s.trampoline.Loop(s.drainPass)
		return
	}
	s.queue.Offer(signal[T]{kind: signalNext, value: item})
	if s.trampoline.Enter() {
		s.trampoline.Loop(s.drainPass)
	}
}

func (s *serializer[T]) onError(err error) {
	if !s.done.CompareAndSwap(false, true) {
		reportDropped(err)
		return
	}
	s.queue.Offer(signal[T]{kind: signalError, err: err})
	s.trampoline.Drain(s.drainPass)
}

func (s *serializer[T]) onCompleted() {
	if !s.done.CompareAndSwap(false, true) {
		return
	}
	s.queue.Offer(signal[T]{kind: signalCompleted})
	s.trampoline.Drain(s.drainPass)
}

func (s *serializer[T]) drainPass() {
	for {
		sig, ok := s.queue.TryPoll()
		if !ok {
			return
		}
		if s.terminated {
			continue
		}
		switch sig.kind {
		case signalNext:
			s.sink.OnNext(sig.value)
		case signalError:
			s.terminated = true
			s.sink.OnError(sig.err)
		case signalCompleted:
			s.terminated = true
			s.sink.OnCompleted()
		}
	}
}

// ============================================================================
// SerializedObserver
// ============================================================================

// SerializedObserver 串行化观察者，下游看到的序列满足观察者协议
type SerializedObserver[T any] struct {
	downstream Observer[T]
	*serializer[T]
}

// NewSerializedObserver 包装下游观察者
func NewSerializedObserver[T any](downstream Observer[T]) *SerializedObserver[T] {
	return &SerializedObserver[T]{
		downstream: downstream,
		serializer: newSerializer[T](downstream),
	}
}

// OnSubscribe 透传给下游
func (o *SerializedObserver[T]) OnSubscribe(d Disposable) {
	o.downstream.OnSubscribe(d)
}

// OnNext 可被并发调用
func (o *SerializedObserver[T]) OnNext(item T) {
	o.onNext(item)
}

// OnError 可被并发调用，只有第一个终止信号生效
func (o *SerializedObserver[T]) OnError(err error) {
	o.onError(err)
}

// OnCompleted 可被并发调用，只有第一个终止信号生效
func (o *SerializedObserver[T]) OnCompleted() {
	o.onCompleted()
}

// ============================================================================
// 串行化主题
// ============================================================================

// Serialized 已串行化的能力标记
type Serialized interface {
	IsSerialized() bool
}

// serializedSubject 串行化主题
type serializedSubject[T any] struct {
	Subject[T]
	*serializer[T]
}

// ToSerialized 返回可被并发调用的主题，已经串行化的主题原样返回
func ToSerialized[T any](subject Subject[T]) Subject[T] {
	if s, ok := subject.(Serialized); ok && s.IsSerialized() {
		return subject
	}
	return &serializedSubject[T]{
		Subject:    subject,
		serializer: newSerializer[T](subject),
	}
}

// IsSerialized 串行化标记
func (s *serializedSubject[T]) IsSerialized() bool {
	return true
}

// OnNext 可被并发调用
func (s *serializedSubject[T]) OnNext(item T) {
	s.onNext(item)
}

// OnError 可被并发调用
func (s *serializedSubject[T]) OnError(err error) {
	s.onError(err)
}

// OnCompleted 可被并发调用
func (s *serializedSubject[T]) OnCompleted() {
	s.onCompleted()
}
