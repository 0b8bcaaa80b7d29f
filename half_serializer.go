// Half-serializer for rxext
// 半串行化器：保证OnNext与并发到达的终止信号不会在下游重叠
package rxext

import "sync/atomic"

// HalfSerializer 半串行化器状态 (wip, error)
//
// 调用方必须自行串行化 HalfOnNext（上游已遵守观察者协议），
// 半串行化器只负责OnNext与竞争的OnError/OnCompleted之间的顺序。
// 下游只会看到不重叠的OnNext以及至多一次终止调用。零值可用。
type HalfSerializer struct {
	wip atomic.Int32
	err ErrorCell
}

// IsTerminated 是否已有终止信号到达
func (hs *HalfSerializer) IsTerminated() bool {
	return !hs.err.IsEmpty()
}

// HalfOnNext 在没有终止信号在途时投递值
func HalfOnNext[T any](hs *HalfSerializer, sink Sink[T], item T) {
	if !hs.wip.CompareAndSwap(0, 1) {
		return
	}
	sink.OnNext(item)
	if hs.wip.Add(-1) != 0 {
		// 终止信号在OnNext期间到达，由这里投递
		err, terminated := hs.err.Load()
		if terminated {
			sink.OnCompleted()
		} else {
			sink.OnError(err)
		}
	}
}

// HalfOnError 投递错误，重复的终止信号作为无法投递的错误上报
func HalfOnError[T any](hs *HalfSerializer, sink Sink[T], err error) {
	if !hs.err.TrySet(err) {
		reportDropped(err)
		return
	}
	if hs.wip.Add(1) == 1 {
		sink.OnError(err)
	}
}

// HalfOnCompleted 投递完成信号
func HalfOnCompleted[T any](hs *HalfSerializer, sink Sink[T]) {
	if !hs.err.TryComplete() {
		return
	}
	if hs.wip.Add(1) == 1 {
		sink.OnCompleted()
	}
}
