// Factory functions for rxext
// 工厂函数：冷数据源，同步发射并支持同步融合
package rxext

import (
	"context"
	"sync/atomic"
)

// ============================================================================
// 基础工厂函数
// ============================================================================

// indexedSource 按下标生成元素的有限数据源
type indexedSource[T any] struct {
	n  int
	at func(i int) T
}

func (s indexedSource[T]) Subscribe(observer Observer[T]) {
	d := &indexedDisposable[T]{source: s, downstream: observer}
	observer.OnSubscribe(d)
	if d.fused {
		return
	}
	d.run()
}

// indexedDisposable 订阅令牌，协商同步融合后由消费者直接拉取
type indexedDisposable[T any] struct {
	source     indexedSource[T]
	downstream Observer[T]
	index      int
	fused      bool
	disposed   atomic.Bool
}

func (d *indexedDisposable[T]) Dispose() {
	d.disposed.Store(true)
}

func (d *indexedDisposable[T]) IsDisposed() bool {
	return d.disposed.Load()
}

// RequestFusion 只支持同步融合
func (d *indexedDisposable[T]) RequestFusion(mode FusionMode) FusionMode {
	if mode&FusionSync != 0 {
		d.fused = true
		return FusionSync
	}
	return FusionNone
}

func (d *indexedDisposable[T]) TryPoll() (T, PollState, error) {
	if d.index == d.source.n {
		var zero T
		return zero, PollTerminated, nil
	}
	v := d.source.at(d.index)
	d.index++
	return v, PollReady, nil
}

func (d *indexedDisposable[T]) IsEmpty() bool {
	return d.index == d.source.n
}

func (d *indexedDisposable[T]) Clear() {
	d.index = d.source.n
}

func (d *indexedDisposable[T]) run() {
	for ; d.index < d.source.n; d.index++ {
		if d.IsDisposed() {
			return
		}
		d.downstream.OnNext(d.source.at(d.index))
	}
	if !d.IsDisposed() {
		d.downstream.OnCompleted()
	}
}

// FromSlice 从切片创建Observable
func FromSlice[T any](items []T) Observable[T] {
	return indexedSource[T]{
		n:  len(items),
		at: func(i int) T { return items[i] },
	}
}

// Just 从给定的值创建Observable
func Just[T any](items ...T) Observable[T] {
	return FromSlice(items)
}

// Range 创建发射 [start, start+count) 的Observable
func Range(start, count int) Observable[int] {
	if count < 0 {
		count = 0
	}
	return indexedSource[int]{
		n:  count,
		at: func(i int) int { return start + i },
	}
}

// EmptyObservable 创建立即完成的Observable
func EmptyObservable[T any]() Observable[T] {
	return ObservableFunc[T](func(observer Observer[T]) {
		observer.OnSubscribe(Empty())
		observer.OnCompleted()
	})
}

// Never 创建一个永不发射任何信号的Observable
func Never[T any]() Observable[T] {
	return ObservableFunc[T](func(observer Observer[T]) {
		observer.OnSubscribe(Empty())
	})
}

// Throw 创建立即以错误终止的Observable
func Throw[T any](err error) Observable[T] {
	return ObservableFunc[T](func(observer Observer[T]) {
		observer.OnSubscribe(Empty())
		observer.OnError(err)
	})
}

// Defer 每次订阅时调用工厂函数创建新的Observable
func Defer[T any](factory func() (Observable[T], error)) Observable[T] {
	return ObservableFunc[T](func(observer Observer[T]) {
		var source Observable[T]
		err := tryCall("rxext: defer", func() error {
			var ferr error
			source, ferr = factory()
			return ferr
		})
		if err != nil {
			observer.OnSubscribe(Empty())
			observer.OnError(err)
			return
		}
		source.Subscribe(observer)
	})
}

// FromChannel 从Go channel创建Observable
//
// 在独立的goroutine中读取channel直到关闭、ctx结束或下游释放。
// ctx结束时以ctx.Err()终止。
func FromChannel[T any](ctx context.Context, ch <-chan T) Observable[T] {
	return Create(func(emitter ObservableEmitter[T]) error {
		runCtx, cancel := context.WithCancel(ctx)
		emitter.SetResource(NewDisposable(cancel))
		go func() {
			for {
				select {
				case <-runCtx.Done():
					if ctx.Err() != nil {
						emitter.OnError(ctx.Err())
					}
					return
				case v, ok := <-ch:
					if !ok {
						emitter.OnCompleted()
						return
					}
					emitter.OnNext(v)
				}
			}
		}()
		return nil
	})
}

// ============================================================================
// Single / Completable 工厂函数
// ============================================================================

// JustSingle 以给定值成功
func JustSingle[T any](item T) SingleSource[T] {
	return SingleFunc[T](func(observer SingleObserver[T]) {
		observer.OnSubscribe(Empty())
		observer.OnSuccess(item)
	})
}

// ThrowSingle 以错误终止
func ThrowSingle[T any](err error) SingleSource[T] {
	return SingleFunc[T](func(observer SingleObserver[T]) {
		observer.OnSubscribe(Empty())
		observer.OnError(err)
	})
}

// NeverSingle 永不终止
func NeverSingle[T any]() SingleSource[T] {
	return SingleFunc[T](func(observer SingleObserver[T]) {
		observer.OnSubscribe(Empty())
	})
}

// Complete 立即完成
func Complete() CompletableSource {
	return CompletableFunc(func(observer CompletableObserver) {
		observer.OnSubscribe(Empty())
		observer.OnCompleted()
	})
}

// ThrowCompletable 以错误终止
func ThrowCompletable(err error) CompletableSource {
	return CompletableFunc(func(observer CompletableObserver) {
		observer.OnSubscribe(Empty())
		observer.OnError(err)
	})
}

// NeverCompletable 永不终止
func NeverCompletable() CompletableSource {
	return CompletableFunc(func(observer CompletableObserver) {
		observer.OnSubscribe(Empty())
	})
}
