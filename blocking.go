// Blocking operators for rxext
// 阻塞操作符：在调用方goroutine上等待序列终止，包含 BlockingFirst、BlockingLast、BlockingToSlice 等
package rxext

import (
	"context"
	"sync/atomic"
)

// ============================================================================
// 阻塞观察者
// ============================================================================

// blockingObserver 把信号交给回调，终止时关闭done
//
// err在关闭done之前写入，done关闭之后只读。
type blockingObserver[T any] struct {
	onNext   func(item T) bool
	upstream Resource
	finished atomic.Bool
	err      error
	done     chan struct{}
}

func (o *blockingObserver[T]) OnSubscribe(d Disposable) {
	o.upstream.SetOnce(d)
}

func (o *blockingObserver[T]) OnNext(item T) {
	if o.finished.Load() {
		return
	}
	var more bool
	if err := tryCall("rxext: blocking onNext", func() error {
		more = o.onNext(item)
		return nil
	}); err != nil {
		o.upstream.Dispose()
		o.finish(err)
		return
	}
	if !more {
		o.upstream.Dispose()
		o.finish(nil)
	}
}

func (o *blockingObserver[T]) OnError(err error) {
	if !o.finish(err) {
		reportDropped(err)
	}
}

func (o *blockingObserver[T]) OnCompleted() {
	o.finish(nil)
}

func (o *blockingObserver[T]) finish(err error) bool {
	if !o.finished.CompareAndSwap(false, true) {
		return false
	}
	o.err = err
	close(o.done)
	return true
}

// blockingRun 订阅并等待终止或ctx结束，onNext返回false时提前结束
//
// ctx结束时释放上游并返回ctx的错误，之后到达的信号被忽略。
func blockingRun[T any](ctx context.Context, source Observable[T], onNext func(item T) bool) error {
	o := &blockingObserver[T]{
		onNext: onNext,
		done:   make(chan struct{}),
	}
	source.Subscribe(o)

	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		if o.finish(ctx.Err()) {
			o.upstream.Dispose()
			return ctx.Err()
		}
		// 终止事件先一步到达
		<-o.done
		return o.err
	}
}

// ============================================================================
// 阻塞操作符实现
// ============================================================================

// BlockingForEach 阻塞遍历所有值
func BlockingForEach[T any](ctx context.Context, source Observable[T], action func(item T)) error {
	return blockingRun(ctx, source, func(item T) bool {
		action(item)
		return true
	})
}

// BlockingWait 阻塞等待序列终止，忽略所有值
func BlockingWait[T any](ctx context.Context, source Observable[T]) error {
	return blockingRun(ctx, source, func(T) bool { return true })
}

// BlockingToSlice 阻塞收集所有值到切片，失败时返回nil
func BlockingToSlice[T any](ctx context.Context, source Observable[T]) ([]T, error) {
	var items []T
	if err := blockingRun(ctx, source, func(item T) bool {
		items = append(items, item)
		return true
	}); err != nil {
		return nil, err
	}
	return items, nil
}

// BlockingFirst 阻塞获取第一个值，取到后释放上游
func BlockingFirst[T any](ctx context.Context, source Observable[T]) (T, error) {
	var first T
	found := false
	if err := blockingRun(ctx, source, func(item T) bool {
		first, found = item, true
		return false
	}); err != nil {
		var zero T
		return zero, err
	}
	if !found {
		return first, ErrNoSuchElement
	}
	return first, nil
}

// BlockingLast 阻塞获取最后一个值
func BlockingLast[T any](ctx context.Context, source Observable[T]) (T, error) {
	var last T
	found := false
	if err := blockingRun(ctx, source, func(item T) bool {
		last, found = item, true
		return true
	}); err != nil {
		var zero T
		return zero, err
	}
	if !found {
		return last, ErrNoSuchElement
	}
	return last, nil
}
