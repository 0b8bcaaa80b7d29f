// Subscribe helpers for rxext
// 基于回调函数的订阅辅助函数
package rxext

import "sync/atomic"

// ============================================================================
// 回调观察者
// ============================================================================

// lambdaObserver 把回调函数适配为观察者
//
// OnNext回调返回panic时释放上游并转为OnError；没有错误回调时
// 错误作为无法投递的错误上报。
type lambdaObserver[T any] struct {
	onNext     OnNext[T]
	onError    OnError
	onComplete OnComplete
	upstream   Resource
	done       atomic.Bool
}

func (o *lambdaObserver[T]) OnSubscribe(d Disposable) {
	o.upstream.SetOnce(d)
}

func (o *lambdaObserver[T]) OnNext(item T) {
	if o.done.Load() || o.upstream.IsDisposed() || o.onNext == nil {
		return
	}
	if err := tryCall("rxext: onNext", func() error {
		o.onNext(item)
		return nil
	}); err != nil {
		o.upstream.Dispose()
		o.OnError(err)
	}
}

func (o *lambdaObserver[T]) OnError(err error) {
	if !o.done.CompareAndSwap(false, true) {
		reportDropped(err)
		return
	}
	if o.onError == nil {
		reportDropped(err)
		return
	}
	tryRun("rxext: onError", func() { o.onError(err) })
}

func (o *lambdaObserver[T]) OnCompleted() {
	if !o.done.CompareAndSwap(false, true) {
		return
	}
	tryRun("rxext: onComplete", o.onComplete)
}

func (o *lambdaObserver[T]) Dispose() {
	o.upstream.Dispose()
}

func (o *lambdaObserver[T]) IsDisposed() bool {
	return o.done.Load() || o.upstream.IsDisposed()
}

// Subscribe 使用回调函数订阅值流，返回取消令牌
func Subscribe[T any](source Observable[T], onNext OnNext[T], onError OnError, onComplete OnComplete) Disposable {
	o := &lambdaObserver[T]{
		onNext:     onNext,
		onError:    onError,
		onComplete: onComplete,
	}
	source.Subscribe(o)
	return o
}

// ============================================================================
// Single / Completable
// ============================================================================

type singleLambdaObserver[T any] struct {
	onSuccess func(item T)
	onError   OnError
	upstream  Resource
	done      atomic.Bool
}

func (o *singleLambdaObserver[T]) OnSubscribe(d Disposable) {
	o.upstream.SetOnce(d)
}

func (o *singleLambdaObserver[T]) OnSuccess(item T) {
	if !o.done.CompareAndSwap(false, true) {
		return
	}
	if o.onSuccess == nil {
		return
	}
	tryRun("rxext: onSuccess", func() { o.onSuccess(item) })
}

func (o *singleLambdaObserver[T]) OnError(err error) {
	if !o.done.CompareAndSwap(false, true) || o.onError == nil {
		reportDropped(err)
		return
	}
	tryRun("rxext: onError", func() { o.onError(err) })
}

func (o *singleLambdaObserver[T]) Dispose() {
	o.upstream.Dispose()
}

func (o *singleLambdaObserver[T]) IsDisposed() bool {
	return o.done.Load() || o.upstream.IsDisposed()
}

// SubscribeSingle 使用回调函数订阅单值源
func SubscribeSingle[T any](source SingleSource[T], onSuccess func(item T), onError OnError) Disposable {
	o := &singleLambdaObserver[T]{onSuccess: onSuccess, onError: onError}
	source.Subscribe(o)
	return o
}

type completableLambdaObserver struct {
	onComplete OnComplete
	onError    OnError
	upstream   Resource
	done       atomic.Bool
}

func (o *completableLambdaObserver) OnSubscribe(d Disposable) {
	o.upstream.SetOnce(d)
}

func (o *completableLambdaObserver) OnCompleted() {
	if !o.done.CompareAndSwap(false, true) {
		return
	}
	tryRun("rxext: onComplete", o.onComplete)
}

func (o *completableLambdaObserver) OnError(err error) {
	if !o.done.CompareAndSwap(false, true) || o.onError == nil {
		reportDropped(err)
		return
	}
	tryRun("rxext: onError", func() { o.onError(err) })
}

func (o *completableLambdaObserver) Dispose() {
	o.upstream.Dispose()
}

func (o *completableLambdaObserver) IsDisposed() bool {
	return o.done.Load() || o.upstream.IsDisposed()
}

// SubscribeCompletable 使用回调函数订阅仅完成源
func SubscribeCompletable(source CompletableSource, onComplete OnComplete, onError OnError) Disposable {
	o := &completableLambdaObserver{onComplete: onComplete, onError: onError}
	source.Subscribe(o)
	return o
}
