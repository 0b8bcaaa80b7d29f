// Safe emitters for rxext
// 安全发射器：让用户代码无法违反观察者协议
package rxext

import "sync/atomic"

// ============================================================================
// 发射器接口
// ============================================================================

// ObservableEmitter 值流发射器
//
// 释放或终止之后的信号都是空操作，终止之后到达的错误作为无法投递的错误上报。
type ObservableEmitter[T any] interface {
	Sink[T]
	// IsDisposed 下游是否已释放或序列已终止
	IsDisposed() bool
	// SetResource 关联一个资源，释放或终止时一并释放；替换时释放旧资源
	SetResource(d Disposable)
}

// SingleEmitter 单值发射器
type SingleEmitter[T any] interface {
	OnSuccess(item T)
	OnError(err error)
	IsDisposed() bool
	SetResource(d Disposable)
}

// CompletableEmitter 仅完成发射器
type CompletableEmitter interface {
	OnCompleted()
	OnError(err error)
	IsDisposed() bool
	SetResource(d Disposable)
}

// emitterBase 发射器共享状态：一个资源单元加一个终止锁存
type emitterBase struct {
	resource Resource
	done     atomic.Bool
}

// Dispose 下游取消
func (e *emitterBase) Dispose() {
	e.resource.Dispose()
}

// IsDisposed 检查是否已释放
func (e *emitterBase) IsDisposed() bool {
	return e.done.Load() || e.resource.IsDisposed()
}

// SetResource 关联资源
func (e *emitterBase) SetResource(d Disposable) {
	e.resource.Set(d)
}

// tryTerminate 只有第一个终止信号返回true
func (e *emitterBase) tryTerminate() bool {
	if e.resource.IsDisposed() {
		return false
	}
	return e.done.CompareAndSwap(false, true)
}

// ============================================================================
// Create 系列
// ============================================================================

type observableEmitter[T any] struct {
	emitterBase
	downstream Observer[T]
}

func (e *observableEmitter[T]) OnNext(item T) {
	if e.IsDisposed() {
		return
	}
	e.downstream.OnNext(item)
}

func (e *observableEmitter[T]) OnError(err error) {
	if !e.tryTerminate() {
		reportDropped(err)
		return
	}
	defer e.resource.Dispose()
	e.downstream.OnError(err)
}

func (e *observableEmitter[T]) OnCompleted() {
	if !e.tryTerminate() {
		return
	}
	defer e.resource.Dispose()
	e.downstream.OnCompleted()
}

// Create 从发射函数创建值流
//
// body 在订阅者的goroutine中同步执行，返回的错误或panic会转换为OnError。
// 发射器不串行化并发调用，多个生产者时对发射器再做串行化。
func Create[T any](body func(emitter ObservableEmitter[T]) error) Observable[T] {
	return ObservableFunc[T](func(observer Observer[T]) {
		e := &observableEmitter[T]{downstream: observer}
		observer.OnSubscribe(e)
		if err := tryCall("rxext: create", func() error { return body(e) }); err != nil {
			e.OnError(err)
		}
	})
}

type singleEmitter[T any] struct {
	emitterBase
	downstream SingleObserver[T]
}

func (e *singleEmitter[T]) OnSuccess(item T) {
	if !e.tryTerminate() {
		return
	}
	defer e.resource.Dispose()
	e.downstream.OnSuccess(item)
}

func (e *singleEmitter[T]) OnError(err error) {
	if !e.tryTerminate() {
		reportDropped(err)
		return
	}
	defer e.resource.Dispose()
	e.downstream.OnError(err)
}

// CreateSingle 从发射函数创建单值源
func CreateSingle[T any](body func(emitter SingleEmitter[T]) error) SingleSource[T] {
	return SingleFunc[T](func(observer SingleObserver[T]) {
		e := &singleEmitter[T]{downstream: observer}
		observer.OnSubscribe(e)
		if err := tryCall("rxext: create single", func() error { return body(e) }); err != nil {
			e.OnError(err)
		}
	})
}

type completableEmitter struct {
	emitterBase
	downstream CompletableObserver
}

func (e *completableEmitter) OnCompleted() {
	if !e.tryTerminate() {
		return
	}
	defer e.resource.Dispose()
	e.downstream.OnCompleted()
}

func (e *completableEmitter) OnError(err error) {
	if !e.tryTerminate() {
		reportDropped(err)
		return
	}
	defer e.resource.Dispose()
	e.downstream.OnError(err)
}

// CreateCompletable 从发射函数创建仅完成源
func CreateCompletable(body func(emitter CompletableEmitter) error) CompletableSource {
	return CompletableFunc(func(observer CompletableObserver) {
		e := &completableEmitter{downstream: observer}
		observer.OnSubscribe(e)
		if err := tryCall("rxext: create completable", func() error { return body(e) }); err != nil {
			e.OnError(err)
		}
	})
}
