// Package rxext provides the concurrency core of a reactive extensions library:
// hot multicast subjects, concurrency-limited flow operators and lock-free queues.
// 响应式扩展库的并发核心：热主题、限流组合操作符与无锁队列
package rxext

// ============================================================================
// 观察者协议
// ============================================================================

// Sink 接收值流信号的最小接口，半串行化器与排水循环只依赖它
type Sink[T any] interface {
	// OnNext 接收下一个值
	OnNext(item T)
	// OnError 接收终止错误
	OnError(err error)
	// OnCompleted 接收完成信号
	OnCompleted()
}

// Observer 值流观察者: OnSubscribe OnNext* (OnError|OnCompleted)?
type Observer[T any] interface {
	// OnSubscribe 在任何其他信号之前调用，交付取消令牌
	OnSubscribe(d Disposable)
	Sink[T]
}

// SingleObserver 单值观察者: OnSubscribe (OnSuccess|OnError)
type SingleObserver[T any] interface {
	OnSubscribe(d Disposable)
	OnSuccess(item T)
	OnError(err error)
}

// CompletableObserver 仅完成观察者: OnSubscribe (OnCompleted|OnError)
type CompletableObserver interface {
	OnSubscribe(d Disposable)
	OnCompleted()
	OnError(err error)
}

// ============================================================================
// 数据源协议
// ============================================================================

// Observable 值流数据源
type Observable[T any] interface {
	Subscribe(observer Observer[T])
}

// SingleSource 单值数据源
type SingleSource[T any] interface {
	Subscribe(observer SingleObserver[T])
}

// CompletableSource 仅完成数据源
type CompletableSource interface {
	Subscribe(observer CompletableObserver)
}

// ObservableFunc 将函数适配为Observable
type ObservableFunc[T any] func(observer Observer[T])

// Subscribe 调用函数本身
func (f ObservableFunc[T]) Subscribe(observer Observer[T]) {
	f(observer)
}

// SingleFunc 将函数适配为SingleSource
type SingleFunc[T any] func(observer SingleObserver[T])

// Subscribe 调用函数本身
func (f SingleFunc[T]) Subscribe(observer SingleObserver[T]) {
	f(observer)
}

// CompletableFunc 将函数适配为CompletableSource
type CompletableFunc func(observer CompletableObserver)

// Subscribe 调用函数本身
func (f CompletableFunc) Subscribe(observer CompletableObserver) {
	f(observer)
}

// ============================================================================
// 函数类型定义
// ============================================================================

// OnNext 处理下一个值的函数
type OnNext[T any] func(item T)

// OnError 处理错误的函数
type OnError func(err error)

// OnComplete 处理完成的函数
type OnComplete func()

// Mapper 映射函数，返回的错误和panic都会转换为OnError
type Mapper[T, R any] func(item T) (R, error)

func identity[T any](item T) (T, error) {
	return item, nil
}
