// Subject interfaces for rxext
// 主题接口：既是数据源又是观察者的热多播源
package rxext

// ============================================================================
// Subject 主题接口
// ============================================================================

// Subject 值流主题
//
// 主题不会串行化并发的OnNext调用，多个生产者时使用 ToSerialized。
type Subject[T any] interface {
	Observable[T]
	Observer[T]

	// HasObservers 检查是否有观察者
	HasObservers() bool
	// HasCompleted 是否以完成终止
	HasCompleted() bool
	// HasException 是否以错误终止
	HasException() bool
	// Exception 返回终止错误
	Exception() error
}

// SingleSubjectAPI 单值主题
type SingleSubjectAPI[T any] interface {
	SingleSource[T]
	SingleObserver[T]

	HasObservers() bool
	HasValue() bool
	TryGetValue() (T, bool)
	HasException() bool
	Exception() error
}

// CompletableSubjectAPI 仅完成主题
type CompletableSubjectAPI interface {
	CompletableSource
	CompletableObserver

	HasObservers() bool
	HasCompleted() bool
	HasException() bool
	Exception() error
}

// lateTerminal 为终止后到达的订阅者解析缓存的终止事件
//
// 订阅者数组已冻结但终止单元仍为空，只可能是引用计数模式下
// 最后一个订阅者离开，此时按 ErrSubjectDisposed 处理。
func lateTerminal(cell *ErrorCell) (err error, completed bool) {
	err, completed = cell.Load()
	if !completed && err == nil {
		return ErrSubjectDisposed, false
	}
	return err, completed
}

// subjectException 终止错误，引用计数释放也算作错误
func subjectException(cell *ErrorCell) error {
	err, _ := cell.Load()
	return err
}
