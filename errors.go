// Error handling for rxext
// 错误定义、错误聚合与用户回调的panic捕获
package rxext

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/multierr"
)

var (
	// ErrAlreadySubscribed 单观察者主题收到第二个订阅者
	ErrAlreadySubscribed = errors.New("rxext: only a single observer is allowed")
	// ErrSubjectDisposed 引用计数主题在终止前失去了最后一个订阅者
	ErrSubjectDisposed = errors.New("rxext: subject disposed")
	// ErrDisposableSet 资源单元已经设置过
	ErrDisposableSet = errors.New("rxext: disposable already set")
	// ErrSchedulerDisposed 调度器已释放
	ErrSchedulerDisposed = errors.New("rxext: scheduler disposed")
	// ErrNoSuchElement 阻塞取值时序列为空
	ErrNoSuchElement = errors.New("rxext: sequence is empty")
)

// ============================================================================
// ErrorCell 错误聚合单元
// ============================================================================

type errorHolder struct {
	err error
}

// terminatedHolder 终止哨兵，只按指针比较
var terminatedHolder = &errorHolder{}

// ErrorCell 原子错误单元，取值为 空 / 错误 / 终止哨兵
//
// 延迟错误模式用 TryAdd 聚合，快速失败模式用 TrySet 只保留第一个错误，
// 最终发射前用 Terminate 取出快照并阻止后续聚合。
type ErrorCell struct {
	p atomic.Pointer[errorHolder]
}

// Load 返回当前错误以及是否已是终止哨兵
func (c *ErrorCell) Load() (err error, terminated bool) {
	h := c.p.Load()
	if h == nil {
		return nil, false
	}
	if h == terminatedHolder {
		return nil, true
	}
	return h.err, false
}

// IsTerminated 是否已是终止哨兵
func (c *ErrorCell) IsTerminated() bool {
	return c.p.Load() == terminatedHolder
}

// IsEmpty 没有错误也没有终止
func (c *ErrorCell) IsEmpty() bool {
	return c.p.Load() == nil
}

// TrySet 只在单元为空时安装错误，第一个错误获胜
func (c *ErrorCell) TrySet(err error) bool {
	return c.p.CompareAndSwap(nil, &errorHolder{err: err})
}

// TryComplete 只在单元为空时安装终止哨兵
func (c *ErrorCell) TryComplete() bool {
	return c.p.CompareAndSwap(nil, terminatedHolder)
}

// TryAdd 安装第一个错误或与已有错误组合，终止后返回false
func (c *ErrorCell) TryAdd(err error) bool {
	for {
		cur := c.p.Load()
		if cur == terminatedHolder {
			return false
		}
		next := err
		if cur != nil {
			next = multierr.Append(cur.err, err)
		}
		if c.p.CompareAndSwap(cur, &errorHolder{err: next}) {
			return true
		}
	}
}

// Terminate 切换到终止哨兵并返回之前聚合的错误
func (c *ErrorCell) Terminate() error {
	cur := c.p.Load()
	if cur == terminatedHolder {
		return nil
	}
	cur = c.p.Swap(terminatedHolder)
	if cur == nil || cur == terminatedHolder {
		return nil
	}
	return cur.err
}

// CompositeErrors 返回组合错误的组成部分，非组合错误返回单元素切片
func CompositeErrors(err error) []error {
	return multierr.Errors(err)
}

// ============================================================================
// 用户回调的安全调用
// ============================================================================

// tryCall 调用用户代码，返回的错误或panic都作为错误返回
func tryCall(site string, fn func() error) (err error) {
	var catcher panics.Catcher
	catcher.Try(func() {
		err = fn()
	})
	if r := catcher.Recovered(); r != nil {
		err = errors.WithMessage(r.AsError(), site)
	}
	return err
}

// tryMap 调用映射函数
func tryMap[T, R any](site string, mapper func(T) (R, error), item T) (result R, err error) {
	err = tryCall(site, func() error {
		var mapErr error
		result, mapErr = mapper(item)
		return mapErr
	})
	return result, err
}

// tryRun 调用无返回值的回调，失败只能作为无法投递的错误上报
func tryRun(site string, action func()) {
	if action == nil {
		return
	}
	if err := tryCall(site, func() error {
		action()
		return nil
	}); err != nil {
		reportDropped(err)
	}
}
