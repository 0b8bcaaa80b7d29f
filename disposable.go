// Disposable and resource protocol for rxext
// 可释放资源协议：三态资源单元与组合资源
package rxext

import (
	"sync"
	"sync/atomic"
)

// ============================================================================
// Disposable 可释放资源
// ============================================================================

//go:generate mockgen -source=disposable.go -destination=mock_disposable_test.go -package=rxext Disposable

// Disposable 可释放资源的接口
type Disposable interface {
	// Dispose 释放资源，幂等
	Dispose()
	// IsDisposed 检查是否已释放
	IsDisposed() bool
}

// actionDisposable 释放时执行一次动作
type actionDisposable struct {
	action   func()
	disposed atomic.Bool
}

// NewDisposable 创建释放时执行action的资源，action最多执行一次
func NewDisposable(action func()) Disposable {
	return &actionDisposable{action: action}
}

// Dispose 释放资源
func (d *actionDisposable) Dispose() {
	if d.disposed.CompareAndSwap(false, true) {
		if d.action != nil {
			d.action()
		}
	}
}

// IsDisposed 检查是否已释放
func (d *actionDisposable) IsDisposed() bool {
	return d.disposed.Load()
}

// Empty 返回一个新的空资源
func Empty() Disposable {
	return &actionDisposable{}
}

type disposedDisposable struct{}

func (disposedDisposable) Dispose()         {}
func (disposedDisposable) IsDisposed() bool { return true }

var disposedInstance Disposable = disposedDisposable{}

// Disposed 返回一个已释放的资源，用于立即终止的订阅
func Disposed() Disposable {
	return disposedInstance
}

// ============================================================================
// Resource 三态资源单元
// ============================================================================

type resourceBox struct {
	d Disposable
}

// disposedBox 已释放哨兵，只按指针比较
var disposedBox = &resourceBox{}

// Resource 三态资源单元: 未设置 / 已设置 / 已释放
//
// 一旦观察到已释放，任何后续安装的资源都会立即被释放。零值可用。
type Resource struct {
	ref atomic.Pointer[resourceBox]
}

// Get 返回当前资源，未设置或已释放时返回nil
func (r *Resource) Get() Disposable {
	b := r.ref.Load()
	if b == nil || b == disposedBox {
		return nil
	}
	return b.d
}

// IsDisposed 检查单元是否已释放
func (r *Resource) IsDisposed() bool {
	return r.ref.Load() == disposedBox
}

// SetOnce 仅在未设置时安装资源
//
// 单元已释放时d被释放并返回false；单元已设置时d同样被释放，
// 并上报ErrDisposableSet协议违规。
func (r *Resource) SetOnce(d Disposable) bool {
	if r.ref.CompareAndSwap(nil, &resourceBox{d: d}) {
		return true
	}
	if d != nil {
		d.Dispose()
	}
	if r.ref.Load() != disposedBox {
		reportViolation(ErrDisposableSet)
	}
	return false
}

// Set 释放旧资源并安装新资源，单元已释放时d被释放并返回false
func (r *Resource) Set(d Disposable) bool {
	next := &resourceBox{d: d}
	for {
		cur := r.ref.Load()
		if cur == disposedBox {
			if d != nil {
				d.Dispose()
			}
			return false
		}
		if r.ref.CompareAndSwap(cur, next) {
			if cur != nil && cur.d != nil {
				cur.d.Dispose()
			}
			return true
		}
	}
}

// Replace 安装新资源但不释放旧资源，单元已释放时d被释放并返回false
func (r *Resource) Replace(d Disposable) bool {
	next := &resourceBox{d: d}
	for {
		cur := r.ref.Load()
		if cur == disposedBox {
			if d != nil {
				d.Dispose()
			}
			return false
		}
		if r.ref.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// TryDispose 释放单元，只有真正执行释放的调用者得到true
func (r *Resource) TryDispose() bool {
	cur := r.ref.Load()
	if cur == disposedBox {
		return false
	}
	cur = r.ref.Swap(disposedBox)
	if cur == disposedBox {
		return false
	}
	if cur != nil && cur.d != nil {
		cur.d.Dispose()
	}
	return true
}

// Dispose 释放单元
func (r *Resource) Dispose() {
	r.TryDispose()
}

// ============================================================================
// CompositeDisposable 组合式资源管理器
// ============================================================================

// CompositeDisposable 组合式资源管理器，释放后加入的资源立即被释放
type CompositeDisposable struct {
	mu        sync.Mutex
	disposed  bool
	resources map[Disposable]struct{}
}

// NewCompositeDisposable 创建组合式资源管理器
func NewCompositeDisposable(disposables ...Disposable) *CompositeDisposable {
	cd := &CompositeDisposable{
		resources: make(map[Disposable]struct{}, len(disposables)),
	}
	for _, d := range disposables {
		cd.resources[d] = struct{}{}
	}
	return cd
}

// Add 添加可释放资源，已释放时立即释放d并返回false
func (cd *CompositeDisposable) Add(d Disposable) bool {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		d.Dispose()
		return false
	}
	cd.resources[d] = struct{}{}
	cd.mu.Unlock()
	return true
}

// Delete 移除资源但不释放
func (cd *CompositeDisposable) Delete(d Disposable) bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	if cd.disposed {
		return false
	}
	if _, ok := cd.resources[d]; !ok {
		return false
	}
	delete(cd.resources, d)
	return true
}

// Remove 移除并释放资源
func (cd *CompositeDisposable) Remove(d Disposable) bool {
	if cd.Delete(d) {
		d.Dispose()
		return true
	}
	return false
}

// Len 返回当前资源数量
func (cd *CompositeDisposable) Len() int {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return len(cd.resources)
}

// Dispose 释放所有资源
func (cd *CompositeDisposable) Dispose() {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		return
	}
	cd.disposed = true
	resources := cd.resources
	cd.resources = nil
	cd.mu.Unlock()

	for d := range resources {
		d.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (cd *CompositeDisposable) IsDisposed() bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.disposed
}
