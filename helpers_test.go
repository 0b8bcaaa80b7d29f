package rxext

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testObserver 记录收到的事件并检查观察者协议
type testObserver[T any] struct {
	mu         sync.Mutex
	upstream   Disposable
	subscribed int
	items      []T
	errs       []error
	completed  int

	inFlight atomic.Int32
	overlaps atomic.Int32

	onSubscribe func(d Disposable)
	onNext      func(item T)
	done        chan struct{}
	doneOnce    sync.Once
}

func newTestObserver[T any]() *testObserver[T] {
	return &testObserver[T]{done: make(chan struct{})}
}

func (o *testObserver[T]) enter() {
	if o.inFlight.Add(1) != 1 {
		o.overlaps.Add(1)
	}
}

func (o *testObserver[T]) leave() {
	o.inFlight.Add(-1)
}

func (o *testObserver[T]) OnSubscribe(d Disposable) {
	o.mu.Lock()
	o.upstream = d
	o.subscribed++
	o.mu.Unlock()
	if o.onSubscribe != nil {
		o.onSubscribe(d)
	}
}

func (o *testObserver[T]) OnNext(item T) {
	o.enter()
	defer o.leave()
	o.mu.Lock()
	o.items = append(o.items, item)
	o.mu.Unlock()
	if o.onNext != nil {
		o.onNext(item)
	}
}

func (o *testObserver[T]) OnError(err error) {
	o.enter()
	o.mu.Lock()
	o.errs = append(o.errs, err)
	o.mu.Unlock()
	o.leave()
	o.doneOnce.Do(func() { close(o.done) })
}

func (o *testObserver[T]) OnCompleted() {
	o.enter()
	o.mu.Lock()
	o.completed++
	o.mu.Unlock()
	o.leave()
	o.doneOnce.Do(func() { close(o.done) })
}

// Dispose 释放收到的上游令牌
func (o *testObserver[T]) Dispose() {
	o.mu.Lock()
	d := o.upstream
	o.mu.Unlock()
	if d != nil {
		d.Dispose()
	}
}

func (o *testObserver[T]) values() []T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]T(nil), o.items...)
}

func (o *testObserver[T]) errors() []error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]error(nil), o.errs...)
}

func (o *testObserver[T]) completions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.completed
}

func (o *testObserver[T]) terminated() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// await 等待终止事件
func (o *testObserver[T]) await(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-o.done:
	case <-time.After(timeout):
		t.Fatalf("等待终止事件超时，已收到 %d 个元素", len(o.values()))
	}
}

// assertContract 恰好一次OnSubscribe，没有重叠调用，至多一个终止事件
func (o *testObserver[T]) assertContract(t *testing.T) {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.Equal(t, 1, o.subscribed, "OnSubscribe 次数")
	require.Zero(t, o.overlaps.Load(), "存在重叠的调用")
	require.LessOrEqual(t, len(o.errs)+o.completed, 1, "终止事件超过一次")
}

// assertResult 检查元素序列并以完成终止
func (o *testObserver[T]) assertResult(t *testing.T, expected ...T) {
	t.Helper()
	o.assertContract(t)
	require.Equal(t, expected, o.values())
	require.Empty(t, o.errors())
	require.Equal(t, 1, o.completions())
}

// assertFailure 检查元素序列并以错误终止
func (o *testObserver[T]) assertFailure(t *testing.T, target error, expected ...T) {
	t.Helper()
	o.assertContract(t)
	require.Equal(t, expected, o.values())
	errs := o.errors()
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], target)
	require.Zero(t, o.completions())
}

// testSingleObserver 单值观察者
type testSingleObserver[T any] struct {
	mu         sync.Mutex
	upstream   Disposable
	values     []T
	errs       []error
	subscribed int
}

func (o *testSingleObserver[T]) OnSubscribe(d Disposable) {
	o.mu.Lock()
	o.upstream = d
	o.subscribed++
	o.mu.Unlock()
}

func (o *testSingleObserver[T]) OnSuccess(item T) {
	o.mu.Lock()
	o.values = append(o.values, item)
	o.mu.Unlock()
}

func (o *testSingleObserver[T]) OnError(err error) {
	o.mu.Lock()
	o.errs = append(o.errs, err)
	o.mu.Unlock()
}

func (o *testSingleObserver[T]) Dispose() {
	o.mu.Lock()
	d := o.upstream
	o.mu.Unlock()
	d.Dispose()
}

// testCompletableObserver 仅完成观察者
type testCompletableObserver struct {
	mu         sync.Mutex
	upstream   Disposable
	completed  int
	errs       []error
	subscribed int
}

func (o *testCompletableObserver) OnSubscribe(d Disposable) {
	o.mu.Lock()
	o.upstream = d
	o.subscribed++
	o.mu.Unlock()
}

func (o *testCompletableObserver) OnCompleted() {
	o.mu.Lock()
	o.completed++
	o.mu.Unlock()
}

func (o *testCompletableObserver) OnError(err error) {
	o.mu.Lock()
	o.errs = append(o.errs, err)
	o.mu.Unlock()
}

func (o *testCompletableObserver) Dispose() {
	o.mu.Lock()
	d := o.upstream
	o.mu.Unlock()
	d.Dispose()
}

// sourceWithDisposable 订阅时交付给定令牌、不发射任何信号的源
func sourceWithDisposable[T any](d Disposable) Observable[T] {
	return ObservableFunc[T](func(observer Observer[T]) {
		observer.OnSubscribe(d)
	})
}
