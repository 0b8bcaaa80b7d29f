// ConnectableObservable implementation for rxext
// 可连接的Observable：通过主题多播一个冷数据源，Connect 时才订阅上游
package rxext

import (
	"context"
	"sync"
	"sync/atomic"
)

// ============================================================================
// ConnectableObservable 实现
// ============================================================================

// connectEpoch 一次连接周期：主题、连接与订阅计数
//
// 上游终止或连接被释放后进入新的周期，之后的订阅者看到新的主题。
type connectEpoch[T any] struct {
	subject    Subject[T]
	conn       *connection[T]
	refs       int
	subscribed int
}

// ConnectableObservable 可连接的Observable
type ConnectableObservable[T any] struct {
	source     Observable[T]
	newSubject func() Subject[T]

	mu      sync.Mutex
	current *connectEpoch[T]
}

var _ Observable[int] = (*ConnectableObservable[int])(nil)

// Multicast 使用主题工厂创建可连接的Observable
func Multicast[T any](source Observable[T], newSubject func() Subject[T]) *ConnectableObservable[T] {
	co := &ConnectableObservable[T]{
		source:     source,
		newSubject: newSubject,
	}
	co.current = co.newEpoch()
	return co
}

// Publish 通过 PublishSubject 多播，订阅者只收到连接之后的事件
func Publish[T any](source Observable[T]) *ConnectableObservable[T] {
	return Multicast(source, func() Subject[T] {
		return NewPublishSubject[T]()
	})
}

// Replay 通过 CacheSubject 多播，同一连接周期内的迟到者重放全部历史
func Replay[T any](source Observable[T], options ...Option) *ConnectableObservable[T] {
	return Multicast(source, func() Subject[T] {
		return NewCacheSubject[T](options...)
	})
}

func (co *ConnectableObservable[T]) newEpoch() *connectEpoch[T] {
	return &connectEpoch[T]{subject: co.newSubject()}
}

// epoch 返回当前连接周期
func (co *ConnectableObservable[T]) epoch() *connectEpoch[T] {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.current
}

// Subscribe 订阅当前周期的主题，不会触发连接
func (co *ConnectableObservable[T]) Subscribe(observer Observer[T]) {
	co.epoch().subject.Subscribe(observer)
}

// Connect 订阅上游，已连接时返回现有连接
//
// ctx结束时连接被释放，释放连接只断开上游，不向订阅者发送终止事件。
func (co *ConnectableObservable[T]) Connect(ctx context.Context) Disposable {
	return co.connect(ctx, nil)
}

// connect 连接周期e，e为nil时连接当前周期
//
// e已经结束时返回nil，不会连接之后的周期。
func (co *ConnectableObservable[T]) connect(ctx context.Context, e *connectEpoch[T]) *connection[T] {
	co.mu.Lock()
	if e == nil {
		e = co.current
	} else if co.current != e {
		co.mu.Unlock()
		return nil
	}
	if e.conn != nil {
		conn := e.conn
		co.mu.Unlock()
		return conn
	}
	conn := &connection[T]{parent: co, epoch: e}
	e.conn = conn
	co.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, conn.Dispose)
		conn.stop.Store(&stop)
		if conn.IsDisposed() {
			stop()
		}
	}
	co.source.Subscribe(conn)
	return conn
}

// IsConnected 检查是否已连接
func (co *ConnectableObservable[T]) IsConnected() bool {
	return co.epoch().conn != nil
}

// detach 结束连接周期
func (co *ConnectableObservable[T]) detach(e *connectEpoch[T]) {
	co.mu.Lock()
	if co.current == e {
		co.current = co.newEpoch()
	}
	co.mu.Unlock()
}

// connection 把上游信号转发给周期的主题
type connection[T any] struct {
	parent   *ConnectableObservable[T]
	epoch    *connectEpoch[T]
	upstream Resource
	stop     atomic.Pointer[func() bool]
}

func (c *connection[T]) OnSubscribe(d Disposable) {
	c.upstream.SetOnce(d)
}

func (c *connection[T]) OnNext(item T) {
	c.epoch.subject.OnNext(item)
}

func (c *connection[T]) OnError(err error) {
	c.parent.detach(c.epoch)
	c.epoch.subject.OnError(err)
}

func (c *connection[T]) OnCompleted() {
	c.parent.detach(c.epoch)
	c.epoch.subject.OnCompleted()
}

// Dispose 断开上游
func (c *connection[T]) Dispose() {
	if c.upstream.TryDispose() {
		if stop := c.stop.Load(); stop != nil {
			(*stop)()
		}
		c.parent.detach(c.epoch)
	}
}

func (c *connection[T]) IsDisposed() bool {
	return c.upstream.IsDisposed()
}

// ============================================================================
// 自动连接
// ============================================================================

// RefCount 第一个订阅者到来时连接，最后一个订阅者离开时断开
func (co *ConnectableObservable[T]) RefCount() Observable[T] {
	return ObservableFunc[T](func(observer Observer[T]) {
		co.mu.Lock()
		e := co.current
		e.refs++
		connect := e.conn == nil
		co.mu.Unlock()

		e.subject.Subscribe(&refCountObserver[T]{
			downstream: observer,
			parent:     co,
			epoch:      e,
		})
		if !connect {
			return
		}

		conn := co.connect(context.Background(), e)
		if conn == nil {
			return
		}
		co.mu.Lock()
		// 连接建立之前订阅者已经全部离开
		orphan := e.refs == 0 && co.current == e
		co.mu.Unlock()
		if orphan {
			conn.Dispose()
		}
	})
}

// release 订阅者离开，计数归零时断开连接
func (co *ConnectableObservable[T]) release(e *connectEpoch[T]) {
	co.mu.Lock()
	e.refs--
	var conn *connection[T]
	if e.refs == 0 && co.current == e {
		conn = e.conn
	}
	co.mu.Unlock()
	if conn != nil {
		conn.Dispose()
	}
}

// AutoConnect 当前周期的订阅者达到n个时连接，n<=0 时第一个订阅者即连接
func (co *ConnectableObservable[T]) AutoConnect(n int) Observable[T] {
	return ObservableFunc[T](func(observer Observer[T]) {
		co.mu.Lock()
		e := co.current
		e.subscribed++
		connect := e.conn == nil && e.subscribed >= n
		co.mu.Unlock()

		e.subject.Subscribe(observer)
		if connect {
			co.connect(context.Background(), e)
		}
	})
}

// refCountObserver 在释放时归还引用计数
type refCountObserver[T any] struct {
	downstream Observer[T]
	parent     *ConnectableObservable[T]
	epoch      *connectEpoch[T]
	upstream   Resource
	released   atomic.Bool
}

func (o *refCountObserver[T]) OnSubscribe(d Disposable) {
	o.upstream.SetOnce(d)
	o.downstream.OnSubscribe(o)
}

func (o *refCountObserver[T]) OnNext(item T) {
	o.downstream.OnNext(item)
}

func (o *refCountObserver[T]) OnError(err error) {
	o.released.Store(true)
	o.downstream.OnError(err)
}

func (o *refCountObserver[T]) OnCompleted() {
	o.released.Store(true)
	o.downstream.OnCompleted()
}

func (o *refCountObserver[T]) Dispose() {
	o.upstream.Dispose()
	if o.released.CompareAndSwap(false, true) {
		o.parent.release(o.epoch)
	}
}

func (o *refCountObserver[T]) IsDisposed() bool {
	return o.upstream.IsDisposed()
}
