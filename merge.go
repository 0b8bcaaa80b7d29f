// Merge operators for rxext
// 合并：限制并发订阅的内部源数量，未启动的源排队等待空位
package rxext

import "sync/atomic"

// MergeMany 合并源序列发出的所有内部源
//
// WithMaxConcurrency 限制同时订阅的内部源数量，WithDelayErrors 等待所有
// 源结束后以组合错误终止，否则第一个错误立即释放所有内部源。
func MergeMany[T any](sources Observable[Observable[T]], options ...Option) Observable[T] {
	return MergeMap[Observable[T], T](sources, identity[Observable[T]], options...)
}

// MergeMap 把每个元素映射为内部源并合并
func MergeMap[T, R any](source Observable[T], mapper Mapper[T, Observable[R]], options ...Option) Observable[R] {
	config := newConfig(options)
	return ObservableFunc[R](func(observer Observer[R]) {
		source.Subscribe(newFlattenCoordinator(observer, mapper, config, false))
	})
}

// Merge 合并给定的源
func Merge[T any](sources ...Observable[T]) Observable[T] {
	return MergeMany(FromSlice(sources))
}

// ============================================================================
// flattenCoordinator 展平协调器
// ============================================================================

// flattenCoordinator MergeMap 与 ConcatMapEager 共享的协调器
//
// 外部源的元素映射后进入待启动队列，只有排水者在 emitted < requested 时
// 从中取出并订阅；每个内部源结束并被取空后释放一个名额 (requested++)。
// ordered 为true时只从FIFO头部的内部源发射。
type flattenCoordinator[T, R any] struct {
	downstream  Observer[R]
	mapper      Mapper[T, Observable[R]]
	delayErrors bool
	capacity    int
	ordered     bool

	upstream Resource
	pending  *SpscLinkedArrayQueue[Observable[R]]
	inners   *subscriberList[*flattenInner[T, R]]
	done     atomic.Bool
	errors   ErrorCell
	disposed atomic.Bool

	trampoline Trampoline

	// 以下字段只由排水者访问
	fifo      []*flattenInner[T, R]
	requested int64
	emitted   int64
	unbounded bool
}

func newFlattenCoordinator[T, R any](downstream Observer[R], mapper Mapper[T, Observable[R]], config *Config, ordered bool) *flattenCoordinator[T, R] {
	return &flattenCoordinator[T, R]{
		downstream:  downstream,
		mapper:      mapper,
		delayErrors: config.DelayErrors,
		capacity:    config.CapacityHint,
		ordered:     ordered,
		pending:     NewSpscLinkedArrayQueue[Observable[R]](config.CapacityHint),
		inners:      newSubscriberList[*flattenInner[T, R]](),
		requested:   int64(config.MaxConcurrency),
		unbounded:   !config.bounded(),
	}
}

func (c *flattenCoordinator[T, R]) OnSubscribe(d Disposable) {
	if c.upstream.SetOnce(d) {
		c.downstream.OnSubscribe(c)
	}
}

func (c *flattenCoordinator[T, R]) OnNext(item T) {
	if c.done.Load() || c.disposed.Load() {
		return
	}
	inner, err := tryMap[T, Observable[R]]("rxext: flatten mapper", c.mapper, item)
	if err != nil {
		c.upstream.Dispose()
		c.OnError(err)
		return
	}
	c.pending.Offer(inner)
	c.drain()
}

func (c *flattenCoordinator[T, R]) OnError(err error) {
	if c.done.Load() {
		reportDropped(err)
		return
	}
	c.addError(err)
	c.done.Store(true)
	c.drain()
}

func (c *flattenCoordinator[T, R]) OnCompleted() {
	if c.done.Load() {
		return
	}
	c.done.Store(true)
	c.drain()
}

// addError 按错误模式记录错误，快速失败模式下立即释放所有源
func (c *flattenCoordinator[T, R]) addError(err error) {
	if c.delayErrors {
		if !c.errors.TryAdd(err) {
			reportDropped(err)
		}
		return
	}
	if !c.errors.TrySet(err) {
		reportDropped(err)
		return
	}
	c.cancelAll()
}

// Dispose 下游取消
func (c *flattenCoordinator[T, R]) Dispose() {
	if c.disposed.CompareAndSwap(false, true) {
		c.cancelAll()
		c.drain()
	}
}

func (c *flattenCoordinator[T, R]) IsDisposed() bool {
	return c.disposed.Load()
}

func (c *flattenCoordinator[T, R]) cancelAll() {
	c.upstream.Dispose()
	for _, inner := range c.inners.terminate() {
		inner.upstream.Dispose()
	}
}

func (c *flattenCoordinator[T, R]) drain() {
	c.trampoline.Drain(c.drainPass)
}

// failFast 快速失败模式下已有错误时终止
func (c *flattenCoordinator[T, R]) failFast() bool {
	if c.delayErrors {
		return false
	}
	if err, _ := c.errors.Load(); err != nil {
		c.finish()
		return true
	}
	return false
}

// finish 由排水者调用一次，发出最终的终止信号
func (c *flattenCoordinator[T, R]) finish() {
	c.disposed.Store(true)
	c.cancelAll()
	c.pending.Clear()
	c.fifo = nil
	if err := c.errors.Terminate(); err != nil {
		c.downstream.OnError(err)
	} else {
		c.downstream.OnCompleted()
	}
}

// clear 丢弃待启动的源和内部源缓冲的元素，只由排水者调用
func (c *flattenCoordinator[T, R]) clear() {
	c.pending.Clear()
	for i, inner := range c.fifo {
		inner.queue.Clear()
		c.fifo[i] = nil
	}
	c.fifo = nil
}

// admit 在名额允许时订阅待启动的内部源
func (c *flattenCoordinator[T, R]) admit() bool {
	for c.unbounded || c.emitted < c.requested {
		if c.disposed.Load() {
			return false
		}
		source, ok := c.pending.TryPoll()
		if !ok {
			return true
		}
		inner := &flattenInner[T, R]{
			parent: c,
			queue:  NewSpscLinkedArrayQueue[R](c.capacity),
		}
		if !c.inners.add(inner) {
			return false
		}
		c.emitted++
		c.fifo = append(c.fifo, inner)
		source.Subscribe(inner)
	}
	return true
}

// release 移除已结束并取空的内部源，释放一个名额
func (c *flattenCoordinator[T, R]) release(inner *flattenInner[T, R]) {
	c.inners.remove(inner, false)
	c.requested++
}

func (c *flattenCoordinator[T, R]) drainPass() {
	for {
		if c.disposed.Load() {
			c.clear()
			return
		}
		if c.failFast() {
			return
		}
		if !c.admit() {
			return
		}

		var released, ok bool
		if c.ordered {
			released, ok = c.drainHead()
		} else {
			released, ok = c.drainAny()
		}
		if !ok {
			return
		}

		d := c.done.Load()
		if d && c.pending.IsEmpty() && len(c.fifo) == 0 {
			c.finish()
			return
		}
		if !released {
			return
		}
	}
}

// drainAny 从所有活动的内部源发射，ok为false表示已终止
func (c *flattenCoordinator[T, R]) drainAny() (released, ok bool) {
	live := c.fifo[:0]
	for _, inner := range c.fifo {
		if !c.emitFrom(inner) {
			return false, false
		}
		if inner.done.Load() && inner.queue.IsEmpty() {
			c.release(inner)
			released = true
			continue
		}
		live = append(live, inner)
	}
	for i := len(live); i < len(c.fifo); i++ {
		c.fifo[i] = nil
	}
	c.fifo = live
	return released, true
}

// emitFrom 取空一个内部源的队列
func (c *flattenCoordinator[T, R]) emitFrom(inner *flattenInner[T, R]) bool {
	for {
		if c.disposed.Load() || c.failFast() {
			return false
		}
		v, ok := inner.queue.TryPoll()
		if !ok {
			return true
		}
		c.downstream.OnNext(v)
	}
}

// flattenInner 内部源的订阅者
type flattenInner[T, R any] struct {
	parent   *flattenCoordinator[T, R]
	queue    *SpscLinkedArrayQueue[R]
	upstream Resource
	done     atomic.Bool
}

func (in *flattenInner[T, R]) OnSubscribe(d Disposable) {
	in.upstream.SetOnce(d)
}

func (in *flattenInner[T, R]) OnNext(item R) {
	if in.done.Load() || in.parent.disposed.Load() {
		return
	}
	in.queue.Offer(item)
	in.parent.drain()
}

func (in *flattenInner[T, R]) OnError(err error) {
	if in.done.Load() {
		reportDropped(err)
		return
	}
	in.parent.addError(err)
	in.done.Store(true)
	in.parent.drain()
}

func (in *flattenInner[T, R]) OnCompleted() {
	if in.done.Load() {
		return
	}
	in.done.Store(true)
	in.parent.drain()
}
