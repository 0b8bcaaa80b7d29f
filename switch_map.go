// SwitchMap operator for rxext
// 切换：只转发最新内部源的元素
package rxext

import "sync/atomic"

// SwitchMap 把每个元素映射为内部源，新的内部源到来时释放之前的内部源
//
// 被替换的内部源在竞争中晚到的元素会被丢弃。
func SwitchMap[T, R any](source Observable[T], mapper Mapper[T, Observable[R]], options ...Option) Observable[R] {
	config := newConfig(options)
	return ObservableFunc[R](func(observer Observer[R]) {
		source.Subscribe(&switchCoordinator[T, R]{
			downstream:  observer,
			mapper:      mapper,
			delayErrors: config.DelayErrors,
			capacity:    config.CapacityHint,
		})
	})
}

// SwitchOnNext 切换到源序列发出的最新源
func SwitchOnNext[T any](sources Observable[Observable[T]], options ...Option) Observable[T] {
	return SwitchMap[Observable[T], T](sources, identity[Observable[T]], options...)
}

type switchCoordinator[T, R any] struct {
	downstream  Observer[R]
	mapper      Mapper[T, Observable[R]]
	delayErrors bool
	capacity    int

	upstream   Resource
	active     atomic.Pointer[switchInner[T, R]]
	done       atomic.Bool
	errors     ErrorCell
	disposed   atomic.Bool
	trampoline Trampoline
}

func (c *switchCoordinator[T, R]) OnSubscribe(d Disposable) {
	if c.upstream.SetOnce(d) {
		c.downstream.OnSubscribe(c)
	}
}

func (c *switchCoordinator[T, R]) OnNext(item T) {
	if c.done.Load() || c.disposed.Load() {
		return
	}
	source, err := tryMap[T, Observable[R]]("rxext: switch mapper", c.mapper, item)
	if err != nil {
		c.upstream.Dispose()
		c.OnError(err)
		return
	}

	inner := &switchInner[T, R]{
		parent: c,
		queue:  NewSpscLinkedArrayQueue[R](c.capacity),
	}
	if old := c.active.Swap(inner); old != nil {
		old.upstream.Dispose()
	}
	if c.disposed.Load() {
		inner.upstream.Dispose()
		return
	}
	source.Subscribe(inner)
}

func (c *switchCoordinator[T, R]) OnError(err error) {
	if c.done.Load() {
		reportDropped(err)
		return
	}
	c.addError(err)
	c.done.Store(true)
	c.drain()
}

func (c *switchCoordinator[T, R]) OnCompleted() {
	if c.done.Load() {
		return
	}
	c.done.Store(true)
	c.drain()
}

func (c *switchCoordinator[T, R]) addError(err error) {
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
func (c *switchCoordinator[T, R]) Dispose() {
	if c.disposed.CompareAndSwap(false, true) {
		c.cancelAll()
	}
}

func (c *switchCoordinator[T, R]) IsDisposed() bool {
	return c.disposed.Load()
}

func (c *switchCoordinator[T, R]) cancelAll() {
	c.upstream.Dispose()
	if inner := c.active.Swap(nil); inner != nil {
		inner.upstream.Dispose()
	}
}

func (c *switchCoordinator[T, R]) drain() {
	c.trampoline.Drain(c.drainPass)
}

func (c *switchCoordinator[T, R]) failFast() bool {
	if c.delayErrors {
		return false
	}
	if err, _ := c.errors.Load(); err != nil {
		c.finish()
		return true
	}
	return false
}

func (c *switchCoordinator[T, R]) finish() {
	c.disposed.Store(true)
	c.cancelAll()
	if err := c.errors.Terminate(); err != nil {
		c.downstream.OnError(err)
	} else {
		c.downstream.OnCompleted()
	}
}

func (c *switchCoordinator[T, R]) drainPass() {
	for {
		if c.disposed.Load() || c.failFast() {
			return
		}

		d := c.done.Load()
		inner := c.active.Load()
		if inner != nil {
			for {
				if c.disposed.Load() || c.failFast() {
					return
				}
				if c.active.Load() != inner {
					// 已被替换，剩余元素丢弃
					break
				}
				v, ok := inner.queue.TryPoll()
				if !ok {
					break
				}
				c.downstream.OnNext(v)
			}
			if inner.done.Load() && inner.queue.IsEmpty() && c.active.CompareAndSwap(inner, nil) {
				continue
			}
		}

		if d && c.active.Load() == nil {
			c.finish()
		}
		return
	}
}

// switchInner 内部源的订阅者
type switchInner[T, R any] struct {
	parent   *switchCoordinator[T, R]
	queue    *SpscLinkedArrayQueue[R]
	upstream Resource
	done     atomic.Bool
}

func (in *switchInner[T, R]) stale() bool {
	return in.parent.active.Load() != in
}

func (in *switchInner[T, R]) OnSubscribe(d Disposable) {
	in.upstream.SetOnce(d)
}

func (in *switchInner[T, R]) OnNext(item R) {
	if in.done.Load() || in.stale() {
		return
	}
	in.queue.Offer(item)
	in.parent.drain()
}

func (in *switchInner[T, R]) OnError(err error) {
	if in.done.Load() || in.stale() {
		reportDropped(err)
		return
	}
	in.parent.addError(err)
	in.done.Store(true)
	in.parent.drain()
}

func (in *switchInner[T, R]) OnCompleted() {
	if in.done.Load() || in.stale() {
		return
	}
	in.done.Store(true)
	in.parent.drain()
}
