// Zip operator for rxext
// 拉链：每个源各取一个元素组成一行，再由zipper合成一个结果
package rxext

import "sync/atomic"

// Zip 按位置组合多个源
//
// 任一源结束且其队列已空时整个Zip终止。没有 WithDelayErrors 时
// 第一个错误立即释放所有源。
func Zip[T, R any](sources []Observable[T], zipper func(row []T) (R, error), options ...Option) Observable[R] {
	config := newConfig(options)
	return ObservableFunc[R](func(observer Observer[R]) {
		n := len(sources)
		if n == 0 {
			observer.OnSubscribe(Empty())
			observer.OnCompleted()
			return
		}

		c := &zipCoordinator[T, R]{
			downstream:  observer,
			zipper:      zipper,
			delayErrors: config.DelayErrors,
			inners:      make([]*zipInner[T, R], n),
			row:         make([]T, n),
			has:         make([]bool, n),
		}
		for i := range c.inners {
			c.inners[i] = &zipInner[T, R]{
				parent: c,
				queue:  NewSpscLinkedArrayQueue[T](config.CapacityHint),
			}
		}

		observer.OnSubscribe(c)
		for i, source := range sources {
			if c.disposed.Load() {
				return
			}
			source.Subscribe(c.inners[i])
		}
	})
}

type zipCoordinator[T, R any] struct {
	downstream  Observer[R]
	zipper      func(row []T) (R, error)
	delayErrors bool
	inners      []*zipInner[T, R]

	errors     ErrorCell
	disposed   atomic.Bool
	trampoline Trampoline

	// 以下字段只由排水者访问
	row []T
	has []bool
}

// Dispose 下游取消
func (c *zipCoordinator[T, R]) Dispose() {
	if c.disposed.CompareAndSwap(false, true) {
		c.cancelAll()
	}
}

func (c *zipCoordinator[T, R]) IsDisposed() bool {
	return c.disposed.Load()
}

func (c *zipCoordinator[T, R]) cancelAll() {
	for _, inner := range c.inners {
		inner.upstream.Dispose()
	}
}

func (c *zipCoordinator[T, R]) addError(err error) {
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

func (c *zipCoordinator[T, R]) drain() {
	c.trampoline.Drain(c.drainPass)
}

func (c *zipCoordinator[T, R]) finish() {
	c.disposed.Store(true)
	c.cancelAll()
	clear(c.row)
	if err := c.errors.Terminate(); err != nil {
		c.downstream.OnError(err)
	} else {
		c.downstream.OnCompleted()
	}
}

func (c *zipCoordinator[T, R]) drainPass() {
	for {
		if c.disposed.Load() {
			clear(c.row)
			return
		}
		if !c.delayErrors {
			if err, _ := c.errors.Load(); err != nil {
				c.finish()
				return
			}
		}

		missing := false
		for i, inner := range c.inners {
			if c.has[i] {
				continue
			}
			d := inner.done.Load()
			v, ok := inner.queue.TryPoll()
			if ok {
				c.row[i] = v
				c.has[i] = true
				continue
			}
			if d {
				// 该源已结束且没有剩余元素，不可能再组成完整的一行
				c.finish()
				return
			}
			missing = true
		}
		if missing {
			return
		}

		values := make([]T, len(c.row))
		copy(values, c.row)
		clear(c.row)
		clear(c.has)

		result, err := tryMap("rxext: zipper", c.zipper, values)
		if err != nil {
			c.addError(err)
			c.finish()
			return
		}
		c.downstream.OnNext(result)
	}
}

// zipInner 单个源的订阅者
type zipInner[T, R any] struct {
	parent   *zipCoordinator[T, R]
	queue    *SpscLinkedArrayQueue[T]
	upstream Resource
	done     atomic.Bool
}

func (in *zipInner[T, R]) OnSubscribe(d Disposable) {
	in.upstream.SetOnce(d)
}

func (in *zipInner[T, R]) OnNext(item T) {
	if in.done.Load() {
		return
	}
	in.queue.Offer(item)
	in.parent.drain()
}

func (in *zipInner[T, R]) OnError(err error) {
	if in.done.Load() {
		reportDropped(err)
		return
	}
	in.parent.addError(err)
	in.done.Store(true)
	in.parent.drain()
}

func (in *zipInner[T, R]) OnCompleted() {
	if in.done.Load() {
		return
	}
	in.done.Store(true)
	in.parent.drain()
}
