// WithLatestFrom operator for rxext
// 主源的每个元素与辅助源的最新值组合
package rxext

import (
	"sync"
	"sync/atomic"
)

// WithLatestFrom 用辅助源的最新值组合主源的元素
//
// 任何辅助源还没有值时主源的元素被丢弃。辅助源的错误默认立即终止，
// WithDelayErrors 时收集到主源结束再发出。WithSourceFirst(true)
// 先订阅主源，默认先订阅辅助源。
func WithLatestFrom[T, U, R any](source Observable[T], others []Observable[U], combiner func(item T, latest []U) (R, error), options ...Option) Observable[R] {
	config := newConfig(options)
	return ObservableFunc[R](func(observer Observer[R]) {
		c := &latestCoordinator[T, U, R]{
			downstream:  observer,
			combiner:    combiner,
			delayErrors: config.DelayErrors,
			cells:       make([]latestCell[U], len(others)),
			others:      make([]*latestOther[T, U, R], len(others)),
		}
		for i := range c.others {
			c.others[i] = &latestOther[T, U, R]{parent: c, index: i}
		}

		observer.OnSubscribe(c)
		if config.SourceFirst {
			source.Subscribe(c)
			c.subscribeOthers(others)
			return
		}
		c.subscribeOthers(others)
		if !c.disposed.Load() {
			source.Subscribe(c)
		}
	})
}

// latestCell 单槽最新值缓存，锁只在读写一个字段期间持有
type latestCell[U any] struct {
	mu    sync.Mutex
	value U
	has   bool
}

func (cell *latestCell[U]) set(v U) {
	cell.mu.Lock()
	cell.value = v
	cell.has = true
	cell.mu.Unlock()
}

func (cell *latestCell[U]) get() (U, bool) {
	cell.mu.Lock()
	defer cell.mu.Unlock()
	return cell.value, cell.has
}

type latestCoordinator[T, U, R any] struct {
	downstream  Observer[R]
	combiner    func(item T, latest []U) (R, error)
	delayErrors bool

	upstream Resource
	cells    []latestCell[U]
	others   []*latestOther[T, U, R]
	hs       HalfSerializer
	errors   ErrorCell
	disposed atomic.Bool
	done     bool
}

func (c *latestCoordinator[T, U, R]) subscribeOthers(others []Observable[U]) {
	for i, other := range others {
		if c.disposed.Load() {
			return
		}
		other.Subscribe(c.others[i])
	}
}

// Dispose 下游取消
func (c *latestCoordinator[T, U, R]) Dispose() {
	if c.disposed.CompareAndSwap(false, true) {
		c.upstream.Dispose()
		c.cancelOthers()
	}
}

func (c *latestCoordinator[T, U, R]) IsDisposed() bool {
	return c.disposed.Load()
}

func (c *latestCoordinator[T, U, R]) cancelOthers() {
	for _, other := range c.others {
		other.upstream.Dispose()
	}
}

// OnSubscribe 主源的令牌
func (c *latestCoordinator[T, U, R]) OnSubscribe(d Disposable) {
	c.upstream.SetOnce(d)
}

// OnNext 主源的元素，辅助源有缺失时丢弃
func (c *latestCoordinator[T, U, R]) OnNext(item T) {
	if c.done || c.disposed.Load() {
		return
	}
	latest := make([]U, len(c.cells))
	for i := range c.cells {
		v, ok := c.cells[i].get()
		if !ok {
			return
		}
		latest[i] = v
	}

	var result R
	err := tryCall("rxext: combiner", func() error {
		var cerr error
		result, cerr = c.combiner(item, latest)
		return cerr
	})
	if err != nil {
		c.done = true
		c.upstream.Dispose()
		c.cancelOthers()
		HalfOnError[R](&c.hs, c.downstream, err)
		return
	}
	HalfOnNext[R](&c.hs, c.downstream, result)
}

func (c *latestCoordinator[T, U, R]) OnError(err error) {
	if c.done {
		reportDropped(err)
		return
	}
	c.done = true
	c.cancelOthers()
	if c.delayErrors {
		c.errors.TryAdd(err)
		err = c.errors.Terminate()
	}
	HalfOnError[R](&c.hs, c.downstream, err)
}

func (c *latestCoordinator[T, U, R]) OnCompleted() {
	if c.done {
		return
	}
	c.done = true
	c.cancelOthers()
	if c.delayErrors {
		if err := c.errors.Terminate(); err != nil {
			HalfOnError[R](&c.hs, c.downstream, err)
			return
		}
	}
	HalfOnCompleted[R](&c.hs, c.downstream)
}

// otherError 辅助源的错误
func (c *latestCoordinator[T, U, R]) otherError(err error) {
	if c.delayErrors {
		if !c.errors.TryAdd(err) {
			reportDropped(err)
		}
		return
	}
	c.upstream.Dispose()
	c.cancelOthers()
	HalfOnError[R](&c.hs, c.downstream, err)
}

// latestOther 辅助源的订阅者，只更新自己的最新值单元
type latestOther[T, U, R any] struct {
	parent   *latestCoordinator[T, U, R]
	index    int
	upstream Resource
	done     atomic.Bool
}

func (o *latestOther[T, U, R]) OnSubscribe(d Disposable) {
	o.upstream.SetOnce(d)
}

func (o *latestOther[T, U, R]) OnNext(item U) {
	if o.done.Load() {
		return
	}
	o.parent.cells[o.index].set(item)
}

func (o *latestOther[T, U, R]) OnError(err error) {
	if !o.done.CompareAndSwap(false, true) {
		reportDropped(err)
		return
	}
	o.parent.otherError(err)
}

func (o *latestOther[T, U, R]) OnCompleted() {
	o.done.Store(true)
}
