// ObserveOn operator for rxext
// 线程切换：在调度器上投递信号，每个订阅同一时刻最多只有一个排水任务
package rxext

import "sync/atomic"

// ObserveOn 在指定调度器上观察
//
// 上游支持同步或异步融合时直接从上游队列拉取，否则缓冲到SPSC队列。
// WithDelayErrors 时错误在缓冲的元素全部投递后再发出。
func ObserveOn[T any](source Observable[T], scheduler Scheduler, options ...Option) Observable[T] {
	config := newConfig(options)
	return ObservableFunc[T](func(observer Observer[T]) {
		source.Subscribe(&observeOnObserver[T]{
			downstream:  observer,
			scheduler:   scheduler,
			delayErrors: config.DelayErrors,
			capacity:    config.CapacityHint,
		})
	})
}

type observeOnObserver[T any] struct {
	downstream  Observer[T]
	scheduler   Scheduler
	delayErrors bool
	capacity    int

	// 以下字段在OnSubscribe中设置，之后只读
	upstream Disposable
	fused    QueueDisposable[T]
	mode     FusionMode
	queue    *SpscLinkedArrayQueue[T]

	// err 先于 done 写入
	err        error
	done       atomic.Bool
	disposed   atomic.Bool
	trampoline Trampoline
	// task 当前排水任务
	task Resource
}

func (o *observeOnObserver[T]) OnSubscribe(d Disposable) {
	o.upstream = d
	if qd, mode := requestFusion[T](d, FusionAny); mode != FusionNone {
		o.fused = qd
		o.mode = mode
		if mode == FusionSync {
			o.done.Store(true)
			o.downstream.OnSubscribe(o)
			o.schedule()
			return
		}
		o.downstream.OnSubscribe(o)
		return
	}
	o.queue = NewSpscLinkedArrayQueue[T](o.capacity)
	o.downstream.OnSubscribe(o)
}

// OnNext 异步融合模式下只表示上游队列有数据
func (o *observeOnObserver[T]) OnNext(item T) {
	if o.done.Load() || o.disposed.Load() {
		return
	}
	if o.mode != FusionAsync {
		o.queue.Offer(item)
	}
	o.schedule()
}

func (o *observeOnObserver[T]) OnError(err error) {
	if o.done.Load() || o.disposed.Load() {
		reportDropped(err)
		return
	}
	o.err = err
	o.done.Store(true)
	o.schedule()
}

func (o *observeOnObserver[T]) OnCompleted() {
	if o.done.Load() || o.disposed.Load() {
		return
	}
	o.done.Store(true)
	o.schedule()
}

// Dispose 取消上游和尚未开始的排水任务，并丢弃缓冲的元素
//
// 没有排水者时由调用者清空队列；正在执行的排水任务在下一轮清空，
// 尚未开始的排水任务被取消，剩余的缓冲随观察者一起回收。
func (o *observeOnObserver[T]) Dispose() {
	if o.disposed.CompareAndSwap(false, true) {
		o.upstream.Dispose()
		o.trampoline.Drain(o.drainPass)
		o.task.Dispose()
	}
}

func (o *observeOnObserver[T]) IsDisposed() bool {
	return o.disposed.Load()
}

func (o *observeOnObserver[T]) schedule() {
	if o.trampoline.Enter() {
		o.task.Replace(o.scheduler.Schedule(o.run))
	}
}

func (o *observeOnObserver[T]) run() {
	o.trampoline.Loop(o.drainPass)
}

func (o *observeOnObserver[T]) clear() {
	if o.fused != nil {
		o.fused.Clear()
		return
	}
	o.queue.Clear()
}

func (o *observeOnObserver[T]) poll() (T, PollState, error) {
	if o.fused != nil {
		return o.fused.TryPoll()
	}
	if v, ok := o.queue.TryPoll(); ok {
		return v, PollReady, nil
	}
	var zero T
	return zero, PollEmpty, nil
}

func (o *observeOnObserver[T]) drainPass() {
	downstream := o.downstream
	for {
		if o.disposed.Load() {
			o.clear()
			return
		}

		d := o.done.Load()
		if d && !o.delayErrors && o.err != nil {
			o.clear()
			o.disposed.Store(true)
			downstream.OnError(o.err)
			return
		}

		v, state, err := o.poll()
		if err != nil {
			o.disposed.Store(true)
			o.upstream.Dispose()
			o.clear()
			downstream.OnError(err)
			return
		}

		if state == PollTerminated || (d && state == PollEmpty) {
			o.disposed.Store(true)
			if o.err != nil {
				downstream.OnError(o.err)
			} else {
				downstream.OnCompleted()
			}
			return
		}
		if state == PollEmpty {
			return
		}
		downstream.OnNext(v)
	}
}
