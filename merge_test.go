package rxext

import (
	"errors"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/require"
)

// trackedSource 记录订阅与结束，用于检查同时活动的源
func trackedSource[T any](id int, active mapset.Set[int], source Observable[T]) Observable[T] {
	return ObservableFunc[T](func(observer Observer[T]) {
		active.Add(id)
		source.Subscribe(&trackingObserver[T]{Observer: observer, id: id, active: active})
	})
}

type trackingObserver[T any] struct {
	Observer[T]
	id     int
	active mapset.Set[int]
}

func (o *trackingObserver[T]) OnError(err error) {
	o.active.Remove(o.id)
	o.Observer.OnError(err)
}

func (o *trackingObserver[T]) OnCompleted() {
	o.active.Remove(o.id)
	o.Observer.OnCompleted()
}

func TestMerge(t *testing.T) {
	t.Run("同步源按顺序合并", func(t *testing.T) {
		o := newTestObserver[int]()
		Merge(Just(1, 2), Just(3), EmptyObservable[int](), Just(4, 5)).Subscribe(o)
		o.assertResult(t, 1, 2, 3, 4, 5)
	})

	t.Run("最大并发为1时依次订阅", func(t *testing.T) {
		active := mapset.NewSet[int]()
		subjects := []*PublishSubject[int]{
			NewPublishSubject[int](),
			NewPublishSubject[int](),
			NewPublishSubject[int](),
		}
		sources := make([]Observable[int], len(subjects))
		for i, s := range subjects {
			sources[i] = trackedSource[int](i, active, s)
		}

		o := newTestObserver[int]()
		MergeMany(FromSlice(sources), WithMaxConcurrency(1)).Subscribe(o)
		require.True(t, active.Equal(mapset.NewSet(0)))
		require.False(t, subjects[1].HasObservers())

		subjects[0].OnNext(1)
		subjects[0].OnCompleted()
		require.True(t, active.Equal(mapset.NewSet(1)))

		subjects[1].OnNext(2)
		subjects[1].OnCompleted()
		require.True(t, active.Equal(mapset.NewSet(2)))

		subjects[2].OnNext(3)
		subjects[2].OnCompleted()
		require.Zero(t, active.Cardinality())
		o.assertResult(t, 1, 2, 3)
	})

	t.Run("活动的源数量不超过上限", func(t *testing.T) {
		const n = 6
		active := mapset.NewSet[int]()
		subjects := make([]*PublishSubject[int], n)
		sources := make([]Observable[int], n)
		for i := range subjects {
			subjects[i] = NewPublishSubject[int]()
			sources[i] = trackedSource[int](i, active, subjects[i])
		}

		o := newTestObserver[int]()
		MergeMany(FromSlice(sources), WithMaxConcurrency(2)).Subscribe(o)
		require.True(t, active.Equal(mapset.NewSet(0, 1)))

		subjects[1].OnNext(10)
		subjects[1].OnCompleted()
		require.True(t, active.Equal(mapset.NewSet(0, 2)))

		subjects[0].OnNext(20)
		subjects[0].OnCompleted()
		require.True(t, active.Equal(mapset.NewSet(2, 3)))

		for i := 2; i < n; i++ {
			require.LessOrEqual(t, active.Cardinality(), 2)
			subjects[i].OnCompleted()
		}
		o.assertResult(t, 10, 20)
	})

	t.Run("快速失败释放所有源", func(t *testing.T) {
		a := NewPublishSubject[int]()
		b := NewPublishSubject[int]()
		boom := errors.New("boom")

		o := newTestObserver[int]()
		Merge[int](a, b).Subscribe(o)
		a.OnNext(1)
		b.OnError(boom)
		a.OnNext(2)

		o.assertFailure(t, boom, 1)
		require.False(t, a.HasObservers())
	})

	t.Run("延迟错误等待所有源并组合错误", func(t *testing.T) {
		e1 := errors.New("e1")
		e2 := errors.New("e2")
		o := newTestObserver[int]()
		MergeMany(FromSlice([]Observable[int]{
			Just(1),
			Throw[int](e1),
			Just(2),
			Throw[int](e2),
		}), WithDelayErrors()).Subscribe(o)

		require.Equal(t, []int{1, 2}, o.values())
		require.Len(t, o.errors(), 1)
		require.Equal(t, []error{e1, e2}, CompositeErrors(o.errors()[0]))
	})

	t.Run("映射函数的错误终止序列", func(t *testing.T) {
		boom := errors.New("boom")
		o := newTestObserver[int]()
		MergeMap[int, int](Just(1, 2, 3), func(v int) (Observable[int], error) {
			if v == 2 {
				return nil, boom
			}
			return Just(v * 10), nil
		}).Subscribe(o)
		o.assertFailure(t, boom, 10)
	})

	t.Run("下游释放取消所有源", func(t *testing.T) {
		a := NewPublishSubject[int]()
		b := NewPublishSubject[int]()
		o := newTestObserver[int]()
		Merge[int](a, b).Subscribe(o)
		require.True(t, a.HasObservers())
		require.True(t, b.HasObservers())

		o.Dispose()
		require.False(t, a.HasObservers())
		require.False(t, b.HasObservers())
		a.OnNext(1)
		require.Empty(t, o.values())
	})

	t.Run("释放后清空待启动的源且不残留排水计数", func(t *testing.T) {
		outer := NewPublishSubject[Observable[int]]()
		a := NewPublishSubject[int]()
		b := NewPublishSubject[int]()
		o := newTestObserver[int]()
		MergeMany[int](outer, WithMaxConcurrency(1)).Subscribe(o)
		outer.OnNext(a)
		outer.OnNext(b)
		a.OnNext(1)

		c := o.upstream.(*flattenCoordinator[Observable[int], int])
		require.Len(t, c.fifo, 1)
		straggler := c.fifo[0]
		require.False(t, c.pending.IsEmpty())

		o.Dispose()
		require.False(t, c.trampoline.Active())
		require.True(t, c.pending.IsEmpty())
		require.Empty(t, c.fifo)
		require.False(t, outer.HasObservers())
		require.False(t, a.HasObservers())
		require.False(t, b.HasObservers())

		// 已取消的内部源迟到的元素被忽略
		straggler.OnNext(2)
		require.True(t, straggler.queue.IsEmpty())
		require.False(t, c.trampoline.Active())
		require.Equal(t, []int{1}, o.values())
		require.False(t, o.terminated())
	})

	t.Run("并发的内部源", func(t *testing.T) {
		const sources = 8
		const perSource = 1000
		inner := func(id int) Observable[int] {
			return Create(func(e ObservableEmitter[int]) error {
				go func() {
					for i := 0; i < perSource; i++ {
						e.OnNext(id*perSource + i)
					}
					e.OnCompleted()
				}()
				return nil
			})
		}

		o := newTestObserver[int]()
		MergeMap[int, int](Range(0, sources), func(id int) (Observable[int], error) {
			return inner(id), nil
		}, WithMaxConcurrency(3)).Subscribe(o)
		o.await(t, 5*time.Second)
		o.assertContract(t)
		require.Equal(t, 1, o.completions())

		seen := mapset.NewThreadUnsafeSet(o.values()...)
		require.Equal(t, sources*perSource, seen.Cardinality())
		require.Len(t, o.values(), sources*perSource)
	})
}
