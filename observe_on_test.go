package rxext

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// manualScheduler 只在调用 runAll 时执行排队的任务，已取消的任务被跳过
type manualScheduler struct {
	tasks []manualTask
}

type manualTask struct {
	action func()
	handle Disposable
}

func (s *manualScheduler) Now() time.Time { return time.Now() }

func (s *manualScheduler) Schedule(action func()) Disposable {
	handle := Empty()
	s.tasks = append(s.tasks, manualTask{action: action, handle: handle})
	return handle
}

func (s *manualScheduler) ScheduleWithDelay(action func(), _ time.Duration) Disposable {
	return s.Schedule(action)
}

func (s *manualScheduler) ScheduleAt(action func(), _ time.Time) Disposable {
	return s.Schedule(action)
}

func (s *manualScheduler) ScheduleWithContext(_ context.Context, action func()) Disposable {
	return s.Schedule(action)
}

func (s *manualScheduler) runAll() {
	for len(s.tasks) != 0 {
		task := s.tasks[0]
		s.tasks = s.tasks[1:]
		if !task.handle.IsDisposed() {
			task.action()
		}
	}
}

func TestObserveOn(t *testing.T) {
	t.Run("同步融合直接拉取上游", func(t *testing.T) {
		o := newTestObserver[int]()
		ObserveOn(Range(1, 5), NewGoroutineScheduler()).Subscribe(o)
		o.await(t, 2*time.Second)
		o.assertResult(t, 1, 2, 3, 4, 5)
	})

	t.Run("普通上游通过队列", func(t *testing.T) {
		pool := NewPoolScheduler(4)
		defer pool.Dispose()

		source := Create(func(e ObservableEmitter[int]) error {
			for i := 0; i < 1000; i++ {
				e.OnNext(i)
			}
			e.OnCompleted()
			return nil
		})
		o := newTestObserver[int]()
		ObserveOn(source, pool).Subscribe(o)
		o.await(t, 2*time.Second)

		expected := make([]int, 1000)
		for i := range expected {
			expected[i] = i
		}
		o.assertResult(t, expected...)
	})

	t.Run("异步融合从单播主题拉取", func(t *testing.T) {
		s := NewUnicastSubject[int]()
		o := newTestObserver[int]()
		ObserveOn[int](s, NewGoroutineScheduler()).Subscribe(o)

		go func() {
			for i := 0; i < 500; i++ {
				s.OnNext(i)
			}
			s.OnCompleted()
		}()
		o.await(t, 2*time.Second)

		expected := make([]int, 500)
		for i := range expected {
			expected[i] = i
		}
		o.assertResult(t, expected...)
	})

	t.Run("错误越过缓冲的元素", func(t *testing.T) {
		sched := &manualScheduler{}
		s := NewPublishSubject[int]()
		o := newTestObserver[int]()
		ObserveOn[int](s, sched).Subscribe(o)

		boom := errors.New("boom")
		s.OnNext(1)
		s.OnNext(2)
		s.OnError(boom)
		sched.runAll()

		o.assertFailure(t, boom)
	})

	t.Run("延迟错误在缓冲的元素之后", func(t *testing.T) {
		sched := &manualScheduler{}
		s := NewPublishSubject[int]()
		o := newTestObserver[int]()
		ObserveOn[int](s, sched, WithDelayErrors()).Subscribe(o)

		boom := errors.New("boom")
		s.OnNext(1)
		s.OnNext(2)
		s.OnError(boom)
		sched.runAll()

		o.assertFailure(t, boom, 1, 2)
	})

	t.Run("释放后丢弃缓冲并取消上游", func(t *testing.T) {
		sched := &manualScheduler{}
		s := NewPublishSubject[int]()
		o := newTestObserver[int]()
		ObserveOn[int](s, sched).Subscribe(o)

		s.OnNext(1)
		require.Len(t, sched.tasks, 1)
		o.Dispose()
		require.False(t, s.HasObservers())
		require.True(t, sched.tasks[0].handle.IsDisposed(), "尚未开始的排水任务被取消")
		sched.runAll()

		require.Empty(t, o.values())
		require.False(t, o.terminated())
	})

	t.Run("空闲时释放清空缓冲且不残留排水计数", func(t *testing.T) {
		sched := &manualScheduler{}
		s := NewPublishSubject[int]()
		o := newTestObserver[int]()
		obs := &observeOnObserver[int]{downstream: o, scheduler: sched, capacity: 16}
		s.Subscribe(obs)

		s.OnNext(1)
		sched.runAll()
		require.False(t, obs.trampoline.Active())

		obs.Dispose()
		require.False(t, obs.trampoline.Active())
		require.True(t, obs.queue.IsEmpty())

		// 释放之后到达的元素既不缓冲也不调度
		obs.OnNext(2)
		obs.OnCompleted()
		require.True(t, obs.queue.IsEmpty())
		require.Empty(t, sched.tasks)
		require.Equal(t, []int{1}, o.values())
		require.False(t, o.terminated())
	})

	t.Run("每个订阅同一时刻只有一个排水任务", func(t *testing.T) {
		sched := &manualScheduler{}
		s := NewPublishSubject[int]()
		o := newTestObserver[int]()
		ObserveOn[int](s, sched).Subscribe(o)

		s.OnNext(1)
		s.OnNext(2)
		s.OnNext(3)
		require.Len(t, sched.tasks, 1)
		sched.runAll()
		require.Equal(t, []int{1, 2, 3}, o.values())

		s.OnCompleted()
		require.Len(t, sched.tasks, 1)
		sched.runAll()
		o.assertResult(t, 1, 2, 3)
	})
}
