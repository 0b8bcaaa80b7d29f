package rxext

import (
	"errors"
	"testing"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestPublishSubject(t *testing.T) {
	t.Run("只向当前订阅者广播新值", func(t *testing.T) {
		s := NewPublishSubject[int]()
		early := newTestObserver[int]()
		s.Subscribe(early)
		require.True(t, s.HasObservers())

		s.OnNext(1)
		late := newTestObserver[int]()
		s.Subscribe(late)
		s.OnNext(2)
		s.OnCompleted()

		early.assertResult(t, 1, 2)
		late.assertResult(t, 2)
		require.True(t, s.HasCompleted())
		require.False(t, s.HasException())
		require.False(t, s.HasObservers())
	})

	t.Run("终止后的订阅者收到缓存的错误", func(t *testing.T) {
		s := NewPublishSubject[string]()
		boom := errors.New("boom")
		s.OnError(boom)
		s.OnNext("ignored")

		o := newTestObserver[string]()
		s.Subscribe(o)
		o.assertFailure(t, boom)
		require.True(t, s.HasException())
		require.Equal(t, boom, s.Exception())
	})

	t.Run("重复的错误被上报", func(t *testing.T) {
		var dropped []error
		SetErrorHandler(func(err error) { dropped = append(dropped, err) })
		defer SetErrorHandler(nil)

		s := NewPublishSubject[int]()
		s.OnCompleted()
		second := errors.New("second")
		s.OnError(second)
		require.Equal(t, []error{second}, dropped)
		require.True(t, s.HasCompleted())
	})

	t.Run("释放的订阅者不再接收", func(t *testing.T) {
		s := NewPublishSubject[int]()
		o := newTestObserver[int]()
		s.Subscribe(o)
		s.OnNext(1)
		o.Dispose()
		s.OnNext(2)
		s.OnCompleted()

		require.Equal(t, []int{1}, o.values())
		require.False(t, o.terminated())
	})

	t.Run("OnSubscribe中释放的订阅者不会留在列表中", func(t *testing.T) {
		s := NewPublishSubject[int]()
		o := newTestObserver[int]()
		o.onSubscribe = func(d Disposable) { d.Dispose() }
		s.Subscribe(o)
		require.False(t, s.HasObservers())
	})

	t.Run("终止后收到的上游令牌被释放", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		d := NewMockDisposable(ctrl)
		d.EXPECT().Dispose().Times(1)

		s := NewPublishSubject[int]()
		s.OnCompleted()
		s.OnSubscribe(d)
	})

	t.Run("引用计数模式最后一个订阅者离开时释放上游", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		upstream := NewMockDisposable(ctrl)
		upstream.EXPECT().Dispose().Times(1)

		s := NewPublishSubject[int](WithRefCount())
		s.OnSubscribe(upstream)

		a := newTestObserver[int]()
		b := newTestObserver[int]()
		s.Subscribe(a)
		s.Subscribe(b)
		s.OnNext(1)

		a.Dispose()
		s.OnNext(2)
		b.Dispose()
		b.Dispose()

		require.Equal(t, []int{1}, a.values())
		require.Equal(t, []int{1, 2}, b.values())

		late := newTestObserver[int]()
		s.Subscribe(late)
		late.assertFailure(t, ErrSubjectDisposed)
		require.ErrorIs(t, s.Exception(), ErrSubjectDisposed)
	})

	t.Run("并发订阅与取消订阅", func(t *testing.T) {
		s := NewPublishSubject[int]()
		var wg conc.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Go(func() {
				for j := 0; j < 100; j++ {
					o := newTestObserver[int]()
					s.Subscribe(o)
					o.Dispose()
				}
			})
		}
		wg.Go(func() {
			for j := 0; j < 1000; j++ {
				s.OnNext(j)
			}
		})
		wg.Wait()
		require.False(t, s.HasObservers())
	})
}
