package rxext

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func sumRow(row []int) (int, error) {
	total := 0
	for _, v := range row {
		total += v
	}
	return total, nil
}

func TestZip(t *testing.T) {
	t.Run("按位置组合", func(t *testing.T) {
		o := newTestObserver[int]()
		Zip([]Observable[int]{Just(1, 2, 3), Just(10, 20)}, sumRow).Subscribe(o)
		o.assertResult(t, 11, 22)
	})

	t.Run("没有源时立即完成", func(t *testing.T) {
		o := newTestObserver[int]()
		Zip([]Observable[int]{}, sumRow).Subscribe(o)
		o.assertResult(t)
	})

	t.Run("zipper收到独立的行", func(t *testing.T) {
		var rows [][]int
		o := newTestObserver[string]()
		Zip([]Observable[int]{Just(1, 2), Just(3, 4)}, func(row []int) (string, error) {
			rows = append(rows, row)
			return fmt.Sprint(row), nil
		}).Subscribe(o)
		o.assertResult(t, "[1 3]", "[2 4]")
		require.Equal(t, [][]int{{1, 3}, {2, 4}}, rows)
	})

	t.Run("错误快速失败并释放其余源", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		never := NewMockDisposable(ctrl)
		never.EXPECT().Dispose().Times(1)

		boom := errors.New("boom")
		o := newTestObserver[int]()
		Zip([]Observable[int]{sourceWithDisposable[int](never), Throw[int](boom)}, sumRow).Subscribe(o)
		o.assertFailure(t, boom)
	})

	t.Run("延迟错误先组合已到达的元素", func(t *testing.T) {
		e1 := errors.New("e1")
		failing := Create(func(e ObservableEmitter[int]) error {
			e.OnNext(1)
			return e1
		})

		o := newTestObserver[int]()
		Zip([]Observable[int]{failing, Just(10, 20)}, sumRow).Subscribe(o)
		o.assertFailure(t, e1)

		o = newTestObserver[int]()
		Zip([]Observable[int]{failing, Just(10, 20)}, sumRow, WithDelayErrors()).Subscribe(o)
		o.assertFailure(t, e1, 11)
	})

	t.Run("zipper的错误终止序列", func(t *testing.T) {
		boom := errors.New("boom")
		o := newTestObserver[int]()
		Zip([]Observable[int]{Just(1, 2, 3), Just(1, 2, 3)}, func(row []int) (int, error) {
			if row[0] == 2 {
				return 0, boom
			}
			return row[0] + row[1], nil
		}).Subscribe(o)
		o.assertFailure(t, boom, 2)
	})

	t.Run("异步源", func(t *testing.T) {
		sched := NewGoroutineScheduler()
		o := newTestObserver[int]()
		Zip([]Observable[int]{
			ObserveOn(Range(0, 100), sched),
			ObserveOn(Range(100, 100), sched),
			ObserveOn(Range(200, 150), sched),
		}, sumRow).Subscribe(o)
		o.await(t, 2*time.Second)

		expected := make([]int, 100)
		for i := range expected {
			expected[i] = 300 + 3*i
		}
		o.assertResult(t, expected...)
	})

	t.Run("下游释放取消所有源", func(t *testing.T) {
		a := NewPublishSubject[int]()
		b := NewPublishSubject[int]()
		o := newTestObserver[int]()
		Zip([]Observable[int]{a, b}, sumRow).Subscribe(o)
		a.OnNext(1)
		o.Dispose()
		require.False(t, a.HasObservers())
		require.False(t, b.HasObservers())
		b.OnNext(2)
		require.Empty(t, o.values())
	})
}
