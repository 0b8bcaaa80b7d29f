package rxext

import (
	"testing"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestDisposables(t *testing.T) {
	t.Run("NewDisposable只执行一次", func(t *testing.T) {
		count := 0
		d := NewDisposable(func() { count++ })
		require.False(t, d.IsDisposed())
		d.Dispose()
		d.Dispose()
		require.True(t, d.IsDisposed())
		require.Equal(t, 1, count)
	})

	t.Run("Disposed总是已释放", func(t *testing.T) {
		require.True(t, Disposed().IsDisposed())
		require.False(t, Empty().IsDisposed())
	})
}

func TestResource(t *testing.T) {
	t.Run("SetOnce后Dispose释放持有的资源", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		d := NewMockDisposable(ctrl)
		d.EXPECT().Dispose().Times(1)

		var r Resource
		require.True(t, r.SetOnce(d))
		require.Equal(t, d, r.Get())
		require.True(t, r.TryDispose())
		require.False(t, r.TryDispose())
		require.True(t, r.IsDisposed())
		require.Nil(t, r.Get())
	})

	t.Run("已释放的单元立即释放新资源", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		d1 := NewMockDisposable(ctrl)
		d2 := NewMockDisposable(ctrl)
		d3 := NewMockDisposable(ctrl)
		d1.EXPECT().Dispose().Times(1)
		d2.EXPECT().Dispose().Times(1)
		d3.EXPECT().Dispose().Times(1)

		var r Resource
		r.Dispose()
		require.False(t, r.SetOnce(d1))
		require.False(t, r.Set(d2))
		require.False(t, r.Replace(d3))
	})

	t.Run("SetOnce重复设置上报协议违规", func(t *testing.T) {
		var reported []error
		SetErrorHandler(func(err error) { reported = append(reported, err) })
		defer SetErrorHandler(nil)

		ctrl := gomock.NewController(t)
		first := NewMockDisposable(ctrl)
		second := NewMockDisposable(ctrl)
		second.EXPECT().Dispose().Times(1)

		var r Resource
		require.True(t, r.SetOnce(first))
		require.False(t, r.SetOnce(second))
		require.Len(t, reported, 1)
		require.ErrorIs(t, reported[0], ErrDisposableSet)
	})

	t.Run("Set释放旧资源而Replace不释放", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		d1 := NewMockDisposable(ctrl)
		d2 := NewMockDisposable(ctrl)
		d3 := NewMockDisposable(ctrl)
		d1.EXPECT().Dispose().Times(1)
		d3.EXPECT().Dispose().Times(1)

		var r Resource
		require.True(t, r.Set(d1))
		require.True(t, r.Set(d2))
		require.True(t, r.Replace(d3))
		r.Dispose()
	})

	t.Run("并发释放只有一个调用者执行释放", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		d := NewMockDisposable(ctrl)
		d.EXPECT().Dispose().Times(1)

		var r Resource
		r.SetOnce(d)

		var wins conc.WaitGroup
		results := make([]bool, 16)
		for i := range results {
			i := i
			wins.Go(func() {
				results[i] = r.TryDispose()
			})
		}
		wins.Wait()

		count := 0
		for _, won := range results {
			if won {
				count++
			}
		}
		require.Equal(t, 1, count)
	})
}

func TestCompositeDisposable(t *testing.T) {
	ctrl := gomock.NewController(t)
	d1 := NewMockDisposable(ctrl)
	d2 := NewMockDisposable(ctrl)
	d3 := NewMockDisposable(ctrl)
	d1.EXPECT().Dispose().Times(1)
	d2.EXPECT().Dispose().Times(1)
	d3.EXPECT().Dispose().Times(1)

	cd := NewCompositeDisposable(d1)
	assert.True(t, cd.Add(d2))
	assert.Equal(t, 2, cd.Len())
	assert.True(t, cd.Delete(d2))
	assert.Equal(t, 1, cd.Len())
	d2.Dispose()

	cd.Dispose()
	assert.True(t, cd.IsDisposed())
	assert.False(t, cd.Add(d3))
	assert.Zero(t, cd.Len())
}
