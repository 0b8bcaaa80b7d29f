// Eager concatenation for rxext
// 急切连接：并发运行多个内部源，但按外部源的发射顺序输出
package rxext

// ConcatMapEager 把每个元素映射为内部源，并发订阅但按顺序发射
//
// 内部源的结果缓冲在各自的队列中，只有FIFO头部的内部源被取空并结束后
// 下一个才成为头部。WithMaxConcurrency 限制同时运行的内部源数量。
func ConcatMapEager[T, R any](source Observable[T], mapper Mapper[T, Observable[R]], options ...Option) Observable[R] {
	config := newConfig(options)
	return ObservableFunc[R](func(observer Observer[R]) {
		source.Subscribe(newFlattenCoordinator(observer, mapper, config, true))
	})
}

// ConcatEager 急切地订阅所有源并按顺序发射
func ConcatEager[T any](sources []Observable[T], options ...Option) Observable[T] {
	return ConcatMapEager[Observable[T], T](FromSlice(sources), identity[Observable[T]], options...)
}

// Concat 依次订阅每个源
func Concat[T any](sources ...Observable[T]) Observable[T] {
	return ConcatEager(sources, WithMaxConcurrency(1))
}

// drainHead 只从FIFO头部的内部源发射，ok为false表示已终止
func (c *flattenCoordinator[T, R]) drainHead() (released, ok bool) {
	for len(c.fifo) != 0 {
		head := c.fifo[0]
		if !c.emitFrom(head) {
			return false, false
		}
		if !head.done.Load() || !head.queue.IsEmpty() {
			break
		}
		c.fifo[0] = nil
		c.fifo = c.fifo[1:]
		c.release(head)
		released = true
	}
	return released, true
}
