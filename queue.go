// SPSC linked-array queue for rxext
// 单生产者单消费者的无界链式数组队列，所有主题与操作符的缓冲基础
package rxext

import (
	"math/bits"
	"sync/atomic"
)

const (
	slotEmpty int32 = iota
	slotValue
	slotValueAndLink
)

// spscSlot 队列槽位，state 是跨线程可见性的唯一同步点
type spscSlot[T any] struct {
	state atomic.Int32
	value T
}

// spscIsland 固定大小的环形数组，满时链接到下一个岛
type spscIsland[T any] struct {
	slots []spscSlot[T]
	next  *spscIsland[T]
}

// SpscLinkedArrayQueue 单生产者单消费者无界队列
//
// 生产者独占 producerIsland/producerIndex，消费者独占 consumerIsland/consumerIndex。
// 生产者写入槽位后以 state=1 发布；如果下一个槽位仍被占用，则分配新岛，
// 把值与链接一起以 state=2 发布并切换到新岛。消费者读到 state=2 时取出值并
// 跟随链接。只能有一个生产者线程调用 Offer，一个消费者线程调用
// TryPoll/IsEmpty/Clear，违反时行为未定义。
type SpscLinkedArrayQueue[T any] struct {
	mask int

	producerIsland *spscIsland[T]
	producerIndex  int

	consumerIsland *spscIsland[T]
	consumerIndex  int
}

// NewSpscLinkedArrayQueue 创建队列，岛容量向上取整为2的幂，最小为2
func NewSpscLinkedArrayQueue[T any](capacityHint int) *SpscLinkedArrayQueue[T] {
	n := nextPowerOfTwo(capacityHint)
	island := &spscIsland[T]{slots: make([]spscSlot[T], n)}
	return &SpscLinkedArrayQueue[T]{
		mask:           n - 1,
		producerIsland: island,
		consumerIsland: island,
	}
}

// nextPowerOfTwo 返回不小于x的2的幂，最小为2
func nextPowerOfTwo(x int) int {
	if x <= 2 {
		return 2
	}
	return 1 << bits.Len(uint(x-1))
}

// Offer 入队，只能由生产者调用，永不失败
func (q *SpscLinkedArrayQueue[T]) Offer(item T) {
	island := q.producerIsland
	index := q.producerIndex
	slot := &island.slots[index]

	next := (index + 1) & q.mask
	if island.slots[next].state.Load() == slotEmpty {
		slot.value = item
		slot.state.Store(slotValue)
		q.producerIndex = next
		return
	}

	// 当前岛已用尽，值与链接一起发布
	fresh := &spscIsland[T]{slots: make([]spscSlot[T], q.mask+1)}
	island.next = fresh
	slot.value = item
	slot.state.Store(slotValueAndLink)
	q.producerIsland = fresh
	q.producerIndex = 0
}

// TryPoll 出队，只能由消费者调用
func (q *SpscLinkedArrayQueue[T]) TryPoll() (T, bool) {
	var zero T
	island := q.consumerIsland
	index := q.consumerIndex
	slot := &island.slots[index]

	switch slot.state.Load() {
	case slotValue:
		v := slot.value
		slot.value = zero
		slot.state.Store(slotEmpty)
		q.consumerIndex = (index + 1) & q.mask
		return v, true
	case slotValueAndLink:
		v := slot.value
		slot.value = zero
		// 旧岛不再被生产者访问，无需释放槽位
		q.consumerIsland = island.next
		q.consumerIndex = 0
		return v, true
	default:
		return zero, false
	}
}

// IsEmpty 检查队列是否为空，只有消费者可信赖该结果
func (q *SpscLinkedArrayQueue[T]) IsEmpty() bool {
	return q.consumerIsland.slots[q.consumerIndex].state.Load() == slotEmpty
}

// Clear 丢弃所有元素，只能由消费者调用
func (q *SpscLinkedArrayQueue[T]) Clear() {
	for {
		if _, ok := q.TryPoll(); !ok {
			return
		}
	}
}
