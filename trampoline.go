// Drain loop for rxext
// 排水循环（trampoline）：基于wip计数器的单活跃工作者模式
package rxext

import "sync/atomic"

// Trampoline 排水循环计数器
//
// 任何生产动作先发布自己的状态（入队、数组替换、标志位），再调用 Drain；
// 把计数器从0变为1的调用者成为唯一的排水者，其余调用者只增加计数后返回。
// 排水者每完成一轮就减去已处理的 missed 数量，只有计数恰好回到0时才退出，
// 因此在最后一轮开始之后、检查退出之前到达的事件不会丢失。零值可用。
type Trampoline struct {
	wip atomic.Int64
}

// Enter 增加计数，返回调用者是否成为排水者
func (t *Trampoline) Enter() bool {
	return t.wip.Add(1) == 1
}

// TryEnter 仅在计数为0时成为排水者，用于快速路径
func (t *Trampoline) TryEnter() bool {
	return t.wip.CompareAndSwap(0, 1)
}

// Leave 减去已处理数量，返回剩余的missed数量，0表示排水者已退出
func (t *Trampoline) Leave(missed int64) int64 {
	return t.wip.Add(-missed)
}

// Active 是否有排水者正在运行
func (t *Trampoline) Active() bool {
	return t.wip.Load() != 0
}

// Drain 进入排水循环，成为排水者时反复调用pass直到没有遗漏的工作
func (t *Trampoline) Drain(pass func()) {
	if !t.Enter() {
		return
	}
	t.Loop(pass)
}

// Loop 由已经成为排水者的调用者执行排水循环
func (t *Trampoline) Loop(pass func()) {
	missed := int64(1)
	for {
		pass()
		missed = t.Leave(missed)
		if missed == 0 {
			return
		}
	}
}
