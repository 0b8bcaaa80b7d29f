package rxext

import "sync/atomic"

// handleArray 订阅者快照，永远不会被原地修改
type handleArray[H comparable] struct {
	items      []H
	terminated bool
}

// subscriberList 写时复制的订阅者数组
//
// 广播读取一个快照，添加和移除分配新数组并CAS替换，冲突时重试。
// 终止后数组被替换为冻结的终止快照，之后的添加全部失败。
type subscriberList[H comparable] struct {
	ref atomic.Pointer[handleArray[H]]
}

func newSubscriberList[H comparable]() *subscriberList[H] {
	l := &subscriberList[H]{}
	l.ref.Store(&handleArray[H]{})
	return l
}

// snapshot 返回当前快照
func (l *subscriberList[H]) snapshot() []H {
	return l.ref.Load().items
}

// len 返回当前订阅者数量
func (l *subscriberList[H]) len() int {
	return len(l.ref.Load().items)
}

// isTerminated 是否已冻结
func (l *subscriberList[H]) isTerminated() bool {
	return l.ref.Load().terminated
}

// add 添加订阅者，已终止时返回false
func (l *subscriberList[H]) add(h H) bool {
	for {
		cur := l.ref.Load()
		if cur.terminated {
			return false
		}
		n := len(cur.items)
		items := make([]H, n+1)
		copy(items, cur.items)
		items[n] = h
		if l.ref.CompareAndSwap(cur, &handleArray[H]{items: items}) {
			return true
		}
	}
}

// remove 移除订阅者，幂等
//
// lastGone 为true时，移除最后一个订阅者会直接冻结数组（引用计数模式），
// 返回值 emptied 表示本次调用完成了冻结。
func (l *subscriberList[H]) remove(h H, lastGone bool) (emptied bool) {
	for {
		cur := l.ref.Load()
		if cur.terminated {
			return false
		}
		n := len(cur.items)
		j := -1
		for i, item := range cur.items {
			if item == h {
				j = i
				break
			}
		}
		if j < 0 {
			return false
		}

		var next *handleArray[H]
		if n == 1 {
			if lastGone {
				next = &handleArray[H]{terminated: true}
			} else {
				next = &handleArray[H]{}
			}
		} else {
			items := make([]H, n-1)
			copy(items, cur.items[:j])
			copy(items[j:], cur.items[j+1:])
			next = &handleArray[H]{items: items}
		}
		if l.ref.CompareAndSwap(cur, next) {
			return next.terminated
		}
	}
}

// terminate 冻结数组并返回最后一个活动快照，重复调用返回nil
func (l *subscriberList[H]) terminate() []H {
	cur := l.ref.Load()
	if cur.terminated {
		return nil
	}
	prev := l.ref.Swap(&handleArray[H]{terminated: true})
	if prev.terminated {
		return nil
	}
	return prev.items
}
