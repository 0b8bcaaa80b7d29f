// Queue fusion for rxext
// 队列融合协议：消费者可以绕过回调直接从生产者的内部队列同步拉取数据
package rxext

// ============================================================================
// 融合模式
// ============================================================================

// FusionMode 融合模式
type FusionMode int

const (
	// FusionNone 不支持融合
	FusionNone FusionMode = 0
	// FusionSync 同步融合 - 数据源本身就是可拉取的有限序列，不会再调用OnNext
	FusionSync FusionMode = 1
	// FusionAsync 异步融合 - 数据源调用OnNext只表示"有数据可拉取"
	FusionAsync FusionMode = 2
	// FusionAny 任意融合模式
	FusionAny = FusionSync | FusionAsync
)

// PollState TryPoll 的结果状态
type PollState int

const (
	// PollEmpty 暂时没有数据
	PollEmpty PollState = iota
	// PollReady 返回了一个值
	PollReady
	// PollTerminated 序列已终止，错误非nil表示以错误终止
	PollTerminated
)

// QueueDisposable 支持融合的订阅令牌
//
// 消费者在OnSubscribe中调用RequestFusion协商模式，协商成功后由消费者的
// 排水者线程调用TryPoll/IsEmpty/Clear。这是一种优化，不影响正确性。
type QueueDisposable[T any] interface {
	Disposable
	// RequestFusion 请求融合模式，返回实际采用的模式
	RequestFusion(mode FusionMode) FusionMode
	// TryPoll 拉取下一个元素
	TryPoll() (T, PollState, error)
	// IsEmpty 检查是否暂时没有数据
	IsEmpty() bool
	// Clear 丢弃剩余数据
	Clear()
}

// requestFusion 如果上游令牌支持融合，则请求指定模式
func requestFusion[T any](d Disposable, mode FusionMode) (QueueDisposable[T], FusionMode) {
	qd, ok := d.(QueueDisposable[T])
	if !ok {
		return nil, FusionNone
	}
	m := qd.RequestFusion(mode)
	if m == FusionNone {
		return nil, FusionNone
	}
	return qd, m
}
