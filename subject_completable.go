// CompletableSubject for rxext
// 仅完成主题
package rxext

import "sync/atomic"

// CompletableSubject 仅完成主题
type CompletableSubject struct {
	subscribers *subscriberList[*completableHandle]
	terminal    ErrorCell
	upstream    Resource
	refCount    bool
}

var _ CompletableSubjectAPI = (*CompletableSubject)(nil)

// NewCompletableSubject 创建仅完成主题，WithRefCount 启用引用计数
func NewCompletableSubject(options ...Option) *CompletableSubject {
	config := newConfig(options)
	return &CompletableSubject{
		subscribers: newSubscriberList[*completableHandle](),
		refCount:    config.RefCount,
	}
}

type completableHandle struct {
	downstream CompletableObserver
	parent     atomic.Pointer[CompletableSubject]
}

func (h *completableHandle) Dispose() {
	if p := h.parent.Swap(nil); p != nil {
		p.remove(h)
	}
}

func (h *completableHandle) IsDisposed() bool {
	return h.parent.Load() == nil
}

func (h *completableHandle) onCompleted() {
	if h.parent.Swap(nil) != nil {
		h.downstream.OnCompleted()
	}
}

func (h *completableHandle) onError(err error) {
	if h.parent.Swap(nil) != nil {
		h.downstream.OnError(err)
	}
}

// Subscribe 订阅观察者
func (s *CompletableSubject) Subscribe(observer CompletableObserver) {
	h := &completableHandle{downstream: observer}
	h.parent.Store(s)
	observer.OnSubscribe(h)

	if s.subscribers.add(h) {
		if h.IsDisposed() {
			s.remove(h)
		}
		return
	}

	err, completed := lateTerminal(&s.terminal)
	if completed {
		h.onCompleted()
	} else {
		h.onError(err)
	}
}

func (s *CompletableSubject) remove(h *completableHandle) {
	if s.subscribers.remove(h, s.refCount) {
		s.terminal.TrySet(ErrSubjectDisposed)
		s.upstream.Dispose()
	}
}

// OnSubscribe 引用计数模式下持有上游令牌
func (s *CompletableSubject) OnSubscribe(d Disposable) {
	if s.refCount {
		s.upstream.SetOnce(d)
		return
	}
	if s.subscribers.isTerminated() {
		d.Dispose()
	}
}

// OnCompleted 以完成终止
func (s *CompletableSubject) OnCompleted() {
	if !s.terminal.TryComplete() {
		return
	}
	for _, h := range s.subscribers.terminate() {
		h.onCompleted()
	}
}

// OnError 以错误终止
func (s *CompletableSubject) OnError(err error) {
	if !s.terminal.TrySet(err) {
		reportDropped(err)
		return
	}
	for _, h := range s.subscribers.terminate() {
		h.onError(err)
	}
}

// HasObservers 检查是否有观察者
func (s *CompletableSubject) HasObservers() bool {
	return s.subscribers.len() != 0
}

// HasCompleted 是否已完成
func (s *CompletableSubject) HasCompleted() bool {
	return s.terminal.IsTerminated()
}

// HasException 是否以错误终止
func (s *CompletableSubject) HasException() bool {
	return subjectException(&s.terminal) != nil
}

// Exception 返回终止错误
func (s *CompletableSubject) Exception() error {
	return subjectException(&s.terminal)
}
