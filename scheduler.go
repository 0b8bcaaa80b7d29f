// Scheduler implementations for rxext
// 调度器：时间与执行上下文的可注入能力
package rxext

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Scheduler 调度器接口
//
// 任务中的panic被捕获并作为无法投递的错误上报。
type Scheduler interface {
	// Now 调度器时钟的当前时间
	Now() time.Time
	// Schedule 尽快执行任务
	Schedule(action func()) Disposable
	// ScheduleWithDelay 延迟执行任务
	ScheduleWithDelay(action func(), delay time.Duration) Disposable
	// ScheduleAt 在指定时间执行任务，时间已过时尽快执行
	ScheduleAt(action func(), at time.Time) Disposable
	// ScheduleWithContext 带上下文执行任务，ctx结束后任务不再执行
	ScheduleWithContext(ctx context.Context, action func()) Disposable
}

// ============================================================================
// 调度器选项
// ============================================================================

// SchedulerOption 调度器配置选项
type SchedulerOption func(*schedulerConfig)

type schedulerConfig struct {
	clock  clock.Clock
	logger *zap.Logger
}

// WithClock 设置调度器时钟，测试中使用 clock.NewMock()
func WithClock(c clock.Clock) SchedulerOption {
	return func(config *schedulerConfig) {
		config.clock = c
	}
}

// WithLogger 设置调度器日志器，默认使用库的日志器
func WithLogger(l *zap.Logger) SchedulerOption {
	return func(config *schedulerConfig) {
		config.logger = l
	}
}

func newSchedulerConfig(options []SchedulerOption) schedulerConfig {
	config := schedulerConfig{clock: clock.New()}
	for _, opt := range options {
		if opt != nil {
			opt(&config)
		}
	}
	return config
}

func (c *schedulerConfig) log() *zap.Logger {
	if c.logger != nil {
		return c.logger
	}
	return Logger()
}

// ============================================================================
// 调度任务
// ============================================================================

// scheduledTask 可取消的调度任务
type scheduledTask struct {
	action   func()
	disposed atomic.Bool
	timer    atomic.Pointer[clock.Timer]
	cancel   context.CancelFunc
}

func newScheduledTask(action func()) *scheduledTask {
	return &scheduledTask{action: action}
}

// Dispose 取消任务，已开始执行的任务不受影响
func (t *scheduledTask) Dispose() {
	if t.disposed.CompareAndSwap(false, true) {
		if timer := t.timer.Load(); timer != nil {
			timer.Stop()
		}
		if t.cancel != nil {
			t.cancel()
		}
	}
}

func (t *scheduledTask) IsDisposed() bool {
	return t.disposed.Load()
}

// run 执行任务，panic作为无法投递的错误上报
func (t *scheduledTask) run(config *schedulerConfig) {
	if t.disposed.Load() {
		return
	}
	if err := tryCall("rxext: scheduled task", func() error {
		t.action()
		return nil
	}); err != nil {
		reportDroppedTo(config.log(), "rxext: scheduled task failed", err)
	}
}

// withContext 包装任务，ctx结束后跳过执行
func withContext(ctx context.Context, action func()) (func(), context.CancelFunc) {
	childCtx, cancel := context.WithCancel(ctx)
	return func() {
		defer cancel()
		if childCtx.Err() != nil {
			return
		}
		action()
	}, cancel
}

// ============================================================================
// 立即调度器 - Immediate Scheduler
// ============================================================================

// immediateScheduler 在调用者的goroutine中立即执行任务
type immediateScheduler struct {
	config schedulerConfig
}

// NewImmediateScheduler 创建立即调度器，延迟任务由时钟的定时器触发
func NewImmediateScheduler(options ...SchedulerOption) Scheduler {
	return &immediateScheduler{config: newSchedulerConfig(options)}
}

func (s *immediateScheduler) Now() time.Time {
	return s.config.clock.Now()
}

// Schedule 立即执行任务
func (s *immediateScheduler) Schedule(action func()) Disposable {
	t := newScheduledTask(action)
	t.run(&s.config)
	return t
}

func (s *immediateScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	if delay <= 0 {
		return s.Schedule(action)
	}
	return scheduleTimer(&s.config, newScheduledTask(action), delay, func(t *scheduledTask) {
		t.run(&s.config)
	})
}

func (s *immediateScheduler) ScheduleAt(action func(), at time.Time) Disposable {
	return s.ScheduleWithDelay(action, at.Sub(s.Now()))
}

func (s *immediateScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	wrapped, cancel := withContext(ctx, action)
	t := newScheduledTask(wrapped)
	t.cancel = cancel
	t.run(&s.config)
	return t
}

// scheduleTimer 在时钟定时器到期后提交任务
func scheduleTimer(config *schedulerConfig, t *scheduledTask, delay time.Duration, submit func(t *scheduledTask)) Disposable {
	timer := config.clock.AfterFunc(delay, func() {
		submit(t)
	})
	t.timer.Store(timer)
	if t.disposed.Load() {
		timer.Stop()
	}
	return t
}

// ============================================================================
// 协程调度器 - Goroutine Scheduler
// ============================================================================

// goroutineScheduler 为每个任务启动新的goroutine
type goroutineScheduler struct {
	config schedulerConfig
}

// NewGoroutineScheduler 创建协程调度器
func NewGoroutineScheduler(options ...SchedulerOption) Scheduler {
	return &goroutineScheduler{config: newSchedulerConfig(options)}
}

func (s *goroutineScheduler) Now() time.Time {
	return s.config.clock.Now()
}

func (s *goroutineScheduler) submit(t *scheduledTask) {
	go t.run(&s.config)
}

// Schedule 在新goroutine中执行任务
func (s *goroutineScheduler) Schedule(action func()) Disposable {
	t := newScheduledTask(action)
	s.submit(t)
	return t
}

func (s *goroutineScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	if delay <= 0 {
		return s.Schedule(action)
	}
	return scheduleTimer(&s.config, newScheduledTask(action), delay, s.submit)
}

func (s *goroutineScheduler) ScheduleAt(action func(), at time.Time) Disposable {
	return s.ScheduleWithDelay(action, at.Sub(s.Now()))
}

func (s *goroutineScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	wrapped, cancel := withContext(ctx, action)
	t := newScheduledTask(wrapped)
	t.cancel = cancel
	s.submit(t)
	return t
}

// ============================================================================
// 工作池调度器 - Pool Scheduler
// ============================================================================

// PoolScheduler 固定数量工作者的调度器
//
// 任务进入FIFO队列，工作者数量不足上限时通过conc的pool启动新的工作者，
// 工作者取空队列后退出。Schedule 从不阻塞。
type PoolScheduler struct {
	config  schedulerConfig
	workers int
	pool    *pool.Pool

	mu       sync.Mutex
	tasks    []*scheduledTask
	running  int
	disposed bool
}

// NewPoolScheduler 创建工作池调度器，workers<=0 时使用CPU数量
func NewPoolScheduler(workers int, options ...SchedulerOption) *PoolScheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &PoolScheduler{
		config:  newSchedulerConfig(options),
		workers: workers,
		pool:    pool.New().WithMaxGoroutines(workers),
	}
}

func (s *PoolScheduler) Now() time.Time {
	return s.config.clock.Now()
}

func (s *PoolScheduler) submit(t *scheduledTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		t.Dispose()
		reportDroppedTo(s.config.log(), "rxext: task rejected", ErrSchedulerDisposed)
		return
	}
	s.tasks = append(s.tasks, t)
	if s.running < s.workers {
		s.running++
		s.pool.Go(s.work)
	}
}

func (s *PoolScheduler) work() {
	for {
		s.mu.Lock()
		if len(s.tasks) == 0 {
			s.running--
			s.mu.Unlock()
			return
		}
		t := s.tasks[0]
		s.tasks[0] = nil
		s.tasks = s.tasks[1:]
		s.mu.Unlock()

		t.run(&s.config)
	}
}

// Schedule 在工作池中执行任务
func (s *PoolScheduler) Schedule(action func()) Disposable {
	t := newScheduledTask(action)
	s.submit(t)
	return t
}

func (s *PoolScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	if delay <= 0 {
		return s.Schedule(action)
	}
	return scheduleTimer(&s.config, newScheduledTask(action), delay, s.submit)
}

func (s *PoolScheduler) ScheduleAt(action func(), at time.Time) Disposable {
	return s.ScheduleWithDelay(action, at.Sub(s.Now()))
}

func (s *PoolScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	wrapped, cancel := withContext(ctx, action)
	t := newScheduledTask(wrapped)
	t.cancel = cancel
	s.submit(t)
	return t
}

// Dispose 丢弃排队的任务并等待正在执行的任务结束
func (s *PoolScheduler) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	for _, t := range tasks {
		t.Dispose()
	}
	s.pool.Wait()
}

// IsDisposed 检查是否已释放
func (s *PoolScheduler) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}
