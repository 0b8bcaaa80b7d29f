// Monitored scheduler for rxext
// 带prometheus监控的调度器包装器
package rxext

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MonitoredScheduler 记录调度指标的调度器包装器
type MonitoredScheduler struct {
	scheduler Scheduler

	scheduled prometheus.Counter
	completed prometheus.Counter
	failed    prometheus.Counter
	latency   prometheus.Histogram
}

var _ Scheduler = (*MonitoredScheduler)(nil)

// NewMonitoredScheduler 创建带监控的调度器，指标注册到registerer
//
// registerer为nil时指标不注册，只在包装器内部计数。
func NewMonitoredScheduler(scheduler Scheduler, registerer prometheus.Registerer) *MonitoredScheduler {
	factory := promauto.With(registerer)
	return &MonitoredScheduler{
		scheduler: scheduler,
		scheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rxext",
			Subsystem: "scheduler",
			Name:      "tasks_scheduled_total",
			Help:      "Number of tasks submitted to the scheduler.",
		}),
		completed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rxext",
			Subsystem: "scheduler",
			Name:      "tasks_completed_total",
			Help:      "Number of tasks that ran to completion.",
		}),
		failed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rxext",
			Subsystem: "scheduler",
			Name:      "tasks_failed_total",
			Help:      "Number of tasks that panicked.",
		}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rxext",
			Subsystem: "scheduler",
			Name:      "task_latency_seconds",
			Help:      "Time from submission to the end of the task.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
}

// wrap 包装任务以记录指标，panic计入失败后继续作为无法投递的错误上报
func (s *MonitoredScheduler) wrap(action func()) func() {
	s.scheduled.Inc()
	start := s.scheduler.Now()
	return func() {
		defer func() {
			s.latency.Observe(s.scheduler.Now().Sub(start).Seconds())
		}()
		if err := tryCall("rxext: monitored task", func() error {
			action()
			return nil
		}); err != nil {
			s.failed.Inc()
			reportDropped(err)
			return
		}
		s.completed.Inc()
	}
}

func (s *MonitoredScheduler) Now() time.Time {
	return s.scheduler.Now()
}

// Schedule 调度任务并记录指标
func (s *MonitoredScheduler) Schedule(action func()) Disposable {
	return s.scheduler.Schedule(s.wrap(action))
}

// ScheduleWithDelay 延迟调度任务并记录指标
func (s *MonitoredScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	return s.scheduler.ScheduleWithDelay(s.wrap(action), delay)
}

// ScheduleAt 定时调度任务并记录指标
func (s *MonitoredScheduler) ScheduleAt(action func(), at time.Time) Disposable {
	return s.scheduler.ScheduleAt(s.wrap(action), at)
}

// ScheduleWithContext 带上下文调度任务并记录指标
func (s *MonitoredScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return s.scheduler.ScheduleWithContext(ctx, s.wrap(action))
}
