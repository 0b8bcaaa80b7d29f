// Logging for rxext
// 日志与无法投递错误的上报
package rxext

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	logger       atomic.Pointer[zap.Logger]
	errorHandler atomic.Pointer[func(error)]
)

func init() {
	logger.Store(zap.NewNop())
}

// SetLogger 替换库使用的日志器，传入nil恢复为空日志器
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

// Logger 返回当前日志器
func Logger() *zap.Logger {
	return logger.Load()
}

// SetErrorHandler 设置无法投递错误的回调，传入nil清除
func SetErrorHandler(handler func(error)) {
	if handler == nil {
		errorHandler.Store(nil)
		return
	}
	errorHandler.Store(&handler)
}

// reportDropped 上报序列终止后到达或在快速失败模式下被丢弃的错误
func reportDropped(err error) {
	reportDroppedTo(Logger(), "rxext: undeliverable error", err)
}

// reportDroppedTo 使用指定日志器上报无法投递的错误
func reportDroppedTo(l *zap.Logger, msg string, err error) {
	if err == nil {
		return
	}
	l.Warn(msg, zap.Error(err))
	if h := errorHandler.Load(); h != nil {
		(*h)(err)
	}
}

// reportViolation 上报协议违规
func reportViolation(err error) {
	Logger().Error("rxext: protocol violation", zap.Error(err), zap.Stack("stack"))
	if h := errorHandler.Load(); h != nil {
		(*h)(err)
	}
}
