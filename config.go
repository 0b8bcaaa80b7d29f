// Configuration options for rxext
// 操作符与主题的配置选项
package rxext

// ============================================================================
// 配置选项
// ============================================================================

// Option 配置选项接口
type Option interface {
	Apply(config *Config)
}

// optionFunc 函数形式的配置选项
type optionFunc func(config *Config)

// Apply 应用配置
func (f optionFunc) Apply(config *Config) {
	f(config)
}

// Config 配置结构
type Config struct {
	// MaxConcurrency 同时订阅的内部源上限，<=0 表示不限
	MaxConcurrency int
	// DelayErrors 延迟错误直到所有工作完成，并聚合为组合错误
	DelayErrors bool
	// CapacityHint 队列岛与缓存节点的容量提示
	CapacityHint int
	// RefCount 最后一个订阅者离开时释放上游
	RefCount bool
	// SourceFirst WithLatestFrom 是否先订阅主源
	SourceFirst bool
	// OnTerminate 单播主题终止或被释放时调用一次
	OnTerminate func()
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		CapacityHint: 16,
	}
}

func newConfig(options []Option) *Config {
	config := DefaultConfig()
	for _, opt := range options {
		if opt != nil {
			opt.Apply(config)
		}
	}
	if config.CapacityHint <= 0 {
		config.CapacityHint = 16
	}
	return config
}

// bounded 是否限制了并发数
func (c *Config) bounded() bool {
	return c.MaxConcurrency > 0
}

// WithMaxConcurrency 限制同时订阅的内部源数量
func WithMaxConcurrency(n int) Option {
	return optionFunc(func(config *Config) {
		config.MaxConcurrency = n
	})
}

// WithDelayErrors 启用延迟错误模式
func WithDelayErrors() Option {
	return optionFunc(func(config *Config) {
		config.DelayErrors = true
	})
}

// WithCapacityHint 设置容量提示
func WithCapacityHint(n int) Option {
	return optionFunc(func(config *Config) {
		config.CapacityHint = n
	})
}

// WithRefCount 启用引用计数模式
func WithRefCount() Option {
	return optionFunc(func(config *Config) {
		config.RefCount = true
	})
}

// WithSourceFirst 设置WithLatestFrom的订阅顺序
func WithSourceFirst(sourceFirst bool) Option {
	return optionFunc(func(config *Config) {
		config.SourceFirst = sourceFirst
	})
}

// WithOnTerminate 设置终止回调
func WithOnTerminate(action func()) Option {
	return optionFunc(func(config *Config) {
		config.OnTerminate = action
	})
}
