// Package ffi 在运行期按参数值合成跳板并调用任意原生函数
//
// 用法：
//
//	lib, _ := ffi.Open("libc.so.6")
//	h, _ := lib.Func("abs")
//	n, err := ffi.Call[int32](h.Arg(ffi.I32(-5)))
//
// 每次调用都会生成独立的跳板模块，调用返回后立即释放。
// 调用方负责保证参数与返回类型和目标函数的真实签名一致。
package ffi

import (
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/tangzhangming/dyncall/internal/config"
)

// Engine 保存句柄共享的配置、日志器与统计
// 引擎本身不持有任何可执行内存
type Engine struct {
	cfg   config.Config
	log   *zap.Logger
	stats engineStats
}

type engineStats struct {
	calls     atomic.Int64
	failures  atomic.Int64
	codeBytes atomic.Int64
}

// Stats 调用统计快照
type Stats struct {
	Calls     int64 // 已执行的调用
	Failures  int64 // 构建、链接或执行失败的调用
	CodeBytes int64 // 累计生成的机器码字节数
}

// Option 引擎选项
type Option func(*Engine)

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithConfig 设置配置
func WithConfig(cfg config.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// NewEngine 创建引擎
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		cfg: config.Default(),
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
)

// Default 返回包级默认引擎
func Default() *Engine {
	defaultOnce.Do(func() {
		defaultEngine = NewEngine()
	})
	return defaultEngine
}

// Config 返回引擎配置
func (e *Engine) Config() config.Config {
	return e.cfg
}

// Logger 返回引擎日志器
func (e *Engine) Logger() *zap.Logger {
	return e.log
}

// Stats 返回统计快照
func (e *Engine) Stats() Stats {
	return Stats{
		Calls:     e.stats.calls.Load(),
		Failures:  e.stats.failures.Load(),
		CodeBytes: e.stats.codeBytes.Load(),
	}
}

// NewHandle 为进程内地址 addr 创建函数句柄
func (e *Engine) NewHandle(addr uintptr) *Handle {
	return &Handle{engine: e, addr: addr}
}

// NewHandle 使用默认引擎创建函数句柄
func NewHandle(addr uintptr) *Handle {
	return Default().NewHandle(addr)
}

// Open 使用默认引擎加载动态库
func Open(name string) (*Library, error) {
	return Default().Open(name)
}
