package ffi

import (
	"runtime"

	"go.uber.org/atomic"

	"github.com/tangzhangming/dyncall/internal/jit/types"
)

// Handle 一次性的函数调用句柄
//
// 句柄按顺序累积参数，第一次 Call 之后进入已消费状态。
// 追加参数不是并发安全的；并发调用同一句柄时只有一个会真正执行。
type Handle struct {
	engine   *Engine
	addr     uintptr
	symbol   string
	args     []ArgValue
	err      error
	consumed atomic.Bool
}

// Arg 追加一个参数
func (h *Handle) Arg(v ArgValue) *Handle {
	if h.consumed.Load() {
		h.fail(ErrHandleConsumed)
		return h
	}
	h.args = append(h.args, v)
	return h
}

// Add 追加一个 Go 值，无法映射时记录错误并在 Call 时返回
func (h *Handle) Add(v any) *Handle {
	a, err := ValueOf(v)
	if err != nil {
		h.fail(err)
		return h
	}
	return h.Arg(a)
}

// AddArgs 依次追加多个参数
func (h *Handle) AddArgs(vs ...ArgValue) *Handle {
	for _, v := range vs {
		h.Arg(v)
	}
	return h
}

func (h *Handle) fail(err error) {
	if h.err == nil {
		h.err = err
	}
}

// Args 已追加的参数
func (h *Handle) Args() []ArgValue {
	return append([]ArgValue(nil), h.args...)
}

// Addr 目标函数地址
func (h *Handle) Addr() uintptr {
	return h.addr
}

// Symbol 目标符号名，直接由地址创建时为空
func (h *Handle) Symbol() string {
	return h.symbol
}

// Err 追加参数时记录的第一个错误
func (h *Handle) Err() error {
	return h.err
}

// Consumed 是否已被调用
func (h *Handle) Consumed() bool {
	return h.consumed.Load()
}

// Signature 以 ret 为返回类型时推导出的目标签名
func (h *Handle) Signature(ret *types.Type) types.Signature {
	return BuildSignature(h.args, ret)
}

// call 消费句柄并执行
func (h *Handle) call(ret *types.Type) (uint64, error) {
	if !h.consumed.CAS(false, true) {
		return 0, ErrHandleConsumed
	}
	if h.err != nil {
		return 0, h.err
	}
	raw, err := h.engine.execute(h.addr, h.symbol, h.args, ret)
	runtime.KeepAlive(h.args)
	return raw, err
}
