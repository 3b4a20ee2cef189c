package ffi

import (
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Library 已加载的动态库
//
// 库必须在由它得到的句柄全部调用完之后才能关闭。
type Library struct {
	engine *Engine
	name   string
	handle libHandle
	closed atomic.Bool
}

// Open 加载动态库，name 为空时表示当前进程
func (e *Engine) Open(name string) (*Library, error) {
	h, err := openLibrary(name)
	if err != nil {
		return nil, err
	}
	e.log.Debug("library loaded", zap.String("library", name))
	return &Library{engine: e, name: name, handle: h}, nil
}

// Name 加载时使用的库名
func (l *Library) Name() string {
	return l.name
}

// Lookup 解析符号地址
func (l *Library) Lookup(symbol string) (uintptr, error) {
	if l.closed.Load() {
		return 0, fmt.Errorf("%w: %s", ErrLibraryClosed, l.name)
	}
	addr, err := lookupSymbol(l.handle, symbol)
	if err != nil {
		return 0, err
	}
	if addr == 0 {
		return 0, fmt.Errorf("%w: %s in %s resolves to null", ErrSymbolNotFound, symbol, l.name)
	}
	return addr, nil
}

// Func 解析符号并创建函数句柄
func (l *Library) Func(symbol string) (*Handle, error) {
	addr, err := l.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	h := l.engine.NewHandle(addr)
	h.symbol = symbol
	return h, nil
}

// Close 卸载动态库，重复调用是安全的
func (l *Library) Close() error {
	if !l.closed.CAS(false, true) {
		return nil
	}
	if err := closeLibrary(l.handle); err != nil {
		return fmt.Errorf("ffi: close %s: %w", l.name, err)
	}
	return nil
}
