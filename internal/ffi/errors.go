package ffi

import (
	"errors"
	"fmt"
)

var (
	// ErrLibraryNotFound 动态库无法加载
	ErrLibraryNotFound = errors.New("ffi: library not found")
	// ErrSymbolNotFound 库中没有该符号
	ErrSymbolNotFound = errors.New("ffi: symbol not found")
	// ErrHandleConsumed 句柄已被调用过
	ErrHandleConsumed = errors.New("ffi: function handle already consumed")
	// ErrUnsupportedValue 无法映射为参数值的 Go 值
	ErrUnsupportedValue = errors.New("ffi: unsupported argument value")
	// ErrUnsupportedPlatform 当前构建无法加载库或执行跳板
	ErrUnsupportedPlatform = errors.New("ffi: unsupported platform")
	// ErrLibraryClosed 库已关闭
	ErrLibraryClosed = errors.New("ffi: library closed")
)

// CodeGenError 跳板构建或编译失败
// 属于内部不变量被破坏，不应重试
type CodeGenError struct {
	Op  string // 失败的阶段：declare、build、define、finalize ...
	Err error
}

func (e *CodeGenError) Error() string {
	return fmt.Sprintf("ffi: codegen %s: %v", e.Op, e.Err)
}

func (e *CodeGenError) Unwrap() error {
	return e.Err
}

func codegenErr(op string, err error) error {
	return &CodeGenError{Op: op, Err: err}
}
