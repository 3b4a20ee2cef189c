// Package jit 提供一个最小的即时编译后端
//
// 后端只服务于单次调用的跳板函数：
//   - ir.go / builder.go   中间表示与函数构建器
//   - verifier.go          IR 校验
//   - module.go            函数声明、链接与最终化
//   - codegen_x64.go       x86-64 代码生成
//   - memory*.go           可执行内存管理
package jit

import (
	"errors"
)

// 后端错误
var (
	// ErrVerify IR 校验失败
	ErrVerify = errors.New("jit: verifier error")
	// ErrDuplicateDecl 同名函数以不兼容的签名或链接属性重复声明
	ErrDuplicateDecl = errors.New("jit: incompatible duplicate declaration")
	// ErrUnknownFunction 引用了未声明的函数
	ErrUnknownFunction = errors.New("jit: unknown function")
	// ErrAlreadyDefined 函数已经定义过
	ErrAlreadyDefined = errors.New("jit: function already defined")
	// ErrUndefinedSymbol 导入函数在符号表中找不到地址
	ErrUndefinedSymbol = errors.New("jit: undefined symbol")
	// ErrUnsupportedISA 宿主架构不受支持
	ErrUnsupportedISA = errors.New("jit: unsupported instruction set")
	// ErrNotFinalized 模块尚未最终化
	ErrNotFinalized = errors.New("jit: module not finalized")
	// ErrFinalized 模块已经最终化，不能再定义函数
	ErrFinalized = errors.New("jit: module already finalized")
	// ErrBuilder 函数构建器使用错误
	ErrBuilder = errors.New("jit: builder misuse")
	// ErrFreed 模块内存已经释放
	ErrFreed = errors.New("jit: module memory released")
)
