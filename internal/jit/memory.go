// memory.go - 可执行内存管理
//
// JIT 生成的机器码需要放在可执行内存中才能被 CPU 执行。
//
// 默认采用 W^X 策略：
// - 先以 RW 权限映射并写入代码
// - 再切换为 RX 权限执行
// 关闭 W^X 时直接映射 RWX 页。

package jit

import (
	"errors"
	"fmt"
	"unsafe"
)

// codeAlign 函数入口对齐
const codeAlign = 16

// CodeRegion 一段独占的可执行内存
type CodeRegion struct {
	mem        []byte
	used       int
	wx         bool
	executable bool
}

// AllocCode 分配至少 size 字节的代码区
// wx 为 true 时按 W^X 策略映射
func AllocCode(size int, wx bool) (*CodeRegion, error) {
	if size <= 0 {
		size = codeAlign
	}
	ps := pageSize()
	aligned := (size + ps - 1) &^ (ps - 1)

	mem, err := mapPages(aligned, !wx)
	if err != nil {
		return nil, fmt.Errorf("jit: map %d bytes: %w", aligned, err)
	}
	return &CodeRegion{mem: mem, wx: wx, executable: !wx}, nil
}

// Write 追加一段代码，返回其入口地址
func (r *CodeRegion) Write(code []byte) (uintptr, error) {
	if r.mem == nil {
		return 0, ErrFreed
	}
	if r.executable && r.wx {
		return 0, errors.New("jit: write to sealed code region")
	}
	start := (r.used + codeAlign - 1) &^ (codeAlign - 1)
	if start+len(code) > len(r.mem) {
		return 0, fmt.Errorf("jit: code region overflow (%d + %d > %d)", start, len(code), len(r.mem))
	}
	copy(r.mem[start:], code)
	r.used = start + len(code)
	return r.Base() + uintptr(start), nil
}

// MakeExecutable 切换为可执行权限
func (r *CodeRegion) MakeExecutable() error {
	if r.mem == nil {
		return ErrFreed
	}
	if r.executable {
		return nil
	}
	if err := protectExec(r.mem); err != nil {
		return fmt.Errorf("jit: protect code region: %w", err)
	}
	r.executable = true
	return nil
}

// Executable 是否已可执行
func (r *CodeRegion) Executable() bool {
	return r.executable
}

// Base 代码区起始地址
func (r *CodeRegion) Base() uintptr {
	if len(r.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&r.mem[0]))
}

// Size 映射大小
func (r *CodeRegion) Size() int {
	return len(r.mem)
}

// Used 已写入字节数
func (r *CodeRegion) Used() int {
	return r.used
}

// Free 释放映射，重复调用是安全的
func (r *CodeRegion) Free() error {
	if r.mem == nil {
		return nil
	}
	mem := r.mem
	r.mem = nil
	r.used = 0
	r.executable = false
	if err := unmapPages(mem); err != nil {
		return fmt.Errorf("jit: unmap code region: %w", err)
	}
	return nil
}
