// calling_convention.go - 调用约定
//
// 支持 System V AMD64 与 Windows x64 两种整数调用约定。
// 浮点与聚合类型不在支持范围内。

package jit

import (
	"github.com/tangzhangming/dyncall/internal/jit/types"
)

// CallingConv 调用约定细节
type CallingConv struct {
	Kind        types.CallConv
	ArgRegs     []X64Reg // 整数参数寄存器（按顺序）
	RetReg      X64Reg   // 返回值寄存器
	ShadowSpace int      // 阴影空间大小（字节）
	StackAlign  int      // 调用点栈对齐（字节）
	StackSlot   int      // 每个栈参数占用字节数
}

// SystemVConv System V AMD64 调用约定 (Linux/macOS)
var SystemVConv = CallingConv{
	Kind:        types.SystemV,
	ArgRegs:     []X64Reg{RDI, RSI, RDX, RCX, R8, R9},
	RetReg:      RAX,
	ShadowSpace: 0,
	StackAlign:  16,
	StackSlot:   8,
}

// WindowsX64Conv Windows x64 调用约定
var WindowsX64Conv = CallingConv{
	Kind:        types.WindowsFastcall,
	ArgRegs:     []X64Reg{RCX, RDX, R8, R9},
	RetReg:      RAX,
	ShadowSpace: 32,
	StackAlign:  16,
	StackSlot:   8,
}

// ConvFor 返回调用约定细节
func ConvFor(cc types.CallConv) CallingConv {
	if cc == types.WindowsFastcall {
		return WindowsX64Conv
	}
	return SystemVConv
}

// CallLayout 一次调用的参数布局
type CallLayout struct {
	RegArgs   int // 寄存器传递的参数个数
	StackArgs int // 栈传递的参数个数
	Padding   int // 为保持对齐额外预留的字节
	Cleanup   int // 调用返回后需要弹出的字节数
}

// LayoutCall 计算 n 个整数参数的布局
// 假设调用前 RSP 已按 StackAlign 对齐
func (cc CallingConv) LayoutCall(n int) CallLayout {
	l := CallLayout{RegArgs: n}
	if n > len(cc.ArgRegs) {
		l.RegArgs = len(cc.ArgRegs)
		l.StackArgs = n - len(cc.ArgRegs)
	}
	pushed := l.StackArgs*cc.StackSlot + cc.ShadowSpace
	if rem := pushed % cc.StackAlign; rem != 0 {
		l.Padding = cc.StackAlign - rem
	}
	l.Cleanup = pushed + l.Padding
	return l
}
