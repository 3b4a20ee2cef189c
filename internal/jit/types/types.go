// Package types 定义 JIT 后端与调用方共享的机器类型和函数签名
package types

import (
	"fmt"
	"runtime"
	"strings"
	"unsafe"
)

// ============================================================================
// 机器类型
// ============================================================================

// Type 机器类型（只区分位宽，不区分有无符号）
type Type int

const (
	Invalid Type = iota
	I8
	I16
	I32
	I64
	B8  // 8 位布尔
	Ptr // 指针标记，签名构造时按宿主指针宽度解析
)

// Bits 返回类型位宽
// Ptr 返回宿主指针宽度
func (t Type) Bits() int {
	switch t {
	case I8, B8:
		return 8
	case I16:
		return 16
	case I32:
		return 32
	case I64:
		return 64
	case Ptr:
		return PointerBits
	default:
		return 0
	}
}

// Bytes 返回类型字节数
func (t Type) Bytes() int {
	return t.Bits() / 8
}

// IsInt 是否为整数类
func (t Type) IsInt() bool {
	return t == I8 || t == I16 || t == I32 || t == I64
}

// IsBool 是否为布尔类
func (t Type) IsBool() bool {
	return t == B8
}

// Valid 是否为合法类型
func (t Type) Valid() bool {
	return t > Invalid && t <= Ptr
}

// String 返回类型名称
func (t Type) String() string {
	switch t {
	case I8:
		return "i8"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case B8:
		return "b8"
	case Ptr:
		return "ptr"
	default:
		return "invalid"
	}
}

// PointerBits 宿主指针位宽
const PointerBits = int(unsafe.Sizeof(uintptr(0))) * 8

// PointerType 返回宿主指针宽度对应的整数类型
func PointerType() Type {
	if PointerBits == 32 {
		return I32
	}
	return I64
}

// Resolve 将指针标记解析为宿主整数类型，其余类型原样返回
func (t Type) Resolve() Type {
	if t == Ptr {
		return PointerType()
	}
	return t
}

// ============================================================================
// ABI 参数
// ============================================================================

// Extension 窄类型扩展到寄存器宽度的方式
type Extension int

const (
	ExtNone Extension = iota
	ExtUext           // 零扩展
	ExtSext           // 符号扩展
)

func (e Extension) String() string {
	switch e {
	case ExtUext:
		return "uext"
	case ExtSext:
		return "sext"
	default:
		return ""
	}
}

// AbiParam 签名中的一个参数或返回槽
type AbiParam struct {
	Type Type
	Ext  Extension
}

// NewAbiParam 创建不带扩展属性的 ABI 参数
func NewAbiParam(t Type) AbiParam {
	return AbiParam{Type: t}
}

// WithExt 返回带扩展属性的副本
func (p AbiParam) WithExt(ext Extension) AbiParam {
	p.Ext = ext
	return p
}

func (p AbiParam) String() string {
	if p.Ext == ExtNone {
		return p.Type.String()
	}
	return p.Type.String() + " " + p.Ext.String()
}

// ============================================================================
// 调用约定
// ============================================================================

// CallConv 调用约定
type CallConv int

const (
	SystemV         CallConv = iota // System V AMD64 (Linux/macOS)
	WindowsFastcall                 // Windows x64
)

func (c CallConv) String() string {
	switch c {
	case SystemV:
		return "system_v"
	case WindowsFastcall:
		return "windows_fastcall"
	default:
		return "unknown"
	}
}

// DefaultCallConv 返回当前进程目标平台的默认调用约定
func DefaultCallConv() CallConv {
	if runtime.GOOS == "windows" {
		return WindowsFastcall
	}
	return SystemV
}

// ============================================================================
// 函数签名
// ============================================================================

// Signature 函数签名
type Signature struct {
	Params   []AbiParam
	Returns  []AbiParam
	CallConv CallConv
}

// NewSignature 创建使用给定调用约定的空签名
func NewSignature(cc CallConv) Signature {
	return Signature{CallConv: cc}
}

// Equal 比较两个签名是否完全一致
func (s Signature) Equal(o Signature) bool {
	if s.CallConv != o.CallConv || len(s.Params) != len(o.Params) || len(s.Returns) != len(o.Returns) {
		return false
	}
	for i := range s.Params {
		if s.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range s.Returns {
		if s.Returns[i] != o.Returns[i] {
			return false
		}
	}
	return true
}

// Clone 深拷贝签名
func (s Signature) Clone() Signature {
	c := Signature{CallConv: s.CallConv}
	c.Params = append([]AbiParam(nil), s.Params...)
	c.Returns = append([]AbiParam(nil), s.Returns...)
	return c
}

// String 形如 (i32 sext, i64) -> i32 system_v
func (s Signature) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	sb.WriteString(")")
	if len(s.Returns) > 0 {
		sb.WriteString(" -> ")
		for i, r := range s.Returns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(r.String())
		}
	}
	fmt.Fprintf(&sb, " %s", s.CallConv)
	return sb.String()
}
