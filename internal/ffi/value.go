package ffi

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/tangzhangming/dyncall/internal/jit/types"
)

// Kind 参数值的标签
type Kind int

const (
	KindInvalid Kind = iota
	KindI8
	KindI16
	KindI32
	KindI64
	KindBool
	KindPtr
)

func (k Kind) String() string {
	switch k {
	case KindI8:
		return "i8"
	case KindI16:
		return "i16"
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindBool:
		return "bool"
	case KindPtr:
		return "ptr"
	default:
		return "invalid"
	}
}

// Type 返回标签对应的机器类型
func (k Kind) Type() types.Type {
	switch k {
	case KindI8:
		return types.I8
	case KindI16:
		return types.I16
	case KindI32:
		return types.I32
	case KindI64:
		return types.I64
	case KindBool:
		return types.B8
	case KindPtr:
		return types.Ptr
	default:
		return types.Invalid
	}
}

// ArgValue 带类型标签的参数值
//
// 整数按原位宽保存原始位，signed 只影响装入寄存器时的扩展方式。
// Go 指针保存在 ptr 中，使被指向的对象在调用前保持可达且不随栈移动。
type ArgValue struct {
	kind   Kind
	bits   uint64
	ptr    unsafe.Pointer
	signed bool
}

func U8(v uint8) ArgValue   { return ArgValue{kind: KindI8, bits: uint64(v)} }
func I8(v int8) ArgValue    { return ArgValue{kind: KindI8, bits: uint64(uint8(v)), signed: true} }
func U16(v uint16) ArgValue { return ArgValue{kind: KindI16, bits: uint64(v)} }
func I16(v int16) ArgValue  { return ArgValue{kind: KindI16, bits: uint64(uint16(v)), signed: true} }
func U32(v uint32) ArgValue { return ArgValue{kind: KindI32, bits: uint64(v)} }
func I32(v int32) ArgValue  { return ArgValue{kind: KindI32, bits: uint64(uint32(v)), signed: true} }
func U64(v uint64) ArgValue { return ArgValue{kind: KindI64, bits: v} }
func I64(v int64) ArgValue  { return ArgValue{kind: KindI64, bits: uint64(v), signed: true} }

// Bool 布尔参数
func Bool(v bool) ArgValue {
	a := ArgValue{kind: KindBool}
	if v {
		a.bits = 1
	}
	return a
}

// Ptr 原始指针参数
//
// 只传递地址。被指向的 Go 内存必须在调用期间保持可达，
// 并且不能被目标函数保存到调用之后。
func Ptr(p unsafe.Pointer) ArgValue {
	return ArgValue{kind: KindPtr, ptr: p}
}

// Addr 以整数地址给出的指针参数
func Addr(addr uintptr) ArgValue {
	return ArgValue{kind: KindPtr, bits: uint64(addr)}
}

// PtrTo 任意类型值的地址
func PtrTo[T any](p *T) ArgValue {
	return Ptr(unsafe.Pointer(p))
}

// Kind 标签
func (a ArgValue) Kind() Kind { return a.kind }

// Type 机器类型，只由标签决定
func (a ArgValue) Type() types.Type { return a.kind.Type() }

// Bits 原始位，指针在此刻才转换为地址
func (a ArgValue) Bits() uint64 {
	if a.ptr != nil {
		return uint64(uintptr(a.ptr))
	}
	return a.bits
}

// Pointer 以 Ptr/PtrTo 构造时保存的 Go 指针
func (a ArgValue) Pointer() unsafe.Pointer { return a.ptr }

// Signed 是否按有符号整数构造
func (a ArgValue) Signed() bool { return a.signed }

// Ext 装入寄存器时的扩展方式
func (a ArgValue) Ext() types.Extension {
	switch a.kind {
	case KindI8, KindI16, KindI32:
		if a.signed {
			return types.ExtSext
		}
		return types.ExtUext
	case KindBool:
		return types.ExtUext
	default:
		return types.ExtNone
	}
}

// AbiParam 参数在签名中的形式，指针解析为宿主宽度
func (a ArgValue) AbiParam() types.AbiParam {
	return types.NewAbiParam(a.Type().Resolve()).WithExt(a.Ext())
}

// String 形如 i32:-5
func (a ArgValue) String() string {
	switch a.kind {
	case KindBool:
		return fmt.Sprintf("bool:%t", a.bits != 0)
	case KindPtr:
		return fmt.Sprintf("ptr:%#x", a.Bits())
	case KindInvalid:
		return "invalid"
	}
	prefix := "u"
	if a.signed {
		prefix = "i"
	}
	bits := a.Type().Bits()
	return fmt.Sprintf("%s%d:%s", prefix, bits, formatBits(a.bits, bits, a.signed))
}

// ValueOf 把 Go 值映射为参数值
//
// int/uint 按宿主字长映射，任意指针映射为地址。
func ValueOf(v any) (ArgValue, error) {
	switch x := v.(type) {
	case ArgValue:
		return x, nil
	case int8:
		return I8(x), nil
	case uint8:
		return U8(x), nil
	case int16:
		return I16(x), nil
	case uint16:
		return U16(x), nil
	case int32:
		return I32(x), nil
	case uint32:
		return U32(x), nil
	case int64:
		return I64(x), nil
	case uint64:
		return U64(x), nil
	case int:
		if types.PointerBits == 32 {
			return I32(int32(x)), nil
		}
		return I64(int64(x)), nil
	case uint:
		if types.PointerBits == 32 {
			return U32(uint32(x)), nil
		}
		return U64(uint64(x)), nil
	case bool:
		return Bool(x), nil
	case uintptr:
		return Addr(x), nil
	case unsafe.Pointer:
		return Ptr(x), nil
	case nil:
		return Addr(0), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return Ptr(rv.UnsafePointer()), nil
	}
	return ArgValue{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

// formatBits 按位宽和符号格式化原始位
func formatBits(raw uint64, bits int, signed bool) string {
	if bits < 64 {
		raw &= uint64(1)<<uint(bits) - 1
	}
	if !signed {
		return fmt.Sprintf("%d", raw)
	}
	shift := uint(64 - bits)
	return fmt.Sprintf("%d", int64(raw<<shift)>>shift)
}
