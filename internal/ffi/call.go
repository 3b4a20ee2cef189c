package ffi

import (
	"unsafe"

	"github.com/tangzhangming/dyncall/internal/jit/types"
)

// Void 无返回值
type Void struct{}

// ReturnType 可作为 Call 返回类型的 Go 类型
type ReturnType interface {
	Void | int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 |
		bool | uintptr | unsafe.Pointer
}

// Call 消费句柄，以 T 作为目标函数的返回类型执行一次调用
//
// T 必须与目标函数真实的返回类型一致，参数同理；不一致时行为未定义。
func Call[T ReturnType](h *Handle) (T, error) {
	var out T
	raw, err := h.call(returnTypeOf(out))
	if err != nil {
		return out, err
	}
	setRaw(&out, raw)
	return out, nil
}

// CallRaw 以运行期给出的返回类型执行调用
// 返回按返回槽位宽零扩展的原始位，ret 为 nil 时返回 0
func CallRaw(h *Handle, ret *types.Type) (uint64, error) {
	return h.call(ret)
}

func returnTypeOf(v any) *types.Type {
	var t types.Type
	switch v.(type) {
	case Void:
		return nil
	case int8, uint8:
		t = types.I8
	case int16, uint16:
		t = types.I16
	case int32, uint32:
		t = types.I32
	case int64, uint64:
		t = types.I64
	case bool:
		t = types.B8
	default: // uintptr, unsafe.Pointer
		t = types.Ptr
	}
	return &t
}

func setRaw(out any, raw uint64) {
	switch p := out.(type) {
	case *int8:
		*p = int8(raw)
	case *uint8:
		*p = uint8(raw)
	case *int16:
		*p = int16(raw)
	case *uint16:
		*p = uint16(raw)
	case *int32:
		*p = int32(raw)
	case *uint32:
		*p = uint32(raw)
	case *int64:
		*p = int64(raw)
	case *uint64:
		*p = raw
	case *bool:
		*p = raw&0xFF != 0
	case *uintptr:
		*p = uintptr(raw)
	case *unsafe.Pointer:
		addr := uintptr(raw)
		*p = *(*unsafe.Pointer)(unsafe.Pointer(&addr))
	}
}
