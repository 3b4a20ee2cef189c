package ffi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tangzhangming/dyncall/internal/jit/types"
)

// 文本形式的参数与返回类型，供命令行、REPL 和调用脚本使用
//
//	i32:-5   u8:255   bool:true   ptr:0x7fff0000   i64:0x10

// ParseArg 解析形如 kind:value 的参数字面量
func ParseArg(s string) (ArgValue, error) {
	kind, lit, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ArgValue{}, fmt.Errorf("ffi: argument %q: want kind:value", s)
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	lit = strings.TrimSpace(lit)

	switch kind {
	case "bool":
		b, err := strconv.ParseBool(lit)
		if err != nil {
			return ArgValue{}, fmt.Errorf("ffi: argument %q: %w", s, err)
		}
		return Bool(b), nil
	case "ptr":
		n, err := strconv.ParseUint(lit, 0, types.PointerBits)
		if err != nil {
			return ArgValue{}, fmt.Errorf("ffi: argument %q: %w", s, err)
		}
		return Addr(uintptr(n)), nil
	}

	signed, bits, err := intKind(kind)
	if err != nil {
		return ArgValue{}, fmt.Errorf("ffi: argument %q: %w", s, err)
	}
	if signed {
		n, err := strconv.ParseInt(lit, 0, bits)
		if err != nil {
			return ArgValue{}, fmt.Errorf("ffi: argument %q: %w", s, err)
		}
		switch bits {
		case 8:
			return I8(int8(n)), nil
		case 16:
			return I16(int16(n)), nil
		case 32:
			return I32(int32(n)), nil
		default:
			return I64(n), nil
		}
	}
	n, err := strconv.ParseUint(lit, 0, bits)
	if err != nil {
		return ArgValue{}, fmt.Errorf("ffi: argument %q: %w", s, err)
	}
	switch bits {
	case 8:
		return U8(uint8(n)), nil
	case 16:
		return U16(uint16(n)), nil
	case 32:
		return U32(uint32(n)), nil
	default:
		return U64(n), nil
	}
}

// ParseArgs 依次解析多个参数字面量
func ParseArgs(lits []string) ([]ArgValue, error) {
	args := make([]ArgValue, 0, len(lits))
	for _, s := range lits {
		a, err := ParseArg(s)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return args, nil
}

func intKind(kind string) (signed bool, bits int, err error) {
	if len(kind) < 2 || (kind[0] != 'i' && kind[0] != 'u') {
		return false, 0, fmt.Errorf("unknown kind %q", kind)
	}
	bits, err = strconv.Atoi(kind[1:])
	if err != nil || (bits != 8 && bits != 16 && bits != 32 && bits != 64) {
		return false, 0, fmt.Errorf("unknown kind %q", kind)
	}
	return kind[0] == 'i', bits, nil
}

// RetType 运行期才知道的返回类型
type RetType struct {
	Name   string
	Type   *types.Type // nil 表示 void
	Signed bool
}

// IsVoid 是否无返回值
func (r RetType) IsVoid() bool {
	return r.Type == nil
}

// ParseType 解析返回类型名
// 支持 void bool ptr 以及 i8..i64 u8..u64
func ParseType(s string) (RetType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "void", "":
		return RetType{Name: "void"}, nil
	case "bool":
		t := types.B8
		return RetType{Name: name, Type: &t}, nil
	case "ptr":
		t := types.Ptr
		return RetType{Name: name, Type: &t}, nil
	}
	signed, bits, err := intKind(name)
	if err != nil {
		return RetType{}, fmt.Errorf("ffi: return type: %w", err)
	}
	var t types.Type
	switch bits {
	case 8:
		t = types.I8
	case 16:
		t = types.I16
	case 32:
		t = types.I32
	default:
		t = types.I64
	}
	return RetType{Name: name, Type: &t, Signed: signed}, nil
}

// Format 按返回类型格式化 CallRaw 得到的原始位
func (r RetType) Format(raw uint64) string {
	if r.Type == nil {
		return "void"
	}
	switch *r.Type {
	case types.B8:
		return strconv.FormatBool(raw&0xFF != 0)
	case types.Ptr:
		return fmt.Sprintf("%#x", raw)
	}
	return formatBits(raw, r.Type.Bits(), r.Signed)
}

func (r RetType) String() string {
	return r.Name
}
