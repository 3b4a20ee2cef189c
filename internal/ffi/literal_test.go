package ffi

import (
	"testing"

	"github.com/tangzhangming/dyncall/internal/jit/types"
)

// TestParseArg 测试参数字面量
func TestParseArg(t *testing.T) {
	tests := []struct {
		in   string
		want ArgValue
	}{
		{"i32:-5", I32(-5)},
		{"I32: -5", I32(-5)},
		{"u8:255", U8(255)},
		{"i8:-128", I8(-128)},
		{"u16:0xffff", U16(0xFFFF)},
		{"i64:-9223372036854775808", I64(-1 << 63)},
		{"u64:18446744073709551615", U64(^uint64(0))},
		{"bool:true", Bool(true)},
		{"bool:0", Bool(false)},
		{"ptr:0x1000", Addr(0x1000)},
	}
	for _, tt := range tests {
		got, err := ParseArg(tt.in)
		if err != nil {
			t.Errorf("ParseArg(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseArg(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "-5", "i32", "i24:1", "x32:1", "u8:256", "i8:128", "u32:-1", "bool:maybe", "ptr:-1", "f64:1.0"} {
		if _, err := ParseArg(bad); err == nil {
			t.Errorf("ParseArg(%q) should fail", bad)
		}
	}
}

// TestParseArgRoundTrip 测试 String 与 ParseArg 互逆
func TestParseArgRoundTrip(t *testing.T) {
	for _, v := range []ArgValue{I8(-1), U8(7), I16(-300), U16(300), I32(-5), U32(1 << 31), I64(-42), U64(42), Bool(true)} {
		got, err := ParseArg(v.String())
		if err != nil {
			t.Errorf("ParseArg(%q): %v", v.String(), err)
			continue
		}
		if got != v {
			t.Errorf("round trip %s -> %s", v, got)
		}
	}
}

// TestParseArgs 测试批量解析
func TestParseArgs(t *testing.T) {
	args, err := ParseArgs([]string{"i32:1", "u8:2"})
	if err != nil || len(args) != 2 || args[1] != U8(2) {
		t.Errorf("ParseArgs = %v, %v", args, err)
	}
	if _, err := ParseArgs([]string{"i32:1", "bad"}); err == nil {
		t.Error("ParseArgs should stop at the first bad literal")
	}
}

// TestParseType 测试返回类型与格式化
func TestParseType(t *testing.T) {
	tests := []struct {
		in     string
		typ    types.Type
		void   bool
		raw    uint64
		format string
	}{
		{"void", types.Invalid, true, 123, "void"},
		{"", types.Invalid, true, 0, "void"},
		{"i32", types.I32, false, 0xFFFFFFFB, "-5"},
		{"u32", types.I32, false, 0xFFFFFFFB, "4294967291"},
		{"i8", types.I8, false, 0x80, "-128"},
		{"u16", types.I16, false, 0xFFFF, "65535"},
		{"i64", types.I64, false, ^uint64(0), "-1"},
		{"bool", types.B8, false, 1, "true"},
		{"ptr", types.Ptr, false, 0x1000, "0x1000"},
	}
	for _, tt := range tests {
		rt, err := ParseType(tt.in)
		if err != nil {
			t.Errorf("ParseType(%q): %v", tt.in, err)
			continue
		}
		if rt.IsVoid() != tt.void {
			t.Errorf("ParseType(%q).IsVoid() = %t", tt.in, rt.IsVoid())
		}
		if !tt.void && *rt.Type != tt.typ {
			t.Errorf("ParseType(%q) type = %s, want %s", tt.in, *rt.Type, tt.typ)
		}
		if got := rt.Format(tt.raw); got != tt.format {
			t.Errorf("ParseType(%q).Format(%#x) = %q, want %q", tt.in, tt.raw, got, tt.format)
		}
	}

	for _, bad := range []string{"int", "f32", "i128", "pointer"} {
		if _, err := ParseType(bad); err == nil {
			t.Errorf("ParseType(%q) should fail", bad)
		}
	}
}
