package ffi

import (
	"errors"
	"strings"
	"testing"

	"github.com/tangzhangming/dyncall/internal/jit"
	"github.com/tangzhangming/dyncall/internal/jit/types"
)

func typePtr(t types.Type) *types.Type {
	return &t
}

// TestBuildSignature 测试签名推导
func TestBuildSignature(t *testing.T) {
	args := []ArgValue{I32(-5), U8(1), Addr(0x10), Bool(true), I64(2)}
	sig := BuildSignature(args, typePtr(types.I32))

	if sig.CallConv != types.DefaultCallConv() {
		t.Errorf("callconv = %s, want host default", sig.CallConv)
	}
	want := []types.AbiParam{
		types.NewAbiParam(types.I32).WithExt(types.ExtSext),
		types.NewAbiParam(types.I8).WithExt(types.ExtUext),
		types.NewAbiParam(types.PointerType()),
		types.NewAbiParam(types.B8).WithExt(types.ExtUext),
		types.NewAbiParam(types.I64),
	}
	if len(sig.Params) != len(want) {
		t.Fatalf("params = %v", sig.Params)
	}
	for i := range want {
		if sig.Params[i] != want[i] {
			t.Errorf("param %d = %s, want %s", i, sig.Params[i], want[i])
		}
	}
	if len(sig.Returns) != 1 || sig.Returns[0].Type != types.I32 {
		t.Errorf("returns = %v, want [i32]", sig.Returns)
	}

	void := BuildSignature(nil, nil)
	if len(void.Params) != 0 || len(void.Returns) != 0 {
		t.Errorf("void signature = %s", void)
	}
	if ptr := BuildSignature(nil, typePtr(types.Ptr)); ptr.Returns[0].Type != types.PointerType() {
		t.Errorf("pointer return = %s, want host width", ptr.Returns[0])
	}
}

func newTestModule() *jit.Module {
	return jit.NewModule(jit.NewBuilder().Arch("amd64").Symbol(externName, 0x1000))
}

// TestBuildTrampoline 测试跳板 IR 结构
func TestBuildTrampoline(t *testing.T) {
	m := newTestModule()
	defer m.Free()

	args := []ArgValue{I32(-5), Bool(true), U16(3)}
	id, fn, err := buildTrampoline(m, args, typePtr(types.I32))
	if err != nil {
		t.Fatalf("buildTrampoline: %v", err)
	}
	if len(fn.Signature.Params) != 0 {
		t.Errorf("trampoline takes %d params, want 0", len(fn.Signature.Params))
	}
	if got := fn.CountOp(jit.OpIconst); got != 2 {
		t.Errorf("iconst count = %d, want 2", got)
	}
	if got := fn.CountOp(jit.OpBconst); got != 1 {
		t.Errorf("bconst count = %d, want 1", got)
	}
	if got := fn.CountOp(jit.OpCall); got != 1 {
		t.Errorf("call count = %d, want 1", got)
	}

	text := fn.String()
	for _, want := range []string{
		"function %call() -> i32",
		"fn0 = %extern(i32 sext, b8 uext, i16 uext) -> i32",
		"v0 = iconst.i32 4294967291",
		"v1 = bconst.b8 true",
		"v3 = call fn0(v0, v1, v2)",
		"return v3",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("IR missing %q:\n%s", want, text)
		}
	}

	if err := m.FinalizeDefinitions(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if entry, err := m.GetFinalizedFunction(id); err != nil || entry == 0 {
		t.Errorf("entry = %#x, %v", entry, err)
	}
}

// TestBuildTrampolineVoid 测试无返回值跳板
func TestBuildTrampolineVoid(t *testing.T) {
	m := newTestModule()
	defer m.Free()

	_, fn, err := buildTrampoline(m, nil, nil)
	if err != nil {
		t.Fatalf("buildTrampoline: %v", err)
	}
	if len(fn.Signature.Returns) != 0 {
		t.Errorf("void trampoline returns %v", fn.Signature.Returns)
	}
	text := fn.String()
	if !strings.Contains(text, "call fn0()") || !strings.Contains(text, "    return\n") {
		t.Errorf("unexpected IR:\n%s", text)
	}
}

// TestBuildTrampolineErrors 测试后端拒绝时返回 CodeGenError
func TestBuildTrampolineErrors(t *testing.T) {
	t.Run("invalid value", func(t *testing.T) {
		m := newTestModule()
		defer m.Free()
		_, _, err := buildTrampoline(m, []ArgValue{{}}, nil)
		var cg *CodeGenError
		if !errors.As(err, &cg) || cg.Op != "build" {
			t.Errorf("err = %v, want build CodeGenError", err)
		}
		if !errors.Is(err, jit.ErrBuilder) {
			t.Errorf("err = %v, want to unwrap to ErrBuilder", err)
		}
	})

	t.Run("conflicting declaration", func(t *testing.T) {
		m := newTestModule()
		defer m.Free()
		if _, err := m.DeclareFunction(externName, jit.LinkageImport, BuildSignature([]ArgValue{I64(1)}, nil)); err != nil {
			t.Fatal(err)
		}
		_, _, err := buildTrampoline(m, []ArgValue{I32(1)}, nil)
		var cg *CodeGenError
		if !errors.As(err, &cg) || cg.Op != "declare" {
			t.Errorf("err = %v, want declare CodeGenError", err)
		}
		if !errors.Is(err, jit.ErrDuplicateDecl) {
			t.Errorf("err = %v, want to unwrap to ErrDuplicateDecl", err)
		}
	})

	t.Run("unsupported arch", func(t *testing.T) {
		m := jit.NewModule(jit.NewBuilder().Arch("arm64").Symbol(externName, 0x1000))
		defer m.Free()
		_, _, err := buildTrampoline(m, []ArgValue{I32(1)}, typePtr(types.I32))
		if !errors.Is(err, jit.ErrUnsupportedISA) {
			t.Errorf("err = %v, want ErrUnsupportedISA", err)
		}
	})
}

// TestMaskBits 测试返回值截断
func TestMaskBits(t *testing.T) {
	tests := []struct {
		raw  uint64
		bits int
		want uint64
	}{
		{0xFFFFFFFFFFFFFF05, 8, 0x05},
		{0xFFFFFFFFFFFF1234, 16, 0x1234},
		{0xFFFFFFFF00000007, 32, 7},
		{^uint64(0), 64, ^uint64(0)},
		{42, 0, 0},
	}
	for _, tt := range tests {
		if got := maskBits(tt.raw, tt.bits); got != tt.want {
			t.Errorf("maskBits(%#x, %d) = %#x, want %#x", tt.raw, tt.bits, got, tt.want)
		}
	}
}
