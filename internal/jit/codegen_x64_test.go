package jit

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tangzhangming/dyncall/internal/jit/types"
)

// TestExtendImm 测试常量扩展
func TestExtendImm(t *testing.T) {
	tests := []struct {
		imm  int64
		typ  types.Type
		ext  types.Extension
		want int64
	}{
		{0xFB, types.I8, types.ExtSext, -5},
		{0xFB, types.I8, types.ExtUext, 0xFB},
		{0xFFFF, types.I16, types.ExtSext, -1},
		{0xFFFFFFFB, types.I32, types.ExtSext, -5},
		{0xFFFFFFFB, types.I32, types.ExtUext, 0xFFFFFFFB},
		{0xFFFFFFFB, types.I32, types.ExtNone, 0xFFFFFFFB},
		{-1, types.I64, types.ExtSext, -1},
		{1, types.B8, types.ExtUext, 1},
	}
	for _, tt := range tests {
		if got := ExtendImm(tt.imm, tt.typ, tt.ext); got != tt.want {
			t.Errorf("ExtendImm(%#x, %s, %s) = %d, want %d", tt.imm, tt.typ, tt.ext, got, tt.want)
		}
	}
}

// TestLayoutCall 测试参数布局与对齐
func TestLayoutCall(t *testing.T) {
	tests := []struct {
		name string
		conv CallingConv
		n    int
		want CallLayout
	}{
		{"sysv none", SystemVConv, 0, CallLayout{}},
		{"sysv regs only", SystemVConv, 6, CallLayout{RegArgs: 6}},
		{"sysv one stack", SystemVConv, 7, CallLayout{RegArgs: 6, StackArgs: 1, Padding: 8, Cleanup: 16}},
		{"sysv two stack", SystemVConv, 8, CallLayout{RegArgs: 6, StackArgs: 2, Cleanup: 16}},
		{"win64 none", WindowsX64Conv, 0, CallLayout{Cleanup: 32}},
		{"win64 one stack", WindowsX64Conv, 5, CallLayout{RegArgs: 4, StackArgs: 1, Padding: 8, Cleanup: 48}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.conv.LayoutCall(tt.n); got != tt.want {
				t.Errorf("LayoutCall(%d) = %+v, want %+v", tt.n, got, tt.want)
			}
		})
	}
}

// TestLowerThunk 测试跳板翻译结果
func TestLowerThunk(t *testing.T) {
	fn := buildThunk(t, -5)
	code, relocs, err := LowerX64(fn)
	if err != nil {
		t.Fatalf("LowerX64: %v", err)
	}
	if len(relocs) != 1 || relocs[0].Target != 0 {
		t.Fatalf("relocs = %+v, want one reloc to func 0", relocs)
	}

	want := []byte{
		0x55,             // push rbp
		0x48, 0x89, 0xE5, // mov rbp, rsp
		0x48, 0x83, 0xEC, 0x10, // sub rsp, 16
		0x48, 0xC7, 0xC7, 0xFB, 0xFF, 0xFF, 0xFF, // mov rdi, -5
		0x49, 0xBB, 0, 0, 0, 0, 0, 0, 0, 0, // mov r11, extern
		0x41, 0xFF, 0xD3, // call r11
		0x48, 0x89, 0x45, 0xF8, // mov [rbp-8], rax
		0x48, 0x8B, 0x45, 0xF8, // mov rax, [rbp-8]
		0x48, 0x63, 0xC0, // movsxd rax, eax
		0x48, 0x89, 0xEC, // mov rsp, rbp
		0x5D, // pop rbp
		0xC3, // ret
	}
	if !bytes.Equal(code, want) {
		t.Errorf("code:\n got % X\nwant % X", code, want)
	}
	if relocs[0].Offset != 17 {
		t.Errorf("reloc offset = %d, want 17", relocs[0].Offset)
	}
}

// TestLowerStackArgs 测试超过寄存器个数的参数走栈
func TestLowerStackArgs(t *testing.T) {
	callee := types.NewSignature(types.SystemV)
	for i := 0; i < 7; i++ {
		callee.Params = append(callee.Params, types.NewAbiParam(types.I64))
	}
	callee.Returns = append(callee.Returns, types.NewAbiParam(types.I64))

	sig := types.NewSignature(types.SystemV)
	sig.Returns = append(sig.Returns, types.NewAbiParam(types.I64))
	fn := NewFunction("call", sig)
	ref := fn.ImportFunction(ExtFuncData{Name: "extern", Signature: callee})

	b := NewFunctionBuilder(fn)
	b.SwitchToBlock(b.CreateBlock())
	args := make([]Value, 7)
	for i := range args {
		args[i] = b.Ins().Iconst(types.I64, int64(i+1))
	}
	call := b.Ins().Call(ref, args)
	b.Ins().Return(b.InstResults(call))
	b.SealAllBlocks()
	if err := b.Finalize(); err != nil {
		t.Fatal(err)
	}

	code, _, err := LowerX64(fn)
	if err != nil {
		t.Fatalf("LowerX64: %v", err)
	}
	// 对齐填充 + 压入第七个参数
	seq := []byte{
		0x48, 0x83, 0xEC, 0x08, // sub rsp, 8
		0x48, 0xC7, 0xC0, 7, 0, 0, 0, // mov rax, 7
		0x50, // push rax
	}
	if !bytes.Contains(code, seq) {
		t.Errorf("stack argument sequence not found in % X", code)
	}
	cleanup := []byte{0x48, 0x83, 0xC4, 0x10} // add rsp, 16
	if !bytes.Contains(code, cleanup) {
		t.Errorf("stack cleanup not found in % X", code)
	}
}

// TestLowerMultiResult 测试多返回值被拒绝
func TestLowerMultiResult(t *testing.T) {
	callee := types.NewSignature(types.SystemV)
	callee.Returns = []types.AbiParam{types.NewAbiParam(types.I64), types.NewAbiParam(types.I64)}

	fn := NewFunction("call", types.NewSignature(types.SystemV))
	ref := fn.ImportFunction(ExtFuncData{Name: "extern", Signature: callee})
	b := NewFunctionBuilder(fn)
	b.SwitchToBlock(b.CreateBlock())
	b.Ins().Call(ref, nil)
	b.Ins().Return(nil)
	b.SealAllBlocks()
	_ = b.Finalize()

	if _, _, err := LowerX64(fn); !errors.Is(err, ErrUnsupportedISA) {
		t.Errorf("err = %v, want ErrUnsupportedISA", err)
	}
}
