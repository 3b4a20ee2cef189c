package ffi

import (
	"fmt"

	"github.com/tangzhangming/dyncall/internal/jit"
	"github.com/tangzhangming/dyncall/internal/jit/types"
)

const (
	externName = "extern" // 目标函数，地址由符号表提供
	callName   = "call"   // 无参跳板
)

// buildTrampoline 在模块中声明目标函数并定义跳板
//
// 跳板没有参数：每个实参都作为常量写入函数体，
// 然后调用 extern，把它的结果原样返回。
//
//	function %call() -> i32 system_v {
//	    fn0 = %extern(i32 sext) -> i32 system_v
//	block0:
//	    v0 = iconst.i32 4294967291
//	    v1 = call fn0(v0)
//	    return v1
//	}
func buildTrampoline(m *jit.Module, args []ArgValue, ret *types.Type) (jit.FuncID, *jit.Function, error) {
	sig := BuildSignature(args, ret)
	ext, err := m.DeclareFunction(externName, jit.LinkageImport, sig)
	if err != nil {
		return 0, nil, codegenErr("declare", err)
	}

	callSig := m.MakeSignature()
	callSig.Returns = append(callSig.Returns, sig.Returns...)
	id, err := m.DeclareFunction(callName, jit.LinkageLocal, callSig)
	if err != nil {
		return 0, nil, codegenErr("declare", err)
	}

	fn := jit.NewFunction(callName, callSig)
	ref, err := m.DeclareFuncInFunc(ext, fn)
	if err != nil {
		return 0, nil, codegenErr("declare", err)
	}

	b := jit.NewFunctionBuilder(fn)
	entry := b.CreateBlock()
	b.SwitchToBlock(entry)

	vals := make([]jit.Value, len(args))
	for i, a := range args {
		if a.Kind() == KindBool {
			vals[i] = b.Ins().Bconst(types.B8, a.Bits() != 0)
		} else {
			vals[i] = b.Ins().Iconst(a.Type(), int64(a.Bits()))
		}
	}

	call := b.Ins().Call(ref, vals)
	if err := b.Err(); err != nil {
		return 0, nil, codegenErr("build", err)
	}
	results := b.InstResults(call)
	if ret != nil {
		if len(results) != 1 {
			return 0, nil, codegenErr("build", fmt.Errorf("call yields %d results, want 1", len(results)))
		}
		b.Ins().Return(results)
	} else {
		b.Ins().Return(nil)
	}

	b.SealAllBlocks()
	if err := b.Finalize(); err != nil {
		return 0, nil, codegenErr("build", err)
	}
	if err := m.DefineFunction(id, fn); err != nil {
		return 0, nil, codegenErr("define", err)
	}
	return id, fn, nil
}
