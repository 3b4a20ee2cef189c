// builder.go - IR 函数构建器
//
// 构建器按顺序向当前基本块追加指令。
// 使用错误（无当前块、终结后追加、类型不符）会被记录下来，
// 由 Finalize 统一返回，之后的追加操作全部忽略。

package jit

import (
	"fmt"

	"github.com/tangzhangming/dyncall/internal/jit/types"
)

// FunctionBuilder IR 函数构建器
type FunctionBuilder struct {
	fn        *Function
	current   Block
	hasBlock  bool
	finalized bool
	err       error
}

// NewFunctionBuilder 创建构建器
func NewFunctionBuilder(fn *Function) *FunctionBuilder {
	return &FunctionBuilder{fn: fn}
}

// Func 返回正在构建的函数
func (b *FunctionBuilder) Func() *Function {
	return b.fn
}

// Err 返回第一个记录的错误
func (b *FunctionBuilder) Err() error {
	return b.err
}

func (b *FunctionBuilder) fail(format string, args ...interface{}) {
	if b.err == nil {
		b.err = fmt.Errorf("%w: %s", ErrBuilder, fmt.Sprintf(format, args...))
	}
}

// CreateBlock 创建新基本块
func (b *FunctionBuilder) CreateBlock() Block {
	if b.finalized {
		b.fail("create block after finalize")
		return Block(-1)
	}
	b.fn.Blocks = append(b.fn.Blocks, BlockData{})
	return Block(len(b.fn.Blocks) - 1)
}

// SwitchToBlock 切换插入点
func (b *FunctionBuilder) SwitchToBlock(blk Block) {
	if blk < 0 || int(blk) >= len(b.fn.Blocks) {
		b.fail("switch to unknown %s", blk)
		return
	}
	b.current = blk
	b.hasBlock = true
}

// SealAllBlocks 封闭所有基本块
func (b *FunctionBuilder) SealAllBlocks() {
	for i := range b.fn.Blocks {
		b.fn.Blocks[i].Sealed = true
	}
}

// Finalize 结束构建，此后不能再追加指令
func (b *FunctionBuilder) Finalize() error {
	if b.finalized {
		return b.err
	}
	b.finalized = true
	for i, blk := range b.fn.Blocks {
		if !blk.Sealed {
			b.fail("%s is not sealed", Block(i))
			break
		}
	}
	return b.err
}

// InstResults 返回指令的结果值
func (b *FunctionBuilder) InstResults(inst Inst) []Value {
	if inst < 0 || int(inst) >= len(b.fn.Insts) {
		return nil
	}
	return b.fn.Insts[inst].Results
}

// Ins 返回当前插入点的指令构建器
func (b *FunctionBuilder) Ins() InstBuilder {
	return InstBuilder{b: b}
}

// append 向当前块追加指令
func (b *FunctionBuilder) append(data InstData) Inst {
	if b.err != nil {
		return InstInvalid
	}
	if b.finalized {
		b.fail("%s appended after finalize", data.Op)
		return InstInvalid
	}
	if !b.hasBlock {
		b.fail("%s appended without a current block", data.Op)
		return InstInvalid
	}
	blk := &b.fn.Blocks[b.current]
	if blk.Sealed {
		b.fail("%s appended to sealed %s", data.Op, b.current)
		return InstInvalid
	}
	if n := len(blk.Insts); n > 0 && b.fn.Insts[blk.Insts[n-1]].Op.IsTerminator() {
		b.fail("%s appended after terminator in %s", data.Op, b.current)
		return InstInvalid
	}
	b.fn.Insts = append(b.fn.Insts, data)
	inst := Inst(len(b.fn.Insts) - 1)
	blk.Insts = append(blk.Insts, inst)
	return inst
}

// ============================================================================
// 指令构建
// ============================================================================

// InstBuilder 指令构建器
type InstBuilder struct {
	b *FunctionBuilder
}

// truncate 将立即数截断到类型位宽（零扩展存放）
func truncate(t types.Type, imm int64) int64 {
	bits := t.Bits()
	if bits <= 0 || bits >= 64 {
		return imm
	}
	return int64(uint64(imm) & (uint64(1)<<uint(bits) - 1))
}

// Iconst 整数常量
func (ib InstBuilder) Iconst(t types.Type, imm int64) Value {
	t = t.Resolve()
	if !t.IsInt() {
		ib.b.fail("iconst with non-integer type %s", t)
		return ValueInvalid
	}
	inst := ib.b.append(InstData{Op: OpIconst, Type: t, Imm: truncate(t, imm)})
	if inst == InstInvalid {
		return ValueInvalid
	}
	v := ib.b.fn.newValue(t, inst, 0)
	ib.b.fn.Insts[inst].Results = []Value{v}
	return v
}

// Bconst 布尔常量
func (ib InstBuilder) Bconst(t types.Type, val bool) Value {
	if !t.IsBool() {
		ib.b.fail("bconst with non-boolean type %s", t)
		return ValueInvalid
	}
	var imm int64
	if val {
		imm = 1
	}
	inst := ib.b.append(InstData{Op: OpBconst, Type: t, Imm: imm})
	if inst == InstInvalid {
		return ValueInvalid
	}
	v := ib.b.fn.newValue(t, inst, 0)
	ib.b.fn.Insts[inst].Results = []Value{v}
	return v
}

// Call 调用函数内引用的外部函数
// 结果个数等于被调函数签名的返回槽个数
func (ib InstBuilder) Call(ref FuncRef, args []Value) Inst {
	fn := ib.b.fn
	if ref < 0 || int(ref) >= len(fn.ExtFuncs) {
		ib.b.fail("call to unknown %s", ref)
		return InstInvalid
	}
	inst := ib.b.append(InstData{Op: OpCall, Func: ref, Args: append([]Value(nil), args...)})
	if inst == InstInvalid {
		return InstInvalid
	}
	sig := fn.ExtFuncs[ref].Signature
	results := make([]Value, 0, len(sig.Returns))
	for i, r := range sig.Returns {
		results = append(results, fn.newValue(r.Type.Resolve(), inst, i))
	}
	fn.Insts[inst].Results = results
	return inst
}

// Return 返回指令
func (ib InstBuilder) Return(vals []Value) Inst {
	return ib.b.append(InstData{Op: OpReturn, Args: append([]Value(nil), vals...)})
}
