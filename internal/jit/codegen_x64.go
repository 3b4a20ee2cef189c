// codegen_x64.go - IR 到 x86-64 机器码
//
// 帧布局：
//
//	[rbp+8]   返回地址
//	[rbp]     旧 rbp
//	[rbp-8*k] 第 k 个调用结果的溢出槽
//
// 常量不占用寄存器，在使用处直接物化为立即数。
// 调用目标地址以 mov r11, imm64 的形式写入，由模块在最终化时回填。

package jit

import (
	"fmt"

	"github.com/tangzhangming/dyncall/internal/jit/types"
)

// Reloc 绝对地址重定位（8 字节立即数）
type Reloc struct {
	Offset int    // 立即数在函数代码中的偏移
	Target FuncID // 目标函数
}

// callTarget 间接调用使用的临时寄存器，两种调用约定下都不传参
const callTarget = R11

type x64Lowering struct {
	fn     *Function
	asm    *X64Assembler
	slots  map[Value]int32
	frame  int32
	relocs []Reloc
}

// LowerX64 将已校验的 IR 函数翻译为 x86-64 机器码
func LowerX64(fn *Function) ([]byte, []Reloc, error) {
	l := &x64Lowering{
		fn:    fn,
		asm:   NewX64Assembler(),
		slots: make(map[Value]int32),
	}
	if err := l.assignSlots(); err != nil {
		return nil, nil, err
	}

	l.prologue()
	for _, blk := range fn.Blocks {
		for _, inst := range blk.Insts {
			if err := l.lowerInst(&fn.Insts[inst]); err != nil {
				return nil, nil, err
			}
		}
	}
	return l.asm.Code(), l.relocs, nil
}

// assignSlots 为每个调用结果分配溢出槽
func (l *x64Lowering) assignSlots() error {
	var n int32
	for i := range l.fn.Insts {
		d := &l.fn.Insts[i]
		if d.Op != OpCall {
			continue
		}
		if len(d.Results) > 1 {
			return fmt.Errorf("%w: %%%s: call with %d results", ErrUnsupportedISA, l.fn.Name, len(d.Results))
		}
		for _, r := range d.Results {
			n++
			l.slots[r] = -8 * n
		}
	}
	l.frame = (8*n + 15) &^ 15
	return nil
}

func (l *x64Lowering) prologue() {
	l.asm.Push(RBP)
	l.asm.MovRegReg(RBP, RSP)
	if l.frame > 0 {
		l.asm.SubRegImm32(RSP, l.frame)
	}
}

func (l *x64Lowering) epilogue() {
	l.asm.MovRegReg(RSP, RBP)
	l.asm.Pop(RBP)
	l.asm.Ret()
}

func (l *x64Lowering) lowerInst(d *InstData) error {
	switch d.Op {
	case OpIconst, OpBconst:
		// 在使用处物化
		return nil
	case OpCall:
		return l.lowerCall(d)
	case OpReturn:
		if len(d.Args) > 1 {
			return fmt.Errorf("%w: %%%s: return of %d values", ErrUnsupportedISA, l.fn.Name, len(d.Args))
		}
		if len(d.Args) == 1 {
			l.loadValue(RAX, d.Args[0], l.fn.Signature.Returns[0])
		}
		l.epilogue()
		return nil
	default:
		return fmt.Errorf("%w: %%%s: cannot lower %s", ErrUnsupportedISA, l.fn.Name, d.Op)
	}
}

func (l *x64Lowering) lowerCall(d *InstData) error {
	ext := l.fn.ExtFuncs[d.Func]
	params := ext.Signature.Params
	conv := ConvFor(ext.Signature.CallConv)
	layout := conv.LayoutCall(len(d.Args))

	if layout.Padding > 0 {
		l.asm.SubRegImm32(RSP, int32(layout.Padding))
	}
	// 栈参数从右向左压入
	for i := len(d.Args) - 1; i >= layout.RegArgs; i-- {
		l.loadValue(RAX, d.Args[i], params[i])
		l.asm.Push(RAX)
	}
	if conv.ShadowSpace > 0 {
		l.asm.SubRegImm32(RSP, int32(conv.ShadowSpace))
	}
	for i := 0; i < layout.RegArgs; i++ {
		l.loadValue(conv.ArgRegs[i], d.Args[i], params[i])
	}

	off := l.asm.MovRegImm64(callTarget, 0)
	l.relocs = append(l.relocs, Reloc{Offset: off, Target: ext.ID})
	l.asm.Call(callTarget)

	if layout.Cleanup > 0 {
		l.asm.AddRegImm32(RSP, int32(layout.Cleanup))
	}
	for _, r := range d.Results {
		l.asm.MovMemReg(RBP, l.slots[r], conv.RetReg)
	}
	return nil
}

// loadValue 把值按 ABI 参数的扩展属性装入寄存器
func (l *x64Lowering) loadValue(reg X64Reg, v Value, p types.AbiParam) {
	vd := l.fn.Values[v]
	def := &l.fn.Insts[vd.Inst]
	t := vd.Type.Resolve()

	switch def.Op {
	case OpIconst, OpBconst:
		l.asm.MovRegImm(reg, ExtendImm(def.Imm, t, p.Ext))
	default:
		l.asm.MovRegMem(reg, RBP, l.slots[v])
		l.extendReg(reg, t, p.Ext)
	}
}

// extendReg 把寄存器低位的窄值扩展到 64 位
func (l *x64Lowering) extendReg(reg X64Reg, t types.Type, ext types.Extension) {
	if ext == types.ExtNone {
		return
	}
	signed := ext == types.ExtSext
	switch t.Bits() {
	case 8:
		if signed {
			l.asm.MovsxReg8(reg, reg)
		} else {
			l.asm.MovzxReg8(reg, reg)
		}
	case 16:
		if signed {
			l.asm.MovsxReg16(reg, reg)
		} else {
			l.asm.MovzxReg16(reg, reg)
		}
	case 32:
		if signed {
			l.asm.Movsxd(reg, reg)
		} else {
			l.asm.MovReg32(reg, reg)
		}
	}
}

// ExtendImm 按类型位宽和扩展属性计算常量的 64 位映像
func ExtendImm(imm int64, t types.Type, ext types.Extension) int64 {
	bits := t.Resolve().Bits()
	if bits <= 0 || bits >= 64 {
		return imm
	}
	shift := uint(64 - bits)
	if ext == types.ExtSext {
		return imm << shift >> shift
	}
	return int64(uint64(imm) << shift >> shift)
}
