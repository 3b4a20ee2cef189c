// x64_asm.go - x86-64 汇编器
//
// 只实现跳板和测试需要的指令子集。
//
// x86-64 指令编码格式：
// [前缀] [REX] [操作码] [ModR/M] [SIB] [位移] [立即数]
//
// REX 前缀：
// - REX.W: 64 位操作数
// - REX.R: 扩展 ModR/M.reg 字段
// - REX.X: 扩展 SIB.index 字段
// - REX.B: 扩展 ModR/M.r/m 或 SIB.base 字段

package jit

import (
	"encoding/binary"
)

// ============================================================================
// x86-64 寄存器定义
// ============================================================================

// X64Reg x86-64 寄存器
type X64Reg int

const (
	RAX X64Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	RegNone X64Reg = -1
)

// String 返回寄存器名称
func (r X64Reg) String() string {
	names := []string{
		"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
	}
	if r >= 0 && int(r) < len(names) {
		return names[r]
	}
	return "???"
}

// IsExtended 检查是否是扩展寄存器（需要 REX 前缀）
func (r X64Reg) IsExtended() bool {
	return r >= R8 && r <= R15
}

// LowBits 获取寄存器编码的低 3 位
func (r X64Reg) LowBits() byte {
	return byte(r) & 0x7
}

// ============================================================================
// x86-64 汇编器
// ============================================================================

// X64Assembler x86-64 汇编器
type X64Assembler struct {
	code   []byte
	labels map[int]int // 标签 ID -> 代码偏移
	relocs []x64Reloc  // 标签跳转待回填
}

type x64Reloc struct {
	offset int // rel32 字段在代码中的偏移
	target int // 目标标签 ID
}

// NewX64Assembler 创建汇编器
func NewX64Assembler() *X64Assembler {
	return &X64Assembler{
		code:   make([]byte, 0, 128),
		labels: make(map[int]int),
	}
}

// Code 回填跳转并返回机器码
func (a *X64Assembler) Code() []byte {
	a.resolveRelocations()
	return a.code
}

// Len 当前代码长度
func (a *X64Assembler) Len() int {
	return len(a.code)
}

func (a *X64Assembler) emit(bytes ...byte) {
	a.code = append(a.code, bytes...)
}

func (a *X64Assembler) emitU32(v uint32) {
	a.code = binary.LittleEndian.AppendUint32(a.code, v)
}

func (a *X64Assembler) emitU64(v uint64) {
	a.code = binary.LittleEndian.AppendUint64(a.code, v)
}

// rex 构造 REX 前缀
func rex(w, r, x, b bool) byte {
	var v byte = 0x40
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

// modrm 构造 ModR/M 字节
func modrm(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 0x7) << 3) | (rm & 0x7)
}

// Label 在当前位置定义标签
func (a *X64Assembler) Label(id int) {
	a.labels[id] = len(a.code)
}

// ============================================================================
// 数据移动
// ============================================================================

// MovRegReg mov dst, src
func (a *X64Assembler) MovRegReg(dst, src X64Reg) {
	a.emit(rex(true, src.IsExtended(), false, dst.IsExtended()))
	a.emit(0x89)
	a.emit(modrm(3, src.LowBits(), dst.LowBits()))
}

// MovRegImm64 mov reg, imm64
// 返回立即数字段的偏移，供链接时回填绝对地址
func (a *X64Assembler) MovRegImm64(reg X64Reg, imm uint64) int {
	a.emit(rex(true, false, false, reg.IsExtended()))
	a.emit(0xB8 + reg.LowBits())
	off := len(a.code)
	a.emitU64(imm)
	return off
}

// MovRegImm32 mov reg, imm32（符号扩展到 64 位）
func (a *X64Assembler) MovRegImm32(reg X64Reg, imm int32) {
	a.emit(rex(true, false, false, reg.IsExtended()))
	a.emit(0xC7)
	a.emit(modrm(3, 0, reg.LowBits()))
	a.emitU32(uint32(imm))
}

// MovRegImm 选择最短编码加载 64 位立即数
func (a *X64Assembler) MovRegImm(reg X64Reg, imm int64) {
	if imm >= -1<<31 && imm < 1<<31 {
		a.MovRegImm32(reg, int32(imm))
		return
	}
	a.MovRegImm64(reg, uint64(imm))
}

// MovRegMem mov reg, [base+offset]
func (a *X64Assembler) MovRegMem(dst X64Reg, base X64Reg, offset int32) {
	a.emit(rex(true, dst.IsExtended(), false, base.IsExtended()))
	a.emit(0x8B)
	a.emitMemOperand(dst.LowBits(), base, offset)
}

// MovMemReg mov [base+offset], reg
func (a *X64Assembler) MovMemReg(base X64Reg, offset int32, src X64Reg) {
	a.emit(rex(true, src.IsExtended(), false, base.IsExtended()))
	a.emit(0x89)
	a.emitMemOperand(src.LowBits(), base, offset)
}

// emitMemOperand 生成 [base+disp] 内存操作数
func (a *X64Assembler) emitMemOperand(reg byte, base X64Reg, offset int32) {
	baseCode := base.LowBits()

	// RSP/R12 作为基址需要 SIB 字节
	needSIB := base == RSP || base == R12

	var mod byte
	switch {
	case offset == 0 && base != RBP && base != R13:
		mod = 0
	case offset >= -128 && offset <= 127:
		mod = 1
	default:
		mod = 2
	}

	if needSIB {
		a.emit(modrm(mod, reg, 4))
		a.emit(0x24)
	} else {
		a.emit(modrm(mod, reg, baseCode))
	}

	switch mod {
	case 1:
		a.emit(byte(offset))
	case 2:
		a.emitU32(uint32(offset))
	}
}

// ============================================================================
// 扩展
// ============================================================================

// MovsxReg8 movsx dst, src8
func (a *X64Assembler) MovsxReg8(dst, src X64Reg) {
	a.emit(rex(true, dst.IsExtended(), false, src.IsExtended()))
	a.emit(0x0F, 0xBE)
	a.emit(modrm(3, dst.LowBits(), src.LowBits()))
}

// MovsxReg16 movsx dst, src16
func (a *X64Assembler) MovsxReg16(dst, src X64Reg) {
	a.emit(rex(true, dst.IsExtended(), false, src.IsExtended()))
	a.emit(0x0F, 0xBF)
	a.emit(modrm(3, dst.LowBits(), src.LowBits()))
}

// Movsxd movsxd dst, src32
func (a *X64Assembler) Movsxd(dst, src X64Reg) {
	a.emit(rex(true, dst.IsExtended(), false, src.IsExtended()))
	a.emit(0x63)
	a.emit(modrm(3, dst.LowBits(), src.LowBits()))
}

// MovzxReg8 movzx dst, src8
func (a *X64Assembler) MovzxReg8(dst, src X64Reg) {
	a.emit(rex(true, dst.IsExtended(), false, src.IsExtended()))
	a.emit(0x0F, 0xB6)
	a.emit(modrm(3, dst.LowBits(), src.LowBits()))
}

// MovzxReg16 movzx dst, src16
func (a *X64Assembler) MovzxReg16(dst, src X64Reg) {
	a.emit(rex(true, dst.IsExtended(), false, src.IsExtended()))
	a.emit(0x0F, 0xB7)
	a.emit(modrm(3, dst.LowBits(), src.LowBits()))
}

// MovReg32 mov dst32, src32（高 32 位清零）
func (a *X64Assembler) MovReg32(dst, src X64Reg) {
	if src.IsExtended() || dst.IsExtended() {
		a.emit(rex(false, src.IsExtended(), false, dst.IsExtended()))
	}
	a.emit(0x89)
	a.emit(modrm(3, src.LowBits(), dst.LowBits()))
}

// ============================================================================
// 算术
// ============================================================================

// AddRegImm32 add reg, imm32
func (a *X64Assembler) AddRegImm32(reg X64Reg, imm int32) {
	a.emit(rex(true, false, false, reg.IsExtended()))
	if imm >= -128 && imm <= 127 {
		a.emit(0x83)
		a.emit(modrm(3, 0, reg.LowBits()))
		a.emit(byte(imm))
	} else {
		a.emit(0x81)
		a.emit(modrm(3, 0, reg.LowBits()))
		a.emitU32(uint32(imm))
	}
}

// SubRegReg sub dst, src
func (a *X64Assembler) SubRegReg(dst, src X64Reg) {
	a.emit(rex(true, src.IsExtended(), false, dst.IsExtended()))
	a.emit(0x29)
	a.emit(modrm(3, src.LowBits(), dst.LowBits()))
}

// SubRegImm32 sub reg, imm32
func (a *X64Assembler) SubRegImm32(reg X64Reg, imm int32) {
	a.emit(rex(true, false, false, reg.IsExtended()))
	if imm >= -128 && imm <= 127 {
		a.emit(0x83)
		a.emit(modrm(3, 5, reg.LowBits()))
		a.emit(byte(imm))
	} else {
		a.emit(0x81)
		a.emit(modrm(3, 5, reg.LowBits()))
		a.emitU32(uint32(imm))
	}
}

// Neg neg reg
func (a *X64Assembler) Neg(reg X64Reg) {
	a.emit(rex(true, false, false, reg.IsExtended()))
	a.emit(0xF7)
	a.emit(modrm(3, 3, reg.LowBits()))
}

// TestRegReg test reg1, reg2
func (a *X64Assembler) TestRegReg(reg1, reg2 X64Reg) {
	a.emit(rex(true, reg2.IsExtended(), false, reg1.IsExtended()))
	a.emit(0x85)
	a.emit(modrm(3, reg2.LowBits(), reg1.LowBits()))
}

// ============================================================================
// 栈与控制流
// ============================================================================

// Push push reg
func (a *X64Assembler) Push(reg X64Reg) {
	if reg.IsExtended() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x50 + reg.LowBits())
}

// Pop pop reg
func (a *X64Assembler) Pop(reg X64Reg) {
	if reg.IsExtended() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x58 + reg.LowBits())
}

// Jge jge label
func (a *X64Assembler) Jge(label int) {
	a.emit(0x0F, 0x8D)
	a.relocs = append(a.relocs, x64Reloc{offset: len(a.code), target: label})
	a.emitU32(0)
}

// Call call reg
func (a *X64Assembler) Call(reg X64Reg) {
	if reg.IsExtended() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0xFF)
	a.emit(modrm(3, 2, reg.LowBits()))
}

// Ret ret
func (a *X64Assembler) Ret() {
	a.emit(0xC3)
}

// resolveRelocations 回填标签跳转
func (a *X64Assembler) resolveRelocations() {
	for _, reloc := range a.relocs {
		if target, ok := a.labels[reloc.target]; ok {
			rel := int32(target - (reloc.offset + 4))
			binary.LittleEndian.PutUint32(a.code[reloc.offset:], uint32(rel))
		}
	}
}
