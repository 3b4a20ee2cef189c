package jit

import (
	"fmt"
	"strings"

	"github.com/tangzhangming/dyncall/internal/jit/types"
)

// ============================================================================
// IR 实体
// ============================================================================

// Value SSA 值编号
type Value int

// Block 基本块编号
type Block int

// Inst 指令编号
type Inst int

// FuncRef 函数内对外部函数的引用编号
type FuncRef int

// ValueInvalid 构建失败时返回的无效值
const ValueInvalid Value = -1

// InstInvalid 构建失败时返回的无效指令
const InstInvalid Inst = -1

func (v Value) String() string { return fmt.Sprintf("v%d", int(v)) }
func (b Block) String() string { return fmt.Sprintf("block%d", int(b)) }
func (f FuncRef) String() string { return fmt.Sprintf("fn%d", int(f)) }

// Opcode IR 操作码
type Opcode int

const (
	OpInvalid Opcode = iota
	OpIconst         // 整数常量
	OpBconst         // 布尔常量
	OpCall           // 直接调用
	OpReturn         // 返回
)

// String 返回操作码名称
func (op Opcode) String() string {
	switch op {
	case OpIconst:
		return "iconst"
	case OpBconst:
		return "bconst"
	case OpCall:
		return "call"
	case OpReturn:
		return "return"
	default:
		return "invalid"
	}
}

// IsTerminator 是否为基本块终结指令
func (op Opcode) IsTerminator() bool {
	return op == OpReturn
}

// InstData 指令数据
type InstData struct {
	Op      Opcode
	Type    types.Type // 常量类型
	Imm     int64      // 常量值（按类型位宽截断后零扩展存放）
	Func    FuncRef    // 调用目标
	Args    []Value
	Results []Value
}

// ValueData 值的定义信息
type ValueData struct {
	Type types.Type
	Inst Inst // 定义该值的指令
	Num  int  // 第几个结果
}

// BlockData 基本块数据
type BlockData struct {
	Insts  []Inst
	Sealed bool
}

// ExtFuncData 函数内引用的外部函数
type ExtFuncData struct {
	Name      string
	ID        FuncID
	Signature types.Signature
}

// ============================================================================
// IR 函数
// ============================================================================

// Function IR 函数
type Function struct {
	Name      string
	Signature types.Signature
	Blocks    []BlockData
	Insts     []InstData
	Values    []ValueData
	ExtFuncs  []ExtFuncData
}

// NewFunction 创建 IR 函数
func NewFunction(name string, sig types.Signature) *Function {
	return &Function{
		Name:      name,
		Signature: sig.Clone(),
	}
}

// Inst 返回指令数据
func (f *Function) Inst(i Inst) *InstData {
	return &f.Insts[i]
}

// ValueType 返回值类型
func (f *Function) ValueType(v Value) types.Type {
	if v < 0 || int(v) >= len(f.Values) {
		return types.Invalid
	}
	return f.Values[v].Type
}

// ImportFunction 在函数内登记一个外部函数引用
func (f *Function) ImportFunction(data ExtFuncData) FuncRef {
	f.ExtFuncs = append(f.ExtFuncs, data)
	return FuncRef(len(f.ExtFuncs) - 1)
}

// CountOp 统计指定操作码的指令数量
func (f *Function) CountOp(op Opcode) int {
	n := 0
	for i := range f.Insts {
		if f.Insts[i].Op == op {
			n++
		}
	}
	return n
}

func (f *Function) newValue(t types.Type, inst Inst, num int) Value {
	f.Values = append(f.Values, ValueData{Type: t, Inst: inst, Num: num})
	return Value(len(f.Values) - 1)
}

// ============================================================================
// IR 文本表示
// ============================================================================

// String 返回函数的文本表示
func (f *Function) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "function %%%s%s {\n", f.Name, f.Signature)
	for i, ef := range f.ExtFuncs {
		fmt.Fprintf(&sb, "    fn%d = %%%s%s\n", i, ef.Name, ef.Signature)
	}
	for bi, blk := range f.Blocks {
		fmt.Fprintf(&sb, "\n%s:\n", Block(bi))
		for _, inst := range blk.Insts {
			sb.WriteString("    ")
			sb.WriteString(f.formatInst(inst))
			sb.WriteString("\n")
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (f *Function) formatInst(i Inst) string {
	d := &f.Insts[i]
	var sb strings.Builder
	if len(d.Results) > 0 {
		for n, r := range d.Results {
			if n > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(r.String())
		}
		sb.WriteString(" = ")
	}
	switch d.Op {
	case OpIconst:
		fmt.Fprintf(&sb, "iconst.%s %d", d.Type, d.Imm)
	case OpBconst:
		fmt.Fprintf(&sb, "bconst.%s %t", d.Type, d.Imm != 0)
	case OpCall:
		fmt.Fprintf(&sb, "call %s(%s)", d.Func, joinValues(d.Args))
	case OpReturn:
		sb.WriteString("return")
		if len(d.Args) > 0 {
			sb.WriteString(" ")
			sb.WriteString(joinValues(d.Args))
		}
	default:
		sb.WriteString(d.Op.String())
	}
	return sb.String()
}

func joinValues(vals []Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
