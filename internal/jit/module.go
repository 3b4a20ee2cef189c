// module.go - 函数声明、链接与最终化
//
// 一个 Module 对应一块独占的可执行内存：
//  1. DeclareFunction 登记导入或本地函数
//  2. DefineFunction 校验并翻译本地函数
//  3. FinalizeDefinitions 分配内存、回填重定位、切换为可执行
//  4. GetFinalizedFunction 取得入口地址
//  5. Free 释放内存
//
// 导入函数的地址来自 Builder 的符号表。

package jit

import (
	"encoding/binary"
	"fmt"
	"runtime"

	"go.uber.org/multierr"

	"github.com/tangzhangming/dyncall/internal/jit/types"
)

// Linkage 函数链接属性
type Linkage int

const (
	LinkageImport Linkage = iota // 外部函数，地址由符号表提供
	LinkageLocal                 // 模块内定义，不导出
	LinkageExport                // 模块内定义，可被其他模块引用
)

func (l Linkage) String() string {
	switch l {
	case LinkageImport:
		return "import"
	case LinkageLocal:
		return "local"
	case LinkageExport:
		return "export"
	default:
		return "unknown"
	}
}

// isDefinable 是否可在模块内定义
func (l Linkage) isDefinable() bool {
	return l == LinkageLocal || l == LinkageExport
}

// FuncID 模块内函数编号
type FuncID int

// ============================================================================
// Builder
// ============================================================================

// Builder 模块配置
type Builder struct {
	symbols map[string]uintptr
	arch    string
	wx      bool
}

// NewBuilder 创建默认配置：宿主架构、启用 W^X
func NewBuilder() *Builder {
	return &Builder{
		symbols: make(map[string]uintptr),
		arch:    runtime.GOARCH,
		wx:      true,
	}
}

// Symbol 绑定导入符号名到进程内地址
func (b *Builder) Symbol(name string, addr uintptr) *Builder {
	b.symbols[name] = addr
	return b
}

// WriteXorExecute 设置是否采用 W^X 策略
func (b *Builder) WriteXorExecute(on bool) *Builder {
	b.wx = on
	return b
}

// Arch 覆盖目标架构（只影响 DefineFunction 的架构检查）
func (b *Builder) Arch(arch string) *Builder {
	b.arch = arch
	return b
}

// ============================================================================
// Module
// ============================================================================

type funcDecl struct {
	name    string
	linkage Linkage
	sig     types.Signature
	defined bool
	code    []byte
	relocs  []Reloc
	offset  int
}

// Module JIT 模块
type Module struct {
	builder   *Builder
	decls     []funcDecl
	names     map[string]FuncID
	region    *CodeRegion
	finalized bool
}

// NewModule 创建模块
func NewModule(b *Builder) *Module {
	if b == nil {
		b = NewBuilder()
	}
	return &Module{
		builder: b,
		names:   make(map[string]FuncID),
	}
}

// MakeSignature 返回使用宿主默认调用约定的空签名
func (m *Module) MakeSignature() types.Signature {
	return types.NewSignature(types.DefaultCallConv())
}

// DeclareFunction 声明函数
// 同名函数再次声明时，签名与链接属性必须兼容
func (m *Module) DeclareFunction(name string, linkage Linkage, sig types.Signature) (FuncID, error) {
	if id, ok := m.names[name]; ok {
		d := &m.decls[id]
		if !d.sig.Equal(sig) {
			return 0, fmt.Errorf("%w: %q declared as %s, redeclared as %s", ErrDuplicateDecl, name, d.sig, sig)
		}
		if d.linkage != linkage {
			return 0, fmt.Errorf("%w: %q declared %s, redeclared %s", ErrDuplicateDecl, name, d.linkage, linkage)
		}
		return id, nil
	}
	if m.finalized {
		return 0, ErrFinalized
	}
	m.decls = append(m.decls, funcDecl{name: name, linkage: linkage, sig: sig.Clone()})
	id := FuncID(len(m.decls) - 1)
	m.names[name] = id
	return id, nil
}

// DeclareFuncInFunc 让函数 fn 可以调用模块函数 id
func (m *Module) DeclareFuncInFunc(id FuncID, fn *Function) (FuncRef, error) {
	if id < 0 || int(id) >= len(m.decls) {
		return 0, fmt.Errorf("%w: id %d", ErrUnknownFunction, int(id))
	}
	d := &m.decls[id]
	return fn.ImportFunction(ExtFuncData{Name: d.name, ID: id, Signature: d.sig.Clone()}), nil
}

// DefineFunction 校验并编译函数体
func (m *Module) DefineFunction(id FuncID, fn *Function) error {
	if m.finalized {
		return ErrFinalized
	}
	if id < 0 || int(id) >= len(m.decls) {
		return fmt.Errorf("%w: id %d", ErrUnknownFunction, int(id))
	}
	d := &m.decls[id]
	if !d.linkage.isDefinable() {
		return fmt.Errorf("%w: %q has %s linkage", ErrVerify, d.name, d.linkage)
	}
	if d.defined {
		return fmt.Errorf("%w: %q", ErrAlreadyDefined, d.name)
	}
	if !d.sig.Equal(fn.Signature) {
		return fmt.Errorf("%w: %q declared as %s, defined as %s", ErrVerify, d.name, d.sig, fn.Signature)
	}
	if err := Verify(fn); err != nil {
		return err
	}
	if m.builder.arch != "amd64" {
		return fmt.Errorf("%w: %s", ErrUnsupportedISA, m.builder.arch)
	}

	code, relocs, err := LowerX64(fn)
	if err != nil {
		return err
	}
	d.code = code
	d.relocs = relocs
	d.defined = true
	return nil
}

// FinalizeDefinitions 链接并装载所有已定义函数
func (m *Module) FinalizeDefinitions() error {
	if m.finalized {
		return nil
	}
	if m.region != nil {
		return ErrFreed
	}

	// 布局
	total := 0
	for i := range m.decls {
		d := &m.decls[i]
		if !d.defined {
			continue
		}
		total = (total + codeAlign - 1) &^ (codeAlign - 1)
		d.offset = total
		total += len(d.code)
	}

	region, err := AllocCode(total, m.builder.wx)
	if err != nil {
		return err
	}

	// 回填重定位后写入
	for i := range m.decls {
		d := &m.decls[i]
		if !d.defined {
			continue
		}
		code := append([]byte(nil), d.code...)
		for _, r := range d.relocs {
			addr, err := m.resolve(r.Target, region.Base())
			if err != nil {
				return joinFree(err, region)
			}
			binary.LittleEndian.PutUint64(code[r.Offset:], uint64(addr))
		}
		entry, err := region.Write(code)
		if err != nil {
			return joinFree(err, region)
		}
		if entry != region.Base()+uintptr(d.offset) {
			return joinFree(fmt.Errorf("jit: layout mismatch for %q", d.name), region)
		}
	}

	if err := region.MakeExecutable(); err != nil {
		return joinFree(err, region)
	}
	m.region = region
	m.finalized = true
	return nil
}

// resolve 计算函数的绝对地址
func (m *Module) resolve(id FuncID, base uintptr) (uintptr, error) {
	if id < 0 || int(id) >= len(m.decls) {
		return 0, fmt.Errorf("%w: id %d", ErrUnknownFunction, int(id))
	}
	d := &m.decls[id]
	if d.linkage == LinkageImport {
		addr, ok := m.builder.symbols[d.name]
		if !ok || addr == 0 {
			return 0, fmt.Errorf("%w: %q", ErrUndefinedSymbol, d.name)
		}
		return addr, nil
	}
	if !d.defined {
		return 0, fmt.Errorf("%w: %q declared but not defined", ErrUndefinedSymbol, d.name)
	}
	return base + uintptr(d.offset), nil
}

// GetFinalizedFunction 返回已最终化函数的入口地址
func (m *Module) GetFinalizedFunction(id FuncID) (uintptr, error) {
	if !m.finalized {
		return 0, ErrNotFinalized
	}
	if m.region == nil || m.region.Size() == 0 {
		return 0, ErrFreed
	}
	if id < 0 || int(id) >= len(m.decls) {
		return 0, fmt.Errorf("%w: id %d", ErrUnknownFunction, int(id))
	}
	d := &m.decls[id]
	if !d.defined {
		return 0, fmt.Errorf("%w: %q is not defined in this module", ErrUnknownFunction, d.name)
	}
	return m.region.Base() + uintptr(d.offset), nil
}

// FunctionCode 返回函数未回填重定位的机器码（调试用）
func (m *Module) FunctionCode(id FuncID) []byte {
	if id < 0 || int(id) >= len(m.decls) {
		return nil
	}
	return m.decls[id].code
}

// CodeSize 已定义函数的机器码总字节数
func (m *Module) CodeSize() int {
	n := 0
	for i := range m.decls {
		n += len(m.decls[i].code)
	}
	return n
}

// Free 释放模块的可执行内存，重复调用是安全的
func (m *Module) Free() error {
	if m.region == nil {
		return nil
	}
	return m.region.Free()
}

func joinFree(err error, region *CodeRegion) error {
	return multierr.Append(err, region.Free())
}
