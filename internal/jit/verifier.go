package jit

import (
	"fmt"

	"github.com/tangzhangming/dyncall/internal/jit/types"
)

// Verify 校验 IR 函数
//
// 检查项：
//   - 每个基本块非空、已封闭、以终结指令结尾
//   - 值先定义后使用
//   - call 的参数与被调签名一致，结果个数等于返回槽个数
//   - return 的值与函数签名的返回槽一致
func Verify(fn *Function) error {
	if len(fn.Blocks) == 0 {
		return verifyErr(fn, "function has no blocks")
	}

	defined := make([]bool, len(fn.Values))
	for bi, blk := range fn.Blocks {
		if !blk.Sealed {
			return verifyErr(fn, "%s is not sealed", Block(bi))
		}
		if len(blk.Insts) == 0 {
			return verifyErr(fn, "%s is empty", Block(bi))
		}
		for n, inst := range blk.Insts {
			d := &fn.Insts[inst]
			last := n == len(blk.Insts)-1
			if d.Op.IsTerminator() != last {
				if last {
					return verifyErr(fn, "%s does not end with a terminator", Block(bi))
				}
				return verifyErr(fn, "terminator in the middle of %s", Block(bi))
			}
			for _, a := range d.Args {
				if a < 0 || int(a) >= len(fn.Values) || !defined[a] {
					return verifyErr(fn, "%s used before definition", a)
				}
			}
			if err := verifyInst(fn, d); err != nil {
				return err
			}
			for _, r := range d.Results {
				defined[r] = true
			}
		}
	}
	return nil
}

func verifyInst(fn *Function, d *InstData) error {
	switch d.Op {
	case OpIconst:
		if !d.Type.IsInt() {
			return verifyErr(fn, "iconst of type %s", d.Type)
		}
		if len(d.Results) != 1 {
			return verifyErr(fn, "iconst must define one value")
		}
	case OpBconst:
		if !d.Type.IsBool() {
			return verifyErr(fn, "bconst of type %s", d.Type)
		}
		if len(d.Results) != 1 {
			return verifyErr(fn, "bconst must define one value")
		}
	case OpCall:
		if d.Func < 0 || int(d.Func) >= len(fn.ExtFuncs) {
			return verifyErr(fn, "call to unknown %s", d.Func)
		}
		sig := fn.ExtFuncs[d.Func].Signature
		if len(d.Args) != len(sig.Params) {
			return verifyErr(fn, "call to %s passes %d arguments, signature has %d",
				fn.ExtFuncs[d.Func].Name, len(d.Args), len(sig.Params))
		}
		for i, a := range d.Args {
			if !sameType(fn.ValueType(a), sig.Params[i].Type) {
				return verifyErr(fn, "argument %d of call to %s is %s, signature wants %s",
					i, fn.ExtFuncs[d.Func].Name, fn.ValueType(a), sig.Params[i].Type.Resolve())
			}
		}
		if len(d.Results) != len(sig.Returns) {
			return verifyErr(fn, "call to %s yields %d results, signature has %d",
				fn.ExtFuncs[d.Func].Name, len(d.Results), len(sig.Returns))
		}
	case OpReturn:
		rets := fn.Signature.Returns
		if len(d.Args) != len(rets) {
			return verifyErr(fn, "return of %d values, signature has %d", len(d.Args), len(rets))
		}
		for i, a := range d.Args {
			if !sameType(fn.ValueType(a), rets[i].Type) {
				return verifyErr(fn, "return value %d is %s, signature wants %s",
					i, fn.ValueType(a), rets[i].Type.Resolve())
			}
		}
	default:
		return verifyErr(fn, "invalid opcode %d", int(d.Op))
	}
	return nil
}

func sameType(a, b types.Type) bool {
	return a.Resolve() == b.Resolve()
}

func verifyErr(fn *Function, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %%%s: %s", ErrVerify, fn.Name, fmt.Sprintf(format, args...))
}
