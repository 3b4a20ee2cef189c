package ffi

import (
	"github.com/tangzhangming/dyncall/internal/jit/types"
)

// BuildSignature 由参数序列和返回类型推导目标函数签名
//
// 参数顺序与 args 一致，指针按宿主宽度解析；
// ret 为 nil 时没有返回槽；调用约定取宿主默认值。
func BuildSignature(args []ArgValue, ret *types.Type) types.Signature {
	sig := types.NewSignature(types.DefaultCallConv())
	for _, a := range args {
		sig.Params = append(sig.Params, a.AbiParam())
	}
	if ret != nil {
		sig.Returns = append(sig.Returns, types.NewAbiParam(ret.Resolve()))
	}
	return sig
}

// retBits 返回槽位宽，0 表示 void
func retBits(ret *types.Type) int {
	if ret == nil {
		return 0
	}
	return ret.Resolve().Bits()
}
