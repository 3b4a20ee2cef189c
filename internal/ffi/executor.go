package ffi

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tangzhangming/dyncall/internal/jit"
	"github.com/tangzhangming/dyncall/internal/jit/types"
)

// execute 构建、链接并执行一次跳板，返回零扩展后的原始返回位
//
// 模块在返回前释放，释放失败与调用错误合并返回。
func (e *Engine) execute(addr uintptr, symbol string, args []ArgValue, ret *types.Type) (raw uint64, err error) {
	m := jit.NewModule(jit.NewBuilder().
		Symbol(externName, addr).
		WriteXorExecute(e.cfg.WriteXorExecute))

	defer func() {
		if ferr := m.Free(); ferr != nil {
			e.log.Warn("release trampoline failed", zap.String("symbol", symbol), zap.Error(ferr))
			err = multierr.Append(err, ferr)
		} else {
			e.log.Debug("trampoline released", zap.String("symbol", symbol))
		}
		if err != nil {
			e.stats.failures.Inc()
		}
	}()

	id, fn, err := buildTrampoline(m, args, ret)
	if err != nil {
		return 0, err
	}
	if err := m.FinalizeDefinitions(); err != nil {
		return 0, codegenErr("finalize", err)
	}
	entry, err := m.GetFinalizedFunction(id)
	if err != nil {
		return 0, codegenErr("finalize", err)
	}

	size := len(m.FunctionCode(id))
	e.stats.codeBytes.Add(int64(size))
	if ce := e.log.Check(zap.DebugLevel, "trampoline built"); ce != nil {
		fields := []zap.Field{
			zap.String("symbol", symbol),
			zap.String("target", fmt.Sprintf("%#x", addr)),
			zap.Stringer("signature", signatureOf(fn)),
			zap.Int("code_size", size),
		}
		if e.cfg.Debug {
			fields = append(fields,
				zap.String("ir", fn.String()),
				zap.String("code", fmt.Sprintf("% x", m.FunctionCode(id))))
		}
		ce.Write(fields...)
	}

	e.stats.calls.Inc()
	return invoke(entry, retBits(ret))
}

// signatureOf 跳板调用的目标函数签名
func signatureOf(fn *jit.Function) types.Signature {
	if len(fn.ExtFuncs) == 0 {
		return fn.Signature
	}
	return fn.ExtFuncs[0].Signature
}

// maskBits 把返回寄存器截断到返回槽位宽
func maskBits(raw uint64, bits int) uint64 {
	if bits <= 0 {
		return 0
	}
	if bits >= 64 {
		return raw
	}
	return raw & (uint64(1)<<uint(bits) - 1)
}
