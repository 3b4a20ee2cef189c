//go:build windows

package ffi

import (
	"fmt"
	"syscall"
)

// invoke 通过 SyscallN 调用跳板入口，返回值截断到返回槽位宽
func invoke(entry uintptr, bits int) (uint64, error) {
	switch bits {
	case 0, 8, 16, 32, 64:
	default:
		return 0, fmt.Errorf("%w: %d-bit return", ErrUnsupportedValue, bits)
	}
	r1, _, _ := syscall.SyscallN(entry)
	return maskBits(uint64(r1), bits), nil
}
