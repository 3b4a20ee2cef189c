//go:build cgo && !windows

package ffi

/*
#include <stdint.h>

// 按返回位宽调用无参跳板
static void dc_call_void(uintptr_t fn) { ((void (*)(void))fn)(); }
static uint8_t dc_call_u8(uintptr_t fn) { return ((uint8_t (*)(void))fn)(); }
static uint16_t dc_call_u16(uintptr_t fn) { return ((uint16_t (*)(void))fn)(); }
static uint32_t dc_call_u32(uintptr_t fn) { return ((uint32_t (*)(void))fn)(); }
static uint64_t dc_call_u64(uintptr_t fn) { return ((uint64_t (*)(void))fn)(); }
*/
import "C"

import (
	"fmt"
)

// invoke 在系统栈上调用跳板入口
func invoke(entry uintptr, bits int) (uint64, error) {
	fn := C.uintptr_t(entry)
	switch bits {
	case 0:
		C.dc_call_void(fn)
		return 0, nil
	case 8:
		return uint64(C.dc_call_u8(fn)), nil
	case 16:
		return uint64(C.dc_call_u16(fn)), nil
	case 32:
		return uint64(C.dc_call_u32(fn)), nil
	case 64:
		return uint64(C.dc_call_u64(fn)), nil
	}
	return 0, fmt.Errorf("%w: %d-bit return", ErrUnsupportedValue, bits)
}
