//go:build windows

// memory_windows.go - Windows 平台可执行内存
//
// 使用 VirtualAlloc/VirtualProtect/VirtualFree

package jit

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func pageSize() int {
	return 4096
}

func mapPages(size int, exec bool) ([]byte, error) {
	protect := uint32(windows.PAGE_READWRITE)
	if exec {
		protect = windows.PAGE_EXECUTE_READWRITE
	}
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, protect)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func protectExec(mem []byte) error {
	var old uint32
	addr := uintptr(unsafe.Pointer(&mem[0]))
	return windows.VirtualProtect(addr, uintptr(len(mem)), windows.PAGE_EXECUTE_READ, &old)
}

func unmapPages(mem []byte) error {
	return windows.VirtualFree(uintptr(unsafe.Pointer(&mem[0])), 0, windows.MEM_RELEASE)
}
