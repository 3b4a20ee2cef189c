//go:build !windows

// memory_unix.go - Unix/Linux/macOS 平台可执行内存
//
// 使用 mmap/mprotect/munmap

package jit

import (
	"golang.org/x/sys/unix"
)

func pageSize() int {
	return unix.Getpagesize()
}

// mapPages 映射匿名私有页
// exec 为 true 时直接映射 RWX
func mapPages(size int, exec bool) ([]byte, error) {
	prot := unix.PROT_READ | unix.PROT_WRITE
	if exec {
		prot |= unix.PROT_EXEC
	}
	return unix.Mmap(-1, 0, size, prot, unix.MAP_PRIVATE|unix.MAP_ANON)
}

// protectExec 将页切换为 RX
func protectExec(mem []byte) error {
	return unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC)
}

func unmapPages(mem []byte) error {
	return unix.Munmap(mem)
}
