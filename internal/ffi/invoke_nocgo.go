//go:build !cgo && !windows

package ffi

import (
	"fmt"
	"runtime"
)

// invoke 没有 cgo 时无法从 Go 栈切换到 C 调用约定
func invoke(entry uintptr, bits int) (uint64, error) {
	return 0, fmt.Errorf("%w: %s/%s built without cgo", ErrUnsupportedPlatform, runtime.GOOS, runtime.GOARCH)
}
