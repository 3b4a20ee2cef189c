//go:build !cgo && !windows

package ffi

import (
	"fmt"
)

type libHandle = uintptr

func openLibrary(name string) (libHandle, error) {
	return 0, fmt.Errorf("%w: loading %q requires cgo", ErrUnsupportedPlatform, name)
}

func lookupSymbol(h libHandle, symbol string) (uintptr, error) {
	return 0, fmt.Errorf("%w: resolving %q requires cgo", ErrUnsupportedPlatform, symbol)
}

func closeLibrary(h libHandle) error {
	return nil
}
