//go:build windows

package ffi

import (
	"fmt"

	"golang.org/x/sys/windows"
)

type libHandle = windows.Handle

func openLibrary(name string) (libHandle, error) {
	if name == "" {
		var h windows.Handle
		if err := windows.GetModuleHandleEx(0, nil, &h); err != nil {
			return 0, fmt.Errorf("%w: current process: %v", ErrLibraryNotFound, err)
		}
		return h, nil
	}
	h, err := windows.LoadLibrary(name)
	if err != nil {
		return 0, fmt.Errorf("%w: LoadLibrary(%q): %v", ErrLibraryNotFound, name, err)
	}
	return h, nil
}

func lookupSymbol(h libHandle, symbol string) (uintptr, error) {
	addr, err := windows.GetProcAddress(h, symbol)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrSymbolNotFound, symbol, err)
	}
	return addr, nil
}

func closeLibrary(h libHandle) error {
	return windows.FreeLibrary(h)
}
