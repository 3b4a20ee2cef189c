//go:build cgo && !windows

package ffi

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>

// dlerror 是线程局部的，错误必须在同一次 cgo 调用中取出
static void* dc_dlopen(const char* path, const char** err) {
	void* h = dlopen(path, RTLD_NOW | RTLD_LOCAL);
	*err = h == NULL ? dlerror() : NULL;
	return h;
}

// 先清空 dlerror，再区分找不到与值为 NULL 的符号
static void* dc_dlsym(void* h, const char* name, const char** err) {
	dlerror();
	void* p = dlsym(h, name);
	*err = dlerror();
	return p;
}

static int dc_dlclose(void* h, const char** err) {
	int rc = dlclose(h);
	*err = rc != 0 ? dlerror() : NULL;
	return rc;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"
)

type libHandle = unsafe.Pointer

func dlerr(e *C.char) string {
	if e != nil {
		return C.GoString(e)
	}
	return "unknown dlerror"
}

func openLibrary(name string) (libHandle, error) {
	var cs *C.char
	if name != "" {
		cs = C.CString(name)
		defer C.free(unsafe.Pointer(cs))
	}
	var cerr *C.char
	h := C.dc_dlopen(cs, &cerr)
	if h == nil {
		return nil, fmt.Errorf("%w: dlopen(%q): %s", ErrLibraryNotFound, name, dlerr(cerr))
	}
	return h, nil
}

func lookupSymbol(h libHandle, symbol string) (uintptr, error) {
	cs := C.CString(symbol)
	defer C.free(unsafe.Pointer(cs))

	var cerr *C.char
	p := C.dc_dlsym(h, cs, &cerr)
	if cerr != nil {
		return 0, fmt.Errorf("%w: %s: %s", ErrSymbolNotFound, symbol, C.GoString(cerr))
	}
	return uintptr(p), nil
}

func closeLibrary(h libHandle) error {
	var cerr *C.char
	if C.dc_dlclose(h, &cerr) != 0 {
		return errors.New(dlerr(cerr))
	}
	return nil
}
