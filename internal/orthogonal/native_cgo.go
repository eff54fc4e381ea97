//go:build orthonative && cgo && (linux || darwin)

package orthogonal

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>

typedef void (*ortho_fn)(int, int, double *, double *);

static void call_ortho(void *fn, int major, int runs, double *re, double *im) {
	((ortho_fn)fn)(major, runs, re, im);
}
*/
import "C"

import (
	"errors"
	"unsafe"
)

type nativeHandle struct {
	lib unsafe.Pointer
	fn  unsafe.Pointer
}

func openNative(path string) (nativeHandle, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	lib := C.dlopen(cpath, C.RTLD_NOW|C.RTLD_LOCAL)
	if lib == nil {
		return nativeHandle{}, errors.New(C.GoString(C.dlerror()))
	}

	csym := C.CString(SymbolName)
	defer C.free(unsafe.Pointer(csym))
	fn := C.dlsym(lib, csym)
	if fn == nil {
		msg := C.GoString(C.dlerror())
		C.dlclose(lib)
		return nativeHandle{}, errors.New(msg)
	}
	return nativeHandle{lib: lib, fn: fn}, nil
}

func (h nativeHandle) call(major, runs int, re, im []float64) {
	C.call_ortho(h.fn, C.int(major), C.int(runs),
		(*C.double)(unsafe.Pointer(&re[0])), (*C.double)(unsafe.Pointer(&im[0])))
}

func (h nativeHandle) close() error {
	if h.lib == nil {
		return nil
	}
	if C.dlclose(h.lib) != 0 {
		return errors.New(C.GoString(C.dlerror()))
	}
	return nil
}
