//go:build windows

package orthogonal

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

type nativeHandle struct {
	dll  *windows.DLL
	proc *windows.Proc
}

func openNative(path string) (nativeHandle, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nativeHandle{}, err
	}
	proc, err := dll.FindProc(SymbolName)
	if err != nil {
		_ = dll.Release()
		return nativeHandle{}, err
	}
	return nativeHandle{dll: dll, proc: proc}, nil
}

func (h nativeHandle) call(major, runs int, re, im []float64) {
	// The routine returns void; the second and third results carry nothing.
	_, _, _ = h.proc.Call(
		uintptr(major),
		uintptr(runs),
		uintptr(unsafe.Pointer(&re[0])),
		uintptr(unsafe.Pointer(&im[0])),
	)
}

func (h nativeHandle) close() error {
	if h.dll == nil {
		return nil
	}
	return h.dll.Release()
}
