//go:build !windows && !(orthonative && cgo && (linux || darwin))

package orthogonal

import "errors"

type nativeHandle struct{}

func openNative(string) (nativeHandle, error) {
	return nativeHandle{}, errors.New("binary built without native loader support (rebuild with -tags orthonative and cgo enabled)")
}

func (nativeHandle) call(int, int, []float64, []float64) {}

func (nativeHandle) close() error { return nil }
