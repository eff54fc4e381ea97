package orthogonal

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/agbru/mandelarea/internal/mandelbrot"
)

// ErrBridgeContractViolation reports that a generator wrote outside the
// region it was handed, or left part of it unwritten.
var ErrBridgeContractViolation = errors.New("orthogonal bridge contract violation")

// GuardCells is the number of sentinel cells placed after each output
// region. Writes that land in them are detected after the call.
const GuardCells = 64

// MaxPoints caps major²·runs for a single call.
const MaxPoints = 1 << 27

// sentinelBits is a quiet NaN with a payload no arithmetic result carries.
const sentinelBits uint64 = 0x7ff8_dead_beef_0001

var sentinel = math.Float64frombits(sentinelBits)

// Bridge calls a Generator with exactly sized buffers. Calls through one
// Bridge are serialised: a compiled routine keeps process-level state and
// must never run concurrently.
type Bridge struct {
	mu  sync.Mutex
	gen Generator
}

// NewBridge wraps gen. It panics if gen is nil.
func NewBridge(gen Generator) *Bridge {
	if gen == nil {
		panic("orthogonal: NewBridge called with a nil generator")
	}
	return &Bridge{gen: gen}
}

// Backend returns the name of the wrapped generator.
func (b *Bridge) Backend() string { return b.gen.Name() }

// Generate returns major²·runs points of the reference square as two
// coordinate slices of exactly that length.
func (b *Bridge) Generate(major, runs int) ([]float64, []float64, error) {
	if major < 1 {
		return nil, nil, fmt.Errorf("%w: grid side must be positive, got %d", mandelbrot.ErrInvalidArgument, major)
	}
	if runs < 1 {
		return nil, nil, fmt.Errorf("%w: run count must be positive, got %d", mandelbrot.ErrInvalidArgument, runs)
	}
	if major > MaxPoints/major || major*major > MaxPoints/runs {
		return nil, nil, fmt.Errorf("%w: %d²·%d points exceeds the limit of %d", mandelbrot.ErrInvalidArgument, major, runs, MaxPoints)
	}
	n := major * major * runs

	realBuf := newGuardedBuffer(n)
	imagBuf := newGuardedBuffer(n)

	if err := b.call(major, runs, realBuf[:n:n], imagBuf[:n:n]); err != nil {
		return nil, nil, err
	}

	if err := checkGuardedBuffer(realBuf, n, "real"); err != nil {
		return nil, nil, err
	}
	if err := checkGuardedBuffer(imagBuf, n, "imaginary"); err != nil {
		return nil, nil, err
	}
	return realBuf[:n:n], imagBuf[:n:n], nil
}

// call runs the generator under the lock. A Go generator that indexes past
// its slices panics; that is reported as a contract violation too.
func (b *Bridge) call(major, runs int, re, im []float64) (err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s generator panicked: %v", ErrBridgeContractViolation, b.gen.Name(), r)
		}
	}()
	b.gen.Generate(major, runs, re, im)
	return nil
}

func newGuardedBuffer(n int) []float64 {
	buf := make([]float64, n+GuardCells)
	for i := range buf {
		buf[i] = sentinel
	}
	return buf
}

func checkGuardedBuffer(buf []float64, n int, axis string) error {
	for i := n; i < len(buf); i++ {
		if math.Float64bits(buf[i]) != sentinelBits {
			return fmt.Errorf("%w: %s buffer written past %d elements (guard cell %d)", ErrBridgeContractViolation, axis, n, i-n)
		}
	}
	for i := 0; i < n; i++ {
		if math.Float64bits(buf[i]) == sentinelBits {
			return fmt.Errorf("%w: %s buffer element %d of %d left unwritten", ErrBridgeContractViolation, axis, i, n)
		}
	}
	return nil
}
