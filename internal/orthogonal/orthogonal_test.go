package orthogonal

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/agbru/mandelarea/internal/mandelbrot"
)

// overrunGenerator writes one element past the region it was handed, the
// way an unchecked native routine would.
type overrunGenerator struct{ Builtin }

func (g *overrunGenerator) Generate(major, runs int, re, im []float64) {
	g.Builtin.Generate(major, runs, re, im)
	n := len(re)
	unsafe.Slice(&re[0], n+1)[n] = 0.5
}

// lazyGenerator fills nothing.
type lazyGenerator struct{}

func (lazyGenerator) Name() string                            { return "lazy" }
func (lazyGenerator) Generate(int, int, []float64, []float64) {}

// panicGenerator indexes out of range.
type panicGenerator struct{}

func (panicGenerator) Name() string { return "panic" }
func (panicGenerator) Generate(_, _ int, re, _ []float64) {
	re[len(re)] = 1
}

// exclusiveGenerator fails the test if two calls overlap.
type exclusiveGenerator struct {
	Builtin
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (g *exclusiveGenerator) Generate(major, runs int, re, im []float64) {
	if g.inFlight.Add(1) > 1 {
		g.overlap.Store(true)
	}
	defer g.inFlight.Add(-1)
	g.Builtin.Generate(major, runs, re, im)
}

func TestBuiltinStratification(t *testing.T) {
	t.Parallel()
	for _, major := range []int{1, 2, 5, 16, 31} {
		b := NewBridge(&Builtin{Source: rand.New(rand.NewPCG(uint64(major), 9))})
		re, im, err := b.Generate(major, 1)
		if err != nil {
			t.Fatalf("major=%d: %v", major, err)
		}
		n := major * major
		if len(re) != n || len(im) != n {
			t.Fatalf("major=%d: got %d/%d points, want %d", major, len(re), len(im), n)
		}

		scale := (ReferenceHigh - ReferenceLow) / float64(n)
		fineX := make([]int, n)
		fineY := make([]int, n)
		cells := make(map[[2]int]int)
		for k := range re {
			if re[k] < ReferenceLow || re[k] >= ReferenceHigh || im[k] < ReferenceLow || im[k] >= ReferenceHigh {
				t.Fatalf("major=%d: point (%v, %v) outside the reference square", major, re[k], im[k])
			}
			fx := int((re[k] - ReferenceLow) / scale)
			fy := int((im[k] - ReferenceLow) / scale)
			fineX[fx]++
			fineY[fy]++
			cells[[2]int{fx / major, fy / major}]++
		}
		for s := 0; s < n; s++ {
			if fineX[s] != 1 || fineY[s] != 1 {
				t.Fatalf("major=%d: fine stratum %d holds x=%d y=%d points, want 1 each", major, s, fineX[s], fineY[s])
			}
		}
		if len(cells) != n {
			t.Fatalf("major=%d: %d major cells occupied, want %d", major, len(cells), n)
		}
	}
}

func TestBuiltinMultipleRuns(t *testing.T) {
	t.Parallel()
	b := NewBridge(&Builtin{})
	re, im, err := b.Generate(4, 3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(re) != 48 || len(im) != 48 {
		t.Fatalf("got %d points, want 48", len(re))
	}
}

// generateTwice returns how many of the points of two consecutive calls
// coincide.
func generateTwice(t *testing.T, b *Bridge) (same, total int) {
	t.Helper()
	re1, im1, err := b.Generate(16, 1)
	if err != nil {
		t.Fatal(err)
	}
	re2, im2, err := b.Generate(16, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := range re1 {
		if re1[i] == re2[i] && im1[i] == im2[i] {
			same++
		}
	}
	return same, len(re1)
}

func TestBuiltinDefaultSourceIsFreshPerCall(t *testing.T) {
	t.Parallel()
	if same, total := generateTwice(t, NewBridge(&Builtin{})); same == total {
		t.Fatalf("%d/%d points identical across two unseeded calls", same, total)
	}
}

func TestBuiltinFixedSeedRepeats(t *testing.T) {
	t.Parallel()
	if same, total := generateTwice(t, NewBridge(&Builtin{FixedSeed: true})); same != total {
		t.Fatalf("only %d/%d points repeat with FixedSeed", same, total)
	}
}

func TestBridgeRejectsInvalidSizes(t *testing.T) {
	t.Parallel()
	b := NewBridge(&Builtin{})
	testCases := []struct {
		name        string
		major, runs int
	}{
		{"ZeroMajor", 0, 1},
		{"NegativeMajor", -3, 1},
		{"ZeroRuns", 4, 0},
		{"TooLarge", 1 << 16, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, _, err := b.Generate(tc.major, tc.runs); !errors.Is(err, mandelbrot.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestBridgeContractViolations(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		gen  Generator
	}{
		{"Overrun", &overrunGenerator{}},
		{"ShortWrite", lazyGenerator{}},
		{"Panic", panicGenerator{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := NewBridge(tc.gen).Generate(3, 1)
			if !errors.Is(err, ErrBridgeContractViolation) {
				t.Fatalf("expected ErrBridgeContractViolation, got %v", err)
			}
		})
	}
}

func TestBridgeSerialisesCalls(t *testing.T) {
	t.Parallel()
	gen := &exclusiveGenerator{}
	b := NewBridge(gen)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := b.Generate(20, 1); err != nil {
				t.Errorf("Generate: %v", err)
			}
		}()
	}
	wg.Wait()
	if gen.overlap.Load() {
		t.Fatal("generator calls overlapped")
	}
}

func TestNewBridgeNilPanics(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil generator")
		}
	}()
	NewBridge(nil)
}

func TestArtifactName(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		platform Platform
		want     string
		wantErr  bool
	}{
		{Windows, "ortho_sampling_generate.dll", false},
		{Linux, "libortho_sampling_generate.so", false},
		{Darwin, "libortho_sampling_generate.dylib", false},
		{"plan9", "", true},
		{"", "", true},
	}
	for _, tc := range testCases {
		t.Run(string(tc.platform), func(t *testing.T) {
			t.Parallel()
			got, err := ArtifactName(tc.platform)
			if tc.wantErr {
				if !errors.Is(err, ErrUnsupportedPlatform) {
					t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("ArtifactName(%q) = %q, %v; want %q", tc.platform, got, err, tc.want)
			}
		})
	}
}

func TestLoadBackendErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	if _, err := LoadBackend("freebsd", dir); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("unsupported platform: got %v", err)
	}
	if _, err := LoadBackend(Linux, dir); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("missing artifact: got %v", err)
	}

	// A file that is not a loadable library for the host.
	other := Windows
	if HostPlatform() == Windows {
		other = Linux
	}
	name, _ := ArtifactName(other)
	if err := os.WriteFile(filepath.Join(dir, name), []byte("not a library"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadBackend(other, dir); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("foreign artifact: got %v", err)
	}
}

func TestLoadBackendGarbageArtifact(t *testing.T) {
	t.Parallel()
	name, err := ArtifactName(HostPlatform())
	if err != nil {
		t.Skipf("host platform has no artifact: %v", err)
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadBackend(HostPlatform(), dir); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}
