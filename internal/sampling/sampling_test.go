package sampling

import (
	"errors"
	"testing"

	"github.com/agbru/mandelarea/internal/mandelbrot"
	"github.com/agbru/mandelarea/internal/orthogonal"
)

var testDomain = mandelbrot.MustDomain(
	mandelbrot.Interval{Low: -2, High: 1},
	mandelbrot.Interval{Low: -1.5, High: 1.5},
)

func allSamplers(src Source) []Sampler {
	return []Sampler{
		NewPureRandom(src),
		NewLatinHypercube(src, IndependentPermutation),
		NewLatinHypercube(src, PairByIndex),
		NewOrthogonal(orthogonal.NewBridge(&orthogonal.Builtin{Source: src})),
	}
}

func TestSamplersStayInDomain(t *testing.T) {
	t.Parallel()
	for _, s := range allSamplers(NewSeededSource(42)) {
		t.Run(s.Method().DisplayName(), func(t *testing.T) {
			for _, size := range []int{1, 2, 17, 100} {
				batch, err := s.Sample(size, testDomain)
				if err != nil {
					t.Fatalf("Sample(%d): %v", size, err)
				}
				if len(batch) != s.Points(size) {
					t.Fatalf("Sample(%d) returned %d points, want %d", size, len(batch), s.Points(size))
				}
				for _, p := range batch {
					if !testDomain.Contains(p) {
						t.Fatalf("point %v outside %v", p, testDomain)
					}
				}
			}
		})
	}
}

func TestSamplersRejectNonPositiveSize(t *testing.T) {
	t.Parallel()
	for _, s := range allSamplers(DefaultSource()) {
		for _, size := range []int{0, -1, -100} {
			if _, err := s.Sample(size, testDomain); !errors.Is(err, mandelbrot.ErrInvalidArgument) {
				t.Errorf("%s.Sample(%d): expected ErrInvalidArgument, got %v", s.Method(), size, err)
			}
		}
	}
}

func TestOrthogonalReturnsSquareCount(t *testing.T) {
	t.Parallel()
	s := NewOrthogonal(orthogonal.NewBridge(&orthogonal.Builtin{Source: NewSeededSource(1)}))
	for _, m := range []int{1, 3, 10, 40} {
		batch, err := s.Sample(m, mandelbrot.DefaultDomain())
		if err != nil {
			t.Fatalf("Sample(%d): %v", m, err)
		}
		if len(batch) != m*m {
			t.Errorf("M=%d: got %d points, want %d", m, len(batch), m*m)
		}
	}
}

func TestLatinHypercubeStratification(t *testing.T) {
	t.Parallel()
	for _, pairing := range []Pairing{IndependentPermutation, PairByIndex} {
		t.Run(pairing.String(), func(t *testing.T) {
			t.Parallel()
			const n = 257
			xs, ys := LatinHypercubeUnit(n, NewSeededSource(7), pairing)
			for axis, vals := range [][]float64{xs, ys} {
				bins := make([]int, n)
				for _, v := range vals {
					if v < 0 || v >= 1 {
						t.Fatalf("axis %d: unit value %v outside [0,1)", axis, v)
					}
					bins[int(v*n)]++
				}
				for k, c := range bins {
					if c != 1 {
						t.Fatalf("axis %d: stratum %d holds %d values, want 1", axis, k, c)
					}
				}
			}
		})
	}
}

func TestLatinHypercubePairing(t *testing.T) {
	t.Parallel()
	const n = 200
	xs, ys := LatinHypercubeUnit(n, NewSeededSource(3), PairByIndex)
	for i := range xs {
		if int(xs[i]*n) != i || int(ys[i]*n) != i {
			t.Fatalf("index pairing: point %d sits in strata (%d, %d)", i, int(xs[i]*n), int(ys[i]*n))
		}
	}

	xs, ys = LatinHypercubeUnit(n, NewSeededSource(3), IndependentPermutation)
	diagonal := 0
	for i := range xs {
		if int(xs[i]*n) == int(ys[i]*n) {
			diagonal++
		}
	}
	if diagonal > n/10 {
		t.Errorf("independent permutation left %d of %d points on the diagonal", diagonal, n)
	}
}

func TestSeededSourceIsReproducible(t *testing.T) {
	t.Parallel()
	a, err := NewPureRandom(NewSeededSource(99)).Sample(50, testDomain)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewPureRandom(NewSeededSource(99)).Sample(50, testDomain)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("point %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSamplerIsRestartable(t *testing.T) {
	t.Parallel()
	s := NewLatinHypercube(NewSeededSource(5), IndependentPermutation)
	a, _ := s.Sample(64, testDomain)
	b, _ := s.Sample(64, testDomain)
	same := 0
	for i := range a {
		if a[i] == b[i] {
			same++
		}
	}
	if same == len(a) {
		t.Fatal("consecutive calls returned the same batch")
	}
}

func TestDefaultOrthogonalIsRestartable(t *testing.T) {
	t.Parallel()
	s := NewOrthogonal(orthogonal.NewBridge(&orthogonal.Builtin{}))
	a, err := s.Sample(16, testDomain)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Sample(16, testDomain)
	if err != nil {
		t.Fatal(err)
	}
	same := 0
	for i := range a {
		if a[i] == b[i] {
			same++
		}
	}
	if same == len(a) {
		t.Fatalf("%d/%d points identical across two unseeded ortho calls", same, len(a))
	}
}

func TestMethodSource(t *testing.T) {
	t.Parallel()
	if MethodSource(0, Pure) != DefaultSource() {
		t.Error("zero seed should select the process-wide source")
	}
	draw := func(src Source) [8]float64 {
		var v [8]float64
		for i := range v {
			v[i] = src.Float64()
		}
		return v
	}
	if draw(MethodSource(42, LHS)) != draw(MethodSource(42, LHS)) {
		t.Error("same seed and method should repeat")
	}
	streams := map[[8]float64]Method{}
	for _, m := range Methods {
		v := draw(MethodSource(42, m))
		if prev, dup := streams[v]; dup {
			t.Errorf("%s and %s share a stream", prev, m)
		}
		streams[v] = m
	}
	if _, dup := streams[draw(NewSeededSource(42))]; dup {
		t.Error("a method stream coincides with NewSeededSource")
	}
}

func TestParseMethod(t *testing.T) {
	t.Parallel()
	testCases := map[string]Method{
		"pure": Pure, "PURE": Pure, "random": Pure,
		"lhs": LHS, "LHS": LHS,
		"ortho": Ortho, "Orthogonal": Ortho,
	}
	for in, want := range testCases {
		got, err := ParseMethod(in)
		if err != nil || got != want {
			t.Errorf("ParseMethod(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMethod("sobol"); err == nil {
		t.Error("ParseMethod(sobol) should fail")
	}

	want := []string{"Pure", "LHS", "Ortho"}
	for i, m := range Methods {
		if m.DisplayName() != want[i] {
			t.Errorf("Methods[%d].DisplayName() = %q, want %q", i, m.DisplayName(), want[i])
		}
	}
}

func TestParsePairing(t *testing.T) {
	t.Parallel()
	if p, err := ParsePairing("index"); err != nil || p != PairByIndex {
		t.Errorf("ParsePairing(index) = %v, %v", p, err)
	}
	if p, err := ParsePairing("permute"); err != nil || p != IndependentPermutation {
		t.Errorf("ParsePairing(permute) = %v, %v", p, err)
	}
	if _, err := ParsePairing("diagonal"); err == nil {
		t.Error("ParsePairing(diagonal) should fail")
	}
}
