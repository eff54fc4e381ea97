package estimator

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/agbru/mandelarea/internal/mandelbrot"
	"github.com/agbru/mandelarea/internal/orthogonal"
	"github.com/agbru/mandelarea/internal/sampling"
)

// ErrUnknownMethod is returned for a method name nothing is registered under.
var ErrUnknownMethod = errors.New("unknown sampling method")

// Options configures the samplers a Factory builds.
type Options struct {
	// Domain is the sampling region shared by every estimator.
	Domain mandelbrot.Domain
	// Source, when set, feeds both pure and LHS sampling.
	Source sampling.Source
	// Seed, with a nil Source, gives each method its own stream
	// (sampling.MethodSource). Zero selects the process-wide source.
	Seed uint64
	// Pairing is the LHS axis pairing policy.
	Pairing sampling.Pairing
	// Bridge backs orthogonal sampling. When nil, creating the ortho
	// estimator fails with OrthoErr.
	Bridge *orthogonal.Bridge
	// OrthoErr explains why Bridge is nil, typically a backend load error.
	OrthoErr error
	// Workers bounds batch evaluation goroutines; zero selects GOMAXPROCS.
	Workers int
}

// Factory builds and caches one Estimator per sampling method. Creation is
// lazy: a method whose backend failed to load only errors when requested,
// so the other methods stay usable.
type Factory struct {
	mu         sync.RWMutex
	domain     mandelbrot.Domain
	workers    int
	creators   map[sampling.Method]func() (sampling.Sampler, error)
	estimators map[sampling.Method]Estimator
}

// NewFactory returns a Factory with pure, lhs and ortho registered.
func NewFactory(opts Options) *Factory {
	if opts.Domain == (mandelbrot.Domain{}) {
		opts.Domain = mandelbrot.DefaultDomain()
	}
	f := &Factory{
		domain:     opts.Domain,
		workers:    opts.Workers,
		creators:   make(map[sampling.Method]func() (sampling.Sampler, error)),
		estimators: make(map[sampling.Method]Estimator),
	}

	source := func(m sampling.Method) sampling.Source {
		if opts.Source != nil {
			return opts.Source
		}
		return sampling.MethodSource(opts.Seed, m)
	}
	f.Register(sampling.Pure, func() (sampling.Sampler, error) {
		return sampling.NewPureRandom(source(sampling.Pure)), nil
	})
	f.Register(sampling.LHS, func() (sampling.Sampler, error) {
		return sampling.NewLatinHypercube(source(sampling.LHS), opts.Pairing), nil
	})
	f.Register(sampling.Ortho, func() (sampling.Sampler, error) {
		if opts.Bridge == nil {
			if opts.OrthoErr != nil {
				return nil, opts.OrthoErr
			}
			return nil, fmt.Errorf("%w: no generator configured", orthogonal.ErrBackendUnavailable)
		}
		return sampling.NewOrthogonal(opts.Bridge), nil
	})
	return f
}

// Register adds or replaces the sampler constructor for method.
func (f *Factory) Register(method sampling.Method, creator func() (sampling.Sampler, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[method] = creator
	delete(f.estimators, method)
}

// Get returns the cached Estimator for method, creating it on first use.
func (f *Factory) Get(method sampling.Method) (Estimator, error) {
	f.mu.RLock()
	if est, ok := f.estimators[method]; ok {
		f.mu.RUnlock()
		return est, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if est, ok := f.estimators[method]; ok {
		return est, nil
	}
	creator, ok := f.creators[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	sampler, err := creator()
	if err != nil {
		return nil, fmt.Errorf("%s sampler: %w", method.DisplayName(), err)
	}
	est := New(sampler, f.domain, f.workers)
	f.estimators[method] = est
	return est, nil
}

// Has reports whether method is registered.
func (f *Factory) Has(method sampling.Method) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.creators[method]
	return ok
}

// List returns the registered methods in sorted order.
func (f *Factory) List() []sampling.Method {
	f.mu.RLock()
	defer f.mu.RUnlock()
	methods := make([]sampling.Method, 0, len(f.creators))
	for m := range f.creators {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return methods
}

// Domain returns the sampling region.
func (f *Factory) Domain() mandelbrot.Domain { return f.domain }
