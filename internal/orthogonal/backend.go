package orthogonal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

var (
	// ErrUnsupportedPlatform is returned by LoadBackend for an operating
	// system with no known artifact name.
	ErrUnsupportedPlatform = errors.New("unsupported platform for the orthogonal backend")

	// ErrBackendUnavailable is returned when the artifact is missing, cannot
	// be loaded, or does not export the sampling routine.
	ErrBackendUnavailable = errors.New("orthogonal backend unavailable")
)

// SymbolName is the routine every orthogonal artifact exports:
//
//	void ortho_sampling_generate(int major, int runs, double *real, double *imag);
const SymbolName = "ortho_sampling_generate"

// Platform identifies a target operating system using runtime.GOOS values.
type Platform string

// Recognised platforms.
const (
	Windows Platform = "windows"
	Linux   Platform = "linux"
	Darwin  Platform = "darwin"
)

// HostPlatform returns the platform the process runs on.
func HostPlatform() Platform { return Platform(runtime.GOOS) }

// ArtifactName returns the file name of the compiled routine on p.
func ArtifactName(p Platform) (string, error) {
	switch p {
	case Windows:
		return SymbolName + ".dll", nil
	case Linux:
		return "lib" + SymbolName + ".so", nil
	case Darwin:
		return "lib" + SymbolName + ".dylib", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, string(p))
	}
}

// Library is a loaded compiled orthogonal routine. It implements Generator
// and must be used through a Bridge.
type Library struct {
	path   string
	handle nativeHandle
}

// Name implements Generator.
func (l *Library) Name() string { return "native" }

// Path returns the file the library was loaded from.
func (l *Library) Path() string { return l.path }

// Generate implements Generator.
func (l *Library) Generate(major, runs int, outReal, outImag []float64) {
	l.handle.call(major, runs, outReal, outImag)
}

// Close releases the library.
func (l *Library) Close() error { return l.handle.close() }

// LoadBackend locates the artifact for platform p in dir and loads it.
// Platform errors are reported before the filesystem is touched. Only the
// host platform can actually be loaded.
func LoadBackend(p Platform, dir string) (*Library, error) {
	name, err := ArtifactName(p)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if p != HostPlatform() {
		return nil, fmt.Errorf("%w: cannot load a %s artifact on %s", ErrBackendUnavailable, p, HostPlatform())
	}
	h, err := openNative(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, path, err)
	}
	return &Library{path: path, handle: h}, nil
}
