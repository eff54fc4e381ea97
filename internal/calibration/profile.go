package calibration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Profile is the persisted outcome of a calibration run. The host fields
// tie it to the machine it was measured on.
type Profile struct {
	CPUModel  string `json:"cpu_model"`
	NumCPU    int    `json:"num_cpu"`
	GOARCH    string `json:"goarch"`
	GOOS      string `json:"goos"`
	GoVersion string `json:"go_version"`
	WordSize  int    `json:"word_size"`

	OptimalWorkers int `json:"optimal_workers"`
	Points         int `json:"points"`
	MaxIter        int `json:"max_iter"`

	CalibratedAt    time.Time `json:"calibrated_at"`
	CalibrationTime string    `json:"calibration_time"`

	ProfileVersion int `json:"profile_version"`
}

const (
	CurrentProfileVersion  = 1
	DefaultProfileFileName = ".mandelarea_calibration.json"
)

// GetDefaultProfilePath is DefaultProfileFileName under the home directory,
// or the bare file name when there is no home.
func GetDefaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultProfileFileName
	}
	return filepath.Join(home, DefaultProfileFileName)
}

// NewProfile describes this host; the measured fields are left zero.
func NewProfile() *Profile {
	return &Profile{
		CPUModel:       cpuModel(),
		NumCPU:         runtime.NumCPU(),
		GOARCH:         runtime.GOARCH,
		GOOS:           runtime.GOOS,
		GoVersion:      runtime.Version(),
		WordSize:       wordSize,
		CalibratedAt:   time.Now(),
		ProfileVersion: CurrentProfileVersion,
	}
}

const wordSize = 32 << (^uint(0) >> 63)

func cpuModel() string {
	return fmt.Sprintf("%s-%d-cores", runtime.GOARCH, runtime.NumCPU())
}

func profilePath(path string) string {
	if path == "" {
		return GetDefaultProfilePath()
	}
	return path
}

// LoadProfile decodes the profile at path ("" means the default path).
func LoadProfile(path string) (*Profile, error) {
	path = profilePath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("calibration profile: %w", err)
	}
	p := new(Profile)
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("calibration profile %s: %w", path, err)
	}
	return p, nil
}

// SaveProfile writes the profile to path ("" means the default path) with
// mode 0600. The JSON is written to a temporary file in the same directory
// then renamed into place; readers never see a partial file.
func (p *Profile) SaveProfile(path string) error {
	path = profilePath(path)
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding calibration profile: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".calibration-*.json")
	if err != nil {
		return fmt.Errorf("saving calibration profile: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("saving calibration profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("saving calibration profile: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("saving calibration profile: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saving calibration profile: %w", err)
	}
	return nil
}

// IsValid reports whether the profile has the current format and was
// measured on a host with the same CPU count, GOARCH and word size. GOOS is
// ignored.
func (p *Profile) IsValid() bool {
	if p == nil {
		return false
	}
	return p.ProfileVersion == CurrentProfileVersion &&
		p.NumCPU == runtime.NumCPU() &&
		p.GOARCH == runtime.GOARCH &&
		p.WordSize == wordSize
}

// IsStale is true for nil profiles and those calibrated more than maxAge ago.
func (p *Profile) IsStale(maxAge time.Duration) bool {
	if p == nil {
		return true
	}
	return time.Since(p.CalibratedAt) > maxAge
}

func (p *Profile) String() string {
	if p == nil {
		return "<nil profile>"
	}
	return fmt.Sprintf("Profile{CPU: %s, Workers: %d, Batch: %d points × %d iterations, Calibrated: %s}",
		p.CPUModel, p.OptimalWorkers, p.Points, p.MaxIter, p.CalibratedAt.Format(time.RFC3339))
}

// LoadOrCreateProfile falls back to NewProfile, with loaded false, whenever
// the stored profile cannot be used on this host.
func LoadOrCreateProfile(path string) (profile *Profile, loaded bool) {
	profile, err := LoadProfile(path)
	if err != nil || !profile.IsValid() {
		return NewProfile(), false
	}
	return profile, true
}

func ProfileExists(path string) bool {
	_, err := os.Stat(profilePath(path))
	return err == nil
}
