package calibration

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestNewProfile(t *testing.T) {
	t.Parallel()
	profile := NewProfile()

	if profile.NumCPU != runtime.NumCPU() {
		t.Errorf("NumCPU = %d, want %d", profile.NumCPU, runtime.NumCPU())
	}
	if profile.GOARCH != runtime.GOARCH {
		t.Errorf("GOARCH = %s, want %s", profile.GOARCH, runtime.GOARCH)
	}
	if profile.GOOS != runtime.GOOS {
		t.Errorf("GOOS = %s, want %s", profile.GOOS, runtime.GOOS)
	}
	if profile.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %s, want %s", profile.GoVersion, runtime.Version())
	}
	if profile.ProfileVersion != CurrentProfileVersion {
		t.Errorf("ProfileVersion = %d, want %d", profile.ProfileVersion, CurrentProfileVersion)
	}
	if want := 32 << (^uint(0) >> 63); profile.WordSize != want {
		t.Errorf("WordSize = %d, want %d", profile.WordSize, want)
	}
	if profile.CalibratedAt.IsZero() {
		t.Error("CalibratedAt is zero")
	}
}

func TestProfileSaveLoad(t *testing.T) {
	t.Parallel()
	profilePath := filepath.Join(t.TempDir(), "test_profile.json")

	original := NewProfile()
	original.OptimalWorkers = 6
	original.Points = 1000
	original.MaxIter = 50
	original.CalibrationTime = "1.5s"
	if err := original.SaveProfile(profilePath); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	info, err := os.Stat(profilePath)
	if err != nil {
		t.Fatalf("profile file was not created: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("profile mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadProfile(profilePath)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if loaded.OptimalWorkers != 6 || loaded.Points != 1000 || loaded.MaxIter != 50 || loaded.CalibrationTime != "1.5s" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.NumCPU != original.NumCPU {
		t.Errorf("NumCPU = %d, want %d", loaded.NumCPU, original.NumCPU)
	}
}

func TestProfileIsValid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Profile)
		want   bool
	}{
		{"Fresh", func(*Profile) {}, true},
		{"WrongCPUCount", func(p *Profile) { p.NumCPU = 999 }, false},
		{"WrongArch", func(p *Profile) { p.GOARCH = "invalid_arch" }, false},
		{"WrongWordSize", func(p *Profile) { p.WordSize = 16 }, false},
		{"WrongVersion", func(p *Profile) { p.ProfileVersion = 999 }, false},
		{"OtherOSStillValid", func(p *Profile) { p.GOOS = "plan9" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := NewProfile()
			tt.mutate(p)
			if got := p.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}

	var nilProfile *Profile
	if nilProfile.IsValid() {
		t.Error("nil profile is valid")
	}
}

func TestProfileIsStale(t *testing.T) {
	t.Parallel()
	profile := NewProfile()
	if profile.IsStale(time.Hour) {
		t.Error("fresh profile is stale")
	}
	profile.CalibratedAt = time.Now().Add(-2 * time.Hour)
	if !profile.IsStale(time.Hour) {
		t.Error("old profile is not stale")
	}
	var nilProfile *Profile
	if !nilProfile.IsStale(time.Hour) {
		t.Error("nil profile is not stale")
	}
}

func TestProfileString(t *testing.T) {
	t.Parallel()
	profile := NewProfile()
	profile.OptimalWorkers = 12
	if str := profile.String(); !strings.Contains(str, "Workers: 12") {
		t.Errorf("String() = %s", str)
	}
	var nilProfile *Profile
	if nilProfile.String() != "<nil profile>" {
		t.Errorf("nil String() = %s", nilProfile.String())
	}
}

func TestLoadProfileErrors(t *testing.T) {
	t.Parallel()
	if _, err := LoadProfile("/nonexistent/path/to/profile.json"); err == nil {
		t.Error("expected an error for a missing profile")
	}

	invalidPath := filepath.Join(t.TempDir(), "invalid.json")
	if err := os.WriteFile(invalidPath, []byte("not valid json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProfile(invalidPath); err == nil {
		t.Error("expected an error for invalid JSON")
	}
}

func TestLoadOrCreateProfile(t *testing.T) {
	t.Parallel()
	profilePath := filepath.Join(t.TempDir(), "profile.json")

	profile, loaded := LoadOrCreateProfile(profilePath)
	if loaded {
		t.Error("loaded is true for a missing file")
	}
	profile.OptimalWorkers = 3
	if err := profile.SaveProfile(profilePath); err != nil {
		t.Fatal(err)
	}

	again, loaded := LoadOrCreateProfile(profilePath)
	if !loaded || again.OptimalWorkers != 3 {
		t.Errorf("loaded = %v, profile = %v", loaded, again)
	}

	// A profile from other hardware is replaced.
	again.NumCPU = runtime.NumCPU() + 1
	if err := again.SaveProfile(profilePath); err != nil {
		t.Fatal(err)
	}
	fresh, loaded := LoadOrCreateProfile(profilePath)
	if loaded || fresh.OptimalWorkers != 0 {
		t.Errorf("loaded = %v, profile = %v", loaded, fresh)
	}
}

func TestProfileExists(t *testing.T) {
	t.Parallel()
	profilePath := filepath.Join(t.TempDir(), "profile.json")
	if ProfileExists(profilePath) {
		t.Error("ProfileExists is true before saving")
	}
	if err := NewProfile().SaveProfile(profilePath); err != nil {
		t.Fatal(err)
	}
	if !ProfileExists(profilePath) {
		t.Error("ProfileExists is false after saving")
	}
}

func TestGetDefaultProfilePath(t *testing.T) {
	t.Parallel()
	if path := GetDefaultProfilePath(); filepath.Base(path) != DefaultProfileFileName {
		t.Errorf("path %s does not end with %s", path, DefaultProfileFileName)
	}
}

func TestSaveProfileLeavesNoTempFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.json")
	p := NewProfile()
	for workers := 1; workers <= 2; workers++ {
		p.OptimalWorkers = workers
		if err := p.SaveProfile(path); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "profile.json" {
		t.Errorf("directory holds %v", entries)
	}
	loaded, err := LoadProfile(path)
	if err != nil || loaded.OptimalWorkers != 2 {
		t.Errorf("LoadProfile = %+v, %v", loaded, err)
	}
}
