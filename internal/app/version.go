// Package app wires the mandelarea commands: it builds the estimator
// factory, the result store and the run ledger from the configuration, runs
// one command against them and reports build version information.
package app

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"slices"
)

// Set with -ldflags "-X github.com/agbru/mandelarea/internal/app.Version=v0.3.0".
// When Commit is left unset the VCS revision stamped by the go tool is used.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionFlags = []string{"--version", "-version", "-V"}

// HasVersionFlag reports whether args hold a version flag anywhere, so that
// "mandelarea serve --version" prints the version too.
func HasVersionFlag(args []string) bool {
	return slices.ContainsFunc(args, func(a string) bool {
		return slices.Contains(versionFlags, a)
	})
}

// PrintVersion writes the human readable form of GetVersionInfo.
func PrintVersion(out io.Writer) {
	v := GetVersionInfo()
	fmt.Fprintf(out, "mandelarea %s\n", v.Version)
	for _, row := range [][2]string{
		{"Commit:", v.Commit},
		{"Built:", v.BuildDate},
		{"Go version:", v.GoVersion},
		{"OS/Arch:", v.OS + "/" + v.Arch},
	} {
		fmt.Fprintf(out, "  %-12s %s\n", row[0], row[1])
	}
}

// VersionData is the JSON form of the build details.
type VersionData struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

func GetVersionInfo() VersionData {
	var settings []debug.BuildSetting
	if info, ok := debug.ReadBuildInfo(); ok {
		settings = info.Settings
	}
	return VersionData{
		Version:   Version,
		Commit:    resolveCommit(Commit, settings),
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// resolveCommit prefers the linker-set commit, then the stamped
// vcs.revision shortened to 12 characters with a "-dirty" suffix for
// modified trees.
func resolveCommit(linked string, settings []debug.BuildSetting) string {
	if linked != "" && linked != "unknown" {
		return linked
	}
	var rev string
	var dirty bool
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return linked
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if dirty {
		rev += "-dirty"
	}
	return rev
}
