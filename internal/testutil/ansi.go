// Package testutil provides helpers shared by the test suites.
package testutil

import (
	"regexp"
	"testing"

	"github.com/agbru/mandelarea/internal/ui"
)

// ansiRegex matches CSI escape sequences (ESC [ ... letter).
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripAnsiCodes removes ANSI escape codes from s.
func StripAnsiCodes(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// WithTheme activates theme for the rest of the test and restores the
// previous theme on cleanup. Tests using it must not run in parallel with
// other theme-sensitive tests.
func WithTheme(t testing.TB, theme ui.Theme) {
	t.Helper()
	saved := ui.GetCurrentTheme()
	ui.SetCurrentTheme(theme)
	t.Cleanup(func() { ui.SetCurrentTheme(saved) })
}
