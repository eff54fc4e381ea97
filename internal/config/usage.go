package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/agbru/mandelarea/internal/ui"
)

// setCustomUsage configures the flag set with a colored usage function.
func setCustomUsage(fs *pflag.FlagSet) {
	fs.Usage = func() {
		PrintUsage(fs)
	}
}

// PrintUsage writes a colored flag listing for fs to its output.
func PrintUsage(fs *pflag.FlagSet) {
	// Respect NO_COLOR even before app initialization
	t := ui.GetCurrentTheme()
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		t = ui.NoColorTheme
	}

	out := fs.Output()

	fmt.Fprintf(out, "\n%sMandelbrot Area Estimator%s\n", t.Bold, t.Reset)
	fmt.Fprintf(out, "Monte Carlo estimation of the Mandelbrot set area.\n\n")
	fmt.Fprintf(out, "%sUsage:%s\n  %s [flags]\n\n%sFlags:%s\n", t.Warning, t.Reset, fs.Name(), t.Warning, t.Reset)

	fs.VisitAll(func(f *pflag.Flag) {
		name, usage := pflag.UnquoteUsage(f)
		flagSig := "--" + f.Name
		if f.Shorthand != "" {
			flagSig = "-" + f.Shorthand + ", " + flagSig
		}
		if len(name) > 0 {
			flagSig += " " + name
		}

		fmt.Fprintf(out, "  %s%-30s%s %s", t.Primary, flagSig, t.Reset, usage)

		if f.DefValue != "" && f.DefValue != "0" && f.DefValue != "false" && f.DefValue != "[]" {
			fmt.Fprintf(out, " %s(default %s)%s", t.Secondary, f.DefValue, t.Reset)
		}
		fmt.Fprintln(out)
	})
	fmt.Fprintln(out)
}
