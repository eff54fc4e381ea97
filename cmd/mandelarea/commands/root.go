package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agbru/mandelarea/internal/app"
	"github.com/agbru/mandelarea/internal/config"
	apperrors "github.com/agbru/mandelarea/internal/errors"
	"github.com/agbru/mandelarea/internal/logging"
	"github.com/agbru/mandelarea/internal/ui"
)

// session is the state shared by the commands of one invocation.
type session struct {
	cfg config.AppConfig
	app *app.Application
}

// exitError carries a non-zero exit code out of a RunE. The command has
// already reported the failure.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Execute runs the CLI with the process arguments and returns the exit code.
func Execute() int {
	return Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

// Run runs the CLI with args and returns the exit code.
func Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	if app.HasVersionFlag(args) {
		app.PrintVersion(out)
		return apperrors.ExitSuccess
	}

	s := &session{cfg: config.Default()}
	root := newRootCmd(s)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	if s.app != nil {
		if cerr := s.app.Close(); cerr != nil {
			fmt.Fprintf(errOut, "Warning: %v\n", cerr)
		}
	}
	var ee exitError
	switch {
	case err == nil:
		return apperrors.ExitSuccess
	case errors.As(err, &ee):
		return ee.code
	default:
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return apperrors.ExitCode(err)
	}
}

func newRootCmd(s *session) *cobra.Command {
	root := &cobra.Command{
		Use:   "mandelarea",
		Short: "Monte Carlo estimation of the Mandelbrot set area",
		Long: `mandelarea estimates the area of the Mandelbrot set by Monte Carlo
integration with pure random, Latin hypercube and orthogonal sampling, and
runs the convergence experiments that compare them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.cfg.Finalize(cmd.Flags()); err != nil {
				return err
			}
			if err := logging.Setup(s.cfg.LogLevel, cmd.ErrOrStderr(), true); err != nil {
				return apperrors.WrapConfigError(err, "invalid --log-level")
			}
			ui.InitTheme(s.cfg.NoColor)
			if !needsApp(cmd) {
				return nil
			}
			a, err := app.New(cmd.Context(), s.cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			s.app = a
			return nil
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.WrapConfigError(err, "invalid flag")
	})
	config.BindFlags(root.PersistentFlags(), &s.cfg)

	root.AddCommand(
		estimateCmd(s),
		experimentCmd(s, "sweep", "Run the sample-size × iteration grid for each method"),
		experimentCmd(s, "repeat", "Repeat one size and budget for each method"),
		experimentCmd(s, "iterations", "Sweep the iteration budget at a fixed size"),
		trueAreaCmd(s),
		statsCmd(s),
		serveCmd(s),
		calibrateCmd(s),
		versionCmd(),
	)
	return root
}

// annotationNoApp marks commands that run without building the application.
const annotationNoApp = "mandelarea/no-app"

// needsApp reports whether cmd uses the estimators or the stores. The
// generated completion commands do not.
func needsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationNoApp] != "" || c.Name() == "completion" {
			return false
		}
	}
	return true
}

// exit turns a command exit code into the RunE error.
func exit(code int) error {
	if code == apperrors.ExitSuccess {
		return nil
	}
	return exitError{code: code}
}
