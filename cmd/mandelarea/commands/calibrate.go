package commands

import (
	"github.com/spf13/cobra"

	"github.com/agbru/mandelarea/internal/app"
	"github.com/agbru/mandelarea/internal/calibration"
)

// calibrate: pick the evaluation worker count for this machine.
func calibrateCmd(s *session) *cobra.Command {
	var opts calibration.Options
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Find the fastest evaluation worker count for this machine",
		Long: `Time the escape test over a fixed batch with several worker counts and
save the fastest to the calibration profile (--calibration-profile, by
default ~/.mandelarea_calibration.json). Later runs started without
--workers use the saved count.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoApp: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exit(app.RunCalibration(cmd.Context(), s.cfg, opts, cmd.OutOrStdout()))
		},
	}
	cmd.Flags().IntVar(&opts.Points, "points", calibration.DefaultPoints, "Points in the benchmark batch.")
	cmd.Flags().IntVar(&opts.MaxIter, "bench-iter", calibration.DefaultMaxIter, "Iteration budget of the benchmark batch.")
	cmd.Flags().IntVar(&opts.Trials, "trials", calibration.DefaultTrials, "Timed trials per worker count.")
	cmd.Flags().IntSliceVar(&opts.Candidates, "candidates", nil, "Worker counts to try (default: powers of two up to the CPU count).")
	return cmd
}
