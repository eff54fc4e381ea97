package commands

import (
	"github.com/spf13/cobra"

	"github.com/agbru/mandelarea/internal/results"
)

// estimate: one estimate per selected method.
func estimateCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the area once with each selected method",
		Example: `  mandelarea estimate -n 1000000 -i 200
  mandelarea estimate --method ortho --grid 1000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exit(s.app.RunEstimate(cmd.Context(), cmd.OutOrStdout()))
		},
	}
}

// sweep, repeat, iterations: run an experiment and store its series.
func experimentCmd(s *session, name, short string) *cobra.Command {
	e := results.Experiment(name)
	return &cobra.Command{
		Use:   name,
		Short: short,
		Long: short + `.

Each method's series is written to the result store, one
"<samples> <iterations> <area>" line per run. The reference area is
computed first when it is not cached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exit(s.app.RunExperiment(cmd.Context(), e, cmd.OutOrStdout()))
		},
	}
}

// true-area: print the reference area, computing it if needed.
func trueAreaCmd(s *session) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "true-area",
		Short: "Print the cached reference area, computing it if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exit(s.app.RunTrueArea(cmd.Context(), force, cmd.OutOrStdout()))
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "recompute and overwrite the cached value")
	return cmd
}

// stats: summarise a stored experiment.
func statsCmd(s *session) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise a stored experiment against the reference area",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := results.ParseExperiment(name)
			if err != nil {
				return err
			}
			return exit(s.app.RunStats(cmd.Context(), e, cmd.OutOrStdout()))
		},
	}
	cmd.Flags().StringVarP(&name, "experiment", "e", string(results.Repeat), "experiment to summarise: sweep, repeat or iterations")
	return cmd
}
