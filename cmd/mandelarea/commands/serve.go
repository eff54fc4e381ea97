package commands

import (
	"github.com/spf13/cobra"

	"github.com/agbru/mandelarea/internal/app"
)

// serve: HTTP API until interrupted.
func serveCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve estimates over HTTP",
		Long: `Serve estimates over HTTP on --port.

Endpoints: /estimate, /methods, /health and /metrics. Requests above
--max-samples points or --max-iter iterations are rejected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exit(s.app.RunServer(cmd.Context()))
		},
	}
}

// version: build information.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print build information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoApp: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			app.PrintVersion(cmd.OutOrStdout())
		},
	}
}
