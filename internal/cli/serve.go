package cli

import (
	"github.com/kroma-labs/httprequester/echoserver"
	"github.com/spf13/cobra"
)

func (a *app) newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the echo server",
		Long: `Run the echo server used to exercise clients: /headers, /content,
/query, /delay/{ms}, /status/{code} and /flaky/{n}. Set telemetry.prometheus
to expose /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return echoserver.New(a.cfg.ServerOptions(a.runtime)...).ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (default server.addr)")
	return cmd
}
