package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and plugin installer without a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			core, err := e.newCore()
			if err != nil {
				return err
			}
			defer core.Close()

			slog.Info("starting headless", "edition", e.edition.Name, "version", e.build.Version, "addr", core.Addr())
			return core.Serve(ctx)
		},
	}
}
