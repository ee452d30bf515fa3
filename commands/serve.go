package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"power_dashboard/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard JSON API",
	Long: `Start the HTTP server. Each browser session gets its own table,
history and chart controls, kept in memory until the session expires.

Example:
  powerdash serve --addr :9090`,
	Annotations: withLogging,
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.Server.Address = serveAddr
		}

		sink, closeDB, err := openSink(false)
		if err != nil {
			warningColor.Fprintf(cmd.ErrOrStderr(), "Database export disabled: %v\n", err)
		}
		defer closeDB()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "⚡ Power dashboard\n")
		fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		fmt.Fprintf(out, "📊 API:     http://localhost%s/api/table\n", cfg.Server.Address)
		fmt.Fprintf(out, "🩺 Health:  http://localhost%s/healthz\n", cfg.Server.Address)
		if sink != nil {
			fmt.Fprintf(out, "💾 Database export: %s\n", cfg.Database.Driver)
		}
		fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

		return server.New(cfg, sink).Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.address from config)")
	AddCommand(serveCmd)
}
