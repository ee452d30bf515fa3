package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"power_dashboard/config"
	"power_dashboard/logger"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "powerdash",
	Short: "Power dashboard: record, inspect, chart and export Power readings",
	Long: `Power dashboard keeps a table of timestamped Power readings, validates
typed values against the allowed range, computes statistics, draws charts and
exports the table as CSV, Excel or JSON with a short snapshot history.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = c
		if !needsLogging(cmd) {
			return nil
		}
		if err := logger.Init(cfg); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logger.LogCommand(os.Args[0], os.Args)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if needsLogging(cmd) {
			if err := logger.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to close logging: %v\n", err)
			}
		}
	},
}

// needsLogging determines which commands write a log file
func needsLogging(cmd *cobra.Command) bool {
	return cmd.Annotations["logging"] == "true"
}

var withLogging = map[string]string{"logging": "true"}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (default: ./config.yaml when present)")
}

// AddCommand allows adding subcommands from other files.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}
