package cli

import (
	"fmt"
	"os"

	"jobtracker-backend/internal/di"
	"jobtracker-backend/pkg/config"

	"github.com/spf13/cobra"
	"go.uber.org/dig"
)

var configFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "jobtracker",
	Short: "Job application mail tracker backend",
	Long: `jobtracker syncs a job seeker's mailbox, classifies each new message
with a language model, and keeps a per-company rollup of the application.

Examples:
  jobtracker serve                              # HTTP API, daily sweep and push sync
  jobtracker migrate                            # create or update the schema
  jobtracker sync --owner me@example.com        # one incremental sync
  jobtracker sweep --date 2024-06-01            # re-sync one civil day for every owner`,
	SilenceUsage: true,
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./configs/config.yaml or ./config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(sweepCmd)
}

// loadContainer reads the configuration and registers every component.
func loadContainer() (*config.Config, *dig.Container, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	c, err := di.BuildContainer(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build container: %w", err)
	}
	return cfg, c, nil
}
