// Package commands implements the jobctl operator CLI.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/job-dispatcher/internal/config"
	"github.com/cuongbtq/job-dispatcher/internal/jobs/storage"
	"github.com/cuongbtq/job-dispatcher/shared/database"
	"github.com/cuongbtq/job-dispatcher/shared/logger"
)

const defaultConfigPath = "configs/api-service/config.yaml"

// options are shared by every subcommand
type options struct {
	configPath string
	verbose    bool
	timeout    time.Duration
}

// NewRootCmd builds the jobctl command tree
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "jobctl",
		Short: "Operate the job dispatcher database",
		Long: `jobctl manages the job dispatcher's store.

Examples:
  jobctl migrate up                     # Apply pending migrations
  jobctl seed --count 22                # Insert sample pending jobs
  jobctl stats                          # Show job counts per status
  jobctl list --status failed --limit 5 # Show the newest failed jobs`,
		SilenceUsage: true,
	}

	configDefault := os.Getenv("API_SERVICE_CONFIG_PATH")
	if configDefault == "" {
		configDefault = defaultConfigPath
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", configDefault, "Path to configuration file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log database activity")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", time.Minute, "Maximum time for the command")

	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newSeedCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	root.AddCommand(newListCmd(opts))

	return root
}

// session is an open database plus the store on top of it
type session struct {
	client *database.Client
	store  *storage.Storage
	logger *slog.Logger
}

func (s *session) Close() error {
	return s.client.Close()
}

func (o *options) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

// open loads the config and connects to the configured database
func (o *options) open(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level := "warn"
	if o.verbose {
		level = "debug"
	}
	log, err := logger.New(&logger.Config{
		Level:      level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.TimeOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	client, err := database.NewClient(cfg.DatabaseClientConfig(), log.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &session{
		client: client,
		store:  storage.NewStorage(client.GetDB(), log.Logger),
		logger: log.Logger,
	}, nil
}
