package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/sessiontrack/internal/config"
	"github.com/okian/sessiontrack/pkg/logger"
)

// cli holds state shared by the command tree.
type cli struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "sessiontrack",
		Short: "Behavioral data collection for therapy sessions",
		Long: `sessiontrack records behavior and skill events during timed therapy
sessions and aggregates them into per-date chart series.

Configuration is layered: defaults, then the YAML file named by --config or
SESSIONTRACK_CONFIG, then SESSIONTRACK_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (overrides SESSIONTRACK_CONFIG)")

	root.AddCommand(newServeCmd(c), newMigrateCmd(c), newSimulateCmd(), newVersionCmd())
	return root
}

// setup loads configuration and initializes logging before any subcommand.
func (c *cli) setup(cmd *cobra.Command) error {
	if c.configPath != "" {
		if err := os.Setenv("SESSIONTRACK_CONFIG", c.configPath); err != nil {
			return fmt.Errorf("set config path: %w", err)
		}
	}
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}
	c.cfg = cfg

	if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr()), logger.WithJSON(cfg.LogJSON)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Version needs neither config nor logging.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "sessiontrack", version)
		},
	}
}
