package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/sessiontrack/internal/adapters/repository"
	"github.com/okian/sessiontrack/pkg/logger"
)

func newMigrateCmd(c *cli) *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := c.cfg.DatabasePath
			if cmd.Flags().Changed("database") {
				path = database
			}

			store, err := repository.Open(cmd.Context(), path, repository.WithLogger(logger.Named("repository")))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			v, err := store.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d (latest %d)\n", path, v, repository.LatestSchemaVersion())
			return nil
		},
	}
	cmd.Flags().StringVar(&database, "database", "", "SQLite database path (overrides database_path)")
	return cmd
}
