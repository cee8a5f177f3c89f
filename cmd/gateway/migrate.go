package main

import (
	"fmt"

	"github.com/spf13/cobra"

	gateway "github.com/dmitrymomot/eventgateway"
	"github.com/dmitrymomot/eventgateway/core/config"
	"github.com/dmitrymomot/eventgateway/integration/database/pg"
	"github.com/dmitrymomot/eventgateway/integration/eventlog/pgstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply event log migrations to Postgres",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var cfg gateway.Config
		if err := config.Load(&cfg); err != nil {
			return err
		}
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return err
		}
		log := newLogger(cfg)
		ctx := cmd.Context()

		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pg.Migrate(ctx, pool, pgstore.Migrations(), pgCfg.MigrationsTable, log); err != nil {
			return err
		}
		version, err := pg.Version(ctx, pool, pgstore.Migrations(), pgCfg.MigrationsTable)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "event log schema at version %d\n", version)
		return nil
	},
}
