package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	gateway "github.com/dmitrymomot/eventgateway"
	"github.com/dmitrymomot/eventgateway/core/config"
	"github.com/dmitrymomot/eventgateway/core/logger"
	"github.com/dmitrymomot/eventgateway/integration/database/pg"
	"github.com/dmitrymomot/eventgateway/integration/database/redis"
	"github.com/dmitrymomot/eventgateway/integration/eventlog/pgstore"
	"github.com/dmitrymomot/eventgateway/integration/metrics/redisagg"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway",
	Long: `Run the HTTP API, WebSocket endpoint, dispatcher, lock reaper and
liveness monitor until interrupted.

Backends are selected with GATEWAY_STORE (memory, postgres) and
GATEWAY_AGGREGATOR (memory, redis).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var cfg gateway.Config
		if err := config.Load(&cfg); err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		migrate, _ := cmd.Flags().GetBool("migrate")

		log := newLogger(cfg)
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts := []gateway.Option{gateway.WithLogger(log)}

		switch cfg.Store {
		case gateway.BackendMemory:
			log.WarnContext(ctx, "using in-memory event log, events are lost on restart")
		case gateway.BackendPostgres:
			var pgCfg pg.Config
			if err := config.Load(&pgCfg); err != nil {
				return err
			}
			pool, err := pg.Connect(ctx, pgCfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			if migrate {
				if err := pg.Migrate(ctx, pool, pgstore.Migrations(), pgCfg.MigrationsTable, log); err != nil {
					return err
				}
			}
			store, err := pgstore.New(pool, pgstore.WithLogger(log.With(logger.Component("pgstore"))))
			if err != nil {
				return err
			}
			opts = append(opts, gateway.WithStore(store), gateway.WithHealthcheck(pg.Healthcheck(pool)))
		default:
			return fmt.Errorf("%w: GATEWAY_STORE=%q", gateway.ErrUnknownBackend, cfg.Store)
		}

		switch cfg.Aggregator {
		case gateway.BackendMemory:
		case gateway.BackendRedis:
			var redisCfg redis.Config
			if err := config.Load(&redisCfg); err != nil {
				return err
			}
			client, err := redis.Connect(ctx, redisCfg)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()
			agg := redisagg.NewFromConfig(cfg.Metrics, client, redisagg.WithLogger(log.With(logger.Component("redisagg"))))
			opts = append(opts, gateway.WithAggregator(agg), gateway.WithHealthcheck(redis.Healthcheck(client)))
		default:
			return fmt.Errorf("%w: GATEWAY_AGGREGATOR=%q", gateway.ErrUnknownBackend, cfg.Aggregator)
		}

		gw, err := gateway.New(cfg, opts...)
		if err != nil {
			return err
		}
		if err := gw.Run(ctx); err != nil {
			return err
		}
		log.InfoContext(context.WithoutCancel(ctx), "shutdown complete", slog.String("addr", cfg.Server.Addr))
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address, overrides SERVER_ADDR")
	serveCmd.Flags().Bool("migrate", false, "apply event log migrations before serving (postgres store only)")
}
