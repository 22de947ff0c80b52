package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/perkhub/loyalty-gateway/internal/config"
	"github.com/perkhub/loyalty-gateway/internal/db"
	"github.com/perkhub/loyalty-gateway/internal/idempotency"
	"github.com/perkhub/loyalty-gateway/internal/logger"
	"github.com/perkhub/loyalty-gateway/internal/repository"
	"github.com/perkhub/loyalty-gateway/internal/worker"
	"github.com/spf13/cobra"
)

var sweeperCmd = &cobra.Command{
	Use:   "sweeper",
	Short: "Run the idempotency key sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		zlog := logger.New(cfg.Log.Level)
		defer func() { _ = zlog.Sync() }()

		// 2) DB connection (MySQL)
		dbx, err := db.NewMySQL(cfg.MySQL.DSN, db.Opts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer dbx.Close()

		store := idempotency.NewStore(repository.NewIdempotencyRepository(dbx), cfg.Idempotency.TTL, zlog)
		s := worker.NewSweeper(store, zlog, cfg.Idempotency.SweepInterval)

		// 3) graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> idempotency sweeper started interval=%s ttl=%s", s.Interval, cfg.Idempotency.TTL)

		return s.Run(ctx)
	},
}
