package worker

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/perkhub/loyalty-gateway/internal/config"
	"github.com/perkhub/loyalty-gateway/internal/db"
	"github.com/perkhub/loyalty-gateway/internal/logger"
	"github.com/perkhub/loyalty-gateway/internal/metrics"
	"github.com/perkhub/loyalty-gateway/internal/repository"
	"github.com/perkhub/loyalty-gateway/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var webhooksCmd = &cobra.Command{
	Use:   "webhooks",
	Short: "Run the webhook delivery worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		metrics.MustRegister(prometheus.DefaultRegisterer)

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

		// 3) worker
		w := worker.NewDeliveryWorker(repository.NewDeliveriesRepository(dbx), zlog)
		if cfg.Webhooks.Timeout > 0 {
			w.Client = &http.Client{Timeout: cfg.Webhooks.Timeout}
		}
		if cfg.Webhooks.WorkerCount > 0 {
			w.Workers = cfg.Webhooks.WorkerCount
		}
		if cfg.Webhooks.BatchSize > 0 {
			w.BatchSize = cfg.Webhooks.BatchSize
		}
		if cfg.Webhooks.MaxAttempts > 0 {
			w.MaxAttempts = cfg.Webhooks.MaxAttempts
		}
		if cfg.Webhooks.Interval > 0 {
			w.Interval = cfg.Webhooks.Interval
		}
		if cfg.Webhooks.BackoffBase > 0 {
			w.BackoffBase = cfg.Webhooks.BackoffBase
		}
		w.SetBreaker(cfg.Webhooks.Breaker.FailThreshold,
			time.Duration(cfg.Webhooks.Breaker.OpenForMs)*time.Millisecond)

		// 4) graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> webhook delivery worker started workers=%d batchSize=%d interval=%s maxAttempts=%d",
			w.Workers, w.BatchSize, w.Interval, w.MaxAttempts)

		return w.Run(ctx)
	},
}
