package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/perkhub/loyalty-gateway/internal/config"
	"github.com/perkhub/loyalty-gateway/internal/db"
	"github.com/perkhub/loyalty-gateway/internal/kafka"
	"github.com/perkhub/loyalty-gateway/internal/logger"
	"github.com/perkhub/loyalty-gateway/internal/repository"
	"github.com/perkhub/loyalty-gateway/internal/worker"
	"github.com/spf13/cobra"
)

var archiverCmd = &cobra.Command{
	Use:   "archiver",
	Short: "Run the event archiver (Kafka -> ClickHouse)",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		zlog := logger.New(cfg.Log.Level)
		defer func() { _ = zlog.Sync() }()

		// 2) ClickHouse connection
		chDB, err := db.NewClickHouse(cfg.ClickHouse.DSN, db.Opts{
			MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
			MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
			ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
			PingTimeout:     cfg.ClickHouse.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer chDB.Close()

		// 3) kafka consumer
		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = "loygw-archiver"
		}
		consumer := kafka.NewConsumerFromConfig(kafka.Config{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          cfg.Kafka.EventsTopic,
			GroupID:        groupID,
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		})
		defer consumer.Close()

		a := worker.NewArchiver(consumer, repository.NewEventArchiveRepository(chDB), zlog)

		// tune knobs
		if cfg.Archiver.WorkerCount > 0 {
			a.Workers = cfg.Archiver.WorkerCount
		}
		if cfg.Archiver.BatchSize > 0 {
			a.BatchSize = cfg.Archiver.BatchSize
		}
		if cfg.Archiver.BatchWait > 0 {
			a.BatchWait = cfg.Archiver.BatchWait
		}

		// 4) graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> archiver started topic=%s group=%s workers=%d batchSize=%d batchWait=%s",
			cfg.Kafka.EventsTopic, groupID, a.Workers, a.BatchSize, a.BatchWait)

		return a.Run(ctx)
	},
}
