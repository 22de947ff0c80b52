package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/perkhub/loyalty-gateway/internal/config"
	"github.com/perkhub/loyalty-gateway/internal/db"
	"github.com/perkhub/loyalty-gateway/internal/model"
	"github.com/perkhub/loyalty-gateway/internal/repository"
	"github.com/perkhub/loyalty-gateway/internal/util"
	"github.com/spf13/cobra"
)

var (
	keygenBusinessID int64
	keygenName       string
	keygenEnv        string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an API key for a business",
	RunE: func(cmd *cobra.Command, args []string) error {
		if keygenBusinessID <= 0 {
			return fmt.Errorf("--business is required")
		}
		env, ok := model.ParseEnvironment(keygenEnv)
		if !ok {
			return fmt.Errorf("invalid --env %q (production|sandbox)", keygenEnv)
		}

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQL(cfg.MySQL.DSN, db.Opts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		k := &model.APIKey{
			BusinessID:  keygenBusinessID,
			Key:         util.NewSecret(16),
			Name:        keygenName,
			Environment: env,
			IsActive:    true,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := repository.NewAPIKeysRepository(sqlDB).Insert(ctx, k); err != nil {
			return fmt.Errorf("insert api key: %w", err)
		}

		// The raw key is printed exactly once; only use it in X-API-Key headers.
		fmt.Printf("business=%d env=%s name=%q\napi_key=%s\n", k.BusinessID, k.Environment, k.Name, k.Key)
		return nil
	},
}

func init() {
	keygenCmd.Flags().Int64Var(&keygenBusinessID, "business", 0, "business id the key belongs to")
	keygenCmd.Flags().StringVar(&keygenName, "name", "", "human-readable key label")
	keygenCmd.Flags().StringVar(&keygenEnv, "env", "production", "environment (production|sandbox)")
	rootCmd.AddCommand(keygenCmd)
}
