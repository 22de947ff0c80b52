package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/perkhub/loyalty-gateway/internal/config"
	"github.com/perkhub/loyalty-gateway/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo businesses and API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// 2) connect MySQL
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

		log.Println(">> Seeding demo businesses...")

		if err := seedBusinesses(sqlDB); err != nil {
			return err
		}
		if err := seedAPIKeys(sqlDB); err != nil {
			return err
		}
		if err := seedRewards(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

type seedBusiness struct {
	ID           int64
	Name         string
	Status       string
	RateLimitRPS *int
}

// seedBusinesses inserts deterministic demo businesses (idempotent).
func seedBusinesses(dbx *sqlx.DB) error {
	businesses := []seedBusiness{
		{ID: 1, Name: "Acme Coffee", Status: "active", RateLimitRPS: intptr(20)},
		{ID: 2, Name: "Foobar Outfitters", Status: "active", RateLimitRPS: intptr(50)},
		{ID: 3, Name: "Beta Bakery", Status: "active", RateLimitRPS: intptr(5)},
		{ID: 4, Name: "Suspended Inc", Status: "suspended", RateLimitRPS: nil},
	}

	const q = `
INSERT INTO businesses
    (id, name, status, rate_limit_rps, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name           = VALUES(name),
    status         = VALUES(status),
    rate_limit_rps = VALUES(rate_limit_rps),
    updated_at     = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	for _, b := range businesses {
		if _, err := tx.Exec(q, b.ID, b.Name, b.Status, b.RateLimitRPS, now, now); err != nil {
			return fmt.Errorf("insert business %q: %w", b.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit businesses: %w", err)
	}
	return nil
}

type seedKey struct {
	BusinessID  int64
	Key         string
	Name        string
	Environment string
	IsActive    bool
}

// seedAPIKeys inserts fixed keys per business: one production, one sandbox,
// and a revoked key for testing 401 paths (idempotent on api_key UNIQUE).
func seedAPIKeys(dbx *sqlx.DB) error {
	keys := []seedKey{
		{BusinessID: 1, Key: "11111111111111111111111111111111", Name: "acme-prod", Environment: "production", IsActive: true},
		{BusinessID: 1, Key: "1111111111111111111111111111sbox", Name: "acme-sandbox", Environment: "sandbox", IsActive: true},
		{BusinessID: 2, Key: "22222222222222222222222222222222", Name: "foobar-prod", Environment: "production", IsActive: true},
		{BusinessID: 2, Key: "2222222222222222222222222revoked", Name: "foobar-old", Environment: "production", IsActive: false},
		{BusinessID: 3, Key: "33333333333333333333333333333333", Name: "beta-prod", Environment: "production", IsActive: true},
		{BusinessID: 4, Key: "44444444444444444444444444444444", Name: "suspended-prod", Environment: "production", IsActive: true},
	}

	const q = `
INSERT INTO api_keys
    (business_id, api_key, name, environment, is_active, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name        = VALUES(name),
    environment = VALUES(environment),
    is_active   = VALUES(is_active),
    updated_at  = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	for _, k := range keys {
		if _, err := tx.Exec(q, k.BusinessID, k.Key, k.Name, k.Environment, k.IsActive, now, now); err != nil {
			return fmt.Errorf("insert api key %q: %w", k.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit api keys: %w", err)
	}
	return nil
}

// seedRewards gives each active business a starter catalog (idempotent on id).
func seedRewards(dbx *sqlx.DB) error {
	type seedReward struct {
		ID             string
		BusinessID     int64
		Title          string
		PointsRequired int64
	}
	rewards := []seedReward{
		{ID: "01SEEDREWARD00000000000001", BusinessID: 1, Title: "Free Espresso", PointsRequired: 50},
		{ID: "01SEEDREWARD00000000000002", BusinessID: 1, Title: "Free Lunch", PointsRequired: 200},
		{ID: "01SEEDREWARD00000000000003", BusinessID: 2, Title: "10% Off Coupon", PointsRequired: 100},
		{ID: "01SEEDREWARD00000000000004", BusinessID: 3, Title: "Free Croissant", PointsRequired: 30},
	}

	const q = `
INSERT INTO rewards
    (id, business_id, title, points_required, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    title           = VALUES(title),
    points_required = VALUES(points_required),
    updated_at      = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	for _, r := range rewards {
		if _, err := tx.Exec(q, r.ID, r.BusinessID, r.Title, r.PointsRequired, now, now); err != nil {
			return fmt.Errorf("insert reward %q: %w", r.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rewards: %w", err)
	}
	return nil
}

func intptr(i int) *int { return &i }
