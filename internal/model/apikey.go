package model

import (
	"strings"
	"time"
)

type Environment string

const (
	EnvProduction Environment = "production"
	EnvSandbox    Environment = "sandbox"
)

func (e Environment) String() string { return string(e) }

func (e Environment) Valid() bool {
	return e == EnvProduction || e == EnvSandbox
}

// ParseEnvironment normalizes input; empty => production.
// Returns (value, true) if valid; otherwise (production, false).
func ParseEnvironment(s string) (Environment, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "production":
		return EnvProduction, true
	case "sandbox":
		return EnvSandbox, true
	default:
		return EnvProduction, false
	}
}

// APIKey is an integration credential owned by a business.
// The raw secret is handed out exactly once, at creation.
type APIKey struct {
	ID          int64       `db:"id"`
	BusinessID  int64       `db:"business_id"`
	Key         string      `db:"api_key"`
	Name        string      `db:"name"`
	Environment Environment `db:"environment"`
	IsActive    bool        `db:"is_active"`
	LastUsedAt  *time.Time  `db:"last_used_at"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}
