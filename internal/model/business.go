package model

import "time"

// Business is the tenant: every other row is scoped to one of these.
type Business struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Status       string    `db:"status"`         // active|suspended
	RateLimitRPS *int      `db:"rate_limit_rps"` // nullable, falls back to config
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
