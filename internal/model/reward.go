package model

import "time"

// Reward is a catalog entry customers spend points on. It cannot be deleted
// while redemptions reference it.
type Reward struct {
	ID             string    `db:"id"` // ULID
	BusinessID     int64     `db:"business_id"`
	Title          string    `db:"title"`
	Description    string    `db:"description"`
	PointsRequired int64     `db:"points_required"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}
