package model

import "time"

// Redemption records a reward claim. PointsSpent snapshots the reward's
// points_required at creation time, so deleting the redemption restores
// exactly what was deducted even if the reward was re-priced in between.
type Redemption struct {
	ID          string    `db:"id"` // ULID
	BusinessID  int64     `db:"business_id"`
	CustomerID  string    `db:"customer_id"`
	RewardID    string    `db:"reward_id"`
	PointsSpent int64     `db:"points_spent"`
	Date        time.Time `db:"date"`
	CreatedAt   time.Time `db:"created_at"`
}
