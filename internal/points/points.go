// Package points holds the point-ledger math. Everything here is pure: the
// same inputs must yield the same outputs at award time and at reversal time,
// otherwise balances drift.
package points

// ForAmount maps a monetary amount (minor currency units) to the points it
// earns: one point per 100 units, truncated toward zero. Callers validate
// amount > 0 before calling.
func ForAmount(amount int64) int64 {
	return amount / 100
}

// UpdateDelta returns the signed balance adjustment when a transaction's
// amount is edited from oldAmount to newAmount.
func UpdateDelta(oldAmount, newAmount int64) int64 {
	return ForAmount(newAmount) - ForAmount(oldAmount)
}
