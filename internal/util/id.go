package util

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string, used for customer/transaction/redemption/
// webhook/delivery IDs.
func New() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.Reader, 0)

	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// NewSecret returns n random bytes hex-encoded. Used for API keys and
// webhook signing secrets.
func NewSecret(n int) string {
	if n <= 0 {
		n = 32
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}

	return hex.EncodeToString(b)
}
