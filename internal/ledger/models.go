package ledger

import (
	"time"

	"gorm.io/gorm"
)

// Record states. A record is created Reserved and transitions to Completed or
// Failed exactly once; after that it is immutable until expiry-driven purge.
const (
	StateReserved  = "RESERVED"
	StateCompleted = "COMPLETED"
	StateFailed    = "FAILED"
)

// IdempotencyRecord maps an idempotency key to the outcome of a previously
// executed signal. The unique index on Key is what makes reservation an
// atomic check-and-insert.
type IdempotencyRecord struct {
	gorm.Model   `json:"-"`
	Key          string    `gorm:"uniqueIndex" json:"idempotency_key"`
	State        string    `json:"state"`
	Result       string    `json:"result,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ReservedAt   time.Time `json:"reserved_at"`
	ExpiresAt    time.Time `gorm:"index" json:"expires_at"`
}
