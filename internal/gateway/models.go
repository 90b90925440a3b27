package gateway

import (
	"time"

	"gorm.io/gorm"
)

// SignalRecord is the audit trail row written for every signal that reached
// the execution stage, successful or not.
type SignalRecord struct {
	gorm.Model     `json:"-"`
	SignalID       string    `gorm:"uniqueIndex" json:"signal_id"`
	IdempotencyKey string    `gorm:"index" json:"idempotency_key"`
	KeyID          string    `json:"key_id"`
	Strategy       string    `json:"strategy"`
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"`
	Status         string    `json:"status"` // EXECUTED or FAILED
	OrderID        int64     `json:"order_id,omitempty"`
	PositionID     int64     `json:"position_id,omitempty"`
	ExecutedPrice  float64   `json:"executed_price,omitempty"`
	LotSize        float64   `json:"lot_size,omitempty"`
	ErrorKind      string    `json:"error_kind,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
