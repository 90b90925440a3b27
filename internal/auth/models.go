package auth

import (
	"time"

	"gorm.io/gorm"
)

// Credential is an issued signing credential. Immutable once issued except
// for the revocation flag.
type Credential struct {
	gorm.Model `json:"-"`
	KeyID      string    `gorm:"uniqueIndex" json:"key_id"`
	Secret     string    `json:"-"`
	Revoked    bool      `json:"revoked"`
	CreatedAt  time.Time `json:"created_at"`
}

// NonceRecord marks a (key, nonce) pair as seen. Existence of a live record
// is the replay signal; the composite unique index makes the check-and-insert
// a single atomic operation.
type NonceRecord struct {
	gorm.Model `json:"-"`
	KeyID      string    `gorm:"uniqueIndex:idx_key_nonce" json:"key_id"`
	Nonce      string    `gorm:"uniqueIndex:idx_key_nonce" json:"nonce"`
	ExpiresAt  time.Time `gorm:"index" json:"expires_at"`
}
