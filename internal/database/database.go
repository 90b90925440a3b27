package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tradegate/signal-gateway/internal/auth"
	"github.com/tradegate/signal-gateway/internal/gateway"
	"github.com/tradegate/signal-gateway/internal/ledger"
)

// New opens the gateway database and migrates the schema. TranslateError is
// required: unique-index violations must surface as gorm.ErrDuplicatedKey,
// which is what makes the nonce and ledger check-and-insert operations atomic
// signals rather than races.
func New(path string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s?_busy_timeout=5000", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	// sqlite handles one writer at a time; a single pooled connection keeps
	// concurrent check-and-insert operations serialized instead of erroring.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&auth.Credential{},
		&auth.NonceRecord{},
		&ledger.IdempotencyRecord{},
		&gateway.SignalRecord{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
