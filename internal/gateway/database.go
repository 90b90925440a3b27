package gateway

import (
	"errors"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateSignalRecord(rec *SignalRecord) error {
	return d.db.Create(rec).Error
}

func (d *Database) GetSignalRecord(signalID string) (*SignalRecord, error) {
	var rec SignalRecord
	if err := d.db.Where("signal_id = ?", signalID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}
