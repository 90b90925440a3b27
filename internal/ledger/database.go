package ledger

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) Insert(rec *IdempotencyRecord) error {
	return d.db.Create(rec).Error
}

func (d *Database) Get(key string) (*IdempotencyRecord, error) {
	var rec IdempotencyRecord
	if err := d.db.Where("key = ?", key).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// DeleteExpired removes a specific record only if it is past expiry; the
// guard keeps a concurrent purge-and-reinsert race from deleting live state.
func (d *Database) DeleteExpired(key string, now time.Time) (bool, error) {
	res := d.db.Unscoped().
		Where("key = ? AND expires_at <= ?", key, now).
		Delete(&IdempotencyRecord{})
	return res.RowsAffected == 1, res.Error
}

// Reclaim re-arms an abandoned reservation in place. Only succeeds when the
// record is still Reserved and was reserved at or before cutoff, so exactly
// one of any number of concurrent reclaimers wins.
func (d *Database) Reclaim(key string, cutoff, now, expiry time.Time) (bool, error) {
	res := d.db.Model(&IdempotencyRecord{}).
		Where("key = ? AND state = ? AND reserved_at <= ?", key, StateReserved, cutoff).
		Updates(map[string]interface{}{"reserved_at": now, "expires_at": expiry})
	return res.RowsAffected == 1, res.Error
}

// Transition moves a Reserved record to a terminal state. RowsAffected zero
// means the record was not in Reserved state.
func (d *Database) Transition(key, state, result, errKind, errMsg string) (bool, error) {
	res := d.db.Model(&IdempotencyRecord{}).
		Where("key = ? AND state = ?", key, StateReserved).
		Updates(map[string]interface{}{
			"state":         state,
			"result":        result,
			"error_kind":    errKind,
			"error_message": errMsg,
		})
	return res.RowsAffected == 1, res.Error
}

// PurgeExpired drops every record past its retention expiry.
func (d *Database) PurgeExpired(now time.Time) (int64, error) {
	res := d.db.Unscoped().Where("expires_at <= ?", now).Delete(&IdempotencyRecord{})
	return res.RowsAffected, res.Error
}

// FailAbandoned converts Reserved records older than cutoff to Failed so a
// stuck reservation cannot block its key past the liveness timeout.
func (d *Database) FailAbandoned(cutoff time.Time, errKind, errMsg string) (int64, error) {
	res := d.db.Model(&IdempotencyRecord{}).
		Where("state = ? AND reserved_at <= ?", StateReserved, cutoff).
		Updates(map[string]interface{}{
			"state":         StateFailed,
			"error_kind":    errKind,
			"error_message": errMsg,
		})
	return res.RowsAffected, res.Error
}
