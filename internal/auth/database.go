package auth

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

func (d *Database) CreateCredential(cred *Credential) error {
	return d.db.Create(cred).Error
}

func (d *Database) GetCredential(keyID string) (*Credential, error) {
	var cred Credential
	if err := d.db.Where("key_id = ?", keyID).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

func (d *Database) ListCredentials() ([]Credential, error) {
	var creds []Credential
	if err := d.db.Order("created_at desc").Find(&creds).Error; err != nil {
		return nil, err
	}
	return creds, nil
}

// RevokeCredential flags a credential; returns gorm.ErrRecordNotFound when
// the key id does not exist.
func (d *Database) RevokeCredential(keyID string) error {
	res := d.db.Model(&Credential{}).Where("key_id = ?", keyID).Update("revoked", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// InsertNonce records a nonce atomically. A duplicate-key failure means the
// pair was already seen; the insert only succeeds for a fresh pair or for one
// whose previous record has expired.
func (d *Database) InsertNonce(keyID, nonce string, now, expiry time.Time) error {
	rec := NonceRecord{KeyID: keyID, Nonce: nonce, ExpiresAt: expiry}
	err := d.db.Create(&rec).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}

	// The pair exists. Re-arm it only if the old record has expired; the
	// guarded UPDATE keeps concurrent re-arms from both succeeding.
	res := d.db.Model(&NonceRecord{}).
		Where("key_id = ? AND nonce = ? AND expires_at <= ?", keyID, nonce, now).
		Update("expires_at", expiry)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrDuplicatedKey
	}
	return nil
}

// PurgeExpiredNonces removes records past their expiry.
func (d *Database) PurgeExpiredNonces(now time.Time) (int64, error) {
	res := d.db.Unscoped().Where("expires_at <= ?", now).Delete(&NonceRecord{})
	return res.RowsAffected, res.Error
}
