// Package ledger provides the reserve-then-commit idempotency primitive: for
// a given key, at most one caller ever gets a fresh reservation; everyone
// else observes the in-progress or terminal state. This is what makes
// retried signal deliveries safe to replay without double-executing a trade.
package ledger

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tradegate/signal-gateway/internal/types"
)

// ErrNotReserved is returned by Commit/Fail when the key is not in Reserved
// state. It indicates a logic fault upstream and must not overwrite history.
var ErrNotReserved = errors.New("idempotency key is not in reserved state")

// Status is the outcome of a reservation attempt.
type Status int

const (
	Fresh Status = iota
	AlreadyReserved
	AlreadyCompleted
	AlreadyFailed
)

// Outcome carries the reservation status plus the stored result or error for
// terminal states.
type Outcome struct {
	Status       Status
	Result       *types.ExecutionResult
	ErrorKind    types.ErrorKind
	ErrorMessage string
}

// Ledger enforces at-most-one execution per idempotency key.
type Ledger struct {
	db        *Database
	retention time.Duration
	liveness  time.Duration

	now func() time.Time
}

// New creates a ledger. retention bounds how long terminal records are kept;
// liveness bounds how long a reservation may sit uncommitted before it is
// treated as abandoned.
func New(gormDB *gorm.DB, retention, liveness time.Duration) *Ledger {
	return &Ledger{
		db:        NewDatabase(gormDB),
		retention: retention,
		liveness:  liveness,
		now:       time.Now,
	}
}

// Reserve atomically claims key for execution. The insert against the unique
// index is the critical section: exactly one concurrent caller receives
// Fresh. A duplicate hit is resolved to the existing record's state. An
// expired record starts a new series, and a Reserved record past the liveness
// timeout is reclaimed in place.
func (l *Ledger) Reserve(key string) (Outcome, error) {
	now := l.now()
	rec := IdempotencyRecord{
		Key:        key,
		State:      StateReserved,
		ReservedAt: now,
		ExpiresAt:  now.Add(l.retention),
	}

	err := l.db.Insert(&rec)
	if err == nil {
		return Outcome{Status: Fresh}, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return Outcome{}, err
	}

	existing, err := l.db.Get(key)
	if err != nil {
		return Outcome{}, err
	}
	if existing == nil {
		// Purged between insert and read; one retry is enough because the
		// second insert conflict would mean someone else owns the new series.
		if err := l.db.Insert(&rec); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return Outcome{Status: AlreadyReserved}, nil
			}
			return Outcome{}, err
		}
		return Outcome{Status: Fresh}, nil
	}

	if !existing.ExpiresAt.After(now) {
		deleted, err := l.db.DeleteExpired(key, now)
		if err != nil {
			return Outcome{}, err
		}
		if deleted {
			if err := l.db.Insert(&rec); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return Outcome{Status: AlreadyReserved}, nil
				}
				return Outcome{}, err
			}
			return Outcome{Status: Fresh}, nil
		}
		// Someone else won the purge race; fall through on their record.
		if existing, err = l.db.Get(key); err != nil || existing == nil {
			return Outcome{Status: AlreadyReserved}, err
		}
	}

	switch existing.State {
	case StateCompleted:
		var result types.ExecutionResult
		if err := json.Unmarshal([]byte(existing.Result), &result); err != nil {
			log.Error().Err(err).Str("idempotency_key", key).
				Msg("stored execution result is unreadable")
			return Outcome{}, err
		}
		return Outcome{Status: AlreadyCompleted, Result: &result}, nil

	case StateFailed:
		return Outcome{
			Status:       AlreadyFailed,
			ErrorKind:    types.ErrorKind(existing.ErrorKind),
			ErrorMessage: existing.ErrorMessage,
		}, nil

	default:
		cutoff := now.Add(-l.liveness)
		if !existing.ReservedAt.After(cutoff) {
			reclaimed, err := l.db.Reclaim(key, cutoff, now, now.Add(l.retention))
			if err != nil {
				return Outcome{}, err
			}
			if reclaimed {
				log.Warn().Str("idempotency_key", key).
					Msg("abandoned reservation reclaimed")
				return Outcome{Status: Fresh}, nil
			}
		}
		return Outcome{Status: AlreadyReserved}, nil
	}
}

// Commit transitions a Reserved key to Completed with its result.
func (l *Ledger) Commit(key string, result *types.ExecutionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	ok, err := l.db.Transition(key, StateCompleted, string(payload), "", "")
	if err != nil {
		return err
	}
	if !ok {
		log.Error().Str("idempotency_key", key).
			Msg("commit on a key that is not reserved")
		return ErrNotReserved
	}
	return nil
}

// Fail transitions a Reserved key to Failed with the error that stopped it.
func (l *Ledger) Fail(key string, kind types.ErrorKind, message string) error {
	ok, err := l.db.Transition(key, StateFailed, "", string(kind), message)
	if err != nil {
		return err
	}
	if !ok {
		log.Error().Str("idempotency_key", key).
			Msg("fail on a key that is not reserved")
		return ErrNotReserved
	}
	return nil
}
