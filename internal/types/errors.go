package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies every way a request can fail. Authentication, throttle
// and validation kinds are rejected before any side effect; execution kinds
// occur after a reservation and are committed to the idempotency ledger.
type ErrorKind string

const (
	// Authentication failures.
	KindUnknownKey      ErrorKind = "UNKNOWN_KEY"
	KindRevoked         ErrorKind = "REVOKED"
	KindBadSignature    ErrorKind = "BAD_SIGNATURE"
	KindStaleTimestamp  ErrorKind = "STALE_TIMESTAMP"
	KindFutureTimestamp ErrorKind = "FUTURE_TIMESTAMP"
	KindReplayedNonce   ErrorKind = "REPLAYED_NONCE"

	// Throttling.
	KindRateLimited ErrorKind = "RATE_LIMITED"

	// Validation failures.
	KindValidation  ErrorKind = "VALIDATION_FAILED"
	KindInvalidRisk ErrorKind = "INVALID_RISK"

	// Execution failures, recorded as ledger outcomes.
	KindTerminalUnavailable ErrorKind = "TERMINAL_UNAVAILABLE"
	KindRejectedOrder       ErrorKind = "REJECTED_ORDER"
	KindExecutionTimeout    ErrorKind = "EXECUTION_TIMEOUT"
	KindInProgress          ErrorKind = "EXECUTION_IN_PROGRESS"

	KindInternal ErrorKind = "INTERNAL_ERROR"
)

// GatewayError is the typed error carried through the pipeline. RetryAfter is
// only populated for rate-limit failures.
type GatewayError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds a GatewayError with the given kind and message.
func NewError(kind ErrorKind, format string, args ...interface{}) *GatewayError {
	return &GatewayError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind from err, falling back to INTERNAL_ERROR for
// anything that is not a GatewayError.
func KindOf(err error) ErrorKind {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}
