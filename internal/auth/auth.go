// Package auth verifies signed requests before they can cause money-moving
// side effects: HMAC signature, timestamp window, and nonce freshness, plus
// the credential store those checks run against.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tradegate/signal-gateway/internal/types"
)

// Header names carried by every signed request.
const (
	HeaderAPIKey    = "X-API-KEY"
	HeaderTimestamp = "X-TS"
	HeaderNonce     = "X-NONCE"
	HeaderSignature = "X-SIGNATURE"
)

// SignedRequest is the transient authentication view of an inbound call.
type SignedRequest struct {
	KeyID     string
	Timestamp string
	Nonce     string
	Signature string
	Method    string
	Path      string
	Body      []byte
}

// Service authenticates signed requests and manages credentials.
type Service struct {
	db          *Database
	tolerance   time.Duration
	minNonceLen int

	now func() time.Time
}

// NewService creates an authentication service. tolerance bounds the accepted
// clock skew in both directions.
func NewService(gormDB *gorm.DB, tolerance time.Duration, minNonceLen int) *Service {
	return &Service{
		db:          NewDatabase(gormDB),
		tolerance:   tolerance,
		minNonceLen: minNonceLen,
		now:         time.Now,
	}
}

// Sign computes the request signature: base64(HMAC-SHA256(secret,
// METHOD + path + body + timestamp + nonce)). Exported so clients and tests
// produce byte-identical signatures.
func Sign(secret, method, path string, body []byte, timestamp, nonce string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)
	mac.Write([]byte(timestamp))
	mac.Write([]byte(nonce))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Authenticate verifies a signed request. Check order: credential, signature,
// timestamp window, nonce. The nonce insert is the only state mutation and is
// atomic with its check, so two concurrent requests with the same nonce
// cannot both pass.
func (s *Service) Authenticate(req SignedRequest) (*Credential, error) {
	if req.KeyID == "" || req.Timestamp == "" || req.Nonce == "" || req.Signature == "" {
		return nil, types.NewError(types.KindValidation, "missing authentication headers")
	}

	cred, err := s.db.GetCredential(req.KeyID)
	if err != nil {
		return nil, types.NewError(types.KindInternal, "credential lookup failed")
	}
	if cred == nil {
		return nil, types.NewError(types.KindUnknownKey, "unknown api key")
	}
	if cred.Revoked {
		return nil, types.NewError(types.KindRevoked, "credential has been revoked")
	}

	expected := Sign(cred.Secret, req.Method, req.Path, req.Body, req.Timestamp, req.Nonce)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(req.Signature)) != 1 {
		return nil, types.NewError(types.KindBadSignature, "signature mismatch")
	}

	ts, err := strconv.ParseInt(req.Timestamp, 10, 64)
	if err != nil {
		return nil, types.NewError(types.KindValidation, "unparseable timestamp")
	}
	now := s.now()
	delta := now.Unix() - ts
	if delta > int64(s.tolerance.Seconds()) {
		return nil, types.NewError(types.KindStaleTimestamp, "timestamp outside tolerance window")
	}
	if -delta > int64(s.tolerance.Seconds()) {
		return nil, types.NewError(types.KindFutureTimestamp, "timestamp ahead of server clock")
	}

	if len(req.Nonce) < s.minNonceLen {
		return nil, types.NewError(types.KindValidation, "nonce too short")
	}
	if err := s.db.InsertNonce(cred.KeyID, req.Nonce, now, now.Add(s.tolerance)); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, types.NewError(types.KindReplayedNonce, "nonce already used")
		}
		return nil, types.NewError(types.KindInternal, "nonce store failure")
	}

	return cred, nil
}

// IssueCredential creates a new signing credential with a generated key id
// and secret. The secret is only available in the returned value.
func (s *Service) IssueCredential() (*Credential, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	cred := &Credential{
		KeyID:  "key_" + uuid.New().String(),
		Secret: hex.EncodeToString(buf),
	}
	if err := s.db.CreateCredential(cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// EnsureCredential registers the configured seed credential if it is absent.
func (s *Service) EnsureCredential(keyID, secret string) error {
	existing, err := s.db.GetCredential(keyID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return s.db.CreateCredential(&Credential{KeyID: keyID, Secret: secret})
}

// Revoke flags a credential as revoked.
func (s *Service) Revoke(keyID string) error {
	return s.db.RevokeCredential(keyID)
}

// ListCredentials returns every credential, secrets never included in JSON.
func (s *Service) ListCredentials() ([]Credential, error) {
	return s.db.ListCredentials()
}

// StartNonceSweeper deletes expired nonce records until ctx is cancelled.
func (s *Service) StartNonceSweeper(ctx context.Context, interval time.Duration) {
	logger := log.With().Str("component", "nonce_sweeper").Logger()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down nonce sweeper")
			return
		case <-ticker.C:
			purged, err := s.db.PurgeExpiredNonces(s.now())
			if err != nil {
				logger.Error().Err(err).Msg("failed to purge expired nonces")
				continue
			}
			if purged > 0 {
				logger.Debug().Int64("purged", purged).Msg("expired nonces removed")
			}
		}
	}
}
