package auth

import (
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tradegate/signal-gateway/internal/types"
)

const testTolerance = 300 * time.Second

func newTestService(t *testing.T) *Service {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "auth_test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Credential{}, &NonceRecord{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewService(db, testTolerance, 16)
}

func seedCredential(t *testing.T, s *Service) *Credential {
	t.Helper()
	cred, err := s.IssueCredential()
	if err != nil {
		t.Fatalf("failed to issue credential: %v", err)
	}
	return cred
}

func signedRequest(cred *Credential, method, path string, body []byte, ts time.Time, nonce string) SignedRequest {
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	return SignedRequest{
		KeyID:     cred.KeyID,
		Timestamp: timestamp,
		Nonce:     nonce,
		Signature: Sign(cred.Secret, method, path, body, timestamp, nonce),
		Method:    method,
		Path:      path,
		Body:      body,
	}
}

func expectKind(t *testing.T, err error, want types.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := types.KindOf(err); got != want {
		t.Fatalf("expected error kind %s, got %s (%v)", want, got, err)
	}
}

func TestAuthenticateValidRequest(t *testing.T) {
	s := newTestService(t)
	cred := seedCredential(t, s)

	req := signedRequest(cred, "POST", "/api/v1/signal", []byte(`{"symbol":"EURUSD"}`),
		time.Now(), "nonce-0000000000000001")
	got, err := s.Authenticate(req)
	if err != nil {
		t.Fatalf("expected valid request to authenticate, got %v", err)
	}
	if got.KeyID != cred.KeyID {
		t.Fatalf("expected credential %s, got %s", cred.KeyID, got.KeyID)
	}
}

func TestAuthenticateTamperedBody(t *testing.T) {
	s := newTestService(t)
	cred := seedCredential(t, s)

	req := signedRequest(cred, "POST", "/api/v1/signal", []byte(`{"volume":0.1}`),
		time.Now(), "nonce-0000000000000002")
	req.Body = []byte(`{"volume":10.0}`)

	_, err := s.Authenticate(req)
	expectKind(t, err, types.KindBadSignature)
}

func TestAuthenticateWrongSecret(t *testing.T) {
	s := newTestService(t)
	cred := seedCredential(t, s)

	forged := *cred
	forged.Secret = "not-the-real-secret"
	req := signedRequest(&forged, "GET", "/api/v1/account", nil,
		time.Now(), "nonce-0000000000000003")

	_, err := s.Authenticate(req)
	expectKind(t, err, types.KindBadSignature)
}

func TestAuthenticateUnknownKey(t *testing.T) {
	s := newTestService(t)

	cred := &Credential{KeyID: "key_never_registered", Secret: "whatever"}
	req := signedRequest(cred, "GET", "/api/v1/health", nil,
		time.Now(), "nonce-0000000000000004")

	_, err := s.Authenticate(req)
	expectKind(t, err, types.KindUnknownKey)
}

func TestAuthenticateRevokedCredential(t *testing.T) {
	s := newTestService(t)
	cred := seedCredential(t, s)
	if err := s.Revoke(cred.KeyID); err != nil {
		t.Fatalf("failed to revoke credential: %v", err)
	}

	req := signedRequest(cred, "GET", "/api/v1/health", nil,
		time.Now(), "nonce-0000000000000005")
	_, err := s.Authenticate(req)
	expectKind(t, err, types.KindRevoked)
}

func TestAuthenticateMissingHeaders(t *testing.T) {
	s := newTestService(t)
	_, err := s.Authenticate(SignedRequest{Method: "GET", Path: "/api/v1/health"})
	expectKind(t, err, types.KindValidation)
}

func TestAuthenticateStaleTimestamp(t *testing.T) {
	s := newTestService(t)
	cred := seedCredential(t, s)

	req := signedRequest(cred, "GET", "/api/v1/health", nil,
		time.Now().Add(-testTolerance-time.Minute), "nonce-0000000000000006")
	_, err := s.Authenticate(req)
	expectKind(t, err, types.KindStaleTimestamp)
}

func TestAuthenticateFutureTimestamp(t *testing.T) {
	s := newTestService(t)
	cred := seedCredential(t, s)

	req := signedRequest(cred, "GET", "/api/v1/health", nil,
		time.Now().Add(testTolerance+time.Minute), "nonce-0000000000000007")
	_, err := s.Authenticate(req)
	expectKind(t, err, types.KindFutureTimestamp)
}

func TestAuthenticateMalformedTimestamp(t *testing.T) {
	s := newTestService(t)
	cred := seedCredential(t, s)

	// A timestamp that never parsed is a malformed request, not a stale one.
	nonce := "nonce-0000000000000012"
	timestamp := "not-a-unix-time"
	req := SignedRequest{
		KeyID:     cred.KeyID,
		Timestamp: timestamp,
		Nonce:     nonce,
		Signature: Sign(cred.Secret, "GET", "/api/v1/health", nil, timestamp, nonce),
		Method:    "GET",
		Path:      "/api/v1/health",
	}
	_, err := s.Authenticate(req)
	expectKind(t, err, types.KindValidation)
}

func TestAuthenticateTimestampAtBoundary(t *testing.T) {
	s := newTestService(t)
	cred := seedCredential(t, s)

	base := time.Now()
	s.now = func() time.Time { return base }

	// Exactly at the tolerance edge, both directions, must still pass.
	for i, ts := range []time.Time{base.Add(-testTolerance), base.Add(testTolerance)} {
		nonce := "nonce-boundary-000000000" + strconv.Itoa(i)
		req := signedRequest(cred, "GET", "/api/v1/health", nil, ts, nonce)
		if _, err := s.Authenticate(req); err != nil {
			t.Fatalf("boundary timestamp %d rejected: %v", i, err)
		}
	}
}

func TestAuthenticateShortNonce(t *testing.T) {
	s := newTestService(t)
	cred := seedCredential(t, s)

	req := signedRequest(cred, "GET", "/api/v1/health", nil, time.Now(), "short")
	_, err := s.Authenticate(req)
	expectKind(t, err, types.KindValidation)
}

func TestAuthenticateNonceReplay(t *testing.T) {
	s := newTestService(t)
	cred := seedCredential(t, s)
	nonce := "nonce-0000000000000008"

	req := signedRequest(cred, "GET", "/api/v1/health", nil, time.Now(), nonce)
	if _, err := s.Authenticate(req); err != nil {
		t.Fatalf("first use of nonce failed: %v", err)
	}

	// Same nonce again, fresh timestamp and signature.
	req = signedRequest(cred, "GET", "/api/v1/health", nil, time.Now(), nonce)
	_, err := s.Authenticate(req)
	expectKind(t, err, types.KindReplayedNonce)
}

func TestAuthenticateNonceScopedPerCredential(t *testing.T) {
	s := newTestService(t)
	credA := seedCredential(t, s)
	credB := seedCredential(t, s)
	nonce := "nonce-0000000000000009"

	if _, err := s.Authenticate(signedRequest(credA, "GET", "/api/v1/health", nil, time.Now(), nonce)); err != nil {
		t.Fatalf("credential A rejected: %v", err)
	}
	if _, err := s.Authenticate(signedRequest(credB, "GET", "/api/v1/health", nil, time.Now(), nonce)); err != nil {
		t.Fatalf("same nonce under a different credential rejected: %v", err)
	}
}

func TestAuthenticateExpiredNonceReusable(t *testing.T) {
	s := newTestService(t)
	cred := seedCredential(t, s)
	nonce := "nonce-0000000000000010"

	base := time.Now()
	s.now = func() time.Time { return base }
	if _, err := s.Authenticate(signedRequest(cred, "GET", "/api/v1/health", nil, base, nonce)); err != nil {
		t.Fatalf("first use of nonce failed: %v", err)
	}

	// Past the nonce's expiry the record can be re-armed in place.
	later := base.Add(testTolerance + time.Minute)
	s.now = func() time.Time { return later }
	if _, err := s.Authenticate(signedRequest(cred, "GET", "/api/v1/health", nil, later, nonce)); err != nil {
		t.Fatalf("expired nonce should be reusable, got %v", err)
	}
}

func TestNonceSweeperPurge(t *testing.T) {
	s := newTestService(t)
	cred := seedCredential(t, s)

	base := time.Now()
	s.now = func() time.Time { return base }
	if _, err := s.Authenticate(signedRequest(cred, "GET", "/api/v1/health", nil, base, "nonce-0000000000000011")); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	purged, err := s.db.PurgeExpiredNonces(base.Add(testTolerance + time.Minute))
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged nonce, got %d", purged)
	}
}

func TestEnsureCredentialIdempotent(t *testing.T) {
	s := newTestService(t)
	if err := s.EnsureCredential("seed_key", "seed_secret"); err != nil {
		t.Fatalf("first ensure failed: %v", err)
	}
	if err := s.EnsureCredential("seed_key", "seed_secret"); err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}

	creds, err := s.ListCredentials()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(creds) != 1 {
		t.Fatalf("expected 1 credential, got %d", len(creds))
	}
}

func TestIssueCredentialFormat(t *testing.T) {
	s := newTestService(t)
	cred := seedCredential(t, s)
	if !strings.HasPrefix(cred.KeyID, "key_") {
		t.Fatalf("unexpected key id format: %s", cred.KeyID)
	}
	if len(cred.Secret) != 64 {
		t.Fatalf("expected 64 hex chars of secret, got %d", len(cred.Secret))
	}
}

func TestTokenGenerateAndValidate(t *testing.T) {
	ts := NewTokenService("test-jwt-secret", "admin_key", "admin_secret")

	resp, err := ts.GenerateToken(AdminCredentials{APIKey: "admin_key", APISecret: "admin_secret"})
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}

	claims, err := ts.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("token validation failed: %v", err)
	}
	if claims.ClientID != "admin_key" {
		t.Fatalf("expected client id admin_key, got %s", claims.ClientID)
	}
	if len(claims.Permissions) != 1 || claims.Permissions[0] != "admin" {
		t.Fatalf("unexpected permissions: %v", claims.Permissions)
	}
}

func TestTokenRejectsBadCredentials(t *testing.T) {
	ts := NewTokenService("test-jwt-secret", "admin_key", "admin_secret")
	if _, err := ts.GenerateToken(AdminCredentials{APIKey: "admin_key", APISecret: "wrong"}); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestTokenRejectsForeignSignature(t *testing.T) {
	issuer := NewTokenService("secret-one", "admin_key", "admin_secret")
	verifier := NewTokenService("secret-two", "admin_key", "admin_secret")

	resp, err := issuer.GenerateToken(AdminCredentials{APIKey: "admin_key", APISecret: "admin_secret"})
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	if _, err := verifier.ValidateToken(resp.Token); err == nil {
		t.Fatal("expected validation to fail for a token signed with another secret")
	}
}
