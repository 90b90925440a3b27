package ledger

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tradegate/signal-gateway/internal/types"
)

const (
	testRetention = 48 * time.Hour
	testLiveness  = time.Minute
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "ledger_test.db") + "?_busy_timeout=5000"
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
	if err := db.AutoMigrate(&IdempotencyRecord{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return New(db, testRetention, testLiveness)
}

func sampleResult() *types.ExecutionResult {
	return &types.ExecutionResult{
		OrderID:       1000001,
		PositionID:    1000002,
		ExecutedPrice: 1.10010,
		LotSize:       0.5,
		ServerTime:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestReserveFresh(t *testing.T) {
	l := newTestLedger(t)
	out, err := l.Reserve("key-1")
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if out.Status != Fresh {
		t.Fatalf("expected Fresh, got %v", out.Status)
	}
}

func TestReserveConcurrentSingleWinner(t *testing.T) {
	l := newTestLedger(t)

	const workers = 10
	var wg sync.WaitGroup
	outcomes := make([]Outcome, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = l.Reserve("contested-key")
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d errored: %v", i, errs[i])
		}
		switch outcomes[i].Status {
		case Fresh:
			fresh++
		case AlreadyReserved:
		default:
			t.Fatalf("worker %d got unexpected status %v", i, outcomes[i].Status)
		}
	}
	if fresh != 1 {
		t.Fatalf("expected exactly one fresh reservation, got %d", fresh)
	}
}

func TestCommitThenReplay(t *testing.T) {
	l := newTestLedger(t)
	if out, _ := l.Reserve("key-commit"); out.Status != Fresh {
		t.Fatalf("expected Fresh, got %v", out.Status)
	}

	want := sampleResult()
	if err := l.Commit("key-commit", want); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	out, err := l.Reserve("key-commit")
	if err != nil {
		t.Fatalf("replay reserve failed: %v", err)
	}
	if out.Status != AlreadyCompleted {
		t.Fatalf("expected AlreadyCompleted, got %v", out.Status)
	}
	if out.Result == nil {
		t.Fatal("expected stored result, got nil")
	}
	if out.Result.OrderID != want.OrderID || out.Result.LotSize != want.LotSize {
		t.Fatalf("stored result mismatch: got %+v, want %+v", out.Result, want)
	}
}

func TestFailThenReplay(t *testing.T) {
	l := newTestLedger(t)
	if out, _ := l.Reserve("key-fail"); out.Status != Fresh {
		t.Fatalf("expected Fresh, got %v", out.Status)
	}
	if err := l.Fail("key-fail", types.KindRejectedOrder, "order rejected by terminal"); err != nil {
		t.Fatalf("fail transition errored: %v", err)
	}

	out, err := l.Reserve("key-fail")
	if err != nil {
		t.Fatalf("replay reserve failed: %v", err)
	}
	if out.Status != AlreadyFailed {
		t.Fatalf("expected AlreadyFailed, got %v", out.Status)
	}
	if out.ErrorKind != types.KindRejectedOrder {
		t.Fatalf("expected stored kind %s, got %s", types.KindRejectedOrder, out.ErrorKind)
	}
	if out.ErrorMessage != "order rejected by terminal" {
		t.Fatalf("unexpected stored message: %q", out.ErrorMessage)
	}
}

func TestCommitRequiresReservation(t *testing.T) {
	l := newTestLedger(t)
	if err := l.Commit("never-reserved", sampleResult()); err != ErrNotReserved {
		t.Fatalf("expected ErrNotReserved, got %v", err)
	}

	// Terminal states are immutable.
	l.Reserve("done-key")
	l.Commit("done-key", sampleResult())
	if err := l.Fail("done-key", types.KindInternal, "late failure"); err != ErrNotReserved {
		t.Fatalf("expected ErrNotReserved on committed key, got %v", err)
	}
}

func TestReserveWithinLivenessBlocked(t *testing.T) {
	l := newTestLedger(t)
	base := time.Now()
	l.now = func() time.Time { return base }

	if out, _ := l.Reserve("live-key"); out.Status != Fresh {
		t.Fatalf("expected Fresh, got %v", out.Status)
	}

	l.now = func() time.Time { return base.Add(testLiveness / 2) }
	out, err := l.Reserve("live-key")
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if out.Status != AlreadyReserved {
		t.Fatalf("expected AlreadyReserved inside liveness window, got %v", out.Status)
	}
}

func TestReserveReclaimsAbandonedReservation(t *testing.T) {
	l := newTestLedger(t)
	base := time.Now()
	l.now = func() time.Time { return base }

	if out, _ := l.Reserve("abandoned-key"); out.Status != Fresh {
		t.Fatalf("expected Fresh, got %v", out.Status)
	}

	l.now = func() time.Time { return base.Add(testLiveness + time.Second) }
	out, err := l.Reserve("abandoned-key")
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if out.Status != Fresh {
		t.Fatalf("expected abandoned reservation to be reclaimed, got %v", out.Status)
	}
}

func TestReserveExpiredRecordStartsNewSeries(t *testing.T) {
	l := newTestLedger(t)
	base := time.Now()
	l.now = func() time.Time { return base }

	l.Reserve("expiring-key")
	if err := l.Commit("expiring-key", sampleResult()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	l.now = func() time.Time { return base.Add(testRetention + time.Minute) }
	out, err := l.Reserve("expiring-key")
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if out.Status != Fresh {
		t.Fatalf("expected a new series after retention expiry, got %v", out.Status)
	}
}
