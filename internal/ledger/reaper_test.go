package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/tradegate/signal-gateway/internal/types"
)

func TestReaperFailsAbandonedReservations(t *testing.T) {
	l := newTestLedger(t)
	base := time.Now()
	l.now = func() time.Time { return base }

	if out, _ := l.Reserve("stuck-key"); out.Status != Fresh {
		t.Fatalf("expected Fresh, got %v", out.Status)
	}

	l.now = func() time.Time { return base.Add(testLiveness + time.Second) }
	NewReaper(l, time.Second).sweep(context.Background())

	out, err := l.Reserve("stuck-key")
	if err != nil {
		t.Fatalf("reserve after sweep failed: %v", err)
	}
	if out.Status != AlreadyFailed {
		t.Fatalf("expected AlreadyFailed after sweep, got %v", out.Status)
	}
	if out.ErrorKind != types.KindExecutionTimeout {
		t.Fatalf("expected %s, got %s", types.KindExecutionTimeout, out.ErrorKind)
	}
}

func TestReaperLeavesLiveReservationsAlone(t *testing.T) {
	l := newTestLedger(t)
	base := time.Now()
	l.now = func() time.Time { return base }

	l.Reserve("fresh-key")
	l.now = func() time.Time { return base.Add(testLiveness / 2) }
	NewReaper(l, time.Second).sweep(context.Background())

	out, err := l.Reserve("fresh-key")
	if err != nil {
		t.Fatalf("reserve after sweep failed: %v", err)
	}
	if out.Status != AlreadyReserved {
		t.Fatalf("expected AlreadyReserved, got %v", out.Status)
	}
}

func TestReaperPurgesExpiredRecords(t *testing.T) {
	l := newTestLedger(t)
	base := time.Now()
	l.now = func() time.Time { return base }

	l.Reserve("old-key")
	if err := l.Commit("old-key", sampleResult()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	l.now = func() time.Time { return base.Add(testRetention + time.Minute) }
	NewReaper(l, time.Second).sweep(context.Background())

	rec, err := l.db.Get("old-key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected record to be purged, got %+v", rec)
	}
}
