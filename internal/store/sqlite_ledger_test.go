package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/domain"
)

func openTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	ledger, err := OpenSQLiteLedger(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteLedger returned error: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func TestSQLiteLedgerRoundTrip(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	redeemed, err := ledger.IsRedeemed(ctx, 7, "WINTER2026", "100")
	if err != nil {
		t.Fatalf("IsRedeemed returned error: %v", err)
	}
	if redeemed {
		t.Fatal("fresh ledger should have no records")
	}

	if err := ledger.MarkRedeemed(ctx, testRecord("100")); err != nil {
		t.Fatalf("MarkRedeemed returned error: %v", err)
	}

	redeemed, err = ledger.IsRedeemed(ctx, 7, "WINTER2026", "100")
	if err != nil {
		t.Fatalf("IsRedeemed returned error: %v", err)
	}
	if !redeemed {
		t.Error("expected record after write")
	}

	// The triple is scoped: a different alliance or code stays unrecorded.
	if got, _ := ledger.IsRedeemed(ctx, 8, "WINTER2026", "100"); got {
		t.Error("record leaked across alliances")
	}
	if got, _ := ledger.IsRedeemed(ctx, 7, "OTHERCODE", "100"); got {
		t.Error("record leaked across codes")
	}
}

func TestSQLiteLedgerUpsertIsIdempotent(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	record := testRecord("100")
	if err := ledger.MarkRedeemed(ctx, record); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	record.Status = domain.RecordStatusAlreadyRedeemed
	if err := ledger.MarkRedeemed(ctx, record); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	redeemed, err := ledger.IsRedeemed(ctx, 7, "WINTER2026", "100")
	if err != nil {
		t.Fatalf("IsRedeemed returned error: %v", err)
	}
	if !redeemed {
		t.Error("expected record to survive rewrite")
	}
}

func TestSQLiteLedgerBatch(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	for _, fid := range []string{"100", "300"} {
		if err := ledger.MarkRedeemed(ctx, testRecord(fid)); err != nil {
			t.Fatalf("MarkRedeemed(%s) returned error: %v", fid, err)
		}
	}

	got, err := ledger.BatchIsRedeemed(ctx, 7, "WINTER2026", []string{"100", "200", "300"})
	if err != nil {
		t.Fatalf("BatchIsRedeemed returned error: %v", err)
	}
	want := map[string]bool{"100": true, "200": false, "300": true}
	for fid, expected := range want {
		if got[fid] != expected {
			t.Errorf("fid %s: got %t, want %t", fid, got[fid], expected)
		}
	}
}

func TestSQLiteLedgerBatchEmptyRoster(t *testing.T) {
	ledger := openTestLedger(t)

	got, err := ledger.BatchIsRedeemed(context.Background(), 7, "WINTER2026", nil)
	if err != nil {
		t.Fatalf("BatchIsRedeemed returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestOpenSQLiteLedgerRejectsEmptyPath(t *testing.T) {
	if _, err := OpenSQLiteLedger("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
