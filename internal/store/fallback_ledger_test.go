package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/domain"
)

// stubLedger is an in-memory Ledger with injectable failures.
type stubLedger struct {
	mu       sync.Mutex
	redeemed map[string]bool // key: code|fid
	readErr  error
	writeErr error
	writes   int
}

func newStubLedger() *stubLedger {
	return &stubLedger{redeemed: make(map[string]bool)}
}

func ledgerKey(code, fid string) string { return code + "|" + fid }

func (s *stubLedger) IsRedeemed(ctx context.Context, allianceID int64, code, fid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return false, s.readErr
	}
	return s.redeemed[ledgerKey(code, fid)], nil
}

func (s *stubLedger) BatchIsRedeemed(ctx context.Context, allianceID int64, code string, fids []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := make(map[string]bool, len(fids))
	for _, fid := range fids {
		out[fid] = s.redeemed[ledgerKey(code, fid)]
	}
	return out, nil
}

func (s *stubLedger) MarkRedeemed(ctx context.Context, record domain.RedemptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes++
	s.redeemed[ledgerKey(record.Code, record.FID)] = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRecord(fid string) domain.RedemptionRecord {
	return domain.RedemptionRecord{
		AllianceID: 7,
		Code:       "WINTER2026",
		FID:        fid,
		Status:     domain.RecordStatusSuccess,
		RedeemedAt: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestFallbackLedgerMirrorsWrites(t *testing.T) {
	primary, fallback := newStubLedger(), newStubLedger()
	ledger := NewFallbackLedger(primary, fallback, discardLogger())

	if err := ledger.MarkRedeemed(context.Background(), testRecord("100")); err != nil {
		t.Fatalf("MarkRedeemed returned error: %v", err)
	}
	if primary.writes != 1 || fallback.writes != 1 {
		t.Errorf("expected write in both backends, got primary=%d fallback=%d", primary.writes, fallback.writes)
	}
}

func TestFallbackLedgerWriteSurvivesSingleBackendFailure(t *testing.T) {
	primary, fallback := newStubLedger(), newStubLedger()
	primary.writeErr = errors.New("primary down")
	ledger := NewFallbackLedger(primary, fallback, discardLogger())

	if err := ledger.MarkRedeemed(context.Background(), testRecord("100")); err != nil {
		t.Fatalf("single-backend failure should not surface, got %v", err)
	}
	if fallback.writes != 1 {
		t.Errorf("expected fallback write, got %d", fallback.writes)
	}
}

func TestFallbackLedgerWriteDoubleFailure(t *testing.T) {
	primary, fallback := newStubLedger(), newStubLedger()
	primary.writeErr = errors.New("primary down")
	fallback.writeErr = errors.New("fallback down")
	ledger := NewFallbackLedger(primary, fallback, discardLogger())

	if err := ledger.MarkRedeemed(context.Background(), testRecord("100")); err == nil {
		t.Fatal("expected error when both backends fail")
	}
}

func TestFallbackLedgerReadConsultsFallbackOnMiss(t *testing.T) {
	primary, fallback := newStubLedger(), newStubLedger()
	fallback.redeemed[ledgerKey("WINTER2026", "100")] = true
	ledger := NewFallbackLedger(primary, fallback, discardLogger())

	redeemed, err := ledger.IsRedeemed(context.Background(), 7, "WINTER2026", "100")
	if err != nil {
		t.Fatalf("IsRedeemed returned error: %v", err)
	}
	if !redeemed {
		t.Error("expected fallback hit to count as redeemed")
	}
}

func TestFallbackLedgerReadPrefersPrimaryHit(t *testing.T) {
	primary, fallback := newStubLedger(), newStubLedger()
	primary.redeemed[ledgerKey("WINTER2026", "100")] = true
	fallback.readErr = errors.New("should not be consulted")
	ledger := NewFallbackLedger(primary, fallback, discardLogger())

	redeemed, err := ledger.IsRedeemed(context.Background(), 7, "WINTER2026", "100")
	if err != nil {
		t.Fatalf("IsRedeemed returned error: %v", err)
	}
	if !redeemed {
		t.Error("expected primary hit")
	}
}

func TestFallbackLedgerReadSurvivesPrimaryFailure(t *testing.T) {
	primary, fallback := newStubLedger(), newStubLedger()
	primary.readErr = errors.New("primary down")
	fallback.redeemed[ledgerKey("WINTER2026", "100")] = true
	ledger := NewFallbackLedger(primary, fallback, discardLogger())

	redeemed, err := ledger.IsRedeemed(context.Background(), 7, "WINTER2026", "100")
	if err != nil {
		t.Fatalf("IsRedeemed returned error: %v", err)
	}
	if !redeemed {
		t.Error("expected fallback to answer while primary is down")
	}
}

func TestFallbackLedgerBatchMergesBackends(t *testing.T) {
	primary, fallback := newStubLedger(), newStubLedger()
	primary.redeemed[ledgerKey("WINTER2026", "100")] = true
	fallback.redeemed[ledgerKey("WINTER2026", "200")] = true
	ledger := NewFallbackLedger(primary, fallback, discardLogger())

	got, err := ledger.BatchIsRedeemed(context.Background(), 7, "WINTER2026", []string{"100", "200", "300"})
	if err != nil {
		t.Fatalf("BatchIsRedeemed returned error: %v", err)
	}
	want := map[string]bool{"100": true, "200": true, "300": false}
	for fid, expected := range want {
		if got[fid] != expected {
			t.Errorf("fid %s: got %t, want %t", fid, got[fid], expected)
		}
	}
}

func TestFallbackLedgerBatchDoubleFailure(t *testing.T) {
	primary, fallback := newStubLedger(), newStubLedger()
	primary.readErr = errors.New("primary down")
	fallback.readErr = errors.New("fallback down")
	ledger := NewFallbackLedger(primary, fallback, discardLogger())

	if _, err := ledger.BatchIsRedeemed(context.Background(), 7, "WINTER2026", []string{"100"}); err == nil {
		t.Fatal("expected error when both backends fail")
	}
}

func TestFallbackLedgerNilFallback(t *testing.T) {
	primary := newStubLedger()
	ledger := NewFallbackLedger(primary, nil, discardLogger())

	if err := ledger.MarkRedeemed(context.Background(), testRecord("100")); err != nil {
		t.Fatalf("MarkRedeemed returned error: %v", err)
	}
	redeemed, err := ledger.IsRedeemed(context.Background(), 7, "WINTER2026", "100")
	if err != nil {
		t.Fatalf("IsRedeemed returned error: %v", err)
	}
	if !redeemed {
		t.Error("expected primary-only ledger to answer")
	}
}
