package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/domain"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/store"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/pkg/codefeed"
)

type fakeFeed struct {
	entries []codefeed.Entry
	known   map[string]bool
}

func (f *fakeFeed) FetchCodes(ctx context.Context) ([]codefeed.Entry, error) {
	return f.entries, nil
}

func (f *fakeFeed) CheckCode(ctx context.Context, code string) (bool, error) {
	return f.known[code], nil
}

type memCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*domain.GiftCode
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{codes: make(map[string]*domain.GiftCode)}
}

func (r *memCodeRepo) ListCodes(ctx context.Context) ([]domain.GiftCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.GiftCode, 0, len(r.codes))
	for _, c := range r.codes {
		out = append(out, *c)
	}
	return out, nil
}

func (r *memCodeRepo) GetCode(ctx context.Context, code string) (*domain.GiftCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[code]
	if !ok {
		return nil, store.ErrCodeNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *memCodeRepo) InsertCode(ctx context.Context, giftCode domain.GiftCode) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.codes[giftCode.Code]; exists {
		return false, nil
	}
	r.codes[giftCode.Code] = &giftCode
	return true, nil
}

func (r *memCodeRepo) MarkDispatched(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[code]
	if !ok {
		return store.ErrCodeNotFound
	}
	c.Dispatched = true
	return nil
}

func (r *memCodeRepo) ListUndispatched(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for code, c := range r.codes {
		if !c.Dispatched {
			out = append(out, code)
		}
	}
	return out, nil
}

type recordingOrchestrator struct {
	mu   sync.Mutex
	runs []string
}

func (o *recordingOrchestrator) Run(ctx context.Context, allianceID int64, code string, notifyOnSkip bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, code)
	return nil
}

func (o *recordingOrchestrator) runCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.runs)
}

type triggerHarness struct {
	trigger      *Trigger
	feed         *fakeFeed
	codes        *memCodeRepo
	orchestrator *recordingOrchestrator
	reporter     *captureReporter
}

func newTriggerHarness() *triggerHarness {
	h := &triggerHarness{
		feed:         &fakeFeed{known: map[string]bool{}},
		codes:        newMemCodeRepo(),
		orchestrator: &recordingOrchestrator{},
		reporter:     &captureReporter{},
	}
	roster := &fakeRoster{
		alliances: map[int64]*domain.Alliance{
			7: {ID: 7, Name: "FROST", AutoRedeemEnabled: true},
		},
	}
	h.trigger = NewTrigger(h.feed, h.codes, roster, h.orchestrator, h.reporter, testLogger(), time.Minute)
	return h
}

func TestReconcileStartupMarksWithoutRedeeming(t *testing.T) {
	h := newTriggerHarness()
	ctx := context.Background()

	h.codes.codes["LEFTOVER"] = &domain.GiftCode{Code: "LEFTOVER", Dispatched: false}
	h.codes.codes["DONE"] = &domain.GiftCode{Code: "DONE", Dispatched: true}

	if err := h.trigger.ReconcileStartup(ctx); err != nil {
		t.Fatalf("ReconcileStartup returned error: %v", err)
	}

	if h.orchestrator.runCount() != 0 {
		t.Errorf("startup reconciliation must not redeem, got %d runs", h.orchestrator.runCount())
	}
	code, err := h.codes.GetCode(ctx, "LEFTOVER")
	if err != nil {
		t.Fatalf("GetCode returned error: %v", err)
	}
	if !code.Dispatched {
		t.Error("expected leftover code marked dispatched")
	}
}

func TestPollDispatchesNewCodes(t *testing.T) {
	h := newTriggerHarness()
	ctx := context.Background()
	h.feed.entries = []codefeed.Entry{{Code: "WINTER2026", Date: "2026-01-15"}}

	h.trigger.poll(ctx)

	if h.orchestrator.runCount() != 1 {
		t.Fatalf("expected one orchestration per enabled alliance, got %d", h.orchestrator.runCount())
	}
	if len(h.reporter.discovered) != 1 || h.reporter.discovered[0] != "WINTER2026" {
		t.Errorf("expected discovery notice for WINTER2026, got %v", h.reporter.discovered)
	}
	code, err := h.codes.GetCode(ctx, "WINTER2026")
	if err != nil {
		t.Fatalf("GetCode returned error: %v", err)
	}
	if !code.Dispatched {
		t.Error("expected dispatched code after poll")
	}
}

func TestPollIgnoresKnownCodes(t *testing.T) {
	h := newTriggerHarness()
	ctx := context.Background()
	h.codes.codes["WINTER2026"] = &domain.GiftCode{Code: "WINTER2026", Dispatched: true}
	h.feed.entries = []codefeed.Entry{{Code: "WINTER2026", Date: "2026-01-15"}}

	h.trigger.poll(ctx)

	if h.orchestrator.runCount() != 0 {
		t.Errorf("known code must not be re-dispatched, got %d runs", h.orchestrator.runCount())
	}
	if len(h.reporter.discovered) != 0 {
		t.Errorf("known code must not produce a discovery notice, got %v", h.reporter.discovered)
	}
}

func TestSubmitCodeValidatesAgainstFeed(t *testing.T) {
	h := newTriggerHarness()
	ctx := context.Background()
	h.feed.known["WINTER2026"] = true

	if err := h.trigger.SubmitCode(ctx, "WINTER2026"); err != nil {
		t.Fatalf("SubmitCode returned error: %v", err)
	}

	code, err := h.codes.GetCode(ctx, "WINTER2026")
	if err != nil {
		t.Fatalf("GetCode returned error: %v", err)
	}
	if code.ValidationStatus != domain.CodeStatusValidated {
		t.Errorf("expected validated status, got %s", code.ValidationStatus)
	}
	if h.orchestrator.runCount() != 1 {
		t.Errorf("expected dispatch after submission, got %d runs", h.orchestrator.runCount())
	}
}

func TestSubmitCodeUnknownToFeedStaysPending(t *testing.T) {
	h := newTriggerHarness()
	ctx := context.Background()

	if err := h.trigger.SubmitCode(ctx, "MYSTERY"); err != nil {
		t.Fatalf("SubmitCode returned error: %v", err)
	}

	code, err := h.codes.GetCode(ctx, "MYSTERY")
	if err != nil {
		t.Fatalf("GetCode returned error: %v", err)
	}
	if code.ValidationStatus != domain.CodeStatusPending {
		t.Errorf("expected pending status, got %s", code.ValidationStatus)
	}
}

func TestSubmitCodeDuplicateIsNoOp(t *testing.T) {
	h := newTriggerHarness()
	ctx := context.Background()
	h.codes.codes["WINTER2026"] = &domain.GiftCode{Code: "WINTER2026", Dispatched: true}

	if err := h.trigger.SubmitCode(ctx, "WINTER2026"); err != nil {
		t.Fatalf("SubmitCode returned error: %v", err)
	}
	if h.orchestrator.runCount() != 0 {
		t.Errorf("duplicate submission must not dispatch, got %d runs", h.orchestrator.runCount())
	}
}
