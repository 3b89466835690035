/**
 * @description
 * This file implements the code-discovery trigger. It polls the discovery
 * feed on a fixed schedule, persists genuinely new codes, notifies
 * operators, and orchestrates each new code once per enabled alliance
 * before marking it dispatched.
 *
 * @notes
 * - Restart policy: codes left un-dispatched by a prior process are marked
 *   dispatched on startup WITHOUT redeeming. Auto-redemption only ever runs
 *   for codes discovered during the current process's lifetime, so a
 *   restart can never cause a redemption storm over historical codes.
 */

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/domain"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/store"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/pkg/codefeed"
)

// FeedClient is the slice of the discovery feed the trigger needs.
type FeedClient interface {
	FetchCodes(ctx context.Context) ([]codefeed.Entry, error)
	CheckCode(ctx context.Context, code string) (bool, error)
}

// CodeOrchestrator triggers one orchestration run per alliance.
type CodeOrchestrator interface {
	Run(ctx context.Context, allianceID int64, code string, notifyOnSkip bool) error
}

// Trigger owns the discovery poll loop.
type Trigger struct {
	feed         FeedClient
	codes        store.CodeRepository
	roster       store.RosterRepository
	orchestrator CodeOrchestrator
	reporter     ProgressReporter
	logger       *slog.Logger
	interval     time.Duration
	cron         *cron.Cron
}

// NewTrigger creates the discovery trigger. interval is the poll period.
func NewTrigger(feed FeedClient, codes store.CodeRepository, roster store.RosterRepository, orchestrator CodeOrchestrator, reporter ProgressReporter, logger *slog.Logger, interval time.Duration) *Trigger {
	if interval <= 0 {
		interval = time.Minute
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Trigger{
		feed:         feed,
		codes:        codes,
		roster:       roster,
		orchestrator: orchestrator,
		reporter:     reporter,
		logger:       logger,
		interval:     interval,
		cron:         cron.New(cron.WithChain(cron.Recover(cronLogger))),
	}
}

// Start reconciles leftover codes from the previous process and begins the
// poll schedule.
func (t *Trigger) Start(ctx context.Context) error {
	if err := t.ReconcileStartup(ctx); err != nil {
		return err
	}

	spec := fmt.Sprintf("@every %s", t.interval)
	if _, err := t.cron.AddFunc(spec, func() { t.poll(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule discovery poll: %w", err)
	}
	t.cron.Start()
	t.logger.Info("code discovery polling started", "interval", t.interval)
	return nil
}

// Stop halts the poll schedule and returns once scheduled work has drained.
func (t *Trigger) Stop() {
	<-t.cron.Stop().Done()
}

// ReconcileStartup marks every un-dispatched code dispatched without
// triggering redemption.
func (t *Trigger) ReconcileStartup(ctx context.Context) error {
	leftover, err := t.codes.ListUndispatched(ctx)
	if err != nil {
		return fmt.Errorf("failed to list undispatched codes: %w", err)
	}
	for _, code := range leftover {
		if err := t.codes.MarkDispatched(ctx, code); err != nil {
			t.logger.Error("failed to mark leftover code dispatched", "code", code, "error", err)
			continue
		}
		t.logger.Info("marked pre-restart code dispatched without redeeming", "code", code)
	}
	return nil
}

// poll runs one discovery cycle.
func (t *Trigger) poll(ctx context.Context) {
	entries, err := t.feed.FetchCodes(ctx)
	if err != nil {
		t.logger.Warn("discovery feed fetch failed", "error", err)
		return
	}

	for _, entry := range entries {
		inserted, err := t.codes.InsertCode(ctx, domain.GiftCode{
			Code:             entry.Code,
			Date:             entry.Date,
			ValidationStatus: domain.CodeStatusValidated,
			Dispatched:       false,
			AddedAt:          time.Now(),
		})
		if err != nil {
			t.logger.Error("failed to persist discovered code", "code", entry.Code, "error", err)
			continue
		}
		if !inserted {
			continue
		}

		codesDiscoveredTotal.Inc()
		t.logger.Info("new gift code discovered", "code", entry.Code, "date", entry.Date)
		t.reporter.ReportCodeDiscovered(ctx, entry.Code, entry.Date)
		t.Dispatch(ctx, entry.Code)
	}
}

// Dispatch orchestrates a code across every enabled alliance and then marks
// it dispatched. Marking is idempotent, so a crash between orchestration and
// marking re-runs orchestration, where the ledger filter makes the replay
// cheap.
func (t *Trigger) Dispatch(ctx context.Context, code string) {
	alliances, err := t.roster.ListEnabledAlliances(ctx)
	if err != nil {
		t.logger.Error("failed to list enabled alliances", "code", code, "error", err)
		return
	}

	for _, alliance := range alliances {
		if err := t.orchestrator.Run(ctx, alliance.ID, code, false); err != nil {
			t.logger.Error("orchestration failed",
				"alliance_id", alliance.ID, "code", code, "error", err)
		}
	}

	if err := t.codes.MarkDispatched(ctx, code); err != nil {
		t.logger.Error("failed to mark code dispatched", "code", code, "error", err)
	}
}

// SubmitCode handles an operator-submitted code: it is validated against the
// feed's existence check, persisted, and dispatched like a discovered code.
func (t *Trigger) SubmitCode(ctx context.Context, code string) error {
	exists, err := t.feed.CheckCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to validate code against feed: %w", err)
	}

	status := domain.CodeStatusValidated
	if !exists {
		status = domain.CodeStatusPending
	}
	inserted, err := t.codes.InsertCode(ctx, domain.GiftCode{
		Code:             code,
		Date:             time.Now().Format("2006-01-02"),
		ValidationStatus: status,
		Dispatched:       false,
		AddedAt:          time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to persist submitted code: %w", err)
	}
	if !inserted {
		t.logger.Info("submitted code already known", "code", code)
		return nil
	}

	t.Dispatch(ctx, code)
	return nil
}
