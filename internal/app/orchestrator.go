/**
 * @description
 * This file implements the redemption orchestrator: given a code and an
 * alliance, it filters out members already recorded in the ledger, runs the
 * rest through the redemption driver with a bounded worker pool, and streams
 * aggregate progress to the reporter.
 *
 * @notes
 * - The per-(alliance, code) in-flight guard and the per-alliance stop
 *   signal are explicit shared objects guarded by their own mutexes, passed
 *   in by reference, so a supervisor or a test harness can share them across
 *   orchestrator instances.
 */

package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/domain"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/store"
)

// Driver runs the full redemption sequence for one member.
type Driver interface {
	RedeemForMember(ctx context.Context, allianceID int64, member domain.Member, code string) domain.Outcome
}

// InflightRegistry tracks which (alliance, code) orchestrations are running
// so a re-entrant trigger is a no-op rather than a duplicate run.
type InflightRegistry struct {
	mu     sync.Mutex
	active map[inflightKey]struct{}
}

type inflightKey struct {
	allianceID int64
	code       string
}

// NewInflightRegistry creates an empty registry.
func NewInflightRegistry() *InflightRegistry {
	return &InflightRegistry{active: make(map[inflightKey]struct{})}
}

// TryAcquire marks the pair active; it reports false if a run already holds it.
func (r *InflightRegistry) TryAcquire(allianceID int64, code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := inflightKey{allianceID, code}
	if _, held := r.active[key]; held {
		return false
	}
	r.active[key] = struct{}{}
	return true
}

// Release frees the pair. Safe to call for a pair that was never acquired.
func (r *InflightRegistry) Release(allianceID int64, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, inflightKey{allianceID, code})
}

// StopRegistry carries the per-alliance stop signal. Once set, the
// orchestrator starts no new driver runs for that alliance; in-flight runs
// finish their current attempt so slot state is left consistent.
type StopRegistry struct {
	mu      sync.Mutex
	stopped map[int64]bool
}

// NewStopRegistry creates an empty registry.
func NewStopRegistry() *StopRegistry {
	return &StopRegistry{stopped: make(map[int64]bool)}
}

// Stop sets the signal for an alliance.
func (r *StopRegistry) Stop(allianceID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped[allianceID] = true
}

// Reset clears the signal; called when a new run begins.
func (r *StopRegistry) Reset(allianceID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stopped, allianceID)
}

// Stopped reports whether the signal is set.
func (r *StopRegistry) Stopped(allianceID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped[allianceID]
}

// Orchestrator fans a roster out over the redemption driver.
type Orchestrator struct {
	roster   store.RosterRepository
	ledger   store.Ledger
	driver   Driver
	reporter ProgressReporter
	inflight *InflightRegistry
	stops    *StopRegistry
	logger   *slog.Logger
	workers  int
}

// NewOrchestrator creates an orchestrator with the given worker width. The
// width bounds concurrent driver runs and is independent of the session pool
// size.
func NewOrchestrator(roster store.RosterRepository, ledger store.Ledger, driver Driver, reporter ProgressReporter, inflight *InflightRegistry, stops *StopRegistry, logger *slog.Logger, workers int) *Orchestrator {
	if workers <= 0 {
		workers = 2
	}
	return &Orchestrator{
		roster:   roster,
		ledger:   ledger,
		driver:   driver,
		reporter: reporter,
		inflight: inflight,
		stops:    stops,
		logger:   logger,
		workers:  workers,
	}
}

// Run redeems a code for every pending member of one alliance. A duplicate
// trigger for a pair already in flight returns nil without doing anything.
// When notifyOnSkip is false, a run with nothing to do exits quietly so
// routine re-checks stay silent.
func (o *Orchestrator) Run(ctx context.Context, allianceID int64, code string, notifyOnSkip bool) error {
	if !o.inflight.TryAcquire(allianceID, code) {
		o.logger.Warn("redemption already in flight, skipping duplicate trigger",
			"alliance_id", allianceID, "code", code)
		orchestrationsTotal.WithLabelValues("duplicate").Inc()
		return nil
	}
	// Released unconditionally so a panicking run can never block a future
	// trigger for the same code.
	defer o.inflight.Release(allianceID, code)

	o.stops.Reset(allianceID)

	alliance, err := o.roster.GetAlliance(ctx, allianceID)
	if err != nil {
		return fmt.Errorf("failed to load alliance %d: %w", allianceID, err)
	}
	if !alliance.AutoRedeemEnabled {
		o.logger.Info("auto-redeem disabled for alliance, skipping",
			"alliance_id", allianceID, "code", code)
		return nil
	}

	members, err := o.roster.ListMembers(ctx, allianceID)
	if err != nil {
		return fmt.Errorf("failed to load roster for alliance %d: %w", allianceID, err)
	}
	if len(members) == 0 {
		o.logger.Info("no roster members for alliance", "alliance_id", allianceID)
		return nil
	}

	pending, skipped, err := o.filterPending(ctx, allianceID, code, members)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		o.logger.Info("all members already redeemed",
			"alliance_id", allianceID, "code", code, "roster", len(members))
		orchestrationsTotal.WithLabelValues("skipped").Inc()
		if notifyOnSkip {
			o.reporter.ReportProgress(ctx, domain.ProgressUpdate{
				AllianceID: allianceID,
				Code:       code,
				Phase:      PhaseSkipped,
				Total:      len(members),
				Skipped:    skipped,
			})
		}
		return nil
	}

	o.logger.Info("starting redemption run",
		"alliance_id", allianceID, "code", code, "pending", len(pending), "skipped", skipped)
	o.reporter.ReportProgress(ctx, domain.ProgressUpdate{
		AllianceID: allianceID,
		Code:       code,
		Phase:      PhaseStarted,
		Total:      len(pending),
		Skipped:    skipped,
	})

	counts := o.runWorkers(ctx, allianceID, code, pending)
	counts.Skipped = skipped
	counts.Phase = PhaseCompleted
	o.reporter.ReportProgress(ctx, counts)

	o.logger.Info("redemption run completed",
		"alliance_id", allianceID, "code", code,
		"succeeded", counts.Succeeded, "already_redeemed", counts.AlreadyRedeemed, "failed", counts.Failed)
	orchestrationsTotal.WithLabelValues("completed").Inc()
	return nil
}

// filterPending splits the roster into already-recorded and still-pending
// members with a single bulk ledger query. A ledger failure here degrades to
// processing everyone: redeeming twice is upstream-idempotent, skipping
// everyone is not.
func (o *Orchestrator) filterPending(ctx context.Context, allianceID int64, code string, members []domain.Member) ([]domain.Member, int, error) {
	fids := make([]string, len(members))
	for i, m := range members {
		fids[i] = m.FID
	}

	redeemed, err := o.ledger.BatchIsRedeemed(ctx, allianceID, code, fids)
	if err != nil {
		o.logger.Warn("ledger batch check failed, processing full roster",
			"alliance_id", allianceID, "code", code, "error", err)
		return members, 0, nil
	}

	pending := make([]domain.Member, 0, len(members))
	skipped := 0
	for _, m := range members {
		if redeemed[m.FID] {
			skipped++
			continue
		}
		pending = append(pending, m)
	}
	return pending, skipped, nil
}

// runWorkers drives the pending members through the driver with bounded
// concurrency, updating the aggregate after every completion.
func (o *Orchestrator) runWorkers(ctx context.Context, allianceID int64, code string, pending []domain.Member) domain.ProgressUpdate {
	var (
		mu     sync.Mutex
		counts = domain.ProgressUpdate{
			AllianceID: allianceID,
			Code:       code,
			Phase:      PhaseProgress,
			Total:      len(pending),
		}
		wg   sync.WaitGroup
		work = make(chan domain.Member)
	)

	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for member := range work {
				// The stop signal is checked before each driver start; work
				// already underway finishes its current attempt.
				if o.stops.Stopped(allianceID) || ctx.Err() != nil {
					continue
				}

				outcome := o.driver.RedeemForMember(ctx, allianceID, member, code)

				mu.Lock()
				counts.Completed++
				switch outcome.RecordStatus() {
				case domain.RecordStatusSuccess:
					counts.Succeeded++
				case domain.RecordStatusAlreadyRedeemed:
					counts.AlreadyRedeemed++
				default:
					counts.Failed++
				}
				snapshot := counts
				mu.Unlock()

				o.reporter.ReportProgress(ctx, snapshot)
			}
		}()
	}

	for _, member := range pending {
		work <- member
	}
	close(work)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return counts
}
