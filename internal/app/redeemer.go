/**
 * @description
 * This file implements the member redemption driver: the per-(member, code)
 * state machine that logs in, runs the captcha cycle, and classifies the
 * result into exactly one durable redemption record. Phases carry their own
 * retry budgets and backoff shapes; a rate-limited response always marks the
 * slot that produced it.
 *
 * @dependencies
 * - pkg/wosclient: signed game-API client and response classification.
 * - internal/store: the idempotency ledger the terminal record is written to.
 */

package app

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/domain"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/store"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/pkg/solverclient"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/pkg/wosclient"
)

// GameClient is the slice of the gift-code API the driver needs.
type GameClient interface {
	Login(ctx context.Context, fid string) error
	FetchCaptcha(ctx context.Context, fid string) ([]byte, error)
	Redeem(ctx context.Context, fid, code, captcha string) (wosclient.Classification, error)
}

// CaptchaSolver is the black-box image-to-text service. Failures are
// expected and routine; the driver just fetches a fresh challenge.
type CaptchaSolver interface {
	Solve(ctx context.Context, image []byte, fid string, attempt int) (solverclient.SolveResult, error)
}

// RedeemerConfig carries the driver's retry budgets and backoff shape.
type RedeemerConfig struct {
	MaxLoginAttempts   int           // login phase retries
	MaxRedeemAttempts  int           // captcha-phase retries
	MaxReloginRecovery int           // mid-phase login-expired recoveries
	MaxUnknownRetries  int           // attempts before an unknown response is terminal
	CaptchaAttempts    int           // captcha cycle iteration budget
	RetryDelayBase     time.Duration // linear retry delay unit
	RetryDelayMax      time.Duration // retry delay cap
}

// DefaultRedeemerConfig returns the budgets the upstream tolerates in
// practice.
func DefaultRedeemerConfig() RedeemerConfig {
	return RedeemerConfig{
		MaxLoginAttempts:   5,
		MaxRedeemAttempts:  10,
		MaxReloginRecovery: 3,
		MaxUnknownRetries:  3,
		CaptchaAttempts:    4,
		RetryDelayBase:     2 * time.Second,
		RetryDelayMax:      30 * time.Second,
	}
}

// Redeemer runs the full login-then-captcha-cycle sequence for one
// (member, code) pair.
type Redeemer struct {
	pool   *SessionPool
	client GameClient
	solver CaptchaSolver
	ledger store.Ledger
	logger *slog.Logger
	cfg    RedeemerConfig

	// Injectable for tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(min, max time.Duration) time.Duration
	now    func() time.Time
}

// NewRedeemer creates a redemption driver.
func NewRedeemer(pool *SessionPool, client GameClient, solver CaptchaSolver, ledger store.Ledger, logger *slog.Logger, cfg RedeemerConfig) *Redeemer {
	return &Redeemer{
		pool:   pool,
		client: client,
		solver: solver,
		ledger: ledger,
		logger: logger,
		cfg:    cfg,
		sleep:  sleepContext,
		jitter: randomJitter,
		now:    time.Now,
	}
}

func randomJitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// RedeemForMember drives one member through redemption of one code. Every
// run, regardless of outcome, writes exactly one redemption record before
// returning; a ledger write failure is logged and never overrides the
// in-memory outcome.
func (r *Redeemer) RedeemForMember(ctx context.Context, allianceID int64, member domain.Member, code string) domain.Outcome {
	outcome := r.run(ctx, member, code)

	record := domain.RedemptionRecord{
		AllianceID: allianceID,
		Code:       code,
		FID:        member.FID,
		Status:     outcome.RecordStatus(),
		RedeemedAt: r.now(),
	}
	if err := r.ledger.MarkRedeemed(ctx, record); err != nil {
		r.logger.Error("failed to persist redemption record",
			"fid", member.FID, "code", code, "status", record.Status, "error", err)
	}

	outcomeTotal.WithLabelValues(string(outcome)).Inc()
	redemptionsTotal.WithLabelValues(record.Status).Inc()

	r.logger.Info("redemption outcome",
		"fid", member.FID, "nickname", member.Nickname,
		"furnace", domain.FormatFurnaceLevel(member.FurnaceLevel),
		"code", code, "outcome", outcome, "status", record.Status)
	return outcome
}

func (r *Redeemer) run(ctx context.Context, member domain.Member, code string) domain.Outcome {
	if r.solver == nil {
		return domain.OutcomeSolverUnavailable
	}

	if outcome := r.loginPhase(ctx, member); outcome != domain.OutcomeSuccess {
		return outcome
	}

	reloginsLeft := r.cfg.MaxReloginRecovery
	unknownSeen := 0
	last := domain.OutcomeTransient

	for attempt := 1; attempt <= r.cfg.MaxRedeemAttempts; attempt++ {
		if ctx.Err() != nil {
			return last
		}

		outcome := r.captchaCycle(ctx, member, code)
		last = outcome

		switch outcome {
		case domain.OutcomeRateLimited, domain.OutcomeTransient, domain.OutcomeCaptchaInvalid:
			// Rate limiting already marked the slot inside the cycle; wait
			// out a linearly growing, capped delay and go again.
			delay := r.retryDelay(attempt, outcome == domain.OutcomeRateLimited)
			r.logger.Warn("redemption attempt failed, retrying",
				"fid", member.FID, "code", code, "attempt", attempt, "outcome", outcome, "delay", delay)
			if err := r.sleep(ctx, delay); err != nil {
				return last
			}

		case domain.OutcomeLoginExpired:
			if reloginsLeft <= 0 {
				return domain.OutcomeLoginFailed
			}
			reloginsLeft--
			r.logger.Warn("session expired mid-phase, re-logging in",
				"fid", member.FID, "code", code, "recoveries_left", reloginsLeft)
			if lo := r.loginPhase(ctx, member); lo != domain.OutcomeSuccess {
				return lo
			}

		case domain.OutcomeUnknown:
			unknownSeen++
			if unknownSeen >= r.cfg.MaxUnknownRetries {
				return domain.OutcomeUnknown
			}
			if err := r.sleep(ctx, r.retryDelay(attempt, true)); err != nil {
				return last
			}

		default:
			// Terminal classification ends the run.
			return outcome
		}
	}
	return last
}

// loginPhase establishes the redemption session, retrying with linearly
// growing delay and re-acquiring a slot each attempt so a throttled slot
// does not pin the member to it. Returns OutcomeSuccess when logged in.
func (r *Redeemer) loginPhase(ctx context.Context, member domain.Member) domain.Outcome {
	for attempt := 1; attempt <= r.cfg.MaxLoginAttempts; attempt++ {
		slot, err := r.pool.Acquire(ctx)
		if err != nil {
			return domain.OutcomeLoginFailed
		}

		err = r.client.Login(ctx, member.FID)
		if err == nil {
			return domain.OutcomeSuccess
		}

		rateLimited := errors.Is(err, wosclient.ErrRateLimited)
		if rateLimited {
			r.pool.MarkRateLimited(slot)
			slotRateLimitsTotal.Inc()
		}
		delay := r.retryDelay(attempt, rateLimited)
		r.logger.Warn("login attempt failed",
			"fid", member.FID, "attempt", attempt, "max", r.cfg.MaxLoginAttempts,
			"rate_limited", rateLimited, "delay", delay, "error", err)
		if err := r.sleep(ctx, delay); err != nil {
			return domain.OutcomeLoginFailed
		}
	}
	return domain.OutcomeLoginFailed
}

// captchaCycle runs the bounded fetch → solve → submit loop for one
// submission attempt. Captcha-validity rejections stay inside the loop with
// a short random jitter so a fresh challenge is fetched each time; anything
// else is returned to the driver for classification-specific handling.
func (r *Redeemer) captchaCycle(ctx context.Context, member domain.Member, code string) domain.Outcome {
	for attempt := 0; attempt < r.cfg.CaptchaAttempts; attempt++ {
		slot, err := r.pool.Acquire(ctx)
		if err != nil {
			return domain.OutcomeTransient
		}

		image, err := r.client.FetchCaptcha(ctx, member.FID)
		if err != nil {
			switch {
			case errors.Is(err, wosclient.ErrCaptchaTooFrequent):
				return domain.OutcomeCaptchaTooFrequent
			case errors.Is(err, wosclient.ErrRateLimited):
				r.pool.MarkRateLimited(slot)
				slotRateLimitsTotal.Inc()
				return domain.OutcomeRateLimited
			case errors.Is(err, wosclient.ErrLoginExpired):
				return domain.OutcomeLoginExpired
			default:
				r.logger.Warn("captcha fetch failed",
					"fid", member.FID, "attempt", attempt, "error", err)
				continue
			}
		}

		solved, err := r.solver.Solve(ctx, image, member.FID, attempt)
		if err != nil || !solved.Success {
			if err != nil {
				r.logger.Warn("captcha solver error", "fid", member.FID, "attempt", attempt, "error", err)
			}
			continue
		}
		r.logger.Debug("captcha solved",
			"fid", member.FID, "method", solved.Method, "confidence", solved.Confidence)

		slot, err = r.pool.Acquire(ctx)
		if err != nil {
			return domain.OutcomeTransient
		}
		cls, err := r.client.Redeem(ctx, member.FID, code, solved.Text)
		if err != nil {
			if errors.Is(err, wosclient.ErrRateLimited) {
				r.pool.MarkRateLimited(slot)
				slotRateLimitsTotal.Inc()
				return domain.OutcomeRateLimited
			}
			r.logger.Warn("code submission failed", "fid", member.FID, "code", code, "error", err)
			return domain.OutcomeTransient
		}

		if cls.Outcome == domain.OutcomeCaptchaInvalid {
			if attempt == r.cfg.CaptchaAttempts-1 {
				return domain.OutcomeCaptchaInvalid
			}
			// Stale challenge; jitter briefly and fetch a new one.
			if err := r.sleep(ctx, r.jitter(1500*time.Millisecond, 2500*time.Millisecond)); err != nil {
				return domain.OutcomeCaptchaInvalid
			}
			continue
		}
		if cls.Outcome == domain.OutcomeUnknown {
			r.logger.Error("unknown submission response",
				"fid", member.FID, "code", code, "raw_msg", cls.RawMessage)
		}
		return cls.Outcome
	}
	return domain.OutcomeMaxCaptchaAttempts
}

func (r *Redeemer) retryDelay(attempt int, throttled bool) time.Duration {
	unit := r.cfg.RetryDelayBase
	if throttled {
		unit *= 2
	}
	delay := time.Duration(attempt) * unit
	if delay > r.cfg.RetryDelayMax {
		delay = r.cfg.RetryDelayMax
	}
	return delay
}
