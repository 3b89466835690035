/**
 * @description
 * This file composes the primary and fallback ledgers into one Ledger. The
 * two backends share no transaction, so the reconciliation policy lives
 * entirely here: reads prefer the primary and consult the fallback on a
 * miss or primary error; writes are mirrored to both, and a single-backend
 * write failure is logged rather than surfaced, because the in-memory
 * outcome must still be reported even when durability momentarily degrades.
 */

package store

import (
	"context"
	"log/slog"

	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/domain"
)

// FallbackLedger is a Ledger backed by a primary store mirrored to a local
// fallback store.
type FallbackLedger struct {
	primary  Ledger
	fallback Ledger
	logger   *slog.Logger
}

// NewFallbackLedger composes the two backends. fallback may be nil, in which
// case the primary is used alone.
func NewFallbackLedger(primary, fallback Ledger, logger *slog.Logger) *FallbackLedger {
	return &FallbackLedger{primary: primary, fallback: fallback, logger: logger}
}

// IsRedeemed prefers the primary; a primary miss or failure consults the
// fallback before concluding "not redeemed".
func (f *FallbackLedger) IsRedeemed(ctx context.Context, allianceID int64, code, fid string) (bool, error) {
	redeemed, err := f.primary.IsRedeemed(ctx, allianceID, code, fid)
	if err == nil && redeemed {
		return true, nil
	}
	if err != nil {
		f.logger.Warn("primary ledger read failed, consulting fallback",
			"code", code, "fid", fid, "error", err)
	}
	if f.fallback == nil {
		return redeemed, err
	}
	fbRedeemed, fbErr := f.fallback.IsRedeemed(ctx, allianceID, code, fid)
	if fbErr != nil {
		if err != nil {
			// Both backends down; report the primary's error.
			return false, err
		}
		f.logger.Warn("fallback ledger read failed", "code", code, "fid", fid, "error", fbErr)
		return redeemed, nil
	}
	return redeemed || fbRedeemed, nil
}

// BatchIsRedeemed merges the primary's bulk answer with the fallback's, so a
// member recorded in either backend is filtered out of the pending set.
func (f *FallbackLedger) BatchIsRedeemed(ctx context.Context, allianceID int64, code string, fids []string) (map[string]bool, error) {
	primaryRes, err := f.primary.BatchIsRedeemed(ctx, allianceID, code, fids)
	if err != nil {
		f.logger.Warn("primary ledger batch read failed, consulting fallback",
			"code", code, "members", len(fids), "error", err)
		primaryRes = nil
	}
	if f.fallback == nil {
		if primaryRes == nil {
			return nil, err
		}
		return primaryRes, nil
	}

	fallbackRes, fbErr := f.fallback.BatchIsRedeemed(ctx, allianceID, code, fids)
	if fbErr != nil {
		if primaryRes == nil {
			return nil, err
		}
		f.logger.Warn("fallback ledger batch read failed", "code", code, "error", fbErr)
		return primaryRes, nil
	}

	merged := make(map[string]bool, len(fids))
	for _, fid := range fids {
		merged[fid] = primaryRes[fid] || fallbackRes[fid]
	}
	return merged, nil
}

// MarkRedeemed writes to both backends. The write succeeds if either backend
// accepted it; only a double failure is returned to the caller, and even then
// callers log rather than abort a redemption outcome.
func (f *FallbackLedger) MarkRedeemed(ctx context.Context, record domain.RedemptionRecord) error {
	primaryErr := f.primary.MarkRedeemed(ctx, record)
	if primaryErr != nil {
		f.logger.Warn("primary ledger write failed",
			"code", record.Code, "fid", record.FID, "error", primaryErr)
	}
	if f.fallback == nil {
		return primaryErr
	}
	fallbackErr := f.fallback.MarkRedeemed(ctx, record)
	if fallbackErr != nil {
		f.logger.Warn("fallback ledger write failed",
			"code", record.Code, "fid", record.FID, "error", fallbackErr)
	}
	if primaryErr != nil && fallbackErr != nil {
		return primaryErr
	}
	return nil
}
