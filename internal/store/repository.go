/**
 * @description
 * This file defines the repository interfaces for the redemption service.
 * Consumers depend on these interfaces; the concrete Postgres and SQLite
 * implementations live alongside them in this package.
 *
 * @notes
 * - The Ledger interface is deliberately narrow. The dual-backend fallback
 *   policy (prefer primary, mirror writes, consult fallback on miss) is
 *   composed once in FallbackLedger rather than scattered through callers.
 */

package store

import (
	"context"
	"errors"

	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/domain"
)

var (
	ErrCodeNotFound     = errors.New("gift code not found")
	ErrAllianceNotFound = errors.New("alliance not found")
)

// Ledger is the durable idempotency record of which (alliance, code, fid)
// triples already reached a terminal outcome.
type Ledger interface {
	// IsRedeemed reports whether the triple already has a terminal record.
	IsRedeemed(ctx context.Context, allianceID int64, code, fid string) (bool, error)
	// BatchIsRedeemed answers for a whole roster in one query. The result has
	// an entry for every requested fid.
	BatchIsRedeemed(ctx context.Context, allianceID int64, code string, fids []string) (map[string]bool, error)
	// MarkRedeemed upserts the terminal record for the triple. Writing the
	// same key again is a no-op.
	MarkRedeemed(ctx context.Context, record domain.RedemptionRecord) error
}

// CodeRepository persists the gift-code list and its dispatch bookkeeping.
type CodeRepository interface {
	ListCodes(ctx context.Context) ([]domain.GiftCode, error)
	GetCode(ctx context.Context, code string) (*domain.GiftCode, error)
	// InsertCode stores a newly discovered code. Inserting a known code is a
	// no-op and reports inserted=false.
	InsertCode(ctx context.Context, giftCode domain.GiftCode) (inserted bool, err error)
	MarkDispatched(ctx context.Context, code string) error
	ListUndispatched(ctx context.Context) ([]string, error)
}

// RosterRepository exposes the alliance rosters. The roster is owned by the
// membership tooling; this service only reads it.
type RosterRepository interface {
	ListEnabledAlliances(ctx context.Context) ([]domain.Alliance, error)
	GetAlliance(ctx context.Context, allianceID int64) (*domain.Alliance, error)
	ListMembers(ctx context.Context, allianceID int64) ([]domain.Member, error)
}
