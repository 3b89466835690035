/**
 * @description
 * This file defines the core domain models for the redemption service.
 * These structs represent gift codes, alliance rosters, and the durable
 * redemption records used throughout the business logic, database
 * interactions, and API layers.
 *
 * @notes
 * - Player identifiers (FIDs) are numeric in the game API but carried as
 *   strings everywhere: they appear in signed form payloads and database
 *   keys, and the upstream never performs arithmetic on them.
 */

package domain

import "time"

// Gift code lifecycle statuses.
const (
	CodeStatusPending   = "pending"
	CodeStatusValidated = "validated"
	CodeStatusInvalid   = "invalid"
)

// Redemption record statuses. ExpiredStatuses from the game API are folded
// into already_redeemed so a dead code is never retried for a member.
const (
	RecordStatusSuccess         = "success"
	RecordStatusAlreadyRedeemed = "already_redeemed"
	RecordStatusFailed          = "failed"
)

// GiftCode represents a promotional code known to the service.
// It maps directly to the `gift_codes` table.
type GiftCode struct {
	Code             string    `json:"code"`
	Date             string    `json:"date"` // publication date, YYYY-MM-DD
	ValidationStatus string    `json:"validation_status"`
	Dispatched       bool      `json:"dispatched"`
	AddedAt          time.Time `json:"added_at"`
}

// Alliance is a named roster of members scoped to one destination community.
// Redemption only runs for alliances whose operators enabled it.
type Alliance struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	AutoRedeemEnabled bool   `json:"auto_redeem_enabled"`
}

// Member is one game account enrolled in an alliance roster. The roster is
// managed elsewhere; this service only reads it.
type Member struct {
	FID          string `json:"fid"`
	Nickname     string `json:"nickname"`
	FurnaceLevel int    `json:"furnace_level"`
	AllianceID   int64  `json:"alliance_id"`
}

// RedemptionRecord is the durable terminal fact that a (alliance, code, fid)
// triple reached an outcome. It is the sole source of truth preventing
// re-redemption across restarts; writes are idempotent upserts on the triple.
type RedemptionRecord struct {
	AllianceID int64     `json:"alliance_id"`
	Code       string    `json:"code"`
	FID        string    `json:"fid"`
	Status     string    `json:"status"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

// ProgressUpdate is the aggregate counter snapshot emitted to the progress
// sink while an orchestration run is in flight and once on completion.
type ProgressUpdate struct {
	AllianceID      int64  `json:"alliance_id"`
	Code            string `json:"code"`
	Phase           string `json:"phase"` // started, progress, completed, skipped
	Total           int    `json:"total"`
	Completed       int    `json:"completed"`
	Succeeded       int    `json:"succeeded"`
	AlreadyRedeemed int    `json:"already_redeemed"`
	Failed          int    `json:"failed"`
	Skipped         int    `json:"skipped"`
}
