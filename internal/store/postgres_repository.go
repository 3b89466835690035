/**
 * @description
 * This file provides the PostgreSQL implementation of the repository
 * interfaces. It contains all the SQL for the gift_codes, alliances,
 * alliance_members, and redemption_records tables.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/domain"
)

// PostgresRepository is the primary durable store. It implements Ledger,
// CodeRepository, and RosterRepository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// IsRedeemed reports whether a terminal record exists for the triple.
func (r *PostgresRepository) IsRedeemed(ctx context.Context, allianceID int64, code, fid string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
		SELECT 1 FROM redemption_records
		WHERE alliance_id = $1 AND code = $2 AND fid = $3
	)`
	if err := r.db.QueryRow(ctx, query, allianceID, code, fid).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check redemption record: %w", err)
	}
	return exists, nil
}

// BatchIsRedeemed resolves a whole roster in a single query. Sequential
// per-member lookups are the dominant latency cost on large rosters, so
// callers must use this for any set larger than one.
func (r *PostgresRepository) BatchIsRedeemed(ctx context.Context, allianceID int64, code string, fids []string) (map[string]bool, error) {
	result := make(map[string]bool, len(fids))
	for _, fid := range fids {
		result[fid] = false
	}
	if len(fids) == 0 {
		return result, nil
	}

	query := `SELECT fid FROM redemption_records
		WHERE alliance_id = $1 AND code = $2 AND fid = ANY($3)`
	rows, err := r.db.Query(ctx, query, allianceID, code, fids)
	if err != nil {
		return nil, fmt.Errorf("failed to batch check redemption records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fid string
		if err := rows.Scan(&fid); err != nil {
			return nil, fmt.Errorf("failed to scan redemption record: %w", err)
		}
		result[fid] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read redemption records: %w", err)
	}
	return result, nil
}

// MarkRedeemed upserts the terminal record for a triple. Concurrent upserts
// to the same key are last-write-wins, which is acceptable because every
// write for a key carries the same or a compatible terminal status.
func (r *PostgresRepository) MarkRedeemed(ctx context.Context, record domain.RedemptionRecord) error {
	query := `INSERT INTO redemption_records (alliance_id, code, fid, status, redeemed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (alliance_id, code, fid)
		DO UPDATE SET status = EXCLUDED.status, redeemed_at = EXCLUDED.redeemed_at`
	_, err := r.db.Exec(ctx, query,
		record.AllianceID, record.Code, record.FID, record.Status, record.RedeemedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert redemption record: %w", err)
	}
	return nil
}

// ListCodes returns every known gift code, newest first.
func (r *PostgresRepository) ListCodes(ctx context.Context) ([]domain.GiftCode, error) {
	query := `SELECT code, date, validation_status, dispatched, added_at
		FROM gift_codes ORDER BY added_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list gift codes: %w", err)
	}
	defer rows.Close()

	var codes []domain.GiftCode
	for rows.Next() {
		var gc domain.GiftCode
		if err := rows.Scan(&gc.Code, &gc.Date, &gc.ValidationStatus, &gc.Dispatched, &gc.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan gift code: %w", err)
		}
		codes = append(codes, gc)
	}
	return codes, rows.Err()
}

// GetCode retrieves a single gift code.
func (r *PostgresRepository) GetCode(ctx context.Context, code string) (*domain.GiftCode, error) {
	var gc domain.GiftCode
	query := `SELECT code, date, validation_status, dispatched, added_at
		FROM gift_codes WHERE code = $1`
	err := r.db.QueryRow(ctx, query, code).Scan(&gc.Code, &gc.Date, &gc.ValidationStatus, &gc.Dispatched, &gc.AddedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to get gift code: %w", err)
	}
	return &gc, nil
}

// InsertCode stores a newly discovered code. A conflict on the code means a
// concurrent poller (or a prior run) got there first.
func (r *PostgresRepository) InsertCode(ctx context.Context, giftCode domain.GiftCode) (bool, error) {
	query := `INSERT INTO gift_codes (code, date, validation_status, dispatched, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO NOTHING`
	tag, err := r.db.Exec(ctx, query,
		giftCode.Code, giftCode.Date, giftCode.ValidationStatus, giftCode.Dispatched, giftCode.AddedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert gift code: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkDispatched flags a code as handed to every enabled alliance at least
// once. Marking an already-dispatched code is a no-op.
func (r *PostgresRepository) MarkDispatched(ctx context.Context, code string) error {
	query := `UPDATE gift_codes SET dispatched = TRUE WHERE code = $1 AND dispatched = FALSE`
	if _, err := r.db.Exec(ctx, query, code); err != nil {
		return fmt.Errorf("failed to mark gift code dispatched: %w", err)
	}
	return nil
}

// ListUndispatched returns codes never handed to the orchestrator. On startup
// these are marked dispatched without redeeming, so a restart never replays
// historical codes.
func (r *PostgresRepository) ListUndispatched(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT code FROM gift_codes WHERE dispatched = FALSE`)
	if err != nil {
		return nil, fmt.Errorf("failed to list undispatched codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// ListEnabledAlliances returns the alliances whose operators enabled
// automatic redemption.
func (r *PostgresRepository) ListEnabledAlliances(ctx context.Context) ([]domain.Alliance, error) {
	query := `SELECT id, name, auto_redeem_enabled FROM alliances WHERE auto_redeem_enabled = TRUE`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list alliances: %w", err)
	}
	defer rows.Close()

	var alliances []domain.Alliance
	for rows.Next() {
		var a domain.Alliance
		if err := rows.Scan(&a.ID, &a.Name, &a.AutoRedeemEnabled); err != nil {
			return nil, fmt.Errorf("failed to scan alliance: %w", err)
		}
		alliances = append(alliances, a)
	}
	return alliances, rows.Err()
}

// GetAlliance retrieves one alliance by id.
func (r *PostgresRepository) GetAlliance(ctx context.Context, allianceID int64) (*domain.Alliance, error) {
	var a domain.Alliance
	query := `SELECT id, name, auto_redeem_enabled FROM alliances WHERE id = $1`
	err := r.db.QueryRow(ctx, query, allianceID).Scan(&a.ID, &a.Name, &a.AutoRedeemEnabled)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAllianceNotFound
		}
		return nil, fmt.Errorf("failed to get alliance: %w", err)
	}
	return &a, nil
}

// ListMembers returns the roster for an alliance. Rows with a null or empty
// fid are skipped; the roster tooling has historically produced them.
func (r *PostgresRepository) ListMembers(ctx context.Context, allianceID int64) ([]domain.Member, error) {
	query := `SELECT fid, COALESCE(nickname, ''), COALESCE(furnace_level, 0), alliance_id
		FROM alliance_members
		WHERE alliance_id = $1 AND fid IS NOT NULL AND fid <> ''`
	rows, err := r.db.Query(ctx, query, allianceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.FID, &m.Nickname, &m.FurnaceLevel, &m.AllianceID); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
