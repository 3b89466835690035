/**
 * @description
 * This file provides the local SQLite fallback for the idempotency ledger.
 * It mirrors every terminal record written to the primary store so the
 * engine stays correct, if slower and non-shared, while the primary is
 * unreachable.
 *
 * @dependencies
 * - modernc.org/sqlite: Pure-Go SQLite driver, registered as "sqlite".
 */

package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteLedger is the local fallback implementation of Ledger.
type SQLiteLedger struct {
	db *sql.DB
}

const sqliteLedgerSchema = `
CREATE TABLE IF NOT EXISTS redemption_records (
	alliance_id INTEGER NOT NULL,
	code        TEXT    NOT NULL,
	fid         TEXT    NOT NULL,
	status      TEXT    NOT NULL,
	redeemed_at INTEGER NOT NULL,
	PRIMARY KEY (alliance_id, code, fid)
)`

// OpenSQLiteLedger opens (creating if needed) the fallback ledger database.
func OpenSQLiteLedger(path string) (*SQLiteLedger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite ledger path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite ledger: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite ledger: %w", err)
	}
	if _, err := db.Exec(sqliteLedgerSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create sqlite ledger schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// Close closes the SQLite handle.
func (l *SQLiteLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// IsRedeemed reports whether a terminal record exists for the triple.
func (l *SQLiteLedger) IsRedeemed(ctx context.Context, allianceID int64, code, fid string) (bool, error) {
	var exists int
	query := `SELECT EXISTS (
		SELECT 1 FROM redemption_records
		WHERE alliance_id = ? AND code = ? AND fid = ?
	)`
	if err := l.db.QueryRowContext(ctx, query, allianceID, code, fid).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check redemption record: %w", err)
	}
	return exists == 1, nil
}

// BatchIsRedeemed answers for a whole roster in one query.
func (l *SQLiteLedger) BatchIsRedeemed(ctx context.Context, allianceID int64, code string, fids []string) (map[string]bool, error) {
	result := make(map[string]bool, len(fids))
	for _, fid := range fids {
		result[fid] = false
	}
	if len(fids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(fids)), ",")
	query := fmt.Sprintf(
		`SELECT fid FROM redemption_records WHERE alliance_id = ? AND code = ? AND fid IN (%s)`,
		placeholders,
	)
	args := make([]any, 0, len(fids)+2)
	args = append(args, allianceID, code)
	for _, fid := range fids {
		args = append(args, fid)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
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
	return result, rows.Err()
}

// MarkRedeemed upserts the terminal record for a triple.
func (l *SQLiteLedger) MarkRedeemed(ctx context.Context, record domain.RedemptionRecord) error {
	query := `INSERT INTO redemption_records (alliance_id, code, fid, status, redeemed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (alliance_id, code, fid)
		DO UPDATE SET status = excluded.status, redeemed_at = excluded.redeemed_at`
	_, err := l.db.ExecContext(ctx, query,
		record.AllianceID, record.Code, record.FID, record.Status, record.RedeemedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert redemption record: %w", err)
	}
	return nil
}
