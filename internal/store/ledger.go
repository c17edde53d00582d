package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorepoints/internal/database"
	"github.com/dukerupert/chorepoints/internal/model"
)

// LedgerStore reads and appends integral_history. Rows are never updated or
// deleted; the schema rejects both.
type LedgerStore struct {
	db DBTX
	d  database.Dialect
}

func NewLedgerStore(db *database.DB) *LedgerStore {
	return &LedgerStore{db: db.DB, d: db.Dialect}
}

func (s *LedgerStore) WithTx(tx *sql.Tx) *LedgerStore {
	return &LedgerStore{db: tx, d: s.d}
}

func scanLedgerEntry(row scanner) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var bonusDay sql.NullString
	err := row.Scan(&e.ID, &e.ChildID, &e.FamilyID, &e.SourceType, &e.SourceID, &e.Amount, &e.EventDate, &bonusDay, &e.Description)
	if err != nil {
		return nil, err
	}
	e.EventDate = e.EventDate.UTC()
	if bonusDay.Valid {
		d, err := model.ParseDate(bonusDay.String)
		if err != nil {
			return nil, fmt.Errorf("parse bonus day %q: %w", bonusDay.String, err)
		}
		e.BonusDay = &d
	}
	return &e, nil
}

const ledgerCols = `id, child_id, family_id, source_type, source_id, amount, event_date, bonus_day, description`

// Append inserts e unless an entry for the same reward already exists. It
// reports whether a row was written and sets e.ID when it was.
func (s *LedgerStore) Append(ctx context.Context, e *model.LedgerEntry) (bool, error) {
	var bonusDay sql.NullString
	if e.BonusDay != nil {
		bonusDay = sql.NullString{String: e.BonusDay.String(), Valid: true}
	}

	err := s.db.QueryRowContext(ctx, s.d.Rebind(`INSERT INTO integral_history
		(child_id, family_id, source_type, source_id, amount, event_date, bonus_day, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING id`),
		e.ChildID, e.FamilyID, e.SourceType, e.SourceID, e.Amount, e.EventDate.UTC(), bonusDay, e.Description,
	).Scan(&e.ID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("append ledger entry: %w", err)
	}
	return true, nil
}

// HasFamilyBonus reports whether childID already received the family bonus
// for day.
func (s *LedgerStore) HasFamilyBonus(ctx context.Context, childID int64, day model.Date) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.d.Rebind(
		`SELECT COUNT(*) FROM integral_history WHERE child_id = ? AND source_type = ? AND bonus_day = ?`),
		childID, model.SourceFamilyBonus, day.String(),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check family bonus: %w", err)
	}
	return n > 0, nil
}

// ListByChild returns the newest entries first. limit <= 0 means no limit.
func (s *LedgerStore) ListByChild(ctx context.Context, childID int64, limit int) ([]model.LedgerEntry, error) {
	query := `SELECT ` + ledgerCols + ` FROM integral_history WHERE child_id = ? ORDER BY event_date DESC, id DESC`
	args := []any{childID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.d.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// SumByChild returns the total of all entries for childID and their count.
func (s *LedgerStore) SumByChild(ctx context.Context, childID int64) (int, int, error) {
	var sum, count int
	err := s.db.QueryRowContext(ctx, s.d.Rebind(
		`SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM integral_history WHERE child_id = ?`), childID,
	).Scan(&sum, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("sum ledger: %w", err)
	}
	return sum, count, nil
}
