package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorepoints/internal/database"
	"github.com/dukerupert/chorepoints/internal/model"
)

type FamilyStore struct {
	db DBTX
	d  database.Dialect
}

func NewFamilyStore(db *database.DB) *FamilyStore {
	return &FamilyStore{db: db.DB, d: db.Dialect}
}

func (s *FamilyStore) WithTx(tx *sql.Tx) *FamilyStore {
	return &FamilyStore{db: tx, d: s.d}
}

func scanFamily(row scanner) (*model.Family, error) {
	var f model.Family
	var deadline sql.NullString

	err := row.Scan(&f.ID, &f.Name, &f.Timezone, &f.BonusEnabled, &deadline, &f.BonusAmount, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}

	// Legacy rows may hold a deadline in any of the old shapes; anything
	// unparseable counts as no deadline configured.
	if deadline.Valid {
		if tod, err := model.ParseTimeOfDay(deadline.String); err == nil {
			f.BonusDeadline = &tod
		}
	}
	return &f, nil
}

const familyCols = `id, name, timezone, bonus_enabled, bonus_deadline, bonus_amount, created_at, updated_at`

func (s *FamilyStore) Create(ctx context.Context, name, timezone string) (*model.Family, error) {
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx, s.d.Rebind(
		`INSERT INTO families (name, timezone, created_at, updated_at) VALUES (?, ?, ?, ?) RETURNING id`),
		name, timezone, now, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *FamilyStore) GetByID(ctx context.Context, id int64) (*model.Family, error) {
	row := s.db.QueryRowContext(ctx, s.d.Rebind(`SELECT `+familyCols+` FROM families WHERE id = ?`), id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

// UpdateBonus replaces the family's daily bonus configuration. The deadline
// is always written in its normalized "HH:MM" form.
func (s *FamilyStore) UpdateBonus(ctx context.Context, id int64, enabled bool, deadline *model.TimeOfDay, amount int) (*model.Family, error) {
	var dl sql.NullString
	if deadline != nil {
		dl = sql.NullString{String: deadline.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.d.Rebind(
		`UPDATE families SET bonus_enabled = ?, bonus_deadline = ?, bonus_amount = ?, updated_at = ? WHERE id = ?`),
		enabled, dl, amount, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update family bonus: %w", err)
	}
	return s.GetByID(ctx, id)
}

// SetRawDeadline stores a deadline value exactly as given. It exists for
// importing rows written by older clients.
func (s *FamilyStore) SetRawDeadline(ctx context.Context, id int64, raw string) error {
	_, err := s.db.ExecContext(ctx, s.d.Rebind(`UPDATE families SET bonus_deadline = ? WHERE id = ?`), raw, id)
	if err != nil {
		return fmt.Errorf("set raw deadline: %w", err)
	}
	return nil
}
