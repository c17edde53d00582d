package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorepoints/internal/database"
	"github.com/dukerupert/chorepoints/internal/model"
)

type AccountStore struct {
	db DBTX
	d  database.Dialect
}

func NewAccountStore(db *database.DB) *AccountStore {
	return &AccountStore{db: db.DB, d: db.Dialect}
}

func (s *AccountStore) WithTx(tx *sql.Tx) *AccountStore {
	return &AccountStore{db: tx, d: s.d}
}

func scanAccount(row scanner) (*model.Account, error) {
	var a model.Account
	var pinHash string
	err := row.Scan(&a.ID, &a.FamilyID, &a.Name, &a.Role, &a.Balance, &pinHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.HasPIN = pinHash != ""
	return &a, nil
}

const accountCols = `id, family_id, name, role, balance, pin_hash, created_at, updated_at`

func (s *AccountStore) Create(ctx context.Context, familyID int64, name string, role model.Role, pinHash string) (*model.Account, error) {
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx, s.d.Rebind(
		`INSERT INTO accounts (family_id, name, role, pin_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		familyID, name, role, pinHash, now, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *AccountStore) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	return s.get(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = ?`, id)
}

// GetForUpdate reads the account and, inside a transaction, locks its row
// until commit. Review transactions lock the child's account first so
// approvals for the same child run one after another.
func (s *AccountStore) GetForUpdate(ctx context.Context, id int64) (*model.Account, error) {
	return s.get(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = ?`+s.d.ForUpdate(), id)
}

func (s *AccountStore) get(ctx context.Context, query string, id int64) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx, s.d.Rebind(query), id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) ListByFamily(ctx context.Context, familyID int64) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx, s.d.Rebind(
		`SELECT `+accountCols+` FROM accounts WHERE family_id = ? ORDER BY role ASC, name ASC`), familyID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// Credit adds amount to the cached balance. It must only be called in the
// transaction that appends the matching ledger entries.
func (s *AccountStore) Credit(ctx context.Context, id int64, amount int, now time.Time) error {
	res, err := s.db.ExecContext(ctx, s.d.Rebind(
		`UPDATE accounts SET balance = balance + ?, updated_at = ? WHERE id = ?`),
		amount, now.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("credit balance: account %d not found", id)
	}
	return nil
}

func (s *AccountStore) GetPINHash(ctx context.Context, id int64) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, s.d.Rebind(`SELECT pin_hash FROM accounts WHERE id = ?`), id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get pin hash: %w", err)
	}
	return hash, nil
}

func (s *AccountStore) SetPIN(ctx context.Context, id int64, hash string) error {
	_, err := s.db.ExecContext(ctx, s.d.Rebind(`UPDATE accounts SET pin_hash = ?, updated_at = ? WHERE id = ?`), hash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}
