package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dukerupert/chorepoints/internal/database"
	"github.com/dukerupert/chorepoints/internal/model"
)

type SessionStore struct {
	db DBTX
	d  database.Dialect
}

func NewSessionStore(db *database.DB) *SessionStore {
	return &SessionStore{db: db.DB, d: db.Dialect}
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func scanSession(row scanner) (*model.Session, error) {
	var s model.Session
	if err := row.Scan(&s.ID, &s.Token, &s.AccountID, &s.ExpiresAt, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

const sessionCols = `id, token, account_id, expires_at, created_at`

func (s *SessionStore) Create(ctx context.Context, accountID int64, ttl time.Duration, now time.Time) (*model.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	now = now.UTC()
	sess := &model.Session{Token: token, AccountID: accountID, ExpiresAt: now.Add(ttl), CreatedAt: now}
	err = s.db.QueryRowContext(ctx, s.d.Rebind(
		`INSERT INTO sessions (token, account_id, expires_at, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
		sess.Token, sess.AccountID, sess.ExpiresAt, sess.CreatedAt,
	).Scan(&sess.ID)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// GetByToken returns the session for token, or nil if it does not exist or
// has expired at now.
func (s *SessionStore) GetByToken(ctx context.Context, token string, now time.Time) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, s.d.Rebind(
		`SELECT `+sessionCols+` FROM sessions WHERE token = ? AND expires_at > ?`), token, now.UTC())
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.d.Rebind(`DELETE FROM sessions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.d.Rebind(`DELETE FROM sessions WHERE expires_at <= ?`), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
