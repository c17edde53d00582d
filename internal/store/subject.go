package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorepoints/internal/database"
	"github.com/dukerupert/chorepoints/internal/model"
)

type SubjectStore struct {
	db DBTX
	d  database.Dialect
}

func NewSubjectStore(db *database.DB) *SubjectStore {
	return &SubjectStore{db: db.DB, d: db.Dialect}
}

func (s *SubjectStore) Create(ctx context.Context, familyID int64, name string) (*model.Subject, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.d.Rebind(
		`INSERT INTO subjects (family_id, name, created_at) VALUES (?, ?, ?) RETURNING id`),
		familyID, name, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert subject: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SubjectStore) GetByID(ctx context.Context, id int64) (*model.Subject, error) {
	var sub model.Subject
	err := s.db.QueryRowContext(ctx, s.d.Rebind(`SELECT id, family_id, name, created_at FROM subjects WHERE id = ?`), id).
		Scan(&sub.ID, &sub.FamilyID, &sub.Name, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return &sub, nil
}
