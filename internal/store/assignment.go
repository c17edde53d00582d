package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorepoints/internal/database"
	"github.com/dukerupert/chorepoints/internal/model"
)

// AssignmentStore persists homework and tasks. Reads resolve the owning
// family's timezone so ScheduledDate is the family-local civil day; loc is
// used when the family has none.
type AssignmentStore struct {
	db  DBTX
	d   database.Dialect
	loc *time.Location
}

func NewAssignmentStore(db *database.DB, loc *time.Location) *AssignmentStore {
	if loc == nil {
		loc = time.UTC
	}
	return &AssignmentStore{db: db.DB, d: db.Dialect, loc: loc}
}

func (s *AssignmentStore) WithTx(tx *sql.Tx) *AssignmentStore {
	return &AssignmentStore{db: tx, d: s.d, loc: s.loc}
}

func (s *AssignmentStore) scanAssignment(row scanner) (*model.Assignment, error) {
	var a model.Assignment
	var subjectID, incorrect, reviewer sql.NullInt64
	var subjectName, deadline sql.NullString
	var completedAt, reviewedAt sql.NullTime
	var tz string

	err := row.Scan(
		&a.ID, &a.Kind, &a.OwnerChildID, &a.FamilyID, &a.Name,
		&subjectID, &subjectName, &a.ScheduledFor, &deadline, &a.RewardPoints, &incorrect,
		&a.CreationReviewState, &a.CompletionState, &a.CompletionReviewState,
		&completedAt, &reviewedAt, &reviewer, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
		&tz,
	)
	if err != nil {
		return nil, err
	}

	if subjectID.Valid {
		a.SubjectID = &subjectID.Int64
		a.SubjectName = subjectName.String
	}
	if deadline.Valid {
		if tod, err := model.ParseTimeOfDay(deadline.String); err == nil {
			a.Deadline = &tod
		}
	}
	if incorrect.Valid {
		n := int(incorrect.Int64)
		a.IncorrectCount = &n
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		a.CompletedAt = &t
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time.UTC()
		a.ReviewedAt = &t
	}
	if reviewer.Valid {
		a.ReviewerID = &reviewer.Int64
	}

	a.ScheduledFor = a.ScheduledFor.UTC()
	loc := (&model.Family{Timezone: tz}).Location(s.loc)
	a.ScheduledDate = model.DateOf(a.ScheduledFor, loc)
	return &a, nil
}

const assignmentSelect = `SELECT a.id, a.kind, a.owner_child_id, a.family_id, a.name,
	a.subject_id, s.name, a.scheduled_for, a.deadline, a.reward_points, a.incorrect_count,
	a.creation_review_state, a.completion_state, a.completion_review_state,
	a.completed_at, a.reviewed_at, a.reviewer_id, a.created_by, a.created_at, a.updated_at,
	f.timezone
FROM assignments a
JOIN families f ON f.id = a.family_id
LEFT JOIN subjects s ON s.id = a.subject_id`

// Create inserts a. ScheduledFor must already be the first instant of the
// scheduled day in the family location, as returned by Date.Start.
func (s *AssignmentStore) Create(ctx context.Context, a *model.Assignment) (*model.Assignment, error) {
	now := time.Now().UTC()

	var deadline sql.NullString
	if a.Deadline != nil {
		deadline = sql.NullString{String: a.Deadline.String(), Valid: true}
	}

	var id int64
	err := s.db.QueryRowContext(ctx, s.d.Rebind(`INSERT INTO assignments
		(kind, owner_child_id, family_id, name, subject_id, scheduled_for, deadline, reward_points,
		 creation_review_state, completion_state, completion_review_state, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		a.Kind, a.OwnerChildID, a.FamilyID, a.Name, nullInt64(a.SubjectID), a.ScheduledFor.UTC(), deadline, a.RewardPoints,
		a.CreationReviewState, model.CompletionNotStarted, model.ReviewNone, a.CreatedBy, now, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *AssignmentStore) GetByID(ctx context.Context, id int64) (*model.Assignment, error) {
	row := s.db.QueryRowContext(ctx, s.d.Rebind(assignmentSelect+` WHERE a.id = ?`), id)
	a, err := s.scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

// ListByChildAndDay returns every assignment owned by childID whose
// scheduled instant falls on day in loc.
func (s *AssignmentStore) ListByChildAndDay(ctx context.Context, childID int64, day model.Date, loc *time.Location) ([]model.Assignment, error) {
	start, end := day.Range(loc)
	return s.list(ctx, assignmentSelect+` WHERE a.owner_child_id = ? AND a.scheduled_for >= ? AND a.scheduled_for < ?
		ORDER BY a.scheduled_for ASC, a.id ASC`, childID, start.UTC(), end.UTC())
}

func (s *AssignmentStore) ListByChild(ctx context.Context, childID int64) ([]model.Assignment, error) {
	return s.list(ctx, assignmentSelect+` WHERE a.owner_child_id = ? ORDER BY a.scheduled_for DESC, a.id ASC`, childID)
}

func (s *AssignmentStore) list(ctx context.Context, query string, args ...any) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, s.d.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		a, err := s.scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// UpdateState writes next's lifecycle fields, but only if the stored row
// still carries prev's states. An approved completion is never overwritten.
// ErrStaleState is returned when no row matched.
func (s *AssignmentStore) UpdateState(ctx context.Context, prev, next *model.Assignment) error {
	res, err := s.db.ExecContext(ctx, s.d.Rebind(`UPDATE assignments SET
		creation_review_state = ?, completion_state = ?, completion_review_state = ?,
		incorrect_count = ?, completed_at = ?, reviewed_at = ?, reviewer_id = ?, updated_at = ?
		WHERE id = ?
		  AND creation_review_state = ? AND completion_state = ? AND completion_review_state = ?
		  AND completion_review_state <> 'approved'`),
		next.CreationReviewState, next.CompletionState, next.CompletionReviewState,
		nullInt(next.IncorrectCount), nullTime(next.CompletedAt), nullTime(next.ReviewedAt), nullInt64(next.ReviewerID), next.UpdatedAt.UTC(),
		prev.ID,
		prev.CreationReviewState, prev.CompletionState, prev.CompletionReviewState,
	)
	if err != nil {
		return fmt.Errorf("update assignment state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrStaleState
	}
	return nil
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}
