package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/chorepoints/internal/model"
)

func newHomework(f *model.Family, child, creator *model.Account, day model.Date, loc *time.Location) *model.Assignment {
	return &model.Assignment{
		Kind:                model.KindHomework,
		OwnerChildID:        child.ID,
		FamilyID:            f.ID,
		Name:                "Math p.12",
		ScheduledFor:        day.Start(loc),
		RewardPoints:        10,
		CreationReviewState: model.CreationApproved,
		CreatedBy:           creator.ID,
	}
}

func TestAssignmentCreateAndGet(t *testing.T) {
	s := setupStoreTestDB(t)
	ctx := context.Background()
	f, parent, child := s.seedFamily(t, "")

	sub, err := s.subjects.Create(ctx, f.ID, "Math")
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}

	day := model.Date{Year: 2024, Month: time.May, Day: 6}
	a := newHomework(f, child, parent, day, time.UTC)
	a.SubjectID = &sub.ID
	dl := model.TimeOfDay{Hour: 19}
	a.Deadline = &dl

	got, err := s.assignments.Create(ctx, a)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.ScheduledDate != day {
		t.Errorf("scheduled date = %v, want %v", got.ScheduledDate, day)
	}
	if got.SubjectName != "Math" {
		t.Errorf("subject name = %q, want Math", got.SubjectName)
	}
	if got.Deadline == nil || *got.Deadline != dl {
		t.Errorf("deadline = %v, want %v", got.Deadline, dl)
	}
	if got.CompletionState != model.CompletionNotStarted || got.CompletionReviewState != model.ReviewNone {
		t.Errorf("states = %q/%q", got.CompletionState, got.CompletionReviewState)
	}

	missing, err := s.assignments.GetByID(ctx, 999)
	if err != nil || missing != nil {
		t.Errorf("missing = %v, %v; want nil, nil", missing, err)
	}
}

func TestAssignmentListByChildAndDayUsesFamilyZone(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skip("tzdata not available")
	}
	s := setupStoreTestDB(t)
	ctx := context.Background()
	f, parent, child := s.seedFamily(t, "America/Los_Angeles")

	monday := model.Date{Year: 2024, Month: time.May, Day: 6}
	tuesday := model.Date{Year: 2024, Month: time.May, Day: 7}
	for _, d := range []model.Date{monday, monday, tuesday} {
		if _, err := s.assignments.Create(ctx, newHomework(f, child, parent, d, loc)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	list, err := s.assignments.ListByChildAndDay(ctx, child.ID, monday, loc)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	for _, a := range list {
		if a.ScheduledDate != monday {
			t.Errorf("scheduled date = %v, want %v", a.ScheduledDate, monday)
		}
	}
}

func TestAssignmentScheduledOnDayWithoutMidnight(t *testing.T) {
	loc, err := time.LoadLocation("America/Santiago")
	if err != nil {
		t.Skip("tzdata not available")
	}
	s := setupStoreTestDB(t)
	ctx := context.Background()
	f, parent, child := s.seedFamily(t, "America/Santiago")

	day := model.Date{Year: 2024, Month: time.September, Day: 8}
	created, err := s.assignments.Create(ctx, newHomework(f, child, parent, day, loc))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ScheduledDate != day {
		t.Errorf("scheduled date = %v, want %v", created.ScheduledDate, day)
	}

	list, err := s.assignments.ListByChildAndDay(ctx, child.ID, day, loc)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("list for %v = %+v, want the created assignment", day, list)
	}

	prev, err := s.assignments.ListByChildAndDay(ctx, child.ID, model.Date{Year: 2024, Month: time.September, Day: 7}, loc)
	if err != nil {
		t.Fatalf("list previous day: %v", err)
	}
	if len(prev) != 0 {
		t.Errorf("previous day has %d assignments, want 0", len(prev))
	}
}

func TestAssignmentUpdateState(t *testing.T) {
	s := setupStoreTestDB(t)
	ctx := context.Background()
	f, parent, child := s.seedFamily(t, "")

	a, _ := s.assignments.Create(ctx, newHomework(f, child, parent, model.Date{Year: 2024, Month: 5, Day: 6}, time.UTC))

	now := time.Date(2024, 5, 6, 18, 0, 0, 0, time.UTC)
	completed := *a
	completed.CompletionState = model.CompletionCompleted
	completed.CompletedAt = &now
	completed.UpdatedAt = now
	if err := s.assignments.UpdateState(ctx, a, &completed); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Writing from the stale snapshot must fail.
	if err := s.assignments.UpdateState(ctx, a, &completed); !errors.Is(err, ErrStaleState) {
		t.Fatalf("stale update error = %v, want ErrStaleState", err)
	}

	approved := completed
	approved.CompletionReviewState = model.ReviewApproved
	approved.ReviewedAt = &now
	approved.ReviewerID = &parent.ID
	if err := s.assignments.UpdateState(ctx, &completed, &approved); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// An approved row is never rewritten, even from a matching snapshot.
	rejected := approved
	rejected.CompletionReviewState = model.ReviewRejected
	if err := s.assignments.UpdateState(ctx, &approved, &rejected); !errors.Is(err, ErrStaleState) {
		t.Fatalf("update of approved error = %v, want ErrStaleState", err)
	}

	got, _ := s.assignments.GetByID(ctx, a.ID)
	if got.CompletionReviewState != model.ReviewApproved {
		t.Errorf("review state = %q, want approved", got.CompletionReviewState)
	}
	if got.ReviewerID == nil || *got.ReviewerID != parent.ID {
		t.Errorf("reviewer = %v, want %d", got.ReviewerID, parent.ID)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(now) {
		t.Errorf("completed at = %v, want %v", got.CompletedAt, now)
	}
}
