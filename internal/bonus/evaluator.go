// Package bonus decides whether a child has earned the family's daily
// homework bonus.
package bonus

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/chorepoints/internal/clock"
	"github.com/dukerupert/chorepoints/internal/model"
)

// AssignmentLister is the read the evaluator needs from the assignment store.
type AssignmentLister interface {
	ListByChildAndDay(ctx context.Context, childID int64, day model.Date, loc *time.Location) ([]model.Assignment, error)
}

// BonusChecker reports whether a bonus row already exists for a child and day.
type BonusChecker interface {
	HasFamilyBonus(ctx context.Context, childID int64, day model.Date) (bool, error)
}

type Evaluator struct {
	clock    clock.Clock
	fallback *time.Location
}

// NewEvaluator returns an Evaluator. fallback is the time zone used for
// families that have none configured.
func NewEvaluator(c clock.Clock, fallback *time.Location) *Evaluator {
	if c == nil {
		c = clock.System()
	}
	if fallback == nil {
		fallback = time.UTC
	}
	return &Evaluator{clock: c, fallback: fallback}
}

// Evaluate returns the family bonus entry owed because approved was just
// approved, or nil if none is owed. approved must be the in-flight state;
// it replaces whatever the store returns for the same id.
//
// The returned entry is still subject to the ledger's uniqueness constraint
// on (child, day), so a concurrent payment can make it a no-op.
func (e *Evaluator) Evaluate(ctx context.Context, fam *model.Family, approved *model.Assignment, assignments AssignmentLister, paid BonusChecker) (*model.LedgerEntry, error) {
	if !approved.IsHomework() || !approved.Approved() {
		return nil, nil
	}
	if fam == nil || !fam.BonusConfigured() {
		return nil, nil
	}

	loc := fam.Location(e.fallback)
	day := approved.ScheduledDate

	items, err := assignments.ListByChildAndDay(ctx, approved.OwnerChildID, day, loc)
	if err != nil {
		return nil, fmt.Errorf("list day homework: %w", err)
	}
	if !Owed(*fam.BonusDeadline, day, loc, merge(items, approved)) {
		return nil, nil
	}

	already, err := paid.HasFamilyBonus(ctx, approved.OwnerChildID, day)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, nil
	}

	return &model.LedgerEntry{
		ChildID:     approved.OwnerChildID,
		FamilyID:    approved.FamilyID,
		SourceType:  model.SourceFamilyBonus,
		SourceID:    0,
		Amount:      fam.BonusAmount,
		EventDate:   e.clock.Now().UTC(),
		BonusDay:    &day,
		Description: fmt.Sprintf("Daily homework bonus %s", day),
	}, nil
}

// Owed reports whether every homework item in items is approved and was
// completed strictly before deadline on day in loc. An empty day earns
// nothing.
func Owed(deadline model.TimeOfDay, day model.Date, loc *time.Location, items []model.Assignment) bool {
	cutoff := day.At(deadline, loc)
	seen := 0
	for i := range items {
		a := &items[i]
		if !a.IsHomework() {
			continue
		}
		seen++
		if !a.Approved() || a.CompletedAt == nil {
			return false
		}
		if !a.CompletedAt.Before(cutoff) {
			return false
		}
	}
	return seen > 0
}

func merge(items []model.Assignment, current *model.Assignment) []model.Assignment {
	out := make([]model.Assignment, 0, len(items)+1)
	found := false
	for _, a := range items {
		if a.ID == current.ID {
			a = *current
			found = true
		}
		out = append(out, a)
	}
	if !found {
		out = append(out, *current)
	}
	return out
}
