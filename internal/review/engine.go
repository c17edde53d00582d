// Package review holds the assignment state machine. It is pure: every
// transition takes the current assignment and the accounts involved and
// returns the next assignment without touching storage.
package review

import (
	"github.com/dukerupert/chorepoints/internal/apperr"
	"github.com/dukerupert/chorepoints/internal/clock"
	"github.com/dukerupert/chorepoints/internal/model"
)

// Outcome says what a review did.
type Outcome string

const (
	OutcomeApproved  Outcome = "approved"
	OutcomeRejected  Outcome = "rejected"
	OutcomeUnchanged Outcome = "unchanged"
)

// Result is the next state of a reviewed assignment. For OutcomeUnchanged,
// Next is the current assignment as read.
type Result struct {
	Next    *model.Assignment
	Outcome Outcome
}

type Engine struct {
	clock clock.Clock
}

func NewEngine(c clock.Clock) *Engine {
	if c == nil {
		c = clock.System()
	}
	return &Engine{clock: c}
}

// CreationState decides whether actor may create an assignment of kind for
// owner and which creation state it starts in. Parents create approved
// items for any child in their family. A child may propose a task for
// itself, which waits for a parent.
func (e *Engine) CreationState(actor, owner *model.Account, kind model.Kind) (model.CreationState, error) {
	if !kind.Valid() {
		return "", apperr.Validation("kind must be homework or task")
	}
	if !owner.IsChild() {
		return "", apperr.Validation("assignments must belong to a child")
	}
	if actor.FamilyID != owner.FamilyID {
		return "", apperr.Forbidden("account belongs to another family")
	}

	switch {
	case actor.IsParent():
		return model.CreationApproved, nil
	case actor.ID != owner.ID:
		return "", apperr.Forbidden("children can only create their own tasks")
	case kind == model.KindHomework:
		return "", apperr.Forbidden("only parents can create homework")
	default:
		return model.CreationPending, nil
	}
}

// Submit marks a as completed by its owning child.
func (e *Engine) Submit(a *model.Assignment, actor *model.Account) (*model.Assignment, error) {
	if actor.ID != a.OwnerChildID {
		return nil, apperr.Forbidden("only the owning child can submit this assignment")
	}
	if a.CreationReviewState != model.CreationApproved {
		return nil, apperr.Conflict("awaiting creation approval", a)
	}
	if a.CompletionState != model.CompletionNotStarted || a.Approved() {
		return nil, apperr.Conflict("already completed", a)
	}

	now := e.clock.Now().UTC()
	next := *a
	next.CompletionState = model.CompletionCompleted
	next.CompletionReviewState = model.ReviewNone
	next.CompletedAt = &now
	next.UpdatedAt = now
	return &next, nil
}

// Review applies a parent's verdict to a completed assignment. Reviewing an
// approved assignment returns OutcomeUnchanged and no error; callers decide
// how to surface it. incorrectCount is recorded for homework and ignored
// for tasks.
func (e *Engine) Review(a *model.Assignment, actor, owner *model.Account, approved bool, incorrectCount *int) (Result, error) {
	if err := authorizeParent(a, actor, owner); err != nil {
		return Result{}, err
	}
	if a.Approved() {
		return Result{Next: a, Outcome: OutcomeUnchanged}, nil
	}
	if a.CompletionState != model.CompletionCompleted {
		return Result{}, apperr.Conflict("not completed", a)
	}
	if incorrectCount != nil && *incorrectCount < 0 {
		return Result{}, apperr.Validation("incorrect_count must not be negative")
	}

	now := e.clock.Now().UTC()
	reviewer := actor.ID
	next := *a
	next.ReviewedAt = &now
	next.ReviewerID = &reviewer
	next.UpdatedAt = now

	if !approved {
		next.CompletionState = model.CompletionNotStarted
		next.CompletionReviewState = model.ReviewRejected
		next.CompletedAt = nil
		return Result{Next: &next, Outcome: OutcomeRejected}, nil
	}

	next.CompletionReviewState = model.ReviewApproved
	if a.IsHomework() && incorrectCount != nil {
		n := *incorrectCount
		next.IncorrectCount = &n
	}
	return Result{Next: &next, Outcome: OutcomeApproved}, nil
}

// ApproveCreation lets a parent accept a task a child proposed.
func (e *Engine) ApproveCreation(a *model.Assignment, actor, owner *model.Account) (*model.Assignment, error) {
	if err := authorizeParent(a, actor, owner); err != nil {
		return nil, err
	}
	if a.Kind != model.KindTask {
		return nil, apperr.Validation("only tasks need creation approval")
	}
	if a.CreationReviewState == model.CreationApproved {
		return nil, apperr.Conflict("creation already approved", a)
	}

	now := e.clock.Now().UTC()
	next := *a
	next.CreationReviewState = model.CreationApproved
	next.UpdatedAt = now
	return &next, nil
}

// Reward is the number of points an approved assignment is worth on its own.
func Reward(a *model.Assignment) int {
	return a.RewardPoints
}

func authorizeParent(a *model.Assignment, actor, owner *model.Account) error {
	if !actor.IsParent() {
		return apperr.Forbidden("only parents can review assignments")
	}
	if owner.ID != a.OwnerChildID || actor.FamilyID != owner.FamilyID || owner.FamilyID != a.FamilyID {
		return apperr.Forbidden("assignment belongs to another family")
	}
	return nil
}
