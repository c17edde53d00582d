// Package workflow runs each assignment action as one database transaction:
// fresh reads, the state transition, any reward and bonus credit, and the
// balance update commit together or not at all.
package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/chorepoints/internal/apperr"
	"github.com/dukerupert/chorepoints/internal/bonus"
	"github.com/dukerupert/chorepoints/internal/clock"
	"github.com/dukerupert/chorepoints/internal/database"
	"github.com/dukerupert/chorepoints/internal/ledger"
	"github.com/dukerupert/chorepoints/internal/metrics"
	"github.com/dukerupert/chorepoints/internal/model"
	"github.com/dukerupert/chorepoints/internal/review"
	"github.com/dukerupert/chorepoints/internal/store"
	"github.com/dukerupert/chorepoints/internal/websocket"
)

// Notifier receives events after a transaction commits.
type Notifier interface {
	Broadcast(familyID int64, msg websocket.Message)
}

type Coordinator struct {
	db          *database.DB
	assignments *store.AssignmentStore
	accounts    *store.AccountStore
	families    *store.FamilyStore
	subjects    *store.SubjectStore
	entries     *store.LedgerStore
	ledger      *ledger.Ledger
	engine      *review.Engine
	bonus       *bonus.Evaluator
	clock       clock.Clock
	loc         *time.Location
	notifier    Notifier
	logger      *slog.Logger
}

// New wires a Coordinator over db. loc is the time zone for families that
// have none; notifier may be nil.
func New(db *database.DB, c clock.Clock, loc *time.Location, notifier Notifier, logger *slog.Logger) *Coordinator {
	if c == nil {
		c = clock.System()
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	accounts := store.NewAccountStore(db)
	entries := store.NewLedgerStore(db)
	return &Coordinator{
		db:          db,
		assignments: store.NewAssignmentStore(db, loc),
		accounts:    accounts,
		families:    store.NewFamilyStore(db),
		subjects:    store.NewSubjectStore(db),
		entries:     entries,
		ledger:      ledger.New(db, entries, accounts),
		engine:      review.NewEngine(c),
		bonus:       bonus.NewEvaluator(c, loc),
		clock:       c,
		loc:         loc,
		notifier:    notifier,
		logger:      logger.With("component", "workflow"),
	}
}

// Ledger exposes the ledger for balance audits and history reads.
func (c *Coordinator) Ledger() *ledger.Ledger { return c.ledger }

// txStores is the set of stores bound to one transaction.
type txStores struct {
	assignments *store.AssignmentStore
	accounts    *store.AccountStore
	families    *store.FamilyStore
	entries     *store.LedgerStore
}

func (c *Coordinator) bind(tx *sql.Tx) txStores {
	return txStores{
		assignments: c.assignments.WithTx(tx),
		accounts:    c.accounts.WithTx(tx),
		families:    c.families.WithTx(tx),
		entries:     c.entries.WithTx(tx),
	}
}

// loadLocked reads the assignment, locks its owner's account row, and reads
// the assignment again so the state used for the transition is the one
// committed by whichever transaction held the lock before us. It also loads
// the acting account.
func (c *Coordinator) loadLocked(ctx context.Context, s txStores, actorID, assignmentID int64) (a *model.Assignment, owner, actor *model.Account, err error) {
	a, err = s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, nil, nil, err
	}
	if a == nil {
		return nil, nil, nil, apperr.NotFound("assignment")
	}

	owner, err = s.accounts.GetForUpdate(ctx, a.OwnerChildID)
	if err != nil {
		return nil, nil, nil, err
	}
	if owner == nil {
		return nil, nil, nil, apperr.NotFound("account")
	}

	a, err = s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, nil, nil, err
	}
	if a == nil {
		return nil, nil, nil, apperr.NotFound("assignment")
	}

	if actorID == owner.ID {
		actor = owner
	} else {
		actor, err = s.accounts.GetByID(ctx, actorID)
		if err != nil {
			return nil, nil, nil, err
		}
		if actor == nil {
			return nil, nil, nil, apperr.Unauthorized("account no longer exists")
		}
	}
	return a, owner, actor, nil
}

func (c *Coordinator) update(ctx context.Context, s txStores, prev, next *model.Assignment) error {
	err := s.assignments.UpdateState(ctx, prev, next)
	if errors.Is(err, store.ErrStaleState) {
		return apperr.Conflict("assignment changed, reload and retry", prev)
	}
	return err
}

// Submit records that the owning child finished the assignment.
func (c *Coordinator) Submit(ctx context.Context, actorID, assignmentID int64) (*model.Assignment, error) {
	var result *model.Assignment
	err := c.db.WithTx(ctx, func(tx *sql.Tx) error {
		s := c.bind(tx)
		a, _, actor, err := c.loadLocked(ctx, s, actorID, assignmentID)
		if err != nil {
			return err
		}
		next, err := c.engine.Submit(a, actor)
		if err != nil {
			return err
		}
		if err := c.update(ctx, s, a, next); err != nil {
			return err
		}
		result, err = s.assignments.GetByID(ctx, assignmentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.Submissions.WithLabelValues(string(result.Kind)).Inc()
	c.logger.Info("assignment submitted", "assignment_id", result.ID, "child_id", result.OwnerChildID)
	c.notify(result.FamilyID, websocket.NewMessage("assignment", "completed", result.ID, map[string]any{
		"child_id": result.OwnerChildID,
	}))
	return result, nil
}

// Review applies a parent's verdict. Approval credits the item's reward and,
// for homework, any family bonus it completes, in the same transaction as
// the state change. Reviewing an already approved assignment changes
// nothing and returns the current assignment together with a conflict
// error.
func (c *Coordinator) Review(ctx context.Context, actorID, assignmentID int64, approved bool, incorrectCount *int) (*model.Assignment, error) {
	var (
		result  *model.Assignment
		outcome review.Outcome
		posted  []model.LedgerEntry
		balance int
	)
	err := c.db.WithTx(ctx, func(tx *sql.Tx) error {
		result, outcome, posted, balance = nil, "", nil, 0

		s := c.bind(tx)
		a, owner, actor, err := c.loadLocked(ctx, s, actorID, assignmentID)
		if err != nil {
			return err
		}

		res, err := c.engine.Review(a, actor, owner, approved, incorrectCount)
		if err != nil {
			return err
		}
		outcome = res.Outcome
		if outcome == review.OutcomeUnchanged {
			result = a
			return nil
		}

		if err := c.update(ctx, s, a, res.Next); err != nil {
			return err
		}

		if outcome == review.OutcomeApproved {
			posted, err = c.credit(ctx, tx, s, res.Next)
			if err != nil {
				return err
			}
			fresh, err := s.accounts.GetByID(ctx, owner.ID)
			if err != nil {
				return err
			}
			balance = fresh.Balance
		}

		result, err = s.assignments.GetByID(ctx, assignmentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if outcome == review.OutcomeUnchanged {
		return result, apperr.Conflict("already reviewed", result)
	}

	metrics.Reviews.WithLabelValues(string(result.Kind), string(outcome)).Inc()
	c.logger.Info("assignment reviewed",
		"assignment_id", result.ID,
		"child_id", result.OwnerChildID,
		"outcome", outcome,
		"reviewer_id", actorID,
	)
	c.notify(result.FamilyID, websocket.NewMessage("assignment", string(outcome), result.ID, map[string]any{
		"child_id": result.OwnerChildID,
	}))
	c.reportCredits(result, posted, balance)
	return result, nil
}

// credit posts the reward for an approved assignment plus the family bonus
// if this approval completes the day.
func (c *Coordinator) credit(ctx context.Context, tx *sql.Tx, s txStores, a *model.Assignment) ([]model.LedgerEntry, error) {
	now := c.clock.Now().UTC()

	var entries []*model.LedgerEntry
	if reward := review.Reward(a); reward > 0 {
		entries = append(entries, &model.LedgerEntry{
			ChildID:     a.OwnerChildID,
			FamilyID:    a.FamilyID,
			SourceType:  model.SourceFor(a.Kind),
			SourceID:    a.ID,
			Amount:      reward,
			EventDate:   now,
			Description: a.Name,
		})
	}

	if a.IsHomework() {
		fam, err := s.families.GetByID(ctx, a.FamilyID)
		if err != nil {
			return nil, err
		}
		entry, err := c.bonus.Evaluate(ctx, fam, a, s.assignments, s.entries)
		if err != nil {
			return nil, fmt.Errorf("evaluate bonus: %w", err)
		}
		if entry != nil {
			entries = append(entries, entry)
		}
	}

	if len(entries) == 0 {
		return nil, nil
	}
	return c.ledger.Post(ctx, tx, a.OwnerChildID, entries)
}

func (c *Coordinator) reportCredits(a *model.Assignment, posted []model.LedgerEntry, balance int) {
	if len(posted) == 0 {
		return
	}
	total := 0
	for _, e := range posted {
		total += e.Amount
		metrics.PointsCredited.WithLabelValues(string(e.SourceType)).Add(float64(e.Amount))
		if e.SourceType == model.SourceFamilyBonus {
			metrics.BonusesPaid.Inc()
			c.logger.Info("family bonus paid", "child_id", e.ChildID, "day", e.BonusDay, "amount", e.Amount)
		}
	}
	c.notify(a.FamilyID, websocket.NewMessage("points", "credited", a.OwnerChildID, map[string]any{
		"amount":  total,
		"balance": balance,
	}))
}

// ApproveCreation accepts a task a child proposed.
func (c *Coordinator) ApproveCreation(ctx context.Context, actorID, assignmentID int64) (*model.Assignment, error) {
	var result *model.Assignment
	err := c.db.WithTx(ctx, func(tx *sql.Tx) error {
		s := c.bind(tx)
		a, owner, actor, err := c.loadLocked(ctx, s, actorID, assignmentID)
		if err != nil {
			return err
		}
		next, err := c.engine.ApproveCreation(a, actor, owner)
		if err != nil {
			return err
		}
		if err := c.update(ctx, s, a, next); err != nil {
			return err
		}
		result, err = s.assignments.GetByID(ctx, assignmentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.notify(result.FamilyID, websocket.NewMessage("assignment", "creation_approved", result.ID, nil))
	return result, nil
}

// CreateInput describes a new homework item or task.
type CreateInput struct {
	Kind          model.Kind
	OwnerChildID  int64
	Name          string
	SubjectID     *int64
	ScheduledDate model.Date
	Deadline      *model.TimeOfDay
	RewardPoints  int
}

func (in CreateInput) validate() error {
	switch {
	case !in.Kind.Valid():
		return apperr.Validation("kind must be homework or task")
	case strings.TrimSpace(in.Name) == "":
		return apperr.Validation("name is required")
	case in.ScheduledDate.IsZero():
		return apperr.Validation("scheduled_date is required")
	case in.RewardPoints < 0:
		return apperr.Validation("reward_points must not be negative")
	case in.Kind == model.KindTask && in.SubjectID != nil:
		return apperr.Validation("tasks have no subject")
	case in.Kind == model.KindTask && in.Deadline != nil:
		return apperr.Validation("tasks have no deadline")
	}
	return nil
}

// Create adds an assignment for a child. The scheduled day is interpreted
// in the family's time zone.
func (c *Coordinator) Create(ctx context.Context, actorID int64, in CreateInput) (*model.Assignment, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	actor, err := c.accounts.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, apperr.Unauthorized("account no longer exists")
	}
	owner, err := c.accounts.GetByID(ctx, in.OwnerChildID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, apperr.NotFound("child")
	}

	state, err := c.engine.CreationState(actor, owner, in.Kind)
	if err != nil {
		return nil, err
	}

	if in.SubjectID != nil {
		sub, err := c.subjects.GetByID(ctx, *in.SubjectID)
		if err != nil {
			return nil, err
		}
		if sub == nil || sub.FamilyID != owner.FamilyID {
			return nil, apperr.NotFound("subject")
		}
	}

	fam, err := c.families.GetByID(ctx, owner.FamilyID)
	if err != nil {
		return nil, err
	}
	if fam == nil {
		return nil, apperr.NotFound("family")
	}

	a, err := c.assignments.Create(ctx, &model.Assignment{
		Kind:                in.Kind,
		OwnerChildID:        owner.ID,
		FamilyID:            owner.FamilyID,
		Name:                strings.TrimSpace(in.Name),
		SubjectID:           in.SubjectID,
		ScheduledFor:        in.ScheduledDate.Start(fam.Location(c.loc)),
		Deadline:            in.Deadline,
		RewardPoints:        in.RewardPoints,
		CreationReviewState: state,
		CreatedBy:           actor.ID,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("assignment created", "assignment_id", a.ID, "kind", a.Kind, "child_id", a.OwnerChildID, "creation_state", a.CreationReviewState)
	c.notify(a.FamilyID, websocket.NewMessage("assignment", "created", a.ID, map[string]any{"child_id": a.OwnerChildID}))
	return a, nil
}

func (c *Coordinator) notify(familyID int64, msg websocket.Message) {
	if c.notifier != nil {
		c.notifier.Broadcast(familyID, msg)
	}
}
