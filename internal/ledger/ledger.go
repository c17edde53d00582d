// Package ledger keeps a child's points history and cached balance in step.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorepoints/internal/database"
	"github.com/dukerupert/chorepoints/internal/model"
	"github.com/dukerupert/chorepoints/internal/store"
)

type Ledger struct {
	db       *database.DB
	entries  *store.LedgerStore
	accounts *store.AccountStore
}

func New(db *database.DB, entries *store.LedgerStore, accounts *store.AccountStore) *Ledger {
	return &Ledger{db: db, entries: entries, accounts: accounts}
}

// Post appends entries for childID and credits the sum of the rows actually
// written to the child's balance, all inside tx. Entries rejected by the
// ledger's uniqueness rules are skipped and not credited. It returns the
// entries that were written.
func (l *Ledger) Post(ctx context.Context, tx *sql.Tx, childID int64, entries []*model.LedgerEntry) ([]model.LedgerEntry, error) {
	ls := l.entries.WithTx(tx)

	var posted []model.LedgerEntry
	total := 0
	for _, e := range entries {
		if e.ChildID != childID {
			return nil, fmt.Errorf("ledger entry for child %d posted to child %d", e.ChildID, childID)
		}
		ok, err := ls.Append(ctx, e)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		total += e.Amount
		posted = append(posted, *e)
	}

	if len(posted) == 0 {
		return nil, nil
	}
	if err := l.accounts.WithTx(tx).Credit(ctx, childID, total, latest(posted)); err != nil {
		return nil, err
	}
	return posted, nil
}

// Audit recomputes the child's balance from the ledger and compares it with
// the cached balance. Normal reads use the cached balance; this is for
// verification only.
func (l *Ledger) Audit(ctx context.Context, childID int64) (*model.LedgerAudit, error) {
	var audit *model.LedgerAudit
	err := l.db.WithTx(ctx, func(tx *sql.Tx) error {
		acct, err := l.accounts.WithTx(tx).GetByID(ctx, childID)
		if err != nil {
			return err
		}
		if acct == nil {
			return fmt.Errorf("audit: account %d not found", childID)
		}
		sum, count, err := l.entries.WithTx(tx).SumByChild(ctx, childID)
		if err != nil {
			return err
		}
		audit = &model.LedgerAudit{
			ChildID:    childID,
			Balance:    acct.Balance,
			LedgerSum:  sum,
			Entries:    count,
			Consistent: acct.Balance == sum,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return audit, nil
}

// History returns the child's ledger rows, newest first.
func (l *Ledger) History(ctx context.Context, childID int64, limit int) ([]model.LedgerEntry, error) {
	return l.entries.ListByChild(ctx, childID, limit)
}

func latest(entries []model.LedgerEntry) time.Time {
	var t time.Time
	for _, e := range entries {
		if e.EventDate.After(t) {
			t = e.EventDate
		}
	}
	return t
}
