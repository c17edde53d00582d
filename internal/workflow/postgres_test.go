//go:build integration

package workflow

import (
	"testing"

	"github.com/dukerupert/chorepoints/internal/database/testdb"
	"github.com/dukerupert/chorepoints/internal/model"
)

// These run the same races as the SQLite tests against Postgres, where
// approvals for one child really do run in parallel until the account row
// lock serializes them.

func TestPostgresConcurrentApprovalOfTwoItems(t *testing.T) {
	f := setupWorkflow(t, testdb.Postgres(t))
	a := f.homework(t, "Math", 10)
	b := f.homework(t, "Reading", 15)
	f.submitAt(t, a, at(18, 0))
	f.submitAt(t, b, at(19, 0))

	approveConcurrently(t, f, []*model.Assignment{a, b})

	f.checkBalance(t, 45, 1)
}

func TestPostgresManyConcurrentApprovals(t *testing.T) {
	f := setupWorkflow(t, testdb.Postgres(t))

	items := make([]*model.Assignment, 8)
	for i := range items {
		items[i] = f.homework(t, "Worksheet", 5)
		f.submitAt(t, items[i], at(18, i))
	}

	approveConcurrently(t, f, items)

	f.checkBalance(t, 8*5+20, 1)
}

func TestPostgresLateHomeworkWithholdsBonus(t *testing.T) {
	f := setupWorkflow(t, testdb.Postgres(t))
	a := f.homework(t, "Math", 10)
	b := f.homework(t, "Reading", 15)
	f.submitAt(t, a, at(18, 0))
	f.submitAt(t, b, at(20, 30))
	f.approve(t, a)
	f.approve(t, b)

	f.checkBalance(t, 25, 0)
}
