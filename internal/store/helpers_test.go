package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/chorepoints/internal/database"
	"github.com/dukerupert/chorepoints/internal/model"
)

type testStores struct {
	db          *database.DB
	families    *FamilyStore
	accounts    *AccountStore
	subjects    *SubjectStore
	assignments *AssignmentStore
	ledger      *LedgerStore
	sessions    *SessionStore
}

func setupStoreTestDB(t *testing.T) *testStores {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &testStores{
		db:          db,
		families:    NewFamilyStore(db),
		accounts:    NewAccountStore(db),
		subjects:    NewSubjectStore(db),
		assignments: NewAssignmentStore(db, time.UTC),
		ledger:      NewLedgerStore(db),
		sessions:    NewSessionStore(db),
	}
}

// seedFamily creates a family in tz with one parent and one child.
func (s *testStores) seedFamily(t *testing.T, tz string) (*model.Family, *model.Account, *model.Account) {
	t.Helper()
	ctx := context.Background()
	f, err := s.families.Create(ctx, "Smith", tz)
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	parent, err := s.accounts.Create(ctx, f.ID, "Mom", model.RoleParent, "")
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err := s.accounts.Create(ctx, f.ID, "Amy", model.RoleChild, "")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return f, parent, child
}
