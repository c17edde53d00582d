package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/chorepoints/internal/model"
)

func TestLedgerAppendItemOnce(t *testing.T) {
	s := setupStoreTestDB(t)
	ctx := context.Background()
	f, _, child := s.seedFamily(t, "")

	e := &model.LedgerEntry{
		ChildID: child.ID, FamilyID: f.ID, SourceType: model.SourceTask, SourceID: 7,
		Amount: 5, EventDate: time.Now(), Description: "Feed the cat",
	}
	inserted, err := s.ledger.Append(ctx, e)
	if err != nil || !inserted {
		t.Fatalf("first append = %v, %v", inserted, err)
	}
	if e.ID == 0 {
		t.Error("expected id to be set")
	}

	dup := *e
	dup.ID = 0
	inserted, err = s.ledger.Append(ctx, &dup)
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if inserted {
		t.Error("second reward for the same task was written")
	}

	sum, count, err := s.ledger.SumByChild(ctx, child.ID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 5 || count != 1 {
		t.Errorf("sum/count = %d/%d, want 5/1", sum, count)
	}
}

func TestLedgerFamilyBonusOncePerDay(t *testing.T) {
	s := setupStoreTestDB(t)
	ctx := context.Background()
	f, _, child := s.seedFamily(t, "")

	day := model.Date{Year: 2024, Month: time.May, Day: 6}
	bonus := func() *model.LedgerEntry {
		d := day
		return &model.LedgerEntry{
			ChildID: child.ID, FamilyID: f.ID, SourceType: model.SourceFamilyBonus,
			Amount: 20, EventDate: time.Now(), BonusDay: &d,
		}
	}

	has, _ := s.ledger.HasFamilyBonus(ctx, child.ID, day)
	if has {
		t.Fatal("no bonus expected yet")
	}

	if ok, err := s.ledger.Append(ctx, bonus()); err != nil || !ok {
		t.Fatalf("first bonus = %v, %v", ok, err)
	}
	if ok, err := s.ledger.Append(ctx, bonus()); err != nil || ok {
		t.Fatalf("second bonus = %v, %v; want skipped", ok, err)
	}

	has, _ = s.ledger.HasFamilyBonus(ctx, child.ID, day)
	if !has {
		t.Error("expected bonus recorded")
	}
	next := model.Date{Year: 2024, Month: time.May, Day: 7}
	has, _ = s.ledger.HasFamilyBonus(ctx, child.ID, next)
	if has {
		t.Error("bonus leaked into the next day")
	}

	entries, err := s.ledger.ListByChild(ctx, child.ID, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].BonusDay == nil || *entries[0].BonusDay != day {
		t.Errorf("entries = %+v", entries)
	}
}
