package handler

import (
	"net/http"
	"testing"

	"github.com/dukerupert/chorepoints/internal/model"
)

func approveHomework(t *testing.T, e *testEnv, name string, points int) {
	t.Helper()
	a := e.createHomework(t, name, points)
	expectStatus(t, call(t, e.assignmentH.Complete, "POST", "/", nil, e.child, a.ID), http.StatusOK)
	expectStatus(t, call(t, e.assignmentH.Review, "PUT", "/", map[string]any{"approved": true}, e.parent, a.ID), http.StatusOK)
}

func TestBalanceVisibility(t *testing.T) {
	e := setupHandlerTest(t)

	rec := call(t, e.childH.Balance, "GET", "/", nil, e.child, e.child.ID)
	expectStatus(t, rec, http.StatusOK)
	got := decode[balanceResponse](t, rec)
	if got.ChildID != e.child.ID || got.Balance != 0 {
		t.Errorf("balance = %+v", got)
	}

	expectStatus(t, call(t, e.childH.Balance, "GET", "/", nil, e.parent, e.child.ID), http.StatusOK)
	expectStatus(t, call(t, e.childH.Balance, "GET", "/", nil, e.sibling, e.child.ID), http.StatusNotFound)
	expectStatus(t, call(t, e.childH.Balance, "GET", "/", nil, e.parent, e.parent.ID), http.StatusNotFound)
}

func TestHistoryNewestFirst(t *testing.T) {
	e := setupHandlerTest(t)
	approveHomework(t, e, "Math", 10)

	rec := call(t, e.childH.History, "GET", "/", nil, e.child, e.child.ID)
	expectStatus(t, rec, http.StatusOK)
	entries := decode[[]model.LedgerEntry](t, rec)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want reward and bonus", len(entries))
	}
	if entries[0].ID < entries[1].ID {
		t.Errorf("entries not newest first: %d before %d", entries[0].ID, entries[1].ID)
	}

	sources := map[model.SourceType]int{}
	for _, en := range entries {
		sources[en.SourceType] += en.Amount
	}
	if sources[model.SourceHomework] != 10 || sources[model.SourceFamilyBonus] != 20 {
		t.Errorf("sources = %v", sources)
	}

	rec = call(t, e.childH.History, "GET", "/?limit=1", nil, e.child, e.child.ID)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]model.LedgerEntry](t, rec); len(got) != 1 {
		t.Errorf("limit=1 returned %d entries", len(got))
	}

	expectStatus(t, call(t, e.childH.History, "GET", "/?limit=0", nil, e.child, e.child.ID), http.StatusBadRequest)
}

func TestHistoryEmptyIsArray(t *testing.T) {
	e := setupHandlerTest(t)

	rec := call(t, e.childH.History, "GET", "/", nil, e.child, e.child.ID)
	expectStatus(t, rec, http.StatusOK)
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestAuditConsistent(t *testing.T) {
	e := setupHandlerTest(t)
	approveHomework(t, e, "Math", 10)

	rec := call(t, e.childH.Audit, "GET", "/", nil, e.parent, e.child.ID)
	expectStatus(t, rec, http.StatusOK)
	audit := decode[model.LedgerAudit](t, rec)
	if !audit.Consistent || audit.Balance != 30 || audit.LedgerSum != 30 || audit.Entries != 2 {
		t.Errorf("audit = %+v", audit)
	}
}
