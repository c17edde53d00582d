package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/dukerupert/chorepoints/internal/auth"
	"github.com/dukerupert/chorepoints/internal/clock"
	"github.com/dukerupert/chorepoints/internal/database"
	"github.com/dukerupert/chorepoints/internal/model"
	"github.com/dukerupert/chorepoints/internal/store"
	"github.com/dukerupert/chorepoints/internal/websocket"
	"github.com/dukerupert/chorepoints/internal/workflow"
)

var testDay = model.Date{Year: 2024, Month: time.May, Day: 6}

type testEnv struct {
	db          *database.DB
	clock       *clock.Fixed
	families    *store.FamilyStore
	accounts    *store.AccountStore
	sessions    *store.SessionStore
	assignmentH *AssignmentHandler
	childH      *ChildHandler
	familyH     *FamilyHandler
	authH       *AuthHandler

	family  *model.Family
	parent  *model.Account
	child   *model.Account
	sibling *model.Account
}

// setupHandlerTest seeds a UTC family with a parent and two children and a
// 20 point bonus for homework finished before 20:00. The clock starts at
// 08:00 on testDay.
func setupHandlerTest(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "handler.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	families := store.NewFamilyStore(db)
	accounts := store.NewAccountStore(db)

	fam, err := families.Create(ctx, "Smith", "")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	fam, err = families.UpdateBonus(ctx, fam.ID, true, &model.TimeOfDay{Hour: 20}, 20)
	if err != nil {
		t.Fatalf("configure bonus: %v", err)
	}
	mk := func(name string, role model.Role) *model.Account {
		a, err := accounts.Create(ctx, fam.ID, name, role, "")
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		return a
	}

	c := clock.NewFixed(time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC))
	logger := slog.Default()
	hub := websocket.NewHub(logger)
	coord := workflow.New(db, c, time.UTC, hub, logger)
	sessions := store.NewSessionStore(db)

	return &testEnv{
		db:          db,
		clock:       c,
		families:    families,
		accounts:    accounts,
		sessions:    sessions,
		assignmentH: NewAssignmentHandler(coord, store.NewAssignmentStore(db, time.UTC), accounts, families, c, time.UTC, logger),
		childH:      NewChildHandler(accounts, coord.Ledger(), logger),
		familyH:     NewFamilyHandler(families, hub, logger),
		authH:       NewAuthHandler(accounts, sessions, c, time.Hour, false, logger),
		family:      fam,
		parent:      mk("Mom", model.RoleParent),
		child:       mk("Amy", model.RoleChild),
		sibling:     mk("Ben", model.RoleChild),
	}
}

// call runs h as acct (nil for anonymous) with the {id} path value set
// when id is non-zero.
func call(t *testing.T, h http.HandlerFunc, method, target string, body any, acct *model.Account, id int64) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if id != 0 {
		req.SetPathValue("id", strconv.FormatInt(id, 10))
	}
	if acct != nil {
		req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{
			AccountID: acct.ID,
			FamilyID:  acct.FamilyID,
			Role:      acct.Role,
		}))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, want, rec.Body.String())
	}
}

type errorResponse struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Assignment *model.Assignment `json:"assignment"`
}

func (e *testEnv) createHomework(t *testing.T, name string, points int) *model.Assignment {
	t.Helper()
	rec := call(t, e.assignmentH.Create, "POST", "/api/assignments", map[string]any{
		"kind":           "homework",
		"child_id":       e.child.ID,
		"name":           name,
		"scheduled_date": testDay.String(),
		"reward_points":  points,
	}, e.parent, 0)
	expectStatus(t, rec, http.StatusCreated)
	a := decode[model.Assignment](t, rec)
	return &a
}
