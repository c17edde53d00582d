package handler

import (
	"context"
	"net/http"
	"testing"
)

type bonusBody struct {
	Enabled  bool    `json:"enabled"`
	Deadline *string `json:"deadline"`
	Amount   int     `json:"amount"`
}

func TestGetBonus(t *testing.T) {
	e := setupHandlerTest(t)

	rec := call(t, e.familyH.GetBonus, "GET", "/", nil, e.child, 0)
	expectStatus(t, rec, http.StatusOK)
	got := decode[bonusBody](t, rec)
	if !got.Enabled || got.Amount != 20 || got.Deadline == nil || *got.Deadline != "20:00" {
		t.Errorf("bonus = %+v", got)
	}
}

func TestUpdateBonusDeadlineShapes(t *testing.T) {
	e := setupHandlerTest(t)

	tests := []struct {
		name     string
		deadline any
		want     string
	}{
		{"hh:mm", "19:30", "19:30"},
		{"hh:mm:ss", "19:30:00", "19:30"},
		{"rfc3339", "2024-01-01T18:45:00Z", "18:45"},
		{"sql timestamp", "2024-01-01 07:05:00", "07:05"},
		{"object", map[string]int{"hour": 21, "minute": 15}, "21:15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, e.familyH.UpdateBonus, "PUT", "/", map[string]any{
				"enabled": true, "deadline": tt.deadline, "amount": 15,
			}, e.parent, 0)
			expectStatus(t, rec, http.StatusOK)
			got := decode[bonusBody](t, rec)
			if got.Deadline == nil || *got.Deadline != tt.want {
				t.Errorf("deadline = %v, want %s", got.Deadline, tt.want)
			}

			fam, err := e.families.GetByID(context.Background(), e.family.ID)
			if err != nil {
				t.Fatalf("get family: %v", err)
			}
			if fam.BonusDeadline == nil || fam.BonusDeadline.String() != tt.want {
				t.Errorf("stored deadline = %v, want %s", fam.BonusDeadline, tt.want)
			}
		})
	}
}

func TestUpdateBonusValidation(t *testing.T) {
	e := setupHandlerTest(t)

	bodies := []any{
		map[string]any{"enabled": true, "amount": 10},
		map[string]any{"enabled": true, "deadline": "20:00", "amount": 0},
		map[string]any{"enabled": true, "deadline": "25:00", "amount": 10},
		map[string]any{"enabled": true, "deadline": "soon", "amount": 10},
		map[string]any{"enabled": false, "amount": -5},
	}
	for _, body := range bodies {
		rec := call(t, e.familyH.UpdateBonus, "PUT", "/", body, e.parent, 0)
		expectStatus(t, rec, http.StatusBadRequest)
	}
}

func TestDisableBonus(t *testing.T) {
	e := setupHandlerTest(t)

	rec := call(t, e.familyH.UpdateBonus, "PUT", "/", map[string]any{"enabled": false}, e.parent, 0)
	expectStatus(t, rec, http.StatusOK)
	got := decode[bonusBody](t, rec)
	if got.Enabled || got.Deadline != nil {
		t.Errorf("bonus = %+v", got)
	}
}

func TestGetBonusReadsLegacyDeadline(t *testing.T) {
	e := setupHandlerTest(t)
	if err := e.families.SetRawDeadline(context.Background(), e.family.ID, "2023-09-01 17:15:00"); err != nil {
		t.Fatalf("set raw deadline: %v", err)
	}

	rec := call(t, e.familyH.GetBonus, "GET", "/", nil, e.parent, 0)
	expectStatus(t, rec, http.StatusOK)
	got := decode[bonusBody](t, rec)
	if got.Deadline == nil || *got.Deadline != "17:15" {
		t.Errorf("deadline = %v, want 17:15", got.Deadline)
	}
}

func TestUpdatedBonusAppliesToApproval(t *testing.T) {
	e := setupHandlerTest(t)
	expectStatus(t, call(t, e.familyH.UpdateBonus, "PUT", "/", map[string]any{
		"enabled": true, "deadline": "07:00", "amount": 20,
	}, e.parent, 0), http.StatusOK)

	// Submitted at 08:00, after the new deadline.
	approveHomework(t, e, "Math", 10)

	rec := call(t, e.childH.Balance, "GET", "/", nil, e.child, e.child.ID)
	if got := decode[balanceResponse](t, rec); got.Balance != 10 {
		t.Errorf("balance = %d, want 10 with no bonus", got.Balance)
	}
}
