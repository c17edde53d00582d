package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/chorepoints/internal/apperr"
	"github.com/dukerupert/chorepoints/internal/auth"
	"github.com/dukerupert/chorepoints/internal/clock"
	"github.com/dukerupert/chorepoints/internal/model"
	"github.com/dukerupert/chorepoints/internal/store"
	"github.com/dukerupert/chorepoints/internal/workflow"
)

type AssignmentHandler struct {
	coord       *workflow.Coordinator
	assignments *store.AssignmentStore
	accounts    *store.AccountStore
	families    *store.FamilyStore
	clock       clock.Clock
	loc         *time.Location
	logger      *slog.Logger
}

func NewAssignmentHandler(
	coord *workflow.Coordinator,
	as *store.AssignmentStore,
	acs *store.AccountStore,
	fs *store.FamilyStore,
	c clock.Clock,
	loc *time.Location,
	logger *slog.Logger,
) *AssignmentHandler {
	return &AssignmentHandler{
		coord:       coord,
		assignments: as,
		accounts:    acs,
		families:    fs,
		clock:       c,
		loc:         loc,
		logger:      logger,
	}
}

type createAssignmentRequest struct {
	Kind          model.Kind       `json:"kind" validate:"required,oneof=homework task"`
	ChildID       int64            `json:"child_id" validate:"required,gt=0"`
	Name          string           `json:"name" validate:"notblank,max=200"`
	SubjectID     *int64           `json:"subject_id" validate:"omitempty,gt=0"`
	ScheduledDate *model.Date      `json:"scheduled_date" validate:"required"`
	Deadline      *model.TimeOfDay `json:"deadline"`
	RewardPoints  int              `json:"reward_points" validate:"gte=0"`
}

func (h *AssignmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	a, err := h.coord.Create(r.Context(), auth.AccountID(r.Context()), workflow.CreateInput{
		Kind:          req.Kind,
		OwnerChildID:  req.ChildID,
		Name:          req.Name,
		SubjectID:     req.SubjectID,
		ScheduledDate: *req.ScheduledDate,
		Deadline:      req.Deadline,
		RewardPoints:  req.RewardPoints,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// canView reports whether the caller may see the child's assignments:
// parents see their whole family, children only themselves.
func canView(ac auth.AuthContext, childID, familyID int64) bool {
	if ac.FamilyID != familyID {
		return false
	}
	return ac.Role == model.RoleParent || ac.AccountID == childID
}

func (h *AssignmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	a, err := h.assignments.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	ac, _ := auth.FromContext(r.Context())
	if a == nil || !canView(ac, a.OwnerChildID, a.FamilyID) {
		writeError(w, r, h.logger, apperr.NotFound("assignment"))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AssignmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	a, err := h.coord.Submit(r.Context(), auth.AccountID(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type reviewRequest struct {
	Approved       *bool `json:"approved" validate:"required"`
	IncorrectCount *int  `json:"incorrect_count" validate:"omitempty,gte=0"`
}

func (h *AssignmentHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	a, err := h.coord.Review(r.Context(), auth.AccountID(r.Context()), id, *req.Approved, req.IncorrectCount)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AssignmentHandler) ApproveCreation(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	a, err := h.coord.ApproveCreation(r.Context(), auth.AccountID(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListForDay returns a child's assignments for ?date=YYYY-MM-DD, which
// defaults to today in the family's time zone.
func (h *AssignmentHandler) ListForDay(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	child, err := h.accounts.GetByID(r.Context(), childID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	ac, _ := auth.FromContext(r.Context())
	if child == nil || !child.IsChild() || !canView(ac, child.ID, child.FamilyID) {
		writeError(w, r, h.logger, apperr.NotFound("child"))
		return
	}

	fam, err := h.families.GetByID(r.Context(), child.FamilyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if fam == nil {
		writeError(w, r, h.logger, apperr.NotFound("family"))
		return
	}
	loc := fam.Location(h.loc)

	day := model.DateOf(h.clock.Now(), loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err = model.ParseDate(raw)
		if err != nil {
			writeError(w, r, h.logger, apperr.Validation("date must be YYYY-MM-DD"))
			return
		}
	}

	items, err := h.assignments.ListByChildAndDay(r.Context(), child.ID, day, loc)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if len(items) == 0 {
		writeError(w, r, h.logger, apperr.NotFound("assignments for "+day.String()))
		return
	}
	writeJSON(w, http.StatusOK, items)
}
