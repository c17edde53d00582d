package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/chorepoints/internal/apperr"
	"github.com/dukerupert/chorepoints/internal/auth"
	"github.com/dukerupert/chorepoints/internal/model"
	"github.com/dukerupert/chorepoints/internal/store"
	"github.com/dukerupert/chorepoints/internal/websocket"
)

// FamilyHandler reads and updates the caller's family bonus settings.
type FamilyHandler struct {
	families *store.FamilyStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewFamilyHandler(fs *store.FamilyStore, hub *websocket.Hub, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{families: fs, hub: hub, logger: logger}
}

type bonusSettings struct {
	Enabled  bool             `json:"enabled"`
	Deadline *model.TimeOfDay `json:"deadline"`
	Amount   int              `json:"amount" validate:"gte=0"`
}

func settingsOf(f *model.Family) bonusSettings {
	return bonusSettings{Enabled: f.BonusEnabled, Deadline: f.BonusDeadline, Amount: f.BonusAmount}
}

func (h *FamilyHandler) family(r *http.Request) (*model.Family, error) {
	fam, err := h.families.GetByID(r.Context(), auth.FamilyID(r.Context()))
	if err != nil {
		return nil, err
	}
	if fam == nil {
		return nil, apperr.NotFound("family")
	}
	return fam, nil
}

func (h *FamilyHandler) GetBonus(w http.ResponseWriter, r *http.Request) {
	fam, err := h.family(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsOf(fam))
}

// UpdateBonus replaces the bonus settings. The deadline accepts "HH:MM",
// "HH:MM:SS", a full timestamp, or {"hour", "minute"}, and is stored as
// "HH:MM".
func (h *FamilyHandler) UpdateBonus(w http.ResponseWriter, r *http.Request) {
	var req bonusSettings
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.Enabled && req.Deadline == nil {
		writeError(w, r, h.logger, apperr.Validation("deadline is required when the bonus is enabled"))
		return
	}
	if req.Enabled && req.Amount <= 0 {
		writeError(w, r, h.logger, apperr.Validation("amount must be positive when the bonus is enabled"))
		return
	}

	fam, err := h.family(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	fam, err = h.families.UpdateBonus(r.Context(), fam.ID, req.Enabled, req.Deadline, req.Amount)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("family bonus updated", "family_id", fam.ID, "enabled", fam.BonusEnabled, "amount", fam.BonusAmount)
	if h.hub != nil {
		h.hub.Broadcast(fam.ID, websocket.NewMessage("family_bonus", "updated", fam.ID, nil))
	}
	writeJSON(w, http.StatusOK, settingsOf(fam))
}
