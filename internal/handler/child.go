package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/chorepoints/internal/apperr"
	"github.com/dukerupert/chorepoints/internal/auth"
	"github.com/dukerupert/chorepoints/internal/ledger"
	"github.com/dukerupert/chorepoints/internal/model"
	"github.com/dukerupert/chorepoints/internal/store"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// ChildHandler serves a child's points: the cached balance, the ledger
// rows behind it, and an audit comparing the two.
type ChildHandler struct {
	accounts *store.AccountStore
	ledger   *ledger.Ledger
	logger   *slog.Logger
}

func NewChildHandler(acs *store.AccountStore, l *ledger.Ledger, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{accounts: acs, ledger: l, logger: logger}
}

type balanceResponse struct {
	ChildID int64  `json:"child_id"`
	Name    string `json:"name"`
	Balance int    `json:"balance"`
}

// child loads the child named by the {id} path value and checks the caller
// may see it.
func (h *ChildHandler) child(ctx context.Context, r *http.Request) (*model.Account, error) {
	id, err := parseIDParam(r)
	if err != nil {
		return nil, err
	}
	acct, err := h.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ac, _ := auth.FromContext(ctx)
	if acct == nil || !acct.IsChild() || !canView(ac, acct.ID, acct.FamilyID) {
		return nil, apperr.NotFound("child")
	}
	return acct, nil
}

func (h *ChildHandler) Balance(w http.ResponseWriter, r *http.Request) {
	acct, err := h.child(r.Context(), r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{ChildID: acct.ID, Name: acct.Name, Balance: acct.Balance})
}

func (h *ChildHandler) History(w http.ResponseWriter, r *http.Request) {
	acct, err := h.child(r.Context(), r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, err := intQuery(r, "limit", defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	entries, err := h.ledger.History(r.Context(), acct.ID, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *ChildHandler) Audit(w http.ResponseWriter, r *http.Request) {
	acct, err := h.child(r.Context(), r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	audit, err := h.ledger.Audit(r.Context(), acct.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !audit.Consistent {
		h.logger.Error("balance does not match ledger",
			"child_id", acct.ID, "balance", audit.Balance, "ledger_sum", audit.LedgerSum)
	}
	writeJSON(w, http.StatusOK, audit)
}
