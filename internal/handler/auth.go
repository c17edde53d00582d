package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/chorepoints/internal/apperr"
	"github.com/dukerupert/chorepoints/internal/auth"
	"github.com/dukerupert/chorepoints/internal/clock"
	"github.com/dukerupert/chorepoints/internal/middleware"
	"github.com/dukerupert/chorepoints/internal/model"
	"github.com/dukerupert/chorepoints/internal/store"
)

// AuthHandler exchanges an account id and PIN for a session.
type AuthHandler struct {
	accounts *store.AccountStore
	sessions *store.SessionStore
	clock    clock.Clock
	ttl      time.Duration
	secure   bool
	logger   *slog.Logger
}

func NewAuthHandler(acs *store.AccountStore, ss *store.SessionStore, c clock.Clock, ttl time.Duration, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: acs, sessions: ss, clock: c, ttl: ttl, secure: secure, logger: logger}
}

type loginRequest struct {
	AccountID int64  `json:"account_id" validate:"required,gt=0"`
	PIN       string `json:"pin" validate:"required"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	AccountID int64      `json:"account_id"`
	FamilyID  int64      `json:"family_id"`
	Role      model.Role `json:"role"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	// Unknown accounts and wrong PINs get the same answer.
	denied := apperr.Unauthorized("invalid account or PIN")

	acct, err := h.accounts.GetByID(r.Context(), req.AccountID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if acct == nil {
		writeError(w, r, h.logger, denied)
		return
	}
	hash, err := h.accounts.GetPINHash(r.Context(), acct.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !auth.CheckPIN(hash, req.PIN) {
		h.logger.Warn("login failed", "account_id", acct.ID, "ip", middleware.RealIP(r))
		writeError(w, r, h.logger, denied)
		return
	}

	sess, err := h.sessions.Create(r.Context(), acct.ID, h.ttl, h.clock.Now())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("login", "account_id", acct.ID, "family_id", acct.FamilyID, "role", acct.Role)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		AccountID: acct.ID,
		FamilyID:  acct.FamilyID,
		Role:      acct.Role,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessions.Delete(r.Context(), ac.SessionID); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
	})
	w.WriteHeader(http.StatusNoContent)
}
