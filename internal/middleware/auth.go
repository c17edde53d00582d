package middleware

import (
	"net/http"
	"strings"

	"github.com/dukerupert/chorepoints/internal/auth"
	"github.com/dukerupert/chorepoints/internal/clock"
	"github.com/dukerupert/chorepoints/internal/store"
)

const SessionCookieName = "chorepoints_session"

// SessionToken returns the bearer token from the Authorization header, or
// the session cookie if there is no header.
func SessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth resolves the session token to an account and stores the
// account's id, family and role in the request context. The role always
// comes from the stored account.
func RequireAuth(sessions *store.SessionStore, accounts *store.AccountStore, c clock.Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}

			sess, err := sessions.GetByToken(r.Context(), token, c.Now())
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal", "internal error")
				return
			}
			if sess == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "session expired")
				return
			}

			acct, err := accounts.GetByID(r.Context(), sess.AccountID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal", "internal error")
				return
			}
			if acct == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "account no longer exists")
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{
				AccountID: acct.ID,
				FamilyID:  acct.FamilyID,
				Role:      acct.Role,
				SessionID: sess.ID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireParent rejects requests from child accounts.
func RequireParent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsParent(r.Context()) {
			writeError(w, http.StatusForbidden, "forbidden", "parents only")
			return
		}
		next.ServeHTTP(w, r)
	})
}
