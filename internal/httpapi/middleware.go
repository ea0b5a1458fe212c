// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package httpapi

import (
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/lexiduel/lexiduel/internal/auth"
)

// sessionHandler receives the validated session alongside the request.
type sessionHandler func(w http.ResponseWriter, r *http.Request, session *auth.Session)

// memberHandler receives the member behind the validated session.
type memberHandler func(w http.ResponseWriter, r *http.Request, memberID ulid.ULID)

// requireSession rejects requests without a valid bearer session.
func (a *API) requireSession(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := a.auth.ValidateSession(r.Context(), bearerToken(r))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if session == nil {
			writeErrorBody(w, http.StatusUnauthorized, "authentication required", nil)
			return
		}
		next(w, r, session)
	})
}

// requireMember additionally demands that the session is bound to a member;
// coin operations have no meaning for account-only sessions.
func (a *API) requireMember(next memberHandler) http.Handler {
	return a.requireSession(func(w http.ResponseWriter, r *http.Request, session *auth.Session) {
		if session.MemberID == nil {
			writeErrorBody(w, http.StatusUnauthorized, "authentication required", nil)
			return
		}
		next(w, r, *session.MemberID)
	})
}

// bearerToken extracts the token from the Authorization header. Returns ""
// when the header is absent or not a bearer scheme.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
