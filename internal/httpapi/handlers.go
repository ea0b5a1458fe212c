// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/lexiduel/lexiduel/internal/auth"
	"github.com/lexiduel/lexiduel/internal/ledger"
	"github.com/lexiduel/lexiduel/internal/otpgateway"
)

const maxBodyBytes = 1 << 20

// Handler builds the route table.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("POST /api/login", a.handleLogin)
	mux.HandleFunc("POST /api/register", a.handleRegister)
	mux.HandleFunc("POST /api/otp/request", a.handleOTPRequest)
	mux.HandleFunc("POST /api/otp/verify", a.handleOTPVerify)
	mux.HandleFunc("POST /api/logout", a.handleLogout)

	mux.Handle("GET /api/me", a.requireSession(a.handleMe))
	mux.Handle("GET /api/coins", a.requireMember(a.handleCoins))
	mux.Handle("POST /api/win", a.requireMember(a.handleWin))
	mux.Handle("POST /api/hint", a.requireMember(a.handleHint))
	mux.Handle("POST /api/meaning-clue", a.requireMember(a.handleMeaningClue))

	return mux
}

func (a *API) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
	TeamNo    *int      `json:"team_no,omitempty"`
	Name      string    `json:"name,omitempty"`
	Coins     *int      `json:"coins,omitempty"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := a.auth.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		a.metrics.RecordLogin("password", "failure")
		a.writeError(w, r, err)
		return
	}

	a.metrics.RecordLogin("password", "success")
	writeJSON(w, http.StatusOK, newSessionResponse(result))
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	account, member, err := a.auth.Register(r.Context(), req.Name, req.Email, req.Phone, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"username": account.Username,
		"name":     member.Name,
		"coins":    member.Coins,
	})
}

type otpRequestRequest struct {
	Channel    string `json:"channel"`
	Identifier string `json:"identifier"`
	TeamNo     *int   `json:"team_no,omitempty"`
}

func (a *API) handleOTPRequest(w http.ResponseWriter, r *http.Request) {
	var req otpRequestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	channel := otpgateway.Channel(strings.ToLower(strings.TrimSpace(req.Channel)))
	challenge, err := a.otp.Request(r.Context(), channel, req.Identifier, req.TeamNo)
	if err != nil {
		a.metrics.RecordOTPRequest(string(channel), "failure")
		a.writeError(w, r, err)
		return
	}

	a.metrics.RecordOTPRequest(string(channel), "success")
	writeJSON(w, http.StatusOK, map[string]any{
		"challenge_id": challenge.ID.String(),
		"expires_at":   challenge.ExpiresAt,
	})
}

type otpVerifyRequest struct {
	ChallengeID string `json:"challenge_id"`
	OTP         string `json:"otp"`
}

func (a *API) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// A malformed challenge ID is indistinguishable from an unknown one.
	challengeID, err := ulid.Parse(strings.TrimSpace(req.ChallengeID))
	if err != nil {
		a.metrics.RecordLogin("otp", "failure")
		a.writeError(w, r, auth.ErrInvalidOrExpired)
		return
	}

	result, err := a.otp.Verify(r.Context(), challengeID, req.OTP)
	if err != nil {
		a.metrics.RecordLogin("otp", "failure")
		a.writeError(w, r, err)
		return
	}

	a.metrics.RecordLogin("otp", "success")
	writeJSON(w, http.StatusOK, newSessionResponse(result))
}

// handleLogout never fails from the client's point of view; revoking an
// unknown token reports success too.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.Logout(r.Context(), bearerToken(r)); err != nil {
		slog.Error("logout failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request, session *auth.Session) {
	account, err := a.accounts.GetByID(r.Context(), session.AccountID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	resp := map[string]any{
		"username": account.Username,
	}
	if account.TeamNo != nil {
		resp["team_no"] = *account.TeamNo
	}

	if session.MemberID != nil {
		member, err := a.members.GetByID(r.Context(), *session.MemberID)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		resp["name"] = member.Name
		resp["phone"] = member.Phone
		resp["coins"] = member.Coins
		if member.Email != nil {
			resp["email"] = *member.Email
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCoins(w http.ResponseWriter, r *http.Request, memberID ulid.ULID) {
	balance, err := a.ledger.Balance(r.Context(), memberID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coins": balance})
}

// handleWin applies the fixed reward for a finished round.
func (a *API) handleWin(w http.ResponseWriter, r *http.Request, memberID ulid.ULID) {
	balance, err := a.ledger.Credit(r.Context(), memberID, WinReward)
	if err != nil {
		a.metrics.RecordCoinMutation("win", "failure")
		a.writeError(w, r, err)
		return
	}

	a.metrics.RecordCoinMutation("win", "success")
	writeJSON(w, http.StatusOK, map[string]any{"coins": balance})
}

type hintRequest struct {
	Word     string `json:"word"`
	Revealed []int  `json:"revealed"`
}

// handleHint charges the hint tariff and reveals one position of the
// submitted word that the client has not uncovered yet. The word travels
// with the request; nothing about the round is stored server-side.
func (a *API) handleHint(w http.ResponseWriter, r *http.Request, memberID ulid.ULID) {
	var req hintRequest
	if !decodeBody(w, r, &req) {
		return
	}

	word := []rune(strings.TrimSpace(req.Word))
	if len(word) == 0 {
		writeErrorBody(w, http.StatusBadRequest, "word is required", nil)
		return
	}

	revealed := make(map[int]bool, len(req.Revealed))
	for _, pos := range req.Revealed {
		if pos < 0 || pos >= len(word) {
			writeErrorBody(w, http.StatusBadRequest, "revealed position out of range", nil)
			return
		}
		revealed[pos] = true
	}

	hidden := make([]int, 0, len(word))
	for i := range word {
		if !revealed[i] {
			hidden = append(hidden, i)
		}
	}
	if len(hidden) == 0 {
		writeErrorBody(w, http.StatusBadRequest, "no positions left to reveal", nil)
		return
	}

	balance, err := a.ledger.Debit(r.Context(), memberID, HintCost)
	if err != nil {
		a.metrics.RecordCoinMutation("hint", "failure")
		a.writeError(w, r, err)
		return
	}

	pos := hidden[rand.IntN(len(hidden))]
	a.metrics.RecordCoinMutation("hint", "success")
	writeJSON(w, http.StatusOK, map[string]any{
		"position": pos,
		"letter":   string(word[pos]),
		"coins":    balance,
	})
}

// handleMeaningClue charges the meaning tariff. The dictionary lookup is the
// client's concern; the backend only gates it behind the debit.
func (a *API) handleMeaningClue(w http.ResponseWriter, r *http.Request, memberID ulid.ULID) {
	balance, err := a.ledger.Debit(r.Context(), memberID, MeaningClueCost)
	if err != nil {
		a.metrics.RecordCoinMutation("meaning", "failure")
		a.writeError(w, r, err)
		return
	}

	a.metrics.RecordCoinMutation("meaning", "success")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "coins": balance})
}

func newSessionResponse(result *auth.LoginResult) sessionResponse {
	resp := sessionResponse{
		Token:     result.Token,
		ExpiresAt: result.Session.ExpiresAt,
		Username:  result.Account.Username,
		TeamNo:    result.Account.TeamNo,
	}
	if result.Member != nil {
		resp.Name = result.Member.Name
		coins := result.Member.Coins
		resp.Coins = &coins
	}
	return resp
}

// decodeBody parses the JSON request body into dst, answering 400 itself on
// failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorBody(w, http.StatusBadRequest, "invalid request body", nil)
		return false
	}
	return true
}

// writeError maps a domain error to an HTTP response.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ambiguous *auth.AmbiguousIdentityError
	var shortfall *ledger.InsufficientFundsError

	switch {
	case errors.As(err, &ambiguous):
		teams := make([]map[string]any, 0, len(ambiguous.Teams))
		for _, t := range ambiguous.Teams {
			entry := map[string]any{"username": t.Username}
			if t.TeamNo != nil {
				entry["team_no"] = *t.TeamNo
			}
			teams = append(teams, entry)
		}
		writeErrorBody(w, http.StatusConflict, "identifier matches multiple teams", map[string]any{"teams": teams})

	case errors.As(err, &shortfall):
		writeErrorBody(w, http.StatusBadRequest, "insufficient coins", map[string]any{
			"required":  shortfall.Required,
			"available": shortfall.Available,
		})

	case errors.Is(err, auth.ErrInvalidCredentials):
		writeErrorBody(w, http.StatusUnauthorized, "invalid credentials", nil)

	case errors.Is(err, auth.ErrInvalidOrExpired):
		writeErrorBody(w, http.StatusUnauthorized, "invalid or expired", nil)

	case errors.Is(err, auth.ErrIdentifierNotFound):
		writeErrorBody(w, http.StatusNotFound, "identifier not found", nil)

	case errors.Is(err, auth.ErrDuplicateIdentifier):
		writeErrorBody(w, http.StatusConflict, "identifier already registered", nil)

	case otpgateway.IsGatewayError(err):
		slog.Error("otp gateway failure", "path", r.URL.Path, "error", err)
		writeErrorBody(w, http.StatusBadGateway, "otp gateway unavailable", nil)

	case isValidationError(err):
		writeErrorBody(w, http.StatusBadRequest, err.Error(), nil)

	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		writeErrorBody(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// isValidationError reports whether err carries a client input problem.
func isValidationError(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	switch oopsErr.Code() {
	case "AUTH_VALIDATION", "OTP_INVALID_CHANNEL", "LEDGER_INVALID_AMOUNT":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write failure means the client went away
	json.NewEncoder(w).Encode(body)
}

func writeErrorBody(w http.ResponseWriter, status int, msg string, extra map[string]any) {
	body := map[string]any{"error": msg}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}
