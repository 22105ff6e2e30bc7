package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/GogiGunia/Toolidol/internal/audit"
	"github.com/GogiGunia/Toolidol/internal/authz"
	"github.com/GogiGunia/Toolidol/internal/token"
	"github.com/GogiGunia/Toolidol/internal/user"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Role         string `json:"role"`
}

func sessionFor(u *user.User, pair user.TokenPair) sessionResponse {
	return sessionResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         string(u.Role),
	}
}

// usersUnavailable reports 503 when the service runs without a database.
func (a *API) usersUnavailable(w http.ResponseWriter, r *http.Request) bool {
	if a.users == nil {
		writeError(w, r, http.StatusServiceUnavailable, "user store is not configured")
		return true
	}
	return false
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.usersUnavailable(w, r) {
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	u, result, err := a.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if result != user.LoginOK {
		// Unknown account and wrong password are indistinguishable on
		// the wire.
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	pair, err := a.users.IssuePair(u)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{"user_id": u.ID})
	writeJSON(w, http.StatusOK, sessionFor(u, pair))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.usersUnavailable(w, r) {
		return
	}

	claims, ok := a.require(w, r, authz.Requirement{Kind: token.KindRefresh})
	if !ok {
		return
	}

	u, pair, err := a.users.RefreshPair(r.Context(), claims)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrInvalidToken):
			writeError(w, r, http.StatusUnauthorized, "invalid token")
		case errors.Is(err, user.ErrNotFound):
			// Account deleted since the refresh token was issued.
			writeError(w, r, http.StatusUnauthorized, "invalid token")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{"user_id": u.ID})
	writeJSON(w, http.StatusOK, sessionFor(u, pair))
}

type registerRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.usersUnavailable(w, r) {
		return
	}

	claims, ok := a.require(w, r, authz.Requirement{
		Kind:  token.KindAccess,
		Roles: []string{string(user.RoleAdmin)},
	})
	if !ok {
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	role, err := user.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	u, err := a.users.Register(r.Context(), req.Email, req.FirstName, req.LastName, req.Password, role)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrAlreadyExists):
			writeError(w, r, http.StatusConflict, "email already registered")
		case errors.Is(err, user.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"user_id":    u.ID,
		"role":       string(u.Role),
		"created_by": claims.Subject,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        u.ID,
		"email":     u.Email,
		"firstName": u.FirstName,
		"lastName":  u.LastName,
		"role":      string(u.Role),
	})
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

func (a *API) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.usersUnavailable(w, r) {
		return
	}

	var req passwordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}

	raw, err := a.users.BeginPasswordReset(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "unknown email")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.password_reset.started", map[string]any{"email": req.Email})
	writeJSON(w, http.StatusOK, map[string]any{"resetToken": raw})
}

type passwordResetConfirmRequest struct {
	NewPassword string `json:"newPassword"`
}

func (a *API) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.usersUnavailable(w, r) {
		return
	}

	claims, ok := a.require(w, r, authz.Requirement{Kind: token.KindPasswordReset})
	if !ok {
		return
	}

	var req passwordResetConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.users.CompletePasswordReset(r.Context(), claims, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, user.ErrResetInvalid):
			writeError(w, r, http.StatusBadRequest, "reset link is invalid or expired")
		case errors.Is(err, user.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, "new password is required")
		case errors.Is(err, token.ErrInvalidToken):
			writeError(w, r, http.StatusUnauthorized, "invalid token")
		case errors.Is(err, user.ErrNotFound):
			writeError(w, r, http.StatusUnauthorized, "invalid token")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.password_reset.completed", map[string]any{"user_id": claims.Subject})
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
