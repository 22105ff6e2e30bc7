package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/GogiGunia/Toolidol/internal/audit"
	"github.com/GogiGunia/Toolidol/internal/authz"
	"github.com/GogiGunia/Toolidol/internal/facebook"
	"github.com/GogiGunia/Toolidol/internal/token"
)

type facebookAuthenticateRequest struct {
	ShortLivedToken string `json:"shortLivedToken"`
}

type facebookPageResponse struct {
	PageID    string    `json:"pageId"`
	PageName  string    `json:"pageName"`
	Category  string    `json:"category,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func pagesResponse(grants []facebook.Grant) []facebookPageResponse {
	out := make([]facebookPageResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, facebookPageResponse{
			PageID:    g.PageID,
			PageName:  g.PageName,
			Category:  g.Category,
			UpdatedAt: g.UpdatedAt,
		})
	}
	return out
}

// facebookUnavailable reports 503 when the integration is not configured.
func (a *API) facebookUnavailable(w http.ResponseWriter, r *http.Request) bool {
	if a.facebook == nil {
		writeError(w, r, http.StatusServiceUnavailable, "facebook integration is not configured")
		return true
	}
	return false
}

func (a *API) handleFacebookAuthenticate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.facebookUnavailable(w, r) {
		return
	}

	claims, ok := a.require(w, r, authz.Requirement{Kind: token.KindAccess})
	if !ok {
		return
	}

	var req facebookAuthenticateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.ShortLivedToken) == "" {
		writeError(w, r, http.StatusBadRequest, "shortLivedToken is required")
		return
	}

	grants, err := a.facebook.Connect(r.Context(), claims.Subject, req.ShortLivedToken)
	if err != nil {
		if errors.Is(err, facebook.ErrProvider) {
			writeError(w, r, http.StatusBadGateway, "facebook rejected the request")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "facebook.connected", map[string]any{
		"user_id": claims.Subject,
		"pages":   len(grants),
	})
	writeJSON(w, http.StatusOK, pagesResponse(grants))
}

func (a *API) handleFacebookStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.facebookUnavailable(w, r) {
		return
	}

	claims, ok := a.require(w, r, authz.Requirement{Kind: token.KindAccess})
	if !ok {
		return
	}

	grants, err := a.facebook.Status(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": len(grants) > 0,
		"pages":     pagesResponse(grants),
	})
}

func (a *API) handleFacebookDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if a.facebookUnavailable(w, r) {
		return
	}

	claims, ok := a.require(w, r, authz.Requirement{Kind: token.KindAccess})
	if !ok {
		return
	}

	if err := a.facebook.Disconnect(r.Context(), claims.Subject); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "facebook.disconnected", map[string]any{"user_id": claims.Subject})
	w.WriteHeader(http.StatusNoContent)
}
