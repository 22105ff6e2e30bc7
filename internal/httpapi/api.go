// Package httpapi is the HTTP layer: routing, middleware, authentication
// and the JSON handlers for the auth and Facebook endpoints.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/GogiGunia/Toolidol/internal/facebook"
	"github.com/GogiGunia/Toolidol/internal/obs"
	"github.com/GogiGunia/Toolidol/internal/token"
	"github.com/GogiGunia/Toolidol/internal/user"
)

// ReadyProbe reports whether the service can serve traffic (DB reachable).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries the API's collaborators.
type Options struct {
	ReadyProbe ReadyProbe
	Version    string
	Tokens     *token.Service
	Users      *user.Service
	Facebook   *facebook.Service
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	tokens     *token.Service
	users      *user.Service
	facebook   *facebook.Service
}

func New(opts Options) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: opts.ReadyProbe,
		version:    opts.Version,
		tokens:     opts.Tokens,
		users:      opts.Users,
		facebook:   opts.Facebook,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/api/auth/register", a.handleRegister)
	a.mux.HandleFunc("/api/auth/password-reset", a.handlePasswordReset)
	a.mux.HandleFunc("/api/auth/password-reset/confirm", a.handlePasswordResetConfirm)

	// facebook
	a.mux.HandleFunc("/api/facebook/authenticate", a.handleFacebookAuthenticate)
	a.mux.HandleFunc("/api/facebook/status", a.handleFacebookStatus)
	a.mux.HandleFunc("/api/facebook/disconnect", a.handleFacebookDisconnect)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = RateLimit(h, 50, 25)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "toolidol-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "toolidol-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
