package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"newhope.org/internal/audit"
	"newhope.org/internal/board"
	"newhope.org/internal/identity"
	"newhope.org/internal/obs"
	"newhope.org/internal/portal"
	"newhope.org/internal/registry"
	"newhope.org/internal/session"
)

// ReadyProbe pings the backing database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the portal service.
type API struct {
	mux        *http.ServeMux
	portal     *portal.Service
	sessions   *session.Manager
	readyProbe ReadyProbe
	version    string
	log        zerolog.Logger

	rateBurst    int
	ratePerSec   int
	maxBodyBytes int64
}

// New wires routes to handlers. The gate middleware and helpers decide
// access; handlers only translate forms into portal calls and render results.
func New(rp ReadyProbe, version string, svc *portal.Service, sessions *session.Manager) *API {
	a := &API{
		mux:          http.NewServeMux(),
		portal:       svc,
		sessions:     sessions,
		readyProbe:   rp,
		version:      version,
		log:          obs.Logger(),
		rateBurst:    100,
		ratePerSec:   50,
		maxBodyBytes: 1 << 20,
	}

	// Public surface.
	a.mux.HandleFunc("/", a.handleHome)
	a.mux.HandleFunc("/register", a.handleRegister)
	a.mux.HandleFunc("/login", a.handleLogin)
	a.mux.HandleFunc("/logout", a.handleLogout)

	// Role-gated dashboards and admin mutations.
	a.mux.HandleFunc("/patient/dashboard", a.handlePatientDashboard)
	a.mux.HandleFunc("/admin/dashboard", a.handleAdminDashboard)
	a.mux.HandleFunc("/admin/announcements", a.handleAnnouncementsCollection)
	a.mux.HandleFunc("/admin/announcements/", a.handleAnnouncementResource)
	a.mux.HandleFunc("/admin/patients/", a.handlePatientResource)

	// health/ready/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	return a
}

// SetRateLimit overrides the default per-client budget. Call before Handler.
func (a *API) SetRateLimit(perSec, burst int) {
	if perSec > 0 {
		a.ratePerSec = perSec
	}
	if burst > 0 {
		a.rateBurst = burst
	}
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withSession(h)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(a.log, h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

type homeResponse struct {
	Announcements []board.Announcement `json:"announcements"`
}

func (a *API) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	anns, err := a.portal.Announcements(r.Context())
	if err != nil {
		a.handlePortalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, homeResponse{Announcements: anns})
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "newhope-portal",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	if err := audit.LogEvent(ctx, event, fields); err != nil {
		a.log.Error().Err(err).Str("event", event).Msg("audit log failed")
	}
}

func (a *API) handlePortalError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrMissingField), errors.Is(err, board.ErrMissingField),
		errors.Is(err, identity.ErrDuplicateEmail):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, identity.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// seeOther is the post-mutation redirect used by every form handler.
func seeOther(w http.ResponseWriter, r *http.Request, location string) {
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed form body")
		return false
	}
	return true
}
