package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"newhope.org/internal/board"
	"newhope.org/internal/identity"
	"newhope.org/internal/registry"
)

type adminDashboardResponse struct {
	Patients      []registry.Record    `json:"patients"`
	Announcements []board.Announcement `json:"announcements"`
}

func (a *API) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireRole(w, r, identity.RoleAdmin); !ok {
		return
	}

	recs, anns, err := a.portal.AdminDashboard(r.Context())
	if err != nil {
		a.handlePortalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adminDashboardResponse{
		Patients:      recs,
		Announcements: anns,
	})
}

func (a *API) handleAnnouncementsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requireRole(w, r, identity.RoleAdmin); !ok {
		return
	}
	if !parseForm(w, r) {
		return
	}

	ann, err := a.portal.PostAnnouncement(r.Context(), r.PostFormValue("title"), r.PostFormValue("content"))
	switch {
	case err == nil:
		a.audit(r.Context(), "portal.announcement.post", map[string]any{
			"announcement_id": ann.ID,
			"title":           ann.Title,
		})
	case errors.Is(err, board.ErrMissingField):
		// Incomplete form: dropped, the dashboard redisplays unchanged.
	default:
		a.handlePortalError(w, r, err)
		return
	}
	seeOther(w, r, "/admin/dashboard")
}

// handleAnnouncementResource serves POST /admin/announcements/{id}/delete.
func (a *API) handleAnnouncementResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requireRole(w, r, identity.RoleAdmin); !ok {
		return
	}

	id, action, ok := splitResourcePath(r.URL.Path, "/admin/announcements/")
	if !ok || action != "delete" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	// Stale and malformed ids alike are absorbed; removal is idempotent.
	if id > 0 {
		if err := a.portal.RemoveAnnouncement(r.Context(), id); err != nil {
			a.handlePortalError(w, r, err)
			return
		}
		a.audit(r.Context(), "portal.announcement.remove", map[string]any{
			"announcement_id": id,
		})
	}
	seeOther(w, r, "/admin/dashboard")
}

// handlePatientResource serves POST /admin/patients/{id}/status and
// POST /admin/patients/{id}/delete.
func (a *API) handlePatientResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requireRole(w, r, identity.RoleAdmin); !ok {
		return
	}

	id, action, ok := splitResourcePath(r.URL.Path, "/admin/patients/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch action {
	case "status":
		if !parseForm(w, r) {
			return
		}
		status := r.PostFormValue("status")
		if id > 0 && status != "" {
			if err := a.portal.SetPatientStatus(r.Context(), id, status); err != nil {
				a.handlePortalError(w, r, err)
				return
			}
			a.audit(r.Context(), "portal.patient.status", map[string]any{
				"record_id": id,
				"status":    status,
			})
		}
	case "delete":
		if id > 0 {
			ownerID, deleted, err := a.portal.DeletePatient(r.Context(), id)
			if err != nil {
				a.handlePortalError(w, r, err)
				return
			}
			if deleted {
				// The deleted account must not keep an open session.
				a.sessions.DestroyByUser(ownerID)
				a.audit(r.Context(), "portal.patient.delete", map[string]any{
					"record_id": id,
					"owner_id":  ownerID,
				})
			}
		}
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	seeOther(w, r, "/admin/dashboard")
}

// splitResourcePath parses "{prefix}{id}/{action}". A non-numeric id yields
// id=0 with ok=true so callers can treat it as a silent no-op.
func splitResourcePath(path, prefix string) (id int64, action string, ok bool) {
	rest, found := strings.CutPrefix(path, prefix)
	if !found {
		return 0, "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		id = 0
	}
	return id, parts[1], true
}
