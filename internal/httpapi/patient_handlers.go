package httpapi

import (
	"net/http"

	"newhope.org/internal/board"
	"newhope.org/internal/identity"
	"newhope.org/internal/registry"
)

type patientDashboardResponse struct {
	Patient       registry.Record      `json:"patient"`
	Announcements []board.Announcement `json:"announcements"`
}

func (a *API) handlePatientDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, ok := a.requireRole(w, r, identity.RolePatient)
	if !ok {
		return
	}

	rec, anns, err := a.portal.PatientDashboard(r.Context(), user.ID)
	if err != nil {
		a.handlePortalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, patientDashboardResponse{
		Patient:       rec,
		Announcements: anns,
	})
}
