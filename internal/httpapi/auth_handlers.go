package httpapi

import (
	"net/http"

	"newhope.org/internal/identity"
	"newhope.org/internal/portal"
	"newhope.org/internal/session"
)

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !parseForm(w, r) {
		return
	}

	in := portal.RegisterInput{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Secret:  r.PostFormValue("password"),
		Phone:   r.PostFormValue("phone"),
		Address: r.PostFormValue("address"),
		Reason:  r.PostFormValue("reason"),
	}

	id, rec, err := a.portal.Register(r.Context(), in)
	if err != nil {
		a.handlePortalError(w, r, err)
		return
	}

	// Auto-login: registration opens a session immediately.
	a.openSession(w, id)
	a.audit(session.ContextWithUser(r.Context(), a.userView(id)), "portal.register", map[string]any{
		"email":     id.Email,
		"record_id": rec.ID,
	})

	seeOther(w, r, "/patient/dashboard")
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !parseForm(w, r) {
		return
	}

	id, err := a.portal.Login(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"))
	if err != nil {
		a.audit(r.Context(), "portal.login.denied", map[string]any{
			"email": r.PostFormValue("email"),
		})
		a.handlePortalError(w, r, err)
		return
	}

	a.openSession(w, id)
	a.audit(session.ContextWithUser(r.Context(), a.userView(id)), "portal.login", map[string]any{
		"email": id.Email,
	})

	if id.Role == identity.RoleAdmin {
		seeOther(w, r, "/admin/dashboard")
		return
	}
	seeOther(w, r, "/patient/dashboard")
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	if token, ok := session.TokenFromContext(r.Context()); ok {
		a.sessions.Destroy(token)
		a.audit(r.Context(), "portal.logout", nil)
	}
	a.clearSessionCookie(w)
	seeOther(w, r, "/")
}

func (a *API) openSession(w http.ResponseWriter, id identity.Identity) {
	token := a.sessions.Create(a.userView(id))
	a.setSessionCookie(w, token)
}

func (a *API) userView(id identity.Identity) session.UserView {
	return session.UserView{
		ID:    id.ID,
		Name:  id.Name,
		Email: id.Email,
		Role:  id.Role,
	}
}
