package httpapi

import (
	"net/http"

	"newhope.org/internal/identity"
	"newhope.org/internal/session"
)

// sessionCookie carries the opaque session token.
const sessionCookie = "portal_session"

// withSession resolves the session cookie and attaches the user to the
// request context. It never rejects: gating happens per route in the
// require* helpers so each route gets the right outcome (redirect vs 403).
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, ok := a.sessions.Get(cookie.Value)
		if !ok {
			// Stale cookie: drop it so the client stops presenting it.
			a.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		ctx := session.ContextWithUser(r.Context(), user)
		ctx = session.ContextWithToken(ctx, cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireUser admits any authenticated user. Anonymous callers are sent to
// the login entry point; this is control flow, not an error.
func (a *API) requireUser(w http.ResponseWriter, r *http.Request) (session.UserView, bool) {
	user, ok := session.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return session.UserView{}, false
	}
	return user, true
}

// requireRole admits only the given role. Anonymous callers get the login
// redirect; a signed-in user of the wrong role gets a hard denial.
func (a *API) requireRole(w http.ResponseWriter, r *http.Request, role identity.Role) (session.UserView, bool) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return session.UserView{}, false
	}
	if user.Role != role {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return session.UserView{}, false
	}
	return user, true
}

func (a *API) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
