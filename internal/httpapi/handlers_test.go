package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"newhope.org/internal/board"
	"newhope.org/internal/identity"
	"newhope.org/internal/portal"
	"newhope.org/internal/registry"
	"newhope.org/internal/session"
)

type testServer struct {
	t   *testing.T
	url string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ids := identity.NewInMemory()
	if _, err := ids.Seed(context.Background(), "Site Administrator", "admin@newhope.com", "admin123"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	svc, err := portal.New(ids, registry.NewInMemory(), board.NewInMemory())
	if err != nil {
		t.Fatalf("new portal service: %v", err)
	}
	sessions := session.NewManager()
	t.Cleanup(sessions.Close)

	api := New(ReadyProbe{}, "test", svc, sessions)
	api.SetRateLimit(1000, 1000)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &testServer{t: t, url: srv.URL}
}

// client returns an http client with its own cookie jar, representing one
// browser. Redirects are not followed so tests can assert on them.
func (ts *testServer) client() *apiClient {
	ts.t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		ts.t.Fatalf("cookie jar: %v", err)
	}
	return &apiClient{
		baseURL: ts.url,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		t: ts.t,
	}
}

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func (c *apiClient) postForm(path string, form url.Values) *http.Response {
	c.t.Helper()
	resp, err := c.client.Post(c.baseURL+path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		c.t.Fatalf("post %s: %v", path, err)
	}
	return resp
}

func (c *apiClient) get(path string) *http.Response {
	c.t.Helper()
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("get %s: %v", path, err)
	}
	return resp
}

func (c *apiClient) register(name, email, password string) *http.Response {
	return c.postForm("/register", url.Values{
		"name":     {name},
		"email":    {email},
		"password": {password},
		"phone":    {"555-0101"},
		"address":  {"1 Main St"},
		"reason":   {"checkup"},
	})
}

func (c *apiClient) login(email, password string) *http.Response {
	return c.postForm("/login", url.Values{
		"email":    {email},
		"password": {password},
	})
}

func expectRedirect(t *testing.T, resp *http.Response, code int, location string) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != code {
		t.Fatalf("expected status %d, got %d", code, resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != location {
		t.Fatalf("expected redirect to %s, got %s", location, got)
	}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestRegisterFlow(t *testing.T) {
	ts := newTestServer(t)
	ann := ts.client()

	expectRedirect(t, ann.register("Ann", "ann@x.com", "pw"), http.StatusSeeOther, "/patient/dashboard")

	resp := ann.get("/patient/dashboard")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard after register: %d", resp.StatusCode)
	}
	dash := decode[patientDashboardResponse](t, resp)
	if dash.Patient.Status != registry.StatusPending {
		t.Fatalf("expected %q, got %q", registry.StatusPending, dash.Patient.Status)
	}
	if dash.Patient.FullName != "Ann" {
		t.Fatalf("unexpected record: %+v", dash.Patient)
	}

	// Same email again: validation failure surfaces for re-display.
	resp = ts.client().register("Ann Again", "ann@x.com", "pw2")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate email: expected 400, got %d", resp.StatusCode)
	}

	// Missing mandatory field.
	resp = ts.client().postForm("/register", url.Values{"email": {"b@x.com"}, "password": {"pw"}})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing name: expected 400, got %d", resp.StatusCode)
	}
}

func TestLoginFlow(t *testing.T) {
	ts := newTestServer(t)

	admin := ts.client()
	expectRedirect(t, admin.login("admin@newhope.com", "admin123"), http.StatusSeeOther, "/admin/dashboard")

	resp := admin.get("/admin/dashboard")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin dashboard: %d", resp.StatusCode)
	}
	decode[adminDashboardResponse](t, resp)

	// Wrong password is a credential failure, not a redirect.
	resp = ts.client().login("admin@newhope.com", "wrong")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad credentials: expected 401, got %d", resp.StatusCode)
	}
}

func TestAnonymousIsRedirectedToLogin(t *testing.T) {
	ts := newTestServer(t)
	anon := ts.client()

	for _, path := range []string{"/patient/dashboard", "/admin/dashboard"} {
		expectRedirect(t, anon.get(path), http.StatusFound, "/login")
	}
	expectRedirect(t, anon.postForm("/admin/announcements", url.Values{
		"title": {"X"}, "content": {"Y"},
	}), http.StatusFound, "/login")
}

func TestRoleIsolation(t *testing.T) {
	ts := newTestServer(t)

	patient := ts.client()
	expectRedirect(t, patient.register("Ann", "ann@x.com", "pw"), http.StatusSeeOther, "/patient/dashboard")

	// A signed-in patient is hard-denied on admin routes, not redirected.
	adminOnly := []func() *http.Response{
		func() *http.Response { return patient.get("/admin/dashboard") },
		func() *http.Response {
			return patient.postForm("/admin/announcements", url.Values{"title": {"X"}, "content": {"Y"}})
		},
		func() *http.Response { return patient.postForm("/admin/patients/1/status", url.Values{"status": {"Admitted"}}) },
		func() *http.Response { return patient.postForm("/admin/patients/1/delete", nil) },
		func() *http.Response { return patient.postForm("/admin/announcements/1/delete", nil) },
	}
	for i, call := range adminOnly {
		resp := call()
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("admin route %d: expected 403, got %d", i, resp.StatusCode)
		}
	}

	// Nothing leaked through: the board is still empty and the patient's
	// own record unchanged.
	home := decode[homeResponse](t, ts.client().get("/"))
	if len(home.Announcements) != 0 {
		t.Fatalf("forbidden call mutated the board: %+v", home.Announcements)
	}
	dash := decode[patientDashboardResponse](t, patient.get("/patient/dashboard"))
	if dash.Patient.Status != registry.StatusPending {
		t.Fatalf("forbidden call mutated the record: %+v", dash.Patient)
	}

	// The admin likewise cannot use the patient dashboard.
	admin := ts.client()
	expectRedirect(t, admin.login("admin@newhope.com", "admin123"), http.StatusSeeOther, "/admin/dashboard")
	resp := admin.get("/patient/dashboard")
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("patient dashboard as admin: expected 403, got %d", resp.StatusCode)
	}
}

func TestAnnouncementLifecycle(t *testing.T) {
	ts := newTestServer(t)

	admin := ts.client()
	expectRedirect(t, admin.login("admin@newhope.com", "admin123"), http.StatusSeeOther, "/admin/dashboard")

	expectRedirect(t, admin.postForm("/admin/announcements", url.Values{
		"title": {"A"}, "content": {"first"},
	}), http.StatusSeeOther, "/admin/dashboard")
	expectRedirect(t, admin.postForm("/admin/announcements", url.Values{
		"title": {"B"}, "content": {"second"},
	}), http.StatusSeeOther, "/admin/dashboard")

	// Most recent first, visible to anonymous visitors on the home page.
	home := decode[homeResponse](t, ts.client().get("/"))
	if len(home.Announcements) != 2 || home.Announcements[0].Title != "B" || home.Announcements[1].Title != "A" {
		t.Fatalf("expected [B A], got %+v", home.Announcements)
	}

	// Incomplete form is absorbed into the dashboard redirect.
	expectRedirect(t, admin.postForm("/admin/announcements", url.Values{
		"title": {"C"},
	}), http.StatusSeeOther, "/admin/dashboard")
	home = decode[homeResponse](t, ts.client().get("/"))
	if len(home.Announcements) != 2 {
		t.Fatalf("incomplete post created an announcement: %+v", home.Announcements)
	}

	// Delete by id; repeating the delete is a no-op redirect.
	id := home.Announcements[0].ID
	path := "/admin/announcements/" + itoa(id) + "/delete"
	expectRedirect(t, admin.postForm(path, nil), http.StatusSeeOther, "/admin/dashboard")
	expectRedirect(t, admin.postForm(path, nil), http.StatusSeeOther, "/admin/dashboard")

	home = decode[homeResponse](t, ts.client().get("/"))
	if len(home.Announcements) != 1 || home.Announcements[0].Title != "A" {
		t.Fatalf("unexpected board after delete: %+v", home.Announcements)
	}
}

func TestPatientStatusAndCascade(t *testing.T) {
	ts := newTestServer(t)

	patient := ts.client()
	expectRedirect(t, patient.register("Ann", "ann@x.com", "pw"), http.StatusSeeOther, "/patient/dashboard")

	admin := ts.client()
	expectRedirect(t, admin.login("admin@newhope.com", "admin123"), http.StatusSeeOther, "/admin/dashboard")

	adminDash := decode[adminDashboardResponse](t, admin.get("/admin/dashboard"))
	if len(adminDash.Patients) != 1 {
		t.Fatalf("expected one admission record, got %+v", adminDash.Patients)
	}
	recID := adminDash.Patients[0].ID

	// Status change becomes visible on the patient's dashboard.
	expectRedirect(t, admin.postForm("/admin/patients/"+itoa(recID)+"/status", url.Values{
		"status": {"Admitted"},
	}), http.StatusSeeOther, "/admin/dashboard")
	dash := decode[patientDashboardResponse](t, patient.get("/patient/dashboard"))
	if dash.Patient.Status != "Admitted" {
		t.Fatalf("expected Admitted, got %q", dash.Patient.Status)
	}

	// Stale id: silent no-op.
	expectRedirect(t, admin.postForm("/admin/patients/999/status", url.Values{
		"status": {"Admitted"},
	}), http.StatusSeeOther, "/admin/dashboard")

	// Delete cascades: record gone, account gone, live session revoked.
	expectRedirect(t, admin.postForm("/admin/patients/"+itoa(recID)+"/delete", nil),
		http.StatusSeeOther, "/admin/dashboard")

	adminDash = decode[adminDashboardResponse](t, admin.get("/admin/dashboard"))
	if len(adminDash.Patients) != 0 {
		t.Fatalf("record survived delete: %+v", adminDash.Patients)
	}
	expectRedirect(t, patient.get("/patient/dashboard"), http.StatusFound, "/login")
	resp := ts.client().login("ann@x.com", "pw")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("deleted account can still log in: %d", resp.StatusCode)
	}

	// Deleting the same record again is a no-op redirect.
	expectRedirect(t, admin.postForm("/admin/patients/"+itoa(recID)+"/delete", nil),
		http.StatusSeeOther, "/admin/dashboard")
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)

	admin := ts.client()
	expectRedirect(t, admin.login("admin@newhope.com", "admin123"), http.StatusSeeOther, "/admin/dashboard")
	expectRedirect(t, admin.postForm("/logout", nil), http.StatusSeeOther, "/")
	expectRedirect(t, admin.get("/admin/dashboard"), http.StatusFound, "/login")

	// Logging out while anonymous is harmless.
	expectRedirect(t, ts.client().postForm("/logout", nil), http.StatusSeeOther, "/")
}

func TestHealthAndUnknownPath(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client()

	resp := c.get("/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" {
		t.Fatalf("unexpected healthz body: %v", body)
	}

	resp = c.get("/readyz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz: %d", resp.StatusCode)
	}

	resp = c.get("/no-such-page")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown path: expected 404, got %d", resp.StatusCode)
	}

	resp = c.get("/login")
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET /login: expected 405, got %d", resp.StatusCode)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
