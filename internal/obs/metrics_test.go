package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/login":                        "/login",
		"/admin/dashboard":              "/admin/dashboard",
		"/admin/patients/12/status":     "/admin/patients/:id/status",
		"/admin/patients/12/delete":     "/admin/patients/:id/delete",
		"/admin/announcements/3/delete": "/admin/announcements/:id/delete",
		"/admin/announcements":          "/admin/announcements",
		"/admin/patients/12":            "/admin/patients/12",
		"/patient/dashboard?x=1":        "/patient/dashboard",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
