package metrics

import "testing"

func TestClassifyServiceKnownPrefixes(t *testing.T) {
	cases := map[string]string{
		"/api/auth/login":          "auth-service",
		"/api/organizations/42":    "organization-service",
		"/api/members":             "member-service",
		"/api/programs/7/tasks":    "program-service",
		"/api/tasks/123":           "task-service",
		"/api/comments":            "comment-service",
		"/api/departments/ops":     "department-service",
		"/api/users/me":            "user-service",
		"/api/stats/summary":       "stats-service",
		"/api/unknown-thing":       UnknownService,
		"/internal/anything":       UnknownService,
		"/":                        UnknownService,
		"/api/authenticators/weak": "auth-service",
	}
	for path, want := range cases {
		if got := ClassifyService(path); got != want {
			t.Fatalf("ClassifyService(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestClassifyServiceEmptyPath(t *testing.T) {
	if got := ClassifyService(""); got != UnknownService {
		t.Fatalf("expected %q for empty path, got %q", UnknownService, got)
	}
}
