package metrics

import "strings"

// UnknownService is the fallback bucket for paths outside the known API surface.
const UnknownService = "unknown-service"

// servicePrefixes maps API path prefixes to coarse service buckets for the
// dashboard. Matching is longest-prefix so a more specific mapping added later
// cannot be shadowed by a shorter one.
var servicePrefixes = []struct {
	prefix  string
	service string
}{
	{"/api/auth", "auth-service"},
	{"/api/organizations", "organization-service"},
	{"/api/members", "member-service"},
	{"/api/programs", "program-service"},
	{"/api/tasks", "task-service"},
	{"/api/comments", "comment-service"},
	{"/api/departments", "department-service"},
	{"/api/users", "user-service"},
	{"/api/stats", "stats-service"},
}

// ClassifyService derives the service bucket for a request path.
func ClassifyService(path string) string {
	best := ""
	service := UnknownService
	for _, entry := range servicePrefixes {
		if strings.HasPrefix(path, entry.prefix) && len(entry.prefix) > len(best) {
			best = entry.prefix
			service = entry.service
		}
	}
	return service
}
