package config

import (
	"errors"
	"testing"

	"github.com/TecharoHQ/codegate/lib/challenge"
)

func TestParseRoute(t *testing.T) {
	for _, tt := range []struct {
		in      string
		pattern string
		method  string
		exact   bool
		err     error
	}{
		{in: "/login", pattern: "/login", exact: true},
		{in: "/login:POST", pattern: "/login", method: "POST", exact: true},
		{in: "/login:post", pattern: "/login", method: "POST", exact: true},
		{in: " /a//b/../c/:DELETE ", pattern: "/a/c", method: "DELETE", exact: true},
		{in: "/time/12:30", pattern: "/time/12:30", exact: true},
		{in: "/api/**", pattern: "/api/**"},
		{in: "/api/v?/*:PUT", pattern: "/api/v?/*", method: "PUT"},
		{in: "/login:GET", err: ErrRouteGetMethod},
		{in: "", err: ErrEmptyRoute},
		{in: "login", err: ErrRouteNotAbsolute},
		{in: ":POST", err: ErrRouteNotAbsolute},
		{in: "/x/[a-", err: ErrBadRoutePattern},
	} {
		t.Run(tt.in, func(t *testing.T) {
			r, err := ParseRoute(challenge.TypeImage, tt.in)
			if !errors.Is(err, tt.err) {
				t.Fatalf("wanted error %v, got: %v", tt.err, err)
			}

			if tt.err != nil {
				return
			}

			if r.Pattern != tt.pattern || r.Method != tt.method {
				t.Errorf("wanted %s:%s, got %s:%s", tt.pattern, tt.method, r.Pattern, r.Method)
			}

			if r.Exact() != tt.exact {
				t.Errorf("wanted exact=%v", tt.exact)
			}
		})
	}
}

func TestCleanPath(t *testing.T) {
	for in, want := range map[string]string{
		"":            "/",
		"/":           "/",
		"a/b":         "/a/b",
		"/a/b/":       "/a/b",
		"/a/./b":      "/a/b",
		"/a/../../b":  "/b",
		"//login":     "/login",
		"/login/..;/": "/login/..;",
	} {
		if got := CleanPath(in); got != want {
			t.Errorf("CleanPath(%q) = %q, want %q", in, got, want)
		}
	}
}
