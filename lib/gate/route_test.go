package gate

import (
	"net/http"
	"testing"

	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/TecharoHQ/codegate/lib/config"
)

func mustRoutes(t *testing.T, specs ...string) []config.Route {
	t.Helper()

	var result []config.Route
	for i := 0; i < len(specs); i += 2 {
		typ, err := challenge.ParseType(specs[i])
		if err != nil {
			t.Fatal(err)
		}

		r, err := config.ParseRoute(typ, specs[i+1])
		if err != nil {
			t.Fatal(err)
		}
		result = append(result, r)
	}
	return result
}

func TestTableResolve(t *testing.T) {
	table := NewTable(mustRoutes(t,
		"sms", "/a/*",
		"image", "/a/b",
		"slider", "/login:POST",
		"track", "/login",
		"selection", "/api/**/delete",
		"customize", "/api/**",
		"image", "/v?/items/*.json:PUT",
	))

	if table.Len() != 7 {
		t.Errorf("wanted 7 routes, got %d", table.Len())
	}

	for _, tt := range []struct {
		name   string
		method string
		path   string
		want   challenge.Type
	}{
		{name: "exact beats earlier pattern", method: http.MethodPost, path: "/a/b", want: challenge.TypeImage},
		{name: "pattern", method: http.MethodPost, path: "/a/c", want: challenge.TypeSMS},
		{name: "GET is never gated", method: http.MethodGet, path: "/a/b"},
		{name: "GET is never gated for patterns", method: http.MethodGet, path: "/a/c"},
		{name: "star stays in one segment", method: http.MethodPost, path: "/a/c/d"},
		{name: "method specific first", method: http.MethodPost, path: "/login", want: challenge.TypeSlider},
		{name: "any method fallback", method: http.MethodPut, path: "/login", want: challenge.TypeTrack},
		{name: "HEAD counts as any method", method: http.MethodHead, path: "/login", want: challenge.TypeTrack},
		{name: "double star spans segments", method: http.MethodDelete, path: "/api/users/42/delete", want: challenge.TypeSelection},
		{name: "double star matches zero segments", method: http.MethodPost, path: "/api/delete", want: challenge.TypeSelection},
		{name: "first pattern wins", method: http.MethodPost, path: "/api/users", want: challenge.TypeCustomize},
		{name: "double star at the end matches the prefix", method: http.MethodPost, path: "/api", want: challenge.TypeCustomize},
		{name: "question mark", method: http.MethodPut, path: "/v2/items/x.json", want: challenge.TypeImage},
		{name: "method mismatch", method: http.MethodPost, path: "/v2/items/x.json"},
		{name: "question mark is one character", method: http.MethodPut, path: "/v10/items/x.json"},
		{name: "cleaned before matching", method: http.MethodPost, path: "/a//b/", want: challenge.TypeImage},
		{name: "dot segments can't dodge exact routes", method: http.MethodPost, path: "/x/../a/./b", want: challenge.TypeImage},
		{name: "no match", method: http.MethodPost, path: "/elsewhere"},
		{name: "prefix is not a match", method: http.MethodPost, path: "/a"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			route, id, ok := table.Resolve(tt.method, tt.path)

			if tt.want == "" {
				if ok {
					t.Errorf("wanted no match, got %s", route)
				}
				return
			}

			if !ok {
				t.Fatalf("wanted %s, got no match", tt.want)
			}

			if route.Type != tt.want {
				t.Errorf("wanted %s, got %s (%s)", tt.want, route.Type, route)
			}

			if id == "" {
				t.Error("route id is empty")
			}
		})
	}
}

func TestMatch(t *testing.T) {
	for _, tt := range []struct {
		pattern, path string
		want          bool
	}{
		{"/", "/", true},
		{"/**", "/", true},
		{"/**", "/a/b/c", true},
		{"/a/**/b/**/c", "/a/x/b/y/z/c", true},
		{"/a/**/b", "/a/x/y", false},
		{"/*.png", "/logo.png", true},
		{"/[abc]/x", "/b/x", true},
		{"/[abc]/x", "/d/x", false},
	} {
		if got := match(split(tt.pattern), split(tt.path)); got != tt.want {
			t.Errorf("match(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}
