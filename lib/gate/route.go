package gate

import (
	"net/http"
	"path"
	"strings"

	"github.com/TecharoHQ/codegate/internal"
	"github.com/TecharoHQ/codegate/lib/config"
)

type entry struct {
	config.Route
	segments []string
	id       string
}

func (e entry) allows(method string) bool {
	return e.Method == "" || e.Method == method
}

// Table maps request paths to challenge types.
type Table struct {
	exact    map[string][]entry
	patterns []entry
}

// NewTable builds a Table. routes must already be in registration order.
func NewTable(routes []config.Route) *Table {
	result := &Table{
		exact: map[string][]entry{},
	}

	for _, r := range routes {
		e := entry{
			Route:    r,
			segments: split(r.Pattern),
			id:       internal.FastHash(string(r.Type) + " " + r.String()),
		}

		if r.Exact() {
			result.exact[r.Pattern] = append(result.exact[r.Pattern], e)
			continue
		}

		result.patterns = append(result.patterns, e)
	}

	return result
}

// Len is the number of routes in the table.
func (t *Table) Len() int {
	n := len(t.patterns)
	for _, entries := range t.exact {
		n += len(entries)
	}
	return n
}

// Resolve finds the route for method and p. GET never matches. Exact routes
// win over patterns; among patterns the first registered one wins.
func (t *Table) Resolve(method, p string) (config.Route, string, bool) {
	if method == http.MethodGet {
		return config.Route{}, "", false
	}

	p = config.CleanPath(p)

	for _, e := range t.exact[p] {
		if e.allows(method) {
			return e.Route, e.id, true
		}
	}

	segments := split(p)
	for _, e := range t.patterns {
		if e.allows(method) && match(e.segments, segments) {
			return e.Route, e.id, true
		}
	}

	return config.Route{}, "", false
}

func split(p string) []string {
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

// match applies pattern to a path segment by segment. "**" spans any number
// of segments, including none.
func match(pattern, segments []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			pattern = pattern[1:]
			if len(pattern) == 0 {
				return true
			}

			for i := range len(segments) + 1 {
				if match(pattern, segments[i:]) {
					return true
				}
			}
			return false
		}

		if len(segments) == 0 {
			return false
		}

		if ok, _ := path.Match(pattern[0], segments[0]); !ok {
			return false
		}

		pattern, segments = pattern[1:], segments[1:]
	}

	return len(segments) == 0
}
