package config

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/TecharoHQ/codegate/lib/challenge"
)

var (
	ErrEmptyRoute       = errors.New("config.Route: route is empty")
	ErrRouteNotAbsolute = errors.New("config.Route: route must start with /")
	ErrBadRoutePattern  = errors.New("config.Route: malformed route pattern")
	ErrRouteGetMethod   = errors.New("config.Route: GET requests are never gated, drop the :GET suffix")
)

// gatedMethods are the methods a route may name explicitly.
var gatedMethods = []string{
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodHead,
	http.MethodOptions,
}

// Route is one entry of the routing table. An empty Method matches every
// method except GET.
type Route struct {
	Type    challenge.Type `json:"type"`
	Pattern string         `json:"pattern"`
	Method  string         `json:"method,omitempty"`
}

// String returns the route in its uri[:METHOD] form.
func (r Route) String() string {
	if r.Method == "" {
		return r.Pattern
	}
	return r.Pattern + ":" + r.Method
}

// Exact reports whether the pattern contains no wildcards.
func (r Route) Exact() bool {
	return !strings.ContainsAny(r.Pattern, "*?[")
}

// ParseRoute parses "uri[:METHOD]". The suffix after the last colon is only
// treated as a method when it names one; "/a:b" is a plain path.
func ParseRoute(t challenge.Type, spec string) (Route, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Route{}, ErrEmptyRoute
	}

	result := Route{Type: t, Pattern: spec}

	if idx := strings.LastIndexByte(spec, ':'); idx != -1 {
		method := strings.ToUpper(spec[idx+1:])
		switch {
		case method == http.MethodGet:
			return Route{}, fmt.Errorf("%w: %q", ErrRouteGetMethod, spec)
		case isGatedMethod(method):
			result.Pattern = spec[:idx]
			result.Method = method
		}
	}

	if !strings.HasPrefix(result.Pattern, "/") {
		return Route{}, fmt.Errorf("%w: %q", ErrRouteNotAbsolute, spec)
	}

	result.Pattern = CleanPath(result.Pattern)

	for _, segment := range strings.Split(result.Pattern, "/") {
		if segment == "**" {
			continue
		}
		if _, err := path.Match(segment, ""); err != nil {
			return Route{}, fmt.Errorf("%w: %q: %w", ErrBadRoutePattern, spec, err)
		}
	}

	return result, nil
}

func isGatedMethod(method string) bool {
	for _, m := range gatedMethods {
		if m == method {
			return true
		}
	}
	return false
}

// CleanPath normalizes a request path or route pattern so that "/a//b/../c/"
// and "/a/c" compare equal.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}
