package main

import (
	"strings"
	"testing"

	"github.com/TecharoHQ/codegate/lib/config"
)

const testPolicy = `
routes:
  image:
    - /login:POST
    - /api/**
  slider:
    - /comments/*:POST
`

func loadTestPolicy(t *testing.T) *config.Config {
	t.Helper()

	policy, err := config.Load(strings.NewReader(testPolicy), "test.yaml")
	if err != nil {
		t.Fatalf("can't load test policy: %v", err)
	}

	return policy
}

func TestCheck(t *testing.T) {
	policy := loadTestPolicy(t)

	for _, tt := range []struct {
		name  string
		line  string
		gated bool
		typ   string
		route string
	}{
		{name: "exact", line: "POST /login", gated: true, typ: "image", route: "/login:POST"},
		{name: "lowercase method", line: "post /login", gated: true, typ: "image", route: "/login:POST"},
		{name: "get never gated", line: "GET /login", gated: false},
		{name: "wrong method", line: "PUT /login", gated: false},
		{name: "double star", line: "DELETE /api/v1/users/42", gated: true, typ: "image", route: "/api/**"},
		{name: "single star", line: "POST /comments/12", gated: true, typ: "slider", route: "/comments/*:POST"},
		{name: "single star too deep", line: "POST /comments/12/replies", gated: false},
		{name: "unrouted", line: "POST /logout", gated: false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			results, err := check(policy, []string{tt.line})
			if err != nil {
				t.Fatalf("check: %v", err)
			}

			if len(results) != 1 {
				t.Fatalf("wanted 1 result, got %d", len(results))
			}

			got := results[0]
			if got.Gated != tt.gated {
				t.Errorf("gated: want %v, got %v", tt.gated, got.Gated)
			}
			if got.Type != tt.typ {
				t.Errorf("type: want %q, got %q", tt.typ, got.Type)
			}
			if got.Route != tt.route {
				t.Errorf("route: want %q, got %q", tt.route, got.Route)
			}
			if tt.gated && got.ID == "" {
				t.Error("gated result has no route id")
			}
		})
	}
}

func TestCheckSkipsCommentsAndBlanks(t *testing.T) {
	policy := loadTestPolicy(t)

	results, err := check(policy, []string{"", "# comment", "POST /login", "   "})
	if err != nil {
		t.Fatalf("check: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("wanted 1 result, got %d", len(results))
	}
}

func TestCheckBadLine(t *testing.T) {
	policy := loadTestPolicy(t)

	if _, err := check(policy, []string{"/login"}); err == nil {
		t.Error("wanted an error for a line without a method")
	}
}

func TestCheckDefaultPolicy(t *testing.T) {
	policy, err := config.LoadFile("")
	if err != nil {
		t.Fatalf("can't load default policy: %v", err)
	}

	results, err := check(policy, []string{"POST /login", "GET /login"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}

	if !results[0].Gated || results[0].Type != "image" {
		t.Errorf("POST /login should be gated by image: %+v", results[0])
	}
	if results[1].Gated {
		t.Errorf("GET /login should not be gated: %+v", results[1])
	}
}
