package internal

import (
	"bytes"
	"encoding/json"
	"log"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestErrorLogFilter(t *testing.T) {
	for _, tt := range []struct {
		name    string
		message string
		written bool
	}{
		{name: "canceled proxy request", message: "http: proxy error: context canceled"},
		{name: "canceled in the middle", message: "before http: proxy error: context canceled and after"},
		{name: "other errors pass", message: "http: TLS handshake error from 10.0.0.1:5555: EOF", written: true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			lg := log.New(&ErrorLogFilter{Unwrap: log.New(&buf, "", 0)}, "", 0)
			lg.Println(tt.message)

			if got := buf.Len() != 0; got != tt.written {
				t.Fatalf("wanted written=%v, output: %q", tt.written, buf.String())
			}

			if tt.written && buf.String() != tt.message+"\n" {
				t.Errorf("output was changed: %q", buf.String())
			}
		})
	}
}

func TestGetRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	req := httptest.NewRequest("POST", "/login?imageCode=ABCD", nil)
	req.Header.Set("X-Real-Ip", "203.0.113.7")
	req.Header.Set("User-Agent", "curl/8.0")

	GetRequestLogger(req).Info("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatal(err)
	}

	for key, want := range map[string]string{
		"method":     "POST",
		"path":       "/login",
		"user_agent": "curl/8.0",
		"remote_ip":  "203.0.113.7",
	} {
		if line[key] != want {
			t.Errorf("%s: wanted %q, got %v", key, want, line[key])
		}
	}

	if strings.Contains(buf.String(), "ABCD") {
		t.Error("query string leaked into the log")
	}
}
