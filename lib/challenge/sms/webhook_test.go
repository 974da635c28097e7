package sms

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewWebhookSender(t *testing.T) {
	for _, tt := range []struct {
		target string
		err    error
	}{
		{target: "https://sms.example/send"},
		{target: "http://127.0.0.1:8080/"},
		{target: "ftp://sms.example/", err: ErrBadWebhookURL},
		{target: "/relative", err: ErrBadWebhookURL},
		{target: "://", err: ErrBadWebhookURL},
	} {
		t.Run(tt.target, func(t *testing.T) {
			if _, err := NewWebhookSender(tt.target, nil); !errors.Is(err, tt.err) {
				t.Errorf("wanted %v, got: %v", tt.err, err)
			}
		})
	}
}

func TestWebhookSender(t *testing.T) {
	var got webhookMessage
	status := http.StatusAccepted

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("wrong request: %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.WriteHeader(status)
	}))
	defer ts.Close()

	ws, err := NewWebhookSender(ts.URL, ts.Client())
	if err != nil {
		t.Fatal(err)
	}

	msg := Message{To: "+15550001234", Code: "482913", Token: "tok", ExpiresAt: time.Unix(1700000000, 0).UTC()}

	if err := ws.Send(t.Context(), msg); err != nil {
		t.Fatal(err)
	}

	if got.To != msg.To || got.Code != msg.Code || got.Token != msg.Token || !got.ExpiresAt.Equal(msg.ExpiresAt) {
		t.Errorf("gateway got %+v", got)
	}

	status = http.StatusBadGateway
	if err := ws.Send(t.Context(), msg); !errors.Is(err, ErrWebhookStatus) {
		t.Errorf("wanted ErrWebhookStatus, got: %v", err)
	}
}
