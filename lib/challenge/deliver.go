package challenge

import (
	"encoding/json"
	"net/http"
	"time"
)

// Ack is the JSON body delivered for challenges that have no binary payload.
type Ack struct {
	Type      Type           `json:"type"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Details   map[string]any `json:"details,omitempty"`
}

// WriteJSON writes body as an uncacheable JSON response.
func WriteJSON(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

// WritePayload writes c.Payload with its content type.
func WritePayload(w http.ResponseWriter, c *Challenge) error {
	contentType := c.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	if c.Token != "" {
		w.Header().Set("X-Codegate-Token", c.Token)
	}
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(c.Payload)
	return err
}
