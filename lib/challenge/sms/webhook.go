package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var (
	ErrBadWebhookURL = errors.New("sms: webhook URL must be absolute http or https")
	ErrWebhookStatus = errors.New("sms: webhook rejected the message")
)

// WebhookSender hands messages to an SMS gateway by POSTing them as JSON.
type WebhookSender struct {
	URL    string
	Client *http.Client
}

type webhookMessage struct {
	To        string    `json:"to"`
	Code      string    `json:"code"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewWebhookSender checks target and returns a sender using cli, or a client
// with a ten second timeout when cli is nil.
func NewWebhookSender(target string, cli *http.Client) (*WebhookSender, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadWebhookURL, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadWebhookURL, target)
	}

	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	return &WebhookSender{URL: target, Client: cli}, nil
}

func (ws *WebhookSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(webhookMessage(msg))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ws.Client.Do(req)
	if err != nil {
		return fmt.Errorf("sms: can't reach webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrWebhookStatus, resp.StatusCode)
	}

	return nil
}
