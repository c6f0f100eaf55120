// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

// Package notify sends the owner an email when a visitor writes. Delivery is
// best-effort: a failed or throttled notification never blocks or fails the
// message send that triggered it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abdallahelabd/bioterm/internal/config"
)

// previewLimit caps the message excerpt embedded in the email.
const previewLimit = 140

// Notifier posts notification emails through an EmailJS-compatible endpoint.
type Notifier struct {
	cfg    config.NotifyConfig
	client *http.Client
	now    func() time.Time
}

// New returns a notifier for the given configuration.
func New(cfg config.NotifyConfig) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Enabled reports whether notifications are configured at all.
func (n *Notifier) Enabled() bool {
	return n.cfg.Enabled && n.cfg.ServiceID != "" && n.cfg.TemplateID != "" && n.cfg.PublicKey != ""
}

// Throttled reports whether a notification sent now would violate the
// minimum interval since the last one.
func (n *Notifier) Throttled(last time.Time) bool {
	if last.IsZero() {
		return false
	}
	min := time.Duration(n.cfg.MinIntervalSecs) * time.Second
	return n.now().Sub(last) < min
}

// emailPayload is the EmailJS send-email request body.
type emailPayload struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	TemplateParams map[string]any `json:"template_params"`
}

// Notify sends one new-message email. last is the time of the previous
// notification; when the call is disabled or throttled it returns
// (false, nil) without touching the network. On success it returns
// (true, nil) and the caller records the new timestamp.
func (n *Notifier) Notify(ctx context.Context, visitor, body string, last time.Time) (bool, error) {
	if !n.Enabled() {
		return false, nil
	}
	if n.Throttled(last) {
		return false, nil
	}

	payload := emailPayload{
		ServiceID:  n.cfg.ServiceID,
		TemplateID: n.cfg.TemplateID,
		UserID:     n.cfg.PublicKey,
		TemplateParams: map[string]any{
			"to_email":  n.cfg.OwnerEmail,
			"from_name": visitor,
			"message":   preview(body),
			"sent_at":   n.now().UTC().Format(time.RFC3339),
		},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.Endpoint, bytes.NewReader(buf))
	if err != nil {
		return false, fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return true, nil
}

// preview truncates the message body for the email template, collapsing it
// to its first line. The cut is rune-aware so an emoji straddling the limit
// is dropped whole instead of leaving invalid UTF-8 in the payload.
func preview(body string) string {
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[:i]
	}
	if r := []rune(body); len(r) > previewLimit {
		body = string(r[:previewLimit]) + "…"
	}
	return body
}
