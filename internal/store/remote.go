// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/abdallahelabd/bioterm/internal/model"
)

// =============================================================================
// REMOTE STORE
// =============================================================================

// passcodeHeader authenticates moderation calls (delete message, clear
// thread) against biosyncd. Everything else is unauthenticated, matching the
// open-visitor model.
const passcodeHeader = "X-Bioterm-Passcode"

// Remote is a Store backed by a biosyncd instance over HTTP. Writes are plain
// JSON requests; the subscription is a server-sent-event stream of full
// snapshots with automatic reconnect.
type Remote struct {
	base     string
	passcode string

	// client serves request/response calls; streamClient has no timeout
	// because the snapshot stream is expected to stay open.
	client       *http.Client
	streamClient *http.Client

	mu     sync.Mutex
	closed bool
	cancel []context.CancelFunc
}

// NewRemote returns a client of the biosyncd instance at baseURL. The
// passcode is attached to moderation requests only.
func NewRemote(baseURL, passcode string) *Remote {
	return &Remote{
		base:         strings.TrimRight(baseURL, "/"),
		passcode:     passcode,
		client:       &http.Client{Timeout: 15 * time.Second},
		streamClient: &http.Client{},
	}
}

// Append posts a new message and returns the stored record with its
// server-assigned id and timestamp.
func (r *Remote) Append(ctx context.Context, msg model.Message) (model.Message, error) {
	var stored model.Message
	if err := r.doJSON(ctx, http.MethodPost, "/v1/messages", msg, &stored, false); err != nil {
		return model.Message{}, fmt.Errorf("failed to append message: %w", err)
	}
	return stored, nil
}

// Update patches one stored message.
func (r *Remote) Update(ctx context.Context, id string, patch model.Patch) error {
	path := "/v1/messages/" + url.PathEscape(id)
	if err := r.doJSON(ctx, http.MethodPatch, path, patch, nil, false); err != nil {
		return fmt.Errorf("failed to patch message %s: %w", id, err)
	}
	return nil
}

// Delete removes one message. This is a moderation call and carries the
// passcode.
func (r *Remote) Delete(ctx context.Context, id string) error {
	path := "/v1/messages/" + url.PathEscape(id)
	if err := r.doJSON(ctx, http.MethodDelete, path, nil, nil, true); err != nil {
		return fmt.Errorf("failed to delete message %s: %w", id, err)
	}
	return nil
}

// DeleteThread removes every message in a visitor's thread. Moderation call.
func (r *Remote) DeleteThread(ctx context.Context, handle string) error {
	path := "/v1/threads/" + url.PathEscape(handle)
	if err := r.doJSON(ctx, http.MethodDelete, path, nil, nil, true); err != nil {
		return fmt.Errorf("failed to clear thread %s: %w", handle, err)
	}
	return nil
}

// Subscribe opens the snapshot stream. The feed reconnects on transport
// errors with exponential backoff and only stops on Cancel (or store Close).
func (r *Remote) Subscribe(ctx context.Context) (Subscription, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("store: closed")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	streamCtx, cancel := context.WithCancel(ctx)
	r.cancel = append(r.cancel, cancel)
	r.mu.Unlock()

	sub := newSnapshotSub(cancel)
	go r.streamLoop(streamCtx, sub)
	return sub, nil
}

// PutInlineImage stores an image as a base64 record and returns its id.
func (r *Remote) PutInlineImage(ctx context.Context, mime string, data []byte) (string, error) {
	req := inlineImagePayload{MIME: mime, Data: base64.StdEncoding.EncodeToString(data)}
	var resp struct {
		ID string `json:"id"`
	}
	if err := r.doJSON(ctx, http.MethodPost, "/v1/images", req, &resp, false); err != nil {
		return "", fmt.Errorf("failed to store inline image: %w", err)
	}
	return resp.ID, nil
}

// GetInlineImage fetches an inline image record.
func (r *Remote) GetInlineImage(ctx context.Context, id string) (string, []byte, error) {
	var resp inlineImagePayload
	path := "/v1/images/" + url.PathEscape(id)
	if err := r.doJSON(ctx, http.MethodGet, path, nil, &resp, false); err != nil {
		return "", nil, fmt.Errorf("failed to fetch inline image %s: %w", id, err)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode inline image %s: %w", id, err)
	}
	return resp.MIME, data, nil
}

// UploadBlob streams the image to blob storage and returns its URL. Progress
// reflects bytes written to the wire, not server-side completion.
func (r *Remote) UploadBlob(ctx context.Context, mime string, data []byte, progress func(float64)) (string, error) {
	body := &progressReader{r: bytes.NewReader(data), total: len(data), progress: progress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+"/v1/blobs", body)
	if err != nil {
		return "", fmt.Errorf("failed to build blob upload: %w", err)
	}
	req.Header.Set("Content-Type", mime)
	req.ContentLength = int64(len(data))

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload blob: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", httpError(resp)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode blob response: %w", err)
	}
	return out.URL, nil
}

// Close cancels all open subscriptions.
func (r *Remote) Close() error {
	r.mu.Lock()
	r.closed = true
	cancels := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	return nil
}

type inlineImagePayload struct {
	MIME string `json:"mime"`
	Data string `json:"data"`
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

func (r *Remote) doJSON(ctx context.Context, method, path string, in, out any, moderation bool) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.base+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if moderation {
		req.Header.Set(passcodeHeader, r.passcode)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
	case http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	default:
		return httpError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func httpError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	text := strings.TrimSpace(string(msg))
	if text == "" {
		text = resp.Status
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, text)
}

// progressReader reports cumulative read progress in [0,1].
type progressReader struct {
	r        io.Reader
	total    int
	read     int
	progress func(float64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.read += n
	if p.progress != nil && p.total > 0 {
		p.progress(float64(p.read) / float64(p.total))
	}
	return n, err
}

// =============================================================================
// SNAPSHOT STREAM
// =============================================================================

// streamLoop keeps one server-sent-event connection open, pushing each
// decoded snapshot into sub. Transport failures trigger reconnect with
// exponential backoff capped at 30s; a successful event resets the backoff.
func (r *Remote) streamLoop(ctx context.Context, sub *snapshotSub) {
	defer sub.Cancel()

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := r.streamOnce(ctx, sub, func() { backoff = time.Second })
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Warn("snapshot stream interrupted, reconnecting",
				"error", err,
				"backoff", backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (r *Remote) streamOnce(ctx context.Context, sub *snapshotSub, onEvent func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+"/v1/messages/stream", nil)
	if err != nil {
		return fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := r.streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return httpError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var snap []model.Message
			if err := json.Unmarshal([]byte(data.String()), &snap); err != nil {
				slog.Warn("dropping undecodable snapshot event", "error", err)
			} else {
				onEvent()
				sub.push(snap)
			}
			data.Reset()
		default:
			// Comment or field we do not use (id:, event:, retry:).
		}
	}
	return scanner.Err()
}
