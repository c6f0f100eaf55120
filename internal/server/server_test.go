// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/abdallahelabd/bioterm/internal/config"
	"github.com/abdallahelabd/bioterm/internal/model"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	storage, err := OpenStorage(filepath.Join(t.TempDir(), "messages.db"))
	if err != nil {
		t.Fatalf("OpenStorage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	srv := New(cfg.Server, cfg.Security, storage)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postMessage(t *testing.T, ts *httptest.Server, msg model.Message) model.Message {
	t.Helper()

	buf, _ := json.Marshal(msg)
	resp, err := http.Post(ts.URL+"/v1/messages", "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST /v1/messages: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /v1/messages: status %d", resp.StatusCode)
	}

	var stored model.Message
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return stored
}

func doRequest(t *testing.T, method, url string, body []byte, headers map[string]string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func snapshot(t *testing.T, srv *Server) []model.Message {
	t.Helper()
	snap, err := srv.storage.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return snap
}

func TestAppend_AssignsServerIdentity(t *testing.T) {
	_, ts := newTestServer(t, nil)

	stored := postMessage(t, ts, model.Message{
		Author: "User7",
		Body:   "hi abdallah",
		// Clients must not be able to forge these.
		ID:          "forged",
		SeenByAdmin: true,
		Reaction:    "❤️",
	})

	if stored.ID == "" || stored.ID == "forged" {
		t.Errorf("ID = %q, want a server-assigned id", stored.ID)
	}
	if stored.CreatedAt.IsZero() {
		t.Error("CreatedAt not assigned")
	}
	if stored.SeenByAdmin || stored.SeenByRecipient || stored.Reaction != "" {
		t.Errorf("client-supplied state survived: %+v", stored)
	}
}

func TestAppend_SanitizesBody(t *testing.T) {
	_, ts := newTestServer(t, nil)

	stored := postMessage(t, ts, model.Message{
		Author: "User7",
		Body:   `hello <script>alert("x")</script><b>there</b>`,
	})

	if strings.Contains(stored.Body, "<script>") {
		t.Errorf("script tag survived sanitization: %q", stored.Body)
	}
	if !strings.Contains(stored.Body, "<b>there</b>") {
		t.Errorf("benign markup stripped: %q", stored.Body)
	}
}

func TestAppend_RequiresAuthor(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/messages",
		[]byte(`{"body":"anonymous"}`), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPatch_SeenFlagsAreMonotonic(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	stored := postMessage(t, ts, model.Message{Author: "User7", Body: "hi"})

	seen := true
	buf, _ := json.Marshal(model.Patch{SeenByAdmin: &seen})
	resp := doRequest(t, http.MethodPatch, ts.URL+"/v1/messages/"+stored.ID, buf, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PATCH status = %d, want 204", resp.StatusCode)
	}

	// A later patch trying to clear the flag must not take effect.
	unseen := false
	buf, _ = json.Marshal(model.Patch{SeenByAdmin: &unseen})
	doRequest(t, http.MethodPatch, ts.URL+"/v1/messages/"+stored.ID, buf, nil)

	snap := snapshot(t, srv)
	if len(snap) != 1 || !snap[0].SeenByAdmin {
		t.Errorf("seen flag regressed: %+v", snap)
	}
}

func TestPatch_MissingMessage(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := doRequest(t, http.MethodPatch, ts.URL+"/v1/messages/nope",
		[]byte(`{"reaction":"❤️"}`), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDelete_RequiresPasscode(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	stored := postMessage(t, ts, model.Message{Author: "User7", Body: "hi"})

	resp := doRequest(t, http.MethodDelete, ts.URL+"/v1/messages/"+stored.ID, nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unauthenticated delete: status = %d, want 403", resp.StatusCode)
	}
	if len(snapshot(t, srv)) != 1 {
		t.Fatal("message deleted without passcode")
	}

	resp = doRequest(t, http.MethodDelete, ts.URL+"/v1/messages/"+stored.ID, nil,
		map[string]string{passcodeHeader: "1234"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("authenticated delete: status = %d, want 204", resp.StatusCode)
	}
	if len(snapshot(t, srv)) != 0 {
		t.Error("message not deleted")
	}
}

func TestDelete_AcceptsHashedPasscode(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	_, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Security.Passcode = ""
		cfg.Security.PasscodeHash = string(hash)
	})
	stored := postMessage(t, ts, model.Message{Author: "User7", Body: "hi"})

	resp := doRequest(t, http.MethodDelete, ts.URL+"/v1/messages/"+stored.ID, nil,
		map[string]string{passcodeHeader: "9999"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("wrong passcode: status = %d, want 403", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodDelete, ts.URL+"/v1/messages/"+stored.ID, nil,
		map[string]string{passcodeHeader: "1234"})
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("correct passcode: status = %d, want 204", resp.StatusCode)
	}
}

func TestDeleteThread_RemovesConversation(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	postMessage(t, ts, model.Message{Author: "User7", Body: "hi"})
	postMessage(t, ts, model.Message{Author: model.AdminName, Recipient: "User7", Body: "hello"})
	postMessage(t, ts, model.Message{Author: "User8", Body: "unrelated"})

	resp := doRequest(t, http.MethodDelete, ts.URL+"/v1/threads/User7", nil,
		map[string]string{passcodeHeader: "1234"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	snap := snapshot(t, srv)
	if len(snap) != 1 || snap[0].Author != "User8" {
		t.Errorf("snapshot = %+v, want only User8's message", snap)
	}
}

func TestStream_DeliversSnapshots(t *testing.T) {
	_, ts := newTestServer(t, nil)
	postMessage(t, ts, model.Message{Author: "User7", Body: "first"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/messages/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	readSnapshot := func() []model.Message {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			var snap []model.Message
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if err := json.Unmarshal([]byte(payload), &snap); err != nil {
				t.Fatalf("bad event payload %q: %v", payload, err)
			}
			return snap
		}
		t.Fatalf("stream ended early: %v", scanner.Err())
		return nil
	}

	if snap := readSnapshot(); len(snap) != 1 || snap[0].Body != "first" {
		t.Fatalf("initial snapshot = %+v", snap)
	}

	postMessage(t, ts, model.Message{Author: "User8", Body: "second"})
	if snap := readSnapshot(); len(snap) != 2 {
		t.Fatalf("post-append snapshot has %d messages, want 2", len(snap))
	}
}

func TestImages_RoundTrip(t *testing.T) {
	_, ts := newTestServer(t, nil)

	raw := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	payload, _ := json.Marshal(imagePayload{
		MIME: "image/png",
		Data: base64.StdEncoding.EncodeToString(raw),
	})
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/images", payload, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /v1/images: status %d", resp.StatusCode)
	}
	var created map[string]string
	json.NewDecoder(resp.Body).Decode(&created)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/images/"+created["id"], nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /v1/images: status %d", resp.StatusCode)
	}
	var got imagePayload
	json.NewDecoder(resp.Body).Decode(&got)
	data, _ := base64.StdEncoding.DecodeString(got.Data)
	if got.MIME != "image/png" || !bytes.Equal(data, raw) {
		t.Errorf("round trip mismatch: mime=%q data=%v", got.MIME, data)
	}
}

func TestBlobs_RoundTrip(t *testing.T) {
	_, ts := newTestServer(t, nil)

	raw := bytes.Repeat([]byte{0xAB}, 512)
	resp, err := http.Post(ts.URL+"/v1/blobs", "image/jpeg", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /v1/blobs: status %d", resp.StatusCode)
	}
	var created map[string]string
	json.NewDecoder(resp.Body).Decode(&created)
	if !strings.HasPrefix(created["url"], "/v1/blobs/") {
		t.Fatalf("url = %q", created["url"])
	}

	got := doRequest(t, http.MethodGet, ts.URL+created["url"], nil, nil)
	if got.StatusCode != http.StatusOK {
		t.Fatalf("GET blob: status %d", got.StatusCode)
	}
	if ct := got.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body bytes.Buffer
	body.ReadFrom(got.Body)
	if !bytes.Equal(body.Bytes(), raw) {
		t.Error("blob bytes mismatch")
	}
}

func TestRateLimit_RejectsWriteFloods(t *testing.T) {
	_, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.RatePerMinute = 3
	})

	var limited bool
	for i := 0; i < 10; i++ {
		body := []byte(fmt.Sprintf(`{"author":"User7","body":"msg %d"}`, i))
		resp := doRequest(t, http.MethodPost, ts.URL+"/v1/messages", body,
			map[string]string{"Content-Type": "application/json"})
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("flood of writes never rate limited")
	}

	// Reads stay exempt even for a throttled client.
	resp := doRequest(t, http.MethodGet, ts.URL+"/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health while throttled: status %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp := doRequest(t, http.MethodGet, ts.URL+"/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("status body = %+v", body)
	}
}
