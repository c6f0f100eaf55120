// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abdallahelabd/bioterm/internal/model"
)

func TestRemote_AppendReturnsStoredRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var in model.Message
		json.NewDecoder(r.Body).Decode(&in)
		in.ID = "srv-1"
		in.CreatedAt = time.Now().UTC()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	rc := NewRemote(srv.URL, "")
	defer rc.Close()

	stored, err := rc.Append(context.Background(), model.Message{Author: "User1", Body: "hi"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if stored.ID != "srv-1" || stored.Body != "hi" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestRemote_ModerationCarriesPasscode(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(passcodeHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rc := NewRemote(srv.URL, "1234")
	defer rc.Close()

	if err := rc.Delete(context.Background(), "id-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gotHeader != "1234" {
		t.Errorf("passcode header = %q", gotHeader)
	}

	gotHeader = ""
	if err := rc.DeleteThread(context.Background(), "User1"); err != nil {
		t.Fatalf("DeleteThread: %v", err)
	}
	if gotHeader != "1234" {
		t.Errorf("passcode header on thread clear = %q", gotHeader)
	}
}

func TestRemote_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	rc := NewRemote(srv.URL, "")
	defer rc.Close()

	err := rc.Update(context.Background(), "nope", model.MarkSeenByAdmin())
	if err == nil {
		t.Fatal("expected error")
	}
	// ErrNotFound is wrapped with the id for context.
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRemote_SubscribeParsesEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages/stream" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)

		snap := []model.Message{{ID: "a", Author: "User1", Body: "hi", CreatedAt: time.Now().UTC()}}
		buf, _ := json.Marshal(snap)
		fmt.Fprintf(w, "data: %s\n\n", buf)
		fl.Flush()

		<-r.Context().Done()
	}))
	defer srv.Close()

	rc := NewRemote(srv.URL, "")
	defer rc.Close()

	sub, err := rc.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Cancel()

	select {
	case snap := <-sub.Snapshots():
		if len(snap) != 1 || snap[0].ID != "a" {
			t.Errorf("snapshot = %+v", snap)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for streamed snapshot")
	}
}

func TestRemote_UploadBlob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "image/png" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"url": "http://blobs/1"})
	}))
	defer srv.Close()

	rc := NewRemote(srv.URL, "")
	defer rc.Close()

	var final float64
	url, err := rc.UploadBlob(context.Background(), "image/png", make([]byte, 1024), func(f float64) { final = f })
	if err != nil {
		t.Fatalf("UploadBlob: %v", err)
	}
	if url != "http://blobs/1" {
		t.Errorf("url = %q", url)
	}
	if final != 1 {
		t.Errorf("final progress = %v", final)
	}
}
