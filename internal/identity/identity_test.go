// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package identity

import (
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/abdallahelabd/bioterm/internal/config"
	"github.com/abdallahelabd/bioterm/internal/model"
)

func testSec() config.SecurityConfig {
	return config.SecurityConfig{Passcode: "1234"}
}

func TestResolver_HandleIsStable(t *testing.T) {
	store := &MemStore{}
	r, err := NewResolver(store, testSec())
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	handle := r.Handle()
	if !strings.HasPrefix(handle, "User") {
		t.Errorf("handle = %q, want User prefix", handle)
	}

	// A second resolver over the same store sees the same handle.
	r2, err := NewResolver(store, testSec())
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if r2.Handle() != handle {
		t.Errorf("handle changed across resolvers: %q vs %q", r2.Handle(), handle)
	}
}

func TestResolver_Elevate(t *testing.T) {
	r, _ := NewResolver(&MemStore{}, testSec())

	if r.Role() != model.RoleVisitor {
		t.Fatalf("initial role = %v, want visitor", r.Role())
	}

	ok, err := r.Elevate("wrong", "")
	if err != nil {
		t.Fatalf("Elevate: %v", err)
	}
	if ok || r.Role() != model.RoleVisitor {
		t.Error("wrong passcode must not elevate")
	}

	ok, err = r.Elevate("1234", "")
	if err != nil {
		t.Fatalf("Elevate: %v", err)
	}
	if !ok || r.Role() != model.RoleAdmin {
		t.Error("correct passcode should elevate")
	}
}

func TestResolver_ElevationPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	store := NewFileStoreAt(path)

	r, err := NewResolver(store, testSec())
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if ok, _ := r.Elevate("1234", ""); !ok {
		t.Fatal("elevation failed")
	}

	// Simulated reload: new resolver over the same file.
	r2, err := NewResolver(NewFileStoreAt(path), testSec())
	if err != nil {
		t.Fatalf("NewResolver after reload: %v", err)
	}
	if r2.Role() != model.RoleAdmin {
		t.Error("admin flag should persist across reload")
	}
	if r2.Handle() != r.Handle() {
		t.Error("handle should persist across reload")
	}
}

func TestResolver_WrongPasscodeLeavesNoPersistedChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	r, _ := NewResolver(NewFileStoreAt(path), testSec())

	if ok, _ := r.Elevate("0000", ""); ok {
		t.Fatal("wrong passcode elevated")
	}

	r2, _ := NewResolver(NewFileStoreAt(path), testSec())
	if r2.Role() != model.RoleVisitor {
		t.Error("wrong passcode must not leave a persisted admin flag")
	}
}

func TestResolver_Logout(t *testing.T) {
	r, _ := NewResolver(&MemStore{}, testSec())
	r.Elevate("1234", "")
	if err := r.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if r.Role() != model.RoleVisitor {
		t.Error("role should revert to visitor on logout")
	}
}

func TestResolver_BcryptHashTakesPrecedence(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("opensesame"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	sec := config.SecurityConfig{Passcode: "1234", PasscodeHash: string(hash)}
	r, _ := NewResolver(&MemStore{}, sec)

	if ok, _ := r.Elevate("1234", ""); ok {
		t.Error("plaintext passcode must be ignored when a hash is configured")
	}
	if ok, _ := r.Elevate("opensesame", ""); !ok {
		t.Error("hash-matching passcode should elevate")
	}
}

func TestResolver_TOTPRequiredWhenConfigured(t *testing.T) {
	sec := config.SecurityConfig{Passcode: "1234", TOTPSecret: "JBSWY3DPEHPK3PXP"}
	r, _ := NewResolver(&MemStore{}, sec)

	if ok, _ := r.Elevate("1234", ""); ok {
		t.Error("elevation without a one-time code should fail when TOTP is configured")
	}
	if ok, _ := r.Elevate("1234", "000000"); ok {
		t.Error("bogus one-time code should fail")
	}
}
