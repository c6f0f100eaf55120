// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

// Package identity resolves the per-browser-profile equivalent of bioterm:
// a pseudonymous visitor handle generated once and cached, plus the cached
// admin elevation flag. Nothing here has a server-side representation; the
// role is a client-trusted flag unlocked by a shared passcode.
package identity

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/abdallahelabd/bioterm/internal/config"
	"github.com/abdallahelabd/bioterm/internal/model"
	"github.com/abdallahelabd/bioterm/internal/util"
)

// =============================================================================
// PERSISTED STATE
// =============================================================================

// State is the locally persisted session identity. It survives restarts and
// is never reconciled across machines.
type State struct {
	Handle string `json:"handle"`
	Admin  bool   `json:"admin"`
	// LastNotified throttles the outbound email side channel.
	LastNotified time.Time `json:"last_notified,omitempty"`
}

// Store persists identity state. Implementations must make Load after Save
// return what was saved.
type Store interface {
	Load() (State, error)
	Save(State) error
}

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps identity state as JSON under the bioterm state directory.
type FileStore struct {
	path string
}

// NewFileStore returns a store at the default location
// (~/.bioterm/identity.json).
func NewFileStore() (*FileStore, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return &FileStore{path: filepath.Join(dir, "identity.json")}, nil
}

// NewFileStoreAt returns a store at an explicit path, for tests.
func NewFileStoreAt(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted state. A missing file yields the zero State.
func (fs *FileStore) Load() (State, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("failed to read identity state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		// A corrupt file is treated as absent rather than fatal; the
		// visitor just gets a fresh handle.
		return State{}, nil
	}
	return st, nil
}

// Save writes the state atomically.
func (fs *FileStore) Save(st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode identity state: %w", err)
	}
	return util.AtomicWriteFile(fs.path, data, 0600)
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemStore is an in-memory Store for tests.
type MemStore struct {
	st State
}

func (ms *MemStore) Load() (State, error) { return ms.st, nil }
func (ms *MemStore) Save(st State) error  { ms.st = st; return nil }

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver derives and caches the session identity.
type Resolver struct {
	store Store
	sec   config.SecurityConfig
	state State
}

// NewResolver loads cached state from the store, generating and persisting a
// fresh handle when none exists yet.
func NewResolver(store Store, sec config.SecurityConfig) (*Resolver, error) {
	st, err := store.Load()
	if err != nil {
		return nil, err
	}
	if st.Handle == "" {
		st.Handle = generateHandle()
		if err := store.Save(st); err != nil {
			return nil, fmt.Errorf("failed to persist generated handle: %w", err)
		}
	}
	return &Resolver{store: store, sec: sec, state: st}, nil
}

// Handle returns the stable visitor handle for this profile.
func (r *Resolver) Handle() string {
	return r.state.Handle
}

// Role returns the cached elevation flag.
func (r *Resolver) Role() model.Role {
	if r.state.Admin {
		return model.RoleAdmin
	}
	return model.RoleVisitor
}

// Elevate compares the supplied passcode (and one-time code, when a TOTP
// secret is configured) against the shared secret. On match the elevation
// flag is set and persisted. A wrong passcode is a boolean result, not an
// error; the error return covers persistence failures only.
func (r *Resolver) Elevate(passcode, otpCode string) (bool, error) {
	if !r.checkPasscode(passcode) {
		return false, nil
	}
	if r.sec.TOTPSecret != "" && !totp.Validate(otpCode, r.sec.TOTPSecret) {
		return false, nil
	}

	r.state.Admin = true
	if err := r.store.Save(r.state); err != nil {
		return true, fmt.Errorf("failed to persist admin flag: %w", err)
	}
	return true, nil
}

// Logout clears the cached elevation flag.
func (r *Resolver) Logout() error {
	r.state.Admin = false
	if err := r.store.Save(r.state); err != nil {
		return fmt.Errorf("failed to persist logout: %w", err)
	}
	return nil
}

// LastNotified returns the cached last-notification timestamp.
func (r *Resolver) LastNotified() time.Time {
	return r.state.LastNotified
}

// RecordNotified persists the last-notification timestamp used to throttle
// the email side channel.
func (r *Resolver) RecordNotified(t time.Time) error {
	r.state.LastNotified = t
	return r.store.Save(r.state)
}

func (r *Resolver) checkPasscode(passcode string) bool {
	if r.sec.PasscodeHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(r.sec.PasscodeHash), []byte(passcode)) == nil
	}
	return r.sec.Passcode != "" && passcode == r.sec.Passcode
}

// =============================================================================
// HANDLE GENERATION
// =============================================================================

// generateHandle produces a human-readable pseudonym like "User417".
// Collisions across visitors are not checked; the suffix space matches the
// original site.
func generateHandle() string {
	var b [2]byte
	rand.Read(b[:])
	n := binary.BigEndian.Uint16(b[:]) % 1000
	return fmt.Sprintf("User%d", n)
}
