// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/abdallahelabd/bioterm/internal/model"
	"github.com/abdallahelabd/bioterm/internal/store"
)

// =============================================================================
// SQLITE STORAGE
// =============================================================================

// Storage is the durable message collection behind biosyncd.
type Storage struct {
	db *sql.DB
}

// OpenStorage opens (and if needed creates) the database at path.
func OpenStorage(path string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Storage{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Storage) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id                TEXT PRIMARY KEY,
			author            TEXT NOT NULL,
			recipient         TEXT NOT NULL DEFAULT '',
			body              TEXT NOT NULL,
			attachment        TEXT,
			created_at        INTEGER NOT NULL,
			seen_by_recipient INTEGER NOT NULL DEFAULT 0,
			seen_by_admin     INTEGER NOT NULL DEFAULT 0,
			reaction          TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);

		CREATE TABLE IF NOT EXISTS images (
			id   TEXT PRIMARY KEY,
			mime TEXT NOT NULL,
			data BLOB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS blobs (
			id   TEXT PRIMARY KEY,
			mime TEXT NOT NULL,
			data BLOB NOT NULL
		);
	`)
	return err
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Append stores msg with a fresh id and timestamp, returning the stored
// record.
func (s *Storage) Append(ctx context.Context, msg model.Message) (model.Message, error) {
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()

	var att any
	if msg.Attachment != nil {
		buf, err := json.Marshal(msg.Attachment)
		if err != nil {
			return model.Message{}, fmt.Errorf("failed to encode attachment: %w", err)
		}
		att = string(buf)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, author, recipient, body, attachment, created_at,
			seen_by_recipient, seen_by_admin, reaction)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Author, msg.Recipient, msg.Body, att,
		msg.CreatedAt.UnixNano(),
		boolInt(msg.SeenByRecipient), boolInt(msg.SeenByAdmin), msg.Reaction)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

// ApplyPatch updates one message. Seen flags are monotonic at the SQL level:
// a patch can set them but never clear them.
func (s *Storage) ApplyPatch(ctx context.Context, id string, patch model.Patch) error {
	query := "UPDATE messages SET "
	var sets []string
	var args []any

	if patch.SeenByRecipient != nil && *patch.SeenByRecipient {
		sets = append(sets, "seen_by_recipient = 1")
	}
	if patch.SeenByAdmin != nil && *patch.SeenByAdmin {
		sets = append(sets, "seen_by_admin = 1")
	}
	if patch.Reaction != nil {
		sets = append(sets, "reaction = ?")
		args = append(args, *patch.Reaction)
	}
	if len(sets) == 0 {
		// Nothing to change, but the id must still exist.
		return s.exists(ctx, id)
	}

	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += " WHERE id = ?"
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to patch message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Storage) exists(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM messages WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	return err
}

// Delete removes one message.
func (s *Storage) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteThread removes a visitor's conversation: everything they authored
// plus every reply addressed to them.
func (s *Storage) DeleteThread(ctx context.Context, handle string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM messages WHERE author = ? OR recipient = ?", handle, handle)
	if err != nil {
		return fmt.Errorf("failed to clear thread: %w", err)
	}
	return nil
}

// Snapshot returns every message ordered by creation time ascending.
func (s *Storage) Snapshot(ctx context.Context) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author, recipient, body, attachment, created_at,
			seen_by_recipient, seen_by_admin, reaction
		FROM messages ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var (
			m        model.Message
			att      sql.NullString
			created  int64
			seenRcpt int
			seenAdm  int
		)
		if err := rows.Scan(&m.ID, &m.Author, &m.Recipient, &m.Body, &att,
			&created, &seenRcpt, &seenAdm, &m.Reaction); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.CreatedAt = time.Unix(0, created).UTC()
		m.SeenByRecipient = seenRcpt != 0
		m.SeenByAdmin = seenAdm != 0
		if att.Valid && att.String != "" {
			var a model.Attachment
			if err := json.Unmarshal([]byte(att.String), &a); err == nil {
				m.Attachment = &a
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PutImage stores an inline image record.
func (s *Storage) PutImage(ctx context.Context, mime string, data []byte) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO images (id, mime, data) VALUES (?, ?, ?)", id, mime, data)
	if err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return id, nil
}

// GetImage fetches an inline image record.
func (s *Storage) GetImage(ctx context.Context, id string) (string, []byte, error) {
	var mime string
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT mime, data FROM images WHERE id = ?", id).Scan(&mime, &data)
	if err == sql.ErrNoRows {
		return "", nil, store.ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	return mime, data, nil
}

// PutBlob stores uploaded blob bytes and returns the blob id.
func (s *Storage) PutBlob(ctx context.Context, mime string, data []byte) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO blobs (id, mime, data) VALUES (?, ?, ?)", id, mime, data)
	if err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}
	return id, nil
}

// GetBlob fetches blob bytes by id.
func (s *Storage) GetBlob(ctx context.Context, id string) (string, []byte, error) {
	var mime string
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT mime, data FROM blobs WHERE id = ?", id).Scan(&mime, &data)
	if err == sql.ErrNoRows {
		return "", nil, store.ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch blob: %w", err)
	}
	return mime, data, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
