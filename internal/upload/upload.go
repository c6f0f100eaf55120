// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

// Package upload validates and stages image attachments. Validation happens
// entirely before any network call so an oversized or unsupported file is
// rejected instantly.
package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/abdallahelabd/bioterm/internal/config"
	"github.com/abdallahelabd/bioterm/internal/model"
	"github.com/abdallahelabd/bioterm/internal/store"
)

var (
	// ErrTooLarge means the file exceeds the configured size ceiling.
	ErrTooLarge = errors.New("upload: image exceeds size limit")
	// ErrUnsupportedType means the file is not a png, jpeg or gif.
	ErrUnsupportedType = errors.New("upload: unsupported image type")
)

// allowedTypes are the image MIME types accepted as attachments.
var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
}

// Sniff returns the image MIME type of data, or ErrUnsupportedType when the
// content is not an accepted image format. Detection reads the magic bytes,
// never the file name.
func Sniff(data []byte) (string, error) {
	mime := http.DetectContentType(data)
	if !allowedTypes[mime] {
		return "", fmt.Errorf("%w: detected %s", ErrUnsupportedType, mime)
	}
	return mime, nil
}

// Validate checks data against the size ceiling and the accepted formats,
// returning the detected MIME type.
func Validate(data []byte, maxBytes int64) (string, error) {
	if int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), maxBytes)
	}
	return Sniff(data)
}

// Uploader stages validated images into the store using the configured
// strategy.
type Uploader struct {
	store store.Store
	cfg   config.UploadConfig
}

// New returns an uploader over the given store.
func New(st store.Store, cfg config.UploadConfig) *Uploader {
	return &Uploader{store: st, cfg: cfg}
}

// StageFile reads, validates and stores the image at path, returning the
// attachment to put on the outgoing message. progress may be nil.
func (u *Uploader) StageFile(ctx context.Context, path string, progress func(float64)) (*model.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return u.Stage(ctx, data, progress)
}

// Stage validates data and stores it under the configured strategy.
func (u *Uploader) Stage(ctx context.Context, data []byte, progress func(float64)) (*model.Attachment, error) {
	mime, err := Validate(data, u.cfg.MaxBytes)
	if err != nil {
		return nil, err
	}

	switch u.cfg.Strategy {
	case "url":
		url, err := u.store.UploadBlob(ctx, mime, data, progress)
		if err != nil {
			return nil, fmt.Errorf("failed to upload attachment: %w", err)
		}
		return &model.Attachment{Strategy: model.AttachmentURL, URL: url, MIME: mime}, nil

	case "inline":
		id, err := u.store.PutInlineImage(ctx, mime, data)
		if err != nil {
			return nil, fmt.Errorf("failed to store attachment: %w", err)
		}
		if progress != nil {
			progress(1)
		}
		return &model.Attachment{Strategy: model.AttachmentInline, RecordID: id, MIME: mime}, nil

	default:
		return nil, fmt.Errorf("unknown upload strategy %q", u.cfg.Strategy)
	}
}
