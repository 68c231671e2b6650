package validator

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
	"github.com/poiesic/docvault/core"
	"github.com/poiesic/docvault/storage"
)

// DefaultMaxBytes is the default size ceiling.
const DefaultMaxBytes int64 = 10 * 1024 * 1024

// Validator checks uploads and persists accepted bytes.
type Validator struct {
	store    storage.BlobStore
	maxBytes int64
	tempDir  string
	logger   *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator) error

// WithMaxBytes sets the size ceiling.
func WithMaxBytes(n int64) Option {
	return func(v *Validator) error {
		if n <= 0 {
			return errors.New("max bytes must be positive")
		}
		v.maxBytes = n
		return nil
	}
}

// WithTempDir sets the directory for staging files. Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(v *Validator) error {
		v.tempDir = dir
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) error {
		v.logger = logger
		return nil
	}
}

// New creates a Validator that persists accepted content to store.
func New(store storage.BlobStore, opts ...Option) (*Validator, error) {
	if store == nil {
		return nil, errors.New("validator: blob store is required")
	}
	v := &Validator{
		store:    store,
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	v.logger = v.logger.With("component", "validator")
	return v, nil
}

// MaxBytes returns the size ceiling.
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

// Validate admits r under declaredName. On success the bytes are already in
// the blob store at the returned location.
func (v *Validator) Validate(ctx context.Context, r io.Reader, declaredName string) (*Accepted, error) {
	name := filepath.Base(strings.ReplaceAll(declaredName, `\`, "/"))
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	mime, ok := MimeType(ext)
	if !ok {
		return nil, reject(ErrTypeNotAllowed, "%q", ext)
	}

	tmp, err := os.CreateTemp(v.tempDir, "docvault-upload-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			v.logger.Warn("failed to remove staging file", "path", tmp.Name(), "err", err)
		}
	}()

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	size, err := io.Copy(io.MultiWriter(tmp, hasher), io.LimitReader(r, v.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading upload: %w", core.ErrValidation, err)
	}
	if size > v.maxBytes {
		return nil, reject(ErrTooLarge, "limit is %d bytes", v.maxBytes)
	}
	if size == 0 {
		return nil, reject(ErrEmpty, "%s", name)
	}

	detected, err := sniff(tmp, size, ext)
	if err != nil {
		v.logger.Debug("content sniff rejected upload", "filename", name, "ext", ext, "err", err)
		return nil, err
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	location := uuid.NewString() + "." + ext
	if err := v.store.Put(ctx, location, tmp, size, mime); err != nil {
		return nil, fmt.Errorf("%w: persisting upload: %w", core.ErrStorage, err)
	}

	accepted := &Accepted{
		Filename:        name,
		Extension:       ext,
		MimeType:        mime,
		DetectedMime:    detected,
		Size:            size,
		ContentHash:     hex.EncodeToString(hasher.Sum(nil)),
		StorageLocation: location,
	}
	v.logger.Debug("upload accepted", "filename", name, "size", size, "location", location)
	return accepted, nil
}

func reject(reason error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", core.ErrValidation, reason, fmt.Sprintf(format, args...))
}
