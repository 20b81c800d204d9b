// Package media stores uploaded files with per-file expiry. Metadata lives
// in the relational store; the bytes live behind a Storage backend, either
// a local directory or an S3-compatible bucket.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Storage persists file contents. Save returns the path the metadata row
// should reference; Remove is idempotent for paths that are already gone.
type Storage interface {
	Save(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, path string) error
}

// LocalStorage writes files under a base directory on disk.
type LocalStorage struct {
	base string
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(base string) (*LocalStorage, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{base: base}, nil
}

func (l *LocalStorage) Save(_ context.Context, filename string, r io.Reader, _ int64, _ string) (string, error) {
	name := uuid.New().String() + "_" + sanitizeFilename(filename)
	full := filepath.Join(l.base, name)

	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", full, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("write %s: %w", full, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", full, err)
	}
	return full, nil
}

func (l *LocalStorage) Remove(_ context.Context, path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// sanitizeFilename strips directory components and anything outside a
// conservative character set, so uploads cannot escape the base directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "file"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
