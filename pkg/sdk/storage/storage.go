// Package storage provides the durable key/value backends that hold the
// persisted preferences: JSON files (the default), SQLite, and memory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

// Backend stores opaque values under string keys.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Kind names a backend implementation.
type Kind string

const (
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
	KindMemory Kind = "memory"
)

// Open returns the backend of kind rooted at location. For KindFile the
// location is a directory, for KindSQLite a database DSN or path.
func Open(ctx context.Context, kind Kind, location string) (Backend, error) {
	switch kind {
	case KindFile, "":
		return NewFile(location)
	case KindSQLite:
		return OpenSQLite(ctx, location)
	case KindMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", kind)
	}
}

// DefaultDir returns ~/.spearhead.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".spearhead"), nil
}
