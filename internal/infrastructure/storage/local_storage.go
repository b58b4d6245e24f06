package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LocalPathPrefix is the URL path the local storage directory is served under
const LocalPathPrefix = "/uploads"

// LocalObjectStorage writes objects below a directory that the HTTP server
// exposes at LocalPathPrefix. Used when no bucket is configured.
type LocalObjectStorage struct {
	dir     string
	baseURL string
}

// NewLocalObjectStorage creates the directory if needed
func NewLocalObjectStorage(dir, baseURL string) (*LocalObjectStorage, error) {
	if dir == "" {
		return nil, errors.New("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalObjectStorage{dir: dir, baseURL: baseURL}, nil
}

// Dir returns the root directory
func (s *LocalObjectStorage) Dir() string {
	return s.dir
}

// Upload writes data to dir/key and returns its public URL
func (s *LocalObjectStorage) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	return s.PublicURL(key), nil
}

// Delete removes an object; a missing object is not an error
func (s *LocalObjectStorage) Delete(_ context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists checks if an object exists
func (s *LocalObjectStorage) Exists(_ context.Context, key string) (bool, error) {
	key, err := CleanKey(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(filepath.Join(s.dir, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// PublicURL returns baseURL + LocalPathPrefix + key
func (s *LocalObjectStorage) PublicURL(key string) string {
	return joinURL(s.baseURL+LocalPathPrefix, key)
}

var _ ObjectStorage = (*LocalObjectStorage)(nil)
