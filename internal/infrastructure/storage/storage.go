// Package storage stores uploaded images in S3-compatible object storage
// or, without a bucket, on the local disk.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ObjectStorage uploads objects and resolves their public URLs
type ObjectStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
}

var errKeyRequired = errors.New("storage key is required")

// CleanKey normalizes an object key: forward slashes, no leading slash,
// no ".." segments
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	if key == "" {
		return "", errKeyRequired
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" || cleaned == "." {
		return "", errKeyRequired
	}
	return cleaned, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
