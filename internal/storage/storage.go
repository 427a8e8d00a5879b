// Package storage persists rendered documents as blobs.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

var (
	ErrObjectExists   = errors.New("object_exists")
	ErrObjectNotFound = errors.New("object_not_found")
	ErrInvalidPath    = errors.New("invalid_object_path")
)

type Object struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store is a bucket of immutable-by-default objects addressed by slash separated paths.
type Store interface {
	// Upload writes data to objectPath and returns the stored path. With overwrite false an
	// existing object is left untouched and ErrObjectExists is returned.
	Upload(ctx context.Context, objectPath string, data []byte, contentType string, overwrite bool) (string, error)
	Get(ctx context.Context, objectPath string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]Object, error)
}

// CleanPath normalizes an object path and rejects paths that escape the bucket.
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", ErrInvalidPath
		}
	}
	cleaned := path.Clean(p)
	if cleaned == "." || strings.HasSuffix(p, "/") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}
