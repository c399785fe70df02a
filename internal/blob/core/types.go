// Package core defines the archive storage contract shared by the blob
// drivers. Receipts and report exports are written once and never modified.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Driver identifies a concrete archive backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local directory (default)
	DriverS3         Driver = "s3"     // S3 / MinIO compatible bucket
	DriverMemory     Driver = "memory" // process memory (tests)
)

// Sentinel errors shared by every driver.
var (
	ErrUnsupported = errors.New("blob: unsupported operation")
	ErrNotFound    = errors.New("blob: not found")
	ErrExists      = errors.New("blob: already exists")
	ErrInvalidKey  = errors.New("blob: invalid key")
)

// PutOptions carries optional attributes stored alongside the object.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions configures a download link.
type SignedURLOptions struct {
	Expiry time.Duration // default 15m
}

// Info describes a stored object.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"sizeBytes"`
	ContentType  string            `json:"contentType,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"lastModified"`
}

// Store is a write-once object archive. Put fails with ErrExists when the key
// is taken; Get and Head fail with ErrNotFound for a missing key. List
// returns objects in ascending key order.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

// CleanKey normalises a slash separated key and rejects empty, absolute and
// traversing keys.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.HasPrefix(key, "\\") {
		return "", fmt.Errorf("%w: absolute key %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(strings.ReplaceAll(key, "\\", "/"), "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: key %q escapes the archive", ErrInvalidKey, key)
		}
	}
	return path.Clean(strings.ReplaceAll(key, "\\", "/")), nil
}

// CloneMetadata copies m; nil stays nil.
func CloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
