// Package blob is the entry point to the receipt and report archive. Callers
// depend on Store; the driver implementations live under internal/infra/blob.
package blob

import (
	"bytes"
	"context"
	"duesdesk/internal/blob/core"
	"duesdesk/internal/infra/blob/fs"
	memorystore "duesdesk/internal/infra/blob/memory"
	infraS3 "duesdesk/internal/infra/blob/s3"
	"fmt"
	"io"
)

type (
	Driver           = core.Driver
	PutOptions       = core.PutOptions
	SignedURLOptions = core.SignedURLOptions
	Info             = core.Info
	Store            = core.Store
	S3Config         = infraS3.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
	ErrInvalidKey  = core.ErrInvalidKey
)

// Config selects an archive driver.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open constructs the configured store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverFilesystem, "":
		store, err := fs.New(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverS3:
		store, err := infraS3.New(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// NewMemory returns an in-memory store.
func NewMemory() Store { return memorystore.New() }

// PutBytes stores data under key.
func PutBytes(ctx context.Context, store Store, key string, data []byte, opts PutOptions) (Info, error) {
	return store.Put(ctx, key, bytes.NewReader(data), opts)
}

// ReadAll fetches an object fully into memory.
func ReadAll(ctx context.Context, store Store, key string) (Info, []byte, error) {
	info, rc, err := store.Get(ctx, key)
	if err != nil {
		return Info{}, nil, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return Info{}, nil, fmt.Errorf("read %s: %w", key, err)
	}
	return info, data, nil
}
