package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrKeyExists is returned by Put when the key is already occupied. Keys are
// never overwritten; callers regenerate and retry.
var ErrKeyExists = errors.New("blob key already exists")

// BlobStore is the byte-storage abstraction used by StorageService. Keys are
// caller-supplied and unique; the store holds no metadata.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
}
