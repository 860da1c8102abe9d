package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const tmpDirName = "tmp"

// LocalDir stores blob bytes as flat files under a local directory, addressed
// by caller-supplied keys.
type LocalDir struct {
	root string
}

// NewLocalDir creates a local blob store rooted at root.
func NewLocalDir(root string) (*LocalDir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, tmpDirName), 0o755); err != nil {
		return nil, err
	}
	return &LocalDir{root: abs}, nil
}

// Put streams bytes to a temp file and links it into place under key.
// Occupied keys fail with ErrKeyExists; partial writes never become visible.
func (d *LocalDir) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if d == nil {
		return 0, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return 0, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	dst, err := d.pathFromKey(key)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Join(d.root, tmpDirName), "put-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, err
	}

	// Link refuses to replace an existing file, unlike rename.
	if err := os.Link(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("key %q: %w", key, ErrKeyExists)
		}
		return 0, err
	}
	_ = os.Remove(tmpPath)

	return n, nil
}

// Open returns a reader for the blob stored under key.
func (d *LocalDir) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if d == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.pathFromKey(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Delete removes a blob. Missing files are ignored.
func (d *LocalDir) Delete(ctx context.Context, key string) error {
	if d == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := d.pathFromKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether a blob is stored under key.
func (d *LocalDir) Exists(ctx context.Context, key string) (bool, error) {
	if d == nil {
		return false, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := d.pathFromKey(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Keys lists every stored blob key, for out-of-band reconciliation.
func (d *LocalDir) Keys(ctx context.Context) ([]string, error) {
	if d == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	keys := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		keys = append(keys, entry.Name())
	}
	return keys, nil
}

func (d *LocalDir) pathFromKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}
	// Keys are flat file names; anything that navigates is rejected.
	if key != filepath.Base(key) || key == "." || key == ".." || key == tmpDirName {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(d.root, key), nil
}
