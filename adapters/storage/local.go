// Package storage provides core.ObjectStore implementations.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Skryldev/photo-processor/core"
	apperrors "github.com/Skryldev/photo-processor/errors"
)

const metaSuffix = ".meta.json"

// Local stores objects on the local filesystem. Bucket maps to a
// subdirectory; object attributes live in a JSON side-car next to the body.
type Local struct {
	rootDir     string
	permissions os.FileMode
}

type sidecar struct {
	ContentType  string            `json:"contentType,omitempty"`
	CacheControl string            `json:"cacheControl,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewLocal creates a Local storage adapter rooted at dir.
func NewLocal(dir string, perm os.FileMode) (*Local, error) {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: mkdir %s: %w", dir, err)
	}
	return &Local{rootDir: dir, permissions: perm}, nil
}

func (l *Local) absPath(key core.StorageKey) (string, error) {
	rel := filepath.Join(filepath.Clean("/"+key.Bucket), filepath.Clean("/"+key.Path))
	if key.Path == "" || strings.HasSuffix(rel, metaSuffix) {
		return "", fmt.Errorf("invalid key %q", key.Path)
	}
	return filepath.Join(l.rootDir, rel), nil
}

func (l *Local) Put(ctx context.Context, key core.StorageKey, r io.Reader, opts core.PutOptions) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryTransfer, "local.put", err)
	}
	path, err := l.absPath(key)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryTransfer, "local.put", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CategoryTransfer, "local.put.mkdir", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, l.permissions)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryTransfer, "local.put.open", err)
	}
	if _, err = io.Copy(f, r); err != nil {
		f.Close()
		return apperrors.Wrap(apperrors.CategoryTransfer, "local.put.copy", err)
	}
	if err := f.Close(); err != nil {
		return apperrors.Wrap(apperrors.CategoryTransfer, "local.put.close", err)
	}

	raw, err := json.Marshal(sidecar{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		Metadata:     opts.Metadata,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryTransfer, "local.put.meta", err)
	}
	if err := os.WriteFile(path+metaSuffix, raw, l.permissions); err != nil {
		return apperrors.Wrap(apperrors.CategoryTransfer, "local.put.meta", err)
	}
	return nil
}

func (l *Local) Get(ctx context.Context, key core.StorageKey) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryTransfer, "local.get", err)
	}
	path, err := l.absPath(key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryTransfer, "local.get", err)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.New(apperrors.CategoryTransfer, "local.get",
				fmt.Errorf("%w: %s/%s", apperrors.ErrObjectNotFound, key.Bucket, key.Path))
		}
		return nil, apperrors.Wrap(apperrors.CategoryTransfer, "local.get.open", err)
	}
	return f, nil
}

func (l *Local) Delete(ctx context.Context, key core.StorageKey) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryTransfer, "local.delete", err)
	}
	path, err := l.absPath(key)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryTransfer, "local.delete", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CategoryTransfer, "local.delete", err)
	}
	_ = os.Remove(path + metaSuffix)
	return nil
}

func (l *Local) Stat(ctx context.Context, key core.StorageKey) (core.ObjectAttrs, error) {
	if err := ctx.Err(); err != nil {
		return core.ObjectAttrs{}, apperrors.Wrap(apperrors.CategoryTransfer, "local.stat", err)
	}
	path, err := l.absPath(key)
	if err != nil {
		return core.ObjectAttrs{}, apperrors.Wrap(apperrors.CategoryTransfer, "local.stat", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.ObjectAttrs{}, apperrors.New(apperrors.CategoryTransfer, "local.stat",
				fmt.Errorf("%w: %s/%s", apperrors.ErrObjectNotFound, key.Bucket, key.Path))
		}
		return core.ObjectAttrs{}, apperrors.Wrap(apperrors.CategoryTransfer, "local.stat", err)
	}

	attrs := core.ObjectAttrs{Size: fi.Size()}
	raw, err := os.ReadFile(path + metaSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return attrs, nil
	}
	if err != nil {
		return core.ObjectAttrs{}, apperrors.Wrap(apperrors.CategoryTransfer, "local.stat.meta", err)
	}
	var sc sidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return core.ObjectAttrs{}, apperrors.Wrap(apperrors.CategoryTransfer, "local.stat.meta", err)
	}
	attrs.ContentType = sc.ContentType
	attrs.CacheControl = sc.CacheControl
	attrs.Metadata = sc.Metadata
	return attrs, nil
}
