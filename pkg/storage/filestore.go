package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidPath is returned for object paths that escape the store root.
var ErrInvalidPath = errors.New("invalid storage path")

// ErrObjectNotFound is returned by Open when nothing is stored at the path.
var ErrObjectNotFound = errors.New("stored object not found")

// FileStore persists uploaded files under a namespace and removes them by the
// returned relative path. Delete reports whether the object is gone after the
// call; deleting an object that does not exist succeeds.
type FileStore interface {
	Store(ctx context.Context, name string, data []byte, namespace string) (string, error)
	Delete(ctx context.Context, path string) bool
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// ObjectPath builds "<namespace>/<uuid><ext>" keeping only the original
// file extension.
func ObjectPath(namespace, originalName string) (string, error) {
	ns, err := CleanPath(namespace)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return path.Join(ns, uuid.NewString()+ext), nil
}

// CleanPath normalises a relative object path and rejects traversal.
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
	if p == "" {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return "", ErrInvalidPath
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return "", ErrInvalidPath
		}
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}

// PublicURL maps a stored path to the URL clients download it from.
func PublicURL(prefix, p string) string {
	if p == "" {
		return ""
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(p, "/")
}

// PathFromURL strips the public prefix from a URL produced by PublicURL.
// Values without the prefix are treated as bare paths.
func PathFromURL(prefix, url string) string {
	if url == "" {
		return ""
	}
	trimmed := strings.TrimRight(prefix, "/") + "/"
	if idx := strings.Index(url, trimmed); idx >= 0 {
		return url[idx+len(trimmed):]
	}
	return strings.TrimLeft(url, "/")
}
