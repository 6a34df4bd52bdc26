package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalStorage persists files on disk under a base directory.
type LocalStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string, logger *zap.Logger) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalStorage{baseDir: abs, logger: logger}, nil
}

// Store writes data under namespace with a generated file name.
func (s *LocalStorage) Store(ctx context.Context, name string, data []byte, namespace string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel, err := ObjectPath(namespace, name)
	if err != nil {
		return "", err
	}
	full, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("prepare upload directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return rel, nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalStorage) Open(_ context.Context, rel string) (io.ReadCloser, error) {
	full, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(_ context.Context, rel string) bool {
	full, err := s.resolve(rel)
	if err != nil {
		s.logger.Warn("refusing to delete file", zap.String("path", rel), zap.Error(err))
		return false
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to delete file", zap.String("path", rel), zap.Error(err))
		return false
	}
	return true
}

func (s *LocalStorage) resolve(rel string) (string, error) {
	cleaned, err := CleanPath(rel)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.baseDir, filepath.FromSlash(cleaned))
	if !strings.HasPrefix(full, s.baseDir+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return full, nil
}
