package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"studio/internal/domain"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = fmt.Errorf("storage object: %w", domain.ErrNotFound)

// FileStore persists generated videos and composite artifacts on the local
// filesystem. Keys are slash-separated and always relative to the root.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if !filepath.IsAbs(basePath) {
		if abs, err := filepath.Abs(basePath); err == nil {
			basePath = abs
		}
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Path resolves key to an absolute filesystem path.
func (s *FileStore) Path(key string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleanKey)), nil
}

// Write persists data at key and returns the canonical key.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, fullPath, err := s.prepare(key)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return cleanKey, nil
}

// Import moves an existing local file under key. The source is removed on
// success.
func (s *FileStore) Import(ctx context.Context, key, srcPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, fullPath, err := s.prepare(key)
	if err != nil {
		return "", err
	}
	if err := os.Rename(srcPath, fullPath); err == nil {
		return cleanKey, nil
	}
	// cross-device: fall back to copy
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("storage: open source: %w", err)
	}
	defer src.Close()
	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("storage: create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(fullPath)
		return "", fmt.Errorf("storage: copy file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("storage: close file: %w", err)
	}
	_ = os.Remove(srcPath)
	return cleanKey, nil
}

// Open returns a reader for key along with its size.
func (s *FileStore) Open(key string) (*os.File, int64, error) {
	fullPath, err := s.Path(key)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("storage: open: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("storage: stat: %w", err)
	}
	return f, info.Size(), nil
}

// Read loads the full object at key.
func (s *FileStore) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, _, err := s.Open(key)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Delete removes key. Missing objects are not an error.
func (s *FileStore) Delete(key string) error {
	fullPath, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete: %w", err)
	}
	return nil
}

func (s *FileStore) prepare(key string) (string, string, error) {
	if s == nil {
		return "", "", errors.New("storage: no store configured")
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	return cleanKey, fullPath, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
