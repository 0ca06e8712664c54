package docstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes documents below a root directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) Save(ctx context.Context, name, mimeType string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", ErrEmptyDocument
	}
	target, err := s.path(name, mimeType)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", err
	}
	if err := os.WriteFile(target, content, 0o640); err != nil {
		return "", err
	}
	return target, nil
}

func (s *LocalStore) Delete(ctx context.Context, name, mimeType string) error {
	target, err := s.path(name, mimeType)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) path(name, mimeType string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimSpace(name))
	if clean == "/" || strings.Contains(name, "..") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)) + Extension(mimeType), nil
}
