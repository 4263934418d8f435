package media

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// localStore implements Store on the local filesystem. Objects are served by the API under /media.
type localStore struct {
	basePath string
	baseURL  string
}

// NewLocalStore creates a new localStore instance
func NewLocalStore(basePath, baseURL string) *localStore {
	return &localStore{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// generatePath converts a slash separated key to a path under basePath
func (s *localStore) generatePath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(filepath.Clean("/"+key)))
}

// Put writes the object and returns its URL
func (s *localStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	path := s.generatePath(key)

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}

	return s.baseURL + "/" + strings.TrimLeft(key, "/"), nil
}

// Delete removes a file
func (s *localStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.generatePath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// List walks the directory that holds prefix
func (s *localStore) List(_ context.Context, prefix string) ([]Object, error) {
	root := s.generatePath(prefix)
	if !strings.HasSuffix(prefix, "/") {
		root = filepath.Dir(root)
	}

	var objects []Object
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, Object{Key: key, LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return objects, nil
}
