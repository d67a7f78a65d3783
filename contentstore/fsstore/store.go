// Package fsstore is a filesystem-backed blob backend.
package fsstore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"component-registry/contentstore"
)

// Store implements contentstore.Blob on a local directory tree. Object keys
// map directly to file paths under the base directory.
type Store struct {
	baseDir string
}

// New creates a new filesystem-backed blob store.
func New(baseDir string) (*Store, error) {
	//nolint:gosec,mnd // Directory permissions 0755 are intentional
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{baseDir: baseDir}, nil
}

// DefaultStorageDir resolves a configured storage dir against the working
// directory, ensuring it's absolute.
func DefaultStorageDir(configured string) string {
	if configured == "" {
		homeDir, _ := os.UserHomeDir()

		return filepath.Join(homeDir, ".component-registry")
	}
	if !filepath.IsAbs(configured) {
		wd, _ := os.Getwd()

		return filepath.Join(wd, configured)
	}

	return configured
}

func (s *Store) Put(_ context.Context, key string, data []byte, _ string, _ contentstore.Cacheability) error {
	path := s.objectPath(key)

	//nolint:gosec,mnd // Directory permissions 0755 are intentional
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	//nolint:mnd // filemode constant
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}

	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	//nolint:gosec // G304: File path is constructed internally and validated
	data, err := os.ReadFile(s.objectPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, contentstore.ErrNotFound
		}

		return nil, fmt.Errorf("failed to read object: %w", err)
	}

	return data, nil
}

func (s *Store) Head(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.objectPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to stat object: %w", err)
	}

	return true, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.objectPath(key)); err != nil {
		if os.IsNotExist(err) {
			return contentstore.ErrNotFound
		}

		return fmt.Errorf("failed to remove object: %w", err)
	}

	return nil
}

// List walks the tree under prefix and returns keys in lexicographic order.
// The cursor is the last key of the previous page.
func (s *Store) List(_ context.Context, prefix, cursor string, limit int) ([]string, string, bool, error) {
	var all []string

	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}

			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			all = append(all, key)
		}

		return nil
	})
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to walk storage directory: %w", err)
	}

	sort.Strings(all)

	start := 0
	if cursor != "" {
		start = sort.SearchStrings(all, cursor)
		if start < len(all) && all[start] == cursor {
			start++
		}
	}

	rest := all[start:]
	if limit <= 0 || limit >= len(rest) {
		return rest, "", false, nil
	}

	page := rest[:limit]

	return page, page[len(page)-1], true, nil
}

func (s *Store) objectPath(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}
