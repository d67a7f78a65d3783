// Package memorystore is an in-memory blob backend. Used only for testing
// and the "memory" persistence mode.
package memorystore

import (
	"context"
	"sort"
	"sync"

	"component-registry/contentstore"
)

type object struct {
	data        []byte
	contentType string
	cache       contentstore.Cacheability
}

// Store implements contentstore.Blob with a mutex-guarded map.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new memory-backed blob store.
func New() *Store {
	return &Store{objects: make(map[string]object)}
}

func (s *Store) Put(_ context.Context, key string, data []byte, contentType string, cache contentstore.Cacheability) error {
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	s.objects[key] = object{data: cp, contentType: contentType, cache: cache}
	s.mu.Unlock()

	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	obj, exists := s.objects[key]
	s.mu.RUnlock()

	if !exists {
		return nil, contentstore.ErrNotFound
	}

	// Return a copy to prevent external modifications
	result := make([]byte, len(obj.data))
	copy(result, obj.data)

	return result, nil
}

func (s *Store) Head(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	_, exists := s.objects[key]
	s.mu.RUnlock()

	return exists, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[key]; !exists {
		return contentstore.ErrNotFound
	}

	delete(s.objects, key)

	return nil
}

// List returns keys under prefix in lexicographic order. The cursor is the
// last key of the previous page.
func (s *Store) List(_ context.Context, prefix, cursor string, limit int) ([]string, string, bool, error) {
	s.mu.RLock()
	all := make([]string, 0, len(s.objects))
	for key := range s.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			all = append(all, key)
		}
	}
	s.mu.RUnlock()

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

// Clear removes all objects (useful for testing)
func (s *Store) Clear() {
	s.mu.Lock()
	s.objects = make(map[string]object)
	s.mu.Unlock()
}

// Count returns the number of objects stored (useful for testing)
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.objects)
}

// CacheabilityOf reports how a stored object was marked (useful for testing)
func (s *Store) CacheabilityOf(key string) (contentstore.Cacheability, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, exists := s.objects[key]

	return obj.cache, exists
}
