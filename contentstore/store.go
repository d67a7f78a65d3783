// Package contentstore is the authoritative store of the registry: per
// component id it holds a mutable draft slot and immutable version snapshots,
// each as a manifest document plus a content payload. Everything else in the
// registry is derived from it and can be rebuilt by iterating its manifests.
package contentstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Cacheability tells a backend how an object may be cached downstream.
type Cacheability int

const (
	// CacheMutable marks draft objects, which are overwritten in place.
	CacheMutable Cacheability = iota
	// CacheImmutable marks version objects, which never change once written.
	CacheImmutable
)

// Blob is the narrow backend interface implemented by the s3, filesystem and
// memory stores.
type Blob interface {
	Put(ctx context.Context, key string, data []byte, contentType string, cache Cacheability) error
	Get(ctx context.Context, key string) ([]byte, error)
	Head(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix, cursor string, limit int) (keys []string, nextCursor string, truncated bool, err error)
}

// Kind discriminates the artifact variants stored in the registry.
type Kind string

const (
	KindCodeFile   Kind = "code-file"
	KindBundle     Kind = "bundle"
	KindMediaAsset Kind = "media-asset"
)

var ErrUnknownKind = errors.New("unknown component kind")

// ComponentType is the tagged union over artifact kinds. FileType is only
// meaningful for code files and bundles, MediaType only for media assets.
type ComponentType struct {
	Kind      Kind   `json:"kind"`
	FileType  string `json:"file_type,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// Validate checks the union exhaustively.
func (t ComponentType) Validate() error {
	switch t.Kind {
	case KindCodeFile, KindBundle:
		if t.MediaType != "" {
			return fmt.Errorf("%w: media_type set on %s", ErrUnknownKind, t.Kind)
		}

		return nil
	case KindMediaAsset:
		if t.FileType != "" {
			return fmt.Errorf("%w: file_type set on media-asset", ErrUnknownKind)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, t.Kind)
	}
}

// Scannable reports whether dependency extraction applies to this kind.
func (t ComponentType) Scannable() bool {
	return t.Kind == KindCodeFile || t.Kind == KindBundle
}

// Manifest is the document stored next to each payload. Version manifests
// have Version >= 1; draft manifests have Version 0 and a meaningful
// UpdatedAt.
type Manifest struct {
	ID              string            `json:"id"`
	ComponentID     string            `json:"component_id"`
	CanonicalName   string            `json:"canonical_name"`
	Type            ComponentType     `json:"type"`
	Description     string            `json:"description,omitempty"`
	Version         int               `json:"version,omitempty"`
	Semver          string            `json:"semver,omitempty"`
	ParentVersionID string            `json:"parent_version_id,omitempty"`
	ContentURL      string            `json:"content_url"`
	ManifestURL     string            `json:"manifest_url"`
	Size            int64             `json:"size"`
	MimeType        string            `json:"mime_type,omitempty"`
	Creator         string            `json:"creator,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at,omitempty"`
	Provenance      map[string]string `json:"provenance,omitempty"`
	Metadata        map[string]any    `json:"metadata,omitempty"`
	Dependencies    []string          `json:"dependencies,omitempty"`
}

// IsDraft reports whether the manifest describes the draft slot.
func (m *Manifest) IsDraft() bool {
	return m.Version == 0
}

const (
	componentPrefix = "components/"
	manifestObject  = "manifest.json"
	contentObject   = "content"
	manifestMime    = "application/json"
	defaultMime     = "application/octet-stream"
)

func componentKeyPrefix(id string) string {
	return componentPrefix + id + "/"
}

func draftManifestKey(id string) string {
	return componentKeyPrefix(id) + "draft/" + manifestObject
}

func draftContentKey(id string) string {
	return componentKeyPrefix(id) + "draft/" + contentObject
}

func versionManifestKey(id string, n int) string {
	return componentKeyPrefix(id) + "versions/" + strconv.Itoa(n) + "/" + manifestObject
}

func versionContentKey(id string, n int) string {
	return componentKeyPrefix(id) + "versions/" + strconv.Itoa(n) + "/" + contentObject
}

// Store layers draft/version semantics over a Blob backend.
type Store struct {
	blob Blob
}

// New creates a content store over the given backend.
func New(blob Blob) *Store {
	return &Store{blob: blob}
}

// StoreDraft writes the draft payload and manifest for a component,
// overwriting any previous draft. Draft objects are stored mutable.
func (s *Store) StoreDraft(ctx context.Context, id string, content []byte, m *Manifest) error {
	m.ContentURL = draftContentKey(id)
	m.ManifestURL = draftManifestKey(id)
	m.Size = int64(len(content))

	mime := m.MimeType
	if mime == "" {
		mime = defaultMime
	}

	if err := s.blob.Put(ctx, draftContentKey(id), content, mime, CacheMutable); err != nil {
		return fmt.Errorf("failed to store draft content: %w", err)
	}

	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode draft manifest: %w", err)
	}
	if err := s.blob.Put(ctx, draftManifestKey(id), doc, manifestMime, CacheMutable); err != nil {
		return fmt.Errorf("failed to store draft manifest: %w", err)
	}

	return nil
}

// DraftContent returns the draft payload for a component.
func (s *Store) DraftContent(ctx context.Context, id string) ([]byte, error) {
	return s.blob.Get(ctx, draftContentKey(id))
}

// DraftManifest returns the draft manifest for a component.
func (s *Store) DraftManifest(ctx context.Context, id string) (*Manifest, error) {
	return s.getManifest(ctx, draftManifestKey(id))
}

// HasDraft reports whether a draft manifest exists for a component.
func (s *Store) HasDraft(ctx context.Context, id string) (bool, error) {
	return s.blob.Head(ctx, draftManifestKey(id))
}

// StoreVersion writes an immutable version snapshot. Version objects are
// stored long-cacheable.
func (s *Store) StoreVersion(ctx context.Context, id string, versionNumber int, content []byte, m *Manifest) error {
	m.ContentURL = versionContentKey(id, versionNumber)
	m.ManifestURL = versionManifestKey(id, versionNumber)
	m.Size = int64(len(content))

	mime := m.MimeType
	if mime == "" {
		mime = defaultMime
	}

	if err := s.blob.Put(ctx, versionContentKey(id, versionNumber), content, mime, CacheImmutable); err != nil {
		return fmt.Errorf("failed to store version content: %w", err)
	}

	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode version manifest: %w", err)
	}
	if err := s.blob.Put(ctx, versionManifestKey(id, versionNumber), doc, manifestMime, CacheImmutable); err != nil {
		return fmt.Errorf("failed to store version manifest: %w", err)
	}

	return nil
}

// VersionContent returns the payload of a published version.
func (s *Store) VersionContent(ctx context.Context, id string, versionNumber int) ([]byte, error) {
	return s.blob.Get(ctx, versionContentKey(id, versionNumber))
}

// VersionManifest returns the manifest of a published version.
func (s *Store) VersionManifest(ctx context.Context, id string, versionNumber int) (*Manifest, error) {
	return s.getManifest(ctx, versionManifestKey(id, versionNumber))
}

// PutVersionManifest rewrites a version manifest in place. Only the manifest
// document changes; the content payload of a version is never touched. Used
// by dependency reindexing.
func (s *Store) PutVersionManifest(ctx context.Context, id string, versionNumber int, m *Manifest) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode version manifest: %w", err)
	}

	if err := s.blob.Put(ctx, versionManifestKey(id, versionNumber), doc, manifestMime, CacheImmutable); err != nil {
		return fmt.Errorf("failed to rewrite version manifest: %w", err)
	}

	return nil
}

// PutDraftManifest rewrites the draft manifest without touching the draft
// payload.
func (s *Store) PutDraftManifest(ctx context.Context, id string, m *Manifest) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode draft manifest: %w", err)
	}

	if err := s.blob.Put(ctx, draftManifestKey(id), doc, manifestMime, CacheMutable); err != nil {
		return fmt.Errorf("failed to rewrite draft manifest: %w", err)
	}

	return nil
}

// DeleteDraft removes the draft payload and manifest. Missing objects are
// not an error: deleting an absent draft is a no-op.
func (s *Store) DeleteDraft(ctx context.Context, id string) error {
	for _, key := range []string{draftContentKey(id), draftManifestKey(id)} {
		if err := s.blob.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to delete draft object %s: %w", key, err)
		}
	}

	return nil
}

// PartialDeleteError reports a component deletion where some objects were
// removed and others were not.
type PartialDeleteError struct {
	Deleted []string
	Failed  map[string]error
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf(
		"partial component delete: %d objects deleted, %d failed",
		len(e.Deleted), len(e.Failed),
	)
}

// DeleteComponent prefix-deletes every object stored under a component id
// (draft and all versions). A mix of successes and failures is reported as a
// *PartialDeleteError, never swallowed.
func (s *Store) DeleteComponent(ctx context.Context, id string) ([]string, error) {
	var (
		deleted []string
		failed  = map[string]error{}
		cursor  string
	)

	for {
		keys, next, truncated, err := s.blob.List(ctx, componentKeyPrefix(id), cursor, 0)
		if err != nil {
			return deleted, fmt.Errorf("failed to list component objects: %w", err)
		}

		for _, key := range keys {
			if err := s.blob.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
				failed[key] = err
				continue
			}
			deleted = append(deleted, key)
		}

		if !truncated {
			break
		}
		cursor = next
	}

	if len(failed) > 0 {
		return deleted, &PartialDeleteError{Deleted: deleted, Failed: failed}
	}

	return deleted, nil
}

// ManifestPage is one page of a full manifest scan.
type ManifestPage struct {
	Manifests  []*Manifest
	NextCursor string
	Truncated  bool
}

// IterateManifests scans every stored manifest (drafts and versions) in
// bounded pages. The cursor is opaque; pass the previous page's NextCursor
// to resume. Used by the reindex and repair procedures.
func (s *Store) IterateManifests(ctx context.Context, cursor string, pageSize int) (*ManifestPage, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	page := &ManifestPage{}
	for {
		keys, next, truncated, err := s.blob.List(ctx, componentPrefix, cursor, pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list manifests: %w", err)
		}

		for _, key := range keys {
			if !strings.HasSuffix(key, "/"+manifestObject) {
				continue
			}
			m, err := s.getManifest(ctx, key)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					// deleted between list and get
					continue
				}

				return nil, err
			}
			page.Manifests = append(page.Manifests, m)
		}

		page.NextCursor = next
		page.Truncated = truncated
		if !truncated || len(page.Manifests) > 0 {
			break
		}
		// a page of pure content objects: advance to the next page
		cursor = next
	}

	return page, nil
}

func (s *Store) getManifest(ctx context.Context, key string) (*Manifest, error) {
	doc, err := s.blob.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", key, err)
	}

	return &m, nil
}
