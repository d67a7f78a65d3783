// Package registry orchestrates the three stores of the component registry:
// the authoritative content store, the derived relational index and the
// derived vector search index. Consistency is achieved through ordering, not
// locking: the content store is written first and can always be replayed
// into the other two.
package registry

import (
	"context"
	"time"

	"component-registry/contentstore"
	"component-registry/embedding"
	"component-registry/orm"
	"component-registry/vector"
)

// ContentStore is the slice of the content store the service uses.
type ContentStore interface {
	StoreDraft(ctx context.Context, id string, content []byte, m *contentstore.Manifest) error
	DraftContent(ctx context.Context, id string) ([]byte, error)
	DraftManifest(ctx context.Context, id string) (*contentstore.Manifest, error)
	PutDraftManifest(ctx context.Context, id string, m *contentstore.Manifest) error
	StoreVersion(ctx context.Context, id string, versionNumber int, content []byte, m *contentstore.Manifest) error
	VersionContent(ctx context.Context, id string, versionNumber int) ([]byte, error)
	VersionManifest(ctx context.Context, id string, versionNumber int) (*contentstore.Manifest, error)
	PutVersionManifest(ctx context.Context, id string, versionNumber int, m *contentstore.Manifest) error
	DeleteDraft(ctx context.Context, id string) error
	DeleteComponent(ctx context.Context, id string) ([]string, error)
	IterateManifests(ctx context.Context, cursor string, pageSize int) (*contentstore.ManifestPage, error)
}

var _ ContentStore = (*contentstore.Store)(nil)

// Index is the relational index's narrow method set, implemented by orm.DB.
type Index interface {
	CreateComponent(ctx context.Context, component *orm.Component) error
	UpsertComponent(ctx context.Context, component *orm.Component) error
	GetComponent(ctx context.Context, id string) (*orm.Component, error)
	GetComponentsByName(ctx context.Context, canonicalName string) ([]orm.Component, error)
	UpdateComponentDraft(ctx context.Context, id string, hasDraft bool, description *string) error
	PublishComponent(ctx context.Context, id string, newVersion int, description *string) error
	ListComponents(ctx context.Context, filter orm.ListFilter) ([]orm.Component, int64, error)
	FindExpiredDrafts(ctx context.Context, maxAge time.Duration) ([]orm.Component, error)
	DeleteComponent(ctx context.Context, id string) error

	IndexVersion(ctx context.Context, v *orm.Version) error
	UpsertVersion(ctx context.Context, v *orm.Version) error
	GetVersion(ctx context.Context, id string) (*orm.Version, error)
	ListVersionsByComponent(ctx context.Context, componentID string) ([]orm.Version, error)
	ListVersionsByName(ctx context.Context, canonicalName string) ([]orm.Version, error)
	AddLineage(ctx context.Context, parentID, childID string) error

	SetRef(ctx context.Context, canonicalName, refName, artifactID string) error
	GetRef(ctx context.Context, canonicalName, refName string) (*orm.Ref, error)
	DeleteRef(ctx context.Context, canonicalName, refName string) error
	ListRefs(ctx context.Context, canonicalName string) ([]orm.Ref, error)
}

var _ Index = (*orm.DB)(nil)

// Service is the registry's component service.
type Service struct {
	content  ContentStore
	index    Index
	vectors  vector.Index
	embedder embedding.Embedder
}

// New creates a new service over the three stores and the embedding model.
func New(content ContentStore, index Index, vectors vector.Index, embedder embedding.Embedder) *Service {
	return &Service{
		content:  content,
		index:    index,
		vectors:  vectors,
		embedder: embedder,
	}
}
