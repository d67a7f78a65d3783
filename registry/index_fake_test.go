package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"component-registry/orm"
)

// fakeIndex is an in-memory stand-in for orm.DB so service behavior can be
// tested without Postgres. Individual operations can be made to fail through
// the failures map.
type fakeIndex struct {
	mu         sync.Mutex
	components map[string]orm.Component
	versions   map[string]orm.Version
	refs       map[string]orm.Ref
	lineage    map[string]struct{}
	failures   map[string]error
}

var _ Index = (*fakeIndex)(nil)

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		components: make(map[string]orm.Component),
		versions:   make(map[string]orm.Version),
		refs:       make(map[string]orm.Ref),
		lineage:    make(map[string]struct{}),
		failures:   make(map[string]error),
	}
}

func (f *fakeIndex) failWith(op string, err error) {
	f.mu.Lock()
	f.failures[op] = err
	f.mu.Unlock()
}

func (f *fakeIndex) failure(op string) error {
	return f.failures[op]
}

func refKey(canonicalName, refName string) string {
	return canonicalName + "\x00" + refName
}

func lineageKey(parentID, childID string) string {
	return parentID + "\x00" + childID
}

func (f *fakeIndex) CreateComponent(_ context.Context, c *orm.Component) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateComponent"); err != nil {
		return err
	}
	if _, exists := f.components[c.ID]; exists {
		return &orm.ConflictError{Conflict: c.ID}
	}
	f.components[c.ID] = *c

	return nil
}

func (f *fakeIndex) UpsertComponent(_ context.Context, c *orm.Component) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("UpsertComponent"); err != nil {
		return err
	}
	f.components[c.ID] = *c

	return nil
}

func (f *fakeIndex) GetComponent(_ context.Context, id string) (*orm.Component, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, exists := f.components[id]
	if !exists {
		return nil, &orm.NotFoundError{Search: id}
	}
	cp := c

	return &cp, nil
}

func (f *fakeIndex) GetComponentsByName(_ context.Context, canonicalName string) ([]orm.Component, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []orm.Component
	for _, c := range f.components {
		if c.CanonicalName == canonicalName {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}

func (f *fakeIndex) UpdateComponentDraft(_ context.Context, id string, hasDraft bool, description *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("UpdateComponentDraft"); err != nil {
		return err
	}
	c, exists := f.components[id]
	if !exists {
		return &orm.NotFoundError{Search: id}
	}
	c.HasDraft = hasDraft
	if description != nil {
		c.Description = *description
	}
	c.UpdatedAt = time.Now().UTC()
	f.components[id] = c

	return nil
}

func (f *fakeIndex) PublishComponent(_ context.Context, id string, newVersion int, description *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("PublishComponent"); err != nil {
		return err
	}
	c, exists := f.components[id]
	if !exists {
		return &orm.NotFoundError{Search: id}
	}
	c.Status = orm.StatusPublished
	c.LatestVersion = newVersion
	c.HasDraft = false
	if description != nil {
		c.Description = *description
	}
	c.UpdatedAt = time.Now().UTC()
	f.components[id] = c

	return nil
}

func (f *fakeIndex) ListComponents(_ context.Context, filter orm.ListFilter) ([]orm.Component, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []orm.Component
	for _, c := range f.components {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && c.Kind != filter.Kind {
			continue
		}
		if filter.CanonicalName != "" && c.CanonicalName != filter.CanonicalName {
			continue
		}
		if filter.Creator != "" && c.Creator != filter.Creator {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, int64(len(out)), nil
}

func (f *fakeIndex) FindExpiredDrafts(_ context.Context, maxAge time.Duration) ([]orm.Component, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().UTC().Add(-maxAge)
	var out []orm.Component
	for _, c := range f.components {
		if c.HasDraft && c.UpdatedAt.Before(cutoff) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (f *fakeIndex) DeleteComponent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("DeleteComponent"); err != nil {
		return err
	}
	c, exists := f.components[id]
	if !exists {
		return &orm.NotFoundError{Search: id}
	}
	delete(f.components, id)
	for vid, v := range f.versions {
		if v.ComponentID != id {
			continue
		}
		delete(f.versions, vid)
		for key := range f.lineage {
			if key == lineageKey(v.ParentVersionID, vid) {
				delete(f.lineage, key)
			}
		}
	}
	for key, ref := range f.refs {
		if ref.CanonicalName == c.CanonicalName {
			delete(f.refs, key)
		}
	}

	return nil
}

func (f *fakeIndex) IndexVersion(_ context.Context, v *orm.Version) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("IndexVersion"); err != nil {
		return err
	}
	if _, exists := f.versions[v.ID]; exists {
		return &orm.ConflictError{Conflict: v.ID}
	}
	for _, existing := range f.versions {
		if existing.ComponentID == v.ComponentID && existing.Version == v.Version {
			return &orm.ConflictError{Conflict: v.ID}
		}
	}
	f.versions[v.ID] = *v

	return nil
}

func (f *fakeIndex) UpsertVersion(_ context.Context, v *orm.Version) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("UpsertVersion"); err != nil {
		return err
	}
	f.versions[v.ID] = *v

	return nil
}

func (f *fakeIndex) GetVersion(_ context.Context, id string) (*orm.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, exists := f.versions[id]
	if !exists {
		return nil, &orm.NotFoundError{Search: id}
	}
	cp := v

	return &cp, nil
}

func (f *fakeIndex) ListVersionsByComponent(_ context.Context, componentID string) ([]orm.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []orm.Version
	for _, v := range f.versions {
		if v.ComponentID == componentID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	return out, nil
}

func (f *fakeIndex) ListVersionsByName(_ context.Context, canonicalName string) ([]orm.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make(map[string]bool)
	for _, c := range f.components {
		if c.CanonicalName == canonicalName {
			ids[c.ID] = true
		}
	}
	var out []orm.Version
	for _, v := range f.versions {
		if ids[v.ComponentID] {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	return out, nil
}

func (f *fakeIndex) AddLineage(_ context.Context, parentID, childID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("AddLineage"); err != nil {
		return err
	}
	f.lineage[lineageKey(parentID, childID)] = struct{}{}

	return nil
}

func (f *fakeIndex) SetRef(_ context.Context, canonicalName, refName, artifactID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("SetRef"); err != nil {
		return err
	}
	f.refs[refKey(canonicalName, refName)] = orm.Ref{
		CanonicalName: canonicalName,
		RefName:       refName,
		ArtifactID:    artifactID,
		UpdatedAt:     time.Now().UTC(),
	}

	return nil
}

func (f *fakeIndex) GetRef(_ context.Context, canonicalName, refName string) (*orm.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, exists := f.refs[refKey(canonicalName, refName)]
	if !exists {
		return nil, &orm.NotFoundError{Search: canonicalName + "@" + refName}
	}
	cp := ref

	return &cp, nil
}

func (f *fakeIndex) DeleteRef(_ context.Context, canonicalName, refName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := refKey(canonicalName, refName)
	if _, exists := f.refs[key]; !exists {
		return &orm.NotFoundError{Search: canonicalName + "@" + refName}
	}
	delete(f.refs, key)

	return nil
}

func (f *fakeIndex) ListRefs(_ context.Context, canonicalName string) ([]orm.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []orm.Ref
	for _, ref := range f.refs {
		if ref.CanonicalName == canonicalName {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RefName < out[j].RefName })

	return out, nil
}
