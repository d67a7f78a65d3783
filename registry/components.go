package registry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"component-registry/contentstore"
	"component-registry/embedding"
	"component-registry/orm"
	"component-registry/vector"
	"component-registry/version"
)

// CreateInput describes a new component. Content becomes the initial draft.
type CreateInput struct {
	CanonicalName string
	Type          contentstore.ComponentType
	Description   string
	Content       []byte
	MimeType      string
	Creator       string
	Metadata      map[string]any
	Dependencies  []string
}

// Create writes the initial draft to the content store and mirrors the new
// component into the relational index. The new component starts in draft
// state with latest_version 0.
func (s *Service) Create(ctx context.Context, input CreateInput) (*contentstore.Manifest, error) {
	if input.CanonicalName == "" {
		return nil, newValidationError("canonical_name is required")
	}
	if len(input.Content) == 0 {
		return nil, newValidationError("content is required")
	}
	if err := input.Type.Validate(); err != nil {
		return nil, newValidationError(err.Error())
	}

	id := version.ComponentID()
	now := time.Now().UTC()
	manifest := &contentstore.Manifest{
		ID:            id,
		ComponentID:   id,
		CanonicalName: input.CanonicalName,
		Type:          input.Type,
		Description:   input.Description,
		MimeType:      input.MimeType,
		Creator:       input.Creator,
		CreatedAt:     now,
		UpdatedAt:     now,
		Metadata:      input.Metadata,
		Dependencies:  input.Dependencies,
	}

	if err := s.content.StoreDraft(ctx, id, input.Content, manifest); err != nil {
		return nil, wrapServiceError(err, "creating component")
	}

	row := &orm.Component{
		ID:            id,
		CanonicalName: input.CanonicalName,
		Status:        orm.StatusDraft,
		Kind:          string(input.Type.Kind),
		FileType:      input.Type.FileType,
		MediaType:     input.Type.MediaType,
		Description:   input.Description,
		LatestVersion: 0,
		HasDraft:      true,
		Creator:       input.Creator,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.index.CreateComponent(ctx, row); err != nil {
		log.Error().Err(err).Str("component", id).Msg("Failed to index new component")

		return manifest, newPartialFailureError("create", []SubOpError{{Op: "index.create", Err: err}})
	}

	// refs live next to the component row; before first publish "latest"
	// points at the component itself
	if err := s.index.SetRef(ctx, input.CanonicalName, version.DefaultRef, id); err != nil {
		log.Error().Err(err).Str("component", id).Msg("Failed to set latest ref")

		return manifest, newPartialFailureError("create", []SubOpError{{Op: "index.set_ref", Err: err}})
	}

	log.Info().
		Str("component", id).
		Str("name", input.CanonicalName).
		Str("kind", string(input.Type.Kind)).
		Msg("Component created")

	return manifest, nil
}

// UpdateDraftInput carries a draft overwrite. Description and Metadata are
// optional; nil leaves the previous value in place.
type UpdateDraftInput struct {
	Content      []byte
	Description  *string
	Metadata     map[string]any
	Dependencies []string
}

// UpdateDraft overwrites the draft slot of a component. For a published
// component with no draft, the latest version is first copied forward so the
// draft starts from the current published state. Concurrent draft writes are
// last-write-wins.
func (s *Service) UpdateDraft(ctx context.Context, id string, input UpdateDraftInput) (*contentstore.Manifest, error) {
	if len(input.Content) == 0 {
		return nil, newValidationError("content is required")
	}

	comp, err := s.index.GetComponent(ctx, id)
	if err != nil {
		return nil, wrapServiceError(err, "updating draft")
	}

	base, err := s.draftBase(ctx, comp)
	if err != nil {
		return nil, wrapServiceError(err, "updating draft")
	}

	manifest := base
	manifest.ID = comp.ID
	manifest.ComponentID = comp.ID
	manifest.Version = 0
	manifest.Semver = ""
	manifest.ParentVersionID = ""
	manifest.UpdatedAt = time.Now().UTC()
	if input.Description != nil {
		manifest.Description = *input.Description
	}
	if input.Metadata != nil {
		manifest.Metadata = input.Metadata
	}
	if input.Dependencies != nil {
		manifest.Dependencies = input.Dependencies
	}

	if err := s.content.StoreDraft(ctx, id, input.Content, manifest); err != nil {
		return nil, wrapServiceError(err, "updating draft")
	}

	if err := s.index.UpdateComponentDraft(ctx, id, true, input.Description); err != nil {
		return manifest, newPartialFailureError("update_draft", []SubOpError{{Op: "index.update_draft", Err: err}})
	}

	log.Debug().Str("component", id).Msg("Draft updated")

	return manifest, nil
}

// draftBase picks the manifest the new draft starts from: the existing
// draft, or the latest published version copied forward.
func (s *Service) draftBase(ctx context.Context, comp *orm.Component) (*contentstore.Manifest, error) {
	if comp.HasDraft {
		m, err := s.content.DraftManifest(ctx, comp.ID)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, contentstore.ErrNotFound) {
			return nil, err
		}
	}

	if comp.LatestVersion > 0 {
		m, err := s.content.VersionManifest(ctx, comp.ID, comp.LatestVersion)
		if err != nil {
			return nil, err
		}

		return m, nil
	}

	// NEW component whose draft objects vanished: rebuild a minimal base
	return &contentstore.Manifest{
		CanonicalName: comp.CanonicalName,
		Type: contentstore.ComponentType{
			Kind:      contentstore.Kind(comp.Kind),
			FileType:  comp.FileType,
			MediaType: comp.MediaType,
		},
		Description: comp.Description,
		Creator:     comp.Creator,
		CreatedAt:   comp.CreatedAt,
	}, nil
}

// Publish turns the current draft into the next immutable version. The
// content store write is the commit point: if it fails nothing else is
// attempted; if a derived write fails afterwards the caller gets a
// partial-failure error and a later reindex repairs the derived stores.
func (s *Service) Publish(ctx context.Context, id string, bump version.BumpKind) (*contentstore.Manifest, error) {
	comp, err := s.index.GetComponent(ctx, id)
	if err != nil {
		return nil, wrapServiceError(err, "publishing component")
	}
	if !comp.HasDraft {
		return nil, newDraftRequiredError(id)
	}

	draftManifest, err := s.content.DraftManifest(ctx, id)
	if err != nil {
		if errors.Is(err, contentstore.ErrNotFound) {
			return nil, newDraftRequiredError(id)
		}

		return nil, wrapServiceError(err, "publishing component")
	}
	draftContent, err := s.content.DraftContent(ctx, id)
	if err != nil {
		return nil, wrapServiceError(err, "publishing component")
	}

	newVersion := comp.LatestVersion + 1
	currentSemver := ""
	parentVersionID := ""
	if comp.LatestVersion > 0 {
		parentVersionID = version.VersionID(id, comp.LatestVersion)
		parent, err := s.index.GetVersion(ctx, parentVersionID)
		if err != nil {
			return nil, wrapServiceError(err, "publishing component")
		}
		currentSemver = parent.Semver
	}

	newSemver, err := version.Bump(currentSemver, bump)
	if err != nil {
		return nil, newValidationError(err.Error())
	}

	versionID := version.VersionID(id, newVersion)
	now := time.Now().UTC()
	manifest := *draftManifest
	manifest.ID = versionID
	manifest.ComponentID = id
	manifest.Version = newVersion
	manifest.Semver = newSemver
	manifest.ParentVersionID = parentVersionID
	manifest.CreatedAt = now
	manifest.UpdatedAt = time.Time{}
	manifest.Provenance = map[string]string{
		"published_by": comp.Creator,
		"bump":         string(bump),
	}

	// commit point: fatal on failure, no derived-store writes happen
	if err := s.content.StoreVersion(ctx, id, newVersion, draftContent, &manifest); err != nil {
		return nil, wrapServiceError(err, "publishing component")
	}

	row, err := versionRow(&manifest)
	if err != nil {
		return nil, wrapServiceError(err, "publishing component")
	}
	if err := s.index.IndexVersion(ctx, row); err != nil {
		var conflictErr *orm.ConflictError
		if errors.As(err, &conflictErr) {
			return nil, newVersionCollisionError(id, newVersion, err)
		}

		return &manifest, newPartialFailureError("publish", []SubOpError{{Op: "index.version", Err: err}})
	}

	var failed []SubOpError

	if err := s.index.PublishComponent(ctx, id, newVersion, &manifest.Description); err != nil {
		failed = append(failed, SubOpError{Op: "index.publish", Err: err})
	}
	if parentVersionID != "" {
		if err := s.index.AddLineage(ctx, parentVersionID, versionID); err != nil {
			failed = append(failed, SubOpError{Op: "index.lineage", Err: err})
		}
	}
	if err := s.index.SetRef(ctx, comp.CanonicalName, version.DefaultRef, versionID); err != nil {
		failed = append(failed, SubOpError{Op: "index.set_ref", Err: err})
	}

	// embedding failure must not abort a publish; the vector entry stays
	// missing until the next reindex
	if err := s.upsertVectorRecord(ctx, comp, &manifest, draftContent, newVersion); err != nil {
		if IsKind(err, KindEmbeddingUnavailable) {
			log.Warn().Err(err).Str("component", id).Msg("Embedding unavailable, skipping vector upsert")
		} else {
			failed = append(failed, SubOpError{Op: "vector.upsert", Err: err})
		}
	}

	if err := s.content.DeleteDraft(ctx, id); err != nil {
		failed = append(failed, SubOpError{Op: "content.delete_draft", Err: err})
	}

	log.Info().
		Str("component", id).
		Int("version", newVersion).
		Str("semver", newSemver).
		Int("failed_sub_ops", len(failed)).
		Msg("Component published")

	if len(failed) > 0 {
		return &manifest, newPartialFailureError("publish", failed)
	}

	return &manifest, nil
}

func (s *Service) upsertVectorRecord(
	ctx context.Context,
	comp *orm.Component,
	manifest *contentstore.Manifest,
	content []byte,
	latestVersion int,
) error {
	vectors, err := s.embedder.Embed(ctx, []string{embedding.Input(manifest.Description, content)})
	if err != nil {
		return newEmbeddingUnavailableError(err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return newEmbeddingUnavailableError(errors.New("empty embedding returned"))
	}

	return s.vectors.Upsert(ctx, vector.Record{
		ID:     comp.ID,
		Values: vectors[0],
		Metadata: vectorMetadata(
			comp.CanonicalName, manifest.Type, manifest.Description, comp.Creator, latestVersion,
		),
	})
}

func vectorMetadata(
	canonicalName string,
	t contentstore.ComponentType,
	description, creator string,
	latestVersion int,
) map[string]any {
	metadata := map[string]any{
		"canonical_name": canonicalName,
		"kind":           string(t.Kind),
		"description":    description,
		"latest_version": latestVersion,
	}
	if t.FileType != "" {
		metadata["file_type"] = t.FileType
	}
	if t.MediaType != "" {
		metadata["media_type"] = t.MediaType
	}
	if creator != "" {
		metadata["creator"] = creator
	}

	return metadata
}

func versionRow(m *contentstore.Manifest) (*orm.Version, error) {
	row := &orm.Version{
		ID:              m.ID,
		ComponentID:     m.ComponentID,
		Version:         m.Version,
		Semver:          m.Semver,
		ParentVersionID: m.ParentVersionID,
		Description:     m.Description,
		ContentURL:      m.ContentURL,
		ManifestURL:     m.ManifestURL,
		Size:            m.Size,
		MimeType:        m.MimeType,
		CreatedAt:       m.CreatedAt,
	}

	for _, pair := range []struct {
		target *datatypes.JSON
		value  any
	}{
		{&row.Provenance, m.Provenance},
		{&row.Metadata, m.Metadata},
		{&row.Dependencies, m.Dependencies},
	} {
		if pair.value == nil {
			continue
		}
		doc, err := json.Marshal(pair.value)
		if err != nil {
			return nil, err
		}
		*pair.target = datatypes.JSON(doc)
	}

	return row, nil
}

// Get returns the manifest for an artifact id: a version id yields that
// version's manifest; a component id yields the draft manifest when a draft
// exists, otherwise the latest published version's manifest.
func (s *Service) Get(ctx context.Context, id string) (*contentstore.Manifest, error) {
	if id == "" {
		return nil, newValidationError("id is required")
	}

	if v, err := s.index.GetVersion(ctx, id); err == nil {
		m, err := s.content.VersionManifest(ctx, v.ComponentID, v.Version)

		return m, wrapServiceError(err, "getting artifact")
	}

	comp, err := s.index.GetComponent(ctx, id)
	if err != nil {
		return nil, newNotFoundError("artifact "+id, err)
	}

	if comp.HasDraft {
		m, err := s.content.DraftManifest(ctx, comp.ID)

		return m, wrapServiceError(err, "getting artifact")
	}
	if comp.LatestVersion > 0 {
		m, err := s.content.VersionManifest(ctx, comp.ID, comp.LatestVersion)

		return m, wrapServiceError(err, "getting artifact")
	}

	return nil, newNotFoundError("artifact "+id, nil)
}

// GetContent returns the payload bytes behind an artifact id, with the same
// id semantics as Get.
func (s *Service) GetContent(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, newValidationError("id is required")
	}

	if v, err := s.index.GetVersion(ctx, id); err == nil {
		content, err := s.content.VersionContent(ctx, v.ComponentID, v.Version)

		return content, wrapServiceError(err, "getting artifact content")
	}

	comp, err := s.index.GetComponent(ctx, id)
	if err != nil {
		return nil, newNotFoundError("artifact "+id, err)
	}

	if comp.HasDraft {
		content, err := s.content.DraftContent(ctx, comp.ID)

		return content, wrapServiceError(err, "getting artifact content")
	}
	if comp.LatestVersion > 0 {
		content, err := s.content.VersionContent(ctx, comp.ID, comp.LatestVersion)

		return content, wrapServiceError(err, "getting artifact content")
	}

	return nil, newNotFoundError("artifact "+id, nil)
}

// List returns a filtered page of components from the relational index.
func (s *Service) List(ctx context.Context, filter orm.ListFilter) ([]orm.Component, int64, error) {
	components, total, err := s.index.ListComponents(ctx, filter)
	if err != nil {
		return nil, 0, wrapServiceError(err, "listing components")
	}

	return components, total, nil
}

// ListVersions returns a component's version rows in ascending order.
func (s *Service) ListVersions(ctx context.Context, componentID string) ([]orm.Version, error) {
	versions, err := s.index.ListVersionsByComponent(ctx, componentID)
	if err != nil {
		return nil, wrapServiceError(err, "listing versions")
	}

	return versions, nil
}

// VersionChain reconstructs the chronological version chain for a canonical
// name from parent pointers, tolerating orphans and pointer cycles.
func (s *Service) VersionChain(ctx context.Context, canonicalName string) ([]orm.Version, error) {
	versions, err := s.index.ListVersionsByName(ctx, canonicalName)
	if err != nil {
		return nil, wrapServiceError(err, "reconstructing version chain")
	}

	nodes := make([]version.ChainNode, 0, len(versions))
	byID := make(map[string]orm.Version, len(versions))
	for _, v := range versions {
		nodes = append(nodes, version.ChainNode{
			ID:       v.ID,
			ParentID: v.ParentVersionID,
			Version:  v.Version,
		})
		byID[v.ID] = v
	}

	ordered := version.Chain(nodes)
	chain := make([]orm.Version, 0, len(ordered))
	for _, id := range ordered {
		chain = append(chain, byID[id])
	}

	return chain, nil
}

// SetRef points a named ref for a canonical name at an artifact id.
func (s *Service) SetRef(ctx context.Context, canonicalName, refName, artifactID string) error {
	if refName == "" {
		return newValidationError("ref name is required")
	}

	return wrapServiceError(s.index.SetRef(ctx, canonicalName, refName, artifactID), "setting ref")
}

// DeleteRef removes a named ref.
func (s *Service) DeleteRef(ctx context.Context, canonicalName, refName string) error {
	return wrapServiceError(s.index.DeleteRef(ctx, canonicalName, refName), "deleting ref")
}

// ListRefs returns every named ref for a canonical name.
func (s *Service) ListRefs(ctx context.Context, canonicalName string) ([]orm.Ref, error) {
	refs, err := s.index.ListRefs(ctx, canonicalName)
	if err != nil {
		return nil, wrapServiceError(err, "listing refs")
	}

	return refs, nil
}

// DeleteReport lists what a component deletion removed and what failed.
type DeleteReport struct {
	ComponentID     string
	DeletedObjects  []string
	FailedSubOps    []SubOpError
	IndexDeleted    bool
	VectorDeleted   bool
	ContentComplete bool
}

// Delete removes a component everywhere: content store blobs, relational
// rows and the vector record. Failures of individual backends are collected
// into the report rather than aborting the rest.
func (s *Service) Delete(ctx context.Context, id string) (*DeleteReport, error) {
	comp, err := s.index.GetComponent(ctx, id)
	if err != nil {
		return nil, wrapServiceError(err, "deleting component")
	}

	report := &DeleteReport{ComponentID: id, ContentComplete: true, IndexDeleted: true, VectorDeleted: true}

	deleted, err := s.content.DeleteComponent(ctx, id)
	report.DeletedObjects = deleted
	if err != nil {
		report.ContentComplete = false
		report.FailedSubOps = append(report.FailedSubOps, SubOpError{Op: "content.delete", Err: err})
	}

	if err := s.index.DeleteComponent(ctx, id); err != nil {
		report.IndexDeleted = false
		report.FailedSubOps = append(report.FailedSubOps, SubOpError{Op: "index.delete", Err: err})
	}

	if err := s.vectors.Remove(ctx, id); err != nil {
		report.VectorDeleted = false
		report.FailedSubOps = append(report.FailedSubOps, SubOpError{Op: "vector.delete", Err: err})
	}

	log.Info().
		Str("component", id).
		Str("name", comp.CanonicalName).
		Int("objects_deleted", len(report.DeletedObjects)).
		Int("failed_sub_ops", len(report.FailedSubOps)).
		Msg("Component deleted")

	if len(report.FailedSubOps) > 0 {
		return report, newPartialFailureError("delete", report.FailedSubOps)
	}

	return report, nil
}
