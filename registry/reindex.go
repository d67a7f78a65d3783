package registry

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"component-registry/contentstore"
	"component-registry/orm"
	"component-registry/version"
)

// ReindexReport summarizes one page of a derived-store rebuild.
type ReindexReport struct {
	ManifestsScanned int
	ComponentsUpsert int
	VersionsUpsert   int
	VectorUpserts    int
	Errors           []SubOpError
	NextCursor       string
	Truncated        bool
}

// Reindex replays manifests from the content store into the relational and
// vector indexes. Every write is an upsert, so the procedure can run against
// live indexes, can be re-run, and can resume from the returned cursor after
// an interruption. The content store stays untouched.
func (s *Service) Reindex(ctx context.Context, cursor string, pageSize int) (*ReindexReport, error) {
	page, err := s.content.IterateManifests(ctx, cursor, pageSize)
	if err != nil {
		return nil, wrapServiceError(err, "reindexing")
	}

	report := &ReindexReport{NextCursor: page.NextCursor, Truncated: page.Truncated}
	for _, manifest := range page.Manifests {
		report.ManifestsScanned++

		if err := s.reindexManifest(ctx, manifest, report); err != nil {
			report.Errors = append(report.Errors, SubOpError{Op: manifest.ID, Err: err})
		}
	}

	log.Info().
		Int("scanned", report.ManifestsScanned).
		Int("components", report.ComponentsUpsert).
		Int("versions", report.VersionsUpsert).
		Int("vectors", report.VectorUpserts).
		Int("errors", len(report.Errors)).
		Bool("truncated", report.Truncated).
		Msg("Reindex page complete")

	return report, nil
}

func (s *Service) reindexManifest(ctx context.Context, manifest *contentstore.Manifest, report *ReindexReport) error {
	comp, err := s.mergeComponentRow(ctx, manifest)
	if err != nil {
		return err
	}
	if err := s.index.UpsertComponent(ctx, comp); err != nil {
		return err
	}
	report.ComponentsUpsert++

	if manifest.IsDraft() {
		return nil
	}

	row, err := versionRow(manifest)
	if err != nil {
		return err
	}
	if err := s.index.UpsertVersion(ctx, row); err != nil {
		return err
	}
	report.VersionsUpsert++

	if manifest.ParentVersionID != "" {
		if err := s.index.AddLineage(ctx, manifest.ParentVersionID, manifest.ID); err != nil {
			return err
		}
	}

	// only the newest version drives the ref and the vector record
	if manifest.Version < comp.LatestVersion {
		return nil
	}

	if err := s.index.SetRef(ctx, manifest.CanonicalName, version.DefaultRef, manifest.ID); err != nil {
		return err
	}

	content, err := s.content.VersionContent(ctx, manifest.ComponentID, manifest.Version)
	if err != nil {
		if errors.Is(err, contentstore.ErrNotFound) {
			log.Warn().Str("version", manifest.ID).Msg("Version manifest without content, skipping vector upsert")

			return nil
		}

		return err
	}
	if err := s.upsertVectorRecord(ctx, comp, manifest, content, manifest.Version); err != nil {
		if IsKind(err, KindEmbeddingUnavailable) {
			log.Warn().Err(err).Str("component", comp.ID).Msg("Embedding unavailable during reindex")

			return nil
		}

		return err
	}
	report.VectorUpserts++

	return nil
}

// mergeComponentRow folds one manifest into the component row the relational
// index should hold, keeping fields already learned from other manifests of
// the same component.
func (s *Service) mergeComponentRow(ctx context.Context, manifest *contentstore.Manifest) (*orm.Component, error) {
	comp := &orm.Component{
		ID:            manifest.ComponentID,
		CanonicalName: manifest.CanonicalName,
		Status:        orm.StatusDraft,
		Kind:          string(manifest.Type.Kind),
		FileType:      manifest.Type.FileType,
		MediaType:     manifest.Type.MediaType,
		Description:   manifest.Description,
		Creator:       manifest.Creator,
		CreatedAt:     manifest.CreatedAt,
		UpdatedAt:     manifest.UpdatedAt,
	}

	existing, err := s.index.GetComponent(ctx, manifest.ComponentID)
	if err != nil {
		var notFound *orm.NotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		existing = nil
	}
	if existing != nil {
		comp.LatestVersion = existing.LatestVersion
		comp.HasDraft = existing.HasDraft
		comp.Status = existing.Status
		if existing.CreatedAt.Before(comp.CreatedAt) && !existing.CreatedAt.IsZero() {
			comp.CreatedAt = existing.CreatedAt
		}
	}

	if manifest.IsDraft() {
		comp.HasDraft = true
	} else {
		comp.Status = orm.StatusPublished
		if manifest.Version > comp.LatestVersion {
			comp.LatestVersion = manifest.Version
		}
	}

	return comp, nil
}
