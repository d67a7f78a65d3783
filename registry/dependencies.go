package registry

import (
	"context"
	"errors"
	"regexp"
	"sort"

	"github.com/rs/zerolog/log"

	"component-registry/contentstore"
)

// customElementTag matches custom-element usage: a lowercase tag name with
// at least one dash, terminated by whitespace, "/" or ">".
var customElementTag = regexp.MustCompile(`<([a-z][a-z0-9]*(?:-[a-z0-9]+)+)[\s/>]`)

// reservedTags are hyphenated names the HTML spec reserves; they never name
// a component.
var reservedTags = map[string]struct{}{
	"annotation-xml":   {},
	"color-profile":    {},
	"font-face":        {},
	"font-face-src":    {},
	"font-face-uri":    {},
	"font-face-format": {},
	"font-face-name":   {},
	"missing-glyph":    {},
}

// ScanTags extracts the set of custom-element tag names used in content,
// excluding reserved names and the component's own canonical name. The
// result is sorted and deduplicated.
func ScanTags(content []byte, selfName string) []string {
	seen := make(map[string]struct{})
	for _, match := range customElementTag.FindAllSubmatch(content, -1) {
		tag := string(match[1])
		if tag == selfName {
			continue
		}
		if _, reserved := reservedTags[tag]; reserved {
			continue
		}
		seen[tag] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	return tags
}

// DependencyReport classifies every component name the artifact's content
// uses. Resolved names exist in the registry and are declared in the
// manifest, Undeclared names exist in the registry but are missing from the
// declared list, Missing names match no registered component at all.
type DependencyReport struct {
	ArtifactID string
	Resolved   []string
	Undeclared []string
	Missing    []string
}

// ExtractDependencies rescans an artifact's content and classifies each used
// name against the relational index and the manifest's declared list. Only
// scannable kinds carry extractable dependencies; for the rest the report is
// empty.
func (s *Service) ExtractDependencies(ctx context.Context, id string) (*DependencyReport, error) {
	manifest, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &DependencyReport{ArtifactID: manifest.ID}
	if !manifest.Type.Scannable() {
		return report, nil
	}

	content, err := s.GetContent(ctx, id)
	if err != nil {
		return nil, err
	}

	used := ScanTags(content, manifest.CanonicalName)
	declared := make(map[string]struct{}, len(manifest.Dependencies))
	for _, name := range manifest.Dependencies {
		declared[name] = struct{}{}
	}

	for _, name := range used {
		exists, err := s.componentNameExists(ctx, name)
		if err != nil {
			return nil, wrapServiceError(err, "extracting dependencies")
		}

		_, isDeclared := declared[name]
		switch {
		case !exists:
			report.Missing = append(report.Missing, name)
		case isDeclared:
			report.Resolved = append(report.Resolved, name)
		default:
			report.Undeclared = append(report.Undeclared, name)
		}
	}

	return report, nil
}

func (s *Service) componentNameExists(ctx context.Context, canonicalName string) (bool, error) {
	rows, err := s.index.GetComponentsByName(ctx, canonicalName)
	if err != nil {
		return false, err
	}

	return len(rows) > 0, nil
}

// DependencyReindexReport summarizes a dependency reindex run.
type DependencyReindexReport struct {
	Scanned    int
	Updated    int
	Skipped    int
	Errors     []SubOpError
	NextCursor string
	Truncated  bool
}

// ReindexDependencies rescans stored content page by page and rewrites each
// manifest's dependency list from what the content actually uses. Manifests
// of non-scannable kinds are counted as skipped. Only the dependency list
// changes, so the procedure is idempotent and restartable from the returned
// cursor.
func (s *Service) ReindexDependencies(ctx context.Context, cursor string, pageSize int) (*DependencyReindexReport, error) {
	page, err := s.content.IterateManifests(ctx, cursor, pageSize)
	if err != nil {
		return nil, wrapServiceError(err, "reindexing dependencies")
	}

	report := &DependencyReindexReport{NextCursor: page.NextCursor, Truncated: page.Truncated}
	for _, manifest := range page.Manifests {
		report.Scanned++

		if err := s.rescanManifestDependencies(ctx, manifest, report); err != nil {
			report.Errors = append(report.Errors, SubOpError{Op: manifest.ID, Err: err})
		}
	}

	log.Info().
		Int("scanned", report.Scanned).
		Int("updated", report.Updated).
		Int("skipped", report.Skipped).
		Int("errors", len(report.Errors)).
		Bool("truncated", report.Truncated).
		Msg("Dependency reindex page complete")

	return report, nil
}

func (s *Service) rescanManifestDependencies(
	ctx context.Context,
	manifest *contentstore.Manifest,
	report *DependencyReindexReport,
) error {
	if !manifest.Type.Scannable() {
		report.Skipped++

		return nil
	}

	var (
		content []byte
		err     error
	)
	if manifest.IsDraft() {
		content, err = s.content.DraftContent(ctx, manifest.ComponentID)
	} else {
		content, err = s.content.VersionContent(ctx, manifest.ComponentID, manifest.Version)
	}
	if err != nil {
		// a manifest without content is repaired by the full reindex, not here
		if errors.Is(err, contentstore.ErrNotFound) {
			report.Skipped++

			return nil
		}

		return err
	}

	dependencies := ScanTags(content, manifest.CanonicalName)
	if equalStringSlices(dependencies, manifest.Dependencies) {
		report.Skipped++

		return nil
	}

	manifest.Dependencies = dependencies
	if manifest.IsDraft() {
		if err := s.content.PutDraftManifest(ctx, manifest.ComponentID, manifest); err != nil {
			return err
		}
	} else {
		if err := s.content.PutVersionManifest(ctx, manifest.ComponentID, manifest.Version, manifest); err != nil {
			return err
		}
		row, err := versionRow(manifest)
		if err != nil {
			return err
		}
		if err := s.index.UpsertVersion(ctx, row); err != nil {
			return err
		}
	}
	report.Updated++

	return nil
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
