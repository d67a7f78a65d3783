package registry

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"component-registry/orm"
	"component-registry/vector"
	"component-registry/version"
)

// Resolve turns a reference string into a concrete artifact id. Precedence:
// an exact version id wins, then an exact component id, then name@namedRef,
// then name@semverRange picking the highest matching published version. A
// bare name resolves as name@latest.
func (s *Service) Resolve(ctx context.Context, reference string) (string, error) {
	if reference == "" {
		return "", newValidationError("reference is required")
	}

	if _, err := s.index.GetVersion(ctx, reference); err == nil {
		return reference, nil
	}
	if _, err := s.index.GetComponent(ctx, reference); err == nil {
		return reference, nil
	}

	ref, err := version.ParseReference(reference)
	if err != nil {
		return "", newValidationError(err.Error())
	}

	switch ref.Kind {
	case version.SelectorNamedRef:
		row, err := s.index.GetRef(ctx, ref.Name, ref.Selector)
		if err != nil {
			var notFound *orm.NotFoundError
			if errors.As(err, &notFound) {
				return "", newNotFoundError("reference "+reference, err)
			}

			return "", wrapServiceError(err, "resolving reference")
		}

		return row.ArtifactID, nil

	case version.SelectorSemverRange:
		return s.resolveSemverRange(ctx, ref, reference)

	default:
		return "", newValidationError("unsupported reference selector")
	}
}

func (s *Service) resolveSemverRange(ctx context.Context, ref version.Reference, reference string) (string, error) {
	versions, err := s.index.ListVersionsByName(ctx, ref.Name)
	if err != nil {
		return "", wrapServiceError(err, "resolving reference")
	}
	if len(versions) == 0 {
		return "", newNotFoundError("reference "+reference, nil)
	}

	bySemver := make(map[string]orm.Version, len(versions))
	candidates := make([]string, 0, len(versions))
	for _, v := range versions {
		if v.Semver == "" {
			continue
		}
		candidates = append(candidates, v.Semver)
		// later duplicates win so re-published names keep the newest id
		bySemver[v.Semver] = v
	}

	best, ok := version.HighestMatching(ref.Selector, candidates)
	if !ok {
		return "", newNotFoundError("reference "+reference, nil)
	}

	return bySemver[best].ID, nil
}

// SearchInput tunes a semantic search over published components.
type SearchInput struct {
	Query    string
	TopK     int
	MinScore float64
	Filter   vector.Filter
}

const defaultSearchTopK = 10

// Search embeds the query text and returns the closest published components
// from the vector index, filtered server side by type facets and client side
// by minimum score.
func (s *Service) Search(ctx context.Context, input SearchInput) ([]vector.Match, error) {
	if input.Query == "" {
		return nil, newValidationError("query is required")
	}
	topK := input.TopK
	if topK <= 0 {
		topK = defaultSearchTopK
	}

	vectors, err := s.embedder.Embed(ctx, []string{input.Query})
	if err != nil {
		return nil, newEmbeddingUnavailableError(err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, newEmbeddingUnavailableError(errors.New("empty embedding returned"))
	}

	matches, err := s.vectors.Query(ctx, vectors[0], topK, input.Filter)
	if err != nil {
		return nil, wrapServiceError(err, "searching components")
	}

	if input.MinScore > 0 {
		filtered := matches[:0]
		for _, m := range matches {
			if m.Score >= input.MinScore {
				filtered = append(filtered, m)
			}
		}
		matches = filtered
	}

	log.Debug().
		Str("query", input.Query).
		Int("matches", len(matches)).
		Msg("Search executed")

	return matches, nil
}
