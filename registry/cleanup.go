package registry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// CleanupReport summarizes one expired-draft sweep.
type CleanupReport struct {
	Scanned           int
	DraftsDiscarded   int
	ComponentsDeleted int
	Errors            []SubOpError
}

// CleanupExpiredDrafts sweeps drafts whose last update is older than maxAge.
// A draft on a published component is discarded and the component reverts to
// its clean published state. A never-published component is deleted outright
// since nothing else references it.
func (s *Service) CleanupExpiredDrafts(ctx context.Context, maxAge time.Duration) (*CleanupReport, error) {
	expired, err := s.index.FindExpiredDrafts(ctx, maxAge)
	if err != nil {
		return nil, wrapServiceError(err, "cleaning up drafts")
	}

	report := &CleanupReport{Scanned: len(expired)}
	for i := range expired {
		comp := &expired[i]

		if comp.LatestVersion == 0 {
			if _, err := s.Delete(ctx, comp.ID); err != nil {
				report.Errors = append(report.Errors, SubOpError{Op: comp.ID, Err: err})

				continue
			}
			report.ComponentsDeleted++

			continue
		}

		if err := s.content.DeleteDraft(ctx, comp.ID); err != nil {
			report.Errors = append(report.Errors, SubOpError{Op: comp.ID, Err: err})

			continue
		}
		if err := s.index.UpdateComponentDraft(ctx, comp.ID, false, nil); err != nil {
			report.Errors = append(report.Errors, SubOpError{Op: comp.ID, Err: err})

			continue
		}
		report.DraftsDiscarded++
	}

	log.Info().
		Int("scanned", report.Scanned).
		Int("discarded", report.DraftsDiscarded).
		Int("deleted", report.ComponentsDeleted).
		Int("errors", len(report.Errors)).
		Msg("Expired draft cleanup complete")

	return report, nil
}
