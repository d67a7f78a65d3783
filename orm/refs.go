package orm

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SetRef points a named ref at an artifact id, creating or replacing it.
func (db *DB) SetRef(ctx context.Context, canonicalName, refName, artifactID string) error {
	if canonicalName == "" || refName == "" || artifactID == "" {
		return &BadInputError{
			Reason: fmt.Sprintf(
				"All parameters must be provided: name=%q, ref=%q, artifact=%q",
				canonicalName, refName, artifactID,
			),
		}
	}

	err := db.dbGorm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "canonical_name"}, {Name: "ref_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"artifact_id", "updated_at"}),
	}).Create(&Ref{
		CanonicalName: canonicalName,
		RefName:       refName,
		ArtifactID:    artifactID,
		UpdatedAt:     time.Now().UTC(),
	}).Error

	return wrapErrorWithDetails(
		err,
		"set ref",
		fmt.Sprintf("name=%s, ref=%s, artifact=%s", canonicalName, refName, artifactID),
	)
}

// GetRef resolves a named ref for a canonical name.
func (db *DB) GetRef(ctx context.Context, canonicalName, refName string) (*Ref, error) {
	if canonicalName == "" || refName == "" {
		return nil, &BadInputError{
			Reason: fmt.Sprintf(
				"All parameters must be provided: name=%q, ref=%q",
				canonicalName, refName,
			),
		}
	}

	ref, err := gorm.G[Ref](db.dbGorm).
		Where(&Ref{CanonicalName: canonicalName, RefName: refName}).
		First(ctx)
	if err != nil {
		return nil, wrapErrorWithDetails(
			err,
			"get ref",
			fmt.Sprintf("name=%s, ref=%s", canonicalName, refName),
		)
	}

	return &ref, nil
}

// DeleteRef removes a named ref.
func (db *DB) DeleteRef(ctx context.Context, canonicalName, refName string) error {
	if canonicalName == "" || refName == "" {
		return &BadInputError{
			Reason: fmt.Sprintf(
				"All parameters must be provided: name=%q, ref=%q",
				canonicalName, refName,
			),
		}
	}

	return wrapErrorWithDetails(
		db.dbGorm.WithContext(ctx).Delete(&Ref{
			CanonicalName: canonicalName,
			RefName:       refName,
		}).Error,
		"delete ref",
		fmt.Sprintf("name=%s, ref=%s", canonicalName, refName),
	)
}

// ListRefs returns every named ref for a canonical name.
func (db *DB) ListRefs(ctx context.Context, canonicalName string) ([]Ref, error) {
	if canonicalName == "" {
		return nil, &BadInputError{Reason: "empty canonical name"}
	}

	refs, err := gorm.G[Ref](db.dbGorm).
		Where(&Ref{CanonicalName: canonicalName}).
		Order("ref_name ASC").
		Find(ctx)
	if err != nil {
		return nil, wrapErrorWithDetails(err, "list refs", "name="+canonicalName)
	}

	return refs, nil
}
