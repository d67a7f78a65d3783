package orm

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IndexVersion inserts a version row. The unique (component_id, version)
// index makes a racing publish surface as a ConflictError instead of
// silently overwriting a sibling version.
func (db *DB) IndexVersion(ctx context.Context, v *Version) error {
	if v == nil || v.ID == "" || v.ComponentID == "" {
		return &BadInputError{Reason: "version with empty id or component id"}
	}
	if v.Version < 1 {
		return &BadInputError{Reason: fmt.Sprintf("invalid version number %d", v.Version)}
	}

	err := gorm.G[Version](db.dbGorm).Create(ctx, v)

	return wrapErrorWithDetails(
		err,
		"index version",
		fmt.Sprintf("id=%s, component=%s, version=%d", v.ID, v.ComponentID, v.Version),
	)
}

// UpsertVersion inserts or replaces a version row. Reindex replays version
// manifests through this method, so it must stay idempotent.
func (db *DB) UpsertVersion(ctx context.Context, v *Version) error {
	if v == nil || v.ID == "" || v.ComponentID == "" {
		return &BadInputError{Reason: "version with empty id or component id"}
	}

	err := db.dbGorm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(v).Error

	return wrapErrorWithDetails(err, "upsert version", "id="+v.ID)
}

// GetVersion fetches a version row by id.
func (db *DB) GetVersion(ctx context.Context, id string) (*Version, error) {
	if id == "" {
		return nil, &BadInputError{Reason: "empty version id"}
	}

	v, err := gorm.G[Version](db.dbGorm).Where(&Version{ID: id}).First(ctx)
	if err != nil {
		return nil, wrapErrorWithDetails(err, "get version", "id="+id)
	}

	return &v, nil
}

// ListVersionsByComponent returns a component's versions in ascending
// version order.
func (db *DB) ListVersionsByComponent(ctx context.Context, componentID string) ([]Version, error) {
	if componentID == "" {
		return nil, &BadInputError{Reason: "empty component id"}
	}

	versions, err := gorm.G[Version](db.dbGorm).
		Where(&Version{ComponentID: componentID}).
		Order("version ASC").
		Find(ctx)
	if err != nil {
		return nil, wrapErrorWithDetails(err, "list versions", "component="+componentID)
	}

	return versions, nil
}

// ListVersionsByName returns every version of every component sharing a
// canonical name. Reference resolution matches semver ranges over this set.
func (db *DB) ListVersionsByName(ctx context.Context, canonicalName string) ([]Version, error) {
	if canonicalName == "" {
		return nil, &BadInputError{Reason: "empty canonical name"}
	}

	var versions []Version
	err := db.dbGorm.WithContext(ctx).
		Joins("JOIN components ON components.id = versions.component_id").
		Where("components.canonical_name = ?", canonicalName).
		Order("versions.version ASC").
		Find(&versions).Error
	if err != nil {
		return nil, wrapErrorWithDetails(err, "list versions by name", "name="+canonicalName)
	}

	return versions, nil
}

// AddLineage records a published-from edge. Replays are tolerated.
func (db *DB) AddLineage(ctx context.Context, parentID, childID string) error {
	if parentID == "" || childID == "" {
		return &BadInputError{Reason: "lineage edge with empty endpoint"}
	}

	err := db.dbGorm.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&VersionLineage{ParentID: parentID, ChildID: childID}).Error

	return wrapErrorWithDetails(
		err,
		"add lineage edge",
		fmt.Sprintf("parent=%s, child=%s", parentID, childID),
	)
}

// ListLineageByComponent returns the lineage edges touching a component's
// versions.
func (db *DB) ListLineageByComponent(ctx context.Context, componentID string) ([]VersionLineage, error) {
	if componentID == "" {
		return nil, &BadInputError{Reason: "empty component id"}
	}

	var edges []VersionLineage
	err := db.dbGorm.WithContext(ctx).
		Joins("JOIN versions ON versions.id = version_lineages.child_id").
		Where("versions.component_id = ?", componentID).
		Find(&edges).Error
	if err != nil {
		return nil, wrapErrorWithDetails(err, "list lineage", "component="+componentID)
	}

	return edges, nil
}
