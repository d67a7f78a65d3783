package orm

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateComponent inserts a new component row.
func (db *DB) CreateComponent(ctx context.Context, component *Component) error {
	if component == nil || component.ID == "" {
		return &BadInputError{Reason: "component with empty id"}
	}
	if component.CanonicalName == "" {
		return &BadInputError{Reason: "component with empty canonical name"}
	}

	err := gorm.G[Component](db.dbGorm).Create(ctx, component)

	return wrapErrorWithDetails(
		err,
		"create component",
		fmt.Sprintf("id=%s, name=%s", component.ID, component.CanonicalName),
	)
}

// UpsertComponent inserts or fully replaces a component row. Reindex replays
// manifests through this method, so it must stay idempotent.
func (db *DB) UpsertComponent(ctx context.Context, component *Component) error {
	if component == nil || component.ID == "" {
		return &BadInputError{Reason: "component with empty id"}
	}

	err := db.dbGorm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(component).Error

	return wrapErrorWithDetails(
		err,
		"upsert component",
		fmt.Sprintf("id=%s", component.ID),
	)
}

// GetComponent fetches a component row by id.
func (db *DB) GetComponent(ctx context.Context, id string) (*Component, error) {
	if id == "" {
		return nil, &BadInputError{Reason: "empty component id"}
	}

	component, err := gorm.G[Component](db.dbGorm).
		Where(&Component{ID: id}).
		First(ctx)
	if err != nil {
		return nil, wrapErrorWithDetails(err, "get component", "id="+id)
	}

	return &component, nil
}

// GetComponentsByName fetches every component sharing a canonical name.
// Canonical names are not unique, so this can legitimately return more than
// one row.
func (db *DB) GetComponentsByName(ctx context.Context, canonicalName string) ([]Component, error) {
	if canonicalName == "" {
		return nil, &BadInputError{Reason: "empty canonical name"}
	}

	components, err := gorm.G[Component](db.dbGorm).
		Where(&Component{CanonicalName: canonicalName}).
		Order("created_at ASC").
		Find(ctx)
	if err != nil {
		return nil, wrapErrorWithDetails(err, "get components by name", "name="+canonicalName)
	}

	return components, nil
}

// UpdateComponentDraft records a draft write: flips has_draft and optionally
// refreshes the description. updated_at doubles as the draft age marker for
// expiry scans.
func (db *DB) UpdateComponentDraft(ctx context.Context, id string, hasDraft bool, description *string) error {
	if id == "" {
		return &BadInputError{Reason: "empty component id"}
	}

	updates := map[string]any{
		"has_draft":  hasDraft,
		"updated_at": time.Now().UTC(),
	}
	if description != nil {
		updates["description"] = *description
	}

	result := db.dbGorm.WithContext(ctx).
		Model(&Component{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return wrapErrorWithDetails(result.Error, "update component draft", "id="+id)
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Search: "component id=" + id}
	}

	return nil
}

// PublishComponent applies the publication state transition as a single
// logical update: status becomes published, latest_version advances and the
// draft flag clears.
func (db *DB) PublishComponent(ctx context.Context, id string, newVersion int, description *string) error {
	if id == "" {
		return &BadInputError{Reason: "empty component id"}
	}
	if newVersion < 1 {
		return &BadInputError{Reason: fmt.Sprintf("invalid version number %d", newVersion)}
	}

	updates := map[string]any{
		"status":         StatusPublished,
		"latest_version": newVersion,
		"has_draft":      false,
		"updated_at":     time.Now().UTC(),
	}
	if description != nil {
		updates["description"] = *description
	}

	result := db.dbGorm.WithContext(ctx).
		Model(&Component{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return wrapErrorWithDetails(
			result.Error,
			"publish component",
			fmt.Sprintf("id=%s, version=%d", id, newVersion),
		)
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Search: "component id=" + id}
	}

	return nil
}

// ListFilter narrows and pages a component listing.
type ListFilter struct {
	Status        string
	Kind          string
	CanonicalName string
	Creator       string

	Limit   int
	Offset  int
	OrderBy string // created_at | updated_at | canonical_name | latest_version
	Desc    bool
}

var orderableColumns = map[string]bool{
	"created_at":     true,
	"updated_at":     true,
	"canonical_name": true,
	"latest_version": true,
}

const defaultListLimit = 50

// ListComponents returns a filtered, ordered page of components plus the
// total match count.
func (db *DB) ListComponents(ctx context.Context, filter ListFilter) ([]Component, int64, error) {
	where := &Component{
		Status:        filter.Status,
		Kind:          filter.Kind,
		CanonicalName: filter.CanonicalName,
		Creator:       filter.Creator,
	}

	total, err := gorm.G[Component](db.dbGorm).Where(where).Count(ctx, "*")
	if err != nil {
		return nil, 0, wrapErrorWithDetails(err, "count components", fmt.Sprintf("%+v", filter))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	column := filter.OrderBy
	if !orderableColumns[column] {
		column = "created_at"
	}
	direction := "ASC"
	if filter.Desc {
		direction = "DESC"
	}

	components, err := gorm.G[Component](db.dbGorm).
		Where(where).
		Order(column + " " + direction).
		Limit(limit).
		Offset(filter.Offset).
		Find(ctx)
	if err != nil {
		return nil, 0, wrapErrorWithDetails(err, "list components", fmt.Sprintf("%+v", filter))
	}

	return components, total, nil
}

// FindExpiredDrafts returns components whose draft slot has not been touched
// for longer than maxAge.
func (db *DB) FindExpiredDrafts(ctx context.Context, maxAge time.Duration) ([]Component, error) {
	if maxAge <= 0 {
		return nil, &BadInputError{Reason: "non-positive draft max age"}
	}

	cutoff := time.Now().UTC().Add(-maxAge)

	components, err := gorm.G[Component](db.dbGorm).
		Where("has_draft = ? AND updated_at < ?", true, cutoff).
		Find(ctx)
	if err != nil {
		return nil, wrapErrorWithDetails(
			err,
			"find expired drafts",
			"cutoff="+cutoff.Format(time.RFC3339),
		)
	}

	return components, nil
}

// DeleteComponent removes a component row together with its versions (by
// cascade), its refs and its lineage edges.
func (db *DB) DeleteComponent(ctx context.Context, id string) error {
	if id == "" {
		return &BadInputError{Reason: "empty component id"}
	}

	err := db.dbGorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return db.UseTransaction(tx).deleteComponentRows(ctx, id)
	})

	//nolint:wrapcheck // Error already wrapped
	return err
}

func (db *DB) deleteComponentRows(ctx context.Context, id string) error {
	component, err := gorm.G[Component](db.dbGorm).Where(&Component{ID: id}).First(ctx)
	if err != nil {
		return wrapErrorWithDetails(err, "delete component - lookup", "id="+id)
	}

	versions, err := gorm.G[Version](db.dbGorm).Where(&Version{ComponentID: id}).Find(ctx)
	if err != nil {
		return wrapErrorWithDetails(err, "delete component - list versions", "id="+id)
	}

	ids := make([]string, 0, len(versions)+1)
	ids = append(ids, id)
	for _, v := range versions {
		ids = append(ids, v.ID)
	}

	if err := db.dbGorm.Where("canonical_name = ? AND artifact_id IN ?", component.CanonicalName, ids).
		Delete(&Ref{}).Error; err != nil {
		return wrapErrorWithDetails(err, "delete component - refs", "id="+id)
	}
	if err := db.dbGorm.Where("parent_id IN ? OR child_id IN ?", ids, ids).
		Delete(&VersionLineage{}).Error; err != nil {
		return wrapErrorWithDetails(err, "delete component - lineage", "id="+id)
	}
	if err := db.dbGorm.Delete(&Component{ID: id}).Error; err != nil {
		return wrapErrorWithDetails(err, "delete component", "id="+id)
	}

	return nil
}

// Reset truncates every index table. Reindex uses it for a from-scratch
// rebuild.
func (db *DB) Reset(ctx context.Context) error {
	for _, model := range []any{&VersionLineage{}, &Ref{}, &Version{}, &Component{}} {
		if err := db.dbGorm.WithContext(ctx).
			Where("1 = 1").
			Delete(model).Error; err != nil {
			return wrapErrorWithDetails(err, "reset index", fmt.Sprintf("%T", model))
		}
	}

	return nil
}
