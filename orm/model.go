package orm

import (
	"time"

	"gorm.io/datatypes"
)

// Component status values mirrored from the content store manifests.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

type Component struct {
	ID            string `gorm:"primaryKey;size:80;not null"          json:"id"`
	CanonicalName string `gorm:"size:255;not null;index"              json:"canonicalName"`
	Status        string `gorm:"size:16;not null;index"               json:"status"`
	Kind          string `gorm:"size:32;not null;index"               json:"kind"`
	FileType      string `gorm:"size:64"                              json:"fileType,omitempty"`
	MediaType     string `gorm:"size:128"                             json:"mediaType,omitempty"`
	Description   string `gorm:"type:text"                            json:"description,omitempty"`
	LatestVersion int    `gorm:"not null;default:0"                   json:"latestVersion"`
	HasDraft      bool   `gorm:"not null;default:false;index"         json:"hasDraft"`
	Creator       string `gorm:"size:255"                             json:"creator,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`

	// Reverse relationship to versions with cascading deletion
	Versions []Version `gorm:"foreignKey:ComponentID;references:ID;constraint:OnDelete:CASCADE" json:"versions,omitempty"`
}

type Version struct {
	ID              string `gorm:"primaryKey;size:96;not null"                                    json:"id"`
	ComponentID     string `gorm:"size:80;not null;uniqueIndex:idx_component_version,priority:1"  json:"componentId"`
	Version         int    `gorm:"not null;uniqueIndex:idx_component_version,priority:2"          json:"version"`
	Semver          string `gorm:"size:32;not null"                                               json:"semver"`
	ParentVersionID string `gorm:"size:96"                                                        json:"parentVersionId,omitempty"`
	Description     string `gorm:"type:text"                                                      json:"description,omitempty"`
	ContentURL      string `gorm:"size:512;not null"                                              json:"contentUrl"`
	ManifestURL     string `gorm:"size:512;not null"                                              json:"manifestUrl"`
	Size            int64  `gorm:"default:0"                                                      json:"size"`
	MimeType        string `gorm:"size:128"                                                       json:"mimeType,omitempty"`

	Provenance   datatypes.JSON `json:"provenance,omitempty"`
	Metadata     datatypes.JSON `json:"metadata,omitempty"`
	Dependencies datatypes.JSON `json:"dependencies,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// Ref is a named pointer scoped to a canonical name, resolving to one
// artifact id (a version id, or a component id before first publish).
type Ref struct {
	CanonicalName string `gorm:"primaryKey;size:255;not null" json:"canonicalName"`
	RefName       string `gorm:"primaryKey;size:64;not null"  json:"refName"`
	ArtifactID    string `gorm:"size:96;not null"             json:"artifactId"`

	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// VersionLineage records a published-from edge between two versions.
type VersionLineage struct {
	ParentID string `gorm:"primaryKey;size:96;not null" json:"parentId"`
	ChildID  string `gorm:"primaryKey;size:96;not null" json:"childId"`
}
