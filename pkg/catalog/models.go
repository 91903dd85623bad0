// Package catalog implements the metadata catalog for the archive.
//
// The catalog is the sole source of truth about what should exist where: it
// tracks every ingested resource, every physical copy held by an adapter, the
// durability levels resources are assigned to, and optional per-object user
// metadata. The catalog owns no object bytes; those live in adapters.
package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Resource describes one ingested digital object.
//
// The UUID is the stable, opaque identifier used by all external references.
// Checksum is the SHA-1 hex digest of the canonical bytes and is authoritative:
// copies whose bytes diverge from it are the event repair detects.
type Resource struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID             string    `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	CanonicalLocator string    `gorm:"not null" json:"canonical_locator"`
	Levels           string    `gorm:"not null" json:"levels"` // comma-separated level names
	Filename         string    `gorm:"not null;size:255" json:"filename"`
	Checksum         string    `gorm:"not null;size:40" json:"checksum"`
	Description      string    `json:"description"`
	LastCheckedAt    time.Time `gorm:"column:last_checked_at" json:"last_checked_at"` // zero until first sweep
}

// TableName returns the table name for Resource.
func (Resource) TableName() string {
	return "resources"
}

// LevelNames returns the ordered set of level names assigned to the resource.
func (r *Resource) LevelNames() []string {
	if r.Levels == "" {
		return nil
	}
	parts := strings.Split(r.Levels, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// SetLevelNames serializes the given level names onto the resource.
func (r *Resource) SetLevelNames(names []string) {
	r.Levels = strings.Join(names, ",")
}

// Copy is one physical copy of a resource held by an adapter.
//
// Invariants enforced by the catalog:
//   - at most one canonical copy per resource
//   - at most one non-canonical copy per (resource, adapter) pair
//   - every copy references an existing resource
type Copy struct {
	CopyID       uint   `gorm:"primaryKey;autoIncrement;column:copy_id" json:"copy_id"`
	ResourceUUID string `gorm:"index;size:36;not null" json:"resource_uuid"`
	AdapterID    string `gorm:"size:255;not null" json:"adapter_id"`
	Locator      string `gorm:"not null" json:"locator"`
	Checksum     string `gorm:"not null;size:40" json:"checksum"`
	AdapterType  string `gorm:"size:64;not null" json:"adapter_type"`
	Canonical    bool   `gorm:"not null;default:false" json:"canonical"`
}

// TableName returns the table name for Copy.
func (Copy) TableName() string {
	return "copies"
}

// AdapterRef names one adapter inside a level definition.
type AdapterRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Level is a named durability policy. Assigning a level to a resource means
// one copy must exist in every adapter the level lists.
type Level struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"uniqueIndex;size:255;not null" json:"name"`
	Frequency int    `gorm:"not null" json:"frequency"`                // advisory check frequency, seconds
	Adapters  string `gorm:"column:adapters;not null" json:"adapters"` // JSON array of AdapterRef
	Copies    int    `gorm:"not null;default:1" json:"copies"`
}

// TableName returns the table name for Level.
func (Level) TableName() string {
	return "levels"
}

// AdapterRefs decodes the level's adapter list.
func (l *Level) AdapterRefs() ([]AdapterRef, error) {
	var refs []AdapterRef
	if l.Adapters == "" {
		return refs, nil
	}
	if err := json.Unmarshal([]byte(l.Adapters), &refs); err != nil {
		return nil, fmt.Errorf("level %q has malformed adapter list: %w", l.Name, err)
	}
	return refs, nil
}

// SetAdapterRefs encodes the adapter list onto the level.
func (l *Level) SetAdapterRefs(refs []AdapterRef) error {
	data, err := json.Marshal(refs)
	if err != nil {
		return err
	}
	l.Adapters = string(data)
	return nil
}

// ObjectSchema declares the shape of a resource's user metadata.
type ObjectSchema struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ObjectUUID string `gorm:"uniqueIndex;size:36;not null" json:"object_uuid"`
	SchemaJSON string `gorm:"column:schema_json;not null" json:"schema_json"`
}

// TableName returns the table name for ObjectSchema.
func (ObjectSchema) TableName() string {
	return "object_metadata_schema"
}

// ObjectMetadata is one user-defined key/value pair attached to a resource.
type ObjectMetadata struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ObjectUUID string `gorm:"index;size:36;not null" json:"object_uuid"`
	Key        string `gorm:"size:255;not null" json:"key"`
	Value      string `json:"value"`
}

// TableName returns the table name for ObjectMetadata.
func (ObjectMetadata) TableName() string {
	return "object_metadata"
}

// AllModels returns every model the catalog migrates.
func AllModels() []any {
	return []any{
		&Resource{},
		&Copy{},
		&Level{},
		&ObjectSchema{},
		&ObjectMetadata{},
	}
}
