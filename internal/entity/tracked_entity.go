package entity

import "time"

// Target is one (entity type, field) pair selected for scanning.
type Target struct {
	EntityType string
	Field      string
}

func (t Target) String() string {
	return t.EntityType + "." + t.Field
}

// TrackedEntity mirrors the `tracked_entity` PostgreSQL table schema.
type TrackedEntity struct {
	EntityType  string
	EntityField string
	EntityID    int64
	// LastChanged is nil until the entity has been scanned once.
	LastChanged *time.Time
	// Modified is the content modification time observed by the last
	// reconciliation. It is not persisted; it becomes LastChanged once the
	// entity's links are committed.
	Modified time.Time
}

// Target returns the (entity type, field) pair the entity belongs to.
func (e TrackedEntity) Target() Target {
	return Target{EntityType: e.EntityType, Field: e.EntityField}
}

// NeedsRescan reports whether content modified at ts has not been scanned yet.
func (e TrackedEntity) NeedsRescan(ts time.Time) bool {
	return e.LastChanged == nil || e.LastChanged.Before(ts)
}

// ParentRef points from a paragraph to the entity that owns it.
type ParentRef struct {
	EntityType string
	EntityID   int64
}
