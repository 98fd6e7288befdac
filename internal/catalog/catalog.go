// Package catalog resolves the scan configuration and the host field map
// into the concrete (entity type, field) targets a run scans.
package catalog

import (
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/user/linkchecker-service/internal/entity"
)

// Fields that carry host bookkeeping rather than content.
var blacklist = map[string]struct{}{
	"revision_log":         {},
	"revision_log_message": {},
	"behavior_settings":    {},
}

// Catalog is built once per run from an immutable configuration snapshot.
type Catalog struct {
	cfg    entity.ScanConfiguration
	fields entity.FieldMap
	kinds  map[entity.Target]entity.ExtractionKind
	log    *zap.Logger
}

// New returns a Catalog. Targets are resolved eagerly so Kind is a map lookup.
func New(cfg entity.ScanConfiguration, fields entity.FieldMap, log *zap.Logger) *Catalog {
	c := &Catalog{cfg: cfg, fields: fields, log: log}
	c.kinds = c.resolve()
	return c
}

func (c *Catalog) resolve() map[entity.Target]entity.ExtractionKind {
	kinds := make(map[entity.Target]entity.ExtractionKind)
	for entityType, selected := range c.cfg.DefaultCheckboxes {
		if _, ok := c.cfg.EntityType(entityType); !ok {
			c.log.Warn("Dropping checkboxes for unconfigured entity type", zap.String("entity_type", entityType))
			continue
		}
		for _, field := range selected {
			if _, banned := blacklist[field]; banned {
				continue
			}
			fieldType, ok := c.fields.Type(entityType, field)
			if !ok {
				c.log.Warn("Selected field missing from field map",
					zap.String("entity_type", entityType), zap.String("field", field))
				continue
			}
			kind, ok := c.cfg.FieldKind(fieldType)
			if !ok {
				continue
			}
			kinds[entity.Target{EntityType: entityType, Field: field}] = kind
		}
	}
	return kinds
}

// Resolve returns the targets to scan, sorted by entity type then field.
func (c *Catalog) Resolve() []entity.Target {
	out := make([]entity.Target, 0, len(c.kinds))
	for t := range c.kinds {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityType != out[j].EntityType {
			return out[i].EntityType < out[j].EntityType
		}
		return out[i].Field < out[j].Field
	})
	return out
}

// Kind returns the extraction kind of a resolved target.
func (c *Catalog) Kind(t entity.Target) (entity.ExtractionKind, bool) {
	k, ok := c.kinds[t]
	return k, ok
}

// Alias is the display path of an entity: its type's URL prefix plus the id.
func (c *Catalog) Alias(entityType string, id int64) string {
	et, _ := c.cfg.EntityType(entityType)
	return et.Alias + strconv.FormatInt(id, 10)
}

// Trackable lists every field of a configured entity type whose field type
// is registered, selected or not. Used by the report API to show options.
func (c *Catalog) Trackable() map[string][]string {
	out := make(map[string][]string)
	for _, et := range c.cfg.EntityTypes {
		for field, fieldType := range c.fields[et.MachineName] {
			if _, banned := blacklist[field]; banned {
				continue
			}
			if _, ok := c.cfg.FieldKind(fieldType); ok {
				out[et.MachineName] = append(out[et.MachineName], field)
			}
		}
		sort.Strings(out[et.MachineName])
	}
	return out
}
