package entity

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidConfig is returned when a ScanConfiguration cannot drive a run.
var ErrInvalidConfig = errors.New("invalid scan configuration")

// ExtractionKind selects the URL extraction strategy for a field type.
type ExtractionKind string

const (
	KindPlain ExtractionKind = "plain"
	KindHTML  ExtractionKind = "html"
	KindLink  ExtractionKind = "link"
)

const (
	maxExtractionBatchSize = 10000
	maxLinkCheckBatchSize  = 1000
)

var machineName = regexp.MustCompile(`^[a-z0-9_]+$`)

// EntityTypeConfig describes one trackable entity type.
type EntityTypeConfig struct {
	MachineName string `mapstructure:"machine_name"`
	Name        string `mapstructure:"name"`
	// Alias is the path prefix entity ids are appended to, e.g. "/node/".
	Alias string `mapstructure:"url"`
}

// FieldTypeConfig maps a host field type to an extraction strategy.
type FieldTypeConfig struct {
	Name string         `mapstructure:"name"`
	Kind ExtractionKind `mapstructure:"type"`
}

// ScanConfiguration is the read-only snapshot a run is driven by.
type ScanConfiguration struct {
	EntityTypes         []EntityTypeConfig  `mapstructure:"entity_types"`
	FieldTypes          []FieldTypeConfig   `mapstructure:"field_types"`
	ExtractionBatchSize int                 `mapstructure:"extraction_batch_size"`
	LinkCheckBatchSize  int                 `mapstructure:"link_check_batch_size"`
	DefaultCheckboxes   map[string][]string `mapstructure:"default_checkboxes"`
}

// EntityType returns the configuration for the given machine name.
func (c ScanConfiguration) EntityType(machine string) (EntityTypeConfig, bool) {
	for _, et := range c.EntityTypes {
		if et.MachineName == machine {
			return et, true
		}
	}
	return EntityTypeConfig{}, false
}

// FieldKind returns the extraction kind registered for a field type.
func (c ScanConfiguration) FieldKind(fieldType string) (ExtractionKind, bool) {
	for _, ft := range c.FieldTypes {
		if ft.Name == fieldType {
			return ft.Kind, true
		}
	}
	return "", false
}

// Validate rejects configurations that would abort a run midway.
func (c ScanConfiguration) Validate() error {
	if len(c.EntityTypes) == 0 {
		return fmt.Errorf("%w: no entity types configured", ErrInvalidConfig)
	}
	if len(c.FieldTypes) == 0 {
		return fmt.Errorf("%w: no field types configured", ErrInvalidConfig)
	}
	if c.ExtractionBatchSize < 1 || c.ExtractionBatchSize > maxExtractionBatchSize {
		return fmt.Errorf("%w: extraction_batch_size must be 1-%d, got %d",
			ErrInvalidConfig, maxExtractionBatchSize, c.ExtractionBatchSize)
	}
	if c.LinkCheckBatchSize < 1 || c.LinkCheckBatchSize > maxLinkCheckBatchSize {
		return fmt.Errorf("%w: link_check_batch_size must be 1-%d, got %d",
			ErrInvalidConfig, maxLinkCheckBatchSize, c.LinkCheckBatchSize)
	}

	for _, et := range c.EntityTypes {
		if !machineName.MatchString(et.MachineName) {
			return fmt.Errorf("%w: entity type machine name %q", ErrInvalidConfig, et.MachineName)
		}
	}
	for _, ft := range c.FieldTypes {
		if ft.Name == "" {
			return fmt.Errorf("%w: field type without a name", ErrInvalidConfig)
		}
		switch ft.Kind {
		case KindPlain, KindHTML, KindLink:
		default:
			return fmt.Errorf("%w: field type %q has unknown extraction kind %q", ErrInvalidConfig, ft.Name, ft.Kind)
		}
	}
	for entityType, fields := range c.DefaultCheckboxes {
		if !machineName.MatchString(entityType) {
			return fmt.Errorf("%w: checkbox entity type %q", ErrInvalidConfig, entityType)
		}
		for _, f := range fields {
			if !machineName.MatchString(f) {
				return fmt.Errorf("%w: checkbox field %q on %q", ErrInvalidConfig, f, entityType)
			}
		}
	}
	return nil
}

// FieldMap is the host platform's field inventory: entity type -> field
// machine name -> field type.
type FieldMap map[string]map[string]string

// Type returns the field type of entityType.field.
func (m FieldMap) Type(entityType, field string) (string, bool) {
	fields, ok := m[entityType]
	if !ok {
		return "", false
	}
	t, ok := fields[field]
	return t, ok
}
