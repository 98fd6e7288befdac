package config

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/user/linkchecker-service/internal/entity"
)

// ScanFile is the YAML document describing what to scan.
type ScanFile struct {
	Scan     entity.ScanConfiguration `mapstructure:"scan"`
	FieldMap entity.FieldMap          `mapstructure:"field_map"`
}

// ScanLoader reads the scan document from disk on every call, so each run
// gets a fresh snapshot and edits apply to the next run only.
type ScanLoader struct {
	path string
}

// NewScanLoader returns a loader for the YAML document at path.
func NewScanLoader(path string) *ScanLoader {
	return &ScanLoader{path: path}
}

// Load parses and validates the scan document.
func (l *ScanLoader) Load(_ context.Context) (*ScanFile, error) {
	v := viper.New()
	v.SetConfigFile(l.path)
	v.SetConfigType("yaml")

	v.SetDefault("scan.extraction_batch_size", 500)
	v.SetDefault("scan.link_check_batch_size", 20)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", entity.ErrInvalidConfig, l.path, err)
	}

	var f ScanFile
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", entity.ErrInvalidConfig, l.path, err)
	}
	if err := f.Scan.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Snapshot reads the document once and returns the validated scan settings
// with the host field inventory.
func (l *ScanLoader) Snapshot(ctx context.Context) (entity.ScanConfiguration, entity.FieldMap, error) {
	f, err := l.Load(ctx)
	if err != nil {
		return entity.ScanConfiguration{}, nil, err
	}
	return f.Scan, f.FieldMap, nil
}
