package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/user/linkchecker-service/internal/catalog"
	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
	"github.com/user/linkchecker-service/pkg/metrics"
)

// Report is the read side of the link report. Storage errors are logged
// and answered with empty results.
type Report interface {
	Checked(ctx context.Context) []entity.LinkRecord
	Queue(ctx context.Context) []entity.LinkRecord
	Stats(ctx context.Context) entity.ReportStats
	// Fields lists the trackable fields per entity type under the current configuration.
	Fields(ctx context.Context) (map[string][]string, error)
}

type report struct {
	links  repository.LinkReportRepository
	config ConfigProvider
	log    *zap.Logger
}

// NewReport creates a new Report.
func NewReport(links repository.LinkReportRepository, config ConfigProvider, log *zap.Logger) Report {
	return &report{links: links, config: config, log: log}
}

func (r *report) Checked(ctx context.Context) []entity.LinkRecord {
	recs, err := r.links.SelectChecked(ctx)
	if err != nil {
		r.warn("select_checked", err)
		return []entity.LinkRecord{}
	}
	return recs
}

func (r *report) Queue(ctx context.Context) []entity.LinkRecord {
	recs, err := r.links.SelectUnchecked(ctx)
	if err != nil {
		r.warn("select_unchecked", err)
		return []entity.LinkRecord{}
	}
	return recs
}

func (r *report) Stats(ctx context.Context) entity.ReportStats {
	stats, err := r.links.Stats(ctx)
	if err != nil {
		r.warn("stats", err)
		return entity.ReportStats{}
	}
	return stats
}

func (r *report) Fields(ctx context.Context) (map[string][]string, error) {
	cfg, fields, err := r.config.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.New(cfg, fields, r.log).Trackable(), nil
}

func (r *report) warn(op string, err error) {
	metrics.StorageErrorsTotal.WithLabelValues(op).Inc()
	r.log.Warn("Storage error, treating as no data", zap.String("operation", op), zap.Error(err))
}
