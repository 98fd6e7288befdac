package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/user/linkchecker-service/internal/batch"
	"github.com/user/linkchecker-service/internal/catalog"
	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/extractor"
	"github.com/user/linkchecker-service/internal/repository"
	"github.com/user/linkchecker-service/pkg/metrics"
)

// LinkExtractor writes the links of changed entities to the report.
type LinkExtractor interface {
	// ExtractBatch processes one chunk. An entity that fails is skipped and
	// keeps its old last_changed, so the next reconciliation retries it.
	ExtractBatch(ctx context.Context, op batch.Operation[entity.TrackedEntity]) (processed, failed int)
}

type linkExtractor struct {
	content   repository.ContentStore
	committer repository.ExtractionCommitter
	catalog   *catalog.Catalog
	urls      *extractor.Extractor
	log       *zap.Logger
}

// NewLinkExtractor binds the pipeline to one run's catalog.
func NewLinkExtractor(
	content repository.ContentStore,
	committer repository.ExtractionCommitter,
	cat *catalog.Catalog,
	urls *extractor.Extractor,
	log *zap.Logger,
) LinkExtractor {
	return &linkExtractor{content: content, committer: committer, catalog: cat, urls: urls, log: log}
}

func (x *linkExtractor) ExtractBatch(ctx context.Context, op batch.Operation[entity.TrackedEntity]) (int, int) {
	failed := 0
	for _, e := range op.Items {
		if err := x.extractOne(ctx, e); err != nil {
			failed++
			x.log.Warn("Link extraction failed, entity skipped",
				zap.String("entity_type", e.EntityType),
				zap.String("field", e.EntityField),
				zap.Int64("entity_id", e.EntityID),
				zap.Error(err))
		}
	}
	return len(op.Items), failed
}

func (x *linkExtractor) extractOne(ctx context.Context, e entity.TrackedEntity) error {
	target := e.Target()
	kind, ok := x.catalog.Kind(target)
	if !ok {
		return extractor.ErrUnknownKind
	}

	values, err := x.content.GetFieldValues(ctx, target, e.EntityID, kind)
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("field_values").Inc()
		return err
	}
	urls, err := x.urls.Extract(kind, values)
	if err != nil {
		return err
	}

	alias := x.catalog.Alias(e.EntityType, e.EntityID)
	records := make([]entity.LinkRecord, 0, len(urls))
	for _, u := range urls {
		records = append(records, entity.LinkRecord{
			EntityType:  e.EntityType,
			EntityField: e.EntityField,
			EntityID:    e.EntityID,
			Alias:       alias,
			URL:         u,
			Status:      entity.StatusUnchecked,
		})
	}

	if err := x.committer.CommitExtraction(ctx, e, records); err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("commit_extraction").Inc()
		return err
	}
	metrics.LinksExtractedTotal.Add(float64(len(records)))
	return nil
}
