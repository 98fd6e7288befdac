package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/user/linkchecker-service/internal/batch"
	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
	"github.com/user/linkchecker-service/pkg/metrics"
)

// LinkChecker records a liveness verdict for unchecked links.
type LinkChecker interface {
	// CheckBatch checks one chunk with bounded concurrency. A failed update
	// leaves the record unchecked for the next run.
	CheckBatch(ctx context.Context, op batch.Operation[entity.LinkRecord]) (processed, failed int)
}

type linkChecker struct {
	links       repository.LinkReportRepository
	checker     repository.URLChecker
	cache       repository.CheckCacheRepository
	cacheTTL    time.Duration
	concurrency int
	group       singleflight.Group
	log         *zap.Logger
}

// NewLinkChecker creates a new LinkChecker. cache may be nil.
func NewLinkChecker(
	links repository.LinkReportRepository,
	checker repository.URLChecker,
	cache repository.CheckCacheRepository,
	cacheTTL time.Duration,
	concurrency int,
	log *zap.Logger,
) LinkChecker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &linkChecker{
		links:       links,
		checker:     checker,
		cache:       cache,
		cacheTTL:    cacheTTL,
		concurrency: concurrency,
		log:         log,
	}
}

func (c *linkChecker) CheckBatch(ctx context.Context, op batch.Operation[entity.LinkRecord]) (int, int) {
	if len(op.Items) == 0 {
		return 0, 0
	}

	jobs := make(chan entity.LinkRecord, len(op.Items))
	results := make(chan bool, len(op.Items))

	var wg sync.WaitGroup
	for range min(len(op.Items), c.concurrency) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				results <- c.checkOne(ctx, rec)
			}
		}()
	}

	for _, rec := range op.Items {
		jobs <- rec
	}
	close(jobs)
	wg.Wait()
	close(results)

	failed := 0
	for ok := range results {
		if !ok {
			failed++
		}
	}
	return len(op.Items), failed
}

func (c *linkChecker) checkOne(ctx context.Context, rec entity.LinkRecord) bool {
	result := c.check(ctx, rec.URL)
	if ctx.Err() != nil {
		// A verdict produced while shutting down is not trustworthy.
		return false
	}

	if err := c.links.UpdateStatus(ctx, rec.ID, result.Status, result.Reason); err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("update_status").Inc()
		c.log.Warn("Failed to record link status", zap.Int64("link_id", rec.ID), zap.String("url", rec.URL), zap.Error(err))
		return false
	}
	metrics.LinksCheckedTotal.WithLabelValues(result.Status.String()).Inc()
	c.log.Debug("Link checked",
		zap.Int64("link_id", rec.ID),
		zap.String("url", rec.URL),
		zap.Stringer("status", result.Status),
		zap.String("reason", result.Reason))
	return true
}

// check serves repeated URLs from the cache and collapses concurrent
// requests for the same URL into one.
func (c *linkChecker) check(ctx context.Context, url string) entity.CheckResult {
	if cached, ok := c.cached(ctx, url); ok {
		return cached
	}

	v, _, _ := c.group.Do(url, func() (any, error) {
		// A flight for url may have finished between the lookup above and Do.
		if cached, ok := c.cached(ctx, url); ok {
			return cached, nil
		}
		start := time.Now()
		result := c.checker.Check(ctx, url)
		metrics.LinkCheckDuration.Observe(time.Since(start).Seconds())

		if c.cache != nil && ctx.Err() == nil {
			if err := c.cache.Put(ctx, url, result, c.cacheTTL); err != nil {
				c.log.Warn("Check cache write failed", zap.String("url", url), zap.Error(err))
			}
		}
		return result, nil
	})
	return v.(entity.CheckResult)
}

func (c *linkChecker) cached(ctx context.Context, url string) (entity.CheckResult, bool) {
	if c.cache == nil {
		return entity.CheckResult{}, false
	}
	result, ok, err := c.cache.Get(ctx, url)
	if err != nil {
		c.log.Warn("Check cache read failed", zap.String("url", url), zap.Error(err))
		return entity.CheckResult{}, false
	}
	return result, ok
}
