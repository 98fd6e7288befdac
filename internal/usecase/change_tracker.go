package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
	"github.com/user/linkchecker-service/pkg/metrics"
)

const (
	paragraphType  = "paragraph"
	maxParentDepth = 32
)

// ReconcileStats counts tracked entities by outcome.
type ReconcileStats struct {
	New       int
	Changed   int
	Unchanged int
	Skipped   int
	Pruned    int64
}

// ChangeTracker decides which tracked entities need their links re-extracted.
type ChangeTracker interface {
	// Reconcile syncs the tracked table with the configured targets and the
	// live content, and returns the entities to rescan with Modified set.
	// Links of changed entities are already deleted when it returns. Only
	// context cancellation is returned as an error; everything else is
	// logged and skipped.
	Reconcile(ctx context.Context, targets []entity.Target) ([]entity.TrackedEntity, ReconcileStats, error)
}

type entityRef struct {
	entityType string
	id         int64
}

// sweep collects, across all targets of one reconciliation, which entities
// were forgotten and which are still live somewhere.
type sweep struct {
	forgotten map[entityRef]struct{}
	live      map[entityRef]struct{}
	// unknown holds entity types whose live ids could not be read.
	unknown map[string]struct{}
}

func newSweep() *sweep {
	return &sweep{
		forgotten: make(map[entityRef]struct{}),
		live:      make(map[entityRef]struct{}),
		unknown:   make(map[string]struct{}),
	}
}

type changeTracker struct {
	tracked repository.TrackedEntityRepository
	links   repository.LinkReportRepository
	content repository.ContentStore
	log     *zap.Logger
}

// NewChangeTracker creates a new ChangeTracker.
func NewChangeTracker(
	tracked repository.TrackedEntityRepository,
	links repository.LinkReportRepository,
	content repository.ContentStore,
	log *zap.Logger,
) ChangeTracker {
	return &changeTracker{tracked: tracked, links: links, content: content, log: log}
}

func (c *changeTracker) Reconcile(ctx context.Context, targets []entity.Target) ([]entity.TrackedEntity, ReconcileStats, error) {
	var stats ReconcileStats

	if n, err := c.tracked.PruneUnconfigured(ctx, targets); err != nil {
		c.storageWarn("prune_tracked", err)
	} else {
		stats.Pruned += n
	}
	if _, err := c.links.PruneUnconfigured(ctx, targets); err != nil {
		c.storageWarn("prune_links", err)
	}

	sw := newSweep()
	var rescan []entity.TrackedEntity
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return rescan, stats, err
		}
		found, err := c.reconcileTarget(ctx, target, sw, &stats)
		if err != nil {
			return rescan, stats, err
		}
		rescan = append(rescan, found...)
	}
	c.dropDeletedEntities(ctx, sw)

	metrics.EntitiesReconciledTotal.WithLabelValues("new").Add(float64(stats.New))
	metrics.EntitiesReconciledTotal.WithLabelValues("changed").Add(float64(stats.Changed))
	metrics.EntitiesReconciledTotal.WithLabelValues("unchanged").Add(float64(stats.Unchanged))
	metrics.EntitiesReconciledTotal.WithLabelValues("skipped").Add(float64(stats.Skipped))
	metrics.EntitiesReconciledTotal.WithLabelValues("pruned").Add(float64(stats.Pruned))

	c.log.Info("Reconciliation finished",
		zap.Int("targets", len(targets)),
		zap.Int("new", stats.New),
		zap.Int("changed", stats.Changed),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("skipped", stats.Skipped),
		zap.Int64("pruned", stats.Pruned))
	return rescan, stats, nil
}

func (c *changeTracker) reconcileTarget(ctx context.Context, target entity.Target, sw *sweep, stats *ReconcileStats) ([]entity.TrackedEntity, error) {
	live, err := c.content.QueryIDsMatching(ctx, target)
	if err != nil {
		sw.unknown[target.EntityType] = struct{}{}
		c.storageWarn("query_ids", err, zap.Stringer("target", target))
		return nil, nil
	}
	liveSet := make(map[int64]struct{}, len(live))
	for _, id := range live {
		liveSet[id] = struct{}{}
		sw.live[entityRef{target.EntityType, id}] = struct{}{}
	}

	existing, err := c.tracked.ListByTarget(ctx, target)
	if err != nil {
		c.storageWarn("list_tracked", err, zap.Stringer("target", target))
		return nil, nil
	}

	known := make(map[int64]struct{}, len(existing))
	var current []entity.TrackedEntity
	for _, e := range existing {
		known[e.EntityID] = struct{}{}
		if _, ok := liveSet[e.EntityID]; ok {
			current = append(current, e)
			continue
		}
		// The entity no longer carries the field, or no longer exists.
		if err := c.forget(ctx, target, e.EntityID); err != nil {
			c.storageWarn("prune_deleted", err, zap.Stringer("target", target), zap.Int64("entity_id", e.EntityID))
			continue
		}
		sw.forgotten[entityRef{target.EntityType, e.EntityID}] = struct{}{}
		stats.Pruned++
	}

	var added []int64
	for _, id := range live {
		if _, ok := known[id]; !ok {
			added = append(added, id)
		}
	}
	if len(added) > 0 {
		if _, err := c.tracked.InsertNew(ctx, target, added); err != nil {
			c.storageWarn("insert_tracked", err, zap.Stringer("target", target))
		} else {
			for _, id := range added {
				current = append(current, entity.TrackedEntity{EntityType: target.EntityType, EntityField: target.Field, EntityID: id})
			}
		}
	}

	var rescan []entity.TrackedEntity
	for _, e := range current {
		if err := ctx.Err(); err != nil {
			return rescan, err
		}
		ts, err := c.modifiedTimestamp(ctx, e.EntityType, e.EntityID)
		if err != nil {
			c.log.Warn("Skipping entity without a modification time",
				zap.Stringer("target", target), zap.Int64("entity_id", e.EntityID), zap.Error(err))
			stats.Skipped++
			continue
		}
		if !e.NeedsRescan(ts) {
			stats.Unchanged++
			continue
		}
		if e.LastChanged != nil {
			if _, err := c.links.DeleteByEntityField(ctx, target, e.EntityID); err != nil {
				c.storageWarn("delete_links", err, zap.Stringer("target", target), zap.Int64("entity_id", e.EntityID))
				stats.Skipped++
				continue
			}
			stats.Changed++
		} else {
			stats.New++
		}
		e.Modified = ts
		rescan = append(rescan, e)
	}
	return rescan, nil
}

func (c *changeTracker) forget(ctx context.Context, target entity.Target, id int64) error {
	if _, err := c.links.DeleteByEntityField(ctx, target, id); err != nil {
		return err
	}
	return c.tracked.Delete(ctx, target, id)
}

// dropDeletedEntities clears every remaining link of entities that were
// forgotten and are live in no configured target of their type.
func (c *changeTracker) dropDeletedEntities(ctx context.Context, sw *sweep) {
	for k := range sw.forgotten {
		if _, ok := sw.live[k]; ok {
			continue
		}
		if _, ok := sw.unknown[k.entityType]; ok {
			continue
		}
		n, err := c.links.DeleteByEntity(ctx, k.entityType, k.id)
		if err != nil {
			c.storageWarn("delete_entity_links", err, zap.String("entity_type", k.entityType), zap.Int64("entity_id", k.id))
			continue
		}
		if n > 0 {
			c.log.Debug("Dropped links of deleted entity",
				zap.String("entity_type", k.entityType), zap.Int64("entity_id", k.id), zap.Int64("links", n))
		}
	}
}

// modifiedTimestamp resolves paragraphs to their nearest non-paragraph
// ancestor before reading the timestamp.
func (c *changeTracker) modifiedTimestamp(ctx context.Context, entityType string, id int64) (time.Time, error) {
	visited := make(map[int64]struct{})
	for entityType == paragraphType {
		if _, seen := visited[id]; seen {
			return time.Time{}, fmt.Errorf("%w: paragraph %d revisited", ErrParentChainCycle, id)
		}
		if len(visited) >= maxParentDepth {
			return time.Time{}, fmt.Errorf("%w: deeper than %d levels", ErrParentChainBroken, maxParentDepth)
		}
		visited[id] = struct{}{}

		parent, err := c.content.GetParagraphParent(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return time.Time{}, fmt.Errorf("%w: paragraph %d not found", ErrParentChainBroken, id)
		}
		if err != nil {
			return time.Time{}, err
		}
		if parent.EntityType == "" {
			return time.Time{}, fmt.Errorf("%w: paragraph %d has no parent", ErrParentChainBroken, id)
		}
		entityType, id = parent.EntityType, parent.EntityID
	}
	return c.content.GetModifiedTimestamp(ctx, entityType, id)
}

func (c *changeTracker) storageWarn(op string, err error, fields ...zap.Field) {
	metrics.StorageErrorsTotal.WithLabelValues(op).Inc()
	c.log.Warn("Storage error, treating as no data", append(fields, zap.String("operation", op), zap.Error(err))...)
}
