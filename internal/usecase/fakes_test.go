package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
)

var errStorage = errors.New("storage unavailable")

type trackedKey struct {
	target entity.Target
	id     int64
}

// fakeLinks is an in-memory link_report table.
type fakeLinks struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]entity.LinkRecord
	// ops records mutations in order, e.g. "delete node.body/1".
	ops       []string
	selectErr error
	updateErr error
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{rows: map[int64]entity.LinkRecord{}}
}

func (f *fakeLinks) Insert(_ context.Context, rec *entity.LinkRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	rec.ID = f.nextID
	f.rows[rec.ID] = *rec
	f.ops = append(f.ops, fmt.Sprintf("insert %s.%s/%d", rec.EntityType, rec.EntityField, rec.EntityID))
	return nil
}

func (f *fakeLinks) DeleteByEntity(_ context.Context, entityType string, id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, r := range f.rows {
		if r.EntityType == entityType && r.EntityID == id {
			delete(f.rows, k)
			n++
		}
	}
	f.ops = append(f.ops, fmt.Sprintf("delete-entity %s/%d", entityType, id))
	return n, nil
}

func (f *fakeLinks) DeleteByEntityField(_ context.Context, t entity.Target, id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, r := range f.rows {
		if r.EntityType == t.EntityType && r.EntityField == t.Field && r.EntityID == id {
			delete(f.rows, k)
			n++
		}
	}
	f.ops = append(f.ops, fmt.Sprintf("delete %s/%d", t, id))
	return n, nil
}

func (f *fakeLinks) PruneUnconfigured(_ context.Context, targets []entity.Target) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keep := map[entity.Target]bool{}
	for _, t := range targets {
		keep[t] = true
	}
	var n int64
	for k, r := range f.rows {
		if !keep[entity.Target{EntityType: r.EntityType, Field: r.EntityField}] {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeLinks) selectWhere(checked bool) ([]entity.LinkRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	var out []entity.LinkRecord
	for _, r := range f.rows {
		if (r.Status != entity.StatusUnchecked) == checked {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLinks) SelectUnchecked(context.Context) ([]entity.LinkRecord, error) {
	return f.selectWhere(false)
}

func (f *fakeLinks) SelectChecked(context.Context) ([]entity.LinkRecord, error) {
	return f.selectWhere(true)
}

func (f *fakeLinks) UpdateStatus(_ context.Context, id int64, status entity.LinkStatus, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	r, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Status = status
	r.Reason = &reason
	f.rows[id] = r
	return nil
}

func (f *fakeLinks) Stats(context.Context) (entity.ReportStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s entity.ReportStats
	for _, r := range f.rows {
		switch r.Status {
		case entity.StatusOk:
			s.Ok++
		case entity.StatusBroken:
			s.Broken++
		default:
			s.Unchecked++
		}
	}
	return s, nil
}

func (f *fakeLinks) count(entityType string, id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.EntityType == entityType && r.EntityID == id {
			n++
		}
	}
	return n
}

func (f *fakeLinks) all() []entity.LinkRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.LinkRecord, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// fakeTracked is an in-memory tracked_entity table that commits links into fakeLinks.
type fakeTracked struct {
	mu      sync.Mutex
	rows    map[trackedKey]*time.Time
	links   *fakeLinks
	calls   int
	listErr error
}

func newFakeTracked(links *fakeLinks) *fakeTracked {
	return &fakeTracked{rows: map[trackedKey]*time.Time{}, links: links}
}

func (f *fakeTracked) seed(t entity.Target, id int64, lastChanged *time.Time) {
	f.rows[trackedKey{t, id}] = lastChanged
}

func (f *fakeTracked) lastChanged(t entity.Target, id int64) (*time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.rows[trackedKey{t, id}]
	return v, ok
}

func (f *fakeTracked) PruneUnconfigured(_ context.Context, targets []entity.Target) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	keep := map[entity.Target]bool{}
	for _, t := range targets {
		keep[t] = true
	}
	var n int64
	for k := range f.rows {
		if !keep[k.target] {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeTracked) ListByTarget(_ context.Context, t entity.Target) ([]entity.TrackedEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []entity.TrackedEntity
	for k, lc := range f.rows {
		if k.target == t {
			out = append(out, entity.TrackedEntity{EntityType: t.EntityType, EntityField: t.Field, EntityID: k.id, LastChanged: lc})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}

func (f *fakeTracked) InsertNew(_ context.Context, t entity.Target, ids []int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var n int64
	for _, id := range ids {
		k := trackedKey{t, id}
		if _, ok := f.rows[k]; !ok {
			f.rows[k] = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeTracked) Delete(_ context.Context, t entity.Target, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	delete(f.rows, trackedKey{t, id})
	return nil
}

func (f *fakeTracked) CommitExtraction(ctx context.Context, e entity.TrackedEntity, links []entity.LinkRecord) error {
	for i := range links {
		if err := f.links.Insert(ctx, &links[i]); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := trackedKey{e.Target(), e.EntityID}
	if lc := f.rows[k]; lc == nil || lc.Before(e.Modified) {
		ts := e.Modified
		f.rows[k] = &ts
	}
	return nil
}

// fakeContent is an in-memory host content store.
type fakeContent struct {
	ids      map[entity.Target][]int64
	modified map[string]time.Time
	values   map[string][]string
	parents  map[int64]entity.ParentRef
	queryErr error
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		ids:      map[entity.Target][]int64{},
		modified: map[string]time.Time{},
		values:   map[string][]string{},
		parents:  map[int64]entity.ParentRef{},
	}
}

func entityKey(entityType string, id int64) string {
	return fmt.Sprintf("%s/%d", entityType, id)
}

func (f *fakeContent) QueryIDsMatching(_ context.Context, t entity.Target) ([]int64, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.ids[t], nil
}

func (f *fakeContent) GetModifiedTimestamp(_ context.Context, entityType string, id int64) (time.Time, error) {
	ts, ok := f.modified[entityKey(entityType, id)]
	if !ok {
		return time.Time{}, repository.ErrNotFound
	}
	return ts, nil
}

func (f *fakeContent) GetFieldValues(_ context.Context, t entity.Target, id int64, _ entity.ExtractionKind) ([]string, error) {
	return f.values[fmt.Sprintf("%s/%d", t, id)], nil
}

func (f *fakeContent) GetParagraphParent(_ context.Context, id int64) (entity.ParentRef, error) {
	p, ok := f.parents[id]
	if !ok {
		return entity.ParentRef{}, repository.ErrNotFound
	}
	return p, nil
}

// fakeProgress is an in-memory ProgressRepository.
type fakeProgress struct {
	mu   sync.Mutex
	runs map[string]entity.ScanRun
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{runs: map[string]entity.ScanRun{}}
}

func (f *fakeProgress) Start(_ context.Context, run *entity.ScanRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeProgress) SetTotal(_ context.Context, id string, total int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.runs[id]
	r.Total = total
	f.runs[id] = r
	return nil
}

func (f *fakeProgress) Advance(_ context.Context, id string, processed, failed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.runs[id]
	r.Processed += processed
	r.Failed += failed
	f.runs[id] = r
	return nil
}

func (f *fakeProgress) Finish(_ context.Context, id string, state entity.RunState, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.runs[id]
	r.State = state
	r.FinishedAt = &at
	f.runs[id] = r
	return nil
}

func (f *fakeProgress) Get(_ context.Context, id string) (*entity.ScanRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

// fakeConfig serves a fixed configuration.
type fakeConfig struct {
	mu     sync.Mutex
	cfg    entity.ScanConfiguration
	fields entity.FieldMap
	err    error
	reads  int
}

func (f *fakeConfig) Snapshot(context.Context) (entity.ScanConfiguration, entity.FieldMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.cfg, f.fields, f.err
}

// countingChecker answers from a fixed table and counts calls per URL.
type countingChecker struct {
	mu      sync.Mutex
	calls   map[string]int
	results map[string]entity.CheckResult
	delay   time.Duration
}

func newCountingChecker(results map[string]entity.CheckResult) *countingChecker {
	return &countingChecker{calls: map[string]int{}, results: results}
}

func (c *countingChecker) Check(_ context.Context, url string) entity.CheckResult {
	c.mu.Lock()
	c.calls[url]++
	c.mu.Unlock()
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if r, ok := c.results[url]; ok {
		return r
	}
	return entity.CheckResult{Status: entity.StatusOk, Reason: "200 OK"}
}

func (c *countingChecker) callsFor(url string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[url]
}

// mapCache is an in-memory CheckCacheRepository.
type mapCache struct {
	mu sync.Mutex
	m  map[string]entity.CheckResult
}

func (c *mapCache) Get(_ context.Context, url string) (entity.CheckResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.m[url]
	return r, ok, nil
}

func (c *mapCache) Put(_ context.Context, url string, r entity.CheckResult, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[url] = r
	return nil
}
