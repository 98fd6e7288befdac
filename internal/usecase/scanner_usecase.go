package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/linkchecker-service/internal/batch"
	"github.com/user/linkchecker-service/internal/catalog"
	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/extractor"
	"github.com/user/linkchecker-service/internal/repository"
	"github.com/user/linkchecker-service/pkg/metrics"
)

const (
	opExtract = "extract_links"
	opCheck   = "check_links"
)

// ConfigProvider supplies the configuration snapshot a run starts from.
// Both parts come from one read of the configuration source.
type ConfigProvider interface {
	Snapshot(ctx context.Context) (entity.ScanConfiguration, entity.FieldMap, error)
}

// Scanner runs the scan pipeline (reconcile, then extract) and the check pipeline.
type Scanner interface {
	// Scan and Check run to completion and return the finished run.
	Scan(ctx context.Context) (*entity.ScanRun, error)
	Check(ctx context.Context) (*entity.ScanRun, error)
	// StartScan and StartCheck load the configuration, then continue in the
	// background and return the run as started.
	StartScan(ctx context.Context) (*entity.ScanRun, error)
	StartCheck(ctx context.Context) (*entity.ScanRun, error)
	// Run returns the recorded progress of a run.
	Run(ctx context.Context, id string) (*entity.ScanRun, error)
	// Shutdown cancels background runs between chunks and waits for them.
	Shutdown()
}

// ScannerDeps groups the collaborators of a Scanner.
type ScannerDeps struct {
	Config    ConfigProvider
	Tracker   ChangeTracker
	Content   repository.ContentStore
	Committer repository.ExtractionCommitter
	Links     repository.LinkReportRepository
	Checker   LinkChecker
	Progress  repository.ProgressRepository
	URLs      *extractor.Extractor
}

type scanner struct {
	deps              ScannerDeps
	extractionWorkers int
	log               *zap.Logger
	now               func() time.Time

	locks map[entity.RunKind]*sync.Mutex

	bgCtx  context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScanner creates a new Scanner.
func NewScanner(deps ScannerDeps, extractionWorkers int, log *zap.Logger) Scanner {
	bgCtx, cancel := context.WithCancel(context.Background())
	return &scanner{
		deps:              deps,
		extractionWorkers: extractionWorkers,
		log:               log,
		now:               time.Now,
		locks: map[entity.RunKind]*sync.Mutex{
			entity.RunScan:  {},
			entity.RunCheck: {},
		},
		bgCtx:  bgCtx,
		cancel: cancel,
	}
}

func (s *scanner) Scan(ctx context.Context) (*entity.ScanRun, error) {
	return s.execute(ctx, entity.RunScan, false)
}

func (s *scanner) Check(ctx context.Context) (*entity.ScanRun, error) {
	return s.execute(ctx, entity.RunCheck, false)
}

func (s *scanner) StartScan(ctx context.Context) (*entity.ScanRun, error) {
	return s.execute(ctx, entity.RunScan, true)
}

func (s *scanner) StartCheck(ctx context.Context) (*entity.ScanRun, error) {
	return s.execute(ctx, entity.RunCheck, true)
}

func (s *scanner) Run(ctx context.Context, id string) (*entity.ScanRun, error) {
	return s.deps.Progress.Get(ctx, id)
}

func (s *scanner) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

func (s *scanner) execute(ctx context.Context, kind entity.RunKind, async bool) (*entity.ScanRun, error) {
	lock := s.locks[kind]
	if !lock.TryLock() {
		return nil, ErrRunInProgress
	}

	// Configuration errors abort before any data is touched.
	cfg, fields, err := s.deps.Config.Snapshot(ctx)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	run := &entity.ScanRun{ID: uuid.NewString(), Kind: kind, State: entity.RunRunning, StartedAt: s.now().UTC()}
	if err := s.deps.Progress.Start(ctx, run); err != nil {
		s.log.Warn("Failed to record run start", zap.String("run_id", run.ID), zap.Error(err))
	}
	s.log.Info("Run started", zap.String("run_id", run.ID), zap.String("kind", string(kind)))

	work := func(ctx context.Context) {
		defer lock.Unlock()
		if kind == entity.RunScan {
			s.scan(ctx, run, cfg, fields)
		} else {
			s.check(ctx, run, cfg)
		}
	}

	if !async {
		work(ctx)
		return run, nil
	}

	started := *run
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		work(s.bgCtx)
	}()
	return &started, nil
}

func (s *scanner) scan(ctx context.Context, run *entity.ScanRun, cfg entity.ScanConfiguration, fields entity.FieldMap) {
	cat := catalog.New(cfg, fields, s.log)
	targets := cat.Resolve()

	rescan, _, err := s.deps.Tracker.Reconcile(ctx, targets)
	if err != nil {
		s.log.Warn("Reconciliation interrupted", zap.String("run_id", run.ID), zap.Error(err))
	}
	s.setTotal(ctx, run, len(rescan))

	ext := NewLinkExtractor(s.deps.Content, s.deps.Committer, cat, s.deps.URLs, s.log)
	runner := batch.NewRunner[entity.TrackedEntity](s.extractionWorkers, s.log)
	runner.Run(ctx,
		batch.Plan(opExtract, rescan, cfg.ExtractionBatchSize),
		advancing(s, run, ext.ExtractBatch),
		s.onProgress(run),
		s.onFinished(ctx, run))
}

func (s *scanner) check(ctx context.Context, run *entity.ScanRun, cfg entity.ScanConfiguration) {
	records, err := s.deps.Links.SelectUnchecked(ctx)
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("select_unchecked").Inc()
		s.log.Warn("Storage error, treating as no data", zap.String("operation", "select_unchecked"), zap.Error(err))
		records = nil
	}
	s.setTotal(ctx, run, len(records))

	// Chunks run one at a time; the checker bounds concurrency inside a chunk.
	runner := batch.NewRunner[entity.LinkRecord](1, s.log)
	runner.Run(ctx,
		batch.Plan(opCheck, records, cfg.LinkCheckBatchSize),
		advancing(s, run, s.deps.Checker.CheckBatch),
		s.onProgress(run),
		s.onFinished(ctx, run))
}

func (s *scanner) setTotal(ctx context.Context, run *entity.ScanRun, total int) {
	run.Total = total
	if err := s.deps.Progress.SetTotal(ctx, run.ID, total); err != nil {
		s.log.Warn("Failed to record run total", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// advancing records each chunk's counts in the progress store.
func advancing[T any](s *scanner, run *entity.ScanRun, step batch.Step[T]) batch.Step[T] {
	return func(ctx context.Context, op batch.Operation[T]) (int, int) {
		processed, failed := step(ctx, op)
		if err := s.deps.Progress.Advance(context.WithoutCancel(ctx), run.ID, processed, failed); err != nil {
			s.log.Warn("Failed to record run progress", zap.String("run_id", run.ID), zap.Error(err))
		}
		return processed, failed
	}
}

func (s *scanner) onProgress(run *entity.ScanRun) func(batch.Progress) {
	return func(p batch.Progress) {
		if p.Total > 0 {
			metrics.RunProgress.WithLabelValues(string(run.Kind)).Set(float64(p.Processed) / float64(p.Total))
		}
	}
}

func (s *scanner) onFinished(ctx context.Context, run *entity.ScanRun) func(batch.Summary) {
	return func(sum batch.Summary) {
		finished := s.now().UTC()
		run.Processed = sum.Processed
		run.Failed = sum.Failed
		run.State = entity.RunCompleted
		// A run stopped during reconciliation submits no chunks, so the
		// context is checked as well.
		if sum.Canceled || ctx.Err() != nil {
			run.State = entity.RunCanceled
		} else {
			metrics.RunProgress.WithLabelValues(string(run.Kind)).Set(1)
		}
		run.FinishedAt = &finished

		if err := s.deps.Progress.Finish(context.WithoutCancel(ctx), run.ID, run.State, finished); err != nil {
			s.log.Warn("Failed to record run completion", zap.String("run_id", run.ID), zap.Error(err))
		}
		s.log.Info("Run finished",
			zap.String("run_id", run.ID),
			zap.String("kind", string(run.Kind)),
			zap.Int("total", sum.Total),
			zap.String("state", string(run.State)),
			zap.Int("processed", sum.Processed),
			zap.Int("failed", sum.Failed),
			zap.Int("chunks", sum.Chunks),
			zap.Int("skipped_chunks", sum.Skipped),
			zap.Duration("elapsed", sum.Elapsed))
	}
}
