package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/capitolwatch/backend/src/config"
	"github.com/username/capitolwatch/backend/src/logger"
	"github.com/username/capitolwatch/backend/src/metrics"
	"github.com/username/capitolwatch/backend/src/model"
	"github.com/username/capitolwatch/backend/src/models"
	"github.com/username/capitolwatch/backend/src/normalizer"
	"github.com/username/capitolwatch/backend/src/reconciler"
	"github.com/username/capitolwatch/backend/src/sources"
	"github.com/username/capitolwatch/backend/src/sources/fetch"
	"github.com/username/capitolwatch/backend/src/validator"
	"golang.org/x/sync/errgroup"
)

const (
	ckLatestSummary    = "agg_latest_run_summary"
	defaultTrigger     = "manual"
	persistTimeout     = 10 * time.Second
	defaultListLimit   = 20
	maxListLimit       = 200
	defaultRunTimeout  = 30 * time.Minute
	defaultRunLockTTL  = 45 * time.Minute
	defaultMaxRejected = 50
)

// SourceBuilder turns the selected source names into adapters.
type SourceBuilder func(only []string) ([]sources.Source, error)

// Options carries the optional collaborators of the collection service.
type Options struct {
	Sources   []config.SourceConfig
	Build     SourceBuilder
	Lock      RunLock
	LockTTL   time.Duration
	Publisher SummaryPublisher
	Metrics   *metrics.Recorder
	Defaults  RunConfig
	Clock     func() time.Time
}

type collectionServiceImpl struct {
	db           *sql.DB
	build        SourceBuilder
	lock         RunLock
	lockTTL      time.Duration
	directory    *storeDirectory
	validator    *validator.Validator
	reconciler   *reconciler.Reconciler
	publisher    SummaryPublisher
	metrics      *metrics.Recorder
	defaults     RunConfig
	summaryCache *cache.Cache
	now          func() time.Time
}

func NewCollectionService(db *sql.DB, opts Options) CollectionService {
	dir := newStoreDirectory(db)
	s := &collectionServiceImpl{
		db:           db,
		build:        opts.Build,
		lock:         opts.Lock,
		lockTTL:      opts.LockTTL,
		directory:    dir,
		reconciler:   reconciler.New(db),
		publisher:    opts.Publisher,
		metrics:      opts.Metrics,
		defaults:     opts.Defaults,
		summaryCache: cache.New(DefaultCacheExpiration, CacheCleanupInterval),
		now:          opts.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.validator = validator.New(dir, nil).WithClock(s.now)
	if s.build == nil {
		deps := sources.Deps{SeenKeys: &seenKeyStore{db: db, now: s.now}}
		cfgs := opts.Sources
		s.build = func(only []string) ([]sources.Source, error) {
			return sources.Build(cfgs, only, deps)
		}
	}
	if s.lock == nil {
		s.lock = NewSQLiteRunLock(db)
	}
	if s.lockTTL <= 0 {
		s.lockTTL = defaultRunLockTTL
	}
	return s
}

// DefaultRunConfig reads the run defaults from the loaded application config.
func DefaultRunConfig() RunConfig {
	if config.Cfg == nil {
		return RunConfig{}
	}
	return RunConfig{
		Timeout:            config.Cfg.RunTimeout,
		MaxConcurrency:     config.Cfg.MaxConcurrency,
		RejectionThreshold: config.Cfg.RejectionThreshold,
		MaxRejectedRecords: config.Cfg.MaxRejectedRecords,
	}
}

func (s *collectionServiceImpl) withDefaults(rc RunConfig) RunConfig {
	if rc.RunID == "" {
		rc.RunID = uuid.NewString()
	}
	if rc.Trigger == "" {
		rc.Trigger = defaultTrigger
	}
	if rc.Timeout <= 0 {
		rc.Timeout = s.defaults.Timeout
	}
	if rc.Timeout <= 0 {
		rc.Timeout = defaultRunTimeout
	}
	if rc.MaxConcurrency <= 0 {
		rc.MaxConcurrency = s.defaults.MaxConcurrency
	}
	if rc.MaxConcurrency <= 0 {
		rc.MaxConcurrency = 1
	}
	if rc.RejectionThreshold <= 0 {
		rc.RejectionThreshold = s.defaults.RejectionThreshold
	}
	if rc.RejectionThreshold <= 0 {
		rc.RejectionThreshold = 0.5
	}
	if rc.MaxRejectedRecords <= 0 {
		rc.MaxRejectedRecords = s.defaults.MaxRejectedRecords
	}
	if rc.MaxRejectedRecords <= 0 {
		rc.MaxRejectedRecords = defaultMaxRejected
	}
	return rc
}

// RunCollection fetches every selected source once and reconciles what they
// yield into the store. Only store failures and lock contention are returned
// as errors; source failures are reported in the summary.
func (s *collectionServiceImpl) RunCollection(ctx context.Context, rc RunConfig) (RunSummary, error) {
	ctx, run, err := s.begin(ctx, rc)
	if err != nil {
		return RunSummary{}, err
	}
	return s.execute(ctx, run)
}

// StartCollection takes the run lock and returns once the run is underway.
// The summary arrives on the returned channel.
func (s *collectionServiceImpl) StartCollection(ctx context.Context, rc RunConfig) (string, <-chan RunResult, error) {
	ctx, run, err := s.begin(ctx, rc)
	if err != nil {
		return "", nil, err
	}
	done := make(chan RunResult, 1)
	go func() {
		defer close(done)
		summary, err := s.execute(ctx, run)
		done <- RunResult{Summary: summary, Err: err}
	}()
	return run.cfg.RunID, done, nil
}

type pendingRun struct {
	cfg  RunConfig
	srcs []sources.Source
}

// begin resolves the sources, checks the store and takes the run lock.
func (s *collectionServiceImpl) begin(ctx context.Context, rc RunConfig) (context.Context, *pendingRun, error) {
	rc = s.withDefaults(rc)
	ctx = logger.WithRun(ctx, rc.RunID)

	srcs, err := s.build(rc.Sources)
	if err != nil {
		return ctx, nil, fmt.Errorf("build sources: %w", err)
	}
	if err := s.db.PingContext(ctx); err != nil {
		return ctx, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	acquired, err := s.lock.Acquire(ctx, rc.RunID, s.lockTTL)
	if err != nil {
		return ctx, nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		return ctx, nil, ErrRunInProgress
	}
	return ctx, &pendingRun{cfg: rc, srcs: srcs}, nil
}

// execute drives a run begun by begin and always releases its lock.
func (s *collectionServiceImpl) execute(ctx context.Context, run *pendingRun) (RunSummary, error) {
	rc, srcs := run.cfg, run.srcs
	log := logger.FromContext(ctx)
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		if err := s.lock.Release(releaseCtx, rc.RunID); err != nil {
			log.Warn("Failed to release run lock", "error", err)
		}
	}()

	var err error
	summary := RunSummary{
		RunID:     rc.RunID,
		Trigger:   rc.Trigger,
		Status:    RunRunning,
		StartedAt: s.now().UTC(),
	}
	summary.CountsBefore, err = model.GetCounts(ctx, s.db)
	if err != nil {
		return summary, fmt.Errorf("%w: read counts: %v", ErrStoreUnavailable, err)
	}
	log.Info("Collection run started", "trigger", rc.Trigger, "sources", len(srcs), "maxConcurrency", rc.MaxConcurrency)

	runCtx, cancel := context.WithTimeout(ctx, rc.Timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(rc.MaxConcurrency)
	summary.Sources = make([]SourceSummary, len(srcs))
	for i, src := range srcs {
		g.Go(func() error {
			var err error
			summary.Sources[i], err = s.runSource(gctx, src, rc)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		summary.Status = RunPartiallyFailed
		summary.FinishedAt = s.now().UTC()
		summary.DurationMs = summary.FinishedAt.Sub(summary.StartedAt).Milliseconds()
		log.Error("Collection run aborted", "error", err)
		return summary, err
	}

	summary.Status = RunCompleted
	for _, ss := range summary.Sources {
		if ss.Status != SourceOk || ss.RejectionRate() > rc.RejectionThreshold {
			summary.Status = RunPartiallyFailed
			break
		}
	}

	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancelPersist()

	summary.CountsAfter, err = model.GetCounts(persistCtx, s.db)
	if err != nil {
		return summary, fmt.Errorf("%w: read counts: %v", ErrStoreUnavailable, err)
	}
	summary.FinishedAt = s.now().UTC()
	summary.DurationMs = summary.FinishedAt.Sub(summary.StartedAt).Milliseconds()

	if err := s.persist(persistCtx, summary); err != nil {
		return summary, err
	}
	s.summaryCache.SetDefault(ckLatestSummary, &summary)

	if s.publisher != nil {
		if err := s.publisher.Publish(persistCtx, summary); err != nil {
			log.Warn("Failed to publish run summary", "error", err)
		}
	}
	s.metrics.RecordRun(persistCtx, string(summary.Status), summary.Trigger, time.Duration(summary.DurationMs)*time.Millisecond)

	log.Info("Collection run finished",
		"status", summary.Status,
		"durationMs", summary.DurationMs,
		"membersBefore", summary.CountsBefore.Members, "membersAfter", summary.CountsAfter.Members,
		"tradesBefore", summary.CountsBefore.Trades, "tradesAfter", summary.CountsAfter.Trades,
	)
	return summary, nil
}

func (s *collectionServiceImpl) persist(ctx context.Context, summary RunSummary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	run := model.CollectionRun{
		ID:         summary.RunID,
		Status:     string(summary.Status),
		Trigger:    summary.Trigger,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		DurationMs: summary.DurationMs,
		Summary:    body,
	}
	if err := model.InsertCollectionRun(ctx, s.db, run); err != nil {
		return fmt.Errorf("%w: persist run summary: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// runSource drains one source. The returned error is non-nil only when the
// store became unusable, which aborts the whole run.
func (s *collectionServiceImpl) runSource(ctx context.Context, src sources.Source, rc RunConfig) (summary SourceSummary, fatal error) {
	start := time.Now()
	ctx = logger.WithSource(ctx, src.Name())
	summary = SourceSummary{
		Name:     src.Name(),
		Kind:     src.Kind(),
		Rejected: make(map[string]int),
	}

	defer func() {
		if r := recover(); r != nil {
			summary.Status = SourceFailed
			summary.Reason = fmt.Sprintf("panic: %v", r)
		}
		summary.DurationMs = time.Since(start).Milliseconds()
		s.finishSource(ctx, &summary, time.Since(start))
	}()

	batch := validator.NewBatch()
	committer, _ := src.(sources.Committer)
	outcome := src.Fetch(ctx, func(raw models.RawRecord) bool {
		if ctx.Err() != nil {
			return false
		}
		stored, err := s.process(ctx, raw, batch, &summary, rc.MaxRejectedRecords)
		if err != nil {
			fatal = err
			return false
		}
		if stored && committer != nil {
			if err := committer.Commit(ctx, raw); err != nil && ctx.Err() == nil {
				logger.FromContext(ctx).Warn("Failed to commit record", "key", raw.Key, "error", err)
			}
		}
		return true
	})

	for _, de := range outcome.DocumentErrors {
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", de.Ref, de.Reason))
	}
	switch {
	case fatal != nil:
		summary.Status = SourceFailed
		summary.Reason = fatal.Error()
	case ctx.Err() != nil:
		summary.Status = SourceCancelled
		summary.Reason = ctx.Err().Error()
	case outcome.Status == fetch.StatusFailed:
		summary.Status = SourceFailed
		summary.Reason = outcome.Reason
	default:
		summary.Status = SourceOk
	}
	return summary, fatal
}

func (s *collectionServiceImpl) finishSource(ctx context.Context, summary *SourceSummary, d time.Duration) {
	log := logger.FromContext(ctx)
	attrs := []any{
		"kind", summary.Kind,
		"status", summary.Status,
		"processed", summary.Processed,
		"inserted", summary.Inserted,
		"updated", summary.Updated,
		"skippedDuplicate", summary.SkippedDuplicate,
		"rejected", summary.RejectedTotal(),
		"durationMs", summary.DurationMs,
	}
	if summary.Reason != "" {
		attrs = append(attrs, "reason", summary.Reason)
	}
	if summary.Status == SourceOk {
		log.Info("Source finished", attrs...)
	} else {
		log.Warn("Source finished", attrs...)
	}

	outcomes := map[string]int{
		"inserted":          summary.Inserted,
		"updated":           summary.Updated,
		"skipped_duplicate": summary.SkippedDuplicate,
	}
	for reason, n := range summary.Rejected {
		outcomes["rejected:"+reason] = n
	}
	mctx := context.WithoutCancel(ctx)
	s.metrics.RecordOutcomes(mctx, summary.Name, outcomes)
	s.metrics.RecordSource(mctx, summary.Name, string(summary.Status), d)
}

// process runs one raw record through normalize, validate and reconcile.
// stored reports whether the record reached the store.
func (s *collectionServiceImpl) process(ctx context.Context, raw models.RawRecord, batch *validator.Batch, summary *SourceSummary, maxRejected int) (stored bool, err error) {
	summary.Processed++
	reject := func(reason, detail string) {
		summary.Rejected[reason]++
		if len(summary.RejectedRecords) < maxRejected {
			summary.RejectedRecords = append(summary.RejectedRecords, RejectedRecord{
				Key: raw.Key, Ref: raw.Ref, Kind: raw.Kind, Reason: reason, Detail: detail,
			})
		}
	}

	rec, err := normalizer.Normalize(raw)
	if err != nil {
		var nerr *normalizer.Error
		if errors.As(err, &nerr) {
			reject(nerr.Reason(), nerr.Error())
			return false, nil
		}
		reject(string(normalizer.MissingField), err.Error())
		return false, nil
	}

	rec, err = s.validator.Validate(ctx, rec, batch)
	if err != nil {
		var rej *validator.Rejection
		if errors.As(err, &rej) {
			reject(string(rej.Reason), rej.Detail)
			return false, nil
		}
		return false, s.storeError(ctx, err, reject)
	}

	outcome, err := s.reconciler.Apply(ctx, rec)
	if err != nil {
		if errors.Is(err, reconciler.ErrUnsupportedRecord) {
			reject(RejectedStoreError, err.Error())
			return false, nil
		}
		return false, s.storeError(ctx, err, reject)
	}
	switch outcome {
	case reconciler.Inserted:
		summary.Inserted++
		s.directory.invalidate(rec.Kind)
	case reconciler.Updated:
		summary.Updated++
		s.directory.invalidate(rec.Kind)
	case reconciler.SkippedDuplicate:
		summary.SkippedDuplicate++
	}
	return true, nil
}

// storeError decides whether a failed store call is fatal. A store that no
// longer answers a ping aborts the run; anything else costs only the record.
func (s *collectionServiceImpl) storeError(ctx context.Context, err error, reject func(reason, detail string)) error {
	if ctx.Err() != nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if pingErr := s.db.PingContext(ctx); pingErr != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	logger.FromContext(ctx).Warn("Record rejected by store", "error", err)
	reject(RejectedStoreError, err.Error())
	return nil
}

func (s *collectionServiceImpl) LatestSummary(ctx context.Context) (*RunSummary, error) {
	if cached, found := s.summaryCache.Get(ckLatestSummary); found {
		return cached.(*RunSummary), nil
	}
	run, err := model.GetLatestCollectionRun(ctx, s.db)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest run: %w", err)
	}
	var summary RunSummary
	if err := json.Unmarshal(run.Summary, &summary); err != nil {
		return nil, fmt.Errorf("decode run %s summary: %w", run.ID, err)
	}
	s.summaryCache.SetDefault(ckLatestSummary, &summary)
	return &summary, nil
}

func (s *collectionServiceImpl) ListRuns(ctx context.Context, limit int) ([]model.CollectionRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return model.ListCollectionRuns(ctx, s.db, limit)
}

func (s *collectionServiceImpl) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// seenKeyStore persists the keys of feed rows already reconciled so diffing
// feeds skip them on later runs.
type seenKeyStore struct {
	db  *sql.DB
	now func() time.Time
}

func (k *seenKeyStore) Load(ctx context.Context, source string) (map[string]struct{}, error) {
	return model.LoadSeenKeys(ctx, k.db, source)
}

func (k *seenKeyStore) Mark(ctx context.Context, source, key string) error {
	return model.MarkKeySeen(ctx, k.db, source, key, k.now().UTC())
}
