package background

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"catalogfacets/internal/caching"
	"catalogfacets/internal/services"
)

var ErrJobNotFound = errors.New("job not found")

// Catalog is the taxonomy holder the scheduler keeps fresh.
type Catalog interface {
	Refresh(ctx context.Context) error
	Snapshot() *services.Snapshot
}

// Sweeper drops idle filter sessions.
type Sweeper interface {
	Sweep(ctx context.Context, idle time.Duration) int
}

// Options carries the schedules. Empty cron expressions disable a job.
type Options struct {
	TaxonomyRefreshCron string
	SnapshotExportCron  string
	SnapshotObject      string
	SessionSweepEvery   time.Duration
	SessionIdle         time.Duration
}

// JobStatus describes one registered job.
type JobStatus struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"next_run"`
	LastRun time.Time `json:"last_run,omitempty"`
}

// JobScheduler runs the periodic maintenance of the filter service.
type JobScheduler struct {
	scheduler gocron.Scheduler
	catalog   Catalog
	cacheSvc  caching.CacheService
	snapshots services.SnapshotStore
	sessions  Sweeper
	opts      Options
	logger    *zap.Logger

	mu   sync.RWMutex
	jobs map[string]gocron.Job
}

// NewJobScheduler registers the jobs. cacheSvc, snapshots and sessions may
// be nil; their jobs are then skipped.
func NewJobScheduler(catalog Catalog, cacheSvc caching.CacheService, snapshots services.SnapshotStore,
	sessions Sweeper, opts Options, logger *zap.Logger) (*JobScheduler, error) {

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	js := &JobScheduler{
		scheduler: scheduler,
		catalog:   catalog,
		cacheSvc:  cacheSvc,
		snapshots: snapshots,
		sessions:  sessions,
		opts:      opts,
		logger:    logger,
		jobs:      make(map[string]gocron.Job),
	}
	if err := js.registerJobs(); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	js.logger.Info("starting background job scheduler", zap.Int("jobs", len(js.jobs)))
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	js.logger.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	if js.catalog != nil && js.opts.TaxonomyRefreshCron != "" {
		if err := js.add("taxonomy-refresh", gocron.CronJob(js.opts.TaxonomyRefreshCron, false), js.RefreshTaxonomy); err != nil {
			return err
		}
	}
	if js.catalog != nil && js.snapshots != nil && js.opts.SnapshotExportCron != "" {
		if err := js.add("snapshot-export", gocron.CronJob(js.opts.SnapshotExportCron, false), js.ExportSnapshot); err != nil {
			return err
		}
	}
	if js.sessions != nil && js.opts.SessionSweepEvery > 0 {
		if err := js.add("session-sweep", gocron.DurationJob(js.opts.SessionSweepEvery), js.SweepSessions); err != nil {
			return err
		}
	}
	js.logger.Info("registered background jobs", zap.Int("count", len(js.jobs)))
	return nil
}

func (js *JobScheduler) add(name string, definition gocron.JobDefinition, task func(context.Context) error) error {
	job, err := js.scheduler.NewJob(
		definition,
		gocron.NewTask(task, context.Background()),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s job: %w", name, err)
	}
	js.mu.Lock()
	js.jobs[name] = job
	js.mu.Unlock()
	return nil
}

// RefreshTaxonomy reloads the taxonomy and drops cached counts, which were
// computed against the old one.
func (js *JobScheduler) RefreshTaxonomy(ctx context.Context) error {
	start := time.Now()
	if err := js.catalog.Refresh(ctx); err != nil {
		js.logger.Error("taxonomy refresh failed", zap.Error(err))
		return err
	}
	if js.cacheSvc != nil {
		if err := js.cacheSvc.InvalidateCounts(ctx); err != nil {
			js.logger.Warn("failed to invalidate cached counts", zap.Error(err))
		}
	}
	js.logger.Info("taxonomy refreshed", zap.Duration("took", time.Since(start)))
	return nil
}

// ExportSnapshot uploads the current taxonomy to object storage.
func (js *JobScheduler) ExportSnapshot(ctx context.Context) error {
	snapshot := js.catalog.Snapshot()
	if err := js.snapshots.Save(ctx, js.opts.SnapshotObject, snapshot); err != nil {
		js.logger.Error("snapshot export failed", zap.String("object", js.opts.SnapshotObject), zap.Error(err))
		return err
	}
	js.logger.Info("snapshot exported",
		zap.String("object", js.opts.SnapshotObject),
		zap.Int("categories", len(snapshot.Categories)),
		zap.Int("products", len(snapshot.Products)))
	return nil
}

func (js *JobScheduler) SweepSessions(ctx context.Context) error {
	js.sessions.Sweep(ctx, js.opts.SessionIdle)
	return nil
}

// RunNow triggers a registered job outside its schedule.
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, exists := js.jobs[name]
	js.mu.RUnlock()
	if !exists {
		return ErrJobNotFound
	}
	return job.RunNow()
}

// RemoveJob removes a job from the scheduler.
func (js *JobScheduler) RemoveJob(name string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if job, exists := js.jobs[name]; exists {
		err := js.scheduler.RemoveJob(job.ID())
		delete(js.jobs, name)
		return err
	}
	return ErrJobNotFound
}

// GetJobStatus lists the registered jobs by name.
func (js *JobScheduler) GetJobStatus() []JobStatus {
	js.mu.RLock()
	defer js.mu.RUnlock()

	status := make([]JobStatus, 0, len(js.jobs))
	for name, job := range js.jobs {
		s := JobStatus{Name: name}
		s.NextRun, _ = job.NextRun()
		s.LastRun, _ = job.LastRun()
		status = append(status, s)
	}
	sort.Slice(status, func(i, j int) bool { return status[i].Name < status[j].Name })
	return status
}
