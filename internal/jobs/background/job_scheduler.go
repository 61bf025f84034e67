package background

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/hierarchy"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/go-co-op/gocron/v2"
)

const (
	JobTreeWarm  = "category-tree-warm"
	JobTreeAudit = "category-tree-audit"
)

// TreeRebuilder rebuilds and caches the category forest.
type TreeRebuilder interface {
	Rebuild(ctx context.Context) ([]*models.CategoryNode, error)
}

// HierarchyAuditor reports categories whose stored path disagrees with
// their parent.
type HierarchyAuditor interface {
	Audit(ctx context.Context) ([]hierarchy.Violation, error)
}

// Locker hands out locks shared by every running instance so that a job
// runs once per interval across the fleet.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
}

// Intervals controls how often each job runs.
type Intervals struct {
	TreeWarm  time.Duration
	TreeAudit time.Duration
}

// JobScheduler manages background jobs for distributed environment
type JobScheduler struct {
	scheduler gocron.Scheduler
	tree      TreeRebuilder
	auditor   HierarchyAuditor
	locker    Locker
	intervals Intervals
	log       *logger.Logger
	jobJobs   map[string]gocron.Job
	mu        sync.RWMutex
}

// NewJobScheduler creates a new job scheduler with the tree jobs registered
func NewJobScheduler(tree TreeRebuilder, auditor HierarchyAuditor, locker Locker, intervals Intervals, log *logger.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler: scheduler,
		tree:      tree,
		auditor:   auditor,
		locker:    locker,
		intervals: intervals,
		log:       log.With("component", "scheduler"),
		jobJobs:   make(map[string]gocron.Job),
	}

	if err := js.registerJobs(); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.log.Info("starting background job scheduler", "jobs", len(js.jobJobs))
	js.scheduler.Start()
}

// Stop stops the job scheduler and waits for running jobs
func (js *JobScheduler) Stop() error {
	js.log.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	if js.intervals.TreeWarm > 0 {
		if err := js.addJob(JobTreeWarm, js.intervals.TreeWarm, js.warmCategoryTree); err != nil {
			return err
		}
	}
	if js.intervals.TreeAudit > 0 {
		if err := js.addJob(JobTreeAudit, js.intervals.TreeAudit, js.auditCategoryTree); err != nil {
			return err
		}
	}
	return nil
}

// addJob schedules fn every interval. A run is skipped when another instance
// holds the job's lock, and runs never overlap on one instance.
func (js *JobScheduler) addJob(name string, interval time.Duration, fn func(ctx context.Context) error) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()

		if js.locker != nil {
			ok, err := js.locker.AcquireLock(ctx, name, interval)
			if err != nil {
				// without the shared lock every instance runs the job
				js.log.Warn("job lock unavailable", "job", name, "error", err)
			} else if !ok {
				js.log.Debug("job skipped, held by another instance", "job", name)
				return
			}
		}

		start := time.Now()
		if err := fn(ctx); err != nil {
			js.log.Error("job failed", "job", name, "error", err, "duration", time.Since(start))
			return
		}
		js.log.Debug("job completed", "job", name, "duration", time.Since(start))
	}

	job, err := js.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", name, err)
	}
	js.jobJobs[name] = job
	return nil
}

// warmCategoryTree rebuilds the cached forest so readers rarely hit a cold cache.
func (js *JobScheduler) warmCategoryTree(ctx context.Context) error {
	roots, err := js.tree.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild category tree: %w", err)
	}
	js.log.Info("category tree warmed", "roots", len(roots))
	return nil
}

// auditCategoryTree reports path drift. Violations are logged for an
// operator to repair; nothing is rewritten here.
func (js *JobScheduler) auditCategoryTree(ctx context.Context) error {
	violations, err := js.auditor.Audit(ctx)
	if err != nil {
		return fmt.Errorf("audit category tree: %w", err)
	}
	if len(violations) == 0 {
		js.log.Info("category tree consistent")
		return nil
	}
	for _, v := range violations {
		js.log.Error("category path violation",
			"category_id", v.CategoryID,
			"stored_path", v.StoredPath,
			"expected_path", v.ExpectedPath,
			"reason", v.Reason,
		)
	}
	js.log.Warn("category tree audit found violations", "count", len(violations))
	return nil
}

// RunNow triggers a registered job outside its schedule.
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, ok := js.jobJobs[name]
	js.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return job.RunNow()
}

// GetJobStatus returns information about scheduled jobs
func (js *JobScheduler) GetJobStatus() map[string]interface{} {
	js.mu.RLock()
	defer js.mu.RUnlock()

	jobs := make([]string, 0, len(js.jobJobs))
	for name := range js.jobJobs {
		jobs = append(jobs, name)
	}
	sort.Strings(jobs)

	return map[string]interface{}{
		"total_jobs": len(js.jobJobs),
		"jobs":       jobs,
	}
}
