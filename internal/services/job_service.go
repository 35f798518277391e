package services

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/petitmonde/univers-backend/internal/data/repos"
	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/dbctx"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
)

// JobTask is the deferred unit of work a job executes. It receives the
// job id so it can report progress, and returns a result payload that is
// serialized onto the job record.
type JobTask func(jobID string) (interface{}, error)

// JobService creates, runs and tracks asynchronous jobs. Job state lives
// in the local database so it survives restarts; execution runs on one
// goroutine per job, tracked so the process can drain at shutdown.
type JobService interface {
	CreateAndRun(ctx context.Context, jobType, universeSlug string, totalSteps int, task JobTask) (*domain.Job, error)
	Get(ctx context.Context, jobID string) (*domain.Job, error)
	List(ctx context.Context, universeSlug, status string, limit int) ([]*domain.Job, error)
	Step(jobID string, message string)
	SetTotalSteps(jobID string, total int)
	UpdateMessage(jobID string, message string)
	DeleteStale(ctx context.Context, olderThan time.Duration) (int64, error)
	Drain(timeout time.Duration) bool
}

type jobService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.JobRepo

	mu       sync.Mutex
	inFlight sync.WaitGroup
}

func NewJobService(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRepo) JobService {
	return &jobService{
		db:   db,
		log:  baseLog.With("service", "JobService"),
		repo: repo,
	}
}

func (s *jobService) CreateAndRun(ctx context.Context, jobType, universeSlug string, totalSteps int, task JobTask) (*domain.Job, error) {
	if jobType == "" {
		return nil, fmt.Errorf("missing job type")
	}
	if task == nil {
		return nil, fmt.Errorf("missing job task")
	}

	job := &domain.Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		UniversSlug: universeSlug,
		Status:      domain.JobStatusPending,
		Progress:    0,
		TotalSteps:  totalSteps,
		CurrentStep: 0,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(dbctx.Context{Ctx: ctx}, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.inFlight.Add(1)
	go s.run(job.ID, task)

	return job, nil
}

// run drives one job to a terminal state. Errors and panics are recorded
// on the job record and never propagate out of the goroutine.
func (s *jobService) run(jobID string, task JobTask) {
	defer s.inFlight.Done()

	now := time.Now().UTC()
	s.update(jobID, map[string]interface{}{
		"status":     domain.JobStatusRunning,
		"started_at": now,
		"message":    "Starting...",
	})

	var result interface{}
	err := func() (taskErr error) {
		defer func() {
			if r := recover(); r != nil {
				taskErr = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			}
		}()
		result, taskErr = task(jobID)
		return
	}()

	completed := time.Now().UTC()
	if err != nil {
		s.log.Error("Job failed", "job_id", jobID, "error", err)
		s.update(jobID, map[string]interface{}{
			"status":       domain.JobStatusFailed,
			"error":        err.Error(),
			"message":      fmt.Sprintf("Failed: %s", firstLine(err.Error())),
			"completed_at": completed,
		})
		return
	}

	updates := map[string]interface{}{
		"status":       domain.JobStatusCompleted,
		"progress":     100,
		"message":      "Completed successfully",
		"completed_at": completed,
	}
	if result != nil {
		if b, merr := json.Marshal(result); merr == nil {
			updates["result"] = datatypes.JSON(b)
		} else {
			s.log.Warn("Could not serialize job result", "job_id", jobID, "error", merr)
		}
	}
	s.update(jobID, updates)
}

func (s *jobService) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.repo.GetByID(dbctx.Context{Ctx: ctx}, jobID)
}

func (s *jobService) List(ctx context.Context, universeSlug, status string, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.List(dbctx.Context{Ctx: ctx}, universeSlug, status, limit)
}

// Step advances the job one step and recomputes progress. Safe to call
// from the executing task; a step against a deleted or terminal job is a
// no-op.
func (s *jobService) Step(jobID string, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.repo.GetByID(dbctx.Context{Ctx: context.Background()}, jobID)
	if err != nil || job == nil || domain.TerminalJobStatus(job.Status) {
		return
	}
	step := job.CurrentStep + 1
	if job.TotalSteps > 0 && step > job.TotalSteps {
		step = job.TotalSteps
	}
	updates := map[string]interface{}{"current_step": step}
	if job.TotalSteps > 0 {
		updates["progress"] = step * 100 / job.TotalSteps
	}
	if message != "" {
		updates["message"] = message
	}
	s.updateLocked(jobID, updates)
}

// SetTotalSteps resets the step counters when the real count is only
// known once the task is underway.
func (s *jobService) SetTotalSteps(jobID string, total int) {
	s.update(jobID, map[string]interface{}{
		"total_steps":  total,
		"current_step": 0,
		"progress":     0,
	})
}

func (s *jobService) UpdateMessage(jobID string, message string) {
	s.update(jobID, map[string]interface{}{"message": message})
}

func (s *jobService) DeleteStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	n, err := s.repo.DeleteStale(dbctx.Context{Ctx: ctx}, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("Deleted stale jobs", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// Drain waits for in-flight jobs to finish, up to the timeout. Returns
// true if everything completed in time.
func (s *jobService) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *jobService) update(jobID string, updates map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateLocked(jobID, updates)
}

// updateLocked applies a field set. Terminal jobs are never mutated, so
// completed and failed are final. Failures are logged and swallowed:
// status writes racing a retention sweep must not crash the owning task.
func (s *jobService) updateLocked(jobID string, updates map[string]interface{}) {
	disallowed := []string{domain.JobStatusCompleted, domain.JobStatusFailed}
	if _, err := s.repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: context.Background()}, jobID, disallowed, updates); err != nil {
		s.log.Warn("Job update failed", "job_id", jobID, "error", err)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
