// Package ledger owns the per-job state machine: it registers jobs with
// every capability pending and merges capability completions arriving in
// any order, from concurrent producers, possibly more than once.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/medialens/medialens/data/repository"
	"github.com/medialens/medialens/logging/logger"
	"github.com/medialens/medialens/pipeline/structs"
)

// ErrNotFound is returned when a job id is unknown to the ledger.
var ErrNotFound = repository.ErrNotFound

// DefaultStuckThreshold is how long a capability may stay pending before
// the job shows up in the stuck view.
const DefaultStuckThreshold = 30 * time.Minute

// Service provides ledger operations over the job repository.
type Service struct {
	repo   repository.JobRepository
	logger *logger.Logger
}

// NewService creates a ledger service.
func NewService(repo repository.JobRepository, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log,
	}
}

// CreateJob registers a job. Idempotent upsert keyed by job id; every
// capability in the job's state map starts pending.
func (s *Service) CreateJob(ctx context.Context, job *structs.Job) error {
	if job.JobID == "" {
		return fmt.Errorf("job id is required")
	}

	if job.CapabilityStates == nil {
		job.CapabilityStates = make(map[string]structs.CapabilityState, len(job.RequestedCapabilities))
	}
	for _, name := range job.RequestedCapabilities {
		if _, ok := job.CapabilityStates[name]; !ok {
			job.CapabilityStates[name] = structs.CapabilityState{Status: structs.StatusPending}
		}
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return err
	}

	s.logger.Info(ctx, "job registered", "item_id", job.JobID, "item_type", job.ItemType, "services", job.RequestedCapabilities)
	return nil
}

// RecordCompletion merges one capability's terminal outcome into the job.
// Only terminal statuses are accepted; a pending record can never be
// written through this path, so a late or duplicate redelivery cannot
// regress a terminal state.
func (s *Service) RecordCompletion(ctx context.Context, ev *structs.CompletionEvent) error {
	if ev.JobID == "" || ev.Capability == "" {
		return fmt.Errorf("completion event missing job id or capability")
	}
	if !ev.Status.IsTerminal() {
		return fmt.Errorf("completion status must be terminal, got %q", ev.Status)
	}

	if err := s.repo.RecordCompletion(ctx, ev.JobID, ev.Capability, ev.Status, ev.Payload); err != nil {
		return err
	}

	s.logger.Info(ctx, "completion recorded", "item_id", ev.JobID, "capability", ev.Capability, "status", ev.Status)
	return nil
}

// GetJob returns the full job record including capability payloads.
func (s *Service) GetJob(ctx context.Context, jobID string) (*structs.Job, error) {
	return s.repo.FindByID(ctx, jobID)
}

// ListJobs returns a page of jobs without capability payloads, newest
// first, and the total count.
func (s *Service) ListJobs(ctx context.Context, skip, limit int64) ([]*structs.Job, int64, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.repo.List(ctx, skip, limit)
}

// StuckJobs returns jobs that still carry pending capabilities and have
// not been touched within the threshold.
func (s *Service) StuckJobs(ctx context.Context, threshold time.Duration) ([]*structs.Job, error) {
	if threshold <= 0 {
		threshold = DefaultStuckThreshold
	}
	return s.repo.Stuck(ctx, threshold)
}
