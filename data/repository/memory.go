package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/medialens/medialens/pipeline/structs"
)

// memoryJobRepository is an in-memory JobRepository with the same merge
// semantics as the MongoDB implementation. Used by tests and local
// development runs without a database.
type memoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*structs.Job
}

// NewMemoryJobRepository creates an in-memory job repository.
func NewMemoryJobRepository() JobRepository {
	return &memoryJobRepository{jobs: make(map[string]*structs.Job)}
}

func (r *memoryJobRepository) Create(_ context.Context, job *structs.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()

	existing, ok := r.jobs[job.JobID]
	if !ok {
		clone := cloneJob(job)
		clone.CreatedAt = now
		clone.UpdatedAt = now
		r.jobs[job.JobID] = clone
		return nil
	}

	// Refresh base fields; keep capability outcomes already recorded.
	existing.ItemType = job.ItemType
	existing.MediaRef = job.MediaRef
	existing.DerivedRefs = append([]string(nil), job.DerivedRefs...)
	existing.RequestedCapabilities = append([]string(nil), job.RequestedCapabilities...)
	existing.Languages = append([]string(nil), job.Languages...)
	existing.FrameIntervalSeconds = job.FrameIntervalSeconds
	existing.VideoLength = job.VideoLength
	existing.UpdatedAt = now
	for name, state := range job.CapabilityStates {
		if _, known := existing.CapabilityStates[name]; !known {
			existing.CapabilityStates[name] = state
		}
	}
	return nil
}

func (r *memoryJobRepository) RecordCompletion(_ context.Context, jobID, capability string, status structs.Status, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		// Same as the mongo upsert: a completion for an unknown job
		// creates a bare record rather than failing.
		job = &structs.Job{
			JobID:            jobID,
			CapabilityStates: make(map[string]structs.CapabilityState),
			CreatedAt:        time.Now().UTC(),
		}
		r.jobs[jobID] = job
	}

	state := job.CapabilityStates[capability]
	state.Status = status
	if payload != nil {
		state.Payload = payload
	}
	job.CapabilityStates[capability] = state
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryJobRepository) FindByID(_ context.Context, jobID string) (*structs.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *memoryJobRepository) List(_ context.Context, skip, limit int64) ([]*structs.Job, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*structs.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		all = append(all, job)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	if skip >= total {
		return nil, total, nil
	}
	end := skip + limit
	if limit <= 0 || end > total {
		end = total
	}

	page := make([]*structs.Job, 0, end-skip)
	for _, job := range all[skip:end] {
		clone := cloneJob(job)
		for name, state := range clone.CapabilityStates {
			state.Payload = nil
			clone.CapabilityStates[name] = state
		}
		page = append(page, clone)
	}
	return page, total, nil
}

func (r *memoryJobRepository) Stuck(_ context.Context, threshold time.Duration) ([]*structs.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-threshold)

	var stuck []*structs.Job
	for _, job := range r.jobs {
		if job.UpdatedAt.After(cutoff) || job.Done() {
			continue
		}
		clone := cloneJob(job)
		for name, state := range clone.CapabilityStates {
			state.Payload = nil
			clone.CapabilityStates[name] = state
		}
		stuck = append(stuck, clone)
	}
	sort.Slice(stuck, func(i, j int) bool { return stuck[i].UpdatedAt.Before(stuck[j].UpdatedAt) })
	return stuck, nil
}

func cloneJob(job *structs.Job) *structs.Job {
	clone := *job
	clone.DerivedRefs = append([]string(nil), job.DerivedRefs...)
	clone.RequestedCapabilities = append([]string(nil), job.RequestedCapabilities...)
	clone.Languages = append([]string(nil), job.Languages...)
	clone.CapabilityStates = make(map[string]structs.CapabilityState, len(job.CapabilityStates))
	for name, state := range job.CapabilityStates {
		clone.CapabilityStates[name] = state
	}
	return &clone
}
