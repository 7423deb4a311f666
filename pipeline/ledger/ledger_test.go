package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/medialens/medialens/data/repository"
	"github.com/medialens/medialens/logging/logger"
	"github.com/medialens/medialens/pipeline/structs"
)

func newTestService() *Service {
	return NewService(repository.NewMemoryJobRepository(), logger.StdLogger())
}

func registerJob(t *testing.T, svc *Service, id string, capabilities ...string) {
	t.Helper()
	err := svc.CreateJob(context.Background(), &structs.Job{
		JobID:                 id,
		ItemType:              structs.ItemImage,
		MediaRef:              "images/" + id + "/file.jpg",
		RequestedCapabilities: capabilities,
	})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
}

// TestCreateJobAllPending verifies registration sets every capability pending.
func TestCreateJobAllPending(t *testing.T) {
	svc := newTestService()
	registerJob(t, svc, "job-1", "object_detection", "transcription", "sentiment")

	job, err := svc.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if len(job.CapabilityStates) != 3 {
		t.Fatalf("capability states = %d, want 3", len(job.CapabilityStates))
	}
	for name, state := range job.CapabilityStates {
		if state.Status != structs.StatusPending {
			t.Errorf("capability %s status = %s, want pending", name, state.Status)
		}
	}
	if job.Done() {
		t.Error("Done() = true for freshly registered job")
	}
}

// TestRecordCompletionOutOfOrder verifies completions merge in any order
// and the done predicate flips only when every capability is terminal.
func TestRecordCompletionOutOfOrder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	registerJob(t, svc, "job-2", "object_detection", "ocr", "transcription")

	steps := []struct {
		capability string
		status     structs.Status
		done       bool
	}{
		{"transcription", structs.StatusCompleted, false},
		{"object_detection", structs.StatusFailed, false},
		{"ocr", structs.StatusCompleted, true},
	}

	for _, step := range steps {
		err := svc.RecordCompletion(ctx, &structs.CompletionEvent{
			JobID:      "job-2",
			Capability: step.capability,
			Status:     step.status,
			Payload:    map[string]any{"capability": step.capability},
		})
		if err != nil {
			t.Fatalf("RecordCompletion(%s) error = %v", step.capability, err)
		}

		job, err := svc.GetJob(ctx, "job-2")
		if err != nil {
			t.Fatalf("GetJob() error = %v", err)
		}
		if job.Done() != step.done {
			t.Errorf("after %s: Done() = %v, want %v", step.capability, job.Done(), step.done)
		}
	}
}

// TestRecordCompletionIdempotent verifies applying the same completion
// twice yields the same final record as applying it once.
func TestRecordCompletionIdempotent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	registerJob(t, svc, "job-3", "ocr")

	ev := &structs.CompletionEvent{
		JobID:      "job-3",
		Capability: "ocr",
		Status:     structs.StatusCompleted,
		Payload:    []any{map[string]any{"text": "hello"}},
	}

	for i := 0; i < 2; i++ {
		if err := svc.RecordCompletion(ctx, ev); err != nil {
			t.Fatalf("RecordCompletion() #%d error = %v", i+1, err)
		}
	}

	job, err := svc.GetJob(ctx, "job-3")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	state := job.CapabilityStates["ocr"]
	if state.Status != structs.StatusCompleted {
		t.Errorf("status = %s, want completed", state.Status)
	}
	if state.Payload == nil {
		t.Error("payload lost after duplicate delivery")
	}
}

// TestRecordCompletionRejectsPending verifies a terminal record can never
// be regressed to pending through the completion path.
func TestRecordCompletionRejectsPending(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	registerJob(t, svc, "job-4", "ocr")

	err := svc.RecordCompletion(ctx, &structs.CompletionEvent{
		JobID:      "job-4",
		Capability: "ocr",
		Status:     structs.StatusPending,
	})
	if err == nil {
		t.Error("RecordCompletion() accepted pending status")
	}
}

// TestRecordCompletionStaleCapability verifies a completion for a
// capability key the job does not carry still applies.
func TestRecordCompletionStaleCapability(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	registerJob(t, svc, "job-5", "transcription")

	err := svc.RecordCompletion(ctx, &structs.CompletionEvent{
		JobID:      "job-5",
		Capability: "sentiment",
		Status:     structs.StatusCompleted,
		Payload:    []any{"positive"},
	})
	if err != nil {
		t.Fatalf("RecordCompletion() error = %v", err)
	}

	job, err := svc.GetJob(ctx, "job-5")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if job.CapabilityStates["sentiment"].Status != structs.StatusCompleted {
		t.Errorf("sentiment status = %s, want completed", job.CapabilityStates["sentiment"].Status)
	}
}

// TestCreateJobIdempotent verifies a re-registration does not clobber a
// recorded completion.
func TestCreateJobIdempotent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	registerJob(t, svc, "job-6", "ocr")

	err := svc.RecordCompletion(ctx, &structs.CompletionEvent{
		JobID:      "job-6",
		Capability: "ocr",
		Status:     structs.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("RecordCompletion() error = %v", err)
	}

	registerJob(t, svc, "job-6", "ocr")

	job, err := svc.GetJob(ctx, "job-6")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if job.CapabilityStates["ocr"].Status != structs.StatusCompleted {
		t.Errorf("ocr status = %s after re-registration, want completed", job.CapabilityStates["ocr"].Status)
	}
}

// TestGetJobNotFound verifies unknown ids map to ErrNotFound.
func TestGetJobNotFound(t *testing.T) {
	svc := newTestService()

	if _, err := svc.GetJob(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("GetJob() error = %v, want ErrNotFound", err)
	}
}

// TestListJobsExcludesPayloads verifies the list view drops payloads and
// reports the total.
func TestListJobsExcludesPayloads(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	registerJob(t, svc, "job-7", "ocr")
	registerJob(t, svc, "job-8", "ocr")
	err := svc.RecordCompletion(ctx, &structs.CompletionEvent{
		JobID:      "job-7",
		Capability: "ocr",
		Status:     structs.StatusCompleted,
		Payload:    []any{"big payload"},
	})
	if err != nil {
		t.Fatalf("RecordCompletion() error = %v", err)
	}

	jobs, total, err := svc.ListJobs(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if total != 2 || len(jobs) != 2 {
		t.Fatalf("ListJobs() = %d jobs, total %d; want 2, 2", len(jobs), total)
	}
	for _, job := range jobs {
		for name, state := range job.CapabilityStates {
			if state.Payload != nil {
				t.Errorf("job %s capability %s still carries payload in list view", job.JobID, name)
			}
		}
	}
}

// TestStuckJobs verifies only non-terminal jobs past the threshold show up.
func TestStuckJobs(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	registerJob(t, svc, "job-9", "ocr")

	// Fresh job: not stuck yet.
	stuck, err := svc.StuckJobs(ctx, time.Hour)
	if err != nil {
		t.Fatalf("StuckJobs() error = %v", err)
	}
	if len(stuck) != 0 {
		t.Errorf("StuckJobs() = %d, want 0 for fresh job", len(stuck))
	}

	// Zero threshold falls back to the default rather than flagging
	// everything.
	stuck, err = svc.StuckJobs(ctx, 0)
	if err != nil {
		t.Fatalf("StuckJobs() error = %v", err)
	}
	if len(stuck) != 0 {
		t.Errorf("StuckJobs(0) = %d, want 0", len(stuck))
	}
}
