package router

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/medialens/medialens/data/repository"
	"github.com/medialens/medialens/logging/logger"
	"github.com/medialens/medialens/pipeline/capability"
	"github.com/medialens/medialens/pipeline/ledger"
	"github.com/medialens/medialens/pipeline/structs"
)

// fakePublisher records published messages per queue.
type fakePublisher struct {
	mu       sync.Mutex
	messages map[string][]any
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{messages: make(map[string][]any)}
}

func (p *fakePublisher) Publish(_ context.Context, queue string, message any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[queue] = append(p.messages[queue], message)
	return nil
}

func (p *fakePublisher) count(queue string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages[queue])
}

func newTestRouter(pub Publisher) *Router {
	ledgerSvc := ledger.NewService(repository.NewMemoryJobRepository(), logger.StdLogger())
	return New(capability.Defaults(), pub, ledgerSvc, logger.StdLogger())
}

// TestPlanDispatchVideo verifies input shaping for video jobs: per-frame
// capabilities get the frame sequence, whole-media ones the media ref.
func TestPlanDispatchVideo(t *testing.T) {
	r := newTestRouter(newFakePublisher())

	frames := []string{
		"videos/v1/frames/frame_000000.jpg",
		"videos/v1/frames/frame_000125.jpg",
		"videos/v1/frames/frame_000250.jpg",
	}
	orders := r.PlanDispatch(&structs.DispatchEvent{
		JobID:        "v1",
		ItemType:     structs.ItemVideo,
		Capabilities: []string{"object_detection", "transcription", "sentiment"},
		MediaRef:     "videos/v1/clip.mp4",
		DerivedRefs:  frames,
		Languages:    []string{"en"},
	})

	// sentiment is dependency-only: not dispatched eagerly
	if len(orders) != 2 {
		t.Fatalf("PlanDispatch() = %d orders, want 2", len(orders))
	}

	byCapability := make(map[string]*structs.WorkOrder)
	for _, order := range orders {
		byCapability[order.Capability] = order
	}

	det := byCapability["object_detection"]
	if det == nil {
		t.Fatal("no work order for object_detection")
	}
	if len(det.FrameRefs) != 3 || det.MediaRef != "" {
		t.Errorf("object_detection inputs = %v/%q, want frame refs", det.FrameRefs, det.MediaRef)
	}
	for i, ref := range frames {
		if det.FrameRefs[i] != ref {
			t.Errorf("frame ref %d = %s, want %s (positional contract)", i, det.FrameRefs[i], ref)
		}
	}

	tr := byCapability["transcription"]
	if tr == nil {
		t.Fatal("no work order for transcription")
	}
	if tr.MediaRef != "videos/v1/clip.mp4" || len(tr.FrameRefs) != 0 {
		t.Errorf("transcription inputs = %q/%v, want whole media", tr.MediaRef, tr.FrameRefs)
	}
	if len(tr.Languages) != 1 || tr.Languages[0] != "en" {
		t.Errorf("transcription languages = %v, want [en]", tr.Languages)
	}
	if len(det.Languages) != 0 {
		t.Errorf("object_detection languages = %v, want none", det.Languages)
	}
}

// TestPlanDispatchImage verifies every capability receives the media ref
// for image jobs.
func TestPlanDispatchImage(t *testing.T) {
	r := newTestRouter(newFakePublisher())

	orders := r.PlanDispatch(&structs.DispatchEvent{
		JobID:        "i1",
		ItemType:     structs.ItemImage,
		Capabilities: []string{"ocr"},
		MediaRef:     "images/i1/photo.png",
		Languages:    []string{"en", "de"},
	})

	if len(orders) != 1 {
		t.Fatalf("PlanDispatch() = %d orders, want 1", len(orders))
	}
	order := orders[0]
	if order.Capability != "ocr" || order.MediaRef != "images/i1/photo.png" || len(order.FrameRefs) != 0 {
		t.Errorf("unexpected order %+v", order)
	}
	if len(order.Languages) != 2 {
		t.Errorf("languages = %v, want [en de]", order.Languages)
	}
}

// TestPlanCompletionTranscription verifies exactly one sentiment order is
// emitted for a completed transcription, carrying its payload.
func TestPlanCompletionTranscription(t *testing.T) {
	r := newTestRouter(newFakePublisher())

	payload := []any{map[string]any{"text": "hello", "start": 0.0, "end": 1.0}}
	orders := r.PlanCompletion(&structs.CompletionEvent{
		JobID:      "v1",
		Capability: "transcription",
		Status:     structs.StatusCompleted,
		Payload:    payload,
	})

	if len(orders) != 1 {
		t.Fatalf("PlanCompletion() = %d orders, want 1", len(orders))
	}
	if orders[0].Capability != "sentiment" {
		t.Errorf("dependent capability = %s, want sentiment", orders[0].Capability)
	}
	if orders[0].Payload == nil {
		t.Error("dependent order lost upstream payload")
	}
}

// TestPlanCompletionOthers verifies no other completion emits dependent
// work, including failed transcriptions.
func TestPlanCompletionOthers(t *testing.T) {
	r := newTestRouter(newFakePublisher())

	cases := []structs.CompletionEvent{
		{JobID: "j", Capability: "object_detection", Status: structs.StatusCompleted},
		{JobID: "j", Capability: "ocr", Status: structs.StatusFailed},
		{JobID: "j", Capability: "transcription", Status: structs.StatusFailed},
		{JobID: "j", Capability: "sentiment", Status: structs.StatusCompleted},
	}
	for _, ev := range cases {
		if orders := r.PlanCompletion(&ev); len(orders) != 0 {
			t.Errorf("PlanCompletion(%s/%s) = %d orders, want 0", ev.Capability, ev.Status, len(orders))
		}
	}
}

// TestHandleDispatchPublishes verifies work orders land on the mapped
// capability queues.
func TestHandleDispatchPublishes(t *testing.T) {
	pub := newFakePublisher()
	r := newTestRouter(pub)

	body, _ := json.Marshal(structs.DispatchEvent{
		JobID:        "i2",
		ItemType:     structs.ItemImage,
		Capabilities: []string{"ocr", "classification"},
		MediaRef:     "images/i2/scan.jpg",
	})
	if err := r.HandleDispatch(context.Background(), body); err != nil {
		t.Fatalf("HandleDispatch() error = %v", err)
	}

	if pub.count("ocr.work") != 1 {
		t.Errorf("ocr.work got %d messages, want 1", pub.count("ocr.work"))
	}
	if pub.count("classification.work") != 1 {
		t.Errorf("classification.work got %d messages, want 1", pub.count("classification.work"))
	}
	if pub.count("sentiment.work") != 0 {
		t.Errorf("sentiment.work got %d messages, want 0", pub.count("sentiment.work"))
	}
}

// TestHandleDependencyTrigger verifies the transcription completion and
// only a completed one triggers the sentiment queue.
func TestHandleDependencyTrigger(t *testing.T) {
	pub := newFakePublisher()
	r := newTestRouter(pub)

	completed, _ := json.Marshal(structs.CompletionEvent{
		JobID:      "v2",
		Capability: "transcription",
		Status:     structs.StatusCompleted,
		Payload:    []any{map[string]any{"text": "hi"}},
	})
	if err := r.HandleDependencyTrigger(context.Background(), completed); err != nil {
		t.Fatalf("HandleDependencyTrigger() error = %v", err)
	}
	if pub.count("sentiment.work") != 1 {
		t.Errorf("sentiment.work got %d messages, want 1", pub.count("sentiment.work"))
	}

	failed, _ := json.Marshal(structs.CompletionEvent{
		JobID:      "v2",
		Capability: "transcription",
		Status:     structs.StatusFailed,
	})
	if err := r.HandleDependencyTrigger(context.Background(), failed); err != nil {
		t.Fatalf("HandleDependencyTrigger() error = %v", err)
	}
	if pub.count("sentiment.work") != 1 {
		t.Errorf("sentiment.work got %d messages after failed transcription, want still 1", pub.count("sentiment.work"))
	}
}

// TestHandleCompletionMergesLedger verifies the completion consumer
// writes through to the ledger.
func TestHandleCompletionMergesLedger(t *testing.T) {
	repo := repository.NewMemoryJobRepository()
	ledgerSvc := ledger.NewService(repo, logger.StdLogger())
	r := New(capability.Defaults(), newFakePublisher(), ledgerSvc, logger.StdLogger())
	ctx := context.Background()

	err := ledgerSvc.CreateJob(ctx, &structs.Job{
		JobID:                 "v3",
		ItemType:              structs.ItemVideo,
		RequestedCapabilities: []string{"transcription", "sentiment"},
	})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	body, _ := json.Marshal(structs.CompletionEvent{
		JobID:      "v3",
		Capability: "transcription",
		Status:     structs.StatusCompleted,
		Payload:    []any{map[string]any{"text": "hello"}},
	})
	if err := r.HandleCompletion(ctx, body); err != nil {
		t.Fatalf("HandleCompletion() error = %v", err)
	}

	job, err := ledgerSvc.GetJob(ctx, "v3")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if job.CapabilityStates["transcription"].Status != structs.StatusCompleted {
		t.Errorf("transcription status = %s, want completed", job.CapabilityStates["transcription"].Status)
	}
	if job.CapabilityStates["sentiment"].Status != structs.StatusPending {
		t.Errorf("sentiment status = %s, want pending", job.CapabilityStates["sentiment"].Status)
	}
	if job.Done() {
		t.Error("Done() = true with sentiment still pending")
	}
}

// TestHandleDispatchBadPayload verifies malformed events surface an error.
func TestHandleDispatchBadPayload(t *testing.T) {
	r := newTestRouter(newFakePublisher())

	if err := r.HandleDispatch(context.Background(), []byte("{not json")); err == nil {
		t.Error("HandleDispatch() accepted malformed body")
	}
}
