package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/medialens/medialens/logging/logger"
	"github.com/medialens/medialens/pipeline/capability"
	"github.com/medialens/medialens/pipeline/ledger"
	"github.com/medialens/medialens/pipeline/structs"
	"github.com/medialens/medialens/storage"
)

// ErrInvalidRequest marks a registration rejected before any side effect.
var ErrInvalidRequest = errors.New("invalid request")

// videoExtensions lists the file extensions treated as video uploads.
// Everything else is handled as a still image.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

// Publisher publishes a JSON message to a named queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, message any) error
}

// RegisterInput carries one upload into the pipeline.
type RegisterInput struct {
	FileName             string
	Reader               io.Reader
	Capabilities         []string
	Languages            []string
	FrameIntervalSeconds int
}

// Gateway accepts uploads, persists the original media and any derived
// frames, seeds the job ledger and kicks off fan-out dispatch.
type Gateway struct {
	table     *capability.Table
	store     storage.Interface
	ledger    *ledger.Service
	publisher Publisher
	extractor Extractor
	logger    *logger.Logger
}

// NewGateway creates the ingest gateway.
func NewGateway(table *capability.Table, store storage.Interface, led *ledger.Service, pub Publisher, ext Extractor, log *logger.Logger) *Gateway {
	return &Gateway{
		table:     table,
		store:     store,
		ledger:    led,
		publisher: pub,
		extractor: ext,
		logger:    log,
	}
}

// Register validates the upload, stores the media, extracts frames for
// videos, registers the job as all pending and publishes the dispatch
// event. Returns the new job id.
func (g *Gateway) Register(ctx context.Context, input *RegisterInput) (*structs.Job, error) {
	if input.FileName == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidRequest)
	}
	if len(input.Capabilities) == 0 {
		return nil, fmt.Errorf("%w: at least one capability is required", ErrInvalidRequest)
	}
	if err := g.table.Validate(input.Capabilities); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	itemType := classify(input.FileName)
	if itemType == structs.ItemVideo && input.FrameIntervalSeconds <= 0 {
		return nil, fmt.Errorf("%w: frame interval is required for video uploads", ErrInvalidRequest)
	}

	jobID := uuid.New().String()

	job := &structs.Job{
		JobID:                 jobID,
		ItemType:              itemType,
		RequestedCapabilities: g.table.Expand(input.Capabilities),
		Languages:             input.Languages,
		FrameIntervalSeconds:  input.FrameIntervalSeconds,
	}

	switch itemType {
	case structs.ItemVideo:
		if err := g.ingestVideo(ctx, job, input); err != nil {
			return nil, err
		}
	default:
		mediaRef := fmt.Sprintf("images/%s/%s", jobID, filepath.Base(input.FileName))
		if _, err := g.store.Put(mediaRef, input.Reader); err != nil {
			return nil, fmt.Errorf("failed to store image %s: %w", mediaRef, err)
		}
		job.MediaRef = mediaRef
	}

	if err := g.ledger.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to register job %s: %w", jobID, err)
	}

	event := &structs.DispatchEvent{
		JobID:        job.JobID,
		ItemType:     job.ItemType,
		Capabilities: job.RequestedCapabilities,
		MediaRef:     job.MediaRef,
		DerivedRefs:  job.DerivedRefs,
		Languages:    job.Languages,
	}
	if err := g.publisher.Publish(ctx, capability.DispatchQueue, event); err != nil {
		return nil, fmt.Errorf("failed to publish dispatch for job %s: %w", jobID, err)
	}

	g.logger.Info(ctx, "job registered",
		"job_id", jobID,
		"item_type", itemType,
		"capabilities", job.RequestedCapabilities,
		"frames", len(job.DerivedRefs),
	)
	return job, nil
}

// ingestVideo spools the upload to disk so it can be probed and frame
// extracted, then uploads the original and every extracted still.
func (g *Gateway) ingestVideo(ctx context.Context, job *structs.Job, input *RegisterInput) error {
	local, err := spool(input.FileName, input.Reader)
	if err != nil {
		return err
	}
	defer func() {
		_ = os.RemoveAll(filepath.Dir(local))
	}()

	file, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("failed to reopen spooled upload: %w", err)
	}
	mediaRef := fmt.Sprintf("videos/%s/%s", job.JobID, filepath.Base(input.FileName))
	_, err = g.store.Put(mediaRef, file)
	_ = file.Close()
	if err != nil {
		return fmt.Errorf("failed to store video %s: %w", mediaRef, err)
	}
	job.MediaRef = mediaRef

	duration, err := g.extractor.Probe(ctx, local)
	if err != nil {
		return fmt.Errorf("failed to probe video for job %s: %w", job.JobID, err)
	}
	job.VideoLength = duration

	frames, err := g.extractor.Extract(ctx, local, input.FrameIntervalSeconds)
	if err != nil {
		return fmt.Errorf("failed to extract frames for job %s: %w", job.JobID, err)
	}
	// Stills share one directory; remove it once they are uploaded.
	defer func() {
		_ = os.RemoveAll(filepath.Dir(frames[0].Path))
	}()

	for _, frame := range frames {
		ref := fmt.Sprintf("videos/%s/frames/%s", job.JobID, filepath.Base(frame.Path))
		src, err := os.Open(frame.Path)
		if err != nil {
			return fmt.Errorf("failed to open frame %s: %w", frame.Path, err)
		}
		_, err = g.store.Put(ref, src)
		_ = src.Close()
		if err != nil {
			return fmt.Errorf("failed to store frame %s: %w", ref, err)
		}
		job.DerivedRefs = append(job.DerivedRefs, ref)
	}
	return nil
}

// spool writes the upload to a fresh temporary directory and returns the
// file path. The caller removes the directory.
func spool(fileName string, reader io.Reader) (string, error) {
	dir, err := os.MkdirTemp("", "medialens-upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(fileName))
	dst, err := os.Create(path)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("failed to spool upload: %w", err)
	}
	if _, err := io.Copy(dst, reader); err != nil {
		_ = dst.Close()
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("failed to spool upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("failed to spool upload: %w", err)
	}
	return path, nil
}

// classify maps a file name to its item type by extension.
func classify(fileName string) structs.ItemType {
	ext := strings.ToLower(filepath.Ext(fileName))
	if videoExtensions[ext] {
		return structs.ItemVideo
	}
	return structs.ItemImage
}
