// Package repository provides MongoDB-backed job persistence.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medialens/medialens/logging/logger"
	"github.com/medialens/medialens/pipeline/structs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no job exists for the given id.
var ErrNotFound = errors.New("job not found")

const (
	statusSuffix = "_status"
	resultSuffix = "_result"
)

// JobRepository defines the interface for job ledger operations.
//
// Capability outcomes live in the job document as flattened sub-fields,
// one pair per capability: `<capability>_status` and `<capability>_result`.
// That layout is what makes RecordCompletion a single atomic partial
// update; two capabilities completing concurrently touch disjoint fields.
type JobRepository interface {
	Create(ctx context.Context, job *structs.Job) error
	RecordCompletion(ctx context.Context, jobID, capability string, status structs.Status, payload any) error
	FindByID(ctx context.Context, jobID string) (*structs.Job, error)
	List(ctx context.Context, skip, limit int64) ([]*structs.Job, int64, error)
	Stuck(ctx context.Context, threshold time.Duration) ([]*structs.Job, error)
}

type jobRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

// NewJobRepository creates a new job repository instance.
func NewJobRepository(db *mongo.Database, log *logger.Logger) JobRepository {
	collection := db.Collection("processing_results")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "item_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		log.Warn(ctx, "failed to create index on item_id", "error", err)
	}

	return &jobRepository{
		collection: collection,
		logger:     log,
	}
}

// Create upserts the job keyed by item_id with every capability pending.
// Calling it again for the same id refreshes the base fields without
// clobbering capability outcomes already recorded.
func (r *jobRepository) Create(ctx context.Context, job *structs.Job) error {
	now := time.Now().UTC()

	set := bson.M{
		"item_id":      job.JobID,
		"item_type":    job.ItemType,
		"media_ref":    job.MediaRef,
		"services":     job.RequestedCapabilities,
		"languages":    job.Languages,
		"frame_second": job.FrameIntervalSeconds,
		"video_length": job.VideoLength,
		"updated_at":   now,
	}
	if len(job.DerivedRefs) > 0 {
		set["derived_refs"] = job.DerivedRefs
	}
	for name, state := range job.CapabilityStates {
		set[name+statusSuffix] = state.Status
	}

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"item_id": job.JobID},
		bson.M{
			"$set":         set,
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		r.logger.Error(ctx, "failed to create job", "item_id", job.JobID, "error", err)
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// RecordCompletion applies one capability's terminal outcome as an atomic
// partial update. The write is an upsert and never fails on a capability
// key the job document does not know yet; duplicate redeliveries simply
// overwrite with the same terminal state.
func (r *jobRepository) RecordCompletion(ctx context.Context, jobID, capability string, status structs.Status, payload any) error {
	set := bson.M{
		capability + statusSuffix: status,
		"updated_at":              time.Now().UTC(),
	}
	if payload != nil {
		set[capability+resultSuffix] = payload
	}

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"item_id": jobID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		r.logger.Error(ctx, "failed to record completion", "item_id", jobID, "capability", capability, "error", err)
		return fmt.Errorf("failed to record completion: %w", err)
	}

	return nil
}

// FindByID retrieves the full job record including capability payloads.
func (r *jobRepository) FindByID(ctx context.Context, jobID string) (*structs.Job, error) {
	var doc bson.M
	err := r.collection.FindOne(ctx, bson.M{"item_id": jobID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		r.logger.Error(ctx, "failed to find job", "item_id", jobID, "error", err)
		return nil, fmt.Errorf("failed to find job: %w", err)
	}

	return jobFromDocument(doc), nil
}

// List retrieves a page of jobs without the large capability payloads,
// newest first, along with the total count.
func (r *jobRepository) List(ctx context.Context, skip, limit int64) ([]*structs.Job, int64, error) {
	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit).
		SetProjection(resultlessProjection())

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error(ctx, "failed to list jobs", "error", err)
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer cursor.Close(ctx)

	jobs, err := jobsFromCursor(ctx, cursor)
	if err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

// Stuck returns jobs whose last update is older than the threshold and
// that still carry pending capabilities.
func (r *jobRepository) Stuck(ctx context.Context, threshold time.Duration) ([]*structs.Job, error) {
	cutoff := time.Now().UTC().Add(-threshold)

	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: 1}}).
		SetProjection(resultlessProjection())

	cursor, err := r.collection.Find(ctx, bson.M{"updated_at": bson.M{"$lt": cutoff}}, opts)
	if err != nil {
		r.logger.Error(ctx, "failed to query stuck jobs", "error", err)
		return nil, fmt.Errorf("failed to query stuck jobs: %w", err)
	}
	defer cursor.Close(ctx)

	jobs, err := jobsFromCursor(ctx, cursor)
	if err != nil {
		return nil, err
	}

	stuck := jobs[:0]
	for _, job := range jobs {
		if !job.Done() {
			stuck = append(stuck, job)
		}
	}
	return stuck, nil
}

// resultlessProjection excludes the `<capability>_result` payload fields.
// Mongo cannot project by suffix pattern, so the document id field is the
// only exclusion expressible server-side for unknown capability names;
// payload fields are stripped after decoding.
func resultlessProjection() bson.M {
	return bson.M{"_id": 0}
}

func jobsFromCursor(ctx context.Context, cursor *mongo.Cursor) ([]*structs.Job, error) {
	var jobs []*structs.Job
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode job: %w", err)
		}
		job := jobFromDocument(doc)
		for name, state := range job.CapabilityStates {
			state.Payload = nil
			job.CapabilityStates[name] = state
		}
		jobs = append(jobs, job)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return jobs, nil
}

// jobFromDocument rebuilds a Job from the flattened ledger document.
func jobFromDocument(doc bson.M) *structs.Job {
	job := &structs.Job{
		JobID:                 asString(doc["item_id"]),
		ItemType:              structs.ItemType(asString(doc["item_type"])),
		MediaRef:              asString(doc["media_ref"]),
		DerivedRefs:           asStringSlice(doc["derived_refs"]),
		RequestedCapabilities: asStringSlice(doc["services"]),
		Languages:             asStringSlice(doc["languages"]),
		FrameIntervalSeconds:  asInt(doc["frame_second"]),
		VideoLength:           asFloat(doc["video_length"]),
		CapabilityStates:      make(map[string]structs.CapabilityState),
		CreatedAt:             asTime(doc["created_at"]),
		UpdatedAt:             asTime(doc["updated_at"]),
	}

	for key, value := range doc {
		name, ok := strings.CutSuffix(key, statusSuffix)
		if !ok || name == "" {
			continue
		}
		status := structs.Status(asString(value))
		if !status.Valid() {
			continue
		}
		job.CapabilityStates[name] = structs.CapabilityState{
			Status:  status,
			Payload: doc[name+resultSuffix],
		}
	}

	return job
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case bson.A:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case primitive.DateTime:
		return t.Time()
	}
	return time.Time{}
}
