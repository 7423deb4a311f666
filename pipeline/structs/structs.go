// Package structs defines the domain types shared across the pipeline:
// jobs, capability states and the messages flowing through the queues.
package structs

import (
	"time"
)

// ItemType identifies the kind of uploaded media.
type ItemType string

// Item types.
const (
	ItemImage ItemType = "image"
	ItemVideo ItemType = "video"
)

// Status is the lifecycle state of one capability for one job.
type Status string

// Capability statuses. Pending is the initial state; Completed and Failed
// are terminal and never transition back.
const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether the status is Completed or Failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusFailed
}

// CapabilityState is one capability's outcome for one job. Payload is
// opaque to the ledger: stored and returned verbatim.
type CapabilityState struct {
	Status  Status `bson:"status" json:"status"`
	Payload any    `bson:"payload,omitempty" json:"payload,omitempty"`
}

// Job is one uploaded item and the per-capability progress of its analysis.
type Job struct {
	JobID                 string                     `bson:"item_id" json:"item_id"`
	ItemType              ItemType                   `bson:"item_type" json:"item_type"`
	MediaRef              string                     `bson:"media_ref" json:"media_ref"`
	DerivedRefs           []string                   `bson:"derived_refs,omitempty" json:"derived_refs,omitempty"`
	RequestedCapabilities []string                   `bson:"services" json:"services"`
	Languages             []string                   `bson:"languages" json:"languages"`
	FrameIntervalSeconds  int                        `bson:"frame_second" json:"frame_second"`
	VideoLength           float64                    `bson:"video_length" json:"video_length"`
	CapabilityStates      map[string]CapabilityState `bson:"-" json:"capability_states"`
	CreatedAt             time.Time                  `bson:"created_at" json:"created_at"`
	UpdatedAt             time.Time                  `bson:"updated_at" json:"updated_at"`
}

// Done reports whether every capability has reached a terminal status.
// Computed on read; never persisted.
func (j *Job) Done() bool {
	if len(j.CapabilityStates) == 0 {
		return false
	}
	for _, state := range j.CapabilityStates {
		if !state.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// DispatchEvent starts fan-out for a newly registered job.
type DispatchEvent struct {
	JobID        string   `json:"item_id"`
	ItemType     ItemType `json:"item_type"`
	Capabilities []string `json:"services"`
	MediaRef     string   `json:"media_ref"`
	DerivedRefs  []string `json:"derived_refs,omitempty"`
	Languages    []string `json:"languages,omitempty"`
}

// WorkOrder is one unit of work routed to exactly one capability's queue.
// Exactly one of MediaRef, FrameRefs or Payload carries the inputs:
// MediaRef for whole-media work, FrameRefs for ordered per-frame work,
// Payload for dependent work derived from an upstream capability's result.
type WorkOrder struct {
	JobID      string   `json:"item_id"`
	Capability string   `json:"capability"`
	MediaRef   string   `json:"media_ref,omitempty"`
	FrameRefs  []string `json:"frame_refs,omitempty"`
	Languages  []string `json:"languages,omitempty"`
	Payload    any      `json:"payload,omitempty"`
}

// CompletionEvent reports a capability's terminal outcome for a job.
type CompletionEvent struct {
	JobID      string `json:"item_id"`
	Capability string `json:"capability"`
	Status     Status `json:"status"`
	Payload    any    `json:"payload,omitempty"`
}
