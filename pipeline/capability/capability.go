// Package capability holds the dispatch table mapping analysis capabilities
// to their work queues, input shaping and dependencies. The router is a
// data-driven interpreter of this table; adding a capability is a
// configuration change, not a code change.
package capability

import (
	"fmt"
	"sort"

	"github.com/medialens/medialens/config"
)

// Well-known capability names.
const (
	ObjectDetection = "object_detection"
	Classification  = "classification"
	OCR             = "ocr"
	Transcription   = "transcription"
	Sentiment       = "sentiment"
)

// Pipeline queue names. Capability work queues come from the table.
const (
	DispatchQueue                = "dispatch"
	CompletionQueue              = "completion"
	TranscriptionCompletionQueue = "transcription.completion"
)

// Input shaping rules.
const (
	InputsFrames = "frames" // video jobs receive the ordered frame sequence
	InputsMedia  = "media"  // jobs receive the original media reference
)

// Spec describes one capability: the queue its work orders go to, how
// inputs are shaped, whether it takes language hints, and an optional
// upstream capability whose completion triggers it.
type Spec struct {
	Name      string
	Queue     string
	Inputs    string
	Languages bool
	DependsOn string
}

// Dispatchable reports whether the capability is dispatched eagerly at
// registration. Capabilities with an upstream dependency are only ever
// dispatched from that capability's completion.
func (s *Spec) Dispatchable() bool {
	return s.DependsOn == ""
}

// Table is the capability dispatch table.
type Table struct {
	specs map[string]*Spec
}

// Defaults returns the built-in capability table.
func Defaults() *Table {
	return NewTable([]*Spec{
		{Name: ObjectDetection, Queue: "object_detection.work", Inputs: InputsFrames},
		{Name: Classification, Queue: "classification.work", Inputs: InputsFrames},
		{Name: OCR, Queue: "ocr.work", Inputs: InputsFrames, Languages: true},
		{Name: Transcription, Queue: "transcription.work", Inputs: InputsMedia, Languages: true},
		{Name: Sentiment, Queue: "sentiment.work", DependsOn: Transcription},
	})
}

// NewTable builds a table from specs.
func NewTable(specs []*Spec) *Table {
	t := &Table{specs: make(map[string]*Spec, len(specs))}
	for _, spec := range specs {
		t.specs[spec.Name] = spec
	}
	return t
}

// FromConfig builds a table from configuration, falling back to the
// built-in defaults when no capabilities are configured.
func FromConfig(cfg *config.Pipeline) *Table {
	if cfg == nil || len(cfg.Capabilities) == 0 {
		return Defaults()
	}
	specs := make([]*Spec, 0, len(cfg.Capabilities))
	for _, c := range cfg.Capabilities {
		specs = append(specs, &Spec{
			Name:      c.Name,
			Queue:     c.Queue,
			Inputs:    c.Inputs,
			Languages: c.Languages,
			DependsOn: c.DependsOn,
		})
	}
	return NewTable(specs)
}

// Lookup returns the spec for a capability name.
func (t *Table) Lookup(name string) (*Spec, bool) {
	spec, ok := t.specs[name]
	return spec, ok
}

// Dependents returns the capabilities triggered by the given upstream
// capability's completion, in stable order.
func (t *Table) Dependents(upstream string) []*Spec {
	var deps []*Spec
	for _, spec := range t.specs {
		if spec.DependsOn == upstream {
			deps = append(deps, spec)
		}
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })
	return deps
}

// Validate checks that every requested capability is known, and that a
// dependent capability is only requested alongside its upstream.
func (t *Table) Validate(requested []string) error {
	present := make(map[string]bool, len(requested))
	for _, name := range requested {
		present[name] = true
	}
	for _, name := range requested {
		spec, ok := t.specs[name]
		if !ok {
			return fmt.Errorf("unknown capability %q", name)
		}
		if !spec.Dispatchable() && !present[spec.DependsOn] {
			return fmt.Errorf("capability %q is only dispatched after %s completes", name, spec.DependsOn)
		}
	}
	return nil
}

// Expand applies the implied-capability rule: for every requested
// capability, the capabilities depending on it are added to the set.
// The result preserves the requested order with implied capabilities
// appended; duplicates are dropped. Expand is idempotent.
func (t *Table) Expand(requested []string) []string {
	seen := make(map[string]bool, len(requested))
	final := make([]string, 0, len(requested)+1)
	for _, name := range requested {
		if seen[name] {
			continue
		}
		seen[name] = true
		final = append(final, name)
	}
	for _, name := range requested {
		for _, dep := range t.Dependents(name) {
			if seen[dep.Name] {
				continue
			}
			seen[dep.Name] = true
			final = append(final, dep.Name)
		}
	}
	return final
}
