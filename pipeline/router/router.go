// Package router is the fan-out/fan-in brain of the pipeline. It maps a
// dispatch event to independent capability work orders, and an upstream
// capability's completion to the dependent work orders it unlocks. The
// router holds no state of its own; every decision derives from the event
// and the capability table.
package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medialens/medialens/logging/logger"
	"github.com/medialens/medialens/pipeline/capability"
	"github.com/medialens/medialens/pipeline/ledger"
	"github.com/medialens/medialens/pipeline/structs"
)

// Publisher publishes a message to a named durable queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, message any) error
}

// Consumer runs a blocking consume loop on a named queue until the
// context is cancelled.
type Consumer interface {
	ConsumeForever(ctx context.Context, queue string, handler func(context.Context, []byte) error)
}

// Router dispatches work orders from pipeline events.
type Router struct {
	table     *capability.Table
	publisher Publisher
	ledger    *ledger.Service
	logger    *logger.Logger
}

// New creates a router.
func New(table *capability.Table, publisher Publisher, ledgerSvc *ledger.Service, log *logger.Logger) *Router {
	return &Router{
		table:     table,
		publisher: publisher,
		ledger:    ledgerSvc,
		logger:    log,
	}
}

// PlanDispatch maps a dispatch event to the set of work orders for its
// independently dispatchable capabilities. Video jobs hand per-frame
// capabilities the ordered frame sequence and whole-media capabilities
// the original media reference; image jobs hand every capability the
// media reference. Capabilities with an upstream dependency are not
// dispatched here. Pure function, no side effects.
func (r *Router) PlanDispatch(ev *structs.DispatchEvent) []*structs.WorkOrder {
	var orders []*structs.WorkOrder

	for _, name := range ev.Capabilities {
		spec, ok := r.table.Lookup(name)
		if !ok || !spec.Dispatchable() {
			continue
		}

		order := &structs.WorkOrder{
			JobID:      ev.JobID,
			Capability: spec.Name,
		}
		if ev.ItemType == structs.ItemVideo && spec.Inputs == capability.InputsFrames {
			order.FrameRefs = ev.DerivedRefs
		} else {
			order.MediaRef = ev.MediaRef
		}
		if spec.Languages {
			order.Languages = ev.Languages
		}

		orders = append(orders, order)
	}

	return orders
}

// PlanCompletion maps an upstream capability's completion to the
// dependent work orders it unlocks: zero unless the completion is
// COMPLETED and the table names dependents, in which case each dependent
// receives the upstream payload as its inputs. Pure function.
func (r *Router) PlanCompletion(ev *structs.CompletionEvent) []*structs.WorkOrder {
	if ev.Status != structs.StatusCompleted {
		return nil
	}

	var orders []*structs.WorkOrder
	for _, spec := range r.table.Dependents(ev.Capability) {
		orders = append(orders, &structs.WorkOrder{
			JobID:      ev.JobID,
			Capability: spec.Name,
			Payload:    ev.Payload,
		})
	}
	return orders
}

// HandleDispatch consumes one dispatch event and publishes its work
// orders to the capability queues.
func (r *Router) HandleDispatch(ctx context.Context, body []byte) error {
	var ev structs.DispatchEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("failed to parse dispatch event: %w", err)
	}

	orders := r.PlanDispatch(&ev)
	if err := r.publishOrders(ctx, orders); err != nil {
		return err
	}

	r.logger.Info(ctx, "job dispatched", "item_id", ev.JobID, "item_type", ev.ItemType, "orders", len(orders))
	return nil
}

// HandleCompletion consumes one completion event and merges it into the
// ledger.
func (r *Router) HandleCompletion(ctx context.Context, body []byte) error {
	var ev structs.CompletionEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("failed to parse completion event: %w", err)
	}

	return r.ledger.RecordCompletion(ctx, &ev)
}

// HandleDependencyTrigger consumes one upstream completion event and
// publishes the dependent work orders it unlocks.
func (r *Router) HandleDependencyTrigger(ctx context.Context, body []byte) error {
	var ev structs.CompletionEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("failed to parse completion event: %w", err)
	}

	orders := r.PlanCompletion(&ev)
	if err := r.publishOrders(ctx, orders); err != nil {
		return err
	}

	if len(orders) > 0 {
		r.logger.Info(ctx, "dependent work dispatched", "item_id", ev.JobID, "upstream", ev.Capability, "orders", len(orders))
	}
	return nil
}

// publishOrders sends each work order to its capability's queue.
func (r *Router) publishOrders(ctx context.Context, orders []*structs.WorkOrder) error {
	for _, order := range orders {
		spec, ok := r.table.Lookup(order.Capability)
		if !ok {
			return fmt.Errorf("no queue mapped for capability %q", order.Capability)
		}
		if err := r.publisher.Publish(ctx, spec.Queue, order); err != nil {
			return fmt.Errorf("failed to publish work order for %s: %w", order.Capability, err)
		}
	}
	return nil
}

// Run starts the router's consumer loops: the dispatch queue, the
// completion queue feeding the ledger, and the upstream-completion queue
// driving dependent dispatch. Each loop runs on its own goroutine and
// blocks until the context is cancelled.
func (r *Router) Run(ctx context.Context, consumer Consumer) {
	go consumer.ConsumeForever(ctx, capability.DispatchQueue, r.HandleDispatch)
	go consumer.ConsumeForever(ctx, capability.CompletionQueue, r.HandleCompletion)
	go consumer.ConsumeForever(ctx, capability.TranscriptionCompletionQueue, r.HandleDependencyTrigger)

	r.logger.Info(ctx, "router started",
		"queues", []string{capability.DispatchQueue, capability.CompletionQueue, capability.TranscriptionCompletionQueue})
}
