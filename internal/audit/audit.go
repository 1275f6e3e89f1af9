// Package audit emits structured audit events for every mutating operation.
// The audit log itself is an external collaborator; this package defines the
// event contract and ships a zap-backed emitter plus a provenance-backed one
// for deployments without a separate collector.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/klarsikt-ab/kartotek/internal/provenance"
)

// Event is one audit record: who did what to which resource, and the
// justification when the action was review-gated.
type Event struct {
	Actor         string            `json:"actor"`
	Action        string            `json:"action"`
	ResourceType  string            `json:"resource_type"`
	ResourceID    string            `json:"resource_id"`
	Justification string            `json:"justification,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
	At            time.Time         `json:"at"`
}

// Resource types used in events.
const (
	ResourceMention = "mention"
	ResourceEntity  = "entity"
	ResourceBatch   = "batch"
)

// Logger receives audit events. Implementations must not drop events
// silently: a failed emit is returned to the caller.
type Logger interface {
	Emit(ctx context.Context, ev Event) error
}

// ZapLogger writes audit events to the process log. Suitable when a log
// shipper owns durability.
type ZapLogger struct{}

func (ZapLogger) Emit(_ context.Context, ev Event) error {
	zap.L().Info("audit",
		zap.String("actor", ev.Actor),
		zap.String("action", ev.Action),
		zap.String("resource_type", ev.ResourceType),
		zap.String("resource_id", ev.ResourceID),
		zap.String("justification", ev.Justification),
		zap.Any("details", ev.Details),
	)
	return nil
}

// ChainLogger appends audit events to the resource's provenance chain, so
// the audit trail shares the tamper evidence of the data it describes.
type ChainLogger struct {
	Chain *provenance.Chain
}

func (l ChainLogger) Emit(ctx context.Context, ev Event) error {
	details := map[string]string{
		"resource_type": ev.ResourceType,
	}
	for k, v := range ev.Details {
		details[k] = v
	}
	if ev.Justification != "" {
		details["justification"] = ev.Justification
	}
	_, err := l.Chain.Append(ctx, ev.ResourceID, ev.Action, ev.Actor, details)
	return err
}

// Nop discards events; test use only.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }
