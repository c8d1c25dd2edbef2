// Package handler implements the built-in ProjectChange handler that
// bridges a dispatched event.Event to a realm's launch template,
// dispatching on the event kind and logging-and-continuing on any
// per-event failure rather than aborting the run.
package handler

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/event"
)

// Handler is any object exposing the three dispatch operations. Call
// is fire-and-forget scheduling onto the caller's own concurrency
// runtime, in Go a goroutine; RunNow blocks until the handler's work
// completes, used by Core.RunOnce.
type Handler interface {
	HandleTask(ctx context.Context, payload map[string]interface{})
	Call(ctx context.Context, payload map[string]interface{})
	RunNow(ctx context.Context, payload map[string]interface{})
}

// base provides HandleTask, Call, and RunNow in terms of an embedder's
// handleTask closure, the shape every concrete handler shares. The
// exported HandleTask is promoted through embedding so concrete
// handlers satisfy Handler without redeclaring it themselves.
type base struct {
	handleTask func(ctx context.Context, payload map[string]interface{})
}

func (b *base) HandleTask(ctx context.Context, payload map[string]interface{}) {
	b.handleTask(ctx, payload)
}

func (b *base) Call(ctx context.Context, payload map[string]interface{}) {
	go b.handleTask(ctx, payload)
}

func (b *base) RunNow(ctx context.Context, payload map[string]interface{}) {
	b.handleTask(ctx, payload)
}

// Kind reports the event.Kind a Handler is registered against, used
// to validate external plug-in registrations.
type Kind interface {
	Kind() event.Kind
}

func logUnrecognizedKind(kind event.Kind) {
	logrus.WithField("event_kind", kind).Error("handler: unrecognized event kind, skipping registration")
}

// KnownKind reports whether kind is one of the enumerated event.Kind
// values handlers may declare themselves for.
func KnownKind(kind event.Kind) bool {
	switch kind {
	case event.ProjectChange, event.FlowcellReady, event.DeliveryReady:
		return true
	default:
		logUnrecognizedKind(kind)
		return false
	}
}
