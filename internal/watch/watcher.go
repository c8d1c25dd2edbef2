// Package watch implements independent loops that translate external
// changes — filesystem activity, the projects database change feed —
// into event.Event values delivered to a single callback, run as a set
// of independently-stoppable background loops under an errgroup.
package watch

import (
	"context"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/event"
)

// Emit delivers one event produced by a watcher.
type Emit func(event.Event)

// Watcher produces events onto Emit until Stop is called. Stop signals
// Start's loop and returns at once; it does not wait for the loop to
// quiesce. Start returns once its loop observes the signal, so a caller
// that needs quiescence waits for Start to return (Core.Stop does).
// Watchers share no state with each other.
type Watcher interface {
	Start(ctx context.Context, emit Emit) error
	Stop()
}
