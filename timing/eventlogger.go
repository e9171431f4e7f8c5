package timing

import (
	"log"
	"reflect"

	"github.com/sarchlab/cohsim/instrumentation/hooking"
)

// A named handler can be identified in the event log.
type named interface {
	Name() string
}

// EventLogger is a hook that prints every event before it is handled.
type EventLogger struct {
	logger *log.Logger
}

// NewEventLogger returns an EventLogger that writes into the logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Func writes the cycle, the event type and the handler name.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(*ScheduledEvent)
	if !ok {
		return
	}

	if handler, ok := evt.Handler.(named); ok {
		h.logger.Printf("%d, %s -> %s",
			evt.Time, reflect.TypeOf(evt.Event), handler.Name())
		return
	}

	h.logger.Printf("%d, %s", evt.Time, reflect.TypeOf(evt.Event))
}
