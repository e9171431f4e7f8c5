// Package timing provides the discrete-event engine that drives the
// simulation. Time advances in whole cycles.
package timing

import "github.com/sarchlab/cohsim/instrumentation/hooking"

// VTimeInCycle is the simulated time measured in cycles.
type VTimeInCycle uint64

// Handler processes events of various types.
// Events are plain data structs. Handlers use type switching to handle
// different event types:
//
//	func (h *MyHandler) Handle(event any) error {
//	    switch e := event.(type) {
//	    case *MyEvent:
//	        // handle MyEvent
//	    default:
//	        return fmt.Errorf("unknown event type: %T", event)
//	    }
//	    return nil
//	}
type Handler interface {
	Handle(event any) error
}

// TimeTeller exposes the current simulation cycle.
type TimeTeller interface {
	CurrentTime() VTimeInCycle
}

// EventScheduler schedules events in the simulation timeline.
type EventScheduler interface {
	TimeTeller
	Schedule(event ScheduledEvent)
}

// Engine keeps the discrete event simulation running.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Run processes all the events until the queue drains.
	Run() error

	// Pause stops the engine from dispatching more events until Continue is
	// called.
	Pause()

	// Continue resumes a paused engine.
	Continue()
}

// ScheduledEvent is the engine-facing wrapper for user-defined events.
type ScheduledEvent struct {
	// Event is the data payload to be delivered to the handler.
	Event any

	// Time is the cycle when the event should be processed.
	Time VTimeInCycle

	// Handler is the component that will process this event.
	Handler Handler

	// IsSecondary indicates if this event should be processed after
	// all primary events at the same time.
	IsSecondary bool

	seq uint64
}

// HookPosBeforeEvent and HookPosAfterEvent surround the handling of every
// event. The hook item is the *ScheduledEvent.
var (
	HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}
	HookPosAfterEvent  = &hooking.HookPos{Name: "AfterEvent"}
)
