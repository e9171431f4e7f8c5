package timing

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/cohsim/instrumentation/hooking"
)

// SerialEngine dispatches events one at a time on the calling goroutine.
// Within a cycle, primary events run before secondary ones and each queue is
// first-in first-out.
type SerialEngine struct {
	*hooking.HookableBase

	now atomic.Uint64

	primary   eventQueue
	secondary eventQueue

	// running serializes Run calls. dispatching is held while one event is
	// handled, so Pause can wait for the handler to return.
	running     sync.Mutex
	dispatching sync.Mutex

	pausedLock sync.Mutex
	paused     bool

	numHandled atomic.Uint64
}

// NewSerialEngine creates a SerialEngine at cycle 0.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		HookableBase: hooking.NewHookableBase(),
		primary:      newScheduledEventQueue(),
		secondary:    newScheduledEventQueue(),
	}
}

// Schedule registers an event. Scheduling into the past panics.
func (e *SerialEngine) Schedule(evt ScheduledEvent) {
	if now := e.CurrentTime(); evt.Time < now {
		panic(fmt.Sprintf(
			"timing: cannot schedule %s at cycle %d, now is %d",
			reflect.TypeOf(evt.Event), evt.Time, now,
		))
	}

	queued := evt
	if evt.IsSecondary {
		e.secondary.Push(&queued)
	} else {
		e.primary.Push(&queued)
	}
}

// Run handles events until no event is left. The first error returned by a
// handler stops the run and is returned.
func (e *SerialEngine) Run() error {
	return e.run(func(*ScheduledEvent) bool { return true })
}

// RunUntil handles the events scheduled at or before the given cycle. Later
// events stay queued for the next call.
func (e *SerialEngine) RunUntil(cycle VTimeInCycle) error {
	return e.run(func(evt *ScheduledEvent) bool { return evt.Time <= cycle })
}

func (e *SerialEngine) run(admit func(*ScheduledEvent) bool) error {
	e.running.Lock()
	defer e.running.Unlock()

	for {
		evt := e.peek()
		if evt == nil || !admit(evt) {
			return nil
		}

		if err := e.dispatch(); err != nil {
			return err
		}
	}
}

func (e *SerialEngine) dispatch() error {
	e.dispatching.Lock()
	defer e.dispatching.Unlock()

	evt := e.pop()
	e.now.Store(uint64(evt.Time))

	ctx := hooking.HookCtx{Domain: e, Pos: HookPosBeforeEvent, Item: evt}
	e.InvokeHook(ctx)

	var err error
	if evt.Handler != nil {
		err = evt.Handler.Handle(evt.Event)
	}

	e.numHandled.Add(1)

	ctx.Pos = HookPosAfterEvent
	e.InvokeHook(ctx)

	return err
}

// peek returns the next event without removing it, or nil.
func (e *SerialEngine) peek() *ScheduledEvent {
	p, s := e.primary.Peek(), e.secondary.Peek()

	switch {
	case p == nil:
		return s
	case s == nil || p.Time <= s.Time:
		return p
	default:
		return s
	}
}

func (e *SerialEngine) pop() *ScheduledEvent {
	next := e.peek()
	if next == e.primary.Peek() {
		return e.primary.Pop()
	}

	return e.secondary.Pop()
}

// Pause blocks until the event being handled, if any, returns, and then
// keeps the engine from dispatching until Continue is called.
func (e *SerialEngine) Pause() {
	e.pausedLock.Lock()
	defer e.pausedLock.Unlock()

	if e.paused {
		return
	}

	e.dispatching.Lock()
	e.paused = true
}

// Continue resumes dispatching after a Pause.
func (e *SerialEngine) Continue() {
	e.pausedLock.Lock()
	defer e.pausedLock.Unlock()

	if !e.paused {
		return
	}

	e.paused = false
	e.dispatching.Unlock()
}

// CurrentTime returns the cycle of the event handled last.
func (e *SerialEngine) CurrentTime() VTimeInCycle {
	return VTimeInCycle(e.now.Load())
}

// NumHandledEvents returns how many events the engine has dispatched.
func (e *SerialEngine) NumHandledEvents() uint64 {
	return e.numHandled.Load()
}

// Pending returns the number of events waiting in the queues.
func (e *SerialEngine) Pending() int {
	return e.primary.Len() + e.secondary.Len()
}
