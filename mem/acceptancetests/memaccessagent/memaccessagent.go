// Package memaccessagent drives a cache hierarchy with random loads and
// stores and checks that every load returns the last value stored.
package memaccessagent

import (
	"log"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/sarchlab/cohsim/mem/coherence"
	"github.com/sarchlab/cohsim/timing"
)

var dumpLog = false

type tickEvent struct{}

// A MemAccessAgent issues random accesses into the leaf modules of a System,
// at most one per cycle, and never two at a time to the same address.
type MemAccessAgent struct {
	name   string
	engine timing.EventScheduler
	system *coherence.System
	rng    *rand.Rand

	Modules     []string
	MaxAddress  uint64
	MaxInflight int

	WriteLeft     int
	ReadLeft      int
	KnownMemValue map[uint64]uint64

	pending    map[uint64]coherence.AccessKind
	mismatches []error
	ticking    bool
	completed  int
}

// Name returns the name of the agent.
func (a *MemAccessAgent) Name() string {
	return a.name
}

// Start schedules the first tick.
func (a *MemAccessAgent) Start() {
	if a.ticking {
		return
	}

	a.ticking = true
	a.engine.Schedule(timing.ScheduledEvent{
		Event:   tickEvent{},
		Time:    a.engine.CurrentTime(),
		Handler: a,
	})
}

// Handle issues at most one access per tick.
func (a *MemAccessAgent) Handle(event any) error {
	if _, ok := event.(tickEvent); !ok {
		return errors.Errorf("%s: unknown event type %T", a.name, event)
	}

	if err := a.tick(); err != nil {
		return err
	}

	if a.ReadLeft == 0 && a.WriteLeft == 0 {
		a.ticking = false
		return nil
	}

	a.engine.Schedule(timing.ScheduledEvent{
		Event:   tickEvent{},
		Time:    a.engine.CurrentTime() + 1,
		Handler: a,
	})

	return nil
}

func (a *MemAccessAgent) tick() error {
	if len(a.pending) >= a.MaxInflight {
		return nil
	}

	if a.shouldRead() {
		return a.doRead()
	}

	if a.WriteLeft > 0 {
		return a.doWrite()
	}

	return nil
}

func (a *MemAccessAgent) shouldRead() bool {
	if a.ReadLeft == 0 {
		return false
	}

	if a.WriteLeft == 0 {
		return true
	}

	if len(a.KnownMemValue) == 0 {
		return false
	}

	return a.rng.Float64() > 0.5
}

func (a *MemAccessAgent) randomAddress() uint64 {
	return a.rng.Uint64() % (a.MaxAddress / 8) * 8
}

func (a *MemAccessAgent) randomModule() string {
	return a.Modules[a.rng.Intn(len(a.Modules))]
}

func (a *MemAccessAgent) doRead() error {
	address := a.randomAddress()
	if _, busy := a.pending[address]; busy {
		return nil
	}

	err := a.issue(coherence.AccessReq{
		Kind:    coherence.AccessLoad,
		Module:  a.randomModule(),
		Address: address,
	})
	if err != nil {
		return err
	}

	a.ReadLeft--

	return nil
}

func (a *MemAccessAgent) doWrite() error {
	address := a.randomAddress()
	if _, busy := a.pending[address]; busy {
		return nil
	}

	value := a.rng.Uint64()

	err := a.issue(coherence.AccessReq{
		Kind:    coherence.AccessStore,
		Module:  a.randomModule(),
		Address: address,
		Value:   value,
	})
	if err != nil {
		return err
	}

	a.WriteLeft--
	a.KnownMemValue[address] = value

	return nil
}

func (a *MemAccessAgent) issue(req coherence.AccessReq) error {
	_, err := a.system.Access(req, a.onComplete)
	if err != nil {
		return errors.Wrapf(err, "%s", a.name)
	}

	a.pending[req.Address] = req.Kind

	if dumpLog {
		log.Printf("%d, %s, %s, %s, 0x%X\n",
			a.engine.CurrentTime(), a.name, req.Kind, req.Module, req.Address)
	}

	return nil
}

func (a *MemAccessAgent) onComplete(rsp coherence.AccessRsp) {
	delete(a.pending, rsp.Address)
	a.completed++

	if rsp.Kind != coherence.AccessLoad {
		return
	}

	expected := a.KnownMemValue[rsp.Address]
	if rsp.Value != expected {
		a.mismatches = append(a.mismatches, errors.Errorf(
			"load 0x%X at %s in cycle %d returned %d, expected %d",
			rsp.Address, rsp.Module, rsp.FinishCycle, rsp.Value, expected))
	}
}

// NumPending returns the number of issued accesses that have not completed.
func (a *MemAccessAgent) NumPending() int {
	return len(a.pending)
}

// NumCompleted returns the number of completed accesses.
func (a *MemAccessAgent) NumCompleted() int {
	return a.completed
}

// Mismatches returns one error per load that returned an unexpected value.
func (a *MemAccessAgent) Mismatches() []error {
	return a.mismatches
}

// Done tells if all the accesses are issued and completed.
func (a *MemAccessAgent) Done() bool {
	return a.ReadLeft == 0 && a.WriteLeft == 0 && len(a.pending) == 0
}
