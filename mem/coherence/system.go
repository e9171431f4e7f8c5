// Package coherence simulates a tree of caches kept coherent with the MOESI
// protocol.
//
// Every multi-step transaction runs as a chain of events. A transaction keeps
// its context in a frame; a frame that calls another protocol creates a child
// frame, and the child resumes the parent when it returns.
package coherence

import (
	"fmt"
	"log"

	"github.com/pkg/errors"
	"github.com/sarchlab/cohsim/idgen"
	"github.com/sarchlab/cohsim/instrumentation/hooking"
	"github.com/sarchlab/cohsim/noc"
	"github.com/sarchlab/cohsim/timing"
	"github.com/sarchlab/cohsim/tracing"
)

// AccessKind is the type of an access issued by a processor.
type AccessKind int

// Supported access kinds.
const (
	AccessLoad AccessKind = iota + 1
	AccessStore
)

func (k AccessKind) String() string {
	switch k {
	case AccessLoad:
		return "load"
	case AccessStore:
		return "store"
	default:
		return fmt.Sprintf("AccessKind(%d)", int(k))
	}
}

// AccessReq describes a load or a store entering the hierarchy.
type AccessReq struct {
	Kind    AccessKind
	Module  string
	Address uint64

	// Value is the value written by a store.
	Value uint64
}

// AccessRsp reports a finished access.
type AccessRsp struct {
	AccessID    idgen.ID
	Kind        AccessKind
	Module      string
	Address     uint64
	Value       uint64
	IssueCycle  timing.VTimeInCycle
	FinishCycle timing.VTimeInCycle
	Retries     int
}

type access struct {
	req        AccessReq
	issueCycle timing.VTimeInCycle
	retries    int
	callback   func(AccessRsp)
}

// StepInfo is the hook item of HookPosStep.
type StepInfo struct {
	Cycle    timing.VTimeInCycle
	AccessID idgen.ID
	Module   string
	Protocol Protocol
	Step     string
	Address  uint64
}

// Hook positions raised by a System.
var (
	// HookPosStep fires before every protocol step. The item is a StepInfo.
	HookPosStep = &hooking.HookPos{Name: "ProtocolStep"}

	// HookPosAccessDone fires when an access completes. The item is the
	// AccessRsp.
	HookPosAccessDone = &hooking.HookPos{Name: "AccessDone"}
)

// A System is a cache hierarchy rooted at a main memory.
type System struct {
	*hooking.HookableBase

	name         string
	engine       timing.EventScheduler
	accessIDs    idgen.Generator
	frames       *frameArena
	modules      []*Module
	byName       map[string]*Module
	memory       *Module
	networks     []*noc.Network
	headerSize   int
	minBlockSize int
	values       *storage
}

// Name returns the name of the system.
func (s *System) Name() string {
	return s.name
}

// Modules returns all the modules, the main memory first and every module
// after its lower module.
func (s *System) Modules() []*Module {
	return s.modules
}

// Module returns a module by name.
func (s *System) Module(name string) (*Module, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// MainMemory returns the root of the hierarchy.
func (s *System) MainMemory() *Module {
	return s.memory
}

// Networks returns the interconnects, one per module that has upper modules.
func (s *System) Networks() []*noc.Network {
	return s.networks
}

// MinBlockSize returns the smallest block size, the granule of directory
// entries.
func (s *System) MinBlockSize() int {
	return s.minBlockSize
}

// CurrentTime returns the current cycle.
func (s *System) CurrentTime() timing.VTimeInCycle {
	return s.engine.CurrentTime()
}

// Access issues an access in the current cycle.
func (s *System) Access(req AccessReq, callback func(AccessRsp)) (idgen.ID, error) {
	return s.IssueAt(s.engine.CurrentTime(), req, callback)
}

// IssueAt issues an access at a given cycle. The callback is invoked when the
// access completes. Lock contention is retried internally and never reported.
func (s *System) IssueAt(
	cycle timing.VTimeInCycle,
	req AccessReq,
	callback func(AccessRsp),
) (idgen.ID, error) {
	mod, ok := s.byName[req.Module]
	if !ok {
		return 0, errors.Errorf("unknown module %q", req.Module)
	}

	if len(mod.upper) > 0 {
		return 0, errors.Errorf(
			"module %s has upper modules and cannot accept accesses", mod.name)
	}

	var start step

	switch req.Kind {
	case AccessLoad:
		start = stepLoad
	case AccessStore:
		start = stepStore
	default:
		return 0, errors.Errorf("invalid access kind %s", req.Kind)
	}

	now := s.engine.CurrentTime()
	if cycle < now {
		return 0, errors.Errorf("cannot issue at cycle %d, now is %d", cycle, now)
	}

	id := s.accessIDs.Generate()
	f := s.frames.create(id, mod, req.Address)
	f.access = &access{
		req:        req,
		issueCycle: cycle,
		callback:   callback,
	}

	s.engine.Schedule(timing.ScheduledEvent{
		Event:   &stepEvent{frame: f.id, step: start},
		Time:    cycle,
		Handler: s,
	})

	return id, nil
}

// Handle resumes the frame named by a step event.
func (s *System) Handle(event any) error {
	switch e := event.(type) {
	case *stepEvent:
		s.dispatch(e)
	default:
		return fmt.Errorf("coherence: unknown event type %T", event)
	}

	return nil
}

func (s *System) dispatch(e *stepEvent) {
	f := s.frames.get(e.frame)

	s.traceStep(f, e.step)

	switch e.step.protocol() {
	case ProtocolFindAndLock:
		s.findAndLock(f, e.step)
	case ProtocolLoad:
		s.load(f, e.step)
	case ProtocolStore:
		s.store(f, e.step)
	case ProtocolEvict:
		s.evict(f, e.step)
	case ProtocolReadRequest:
		s.readRequest(f, e.step)
	case ProtocolWriteRequest:
		s.writeRequest(f, e.step)
	case ProtocolInvalidate:
		s.invalidate(f, e.step)
	default:
		log.Panicf("coherence: step %d has no protocol", e.step)
	}
}

func (s *System) schedule(f *frame, st step, delay int) {
	s.engine.Schedule(timing.ScheduledEvent{
		Event:   &stepEvent{frame: f.id, step: st},
		Time:    s.engine.CurrentTime() + timing.VTimeInCycle(delay),
		Handler: s,
	})
}

// call starts a child frame at the first step of a protocol.
func (s *System) call(child *frame, st step) {
	s.schedule(child, st, 0)
}

// ret resumes the parent of f and frees f. A frame without parent completes
// its access.
func (s *System) ret(f *frame) {
	if f.parent == 0 {
		s.frames.release(f)
		s.complete(f)

		return
	}

	s.schedule(s.frames.parentOf(f), f.retStep, 0)
	s.frames.release(f)
}

func (s *System) complete(f *frame) {
	a := f.access
	if a == nil {
		log.Panicf("coherence: frame %d returns without a parent", f.id)
	}

	rsp := AccessRsp{
		AccessID:    f.accessID,
		Kind:        a.req.Kind,
		Module:      a.req.Module,
		Address:     a.req.Address,
		Value:       a.req.Value,
		IssueCycle:  a.issueCycle,
		FinishCycle: s.engine.CurrentTime(),
		Retries:     a.retries,
	}

	if a.req.Kind == AccessLoad {
		rsp.Value = s.values.load(a.req.Address)
	} else {
		s.values.store(a.req.Address, a.req.Value)
	}

	tracing.EndTask(f.accessID.String(), s)

	if s.NumHooks() > 0 {
		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Pos:    HookPosAccessDone,
			Item:   rsp,
		})
	}

	if a.callback != nil {
		a.callback(rsp)
	}
}

func (s *System) send(
	f *frame,
	net *noc.Network,
	src, dst *noc.Node,
	size int,
	arrive, retry step,
) {
	msg, ok := net.TrySend(src, dst, size, s,
		&stepEvent{frame: f.id, step: arrive},
		&stepEvent{frame: f.id, step: retry})
	if ok {
		f.msg = msg
	}
}

// link returns the network and the end points that carry the request of f.
// Replies travel in the opposite direction.
func (s *System) link(f *frame) (net *noc.Network, src, dst *noc.Node) {
	switch {
	case f.target != nil && f.mod.lower == f.target:
		return f.mod.lowNet, f.mod.lowNode, f.target.highNode
	case f.target != nil && f.target.lower == f.mod:
		return f.mod.highNet, f.mod.highNode, f.target.lowNode
	default:
		log.Panicf("coherence: %s and %s are not adjacent",
			f.mod.name, nameOf(f.target))
		return nil, nil, nil
	}
}

func (s *System) sendRequest(f *frame, arrive, retry step) {
	net, src, dst := s.link(f)
	s.send(f, net, src, dst, s.headerSize, arrive, retry)
}

func (s *System) receiveRequest(f *frame) {
	net, _, dst := s.link(f)
	net.Receive(dst, f.msg)
}

func (s *System) sendReply(f *frame, arrive, retry step) {
	if f.replySize == 0 {
		log.Panicf("coherence: frame %d replies without a size", f.id)
	}

	net, src, dst := s.link(f)
	s.send(f, net, dst, src, f.replySize, arrive, retry)
}

func (s *System) receiveReply(f *frame) {
	net, src, _ := s.link(f)
	net.Receive(src, f.msg)
}

// unlock releases the lock held by f and wakes up the waiters in arrival
// order in the next cycle.
func (s *System) unlock(f *frame) {
	if f.lock == nil {
		log.Panicf("coherence: frame %d unlocks without holding a lock", f.id)
	}

	woken := f.lock.Unlock()
	f.lock = nil

	for _, id := range woken {
		s.schedule(s.frames.get(id), stepFindAndLockWake, 1)
	}
}

func (s *System) traceStep(f *frame, st step) {
	if s.NumHooks() == 0 {
		return
	}

	where := f.mod
	if runsAtTarget(st) {
		where = f.target
	}

	if st == stepLoad || st == stepStore {
		tracing.StartTaskWithSpecificLocation(
			f.accessID.String(), "", s,
			"req_in", f.access.req.Kind.String(), f.mod.name,
			f.access.req)
	}

	tracing.AddTaskStep(f.accessID.String(), s, st.String())

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosStep,
		Item: StepInfo{
			Cycle:    s.engine.CurrentTime(),
			AccessID: f.accessID,
			Module:   where.name,
			Protocol: st.protocol(),
			Step:     st.String(),
			Address:  f.addr,
		},
	})
}

// runsAtTarget tells if a step executes on the module that a request is sent
// to.
func runsAtTarget(st step) bool {
	switch st {
	case stepEvictReceive, stepEvictWriteback, stepEvictWritebackExclusive,
		stepEvictWritebackFinish, stepEvictProcess, stepEvictReply:
		return true
	case stepReadRequestReceive, stepReadRequestAction,
		stepReadRequestUpdown, stepReadRequestUpdownMiss,
		stepReadRequestUpdownFinish, stepReadRequestDownup,
		stepReadRequestDownupFinish, stepReadRequestReply:
		return true
	case stepWriteRequestReceive, stepWriteRequestAction,
		stepWriteRequestExclusive, stepWriteRequestUpdown,
		stepWriteRequestUpdownFinish, stepWriteRequestDownup,
		stepWriteRequestReply:
		return true
	default:
		return false
	}
}

func nameOf(m *Module) string {
	if m == nil {
		return "<nil>"
	}

	return m.name
}
