// Package simulation assembles a cache hierarchy together with the services
// around it: tracing, data recording, the monitor and the protocol log.
package simulation

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sarchlab/cohsim/datarecording"
	"github.com/sarchlab/cohsim/mem/acceptancetests/memaccessagent"
	"github.com/sarchlab/cohsim/mem/accesstrace"
	"github.com/sarchlab/cohsim/mem/coherence"
	"github.com/sarchlab/cohsim/monitoring"
	"github.com/sarchlab/cohsim/noc"
	"github.com/sarchlab/cohsim/timing"
	"github.com/sarchlab/cohsim/tracing"
)

// A Simulation owns the engine, the system and the services that observe
// them.
type Simulation struct {
	id     string
	engine *timing.SerialEngine
	system *coherence.System

	dataRecorder datarecording.DataRecorder
	dbTracer     *tracing.DBTracer
	monitor      *monitoring.Monitor
	monitorURL   string
	progress     *monitoring.ProgressBar
	latency      *tracing.AverageTimeTracer
	steps        *tracing.StepCountTracer
	traffic      map[string]*noc.TrafficCounter

	statsRecorded bool
	terminated    bool
}

// ID returns the unique name of the run.
func (s *Simulation) ID() string {
	return s.id
}

// Engine returns the engine of the simulation.
func (s *Simulation) Engine() *timing.SerialEngine {
	return s.engine
}

// System returns the simulated cache hierarchy.
func (s *Simulation) System() *coherence.System {
	return s.system
}

// DataRecorder returns the recorder, or nil when recording is off.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// Monitor returns the monitor, or nil when monitoring is off.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns the address of the monitoring server.
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

// Latency returns the tracer that measures access latencies.
func (s *Simulation) Latency() *tracing.AverageTimeTracer {
	return s.latency
}

// Steps returns the tracer that counts the protocol steps of the accesses.
func (s *Simulation) Steps() *tracing.StepCountTracer {
	return s.steps
}

// Traffic returns the per-size message counter of a network.
func (s *Simulation) Traffic(network string) (*noc.TrafficCounter, bool) {
	c, ok := s.traffic[network]
	return c, ok
}

// RunTrace issues the accesses of a trace and runs until all of them
// complete. It returns the responses in completion order.
func (s *Simulation) RunTrace(
	accesses []accesstrace.Access,
) ([]coherence.AccessRsp, error) {
	s.expectAccesses(len(accesses))

	rsps := make([]coherence.AccessRsp, 0, len(accesses))

	err := accesstrace.Issue(s.system, accesses,
		func(_ accesstrace.Access, rsp coherence.AccessRsp) {
			rsps = append(rsps, rsp)
		})
	if err != nil {
		return nil, err
	}

	if err := s.run(); err != nil {
		return rsps, err
	}

	if len(rsps) != len(accesses) {
		return rsps, errors.Errorf("%d of %d accesses did not complete",
			len(accesses)-len(rsps), len(accesses))
	}

	return rsps, nil
}

// RunRandom drives the system with a random agent that issues the given
// number of loads and stores. It fails if any load returns a value other
// than the last one stored.
func (s *Simulation) RunRandom(
	numAccesses int,
	seed int64,
	maxAddress uint64,
) (*memaccessagent.MemAccessAgent, error) {
	agent := memaccessagent.MakeBuilder().
		WithEngine(s.engine).
		WithSystem(s.system).
		WithSeed(seed).
		WithMaxAddress(maxAddress).
		WithWriteLeft(numAccesses / 2).
		WithReadLeft(numAccesses - numAccesses/2).
		Build("agent")

	s.expectAccesses(numAccesses)
	agent.Start()

	if err := s.run(); err != nil {
		return agent, err
	}

	if !agent.Done() {
		return agent, errors.Errorf("%d accesses did not complete",
			agent.NumPending())
	}

	if mismatches := agent.Mismatches(); len(mismatches) > 0 {
		return agent, errors.Wrapf(mismatches[0],
			"%d loads returned stale values", len(mismatches))
	}

	return agent, nil
}

func (s *Simulation) expectAccesses(n int) {
	if s.progress != nil {
		s.progress.IncrementTotal(uint64(n))
	}
}

func (s *Simulation) run() error {
	if err := s.engine.Run(); err != nil {
		return errors.Wrap(err, "simulation failed")
	}

	if n := s.system.NumLiveFrames(); n > 0 {
		return errors.Errorf("%d transactions are still alive", n)
	}

	return s.system.CheckInvariants()
}

// Networks returns the names of the networks, sorted.
func (s *Simulation) Networks() []string {
	names := make([]string, 0, len(s.traffic))
	for name := range s.traffic {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Terminate records the final statistics and releases the services. It is
// safe to call more than once.
func (s *Simulation) Terminate() {
	if s.terminated {
		return
	}

	s.terminated = true

	if s.monitor != nil {
		s.monitor.StopServer()
	}

	if s.dataRecorder == nil {
		return
	}

	s.RecordStats()

	if s.dbTracer != nil {
		s.dbTracer.Terminate()
	}

	if err := s.dataRecorder.Close(); err != nil {
		panic(err)
	}
}
