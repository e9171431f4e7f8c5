package simulation

import (
	"io"
	"log"

	"github.com/sarchlab/cohsim/config"
	"github.com/sarchlab/cohsim/datarecording"
	"github.com/sarchlab/cohsim/idgen"
	"github.com/sarchlab/cohsim/instrumentation/hooking"
	"github.com/sarchlab/cohsim/mem/coherence"
	"github.com/sarchlab/cohsim/mem/trace"
	"github.com/sarchlab/cohsim/monitoring"
	"github.com/sarchlab/cohsim/noc"
	"github.com/sarchlab/cohsim/timing"
	"github.com/sarchlab/cohsim/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	cfg            config.Config
	hasConfig      bool
	recordOn       bool
	outputFileName string
	traceTasks     bool
	traceSteps     bool
	monitorOn      bool
	monitorPort    int
	debugLog       io.Writer
	accessLog      io.Writer
	eventLog       io.Writer
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithConfig sets the hierarchy to simulate.
func (b Builder) WithConfig(cfg config.Config) Builder {
	b.cfg = cfg
	b.hasConfig = true

	return b
}

// WithRecording turns on the SQLite recorder. An empty file name gets a
// generated name.
func (b Builder) WithRecording(outputFileName string) Builder {
	b.recordOn = true
	b.outputFileName = outputFileName

	return b
}

// WithTaskTracing records every access as a task. With steps set, each
// protocol step is recorded as well. Tracing needs recording.
func (b Builder) WithTaskTracing(steps bool) Builder {
	b.traceTasks = true
	b.traceSteps = steps

	return b
}

// WithMonitoring starts the monitoring server on the given port. Port 0
// picks a random port.
func (b Builder) WithMonitoring(port int) Builder {
	b.monitorOn = true
	b.monitorPort = port

	return b
}

// WithDebugLog writes one line per protocol step into w.
func (b Builder) WithDebugLog(w io.Writer) Builder {
	b.debugLog = w
	return b
}

// WithAccessLog writes every finished access into w as a replayable trace
// line.
func (b Builder) WithAccessLog(w io.Writer) Builder {
	b.accessLog = w
	return b
}

// WithEventLog writes one line per engine event into w.
func (b Builder) WithEventLog(w io.Writer) Builder {
	b.eventLog = w
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.hasConfig {
		panic("simulation: config is not set")
	}

	if b.traceTasks && !b.recordOn {
		panic("simulation: task tracing requires recording")
	}
}

// Build builds the simulation. It panics if the configuration is invalid.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:      idgen.NewRunName("cohsim_"),
		engine:  timing.NewSerialEngine(),
		traffic: make(map[string]*noc.TrafficCounter),
	}

	sysBuilder, err := b.cfg.Builder(s.engine)
	if err != nil {
		panic(err)
	}

	s.system = sysBuilder.Build("system")

	for _, n := range s.system.Networks() {
		counter := noc.NewTrafficCounter()
		n.AcceptHook(counter)
		s.traffic[n.Name()] = counter
	}

	s.latency = tracing.NewAverageTimeTracer(s.engine,
		tracing.KindIs("req_in", ""))
	tracing.CollectTrace(s.system, s.latency)

	s.steps = tracing.NewStepCountTracer(tracing.KindIs("req_in", ""))
	tracing.CollectTrace(s.system, s.steps)

	if b.eventLog != nil {
		s.engine.AcceptHook(timing.NewEventLogger(log.New(b.eventLog, "", 0)))
	}

	if b.debugLog != nil {
		s.system.AcceptHook(coherence.NewProtocolLogger(
			log.New(b.debugLog, "", 0)))
	}

	if b.recordOn {
		path := b.outputFileName
		if path == "" {
			path = s.id
		}

		s.dataRecorder = datarecording.New(path)
		s.system.AcceptHook(trace.NewDBTracer(s.dataRecorder))
	}

	if b.accessLog != nil {
		s.system.AcceptHook(trace.NewTracer(log.New(b.accessLog, "", 0)))
	}

	if b.traceTasks {
		s.dbTracer = tracing.NewDBTracer(s.engine, s.dataRecorder,
			b.traceSteps)
		tracing.CollectTrace(s.system, s.dbTracer)
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor().WithPortNumber(b.monitorPort)
		s.monitor.RegisterEngine(s.engine)
		s.monitor.RegisterSystem(s.system)
		s.monitorURL = s.monitor.StartServer()

		s.progress = s.monitor.CreateProgressBar("accesses", 0)
		s.system.AcceptHook(hooking.AtPos(coherence.HookPosAccessDone,
			func(hooking.HookCtx) { s.progress.IncrementFinished(1) }))
	}

	return s
}
