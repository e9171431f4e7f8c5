package noc

import (
	"github.com/sarchlab/cohsim/idgen"
	"github.com/sarchlab/cohsim/instrumentation/hooking"
	"github.com/sarchlab/cohsim/timing"
)

// Builder can build networks.
type Builder struct {
	engine     timing.EventScheduler
	ids        idgen.Generator
	latency    int
	bandwidth  int
	bufferSize int
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		latency:    1,
		bandwidth:  72,
		bufferSize: 1024,
	}
}

// WithEngine sets the engine that delivers arrivals and retries.
func (b Builder) WithEngine(engine timing.EventScheduler) Builder {
	b.engine = engine
	return b
}

// WithIDGenerator sets the generator of message IDs.
func (b Builder) WithIDGenerator(ids idgen.Generator) Builder {
	b.ids = ids
	return b
}

// WithLatency sets the number of cycles a message spends on the wire.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// WithBandwidth sets the number of bytes a node can push per cycle.
func (b Builder) WithBandwidth(bytesPerCycle int) Builder {
	b.bandwidth = bytesPerCycle
	return b
}

// WithBufferSize sets the size of the input buffer of each node in bytes.
func (b Builder) WithBufferSize(bytes int) Builder {
	b.bufferSize = bytes
	return b
}

// Build creates a network without any node.
func (b Builder) Build(name string) *Network {
	if b.engine == nil {
		panic("noc: engine is not set")
	}

	if b.latency < 0 || b.bandwidth <= 0 || b.bufferSize <= 0 {
		panic("noc: latency must be non-negative, bandwidth and buffer " +
			"size must be positive")
	}

	ids := b.ids
	if ids == nil {
		ids = idgen.New()
	}

	return &Network{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		engine:       b.engine,
		ids:          ids,
		latency:      b.latency,
		bandwidth:    b.bandwidth,
		bufSize:      b.bufferSize,
	}
}
