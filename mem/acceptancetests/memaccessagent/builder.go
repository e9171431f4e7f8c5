package memaccessagent

import (
	"math/rand"

	"github.com/sarchlab/cohsim/mem/coherence"
	"github.com/sarchlab/cohsim/timing"
)

// Builder can build MemAccessAgents.
type Builder struct {
	engine      timing.EventScheduler
	system      *coherence.System
	seed        int64
	modules     []string
	maxAddress  uint64
	maxInflight int
	writeLeft   int
	readLeft    int
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		maxAddress:  64 * 1024,
		maxInflight: 16,
		writeLeft:   1000,
		readLeft:    1000,
	}
}

// WithEngine sets the engine that the agent ticks on.
func (b Builder) WithEngine(engine timing.EventScheduler) Builder {
	b.engine = engine
	return b
}

// WithSystem sets the system that receives the accesses. By default the
// agent issues to every leaf module of the system.
func (b Builder) WithSystem(system *coherence.System) Builder {
	b.system = system
	return b
}

// WithSeed sets the seed of the address and value generator.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithModules restricts the modules that accesses enter at.
func (b Builder) WithModules(names ...string) Builder {
	b.modules = append([]string(nil), names...)
	return b
}

// WithMaxAddress sets the size of the address range.
func (b Builder) WithMaxAddress(addr uint64) Builder {
	b.maxAddress = addr
	return b
}

// WithMaxInflight limits the number of accesses in flight.
func (b Builder) WithMaxInflight(n int) Builder {
	b.maxInflight = n
	return b
}

// WithWriteLeft sets the number of stores to issue.
func (b Builder) WithWriteLeft(write int) Builder {
	b.writeLeft = write
	return b
}

// WithReadLeft sets the number of loads to issue.
func (b Builder) WithReadLeft(read int) Builder {
	b.readLeft = read
	return b
}

// Build creates the agent.
func (b Builder) Build(name string) *MemAccessAgent {
	if b.engine == nil || b.system == nil {
		panic("memaccessagent: engine and system must be set")
	}

	if b.maxAddress < 8 || b.maxInflight <= 0 {
		panic("memaccessagent: invalid address range or in-flight limit")
	}

	modules := b.modules
	if len(modules) == 0 {
		for _, m := range b.system.Modules() {
			if len(m.Upper()) == 0 {
				modules = append(modules, m.Name())
			}
		}
	}

	return &MemAccessAgent{
		name:          name,
		engine:        b.engine,
		system:        b.system,
		rng:           rand.New(rand.NewSource(b.seed)),
		Modules:       modules,
		MaxAddress:    b.maxAddress,
		MaxInflight:   b.maxInflight,
		WriteLeft:     b.writeLeft,
		ReadLeft:      b.readLeft,
		KnownMemValue: make(map[uint64]uint64),
		pending:       make(map[uint64]coherence.AccessKind),
	}
}
