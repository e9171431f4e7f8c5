package coherence

import (
	"math/rand"

	"github.com/pkg/errors"
	"github.com/sarchlab/cohsim/idgen"
	"github.com/sarchlab/cohsim/instrumentation/hooking"
	"github.com/sarchlab/cohsim/mem/coherence/internal/cachearray"
	"github.com/sarchlab/cohsim/mem/coherence/internal/directory"
	"github.com/sarchlab/cohsim/noc"
	"github.com/sarchlab/cohsim/timing"
)

// ModuleSpec describes one module of the hierarchy.
type ModuleSpec struct {
	Name string
	Kind ModuleKind

	// Lower names the module below. It is empty for the main memory.
	Lower string

	NumSets   int
	NumWays   int
	BlockSize int
	Latency   int
	Policy    ReplacementPolicy
}

// Builder can build systems.
type Builder struct {
	engine        timing.EventScheduler
	seed          int64
	headerSize    int
	netLatency    int
	netBandwidth  int
	netBufferSize int
	modules       []ModuleSpec
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		headerSize:   8,
		netLatency:   1,
		netBandwidth: 72,
	}
}

// WithEngine sets the engine that drives the system.
func (b Builder) WithEngine(engine timing.EventScheduler) Builder {
	b.engine = engine
	return b
}

// WithSeed sets the seed of the random backoff and replacement.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithHeaderSize sets the size of control messages in bytes.
func (b Builder) WithHeaderSize(bytes int) Builder {
	b.headerSize = bytes
	return b
}

// WithNetworkLatency sets the wire latency of every network.
func (b Builder) WithNetworkLatency(cycles int) Builder {
	b.netLatency = cycles
	return b
}

// WithNetworkBandwidth sets the bytes per cycle each network node can send.
func (b Builder) WithNetworkBandwidth(bytesPerCycle int) Builder {
	b.netBandwidth = bytesPerCycle
	return b
}

// WithNetworkBufferSize sets the input buffer of each network node. By
// default, a buffer holds four of the largest messages.
func (b Builder) WithNetworkBufferSize(bytes int) Builder {
	b.netBufferSize = bytes
	return b
}

// WithModule adds a module.
func (b Builder) WithModule(spec ModuleSpec) Builder {
	modules := make([]ModuleSpec, len(b.modules), len(b.modules)+1)
	copy(modules, b.modules)
	b.modules = append(modules, spec)

	return b
}

// Validate checks the topology and the parameters.
func (b Builder) Validate() error {
	if b.headerSize <= 0 {
		return errors.Errorf("header size must be positive, got %d",
			b.headerSize)
	}

	if b.netLatency < 0 || b.netBandwidth <= 0 {
		return errors.Errorf("invalid network latency %d or bandwidth %d",
			b.netLatency, b.netBandwidth)
	}

	specs := make(map[string]ModuleSpec, len(b.modules))
	numMemories := 0

	for _, spec := range b.modules {
		if err := validateModule(spec); err != nil {
			return err
		}

		if _, dup := specs[spec.Name]; dup {
			return errors.Errorf("duplicated module %q", spec.Name)
		}

		specs[spec.Name] = spec

		if spec.Kind == KindMainMemory {
			numMemories++
		}
	}

	if numMemories != 1 {
		return errors.Errorf("need exactly one main memory, found %d",
			numMemories)
	}

	for _, spec := range b.modules {
		if err := validateLowerChain(spec, specs); err != nil {
			return err
		}
	}

	if b.netBufferSize > 0 && b.netBufferSize < b.maxMessageSize() {
		return errors.Errorf("network buffer of %d bytes cannot hold a "+
			"%d-byte message", b.netBufferSize, b.maxMessageSize())
	}

	return nil
}

func validateModule(spec ModuleSpec) error {
	if spec.Name == "" {
		return errors.New("module without a name")
	}

	if !isPowerOfTwo(spec.BlockSize) {
		return errors.Errorf("%s: block size %d is not a power of two",
			spec.Name, spec.BlockSize)
	}

	if !isPowerOfTwo(spec.NumSets) {
		return errors.Errorf("%s: number of sets %d is not a power of two",
			spec.Name, spec.NumSets)
	}

	if spec.NumWays <= 0 {
		return errors.Errorf("%s: associativity must be positive", spec.Name)
	}

	if spec.Latency <= 0 {
		return errors.Errorf("%s: latency must be positive", spec.Name)
	}

	switch spec.Kind {
	case KindMainMemory:
		if spec.Lower != "" {
			return errors.Errorf("%s: main memory cannot have a lower module",
				spec.Name)
		}
	case KindCache:
		if spec.Lower == "" {
			return errors.Errorf("%s: cache without a lower module", spec.Name)
		}
	default:
		return errors.Errorf("%s: unknown module kind %d",
			spec.Name, int(spec.Kind))
	}

	return nil
}

func validateLowerChain(spec ModuleSpec, specs map[string]ModuleSpec) error {
	visited := map[string]bool{spec.Name: true}
	cur := spec

	for cur.Lower != "" {
		lower, ok := specs[cur.Lower]
		if !ok {
			return errors.Errorf("%s: lower module %q does not exist",
				cur.Name, cur.Lower)
		}

		if cur.BlockSize > lower.BlockSize {
			return errors.Errorf("%s: block size %d exceeds the %d bytes "+
				"of lower module %s",
				cur.Name, cur.BlockSize, lower.BlockSize, lower.Name)
		}

		if visited[lower.Name] {
			return errors.Errorf("%s: lower modules form a cycle", spec.Name)
		}

		visited[lower.Name] = true
		cur = lower
	}

	if cur.Kind != KindMainMemory {
		return errors.Errorf("%s: does not reach the main memory", spec.Name)
	}

	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func (b Builder) maxMessageSize() int {
	maxBlock := 0
	for _, spec := range b.modules {
		if spec.BlockSize > maxBlock {
			maxBlock = spec.BlockSize
		}
	}

	return maxBlock + b.headerSize
}

func (b Builder) minBlockSize() int {
	minBlock := 0
	for _, spec := range b.modules {
		if minBlock == 0 || spec.BlockSize < minBlock {
			minBlock = spec.BlockSize
		}
	}

	return minBlock
}

// Build creates the system. It panics if the topology is not valid.
func (b Builder) Build(name string) *System {
	if b.engine == nil {
		panic("coherence: engine is not set")
	}

	if err := b.Validate(); err != nil {
		panic(errors.Wrap(err, "coherence: invalid system"))
	}

	s := &System{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		engine:       b.engine,
		accessIDs:    idgen.New(),
		frames:       newFrameArena(idgen.New()),
		byName:       make(map[string]*Module),
		headerSize:   b.headerSize,
		minBlockSize: b.minBlockSize(),
		values:       newStorage(),
	}

	b.createModules(s)
	b.orderModules(s)
	b.connect(s)

	return s
}

func (b Builder) createModules(s *System) {
	for i, spec := range b.modules {
		rng := rand.New(rand.NewSource(b.seed + int64(i)))

		m := &Module{
			name:      spec.Name,
			kind:      spec.Kind,
			blockSize: spec.BlockSize,
			latency:   spec.Latency,
			cache: cachearray.New(spec.NumSets, spec.NumWays, spec.BlockSize,
				spec.Policy, rng),
			locks:    directory.NewLockTable(spec.NumSets, spec.NumWays),
			inFlight: make(map[idgen.ID]AccessKind),
			rng:      rng,
		}

		s.byName[spec.Name] = m

		if spec.Kind == KindMainMemory {
			s.memory = m
		}
	}

	for _, spec := range b.modules {
		if spec.Lower == "" {
			continue
		}

		m := s.byName[spec.Name]
		lower := s.byName[spec.Lower]
		m.lower = lower
		m.sharerID = len(lower.upper)
		lower.upper = append(lower.upper, m)
	}

	for _, spec := range b.modules {
		m := s.byName[spec.Name]
		m.dir = directory.New(spec.NumSets, spec.NumWays,
			spec.BlockSize/s.minBlockSize, len(m.upper))
	}
}

// orderModules lists the modules breadth first from the main memory.
func (b Builder) orderModules(s *System) {
	queue := []*Module{s.memory}

	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]

		if m.lower != nil {
			m.level = m.lower.level + 1
		}

		s.modules = append(s.modules, m)
		queue = append(queue, m.upper...)
	}
}

func (b Builder) connect(s *System) {
	bufSize := b.netBufferSize
	if bufSize == 0 {
		bufSize = 4 * b.maxMessageSize()
	}

	msgIDs := idgen.New()

	for _, m := range s.modules {
		if len(m.upper) == 0 {
			continue
		}

		net := noc.MakeBuilder().
			WithEngine(b.engine).
			WithIDGenerator(msgIDs).
			WithLatency(b.netLatency).
			WithBandwidth(b.netBandwidth).
			WithBufferSize(bufSize).
			Build(m.name + ".HighNet")

		for _, u := range m.upper {
			u.lowNet = net
			u.lowNode = net.AddNode(u.name)
		}

		m.highNet = net
		m.highNode = net.AddNode(m.name)

		s.networks = append(s.networks, net)
	}
}
