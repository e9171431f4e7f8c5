package coherence

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/sarchlab/cohsim/idgen"
	"github.com/sarchlab/cohsim/mem/coherence/internal/cachearray"
	"github.com/sarchlab/cohsim/mem/coherence/internal/directory"
	"github.com/sarchlab/cohsim/noc"
)

// ModuleKind tells a cache from the main memory.
type ModuleKind int

// Supported module kinds.
const (
	KindCache ModuleKind = iota
	KindMainMemory
)

func (k ModuleKind) String() string {
	switch k {
	case KindCache:
		return "cache"
	case KindMainMemory:
		return "main_memory"
	default:
		return fmt.Sprintf("ModuleKind(%d)", int(k))
	}
}

// A Module is a cache or the main memory in the hierarchy.
type Module struct {
	name      string
	kind      ModuleKind
	blockSize int
	latency   int
	level     int

	cache *cachearray.Array
	dir   *directory.Directory
	locks *directory.LockTable

	lower    *Module
	upper    []*Module
	sharerID int

	lowNet   *noc.Network
	lowNode  *noc.Node
	highNet  *noc.Network
	highNode *noc.Node

	inFlight map[idgen.ID]AccessKind
	stats    Stats
	rng      *rand.Rand
}

// Name returns the name of the module.
func (m *Module) Name() string { return m.name }

// Kind returns whether the module is a cache or the main memory.
func (m *Module) Kind() ModuleKind { return m.kind }

// BlockSize returns the block size in bytes.
func (m *Module) BlockSize() int { return m.blockSize }

// Latency returns the access latency in cycles.
func (m *Module) Latency() int { return m.latency }

// Level returns the distance from the main memory, which is level 0.
func (m *Module) Level() int { return m.level }

// Lower returns the module below, or nil for the main memory.
func (m *Module) Lower() *Module { return m.lower }

// Upper returns the modules directly above.
func (m *Module) Upper() []*Module { return m.upper }

// Stats returns a copy of the counters of the module.
func (m *Module) Stats() Stats { return m.stats }

// HighNetwork returns the network that links the module to its upper
// modules. It is nil when nothing sits above the module.
func (m *Module) HighNetwork() *noc.Network { return m.highNet }

// InFlightAccesses returns the IDs of the accesses that entered at this
// module and have not finished, in increasing order.
func (m *Module) InFlightAccesses() []idgen.ID {
	ids := make([]idgen.ID, 0, len(m.inFlight))
	for id := range m.inFlight {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// BlockState returns the state of the block that holds addr, or Invalid if
// the module does not have it.
func (m *Module) BlockState(addr uint64) cachearray.State {
	setID, wayID, ok := m.cache.Find(addr)
	if !ok {
		return cachearray.StateInvalid
	}

	return m.cache.Block(setID, wayID).State
}

// Sharers returns the indices of the upper modules that the directory
// records as sharers of the sub-block containing addr, and the owner index
// or -1.
func (m *Module) Sharers(addr uint64) (sharers []int, owner int) {
	setID, wayID, ok := m.cache.Find(addr)
	if !ok {
		return nil, directory.NoOwner
	}

	tag := m.blockTag(addr)
	z := int((addr - tag) / uint64(m.subBlockSize()))
	e := m.dir.Entry(setID, wayID, z)

	return e.Sharers(), e.Owner()
}

func (m *Module) blockTag(addr uint64) uint64 {
	return addr &^ uint64(m.blockSize-1)
}

func (m *Module) subBlockSize() int {
	return m.blockSize / m.dir.NumSubBlocks()
}

func (m *Module) insertAccess(id idgen.ID, kind AccessKind) {
	m.inFlight[id] = kind
}

func (m *Module) extractAccess(id idgen.ID) {
	if _, ok := m.inFlight[id]; !ok {
		panic(fmt.Sprintf("coherence: access %d is not in flight at %s",
			id, m.name))
	}

	delete(m.inFlight, id)
}

// lookup searches for addr. A way matches if it holds a valid copy of the
// block, or if its lock is held while it is being filled with the block.
func (m *Module) lookup(addr uint64) (
	setID, wayID int,
	tag uint64,
	state cachearray.State,
	hit, found bool,
) {
	setID, tag, _ = m.cache.Decode(addr)

	if _, w, ok := m.cache.Find(addr); ok {
		return setID, w, tag, m.cache.Block(setID, w).State, true, true
	}

	for w := 0; w < m.cache.NumWays(); w++ {
		b := m.cache.Block(setID, w)
		if b.TransientTag == tag && m.locks.Lock(setID, w).Held() {
			return setID, w, tag, b.State, false, true
		}
	}

	return setID, -1, tag, cachearray.StateInvalid, false, false
}

// forEachSubBlock calls fn for every directory entry of (setID, wayID) whose
// address falls in [from, from+size).
func (m *Module) forEachSubBlock(
	setID, wayID int,
	blockTag, from uint64,
	size int,
	fn func(entryTag uint64, e *directory.Entry),
) {
	sub := uint64(m.subBlockSize())

	for z := 0; z < m.dir.NumSubBlocks(); z++ {
		entryTag := blockTag + uint64(z)*sub
		if entryTag < from || entryTag >= from+uint64(size) {
			continue
		}

		fn(entryTag, m.dir.Entry(setID, wayID, z))
	}
}

// forEachEntry calls fn for every directory entry of (setID, wayID).
func (m *Module) forEachEntry(
	setID, wayID int,
	blockTag uint64,
	fn func(entryTag uint64, e *directory.Entry),
) {
	m.forEachSubBlock(setID, wayID, blockTag, blockTag, m.blockSize, fn)
}

func (m *Module) retryLatency() int {
	return m.rng.Intn(m.latency) + m.latency
}
