// Package cachearray keeps the tags and MOESI states of a set-associative
// cache together with its replacement order.
package cachearray

import (
	"fmt"
	"math/bits"
	"math/rand"
)

type set struct {
	blocks []Block

	// order lists way IDs from the most recently used (or inserted) to the
	// least.
	order []int
}

// An Array is the tag array of a cache.
type Array struct {
	numSets       int
	numWays       int
	blockSize     int
	log2BlockSize int
	policy        ReplacementPolicy
	rng           *rand.Rand
	sets          []set
}

// New creates an Array with all blocks invalid. The rng is only consumed by
// the Random policy.
func New(
	numSets, numWays, blockSize int,
	policy ReplacementPolicy,
	rng *rand.Rand,
) *Array {
	mustBePowerOfTwo("number of sets", numSets)
	mustBePowerOfTwo("block size", blockSize)

	if numWays <= 0 {
		panic(fmt.Sprintf("cachearray: invalid associativity %d", numWays))
	}

	if policy == Random && rng == nil {
		panic("cachearray: random replacement requires an rng")
	}

	a := &Array{
		numSets:       numSets,
		numWays:       numWays,
		blockSize:     blockSize,
		log2BlockSize: bits.TrailingZeros(uint(blockSize)),
		policy:        policy,
		rng:           rng,
	}
	a.Reset()

	return a
}

func mustBePowerOfTwo(what string, n int) {
	if n <= 0 || n&(n-1) != 0 {
		panic(fmt.Sprintf("cachearray: %s %d is not a power of two", what, n))
	}
}

// Reset marks all the blocks invalid and restores the initial order.
func (a *Array) Reset() {
	a.sets = make([]set, a.numSets)
	for i := range a.sets {
		s := &a.sets[i]
		s.blocks = make([]Block, a.numWays)
		s.order = make([]int, a.numWays)

		for j := 0; j < a.numWays; j++ {
			s.blocks[j] = Block{SetID: i, WayID: j}
			s.order[j] = j
		}
	}
}

// NumSets returns the number of sets.
func (a *Array) NumSets() int { return a.numSets }

// NumWays returns the associativity.
func (a *Array) NumWays() int { return a.numWays }

// BlockSize returns the block size in bytes.
func (a *Array) BlockSize() int { return a.blockSize }

// Policy returns the replacement policy.
func (a *Array) Policy() ReplacementPolicy { return a.policy }

// TotalSize returns the number of bytes the array can hold.
func (a *Array) TotalSize() uint64 {
	return uint64(a.numSets) * uint64(a.numWays) * uint64(a.blockSize)
}

// Decode splits an address into the set it maps to, the block-aligned tag
// and the offset inside the block.
func (a *Array) Decode(addr uint64) (setID int, tag uint64, offset uint64) {
	mask := uint64(a.blockSize - 1)
	tag = addr &^ mask
	offset = addr & mask
	setID = int((tag >> a.log2BlockSize) % uint64(a.numSets))

	return setID, tag, offset
}

// Find returns the way that holds a valid copy of addr.
func (a *Array) Find(addr uint64) (setID, wayID int, ok bool) {
	setID, tag, _ := a.Decode(addr)

	for _, b := range a.sets[setID].blocks {
		if b.State.IsValid() && b.Tag == tag {
			return setID, b.WayID, true
		}
	}

	return setID, -1, false
}

// Block returns a copy of the tag information at (setID, wayID).
func (a *Array) Block(setID, wayID int) Block {
	return *a.block(setID, wayID)
}

// SetBlock updates the tag and state of a way. Under FIFO, installing a new
// tag moves the way to the head of the insertion order.
func (a *Array) SetBlock(setID, wayID int, tag uint64, state State) {
	b := a.block(setID, wayID)

	if a.policy == FIFO && b.Tag != tag {
		a.moveToHead(setID, wayID)
	}

	b.Tag = tag
	b.State = state
}

// SetState updates only the state of a way.
func (a *Array) SetState(setID, wayID int, state State) {
	a.block(setID, wayID).State = state
}

// SetTransientTag records the tag that a way is being filled with.
func (a *Array) SetTransientTag(setID, wayID int, tag uint64) {
	a.block(setID, wayID).TransientTag = tag
}

// Touch marks a way as the most recently used one. Only LRU reorders.
func (a *Array) Touch(setID, wayID int) {
	a.block(setID, wayID)

	if a.policy == LRU {
		a.moveToHead(setID, wayID)
	}
}

// Victim picks the way to replace in a set.
func (a *Array) Victim(setID int) int {
	s := a.set(setID)

	switch a.policy {
	case LRU, FIFO:
		return s.order[len(s.order)-1]
	case Random:
		return a.rng.Intn(a.numWays)
	default:
		panic(fmt.Sprintf("cachearray: unsupported policy %s", a.policy))
	}
}

// Order returns the way IDs of a set from the most recently used (or newest)
// to the least.
func (a *Array) Order(setID int) []int {
	s := a.set(setID)
	order := make([]int, len(s.order))
	copy(order, s.order)

	return order
}

func (a *Array) moveToHead(setID, wayID int) {
	s := &a.sets[setID]

	pos := 0
	for i, w := range s.order {
		if w == wayID {
			pos = i
			break
		}
	}

	copy(s.order[1:pos+1], s.order[:pos])
	s.order[0] = wayID
}

func (a *Array) set(setID int) *set {
	if setID < 0 || setID >= a.numSets {
		panic(fmt.Sprintf("cachearray: set %d out of range", setID))
	}

	return &a.sets[setID]
}

func (a *Array) block(setID, wayID int) *Block {
	s := a.set(setID)

	if wayID < 0 || wayID >= a.numWays {
		panic(fmt.Sprintf("cachearray: way %d out of range", wayID))
	}

	return &s.blocks[wayID]
}
