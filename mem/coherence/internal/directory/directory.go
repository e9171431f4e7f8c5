// Package directory tracks which upper modules hold each sub-block of a cache
// and serializes the transactions that touch a block.
package directory

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// NoOwner marks an entry that has no owner.
const NoOwner = -1

// An Entry records the sharers and the owner of one sub-block. Nodes are
// identified by their index among the upper modules.
type Entry struct {
	sharers *bitset.BitSet
	owner   int
}

// Owner returns the owning node or NoOwner.
func (e *Entry) Owner() int {
	return e.owner
}

// SetOwner makes node the owner. The node must already be a sharer.
func (e *Entry) SetOwner(node int) {
	if !e.IsSharer(node) {
		panic(fmt.Sprintf("directory: owner %d is not a sharer", node))
	}

	e.owner = node
}

// ClearOwner removes the owner.
func (e *Entry) ClearOwner() {
	e.owner = NoOwner
}

// IsSharer tells if the node holds a copy.
func (e *Entry) IsSharer(node int) bool {
	return node >= 0 && e.sharers.Test(uint(node))
}

// SetSharer adds the node to the sharers.
func (e *Entry) SetSharer(node int) {
	e.sharers.Set(uint(node))
}

// ClearSharer removes the node from the sharers. A node that stops sharing
// also stops owning.
func (e *Entry) ClearSharer(node int) {
	e.sharers.Clear(uint(node))

	if e.owner == node {
		e.owner = NoOwner
	}
}

// NumSharers returns the number of nodes sharing the sub-block.
func (e *Entry) NumSharers() int {
	return int(e.sharers.Count())
}

// Sharers lists the sharing nodes in increasing order.
func (e *Entry) Sharers() []int {
	nodes := make([]int, 0, e.sharers.Count())
	for i, ok := e.sharers.NextSet(0); ok; i, ok = e.sharers.NextSet(i + 1) {
		nodes = append(nodes, int(i))
	}

	return nodes
}

// SharedOrOwned tells if any node shares or owns the sub-block.
func (e *Entry) SharedOrOwned() bool {
	return e.owner != NoOwner || e.sharers.Any()
}

func (e *Entry) clear() {
	e.sharers.ClearAll()
	e.owner = NoOwner
}

// A Directory holds one entry per sub-block of every (set, way).
type Directory struct {
	numSets      int
	numWays      int
	numSubBlocks int
	numNodes     int
	entries      []Entry
}

// New creates a directory where no sub-block is shared.
func New(numSets, numWays, numSubBlocks, numNodes int) *Directory {
	if numSets <= 0 || numWays <= 0 || numSubBlocks <= 0 || numNodes < 0 {
		panic(fmt.Sprintf("directory: invalid geometry %dx%dx%d, %d nodes",
			numSets, numWays, numSubBlocks, numNodes))
	}

	d := &Directory{
		numSets:      numSets,
		numWays:      numWays,
		numSubBlocks: numSubBlocks,
		numNodes:     numNodes,
		entries:      make([]Entry, numSets*numWays*numSubBlocks),
	}

	for i := range d.entries {
		d.entries[i] = Entry{
			sharers: bitset.New(uint(numNodes)),
			owner:   NoOwner,
		}
	}

	return d
}

// NumSubBlocks returns the number of entries per block.
func (d *Directory) NumSubBlocks() int {
	return d.numSubBlocks
}

// NumNodes returns the number of upper modules tracked.
func (d *Directory) NumNodes() int {
	return d.numNodes
}

// Entry returns the entry of sub-block z of (setID, wayID).
func (d *Directory) Entry(setID, wayID, z int) *Entry {
	if setID < 0 || setID >= d.numSets ||
		wayID < 0 || wayID >= d.numWays ||
		z < 0 || z >= d.numSubBlocks {
		panic(fmt.Sprintf("directory: entry (%d, %d, %d) out of range",
			setID, wayID, z))
	}

	return &d.entries[(setID*d.numWays+wayID)*d.numSubBlocks+z]
}

// SharedOrOwned tells if any sub-block of (setID, wayID) is still tracked.
func (d *Directory) SharedOrOwned(setID, wayID int) bool {
	for z := 0; z < d.numSubBlocks; z++ {
		if d.Entry(setID, wayID, z).SharedOrOwned() {
			return true
		}
	}

	return false
}

// Clear drops all the sharers and owners of (setID, wayID).
func (d *Directory) Clear(setID, wayID int) {
	for z := 0; z < d.numSubBlocks; z++ {
		d.Entry(setID, wayID, z).clear()
	}
}

// Validate returns an error if an owner is not among the sharers.
func (d *Directory) Validate() error {
	for i := range d.entries {
		e := &d.entries[i]
		if e.owner != NoOwner && !e.IsSharer(e.owner) {
			z := i % d.numSubBlocks
			way := i / d.numSubBlocks % d.numWays
			set := i / d.numSubBlocks / d.numWays

			return fmt.Errorf("entry (%d, %d, %d) is owned by %d "+
				"which is not a sharer", set, way, z, e.owner)
		}
	}

	return nil
}
