// Package idgen provides the ID generators used to name accesses, frames and
// network messages.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// ID is a unique identifier represented as a uint64.
type ID uint64

// String formats the ID in decimal.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Generator produces unique identifiers.
type Generator interface {
	Generate() ID
}

// New returns a sequential generator whose first emitted ID is "1". The zero
// ID is never generated, so it can stand for "none".
func New() Generator {
	return &sequentialGenerator{}
}

type sequentialGenerator struct {
	next uint64
}

func (g *sequentialGenerator) Generate() ID {
	return ID(atomic.AddUint64(&g.next, 1))
}

// NewRunName returns a globally unique name for a simulation run. Run names
// do not take part in the simulation, so they need not be deterministic.
func NewRunName(prefix string) string {
	return prefix + xid.New().String()
}
