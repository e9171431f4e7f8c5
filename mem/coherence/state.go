package coherence

import "github.com/sarchlab/cohsim/mem/coherence/internal/cachearray"

// State is the MOESI state of a block.
type State = cachearray.State

// MOESI states.
const (
	StateInvalid   = cachearray.StateInvalid
	StateShared    = cachearray.StateShared
	StateExclusive = cachearray.StateExclusive
	StateOwned     = cachearray.StateOwned
	StateModified  = cachearray.StateModified
)

// ReplacementPolicy selects victims in a set.
type ReplacementPolicy = cachearray.ReplacementPolicy

// Replacement policies.
const (
	LRU    = cachearray.LRU
	FIFO   = cachearray.FIFO
	Random = cachearray.Random
)

// ParseReplacementPolicy converts a policy name such as "lru".
func ParseReplacementPolicy(name string) (ReplacementPolicy, error) {
	return cachearray.ParseReplacementPolicy(name)
}
