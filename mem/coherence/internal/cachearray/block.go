package cachearray

// State is the MOESI state of a cache block.
type State uint8

// All MOESI states. Invalid is the zero value.
const (
	StateInvalid State = iota
	StateShared
	StateExclusive
	StateOwned
	StateModified
)

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "I"
	case StateShared:
		return "S"
	case StateExclusive:
		return "E"
	case StateOwned:
		return "O"
	case StateModified:
		return "M"
	default:
		return "?"
	}
}

// IsValid returns true for every state but Invalid.
func (s State) IsValid() bool {
	return s != StateInvalid
}

// HoldsDirtyData returns true if the block must be written back on eviction.
func (s State) HoldsDirtyData() bool {
	return s == StateModified || s == StateOwned
}

// A Block is the tag information of one way in a set.
type Block struct {
	SetID        int
	WayID        int
	Tag          uint64
	TransientTag uint64
	State        State
}
