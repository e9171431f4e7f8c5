package cachearray

import (
	"fmt"
	"strings"
)

// ReplacementPolicy decides which way of a set is picked as a victim.
type ReplacementPolicy int

// Supported replacement policies.
const (
	LRU ReplacementPolicy = iota
	FIFO
	Random
)

func (p ReplacementPolicy) String() string {
	switch p {
	case LRU:
		return "LRU"
	case FIFO:
		return "FIFO"
	case Random:
		return "Random"
	default:
		return fmt.Sprintf("ReplacementPolicy(%d)", int(p))
	}
}

// ParseReplacementPolicy converts a case-insensitive policy name.
func ParseReplacementPolicy(name string) (ReplacementPolicy, error) {
	switch strings.ToLower(name) {
	case "lru", "":
		return LRU, nil
	case "fifo":
		return FIFO, nil
	case "random":
		return Random, nil
	default:
		return LRU, fmt.Errorf("unknown replacement policy %q", name)
	}
}
