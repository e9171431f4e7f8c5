package coherence

// storage keeps the value last stored at each address. Values do not travel
// with coherence messages; a load observes the value of the latest store
// that completed before it.
type storage struct {
	words map[uint64]uint64
}

func newStorage() *storage {
	return &storage{words: make(map[uint64]uint64)}
}

func (s *storage) load(addr uint64) uint64 {
	return s.words[addr]
}

func (s *storage) store(addr, value uint64) {
	s.words[addr] = value
}
