package coherence

import (
	"github.com/pkg/errors"
	"github.com/sarchlab/cohsim/mem/coherence/internal/cachearray"
)

// NumLiveFrames returns the number of transaction frames that have not
// returned yet.
func (s *System) NumLiveFrames() int {
	return s.frames.size()
}

// NumLockedBlocks counts the blocks locked in all the modules.
func (s *System) NumLockedBlocks() int {
	n := 0
	for _, m := range s.modules {
		n += m.locks.NumHeld()
	}

	return n
}

// CheckInvariants verifies the directories and the block states. It is only
// meaningful when no transaction is in flight.
func (s *System) CheckInvariants() error {
	modified := make(map[int]map[uint64]string)

	for _, m := range s.modules {
		if err := m.dir.Validate(); err != nil {
			return errors.Wrap(err, m.name)
		}

		if modified[m.level] == nil {
			modified[m.level] = make(map[uint64]string)
		}

		err := s.checkBlocks(m, modified[m.level])
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *System) checkBlocks(m *Module, modified map[uint64]string) error {
	for setID := 0; setID < m.cache.NumSets(); setID++ {
		for wayID := 0; wayID < m.cache.NumWays(); wayID++ {
			b := m.cache.Block(setID, wayID)
			if !b.State.IsValid() {
				if m.dir.SharedOrOwned(setID, wayID) {
					return errors.Errorf("%s: invalid block (%d, %d) "+
						"has sharers", m.name, setID, wayID)
				}

				continue
			}

			if b.State == cachearray.StateModified {
				for addr := b.Tag; addr < b.Tag+uint64(m.blockSize); addr += uint64(s.minBlockSize) {
					if other, ok := modified[addr]; ok {
						return errors.Errorf("0x%x is modified in both "+
							"%s and %s", addr, other, m.name)
					}

					modified[addr] = m.name
				}
			}

			if err := s.checkInclusion(m, b); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkInclusion verifies that the lower module holds a block present in m
// and records m as a sharer of it.
func (s *System) checkInclusion(m *Module, b cachearray.Block) error {
	if m.lower == nil {
		return nil
	}

	if !m.lower.BlockState(b.Tag).IsValid() {
		return errors.Errorf("%s holds 0x%x but %s does not",
			m.name, b.Tag, m.lower.name)
	}

	sharers, _ := m.lower.Sharers(b.Tag)
	for _, id := range sharers {
		if id == m.sharerID {
			return nil
		}
	}

	return errors.Errorf("%s holds 0x%x but %s does not list it as a sharer",
		m.name, b.Tag, m.lower.name)
}
