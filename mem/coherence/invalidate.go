package coherence

import (
	"log"

	"github.com/sarchlab/cohsim/mem/coherence/internal/directory"
)

// invalidate removes every upper copy of the block at (f.setID, f.wayID) of
// f.mod, except the copies held by f.except.
func (s *System) invalidate(f *frame, st step) {
	mod := f.mod

	switch st {
	case stepInvalidate:
		b := mod.cache.Block(f.setID, f.wayID)
		f.tag = b.Tag
		f.state = b.State
		f.pending = 1

		mod.forEachEntry(f.setID, f.wayID, f.tag,
			func(entryTag uint64, e *directory.Entry) {
				for _, i := range e.Sharers() {
					sharer := mod.upper[i]
					if sharer == f.except {
						continue
					}

					e.ClearSharer(i)

					if entryTag%uint64(sharer.blockSize) != 0 {
						continue
					}

					child := s.frames.createChild(f, mod, entryTag,
						stepInvalidateFinish)
					child.target = sharer
					s.call(child, stepWriteRequest)
					f.pending++
				}
			})

		s.schedule(f, stepInvalidateFinish, 0)

	case stepInvalidateFinish:
		if !s.joinPending(f) {
			return
		}

		s.ret(f)

	default:
		log.Panicf("coherence: %s is not an invalidate step", st)
	}
}
