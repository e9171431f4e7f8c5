package coherence

import (
	"log"

	"github.com/sarchlab/cohsim/mem/coherence/internal/cachearray"
)

func (s *System) store(f *frame, st step) {
	mod := f.mod

	switch st {
	case stepStore:
		mod.insertAccess(f.accessID, AccessStore)
		s.schedule(f, stepStoreLock, 0)

	case stepStoreLock:
		child := s.frames.createChild(f, mod, f.addr, stepStoreAction)
		child.blocking = false
		child.read = false
		child.retry = f.retry
		s.call(child, stepFindAndLock)

	case stepStoreAction:
		if f.err {
			mod.stats.WriteRetries++
			s.retryAccess(f, stepStoreLock)

			return
		}

		if f.state == cachearray.StateModified ||
			f.state == cachearray.StateExclusive {
			s.schedule(f, stepStoreFinish, 0)
			return
		}

		child := s.frames.createChild(f, mod, f.tag, stepStoreFinish)
		child.target = mod.lower
		s.call(child, stepWriteRequest)

	case stepStoreFinish:
		if f.err {
			mod.stats.WriteRetries++
			s.unlock(f)
			s.retryAccess(f, stepStoreLock)

			return
		}

		mod.cache.SetBlock(f.setID, f.wayID, f.tag, cachearray.StateModified)
		s.unlock(f)
		mod.extractAccess(f.accessID)
		s.ret(f)

	default:
		log.Panicf("coherence: %s is not a store step", st)
	}
}
