package coherence

import (
	"log"

	"github.com/sarchlab/cohsim/mem/coherence/internal/cachearray"
)

func (s *System) load(f *frame, st step) {
	mod := f.mod

	switch st {
	case stepLoad:
		mod.insertAccess(f.accessID, AccessLoad)
		s.schedule(f, stepLoadLock, 0)

	case stepLoadLock:
		child := s.frames.createChild(f, mod, f.addr, stepLoadAction)
		child.blocking = false
		child.read = true
		child.retry = f.retry
		s.call(child, stepFindAndLock)

	case stepLoadAction:
		if f.err {
			mod.stats.ReadRetries++
			s.retryAccess(f, stepLoadLock)

			return
		}

		if f.state.IsValid() {
			s.schedule(f, stepLoadFinish, 0)
			return
		}

		child := s.frames.createChild(f, mod, f.tag, stepLoadMiss)
		child.target = mod.lower
		s.call(child, stepReadRequest)

	case stepLoadMiss:
		if f.err {
			mod.stats.ReadRetries++
			s.unlock(f)
			s.retryAccess(f, stepLoadLock)

			return
		}

		state := cachearray.StateExclusive
		if f.shared {
			state = cachearray.StateShared
		}

		mod.cache.SetBlock(f.setID, f.wayID, f.tag, state)
		s.schedule(f, stepLoadFinish, 0)

	case stepLoadFinish:
		s.unlock(f)
		mod.extractAccess(f.accessID)
		s.ret(f)

	default:
		log.Panicf("coherence: %s is not a load step", st)
	}
}

// retryAccess resumes a top-level access at st after a random backoff.
func (s *System) retryAccess(f *frame, st step) {
	f.retry = true
	f.access.retries++
	s.schedule(f, st, f.mod.retryLatency())
}
