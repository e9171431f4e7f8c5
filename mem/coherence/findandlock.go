package coherence

import (
	"log"

	"github.com/sarchlab/cohsim/mem/coherence/internal/cachearray"
)

// findAndLock locates the way for f.addr in f.mod and locks it. On a miss it
// picks a victim and evicts it. The results go to the parent frame.
func (s *System) findAndLock(f *frame, st step) {
	mod := f.mod
	ret := s.frames.parentOf(f)

	switch st {
	case stepFindAndLock:
		ret.err = false
		ret.setID = 0
		ret.wayID = 0
		ret.state = cachearray.StateInvalid
		ret.tag = 0

		found := s.lookupForLock(f)
		mod.stats.countLookup(f)

		if !found {
			s.pickVictim(f)
		}

		s.lockOrWait(f, ret)

	case stepFindAndLockWake:
		// Only down-up requests wait. Their requester holds the lower block,
		// so the upper copy cannot be evicted while they wait.
		if !s.lookupForLock(f) {
			log.Panicf("coherence: %s lost block 0x%x while access %d "+
				"was waiting for it", mod.name, f.addr, f.accessID)
		}

		s.lockOrWait(f, ret)

	case stepFindAndLockAction:
		if !f.hit && f.state.IsValid() {
			f.eviction = true
			child := s.frames.createChild(f, mod, 0, stepFindAndLockFinish)
			child.setID = f.setID
			child.wayID = f.wayID
			s.call(child, stepEvict)

			return
		}

		s.schedule(f, stepFindAndLockFinish, 0)

	case stepFindAndLockFinish:
		s.findAndLockFinish(f, ret)

	default:
		log.Panicf("coherence: %s is not a find-and-lock step", st)
	}
}

func (s *System) lookupForLock(f *frame) bool {
	setID, wayID, tag, state, hit, found := f.mod.lookup(f.addr)
	f.setID = setID
	f.wayID = wayID
	f.tag = tag
	f.state = state
	f.hit = hit

	return found
}

func (s *System) pickVictim(f *frame) {
	mod := f.mod

	if f.blocking {
		log.Panicf("coherence: blocking access %d misses 0x%x in %s",
			f.accessID, f.addr, mod.name)
	}

	f.wayID = mod.cache.Victim(f.setID)
	f.state = mod.cache.Block(f.setID, f.wayID).State

	if !f.state.IsValid() && mod.dir.SharedOrOwned(f.setID, f.wayID) {
		log.Panicf("coherence: invalid victim (%d, %d) in %s is still "+
			"tracked by the directory", f.setID, f.wayID, mod.name)
	}
}

func (s *System) lockOrWait(f, ret *frame) {
	mod := f.mod
	l := mod.locks.Lock(f.setID, f.wayID)

	if l.Held() {
		if !f.blocking {
			ret.err = true
			s.ret(f)

			return
		}

		l.Wait(f.id)

		return
	}

	l.TryLock(f.accessID)
	f.lock = l

	mod.cache.SetTransientTag(f.setID, f.wayID, f.tag)
	mod.cache.Touch(f.setID, f.wayID)

	s.schedule(f, stepFindAndLockAction, mod.latency)
}

func (s *System) findAndLockFinish(f, ret *frame) {
	mod := f.mod

	if f.err {
		state := mod.cache.Block(f.setID, f.wayID).State
		if !state.IsValid() || !f.eviction {
			log.Panicf("coherence: %s failed to lock (%d, %d) without "+
				"a pending eviction", mod.name, f.setID, f.wayID)
		}

		ret.err = true
		s.unlock(f)
		s.ret(f)

		return
	}

	if f.eviction {
		mod.stats.Evictions++

		f.state = mod.cache.Block(f.setID, f.wayID).State
		if f.state.IsValid() {
			log.Panicf("coherence: %s evicted (%d, %d) but it is still %s",
				mod.name, f.setID, f.wayID, f.state)
		}
	}

	if mod.kind == KindMainMemory && !f.state.IsValid() {
		f.state = cachearray.StateExclusive
		mod.cache.SetBlock(f.setID, f.wayID, f.tag, f.state)
	}

	ret.err = false
	ret.setID = f.setID
	ret.wayID = f.wayID
	ret.state = f.state
	ret.tag = f.tag
	ret.lock = f.lock
	f.lock = nil

	s.ret(f)
}
