package coherence

import (
	"log"

	"github.com/sarchlab/cohsim/mem/coherence/internal/cachearray"
	"github.com/sarchlab/cohsim/mem/coherence/internal/directory"
)

// readRequest asks f.target for a readable copy of f.addr on behalf of f.mod.
// Up-down requests go to the lower module; down-up requests come from the
// lower module to force an owner to give up ownership.
func (s *System) readRequest(f *frame, st step) {
	target := f.target

	switch st {
	case stepReadRequest:
		ret := s.frames.parentOf(f)
		ret.shared = false
		ret.err = false
		s.sendRequest(f, stepReadRequestReceive, stepReadRequest)

	case stepReadRequestReceive:
		s.receiveRequest(f)

		child := s.frames.createChild(f, target, f.addr, stepReadRequestAction)
		child.blocking = !f.upDown()
		child.read = true
		child.retry = false
		s.call(child, stepFindAndLock)

	case stepReadRequestAction:
		if f.err {
			if !f.upDown() {
				log.Panicf("coherence: down-up read of 0x%x at %s failed "+
					"to lock", f.addr, target.name)
			}

			s.frames.parentOf(f).err = true
			f.replySize = s.headerSize
			s.schedule(f, stepReadRequestReply, 0)

			return
		}

		if f.upDown() {
			s.schedule(f, stepReadRequestUpdown, 0)
		} else {
			s.schedule(f, stepReadRequestDownup, 0)
		}

	case stepReadRequestUpdown:
		s.readRequestUpdown(f)

	case stepReadRequestUpdownMiss:
		if f.err {
			s.joinPending(f)
			s.unlock(f)
			s.frames.parentOf(f).err = true
			f.replySize = s.headerSize
			s.schedule(f, stepReadRequestReply, 0)

			return
		}

		state := cachearray.StateExclusive
		if f.shared {
			state = cachearray.StateShared
		}

		target.cache.SetBlock(f.setID, f.wayID, f.tag, state)
		s.schedule(f, stepReadRequestUpdownFinish, 0)

	case stepReadRequestUpdownFinish:
		if !s.joinPending(f) {
			return
		}

		s.readRequestUpdownFinish(f)

	case stepReadRequestDownup:
		s.readRequestDownup(f)

	case stepReadRequestDownupFinish:
		if !s.joinPending(f) {
			return
		}

		target.forEachEntry(f.setID, f.wayID, f.tag,
			func(_ uint64, e *directory.Entry) {
				e.ClearOwner()
			})
		target.cache.SetBlock(f.setID, f.wayID, f.tag, cachearray.StateShared)
		s.unlock(f)
		s.schedule(f, stepReadRequestReply, 0)

	case stepReadRequestReply:
		s.sendReply(f, stepReadRequestFinish, stepReadRequestReply)

	case stepReadRequestFinish:
		s.receiveReply(f)
		s.ret(f)

	default:
		log.Panicf("coherence: %s is not a read request step", st)
	}
}

func (s *System) readRequestUpdown(f *frame) {
	mod := f.mod
	target := f.target
	f.pending = 1

	if !f.state.IsValid() {
		if target.dir.SharedOrOwned(f.setID, f.wayID) {
			log.Panicf("coherence: invalid block 0x%x of %s still has sharers",
				f.tag, target.name)
		}

		child := s.frames.createChild(f, target, f.tag, stepReadRequestUpdownMiss)
		child.target = target.lower
		s.call(child, stepReadRequest)

		return
	}

	if f.addr%uint64(mod.blockSize) != 0 {
		log.Panicf("coherence: read request for 0x%x is not aligned to "+
			"the %d-byte blocks of %s", f.addr, mod.blockSize, mod.name)
	}

	target.forEachSubBlock(f.setID, f.wayID, f.tag, f.addr, mod.blockSize,
		func(entryTag uint64, e *directory.Entry) {
			if e.Owner() == mod.sharerID {
				log.Panicf("coherence: %s requests 0x%x that it already "+
					"owns", mod.name, entryTag)
			}
		})

	s.fanOutToOwners(f, mod, stepReadRequestUpdownFinish)
	s.schedule(f, stepReadRequestUpdownFinish, 0)
}

func (s *System) readRequestUpdownFinish(f *frame) {
	mod := f.mod
	target := f.target

	target.forEachEntry(f.setID, f.wayID, f.tag,
		func(_ uint64, e *directory.Entry) {
			if e.Owner() != mod.sharerID {
				e.ClearOwner()
			}
		})

	shared := false

	target.forEachSubBlock(f.setID, f.wayID, f.tag, f.addr, mod.blockSize,
		func(_ uint64, e *directory.Entry) {
			e.SetSharer(mod.sharerID)
			if e.NumSharers() > 1 {
				shared = true
			}
		})

	s.frames.parentOf(f).shared = shared

	if !shared {
		target.forEachSubBlock(f.setID, f.wayID, f.tag, f.addr, mod.blockSize,
			func(_ uint64, e *directory.Entry) {
				e.SetOwner(mod.sharerID)
			})
	}

	f.replySize = mod.blockSize + s.headerSize
	s.unlock(f)
	s.schedule(f, stepReadRequestReply, 0)
}

func (s *System) readRequestDownup(f *frame) {
	target := f.target

	if !f.state.IsValid() {
		log.Panicf("coherence: down-up read of 0x%x finds it invalid in %s",
			f.addr, target.name)
	}

	f.pending = 1

	if f.state == cachearray.StateExclusive ||
		f.state == cachearray.StateShared {
		f.replySize = s.headerSize
	} else {
		f.replySize = target.blockSize + s.headerSize
	}

	if s.fanOutToOwners(f, nil, stepReadRequestDownupFinish) > 0 {
		f.replySize = target.blockSize + s.headerSize
	}

	s.schedule(f, stepReadRequestDownupFinish, 0)
}

// fanOutToOwners sends a down-up read to every owner of the block held by
// f.target except skip, once per owner line. It returns the number of reads
// sent; each of them adds to f.pending.
func (s *System) fanOutToOwners(f *frame, skip *Module, retStep step) int {
	target := f.target
	n := 0

	target.forEachEntry(f.setID, f.wayID, f.tag,
		func(entryTag uint64, e *directory.Entry) {
			if e.Owner() == directory.NoOwner {
				return
			}

			owner := target.upper[e.Owner()]
			if owner == skip {
				return
			}

			if entryTag%uint64(owner.blockSize) != 0 {
				return
			}

			f.pending++
			n++

			child := s.frames.createChild(f, target, entryTag, retStep)
			child.target = owner
			s.call(child, stepReadRequest)
		})

	return n
}

// joinPending counts down a returning branch. It returns true when the last
// branch has joined.
func (s *System) joinPending(f *frame) bool {
	if f.pending <= 0 {
		log.Panicf("coherence: frame %d joins with no pending branch", f.id)
	}

	f.pending--

	return f.pending == 0
}
