package coherence

import (
	"log"

	"github.com/sarchlab/cohsim/mem/coherence/internal/cachearray"
	"github.com/sarchlab/cohsim/mem/coherence/internal/directory"
)

// writeRequest asks f.target for an exclusive copy of f.addr on behalf of
// f.mod. A down-up write request invalidates the copy held by f.target.
func (s *System) writeRequest(f *frame, st step) {
	target := f.target

	switch st {
	case stepWriteRequest:
		s.frames.parentOf(f).err = false
		s.sendRequest(f, stepWriteRequestReceive, stepWriteRequest)

	case stepWriteRequestReceive:
		s.receiveRequest(f)

		child := s.frames.createChild(f, target, f.addr, stepWriteRequestAction)
		child.blocking = !f.upDown()
		child.read = false
		child.retry = false
		s.call(child, stepFindAndLock)

	case stepWriteRequestAction:
		if f.err {
			if !f.upDown() {
				log.Panicf("coherence: down-up write of 0x%x at %s failed "+
					"to lock", f.addr, target.name)
			}

			s.frames.parentOf(f).err = true
			f.replySize = s.headerSize
			s.schedule(f, stepWriteRequestReply, 0)

			return
		}

		child := s.frames.createChild(f, target, 0, stepWriteRequestExclusive)
		child.except = f.mod
		child.setID = f.setID
		child.wayID = f.wayID
		s.call(child, stepInvalidate)

	case stepWriteRequestExclusive:
		if f.upDown() {
			s.schedule(f, stepWriteRequestUpdown, 0)
		} else {
			s.schedule(f, stepWriteRequestDownup, 0)
		}

	case stepWriteRequestUpdown:
		if f.state == cachearray.StateModified ||
			f.state == cachearray.StateExclusive {
			s.schedule(f, stepWriteRequestUpdownFinish, 0)
			return
		}

		child := s.frames.createChild(f, target, f.tag,
			stepWriteRequestUpdownFinish)
		child.target = target.lower
		s.call(child, stepWriteRequest)

	case stepWriteRequestUpdownFinish:
		s.writeRequestUpdownFinish(f)

	case stepWriteRequestDownup:
		s.writeRequestDownup(f)

	case stepWriteRequestReply:
		s.sendReply(f, stepWriteRequestFinish, stepWriteRequestReply)

	case stepWriteRequestFinish:
		s.receiveReply(f)
		s.ret(f)

	default:
		log.Panicf("coherence: %s is not a write request step", st)
	}
}

func (s *System) writeRequestUpdownFinish(f *frame) {
	mod := f.mod
	target := f.target

	if f.err {
		s.frames.parentOf(f).err = true
		f.replySize = s.headerSize
		s.unlock(f)
		s.schedule(f, stepWriteRequestReply, 0)

		return
	}

	if f.addr%uint64(mod.blockSize) != 0 {
		log.Panicf("coherence: write request for 0x%x is not aligned to "+
			"the %d-byte blocks of %s", f.addr, mod.blockSize, mod.name)
	}

	target.forEachSubBlock(f.setID, f.wayID, f.tag, f.addr, mod.blockSize,
		func(entryTag uint64, e *directory.Entry) {
			e.SetSharer(mod.sharerID)
			e.SetOwner(mod.sharerID)

			if e.NumSharers() != 1 {
				log.Panicf("coherence: 0x%x in %s has %d sharers after "+
					"granting exclusivity to %s",
					entryTag, target.name, e.NumSharers(), mod.name)
			}
		})

	if f.state != cachearray.StateModified {
		target.cache.SetBlock(f.setID, f.wayID, f.tag,
			cachearray.StateExclusive)
	}

	s.unlock(f)
	f.replySize = mod.blockSize + s.headerSize
	s.schedule(f, stepWriteRequestReply, 0)
}

func (s *System) writeRequestDownup(f *frame) {
	target := f.target

	if !f.state.IsValid() {
		log.Panicf("coherence: down-up write of 0x%x finds it invalid in %s",
			f.addr, target.name)
	}

	if target.dir.SharedOrOwned(f.setID, f.wayID) {
		log.Panicf("coherence: %s invalidates 0x%x while upper copies remain",
			target.name, f.tag)
	}

	if f.state.HoldsDirtyData() {
		f.replySize = target.blockSize + s.headerSize
	} else {
		f.replySize = s.headerSize
	}

	target.cache.SetBlock(f.setID, f.wayID, 0, cachearray.StateInvalid)
	s.unlock(f)
	s.schedule(f, stepWriteRequestReply, 0)
}
