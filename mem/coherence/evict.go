package coherence

import (
	"log"

	"github.com/sarchlab/cohsim/mem/coherence/internal/cachearray"
	"github.com/sarchlab/cohsim/mem/coherence/internal/directory"
)

// evict removes the block at (f.setID, f.wayID) of f.mod. Upper copies are
// invalidated first, then the lower module drops f.mod from its directory,
// taking the data if the block is dirty.
func (s *System) evict(f *frame, st step) {
	mod := f.mod
	target := f.target
	ret := s.frames.parentOf(f)

	switch st {
	case stepEvict:
		ret.err = false

		b := mod.cache.Block(f.setID, f.wayID)
		f.tag = b.Tag
		f.state = b.State
		if !f.state.IsValid() && mod.dir.SharedOrOwned(f.setID, f.wayID) {
			log.Panicf("coherence: evicting invalid block (%d, %d) of %s "+
				"that still has sharers", f.setID, f.wayID, mod.name)
		}

		f.srcSet = f.setID
		f.srcWay = f.wayID
		f.srcTag = f.tag
		f.target = mod.lower

		child := s.frames.createChild(f, mod, 0, stepEvictInvalid)
		child.setID = f.setID
		child.wayID = f.wayID
		s.call(child, stepInvalidate)

	case stepEvictInvalid:
		if mod.kind == KindMainMemory {
			mod.cache.SetBlock(f.srcSet, f.srcWay, 0, cachearray.StateInvalid)
			s.schedule(f, stepEvictFinish, 0)

			return
		}

		s.schedule(f, stepEvictAction, 0)

	case stepEvictAction:
		s.evictAction(f)

	case stepEvictReceive:
		target.highNet.Receive(target.highNode, f.msg)

		child := s.frames.createChild(f, target, f.srcTag, stepEvictWriteback)
		child.blocking = false
		child.read = false
		child.retry = false
		s.call(child, stepFindAndLock)

	case stepEvictWriteback:
		if f.err {
			ret.err = true
			s.schedule(f, stepEvictReply, 0)

			return
		}

		if !f.writeback {
			s.schedule(f, stepEvictProcess, 0)
			return
		}

		child := s.frames.createChild(f, target, 0, stepEvictWritebackExclusive)
		child.except = mod
		child.setID = f.setID
		child.wayID = f.wayID
		s.call(child, stepInvalidate)

	case stepEvictWritebackExclusive:
		s.evictWritebackExclusive(f)

	case stepEvictWritebackFinish:
		if f.err {
			ret.err = true
			s.unlock(f)
			s.schedule(f, stepEvictReply, 0)

			return
		}

		target.cache.SetBlock(f.setID, f.wayID, f.tag,
			cachearray.StateModified)
		s.schedule(f, stepEvictProcess, 0)

	case stepEvictProcess:
		target.forEachSubBlock(f.setID, f.wayID, f.tag, f.srcTag, mod.blockSize,
			func(_ uint64, e *directory.Entry) {
				e.ClearSharer(mod.sharerID)
			})
		s.unlock(f)
		s.schedule(f, stepEvictReply, 0)

	case stepEvictReply:
		s.send(f, target.highNet, target.highNode, mod.lowNode,
			s.headerSize, stepEvictReplyReceive, stepEvictReply)

	case stepEvictReplyReceive:
		mod.lowNet.Receive(mod.lowNode, f.msg)

		if !f.err {
			mod.cache.SetBlock(f.srcSet, f.srcWay, 0, cachearray.StateInvalid)
		}

		if mod.dir.SharedOrOwned(f.srcSet, f.srcWay) {
			log.Panicf("coherence: evicted block (%d, %d) of %s still "+
				"has sharers", f.srcSet, f.srcWay, mod.name)
		}

		s.schedule(f, stepEvictFinish, 0)

	case stepEvictFinish:
		s.ret(f)

	default:
		log.Panicf("coherence: %s is not an evict step", st)
	}
}

func (s *System) evictAction(f *frame) {
	mod := f.mod

	switch f.state {
	case cachearray.StateInvalid:
		s.schedule(f, stepEvictFinish, 0)
	case cachearray.StateModified, cachearray.StateOwned:
		f.writeback = true
		s.send(f, mod.lowNet, mod.lowNode, f.target.highNode,
			mod.blockSize+s.headerSize, stepEvictReceive, stepEvictAction)
	case cachearray.StateShared, cachearray.StateExclusive:
		s.send(f, mod.lowNet, mod.lowNode, f.target.highNode,
			s.headerSize, stepEvictReceive, stepEvictAction)
	default:
		log.Panicf("coherence: block of %s in unknown state %d",
			mod.name, f.state)
	}
}

func (s *System) evictWritebackExclusive(f *frame) {
	target := f.target

	switch f.state {
	case cachearray.StateInvalid:
		log.Panicf("coherence: %s receives a writeback for 0x%x "+
			"that it does not have", target.name, f.srcTag)
	case cachearray.StateOwned, cachearray.StateShared:
		if target.lower == nil {
			log.Panicf("coherence: %s holds 0x%x in %s without a lower "+
				"module", target.name, f.tag, f.state)
		}

		child := s.frames.createChild(f, target, f.tag, stepEvictWritebackFinish)
		child.target = target.lower
		s.call(child, stepWriteRequest)
	default:
		s.schedule(f, stepEvictWritebackFinish, 0)
	}
}
