package coherence

import (
	"log"

	"github.com/sarchlab/cohsim/idgen"
	"github.com/sarchlab/cohsim/mem/coherence/internal/cachearray"
	"github.com/sarchlab/cohsim/mem/coherence/internal/directory"
	"github.com/sarchlab/cohsim/noc"
)

// A frame is the context of one invocation of a protocol. Children write
// their results into the frame of their parent and resume it at retStep.
type frame struct {
	id       idgen.ID
	accessID idgen.ID

	mod    *Module
	target *Module
	except *Module

	addr  uint64
	tag   uint64
	setID int
	wayID int
	state cachearray.State

	srcSet int
	srcWay int
	srcTag uint64

	parent       idgen.ID
	retStep      step
	pending      int
	liveChildren int

	err       bool
	shared    bool
	retry     bool
	blocking  bool
	read      bool
	hit       bool
	eviction  bool
	writeback bool

	lock      *directory.Lock
	msg       *noc.Message
	replySize int

	// access is only set on the frame of a top-level load or store.
	access *access
}

// upDown tells if the frame sends a request from an upper module to its
// lower module.
func (f *frame) upDown() bool {
	return f.mod.lower == f.target
}

// frameArena owns all the live frames.
type frameArena struct {
	ids    idgen.Generator
	frames map[idgen.ID]*frame
}

func newFrameArena(ids idgen.Generator) *frameArena {
	return &frameArena{
		ids:    ids,
		frames: make(map[idgen.ID]*frame),
	}
}

func (a *frameArena) create(accessID idgen.ID, mod *Module, addr uint64) *frame {
	f := &frame{
		id:       a.ids.Generate(),
		accessID: accessID,
		mod:      mod,
		addr:     addr,
	}
	a.frames[f.id] = f

	return f
}

func (a *frameArena) createChild(
	parent *frame,
	mod *Module,
	addr uint64,
	retStep step,
) *frame {
	f := a.create(parent.accessID, mod, addr)
	f.parent = parent.id
	f.retStep = retStep
	parent.liveChildren++

	return f
}

func (a *frameArena) get(id idgen.ID) *frame {
	f, ok := a.frames[id]
	if !ok {
		log.Panicf("coherence: frame %d does not exist", id)
	}

	return f
}

// parentOf returns the frame that f returns into.
func (a *frameArena) parentOf(f *frame) *frame {
	if f.parent == 0 {
		log.Panicf("coherence: frame %d has no parent", f.id)
	}

	return a.get(f.parent)
}

func (a *frameArena) release(f *frame) {
	if f.liveChildren != 0 {
		log.Panicf("coherence: releasing frame %d with %d live children",
			f.id, f.liveChildren)
	}

	if f.pending != 0 {
		log.Panicf("coherence: releasing frame %d with %d pending replies",
			f.id, f.pending)
	}

	if f.parent != 0 {
		a.get(f.parent).liveChildren--
	}

	delete(a.frames, f.id)
}

func (a *frameArena) size() int {
	return len(a.frames)
}
