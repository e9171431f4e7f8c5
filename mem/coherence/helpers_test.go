package coherence

import (
	. "github.com/onsi/gomega"
	"github.com/sarchlab/cohsim/instrumentation/hooking"
	"github.com/sarchlab/cohsim/noc"
	"github.com/sarchlab/cohsim/timing"
)

func cacheSpec(name, lower string, numSets, numWays int) ModuleSpec {
	return ModuleSpec{
		Name:      name,
		Kind:      KindCache,
		Lower:     lower,
		NumSets:   numSets,
		NumWays:   numWays,
		BlockSize: 64,
		Latency:   2,
	}
}

func memorySpec(name string, numSets, numWays int) ModuleSpec {
	return ModuleSpec{
		Name:      name,
		Kind:      KindMainMemory,
		NumSets:   numSets,
		NumWays:   numWays,
		BlockSize: 64,
		Latency:   10,
	}
}

func buildSystem(
	engine timing.EventScheduler,
	specs ...ModuleSpec,
) *System {
	b := MakeBuilder().
		WithEngine(engine).
		WithSeed(1)

	for _, spec := range specs {
		b = b.WithModule(spec)
	}

	return b.Build("system")
}

// twoL1s builds l1-a and l1-b sharing l2, above main memory mm.
func twoL1s(engine timing.EventScheduler) *System {
	return buildSystem(engine,
		memorySpec("mm", 64, 8),
		cacheSpec("l2", "mm", 16, 4),
		cacheSpec("l1-a", "l2", 4, 2),
		cacheSpec("l1-b", "l2", 4, 2),
	)
}

func mustModule(s *System, name string) *Module {
	m, ok := s.Module(name)
	Expect(ok).To(BeTrue(), "module %s", name)

	return m
}

// do runs one access to completion and returns its response.
func do(
	engine *timing.SerialEngine,
	s *System,
	kind AccessKind,
	module string,
	addr, value uint64,
) AccessRsp {
	var rsp *AccessRsp

	_, err := s.Access(AccessReq{
		Kind:    kind,
		Module:  module,
		Address: addr,
		Value:   value,
	}, func(r AccessRsp) { rsp = &r })
	Expect(err).NotTo(HaveOccurred())
	Expect(engine.Run()).To(Succeed())
	Expect(rsp).NotTo(BeNil(), "access did not complete")

	return *rsp
}

func expectQuiescent(s *System) {
	Expect(s.NumLiveFrames()).To(Equal(0))
	Expect(s.NumLockedBlocks()).To(Equal(0))
	Expect(s.CheckInvariants()).To(Succeed())

	for _, m := range s.Modules() {
		Expect(m.InFlightAccesses()).To(BeEmpty(), m.Name())
	}
}

// sentMessage is a message observed when it enters a network.
type sentMessage struct {
	src, dst string
	size     int
	cycle    timing.VTimeInCycle
}

func recordSends(net *noc.Network, engine timing.TimeTeller) *[]sentMessage {
	sent := &[]sentMessage{}

	net.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
		if ctx.Pos != noc.HookPosNetSend {
			return
		}

		msg := ctx.Item.(*noc.Message)
		*sent = append(*sent, sentMessage{
			src:   msg.Src.Name(),
			dst:   msg.Dst.Name(),
			size:  msg.Size,
			cycle: engine.CurrentTime(),
		})
	}))

	return sent
}

func countSends(sent []sentMessage, src, dst string, size int) int {
	n := 0
	for _, m := range sent {
		if m.src == src && m.dst == dst && m.size == size {
			n++
		}
	}

	return n
}
