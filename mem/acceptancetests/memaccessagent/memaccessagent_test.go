package memaccessagent

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/cohsim/mem/coherence"
	"github.com/sarchlab/cohsim/timing"
)

func module(name, lower string, kind coherence.ModuleKind, sets, ways int,
) coherence.ModuleSpec {
	latency := 2
	if kind == coherence.KindMainMemory {
		latency = 20
	}

	return coherence.ModuleSpec{
		Name:      name,
		Kind:      kind,
		Lower:     lower,
		NumSets:   sets,
		NumWays:   ways,
		BlockSize: 64,
		Latency:   latency,
	}
}

var _ = Describe("MemAccessAgent", func() {
	var (
		engine *timing.SerialEngine
		system *coherence.System
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		system = coherence.MakeBuilder().
			WithEngine(engine).
			WithSeed(3).
			WithModule(module("mm", "", coherence.KindMainMemory, 16, 4)).
			WithModule(module("l2", "mm", coherence.KindCache, 8, 4)).
			WithModule(module("l1-0", "l2", coherence.KindCache, 2, 2)).
			WithModule(module("l1-1", "l2", coherence.KindCache, 2, 2)).
			WithModule(module("l1-2", "l2", coherence.KindCache, 2, 2)).
			Build("system")
	})

	It("should issue to the leaf modules by default", func() {
		agent := MakeBuilder().
			WithEngine(engine).
			WithSystem(system).
			Build("agent")

		Expect(agent.Name()).To(Equal("agent"))
		Expect(agent.Modules).To(Equal([]string{"l1-0", "l1-1", "l1-2"}))
	})

	It("should panic without a system", func() {
		Expect(func() {
			MakeBuilder().WithEngine(engine).Build("agent")
		}).To(Panic())
	})

	It("should read back every value it writes", func() {
		agent := MakeBuilder().
			WithEngine(engine).
			WithSystem(system).
			WithSeed(11).
			WithMaxAddress(4096).
			WithWriteLeft(300).
			WithReadLeft(300).
			Build("agent")

		agent.Start()
		Expect(engine.Run()).To(Succeed())

		Expect(agent.Done()).To(BeTrue())
		Expect(agent.NumCompleted()).To(Equal(600))
		Expect(agent.Mismatches()).To(BeEmpty())
		Expect(system.NumLiveFrames()).To(Equal(0))
		Expect(system.NumLockedBlocks()).To(Equal(0))
		Expect(system.CheckInvariants()).To(Succeed())
	})

	It("should issue from a single module when restricted", func() {
		agent := MakeBuilder().
			WithEngine(engine).
			WithSystem(system).
			WithModules("l1-1").
			WithMaxInflight(1).
			WithWriteLeft(20).
			WithReadLeft(20).
			Build("agent")

		agent.Start()
		Expect(engine.Run()).To(Succeed())

		Expect(agent.Done()).To(BeTrue())
		Expect(agent.Mismatches()).To(BeEmpty())

		accesses := map[string]uint64{}
		for _, m := range system.Modules() {
			accesses[m.Name()] = m.Stats().Accesses
		}
		Expect(accesses["l1-0"]).To(Equal(uint64(0)))
		Expect(accesses["l1-1"]).To(BeNumerically(">=", 40))
	})
})
