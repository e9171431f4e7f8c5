package config_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/cohsim/config"
	"github.com/sarchlab/cohsim/mem/coherence"
	"github.com/sarchlab/cohsim/timing"
)

const twoLevels = `
seed: 5
network:
  latency: 2
modules:
  - name: mm
    kind: main_memory
    sets: 16
    ways: 4
    block_size: 64
    latency: 10
  - name: l1-a
    lower: mm
    sets: 4
    ways: 2
    block_size: 32
    latency: 2
    policy: fifo
  - name: l1-b
    lower: mm
    sets: 4
    ways: 2
    block_size: 32
    latency: 2
`

var _ = Describe("Config", func() {
	It("should start from the default network", func() {
		c := config.Default()

		Expect(c.Seed).To(Equal(int64(1)))
		Expect(c.Network.HeaderSize).To(Equal(8))
		Expect(c.Modules).To(BeEmpty())
		Expect(c.Validate()).To(MatchError(ContainSubstring("no module defined")))
	})

	It("should parse a hierarchy and keep defaults", func() {
		c, err := config.Parse(strings.NewReader(twoLevels))

		Expect(err).NotTo(HaveOccurred())
		Expect(c.Seed).To(Equal(int64(5)))
		Expect(c.Network).To(Equal(config.Network{
			HeaderSize: 8,
			Latency:    2,
			Bandwidth:  72,
		}))
		Expect(c.Modules).To(HaveLen(3))
		Expect(c.Modules[1]).To(Equal(config.Module{
			Name:      "l1-a",
			Lower:     "mm",
			Sets:      4,
			Ways:      2,
			BlockSize: 32,
			Latency:   2,
			Policy:    "fifo",
		}))
	})

	It("should build a working system", func() {
		c, err := config.Parse(strings.NewReader(twoLevels))
		Expect(err).NotTo(HaveOccurred())

		engine := timing.NewSerialEngine()
		b, err := c.Builder(engine)
		Expect(err).NotTo(HaveOccurred())

		system := b.Build("system")
		Expect(system.MinBlockSize()).To(Equal(32))

		l1, ok := system.Module("l1-a")
		Expect(ok).To(BeTrue())
		Expect(l1.Lower().Name()).To(Equal("mm"))

		var value uint64
		_, err = system.Access(coherence.AccessReq{
			Kind:    coherence.AccessStore,
			Module:  "l1-a",
			Address: 0x80,
			Value:   3,
		}, func(coherence.AccessRsp) {})
		Expect(err).NotTo(HaveOccurred())

		_, err = system.IssueAt(100, coherence.AccessReq{
			Kind:    coherence.AccessLoad,
			Module:  "l1-b",
			Address: 0x80,
		}, func(rsp coherence.AccessRsp) { value = rsp.Value })
		Expect(err).NotTo(HaveOccurred())

		Expect(engine.Run()).To(Succeed())
		Expect(value).To(Equal(uint64(3)))
	})

	It("should load from a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "topo.yaml")
		Expect(os.WriteFile(path, []byte(twoLevels), 0o644)).To(Succeed())

		c, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Modules).To(HaveLen(3))

		_, err = config.Load(path + ".missing")
		Expect(err).To(MatchError(ContainSubstring("read config")))
	})

	DescribeTable("invalid configurations",
		func(text, msg string) {
			_, err := config.Parse(strings.NewReader(text))
			Expect(err).To(MatchError(ContainSubstring(msg)))
		},
		Entry("empty", "", "empty config"),
		Entry("no modules", "seed: 1\n", "no module defined"),
		Entry("unknown field", "modules:\n  - name: mm\n    size: 3\n",
			"field size not found"),
		Entry("unknown kind",
			"modules:\n  - name: mm\n    kind: disk\n",
			`modules[0]: kind: unknown module kind "disk"`),
		Entry("unknown policy",
			"modules:\n  - name: mm\n    kind: memory\n    policy: mru\n",
			`modules[0]: policy: unknown replacement policy "mru"`),
		Entry("no main memory",
			"modules:\n  - {name: l1, lower: l2, sets: 1, ways: 1, "+
				"block_size: 64, latency: 1}\n",
			"need exactly one main memory"),
		Entry("block larger than lower",
			"modules:\n"+
				"  - {name: mm, kind: main_memory, sets: 1, ways: 1, "+
				"block_size: 32, latency: 1}\n"+
				"  - {name: l1, lower: mm, sets: 1, ways: 1, "+
				"block_size: 64, latency: 1}\n",
			"block size 64 exceeds"),
		Entry("bad network",
			"network: {bandwidth: 0}\n"+
				"modules:\n"+
				"  - {name: mm, kind: main_memory, sets: 1, ways: 1, "+
				"block_size: 32, latency: 1}\n",
			"invalid network latency"),
	)
})
