package directory_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/cohsim/mem/coherence/internal/directory"
)

var _ = Describe("Directory", func() {
	var d *directory.Directory

	BeforeEach(func() {
		d = directory.New(2, 2, 4, 3)
	})

	It("should start empty", func() {
		for s := 0; s < 2; s++ {
			for w := 0; w < 2; w++ {
				Expect(d.SharedOrOwned(s, w)).To(BeFalse())
			}
		}

		Expect(d.Entry(1, 1, 3).Owner()).To(Equal(directory.NoOwner))
		Expect(d.NumSubBlocks()).To(Equal(4))
		Expect(d.NumNodes()).To(Equal(3))
	})

	It("should track sharers", func() {
		e := d.Entry(0, 1, 2)
		e.SetSharer(2)
		e.SetSharer(0)

		Expect(e.NumSharers()).To(Equal(2))
		Expect(e.Sharers()).To(Equal([]int{0, 2}))
		Expect(e.IsSharer(1)).To(BeFalse())
		Expect(d.SharedOrOwned(0, 1)).To(BeTrue())
		Expect(d.SharedOrOwned(0, 0)).To(BeFalse())
	})

	It("should only accept sharers as owners", func() {
		e := d.Entry(0, 0, 0)

		Expect(func() { e.SetOwner(1) }).To(Panic())

		e.SetSharer(1)
		e.SetOwner(1)
		Expect(e.Owner()).To(Equal(1))
	})

	It("should drop the owner with its sharer bit", func() {
		e := d.Entry(0, 0, 0)
		e.SetSharer(1)
		e.SetSharer(2)
		e.SetOwner(1)

		e.ClearSharer(2)
		Expect(e.Owner()).To(Equal(1))

		e.ClearSharer(1)
		Expect(e.Owner()).To(Equal(directory.NoOwner))
		Expect(e.SharedOrOwned()).To(BeFalse())
	})

	It("should clear a whole block", func() {
		d.Entry(1, 0, 0).SetSharer(0)
		d.Entry(1, 0, 3).SetSharer(1)
		d.Entry(1, 0, 3).SetOwner(1)

		d.Clear(1, 0)

		Expect(d.SharedOrOwned(1, 0)).To(BeFalse())
	})

	It("should validate owners", func() {
		e := d.Entry(1, 1, 2)
		e.SetSharer(0)
		e.SetOwner(0)
		Expect(d.Validate()).To(Succeed())

		directory.DropSharerBit(e, 0)
		Expect(d.Validate()).To(MatchError(ContainSubstring("(1, 1, 2)")))
	})

	It("should panic on out-of-range entries", func() {
		Expect(func() { d.Entry(2, 0, 0) }).To(Panic())
		Expect(func() { d.Entry(0, 0, 4) }).To(Panic())
	})

	It("should allow a directory without upper nodes", func() {
		leaf := directory.New(1, 1, 1, 0)
		Expect(leaf.SharedOrOwned(0, 0)).To(BeFalse())
	})
})
