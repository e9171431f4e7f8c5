package directory_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/cohsim/idgen"
	"github.com/sarchlab/cohsim/mem/coherence/internal/directory"
)

var _ = Describe("LockTable", func() {
	var t *directory.LockTable

	BeforeEach(func() {
		t = directory.NewLockTable(4, 2)
	})

	It("should grant a free lock", func() {
		l := t.Lock(3, 1)

		Expect(l.TryLock(7)).To(BeTrue())
		Expect(l.Held()).To(BeTrue())
		Expect(l.Holder()).To(Equal(idgen.ID(7)))
		Expect(t.NumHeld()).To(Equal(1))
	})

	It("should refuse a held lock", func() {
		l := t.Lock(0, 0)
		l.TryLock(1)

		Expect(l.TryLock(2)).To(BeFalse())
		Expect(l.Holder()).To(Equal(idgen.ID(1)))
	})

	It("should wake waiters in arrival order", func() {
		l := t.Lock(1, 0)
		l.TryLock(1)
		l.Wait(3)
		l.Wait(2)
		Expect(l.NumWaiters()).To(Equal(2))

		Expect(l.Unlock()).To(Equal([]idgen.ID{3, 2}))
		Expect(l.Held()).To(BeFalse())
		Expect(l.NumWaiters()).To(Equal(0))
		Expect(t.NumHeld()).To(Equal(0))
	})

	It("should panic on double unlock", func() {
		l := t.Lock(0, 1)
		l.TryLock(1)
		l.Unlock()

		Expect(func() { l.Unlock() }).To(Panic())
	})

	It("should keep locks independent", func() {
		Expect(t.Lock(0, 0).TryLock(1)).To(BeTrue())
		Expect(t.Lock(0, 1).TryLock(2)).To(BeTrue())
		Expect(t.NumHeld()).To(Equal(2))
	})

	It("should panic on out-of-range locks", func() {
		Expect(func() { t.Lock(4, 0) }).To(Panic())
	})
})
