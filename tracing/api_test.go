package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/cohsim/instrumentation/hooking"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Api", func() {
	var (
		mockCtrl *gomock.Controller
		domain   *MockNamedHookable
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		domain = NewMockNamedHookable(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("with hooks", func() {
		BeforeEach(func() {
			domain.EXPECT().NumHooks().Return(1).AnyTimes()
		})

		It("should panic if ID is not given", func() {
			domain.EXPECT().Name().Return("domain").AnyTimes()
			Expect(func() {
				StartTask("", "123", domain, "kind", "what", nil)
			}).Should(Panic())
		})

		It("should be panic if domain's name is empty.", func() {
			domain.EXPECT().Name().Return("").AnyTimes()
			Expect(func() {
				StartTask("id", "123", domain, "kind", "what", nil)
			}).Should(Panic())
		})

		It("should be panic if kind is empty.", func() {
			domain.EXPECT().Name().Return("domain").AnyTimes()
			Expect(func() {
				StartTask("id", "123", domain, "", "what", nil)
			}).Should(Panic())
		})

		It("should be panic if what is empty.", func() {
			domain.EXPECT().Name().Return("domain").AnyTimes()
			Expect(func() {
				StartTask("id", "123", domain, "kind", "", nil)
			}).Should(Panic())
		})

		It("should invoke the start hook with the task", func() {
			domain.EXPECT().Name().Return("domain").AnyTimes()
			domain.EXPECT().
				InvokeHook(gomock.Any()).
				Do(func(ctx hooking.HookCtx) {
					Expect(ctx.Pos).To(BeIdenticalTo(HookPosTaskStart))
					task := ctx.Item.(Task)
					Expect(task.ID).To(Equal("id"))
					Expect(task.ParentID).To(Equal("123"))
					Expect(task.Location).To(Equal("l1-0"))
					Expect(task.Detail).To(Equal(42))
				})

			StartTaskWithSpecificLocation(
				"id", "123", domain, "req_in", "load", "l1-0", 42)
		})

		It("should invoke the step and end hooks", func() {
			gomock.InOrder(
				domain.EXPECT().
					InvokeHook(gomock.Any()).
					Do(func(ctx hooking.HookCtx) {
						Expect(ctx.Pos).To(BeIdenticalTo(HookPosTaskStep))
						task := ctx.Item.(Task)
						Expect(task.Steps).To(HaveLen(1))
						Expect(task.Steps[0].What).To(Equal("load/lock"))
					}),
				domain.EXPECT().
					InvokeHook(gomock.Any()).
					Do(func(ctx hooking.HookCtx) {
						Expect(ctx.Pos).To(BeIdenticalTo(HookPosTaskEnd))
						Expect(ctx.Item.(Task).ID).To(Equal("id"))
					}),
			)

			AddTaskStep("id", domain, "load/lock")
			EndTask("id", domain)
		})
	})

	It("should not invoke hooks if the domain has no hook", func() {
		domain.EXPECT().NumHooks().Return(0).AnyTimes()

		StartTask("id", "", domain, "req_in", "load", nil)
		AddTaskStep("id", domain, "load/lock")
		EndTask("id", domain)
	})
})
