package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/cohsim/instrumentation/hooking"
)

type recordingTracer struct {
	started, stepped, ended []string
}

func (t *recordingTracer) StartTask(task Task) {
	t.started = append(t.started, task.ID)
}

func (t *recordingTracer) StepTask(task Task) {
	t.stepped = append(t.stepped, task.Steps[0].What)
}

func (t *recordingTracer) EndTask(task Task) {
	t.ended = append(t.ended, task.ID)
}

type namedDomain struct {
	*hooking.HookableBase
	name string
}

func (d namedDomain) Name() string {
	return d.name
}

var _ = Describe("CollectTrace", func() {
	var (
		domain namedDomain
		tracer *recordingTracer
	)

	BeforeEach(func() {
		domain = namedDomain{
			HookableBase: hooking.NewHookableBase(),
			name:         "system",
		}
		tracer = &recordingTracer{}
	})

	It("should forward task events to the tracer", func() {
		CollectTrace(domain, tracer)

		StartTask("1", "", domain, "req_in", "store", nil)
		AddTaskStep("1", domain, "store/finish")
		EndTask("1", domain)

		Expect(tracer.started).To(Equal([]string{"1"}))
		Expect(tracer.stepped).To(Equal([]string{"store/finish"}))
		Expect(tracer.ended).To(Equal([]string{"1"}))
	})

	It("should panic if the same tracer is attached twice", func() {
		CollectTrace(domain, tracer)

		Expect(func() { CollectTrace(domain, tracer) }).To(Panic())
	})

	It("should ignore unrelated hook positions", func() {
		CollectTrace(domain, tracer)

		domain.InvokeHook(hooking.HookCtx{
			Domain: domain,
			Pos:    &hooking.HookPos{Name: "Other"},
			Item:   "not a task",
		})

		Expect(tracer.started).To(BeEmpty())
	})
})
