package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("StepCountTracer", func() {
	var tracer *StepCountTracer

	BeforeEach(func() {
		tracer = NewStepCountTracer(AllTasks)
	})

	step := func(id, what string) Task {
		return Task{ID: id, Steps: []TaskStep{{What: what}}}
	}

	It("should count steps and the tasks that reach them", func() {
		tracer.StartTask(Task{ID: "1", Kind: "req_in", What: "load"})
		tracer.StartTask(Task{ID: "2", Kind: "req_in", What: "load"})

		tracer.StepTask(step("1", "load/lock"))
		tracer.StepTask(step("1", "load/lock"))
		tracer.StepTask(step("2", "load/lock"))
		tracer.StepTask(step("2", "load/finish"))

		Expect(tracer.GetStepNames()).To(Equal(
			[]string{"load/lock", "load/finish"}))
		Expect(tracer.GetStepCount("load/lock")).To(Equal(uint64(3)))
		Expect(tracer.GetTaskCount("load/lock")).To(Equal(uint64(2)))
		Expect(tracer.GetTaskCount("load/finish")).To(Equal(uint64(1)))
	})

	It("should not count steps of unknown or ended tasks", func() {
		tracer.StartTask(Task{ID: "1", Kind: "req_in", What: "load"})
		tracer.EndTask(Task{ID: "1"})

		tracer.StepTask(step("1", "load/lock"))
		tracer.StepTask(step("9", "load/lock"))

		Expect(tracer.GetStepCount("load/lock")).To(Equal(uint64(0)))
		Expect(tracer.GetStepNames()).To(BeEmpty())
	})
})
