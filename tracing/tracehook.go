package tracing

import (
	"log"

	"github.com/sarchlab/cohsim/instrumentation/hooking"
)

// CollectTrace attaches a tracer to a domain. Attaching the same tracer to a
// domain twice panics.
func CollectTrace(domain NamedHookable, tracer Tracer) {
	for _, h := range domain.Hooks() {
		if th, ok := h.(*traceHook); ok && th.tracer == tracer {
			log.Panicf("tracing: domain %s already has tracer %T",
				domain.Name(), tracer)
		}
	}

	domain.AcceptHook(&traceHook{tracer: tracer})
}

// A traceHook forwards the task reports of a domain to a tracer.
type traceHook struct {
	tracer Tracer
}

func (h *traceHook) Func(ctx hooking.HookCtx) {
	task, ok := ctx.Item.(Task)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosTaskStart:
		h.tracer.StartTask(task)
	case HookPosTaskStep:
		h.tracer.StepTask(task)
	case HookPosTaskEnd:
		h.tracer.EndTask(task)
	}
}
