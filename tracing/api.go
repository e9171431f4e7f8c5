// Package tracing follows tasks, such as the accesses processed by a cache
// hierarchy, through the hooks of the domains that process them.
//
// A domain reports the life of a task with StartTask, AddTaskStep and
// EndTask. Tracers attached with CollectTrace receive the reports. When a
// domain has no hook, reporting costs a single NumHooks call.
package tracing

import (
	"log"

	"github.com/sarchlab/cohsim/instrumentation/hooking"
)

// NamedHookable is a domain that has a name and accepts hooks.
type NamedHookable interface {
	Name() string
	hooking.Hookable
}

// Hook positions raised by the reporting functions. The item is a Task.
var (
	HookPosTaskStart = &hooking.HookPos{Name: "HookPosTaskStart"}
	HookPosTaskStep  = &hooking.HookPos{Name: "HookPosTaskStep"}
	HookPosTaskEnd   = &hooking.HookPos{Name: "HookPosTaskEnd"}
)

// StartTask reports a task that starts at the domain.
func StartTask(
	id string,
	parentID string,
	domain NamedHookable,
	kind string,
	what string,
	detail any,
) {
	if domain.NumHooks() == 0 {
		return
	}

	StartTaskWithSpecificLocation(
		id, parentID, domain, kind, what, domain.Name(), detail)
}

// StartTaskWithSpecificLocation reports a task that starts at a location
// inside the domain, such as one module of a cache hierarchy.
func StartTaskWithSpecificLocation(
	id string,
	parentID string,
	domain NamedHookable,
	kind string,
	what string,
	location string,
	detail any,
) {
	if domain.NumHooks() == 0 {
		return
	}

	mustBeSet("id", id)
	mustBeSet("kind", kind)
	mustBeSet("what", what)
	mustBeSet("domain name", domain.Name())

	report(domain, HookPosTaskStart, Task{
		ID:       id,
		ParentID: parentID,
		Kind:     kind,
		What:     what,
		Location: location,
		Detail:   detail,
	})
}

// AddTaskStep reports that a task went through a named step.
func AddTaskStep(id string, domain NamedHookable, what string) {
	if domain.NumHooks() == 0 {
		return
	}

	report(domain, HookPosTaskStep, Task{
		ID:    id,
		Steps: []TaskStep{{What: what}},
	})
}

// EndTask reports that a task is finished.
func EndTask(id string, domain NamedHookable) {
	if domain.NumHooks() == 0 {
		return
	}

	report(domain, HookPosTaskEnd, Task{ID: id})
}

func report(domain NamedHookable, pos *hooking.HookPos, task Task) {
	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    pos,
		Item:   task,
	})
}

func mustBeSet(field, value string) {
	if value == "" {
		log.Panicf("tracing: task %s must not be empty", field)
	}
}
