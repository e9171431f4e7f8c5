package tracing

import "github.com/sarchlab/cohsim/timing"

// A TaskStep represents a milestone in the processing of task
type TaskStep struct {
	Time timing.VTimeInCycle `json:"time"`
	What string              `json:"what"`
}

// A Task is a piece of work traced from its start to its end.
type Task struct {
	ID        string              `json:"id"`
	ParentID  string              `json:"parent_id"`
	Kind      string              `json:"kind"`
	What      string              `json:"what"`
	Location  string              `json:"location"`
	StartTime timing.VTimeInCycle `json:"start_time"`
	EndTime   timing.VTimeInCycle `json:"end_time"`
	Steps     []TaskStep          `json:"steps"`
	Detail    any                 `json:"-"`
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t Task) bool

// AllTasks is a TaskFilter that accepts every task.
func AllTasks(Task) bool {
	return true
}

// KindIs returns a TaskFilter that accepts tasks of one kind and what.
func KindIs(kind, what string) TaskFilter {
	return func(t Task) bool {
		return t.Kind == kind && (what == "" || t.What == what)
	}
}
