package tracing

import (
	"sync"

	"github.com/sarchlab/cohsim/datarecording"
	"github.com/sarchlab/cohsim/timing"
	"github.com/tebeka/atexit"
)

type taskTableEntry struct {
	ID        string
	ParentID  string
	Kind      string
	What      string
	Location  string
	StartTime uint64
	EndTime   uint64
	NumSteps  int
}

type stepTableEntry struct {
	TaskID string
	Time   uint64
	What   string
}

// DBTracer is a tracer that stores finished tasks, and optionally their
// steps, into a DataRecorder.
type DBTracer struct {
	mu         sync.Mutex
	timeTeller timing.TimeTeller
	backend    datarecording.DataRecorder
	withSteps  bool

	startTime, endTime timing.VTimeInCycle

	tracingTasks map[string]*Task
	terminated   bool
}

// NewDBTracer creates a new DBTracer. Tasks go to the "trace" table and, when
// withSteps is set, their steps go to the "trace_steps" table.
func NewDBTracer(
	timeTeller timing.TimeTeller,
	dataRecorder datarecording.DataRecorder,
	withSteps bool,
) *DBTracer {
	dataRecorder.CreateTable("trace", taskTableEntry{})

	if withSteps {
		dataRecorder.CreateTable("trace_steps", stepTableEntry{})
	}

	t := &DBTracer{
		timeTeller:   timeTeller,
		backend:      dataRecorder,
		withSteps:    withSteps,
		tracingTasks: make(map[string]*Task),
	}

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// SetTimeRange limits the tracer to tasks that overlap [startTime, endTime].
// An endTime of 0 means no upper bound.
func (t *DBTracer) SetTimeRange(startTime, endTime timing.VTimeInCycle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = startTime
	t.endTime = endTime
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	startingTaskMustBeValid(task)

	task.StartTime = t.timeTeller.CurrentTime()
	if t.endTime > 0 && task.StartTime > t.endTime {
		return
	}

	task.Steps = nil
	t.tracingTasks[task.ID] = &task
}

func startingTaskMustBeValid(task Task) {
	if task.ID == "" {
		panic("task ID must be set")
	}

	if task.Kind == "" {
		panic("task kind must be set")
	}

	if task.What == "" {
		panic("task what must be set")
	}

	if task.Location == "" {
		panic("task location must be set")
	}
}

// StepTask records the steps of a task that is being traced.
func (t *DBTracer) StepTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	now := t.timeTeller.CurrentTime()
	for _, step := range task.Steps {
		step.Time = now
		originalTask.Steps = append(originalTask.Steps, step)
	}
}

// EndTask marks the end of a task and writes it to the backend.
func (t *DBTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	delete(t.tracingTasks, task.ID)

	originalTask.EndTime = t.timeTeller.CurrentTime()
	if originalTask.EndTime < t.startTime {
		return
	}

	t.write(originalTask)
}

func (t *DBTracer) write(task *Task) {
	t.backend.InsertData("trace", taskTableEntry{
		ID:        task.ID,
		ParentID:  task.ParentID,
		Kind:      task.Kind,
		What:      task.What,
		Location:  task.Location,
		StartTime: uint64(task.StartTime),
		EndTime:   uint64(task.EndTime),
		NumSteps:  len(task.Steps),
	})

	if !t.withSteps {
		return
	}

	for _, step := range task.Steps {
		t.backend.InsertData("trace_steps", stepTableEntry{
			TaskID: task.ID,
			Time:   uint64(step.Time),
			What:   step.What,
		})
	}
}

// Terminate writes the unfinished tasks with the current time as their end
// time and flushes the backend.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated {
		return
	}

	t.terminated = true

	now := t.timeTeller.CurrentTime()
	for id, task := range t.tracingTasks {
		task.EndTime = now
		t.write(task)
		delete(t.tracingTasks, id)
	}

	t.backend.Flush()
}
