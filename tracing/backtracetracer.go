package tracing

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// TaskPrinter can print tasks with a format.
type TaskPrinter interface {
	Print(task Task)
}

// LogTaskPrinter prints tasks as log entries.
type LogTaskPrinter struct {
	Logger logrus.FieldLogger
	Level  logrus.Level
}

// Print writes one entry for the task.
func (p LogTaskPrinter) Print(task Task) {
	p.Logger.WithFields(logrus.Fields{
		"task":     task.ID,
		"kind":     task.Kind,
		"location": task.Location,
		"start":    task.StartTime,
	}).Log(p.Level, task.What)
}

// BackTraceTracer keeps the tasks that have started but not ended. When a run
// stops early, it can print the chain of tasks that lead to a task, following
// the parent IDs.
type BackTraceTracer struct {
	printer      TaskPrinter
	tracingTasks map[string]Task
	lock         sync.Mutex
}

// NewBackTraceTracer creates a new BackTraceTracer. Without a printer, the
// tasks are logged to the standard logger at the warning level.
func NewBackTraceTracer(printer TaskPrinter) *BackTraceTracer {
	t := &BackTraceTracer{
		printer:      printer,
		tracingTasks: make(map[string]Task),
	}

	if t.printer == nil {
		t.printer = LogTaskPrinter{
			Logger: logrus.StandardLogger(),
			Level:  logrus.WarnLevel,
		}
	}

	return t
}

// StartTask records the task as in flight.
func (t *BackTraceTracer) StartTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.tracingTasks[task.ID] = task
}

// StepTask does nothing
func (t *BackTraceTracer) StepTask(_ Task) {
	// Do Nothing
}

// EndTask forgets the task.
func (t *BackTraceTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	delete(t.tracingTasks, task.ID)
}

// InFlight returns the tasks that have not ended, ordered by ID.
func (t *BackTraceTracer) InFlight() []Task {
	t.lock.Lock()
	defer t.lock.Unlock()

	tasks := make([]Task, 0, len(t.tracingTasks))
	for _, task := range t.tracingTasks {
		tasks = append(tasks, task)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].ID < tasks[j].ID
	})

	return tasks
}

// DumpBackTrace prints the task and its in-flight ancestors, starting from
// the task itself.
func (t *BackTraceTracer) DumpBackTrace(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	visited := make(map[string]bool)
	for {
		t.printer.Print(task)
		visited[task.ID] = true

		if task.ParentID == "" || visited[task.ParentID] {
			return
		}

		parentTask, ok := t.tracingTasks[task.ParentID]
		if !ok {
			return
		}

		task = parentTask
	}
}
