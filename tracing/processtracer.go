package tracing

import (
	"fmt"

	"github.com/sarchlab/procsim/sim"
)

// ProcessTaskKind is the kind of the tasks created by a ProcessTracer.
const ProcessTaskKind = "process"

// ProcessTaskID returns the ID of the task that represents a process.
func ProcessTaskID(pid sim.PID) string {
	return fmt.Sprintf("process.%d", pid)
}

// A ProcessTracer is a hook that turns the life cycle of processes into
// tasks. A task starts when a process is spawned and ends when the process
// finishes, is killed, or fails. Every suspension and resumption is a step.
type ProcessTracer struct {
	tracer   Tracer
	location string
}

// TraceProcesses attaches a ProcessTracer to the domain, so that the tracer
// receives one task per process.
func TraceProcesses(domain NamedHookable, tracer Tracer) *ProcessTracer {
	t := &ProcessTracer{
		tracer:   tracer,
		location: domain.Name(),
	}

	domain.AcceptHook(t)

	return t
}

// Func converts a process hook into a tracer call.
func (t *ProcessTracer) Func(ctx sim.HookCtx) {
	info, ok := ctx.Item.(sim.ProcessInfo)
	if !ok {
		return
	}

	id := ProcessTaskID(info.PID)

	switch ctx.Pos {
	case sim.HookPosProcessSpawn:
		t.tracer.StartTask(Task{
			ID:       id,
			Kind:     ProcessTaskKind,
			What:     t.what(info),
			Location: t.location,
			Detail:   info,
		})
	case sim.HookPosProcessSuspend:
		t.tracer.StepTask(Task{
			ID:    id,
			Steps: []TaskStep{{What: t.suspendReason(info)}},
		})
	case sim.HookPosProcessResume:
		t.tracer.StepTask(Task{
			ID:    id,
			Steps: []TaskStep{{What: "resume"}},
		})
	case sim.HookPosProcessDone,
		sim.HookPosProcessKill,
		sim.HookPosProcessFail:
		t.tracer.EndTask(Task{ID: id, Detail: info})
	}
}

func (t *ProcessTracer) what(info sim.ProcessInfo) string {
	if info.Name == "" {
		return ProcessTaskKind
	}

	return info.Name
}

func (t *ProcessTracer) suspendReason(info sim.ProcessInfo) string {
	if info.WaitingOn != "" {
		return "wait " + info.WaitingOn
	}

	return "advance"
}
