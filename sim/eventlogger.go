package sim

import (
	"reflect"

	"github.com/sirupsen/logrus"
)

// EventLogger is an hook that prints the event information
type EventLogger struct {
	LogHookBase
}

var _ LogHook = (*EventLogger)(nil)

// NewEventLogger returns a new EventLogger which will write in to the logger
func NewEventLogger(logger logrus.FieldLogger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger
	return h
}

// Func writes the event and process information into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosBeforeEvent:
		h.logEvent(ctx)
	case HookPosAfterEvent:
		return
	default:
		h.logProcess(ctx)
	}
}

func (h *EventLogger) logEvent(ctx HookCtx) {
	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	fields := logrus.Fields{
		"now":   float64(evt.Time()),
		"event": reflect.TypeOf(evt).String(),
	}

	switch e := evt.(type) {
	case *SpawnEvent:
		fields["process"] = e.Name
	case *ResumeEvent:
		fields["pid"] = e.PID
	case *ProcessFailedEvent:
		fields["pid"] = e.Err.PID
	}

	h.Logger.WithFields(fields).Debug("event")
}

func (h *EventLogger) logProcess(ctx HookCtx) {
	info, ok := ctx.Item.(ProcessInfo)
	if !ok {
		return
	}

	entry := h.Logger.WithFields(logrus.Fields{
		"pid":     info.PID,
		"process": info.Name,
		"state":   info.StateName,
	})

	switch ctx.Pos {
	case HookPosProcessFail:
		entry.Warn(ctx.Pos.Name)
	default:
		entry.Debug(ctx.Pos.Name)
	}
}
