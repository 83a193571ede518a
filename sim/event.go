package sim

// VTimeInSec defines the time in the simulated space in the unit of second
type VTimeInSec float64

// An Event is something going to happen in the future.
type Event interface {
	// Return the time that the event should happen
	Time() VTimeInSec

	// Returns the handler that can should handle the event
	Handler() Handler

	// IsSecondary tells if the event is a secondary event. Secondary event are
	// handled after all same-time primary events are handled.
	IsSecondary() bool
}

// EventBase provides the basic fields and getters for other events
type EventBase struct {
	ID        string
	time      VTimeInSec
	handler   Handler
	secondary bool
}

// NewEventBase creates a new EventBase
func NewEventBase(t VTimeInSec, handler Handler) *EventBase {
	e := new(EventBase)
	e.ID = GetIDGenerator().Generate()
	e.time = t
	e.handler = handler
	e.secondary = false
	return e
}

// NewSecondaryEventBase creates an EventBase that is handled after all the
// primary events scheduled at the same time.
func NewSecondaryEventBase(t VTimeInSec, handler Handler) *EventBase {
	e := NewEventBase(t, handler)
	e.secondary = true
	return e
}

// Time return the time that the event is going to happen
func (e EventBase) Time() VTimeInSec {
	return e.time
}

// Handler returns the handler to handle the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary returns true if the event is a secondary event.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}

// A Handler reacts to an event. The handler runs while holding control of the
// simulator, so it can freely read and modify the simulator and the
// application state.
type Handler interface {
	Handle(s *Simulator, e Event) error
}

// HandlerFunc turns a function into a Handler.
type HandlerFunc func(s *Simulator, e Event) error

// Handle calls f(s, e).
func (f HandlerFunc) Handle(s *Simulator, e Event) error {
	return f(s, e)
}

// CallbackEvent is an event that invokes a plain function.
type CallbackEvent struct {
	*EventBase
}

// NewCallbackEvent creates an event that calls fn at time t.
func NewCallbackEvent(t VTimeInSec, fn HandlerFunc) *CallbackEvent {
	return &CallbackEvent{EventBase: NewEventBase(t, fn)}
}

// SpawnEvent starts a new process when handled.
type SpawnEvent struct {
	*EventBase

	Name string
	Body ProcessBody
}

// NewSpawnEvent creates a SpawnEvent.
func NewSpawnEvent(t VTimeInSec, name string, body ProcessBody) *SpawnEvent {
	evt := &SpawnEvent{Name: name, Body: body}
	evt.EventBase = NewEventBase(t, spawnHandler{})
	return evt
}

type spawnHandler struct{}

func (spawnHandler) Handle(s *Simulator, e Event) error {
	evt := e.(*SpawnEvent)
	_, err := s.spawn(evt.Name, evt.Body)
	return err
}

// ResumeEvent wakes up a process that is suspended on time.
type ResumeEvent struct {
	*EventBase

	PID PID
}

func newResumeEvent(t VTimeInSec, pid PID) *ResumeEvent {
	evt := &ResumeEvent{PID: pid}
	evt.EventBase = NewEventBase(t, resumeHandler{})
	return evt
}

type resumeHandler struct{}

func (resumeHandler) Handle(s *Simulator, e Event) error {
	evt := e.(*ResumeEvent)
	return s.resume(evt.PID)
}

// ProcessFailedEvent reports that the body of a process returned an error or
// panicked. It is scheduled at the time of the failure.
type ProcessFailedEvent struct {
	*EventBase

	Err *ProcessFailedError
}

func newProcessFailedEvent(t VTimeInSec, err *ProcessFailedError) *ProcessFailedEvent {
	evt := &ProcessFailedEvent{Err: err}
	evt.EventBase = NewEventBase(t, failureHandler{})
	return evt
}

type failureHandler struct{}

func (failureHandler) Handle(s *Simulator, e Event) error {
	evt := e.(*ProcessFailedEvent)
	return s.failurePolicy.HandleFailure(s, evt.Err)
}
