package sim

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

// Forever can be passed to Run to run until the event queue is empty.
const Forever = VTimeInSec(math.MaxFloat64)

// A Simulator is a process-oriented discrete event simulator. It runs events
// one after another and lets processes suspend on time and on predicates.
//
// Exactly one participant holds control at any instant: either the scheduler
// (running an event handler) or one process body. Control moves with a token
// handshake. The scheduler always blocks right after waking a process, and a
// process always wakes the scheduler right before blocking.
type Simulator struct {
	HookableBase

	id    string
	state any

	timeLock sync.RWMutex
	now      VTimeInSec

	queue      EventQueue
	procs      *ProcessTable
	waitList   *WaitList
	predicates predicateArena

	yield   chan struct{}
	current *Process

	failurePolicy FailurePolicy
	logger        logrus.FieldLogger

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex

	simulationEndHandlers []SimulationEndHandler
}

var _ Engine = (*Simulator)(nil)

// NewSimulator creates a Simulator with default settings. Use MakeBuilder
// for more options.
func NewSimulator(state any) *Simulator {
	return MakeBuilder().WithState(state).Build()
}

func newSimulator(
	state any,
	queue EventQueue,
	policy FailurePolicy,
	logger logrus.FieldLogger,
) *Simulator {
	return &Simulator{
		id:            xid.New().String(),
		state:         state,
		queue:         queue,
		procs:         NewProcessTable(),
		waitList:      NewWaitList(),
		yield:         make(chan struct{}, 1),
		failurePolicy: policy,
		logger:        logger,
	}
}

// ID returns the unique ID of the simulator.
func (s *Simulator) ID() string {
	return s.id
}

// Name returns the name of the simulator, which is used in hooks and traces.
func (s *Simulator) Name() string {
	return "Simulator"
}

// State returns the application state object.
func (s *Simulator) State() any {
	return s.state
}

// Logger returns the logger of the simulator.
func (s *Simulator) Logger() logrus.FieldLogger {
	return s.logger
}

// Processes returns the process table.
func (s *Simulator) Processes() *ProcessTable {
	return s.procs
}

// WaitList returns the wait list.
func (s *Simulator) WaitList() *WaitList {
	return s.waitList
}

// PendingEvents returns the number of events in the future event list.
func (s *Simulator) PendingEvents() int {
	return s.queue.Len()
}

// NewPredicate creates a shared boolean condition that processes can wait on.
func (s *Simulator) NewPredicate(name string, initial bool) *Predicate {
	return s.predicates.create(name, initial)
}

// Now returns the current simulated time. It is safe to call from any
// goroutine.
func (s *Simulator) Now() VTimeInSec {
	s.timeLock.RLock()
	t := s.now
	s.timeLock.RUnlock()
	return t
}

// CurrentTime returns the current time at which the engine is at.
// Specifically, the run time of the current event.
func (s *Simulator) CurrentTime() VTimeInSec {
	return s.Now()
}

func (s *Simulator) writeNow(t VTimeInSec) {
	s.timeLock.Lock()
	s.now = t
	s.timeLock.Unlock()
}

// Schedule register an event to be happen in the future
func (s *Simulator) Schedule(evt Event) error {
	if err := validTime(evt.Time()); err != nil {
		return err
	}

	now := s.Now()
	if evt.Time() < now {
		return fmt.Errorf("%w: evt %s @ %.10f, now %.10f",
			ErrPastEvent, reflect.TypeOf(evt), evt.Time(), now)
	}

	s.queue.Push(evt)

	return nil
}

// ScheduleFunc schedules a function to be called at time t.
func (s *Simulator) ScheduleFunc(t VTimeInSec, fn HandlerFunc) (Event, error) {
	evt := NewCallbackEvent(t, fn)
	if err := s.Schedule(evt); err != nil {
		return nil, err
	}

	return evt, nil
}

// AddProcess schedules a process to be spawned at time t.
func (s *Simulator) AddProcess(
	name string,
	t VTimeInSec,
	body ProcessBody,
) (*SpawnEvent, error) {
	evt := NewSpawnEvent(t, name, body)
	if err := s.Schedule(evt); err != nil {
		return nil, err
	}

	return evt, nil
}

// Spawn starts a process immediately and returns when the process suspends or
// terminates for the first time. It must be called from an event handler.
func (s *Simulator) Spawn(name string, body ProcessBody) (PID, error) {
	return s.spawn(name, body)
}

func (s *Simulator) spawn(name string, body ProcessBody) (PID, error) {
	if s.current != nil {
		return 0, &ProtocolError{
			PID:   s.current.id,
			Op:    "Spawn",
			State: s.procs.stateOf(s.current),
		}
	}

	p := s.procs.create(name, body)
	p.ctx = &ProcessCtx{sim: s, proc: p}
	s.procs.update(p, func(p *Process) {
		p.spawnTime = s.Now()
		p.state = ProcessRunning
	})

	s.InvokeHook(HookCtx{
		Domain: s,
		Pos:    HookPosProcessSpawn,
		Item:   s.procs.snapshot(p),
	})

	s.current = p
	go s.runProcess(p)
	<-s.yield
	s.current = nil

	return p.id, s.afterYield(p)
}

func (s *Simulator) runProcess(p *Process) {
	var bodyErr error

	defer func() {
		if s.procs.stateOf(p) == ProcessKilled {
			close(p.exited)
			return
		}

		if r := recover(); r != nil {
			bodyErr = &PanicError{Value: r}
			s.markFailed(p, bodyErr, debug.Stack())
		} else if bodyErr != nil {
			s.markFailed(p, bodyErr, nil)
		} else {
			s.procs.update(p, func(p *Process) {
				p.state = ProcessDone
				p.finishTime = s.Now()
			})
		}

		s.yield <- struct{}{}
	}()

	bodyErr = p.body(p.ctx)
}

func (s *Simulator) markFailed(p *Process, err error, stack []byte) {
	now := s.Now()
	s.procs.update(p, func(p *Process) {
		p.state = ProcessFailed
		p.finishTime = now
		p.failure = &ProcessFailedError{
			PID:   p.id,
			Name:  p.name,
			Time:  now,
			Err:   err,
			Stack: stack,
		}
	})
}

// resume hands control to a suspended process and waits until it gives the
// control back.
func (s *Simulator) resume(pid PID) error {
	p, ok := s.procs.get(pid)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoSuchProcess, pid)
	}

	state := s.procs.stateOf(p)
	if state.IsTerminated() {
		return &DeadProcessResumeError{PID: pid, State: state}
	}

	if !state.IsSuspended() {
		return &ProtocolError{PID: pid, Op: "resume", State: state}
	}

	s.procs.update(p, func(p *Process) {
		p.pending = nil
		p.waitingOn = nil
		p.state = ProcessRunning
	})

	s.InvokeHook(HookCtx{
		Domain: s,
		Pos:    HookPosProcessResume,
		Item:   s.procs.snapshot(p),
	})

	s.current = p
	p.resume <- resumeToken{}
	<-s.yield
	s.current = nil

	return s.afterYield(p)
}

func (s *Simulator) afterYield(p *Process) error {
	info := s.procs.snapshot(p)

	switch info.State {
	case ProcessDone:
		s.InvokeHook(HookCtx{
			Domain: s,
			Pos:    HookPosProcessDone,
			Item:   info,
		})
	case ProcessFailed:
		s.InvokeHook(HookCtx{
			Domain: s,
			Pos:    HookPosProcessFail,
			Item:   info,
			Detail: p.failure,
		})
		s.queue.Push(newProcessFailedEvent(s.Now(), p.failure))
	case ProcessSuspendedOnTime, ProcessSuspendedOnPredicate:
	default:
		return &ProtocolError{PID: p.id, Op: "yield", State: info.State}
	}

	return nil
}

// Kill aborts a suspended process. Its pending wake-up is withdrawn and its
// body never runs again. Killing a process that is not suspended is an error.
// Kill does not lock the simulator. Call it from an event handler, from a
// process body through ProcessCtx.Kill, or from the host inside Inspect.
func (s *Simulator) Kill(pid PID) error {
	p, ok := s.procs.get(pid)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoSuchProcess, pid)
	}

	state := s.procs.stateOf(p)
	if state.IsTerminated() {
		return &DeadProcessResumeError{PID: pid, State: state}
	}

	if !state.IsSuspended() {
		return &ProtocolError{PID: pid, Op: "Kill", State: state}
	}

	if p.pending != nil {
		s.queue.Remove(p.pending)
	}
	s.waitList.Remove(pid)

	now := s.Now()
	s.procs.update(p, func(p *Process) {
		p.pending = nil
		p.waitingOn = nil
		p.state = ProcessKilled
		p.finishTime = now
	})

	p.resume <- resumeToken{kill: true}
	<-p.exited

	s.InvokeHook(HookCtx{
		Domain: s,
		Pos:    HookPosProcessKill,
		Item:   s.procs.snapshot(p),
	})

	return nil
}

// Terminate kills all the processes that are still suspended, so that no
// goroutine is left blocked. It is a host-level call. If a run is going on in
// the background, Terminate waits until the current event is handled and the
// run returns once the remaining events are drained. It must not be called
// from an event handler or a process body.
func (s *Simulator) Terminate() {
	s.Inspect(func() {
		for _, pid := range s.procs.Live() {
			err := s.Kill(pid)
			if err != nil {
				s.logger.WithField("pid", pid).
					Warnf("cannot kill process: %v", err)
			}
		}
	})
}

// Run processes the events until the queue is empty or the next event is
// later than tMax. In the latter case, the time is moved to tMax and the event
// stays in the queue. Run returns the final simulated time.
func (s *Simulator) Run(tMax VTimeInSec) (VTimeInSec, error) {
	return s.RunContext(context.Background(), tMax)
}

// RunContext is Run that also returns when the context is done. The context is
// checked between events.
func (s *Simulator) RunContext(
	ctx context.Context,
	tMax VTimeInSec,
) (VTimeInSec, error) {
	s.singleRunLock.Lock()
	defer s.singleRunLock.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return s.Now(), err
		}

		s.pauseLock.Lock()
		stop, err := s.step(tMax)
		s.pauseLock.Unlock()

		if err != nil || stop {
			return s.Now(), err
		}
	}
}

// RunResult is the outcome of a run started with RunAsync.
type RunResult struct {
	Now VTimeInSec
	Err error
}

// RunAsync runs the simulation in a separate goroutine. The result is
// delivered on the returned channel.
func (s *Simulator) RunAsync(
	ctx context.Context,
	tMax VTimeInSec,
) <-chan RunResult {
	out := make(chan RunResult, 1)

	go func() {
		now, err := s.RunContext(ctx, tMax)
		out <- RunResult{Now: now, Err: err}
		close(out)
	}()

	return out
}

func (s *Simulator) step(tMax VTimeInSec) (stop bool, err error) {
	next, err := s.queue.Peek()
	if err != nil {
		return true, nil
	}

	now := s.Now()
	if next.Time() > tMax {
		if now < tMax {
			s.writeNow(tMax)
		}

		return true, nil
	}

	evt, err := s.queue.Pop()
	if err != nil {
		return true, err
	}

	if evt.Time() < now {
		return true, fmt.Errorf("%w: evt %s @ %.10f, now %.10f",
			ErrTimeWentBackwards, reflect.TypeOf(evt), evt.Time(), now)
	}

	s.writeNow(evt.Time())

	hookCtx := HookCtx{
		Domain: s,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	s.InvokeHook(hookCtx)

	if err := evt.Handler().Handle(s, evt); err != nil {
		return true, err
	}

	hookCtx.Pos = HookPosAfterEvent
	s.InvokeHook(hookCtx)

	if err := s.drainWaitList(); err != nil {
		return true, err
	}

	return false, nil
}

// drainWaitList resumes the processes whose predicates are true. The predicate
// is checked again before each waiter is resumed, since a resumed process may
// reset it. Passes repeat until no process can be resumed, so that all the
// wake-ups of the current instant happen before the time moves on.
func (s *Simulator) drainWaitList() error {
	for {
		resumed := false

		for _, pred := range s.predicates.cells {
			for pred.Value() {
				pid, ok := s.waitList.PopFront(pred)
				if !ok {
					break
				}

				if err := s.resume(pid); err != nil {
					return err
				}

				resumed = true
			}
		}

		if !resumed {
			return nil
		}
	}
}

// Pause prevents the Simulator to trigger more events.
func (s *Simulator) Pause() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if s.isPaused {
		return
	}

	s.pauseLock.Lock()
	s.isPaused = true
}

// Continue allows the Simulator to trigger more events.
func (s *Simulator) Continue() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if !s.isPaused {
		return
	}

	s.pauseLock.Unlock()
	s.isPaused = false
}

// IsPaused tells if the simulator is paused.
func (s *Simulator) IsPaused() bool {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	return s.isPaused
}

// Inspect calls fn between two events, so that fn observes a consistent
// application state while a run is going on in another goroutine.
func (s *Simulator) Inspect(fn func()) {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if s.isPaused {
		fn()
		return
	}

	s.pauseLock.Lock()
	fn()
	s.pauseLock.Unlock()
}

// RegisterSimulationEndHandler registers a handler to be called by Finished.
func (s *Simulator) RegisterSimulationEndHandler(
	handler SimulationEndHandler,
) {
	s.simulationEndHandlers = append(s.simulationEndHandlers, handler)
}

// Finished should be called after the simulation ends. This function
// calls all the registered SimulationEndHandler.
func (s *Simulator) Finished() {
	now := s.Now()
	for _, h := range s.simulationEndHandlers {
		h.Handle(now)
	}
}
