package sim

import (
	"fmt"
	"runtime"
)

// ProcessCtx is the handle that a process body uses to talk to the simulator.
// The blocking primitives AdvanceTime and WaitUntil are only valid on the
// handle of the process that is currently running.
type ProcessCtx struct {
	sim  *Simulator
	proc *Process
}

// ID returns the PID of the process.
func (c *ProcessCtx) ID() PID {
	return c.proc.id
}

// Name returns the name of the process.
func (c *ProcessCtx) Name() string {
	return c.proc.name
}

// Now returns the current simulated time.
func (c *ProcessCtx) Now() VTimeInSec {
	return c.sim.Now()
}

// State returns the application state of the simulator.
func (c *ProcessCtx) State() any {
	return c.sim.State()
}

// Simulator returns the simulator that runs the process.
func (c *ProcessCtx) Simulator() *Simulator {
	return c.sim
}

// AdvanceTime suspends the process for d units of simulated time.
func (c *ProcessCtx) AdvanceTime(d VTimeInSec) error {
	if err := c.mustBeRunning("AdvanceTime"); err != nil {
		return err
	}

	if err := validTime(d); err != nil {
		return err
	}

	if d < 0 {
		return fmt.Errorf("%w: %.10f", ErrNegativeDuration, d)
	}

	s := c.sim
	p := c.proc

	evt := newResumeEvent(s.Now()+d, p.id)
	s.queue.Push(evt)

	s.procs.update(p, func(p *Process) {
		p.pending = evt
		p.state = ProcessSuspendedOnTime
	})

	c.suspend()

	return nil
}

// WaitUntil suspends the process until the predicate becomes true. If the
// predicate is already true, WaitUntil returns immediately without giving up
// control.
func (c *ProcessCtx) WaitUntil(pred *Predicate) error {
	if err := c.mustBeRunning("WaitUntil"); err != nil {
		return err
	}

	if pred == nil {
		return ErrNilPredicate
	}

	if pred.Value() {
		return nil
	}

	s := c.sim
	p := c.proc

	if !s.predicates.owns(pred) {
		return fmt.Errorf("sim: predicate %q does not belong to the simulator",
			pred.Name())
	}

	if err := s.waitList.Add(p.id, pred); err != nil {
		return err
	}

	s.procs.update(p, func(p *Process) {
		p.waitingOn = pred
		p.state = ProcessSuspendedOnPredicate
	})

	c.suspend()

	return nil
}

// Spawn schedules a new process to start after the given delay.
func (c *ProcessCtx) Spawn(
	name string,
	delay VTimeInSec,
	body ProcessBody,
) (*SpawnEvent, error) {
	if err := c.mustBeRunning("Spawn"); err != nil {
		return nil, err
	}

	if err := validTime(delay); err != nil {
		return nil, err
	}

	if delay < 0 {
		return nil, fmt.Errorf("%w: %.10f", ErrNegativeDuration, delay)
	}

	return c.sim.AddProcess(name, c.sim.Now()+delay, body)
}

// Kill aborts another, currently suspended, process.
func (c *ProcessCtx) Kill(pid PID) error {
	if err := c.mustBeRunning("Kill"); err != nil {
		return err
	}

	if pid == c.proc.id {
		return &ProtocolError{PID: pid, Op: "Kill", State: ProcessRunning}
	}

	return c.sim.Kill(pid)
}

func (c *ProcessCtx) mustBeRunning(op string) error {
	s := c.sim
	p := c.proc

	state := s.procs.stateOf(p)
	if s.current != p || state != ProcessRunning {
		return &ProtocolError{PID: p.id, Op: op, State: state}
	}

	return nil
}

// suspend hands control back to the scheduler and blocks until the process is
// resumed. A kill token terminates the goroutine without returning to the
// body.
func (c *ProcessCtx) suspend() {
	s := c.sim
	p := c.proc

	s.InvokeHook(HookCtx{
		Domain: s,
		Pos:    HookPosProcessSuspend,
		Item:   s.procs.snapshot(p),
	})

	s.yield <- struct{}{}

	token := <-p.resume
	if token.kill {
		runtime.Goexit()
	}
}
