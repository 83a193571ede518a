package sim

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyQueue is returned when popping or peeking an empty event queue.
	ErrEmptyQueue = errors.New("sim: event queue is empty")

	// ErrInvalidTime is returned when a time or a duration is NaN or
	// infinite.
	ErrInvalidTime = errors.New("sim: time is NaN or infinite")

	// ErrNegativeDuration is returned by AdvanceTime with a negative duration.
	ErrNegativeDuration = errors.New("sim: negative duration")

	// ErrPastEvent is returned when scheduling an event earlier than now.
	ErrPastEvent = errors.New("sim: cannot schedule an event in the past")

	// ErrAlreadyWaiting is returned when a process is added to the wait list
	// while it is already waiting on a predicate.
	ErrAlreadyWaiting = errors.New("sim: process is already waiting")

	// ErrNoSuchProcess is returned when a PID is not in the process table.
	ErrNoSuchProcess = errors.New("sim: no such process")

	// ErrTimeWentBackwards is returned by the run loop if it pops an event
	// that is earlier than the current time.
	ErrTimeWentBackwards = errors.New("sim: event time is earlier than now")

	// ErrNilPredicate is returned by WaitUntil with a nil predicate.
	ErrNilPredicate = errors.New("sim: nil predicate")
)

// ProtocolError reports a violation of the suspend/resume protocol, for
// example calling AdvanceTime from a process that is not running.
type ProtocolError struct {
	PID   PID
	Op    string
	State ProcessState
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("sim: protocol violation: %s on process %d in state %s",
		e.Op, e.PID, e.State)
}

// DeadProcessResumeError is returned when resuming (or killing) a process
// that has already terminated.
type DeadProcessResumeError struct {
	PID   PID
	State ProcessState
}

func (e *DeadProcessResumeError) Error() string {
	return fmt.Sprintf("sim: cannot resume process %d, it is %s",
		e.PID, e.State)
}

// ProcessFailedError records a process body that returned an error or
// panicked.
type ProcessFailedError struct {
	PID   PID
	Name  string
	Time  VTimeInSec
	Err   error
	Stack []byte
}

func (e *ProcessFailedError) Error() string {
	return fmt.Sprintf("sim: process %d (%s) failed at %.10f: %v",
		e.PID, e.Name, e.Time, e.Err)
}

func (e *ProcessFailedError) Unwrap() error {
	return e.Err
}

// PanicError wraps the value recovered from a panicking process body.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func validTime(t VTimeInSec) error {
	if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTime, float64(t))
	}

	return nil
}
