package sim

import (
	"sync"
)

// PID identifies a process within a simulator.
type PID uint64

// ProcessState is the state of a process.
type ProcessState int

// The states of a process.
const (
	ProcessCreated ProcessState = iota
	ProcessRunning
	ProcessSuspendedOnTime
	ProcessSuspendedOnPredicate
	ProcessDone
	ProcessKilled
	ProcessFailed
)

var processStateNames = map[ProcessState]string{
	ProcessCreated:              "created",
	ProcessRunning:              "running",
	ProcessSuspendedOnTime:      "suspended-on-time",
	ProcessSuspendedOnPredicate: "suspended-on-predicate",
	ProcessDone:                 "done",
	ProcessKilled:               "killed",
	ProcessFailed:               "failed",
}

func (s ProcessState) String() string {
	name, ok := processStateNames[s]
	if !ok {
		return "unknown"
	}

	return name
}

// IsSuspended returns true if the process is waiting for time or for a
// predicate.
func (s ProcessState) IsSuspended() bool {
	return s == ProcessSuspendedOnTime || s == ProcessSuspendedOnPredicate
}

// IsTerminated returns true if the process will never run again.
func (s ProcessState) IsTerminated() bool {
	return s == ProcessDone || s == ProcessKilled || s == ProcessFailed
}

// ProcessBody is the routine that a process executes. The body may only block
// through the ProcessCtx primitives. Returning an error marks the process as
// failed.
type ProcessBody func(ctx *ProcessCtx) error

type resumeToken struct {
	kill bool
}

// Process is the book-keeping record of a process.
type Process struct {
	id   PID
	name string
	body ProcessBody
	ctx  *ProcessCtx

	resume chan resumeToken
	exited chan struct{}

	state     ProcessState
	pending   Event
	waitingOn *Predicate
	failure   *ProcessFailedError

	spawnTime  VTimeInSec
	finishTime VTimeInSec
}

// ProcessInfo is a read-only snapshot of a process.
type ProcessInfo struct {
	PID        PID          `json:"pid"`
	Name       string       `json:"name"`
	State      ProcessState `json:"-"`
	StateName  string       `json:"state"`
	WaitingOn  string       `json:"waiting_on,omitempty"`
	WakeUpAt   VTimeInSec   `json:"wake_up_at,omitempty"`
	SpawnTime  VTimeInSec   `json:"spawn_time"`
	FinishTime VTimeInSec   `json:"finish_time,omitempty"`
	Failure    string       `json:"failure,omitempty"`
}

func (p *Process) info() ProcessInfo {
	info := ProcessInfo{
		PID:       p.id,
		Name:      p.name,
		State:     p.state,
		StateName: p.state.String(),
		SpawnTime: p.spawnTime,
	}

	if p.waitingOn != nil {
		info.WaitingOn = p.waitingOn.Name()
	}

	if p.pending != nil {
		info.WakeUpAt = p.pending.Time()
	}

	if p.state.IsTerminated() {
		info.FinishTime = p.finishTime
	}

	if p.failure != nil {
		info.Failure = p.failure.Error()
	}

	return info
}

// ProcessTable owns all the processes of a simulator.
type ProcessTable struct {
	lock      sync.RWMutex
	nextPID   PID
	processes map[PID]*Process
	order     []PID
}

// NewProcessTable creates an empty process table.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{
		nextPID:   1,
		processes: make(map[PID]*Process),
	}
}

func (t *ProcessTable) create(name string, body ProcessBody) *Process {
	t.lock.Lock()
	defer t.lock.Unlock()

	p := &Process{
		id:     t.nextPID,
		name:   name,
		body:   body,
		resume: make(chan resumeToken, 1),
		exited: make(chan struct{}),
		state:  ProcessCreated,
	}
	t.nextPID++

	t.processes[p.id] = p
	t.order = append(t.order, p.id)

	return p
}

func (t *ProcessTable) get(pid PID) (*Process, bool) {
	t.lock.RLock()
	p, ok := t.processes[pid]
	t.lock.RUnlock()

	return p, ok
}

// update mutates a process record while holding the table lock, so that
// snapshots taken by observers outside the simulation are consistent.
func (t *ProcessTable) update(p *Process, fn func(p *Process)) {
	t.lock.Lock()
	fn(p)
	t.lock.Unlock()
}

func (t *ProcessTable) setState(p *Process, state ProcessState) {
	t.update(p, func(p *Process) { p.state = state })
}

func (t *ProcessTable) stateOf(p *Process) ProcessState {
	t.lock.RLock()
	s := p.state
	t.lock.RUnlock()

	return s
}

func (t *ProcessTable) snapshot(p *Process) ProcessInfo {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return p.info()
}

// Get returns a snapshot of the process.
func (t *ProcessTable) Get(pid PID) (ProcessInfo, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	p, ok := t.processes[pid]
	if !ok {
		return ProcessInfo{}, false
	}

	return p.info(), true
}

// All returns snapshots of all the processes, in spawn order.
func (t *ProcessTable) All() []ProcessInfo {
	t.lock.RLock()
	defer t.lock.RUnlock()

	infos := make([]ProcessInfo, 0, len(t.order))
	for _, pid := range t.order {
		infos = append(infos, t.processes[pid].info())
	}

	return infos
}

// Live returns the PIDs of the processes that have not terminated.
func (t *ProcessTable) Live() []PID {
	t.lock.RLock()
	defer t.lock.RUnlock()

	pids := make([]PID, 0)
	for _, pid := range t.order {
		if !t.processes[pid].state.IsTerminated() {
			pids = append(pids, pid)
		}
	}

	return pids
}

// Len returns the number of processes ever spawned.
func (t *ProcessTable) Len() int {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return len(t.order)
}
