package sim

// WaitList maps predicates to the processes blocked on them. Each predicate
// has a FIFO queue of waiters. A process waits on at most one predicate at a
// time.
type WaitList struct {
	queues  map[*Predicate][]PID
	waiting map[PID]*Predicate
}

// NewWaitList creates an empty WaitList.
func NewWaitList() *WaitList {
	return &WaitList{
		queues:  make(map[*Predicate][]PID),
		waiting: make(map[PID]*Predicate),
	}
}

// Add appends the process to the queue of the predicate.
func (w *WaitList) Add(pid PID, p *Predicate) error {
	if _, ok := w.waiting[pid]; ok {
		return ErrAlreadyWaiting
	}

	w.queues[p] = append(w.queues[p], pid)
	w.waiting[pid] = p

	return nil
}

// PopFront removes and returns the first process waiting on the predicate.
func (w *WaitList) PopFront(p *Predicate) (PID, bool) {
	q := w.queues[p]
	if len(q) == 0 {
		return 0, false
	}

	pid := q[0]
	w.dropFront(p, q)
	delete(w.waiting, pid)

	return pid, true
}

func (w *WaitList) dropFront(p *Predicate, q []PID) {
	if len(q) == 1 {
		delete(w.queues, p)
		return
	}

	w.queues[p] = q[1:]
}

// Remove takes the process out of whatever queue it is in. It returns false
// if the process is not waiting.
func (w *WaitList) Remove(pid PID) bool {
	p, ok := w.waiting[pid]
	if !ok {
		return false
	}

	delete(w.waiting, pid)

	q := w.queues[p]
	for i, waiter := range q {
		if waiter != pid {
			continue
		}

		rest := append(q[:i:i], q[i+1:]...)
		if len(rest) == 0 {
			delete(w.queues, p)
		} else {
			w.queues[p] = rest
		}

		break
	}

	return true
}

// WaitingOn returns the predicate that the process is waiting on.
func (w *WaitList) WaitingOn(pid PID) (*Predicate, bool) {
	p, ok := w.waiting[pid]
	return p, ok
}

// Waiters returns a copy of the queue of the predicate.
func (w *WaitList) Waiters(p *Predicate) []PID {
	q := w.queues[p]
	out := make([]PID, len(q))
	copy(out, q)

	return out
}

// Len returns the total number of waiting processes.
func (w *WaitList) Len() int {
	return len(w.waiting)
}
