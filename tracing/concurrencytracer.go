package tracing

import (
	"sync"

	"github.com/sarchlab/procsim/sim"
)

// ConcurrencyTracer counts how many tasks of a kind are in flight at the same
// time. It keeps the current count, the peak, and the time-weighted average.
type ConcurrencyTracer struct {
	lock       sync.Mutex
	timeTeller sim.TimeTeller
	filter     TaskFilter

	inflight map[string]bool
	current  int
	max      int

	started   bool
	firstTime sim.VTimeInSec
	lastTime  sim.VTimeInSec
	area      float64
}

// NewConcurrencyTracer creates a new ConcurrencyTracer.
func NewConcurrencyTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *ConcurrencyTracer {
	return &ConcurrencyTracer{
		timeTeller: timeTeller,
		filter:     filter,
		inflight:   make(map[string]bool),
	}
}

// Current returns the number of tasks in flight.
func (t *ConcurrencyTracer) Current() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.current
}

// Max returns the largest number of tasks that were in flight together.
func (t *ConcurrencyTracer) Max() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.max
}

// Average returns the time-weighted average number of in-flight tasks from
// the start of the first task until now.
func (t *ConcurrencyTracer) Average(now sim.VTimeInSec) float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	if !t.started || now <= t.firstTime {
		return 0
	}

	area := t.area
	if now > t.lastTime {
		area += float64(t.current) * float64(now-t.lastTime)
	}

	return area / float64(now-t.firstTime)
}

// StartTask counts a task in.
func (t *ConcurrencyTracer) StartTask(task Task) {
	if t.filter != nil && !t.filter(task) {
		return
	}

	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	if t.inflight[task.ID] {
		return
	}

	if !t.started {
		t.started = true
		t.firstTime = now
		t.lastTime = now
	}

	t.accumulate(now)
	t.inflight[task.ID] = true
	t.current++

	if t.current > t.max {
		t.max = t.current
	}
}

// StepTask does nothing.
func (t *ConcurrencyTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask counts a task out.
func (t *ConcurrencyTracer) EndTask(task Task) {
	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	if !t.inflight[task.ID] {
		return
	}

	t.accumulate(now)
	delete(t.inflight, task.ID)
	t.current--
}

func (t *ConcurrencyTracer) accumulate(now sim.VTimeInSec) {
	if now > t.lastTime {
		t.area += float64(t.current) * float64(now-t.lastTime)
		t.lastTime = now
	}
}
