package sim

import (
	"container/heap"
	"container/list"
	"sync"
)

// EventQueue are a queue of event ordered by the time of events. Events with
// the same time are ordered primary-before-secondary and then by the order
// they are pushed.
type EventQueue interface {
	Push(evt Event)
	Pop() (Event, error)
	Peek() (Event, error)
	Len() int
	IsEmpty() bool
	Remove(evt Event) bool
}

type queuedEvent struct {
	evt   Event
	seq   uint64
	index int
}

func eventBefore(a, b *queuedEvent) bool {
	if a.evt.Time() != b.evt.Time() {
		return a.evt.Time() < b.evt.Time()
	}

	if a.evt.IsSecondary() != b.evt.IsSecondary() {
		return !a.evt.IsSecondary()
	}

	return a.seq < b.seq
}

// EventQueueImpl provides a thread safe event queue
type EventQueueImpl struct {
	sync.Mutex
	events  eventHeap
	entries map[Event]*queuedEvent
	nextSeq uint64
}

// NewEventQueue creates and returns a newly created EventQueue
func NewEventQueue() *EventQueueImpl {
	q := new(EventQueueImpl)
	q.events = make([]*queuedEvent, 0)
	q.entries = make(map[Event]*queuedEvent)
	heap.Init(&q.events)
	return q
}

// Push adds an event to the event queue
func (q *EventQueueImpl) Push(evt Event) {
	q.Lock()
	e := &queuedEvent{evt: evt, seq: q.nextSeq}
	q.nextSeq++
	q.entries[evt] = e
	heap.Push(&q.events, e)
	q.Unlock()
}

// Pop returns the next earliest event
func (q *EventQueueImpl) Pop() (Event, error) {
	q.Lock()
	defer q.Unlock()

	if q.events.Len() == 0 {
		return nil, ErrEmptyQueue
	}

	e := heap.Pop(&q.events).(*queuedEvent)
	delete(q.entries, e.evt)

	return e.evt, nil
}

// Len returns the number of event in the queue
func (q *EventQueueImpl) Len() int {
	q.Lock()
	l := q.events.Len()
	q.Unlock()
	return l
}

// IsEmpty returns true if there is no event in the queue.
func (q *EventQueueImpl) IsEmpty() bool {
	return q.Len() == 0
}

// Peek returns the event in front of the queue without removing it from the
// queue
func (q *EventQueueImpl) Peek() (Event, error) {
	q.Lock()
	defer q.Unlock()

	if q.events.Len() == 0 {
		return nil, ErrEmptyQueue
	}

	return q.events[0].evt, nil
}

// Remove takes a pending event out of the queue. It returns false if the event
// is not in the queue.
func (q *EventQueueImpl) Remove(evt Event) bool {
	q.Lock()
	defer q.Unlock()

	e, ok := q.entries[evt]
	if !ok {
		return false
	}

	heap.Remove(&q.events, e.index)
	delete(q.entries, evt)

	return true
}

type eventHeap []*queuedEvent

// Len returns the length of the event queue
func (h eventHeap) Len() int {
	return len(h)
}

// Less determines the order between two events. Less returns true if the i-th
// event happens before the j-th event.
func (h eventHeap) Less(i, j int) bool {
	return eventBefore(h[i], h[j])
}

// Swap changes the position of two events in the event queue
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

// Push adds an event into the event queue
func (h *eventHeap) Push(x interface{}) {
	e := x.(*queuedEvent)
	e.index = len(*h)
	*h = append(*h, e)
}

// Pop removes and returns the next event to happen
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[0 : n-1]
	return e
}

// InsertionQueue is a queue that is based on insertion sort
type InsertionQueue struct {
	lock    sync.RWMutex
	l       *list.List
	nextSeq uint64
}

// NewInsertionQueue returns a new InsertionQueue
func NewInsertionQueue() *InsertionQueue {
	q := new(InsertionQueue)
	q.l = list.New()
	return q
}

// Push add an event to the event queue
func (q *InsertionQueue) Push(evt Event) {
	q.lock.Lock()
	defer q.lock.Unlock()

	e := &queuedEvent{evt: evt, seq: q.nextSeq}
	q.nextSeq++

	var ele *list.Element
	for ele = q.l.Front(); ele != nil; ele = ele.Next() {
		if eventBefore(e, ele.Value.(*queuedEvent)) {
			break
		}
	}

	if ele != nil {
		q.l.InsertBefore(e, ele)
	} else {
		q.l.PushBack(e)
	}
}

// Pop returns the event with the smallest time, and removes it from the queue
func (q *InsertionQueue) Pop() (Event, error) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.l.Len() == 0 {
		return nil, ErrEmptyQueue
	}

	e := q.l.Remove(q.l.Front()).(*queuedEvent)
	return e.evt, nil
}

// Len return the number of events in the queue
func (q *InsertionQueue) Len() int {
	q.lock.RLock()
	l := q.l.Len()
	q.lock.RUnlock()
	return l
}

// IsEmpty returns true if there is no event in the queue.
func (q *InsertionQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Peek returns the event at the front of the queue without removing it from
// the queue.
func (q *InsertionQueue) Peek() (Event, error) {
	q.lock.RLock()
	defer q.lock.RUnlock()

	if q.l.Len() == 0 {
		return nil, ErrEmptyQueue
	}

	return q.l.Front().Value.(*queuedEvent).evt, nil
}

// Remove takes a pending event out of the queue.
func (q *InsertionQueue) Remove(evt Event) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	for ele := q.l.Front(); ele != nil; ele = ele.Next() {
		if ele.Value.(*queuedEvent).evt == evt {
			q.l.Remove(ele)
			return true
		}
	}

	return false
}
