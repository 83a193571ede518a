package sim

// A Predicate is a shared boolean condition that processes can wait on.
//
// Predicates have reference semantics. All the processes that hold the same
// *Predicate observe the same value. Predicates must be created with
// Simulator.NewPredicate so that the scheduler can find them when draining the
// wait list.
type Predicate struct {
	id    int
	name  string
	value bool
}

// ID returns the index of the predicate in the simulator's predicate arena.
func (p *Predicate) ID() int {
	return p.id
}

// Name returns the name of the predicate.
func (p *Predicate) Name() string {
	return p.name
}

// Value returns the current value of the predicate.
func (p *Predicate) Value() bool {
	return p.value
}

// Set changes the value of the predicate. Waiting processes are not woken up
// immediately. The scheduler wakes them up after the current event finishes.
func (p *Predicate) Set(v bool) {
	p.value = v
}

// predicateArena keeps all the predicates of a simulator in creation order.
type predicateArena struct {
	cells []*Predicate
}

func (a *predicateArena) create(name string, initial bool) *Predicate {
	p := &Predicate{
		id:    len(a.cells),
		name:  name,
		value: initial,
	}
	a.cells = append(a.cells, p)

	return p
}

func (a *predicateArena) owns(p *Predicate) bool {
	return p.id < len(a.cells) && a.cells[p.id] == p
}
