package sim

import (
	"github.com/sirupsen/logrus"
)

// Builder can build Simulators.
type Builder struct {
	state          any
	insertionQueue bool
	failurePolicy  FailurePolicy
	logger         logrus.FieldLogger
	eventLogging   bool
	hooks          []Hook
}

// MakeBuilder creates a Builder with default settings.
func MakeBuilder() Builder {
	return Builder{
		failurePolicy: AbortOnFailure,
		logger:        logrus.StandardLogger(),
	}
}

// WithState sets the application state object that is passed to process
// bodies and event handlers. The simulator never modifies it.
func (b Builder) WithState(state any) Builder {
	b.state = state
	return b
}

// WithInsertionQueue makes the simulator use a list-based event queue instead
// of a heap.
func (b Builder) WithInsertionQueue() Builder {
	b.insertionQueue = true
	return b
}

// WithFailurePolicy sets what to do when a process body fails.
func (b Builder) WithFailurePolicy(p FailurePolicy) Builder {
	b.failurePolicy = p
	return b
}

// WithLogger sets the logger used by the simulator.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithEventLogging attaches an EventLogger that writes to the simulator's
// logger.
func (b Builder) WithEventLogging() Builder {
	b.eventLogging = true
	return b
}

// WithHook registers a hook on the simulator.
func (b Builder) WithHook(h Hook) Builder {
	b.hooks = append(b.hooks, h)
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.failurePolicy == nil {
		panic("failure policy must not be nil")
	}

	if b.logger == nil {
		panic("logger must not be nil")
	}
}

// Build creates a Simulator.
func (b Builder) Build() *Simulator {
	b.parametersMustBeValid()

	var queue EventQueue = NewEventQueue()
	if b.insertionQueue {
		queue = NewInsertionQueue()
	}

	s := newSimulator(b.state, queue, b.failurePolicy, b.logger)

	if b.eventLogging {
		s.AcceptHook(NewEventLogger(b.logger))
	}

	for _, h := range b.hooks {
		s.AcceptHook(h)
	}

	return s
}
