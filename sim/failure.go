package sim

import "github.com/sirupsen/logrus"

// A FailurePolicy decides what happens when a process body fails. It runs as
// the handler of the ProcessFailedEvent. Returning an error aborts Run.
type FailurePolicy interface {
	HandleFailure(s *Simulator, err *ProcessFailedError) error
}

// FailurePolicyFunc turns a function into a FailurePolicy.
type FailurePolicyFunc func(s *Simulator, err *ProcessFailedError) error

// HandleFailure calls f(s, err).
func (f FailurePolicyFunc) HandleFailure(
	s *Simulator,
	err *ProcessFailedError,
) error {
	return f(s, err)
}

// AbortOnFailure stops the run and returns the failure from Run.
var AbortOnFailure FailurePolicy = FailurePolicyFunc(
	func(_ *Simulator, err *ProcessFailedError) error {
		return err
	})

// LogAndContinue logs the failure and lets the simulation go on.
var LogAndContinue FailurePolicy = FailurePolicyFunc(
	func(s *Simulator, err *ProcessFailedError) error {
		s.logger.WithFields(logrus.Fields{
			"pid":     err.PID,
			"process": err.Name,
			"now":     float64(err.Time),
		}).Warnf("process failed: %v", err.Err)

		return nil
	})
