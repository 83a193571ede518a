// Package simulation bundles a simulator with the services that a complete
// simulation run needs: a data recorder, a trace of the processes, and a
// monitoring server.
package simulation

import (
	"context"
	"time"

	"github.com/sarchlab/procsim/datarecording"
	"github.com/sarchlab/procsim/monitoring"
	"github.com/sarchlab/procsim/sim"
	"github.com/sarchlab/procsim/tracing"
)

// A Simulation provides the service requires to define a simulation.
type Simulation struct {
	id       string
	watchdog time.Duration

	simulator    *sim.Simulator
	dataRecorder datarecording.DataRecorder
	monitor      *monitoring.Monitor
	visTracer    *tracing.DBTracer
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Simulator returns the simulator used in the simulation.
func (s *Simulation) Simulator() *sim.Simulator {
	return s.simulator
}

// GetDataRecorder returns the data recorder used in the simulation. It is nil
// when recording is disabled.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor used in the simulation. It is nil when
// monitoring is disabled.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// GetVisTracer returns the tracer that records the processes.
func (s *Simulation) GetVisTracer() *tracing.DBTracer {
	return s.visTracer
}

// Run runs the simulator until tMax, within the watchdog budget if one is set.
func (s *Simulation) Run(
	ctx context.Context,
	tMax sim.VTimeInSec,
) (sim.VTimeInSec, error) {
	return monitoring.RunWithWatchdog(ctx, s.simulator, tMax, s.watchdog)
}

// Terminate kills the remaining processes and closes all the services.
func (s *Simulation) Terminate() {
	s.simulator.Terminate()
	s.simulator.Finished()

	if s.visTracer != nil {
		s.visTracer.Terminate()
	}

	if s.dataRecorder != nil {
		err := s.dataRecorder.Close()
		if err != nil {
			s.simulator.Logger().WithError(err).Warn("cannot close recorder")
		}
	}

	if s.monitor != nil {
		err := s.monitor.StopServer()
		if err != nil {
			s.simulator.Logger().WithError(err).Warn("cannot stop monitor")
		}
	}
}
