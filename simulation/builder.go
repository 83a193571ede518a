package simulation

import (
	"time"

	"github.com/rs/xid"
	"github.com/sarchlab/procsim/datarecording"
	"github.com/sarchlab/procsim/monitoring"
	"github.com/sarchlab/procsim/sim"
	"github.com/sarchlab/procsim/tracing"
	"github.com/sirupsen/logrus"
)

// Builder can be used to build a simulation.
type Builder struct {
	state          any
	failurePolicy  sim.FailurePolicy
	logger         logrus.FieldLogger
	eventLogging   bool
	monitorOn      bool
	monitorPort    int
	recordingOn    bool
	outputFileName string
	watchdog       time.Duration
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		failurePolicy: sim.AbortOnFailure,
		logger:        logrus.StandardLogger(),
		monitorOn:     true,
		recordingOn:   true,
	}
}

// WithState sets the application state shared by the processes.
func (b Builder) WithState(state any) Builder {
	b.state = state
	return b
}

// WithFailurePolicy sets what the simulator does when a process fails.
func (b Builder) WithFailurePolicy(p sim.FailurePolicy) Builder {
	b.failurePolicy = p
	return b
}

// WithLogger sets the logger of the simulator and the monitor.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithEventLogging logs every event and process transition.
func (b Builder) WithEventLogging() Builder {
	b.eventLogging = true
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithoutRecording disables the data recorder and the trace table.
func (b Builder) WithoutRecording() Builder {
	b.recordingOn = false
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithWatchdog limits the wall-clock time of each Run.
func (b Builder) WithWatchdog(budget time.Duration) Builder {
	b.watchdog = budget
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if !b.recordingOn && b.outputFileName != "" {
		panic("output file cannot be set when recording is disabled")
	}

	if b.watchdog < 0 {
		panic("watchdog budget must not be negative")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:       xid.New().String(),
		watchdog: b.watchdog,
	}

	simBuilder := sim.MakeBuilder().
		WithState(b.state).
		WithFailurePolicy(b.failurePolicy).
		WithLogger(b.logger)
	if b.eventLogging {
		simBuilder = simBuilder.WithEventLogging()
	}

	s.simulator = simBuilder.Build()

	if b.recordingOn {
		outputPath := b.outputFileName
		if outputPath == "" {
			outputPath = "procsim_sim_" + s.id
		}

		s.dataRecorder = datarecording.NewDataRecorder(outputPath)
		s.visTracer = tracing.NewDBTracer(s.simulator, s.dataRecorder)
		tracing.TraceProcesses(s.simulator, s.visTracer)
		tracing.CollectTrace(s.simulator, s.visTracer)
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor().
			WithLogger(b.logger).
			WithWatchdog(b.watchdog)
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}

		s.monitor.RegisterSimulator(s.simulator)

		err := s.monitor.StartServer()
		if err != nil {
			panic(err)
		}
	}

	return s
}
