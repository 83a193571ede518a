package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/sarchlab/procsim/datarecording"
	"github.com/sarchlab/procsim/examples/airport"
	"github.com/sarchlab/procsim/monitoring"
	"github.com/sarchlab/procsim/sim"
	"github.com/sarchlab/procsim/simulation"
	"github.com/sarchlab/procsim/tracing"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// MovementTableName is the table that the aircraft movements are recorded in.
const MovementTableName = "movement"

type runOptions struct {
	configFile  string
	tMax        float64
	record      string
	monitor     bool
	monitorPort int
	open        bool
	watchdog    time.Duration
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the airport scenario.",
		Long: "`run --config airport.yaml --tmax 15` simulates the aircraft " +
			"of the scenario and prints the movements on the runway and " +
			"the gates.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("monitor-port") {
				port, err := monitorPortFromEnv()
				if err != nil {
					return err
				}

				opts.monitorPort = port
			}

			return runAirport(cmd, opts)
		},
	}

	flags := runCmd.Flags()
	flags.StringVar(&opts.configFile, "config", "",
		"YAML scenario file. The two-gate scenario is used if not set.")
	flags.Float64Var(&opts.tMax, "tmax", float64(sim.Forever),
		"Simulated time to stop at.")
	flags.StringVar(&opts.record, "record", "",
		"Record the trace and the movements into <record>.sqlite3.")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"Start the monitoring server.")
	flags.IntVar(&opts.monitorPort, "monitor-port", 0,
		"Port of the monitoring server. Defaults to $"+EnvMonitorPort+
			" or a random port.")
	flags.BoolVar(&opts.open, "open", false,
		"Open the monitoring server in the browser.")
	flags.DurationVar(&opts.watchdog, "watchdog", 0,
		"Stop the run after this wall-clock time. Zero means no limit.")

	return runCmd
}

func monitorPortFromEnv() (int, error) {
	s := os.Getenv(EnvMonitorPort)
	if s == "" {
		return 0, nil
	}

	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", EnvMonitorPort, s, err)
	}

	return port, nil
}

func (o *runOptions) loadConfig() (airport.Config, error) {
	if o.configFile == "" {
		return airport.DefaultConfig(), nil
	}

	return airport.LoadConfig(o.configFile)
}

func (o *runOptions) validate() error {
	if o.tMax < 0 {
		return fmt.Errorf("tmax must not be negative, got %v", o.tMax)
	}

	if o.open && !o.monitor {
		return fmt.Errorf("--open requires --monitor")
	}

	if o.monitorPort != 0 && !o.monitor {
		return fmt.Errorf("--monitor-port requires --monitor")
	}

	return nil
}

func (o *runOptions) buildSimulation(state *airport.State) *simulation.Simulation {
	b := simulation.MakeBuilder().
		WithState(state).
		WithWatchdog(o.watchdog)

	if o.monitor {
		b = b.WithMonitorPort(o.monitorPort)
	} else {
		b = b.WithoutMonitoring()
	}

	if o.record == "" {
		b = b.WithoutRecording()
	} else {
		b = b.WithOutputFileName(o.record)
	}

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		b = b.WithEventLogging()
	}

	return b.Build()
}

func runAirport(cmd *cobra.Command, o *runOptions) error {
	if err := o.validate(); err != nil {
		return err
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	state := airport.NewState()
	simu := o.buildSimulation(state)
	defer simu.Terminate()

	s := simu.Simulator()
	stats := airport.AttachStats(s)
	backTrace := tracing.NewBackTraceTracer(nil)
	tracing.CollectTrace(s, backTrace)
	tracing.TraceProcesses(s, backTrace)

	ab := airport.MakeBuilder().WithConfig(cfg)
	if m := simu.GetMonitor(); m != nil {
		bar := m.CreateProgressBar("departures", uint64(len(cfg.Arrivals)))
		defer m.CompleteProgressBar(bar)

		ab = ab.WithProgressBar(bar)
	}

	if _, err := ab.Build(s); err != nil {
		return err
	}

	if o.open {
		if err := simu.GetMonitor().OpenInBrowser(); err != nil {
			logrus.WithError(err).Warn("cannot open the browser")
		}
	}

	now, runErr := simu.Run(cmd.Context(), sim.VTimeInSec(o.tMax))
	if errors.Is(runErr, monitoring.ErrWatchdogExpired) {
		logrus.WithField("now", now).Warn("watchdog expired, " +
			"the summary only covers the simulated part")
	}

	if runErr != nil {
		dumpInFlightTasks(backTrace)
	}

	if recorder := simu.GetDataRecorder(); recorder != nil {
		recordMovements(recorder, state.Log)
	}

	printSummary(cmd.OutOrStdout(), now, state, stats)

	return runErr
}

func dumpInFlightTasks(t *tracing.BackTraceTracer) {
	for _, task := range t.InFlight() {
		if task.Kind != tracing.ProcessTaskKind {
			t.DumpBackTrace(task)
		}
	}
}

func recordMovements(
	recorder datarecording.DataRecorder,
	movements []airport.Movement,
) {
	recorder.CreateTable(MovementTableName, airport.Movement{})

	for _, m := range movements {
		recorder.InsertData(MovementTableName, m)
	}
}

func printSummary(
	out io.Writer,
	now sim.VTimeInSec,
	state *airport.State,
	stats *airport.Stats,
) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "AIRCRAFT\tRESOURCE\tENTER\tLEAVE")
	for _, m := range state.Log {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\n",
			m.Aircraft, m.Resource, m.EnterAt, m.LeaveAt)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "final time\t%.2f\n", now)
	fmt.Fprintf(w, "departed\t%d\n", state.Departed)
	fmt.Fprintf(w, "max in air\t%d\n", state.MaxInAir)
	fmt.Fprintf(w, "max on runway\t%d\n", state.MaxOnRunway)
	fmt.Fprintf(w, "max at gate\t%d\n", state.MaxAtGate)
	fmt.Fprintf(w, "runway busy\t%.2f\n", stats.RunwayBusy.BusyTime())
	fmt.Fprintf(w, "avg runway wait\t%.2f\n", stats.RunwayWait.AverageTime())

	if err := w.Flush(); err != nil {
		logrus.WithError(err).Warn("cannot print the summary")
	}
}
