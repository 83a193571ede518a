// Package monitoring turns a running simulation into a web server, so that
// the simulation can be observed and controlled from outside.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/sarchlab/procsim/sim"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"
)

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	simulator  *sim.Simulator
	portNumber int
	watchdog   time.Duration
	logger     logrus.FieldLogger

	listener net.Listener

	runLock    sync.Mutex
	running    bool
	lastResult *sim.RunResult

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		logger: logrus.StandardLogger(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		m.logger.Warnf("Port number %d is not allowed for the monitoring "+
			"server. Using a random port instead.", portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithWatchdog limits the wall-clock time of the runs started from the
// monitor. A zero duration means no limit.
func (m *Monitor) WithWatchdog(budget time.Duration) *Monitor {
	m.watchdog = budget
	return m
}

// WithLogger sets the logger of the monitor.
func (m *Monitor) WithLogger(logger logrus.FieldLogger) *Monitor {
	m.logger = logger
	return m
}

// RegisterSimulator registers the simulator to monitor.
func (m *Monitor) RegisterSimulator(s *sim.Simulator) {
	m.simulator = s
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the HTTP handler that serves the monitoring API.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pause)
	r.HandleFunc("/api/continue", m.continueSimulator)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/status", m.status)
	r.HandleFunc("/api/processes", m.listProcesses)
	r.HandleFunc("/api/process/{pid}", m.processDetail)
	r.HandleFunc("/api/state", m.state)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts the monitor as a web server.
func (m *Monitor) StartServer() error {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return err
	}

	m.listener = listener

	fmt.Fprintf(os.Stderr,
		"Monitoring simulation with %s\n", m.URL())

	go func() {
		err := http.Serve(listener, m.Handler())
		if err != nil && !errors.Is(err, net.ErrClosed) {
			m.logger.WithError(err).Error("monitoring server stopped")
		}
	}()

	return nil
}

// StopServer closes the listener of the server.
func (m *Monitor) StopServer() error {
	if m.listener == nil {
		return nil
	}

	return m.listener.Close()
}

// URL returns the address of the server. It is empty before the server
// starts.
func (m *Monitor) URL() string {
	if m.listener == nil {
		return ""
	}

	port := m.listener.Addr().(*net.TCPAddr).Port

	return fmt.Sprintf("http://localhost:%d", port)
}

// OpenInBrowser opens the monitoring API in the default browser.
func (m *Monitor) OpenInBrowser() error {
	url := m.URL()
	if url == "" {
		return errors.New("monitoring server is not started")
	}

	return browser.OpenURL(url + "/api/status")
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	m.simulator.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueSimulator(w http.ResponseWriter, _ *http.Request) {
	m.simulator.Continue()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.simulator.Now()
	fmt.Fprintf(w, "{\"now\":%.10f}", now)
}

func (m *Monitor) run(w http.ResponseWriter, r *http.Request) {
	tMax := sim.Forever

	if s := r.URL.Query().Get("tmax"); s != "" {
		t, err := strconv.ParseFloat(s, 64)
		if err != nil || t < 0 {
			http.Error(w, "invalid tmax: "+s, http.StatusBadRequest)
			return
		}

		tMax = sim.VTimeInSec(t)
	}

	m.runLock.Lock()
	defer m.runLock.Unlock()

	if m.running {
		http.Error(w, "simulation is already running", http.StatusConflict)
		return
	}

	m.running = true
	m.lastResult = nil

	go m.runInBackground(tMax)

	w.WriteHeader(http.StatusAccepted)
}

func (m *Monitor) runInBackground(tMax sim.VTimeInSec) {
	now, err := RunWithWatchdog(
		context.Background(), m.simulator, tMax, m.watchdog)
	if err != nil {
		m.logger.WithError(err).Warn("simulation stopped with error")
	}

	m.runLock.Lock()
	m.running = false
	m.lastResult = &sim.RunResult{Now: now, Err: err}
	m.runLock.Unlock()
}

type statusRsp struct {
	Now           float64 `json:"now"`
	Paused        bool    `json:"paused"`
	Running       bool    `json:"running"`
	PendingEvents int     `json:"pending_events"`
	LiveProcesses int     `json:"live_processes"`
	LastError     string  `json:"last_error,omitempty"`
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	m.runLock.Lock()
	rsp := statusRsp{Running: m.running}
	if m.lastResult != nil && m.lastResult.Err != nil {
		rsp.LastError = m.lastResult.Err.Error()
	}
	m.runLock.Unlock()

	rsp.Paused = m.simulator.IsPaused()
	m.simulator.Inspect(func() {
		rsp.Now = float64(m.simulator.Now())
		rsp.PendingEvents = m.simulator.PendingEvents()
		rsp.LiveProcesses = len(m.simulator.Processes().Live())
	})

	m.writeJSON(w, rsp)
}

func (m *Monitor) listProcesses(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.simulator.Processes().All())
}

func (m *Monitor) processDetail(w http.ResponseWriter, r *http.Request) {
	pidStr := mux.Vars(r)["pid"]

	pid, err := strconv.ParseUint(pidStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid pid: "+pidStr, http.StatusBadRequest)
		return
	}

	info, ok := m.simulator.Processes().Get(sim.PID(pid))
	if !ok {
		http.Error(w, "process not found", http.StatusNotFound)
		return
	}

	m.writeJSON(w, info)
}

// state serializes the application state between two events, so that the
// serializer never observes a half-updated state.
func (m *Monitor) state(w http.ResponseWriter, r *http.Request) {
	state := m.simulator.State()
	if state == nil {
		http.Error(w, "simulation has no state", http.StatusNotFound)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(state)
	serializer.SetMaxDepth(1)

	if field := r.URL.Query().Get("field"); field != "" {
		err := serializer.SetEntryPoint(strings.Split(field, "."))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	buf := bytes.NewBuffer(nil)

	var err error
	m.simulator.Inspect(func() {
		err = serializer.Serialize(buf)
	})

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.write(w, buf.Bytes())
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	m.write(w, data)
}

func (m *Monitor) write(w http.ResponseWriter, data []byte) {
	_, err := w.Write(data)
	if err != nil {
		m.logger.WithError(err).Warn("cannot write response")
	}
}
