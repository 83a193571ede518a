package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/procsim/sim"
)

type counterState struct {
	Ready *sim.Predicate
	Count int
}

var _ = Describe("Monitor", func() {
	var (
		s       *sim.Simulator
		state   *counterState
		m       *Monitor
		handler http.Handler
	)

	BeforeEach(func() {
		state = &counterState{}
		s = sim.NewSimulator(state)
		state.Ready = s.NewPredicate("ready", false)

		m = NewMonitor()
		m.RegisterSimulator(s)
		handler = m.Handler()
	})

	AfterEach(func() {
		s.Continue()
		s.Terminate()
	})

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		return rec
	}

	getStatus := func() statusRsp {
		rec := get("/api/status")
		Expect(rec.Code).To(Equal(http.StatusOK))

		rsp := statusRsp{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())

		return rsp
	}

	addCounter := func(name string, start sim.VTimeInSec) {
		_, err := s.AddProcess(name, start, func(ctx *sim.ProcessCtx) error {
			st := ctx.State().(*counterState)
			if err := ctx.AdvanceTime(2); err != nil {
				return err
			}
			st.Count++
			return ctx.WaitUntil(st.Ready)
		})
		Expect(err).NotTo(HaveOccurred())
	}

	It("should report the current time", func() {
		addCounter("a", 3)
		_, err := s.Run(sim.Forever)
		Expect(err).NotTo(HaveOccurred())

		rec := get("/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal(`{"now":5.0000000000}`))
	})

	It("should list the processes", func() {
		addCounter("a", 0)
		addCounter("b", 1)
		_, err := s.Run(sim.Forever)
		Expect(err).NotTo(HaveOccurred())

		rec := get("/api/processes")
		Expect(rec.Code).To(Equal(http.StatusOK))

		infos := []sim.ProcessInfo{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &infos)).To(Succeed())
		Expect(infos).To(HaveLen(2))
		Expect(infos[0].Name).To(Equal("a"))
		Expect(infos[0].StateName).To(Equal("suspended-on-predicate"))
		Expect(infos[0].WaitingOn).To(Equal("ready"))
		Expect(infos[1].Name).To(Equal("b"))
	})

	It("should show a single process", func() {
		addCounter("a", 0)
		_, err := s.Run(1)
		Expect(err).NotTo(HaveOccurred())

		rec := get("/api/process/1")
		Expect(rec.Code).To(Equal(http.StatusOK))

		info := sim.ProcessInfo{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &info)).To(Succeed())
		Expect(info.StateName).To(Equal("suspended-on-time"))
		Expect(info.WakeUpAt).To(Equal(sim.VTimeInSec(2)))

		Expect(get("/api/process/42").Code).To(Equal(http.StatusNotFound))
		Expect(get("/api/process/abc").Code).To(Equal(http.StatusBadRequest))
	})

	It("should serialize the application state", func() {
		rec := get("/api/state")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should reject a bad tmax", func() {
		Expect(get("/api/run?tmax=abc").Code).To(Equal(http.StatusBadRequest))
		Expect(get("/api/run?tmax=-1").Code).To(Equal(http.StatusBadRequest))
	})

	It("should run the simulation in the background", func() {
		addCounter("a", 0)
		addCounter("b", 4)

		rec := get("/api/run?tmax=3")
		Expect(rec.Code).To(Equal(http.StatusAccepted))

		Eventually(func() bool { return getStatus().Running }).
			Should(BeFalse())

		status := getStatus()
		Expect(status.Now).To(Equal(3.0))
		Expect(status.PendingEvents).To(Equal(1))
		Expect(status.LiveProcesses).To(Equal(1))
		Expect(status.LastError).To(BeEmpty())
		Expect(state.Count).To(Equal(1))
	})

	It("should pause and continue", func() {
		addCounter("a", 0)

		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(getStatus().Paused).To(BeTrue())

		Expect(get("/api/run").Code).To(Equal(http.StatusAccepted))
		Expect(get("/api/run").Code).To(Equal(http.StatusConflict))
		Consistently(func() bool { return getStatus().Running },
			50*time.Millisecond).Should(BeTrue())

		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))

		Eventually(func() bool { return getStatus().Running }).
			Should(BeFalse())
		Expect(getStatus().Now).To(Equal(2.0))
	})

	It("should list the progress bars", func() {
		bar := m.CreateProgressBar("aircraft", 4)
		bar.IncrementInProgress(2)
		bar.MoveInProgressToFinished(1)

		rec := get("/api/progress")
		Expect(rec.Code).To(Equal(http.StatusOK))

		bars := []map[string]any{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]).To(HaveKeyWithValue("name", "aircraft"))
		Expect(bars[0]).To(HaveKeyWithValue("finished", 1.0))
		Expect(bars[0]).To(HaveKeyWithValue("in_progress", 1.0))
		Expect(bar.Fraction()).To(Equal(0.25))

		m.CompleteProgressBar(bar)
		Expect(get("/api/progress").Body.String()).To(Equal("[]"))
	})
})

var _ = Describe("Watchdog", func() {
	It("should stop a run that takes too long", func() {
		s := sim.NewSimulator(nil)
		_, _ = s.AddProcess("busy", 0, func(ctx *sim.ProcessCtx) error {
			for {
				time.Sleep(time.Millisecond)
				if err := ctx.AdvanceTime(1); err != nil {
					return err
				}
			}
		})

		now, err := RunWithWatchdog(
			context.Background(), s, sim.Forever, 20*time.Millisecond)

		Expect(err).To(MatchError(ErrWatchdogExpired))
		Expect(now).To(BeNumerically(">", 0))

		s.Terminate()
		Expect(s.Processes().Live()).To(BeEmpty())
	})

	It("should not limit a run without a budget", func() {
		s := sim.NewSimulator(nil)
		_, _ = s.AddProcess("short", 0, func(ctx *sim.ProcessCtx) error {
			return ctx.AdvanceTime(3)
		})

		now, err := RunWithWatchdog(context.Background(), s, sim.Forever, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(now).To(Equal(sim.VTimeInSec(3)))
	})
})
