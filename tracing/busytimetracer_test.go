package tracing

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gmeasure"
	"github.com/sarchlab/procsim/sim"
	"go.uber.org/mock/gomock"
)

var _ = Describe("BusyTimeTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		t          *BusyTimeTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)

		t = NewBusyTimeTracer(timeTeller, nil)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	at := func(now sim.VTimeInSec) {
		timeTeller.EXPECT().CurrentTime().Return(now)
	}

	It("should track busy time, one task", func() {
		at(1)
		t.StartTask(Task{ID: "1"})

		at(2)
		t.EndTask(Task{ID: "1"})

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(1.0)))
	})

	It("should track busy time, two tasks", func() {
		at(1)
		t.StartTask(Task{ID: "1"})
		at(2)
		t.EndTask(Task{ID: "1"})

		at(3)
		t.StartTask(Task{ID: "2"})
		at(4)
		t.EndTask(Task{ID: "2"})

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(2.0)))
	})

	It("should track busy time, two tasks adjacent", func() {
		at(1)
		t.StartTask(Task{ID: "1"})
		at(2)
		t.EndTask(Task{ID: "1"})

		at(2)
		t.StartTask(Task{ID: "2"})
		at(3)
		t.EndTask(Task{ID: "2"})

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(2.0)))
	})

	It("should track busy time, two tasks overlap", func() {
		at(1)
		t.StartTask(Task{ID: "1"})

		at(1.5)
		t.StartTask(Task{ID: "2"})

		at(2)
		t.EndTask(Task{ID: "1"})

		at(2.5)
		t.EndTask(Task{ID: "2"})

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(1.5)))
	})

	It("should track busy time, four tasks", func() {
		at(1)
		t.StartTask(Task{ID: "1"})
		at(1.1)
		t.StartTask(Task{ID: "2"})
		at(1.2)
		t.EndTask(Task{ID: "2"})
		at(1.9)
		t.StartTask(Task{ID: "3"})
		at(2)
		t.EndTask(Task{ID: "1"})
		at(2.1)
		t.EndTask(Task{ID: "3"})
		at(3.1)
		t.StartTask(Task{ID: "4"})
		at(3.2)
		t.EndTask(Task{ID: "4"})

		Expect(t.BusyTime()).To(BeNumerically("~", 1.2))
	})

	It("should only track the filtered tasks", func() {
		t = NewBusyTimeTracer(timeTeller, KindIs("runway"))

		at(1)
		t.StartTask(Task{ID: "1", Kind: "runway"})
		at(1)
		t.StartTask(Task{ID: "2", Kind: "gate"})
		at(3)
		t.EndTask(Task{ID: "1"})
		at(5)
		t.EndTask(Task{ID: "2"})

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(2.0)))
	})

	It("should be able to terminate all the tasks", func() {
		at(1)
		t.StartTask(Task{ID: "1"})
		at(1.1)
		t.StartTask(Task{ID: "2"})
		at(1.9)
		t.StartTask(Task{ID: "3"})
		at(2.1)
		t.EndTask(Task{ID: "3"})

		t.TerminateAllTasks(3.5)

		Expect(t.BusyTime()).To(BeNumerically("~", 2.5, 0.01))
	})

	It("measure busy time tracer", func() {
		experiment := gmeasure.NewExperiment("Busy Time Tracer Performance")
		AddReportEntry(experiment.Name, experiment)

		experiment.MeasureDuration("runtime", func() {
			for i := 0; i < 10000; i++ {
				taskID := fmt.Sprintf("%d", i)

				at(sim.VTimeInSec(i * 2))
				t.StartTask(Task{ID: taskID})

				at(sim.VTimeInSec(i*2 + 1))
				t.EndTask(Task{ID: taskID})
			}

			Expect(t.BusyTime()).To(BeNumerically("~", 10000, 0.01))
		})
	})
})
