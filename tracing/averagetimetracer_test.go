package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/procsim/sim"
	"go.uber.org/mock/gomock"
)

var _ = Describe("AverageTimeTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		t          *AverageTimeTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		t = NewAverageTimeTracer(timeTeller, KindIs("wait"))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	at := func(now sim.VTimeInSec) {
		timeTeller.EXPECT().CurrentTime().Return(now)
	}

	It("should average the time of the completed tasks", func() {
		at(1)
		t.StartTask(Task{ID: "a", Kind: "wait"})
		at(1)
		t.EndTask(Task{ID: "a"})
		at(3)
		t.StartTask(Task{ID: "b", Kind: "wait"})
		at(4)
		t.EndTask(Task{ID: "b"})

		Expect(t.TotalCount()).To(Equal(uint64(2)))
		Expect(t.AverageTime()).To(Equal(sim.VTimeInSec(0.5)))
		Expect(t.MaxTime()).To(Equal(sim.VTimeInSec(1)))
	})

	It("should ignore the tasks that are filtered out", func() {
		at(1)
		t.StartTask(Task{ID: "a", Kind: "other"})
		at(2)
		t.EndTask(Task{ID: "a"})

		Expect(t.TotalCount()).To(Equal(uint64(0)))
		Expect(t.AverageTime()).To(Equal(sim.VTimeInSec(0)))
	})
})
