package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/procsim/sim"
	"go.uber.org/mock/gomock"
)

var _ = Describe("ConcurrencyTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		t          *ConcurrencyTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		t = NewConcurrencyTracer(timeTeller, KindIs("in_air"))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	at := func(now sim.VTimeInSec) {
		timeTeller.EXPECT().CurrentTime().Return(now)
	}

	It("should count the in-flight tasks", func() {
		at(1)
		t.StartTask(Task{ID: "a", Kind: "in_air"})
		at(3)
		t.StartTask(Task{ID: "b", Kind: "in_air"})

		Expect(t.Current()).To(Equal(2))

		at(4)
		t.EndTask(Task{ID: "a"})
		at(7)
		t.EndTask(Task{ID: "b"})

		Expect(t.Current()).To(Equal(0))
		Expect(t.Max()).To(Equal(2))
		Expect(t.Average(7)).To(BeNumerically("~", 7.0/6.0, 1e-9))
	})

	It("should ignore unknown and filtered tasks", func() {
		t.StartTask(Task{ID: "a", Kind: "gate"})
		at(2)
		t.EndTask(Task{ID: "x"})

		Expect(t.Current()).To(Equal(0))
		Expect(t.Max()).To(Equal(0))
		Expect(t.Average(10)).To(Equal(0.0))
	})

	It("should not count a task twice", func() {
		at(1)
		t.StartTask(Task{ID: "a", Kind: "in_air"})
		at(2)
		t.StartTask(Task{ID: "a", Kind: "in_air"})

		Expect(t.Current()).To(Equal(1))
	})
})
