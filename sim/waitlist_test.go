package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("WaitList", func() {
	var (
		arena predicateArena
		p1    *Predicate
		p2    *Predicate
		w     *WaitList
	)

	BeforeEach(func() {
		arena = predicateArena{}
		p1 = arena.create("p1", false)
		p2 = arena.create("p2", false)
		w = NewWaitList()
	})

	It("should pop waiters in FIFO order", func() {
		Expect(w.Add(1, p1)).To(Succeed())
		Expect(w.Add(2, p1)).To(Succeed())
		Expect(w.Add(3, p2)).To(Succeed())

		pid, ok := w.PopFront(p1)
		Expect(ok).To(BeTrue())
		Expect(pid).To(Equal(PID(1)))

		pid, ok = w.PopFront(p1)
		Expect(ok).To(BeTrue())
		Expect(pid).To(Equal(PID(2)))

		_, ok = w.PopFront(p1)
		Expect(ok).To(BeFalse())
		Expect(w.Len()).To(Equal(1))
	})

	It("should not allow a process to wait twice", func() {
		Expect(w.Add(1, p1)).To(Succeed())
		Expect(w.Add(1, p2)).To(MatchError(ErrAlreadyWaiting))
	})

	It("should remove a waiter from the middle of a queue", func() {
		Expect(w.Add(1, p1)).To(Succeed())
		Expect(w.Add(2, p1)).To(Succeed())
		Expect(w.Add(3, p1)).To(Succeed())

		Expect(w.Remove(2)).To(BeTrue())
		Expect(w.Remove(2)).To(BeFalse())

		Expect(w.Waiters(p1)).To(Equal([]PID{1, 3}))

		pred, ok := w.WaitingOn(3)
		Expect(ok).To(BeTrue())
		Expect(pred).To(BeIdenticalTo(p1))
	})

	It("should identify predicates of the arena", func() {
		other := &Predicate{id: 0, name: "other"}

		Expect(arena.owns(p1)).To(BeTrue())
		Expect(arena.owns(other)).To(BeFalse())
	})
})
