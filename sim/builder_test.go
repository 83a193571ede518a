package sim

import (
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Builder", func() {
	It("should build a simulator with the default settings", func() {
		s := MakeBuilder().WithState("state").Build()

		Expect(s.State()).To(Equal("state"))
		Expect(s.ID()).NotTo(BeEmpty())
		Expect(s.NumHooks()).To(Equal(0))
		Expect(s.queue).To(BeAssignableToTypeOf(&EventQueueImpl{}))
	})

	It("should use the insertion queue", func() {
		s := MakeBuilder().WithInsertionQueue().Build()

		Expect(s.queue).To(BeAssignableToTypeOf(&InsertionQueue{}))
	})

	It("should register hooks", func() {
		hook := HookFunc(func(_ HookCtx) {})
		s := MakeBuilder().WithEventLogging().WithHook(hook).Build()

		Expect(s.NumHooks()).To(Equal(2))
		Expect(s.AllHooks()[0]).To(BeAssignableToTypeOf(&EventLogger{}))
	})

	It("should panic without a failure policy", func() {
		Expect(func() {
			MakeBuilder().WithFailurePolicy(nil).Build()
		}).To(Panic())
	})

	It("should log the failures with the configured logger", func() {
		logger, logs := test.NewNullLogger()
		s := MakeBuilder().
			WithLogger(logger).
			WithFailurePolicy(LogAndContinue).
			Build()

		_, _ = s.AddProcess("bad", 1, func(_ *ProcessCtx) error {
			return ErrNilPredicate
		})
		_, err := s.Run(Forever)

		Expect(err).NotTo(HaveOccurred())
		Expect(logs.LastEntry()).NotTo(BeNil())
		Expect(logs.LastEntry().Level).To(Equal(logrus.WarnLevel))
		Expect(logs.LastEntry().Data).To(HaveKeyWithValue("process", "bad"))
	})
})

var _ = Describe("EventLogger", func() {
	It("should log events and process transitions", func() {
		logger, logs := test.NewNullLogger()
		logger.SetLevel(logrus.DebugLevel)
		s := MakeBuilder().WithLogger(logger).WithEventLogging().Build()

		_, _ = s.AddProcess("p", 2, func(ctx *ProcessCtx) error {
			return ctx.AdvanceTime(1)
		})
		_, err := s.Run(Forever)

		Expect(err).NotTo(HaveOccurred())

		messages := []string{}
		for _, e := range logs.AllEntries() {
			messages = append(messages, e.Message)
		}
		Expect(messages).To(Equal([]string{
			"event",
			HookPosProcessSpawn.Name,
			HookPosProcessSuspend.Name,
			"event",
			HookPosProcessResume.Name,
			HookPosProcessDone.Name,
		}))
	})
})

var _ = Describe("IDGenerator", func() {
	It("should generate different ids", func() {
		g := GetIDGenerator()

		Expect(g.Generate()).NotTo(Equal(g.Generate()))
	})

	It("should not allow changing the generator after use", func() {
		GetIDGenerator()

		Expect(func() { UseParallelIDGenerator() }).To(Panic())
	})
})
