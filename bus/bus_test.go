package bus_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/harvestrt/harvestrt/bus"
)

var _ = Describe("Bus", func() {
	var b *bus.Bus

	BeforeEach(func() {
		b = bus.New()
	})

	Describe("asynchronous listeners", func() {
		It("fans out to every registered listener in order", func() {
			var calls []int
			b.AddListener(bus.EvHarvestStarted, func(bus.Event) { calls = append(calls, 1) })
			b.AddListener(bus.EvHarvestStarted, func(bus.Event) { calls = append(calls, 2) })

			b.Send(bus.HarvestStartedEvent{})

			Expect(calls).To(Equal([]int{1, 2}))
		})

		It("does not fire listeners registered for a different event type", func() {
			fired := false
			b.AddListener(bus.EvHarvestFinished, func(bus.Event) { fired = true })

			b.Send(bus.HarvestStartedEvent{})

			Expect(fired).To(BeFalse())
		})

		It("removes exactly the listener identified by its token", func() {
			var calls []int
			id1 := b.AddListener(bus.EvHarvestStarted, func(bus.Event) { calls = append(calls, 1) })
			b.AddListener(bus.EvHarvestStarted, func(bus.Event) { calls = append(calls, 2) })

			b.RemoveListener(bus.EvHarvestStarted, id1)
			b.Send(bus.HarvestStartedEvent{})

			Expect(calls).To(Equal([]int{2}))
		})

		It("removing an unknown token is a no-op", func() {
			Expect(func() { b.RemoveListener(bus.EvHarvestStarted, bus.ListenerID(999)) }).NotTo(Panic())
		})

		It("RemoveAllListeners clears every registration for a type", func() {
			called := false
			b.AddListener(bus.EvHarvestStarted, func(bus.Event) { called = true })
			b.AddListener(bus.EvHarvestStarted, func(bus.Event) { called = true })

			b.RemoveAllListeners(bus.EvHarvestStarted)
			b.Send(bus.HarvestStartedEvent{})

			Expect(called).To(BeFalse())
		})

		It("reports presence via HasAsynchronousEventListeners", func() {
			Expect(b.HasAsynchronousEventListeners(bus.EvHarvestStarted)).To(BeFalse())
			b.AddListener(bus.EvHarvestStarted, func(bus.Event) {})
			Expect(b.HasAsynchronousEventListeners(bus.EvHarvestStarted)).To(BeTrue())
		})
	})

	Describe("synchronous listener", func() {
		It("returns the answerer's result", func() {
			b.AddSynchronousListener(bus.EvGetNumberOfHarvestedDocs, func(bus.Event) interface{} {
				return int64(42)
			})

			result := b.SendSynchronous(bus.GetNumberOfHarvestedDocumentsEvent{})

			Expect(result).To(Equal(int64(42)))
		})

		It("returns nil when no answerer is registered", func() {
			Expect(b.SendSynchronous(bus.GetMainLogEvent{})).To(BeNil())
		})

		It("a second registration replaces the first", func() {
			b.AddSynchronousListener(bus.EvGetMainLog, func(bus.Event) interface{} { return "first" })
			b.AddSynchronousListener(bus.EvGetMainLog, func(bus.Event) interface{} { return "second" })

			Expect(b.SendSynchronous(bus.GetMainLogEvent{})).To(Equal("second"))
		})

		It("RemoveSynchronousListener clears the answerer", func() {
			b.AddSynchronousListener(bus.EvGetMainLog, func(bus.Event) interface{} { return "x" })
			b.RemoveSynchronousListener(bus.EvGetMainLog)

			Expect(b.HasSynchronousEventListeners(bus.EvGetMainLog)).To(BeFalse())
			Expect(b.SendSynchronous(bus.GetMainLogEvent{})).To(BeNil())
		})
	})

	Describe("Reset", func() {
		It("clears both registries", func() {
			b.AddListener(bus.EvHarvestStarted, func(bus.Event) {})
			b.AddSynchronousListener(bus.EvGetMainLog, func(bus.Event) interface{} { return "x" })

			b.Reset()

			Expect(b.HasAsynchronousEventListeners(bus.EvHarvestStarted)).To(BeFalse())
			Expect(b.HasSynchronousEventListeners(bus.EvGetMainLog)).To(BeFalse())
		})
	})
})
