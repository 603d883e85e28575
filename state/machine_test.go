package state_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/harvestrt/harvestrt/bus"
	"github.com/harvestrt/harvestrt/state"
)

func noopHooks() state.Hooks {
	return state.Hooks{
		StartHarvest: func() error { return nil },
		Submit:       func() error { return nil },
		Save:         func() error { return nil },
		Reset:        func() error { return nil },
	}
}

var _ = Describe("Machine", func() {
	var b *bus.Bus
	var m *state.Machine

	BeforeEach(func() {
		b = bus.New()
		m = state.NewMachine(b, noopHooks(), state.Progress{
			Current: func() int64 { return 0 },
			Max:     func() int64 { return -1 },
		})
	})

	It("starts in Initialization, where every command is busy", func() {
		Expect(m.Current().Name()).To(Equal(state.NameInitialization))
		Expect(m.Current().StartHarvest().StatusCode).To(Equal(503))
	})

	It("moves to Idle on a successful ServiceInitializedEvent", func() {
		b.Send(bus.ServiceInitializedEvent{Success: true})
		Expect(m.Current().Name()).To(Equal(state.NameIdle))
	})

	It("moves to Error on a failed ServiceInitializedEvent", func() {
		b.Send(bus.ServiceInitializedEvent{Success: false, Err: errors.New("boom")})
		Expect(m.Current().Name()).To(Equal(state.NameError))
		Expect(m.Current().StatusString()).To(ContainSubstring("boom"))
	})

	Context("from Idle", func() {
		BeforeEach(func() {
			b.Send(bus.ServiceInitializedEvent{Success: true})
		})

		It("accepts StartHarvest with 202", func() {
			result := m.Current().StartHarvest()
			Expect(result.StatusCode).To(Equal(202))
		})

		It("rejects StartHarvest with 503 when the hook errors", func() {
			b.Reset()
			m = state.NewMachine(b, state.Hooks{
				StartHarvest: func() error { return errors.New("no eligible pipelines") },
				Submit:       func() error { return nil },
				Save:         func() error { return nil },
				Reset:        func() error { return nil },
			}, state.Progress{Current: func() int64 { return 0 }, Max: func() int64 { return -1 }})
			b.Send(bus.ServiceInitializedEvent{Success: true})

			result := m.Current().StartHarvest()
			Expect(result.StatusCode).To(Equal(503))
		})

		It("transitions to Harvesting on HarvestStartedEvent", func() {
			b.Send(bus.HarvestStartedEvent{StartTime: time.Now()})
			Expect(m.Current().Name()).To(Equal(state.NameHarvesting))
		})
	})

	Context("from Harvesting", func() {
		BeforeEach(func() {
			b.Send(bus.ServiceInitializedEvent{Success: true})
			b.Send(bus.HarvestStartedEvent{StartTime: time.Now()})
		})

		It("rejects a second StartHarvest with 503", func() {
			Expect(m.Current().StartHarvest().StatusCode).To(Equal(503))
		})

		It("returns 202 ACCEPTED and emits StartAbortingEvent on Abort", func() {
			var gotAborting bool
			b.AddListener(bus.EvStartAborting, func(bus.Event) { gotAborting = true })

			result := m.Current().Abort()

			Expect(result.StatusCode).To(Equal(202))
			Expect(gotAborting).To(BeTrue())
		})

		It("returns to Idle on a successful HarvestFinishedEvent", func() {
			b.Send(bus.HarvestFinishedEvent{Success: true, Health: "OK"})
			Expect(m.Current().Name()).To(Equal(state.NameIdle))
		})

		It("moves to Error when HarvestFinishedEvent carries INITIALIZATION_FAILED health", func() {
			b.Send(bus.HarvestFinishedEvent{Success: false, Health: "INITIALIZATION_FAILED"})
			Expect(m.Current().Name()).To(Equal(state.NameError))
		})

		It("returns to Idle for a non-initialization failure, still accepting future commands", func() {
			b.Send(bus.HarvestFinishedEvent{Success: false, Health: "EXTRACTION_FAILED"})
			Expect(m.Current().Name()).To(Equal(state.NameIdle))
		})
	})

	Context("aborting lifecycle", func() {
		BeforeEach(func() {
			b.Send(bus.ServiceInitializedEvent{Success: true})
			b.Send(bus.HarvestStartedEvent{StartTime: time.Now()})
			b.Send(bus.AbortingStartedEvent{})
		})

		It("is in Aborting and rejects a nested abort", func() {
			Expect(m.Current().Name()).To(Equal(state.NameAborting))
			Expect(m.Current().Abort().StatusCode).To(Equal(503))
		})

		It("returns to Idle on AbortingFinishedEvent", func() {
			b.Send(bus.AbortingFinishedEvent{})
			Expect(m.Current().Name()).To(Equal(state.NameIdle))
		})
	})

	It("resets to Initialization on ResetContextEvent from any state", func() {
		b.Send(bus.ServiceInitializedEvent{Success: true})
		b.Send(bus.ResetContextEvent{})
		Expect(m.Current().Name()).To(Equal(state.NameInitialization))
	})

	It("answers a scheduler-fired StartHarvestEvent synchronously", func() {
		b.Send(bus.ServiceInitializedEvent{Success: true})

		result := b.SendSynchronous(bus.StartHarvestEvent{FiredAt: time.Now(), Cron: "* * * * *"})

		Expect(result).To(BeAssignableToTypeOf(state.Result{}))
		Expect(result.(state.Result).StatusCode).To(Equal(202))
	})

	It("records every transition in History", func() {
		b.Send(bus.ServiceInitializedEvent{Success: true})
		b.Send(bus.HarvestStartedEvent{StartTime: time.Now()})

		names := m.History()
		Expect(len(names)).To(BeNumerically(">=", 3))
		Expect(names[0].Value).To(Equal(state.NameInitialization))
		Expect(names[len(names)-1].Value).To(Equal(state.NameHarvesting))
	})
})
