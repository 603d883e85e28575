package state

import (
	"sync"

	"github.com/harvestrt/harvestrt/bus"
	"github.com/harvestrt/harvestrt/history"
)

// Progress is a snapshot of the ETL Manager's current/max document counts,
// supplied to the Machine so a freshly-entered Harvesting state can report
// progress without importing the harvest package.
type Progress struct {
	Current func() int64
	Max     func() int64
}

// Machine is the single current-state arbiter (spec §4.4): it holds exactly
// one State at a time and transitions exclusively in response to bus
// events, never via direct method calls from other packages.
type Machine struct {
	mu      sync.Mutex
	current State
	bus     *bus.Bus
	hooks   Hooks
	progress Progress
	history *history.History[Name]
}

// NewMachine constructs a Machine in NameInitialization and wires its bus
// listeners. progress is consulted each time a Harvesting state is entered.
func NewMachine(b *bus.Bus, hooks Hooks, progress Progress) *Machine {
	m := &Machine{
		bus:      b,
		hooks:    hooks,
		progress: progress,
		history:  history.New[Name](50, NameInitialization),
	}
	m.setState(NewInitialization())
	m.registerListeners()
	return m
}

// Current returns the presently active state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// History returns the timestamped sequence of states this Machine has held,
// oldest first.
func (m *Machine) History() []history.Entry[Name] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.Entries()
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	m.current = s
	m.history.Add(s.Name())
	m.mu.Unlock()
}

func (m *Machine) registerListeners() {
	m.bus.AddListener(bus.EvHarvestStarted, func(e bus.Event) {
		ev := e.(bus.HarvestStartedEvent)
		m.setState(NewHarvesting(ev.StartTime, m.progress.Current, m.progress.Max, m.bus))
	})

	m.bus.AddListener(bus.EvHarvestFinished, func(e bus.Event) {
		ev := e.(bus.HarvestFinishedEvent)
		if ev.Health == "INITIALIZATION_FAILED" {
			m.setState(NewError("harvest initialization failed", m.hooks))
			return
		}
		m.setState(NewIdle(m.hooks))
	})

	// AbortingStartedEvent is the command-facing "abort accepted" signal
	// from a ProgressingState; the Machine both reflects it in its own
	// state and forwards StartAbortingEvent, the control-facing signal the
	// Main Context uses to actually invoke the ETL Manager's Abort().
	m.bus.AddListener(bus.EvAbortingStarted, func(bus.Event) {
		m.setState(NewAborting())
		m.bus.Send(bus.StartAbortingEvent{})
	})

	m.bus.AddListener(bus.EvAbortingFinished, func(bus.Event) {
		m.setState(NewIdle(m.hooks))
	})

	m.bus.AddListener(bus.EvServiceInitialized, func(e bus.Event) {
		ev := e.(bus.ServiceInitializedEvent)
		if ev.Success {
			m.setState(NewIdle(m.hooks))
		} else {
			msg := "initialization failed"
			if ev.Err != nil {
				msg = ev.Err.Error()
			}
			m.setState(NewError(msg, m.hooks))
		}
	})

	m.bus.AddListener(bus.EvResetContext, func(bus.Event) {
		m.setState(NewInitialization())
	})

	// StartHarvestEvent is the Scheduler's synchronous trigger: the fired
	// cron entry is accepted or rejected depending on the current state,
	// exactly like a REST POST /harvest would be.
	m.bus.AddSynchronousListener(bus.EvStartHarvest, func(bus.Event) interface{} {
		return m.Current().StartHarvest()
	})
}
