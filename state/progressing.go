package state

import (
	"fmt"
	"time"

	"github.com/harvestrt/harvestrt/bus"
	"github.com/harvestrt/harvestrt/cmn"
)

// ProgressingState is the shared abstraction for long-running states
// (Harvesting, Submitting, Saving): percent/ETA arithmetic via linear
// extrapolation from a start timestamp, and an Abort() that emits
// AbortingStartedEvent and answers 202-ACCEPTED with a Retry-After header
// when the remaining time is known, per spec §4.4.
type ProgressingState struct {
	BaseState
	startTime time.Time
	current   func() int64
	max       func() int64
	bus       *bus.Bus
}

// NewProgressingState constructs a ProgressingState named name, measuring
// progress via current/max (either may return -1/unknown).
func NewProgressingState(name Name, startTime time.Time, current, max func() int64, b *bus.Bus) *ProgressingState {
	return &ProgressingState{
		BaseState: BaseState{name: name},
		startTime: startTime,
		current:   current,
		max:       max,
		bus:       b,
	}
}

func (p *ProgressingState) Progress() string {
	return cmn.Progress(p.current(), p.max())
}

func (p *ProgressingState) StatusString() string {
	cur, max := p.current(), p.max()
	elapsed := int64(time.Since(p.startTime).Seconds())
	percent, eta, known := cmn.PercentAndETA(cur, max, elapsed)
	if !known {
		return fmt.Sprintf("%s: %s", p.name, cmn.Progress(cur, max))
	}
	return fmt.Sprintf("%s: %s (%.1f%%, ETA %s)", p.name, cmn.Progress(cur, max), percent, cmn.FormatDuration(eta))
}

func (p *ProgressingState) Abort() Result {
	cur, max := p.current(), p.max()
	elapsed := int64(time.Since(p.startTime).Seconds())
	_, eta, known := cmn.PercentAndETA(cur, max, elapsed)

	p.bus.Send(bus.AbortingStartedEvent{})

	if known {
		return Result{StatusCode: 202, RetryAfterSeconds: eta, Message: "aborting"}
	}
	return Result{StatusCode: 202, Message: "aborting"}
}
