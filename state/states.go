package state

import (
	"time"

	"github.com/harvestrt/harvestrt/bus"
)

// Hooks are the side effects a state's commands trigger, supplied by the
// Main Context at construction time so this package never imports harvest,
// config, or scheduler directly (spec §4.4 keeps states bus/command-driven,
// not wired to concrete subsystems).
type Hooks struct {
	// StartHarvest prepares and launches a harvest run asynchronously. A
	// non-nil error (e.g. "no eligible pipelines") maps to 503 busy.
	StartHarvest func() error
	Submit       func() error
	Save         func() error
	Reset        func() error
}

// Initialization is the state held from process start until
// ServiceInitializedEvent resolves it to Idle or Error. Every command is
// busy, the BaseState default.
type Initialization struct{ BaseState }

func NewInitialization() *Initialization {
	return &Initialization{BaseState{name: NameInitialization}}
}

// Idle is the only state from which StartHarvest/Submit/Save succeed;
// Reset succeeds from Idle and from Error.
type Idle struct {
	BaseState
	hooks Hooks
}

func NewIdle(hooks Hooks) *Idle {
	return &Idle{BaseState{name: NameIdle}, hooks}
}

func (i *Idle) StartHarvest() Result {
	if err := i.hooks.StartHarvest(); err != nil {
		return Result{StatusCode: 503, Message: err.Error()}
	}
	return accepted()
}

func (i *Idle) Submit() Result {
	if err := i.hooks.Submit(); err != nil {
		return Result{StatusCode: 503, Message: err.Error()}
	}
	return accepted()
}

func (i *Idle) Save() Result {
	if err := i.hooks.Save(); err != nil {
		return Result{StatusCode: 503, Message: err.Error()}
	}
	return accepted()
}

func (i *Idle) Reset() Result {
	if err := i.hooks.Reset(); err != nil {
		return Result{StatusCode: 503, Message: err.Error()}
	}
	return ok("reset")
}

// Harvesting tracks an in-progress ETL run's document counts for progress
// reporting and routes Abort() through the bus.
type Harvesting struct {
	*ProgressingState
}

// NewHarvesting wraps a ProgressingState measuring documents harvested
// against the ETL Manager's current maximum (current/max, spec §4.4/§4.6).
func NewHarvesting(startTime time.Time, current, max func() int64, b *bus.Bus) *Harvesting {
	return &Harvesting{NewProgressingState(NameHarvesting, startTime, current, max, b)}
}

// Submitting and Saving are long-running but, unlike Harvesting, report no
// document count of their own (the spec gives them no analogous counter),
// so they report unknown progress while still honoring abort()'s
// ETA-aware 202 contract via the shared ProgressingState.
type Submitting struct {
	*ProgressingState
}

func NewSubmitting(startTime time.Time, b *bus.Bus) *Submitting {
	zero, unknownMax := func() int64 { return 0 }, func() int64 { return -1 }
	return &Submitting{NewProgressingState(NameSubmitting, startTime, zero, unknownMax, b)}
}

type Saving struct {
	*ProgressingState
}

func NewSaving(startTime time.Time, b *bus.Bus) *Saving {
	zero, unknownMax := func() int64 { return 0 }, func() int64 { return -1 }
	return &Saving{NewProgressingState(NameSaving, startTime, zero, unknownMax, b)}
}

// Error is entered when initialization fails or a pipeline's harvest fails
// with INITIALIZATION_FAILED health; Reset returns to Initialization.
type Error struct {
	BaseState
	hooks Hooks
	cause string
}

func NewError(cause string, hooks Hooks) *Error {
	return &Error{BaseState{name: NameError}, hooks, cause}
}

func (e *Error) StatusString() string {
	if e.cause == "" {
		return string(NameError)
	}
	return string(NameError) + ": " + e.cause
}

func (e *Error) Reset() Result {
	if err := e.hooks.Reset(); err != nil {
		return Result{StatusCode: 503, Message: err.Error()}
	}
	return ok("reset")
}

// Aborting is entered while a harvest's cooperative cancellation is in
// flight. It cannot itself be aborted again.
type Aborting struct{ BaseState }

func NewAborting() *Aborting {
	return &Aborting{BaseState{name: NameAborting}}
}
