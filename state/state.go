// Package state implements the Process State Machine (spec §4.4): a
// single current-state arbiter whose states expose a uniform REST-facing
// command contract, driven exclusively by events on the bus. Grounded on
// the teacher's xaction Finished()/Aborted() binary-state idiom, extended
// here into a full named-state enum with a shared Progressing State
// abstraction for percent/ETA arithmetic.
package state

// Name identifies a state; the tag returned by Name() and matched against
// a config Category's AllowedStates for state-gated Parameters.
type Name string

const (
	NameInitialization Name = "Initialization"
	NameIdle           Name = "Idle"
	NameHarvesting     Name = "Harvesting"
	NameSubmitting     Name = "Submitting"
	NameSaving         Name = "Saving"
	NameAborting       Name = "Aborting"
	NameError          Name = "Error"
)

// Result is a command's REST-facing outcome: an HTTP status code, an
// optional Retry-After hint (0 means absent), and a human message.
type Result struct {
	StatusCode        int
	RetryAfterSeconds int64
	Message           string
}

func accepted() Result { return Result{StatusCode: 202, Message: "accepted"} }

func busy(retryAfter int64) Result {
	return Result{StatusCode: 503, RetryAfterSeconds: retryAfter, Message: "busy"}
}

func ok(msg string) Result { return Result{StatusCode: 200, Message: msg} }

// State is the command contract every state implements, per spec §4.4's
// table. Concrete states embed BaseState for the default "busy unless
// Idle" behavior and override only what's different.
type State interface {
	Name() Name
	StatusString() string
	Progress() string
	StartHarvest() Result
	Abort() Result
	Submit() Result
	Save() Result
	Reset() Result
	IsOutdated() bool
}

// BaseState implements the default command contract: every mutating
// command is rejected with 503 except from Idle/Error where spec.md
// specifies otherwise. Concrete states embed this and override.
type BaseState struct {
	name Name
}

func (b BaseState) Name() Name            { return b.name }
func (b BaseState) StatusString() string  { return string(b.name) }
func (b BaseState) Progress() string      { return "" }
func (b BaseState) StartHarvest() Result  { return busy(0) }
func (b BaseState) Abort() Result         { return busy(0) }
func (b BaseState) Submit() Result        { return busy(0) }
func (b BaseState) Save() Result          { return busy(0) }
func (b BaseState) Reset() Result         { return busy(0) }
func (b BaseState) IsOutdated() bool      { return false }
