package bus

import "time"

// Event type tags. Names mirror the command/verb vocabulary used across
// spec.md §4.4–§4.9.
const (
	EvParameterChanged          EventType = "ParameterChanged"
	EvHarvestStarted            EventType = "HarvestStarted"
	EvHarvestFinished           EventType = "HarvestFinished"
	EvDocumentsHarvested        EventType = "DocumentsHarvested"
	EvAbortingStarted           EventType = "AbortingStarted"
	EvAbortingFinished          EventType = "AbortingFinished"
	EvServiceInitialized        EventType = "ServiceInitialized"
	EvResetContext              EventType = "ResetContext"
	EvStartHarvest              EventType = "StartHarvest"
	EvStartAborting             EventType = "StartAborting"
	EvGetMainLog                EventType = "GetMainLog"
	EvGetMavenUtils             EventType = "GetMavenUtils"
	EvGetNumberOfHarvestedDocs  EventType = "GetNumberOfHarvestedDocuments"
	EvGetLoaderNames            EventType = "GetLoaderNames"
	EvGetEnumValues             EventType = "GetEnumValues"
)

// ParameterChangedEvent is emitted by Configuration.SetParameter on a
// successful value change.
type ParameterChangedEvent struct {
	Category string
	Key      string
	OldValue string
	NewValue string
}

func (ParameterChangedEvent) Type() EventType { return EvParameterChanged }

// HarvestStartedEvent is emitted by the ETL Manager before the first queued
// pipeline runs.
type HarvestStartedEvent struct {
	StartTime  time.Time
	StartIndex int
	EndIndex   int
}

func (HarvestStartedEvent) Type() EventType { return EvHarvestStarted }

// HarvestFinishedEvent is emitted by the ETL Manager after the last queued
// pipeline completes (successfully or not).
type HarvestFinishedEvent struct {
	Success bool
	Hash    string
	Health  string // worst ETLHealth across the queue, see etl.ETLHealth
}

func (HarvestFinishedEvent) Type() EventType { return EvHarvestFinished }

// DocumentsHarvestedEvent is emitted once per pipeline completion with the
// number of documents that pipeline loaded.
type DocumentsHarvestedEvent struct {
	Pipeline string
	Count    int64
}

func (DocumentsHarvestedEvent) Type() EventType { return EvDocumentsHarvested }

// AbortingStartedEvent is emitted by a Progressing State's abort() before
// the worker is asked to stop.
type AbortingStartedEvent struct{}

func (AbortingStartedEvent) Type() EventType { return EvAbortingStarted }

// StartAbortingEvent is emitted by the state machine to ask the ETL Manager
// to actually abort the running harvest.
type StartAbortingEvent struct{}

func (StartAbortingEvent) Type() EventType { return EvStartAborting }

// AbortingFinishedEvent is emitted once the abort has completed.
type AbortingFinishedEvent struct{}

func (AbortingFinishedEvent) Type() EventType { return EvAbortingFinished }

// ServiceInitializedEvent is emitted once by the Main Context after startup.
type ServiceInitializedEvent struct {
	Success bool
	Err     error
}

func (ServiceInitializedEvent) Type() EventType { return EvServiceInitialized }

// ResetContextEvent is emitted when a REST /reset command is accepted.
type ResetContextEvent struct{}

func (ResetContextEvent) Type() EventType { return EvResetContext }

// StartHarvestEvent is emitted synchronously by the Scheduler when a cron
// entry fires; its (synchronous) answerer is the state machine's
// startHarvest() command. The Scheduler discards the answer.
type StartHarvestEvent struct {
	FiredAt time.Time
	Cron    string
}

func (StartHarvestEvent) Type() EventType { return EvStartHarvest }

// GetMainLogEvent is a synchronous lookup answered by the Main Context.
type GetMainLogEvent struct{}

func (GetMainLogEvent) Type() EventType { return EvGetMainLog }

// GetMavenUtilsEvent is a synchronous lookup answered by the Main Context,
// used by pipelines that need build/version metadata.
type GetMavenUtilsEvent struct{}

func (GetMavenUtilsEvent) Type() EventType { return EvGetMavenUtils }

// GetNumberOfHarvestedDocumentsEvent is a synchronous lookup answered by the
// ETL Manager.
type GetNumberOfHarvestedDocumentsEvent struct{}

func (GetNumberOfHarvestedDocumentsEvent) Type() EventType { return EvGetNumberOfHarvestedDocs }

// GetLoaderNamesEvent is a synchronous lookup answered by the Loader
// registry (see package loader), used to validate the Loader-selection
// enum Parameter.
type GetLoaderNamesEvent struct{}

func (GetLoaderNamesEvent) Type() EventType { return EvGetLoaderNames }

// GetEnumValuesEvent is a synchronous lookup used by Parameter.Validate for
// enum-over-a-dynamic-set parameters: the event carries the parameter's
// composite key, and the answerer returns the currently-allowed []string.
type GetEnumValuesEvent struct {
	CompositeKey string
}

func (GetEnumValuesEvent) Type() EventType { return EvGetEnumValues }
