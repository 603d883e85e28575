// Package etl implements one harvest unit's Extract→Transform→Load
// lifecycle (spec §4.5): a lazily-pulled pipeline of documents with a
// monotone status machine and a persisted health record. Grounded on the
// teacher's downloader package's jogger/task lazy-pull model and its
// cooperative-cancellation-via-status-check design.
package etl

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/harvestrt/harvestrt/bus"
	"github.com/harvestrt/harvestrt/cmn"
	"github.com/harvestrt/harvestrt/config"
	"github.com/harvestrt/harvestrt/history"
)

const (
	unknownSize = int64(-1)

	statusHistoryCapacity = 10
	healthHistoryCapacity = 1
)

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithIteratorRange marks the pipeline as iterator-based: init() registers
// rangeFrom/rangeTo integer Parameters describing a half-open [from, to)
// window over the extractor's sequence, per spec §4.5.
func WithIteratorRange() Option {
	return func(p *Pipeline) { p.iteratorRanged = true }
}

// Pipeline is one ETL unit: a named extractor/transformer/loader triple
// with a status/health history and its own enabled/range Parameters.
type Pipeline struct {
	mu sync.Mutex

	name               string
	extractorFactory   ExtractorFactory
	transformerFactory TransformerFactory
	loaderFactory      LoaderFactory

	extractor   Extractor
	transformer Transformer
	loader      Loader

	hash             string
	maxDocumentCount atomic.Int64
	harvestedCount   atomic.Int64

	statusHistory *history.History[Status]
	healthHistory *history.History[Health]

	iteratorRanged bool
	enabledParam   *config.Parameter
	fromParam      *config.Parameter
	toParam        *config.Parameter

	cfg *config.Configuration
	bus *bus.Bus
}

// NewPipeline constructs a Pipeline named name (sanitized via
// cmn.SanitizeName) with the given stage factories.
func NewPipeline(name string, ef ExtractorFactory, tf TransformerFactory, lf LoaderFactory, opts ...Option) *Pipeline {
	p := &Pipeline{
		name:               cmn.SanitizeName(name),
		extractorFactory:   ef,
		transformerFactory: tf,
		loaderFactory:      lf,
		statusHistory:      history.New[Status](statusHistoryCapacity, StatusInitializing),
		healthHistory:      history.New[Health](healthHistoryCapacity, HealthOK),
	}
	p.maxDocumentCount.Store(unknownSize)
	p.statusHistory.Add(StatusInitializing)
	p.healthHistory.Add(HealthOK)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the pipeline's sanitized, unique identifier.
func (p *Pipeline) Name() string { return p.name }

// GetStatus returns the latest recorded status.
func (p *Pipeline) GetStatus() Status { return p.statusHistory.Latest() }

// GetHealth returns the latest recorded health.
func (p *Pipeline) GetHealth() Health { return p.healthHistory.Latest() }

// GetHarvestedCount returns the number of documents successfully loaded so
// far in the current (or most recent) harvest.
func (p *Pipeline) GetHarvestedCount() int64 { return p.harvestedCount.Load() }

// GetHash returns the last-computed source version hash, or "" if none has
// been computed yet (spec's nullable hash).
func (p *Pipeline) GetHash() string { return p.hash }

func (p *Pipeline) setStatus(s Status) { p.statusHistory.Add(s) }
func (p *Pipeline) setHealth(h Health) { p.healthHistory.Add(h) }

// Init transitions INITIALIZING→IDLE, registering the pipeline's
// category-scoped Parameters. Must be called exactly once, before any other
// operation.
func (p *Pipeline) Init(cfg *config.Configuration, b *bus.Bus) error {
	if p.GetStatus() != StatusInitializing {
		return cmn.NewPreconditionError(p.name, "init called outside INITIALIZING status")
	}
	p.cfg = cfg
	p.bus = b

	cfg.RegisterCategory(config.NewCategory(p.name, "Idle"))
	p.enabledParam = cfg.RegisterParameter(config.NewBoolean(p.name, "enabled", true))
	if p.iteratorRanged {
		p.fromParam = cfg.RegisterParameter(config.NewInteger(p.name, "rangeFrom", 0))
		p.toParam = cfg.RegisterParameter(config.NewInteger(p.name, "rangeTo", math.MaxInt64))
	}
	p.setStatus(StatusIdle)
	return nil
}

// Update (re)creates the extractor, recomputes the source hash, and
// refreshes the known document count. Failures are reported as a
// PreconditionError, per spec §4.5.
func (p *Pipeline) Update() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	extractor := p.extractorFactory()
	if err := extractor.Init(p); err != nil {
		return cmn.NewPreconditionError(p.name, "extractor init failed: "+err.Error())
	}
	p.extractor = extractor
	p.hash = cmn.HashVersionString(extractor.UniqueVersionString())
	p.maxDocumentCount.Store(extractor.Size())
	return nil
}

// PrepareHarvest validates the pipeline is eligible to run and readies its
// transformer/loader, transitioning to QUEUED on success or DONE (with a
// descriptive error) when the pipeline should be skipped this round.
func (p *Pipeline) PrepareHarvest() error {
	p.setStatus(StatusQueued)
	p.setHealth(HealthOK)

	if !p.enabledParam.BoolValue() {
		p.setStatus(StatusDone)
		return cmn.NewPreconditionError(p.name, "disabled")
	}

	if err := p.Update(); err != nil {
		p.setStatus(StatusDone)
		p.setHealth(HealthHarvestFailed)
		return err
	}

	p.mu.Lock()
	transformer := p.transformerFactory()
	loader := p.loaderFactory()
	if err := transformer.Init(p); err != nil {
		p.mu.Unlock()
		p.setStatus(StatusDone)
		p.setHealth(HealthHarvestFailed)
		return cmn.NewPreconditionError(p.name, "transformer init failed: "+err.Error())
	}
	if err := loader.Init(p); err != nil {
		p.mu.Unlock()
		p.setStatus(StatusDone)
		p.setHealth(HealthHarvestFailed)
		return cmn.NewPreconditionError(p.name, "loader init failed: "+err.Error())
	}
	p.transformer = transformer
	p.loader = loader
	p.mu.Unlock()

	if p.iteratorRanged {
		from, to := p.fromParam.IntValue(), p.toParam.IntValue()
		if from == to {
			p.setStatus(StatusDone)
			return cmn.NewPreconditionError(p.name, "out of range: rangeFrom == rangeTo")
		}
	}

	p.harvestedCount.Store(0)
	return nil
}

// Harvest runs extract→transform→load to completion, pulling documents
// lazily and checking for a cooperative abort request between each pull.
func (p *Pipeline) Harvest(ctx context.Context) error {
	p.setStatus(StatusHarvesting)

	p.mu.Lock()
	extractor, transformer, loader := p.extractor, p.transformer, p.loader
	p.mu.Unlock()

	iter, err := extractor.Extract(ctx)
	if err != nil {
		loader.Close()
		p.setStatus(StatusDone)
		p.setHealth(HealthExtractionFailed)
		return &cmn.ExtractionError{Cause: err}
	}
	iter = transformer.Transform(iter)

	for {
		if p.GetStatus() == StatusAborting {
			loader.Close()
			p.setStatus(StatusDone)
			return nil
		}
		doc, hasNext, err := iter.Next(ctx)
		if err != nil {
			loader.Close()
			p.setStatus(StatusDone)
			p.setHealth(classifyPullError(err))
			return err
		}
		if !hasNext {
			break
		}
		if err := loader.Load(ctx, doc); err != nil {
			loader.Close()
			p.setStatus(StatusDone)
			p.setHealth(HealthLoadingFailed)
			return &cmn.LoadingError{Cause: err}
		}
		p.harvestedCount.Inc()
	}

	if err := loader.Close(); err != nil {
		p.setStatus(StatusDone)
		p.setHealth(HealthLoadingFailed)
		return &cmn.LoadingError{Cause: err}
	}
	p.setStatus(StatusDone)
	p.setHealth(HealthOK)
	return nil
}

func classifyPullError(err error) Health {
	var transformErr *cmn.TransformationError
	var extractErr *cmn.ExtractionError
	switch {
	case errors.As(err, &transformErr):
		return HealthTransformationFailed
	case errors.As(err, &extractErr):
		return HealthExtractionFailed
	default:
		return HealthHarvestFailed
	}
}

// AbortHarvest requests cooperative cancellation of a running harvest
// (HARVESTING→ABORTING), or short-circuits a queued one (QUEUED→DONE).
// Other states are unaffected.
func (p *Pipeline) AbortHarvest() {
	switch p.GetStatus() {
	case StatusHarvesting:
		p.setStatus(StatusAborting)
	case StatusQueued:
		p.setStatus(StatusDone)
	}
}

// CancelHarvest is the non-cooperative fast exit from QUEUED, releasing any
// resources acquired during PrepareHarvest. Safe to call on a DONE
// pipeline (no-op).
func (p *Pipeline) CancelHarvest() {
	if p.GetStatus() != StatusQueued {
		return
	}
	p.setStatus(StatusCancelling)
	p.mu.Lock()
	if p.loader != nil {
		p.loader.Close()
	}
	p.extractor, p.transformer, p.loader = nil, nil, nil
	p.mu.Unlock()
	p.setStatus(StatusDone)
}

// GetMaxNumberOfDocuments returns the known or computed document ceiling:
// min(extractor.Size(), rangeTo) - rangeFrom for iterator pipelines, the
// raw extractor size otherwise, or -1 if unknown.
func (p *Pipeline) GetMaxNumberOfDocuments() int64 {
	size := p.maxDocumentCount.Load()
	if !p.iteratorRanged {
		return size
	}
	if size < 0 {
		return unknownSize
	}
	from, to := p.fromParam.IntValue(), p.toParam.IntValue()
	if size < to {
		to = size
	}
	if to < from {
		return 0
	}
	return to - from
}

// snapshot is the on-disk JSON shape for one pipeline, per spec §6 ("ETL
// snapshot"). Timestamps are stored as Unix milliseconds to match the
// normative schema rather than history.Entry's time.Time.
type snapshot struct {
	Name             string           `json:"name"`
	StatusHistory    []snapshotEntry  `json:"statusHistory"`
	HealthHistory    []snapshotEntry  `json:"healthHistory"`
	HarvestedCount   int64            `json:"harvestedCount"`
	MaxDocumentCount int64            `json:"maxDocumentCount"`
	Hash             *string          `json:"hash"`
}

type snapshotEntry struct {
	Ts    int64  `json:"ts"`
	Value string `json:"value"`
}

// GetAsJSON snapshots the pipeline's name, both histories, counts, and
// hash.
func (p *Pipeline) GetAsJSON() ([]byte, error) {
	var hashPtr *string
	if p.hash != "" {
		h := p.hash
		hashPtr = &h
	}
	snap := snapshot{
		Name:             p.name,
		StatusHistory:    toSnapshotEntries(p.statusHistory.Entries()),
		HealthHistory:    toHealthSnapshotEntries(p.healthHistory.Entries()),
		HarvestedCount:   p.harvestedCount.Load(),
		MaxDocumentCount: p.maxDocumentCount.Load(),
		Hash:             hashPtr,
	}
	return cmn.JSON.Marshal(snap)
}

// LoadFromJSON merges a persisted snapshot into the pipeline: statusHistory
// is always merged by timestamp; healthHistory is replaced only if the
// in-memory health is OK and the persisted latest health is not
// INITIALIZATION_FAILED, per spec §4.5 — this keeps a fresh successful init
// from being overwritten by a stale failure, and a fresh failure from being
// hidden by a stale success.
func (p *Pipeline) LoadFromJSON(data []byte) error {
	var snap snapshot
	if err := cmn.JSON.Unmarshal(data, &snap); err != nil {
		return err
	}

	p.statusHistory.AddAllSorted(fromSnapshotEntries[Status](snap.StatusHistory))

	persistedHealth := fromSnapshotEntries[Health](snap.HealthHistory)
	var persistedLatest Health
	if len(persistedHealth) > 0 {
		persistedLatest = persistedHealth[len(persistedHealth)-1].Value
	}
	if p.GetHealth() == HealthOK && persistedLatest != HealthInitializationFailed {
		p.healthHistory = history.New[Health](healthHistoryCapacity, HealthOK)
		p.healthHistory.AddAllSorted(persistedHealth)
	}

	p.harvestedCount.Store(snap.HarvestedCount)
	p.maxDocumentCount.Store(snap.MaxDocumentCount)
	if snap.Hash != nil {
		p.hash = *snap.Hash
	}
	return nil
}

func toSnapshotEntries(entries []history.Entry[Status]) []snapshotEntry {
	out := make([]snapshotEntry, len(entries))
	for i, e := range entries {
		out[i] = snapshotEntry{Ts: e.Timestamp.UnixMilli(), Value: string(e.Value)}
	}
	return out
}

func toHealthSnapshotEntries(entries []history.Entry[Health]) []snapshotEntry {
	out := make([]snapshotEntry, len(entries))
	for i, e := range entries {
		out[i] = snapshotEntry{Ts: e.Timestamp.UnixMilli(), Value: string(e.Value)}
	}
	return out
}

func fromSnapshotEntries[T ~string](entries []snapshotEntry) []history.Entry[T] {
	out := make([]history.Entry[T], len(entries))
	for i, e := range entries {
		out[i] = history.Entry[T]{Timestamp: time.UnixMilli(e.Ts), Value: T(e.Value)}
	}
	return out
}
