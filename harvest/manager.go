// Package harvest implements the ETL Manager (spec §4.6): orchestration of
// many ETL Pipelines as one harvest run. Grounded on the teacher's
// xaction/registry package — a stable insertion-ordered entry list, a
// single-flight-per-kind renewal/queue concept, and WaitGroup-style fan-out
// abort — adapted from "one registry of cluster xactions" to "one queue of
// pipelines selected for this harvest".
package harvest

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/harvestrt/harvestrt/bus"
	"github.com/harvestrt/harvestrt/cmn"
	"github.com/harvestrt/harvestrt/config"
	"github.com/harvestrt/harvestrt/etl"
)

// Manager owns every registered Pipeline, in registration order, and drives
// one harvest run across the currently-enabled subset.
type Manager struct {
	mu sync.RWMutex

	moduleName  string
	cacheFolder string
	bus         *bus.Bus
	cfg         *config.Configuration

	pipelines []*etl.Pipeline
	byName    map[string]*etl.Pipeline

	currentQueue  []*etl.Pipeline
	harvesterHash string

	registeredAggregateParams bool
	running                   atomic.Bool
}

// New constructs an empty Manager. cacheFolder is the per-module directory
// under which per-pipeline JSON snapshots are stored (spec §6:
// "etl/<etl-name>.json").
func New(moduleName, cacheFolder string, cfg *config.Configuration, b *bus.Bus) *Manager {
	return &Manager{
		moduleName:  moduleName,
		cacheFolder: cacheFolder,
		cfg:         cfg,
		bus:         b,
		byName:      make(map[string]*etl.Pipeline),
	}
}

// Register adds p to the managed set. Registering the manager's aggregate
// parameters happens on the first call, per spec §4.6.
func (m *Manager) Register(p *etl.Pipeline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byName[p.Name()]; dup {
		return cmn.NewInvalidArgumentError("pipeline %q already registered", p.Name())
	}
	if !m.registeredAggregateParams {
		m.cfg.RegisterCategory(config.NewCategory("harvest", "Idle"))
		m.cfg.RegisterParameter(config.NewInteger("harvest", "historyRetention", 100))
		m.registeredAggregateParams = true
	}
	m.pipelines = append(m.pipelines, p)
	m.byName[p.Name()] = p
	return nil
}

// Pipelines returns every registered pipeline in registration order.
func (m *Manager) Pipelines() []*etl.Pipeline {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*etl.Pipeline, len(m.pipelines))
	copy(out, m.pipelines)
	return out
}

// Get returns the pipeline registered under name, or nil.
func (m *Manager) Get(name string) *etl.Pipeline {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byName[name]
}

// PrepareHarvest calls PrepareHarvest on every registered pipeline in
// order, collects the subset that queued successfully into currentQueue,
// and computes the aggregate harvesterHash. Returns a PreconditionError if
// no pipeline is eligible.
func (m *Manager) PrepareHarvest() error {
	m.mu.RLock()
	pipelines := append([]*etl.Pipeline(nil), m.pipelines...)
	m.mu.RUnlock()

	var queue []*etl.Pipeline
	var hashes []string
	for _, p := range pipelines {
		if err := p.PrepareHarvest(); err != nil {
			continue
		}
		queue = append(queue, p)
		if h := p.GetHash(); h != "" {
			hashes = append(hashes, h)
		}
	}

	m.mu.Lock()
	m.currentQueue = queue
	m.harvesterHash = cmn.HashAll(hashes)
	m.mu.Unlock()

	if len(queue) == 0 {
		return cmn.NewPreconditionError(m.moduleName, "no eligible pipelines")
	}
	return nil
}

// DryRunResult reports one pipeline's outcome from DryRunPrepare.
type DryRunResult struct {
	Pipeline string
	Queued   bool
	Reason   string
}

// DryRunPrepare calls PrepareHarvest on every registered pipeline and
// reports which would be queued or skipped, without calling Harvest or
// touching currentQueue — the supplemented "dry-run harvest" feature
// (SPEC_FULL §12), useful for validating configuration against a live
// source without actually loading anything.
func (m *Manager) DryRunPrepare() []DryRunResult {
	pipelines := m.Pipelines()
	results := make([]DryRunResult, 0, len(pipelines))
	for _, p := range pipelines {
		err := p.PrepareHarvest()
		res := DryRunResult{Pipeline: p.Name(), Queued: err == nil}
		if err != nil {
			res.Reason = err.Error()
		}
		results = append(results, res)
	}
	return results
}

// Harvest sequentially runs every queued pipeline, emitting HarvestStarted,
// per-pipeline DocumentsHarvested, and HarvestFinished events on the bus.
// A per-pipeline failure is recorded but does not abort the run; only
// Abort short-circuits. Returns an error only if a harvest is already in
// progress.
func (m *Manager) Harvest(ctx context.Context) error {
	if !m.running.CAS(false, true) {
		return cmn.NewInvalidArgumentError("a harvest is already in progress")
	}
	defer m.running.Store(false)

	m.mu.RLock()
	queue := append([]*etl.Pipeline(nil), m.currentQueue...)
	hash := m.harvesterHash
	m.mu.RUnlock()

	m.bus.Send(bus.HarvestStartedEvent{
		StartTime:  time.Now(),
		StartIndex: 0,
		EndIndex:   len(queue),
	})

	overallSuccess := true
	aggregateHealth := etl.HealthOK
	for _, p := range queue {
		if p.GetStatus() != etl.StatusQueued {
			// Cancelled by Abort before its turn came.
			continue
		}
		if err := p.Harvest(ctx); err != nil {
			overallSuccess = false
		}
		aggregateHealth = etl.WorseHealth(aggregateHealth, p.GetHealth())
		m.bus.Send(bus.DocumentsHarvestedEvent{
			Pipeline: p.Name(),
			Count:    p.GetHarvestedCount(),
		})
	}
	if aggregateHealth != etl.HealthOK {
		overallSuccess = false
	}

	m.bus.Send(bus.HarvestFinishedEvent{
		Success: overallSuccess,
		Hash:    hash,
		Health:  string(aggregateHealth),
	})
	return nil
}

// Abort propagates AbortHarvest to the currently-running pipeline (if any)
// and CancelHarvest to every other queued pipeline.
func (m *Manager) Abort() {
	m.mu.RLock()
	queue := append([]*etl.Pipeline(nil), m.currentQueue...)
	m.mu.RUnlock()

	for _, p := range queue {
		switch p.GetStatus() {
		case etl.StatusHarvesting:
			p.AbortHarvest()
		case etl.StatusQueued:
			p.CancelHarvest()
		}
	}
}

// GetHealth returns the worst health across all registered pipelines, per
// spec §4.6 ("worst health across all pipelines with precedence
// INITIALIZATION_FAILED > *_FAILED > OK").
func (m *Manager) GetHealth() etl.Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	health := etl.HealthOK
	for _, p := range m.pipelines {
		health = etl.WorseHealth(health, p.GetHealth())
	}
	return health
}

// GetNumberOfHarvestedDocuments sums GetHarvestedCount across every
// registered pipeline; wired to bus.GetNumberOfHarvestedDocumentsEvent.
func (m *Manager) GetNumberOfHarvestedDocuments() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	for _, p := range m.pipelines {
		total += p.GetHarvestedCount()
	}
	return total
}

// IsRunning reports whether a harvest worker is currently active.
func (m *Manager) IsRunning() bool { return m.running.Load() }

// GetHarvesterHash returns the aggregate hash computed by the most recent
// PrepareHarvest call, or "" if none has run yet.
func (m *Manager) GetHarvesterHash() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.harvesterHash
}

func (m *Manager) snapshotPath(name string) string {
	return filepath.Join(m.cacheFolder, "etl", name+".json")
}

// LoadFromDisk restores every registered pipeline's snapshot from the
// cache folder, if present.
func (m *Manager) LoadFromDisk() error {
	m.mu.RLock()
	pipelines := append([]*etl.Pipeline(nil), m.pipelines...)
	m.mu.RUnlock()
	for _, p := range pipelines {
		data, err := cmn.ReadFileIfExists(m.snapshotPath(p.Name()))
		if err != nil {
			return err
		}
		if data == nil {
			continue
		}
		if err := p.LoadFromJSON(data); err != nil {
			return err
		}
	}
	return nil
}

// SaveToDisk writes every registered pipeline's snapshot under the cache
// folder, keyed by pipeline name.
func (m *Manager) SaveToDisk() error {
	m.mu.RLock()
	pipelines := append([]*etl.Pipeline(nil), m.pipelines...)
	m.mu.RUnlock()
	for _, p := range pipelines {
		data, err := p.GetAsJSON()
		if err != nil {
			return err
		}
		if err := cmn.SaveBytes(m.snapshotPath(p.Name()), data); err != nil {
			return err
		}
	}
	return nil
}
