// Package runtime implements the Main Context (spec §4.8): the process-wide
// holder that constructs every subsystem once, wires their bus listeners,
// and tears them down in reverse order. Grounded on the general
// flags/env-then-defaults, construct-subsystems-in-dependency-order daemon
// bootstrap idiom common across the corpus's long-running services.
package runtime

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/harvestrt/harvestrt/bus"
	"github.com/harvestrt/harvestrt/cmn"
	"github.com/harvestrt/harvestrt/config"
	"github.com/harvestrt/harvestrt/etl"
	"github.com/harvestrt/harvestrt/harvest"
	"github.com/harvestrt/harvestrt/loader"
	"github.com/harvestrt/harvestrt/scheduler"
	"github.com/harvestrt/harvestrt/state"
	"github.com/harvestrt/harvestrt/store"
)

func openLedgerStore(dir string) (*store.Store, error) {
	return store.Open(filepath.Join(dir, "harvest-history.db"))
}

// BuildInfo is this runtime's answer to GetMavenUtilsEvent: build/version
// metadata a pipeline's Extractor might want to report alongside its own
// UniqueVersionString.
type BuildInfo struct {
	ModuleName string
	Version    string
	BuildTime  string
}

// EtlFactory builds the full set of pipelines a harvester process runs,
// called exactly once during Init.
type EtlFactory func() []*etl.Pipeline

// LoaderClass names one pluggable Loader implementation, registered into
// the Loader registry during Init so Configuration's loader-selection Enum
// Parameter can validate against it.
type LoaderClass struct {
	Name    string
	Factory etl.LoaderFactory
}

const (
	historyRetentionDefault = 100
	shutdownGracePeriod     = 30 * time.Second
)

// Context is the process-wide holder for every subsystem. The zero value is
// not usable; construct with Init.
type Context struct {
	ModuleName string
	CacheRoot  string
	BuildInfo  BuildInfo

	Bus        *bus.Bus
	Config     *config.Configuration
	Loaders    *loader.Registry
	Manager    *harvest.Manager
	Scheduler  *scheduler.Scheduler
	Machine    *state.Machine
	Ledger     *harvest.Ledger

	mu         sync.Mutex
	cancelWork context.CancelFunc
	workDone   chan struct{}
}

func moduleDir(cacheRoot, moduleName string) string {
	return filepath.Join(cacheRoot, moduleName)
}

// Init constructs and wires every subsystem, registers every pipeline
// etlFactory returns (calling Init then a best-effort Update on each), and
// emits ServiceInitializedEvent once done — success or failure, per spec
// §7's InitializationFailed taxonomy entry.
func Init(moduleName string, etlFactory EtlFactory, loaderClasses []LoaderClass) (*Context, error) {
	deployment := DetectDeploymentType()
	cacheRoot := ResolveCacheRoot(deployment)
	dir := moduleDir(cacheRoot, moduleName)

	glog.Infof("%s: starting (deployment=%s, cacheDir=%s)", moduleName, deployment, dir)

	c := &Context{
		ModuleName: moduleName,
		CacheRoot:  cacheRoot,
		BuildInfo:  BuildInfo{ModuleName: moduleName, Version: "dev", BuildTime: "unknown"},
		Bus:        bus.New(),
	}

	c.Config = config.New(moduleName, filepath.Join(dir, "config.json"), c.Bus)
	c.Loaders = loader.New(c.Bus)
	for _, lc := range loaderClasses {
		if err := c.Loaders.Register(lc.Name, lc.Factory); err != nil {
			return nil, c.failInit(fmt.Errorf("registering loader %q: %w", lc.Name, err))
		}
	}

	c.Manager = harvest.New(moduleName, dir, c.Config, c.Bus)
	for _, p := range etlFactory() {
		if err := c.Manager.Register(p); err != nil {
			return nil, c.failInit(fmt.Errorf("registering pipeline %q: %w", p.Name(), err))
		}
		if err := p.Init(c.Config, c.Bus); err != nil {
			return nil, c.failInit(fmt.Errorf("initializing pipeline %q: %w", p.Name(), err))
		}
		if err := p.Update(); err != nil {
			// Best-effort per spec §4.8: a source that is unreachable at
			// startup should not prevent the service from coming up.
			glog.Warningf("%s: initial update of pipeline %q failed: %v", moduleName, p.Name(), err)
		}
	}

	ledgerStore, err := openLedgerStore(dir)
	if err != nil {
		return nil, c.failInit(fmt.Errorf("opening harvest history ledger: %w", err))
	}
	c.Ledger = harvest.NewLedger(ledgerStore, historyRetentionDefault)

	c.Scheduler = scheduler.New(filepath.Join(dir, "scheduler.json"), c.Bus)

	c.Machine = state.NewMachine(c.Bus, c.hooks(), state.Progress{
		Current: func() int64 { return c.Manager.GetNumberOfHarvestedDocuments() },
		Max:     c.currentHarvestMax,
	})
	c.Config.SetCurrentStateFunc(func() string { return string(c.Machine.Current().Name()) })

	c.registerLookups()

	if err := c.Config.LoadFromDisk(); err != nil {
		return nil, c.failInit(fmt.Errorf("loading configuration: %w", err))
	}
	if err := c.Manager.LoadFromDisk(); err != nil {
		return nil, c.failInit(fmt.Errorf("loading ETL snapshots: %w", err))
	}
	if err := c.Scheduler.LoadFromDisk(); err != nil {
		return nil, c.failInit(fmt.Errorf("loading schedule: %w", err))
	}
	c.Scheduler.Start()

	c.Bus.Send(bus.ServiceInitializedEvent{Success: true})
	glog.Infof("%s: initialized", moduleName)
	return c, nil
}

func (c *Context) failInit(err error) error {
	glog.Errorf("%s: initialization failed: %v", c.ModuleName, err)
	if c.Bus != nil {
		c.Bus.Send(bus.ServiceInitializedEvent{Success: false, Err: err})
	}
	return &cmn.InitializationError{Cause: err}
}

// currentHarvestMax sums GetMaxNumberOfDocuments across every registered
// pipeline, or -1 if any is unknown, for the Harvesting state's
// progress/ETA math. Pipelines that were not queued for the current run
// (disabled or skipped) are counted as well.
func (c *Context) currentHarvestMax() int64 {
	var total int64
	for _, p := range c.Manager.Pipelines() {
		n := p.GetMaxNumberOfDocuments()
		if n < 0 {
			return -1
		}
		total += n
	}
	return total
}

// hooks wires the state machine's commands to this Context's subsystems,
// keeping the state package itself free of a harvest/config dependency.
func (c *Context) hooks() state.Hooks {
	return state.Hooks{
		StartHarvest: c.startHarvest,
		Submit:       c.submit,
		Save:         c.save,
		Reset:        c.reset,
	}
}

func (c *Context) startHarvest() error {
	if err := c.Manager.PrepareHarvest(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.mu.Lock()
	c.cancelWork = cancel
	c.workDone = done
	c.mu.Unlock()

	abortRequested := make(chan struct{}, 1)
	abortID := c.Bus.AddListener(bus.EvStartAborting, func(bus.Event) {
		select {
		case abortRequested <- struct{}{}:
		default:
		}
	})

	startedAt := time.Now()
	go func() {
		defer close(done)
		defer c.Bus.RemoveListener(bus.EvStartAborting, abortID)
		_ = c.Manager.Harvest(ctx)
		c.recordHarvest(startedAt)
		if err := c.Manager.SaveToDisk(); err != nil {
			glog.Errorf("%s: saving ETL snapshots after harvest: %v", c.ModuleName, err)
		}
		// HarvestFinishedEvent always fires (above, inside Manager.Harvest)
		// and alone converges the Machine back to Idle. When this run ended
		// because of an abort, also emit AbortingFinishedEvent so a
		// currently-Aborting state's REST callers see the transition too.
		aborted := ctx.Err() != nil
		select {
		case <-abortRequested:
			aborted = true
		default:
		}
		if aborted {
			c.Bus.Send(bus.AbortingFinishedEvent{})
		}
	}()
	return nil
}

func (c *Context) recordHarvest(startedAt time.Time) {
	counts := make(map[string]int64)
	for _, p := range c.Manager.Pipelines() {
		counts[p.Name()] = p.GetHarvestedCount()
	}
	rec := harvest.Record{
		StartedAt:  startedAt.UnixMilli(),
		FinishedAt: time.Now().UnixMilli(),
		Success:    c.Manager.GetHealth() == etl.HealthOK,
		Hash:       c.Manager.GetHarvesterHash(),
		Health:     string(c.Manager.GetHealth()),
		Counts:     counts,
	}
	if err := c.Ledger.Append(rec); err != nil {
		glog.Errorf("%s: appending harvest history record: %v", c.ModuleName, err)
	}
}

// submit is a conservative default for the Submitting state: no concrete
// submission target is in scope for this runtime (spec.md's Non-goals
// exclude a query/indexing layer), so submit() does nothing and returns
// nil; it records no ledger entry. A harvester built on this runtime
// overrides Submit in its Hooks to do something domain-specific.
func (c *Context) submit() error {
	return nil
}

// save persists every subsystem's durable state on demand, independent of
// each subsystem's own save-on-mutate writes, per the Saving state's
// purpose of giving operators an explicit "flush now" command.
func (c *Context) save() error {
	if err := c.Config.SaveToDisk(); err != nil {
		return err
	}
	return c.Manager.SaveToDisk()
}

func (c *Context) reset() error {
	c.Bus.Send(bus.ResetContextEvent{})
	return nil
}

func (c *Context) registerLookups() {
	c.Bus.AddSynchronousListener(bus.EvGetMainLog, func(bus.Event) interface{} {
		return c.ModuleName
	})
	c.Bus.AddSynchronousListener(bus.EvGetMavenUtils, func(bus.Event) interface{} {
		return c.BuildInfo
	})
	c.Bus.AddSynchronousListener(bus.EvGetNumberOfHarvestedDocs, func(bus.Event) interface{} {
		return c.Manager.GetNumberOfHarvestedDocuments()
	})
	c.Bus.AddListener(bus.EvStartAborting, func(bus.Event) {
		c.Manager.Abort()
	})
}

// Destroy tears every subsystem down in reverse init order: Scheduler → ETL
// Manager → Configuration → Event Bus, per spec §4.8 and the
// graceful-shutdown supplement in SPEC_FULL §12. It cancels an in-flight
// harvest worker's context and waits up to shutdownGracePeriod for it to
// observe cancellation before proceeding.
func (c *Context) Destroy() {
	glog.Infof("%s: shutting down", c.ModuleName)

	c.mu.Lock()
	cancel, done := c.cancelWork, c.workDone
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(shutdownGracePeriod):
			glog.Warningf("%s: harvest worker did not exit within %s", c.ModuleName, shutdownGracePeriod)
		}
	}

	c.Scheduler.OnContextDestroyed()

	if err := c.Manager.SaveToDisk(); err != nil {
		glog.Errorf("%s: saving ETL snapshots on shutdown: %v", c.ModuleName, err)
	}
	if err := c.Config.SaveToDisk(); err != nil {
		glog.Errorf("%s: saving configuration on shutdown: %v", c.ModuleName, err)
	}

	c.Bus.Reset()
	glog.Infof("%s: shutdown complete", c.ModuleName)
	glog.Flush()
}
