package etl

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harvestrt/harvestrt/bus"
	"github.com/harvestrt/harvestrt/config"
)

// sliceExtractor yields a fixed slice of documents, one per Next call.
type sliceExtractor struct {
	docs    []Document
	version string
}

func (e *sliceExtractor) Init(*Pipeline) error      { return nil }
func (e *sliceExtractor) UniqueVersionString() string { return e.version }
func (e *sliceExtractor) Size() int64               { return int64(len(e.docs)) }

func (e *sliceExtractor) Extract(context.Context) (DocumentIterator, error) {
	return &sliceIterator{docs: e.docs}, nil
}

type sliceIterator struct {
	mu   sync.Mutex
	docs []Document
	idx  int
}

func (it *sliceIterator) Next(context.Context) (Document, bool, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.idx >= len(it.docs) {
		return nil, false, nil
	}
	d := it.docs[it.idx]
	it.idx++
	return d, true, nil
}

// recordingLoader counts documents and records them for assertions.
type recordingLoader struct {
	mu     sync.Mutex
	loaded []Document
	closed bool
}

func (l *recordingLoader) Init(*Pipeline) error { return nil }

func (l *recordingLoader) Load(_ context.Context, doc Document) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = append(l.loaded, doc)
	return nil
}

func (l *recordingLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func newTestPipeline(docs []Document, loader *recordingLoader) (*Pipeline, *config.Configuration) {
	p := NewPipeline("happy path",
		func() Extractor { return &sliceExtractor{docs: docs, version: "v1"} },
		func() Transformer { return IdentityTransformer{} },
		func() Loader { return loader },
	)
	cfg := config.New("test", "", bus.New())
	return p, cfg
}

func TestHappyPathHarvest(t *testing.T) {
	loader := &recordingLoader{}
	p, cfg := newTestPipeline([]Document{"a", "b", "c"}, loader)
	b := bus.New()

	if err := p.Init(cfg, b); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := p.PrepareHarvest(); err != nil {
		t.Fatalf("PrepareHarvest: %v", err)
	}
	if got := p.GetStatus(); got != StatusQueued {
		t.Fatalf("status after PrepareHarvest = %s, want QUEUED", got)
	}

	if err := p.Harvest(context.Background()); err != nil {
		t.Fatalf("Harvest: %v", err)
	}

	if got := p.GetStatus(); got != StatusDone {
		t.Fatalf("status after Harvest = %s, want DONE", got)
	}
	if got := p.GetHealth(); got != HealthOK {
		t.Fatalf("health after Harvest = %s, want OK", got)
	}
	if got := p.GetHarvestedCount(); got != 3 {
		t.Fatalf("harvestedCount = %d, want 3", got)
	}
	if !loader.closed {
		t.Fatal("loader was not closed")
	}
}

func TestDisabledPipelineSkipsWithoutFailure(t *testing.T) {
	loader := &recordingLoader{}
	p, cfg := newTestPipeline([]Document{"a"}, loader)
	b := bus.New()
	if err := p.Init(cfg, b); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := cfg.SetParameter(p.Name()+"/enabled", "false"); err != nil {
		t.Fatalf("SetParameter: %v", err)
	}

	err := p.PrepareHarvest()
	if err == nil {
		t.Fatal("expected precondition error for disabled pipeline")
	}
	if got := p.GetStatus(); got != StatusDone {
		t.Fatalf("status = %s, want DONE", got)
	}
	if got := p.GetHealth(); got != HealthOK {
		t.Fatalf("health = %s, want OK (disabled is not a failure)", got)
	}
}

func TestOutOfRangeIteratorSkips(t *testing.T) {
	loader := &recordingLoader{}
	p := NewPipeline("ranged",
		func() Extractor { return &sliceExtractor{docs: []Document{"a", "b"}, version: "v1"} },
		func() Transformer { return IdentityTransformer{} },
		func() Loader { return loader },
		WithIteratorRange(),
	)
	cfg := config.New("test", "", bus.New())
	b := bus.New()
	if err := p.Init(cfg, b); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := cfg.SetParameter(p.Name()+"/rangeFrom", "5"); err != nil {
		t.Fatalf("SetParameter rangeFrom: %v", err)
	}
	if err := cfg.SetParameter(p.Name()+"/rangeTo", "5"); err != nil {
		t.Fatalf("SetParameter rangeTo: %v", err)
	}

	if err := p.PrepareHarvest(); err == nil {
		t.Fatal("expected out-of-range precondition error")
	}
	if got := p.GetStatus(); got != StatusDone {
		t.Fatalf("status = %s, want DONE", got)
	}
}

// pausingIterator yields forever, sleeping between items, to exercise
// cooperative abort.
type pausingIterator struct {
	n int
}

func (it *pausingIterator) Next(ctx context.Context) (Document, bool, error) {
	time.Sleep(5 * time.Millisecond)
	it.n++
	return it.n, true, nil
}

type infiniteExtractor struct{}

func (infiniteExtractor) Init(*Pipeline) error        { return nil }
func (infiniteExtractor) UniqueVersionString() string { return "infinite" }
func (infiniteExtractor) Size() int64                 { return -1 }
func (infiniteExtractor) Extract(context.Context) (DocumentIterator, error) {
	return &pausingIterator{}, nil
}

func TestAbortMidHarvestReachesDone(t *testing.T) {
	loader := &recordingLoader{}
	p := NewPipeline("aborting",
		func() Extractor { return infiniteExtractor{} },
		func() Transformer { return IdentityTransformer{} },
		func() Loader { return loader },
	)
	cfg := config.New("test", "", bus.New())
	b := bus.New()
	if err := p.Init(cfg, b); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := p.PrepareHarvest(); err != nil {
		t.Fatalf("PrepareHarvest: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Harvest(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	p.AbortHarvest()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Harvest returned error on abort: %v", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Harvest did not finish within 500ms of abort")
	}

	if got := p.GetStatus(); got != StatusDone {
		t.Fatalf("status after abort = %s, want DONE", got)
	}
}

func TestLoadingErrorClassifiesHealth(t *testing.T) {
	failing := &failingLoader{err: errors.New("disk full")}
	p, cfg := newTestPipeline([]Document{"a"}, nil)
	p.loaderFactory = func() Loader { return failing }
	b := bus.New()
	if err := p.Init(cfg, b); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := p.PrepareHarvest(); err != nil {
		t.Fatalf("PrepareHarvest: %v", err)
	}
	if err := p.Harvest(context.Background()); err == nil {
		t.Fatal("expected loading error")
	}
	if got := p.GetHealth(); got != HealthLoadingFailed {
		t.Fatalf("health = %s, want LOADING_FAILED", got)
	}
}

type failingLoader struct{ err error }

func (f *failingLoader) Init(*Pipeline) error                      { return nil }
func (f *failingLoader) Load(context.Context, Document) error      { return f.err }
func (f *failingLoader) Close() error                              { return nil }

func TestJSONSnapshotRoundTripsCounts(t *testing.T) {
	loader := &recordingLoader{}
	p, cfg := newTestPipeline([]Document{"a", "b"}, loader)
	b := bus.New()
	if err := p.Init(cfg, b); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := p.PrepareHarvest(); err != nil {
		t.Fatalf("PrepareHarvest: %v", err)
	}
	if err := p.Harvest(context.Background()); err != nil {
		t.Fatalf("Harvest: %v", err)
	}

	data, err := p.GetAsJSON()
	if err != nil {
		t.Fatalf("GetAsJSON: %v", err)
	}

	p2, cfg2 := newTestPipeline([]Document{"a", "b"}, &recordingLoader{})
	if err := p2.Init(cfg2, bus.New()); err != nil {
		t.Fatalf("Init p2: %v", err)
	}
	if err := p2.LoadFromJSON(data); err != nil {
		t.Fatalf("LoadFromJSON: %v", err)
	}
	if got := p2.GetHarvestedCount(); got != 2 {
		t.Fatalf("harvestedCount after load = %d, want 2", got)
	}
	if got := p2.GetHealth(); got != HealthOK {
		t.Fatalf("health after load = %s, want OK", got)
	}
}

func TestLoadFromJSONDoesNotOverwriteFreshFailureWithStaleSuccess(t *testing.T) {
	loader := &recordingLoader{}
	p, cfg := newTestPipeline([]Document{"a"}, loader)
	b := bus.New()
	if err := p.Init(cfg, b); err != nil {
		t.Fatalf("Init: %v", err)
	}
	// Simulate a fresh failure already recorded in memory.
	p.setHealth(HealthExtractionFailed)

	stalePipeline, staleCfg := newTestPipeline([]Document{"a"}, &recordingLoader{})
	if err := stalePipeline.Init(staleCfg, bus.New()); err != nil {
		t.Fatalf("Init stale: %v", err)
	}
	data, err := stalePipeline.GetAsJSON() // health OK
	if err != nil {
		t.Fatalf("GetAsJSON: %v", err)
	}

	if err := p.LoadFromJSON(data); err != nil {
		t.Fatalf("LoadFromJSON: %v", err)
	}
	if got := p.GetHealth(); got != HealthExtractionFailed {
		t.Fatalf("health = %s, want EXTRACTION_FAILED (fresh failure must survive stale success load)", got)
	}
}
