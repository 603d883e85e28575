package rest_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/harvestrt/harvestrt/etl"
	"github.com/harvestrt/harvestrt/rest"
	"github.com/harvestrt/harvestrt/runtime"
)

type fixedIterator struct {
	docs []etl.Document
	i    int
}

func (it *fixedIterator) Next(context.Context) (etl.Document, bool, error) {
	if it.i >= len(it.docs) {
		return nil, false, nil
	}
	d := it.docs[it.i]
	it.i++
	return d, true, nil
}

type fixedExtractor struct{ docs []etl.Document }

func (e *fixedExtractor) Init(*etl.Pipeline) error    { return nil }
func (e *fixedExtractor) UniqueVersionString() string { return "v1" }
func (e *fixedExtractor) Size() int64                 { return int64(len(e.docs)) }
func (e *fixedExtractor) Extract(context.Context) (etl.DocumentIterator, error) {
	return &fixedIterator{docs: e.docs}, nil
}

type noopLoader struct{}

func (noopLoader) Init(*etl.Pipeline) error                 { return nil }
func (noopLoader) Load(context.Context, etl.Document) error { return nil }
func (noopLoader) Close() error                              { return nil }

func newTestFacade(t *testing.T) (*rest.Facade, *runtime.Context) {
	t.Helper()
	os.Setenv("DEPLOYMENT_TYPE", "UNIT_TEST")
	os.Setenv("HARVESTRT_CACHE_ROOT", filepath.Join(t.TempDir(), "cache"))

	factory := func() []*etl.Pipeline {
		return []*etl.Pipeline{
			etl.NewPipeline("docs",
				func() etl.Extractor { return &fixedExtractor{docs: []etl.Document{"a", "b"}} },
				func() etl.Transformer { return etl.IdentityTransformer{} },
				func() etl.Loader { return noopLoader{} },
			),
		}
	}

	rt, err := runtime.Init("testmod", factory, nil)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(rt.Destroy)
	return rest.NewFacade(rt), rt
}

func doRequest(h fasthttp.RequestHandler, method, uri string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	h(&ctx)
	return &ctx
}

func TestGetStatusState(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := doRequest(f.Handler(), fasthttp.MethodGet, "/status/state")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", ctx.Response.StatusCode())
	}
	if got := string(ctx.Response.Body()); got != "Idle" {
		t.Fatalf("body = %q, want Idle", got)
	}
}

func TestGetStatusHealth(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := doRequest(f.Handler(), fasthttp.MethodGet, "/status/health")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", ctx.Response.StatusCode())
	}
	if got := string(ctx.Response.Body()); got != "OK" {
		t.Fatalf("body = %q, want OK", got)
	}
}

func TestPostHarvestAccepted(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := doRequest(f.Handler(), fasthttp.MethodPost, "/harvest")
	if ctx.Response.StatusCode() != fasthttp.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
}

func TestPostHarvestDryRun(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := doRequest(f.Handler(), fasthttp.MethodPost, "/harvest?dryRun=true")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
}

func TestPutConfigRejectsUnknownKey(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := doRequest(f.Handler(), fasthttp.MethodPut, "/config?key=nosuch/param&value=1")
	if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", ctx.Response.StatusCode())
	}
}

func TestPutConfigMissingKey(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := doRequest(f.Handler(), fasthttp.MethodPut, "/config")
	if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", ctx.Response.StatusCode())
	}
}

func TestGetConfigFiltersByCategory(t *testing.T) {
	f, _ := newTestFacade(t)

	ctx := doRequest(f.Handler(), fasthttp.MethodGet, "/config?category=harvest")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", ctx.Response.StatusCode())
	}
	if len(ctx.Response.Body()) == 0 {
		t.Fatal("expected a non-empty config listing")
	}
	body := string(ctx.Response.Body())
	if !strings.Contains(body, `"historyRetention"`) || strings.Contains(body, `"enabled"`) {
		t.Fatalf("body = %s, want only the harvest category's parameters", body)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := doRequest(f.Handler(), fasthttp.MethodGet, "/nope")
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", ctx.Response.StatusCode())
	}
}

func TestHarvestHistoryEmptyBeforeAnyRun(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := doRequest(f.Handler(), fasthttp.MethodGet, "/harvest/history")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", ctx.Response.StatusCode())
	}
	if body := string(ctx.Response.Body()); strings.Contains(body, `"startedAt"`) {
		t.Fatalf("body = %s, want no history records", body)
	}
}
