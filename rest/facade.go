// Package rest implements the REST Facade (spec §4.9, contract only): a
// thin fasthttp handler mapping verbs onto the current Process State's
// command methods. Grounded on the teacher's ais/ic.go handler()/handleGet()/
// handlePost() dispatch-on-method idiom, adapted from net/http to fasthttp
// (the corpus's high-throughput HTTP library, per the rest of the pack's
// gateway-facing services).
package rest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/harvestrt/harvestrt/runtime"
	"github.com/harvestrt/harvestrt/state"
)

// Facade owns a runtime.Context and answers REST verbs against it.
type Facade struct {
	rt         *runtime.Context
	authSecret []byte
}

// NewFacade constructs a Facade over rt.
func NewFacade(rt *runtime.Context) *Facade {
	return &Facade{rt: rt}
}

// WithAuthSecret enables bearer-token auth on mutating verbs, validated
// against secret. Returns f for chaining at construction time.
func (f *Facade) WithAuthSecret(secret []byte) *Facade {
	f.authSecret = secret
	return f
}

// Handler returns the fasthttp entry point: access log, then optional
// bearer-token auth on mutating verbs, then gzip for large listings.
func (f *Facade) Handler() fasthttp.RequestHandler {
	return f.logged(withAuth(f.authSecret, withGzip(f.route)))
}

func (f *Facade) logged(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		correlationID := uuid.NewString()
		ctx.Response.Header.Set("X-Correlation-Id", correlationID)
		next(ctx)
		glog.V(3).Infof("rest[%s]: %s %s -> %d", correlationID, ctx.Method(), ctx.Path(), ctx.Response.StatusCode())
	}
}

func (f *Facade) route(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/harvest" && method == fasthttp.MethodPost:
		f.postHarvest(ctx)
	case path == "/harvest/abort" && method == fasthttp.MethodPost:
		f.writeResult(ctx, f.rt.Machine.Current().Abort())
	case path == "/harvest/submit" && method == fasthttp.MethodPost:
		f.writeResult(ctx, f.rt.Machine.Current().Submit())
	case path == "/harvest/save" && method == fasthttp.MethodPost:
		f.writeResult(ctx, f.rt.Machine.Current().Save())
	case path == "/harvest" && method == fasthttp.MethodGet:
		f.getHarvestInfo(ctx)
	case path == "/harvest/history" && method == fasthttp.MethodGet:
		f.getHarvestHistory(ctx)
	case path == "/status/health" && method == fasthttp.MethodGet:
		f.getHealth(ctx)
	case path == "/status/state" && method == fasthttp.MethodGet:
		f.getState(ctx)
	case path == "/config" && method == fasthttp.MethodGet:
		f.getConfig(ctx)
	case path == "/config" && method == fasthttp.MethodPut:
		f.putConfig(ctx)
	case path == "/reset" && method == fasthttp.MethodPost:
		f.writeResult(ctx, f.rt.Machine.Current().Reset())
	default:
		f.writeJSON(ctx, fasthttp.StatusNotFound, failedEntity(fmt.Sprintf("no such route: %s %s", method, path)))
	}
}

// postHarvest handles both the normal startHarvest command and the
// supplemented dry-run path (SPEC_FULL §12): `?dryRun=true` runs
// PrepareHarvest across every pipeline and reports the outcome without
// calling Harvest.
func (f *Facade) postHarvest(ctx *fasthttp.RequestCtx) {
	if string(ctx.QueryArgs().Peek("dryRun")) == "true" {
		results := f.rt.Manager.DryRunPrepare()
		f.writeJSON(ctx, fasthttp.StatusOK, okEntity(results))
		return
	}
	f.writeResult(ctx, f.rt.Machine.Current().StartHarvest())
}

func (f *Facade) getHarvestInfo(ctx *fasthttp.RequestCtx) {
	current := f.rt.Machine.Current()
	body := fmt.Sprintf("module=%s state=%s health=%s documents=%d\n%s\n",
		f.rt.ModuleName, current.Name(), f.rt.Manager.GetHealth(),
		f.rt.Manager.GetNumberOfHarvestedDocuments(), current.StatusString())
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyString(body)
}

func (f *Facade) getHarvestHistory(ctx *fasthttp.RequestCtx) {
	n := 20
	if raw := string(ctx.QueryArgs().Peek("n")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}
	records, err := f.rt.Ledger.Recent(n)
	if err != nil {
		f.writeJSON(ctx, fasthttp.StatusInternalServerError, failedEntity(err.Error()))
		return
	}
	f.writeJSON(ctx, fasthttp.StatusOK, okEntity(records))
}

func (f *Facade) getHealth(ctx *fasthttp.RequestCtx) {
	health := f.rt.Manager.GetHealth()
	ctx.SetContentType("text/plain; charset=utf-8")
	if health == "OK" {
		ctx.SetStatusCode(fasthttp.StatusOK)
	} else {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	}
	ctx.SetBodyString(string(health))
}

func (f *Facade) getState(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyString(string(f.rt.Machine.Current().Name()))
}

// configEntry is the JSON shape one Parameter is rendered as for /config
// listings, masking passwords the same way GetAsPlainText does.
type configEntry struct {
	Category string `json:"category"`
	Key      string `json:"key"`
	Type     string `json:"type"`
	Value    string `json:"value"`
}

func (f *Facade) getConfig(ctx *fasthttp.RequestCtx) {
	category := string(ctx.QueryArgs().Peek("category"))
	var entries []configEntry
	for _, p := range f.rt.Config.GetParameters() {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		entries = append(entries, configEntry{
			Category: p.Category,
			Key:      p.Key,
			Type:     string(p.Kind()),
			Value:    p.DisplayValue(),
		})
	}
	f.writeJSON(ctx, fasthttp.StatusOK, okEntity(entries))
}

// putConfig applies a single parameter change. The composite key and new
// value are read from the query string (key=category/key&value=...), or
// from a JSON body of the same shape when present, per spec §4.9's
// setParameter verb.
func (f *Facade) putConfig(ctx *fasthttp.RequestCtx) {
	key := string(ctx.QueryArgs().Peek("key"))
	value := string(ctx.QueryArgs().Peek("value"))
	if key == "" {
		var body struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		}
		if err := unmarshalBody(ctx, &body); err == nil {
			key, value = body.Key, body.Value
		}
	}
	if key == "" {
		f.writeJSON(ctx, fasthttp.StatusBadRequest, failedEntity("missing parameter key"))
		return
	}
	if err := f.rt.Config.SetParameter(key, value); err != nil {
		f.writeJSON(ctx, fasthttp.StatusBadRequest, failedEntity(err.Error()))
		return
	}
	f.writeJSON(ctx, fasthttp.StatusOK, okMessage("parameter updated"))
}

// writeResult translates a state.Result into the wire response: the
// Retry-After header when known, and the {"status":...} envelope.
func (f *Facade) writeResult(ctx *fasthttp.RequestCtx, result state.Result) {
	if result.RetryAfterSeconds > 0 {
		ctx.Response.Header.Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
	}
	if result.StatusCode >= 200 && result.StatusCode < 300 {
		f.writeJSON(ctx, result.StatusCode, okMessage(result.Message))
		return
	}
	f.writeJSON(ctx, result.StatusCode, failedEntity(result.Message))
}

func (f *Facade) writeJSON(ctx *fasthttp.RequestCtx, status int, e entity) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetBody(marshalEntity(e))
}
