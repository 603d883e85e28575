// Command harvestd runs the metadata harvester service: the Main Context,
// the Process State Machine, and the REST Facade, behind a fasthttp
// listener. Bootstrap ordering (flags, then subsystem construction, then
// serve-until-signal) follows the corpus's daemon convention; this repo's
// retrieved teacher slice does not carry aistore's own daemon.go, so the
// shape is grounded on the general flags-then-construct-then-serve idiom
// common across the pack's long-running services (e.g. gastrolog's
// cmd/gastrolog run()/serveAndAwaitShutdown()).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"

	"github.com/harvestrt/harvestrt/etl"
	"github.com/harvestrt/harvestrt/rest"
	"github.com/harvestrt/harvestrt/runtime"
)

func main() {
	addr := flag.String("addr", ":8090", "REST listen address")
	sourceDir := flag.String("source-dir", ".", "directory the reference pipeline walks for documents")
	outputFile := flag.String("output-file", "harvested.jsonl", "JSON-lines file the reference pipeline loads into")
	authSecret := flag.String("auth-secret", "", "if set, required as a bearer token on mutating REST verbs")
	flag.Parse()
	defer glog.Flush()

	etlFactory := func() []*etl.Pipeline {
		return []*etl.Pipeline{
			etl.NewPipeline("files",
				func() etl.Extractor { return newDirWalkExtractor(*sourceDir) },
				func() etl.Transformer { return etl.IdentityTransformer{} },
				func() etl.Loader { return newJSONLFileLoader(*outputFile) },
			),
		}
	}
	loaderClasses := []runtime.LoaderClass{
		{Name: "jsonl", Factory: func() etl.Loader { return newJSONLFileLoader(*outputFile) }},
	}

	rt, err := runtime.Init("harvestd", etlFactory, loaderClasses)
	if err != nil {
		glog.Fatalf("harvestd: failed to start: %v", err)
	}

	facade := rest.NewFacade(rt)
	if *authSecret != "" {
		facade.WithAuthSecret([]byte(*authSecret))
	}
	server := &fasthttp.Server{Handler: facade.Handler(), Name: "harvestd"}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		glog.Infof("harvestd: listening on %s", *addr)
		return server.ListenAndServe(*addr)
	})
	group.Go(func() error {
		<-gctx.Done()
		glog.Infof("harvestd: shutdown signal received")
		return server.Shutdown()
	})

	if err := group.Wait(); err != nil {
		glog.Errorf("harvestd: %v", err)
	}
	rt.Destroy()
}
