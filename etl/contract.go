package etl

import "context"

// Document is one unit of data moving through a pipeline. Pipelines are
// heterogeneous (each has its own extractor/transformer/loader triple), so
// the ETL Manager holds them behind this shared, untyped contract rather
// than as a generic Pipeline[E, T] — the manager's collection needs a
// single concrete type, and Go generics cannot express a slice of
// differently-instantiated generic structs.
type Document = interface{}

// DocumentIterator is the lazy-pull shape spec §4.5 calls for: extraction
// and transformation may themselves be iterators, in which case the loader
// pulls one document at a time instead of the pipeline materializing
// everything up front. Next returns (nil, false, nil) when exhausted, or a
// non-nil error if the pull itself failed.
type DocumentIterator interface {
	Next(ctx context.Context) (Document, bool, error)
}

// Extractor produces the source documents for one harvest.
type Extractor interface {
	// Init prepares the extractor for use, given the owning pipeline for
	// context (e.g. reading its registered range parameters).
	Init(p *Pipeline) error
	// UniqueVersionString identifies the current state of the source data;
	// hashed by the pipeline to detect whether a re-harvest is needed.
	UniqueVersionString() string
	// Size reports the total number of documents the extractor will yield,
	// or -1 if unknown ahead of time.
	Size() int64
	// Extract begins iteration.
	Extract(ctx context.Context) (DocumentIterator, error)
}

// Transformer wraps an extractor's iterator with a transformation step,
// lazily: Transform must not pull eagerly from in.
type Transformer interface {
	Init(p *Pipeline) error
	Transform(in DocumentIterator) DocumentIterator
}

// Loader consumes one document at a time and is responsible for its own
// I/O and buffering. Close is always called once the pipeline finishes
// pulling, win or lose.
type Loader interface {
	Init(p *Pipeline) error
	Load(ctx context.Context, doc Document) error
	Close() error
}

// ExtractorFactory, TransformerFactory, and LoaderFactory construct fresh
// instances per harvest, per spec §3 ("references, potentially recreated
// per harvest").
type (
	ExtractorFactory   func() Extractor
	TransformerFactory func() Transformer
	LoaderFactory      func() Loader
)

// IdentityTransformer passes documents through unchanged, for pipelines
// that need no transformation stage (spec §8 end-to-end scenario 1: "an
// identity transformer").
type IdentityTransformer struct{}

func (IdentityTransformer) Init(*Pipeline) error { return nil }

func (IdentityTransformer) Transform(in DocumentIterator) DocumentIterator { return in }
