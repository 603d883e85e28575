package main

// This file wires a minimal reference pipeline so harvestd is runnable out
// of the box: a directory walk Extractor and a JSON-lines file Loader.
// Concrete Extract/Transform/Load implementations are outside this
// runtime's scope (spec.md's Non-goals exclude a query/indexing layer and
// any particular source); a harvester built on this module replaces this
// file with its own runtime.EtlFactory/runtime.LoaderClass set.

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harvestrt/harvestrt/cmn"
	"github.com/harvestrt/harvestrt/etl"
)

// fileRecord is the Document this reference pipeline extracts: one file
// under Root, identified by path and last-modified time.
type fileRecord struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"modTime"`
	Size    int64     `json:"size"`
}

type dirWalkExtractor struct {
	root  string
	files []fileRecord
}

func newDirWalkExtractor(root string) *dirWalkExtractor {
	return &dirWalkExtractor{root: root}
}

func (e *dirWalkExtractor) Init(*etl.Pipeline) error { return nil }

func (e *dirWalkExtractor) UniqueVersionString() string {
	var latest time.Time
	_ = filepath.WalkDir(e.root, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, infoErr := d.Info(); infoErr == nil && info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	return latest.UTC().Format(time.RFC3339Nano)
}

func (e *dirWalkExtractor) Size() int64 {
	n := int64(0)
	_ = filepath.WalkDir(e.root, func(_ string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func (e *dirWalkExtractor) Extract(context.Context) (etl.DocumentIterator, error) {
	var records []fileRecord
	err := filepath.WalkDir(e.root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return walkErr
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		records = append(records, fileRecord{Path: path, ModTime: info.ModTime(), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, &cmn.ExtractionError{Cause: err}
	}
	return &recordIterator{records: records}, nil
}

type recordIterator struct {
	records []fileRecord
	i       int
}

func (it *recordIterator) Next(context.Context) (etl.Document, bool, error) {
	if it.i >= len(it.records) {
		return nil, false, nil
	}
	r := it.records[it.i]
	it.i++
	return r, true, nil
}

// jsonlFileLoader appends every loaded document as one JSON line to path,
// the "jsonl" entry in the Loader registry.
type jsonlFileLoader struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

func newJSONLFileLoader(path string) *jsonlFileLoader {
	return &jsonlFileLoader{path: path}
}

func (l *jsonlFileLoader) Init(*etl.Pipeline) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	l.f = f
	return nil
}

func (l *jsonlFileLoader) Load(_ context.Context, doc etl.Document) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := append(cmn.MustMarshal(doc), '\n')
	_, err := l.f.Write(line)
	if err != nil {
		return &cmn.LoadingError{Cause: err}
	}
	return nil
}

func (l *jsonlFileLoader) Close() error {
	if l.f == nil {
		return nil
	}
	return l.f.Close()
}
