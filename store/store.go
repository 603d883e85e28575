// Package store provides an embedded key-value store for fast bookkeeping
// that does not need the normative plain-JSON snapshot format of spec §6
// (configuration, per-pipeline, and schedule snapshots still go through
// cmn.SaveJSON/LoadJSON). It backs ephemeral/derived state such as the
// harvest-run ledger (SPEC_FULL §12) where a full JSON file rewrite per
// write would be wasteful.
//
// Grounded on the teacher's dbdriver.BuntDriver.
package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/buntdb"

	"github.com/harvestrt/harvestrt/cmn"
)

const (
	autoShrinkSize = 1 << 20 // 1MiB, matches the teacher's cmn.MiB constant
	collectionSep  = "##"
)

// Store wraps a single embedded buntdb database, namespaced into
// collections the way the teacher's BuntDriver does.
type Store struct {
	db *buntdb.DB
}

// Open opens (creating if absent) the database file at path, creating its
// parent directory if needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	db.SetConfig(buntdb.Config{
		SyncPolicy:           buntdb.EverySecond,
		AutoShrinkMinSize:    autoShrinkSize,
		AutoShrinkPercentage: 50,
	})
	return &Store{db: db}, nil
}

func makePath(collection, key string) string {
	if strings.HasSuffix(collection, collectionSep) {
		return collection + key
	}
	return collection + collectionSep + key
}

// Close releases the underlying database file.
func (s *Store) Close() error { return s.db.Close() }

// Set marshals object as JSON and stores it under collection/key.
func (s *Store) Set(collection, key string, object interface{}) error {
	b := cmn.MustMarshal(object)
	return s.SetString(collection, key, string(b))
}

// Get looks up collection/key and unmarshals it into object. Returns
// cmn.NotFoundError if the key is absent.
func (s *Store) Get(collection, key string, object interface{}) error {
	raw, err := s.GetString(collection, key)
	if err != nil {
		return err
	}
	return cmn.JSON.Unmarshal([]byte(raw), object)
}

// SetString stores a raw string value under collection/key.
func (s *Store) SetString(collection, key, data string) error {
	name := makePath(collection, key)
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(name, data, nil)
		return err
	})
}

// GetString returns the raw string value stored under collection/key.
func (s *Store) GetString(collection, key string) (string, error) {
	var value string
	name := makePath(collection, key)
	err := s.db.View(func(tx *buntdb.Tx) error {
		var txErr error
		value, txErr = tx.Get(name)
		return txErr
	})
	return value, translateErr(err, collection, key)
}

// Delete removes collection/key. Not an error if the key is already absent.
func (s *Store) Delete(collection, key string) error {
	name := makePath(collection, key)
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, txErr := tx.Delete(name)
		return txErr
	})
	if err == buntdb.ErrNotFound {
		return nil
	}
	return err
}

// List returns every key in collection matching pattern ("" / "*" matches
// everything).
func (s *Store) List(collection, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	if !strings.Contains(pattern, "*") && !strings.Contains(pattern, "?") {
		pattern += "*"
	}
	filter := makePath(collection, pattern)
	var keys []string
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(filter, func(key, _ string) bool {
			keys = append(keys, key)
			return true
		})
	})
	return keys, translateErr(err, collection, "")
}

// DeleteCollection removes every key in collection.
func (s *Store) DeleteCollection(collection string) error {
	keys, err := s.List(collection, "")
	if err != nil || len(keys) == 0 {
		return err
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		for _, k := range keys {
			if _, txErr := tx.Delete(k); txErr != nil && txErr != buntdb.ErrNotFound {
				return txErr
			}
		}
		return nil
	})
}

func translateErr(err error, collection, key string) error {
	if err == buntdb.ErrNotFound {
		return cmn.NewNotFoundError(collection, key)
	}
	return err
}
