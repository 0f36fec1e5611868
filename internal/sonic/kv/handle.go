// Copyright 2026 The Sonic Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kv

import (
	"iter"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"sonic/internal/sonic/identifier"
	"sonic/internal/sonic/keyer"
	"sonic/internal/sonic/sonicerr"
)

// Handle is one opened collection's Badger database, plus the bookkeeping
// the pool needs to recycle it (see pool.go).
type Handle struct {
	collection identifier.CollectionHash
	db         *badger.DB
	retain     int
}

// Open opens (creating if necessary) the Badger database backing one
// collection, at <basePath>/<collection-hash>.
func Open(basePath string, collection identifier.CollectionHash, cfg Config) (*Handle, error) {
	dir := CollectionDir(basePath, collection)
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithSyncWrites(cfg.WriteAheadLog)

	if cfg.Compress {
		opts = opts.WithCompression(options.ZSTD)
	} else {
		opts = opts.WithCompression(options.None)
	}
	if cfg.Parallelism > 0 {
		opts = opts.WithNumCompactors(cfg.Parallelism)
	}
	if cfg.MaxCompactions > 0 {
		opts = opts.WithNumLevelZeroTables(cfg.MaxCompactions)
	}
	if cfg.MaxFlushes > 0 {
		opts = opts.WithNumMemtables(cfg.MaxFlushes)
	}
	if cfg.WriteBufferKB > 0 {
		opts = opts.WithMemTableSize(int64(cfg.WriteBufferKB) * 1024)
	}
	if cfg.MaxFiles > 0 {
		// Badger has no direct open-fd cap; approximate max_files by
		// capping each value-log segment's size so a collection this big
		// never needs more than cfg.MaxFiles segments open at once.
		opts = opts.WithValueLogFileSize(maxFilesToValueLogSize(cfg.MaxFiles))
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, sonicerr.New(sonicerr.KindOpenFailed, dir, err)
	}

	retain := cfg.RetainWordObjects
	if retain <= 0 {
		retain = DefaultConfig.RetainWordObjects
	}
	return &Handle{collection: collection, db: db, retain: retain}, nil
}

// maxFilesToValueLogSize spreads Badger's default 1GB value-log budget
// over maxFiles segments, clamped to Badger's own [1MB, 2GB) bounds.
func maxFilesToValueLogSize(maxFiles int) int64 {
	const (
		defaultBudget = 1 << 30
		minSegment    = 1 << 20
		maxSegment    = (2 << 30) - 1
	)
	size := int64(defaultBudget / maxFiles)
	if size < minSegment {
		return minSegment
	}
	if size > maxSegment {
		return maxSegment
	}
	return size
}

// CollectionDir computes the on-disk path for one collection's KV store
// (spec §6, "KV: <store.kv.path>/<collection>/").
func CollectionDir(basePath string, collection identifier.CollectionHash) string {
	return filepath.Join(basePath, hashDirName(uint32(collection)))
}

func hashDirName(h uint32) string {
	const hex = "0123456789abcdef"
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = hex[h&0xf]
		h >>= 4
	}
	return string(b)
}

// Close shuts down the underlying Badger database. Callers must ensure
// no in-flight operation still references the handle (the pool enforces
// this via reference counting).
func (h *Handle) Close() error {
	return h.db.Close()
}

// Get reads a single key. A missing key returns (nil, nil) rather than an
// error — the "Option<bytes>" of spec §4.D.
func (h *Handle) Get(key keyer.Key) ([]byte, error) {
	var val []byte
	err := h.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key[:])
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, sonicerr.New(sonicerr.KindOpenFailed, "get", err)
	}
	return val, nil
}

// Put upserts a single key.
func (h *Handle) Put(key keyer.Key, value []byte) error {
	err := h.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key[:], value)
	})
	if err != nil {
		return sonicerr.New(sonicerr.KindOpenFailed, "put", err)
	}
	return nil
}

// Delete removes a single key. Deleting an absent key is a no-op.
func (h *Handle) Delete(key keyer.Key) error {
	err := h.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key[:])
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return sonicerr.New(sonicerr.KindOpenFailed, "delete", err)
	}
	return nil
}

// DeletePrefix atomically removes every key starting with prefix
// (spec §4.D, at most 9 bytes for Sonic's fixed key layout).
func (h *Handle) DeletePrefix(prefix []byte) error {
	if err := h.db.DropPrefix(prefix); err != nil {
		return sonicerr.New(sonicerr.KindOpenFailed, "delete_prefix", err)
	}
	return nil
}

// KV is a single key/value pair yielded by IterPrefix.
type KV struct {
	Key   keyer.Key
	Value []byte
}

// IterPrefix lazily walks every key with the given prefix in ascending
// key order. The returned sequence holds a read transaction open for its
// entire lifetime; callers should drain or break promptly.
func (h *Handle) IterPrefix(prefix []byte) iter.Seq2[KV, error] {
	return func(yield func(KV, error) bool) {
		txn := h.db.NewTransaction(false)
		defer txn.Discard()

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var k keyer.Key
			copy(k[:], item.KeyCopy(nil))
			val, err := item.ValueCopy(nil)
			if err != nil {
				yield(KV{}, sonicerr.New(sonicerr.KindOpenFailed, "iter_prefix", err))
				return
			}
			if !yield(KV{Key: k, Value: val}, nil) {
				return
			}
		}
	}
}

// Write is a single mutation for Batch: either a Key/Value Put (Delete ==
// false) or a Key-only Delete (Delete == true).
type Write struct {
	Key    keyer.Key
	Value  []byte
	Delete bool
}

// Batch applies every write atomically: all-or-nothing within a single
// Badger transaction (spec §4.D).
func (h *Handle) Batch(writes []Write) error {
	if len(writes) == 0 {
		return nil
	}
	err := h.db.Update(func(txn *badger.Txn) error {
		for _, w := range writes {
			if w.Delete {
				if err := txn.Delete(w.Key[:]); err != nil && err != badger.ErrKeyNotFound {
					return err
				}
				continue
			}
			if err := txn.Set(w.Key[:], w.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return sonicerr.New(sonicerr.KindOpenFailed, "batch", err)
	}
	return nil
}
