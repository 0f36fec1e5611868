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

package executor

import (
	"io"
	"os"
	"path/filepath"

	"sonic/internal/sonic/fst"
	"sonic/internal/sonic/identifier"
	"sonic/internal/sonic/keyer"
	"sonic/internal/sonic/kv"
	"sonic/internal/sonic/lexer"
	"sonic/internal/sonic/sonicerr"
)

// Executor binds the shared KV and FST pools to one set of channel-level
// limits. It holds no per-request state: every method opens its own
// short-lived borrows and releases them before returning (spec §9,
// "shared pools owned by the process scope").
type Executor struct {
	kvPool      *kv.Pool
	fstPool     *fst.Pool
	fstBasePath string
	cfg         Config
}

// New builds an Executor over the process-wide pools. fstBasePath must
// match the path the fst.Pool itself was opened with, so FLUSHB/FLUSHC
// can remove FST files the pool currently has no open handle for.
func New(kvPool *kv.Pool, fstPool *fst.Pool, fstBasePath string, cfg Config) *Executor {
	return &Executor{kvPool: kvPool, fstPool: fstPool, fstBasePath: fstBasePath, cfg: cfg}
}

func (e *Executor) acquireKV(collection identifier.CollectionHash) (*kv.Borrow, error) {
	return e.kvPool.Acquire(collection)
}

func (e *Executor) acquireFST(collection identifier.CollectionHash, bucket identifier.BucketHash) (*fst.Borrow, error) {
	return e.fstPool.Acquire(fst.GraphKey{Collection: collection, Bucket: bucket})
}

// Push implements spec §4.F.1: lex text, assign/resolve the IID, and
// record every distinct token in both stores. It returns the number of
// tokens actually inserted (post-dedup, post-stop-word).
func (e *Executor) Push(collection, bucket, oid, text string, lang lexer.Locale) (int, error) {
	if err := identifier.ValidateOID(oid); err != nil {
		return 0, err
	}
	seq, _, err := lexer.Lex(text, lang, lexer.DefaultConfig)
	if err != nil {
		return 0, err
	}
	words := lexer.DedupOrdered(seq)
	if len(words) == 0 {
		return 0, nil
	}

	collectionHash := identifier.HashCollection(collection)
	bucketHash := identifier.HashBucket(bucket)

	kvb, err := e.acquireKV(collectionHash)
	if err != nil {
		return 0, err
	}
	defer kvb.Release()
	fstb, err := e.acquireFST(collectionHash, bucketHash)
	if err != nil {
		return 0, err
	}
	defer fstb.Release()

	h := kvb.Handle()
	iid, err := h.OIDToIIDGetOrAssign(bucketHash, oid)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, w := range words {
		term := identifier.HashTerm(w)
		if _, err := h.PostingPush(bucketHash, term, iid); err != nil {
			return inserted, err
		}
		if err := h.AddTermToIID(bucketHash, iid, w); err != nil {
			return inserted, err
		}
		if err := fstb.Graph().Push(w); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// Pop implements spec §4.F.2.
func (e *Executor) Pop(collection, bucket, oid, text string) (int, error) {
	collectionHash := identifier.HashCollection(collection)
	bucketHash := identifier.HashBucket(bucket)

	kvb, err := e.acquireKV(collectionHash)
	if err != nil {
		return 0, err
	}
	defer kvb.Release()

	h := kvb.Handle()
	iid, ok, err := h.OIDToIID(bucketHash, oid)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	seq, _, err := lexer.Lex(text, lexer.LocaleAutodetect, lexer.DefaultConfig)
	if err != nil {
		return 0, err
	}
	words := lexer.DedupOrdered(seq)
	if len(words) == 0 {
		return 0, nil
	}

	fstb, err := e.acquireFST(collectionHash, bucketHash)
	if err != nil {
		return 0, err
	}
	defer fstb.Release()

	removed := 0
	for _, w := range words {
		term := identifier.HashTerm(w)
		if err := h.RemoveTermFromIID(bucketHash, iid, w); err != nil {
			return removed, err
		}
		if err := h.PostingRemove(bucketHash, term, iid); err != nil {
			return removed, err
		}
		empty, err := h.PostingEmpty(bucketHash, term)
		if err != nil {
			return removed, err
		}
		if empty {
			fstb.Graph().Pop(w)
		}
		removed++
	}

	remaining, err := h.TermsForIID(bucketHash, iid)
	if err != nil {
		return removed, err
	}
	if len(remaining) == 0 {
		if _, _, err := h.OIDRelease(bucketHash, oid); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Query implements spec §4.F.3, returning surviving OIDs in ranked
// order (the first token's recency dominates).
func (e *Executor) Query(collection, bucket, terms string, limit, offset int, lang lexer.Locale) ([]string, error) {
	collectionHash := identifier.HashCollection(collection)
	bucketHash := identifier.HashBucket(bucket)
	limit = clampLimit(limit, e.cfg.QueryLimitMaximum)
	if offset < 0 {
		offset = 0
	}

	seq, _, err := lexer.Lex(terms, lang, lexer.DefaultConfig)
	if err != nil {
		return nil, err
	}
	tokens := lexer.DedupOrdered(seq)
	if len(tokens) == 0 || limit == 0 {
		return []string{}, nil
	}

	kvb, err := e.acquireKV(collectionHash)
	if err != nil {
		return nil, err
	}
	defer kvb.Release()
	h := kvb.Handle()

	var fstb *fst.Borrow
	if e.cfg.QueryAlternatesTry > 0 {
		fstb, err = e.acquireFST(collectionHash, bucketHash)
		if err != nil {
			return nil, err
		}
		defer fstb.Release()
	}

	postings := make([][]identifier.IID, len(tokens))
	for i, tok := range tokens {
		term := identifier.HashTerm(tok)
		ids, err := h.PostingGet(bucketHash, term)
		if err != nil {
			return nil, err
		}
		if fstb != nil && len(ids) < limit+offset {
			alternates, err := fstb.Graph().Fuzzy(tok, e.cfg.fuzzyMaxEdits(tok), e.cfg.QueryAlternatesTry)
			if err != nil {
				return nil, err
			}
			ids = unionPreservingRecency(ids, alternates, func(alt string) ([]identifier.IID, error) {
				return h.PostingGet(bucketHash, identifier.HashTerm(alt))
			})
		}
		postings[i] = ids
	}

	intersected := intersectPreservingOrder(postings)
	if offset > len(intersected) {
		offset = len(intersected)
	}
	intersected = intersected[offset:]
	if limit >= 0 && len(intersected) > limit {
		intersected = intersected[:limit]
	}

	oids := make([]string, 0, len(intersected))
	for _, iid := range intersected {
		oid, ok, err := h.IIDToOID(bucketHash, iid)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue // stale IID, already released
		}
		oids = append(oids, string(oid))
	}
	return oids, nil
}

// unionPreservingRecency folds each alternate word's posting list into
// ids, keeping ids' original ordering first and appending newly seen
// IIDs from the alternates in the order they were found.
func unionPreservingRecency(ids []identifier.IID, alternates []string, lookup func(string) ([]identifier.IID, error)) []identifier.IID {
	seen := make(map[identifier.IID]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	out := append([]identifier.IID(nil), ids...)
	for _, alt := range alternates {
		altIDs, err := lookup(alt)
		if err != nil {
			continue
		}
		for _, id := range altIDs {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// intersectPreservingOrder intersects every posting list, keeping the
// first list's relative ordering (spec §4.F.3: "first word dominates
// ranking").
func intersectPreservingOrder(lists [][]identifier.IID) []identifier.IID {
	if len(lists) == 0 {
		return nil
	}
	if len(lists) == 1 {
		return lists[0]
	}
	sets := make([]map[identifier.IID]bool, len(lists)-1)
	for i, l := range lists[1:] {
		s := make(map[identifier.IID]bool, len(l))
		for _, id := range l {
			s[id] = true
		}
		sets[i] = s
	}
	var out []identifier.IID
	for _, id := range lists[0] {
		present := true
		for _, s := range sets {
			if !s[id] {
				present = false
				break
			}
		}
		if present {
			out = append(out, id)
		}
	}
	return out
}

// Suggest implements spec §4.F.4.
func (e *Executor) Suggest(collection, bucket, word string, limit int) ([]string, error) {
	if word == "" {
		return []string{}, nil
	}
	limit = clampLimit(limit, e.cfg.SuggestLimitMaximum)

	collectionHash := identifier.HashCollection(collection)
	bucketHash := identifier.HashBucket(bucket)
	fstb, err := e.acquireFST(collectionHash, bucketHash)
	if err != nil {
		return nil, err
	}
	defer fstb.Release()

	words, err := fstb.Graph().Prefix(word, limit)
	if err != nil {
		return nil, err
	}
	if words == nil {
		words = []string{}
	}
	return words, nil
}

// List implements spec §4.F.5.
func (e *Executor) List(collection, bucket string, limit, offset int) ([]string, error) {
	limit = clampLimit(limit, e.cfg.ListLimitMaximum)
	if offset < 0 {
		offset = 0
	}

	collectionHash := identifier.HashCollection(collection)
	bucketHash := identifier.HashBucket(bucket)
	fstb, err := e.acquireFST(collectionHash, bucketHash)
	if err != nil {
		return nil, err
	}
	defer fstb.Release()

	words, err := fstb.Graph().Prefix("", offset+limit)
	if err != nil {
		return nil, err
	}
	if offset > len(words) {
		offset = len(words)
	}
	words = words[offset:]
	if words == nil {
		words = []string{}
	}
	return words, nil
}

// CountCollection implements spec §4.F.6's `COUNT collection` form: the
// number of distinct buckets with any Meta→Value entry.
func (e *Executor) CountCollection(collection string) (int, error) {
	collectionHash := identifier.HashCollection(collection)
	kvb, err := e.acquireKV(collectionHash)
	if err != nil {
		return 0, err
	}
	defer kvb.Release()

	seen := make(map[identifier.BucketHash]bool)
	prefix := []byte{byte(keyer.IdxMeta)}
	for entry, err := range kvb.Handle().IterPrefix(prefix) {
		if err != nil {
			return 0, err
		}
		seen[entry.Key.Bucket()] = true
	}
	return len(seen), nil
}

// CountBucket implements spec §4.F.6's `COUNT collection bucket` form:
// the number of live OIDs, counted via the IID→OID family (an IID's
// reverse mapping is deleted as soon as its OID is released).
func (e *Executor) CountBucket(collection, bucket string) (int, error) {
	collectionHash := identifier.HashCollection(collection)
	bucketHash := identifier.HashBucket(bucket)
	kvb, err := e.acquireKV(collectionHash)
	if err != nil {
		return 0, err
	}
	defer kvb.Release()

	prefix := keyer.BucketPrefix(keyer.IdxIIDToOID, bucketHash)
	count := 0
	for _, err := range kvb.Handle().IterPrefix(prefix) {
		if err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

// CountObject implements spec §4.F.6's `COUNT collection bucket object`
// form.
func (e *Executor) CountObject(collection, bucket, oid string) (int, error) {
	collectionHash := identifier.HashCollection(collection)
	bucketHash := identifier.HashBucket(bucket)
	kvb, err := e.acquireKV(collectionHash)
	if err != nil {
		return 0, err
	}
	defer kvb.Release()

	h := kvb.Handle()
	iid, ok, err := h.OIDToIID(bucketHash, oid)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	terms, err := h.TermsForIID(bucketHash, iid)
	if err != nil {
		return 0, err
	}
	return len(terms), nil
}

// FlushObject implements spec §4.F.6's FLUSHO: purge every posting for
// oid and release it, returning the number of terms removed.
func (e *Executor) FlushObject(collection, bucket, oid string) (int, error) {
	collectionHash := identifier.HashCollection(collection)
	bucketHash := identifier.HashBucket(bucket)

	kvb, err := e.acquireKV(collectionHash)
	if err != nil {
		return 0, err
	}
	defer kvb.Release()
	h := kvb.Handle()

	iid, ok, err := h.OIDToIID(bucketHash, oid)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	terms, err := h.TermsForIID(bucketHash, iid)
	if err != nil {
		return 0, err
	}

	var fstb *fst.Borrow
	if len(terms) > 0 {
		fstb, err = e.acquireFST(collectionHash, bucketHash)
		if err != nil {
			return 0, err
		}
		defer fstb.Release()
	}

	for _, w := range terms {
		term := identifier.HashTerm(w)
		if err := h.PostingRemove(bucketHash, term, iid); err != nil {
			return 0, err
		}
		empty, err := h.PostingEmpty(bucketHash, term)
		if err != nil {
			return 0, err
		}
		if empty {
			fstb.Graph().Pop(w)
		}
	}

	if _, _, err := h.OIDRelease(bucketHash, oid); err != nil {
		return 0, err
	}
	return len(terms), nil
}

// FlushBucket implements spec §4.F.6's FLUSHB: delete_prefix over all 5
// key families restricted to this bucket, plus the bucket's FST file.
// Each family is cleared by its own DeletePrefix call, so the five
// deletions are not applied as one atomic step. Returns the bucket's live OID count (the invariant's RESULT per
// spec §8 scenario 5) as it existed immediately before the flush.
func (e *Executor) FlushBucket(collection, bucket string) (int, error) {
	collectionHash := identifier.HashCollection(collection)
	bucketHash := identifier.HashBucket(bucket)

	count, err := e.CountBucket(collection, bucket)
	if err != nil {
		return 0, err
	}

	kvb, err := e.acquireKV(collectionHash)
	if err != nil {
		return 0, err
	}
	for _, idx := range keyer.AllFamilies {
		if err := kvb.Handle().DeletePrefix(keyer.BucketPrefix(idx, bucketHash)); err != nil {
			kvb.Release()
			return 0, err
		}
	}
	kvb.Release()

	e.fstPool.Evict(fst.GraphKey{Collection: collectionHash, Bucket: bucketHash})
	graphPath := fst.GraphPath(e.fstBasePath, fst.GraphKey{Collection: collectionHash, Bucket: bucketHash})
	_ = os.Remove(graphPath)

	return count, nil
}

// Backup implements spec §4.H's `TRIGGER backup <path>`: a full copy of
// both the KV and FST directory trees under destDir, taken while both
// pools hold their exclusive lock so nothing is mid-write to either
// store (spec §4.H, "copying the KV directory tree and FST directory
// tree under a global write-lock").
func (e *Executor) Backup(destDir string) error {
	err := e.kvPool.WithExclusiveLock(func() error {
		return e.fstPool.WithExclusiveLock(func() error {
			if err := copyDir(e.kvPool.BasePath(), filepath.Join(destDir, "kv")); err != nil {
				return err
			}
			return copyDir(e.fstBasePath, filepath.Join(destDir, "fst"))
		})
	})
	if err != nil {
		return sonicerr.New(sonicerr.KindInternalFailure, "backup", err)
	}
	return nil
}

// Restore implements spec §4.H's `TRIGGER restore <path>`: the inverse of
// Backup, replacing both live store directories with the copies under
// srcDir. Both pools are closed for the duration so the copy lands on a
// quiescent directory tree; subsequent Acquire calls reopen handles
// against the restored files.
func (e *Executor) Restore(srcDir string) error {
	err := e.kvPool.WithExclusiveLock(func() error {
		return e.fstPool.WithExclusiveLock(func() error {
			if err := replaceDir(filepath.Join(srcDir, "kv"), e.kvPool.BasePath()); err != nil {
				return err
			}
			return replaceDir(filepath.Join(srcDir, "fst"), e.fstBasePath)
		})
	})
	if err != nil {
		return sonicerr.New(sonicerr.KindInternalFailure, "restore", err)
	}
	return nil
}

// copyDir recursively copies every regular file under src into dst,
// creating directories as needed and preserving relative paths.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == src {
				return nil // nothing written yet; an empty backup is valid
			}
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

// replaceDir removes dst entirely and repopulates it from src.
func replaceDir(src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	return copyDir(src, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// FlushCollection implements spec §4.F.6's FLUSHC: close handles, drop
// every key in the collection's KV store, and recursively remove the
// collection's FST directory.
func (e *Executor) FlushCollection(collection string) error {
	collectionHash := identifier.HashCollection(collection)

	e.kvPool.Evict(collectionHash)

	kvb, err := e.acquireKV(collectionHash)
	if err != nil {
		return err
	}
	for _, idx := range keyer.AllFamilies {
		if err := kvb.Handle().DeletePrefix([]byte{byte(idx)}); err != nil {
			kvb.Release()
			return err
		}
	}
	kvb.Release()
	e.kvPool.Evict(collectionHash)

	return os.RemoveAll(fst.CollectionDir(e.fstBasePath, collectionHash))
}
