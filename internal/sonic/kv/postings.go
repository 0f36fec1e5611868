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
	"github.com/dgraph-io/badger/v4"

	"sonic/internal/sonic/identifier"
	"sonic/internal/sonic/keyer"
	"sonic/internal/sonic/sonicerr"
)

// decodePosting reads a Term→IIDs value into a slice of IIDs, newest
// first (spec §3: "variable-length sequence of 4-LE IIDs (MRU order)").
func decodePosting(raw []byte) []identifier.IID {
	n := len(raw) / 4
	out := make([]identifier.IID, n)
	for i := 0; i < n; i++ {
		out[i] = identifier.IID(keyer.ReadUint32LE(raw[i*4 : i*4+4]))
	}
	return out
}

func encodePosting(ids []identifier.IID) []byte {
	raw := make([]byte, len(ids)*4)
	for i, id := range ids {
		keyer.PutUint32LE(raw[i*4:i*4+4], uint32(id))
	}
	return raw
}

// PostingGet returns term's posting list, newest first.
func (h *Handle) PostingGet(bucket identifier.BucketHash, term identifier.TermHash) ([]identifier.IID, error) {
	raw, err := h.Get(keyer.TermIIDs(bucket, term))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return decodePosting(raw), nil
}

// PostingPush pushes iid to the front of term's posting list (spec
// §4.D). If iid is already first, it is a no-op. If iid appears
// elsewhere in the list, that occurrence is removed first so every
// posting list stays duplicate-free (needed to keep the posting↔terms
// symmetry invariant under re-indexing the same object). The list is
// then truncated to retain (default retain_word_objects); the IIDs
// dropped by truncation are returned so the caller can decide whether to
// react (PUSH discards them; nothing else currently needs them).
func (h *Handle) PostingPush(bucket identifier.BucketHash, term identifier.TermHash, iid identifier.IID) (evicted []identifier.IID, err error) {
	key := keyer.TermIIDs(bucket, term)
	var raw []byte
	txnErr := h.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key[:])
		switch err {
		case nil:
			raw, err = item.ValueCopy(nil)
			if err != nil {
				return err
			}
		case badger.ErrKeyNotFound:
			raw = nil
		default:
			return err
		}

		ids := decodePosting(raw)
		if len(ids) > 0 && ids[0] == iid {
			return nil // already MRU, no-op
		}

		filtered := ids[:0:0]
		for _, id := range ids {
			if id != iid {
				filtered = append(filtered, id)
			}
		}
		updated := append([]identifier.IID{iid}, filtered...)

		if len(updated) > h.retain {
			evicted = append(evicted, updated[h.retain:]...)
			updated = updated[:h.retain]
		}

		return txn.Set(key[:], encodePosting(updated))
	})
	if txnErr != nil {
		return nil, sonicerr.New(sonicerr.KindOpenFailed, "posting_push", txnErr)
	}
	return evicted, nil
}

// PostingRemove removes iid from term's posting list if present. If the
// list becomes empty the key is deleted entirely (spec §4.D).
func (h *Handle) PostingRemove(bucket identifier.BucketHash, term identifier.TermHash, iid identifier.IID) error {
	key := keyer.TermIIDs(bucket, term)
	err := h.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key[:])
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		ids := decodePosting(raw)
		filtered := ids[:0:0]
		for _, id := range ids {
			if id != iid {
				filtered = append(filtered, id)
			}
		}
		if len(filtered) == 0 {
			return txn.Delete(key[:])
		}
		return txn.Set(key[:], encodePosting(filtered))
	})
	if err != nil {
		return sonicerr.New(sonicerr.KindOpenFailed, "posting_remove", err)
	}
	return nil
}

// PostingEmpty reports whether term currently has no posting list entry
// at all, used by POP/FLUSHO to decide whether to call fst.Pop.
func (h *Handle) PostingEmpty(bucket identifier.BucketHash, term identifier.TermHash) (bool, error) {
	ids, err := h.PostingGet(bucket, term)
	if err != nil {
		return false, err
	}
	return len(ids) == 0, nil
}
