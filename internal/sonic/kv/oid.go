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
	"bytes"
	"math"

	"github.com/dgraph-io/badger/v4"

	"sonic/internal/sonic/identifier"
	"sonic/internal/sonic/keyer"
	"sonic/internal/sonic/sonicerr"
)

// maxOIDRouteProbe bounds the linear probe chain used to resolve OID
// route collisions (spec §9 open question). A real collision chain this
// long across a 32-bit hash space would require a vast number of objects
// in a single bucket; this is a safety bound, not an expected case.
const maxOIDRouteProbe = 64

const metaTagIIDCounter = "iid_counter"

func iidCounterKey(bucket identifier.BucketHash) keyer.Key {
	return keyer.Meta(bucket, identifier.HashMeta(metaTagIIDCounter))
}

// OIDToIID resolves oid to its existing IID without assigning a new one.
// Returns (0, false, nil) if oid has no assignment in this bucket.
func (h *Handle) OIDToIID(bucket identifier.BucketHash, oid string) (identifier.IID, bool, error) {
	route0 := identifier.HashOID(oid)
	oidBytes := []byte(oid)

	for probe := uint32(0); probe < maxOIDRouteProbe; probe++ {
		route := route0 + probe
		raw, err := h.Get(keyer.OIDToIID(bucket, route))
		if err != nil {
			return 0, false, err
		}
		if raw == nil {
			return 0, false, nil // empty slot: insertion never got this far
		}
		iid := identifier.IID(keyer.ReadUint32LE(raw))
		stored, err := h.Get(keyer.IIDToOID(bucket, iid))
		if err != nil {
			return 0, false, err
		}
		if bytes.Equal(stored, oidBytes) {
			return iid, true, nil
		}
		// Route collision with a different OID: keep probing.
	}
	return 0, false, nil
}

// IIDToOID resolves an IID back to its OID. Returns (nil, false, nil) if
// the IID is unknown (never assigned, or already released).
func (h *Handle) IIDToOID(bucket identifier.BucketHash, iid identifier.IID) ([]byte, bool, error) {
	raw, err := h.Get(keyer.IIDToOID(bucket, iid))
	if err != nil {
		return nil, false, err
	}
	return raw, raw != nil, nil
}

// OIDToIIDGetOrAssign resolves oid to its IID, assigning a fresh
// monotonic IID (from the bucket's iid_counter meta value) on first
// sight (spec §4.D). Route collisions with different OIDs are resolved
// by linear probing to the next route slot, per spec §9's open question.
func (h *Handle) OIDToIIDGetOrAssign(bucket identifier.BucketHash, oid string) (identifier.IID, error) {
	if iid, ok, err := h.OIDToIID(bucket, oid); err != nil {
		return 0, err
	} else if ok {
		return iid, nil
	}

	route0 := identifier.HashOID(oid)
	oidBytes := []byte(oid)
	counterKey := iidCounterKey(bucket)

	var assigned identifier.IID
	txnErr := h.db.Update(func(txn *badger.Txn) error {
		var route uint32
		slotFound := false
		for probe := uint32(0); probe < maxOIDRouteProbe; probe++ {
			route = route0 + probe
			item, err := txn.Get(keyer.OIDToIID(bucket, route)[:])
			if err == badger.ErrKeyNotFound {
				slotFound = true
				break
			}
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			iid := identifier.IID(keyer.ReadUint32LE(raw))
			storedItem, err := txn.Get(keyer.IIDToOID(bucket, iid)[:])
			if err != nil && err != badger.ErrKeyNotFound {
				return err
			}
			if err == nil {
				stored, err := storedItem.ValueCopy(nil)
				if err != nil {
					return err
				}
				if bytes.Equal(stored, oidBytes) {
					assigned = iid
					return nil // another writer beat us to it
				}
			}
		}
		if !slotFound {
			return sonicerr.New(sonicerr.KindIIDExhausted, "oid route probe exhausted", nil)
		}

		counter, err := readCounter(txn, counterKey)
		if err != nil {
			return err
		}
		if counter == math.MaxUint32 {
			return sonicerr.New(sonicerr.KindIIDExhausted, "iid counter exhausted", nil)
		}

		newIID := identifier.IID(counter)
		if err := txn.Set(counterKey[:], encodeCounter(counter+1)); err != nil {
			return err
		}
		oidToIIDKey := keyer.OIDToIID(bucket, route)
		if err := txn.Set(oidToIIDKey[:], encodeCounter(uint32(newIID))); err != nil {
			return err
		}
		iidToOIDKey := keyer.IIDToOID(bucket, newIID)
		if err := txn.Set(iidToOIDKey[:], oidBytes); err != nil {
			return err
		}
		assigned = newIID
		return nil
	})
	if txnErr != nil {
		return 0, txnErr
	}
	return assigned, nil
}

// OIDRelease deletes both mapping directions and the IID→Terms entry for
// oid, returning the released IID so callers can purge its term
// postings (spec §4.D).
func (h *Handle) OIDRelease(bucket identifier.BucketHash, oid string) (identifier.IID, bool, error) {
	iid, ok, err := h.OIDToIID(bucket, oid)
	if err != nil || !ok {
		return 0, false, err
	}
	route0 := identifier.HashOID(oid)
	oidBytes := []byte(oid)

	txnErr := h.db.Update(func(txn *badger.Txn) error {
		for probe := uint32(0); probe < maxOIDRouteProbe; probe++ {
			route := route0 + probe
			key := keyer.OIDToIID(bucket, route)
			item, err := txn.Get(key[:])
			if err == badger.ErrKeyNotFound {
				break
			}
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			candidate := identifier.IID(keyer.ReadUint32LE(raw))
			if candidate != iid {
				continue
			}
			storedItem, err := txn.Get(keyer.IIDToOID(bucket, candidate)[:])
			if err != nil {
				continue
			}
			stored, err := storedItem.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !bytes.Equal(stored, oidBytes) {
				continue
			}
			if err := txn.Delete(key[:]); err != nil {
				return err
			}
			break
		}
		iidToOIDKey := keyer.IIDToOID(bucket, iid)
		if err := txn.Delete(iidToOIDKey[:]); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		iidToTermsKey := keyer.IIDToTerms(bucket, iid)
		if err := txn.Delete(iidToTermsKey[:]); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return nil
	})
	if txnErr != nil {
		return 0, false, txnErr
	}
	return iid, true, nil
}

func readCounter(txn *badger.Txn, key keyer.Key) (uint32, error) {
	item, err := txn.Get(key[:])
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	return keyer.ReadUint32LE(raw), nil
}

func encodeCounter(v uint32) []byte {
	b := make([]byte, 4)
	keyer.PutUint32LE(b, v)
	return b
}

// --- IID→Terms ---
//
// The KV schema table (spec §3) describes this family's value as a bare
// sequence of TermHash values. That is enough for posting-list symmetry
// bookkeeping, but FLUSHO and POP need the literal word back to call
// fst.Pop (the FST stores words, not hashes, and a 32-bit hash cannot be
// un-hashed). This implementation stores the normalized word strings
// instead of their hashes; the hash used for the Term→IIDs key is always
// recomputed on read via identifier.HashTerm, so the two families stay
// in lockstep while the word itself survives for FST bookkeeping.

// TermsForIID returns every normalized word currently recorded for iid.
func (h *Handle) TermsForIID(bucket identifier.BucketHash, iid identifier.IID) ([]string, error) {
	raw, err := h.Get(keyer.IIDToTerms(bucket, iid))
	if err != nil {
		return nil, err
	}
	return decodeTerms(raw), nil
}

// AddTermToIID appends word to iid's term list if not already present.
func (h *Handle) AddTermToIID(bucket identifier.BucketHash, iid identifier.IID, word string) error {
	key := keyer.IIDToTerms(bucket, iid)
	err := h.db.Update(func(txn *badger.Txn) error {
		raw, err := getOrNil(txn, key)
		if err != nil {
			return err
		}
		terms := decodeTerms(raw)
		for _, w := range terms {
			if w == word {
				return nil
			}
		}
		terms = append(terms, word)
		return txn.Set(key[:], encodeTerms(terms))
	})
	if err != nil {
		return sonicerr.New(sonicerr.KindOpenFailed, "add_term_to_iid", err)
	}
	return nil
}

// RemoveTermFromIID removes word from iid's term list, deleting the key
// entirely once the list is empty.
func (h *Handle) RemoveTermFromIID(bucket identifier.BucketHash, iid identifier.IID, word string) error {
	key := keyer.IIDToTerms(bucket, iid)
	err := h.db.Update(func(txn *badger.Txn) error {
		raw, err := getOrNil(txn, key)
		if err != nil {
			return err
		}
		terms := decodeTerms(raw)
		filtered := terms[:0:0]
		for _, w := range terms {
			if w != word {
				filtered = append(filtered, w)
			}
		}
		if len(filtered) == 0 {
			err := txn.Delete(key[:])
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return txn.Set(key[:], encodeTerms(filtered))
	})
	if err != nil {
		return sonicerr.New(sonicerr.KindOpenFailed, "remove_term_from_iid", err)
	}
	return nil
}

func getOrNil(txn *badger.Txn, key keyer.Key) ([]byte, error) {
	item, err := txn.Get(key[:])
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// decodeTerms/encodeTerms use a 2-byte-LE length prefix per word: the
// lexer already bounds tokens to a small grapheme count, so a byte
// length always fits in 16 bits with room to spare.
func decodeTerms(raw []byte) []string {
	var out []string
	for i := 0; i+2 <= len(raw); {
		n := int(keyer.ReadUint16LE(raw[i : i+2]))
		i += 2
		if i+n > len(raw) {
			break
		}
		out = append(out, string(raw[i:i+n]))
		i += n
	}
	return out
}

func encodeTerms(terms []string) []byte {
	size := 0
	for _, w := range terms {
		size += 2 + len(w)
	}
	raw := make([]byte, 0, size)
	for _, w := range terms {
		var lenBuf [2]byte
		keyer.PutUint16LE(lenBuf[:], uint16(len(w)))
		raw = append(raw, lenBuf[:]...)
		raw = append(raw, w...)
	}
	return raw
}
