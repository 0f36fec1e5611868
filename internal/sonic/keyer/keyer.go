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

// Package keyer builds the 9-byte binary KV keys described in spec §3:
// [idx:1 | bucket:4-LE | route:4-LE]. It is a pure, allocation-light
// function library with no knowledge of what the route means — that
// interpretation (term hash, OID hash, or IID) lives in the kv package.
package keyer

import (
	"encoding/binary"

	"sonic/internal/sonic/identifier"
)

// Idx identifies one of the five KV key families (spec §3 table).
type Idx byte

const (
	IdxMeta       Idx = 0 // Meta→Value
	IdxTermIIDs   Idx = 1 // Term→IIDs
	IdxOIDToIID   Idx = 2 // OID→IID
	IdxIIDToOID   Idx = 3 // IID→OID
	IdxIIDToTerms Idx = 4 // IID→Terms
)

// KeySize is the fixed length of every Sonic KV key.
const KeySize = 9

// Key is a 9-byte binary key: idx(1) | bucket(4 LE) | route(4 LE).
type Key [KeySize]byte

// Build constructs a key for the given family, bucket and route value.
// route is either a 32-bit hash (term, OID) or a raw IID, depending on idx.
func Build(idx Idx, bucket identifier.BucketHash, route uint32) Key {
	var k Key
	k[0] = byte(idx)
	binary.LittleEndian.PutUint32(k[1:5], uint32(bucket))
	binary.LittleEndian.PutUint32(k[5:9], route)
	return k
}

// Meta builds a Meta→Value key for the given meta tag hash.
func Meta(bucket identifier.BucketHash, tagHash uint32) Key {
	return Build(IdxMeta, bucket, tagHash)
}

// TermIIDs builds a Term→IIDs posting-list key.
func TermIIDs(bucket identifier.BucketHash, term identifier.TermHash) Key {
	return Build(IdxTermIIDs, bucket, uint32(term))
}

// OIDToIID builds an OID→IID lookup key from a route (spec §9: a 32-bit
// hash of the OID, with linear probing on collision — route is not the
// IID value).
func OIDToIID(bucket identifier.BucketHash, route uint32) Key {
	return Build(IdxOIDToIID, bucket, route)
}

// IIDToOID builds an IID→OID lookup key.
func IIDToOID(bucket identifier.BucketHash, iid identifier.IID) Key {
	return Build(IdxIIDToOID, bucket, uint32(iid))
}

// IIDToTerms builds an IID→Terms lookup key.
func IIDToTerms(bucket identifier.BucketHash, iid identifier.IID) Key {
	return Build(IdxIIDToTerms, bucket, uint32(iid))
}

// Bucket extracts the bucket-hash portion of a key (bytes 1..5, per
// spec §4.F.6's FLUSHB description).
func (k Key) Bucket() identifier.BucketHash {
	return identifier.BucketHash(binary.LittleEndian.Uint32(k[1:5]))
}

// Route extracts the route portion of a key (bytes 5..9).
func (k Key) Route() uint32 {
	return binary.LittleEndian.Uint32(k[5:9])
}

// Idx extracts the key family byte.
func (k Key) Idx() Idx {
	return Idx(k[0])
}

// BucketPrefix returns the 5-byte prefix (idx + bucket) shared by every
// key belonging to one bucket within one key family. Used by FLUSHB to
// restrict delete_prefix to a single bucket within a single family.
func BucketPrefix(idx Idx, bucket identifier.BucketHash) []byte {
	p := make([]byte, 5)
	p[0] = byte(idx)
	binary.LittleEndian.PutUint32(p[1:5], uint32(bucket))
	return p
}

// AllFamilies lists every key family that carries per-bucket data, in the
// order FLUSHB should clear them.
var AllFamilies = []Idx{IdxMeta, IdxTermIIDs, IdxOIDToIID, IdxIIDToOID, IdxIIDToTerms}

// PutUint32LE and ReadUint32LE are small helpers shared by the posting
// list encoding in kv, kept here so the byte order convention lives in
// exactly one place (spec §6: "Integer encoding: little-endian throughout").
func PutUint32LE(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
func ReadUint32LE(src []byte) uint32   { return binary.LittleEndian.Uint32(src) }

// PutUint16LE and ReadUint16LE back the length-prefixed word encoding
// used by the IID→Terms family (kv.encodeTerms/decodeTerms).
func PutUint16LE(dst []byte, v uint16) { binary.LittleEndian.PutUint16(dst, v) }
func ReadUint16LE(src []byte) uint16   { return binary.LittleEndian.Uint16(src) }
