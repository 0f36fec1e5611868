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

// Package identifier computes the 32-bit hashes Sonic uses in place of
// storing any document: collection, bucket, OID and term hashes, plus the
// meta-tag hash used for the KV Meta→Value family. All five domains use
// the same xxHash family but different seeds, so that (for example) a
// bucket name and a term that happen to be byte-identical never collide
// across key families.
package identifier

import (
	"errors"
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// Domain separation seeds. Arbitrary but fixed: changing any of these
// changes every on-disk hash and is a breaking format change.
const (
	seedCollection uint64 = 0x534f4e4943000001
	seedBucket     uint64 = 0x534f4e4943000002
	seedOID        uint64 = 0x534f4e4943000003
	seedTerm       uint64 = 0x534f4e4943000004
	seedMeta       uint64 = 0x534f4e4943000005
)

// CollectionHash, BucketHash, IID and TermHash are all 32-bit: the KV key
// layout (keyer.Key) only has four bytes of route space, and posting
// lists store one IID per four bytes.
type (
	CollectionHash uint32
	BucketHash     uint32
	IID            uint32
	TermHash       uint32
)

// MaxOIDBytes bounds the caller-supplied OID per spec §4.A.
const MaxOIDBytes = 128

var (
	// ErrOIDTooLong is returned by ValidateOID when the OID exceeds MaxOIDBytes.
	ErrOIDTooLong = errors.New("oid exceeds maximum length")
	// ErrOIDInvalid is returned when the OID is empty, or contains
	// whitespace, control characters or invalid UTF-8.
	ErrOIDInvalid = errors.New("oid contains invalid characters")
)

func hash32(seed uint64, b []byte) uint32 {
	d := xxhash.NewWithSeed(seed)
	_, _ = d.Write(b)
	return uint32(d.Sum64())
}

// HashCollection hashes a caller-supplied collection name.
func HashCollection(name string) CollectionHash {
	return CollectionHash(hash32(seedCollection, []byte(name)))
}

// HashBucket hashes a caller-supplied bucket name.
func HashBucket(name string) BucketHash {
	return BucketHash(hash32(seedBucket, []byte(name)))
}

// HashOID hashes a validated OID into the route used to look it up in the
// OID→IID key family. This is deliberately NOT the IID itself: the IID is
// a monotonically assigned counter (spec §3 Lifecycle), while the route
// is a 32-bit hash that two distinct OIDs can collide on. The kv package
// resolves such route collisions with linear probing (spec §9 open
// question: "verify-after-assign").
func HashOID(oid string) uint32 {
	return hash32(seedOID, []byte(oid))
}

// HashTerm hashes a normalized lexer token.
func HashTerm(word string) TermHash {
	return TermHash(hash32(seedTerm, []byte(word)))
}

// HashMeta hashes a meta tag name (e.g. "iid_counter") into the route
// used by the Meta→Value key family.
func HashMeta(tag string) uint32 {
	return hash32(seedMeta, []byte(tag))
}

// ValidateOID enforces spec §4.A: printable UTF-8, no whitespace or
// control characters, at most MaxOIDBytes bytes.
func ValidateOID(oid string) error {
	if len(oid) == 0 {
		return ErrOIDInvalid
	}
	if len(oid) > MaxOIDBytes {
		return ErrOIDTooLong
	}
	if !utf8.ValidString(oid) {
		return ErrOIDInvalid
	}
	for _, r := range oid {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrOIDInvalid
		}
	}
	return nil
}
