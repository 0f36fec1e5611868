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

// Package executor implements the PUSH/POP/QUERY/SUGGEST/LIST/COUNT/
// FLUSH* operations (spec §4.F) by coordinating the lexer, keyer, kv and
// fst packages under the shared-pool discipline from spec §9.
package executor

// Config carries the channel-configurable limits that bound executor
// behavior (spec §6, §4.F).
type Config struct {
	QueryLimitMaximum   int
	SuggestLimitMaximum int
	ListLimitMaximum    int
	// QueryAlternatesTry is channel.search.query_alternates_try: how many
	// fuzzy alternates QUERY tries per under-filled token posting list.
	QueryAlternatesTry int
	// FuzzyMaxEditsShort/Long implement spec §4.E's length-dependent
	// default: 1 edit normally, 2 for words of at least FuzzyLongWordLen
	// graphemes.
	FuzzyMaxEditsShort int
	FuzzyMaxEditsLong  int
	FuzzyLongWordLen   int
}

// DefaultConfig matches the defaults named throughout spec.md.
var DefaultConfig = Config{
	QueryLimitMaximum:   100,
	SuggestLimitMaximum: 20,
	ListLimitMaximum:    100,
	QueryAlternatesTry:  0,
	FuzzyMaxEditsShort:  1,
	FuzzyMaxEditsLong:   2,
	FuzzyLongWordLen:    8,
}

func (c Config) fuzzyMaxEdits(word string) int {
	if len([]rune(word)) >= c.FuzzyLongWordLen {
		return c.FuzzyMaxEditsLong
	}
	return c.FuzzyMaxEditsShort
}

func clampLimit(limit, maximum int) int {
	if limit < 0 || limit > maximum {
		return maximum
	}
	return limit
}
