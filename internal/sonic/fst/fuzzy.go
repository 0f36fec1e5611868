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

package fst

import (
	"sort"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// fuzzyFilter ranks candidates by Levenshtein distance to word using
// go-edlib, keeping only matches within maxDistance and returning at
// most limit results ordered by increasing distance (ties broken
// lexicographically for determinism).
func fuzzyFilter(word string, candidates []string, maxDistance int, limit int) []string {
	type scored struct {
		word string
		dist int
	}
	var matches []scored
	for _, c := range candidates {
		d, err := edlib.StringsSimilarity(word, c, edlib.Levenshtein)
		if err != nil {
			continue
		}
		// go-edlib reports similarity in [0,1]; recover the edit distance
		// from the longer string's length to compare against maxDistance.
		longest := utf8.RuneCountInString(word)
		if n := utf8.RuneCountInString(c); n > longest {
			longest = n
		}
		dist := longest - int(d*float32(longest)+0.5)
		if dist <= maxDistance {
			matches = append(matches, scored{word: c, dist: dist})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].dist != matches[j].dist {
			return matches[i].dist < matches[j].dist
		}
		return matches[i].word < matches[j].word
	})
	if limit >= 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.word
	}
	return out
}
