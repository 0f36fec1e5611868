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

package lexer

import "strings"

// Locale is an ISO-639-3 code, plus the two sentinels "none" (detection
// and stop-word removal both disabled) and "" (not forced — autodetect).
type Locale string

const (
	LocaleAutodetect Locale = ""
	LocaleNone       Locale = "none"

	LocaleEnglish Locale = "eng"
	LocaleFrench  Locale = "fra"
	LocaleSpanish Locale = "spa"
	LocaleGerman  Locale = "deu"
)

// supportedLocales lists every locale the stop-word hit counter scores
// against, in a fixed order so ties resolve deterministically (first
// listed wins).
var supportedLocales = []Locale{LocaleEnglish, LocaleFrench, LocaleSpanish, LocaleGerman}

// ParseLocale maps a LANG(...) modifier value onto a Locale, accepting
// the ISO-639-3 codes above case-insensitively plus "none".
func ParseLocale(s string) (Locale, bool) {
	l := Locale(strings.ToLower(s))
	if l == LocaleNone {
		return LocaleNone, true
	}
	for _, sup := range supportedLocales {
		if l == sup {
			return sup, true
		}
	}
	return "", false
}

// minDetectCodePoints is the text-length threshold below which the
// stop-word hit counter is not trusted (spec §4.B).
const minDetectCodePoints = 30

// reliabilityThreshold is the minimum fraction of scanned words that must
// hit a single locale's stop-word table before that locale is trusted.
const reliabilityThreshold = 0.06

// detectLocale implements spec §4.B's detection cascade for unforced
// lexing: a stop-word hit counter over supportedLocales, falling back to
// a coarse script classifier when the counter is unreliable or the text
// is short. It never returns an error: an unreliable detection simply
// means "skip stop-word removal", which is itself a valid outcome.
func detectLocale(text string) Locale {
	runeCount := 0
	for range text {
		runeCount++
	}

	if runeCount >= minDetectCodePoints {
		if loc, ok := stopWordHitCounter(text); ok {
			return loc
		}
	}

	return scriptClassifier(text)
}

// stopWordHitCounter scores each supported locale by counting how many
// whitespace-delimited words of text are present verbatim in that
// locale's stop-word set, then returns the locale with the most hits if
// it clears reliabilityThreshold of the scanned words.
func stopWordHitCounter(text string) (Locale, bool) {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return "", false
	}

	best := Locale("")
	bestHits := 0
	for _, loc := range supportedLocales {
		table := stopWords[loc]
		hits := 0
		for _, w := range words {
			if table[w] {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best = loc
		}
	}

	if best == "" {
		return "", false
	}
	if float64(bestHits)/float64(len(words)) < reliabilityThreshold {
		return "", false
	}
	return best, true
}

// scriptClassifier is the slower fallback used when the stop-word
// counter is unreliable: a coarse per-rune Unicode script tally. It only
// ever distinguishes "mostly Latin script" (defaults to English stop
// words) from everything else (no stop-word removal — spec §4.B
// explicitly allows skipping removal when detection is unreliable).
func scriptClassifier(text string) Locale {
	latin, other := 0, 0
	for _, r := range text {
		if !isAlnumRune(r) {
			continue
		}
		if isLatinScript(r) {
			latin++
		} else {
			other++
		}
	}
	if latin == 0 && other == 0 {
		return LocaleNone
	}
	if latin > other {
		return LocaleEnglish
	}
	return LocaleNone
}

func isLatinScript(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= 0x00C0 && r <= 0x024F) // Latin-1 supplement + Latin Extended-A/B
}
