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

// Package lexer normalizes raw UTF-8 text into stemmed, stop-word-free
// tokens (spec §4.B). Tokenization is exposed as a lazy, single-pass
// iter.Seq[string]: callers may stop early (e.g. PUSH only needs distinct
// tokens, but never needs to buffer the whole text).
package lexer

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/surgebase/porter2"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"sonic/internal/sonic/sonicerr"
)

// Config bounds the lexer's normalization pipeline. Zero-value Config is
// replaced with DefaultConfig by Lex.
type Config struct {
	// MaxTokenGraphemes drops tokens longer than this many code points
	// (default 40 — spec §4.B, "bounded to keep FST lookups bounded").
	MaxTokenGraphemes int
}

// DefaultConfig matches spec §4.B's defaults.
var DefaultConfig = Config{MaxTokenGraphemes: 40}

var foldCaser = cases.Fold()

// diacriticStripper decomposes Latin-script letters to NFD and then
// drops the resulting combining marks, turning e.g. "café" into "cafe".
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Lex validates text and returns a lazy token sequence plus the locale
// that was used (forced, or autodetected — useful for callers that want
// to report it back, e.g. channel diagnostics). forced == LocaleAutodetect
// triggers spec §4.B's detection cascade; forced == LocaleNone disables
// both detection and stop-word removal.
//
// The only failure mode is invalid UTF-8 input (sonicerr.KindLexerFailure),
// which is recoverable: callers may retry with sanitized input.
func Lex(text string, forced Locale, cfg Config) (iter.Seq[string], Locale, error) {
	if !utf8.ValidString(text) {
		return nil, "", sonicerr.New(sonicerr.KindLexerFailure, "invalid utf-8 input", nil)
	}
	if cfg.MaxTokenGraphemes <= 0 {
		cfg.MaxTokenGraphemes = DefaultConfig.MaxTokenGraphemes
	}

	locale := forced
	if locale == LocaleAutodetect {
		locale = detectLocale(text)
	}

	seq := func(yield func(string) bool) {
		for _, raw := range splitWords(text) {
			tok := normalize(raw)
			if tok == "" {
				continue
			}
			if utf8.RuneCountInString(tok) > cfg.MaxTokenGraphemes {
				continue
			}
			if locale != LocaleNone && isStopWord(locale, tok) {
				continue
			}
			if locale == LocaleEnglish {
				tok = porter2.Stem(tok)
			}
			if tok == "" {
				continue
			}
			if !yield(tok) {
				return
			}
		}
	}
	return seq, locale, nil
}

// splitWords splits on any Unicode code point that is not a letter or a
// number (spec §4.B: "split on any Unicode non-alphanumeric or
// separator"). It runs before normalize so normalize only ever has to
// lower-case and de-diacritic a single already-delimited word.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func isAlnumRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// normalize applies Unicode case folding followed by diacritic stripping
// to a single already word-split token.
func normalize(tok string) string {
	tok = foldCaser.String(tok)
	if stripped, _, err := transform.String(diacriticStripper, tok); err == nil {
		tok = stripped
	}
	return tok
}

// TokensSlice drains a token sequence into a slice. Convenience for
// executors that need deduplication or ordering rather than streaming.
func TokensSlice(seq iter.Seq[string]) []string {
	var out []string
	for t := range seq {
		out = append(out, t)
	}
	return out
}

// DedupOrdered returns tok's distinct values in first-seen order, which
// is what PUSH needs (spec §4.F.1: "For each distinct token w").
func DedupOrdered(seq iter.Seq[string]) []string {
	seen := make(map[string]bool)
	var out []string
	for t := range seq {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
