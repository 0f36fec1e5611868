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

import "golang.org/x/text/transform"

// stopWords holds one static lowercase stop-word set per supported
// locale. These are intentionally short, high-frequency word lists
// (closed-class function words), not exhaustive linguistic resources —
// good enough to drive both the hit-counter detector and token elision.
var stopWords = map[Locale]map[string]bool{
	LocaleEnglish: toSet([]string{
		"a", "an", "and", "are", "as", "at", "be", "been", "but", "by",
		"for", "from", "had", "has", "have", "he", "her", "him", "his",
		"i", "in", "is", "it", "its", "me", "my", "no", "not", "of",
		"on", "or", "our", "she", "so", "that", "the", "their", "them",
		"then", "there", "these", "they", "this", "to", "too", "was",
		"we", "were", "what", "when", "which", "who", "will", "with",
		"you", "your",
	}),
	LocaleFrench: toSet([]string{
		"au", "aux", "avec", "ce", "ces", "dans", "de", "des", "du",
		"elle", "en", "et", "eux", "il", "je", "la", "le", "leur", "lui",
		"ma", "mais", "me", "même", "mes", "moi", "mon", "ne", "nos",
		"notre", "nous", "on", "ou", "par", "pas", "pour", "qu", "que",
		"qui", "sa", "se", "ses", "son", "sur", "ta", "te", "tes", "toi",
		"ton", "tu", "un", "une", "vos", "votre", "vous",
	}),
	LocaleSpanish: toSet([]string{
		"a", "al", "algo", "algunas", "algunos", "ante", "antes", "como",
		"con", "contra", "cual", "cuando", "de", "del", "desde", "donde",
		"durante", "e", "el", "ella", "ellas", "ellos", "en", "entre",
		"era", "erais", "eran", "eras", "eres", "es", "esa", "esas",
		"ese", "eso", "esos", "esta", "estas", "este", "esto", "estos",
		"la", "las", "le", "les", "lo", "los", "mas", "mi", "mis", "mucho",
		"muy", "nada", "ni", "no", "nosotras", "nosotros", "nuestra",
		"nuestras", "nuestro", "nuestros", "o", "os", "otra", "otras",
		"otro", "otros", "para", "pero", "poco", "por", "porque", "que",
		"quien", "quienes", "se", "sin", "sobre", "su", "sus", "también",
		"te", "ti", "tu", "tus", "un", "una", "uno", "unos", "vosotras",
		"vosotros", "vuestra", "vuestras", "vuestro", "vuestros", "y",
		"ya", "yo",
	}),
	LocaleGerman: toSet([]string{
		"aber", "alle", "als", "also", "am", "an", "auch", "auf", "aus",
		"bei", "bin", "bis", "bist", "da", "damit", "dann", "das", "dass",
		"dein", "deine", "dem", "den", "der", "des", "dessen", "die",
		"dies", "diese", "dieser", "dieses", "doch", "dort", "du", "durch",
		"ein", "eine", "einem", "einen", "einer", "eines", "er", "es",
		"euer", "eure", "für", "hatte", "hatten", "hier", "ich", "ihr",
		"ihre", "im", "in", "ist", "ja", "jede", "jedem", "jeden", "jeder",
		"jedes", "jener", "kann", "kein", "keine", "können", "mich", "mir",
		"mit", "muss", "nach", "nicht", "noch", "nun", "nur", "ob", "oder",
		"schon", "sehr", "sein", "seine", "sich", "sie", "sind", "so",
		"solche", "soll", "sondern", "um", "und", "uns", "unser", "unter",
		"viel", "vom", "von", "vor", "war", "waren", "warst", "was",
		"weil", "weiter", "wenn", "werde", "werden", "wie", "wir", "wird",
		"wirst", "wo", "zu", "zum", "zur", "über",
	}),
}

// toSet builds a lookup set from a word list, diacritic-stripping each
// entry with the same transform normalize() applies to incoming tokens
// (lexer.go), so e.g. "même"/"für"/"también" are stored as
// "meme"/"fur"/"tambien" and still match after normalization.
func toSet(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		if stripped, _, err := transform.String(diacriticStripper, w); err == nil {
			w = stripped
		}
		m[w] = true
	}
	return m
}

// isStopWord reports whether word (already normalized) is a stop word
// for the given locale. LocaleNone and unrecognized locales never
// contribute stop words.
func isStopWord(loc Locale, word string) bool {
	table, ok := stopWords[loc]
	if !ok {
		return false
	}
	return table[word]
}
