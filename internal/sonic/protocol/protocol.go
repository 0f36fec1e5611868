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

// Package protocol implements the line-oriented wire codec described in
// spec §4.I: tokenizing a command line into positional arguments and
// `NAME(value)` meta modifiers, and formatting the fixed set of
// response lines the channel emits.
package protocol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"sonic/internal/sonic/sonicerr"
)

// ServerVersion is reported in the startup banner.
const ServerVersion = "1.0.0"

// Command is a parsed wire command: a name, its positional arguments
// (quoted text already unescaped), and the recognized meta modifiers.
type Command struct {
	Name   string
	Args   []string
	Limit  *int
	Offset *int
	Lang   *string // raw locale token, or "none"
}

var metaToken = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)\(([A-Za-z0-9_.:-]+)\)$`)

// ParseLine tokenizes one command line (without its trailing \n).
// Whitespace separates tokens, except inside a `"…"` quoted span where
// \\, \", and \n are the only recognized escapes. Tokens of the form
// `NAME(value)` are consumed as meta modifiers rather than positional
// arguments.
func ParseLine(line string) (Command, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return Command{}, err
	}
	if len(tokens) == 0 {
		return Command{}, sonicerr.Wire(sonicerr.CodeNotRecognized, "")
	}

	cmd := Command{Name: strings.ToUpper(tokens[0])}
	for _, tok := range tokens[1:] {
		if m := metaToken.FindStringSubmatch(tok); m != nil {
			if err := cmd.applyMeta(m[1], m[2]); err != nil {
				return Command{}, err
			}
			continue
		}
		cmd.Args = append(cmd.Args, tok)
	}
	return cmd, nil
}

func (c *Command) applyMeta(name, value string) error {
	switch strings.ToUpper(name) {
	case "LIMIT":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return sonicerr.Wire(sonicerr.CodeInvalidMeta, "LIMIT")
		}
		c.Limit = &n
	case "OFFSET":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return sonicerr.Wire(sonicerr.CodeInvalidMeta, "OFFSET")
		}
		c.Offset = &n
	case "LANG":
		c.Lang = &value
	default:
		return sonicerr.Wire(sonicerr.CodeInvalidMeta, name)
	}
	return nil
}

// tokenize splits line into whitespace-delimited tokens, treating a
// `"…"` span as a single token with escapes resolved.
func tokenize(line string) ([]string, error) {
	var tokens []string
	var buf strings.Builder
	inQuotes := false
	haveToken := false

	flush := func() {
		if haveToken {
			tokens = append(tokens, buf.String())
			buf.Reset()
			haveToken = false
		}
	}

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inQuotes:
			switch r {
			case '\\':
				if i+1 >= len(runes) {
					return nil, sonicerr.Wire(sonicerr.CodeInvalidFormat, "unterminated escape")
				}
				i++
				switch runes[i] {
				case '\\':
					buf.WriteRune('\\')
				case '"':
					buf.WriteRune('"')
				case 'n':
					buf.WriteRune('\n')
				default:
					return nil, sonicerr.Wire(sonicerr.CodeInvalidFormat, "unknown escape")
				}
			case '"':
				inQuotes = false
			default:
				buf.WriteRune(r)
			}
		case r == '"':
			flush()
			inQuotes = true
			haveToken = true
		case r == ' ' || r == '\t':
			flush()
		default:
			haveToken = true
			buf.WriteRune(r)
		}
	}
	if inQuotes {
		return nil, sonicerr.Wire(sonicerr.CodeInvalidFormat, "unterminated quote")
	}
	flush()
	return tokens, nil
}

// EscapeQuoted renders s as a `"…"` token safe to embed in a response
// or re-parsed command line, escaping \, ", and newline.
func EscapeQuoted(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Banner is the line sent immediately on connection accept.
func Banner() string {
	return fmt.Sprintf("CONNECTED <sonic-server v%s>", ServerVersion)
}

// Started replies to a successful START.
func Started(mode string, buffer int) string {
	return fmt.Sprintf("STARTED %s protocol(1) buffer(%d)", mode, buffer)
}

// OK replies to a no-value ingest command.
func OK() string { return "OK" }

// Result replies to a numeric-value ingest command.
func Result(n int) string { return fmt.Sprintf("RESULT %d", n) }

// Pending announces an asynchronously dispatched search job.
func Pending(marker string) string { return fmt.Sprintf("PENDING %s", marker) }

// EventQuery is the terminal async reply to QUERY.
func EventQuery(marker string, oids []string) string { return event("QUERY", marker, oids) }

// EventSuggest is the terminal async reply to SUGGEST.
func EventSuggest(marker string, words []string) string { return event("SUGGEST", marker, words) }

// EventList is the terminal async reply to LIST.
func EventList(marker string, words []string) string { return event("LIST", marker, words) }

func event(kind, marker string, values []string) string {
	if len(values) == 0 {
		return fmt.Sprintf("EVENT %s %s", kind, marker)
	}
	return fmt.Sprintf("EVENT %s %s %s", kind, marker, strings.Join(values, " "))
}

// Pong replies to PING.
func Pong() string { return "PONG" }

// Ended signals connection teardown with the given reason.
func Ended(reason string) string { return fmt.Sprintf("ENDED %s", reason) }

// Err formats an ERR line, including an optional parenthesized hint.
func Err(code string, hint string) string {
	if hint == "" {
		return fmt.Sprintf("ERR %s", code)
	}
	return fmt.Sprintf("ERR %s(%s)", code, hint)
}

// Info formats the INFO command's one-line key=value stats response.
func Info(stats map[string]string) string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	// Deterministic order keeps INFO output stable across calls, which
	// matters for scripted clients diffing successive snapshots.
	sortStrings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, stats[k]))
	}
	return strings.Join(parts, " ")
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
