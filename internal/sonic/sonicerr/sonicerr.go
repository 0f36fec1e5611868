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

// Package sonicerr defines the internal error kinds raised by the storage
// and execution layers, and the closed set of wire codes the channel layer
// is allowed to surface. Internal kinds are deliberately richer than the
// wire codes: the channel maps many internal kinds onto the single
// internal_error code and keeps the detail as a hint.
package sonicerr

import "fmt"

// Kind identifies an internal failure category. Kinds are never sent on
// the wire directly; Map translates them to a Code.
type Kind int

const (
	KindNone Kind = iota
	KindOpenBusy
	KindOpenFailed
	KindIIDExhausted
	KindFSTFailure
	KindLexerFailure
	KindPoolBusy
	KindInternalFailure
)

// KindInternal returns the catch-all internal failure kind, for use at
// call sites that need a Kind value without naming a new constant.
func KindInternal() Kind { return KindInternalFailure }

func (k Kind) String() string {
	switch k {
	case KindOpenBusy:
		return "open_busy"
	case KindOpenFailed:
		return "open_failed"
	case KindIIDExhausted:
		return "iid_exhausted"
	case KindFSTFailure:
		return "fst_failure"
	case KindLexerFailure:
		return "lexer_failure"
	case KindPoolBusy:
		return "pool_busy"
	case KindInternalFailure:
		return "internal_failure"
	default:
		return "none"
	}
}

// Error is a typed internal error that carries enough context for logging
// and for the channel layer to decide whether a cached handle must be
// evicted.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func New(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IIDExhausted reports whether err is (or wraps) a counter-overflow failure.
func IIDExhausted(err error) bool {
	var e *Error
	if as(err, &e) {
		return e.Kind == KindIIDExhausted
	}
	return false
}

// Invalidates reports whether a failure of this kind must cause the owning
// pool handle to be evicted and re-opened on next use (spec §7 propagation
// policy).
func Invalidates(err error) bool {
	var e *Error
	if as(err, &e) {
		switch e.Kind {
		case KindOpenFailed, KindFSTFailure, KindPoolBusy:
			return true
		}
	}
	return false
}

// as is a tiny errors.As shim kept local to the package, used by
// IIDExhausted, Invalidates and Map.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Code is one of the closed set of wire-level error codes from spec §7.
type Code string

const (
	CodeNotRecognized       Code = "not_recognized"
	CodeAuthFailed          Code = "authentication_failed"
	CodeInvalidFormat       Code = "invalid_format"
	CodeInvalidMeta         Code = "invalid_meta"
	CodeShuttingDown        Code = "shutting_down"
	CodeInternalError       Code = "internal_error"
	CodeBufferLineTooLong   Code = "buffer_line_too_long"
	CodeQuit                Code = "quit"
)

// WireError pairs a closed-set Code with an optional parenthesized hint,
// e.g. ERR invalid_format(QUERY <collection> <bucket> "<terms>").
type WireError struct {
	Code Code
	Hint string
}

func (w *WireError) Error() string {
	if w.Hint == "" {
		return string(w.Code)
	}
	return fmt.Sprintf("%s(%s)", w.Code, w.Hint)
}

func Wire(code Code, hint string) *WireError {
	return &WireError{Code: code, Hint: hint}
}

// Map converts an arbitrary error into the wire code it must surface as,
// per the propagation policy in spec §7: anything not already a
// *WireError collapses to internal_error, keeping the internal kind as a
// hint for operators without leaking it as part of the closed set.
func Map(err error) *WireError {
	if err == nil {
		return nil
	}
	if w, ok := err.(*WireError); ok {
		return w
	}
	var e *Error
	if as(err, &e) {
		if e.Kind == KindIIDExhausted {
			return Wire(CodeInternalError, "iid_exhausted")
		}
		return Wire(CodeInternalError, e.Kind.String())
	}
	return Wire(CodeInternalError, "")
}
