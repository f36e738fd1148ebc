// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package bnderr is the error taxonomy of spec.md §7: each component
// tags the errors it returns with one of a fixed set of Kinds so the CLI
// can decide the exit code and the orchestrator can decide whether to log
// a warning and continue or abort the build.
package bnderr

import (
	"errors"
	"fmt"
)

// Kind is one of the six error categories spec §7 names.
type Kind int

const (
	// Config covers missing/invalid TOML or a missing required field.
	Config Kind = iota
	// Header covers a header path the resolver could not find.
	Header
	// Parse covers libclang failing to produce a translation unit.
	Parse
	// Unsupported covers a recognised declaration shape not yet mapped;
	// non-fatal, the declaration is skipped and a warning logged.
	Unsupported
	// Invariant covers an internal consistency violation (row ordering,
	// a registry miss with no resolved fallback).
	Invariant
	// IO covers a failure to write the output file.
	IO
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "Config"
	case Header:
		return "Header"
	case Parse:
		return "Parse"
	case Unsupported:
		return "Unsupported"
	case Invariant:
		return "Invariant"
	case IO:
		return "IO"
	default:
		return "Unknown"
	}
}

// Fatal reports whether this Kind should abort the build per spec §7:
// everything except Unsupported is fatal.
func (k Kind) Fatal() bool { return k != Unsupported }

// Error is a taxonomy-tagged error. Location is an optional "file:line"
// style string, used for Unsupported warnings (spec §7 "one structured
// log line per skipped entity").
type Error struct {
	Kind     Kind
	Location string
	Err      error
}

func (e *Error) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Location, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a tagged Error.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Newf builds a tagged Error from a format string, mirroring fmt.Errorf.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// At attaches a source location to an Error, for Unsupported warnings.
func (e *Error) At(location string) *Error {
	e.Location = location
	return e
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind, true
	}
	return 0, false
}
