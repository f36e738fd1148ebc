// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package header resolves logical header names to absolute paths using a
// declared list of search roots, mirroring what libclang itself does when
// it walks -I include paths. Getting this wrong means source-location
// filtering in the extractor silently rejects declarations it should
// accept (spec §4.1).
package header

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/saferwall/bnd-winmd/internal/bnderr"
)

// Resolver resolves a logical header path against an ordered list of
// search roots.
type Resolver struct {
	roots []string
}

// New builds a Resolver over roots, scanned in the given order.
func New(roots []string) *Resolver {
	cp := make([]string, len(roots))
	copy(cp, roots)
	return &Resolver{roots: cp}
}

// Resolve returns the first existing absolute path for logical, scanning
// roots in declared order. If logical is already absolute it is used
// directly without consulting the roots, matching the clang driver's own
// behaviour for an absolute #include path.
func (r *Resolver) Resolve(logical string) (string, error) {
	if filepath.IsAbs(logical) {
		if fileExists(logical) {
			return logical, nil
		}
		return "", bnderr.New(bnderr.Header, &NotFoundError{Logical: logical, Roots: r.roots})
	}

	for _, root := range r.roots {
		candidate := filepath.Join(root, logical)
		if fileExists(candidate) {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return "", bnderr.New(bnderr.Header, err)
			}
			return abs, nil
		}
	}

	return "", bnderr.New(bnderr.Header, &NotFoundError{Logical: logical, Roots: r.roots})
}

// Roots returns the configured search roots, in declared order.
func (r *Resolver) Roots() []string {
	cp := make([]string, len(r.roots))
	copy(cp, r.roots)
	return cp
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// NotFoundError names the logical path and roots a failed Resolve
// attempted, per spec §4.1.
type NotFoundError struct {
	Logical string
	Roots   []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("header %q not found in any of %v", e.Logical, e.Roots)
}
