// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package clangdriver is the libclang front end of spec.md §4.2: for
// each partition it builds a wrapper translation unit over the
// partition's headers, parses it with a detailed preprocessing record
// (so macro constants are visitable), and walks the resulting cursors
// into the cgo-free rawast.File the extractor consumes. Per spec §5,
// this package owns the single process-global clang.Index for the
// whole run; callers must not construct a second Driver concurrently.
package clangdriver

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-clang/v3.9/clang"

	"github.com/saferwall/bnd-winmd/internal/bnderr"
	"github.com/saferwall/bnd-winmd/internal/header"
	"github.com/saferwall/bnd-winmd/internal/rawast"
)

// Driver owns the process-wide clang index and resolves logical header
// names against a header.Resolver before handing them to libclang.
type Driver struct {
	idx      clang.Index
	resolver *header.Resolver
	args     []string
}

// New builds a Driver. extraArgs are passed verbatim to libclang ahead
// of the generated wrapper TU's own include directives (e.g. "-I" for
// each configured include path).
func New(resolver *header.Resolver, extraArgs []string) *Driver {
	return &Driver{
		idx:      clang.NewIndex(0, 0),
		resolver: resolver,
		args:     extraArgs,
	}
}

// Dispose releases the underlying clang index. Call once the whole run
// is finished.
func (d *Driver) Dispose() { d.idx.Dispose() }

// ParseHeaders resolves each logical header path, builds a wrapper
// translation unit #including all of them in order, and lowers it into
// a rawast.File. The TU is disposed before returning, per spec §5's
// "copy out before the TU drops" rule — nothing in the returned File
// aliases clang-owned memory.
func (d *Driver) ParseHeaders(headers []string) (rawast.File, error) {
	wrapper, err := d.writeWrapper(headers)
	if err != nil {
		return rawast.File{}, err
	}
	defer os.Remove(wrapper)

	tu, err := d.idx.ParseTranslationUnit(
		wrapper,
		d.args,
		nil,
		clang.TranslationUnit_DetailedPreprocessingRecord|clang.TranslationUnit_SkipFunctionBodies,
	)
	if err != clang.Error_Success {
		return rawast.File{}, bnderr.Newf(bnderr.Parse, "libclang failed to parse %s: %v", wrapper, err)
	}
	defer tu.Dispose()

	v := &visitor{tu: tu, out: rawast.File{}}
	tu.TranslationUnitCursor().Visit(v.visit)
	return v.out, nil
}

func (d *Driver) writeWrapper(headers []string) (string, error) {
	f, err := os.CreateTemp("", "bnd-winmd-*.h")
	if err != nil {
		return "", bnderr.New(bnderr.Parse, err)
	}
	defer f.Close()

	for _, h := range headers {
		resolved, err := d.resolver.Resolve(h)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(f, "#include \"%s\"\n", filepath.ToSlash(resolved))
	}
	return f.Name(), nil
}
