// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package header

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/saferwall/bnd-winmd/internal/bnderr"
)

func writeTempHeader(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("// stub\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestResolveFindsFirstMatchingRoot(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	writeTempHeader(t, rootB, "widget.h")

	r := New([]string{rootA, rootB})
	got, err := r.Resolve("widget.h")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want, _ := filepath.Abs(filepath.Join(rootB, "widget.h"))
	if got != want {
		t.Fatalf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolvePrefersEarlierRoot(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	writeTempHeader(t, rootA, "widget.h")
	writeTempHeader(t, rootB, "widget.h")

	r := New([]string{rootA, rootB})
	got, err := r.Resolve("widget.h")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want, _ := filepath.Abs(filepath.Join(rootA, "widget.h"))
	if got != want {
		t.Fatalf("Resolve() = %q, want %q (earlier root should win)", got, want)
	}
}

func TestResolveAbsolutePassthrough(t *testing.T) {
	dir := t.TempDir()
	abs := writeTempHeader(t, dir, "widget.h")

	r := New([]string{t.TempDir()})
	got, err := r.Resolve(abs)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != abs {
		t.Fatalf("Resolve() = %q, want %q", got, abs)
	}
}

func TestResolveNotFound(t *testing.T) {
	r := New([]string{t.TempDir(), t.TempDir()})
	_, err := r.Resolve("missing.h")
	if err == nil {
		t.Fatal("expected error for missing header")
	}
	kind, ok := bnderr.KindOf(err)
	if !ok || kind != bnderr.Header {
		t.Fatalf("KindOf(err) = (%v, %v), want (Header, true)", kind, ok)
	}
}

func TestResolveAbsoluteMissing(t *testing.T) {
	r := New([]string{t.TempDir()})
	missing := filepath.Join(t.TempDir(), "gone.h")
	_, err := r.Resolve(missing)
	if err == nil {
		t.Fatal("expected error for missing absolute header")
	}
}
