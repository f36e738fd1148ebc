// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package registry is the cross-partition type registry of spec.md §4.4:
// a deterministic, first-writer-wins map from a named C entity to the
// partition namespace that owns its definition. It is built once, after
// every partition has been extracted, and is read-only for the rest of
// the build — the emitter consults it to decide whether a Named CType
// becomes a TypeDef-valued operand (owned by the current partition) or a
// TypeRef (owned by an earlier one).
package registry

import "github.com/saferwall/bnd-winmd/internal/cdecl"

// Kind tags which entity bucket a registry entry came from.
type Kind int

const (
	KindStruct Kind = iota
	KindEnum
	KindTypedef
	KindDelegate
)

// Entry is the (namespace, kind) pair a name resolves to.
type Entry struct {
	Namespace string
	Kind      Kind
}

// Registry is the read-only name -> Entry map built by Build.
type Registry struct {
	entries map[string]Entry
}

// Lookup returns the owning Entry for name, if any named entity in any
// partition declared it.
func (r *Registry) Lookup(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Owns reports whether namespace is the owner of name. A name absent
// from the registry entirely is considered un-owned by anyone.
func (r *Registry) Owns(name, namespace string) bool {
	e, ok := r.entries[name]
	return ok && e.Namespace == namespace
}

// Build inserts every named entity from every partition, in the given
// declared order, first writer wins: a name already present keeps its
// first entry and later declarations of the same name are ignored here
// (the dedup pass is what actually removes them from their partitions).
func Build(partitions []cdecl.PartitionExtract) *Registry {
	r := &Registry{entries: make(map[string]Entry)}
	for _, p := range partitions {
		for _, s := range p.Structs {
			r.insert(s.Name, p.Namespace, KindStruct)
		}
		for _, en := range p.Enums {
			r.insert(en.Name, p.Namespace, KindEnum)
		}
		for _, td := range p.Typedefs {
			kind := KindTypedef
			if td.IsDelegate {
				kind = KindDelegate
			}
			r.insert(td.Name, p.Namespace, kind)
		}
	}
	return r
}

func (r *Registry) insert(name, namespace string, kind Kind) {
	if name == "" {
		return
	}
	if _, exists := r.entries[name]; exists {
		return
	}
	r.entries[name] = Entry{Namespace: namespace, Kind: kind}
}
