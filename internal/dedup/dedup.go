// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package dedup implements the deduplication pass of spec.md §4.5: once
// the registry knows which partition owns each named type, every other
// partition's duplicate declaration of that name is removed. Functions
// and constants are left untouched — the libc subset this tool targets
// has no cross-partition function-name collisions to resolve.
package dedup

import (
	"github.com/saferwall/bnd-winmd/internal/cdecl"
	"github.com/saferwall/bnd-winmd/internal/registry"
)

// Apply removes, from each partition in partitions, any Struct/Enum/
// Typedef entity whose name the registry attributes to a different
// partition's namespace. Extraction order of the surviving entities is
// preserved.
func Apply(partitions []cdecl.PartitionExtract, r *registry.Registry) []cdecl.PartitionExtract {
	out := make([]cdecl.PartitionExtract, len(partitions))
	for i, p := range partitions {
		out[i] = cdecl.PartitionExtract{
			Namespace: p.Namespace,
			Library:   p.Library,
			Funcs:     p.Funcs,
			Consts:    p.Consts,
		}

		for _, s := range p.Structs {
			if r.Owns(s.Name, p.Namespace) {
				out[i].Structs = append(out[i].Structs, s)
			}
		}
		for _, en := range p.Enums {
			if r.Owns(en.Name, p.Namespace) {
				out[i].Enums = append(out[i].Enums, en)
			}
		}
		for _, td := range p.Typedefs {
			if r.Owns(td.Name, p.Namespace) {
				out[i].Typedefs = append(out[i].Typedefs, td)
			}
		}
	}
	return out
}
