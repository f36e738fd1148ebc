// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dedup

import (
	"testing"

	"github.com/saferwall/bnd-winmd/internal/cdecl"
	"github.com/saferwall/bnd-winmd/internal/registry"
)

func TestApplyRemovesShadowedStruct(t *testing.T) {
	types := cdecl.PartitionExtract{
		Namespace: "Types",
		Structs:   []cdecl.StructDef{{Name: "off_t"}},
	}
	fcntl := cdecl.PartitionExtract{
		Namespace: "Fcntl",
		Structs:   []cdecl.StructDef{{Name: "off_t"}},
		Funcs:     []cdecl.FunctionDef{{Name: "creat"}},
	}

	r := registry.Build([]cdecl.PartitionExtract{types, fcntl})
	out := Apply([]cdecl.PartitionExtract{types, fcntl}, r)

	if len(out[0].Structs) != 1 {
		t.Fatalf("owning partition lost its struct: %+v", out[0])
	}
	if len(out[1].Structs) != 0 {
		t.Fatalf("shadowed partition should have zero off_t structs, got %+v", out[1].Structs)
	}
	if len(out[1].Funcs) != 1 {
		t.Fatalf("functions must never be deduplicated, got %+v", out[1].Funcs)
	}
}

func TestApplyPreservesOrder(t *testing.T) {
	p := cdecl.PartitionExtract{
		Namespace: "Widgets",
		Structs: []cdecl.StructDef{
			{Name: "A"}, {Name: "B"}, {Name: "C"},
		},
	}
	r := registry.Build([]cdecl.PartitionExtract{p})
	out := Apply([]cdecl.PartitionExtract{p}, r)
	want := []string{"A", "B", "C"}
	if len(out[0].Structs) != len(want) {
		t.Fatalf("got %d structs, want %d", len(out[0].Structs), len(want))
	}
	for i, name := range want {
		if out[0].Structs[i].Name != name {
			t.Fatalf("order mismatch at %d: got %q want %q", i, out[0].Structs[i].Name, name)
		}
	}
}
