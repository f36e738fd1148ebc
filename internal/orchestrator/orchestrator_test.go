// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package orchestrator

import (
	"testing"

	"github.com/saferwall/bnd-winmd/internal/cdecl"
	"github.com/saferwall/bnd-winmd/internal/config"
	"github.com/saferwall/bnd-winmd/internal/emitter"
	"github.com/saferwall/bnd-winmd/internal/logx"
	"github.com/saferwall/bnd-winmd/internal/peimage"
	"github.com/saferwall/bnd-winmd/internal/registry"
)

func TestClangArgsMirrorsIncludePaths(t *testing.T) {
	cfg := &config.Config{IncludePaths: []string{"/usr/include/widget", "/opt/sdk"}}
	args := clangArgs(cfg)
	want := []string{"-I/usr/include/widget", "-I/opt/sdk"}
	if len(args) != len(want) {
		t.Fatalf("clangArgs = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("clangArgs[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

// TestSelfCheckValidatesAnEmittedAssembly exercises the same
// emit-then-wrap path Build follows, without going through
// libclang, confirming selfCheck accepts what peimage.Build produces.
func TestSelfCheckValidatesAnEmittedAssembly(t *testing.T) {
	p := cdecl.PartitionExtract{
		Namespace: "Widget",
		Library:   "libwidget.so.1",
		Enums: []cdecl.EnumDef{{
			Name:       "Color",
			Underlying: cdecl.PrimitiveT(cdecl.I32),
			Variants:   []cdecl.EnumVariant{{Name: "Red", Value: 0}},
		}},
	}
	partitions := []cdecl.PartitionExtract{p}
	reg := registry.Build(partitions)
	e := emitter.New(reg, logx.NewSilent())
	w := e.Emit("widgets.winmd", partitions)

	assembly := peimage.BuildFromMetadataRoot(w.Bytes())
	if err := selfCheck(assembly, partitions); err != nil {
		t.Fatalf("selfCheck: %v", err)
	}
}

// TestSelfCheckCatchesStructSizeMismatch confirms selfCheck actually
// compares the round-tripped ClassLayout rows against what the emitter
// was given, not just that peread.Validate parses without error.
func TestSelfCheckCatchesStructSizeMismatch(t *testing.T) {
	p := cdecl.PartitionExtract{
		Namespace: "Widget",
		Library:   "libwidget.so.1",
		Structs: []cdecl.StructDef{{
			Name:  "Point",
			Size:  8,
			Align: 4,
			Fields: []cdecl.Field{
				{Name: "x", Type: cdecl.PrimitiveT(cdecl.I32)},
				{Name: "y", Type: cdecl.PrimitiveT(cdecl.I32)},
			},
		}},
	}
	partitions := []cdecl.PartitionExtract{p}
	reg := registry.Build(partitions)
	e := emitter.New(reg, logx.NewSilent())
	w := e.Emit("widgets.winmd", partitions)
	assembly := peimage.BuildFromMetadataRoot(w.Bytes())

	tampered := make([]cdecl.PartitionExtract, len(partitions))
	copy(tampered, partitions)
	tampered[0].Structs = append([]cdecl.StructDef{}, partitions[0].Structs...)
	tampered[0].Structs[0].Size = 16 // does not match what was actually emitted

	if err := selfCheck(assembly, tampered); err == nil {
		t.Fatal("expected selfCheck to catch a struct-size mismatch")
	}
}
