// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package peread

import (
	"testing"

	"github.com/saferwall/bnd-winmd/internal/cdecl"
	"github.com/saferwall/bnd-winmd/internal/emitter"
	"github.com/saferwall/bnd-winmd/internal/logx"
	"github.com/saferwall/bnd-winmd/internal/peimage"
	"github.com/saferwall/bnd-winmd/internal/registry"
)

func samplePartition() cdecl.PartitionExtract {
	i32 := cdecl.PrimitiveT(cdecl.I32)
	return cdecl.PartitionExtract{
		Namespace: "Widget",
		Library:   "libwidget.so.1",
		Structs: []cdecl.StructDef{
			{
				Name: "Point",
				Fields: []cdecl.Field{
					{Name: "x", Type: i32},
					{Name: "y", Type: i32},
				},
				Size:  8,
				Align: 4,
			},
			{
				Name:    "Variant",
				IsUnion: true,
				Fields: []cdecl.Field{
					{Name: "asInt", Type: i32},
					{Name: "asFloat", Type: cdecl.PrimitiveT(cdecl.F32)},
				},
				Size:  4,
				Align: 4,
			},
		},
		Funcs: []cdecl.FunctionDef{{
			Name: "widget_create",
			Ret:  cdecl.PrimitiveT(cdecl.ISize),
			Params: []cdecl.Param{
				{Name: "config", Type: cdecl.PtrT(i32, true), IsConstPtr: true},
			},
			Library: "libwidget.so.1",
		}},
	}
}

// buildAssembly runs a partition through the real emitter and PE shell
// builder, the same path orchestrator.Build uses.
func buildAssembly(t *testing.T) ([]byte, cdecl.PartitionExtract) {
	t.Helper()
	p := samplePartition()
	partitions := []cdecl.PartitionExtract{p}
	reg := registry.Build(partitions)
	e := emitter.New(reg, logx.NewSilent())
	w := e.Emit("widgets.winmd", partitions)
	return peimage.BuildFromMetadataRoot(w.Bytes()), p
}

func TestValidateRoundTripsTypeDefNames(t *testing.T) {
	image, p := buildAssembly(t)

	summary, err := Validate(image)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if summary.ModuleName != "widgets.winmd" {
		t.Fatalf("ModuleName = %q, want widgets.winmd", summary.ModuleName)
	}

	want := map[string]bool{}
	for _, s := range p.Structs {
		want[s.Name] = true
	}
	got := map[string]bool{}
	for _, td := range summary.TypeDefs {
		if td.Namespace == p.Namespace {
			got[td.Name] = true
		}
	}
	for name := range want {
		if !got[name] {
			t.Fatalf("TypeDef %q not found after round trip; got %+v", name, summary.TypeDefs)
		}
	}
}

func TestValidateRoundTripsClassLayoutSizeAndPacking(t *testing.T) {
	image, p := buildAssembly(t)

	summary, err := Validate(image)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	nameByRid := map[uint32]string{}
	for i, td := range summary.TypeDefs {
		nameByRid[uint32(i+1)] = td.Name
	}

	wantByName := map[string]cdecl.StructDef{}
	for _, s := range p.Structs {
		wantByName[s.Name] = s
	}

	found := map[string]bool{}
	for _, cl := range summary.ClassLayouts {
		name, ok := nameByRid[cl.TypeDef]
		if !ok {
			continue
		}
		want, ok := wantByName[name]
		if !ok {
			continue
		}
		found[name] = true
		if uint32(cl.PackingSize) != uint32(want.Align) {
			t.Fatalf("%s: ClassLayout.PackingSize = %d, want %d", name, cl.PackingSize, want.Align)
		}
		if uint64(cl.ClassSize) != want.Size {
			t.Fatalf("%s: ClassLayout.ClassSize = %d, want %d", name, cl.ClassSize, want.Size)
		}
	}
	for name := range wantByName {
		if !found[name] {
			t.Fatalf("no ClassLayout row resolved back to struct %q", name)
		}
	}
}

func TestValidateRoundTripsFieldNames(t *testing.T) {
	image, p := buildAssembly(t)

	summary, err := Validate(image)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	var wantFields []string
	for _, s := range p.Structs {
		for _, f := range s.Fields {
			wantFields = append(wantFields, f.Name)
		}
	}
	gotFields := map[string]bool{}
	for _, f := range summary.Fields {
		gotFields[f.Name] = true
	}
	for _, name := range wantFields {
		if !gotFields[name] {
			t.Fatalf("field %q missing after round trip; got %+v", name, summary.Fields)
		}
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	if _, err := Validate([]byte("not a PE file")); err == nil {
		t.Fatal("expected an error for non-PE input")
	}
}
