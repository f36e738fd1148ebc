// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package emitter

import (
	"testing"

	"github.com/saferwall/bnd-winmd/internal/cdecl"
	"github.com/saferwall/bnd-winmd/internal/logx"
	"github.com/saferwall/bnd-winmd/internal/registry"
)

func samplePartition() cdecl.PartitionExtract {
	i32 := cdecl.PrimitiveT(cdecl.I32)
	constI32Ptr := cdecl.PtrT(i32, true)

	return cdecl.PartitionExtract{
		Namespace: "Widget",
		Library:   "libwidget.so.1",
		Enums: []cdecl.EnumDef{{
			Name:       "Color",
			Underlying: i32,
			Variants: []cdecl.EnumVariant{
				{Name: "Red", Value: 0},
				{Name: "Green", Value: 1},
			},
		}},
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
				},
				Size:  4,
				Align: 4,
			},
		},
		Typedefs: []cdecl.TypedefDef{
			{Name: "WidgetHandle", Aliased: cdecl.PrimitiveT(cdecl.ISize)},
			{
				Name:       "WidgetCallback",
				Aliased:    cdecl.FnPtrT(i32, []cdecl.CType{i32}, cdecl.CCDefault),
				IsDelegate: true,
			},
		},
		Funcs: []cdecl.FunctionDef{{
			Name: "widget_create",
			Ret:  cdecl.PrimitiveT(cdecl.ISize),
			Params: []cdecl.Param{
				{Name: "config", Type: constI32Ptr, IsConstPtr: true},
			},
			Library: "libwidget.so.1",
		}},
		Consts: []cdecl.ConstantDef{{
			Name:  "WIDGET_MAX",
			Value: cdecl.ConstantValue{Kind: cdecl.ConstInteger, Int: 256},
			Type:  i32,
		}},
	}
}

func TestEmitProducesValidAssembly(t *testing.T) {
	partitions := []cdecl.PartitionExtract{samplePartition()}
	reg := registry.Build(partitions)

	e := New(reg, logx.NewSilent())
	w := e.Emit("widgets.winmd", partitions)

	if w.TypeDefCount() == 0 {
		t.Fatal("expected at least one TypeDef to be emitted")
	}
	out := w.Bytes()
	if len(out) < 4 {
		t.Fatal("Bytes() produced suspiciously small output")
	}
}

func TestEmitCrossPartitionReferenceUsesTypeRef(t *testing.T) {
	named := cdecl.NamedT("Point", nil)
	p1 := samplePartition()
	p2 := cdecl.PartitionExtract{
		Namespace: "Other",
		Library:   "libother.so.1",
		Funcs: []cdecl.FunctionDef{{
			Name:   "takes_point",
			Ret:    cdecl.PrimitiveT(cdecl.Void),
			Params: []cdecl.Param{{Name: "p", Type: cdecl.PtrT(named, false)}},
		}},
	}
	partitions := []cdecl.PartitionExtract{p1, p2}
	reg := registry.Build(partitions)

	e := New(reg, logx.NewSilent())
	w := e.Emit("widgets.winmd", partitions)
	_ = w.Bytes()

	if len(e.crossRefCache) == 0 {
		t.Fatal("expected a cross-partition TypeRef to be cached for Point")
	}
}

// TestEmitUnresolvedNamedTerminates guards against the encodeNamed/Fallback
// infinite-recursion bug: "Ghost" is never registered by any partition, so
// resolveNamed must fail, and encodeType(buf, t.Fallback(), ...) must land
// on a terminal (non-Named) CType rather than recursing on itself forever.
func TestEmitUnresolvedNamedTerminates(t *testing.T) {
	ghost := cdecl.NamedT("Ghost", nil)
	p1 := samplePartition()
	p2 := cdecl.PartitionExtract{
		Namespace: "Other",
		Library:   "libother.so.1",
		Funcs: []cdecl.FunctionDef{{
			Name:   "takes_ghost",
			Ret:    cdecl.PrimitiveT(cdecl.Void),
			Params: []cdecl.Param{{Name: "g", Type: cdecl.PtrT(ghost, false)}},
		}},
	}
	partitions := []cdecl.PartitionExtract{p1, p2}
	reg := registry.Build(partitions)

	e := New(reg, logx.NewSilent())
	w := e.Emit("widgets.winmd", partitions)
	out := w.Bytes()
	if len(out) < 4 {
		t.Fatal("Bytes() produced suspiciously small output")
	}
}
