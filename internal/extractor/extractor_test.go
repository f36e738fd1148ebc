// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package extractor

import (
	"testing"

	"github.com/saferwall/bnd-winmd/internal/cdecl"
	"github.com/saferwall/bnd-winmd/internal/logx"
	"github.com/saferwall/bnd-winmd/internal/rawast"
)

func newTestExtractor(traverse ...string) *Extractor {
	return New("Widgets", "libwidget.so.1", traverse, logx.NewSilent())
}

func TestExtractStructBasic(t *testing.T) {
	e := newTestExtractor("widget.h")
	f := rawast.File{
		Records: []rawast.RecordDecl{
			{
				Name: "Rect",
				Size: 16, Align: 4,
				Loc: rawast.Location{File: "widget.h", Line: 1},
				Fields: []rawast.Field{
					{Name: "x", Type: rawast.Type{Kind: rawast.TypeInt}, OffsetBits: 0, BitWidth: -1},
					{Name: "y", Type: rawast.Type{Kind: rawast.TypeInt}, OffsetBits: 32, BitWidth: -1},
					{Name: "w", Type: rawast.Type{Kind: rawast.TypeInt}, OffsetBits: 64, BitWidth: -1},
					{Name: "h", Type: rawast.Type{Kind: rawast.TypeInt}, OffsetBits: 96, BitWidth: -1},
				},
			},
		},
	}
	out := e.Extract(f)
	if len(out.Structs) != 1 {
		t.Fatalf("got %d structs, want 1", len(out.Structs))
	}
	s := out.Structs[0]
	if s.Name != "Rect" || s.Size != 16 || s.IsUnion {
		t.Fatalf("got %+v", s)
	}
	if len(s.Fields) != 4 {
		t.Fatalf("got %d fields, want 4", len(s.Fields))
	}
}

func TestExtractUnionForcesZeroOffsets(t *testing.T) {
	e := newTestExtractor("widget.h")
	f := rawast.File{
		Records: []rawast.RecordDecl{
			{
				Name: "N_u", IsUnion: true, Size: 16, Align: 4,
				Loc: rawast.Location{File: "widget.h"},
				Fields: []rawast.Field{
					{Name: "a", Type: rawast.Type{Kind: rawast.TypeUChar}, OffsetBits: 0, BitWidth: -1},
					{Name: "b", Type: rawast.Type{Kind: rawast.TypeUInt}, OffsetBits: 0, BitWidth: -1},
				},
			},
		},
	}
	out := e.Extract(f)
	for _, fld := range out.Structs[0].Fields {
		if fld.OffsetBits != 0 {
			t.Fatalf("union field %q has nonzero offset %d", fld.Name, fld.OffsetBits)
		}
	}
}

// TestExtractPromotedAnonymousAggregateProducesBothStructDefs exercises the
// shape clangdriver now actually produces for "struct N { union {...} u; }"
// (see clangdriver/visitor.go's anonymousFieldRecord): the anonymous union
// arrives as its own RecordDecl named "N_u", and N's field for it already
// carries that synthesized name — the extractor just has to lower both.
func TestExtractPromotedAnonymousAggregateProducesBothStructDefs(t *testing.T) {
	e := newTestExtractor("widget.h")
	f := rawast.File{
		Records: []rawast.RecordDecl{
			{
				Name: "N", Size: 16, Align: 4,
				Loc: rawast.Location{File: "widget.h"},
				Fields: []rawast.Field{
					{Name: "tag", Type: rawast.Type{Kind: rawast.TypeInt}, OffsetBits: 0, BitWidth: -1},
					{Name: "u", Type: rawast.Type{Kind: rawast.TypeRecord, ReferredName: "N_u", CanonicalSize: 8}, OffsetBits: 32, BitWidth: -1},
				},
			},
			{
				Name: "N_u", IsUnion: true, Size: 8, Align: 4,
				Loc: rawast.Location{File: "widget.h"},
				Fields: []rawast.Field{
					{Name: "i", Type: rawast.Type{Kind: rawast.TypeInt}, OffsetBits: 0, BitWidth: -1},
					{Name: "f", Type: rawast.Type{Kind: rawast.TypeFloat}, OffsetBits: 0, BitWidth: -1},
				},
			},
		},
	}
	out := e.Extract(f)
	if len(out.Structs) != 2 {
		t.Fatalf("got %d structs, want 2 (N and promoted N_u)", len(out.Structs))
	}
	var n, nu *cdecl.StructDef
	for i := range out.Structs {
		switch out.Structs[i].Name {
		case "N":
			n = &out.Structs[i]
		case "N_u":
			nu = &out.Structs[i]
		}
	}
	if n == nil || nu == nil {
		t.Fatalf("expected both N and N_u, got %+v", out.Structs)
	}
	if !nu.IsUnion {
		t.Fatalf("N_u should be a union")
	}
	var uField *cdecl.Field
	for i := range n.Fields {
		if n.Fields[i].Name == "u" {
			uField = &n.Fields[i]
		}
	}
	if uField == nil || uField.Type.Kind != cdecl.KindNamed || uField.Type.Name != "N_u" {
		t.Fatalf("N.u should be Named{N_u}, got %+v", uField)
	}
}

func TestExtractEnumNamedSignedness(t *testing.T) {
	e := newTestExtractor("widget.h")
	f := rawast.File{
		Enums: []rawast.EnumDecl{
			{
				Name:       "Color",
				Underlying: rawast.Type{Kind: rawast.TypeUInt},
				Loc:        rawast.Location{File: "widget.h"},
				Constants: []rawast.EnumConstant{
					{Name: "COLOR_RED", Value: 0},
					{Name: "COLOR_GREEN", Value: 1},
					{Name: "COLOR_BLUE", Value: 2},
				},
			},
		},
	}
	out := e.Extract(f)
	if len(out.Enums) != 1 || len(out.Consts) != 0 {
		t.Fatalf("got %d enums %d consts", len(out.Enums), len(out.Consts))
	}
	if out.Enums[0].Underlying.Primitive != cdecl.U32 {
		t.Fatalf("got underlying %v", out.Enums[0].Underlying)
	}
}

func TestExtractAnonymousEnumPromotesToConstants(t *testing.T) {
	e := newTestExtractor("widget.h")
	f := rawast.File{
		Enums: []rawast.EnumDecl{
			{
				Name:       "",
				Underlying: rawast.Type{Kind: rawast.TypeInt},
				Loc:        rawast.Location{File: "widget.h"},
				Constants: []rawast.EnumConstant{
					{Name: "MAX_WIDGETS", Value: 256},
				},
			},
		},
	}
	out := e.Extract(f)
	if len(out.Enums) != 0 {
		t.Fatalf("anonymous enum should not produce an EnumDef, got %d", len(out.Enums))
	}
	if len(out.Consts) != 1 || out.Consts[0].Name != "MAX_WIDGETS" || out.Consts[0].Value.Int != 256 {
		t.Fatalf("got %+v", out.Consts)
	}
}

func TestExtractVariadicFunctionDropped(t *testing.T) {
	e := newTestExtractor("fcntl.h")
	f := rawast.File{
		Funcs: []rawast.FunctionDecl{
			{Name: "open", Ret: rawast.Type{Kind: rawast.TypeInt}, Variadic: true, Loc: rawast.Location{File: "fcntl.h"}},
			{Name: "creat", Ret: rawast.Type{Kind: rawast.TypeInt}, Loc: rawast.Location{File: "fcntl.h"}},
		},
	}
	out := e.Extract(f)
	if len(out.Funcs) != 1 || out.Funcs[0].Name != "creat" {
		t.Fatalf("got %+v", out.Funcs)
	}
}

func TestExtractDuplicateFunctionNameDropped(t *testing.T) {
	e := newTestExtractor("unistd.h")
	f := rawast.File{
		Funcs: []rawast.FunctionDecl{
			{Name: "read", Ret: rawast.Type{Kind: rawast.TypeLong}, Loc: rawast.Location{File: "unistd.h"}},
			{Name: "read", Ret: rawast.Type{Kind: rawast.TypeLong}, Loc: rawast.Location{File: "unistd.h"}},
		},
	}
	out := e.Extract(f)
	if len(out.Funcs) != 1 {
		t.Fatalf("got %d funcs, want 1", len(out.Funcs))
	}
}

func TestExtractArrayParamDecaysToPointer(t *testing.T) {
	e := newTestExtractor("widget.h")
	f := rawast.File{
		Funcs: []rawast.FunctionDecl{
			{
				Name: "fill",
				Ret:  rawast.Type{Kind: rawast.TypeVoid},
				Loc:  rawast.Location{File: "widget.h"},
				Params: []rawast.ParamDecl{
					{Name: "buf", Type: rawast.Type{
						Kind:         rawast.TypeConstantArray,
						ArrayElement: &rawast.Type{Kind: rawast.TypeInt},
						ArrayLength:  4,
					}},
				},
			},
		},
	}
	out := e.Extract(f)
	if len(out.Funcs) != 1 || len(out.Funcs[0].Params) != 1 {
		t.Fatalf("got %+v", out.Funcs)
	}
	p := out.Funcs[0].Params[0]
	if p.Type.Kind != cdecl.KindPtr {
		t.Fatalf("array param did not decay to pointer: %v", p.Type)
	}
}

func TestExtractTraverseFiltersByFileSuffix(t *testing.T) {
	e := newTestExtractor("fcntl.h")
	f := rawast.File{
		Funcs: []rawast.FunctionDecl{
			{Name: "open", Ret: rawast.Type{Kind: rawast.TypeInt}, Loc: rawast.Location{File: "bits/fcntl-linux.h"}},
			{Name: "creat", Ret: rawast.Type{Kind: rawast.TypeInt}, Loc: rawast.Location{File: "fcntl.h"}},
		},
	}
	out := e.Extract(f)
	if len(out.Funcs) != 1 || out.Funcs[0].Name != "creat" {
		t.Fatalf("got %+v, expected only fcntl.h-local decl in traverse scope", out.Funcs)
	}
}

func TestExtractOpaqueVoidTypedefBecomesISize(t *testing.T) {
	e := newTestExtractor("widget.h")
	f := rawast.File{
		Typedefs: []rawast.TypedefDecl{
			{Name: "Handle", Aliased: rawast.Type{Kind: rawast.TypeVoid}, Loc: rawast.Location{File: "widget.h"}},
		},
	}
	out := e.Extract(f)
	if len(out.Typedefs) != 1 {
		t.Fatalf("got %d typedefs", len(out.Typedefs))
	}
	td := out.Typedefs[0]
	if td.Aliased.Kind != cdecl.KindPrimitive || td.Aliased.Primitive != cdecl.ISize {
		t.Fatalf("opaque void typedef got %v, want ISize", td.Aliased)
	}
}

func TestExtractOpaqueRecordTypedefBecomesISize(t *testing.T) {
	e := newTestExtractor("widget.h")
	f := rawast.File{
		Typedefs: []rawast.TypedefDecl{
			{
				Name: "Handle",
				Aliased: rawast.Type{
					Kind:          rawast.TypeRecord,
					ReferredName: "X",
					CanonicalSize: -1, // X is declared but never defined in this partition
				},
				Loc: rawast.Location{File: "widget.h"},
			},
		},
	}
	out := e.Extract(f)
	if len(out.Typedefs) != 1 {
		t.Fatalf("got %d typedefs", len(out.Typedefs))
	}
	td := out.Typedefs[0]
	if td.Aliased.Kind != cdecl.KindPrimitive || td.Aliased.Primitive != cdecl.ISize {
		t.Fatalf("opaque record typedef (typedef struct X Y) got %v, want ISize", td.Aliased)
	}
}

func TestExtractFunctionPointerTypedefIsDelegate(t *testing.T) {
	e := newTestExtractor("widget.h")
	f := rawast.File{
		Typedefs: []rawast.TypedefDecl{
			{
				Name: "CompareFunc",
				Loc:  rawast.Location{File: "widget.h"},
				Aliased: rawast.Type{
					Kind: rawast.TypePointer,
					Pointee: &rawast.Type{
						Kind:       rawast.TypeFunctionProto,
						FuncReturn: &rawast.Type{Kind: rawast.TypeInt},
						FuncParams: []rawast.Type{
							{Kind: rawast.TypePointer, Pointee: &rawast.Type{Kind: rawast.TypeVoid, IsConstQual: true}},
							{Kind: rawast.TypePointer, Pointee: &rawast.Type{Kind: rawast.TypeVoid, IsConstQual: true}},
						},
					},
				},
			},
		},
	}
	out := e.Extract(f)
	if len(out.Typedefs) != 1 || !out.Typedefs[0].IsDelegate {
		t.Fatalf("got %+v, want a delegate typedef", out.Typedefs)
	}
}

func TestExtractWellKnownTypedefShortCircuits(t *testing.T) {
	e := newTestExtractor("widget.h")
	ct := e.mapType(rawast.Type{Kind: rawast.TypeTypedef, ReferredName: "uint32_t"})
	if ct.Kind != cdecl.KindPrimitive || ct.Primitive != cdecl.U32 {
		t.Fatalf("got %v, want U32 primitive", ct)
	}
}

func TestExtractMacroConstant(t *testing.T) {
	e := newTestExtractor("widget.h")
	f := rawast.File{
		Macros: []rawast.MacroConstant{
			{Name: "MAX_WIDGETS", Tokens: []string{"256"}, Loc: rawast.Location{File: "widget.h"}},
			{Name: "GARBAGE", Tokens: []string{"(", "1"}, Loc: rawast.Location{File: "widget.h"}},
		},
	}
	out := e.Extract(f)
	if len(out.Consts) != 1 || out.Consts[0].Name != "MAX_WIDGETS" || out.Consts[0].Value.Int != 256 {
		t.Fatalf("got %+v", out.Consts)
	}
}
