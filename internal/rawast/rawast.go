// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package rawast is the cgo-free intermediate form the extractor consumes.
// clangdriver walks real libclang cursors and copies what it finds into
// these plain Go structs before the translation unit is disposed; nothing
// downstream of this package ever touches a clang.Cursor or clang.Type.
// That split exists for two reasons: libclang cursors are only valid for
// the lifetime of their translation unit (spec §5 requires extraction to
// copy entities out before dropping the TU), and it lets the extractor be
// exercised by tests that build File values directly instead of compiling
// real C through cgo.
package rawast

// TypeKind mirrors the small subset of CXTypeKind this tool cares about.
type TypeKind int

const (
	TypeInvalid TypeKind = iota
	TypeVoid
	TypeBool
	TypeChar
	TypeSChar
	TypeUChar
	TypeShort
	TypeUShort
	TypeInt
	TypeUInt
	TypeLong
	TypeULong
	TypeLongLong
	TypeULongLong
	TypeFloat
	TypeDouble
	TypePointer
	TypeConstantArray
	TypeIncompleteArray
	TypeFunctionProto
	TypeTypedef
	TypeRecord
	TypeEnum
)

// Type is a copied-out clang type: Kind plus the extra fields needed to
// reconstruct a cdecl.CType (pointee, array element/length, function
// signature, or a referenced declaration name).
type Type struct {
	Kind          TypeKind
	IsConstQual   bool
	Pointee       *Type
	ArrayElement  *Type
	ArrayLength   int64 // -1 for incomplete arrays
	FuncReturn    *Type
	FuncParams    []Type
	FuncVariadic  bool
	CallConv      string // "cdecl", "stdcall", "fastcall", "thiscall", ""
	ReferredName  string // typedef/record/enum spelling this type names
	CanonicalSize int64  // sizeof, in bytes, -1 if unknown
}

// Location is a copied-out source location, used for diagnostics and for
// Unsupported-skip log lines (spec §7).
type Location struct {
	File string
	Line uint32
}

// Field is a copied-out struct/union member.
type Field struct {
	Name      string
	Type      Type
	OffsetBits int64
	BitWidth   int32 // -1 when not a bitfield
	Loc        Location
}

// RecordDecl is a copied-out struct/union declaration.
type RecordDecl struct {
	Name    string // empty for anonymous records
	IsUnion bool
	Fields  []Field
	Size    int64
	Align   int64
	Loc     Location
}

// EnumConstant is a copied-out enumerator.
type EnumConstant struct {
	Name  string
	Value int64
}

// EnumDecl is a copied-out enum declaration.
type EnumDecl struct {
	Name       string // empty for anonymous enums
	Underlying Type
	Constants  []EnumConstant
	Loc        Location
}

// TypedefDecl is a copied-out typedef.
type TypedefDecl struct {
	Name    string
	Aliased Type
	Loc     Location
}

// ParamDecl is a copied-out function parameter.
type ParamDecl struct {
	Name string
	Type Type
}

// FunctionDecl is a copied-out function declaration/prototype.
type FunctionDecl struct {
	Name     string
	Ret      Type
	Params   []ParamDecl
	Variadic bool
	CallConv string
	Loc      Location
}

// MacroConstant is a copied-out object-like #define the preprocessor
// recorded, before the extractor attempts to parse its token text into a
// ConstantValue.
type MacroConstant struct {
	Name   string
	Tokens []string
	Loc    Location
}

// File is everything clangdriver copied out of one partition's
// translation unit: the flat set of top-level declarations and macros
// visible from the headers that partition listed. Nothing is filtered
// by source location here; the extractor applies the partition's
// traverse list.
type File struct {
	Records  []RecordDecl
	Enums    []EnumDecl
	Typedefs []TypedefDecl
	Funcs    []FunctionDecl
	Macros   []MacroConstant
}
