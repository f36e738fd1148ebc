// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cdecl

// Field is a member of a StructDef.
type Field struct {
	Name       string
	Type       CType
	OffsetBits uint64
	BitWidth   *uint32 // nil unless this is a bit-field.
}

// StructDef models a C struct or union declaration. Invariant: for
// IsUnion == true every field's OffsetBits is 0. Anonymous aggregates
// nested inside a struct are promoted to their own top-level StructDef
// named Parent_FieldName (see extractor).
type StructDef struct {
	Name    string
	Fields  []Field
	Size    uint64 // bytes
	Align   uint64 // bytes
	IsUnion bool
}

// EnumVariant is one (name, value) pair of an EnumDef.
type EnumVariant struct {
	Name  string
	Value int64 // signed storage; reinterpret per Underlying's signedness
}

// EnumDef models a named C enum declaration. Anonymous enums never reach
// this type — their variants are promoted to ConstantDef entries instead
// (see extractor), and Name is therefore never empty here.
type EnumDef struct {
	Name       string
	Underlying CType
	Variants   []EnumVariant
}

// TypedefDef models a C typedef. IsDelegate is set when Aliased is shaped
// like Ptr{FnPtr} or a bare FnPtr, per spec §3/§4.3; such typedefs are
// emitted as delegates rather than value-type wrappers.
type TypedefDef struct {
	Name       string
	Aliased    CType
	IsDelegate bool
}

// Param is one parameter of a FunctionDef.
type Param struct {
	Name        string
	Type        CType
	IsConstPtr  bool
}

// FunctionDef models a non-variadic C function declaration. Variadic
// declarations never reach this type — the extractor drops them before
// they are recorded (spec §3 invariant).
type FunctionDef struct {
	Name    string
	Ret     CType
	Params  []Param
	Library string
}

// ConstantKind discriminates the two literal forms a ConstantDef's value
// may take.
type ConstantKind int

const (
	ConstInteger ConstantKind = iota
	ConstReal
)

// ConstantValue is the tagged literal carried by a ConstantDef.
type ConstantValue struct {
	Kind   ConstantKind
	Signed bool   // meaningful only for ConstInteger
	Int    uint64 // meaningful only for ConstInteger; reinterpret per Signed
	Real   float64
}

// ConstantDef models a single #define macro (or a promoted anonymous enum
// variant) that evaluates to a literal.
type ConstantDef struct {
	Name  string
	Value ConstantValue
	Type  CType
}

// PartitionExtract is the per-partition bucket the extractor fills.
// Ordering within each slice is extraction order, which is preserved
// through registry, dedup, and emission (spec §5 "Ordering guarantees").
type PartitionExtract struct {
	Namespace string
	Library   string

	Structs  []StructDef
	Enums    []EnumDef
	Typedefs []TypedefDef
	Funcs    []FunctionDef
	Consts   []ConstantDef
}
