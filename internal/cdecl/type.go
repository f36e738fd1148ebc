// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package cdecl is the typed intermediate representation lowered from a C
// translation unit: the semantic type algebra (CType) and the declaration
// entities (StructDef, EnumDef, TypedefDef, FunctionDef, ConstantDef) that
// the extractor produces and the emitter consumes.
package cdecl

import "fmt"

// Primitive is a leaf of the CType algebra with no further structure.
type Primitive int

// The primitive kinds. Well-known C typedefs (int8_t, size_t, ...) resolve
// to one of these before canonical resolution so downstream names stay
// stable regardless of which libc header defined the typedef.
const (
	Void Primitive = iota
	Bool
	I8
	U8
	I16
	U16
	I32
	U32
	I64
	U64
	F32
	F64
	ISize
	USize
)

func (p Primitive) String() string {
	names := [...]string{
		"Void", "Bool", "I8", "U8", "I16", "U16", "I32", "U32",
		"I64", "U64", "F32", "F64", "ISize", "USize",
	}
	if int(p) < 0 || int(p) >= len(names) {
		return fmt.Sprintf("Primitive(%d)", int(p))
	}
	return names[p]
}

// CallingConvention distinguishes the calling conventions a FnPtr may carry.
// Only the ones libclang reports for C code are modelled.
type CallingConvention int

const (
	CCDefault CallingConvention = iota
	CCCdecl
	CCStdCall
	CCFastCall
)

// Kind discriminates the variant held by a CType.
type Kind int

const (
	KindPrimitive Kind = iota
	KindPtr
	KindArray
	KindFnPtr
	KindNamed
)

// CType is the semantic type algebra described in spec.md §3. Exactly one
// of the variant-specific fields is meaningful, selected by Kind.
type CType struct {
	Kind Kind

	Primitive Primitive // KindPrimitive

	// KindPtr
	Pointee  *CType
	IsConst  bool

	// KindArray
	Element *CType
	Length  uint64

	// KindFnPtr
	Ret     *CType
	Params  []CType
	CallConv CallingConvention

	// KindNamed. Resolved always carries libclang's canonical type so
	// emission can fall back to a primitive when the registry has no entry
	// for Name — a Named type must never be emitted as a TypeRef to a
	// nonexistent TypeDef.
	Name     string
	Resolved *CType
}

// PrimitiveT constructs a primitive CType.
func PrimitiveT(p Primitive) CType { return CType{Kind: KindPrimitive, Primitive: p} }

// PtrT constructs a pointer CType.
func PtrT(pointee CType, isConst bool) CType {
	return CType{Kind: KindPtr, Pointee: &pointee, IsConst: isConst}
}

// ArrayT constructs a fixed-size array CType.
func ArrayT(element CType, length uint64) CType {
	return CType{Kind: KindArray, Element: &element, Length: length}
}

// FnPtrT constructs a function-pointer signature CType.
func FnPtrT(ret CType, params []CType, cc CallingConvention) CType {
	return CType{Kind: KindFnPtr, Ret: &ret, Params: params, CallConv: cc}
}

// NamedT constructs a reference-by-name CType. resolved may be nil only
// transiently during extraction; by the time extraction completes every
// Named must carry a Resolved fallback (see package doc and spec §3).
func NamedT(name string, resolved *CType) CType {
	return CType{Kind: KindNamed, Name: name, Resolved: resolved}
}

// IsVoid reports whether t is the Void primitive.
func (t CType) IsVoid() bool {
	return t.Kind == KindPrimitive && t.Primitive == Void
}

// Fallback returns the CType emission should use in place of a Named type
// whose name is not present in the registry: its resolved canonical type,
// or itself if it is not Named at all. A Named whose Resolved is nil, or
// itself Named (which would just hand the caller back into the same
// lookup), terminates at Void instead of recursing — a Named must never
// be allowed to be its own fallback.
func (t CType) Fallback() CType {
	if t.Kind != KindNamed {
		return t
	}
	if t.Resolved != nil && t.Resolved.Kind != KindNamed {
		return *t.Resolved
	}
	return PrimitiveT(Void)
}

// String renders a CType for diagnostics and test failure messages.
func (t CType) String() string {
	switch t.Kind {
	case KindPrimitive:
		return t.Primitive.String()
	case KindPtr:
		c := ""
		if t.IsConst {
			c = "const "
		}
		return fmt.Sprintf("Ptr{%s%s}", c, t.Pointee.String())
	case KindArray:
		return fmt.Sprintf("Array{%s; %d}", t.Element.String(), t.Length)
	case KindFnPtr:
		return fmt.Sprintf("FnPtr{%s(...%d args)}", t.Ret.String(), len(t.Params))
	case KindNamed:
		return fmt.Sprintf("Named{%s}", t.Name)
	default:
		return "CType(?)"
	}
}

// IsDelegateShaped reports whether aliasing this CType designates a
// function-pointer typedef per spec §3 ("aliased to Ptr{pointee: FnPtr} or
// bare FnPtr are emitted as delegates, not value-type wrappers").
func (t CType) IsDelegateShaped() (fn CType, ok bool) {
	if t.Kind == KindFnPtr {
		return t, true
	}
	if t.Kind == KindPtr && t.Pointee != nil && t.Pointee.Kind == KindFnPtr {
		return *t.Pointee, true
	}
	return CType{}, false
}
