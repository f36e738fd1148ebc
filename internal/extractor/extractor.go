// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package extractor lowers a rawast.File copied out of one partition's
// translation unit into a cdecl.PartitionExtract: the location/variadic/
// duplicate filters, anonymous-aggregate promotion, delegate detection,
// and macro-constant evaluation fallback all live here. It never touches
// libclang directly — clangdriver has already copied everything it needs
// into plain Go structs, which is what makes this package testable with
// fixtures instead of a real compiler.
package extractor

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/saferwall/bnd-winmd/internal/bnderr"
	"github.com/saferwall/bnd-winmd/internal/cdecl"
	"github.com/saferwall/bnd-winmd/internal/logx"
	"github.com/saferwall/bnd-winmd/internal/rawast"
)

// longIsI64 decides the host's long/ulong width from a compile-time host
// target constant rather than from libclang's sizeof, per spec §9: the
// generated bindings call into the host libc, so long follows the host
// ABI (64-bit on the LP64 Linux hosts this tool runs on), not the 32-bit
// Win32 convention the emitted WinMD otherwise targets.
var longIsI64 = bits.UintSize == 64

// wellKnownTypedefs short-circuits the fixed-width libc typedef names to
// primitives before canonical resolution, so the emitted type name does
// not depend on which header (bits/types.h, stdint.h, ...) happened to
// define the alias first.
var wellKnownTypedefs = map[string]cdecl.Primitive{
	"int8_t":   cdecl.I8,
	"uint8_t":  cdecl.U8,
	"int16_t":  cdecl.I16,
	"uint16_t": cdecl.U16,
	"int32_t":  cdecl.I32,
	"uint32_t": cdecl.U32,
	"int64_t":  cdecl.I64,
	"uint64_t": cdecl.U64,
	"size_t":   cdecl.USize,
	"ssize_t":  cdecl.ISize,
	"intptr_t": cdecl.ISize,
	"uintptr_t": cdecl.USize,
	"ptrdiff_t": cdecl.ISize,
}

// Extractor walks a rawast.File for a single partition into a
// cdecl.PartitionExtract.
type Extractor struct {
	namespace string
	library   string
	traverse  []string
	log       logx.Logger

	seenFuncs map[string]bool
}

// New builds an Extractor for one partition. traverse is the list of path
// suffixes emission is scoped to (spec §4.3); namespace/library tag every
// entity the partition contributes.
func New(namespace, library string, traverse []string, log logx.Logger) *Extractor {
	if log == nil {
		log = logx.NewSilent()
	}
	return &Extractor{
		namespace: namespace,
		library:   library,
		traverse:  traverse,
		log:       log,
		seenFuncs: make(map[string]bool),
	}
}

// inTraverse reports whether file is within this partition's emission
// scope: the traverse list is a set of path suffixes, not a prefix match,
// since the same header can be reached under different include-search
// roots (spec §4.3, §6 "traverse: path suffixes").
func (e *Extractor) inTraverse(file string) bool {
	if len(e.traverse) == 0 {
		return true
	}
	for _, suffix := range e.traverse {
		if strings.HasSuffix(file, suffix) {
			return true
		}
	}
	return false
}

// Extract lowers f into a PartitionExtract, applying every per-kind rule
// in spec §4.3. Declaration filtering uses f's source locations; macro
// filtering is applied separately against the same traverse list, since
// macros come from preprocessor records rather than AST declarations.
func (e *Extractor) Extract(f rawast.File) cdecl.PartitionExtract {
	out := cdecl.PartitionExtract{Namespace: e.namespace, Library: e.library}

	for _, r := range f.Records {
		if !e.inTraverse(r.Loc.File) {
			continue
		}
		e.extractRecord(r, &out)
	}

	for _, en := range f.Enums {
		if !e.inTraverse(en.Loc.File) {
			continue
		}
		e.extractEnum(en, &out)
	}

	for _, td := range f.Typedefs {
		if !e.inTraverse(td.Loc.File) {
			continue
		}
		e.extractTypedef(td, &out)
	}

	for _, fn := range f.Funcs {
		if !e.inTraverse(fn.Loc.File) {
			continue
		}
		e.extractFunc(fn, &out)
	}

	for _, m := range f.Macros {
		if !e.inTraverse(m.Loc.File) {
			continue
		}
		e.extractMacro(m, &out)
	}

	return out
}

func (e *Extractor) warnSkip(loc rawast.Location, format string, args ...interface{}) {
	location := fmt.Sprintf("%s:%d", loc.File, loc.Line)
	err := bnderr.Newf(bnderr.Unsupported, format, args...).At(location)
	e.log.Warnf("%v", err)
}

// extractRecord lowers one struct/union declaration. Anonymous nested
// aggregates have already been promoted to their own top-level RecordDecl
// named Parent_FieldName by clangdriver (spec §3/§4.3); the extractor
// lowers those the same as any other named record, reached via a later
// call to extractRecord.
func (e *Extractor) extractRecord(r rawast.RecordDecl, out *cdecl.PartitionExtract) {
	name := r.Name
	if name == "" {
		// Every anonymous top-level record is skipped, including one
		// that a typedef aliases: the typedef's name is not adopted.
		e.warnSkip(r.Loc, "anonymous record at top level has no name to adopt")
		return
	}
	e.lowerRecord(name, r, out)
}

func (e *Extractor) lowerRecord(name string, r rawast.RecordDecl, out *cdecl.PartitionExtract) cdecl.StructDef {
	def := cdecl.StructDef{
		Name:    name,
		Size:    uint64(r.Size),
		Align:   uint64(r.Align),
		IsUnion: r.IsUnion,
	}
	for _, f := range r.Fields {
		// Anonymous nested aggregates are already promoted to a second
		// top-level rawast.RecordDecl named Parent_FieldName by clangdriver
		// (see visitor.go's anonymousFieldRecord), with this field's Type
		// carrying that synthesized name, so mapType resolves it like any
		// other named record.
		fieldType := e.mapType(f.Type)
		var bw *uint32
		if f.BitWidth >= 0 {
			w := uint32(f.BitWidth)
			bw = &w
		}
		offset := uint64(f.OffsetBits)
		if def.IsUnion {
			offset = 0
		}
		def.Fields = append(def.Fields, cdecl.Field{
			Name:       f.Name,
			Type:       fieldType,
			OffsetBits: offset,
			BitWidth:   bw,
		})
	}
	out.Structs = append(out.Structs, def)
	return def
}

// extractEnum lowers one enum declaration. Anonymous enums are promoted
// to ConstantDef entries and no EnumDef is emitted, per spec §3/§4.3.
func (e *Extractor) extractEnum(en rawast.EnumDecl, out *cdecl.PartitionExtract) {
	underlying := e.mapType(en.Underlying)
	signed := isSignedPrimitive(underlying)

	if en.Name == "" {
		for _, v := range en.Constants {
			out.Consts = append(out.Consts, cdecl.ConstantDef{
				Name: v.Name,
				Value: cdecl.ConstantValue{
					Kind:   cdecl.ConstInteger,
					Signed: signed,
					Int:    uint64(v.Value),
				},
				Type: underlying,
			})
		}
		return
	}

	def := cdecl.EnumDef{Name: en.Name, Underlying: underlying}
	for _, v := range en.Constants {
		def.Variants = append(def.Variants, cdecl.EnumVariant{Name: v.Name, Value: v.Value})
	}
	out.Enums = append(out.Enums, def)
}

func isSignedPrimitive(t cdecl.CType) bool {
	if t.Kind != cdecl.KindPrimitive {
		return true
	}
	switch t.Primitive {
	case cdecl.U8, cdecl.U16, cdecl.U32, cdecl.U64, cdecl.USize, cdecl.Bool:
		return false
	default:
		return true
	}
}

// extractTypedef lowers one typedef declaration, detecting delegate shape
// and substituting ISize for opaque-void aliases, per spec §3/§4.3/§9.
func (e *Extractor) extractTypedef(td rawast.TypedefDecl, out *cdecl.PartitionExtract) {
	if td.Name == "" {
		e.warnSkip(td.Loc, "typedef with no name")
		return
	}
	aliased := e.mapType(td.Aliased)
	_, isDelegate := aliased.IsDelegateShaped()
	if aliased.IsVoid() {
		aliased = cdecl.PrimitiveT(cdecl.ISize)
	}
	out.Typedefs = append(out.Typedefs, cdecl.TypedefDef{
		Name:       td.Name,
		Aliased:    aliased,
		IsDelegate: isDelegate,
	})
}

// extractFunc lowers one function declaration: variadic declarations are
// dropped, duplicate names within a partition are dropped (glibc
// __REDIRECT), and array-typed parameters decay to pointers.
func (e *Extractor) extractFunc(fn rawast.FunctionDecl, out *cdecl.PartitionExtract) {
	if fn.Variadic {
		e.warnSkip(fn.Loc, "variadic function %q dropped", fn.Name)
		return
	}
	if e.seenFuncs[fn.Name] {
		e.warnSkip(fn.Loc, "duplicate declaration of function %q dropped", fn.Name)
		return
	}
	e.seenFuncs[fn.Name] = true

	def := cdecl.FunctionDef{Name: fn.Name, Ret: e.mapType(fn.Ret), Library: e.library}
	for _, p := range fn.Params {
		ptype := e.mapType(p.Type)
		isConstPtr := false
		if p.Type.Kind == rawast.TypePointer && p.Type.Pointee != nil && p.Type.Pointee.IsConstQual {
			isConstPtr = true
		}
		if p.Type.Kind == rawast.TypeConstantArray || p.Type.Kind == rawast.TypeIncompleteArray {
			// Array parameters decay to pointers (C semantics, and avoids
			// ELEMENT_TYPE_ARRAY in a method signature blob).
			elem, ok := decayArrayElement(ptype)
			if !ok && ptype.Kind == cdecl.KindPtr && ptype.Pointee != nil {
				// mapType already lowered an incomplete array to Ptr{element}.
				elem, ok = *ptype.Pointee, true
			}
			if !ok {
				elem = cdecl.PrimitiveT(cdecl.Void)
			}
			ptype = cdecl.PtrT(elem, p.Type.ArrayElement != nil && p.Type.ArrayElement.IsConstQual)
			if p.Type.ArrayElement != nil && p.Type.ArrayElement.IsConstQual {
				isConstPtr = true
			}
		}
		def.Params = append(def.Params, cdecl.Param{Name: p.Name, Type: ptype, IsConstPtr: isConstPtr})
	}
	out.Funcs = append(out.Funcs, def)
}

// decayArrayElement extracts the element type when t was built from an
// Array CType (helper for array-to-pointer parameter decay).
func decayArrayElement(t cdecl.CType) (cdecl.CType, bool) {
	if t.Kind == cdecl.KindArray && t.Element != nil {
		return *t.Element, true
	}
	return cdecl.CType{}, false
}

// extractMacro turns one #define into a constant. Macros are not
// evaluated by libclang: clangdriver hands back the raw replacement
// tokens, and only a macro whose replacement is a single integer or
// floating literal (parsed by ParseMacroLiteral) becomes a constant.
// Any other macro, including a constant expression, is dropped.
func (e *Extractor) extractMacro(m rawast.MacroConstant, out *cdecl.PartitionExtract) {
	if len(m.Tokens) != 1 {
		e.warnSkip(m.Loc, "macro %q is not a simple literal constant", m.Name)
		return
	}
	val, ty, ok := ParseMacroLiteral(m.Tokens[0])
	if !ok {
		e.warnSkip(m.Loc, "macro %q could not be evaluated as a constant", m.Name)
		return
	}
	out.Consts = append(out.Consts, cdecl.ConstantDef{Name: m.Name, Value: val, Type: ty})
}

// mapType lowers a rawast.Type to a cdecl.CType per the table in spec
// §4.3. Well-known fixed-width typedef names short-circuit to a
// primitive before canonical resolution.
func (e *Extractor) mapType(t rawast.Type) cdecl.CType {
	if t.Kind == rawast.TypeTypedef {
		if p, ok := wellKnownTypedefs[t.ReferredName]; ok {
			return cdecl.PrimitiveT(p)
		}
	}

	switch t.Kind {
	case rawast.TypeVoid:
		return cdecl.PrimitiveT(cdecl.Void)
	case rawast.TypeBool:
		return cdecl.PrimitiveT(cdecl.Bool)
	case rawast.TypeChar, rawast.TypeSChar:
		return cdecl.PrimitiveT(cdecl.I8)
	case rawast.TypeUChar:
		return cdecl.PrimitiveT(cdecl.U8)
	case rawast.TypeShort:
		return cdecl.PrimitiveT(cdecl.I16)
	case rawast.TypeUShort:
		return cdecl.PrimitiveT(cdecl.U16)
	case rawast.TypeInt:
		return cdecl.PrimitiveT(cdecl.I32)
	case rawast.TypeUInt:
		return cdecl.PrimitiveT(cdecl.U32)
	case rawast.TypeLong:
		if longIsI64 {
			return cdecl.PrimitiveT(cdecl.I64)
		}
		return cdecl.PrimitiveT(cdecl.I32)
	case rawast.TypeULong:
		if longIsI64 {
			return cdecl.PrimitiveT(cdecl.U64)
		}
		return cdecl.PrimitiveT(cdecl.U32)
	case rawast.TypeLongLong:
		return cdecl.PrimitiveT(cdecl.I64)
	case rawast.TypeULongLong:
		return cdecl.PrimitiveT(cdecl.U64)
	case rawast.TypeFloat:
		return cdecl.PrimitiveT(cdecl.F32)
	case rawast.TypeDouble:
		return cdecl.PrimitiveT(cdecl.F64)
	case rawast.TypePointer:
		pointee := cdecl.PrimitiveT(cdecl.Void)
		isConst := false
		if t.Pointee != nil {
			pointee = e.mapType(*t.Pointee)
			isConst = t.Pointee.IsConstQual
		}
		return cdecl.PtrT(pointee, isConst)
	case rawast.TypeConstantArray, rawast.TypeIncompleteArray:
		elem := cdecl.PrimitiveT(cdecl.Void)
		if t.ArrayElement != nil {
			elem = e.mapType(*t.ArrayElement)
		}
		if t.Kind == rawast.TypeIncompleteArray {
			// Flexible array member approximation (spec §9): a trailing
			// incomplete array decays to a pointer to its element type.
			return cdecl.PtrT(elem, t.ArrayElement != nil && t.ArrayElement.IsConstQual)
		}
		length := uint64(0)
		if t.ArrayLength > 0 {
			length = uint64(t.ArrayLength)
		}
		return cdecl.ArrayT(elem, length)
	case rawast.TypeFunctionProto:
		ret := cdecl.PrimitiveT(cdecl.Void)
		if t.FuncReturn != nil {
			ret = e.mapType(*t.FuncReturn)
		}
		params := make([]cdecl.CType, 0, len(t.FuncParams))
		for _, p := range t.FuncParams {
			params = append(params, e.mapType(p))
		}
		return cdecl.FnPtrT(ret, params, mapCallConv(t.CallConv))
	case rawast.TypeTypedef, rawast.TypeRecord, rawast.TypeEnum:
		// CanonicalSize < 0 means libclang never saw a definition for this
		// record/enum/typedef anywhere in the partition: the opaque-handle
		// idiom (e.g. a forward-declared "struct X" behind a "struct X *"
		// parameter, or "typedef struct X Y" with X never defined). No
		// StructDef/EnumDef will ever be registered for it, so there is
		// nothing a Named could resolve against; collapse straight to Void,
		// the same shape libclang would report for a literal "typedef void
		// Y". extractTypedef's ISize substitution picks this up, and a
		// pointer to it degrades to the conventional "void *" opaque handle.
		if t.CanonicalSize < 0 {
			return cdecl.PrimitiveT(cdecl.Void)
		}
		return cdecl.NamedT(t.ReferredName, primitivePtr(cdecl.I32))
	default:
		return cdecl.PrimitiveT(cdecl.Void)
	}
}

// primitivePtr returns a pointer to a freshly constructed primitive CType,
// for the Named.Resolved field which spec §3 requires to always be set.
func primitivePtr(p cdecl.Primitive) *cdecl.CType {
	t := cdecl.PrimitiveT(p)
	return &t
}

func mapCallConv(cc string) cdecl.CallingConvention {
	switch cc {
	case "stdcall":
		return cdecl.CCStdCall
	case "fastcall":
		return cdecl.CCFastCall
	case "cdecl":
		return cdecl.CCCdecl
	default:
		return cdecl.CCDefault
	}
}

// ParseMacroLiteral parses one macro replacement token as a decimal,
// hex or octal integer literal (with optional U/L suffixes) or a
// floating literal. It is the only constant evaluation macros get; no
// libclang evaluation precedes it. It never panics on malformed input, which is what makes
// it safe to drive from a fuzz corpus (see FuzzParseMacroLiteral).
func ParseMacroLiteral(tok string) (cdecl.ConstantValue, cdecl.CType, bool) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return cdecl.ConstantValue{}, cdecl.CType{}, false
	}

	if strings.ContainsAny(tok, ".eE") && !strings.HasPrefix(tok, "0x") && !strings.HasPrefix(tok, "0X") {
		if f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSuffix(tok, "f"), "F"), 64); err == nil {
			return cdecl.ConstantValue{Kind: cdecl.ConstReal, Real: f}, cdecl.PrimitiveT(cdecl.F64), true
		}
	}

	body := tok
	unsigned := false
	// Strip integer suffixes: combinations of U/u and L/l, up to "ULL".
	for {
		switch {
		case strings.HasSuffix(body, "u") || strings.HasSuffix(body, "U"):
			unsigned = true
			body = body[:len(body)-1]
		case strings.HasSuffix(body, "l") || strings.HasSuffix(body, "L"):
			body = body[:len(body)-1]
		default:
			goto done
		}
	}
done:
	if body == "" {
		return cdecl.ConstantValue{}, cdecl.CType{}, false
	}

	base := 10
	switch {
	case strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X"):
		base = 16
		body = body[2:]
	case len(body) > 1 && body[0] == '0':
		base = 8
		body = body[1:]
	}
	if body == "" {
		body = "0"
	}

	u, err := strconv.ParseUint(body, base, 64)
	if err != nil {
		return cdecl.ConstantValue{}, cdecl.CType{}, false
	}

	ty := cdecl.PrimitiveT(cdecl.I32)
	if unsigned {
		ty = cdecl.PrimitiveT(cdecl.U32)
	}
	return cdecl.ConstantValue{Kind: cdecl.ConstInteger, Signed: !unsigned, Int: u}, ty, true
}
