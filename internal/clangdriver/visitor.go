// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clangdriver

import (
	"github.com/go-clang/v3.9/clang"

	"github.com/saferwall/bnd-winmd/internal/rawast"
)

// visitor walks the top-level cursors of a translation unit, copying
// each recognised declaration shape into the growing rawast.File.
type visitor struct {
	tu  clang.TranslationUnit
	out rawast.File
}

func (v *visitor) visit(cursor, parent clang.Cursor) clang.ChildVisitResult {
	switch cursor.Kind() {
	case clang.Cursor_StructDecl, clang.Cursor_UnionDecl:
		if cursor.IsDefinition() {
			v.out.Records = append(v.out.Records, v.lowerRecord(cursor))
		}
	case clang.Cursor_EnumDecl:
		if cursor.IsDefinition() {
			v.out.Enums = append(v.out.Enums, v.lowerEnum(cursor))
		}
	case clang.Cursor_TypedefDecl:
		v.out.Typedefs = append(v.out.Typedefs, v.lowerTypedef(cursor))
	case clang.Cursor_FunctionDecl:
		v.out.Funcs = append(v.out.Funcs, v.lowerFunction(cursor))
	case clang.Cursor_MacroDefinition:
		if m, ok := v.lowerMacro(cursor); ok {
			v.out.Macros = append(v.out.Macros, m)
		}
	}
	return clang.ChildVisit_Continue
}

func (v *visitor) location(cursor clang.Cursor) rawast.Location {
	file, line, _, _ := cursor.Location().FileLocation()
	return rawast.Location{File: file.Name(), Line: uint32(line)}
}

func (v *visitor) lowerRecord(cursor clang.Cursor) rawast.RecordDecl {
	return v.lowerRecordNamed(cursor, cursor.Spelling())
}

// lowerRecordNamed lowers cursor's fields under name, which may be a
// synthesized Parent_FieldName rather than cursor.Spelling() when cursor is
// an anonymous nested aggregate being promoted (spec §3: anonymous
// aggregates appearing as struct members are promoted to top-level
// StructDef entries named Parent_FieldName).
func (v *visitor) lowerRecordNamed(cursor clang.Cursor, name string) rawast.RecordDecl {
	t := cursor.Type()
	r := rawast.RecordDecl{
		Name:    name,
		IsUnion: cursor.Kind() == clang.Cursor_UnionDecl,
		Size:    int64(t.SizeOf()),
		Align:   int64(t.AlignOf()),
		Loc:     v.location(cursor),
	}
	cursor.Visit(func(field, _ clang.Cursor) clang.ChildVisitResult {
		if field.Kind() != clang.Cursor_FieldDecl {
			return clang.ChildVisit_Continue
		}
		fieldType := v.lowerType(field.Type())
		if anon, ok := v.anonymousFieldRecord(field.Type()); ok {
			promotedName := name + "_" + field.Spelling()
			v.out.Records = append(v.out.Records, v.lowerRecordNamed(anon, promotedName))
			fieldType.ReferredName = promotedName
		}
		bitWidth := int32(-1)
		if field.IsBitField() {
			bitWidth = field.BitWidth()
		}
		offset, _ := field.OffsetOfField()
		r.Fields = append(r.Fields, rawast.Field{
			Name:       field.Spelling(),
			Type:       fieldType,
			OffsetBits: offset,
			BitWidth:   bitWidth,
			Loc:        v.location(field),
		})
		return clang.ChildVisit_Continue
	})
	return r
}

// anonymousFieldRecord reports whether fieldType names an anonymous nested
// struct/union (a C member declared inline with no tag, e.g. the union in
// "struct N { union { ... } u; }") and returns the cursor of its
// definition. libclang never gives an anonymous record a usable top-level
// declaration, so the field's own Type().Declaration() is the only handle
// on its members.
func (v *visitor) anonymousFieldRecord(fieldType clang.Type) (clang.Cursor, bool) {
	if fieldType.Kind() != clang.Type_Record {
		return clang.Cursor{}, false
	}
	decl := fieldType.Declaration()
	if decl.Spelling() != "" {
		return clang.Cursor{}, false
	}
	return decl, true
}

func (v *visitor) lowerEnum(cursor clang.Cursor) rawast.EnumDecl {
	e := rawast.EnumDecl{
		Name:       cursor.Spelling(),
		Underlying: v.lowerType(cursor.EnumDeclIntegerType()),
		Loc:        v.location(cursor),
	}
	cursor.Visit(func(variant, _ clang.Cursor) clang.ChildVisitResult {
		if variant.Kind() != clang.Cursor_EnumConstantDecl {
			return clang.ChildVisit_Continue
		}
		e.Constants = append(e.Constants, rawast.EnumConstant{
			Name:  variant.Spelling(),
			Value: variant.EnumConstantDeclValue(),
		})
		return clang.ChildVisit_Continue
	})
	return e
}

func (v *visitor) lowerTypedef(cursor clang.Cursor) rawast.TypedefDecl {
	return rawast.TypedefDecl{
		Name:    cursor.Spelling(),
		Aliased: v.lowerType(cursor.TypedefDeclUnderlyingType()),
		Loc:     v.location(cursor),
	}
}

func (v *visitor) lowerFunction(cursor clang.Cursor) rawast.FunctionDecl {
	t := cursor.Type()
	f := rawast.FunctionDecl{
		Name:     cursor.Spelling(),
		Ret:      v.lowerType(t.ResultType()),
		Variadic: t.IsFunctionTypeVariadic(),
		CallConv: callConvName(t.FunctionTypeCallingConv()),
		Loc:      v.location(cursor),
	}
	cursor.Visit(func(param, _ clang.Cursor) clang.ChildVisitResult {
		if param.Kind() != clang.Cursor_ParmDecl {
			return clang.ChildVisit_Continue
		}
		f.Params = append(f.Params, rawast.ParamDecl{
			Name: param.Spelling(),
			Type: v.lowerType(param.Type()),
		})
		return clang.ChildVisit_Continue
	})
	return f
}

func (v *visitor) lowerMacro(cursor clang.Cursor) (rawast.MacroConstant, bool) {
	extent := cursor.Extent()
	tokens := v.tu.Tokenize(extent)
	if len(tokens) < 2 {
		// Just the macro name with no replacement list: an include
		// guard or feature flag, not a constant.
		return rawast.MacroConstant{}, false
	}
	m := rawast.MacroConstant{Name: cursor.Spelling(), Loc: v.location(cursor)}
	for _, tok := range tokens[1:] {
		m.Tokens = append(m.Tokens, v.tu.TokenSpelling(tok))
	}
	return m, true
}

func (v *visitor) lowerType(t clang.Type) rawast.Type {
	out := rawast.Type{
		IsConstQual:  t.IsConstQualifiedType(),
		ReferredName: t.TypeSpelling(),
	}
	switch t.Kind() {
	case clang.Type_Void:
		out.Kind = rawast.TypeVoid
	case clang.Type_Bool:
		out.Kind = rawast.TypeBool
	case clang.Type_Char_S, clang.Type_Char_U:
		out.Kind = rawast.TypeChar
	case clang.Type_SChar:
		out.Kind = rawast.TypeSChar
	case clang.Type_UChar:
		out.Kind = rawast.TypeUChar
	case clang.Type_Short:
		out.Kind = rawast.TypeShort
	case clang.Type_UShort:
		out.Kind = rawast.TypeUShort
	case clang.Type_Int:
		out.Kind = rawast.TypeInt
	case clang.Type_UInt:
		out.Kind = rawast.TypeUInt
	case clang.Type_Long:
		out.Kind = rawast.TypeLong
	case clang.Type_ULong:
		out.Kind = rawast.TypeULong
	case clang.Type_LongLong:
		out.Kind = rawast.TypeLongLong
	case clang.Type_ULongLong:
		out.Kind = rawast.TypeULongLong
	case clang.Type_Float:
		out.Kind = rawast.TypeFloat
	case clang.Type_Double:
		out.Kind = rawast.TypeDouble
	case clang.Type_Pointer:
		out.Kind = rawast.TypePointer
		pointee := t.PointeeType()
		p := v.lowerType(pointee)
		out.Pointee = &p
	case clang.Type_ConstantArray:
		out.Kind = rawast.TypeConstantArray
		elem := v.lowerType(t.ArrayElementType())
		out.ArrayElement = &elem
		out.ArrayLength = t.ArraySize()
	case clang.Type_IncompleteArray:
		out.Kind = rawast.TypeIncompleteArray
		elem := v.lowerType(t.ArrayElementType())
		out.ArrayElement = &elem
		out.ArrayLength = -1
	case clang.Type_FunctionProto:
		out.Kind = rawast.TypeFunctionProto
		ret := v.lowerType(t.ResultType())
		out.FuncReturn = &ret
		out.FuncVariadic = t.IsFunctionTypeVariadic()
		out.CallConv = callConvName(t.FunctionTypeCallingConv())
		for i := int32(0); i < t.NumArgTypes(); i++ {
			out.FuncParams = append(out.FuncParams, v.lowerType(t.ArgType(uint32(i))))
		}
	case clang.Type_Typedef:
		out.Kind = rawast.TypeTypedef
		out.CanonicalSize = int64(t.SizeOf())
	case clang.Type_Record:
		out.Kind = rawast.TypeRecord
		out.CanonicalSize = int64(t.SizeOf())
	case clang.Type_Enum:
		out.Kind = rawast.TypeEnum
		out.CanonicalSize = int64(t.SizeOf())
	default:
		out.Kind = rawast.TypeInvalid
	}
	return out
}

func callConvName(cc clang.CallingConv) string {
	switch cc {
	case clang.CallingConv_X86StdCall:
		return "stdcall"
	case clang.CallingConv_X86FastCall:
		return "fastcall"
	default:
		return "cdecl"
	}
}
