// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package emitter

import (
	"encoding/binary"
	"math"

	"github.com/saferwall/bnd-winmd/internal/cdecl"
	"github.com/saferwall/bnd-winmd/internal/metadata"
)

// emitApis emits the single Apis TypeDef a partition's free functions
// and constants hang off, per spec.md §4.6 items 6 and 7.
func (e *Emitter) emitApis(namespace, library string, funcs []cdecl.FunctionDef, consts []cdecl.ConstantDef) {
	fieldList := e.w.NextFieldRID()
	methodList := e.w.NextMethodRID()
	rid := e.w.AddTypeDef(metadata.TypeDefRow{
		Flags:         metadata.TypeAttrPublic | metadata.TypeAttrAbstract | metadata.TypeAttrSealed,
		TypeName:      e.w.Strings.Add("Apis"),
		TypeNamespace: e.w.Strings.Add(namespace),
		Extends:       metadata.TypeDefOrRef(metadata.TypeRef, e.base.object),
		FieldList:     fieldList,
		MethodList:    methodList,
	})
	e.typeDefRidByName["Apis"] = rid

	var moduleRef uint32
	if len(funcs) > 0 {
		moduleRef = e.w.AddModuleRef(metadata.ModuleRefRow{Name: e.w.Strings.Add(library)})
	}
	for _, fn := range funcs {
		e.emitFunction(namespace, moduleRef, fn)
	}
	for _, c := range consts {
		e.emitConstant(namespace, c)
	}
}

// emitFunction emits one MethodDef (PInvokeImpl, static) with its Param
// rows and ImplMap entry, attaching a Const custom attribute to every
// parameter whose CType carried the const-pointer flag.
func (e *Emitter) emitFunction(namespace string, moduleRef uint32, fn cdecl.FunctionDef) {
	paramTypes := make([]cdecl.CType, len(fn.Params))
	for i, p := range fn.Params {
		paramTypes[i] = p.Type
	}
	sig := e.encodeMethodSig(fn.Ret, paramTypes, false, namespace)

	paramList := e.w.NextParamRID()
	methodRid := e.w.AddMethodDef(metadata.MethodDefRow{
		Flags:     metadata.MethodAttrPublic | metadata.MethodAttrStatic | metadata.MethodAttrPInvokeImpl,
		ImplFlags: metadata.MethodImplManaged,
		Name:      e.w.Strings.Add(fn.Name),
		Signature: sig,
		ParamList: paramList,
	})

	for i, p := range fn.Params {
		paramRid := e.w.AddParam(metadata.ParamRow{
			Flags:    metadata.ParamAttrIn,
			Sequence: uint16(i + 1),
			Name:     e.w.Strings.Add(p.Name),
		})
		if p.IsConstPtr {
			e.addMarkerAttribute(metadata.Param, paramRid, e.constAttrCtor)
		}
	}

	// Host ABI is always the default C calling convention (spec §9's
	// LP64 decision: this tool targets the host libc, not a Win32 ABI).
	e.w.AddImplMap(metadata.ImplMapRow{
		MappingFlags:    metadata.PInvokeCallConvCdecl | metadata.PInvokeNoMangle,
		MemberForwarded: metadata.MemberForwarded(metadata.MethodDef, methodRid),
		ImportName:      e.w.Strings.Add(fn.Name),
		ImportScope:     moduleRef,
	})
}

// emitConstant emits a static literal Field on the Apis TypeDef backed
// by a Constant row, per spec.md §4.6 item 7.
func (e *Emitter) emitConstant(namespace string, c cdecl.ConstantDef) {
	fieldRid := e.w.AddField(metadata.FieldRow{
		Flags:     metadata.FieldAttrPublic | metadata.FieldAttrStatic | metadata.FieldAttrLiteral,
		Name:      e.w.Strings.Add(c.Name),
		Signature: e.encodeFieldSig(c.Type, namespace),
	})
	elemType, blob := encodeConstantValue(c.Value, c.Type)
	e.w.AddConstant(metadata.ConstantRow{
		Type:   elemType,
		Parent: metadata.HasConstant(metadata.Field, fieldRid),
		Value:  e.w.Blob.Add(blob),
	})
}

// encodeConstantValue renders a ConstantValue as the Constant table's
// (element type, little-endian value bytes) pair. t's primitive width
// decides the encoding; a non-primitive t never reaches here since the
// extractor only ever attaches a primitive CType to a ConstantDef.
func encodeConstantValue(v cdecl.ConstantValue, t cdecl.CType) (byte, []byte) {
	prim := cdecl.I32
	if t.Kind == cdecl.KindPrimitive {
		prim = t.Primitive
	}

	if v.Kind == cdecl.ConstReal {
		if prim == cdecl.F32 {
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v.Real)))
			return metadata.ElementTypeR4, b
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(v.Real))
		return metadata.ElementTypeR8, b
	}

	switch prim {
	case cdecl.I8, cdecl.U8, cdecl.Bool:
		return primitiveElementType(prim), []byte{byte(v.Int)}
	case cdecl.I16, cdecl.U16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(v.Int))
		return primitiveElementType(prim), b
	case cdecl.I64, cdecl.U64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v.Int)
		return primitiveElementType(prim), b
	default:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v.Int))
		return primitiveElementType(prim), b
	}
}
