// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package emitter

import (
	"bytes"

	"github.com/saferwall/bnd-winmd/internal/cdecl"
	"github.com/saferwall/bnd-winmd/internal/metadata"
)

// encodeType appends t's ELEMENT_TYPE encoding to buf. Pointer chains are
// always encoded as plain PTR prefixes — const-ness is never carried
// mid-chain, it travels out-of-band as a ConstAttribute on parameters
// (see addMarkerAttribute in functions.go) — and array element types keep
// their ARRAY shape rather than decaying, since only parameters decay
// (spec §4.6 signature encoding invariants).
func (e *Emitter) encodeType(buf *bytes.Buffer, t cdecl.CType, namespace string) {
	switch t.Kind {
	case cdecl.KindPrimitive:
		buf.WriteByte(primitiveElementType(t.Primitive))
	case cdecl.KindPtr:
		buf.WriteByte(metadata.ElementTypePtr)
		e.encodeType(buf, *t.Pointee, namespace)
	case cdecl.KindArray:
		buf.WriteByte(metadata.ElementTypeArray)
		e.encodeType(buf, *t.Element, namespace)
		metadata.WriteCompressedUint(buf, 1) // rank
		metadata.WriteCompressedUint(buf, 1) // one explicit size
		metadata.WriteCompressedUint(buf, uint32(t.Length))
		metadata.WriteCompressedUint(buf, 0) // no lower bounds
	case cdecl.KindFnPtr:
		// Encoded as native int. Delegate-shaped typedefs never reach
		// here (emitPartition routes them to emitDelegate); a function
		// pointer spelled inline in a field or parameter arrives as
		// Ptr{FnPtr} and is therefore written as PTR I.
		buf.WriteByte(metadata.ElementTypeI)
	case cdecl.KindNamed:
		e.encodeNamed(buf, t, namespace)
	}
}

func (e *Emitter) encodeNamed(buf *bytes.Buffer, t cdecl.CType, namespace string) {
	table, rid, ok := e.resolveNamed(t.Name, namespace)
	if !ok {
		// Fallback() never hands back another Named, so this cannot re-enter
		// encodeNamed with the same (unresolved) name — it terminates here.
		e.encodeType(buf, t.Fallback(), namespace)
		return
	}
	if e.namedIsValueType(t.Name) {
		buf.WriteByte(metadata.ElementTypeValueType)
	} else {
		buf.WriteByte(metadata.ElementTypeClass)
	}
	metadata.WriteCompressedUint(buf, metadata.TypeDefOrRef(table, rid))
}

func primitiveElementType(p cdecl.Primitive) byte {
	switch p {
	case cdecl.Void:
		return metadata.ElementTypeVoid
	case cdecl.Bool:
		return metadata.ElementTypeBoolean
	case cdecl.I8:
		return metadata.ElementTypeI1
	case cdecl.U8:
		return metadata.ElementTypeU1
	case cdecl.I16:
		return metadata.ElementTypeI2
	case cdecl.U16:
		return metadata.ElementTypeU2
	case cdecl.I32:
		return metadata.ElementTypeI4
	case cdecl.U32:
		return metadata.ElementTypeU4
	case cdecl.I64:
		return metadata.ElementTypeI8
	case cdecl.U64:
		return metadata.ElementTypeU8
	case cdecl.F32:
		return metadata.ElementTypeR4
	case cdecl.F64:
		return metadata.ElementTypeR8
	case cdecl.ISize:
		return metadata.ElementTypeI
	case cdecl.USize:
		return metadata.ElementTypeU
	default:
		return metadata.ElementTypeVoid
	}
}

// encodeFieldSig builds a FieldSig blob (ECMA-335 §II.23.2.4) for t and
// interns it in the blob heap.
func (e *Emitter) encodeFieldSig(t cdecl.CType, namespace string) uint32 {
	var buf bytes.Buffer
	buf.WriteByte(metadata.SigField)
	e.encodeType(&buf, t, namespace)
	return e.w.Blob.Add(buf.Bytes())
}

// encodeMethodSig builds a MethodDefSig blob (ECMA-335 §II.23.2.1) for a
// method returning ret and taking params, and interns it.
func (e *Emitter) encodeMethodSig(ret cdecl.CType, params []cdecl.CType, hasThis bool, namespace string) uint32 {
	var buf bytes.Buffer
	flags := metadata.SigDefault
	if hasThis {
		flags = metadata.SigHasThis
	}
	buf.WriteByte(flags)
	metadata.WriteCompressedUint(&buf, uint32(len(params)))
	e.encodeType(&buf, ret, namespace)
	for _, p := range params {
		e.encodeType(&buf, p, namespace)
	}
	return e.w.Blob.Add(buf.Bytes())
}
