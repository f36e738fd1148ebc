// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package emitter

import (
	"github.com/saferwall/bnd-winmd/internal/cdecl"
	"github.com/saferwall/bnd-winmd/internal/metadata"
)

// emitEnum emits a TypeDef extending System.Enum, carrying the mandatory
// value__ backing field followed by one literal Field + Constant row per
// variant, per spec.md §4.6 item 1.
func (e *Emitter) emitEnum(namespace string, en cdecl.EnumDef) {
	fieldList := e.w.NextFieldRID()
	methodList := e.w.NextMethodRID()
	rid := e.w.AddTypeDef(metadata.TypeDefRow{
		Flags:         metadata.TypeAttrPublic | metadata.TypeAttrSealed,
		TypeName:      e.w.Strings.Add(en.Name),
		TypeNamespace: e.w.Strings.Add(namespace),
		Extends:       metadata.TypeDefOrRef(metadata.TypeRef, e.base.enum),
		FieldList:     fieldList,
		MethodList:    methodList,
	})
	e.typeDefRidByName[en.Name] = rid

	e.w.AddField(metadata.FieldRow{
		Flags:     metadata.FieldAttrPublic | metadata.FieldAttrRTSpecialName,
		Name:      e.w.Strings.Add("value__"),
		Signature: e.encodeFieldSig(en.Underlying, namespace),
	})

	selfType := cdecl.NamedT(en.Name, &en.Underlying)
	for _, v := range en.Variants {
		fieldRid := e.w.AddField(metadata.FieldRow{
			Flags:     metadata.FieldAttrPublic | metadata.FieldAttrStatic | metadata.FieldAttrLiteral,
			Name:      e.w.Strings.Add(v.Name),
			Signature: e.encodeFieldSig(selfType, namespace),
		})
		elemType, blob := encodeConstantValue(cdecl.ConstantValue{
			Kind: cdecl.ConstInteger,
			Int:  uint64(v.Value),
		}, en.Underlying)
		e.w.AddConstant(metadata.ConstantRow{
			Type:   elemType,
			Parent: metadata.HasConstant(metadata.Field, fieldRid),
			Value:  e.w.Blob.Add(blob),
		})
	}
}
