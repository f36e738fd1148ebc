// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package emitter

import (
	"github.com/saferwall/bnd-winmd/internal/cdecl"
	"github.com/saferwall/bnd-winmd/internal/metadata"
)

// emitUnion emits a TypeDef extending System.ValueType with
// ExplicitLayout: every field sits at offset 0, per spec.md §4.6 item 2.
func (e *Emitter) emitUnion(namespace string, s cdecl.StructDef) {
	e.emitAggregate(namespace, s, metadata.TypeAttrExplicitLayout, true)
}

// emitStruct emits a TypeDef extending System.ValueType with
// SequentialLayout; layout is implicit and no FieldLayout rows are
// added, per spec.md §4.6 item 3.
func (e *Emitter) emitStruct(namespace string, s cdecl.StructDef) {
	e.emitAggregate(namespace, s, metadata.TypeAttrSequentialLayout, false)
}

func (e *Emitter) emitAggregate(namespace string, s cdecl.StructDef, layout uint32, explicitFieldLayout bool) {
	fieldList := e.w.NextFieldRID()
	methodList := e.w.NextMethodRID()
	rid := e.w.AddTypeDef(metadata.TypeDefRow{
		Flags:         metadata.TypeAttrPublic | layout,
		TypeName:      e.w.Strings.Add(s.Name),
		TypeNamespace: e.w.Strings.Add(namespace),
		Extends:       metadata.TypeDefOrRef(metadata.TypeRef, e.base.valueType),
		FieldList:     fieldList,
		MethodList:    methodList,
	})
	e.typeDefRidByName[s.Name] = rid

	e.w.AddClassLayout(metadata.ClassLayoutRow{
		PackingSize: uint16(s.Align),
		ClassSize:   uint32(s.Size),
		Parent:      rid,
	})

	for _, f := range s.Fields {
		fieldRid := e.w.AddField(metadata.FieldRow{
			Flags:     metadata.FieldAttrPublic,
			Name:      e.w.Strings.Add(f.Name),
			Signature: e.encodeFieldSig(f.Type, namespace),
		})
		if explicitFieldLayout {
			e.w.AddFieldLayout(metadata.FieldLayoutRow{
				Offset: 0,
				Field:  fieldRid,
			})
		}
	}
}
