// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package emitter

import (
	"fmt"

	"github.com/saferwall/bnd-winmd/internal/cdecl"
	"github.com/saferwall/bnd-winmd/internal/metadata"
)

// emitTypedef emits a value-type wrapper TypeDef with a single `value`
// field of the aliased type, decorated with a NativeTypedef custom
// attribute, per spec.md §4.6 item 4. Delegate-shaped typedefs never
// reach here — emitPartition routes them to emitDelegate instead.
func (e *Emitter) emitTypedef(namespace string, td cdecl.TypedefDef) {
	fieldList := e.w.NextFieldRID()
	methodList := e.w.NextMethodRID()
	rid := e.w.AddTypeDef(metadata.TypeDefRow{
		Flags:         metadata.TypeAttrPublic | metadata.TypeAttrSequentialLayout,
		TypeName:      e.w.Strings.Add(td.Name),
		TypeNamespace: e.w.Strings.Add(namespace),
		Extends:       metadata.TypeDefOrRef(metadata.TypeRef, e.base.valueType),
		FieldList:     fieldList,
		MethodList:    methodList,
	})
	e.typeDefRidByName[td.Name] = rid

	e.w.AddField(metadata.FieldRow{
		Flags:     metadata.FieldAttrPublic,
		Name:      e.w.Strings.Add("value"),
		Signature: e.encodeFieldSig(td.Aliased, namespace),
	})

	e.addMarkerAttribute(metadata.TypeDef, rid, e.nativeTypedefAttrCtor)
}

// emitDelegate emits a TypeDef extending System.MulticastDelegate with
// an Invoke MethodDef carrying the captured signature, per spec.md §4.6
// item 5.
func (e *Emitter) emitDelegate(namespace string, td cdecl.TypedefDef) {
	fn, ok := td.Aliased.IsDelegateShaped()
	if !ok {
		e.log.Warnf("typedef %s flagged as a delegate but is not delegate-shaped, skipping", td.Name)
		return
	}

	fieldList := e.w.NextFieldRID()
	methodList := e.w.NextMethodRID()
	rid := e.w.AddTypeDef(metadata.TypeDefRow{
		Flags:         metadata.TypeAttrPublic | metadata.TypeAttrSealed,
		TypeName:      e.w.Strings.Add(td.Name),
		TypeNamespace: e.w.Strings.Add(namespace),
		Extends:       metadata.TypeDefOrRef(metadata.TypeRef, e.base.multicastDelegate),
		FieldList:     fieldList,
		MethodList:    methodList,
	})
	e.typeDefRidByName[td.Name] = rid

	paramList := e.w.NextParamRID()
	e.w.AddMethodDef(metadata.MethodDefRow{
		Flags:     metadata.MethodAttrPublic,
		ImplFlags: metadata.MethodImplManaged,
		Name:      e.w.Strings.Add("Invoke"),
		Signature: e.encodeMethodSig(*fn.Ret, fn.Params, true, namespace),
		ParamList: paramList,
	})
	for i := range fn.Params {
		e.w.AddParam(metadata.ParamRow{
			Sequence: uint16(i + 1),
			Name:     e.w.Strings.Add(fmt.Sprintf("arg%d", i)),
		})
	}
}
