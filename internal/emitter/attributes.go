// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package emitter

import (
	"github.com/saferwall/bnd-winmd/internal/cdecl"
	"github.com/saferwall/bnd-winmd/internal/metadata"
)

// baseTypeRefs caches the TypeRef rids for the CLR base types every
// emitted TypeDef ultimately extends. They all resolve against one
// external AssemblyRef: this tool never defines System.Object,
// System.ValueType, System.Enum, System.MulticastDelegate or
// System.Attribute itself.
type baseTypeRefs struct {
	object            uint32
	valueType         uint32
	enum              uint32
	multicastDelegate uint32
	attribute         uint32
}

func (e *Emitter) setupBaseTypes() {
	e.corlib = e.w.AddAssemblyRef(metadata.AssemblyRefRow{
		MajorVersion: 4,
		Name:         e.w.Strings.Add("mscorlib"),
	})
	e.base = baseTypeRefs{
		object:            e.typeRefToBase("System", "Object"),
		valueType:         e.typeRefToBase("System", "ValueType"),
		enum:              e.typeRefToBase("System", "Enum"),
		multicastDelegate: e.typeRefToBase("System", "MulticastDelegate"),
		attribute:         e.typeRefToBase("System", "Attribute"),
	}
}

func (e *Emitter) typeRefToBase(namespace, name string) uint32 {
	return e.w.AddTypeRef(metadata.TypeRefRow{
		ResolutionScope: metadata.ResolutionScope(metadata.AssemblyRef, e.corlib),
		TypeName:        e.w.Strings.Add(name),
		TypeNamespace:   e.w.Strings.Add(namespace),
	})
}

// setupAttributeTypeDefs defines the two marker attribute types the
// emitter decorates its own output with: NativeTypedefAttribute (on
// value-type wrapper typedefs) and ConstAttribute (on const-pointer
// parameters). Each gets a public, parameterless .ctor with no IL body —
// this assembly is a metadata container, never executed, the same design
// already taken for AddressOfEntryPoint in the PE shell.
func (e *Emitter) setupAttributeTypeDefs(namespace string) {
	e.nativeTypedefAttrCtor = e.defineMarkerAttribute(namespace, "NativeTypedefAttribute")
	e.constAttrCtor = e.defineMarkerAttribute(namespace, "ConstAttribute")
}

func (e *Emitter) defineMarkerAttribute(namespace, name string) uint32 {
	fieldList := e.w.NextFieldRID()
	methodList := e.w.NextMethodRID()
	e.w.AddTypeDef(metadata.TypeDefRow{
		Flags:         metadata.TypeAttrPublic | metadata.TypeAttrSealed,
		TypeName:      e.w.Strings.Add(name),
		TypeNamespace: e.w.Strings.Add(namespace),
		Extends:       metadata.TypeDefOrRef(metadata.TypeRef, e.base.attribute),
		FieldList:     fieldList,
		MethodList:    methodList,
	})

	paramList := e.w.NextParamRID()
	ctorSig := e.encodeMethodSig(cdecl.PrimitiveT(cdecl.Void), nil, true, namespace)
	return e.w.AddMethodDef(metadata.MethodDefRow{
		Flags:     metadata.MethodAttrPublic,
		ImplFlags: metadata.MethodImplManaged,
		Name:      e.w.Strings.Add(".ctor"),
		Signature: ctorSig,
		ParamList: paramList,
	})
}

// addMarkerAttribute attaches a CustomAttribute row referencing ctorRid's
// .ctor, with an empty prolog-only blob (no fixed or named arguments).
func (e *Emitter) addMarkerAttribute(parentTable int, parentRid, ctorRid uint32) {
	e.w.AddCustomAttribute(metadata.CustomAttributeRow{
		Parent: metadata.HasCustomAttribute(parentTable, parentRid),
		Type:   metadata.CustomAttributeType(metadata.MethodDef, ctorRid),
		Value:  e.w.Blob.Add([]byte{0x01, 0x00, 0x00, 0x00}),
	})
}
