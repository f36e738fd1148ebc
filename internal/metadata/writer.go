// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package metadata

// Writer accumulates metadata table rows and heap entries for a single
// WinMD assembly and serialises them into the #~/#Strings/#GUID/#Blob
// stream layout ECMA-335 §II.24 describes. Callers (the emitter) are
// responsible for the row-ordering invariant of spec.md §4.6: every
// Field/Param/MethodDef row for a TypeDef/MethodDef must be appended
// immediately after that owner, with no interleaving from another
// owner's rows in between.
type Writer struct {
	Strings *stringHeap
	Blob    *blobHeap
	GUID    *guidHeap

	module  []ModuleRow
	typeRef []TypeRefRow
	typeDef []TypeDefRow
	field   []FieldRow
	method  []MethodDefRow
	param   []ParamRow
	konst   []ConstantRow
	custAtt []CustomAttributeRow
	clsLay  []ClassLayoutRow
	fldLay  []FieldLayoutRow
	modRef  []ModuleRefRow
	implMap []ImplMapRow
	assembly []AssemblyRow
	assemblyRef []AssemblyRefRow
}

// New builds an empty Writer.
func New() *Writer {
	return &Writer{
		Strings: newStringHeap(),
		Blob:    newBlobHeap(),
		GUID:    &guidHeap{},
	}
}

// NextFieldRID returns the 1-based rid the next AddField call will
// assign, for use as a TypeDef's FieldList before its fields exist yet.
func (w *Writer) NextFieldRID() uint32 { return uint32(len(w.field)) + 1 }

// NextMethodRID returns the 1-based rid the next AddMethodDef call will
// assign, for use as a TypeDef's MethodList.
func (w *Writer) NextMethodRID() uint32 { return uint32(len(w.method)) + 1 }

// NextParamRID returns the 1-based rid the next AddParam call will
// assign, for use as a MethodDef's ParamList.
func (w *Writer) NextParamRID() uint32 { return uint32(len(w.param)) + 1 }

// NextTypeDefRID returns the 1-based rid the next AddTypeDef call will
// assign.
func (w *Writer) NextTypeDefRID() uint32 { return uint32(len(w.typeDef)) + 1 }

// AddModule appends the (mandatory, singular) Module row and returns its rid.
func (w *Writer) AddModule(r ModuleRow) uint32 {
	w.module = append(w.module, r)
	return uint32(len(w.module))
}

// AddAssembly appends the (mandatory, singular) Assembly row.
func (w *Writer) AddAssembly(r AssemblyRow) uint32 {
	w.assembly = append(w.assembly, r)
	return uint32(len(w.assembly))
}

// AddAssemblyRef appends an AssemblyRef row, deduplicating by Name so
// every base-type TypeRef shares one mscorlib reference.
func (w *Writer) AddAssemblyRef(r AssemblyRefRow) uint32 {
	for i, existing := range w.assemblyRef {
		if existing.Name == r.Name {
			return uint32(i) + 1
		}
	}
	w.assemblyRef = append(w.assemblyRef, r)
	return uint32(len(w.assemblyRef))
}

// AddTypeRef appends a TypeRef row and returns its 1-based rid.
func (w *Writer) AddTypeRef(r TypeRefRow) uint32 {
	w.typeRef = append(w.typeRef, r)
	return uint32(len(w.typeRef))
}

// AddTypeDef appends a TypeDef row and returns its 1-based rid.
func (w *Writer) AddTypeDef(r TypeDefRow) uint32 {
	w.typeDef = append(w.typeDef, r)
	return uint32(len(w.typeDef))
}

// AddField appends a Field row and returns its 1-based rid.
func (w *Writer) AddField(r FieldRow) uint32 {
	w.field = append(w.field, r)
	return uint32(len(w.field))
}

// AddMethodDef appends a MethodDef row and returns its 1-based rid.
func (w *Writer) AddMethodDef(r MethodDefRow) uint32 {
	w.method = append(w.method, r)
	return uint32(len(w.method))
}

// AddParam appends a Param row and returns its 1-based rid.
func (w *Writer) AddParam(r ParamRow) uint32 {
	w.param = append(w.param, r)
	return uint32(len(w.param))
}

// AddConstant appends a Constant row.
func (w *Writer) AddConstant(r ConstantRow) uint32 {
	w.konst = append(w.konst, r)
	return uint32(len(w.konst))
}

// AddCustomAttribute appends a CustomAttribute row.
func (w *Writer) AddCustomAttribute(r CustomAttributeRow) uint32 {
	w.custAtt = append(w.custAtt, r)
	return uint32(len(w.custAtt))
}

// AddClassLayout appends a ClassLayout row.
func (w *Writer) AddClassLayout(r ClassLayoutRow) uint32 {
	w.clsLay = append(w.clsLay, r)
	return uint32(len(w.clsLay))
}

// AddFieldLayout appends a FieldLayout row.
func (w *Writer) AddFieldLayout(r FieldLayoutRow) uint32 {
	w.fldLay = append(w.fldLay, r)
	return uint32(len(w.fldLay))
}

// AddModuleRef appends a ModuleRef row, deduplicating by Name so two
// partitions naming the same library share one row.
func (w *Writer) AddModuleRef(r ModuleRefRow) uint32 {
	for i, existing := range w.modRef {
		if existing.Name == r.Name {
			return uint32(i) + 1
		}
	}
	w.modRef = append(w.modRef, r)
	return uint32(len(w.modRef))
}

// AddImplMap appends an ImplMap row.
func (w *Writer) AddImplMap(r ImplMapRow) uint32 {
	w.implMap = append(w.implMap, r)
	return uint32(len(w.implMap))
}

// TypeDefOrRef encodes a TypeDef/TypeRef/TypeSpec rid as a TypeDefOrRef
// coded index (ECMA-335 §II.24.2.6).
func TypeDefOrRef(table int, rid uint32) uint32 { return encodeCoded(idxTypeDefOrRef, table, rid) }

// ResolutionScope encodes a Module/ModuleRef/AssemblyRef/TypeRef rid as a
// ResolutionScope coded index.
func ResolutionScope(table int, rid uint32) uint32 { return encodeCoded(idxResolutionScope, table, rid) }

// HasConstant encodes a Field/Param/Property rid as a HasConstant coded
// index.
func HasConstant(table int, rid uint32) uint32 { return encodeCoded(idxHasConstant, table, rid) }

// HasCustomAttribute encodes any eligible owner's rid as a
// HasCustomAttribute coded index.
func HasCustomAttribute(table int, rid uint32) uint32 {
	return encodeCoded(idxHasCustomAttributes, table, rid)
}

// CustomAttributeType encodes a MethodDef/MemberRef rid as a
// CustomAttributeType coded index.
func CustomAttributeType(table int, rid uint32) uint32 {
	return encodeCoded(idxCustomAttributeType, table, rid)
}

// MemberForwarded encodes a Field/MethodDef rid as a MemberForwarded
// coded index.
func MemberForwarded(table int, rid uint32) uint32 { return encodeCoded(idxMemberForwarded, table, rid) }

// TypeDefCount reports the number of TypeDef rows added so far, for
// tests and diagnostics.
func (w *Writer) TypeDefCount() int { return len(w.typeDef) }

// FieldCount reports the number of Field rows added so far.
func (w *Writer) FieldCount() int { return len(w.field) }

// MethodDefCount reports the number of MethodDef rows added so far.
func (w *Writer) MethodDefCount() int { return len(w.method) }
