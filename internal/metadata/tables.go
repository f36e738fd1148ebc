// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package metadata is the ECMA-335 metadata writer: the inverse of the
// table reader a PE analysis tool would carry, built the same way —
// fixed table-index constants, coded-index tag tables sized from the
// final row counts, and one row struct per table laid out in the exact
// column order ECMA-335 §II.22 specifies.
package metadata

// Table indices, as ECMA-335 §II.22 enumerates them. Only the subset
// this tool ever emits carries a row-builder method on Writer; the rest
// exist so coded indices that can point at them (TypeDefOrRef,
// HasCustomAttributes, ...) stay table-id-accurate.
const (
	Module = 0x00
	TypeRef = 0x01
	TypeDef = 0x02
	Field = 0x04
	MethodDef = 0x06
	Param = 0x08
	InterfaceImpl = 0x09
	MemberRef = 0x0a
	Constant = 0x0b
	CustomAttribute = 0x0c
	FieldMarshal = 0x0d
	DeclSecurity = 0x0e
	ClassLayout = 0x0f
	FieldLayout = 0x10
	StandAloneSig = 0x11
	EventMap = 0x12
	Event = 0x14
	PropertyMap = 0x15
	Property = 0x17
	MethodSemantics = 0x18
	MethodImpl = 0x19
	ModuleRef = 0x1a
	TypeSpec = 0x1b
	ImplMap = 0x1c
	FieldRVA = 0x1d
	Assembly = 0x20
	AssemblyRef = 0x23
	FileMD = 0x26
	ExportedType = 0x27
	ManifestResource = 0x28
	NestedClass = 0x29
	GenericParam = 0x2a
	MethodSpec = 0x2b
	GenericParamConstraint = 0x2c

	tableCount = 0x2d
)

// codedidx is a coded-index descriptor: the number of low tag bits it
// reserves to select among idx, the tables it may point into.
type codedidx struct {
	tagbits uint32
	idx     []int
}

// notUsedTable fills a coded index's reserved-but-unassigned tag slots
// (ECMA-335 §II.24.2.6 marks these "not used") so the tags that follow
// land on the values real readers expect, even though this tool's
// rowCount/tagOf never look the sentinel up as a real table.
const notUsedTable = -1

var (
	idxTypeDefOrRef    = codedidx{tagbits: 2, idx: []int{TypeDef, TypeRef, TypeSpec}}
	idxResolutionScope = codedidx{tagbits: 2, idx: []int{Module, ModuleRef, AssemblyRef, TypeRef}}
	idxHasConstant     = codedidx{tagbits: 2, idx: []int{Field, Param, Property}}
	idxHasCustomAttributes = codedidx{tagbits: 5, idx: []int{
		MethodDef, Field, TypeRef, TypeDef, Param, InterfaceImpl, MemberRef, Module,
		DeclSecurity, Property, Event, StandAloneSig, ModuleRef, TypeSpec, Assembly,
		AssemblyRef, FileMD, ExportedType, ManifestResource, GenericParam,
		GenericParamConstraint, MethodSpec,
	}}
	idxCustomAttributeType = codedidx{tagbits: 3, idx: []int{notUsedTable, notUsedTable, MethodDef, MemberRef}}
	idxMemberForwarded     = codedidx{tagbits: 1, idx: []int{Field, MethodDef}}
)

// tagOf returns the tag value a row in table within idx's table set
// encodes as, i.e. the position of table in idx.idx.
func tagOf(idx codedidx, table int) uint32 {
	for i, t := range idx.idx {
		if t == table {
			return uint32(i)
		}
	}
	return 0
}

// encodeCoded packs a 1-based row id and its owning table into a single
// coded-index value per ECMA-335 §II.24.2.6: low tagbits select the
// table, the remaining high bits carry the row id.
func encodeCoded(idx codedidx, table int, rid uint32) uint32 {
	return (rid << idx.tagbits) | tagOf(idx, table)
}
