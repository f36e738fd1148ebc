// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package metadata

// ModuleRow is the single Module 0x00 table row every assembly carries.
type ModuleRow struct {
	Generation uint16
	Name       uint32 // #Strings
	Mvid       uint32 // #GUID
	EncID      uint32 // #GUID
	EncBaseID  uint32 // #GUID
}

// TypeRefRow is one TypeRef 0x01 row.
type TypeRefRow struct {
	ResolutionScope uint32 // ResolutionScope coded index
	TypeName        uint32 // #Strings
	TypeNamespace   uint32 // #Strings
}

// TypeDefRow is one TypeDef 0x02 row. FieldList/MethodList point at the
// first Field/MethodDef row owned by this type; the run is implicitly
// contiguous and ends where the next TypeDef's list begins (or at the
// end of the table), per ECMA-335 §II.22.37.
type TypeDefRow struct {
	Flags         uint32
	TypeName      uint32 // #Strings
	TypeNamespace uint32 // #Strings
	Extends       uint32 // TypeDefOrRef coded index
	FieldList     uint32 // 1-based Field rid
	MethodList    uint32 // 1-based MethodDef rid
}

// FieldRow is one Field 0x04 row.
type FieldRow struct {
	Flags     uint16
	Name      uint32 // #Strings
	Signature uint32 // #Blob
}

// MethodDefRow is one MethodDef 0x06 row.
type MethodDefRow struct {
	RVA        uint32
	ImplFlags  uint16
	Flags      uint16
	Name       uint32 // #Strings
	Signature  uint32 // #Blob
	ParamList  uint32 // 1-based Param rid
}

// ParamRow is one Param 0x08 row.
type ParamRow struct {
	Flags    uint16
	Sequence uint16
	Name     uint32 // #Strings
}

// ConstantRow is one Constant 0x0b row. Sorted by Parent in the final
// table, per ECMA-335 §II.22.9.
type ConstantRow struct {
	Type    uint8
	Padding uint8
	Parent  uint32 // HasConstant coded index
	Value   uint32 // #Blob
}

// CustomAttributeRow is one CustomAttribute 0x0c row. Sorted by Parent.
type CustomAttributeRow struct {
	Parent uint32 // HasCustomAttribute coded index
	Type   uint32 // CustomAttributeType coded index
	Value  uint32 // #Blob
}

// ClassLayoutRow is one ClassLayout 0x0f row. Sorted by Parent.
type ClassLayoutRow struct {
	PackingSize uint16
	ClassSize   uint32
	Parent      uint32 // TypeDef rid
}

// FieldLayoutRow is one FieldLayout 0x10 row. Sorted by Field.
type FieldLayoutRow struct {
	Offset uint32
	Field  uint32 // Field rid
}

// ModuleRefRow is one ModuleRef 0x1a row.
type ModuleRefRow struct {
	Name uint32 // #Strings
}

// ImplMapRow is one ImplMap 0x1c row. Sorted by MemberForwarded.
type ImplMapRow struct {
	MappingFlags    uint16
	MemberForwarded uint32 // MemberForwarded coded index
	ImportName      uint32 // #Strings
	ImportScope     uint32 // ModuleRef rid
}

// AssemblyRow is the single Assembly 0x20 row identifying this WinMD as
// its own assembly.
type AssemblyRow struct {
	HashAlgID      uint32
	MajorVersion   uint16
	MinorVersion   uint16
	BuildNumber    uint16
	RevisionNumber uint16
	Flags          uint32
	PublicKey      uint32 // #Blob
	Name           uint32 // #Strings
	Culture        uint32 // #Strings
}

// AssemblyRefRow is one AssemblyRef 0x23 row: an external assembly this
// WinMD's TypeRefs resolve the CLR base types (System.Object, ...)
// against, since this tool never defines those itself.
type AssemblyRefRow struct {
	MajorVersion   uint16
	MinorVersion   uint16
	BuildNumber    uint16
	RevisionNumber uint16
	Flags          uint32
	PublicKeyOrToken uint32 // #Blob
	Name           uint32   // #Strings
	Culture        uint32   // #Strings
	HashValue      uint32   // #Blob
}
