// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package metadata

import (
	"bytes"
	"encoding/binary"
	"sort"
)

// sortedTableBit marks the tables ECMA-335 §II.22 requires sorted
// ascending by their primary-key column (Parent, Field or
// MemberForwarded; see sortOrderedTables), to let a conformant reader
// binary search them.
var sortedTableBit = map[int]bool{
	Constant:        true,
	CustomAttribute: true,
	ClassLayout:     true,
	FieldLayout:     true,
	ImplMap:         true,
}

// Bytes finalises the accumulated rows and heaps into a single metadata
// root blob: the BSJB header, stream headers, and the four stream
// bodies (#~, #Strings, #GUID, #Blob), in that order.
func (w *Writer) Bytes() []byte {
	w.sortOrderedTables()

	heapStrings := w.Strings.Bytes()
	heapGUID := w.GUID.Bytes()
	heapBlob := w.Blob.Bytes()
	heapTables := w.encodeTableStream()

	var root bytes.Buffer
	root.Write(u32(0x424A5342)) // "BSJB"
	root.Write(u16(1))         // MajorVersion
	root.Write(u16(1))         // MinorVersion
	root.Write(u32(0))         // Reserved

	version := "WindowsRuntime 1.4"
	versionPadded := padTo4(append([]byte(version), 0))
	root.Write(u32(uint32(len(versionPadded))))
	root.Write(versionPadded)

	root.Write(u16(0)) // Flags
	root.Write(u16(4)) // Streams: #~, #Strings, #GUID, #Blob

	type streamDef struct {
		name string
		body []byte
	}
	streams := []streamDef{
		{"#~", heapTables},
		{"#Strings", heapStrings},
		{"#GUID", heapGUID},
		{"#Blob", heapBlob},
	}

	headerLens := make([]int, len(streams))
	for i, s := range streams {
		headerLens[i] = len(padTo4(append([]byte(s.name), 0))) + 8
	}
	headerTotal := 0
	for _, l := range headerLens {
		headerTotal += l
	}

	offset := uint32(root.Len()) + uint32(headerTotal)
	for _, s := range streams {
		root.Write(u32(offset))
		root.Write(u32(uint32(len(s.body))))
		root.Write(padTo4(append([]byte(s.name), 0)))
		offset += uint32(len(s.body))
	}
	for _, s := range streams {
		root.Write(s.body)
	}

	return root.Bytes()
}

func (w *Writer) sortOrderedTables() {
	sort.SliceStable(w.konst, func(i, j int) bool { return w.konst[i].Parent < w.konst[j].Parent })
	sort.SliceStable(w.custAtt, func(i, j int) bool { return w.custAtt[i].Parent < w.custAtt[j].Parent })
	sort.SliceStable(w.clsLay, func(i, j int) bool { return w.clsLay[i].Parent < w.clsLay[j].Parent })
	sort.SliceStable(w.fldLay, func(i, j int) bool { return w.fldLay[i].Field < w.fldLay[j].Field })
	sort.SliceStable(w.implMap, func(i, j int) bool { return w.implMap[i].MemberForwarded < w.implMap[j].MemberForwarded })
}

func (w *Writer) rowCount(table int) uint32 {
	switch table {
	case Module:
		return uint32(len(w.module))
	case TypeRef:
		return uint32(len(w.typeRef))
	case TypeDef:
		return uint32(len(w.typeDef))
	case Field:
		return uint32(len(w.field))
	case MethodDef:
		return uint32(len(w.method))
	case Param:
		return uint32(len(w.param))
	case Constant:
		return uint32(len(w.konst))
	case CustomAttribute:
		return uint32(len(w.custAtt))
	case ClassLayout:
		return uint32(len(w.clsLay))
	case FieldLayout:
		return uint32(len(w.fldLay))
	case ModuleRef:
		return uint32(len(w.modRef))
	case ImplMap:
		return uint32(len(w.implMap))
	case Assembly:
		return uint32(len(w.assembly))
	case AssemblyRef:
		return uint32(len(w.assemblyRef))
	default:
		return 0
	}
}

// codedIndexSize mirrors the reader's getCodedIndexSize, inverted for
// writing: 4 bytes if the coded index's bit budget (16 - tagbits) cannot
// address the largest participating table's final row count.
func (w *Writer) codedIndexSize(idx codedidx) uint32 {
	maxIndex16 := uint32(1) << (16 - idx.tagbits)
	var maxRows uint32
	for _, t := range idx.idx {
		if rc := w.rowCount(t); rc > maxRows {
			maxRows = rc
		}
	}
	if maxRows >= maxIndex16 {
		return 4
	}
	return 2
}

func (w *Writer) stringIndexSize() uint32 {
	if len(w.Strings.Bytes()) > 0xFFFF {
		return 4
	}
	return 2
}

func (w *Writer) guidIndexSize() uint32 {
	if len(w.GUID.guids) > 0xFFFF {
		return 4
	}
	return 2
}

func (w *Writer) blobIndexSize() uint32 {
	if len(w.Blob.Bytes()) > 0xFFFF {
		return 4
	}
	return 2
}

func (w *Writer) tableIndexSize(table int) uint32 {
	if w.rowCount(table) > 0xFFFF {
		return 4
	}
	return 2
}

func writeIndex(buf *bytes.Buffer, size uint32, v uint32) {
	if size == 4 {
		buf.Write(u32(v))
	} else {
		buf.Write(u16(uint16(v)))
	}
}

// encodeTableStream serialises the #~ stream: header, row-count vector,
// then each present table's rows in ascending table-index order.
func (w *Writer) encodeTableStream() []byte {
	strSz := w.stringIndexSize()
	guidSz := w.guidIndexSize()
	blobSz := w.blobIndexSize()

	var heapSizes uint8
	if strSz == 4 {
		heapSizes |= 0x01
	}
	if guidSz == 4 {
		heapSizes |= 0x02
	}
	if blobSz == 4 {
		heapSizes |= 0x04
	}

	present := []int{}
	for t := 0; t < tableCount; t++ {
		if w.rowCount(t) > 0 {
			present = append(present, t)
		}
	}

	var maskValid, sorted uint64
	for _, t := range present {
		maskValid |= 1 << uint(t)
		if sortedTableBit[t] {
			sorted |= 1 << uint(t)
		}
	}

	var buf bytes.Buffer
	buf.Write(u32(0))                 // Reserved
	buf.WriteByte(2)                  // MajorVersion
	buf.WriteByte(0)                  // MinorVersion
	buf.WriteByte(heapSizes)
	buf.WriteByte(1) // Reserved (commonly called "RID", fixed at 1)
	buf.Write(u64(maskValid))
	buf.Write(u64(sorted))
	for _, t := range present {
		buf.Write(u32(w.rowCount(t)))
	}

	for _, t := range present {
		w.encodeTable(&buf, t, strSz, guidSz, blobSz)
	}

	return padTo4(buf.Bytes())
}

func (w *Writer) encodeTable(buf *bytes.Buffer, table int, strSz, guidSz, blobSz uint32) {
	typeDefOrRefSz := w.codedIndexSize(idxTypeDefOrRef)
	resScopeSz := w.codedIndexSize(idxResolutionScope)
	hasConstSz := w.codedIndexSize(idxHasConstant)
	hasCASz := w.codedIndexSize(idxHasCustomAttributes)
	caTypeSz := w.codedIndexSize(idxCustomAttributeType)
	memberFwdSz := w.codedIndexSize(idxMemberForwarded)

	switch table {
	case Module:
		for _, r := range w.module {
			buf.Write(u16(r.Generation))
			writeIndex(buf, strSz, r.Name)
			writeIndex(buf, guidSz, r.Mvid)
			writeIndex(buf, guidSz, r.EncID)
			writeIndex(buf, guidSz, r.EncBaseID)
		}
	case TypeRef:
		for _, r := range w.typeRef {
			writeIndex(buf, resScopeSz, r.ResolutionScope)
			writeIndex(buf, strSz, r.TypeName)
			writeIndex(buf, strSz, r.TypeNamespace)
		}
	case TypeDef:
		for _, r := range w.typeDef {
			buf.Write(u32(r.Flags))
			writeIndex(buf, strSz, r.TypeName)
			writeIndex(buf, strSz, r.TypeNamespace)
			writeIndex(buf, typeDefOrRefSz, r.Extends)
			writeIndex(buf, w.tableIndexSize(Field), r.FieldList)
			writeIndex(buf, w.tableIndexSize(MethodDef), r.MethodList)
		}
	case Field:
		for _, r := range w.field {
			buf.Write(u16(r.Flags))
			writeIndex(buf, strSz, r.Name)
			writeIndex(buf, blobSz, r.Signature)
		}
	case MethodDef:
		for _, r := range w.method {
			buf.Write(u32(r.RVA))
			buf.Write(u16(r.ImplFlags))
			buf.Write(u16(r.Flags))
			writeIndex(buf, strSz, r.Name)
			writeIndex(buf, blobSz, r.Signature)
			writeIndex(buf, w.tableIndexSize(Param), r.ParamList)
		}
	case Param:
		for _, r := range w.param {
			buf.Write(u16(r.Flags))
			buf.Write(u16(r.Sequence))
			writeIndex(buf, strSz, r.Name)
		}
	case Constant:
		for _, r := range w.konst {
			buf.WriteByte(r.Type)
			buf.WriteByte(0)
			writeIndex(buf, hasConstSz, r.Parent)
			writeIndex(buf, blobSz, r.Value)
		}
	case CustomAttribute:
		for _, r := range w.custAtt {
			writeIndex(buf, hasCASz, r.Parent)
			writeIndex(buf, caTypeSz, r.Type)
			writeIndex(buf, blobSz, r.Value)
		}
	case ClassLayout:
		for _, r := range w.clsLay {
			buf.Write(u16(r.PackingSize))
			buf.Write(u32(r.ClassSize))
			writeIndex(buf, w.tableIndexSize(TypeDef), r.Parent)
		}
	case FieldLayout:
		for _, r := range w.fldLay {
			buf.Write(u32(r.Offset))
			writeIndex(buf, w.tableIndexSize(Field), r.Field)
		}
	case ModuleRef:
		for _, r := range w.modRef {
			writeIndex(buf, strSz, r.Name)
		}
	case ImplMap:
		for _, r := range w.implMap {
			buf.Write(u16(r.MappingFlags))
			writeIndex(buf, memberFwdSz, r.MemberForwarded)
			writeIndex(buf, strSz, r.ImportName)
			writeIndex(buf, w.tableIndexSize(ModuleRef), r.ImportScope)
		}
	case Assembly:
		for _, r := range w.assembly {
			buf.Write(u32(r.HashAlgID))
			buf.Write(u16(r.MajorVersion))
			buf.Write(u16(r.MinorVersion))
			buf.Write(u16(r.BuildNumber))
			buf.Write(u16(r.RevisionNumber))
			buf.Write(u32(r.Flags))
			writeIndex(buf, blobSz, r.PublicKey)
			writeIndex(buf, strSz, r.Name)
			writeIndex(buf, strSz, r.Culture)
		}
	case AssemblyRef:
		for _, r := range w.assemblyRef {
			buf.Write(u16(r.MajorVersion))
			buf.Write(u16(r.MinorVersion))
			buf.Write(u16(r.BuildNumber))
			buf.Write(u16(r.RevisionNumber))
			buf.Write(u32(r.Flags))
			writeIndex(buf, blobSz, r.PublicKeyOrToken)
			writeIndex(buf, strSz, r.Name)
			writeIndex(buf, strSz, r.Culture)
			writeIndex(buf, blobSz, r.HashValue)
		}
	}
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
