// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package peread is a narrow round-trip reader over the assemblies
// peimage.Build produces: enough of the PE/COFF and CLR metadata root
// to confirm the CLR directory, stream headers, and table rows are
// structurally sound, used only by the orchestrator's optional
// output.validate self-check. It is not a general PE parser — it
// decodes exactly the tables spec.md §4.6 emits (TypeDef, TypeRef,
// Field, MethodDef, Param, Constant, ClassLayout, FieldLayout,
// ImplMap, ModuleRef, Module), including the TypeDefOrRef,
// ResolutionScope, HasConstant and MemberForwarded coded indices that
// point into them.
package peread

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/edsrzf/mmap-go"

	"github.com/saferwall/bnd-winmd/internal/bnderr"
	"github.com/saferwall/bnd-winmd/internal/metadata"
)

// TypeDefEntry is one decoded TypeDef row.
type TypeDefEntry struct {
	Namespace  string
	Name       string
	Flags      uint32
	FieldList  uint32
	MethodList uint32
}

// TypeRefEntry is one decoded TypeRef row.
type TypeRefEntry struct {
	Namespace string
	Name      string
}

// FieldEntry is one decoded Field row.
type FieldEntry struct {
	Name string
}

// MethodDefEntry is one decoded MethodDef row.
type MethodDefEntry struct {
	Name string
}

// ClassLayoutEntry is one decoded ClassLayout row; TypeDef is the 1-based
// rid its Parent coded index resolved to, usable as an index into
// Summary.TypeDefs.
type ClassLayoutEntry struct {
	PackingSize uint16
	ClassSize   uint32
	TypeDef     uint32
}

// FieldLayoutEntry is one decoded FieldLayout row.
type FieldLayoutEntry struct {
	Offset uint32
	Field  uint32 // 1-based rid into Summary.Fields
}

// ImplMapEntry is one decoded ImplMap row; MemberForwardedTable/RID is the
// decoded MemberForwarded coded index (always Field or MethodDef).
type ImplMapEntry struct {
	MemberForwardedTable int
	MemberForwardedRID   uint32
	ImportName           string
	ImportScope          uint32 // 1-based rid into Summary.ModuleRefs
}

// ModuleRefEntry is one decoded ModuleRef row.
type ModuleRefEntry struct {
	Name string
}

// Summary is what a successful Validate run confirms about the image.
type Summary struct {
	CLRHeaderSize  uint32
	MetadataSize   uint32
	Streams        []string
	TableRowCounts map[string]uint32

	ModuleName   string
	TypeDefs     []TypeDefEntry
	TypeRefs     []TypeRefEntry
	Fields       []FieldEntry
	Methods      []MethodDefEntry
	ClassLayouts []ClassLayoutEntry
	FieldLayouts []FieldLayoutEntry
	ModuleRefs   []ModuleRefEntry
	ImplMaps     []ImplMapEntry
}

var knownTables = []string{
	"Module", "TypeRef", "TypeDef", "", "Field", "", "MethodDef", "",
	"Param", "InterfaceImpl", "MemberRef", "Constant", "CustomAttribute",
	"FieldMarshal", "DeclSecurity", "ClassLayout", "FieldLayout",
	"StandAloneSig", "EventMap", "", "Event", "PropertyMap", "",
	"Property", "MethodSemantics", "MethodImpl", "ModuleRef", "TypeSpec",
	"ImplMap", "FieldRVA", "", "", "Assembly", "", "", "AssemblyRef",
	"", "", "File", "ExportedType", "ManifestResource", "NestedClass",
	"GenericParam", "MethodSpec", "GenericParamConstraint",
}

// codedidx mirrors metadata package's unexported descriptor of the same
// name: the tag-bit width and the ordered list of tables a coded index of
// this shape may point into. The four coded indices below are the ones
// this reader decodes; the CustomAttribute columns are only sized and
// skipped (see decodeRow).
type codedidx struct {
	tagbits uint32
	idx     []int
}

var (
	idxTypeDefOrRef    = codedidx{tagbits: 2, idx: []int{metadata.TypeDef, metadata.TypeRef, metadata.TypeSpec}}
	idxResolutionScope = codedidx{tagbits: 2, idx: []int{metadata.Module, metadata.ModuleRef, metadata.AssemblyRef, metadata.TypeRef}}
	idxHasConstant     = codedidx{tagbits: 2, idx: []int{metadata.Field, metadata.Param, metadata.Property}}
	idxMemberForwarded = codedidx{tagbits: 1, idx: []int{metadata.Field, metadata.MethodDef}}
)

// decodeCoded splits a coded-index value into the table it points at and
// the 1-based rid within that table, per ECMA-335 §II.24.2.6.
func decodeCoded(idx codedidx, v uint32) (table int, rid uint32) {
	tag := v & ((1 << idx.tagbits) - 1)
	rid = v >> idx.tagbits
	if int(tag) < len(idx.idx) {
		table = idx.idx[tag]
	} else {
		table = -1
	}
	return table, rid
}

// ValidateFile mmaps path and runs Validate over its contents.
func ValidateFile(path string) (*Summary, error) {
	data, err := mmapFile(path)
	if err != nil {
		return nil, err
	}
	defer data.Unmap()
	return Validate(data)
}

func mmapFile(path string) (mmap.MMap, error) {
	m, err := mmap.OpenFile(path, mmap.RDONLY)
	if err != nil {
		return nil, bnderr.New(bnderr.IO, err)
	}
	return m, nil
}

// Validate walks just enough of a PE image to reach the CLR metadata
// root and decodes its streams and table rows.
func Validate(data []byte) (*Summary, error) {
	if len(data) < 0x40 || data[0] != 'M' || data[1] != 'Z' {
		return nil, bnderr.Newf(bnderr.Invariant, "missing MZ signature")
	}
	lfanew := binary.LittleEndian.Uint32(data[0x3c:])
	if int(lfanew)+4+20+2 > len(data) {
		return nil, bnderr.Newf(bnderr.Invariant, "e_lfanew out of range")
	}
	if !bytes.Equal(data[lfanew:lfanew+4], []byte{'P', 'E', 0, 0}) {
		return nil, bnderr.Newf(bnderr.Invariant, "missing PE signature")
	}

	fileHdrOff := lfanew + 4
	numberOfSections := binary.LittleEndian.Uint16(data[fileHdrOff+2:])
	sizeOfOptionalHeader := binary.LittleEndian.Uint16(data[fileHdrOff+16:])
	optHdrOff := fileHdrOff + 20

	// Data directory 14 (CLR) lives 96 bytes into a PE32 optional header.
	clrDirOff := optHdrOff + 96 + 14*8
	if int(clrDirOff)+8 > len(data) {
		return nil, bnderr.Newf(bnderr.Invariant, "optional header too short for CLR directory")
	}
	clrRVA := binary.LittleEndian.Uint32(data[clrDirOff:])
	clrSize := binary.LittleEndian.Uint32(data[clrDirOff+4:])
	if clrRVA == 0 {
		return nil, bnderr.Newf(bnderr.Invariant, "no CLR data directory present")
	}

	sectionsOff := optHdrOff + uint32(sizeOfOptionalHeader)
	fileOff, err := rvaToFileOffset(data, sectionsOff, numberOfSections, clrRVA)
	if err != nil {
		return nil, err
	}

	return parseCLRHeader(data, fileOff, clrSize)
}

func rvaToFileOffset(data []byte, sectionsOff uint32, count uint16, rva uint32) (uint32, error) {
	const sectionHeaderSize = 40
	for i := uint16(0); i < count; i++ {
		off := sectionsOff + uint32(i)*sectionHeaderSize
		if int(off)+sectionHeaderSize > len(data) {
			break
		}
		va := binary.LittleEndian.Uint32(data[off+12:])
		rawSize := binary.LittleEndian.Uint32(data[off+16:])
		rawPtr := binary.LittleEndian.Uint32(data[off+20:])
		if rva >= va && rva < va+rawSize {
			return rawPtr + (rva - va), nil
		}
	}
	return 0, bnderr.Newf(bnderr.Invariant, "RVA 0x%x not covered by any section", rva)
}

func parseCLRHeader(data []byte, off, size uint32) (*Summary, error) {
	if int(off)+int(size) > len(data) || size < 72 {
		return nil, bnderr.Newf(bnderr.Invariant, "CLR header out of range")
	}
	metaRVA := binary.LittleEndian.Uint32(data[off+8:])
	metaSize := binary.LittleEndian.Uint32(data[off+12:])

	// This tool always places the metadata root in the same section as
	// the CLR header that points at it (peimage.Build never splits
	// them), so metaRVA - clrRVA is a same-section delta applicable
	// directly to the CLR header's own file offset.
	lfanew := binary.LittleEndian.Uint32(data[0x3c:])
	clrDirOff := lfanew + 4 + 20 + 96 + 14*8
	clrRVA := binary.LittleEndian.Uint32(data[clrDirOff:])
	metaFileOff := off + (metaRVA - clrRVA)

	summary, err := parseMetadataRoot(data, metaFileOff, metaSize)
	if err != nil {
		return nil, err
	}
	summary.CLRHeaderSize = size
	return summary, nil
}

// stream is a decoded stream header: name plus its absolute file offset
// and size, kept around so the table reader can resolve #Strings offsets.
type stream struct {
	name string
	off  uint32
	size uint32
}

func parseMetadataRoot(data []byte, off, size uint32) (*Summary, error) {
	if int(off)+int(size) > len(data) || size < 20 {
		return nil, bnderr.Newf(bnderr.Invariant, "metadata root out of range")
	}
	if !bytes.Equal(data[off:off+4], []byte{'B', 'S', 'J', 'B'}) {
		return nil, bnderr.Newf(bnderr.Invariant, "missing BSJB metadata signature")
	}
	verLen := binary.LittleEndian.Uint32(data[off+12:])
	cursor := off + 16 + align4(verLen)
	if int(cursor)+4 > len(data) {
		return nil, bnderr.Newf(bnderr.Invariant, "metadata root truncated before stream count")
	}
	cursor += 2 // Flags, reserved
	numStreams := binary.LittleEndian.Uint16(data[cursor:])
	cursor += 2

	summary := &Summary{MetadataSize: size, TableRowCounts: map[string]uint32{}}
	var streams []stream
	for i := uint16(0); i < numStreams; i++ {
		if int(cursor)+8 > len(data) {
			return nil, bnderr.Newf(bnderr.Invariant, "stream header %d truncated", i)
		}
		streamOff := off + binary.LittleEndian.Uint32(data[cursor:])
		streamSize := binary.LittleEndian.Uint32(data[cursor+4:])
		cursor += 8
		nameStart := cursor
		for cursor < uint32(len(data)) && data[cursor] != 0 {
			cursor++
		}
		name := string(data[nameStart:cursor])
		cursor = align4(cursor + 1)
		summary.Streams = append(summary.Streams, name)
		streams = append(streams, stream{name: name, off: streamOff, size: streamSize})
	}

	var tableStream, stringsStream *stream
	for i := range streams {
		switch streams[i].name {
		case "#~":
			tableStream = &streams[i]
		case "#Strings":
			stringsStream = &streams[i]
		}
	}
	if tableStream == nil {
		return nil, bnderr.Newf(bnderr.Invariant, "no #~ table stream present")
	}

	r := &tableReader{data: data, strings: stringsStream}
	if err := r.parse(tableStream.off, tableStream.size, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// tableReader decodes the #~ stream's row-count vector and row data,
// resolving #Strings references as it goes.
type tableReader struct {
	data    []byte
	strings *stream

	strSz, guidSz, blobSz                               uint32
	typeDefOrRefSz, resScopeSz, hasConstSz, memberFwdSz uint32
	tableSz                                             [64]uint32
	rowCounts                                            [64]uint32
}

func (r *tableReader) parse(off, size uint32, summary *Summary) error {
	if int(off)+24 > len(r.data) {
		return bnderr.Newf(bnderr.Invariant, "#~ stream header truncated")
	}
	heapSizes := r.data[off+6]
	r.strSz = indexSize(heapSizes&0x01 != 0)
	r.guidSz = indexSize(heapSizes&0x02 != 0)
	r.blobSz = indexSize(heapSizes&0x04 != 0)

	valid := binary.LittleEndian.Uint64(r.data[off+8:])
	cursor := off + 24

	var present []int
	for i := 0; i < 64; i++ {
		if valid&(1<<uint(i)) == 0 {
			continue
		}
		if int(cursor)+4 > len(r.data) {
			return bnderr.Newf(bnderr.Invariant, "table %d row count truncated", i)
		}
		count := binary.LittleEndian.Uint32(r.data[cursor:])
		cursor += 4
		r.rowCounts[i] = count
		present = append(present, i)

		name := fmt.Sprintf("table_%02x", i)
		if i < len(knownTables) && knownTables[i] != "" {
			name = knownTables[i]
		}
		summary.TableRowCounts[name] = count
	}

	for i := range r.tableSz {
		r.tableSz[i] = indexSize(r.rowCounts[i] > 0xFFFF)
	}
	r.typeDefOrRefSz = r.codedIndexSize(idxTypeDefOrRef)
	r.resScopeSz = r.codedIndexSize(idxResolutionScope)
	r.hasConstSz = r.codedIndexSize(idxHasConstant)
	r.memberFwdSz = r.codedIndexSize(idxMemberForwarded)

	for _, t := range present {
		var err error
		cursor, err = r.decodeTable(t, cursor, summary)
		if err != nil {
			return err
		}
	}
	return nil
}

func indexSize(big bool) uint32 {
	if big {
		return 4
	}
	return 2
}

func (r *tableReader) codedIndexSize(idx codedidx) uint32 {
	maxIndex16 := uint32(1) << (16 - idx.tagbits)
	var maxRows uint32
	for _, t := range idx.idx {
		if t >= 0 && t < len(r.rowCounts) && r.rowCounts[t] > maxRows {
			maxRows = r.rowCounts[t]
		}
	}
	if maxRows >= maxIndex16 {
		return 4
	}
	return 2
}

func (r *tableReader) readIndex(off, size uint32) (uint32, uint32) {
	if size == 4 {
		return binary.LittleEndian.Uint32(r.data[off:]), off + 4
	}
	return uint32(binary.LittleEndian.Uint16(r.data[off:])), off + 2
}

// readString reads a NUL-terminated UTF-8 entry out of the #Strings heap
// at strIdx. Returns "" if there is no #Strings stream (an empty-module
// edge case this tool never actually produces, but the reader should not
// panic on it).
func (r *tableReader) readString(strIdx uint32) string {
	if r.strings == nil {
		return ""
	}
	start := r.strings.off + strIdx
	end := start
	for end < uint32(len(r.data)) && r.data[end] != 0 {
		end++
	}
	if start >= uint32(len(r.data)) {
		return ""
	}
	return string(r.data[start:end])
}

// decodeTable decodes table's rows starting at cursor and returns the
// cursor positioned just past them. CustomAttribute rows are skipped
// column by column; any other table without a case in decodeRow consumes
// no bytes, which is only correct when it has no rows or sorts after
// every decoded table (as Assembly and AssemblyRef do).
func (r *tableReader) decodeTable(table int, cursor uint32, summary *Summary) (uint32, error) {
	n := r.rowCounts[table]
	for i := uint32(0); i < n; i++ {
		var err error
		cursor, err = r.decodeRow(table, cursor, summary)
		if err != nil {
			return 0, err
		}
	}
	return cursor, nil
}

func (r *tableReader) decodeRow(table int, cursor uint32, summary *Summary) (uint32, error) {
	data := r.data
	switch table {
	case metadata.Module:
		if int(cursor)+2 > len(data) {
			return 0, bnderr.Newf(bnderr.Invariant, "Module row truncated")
		}
		cursor += 2 // Generation
		var nameIdx uint32
		nameIdx, cursor = r.readIndex(cursor, r.strSz)
		_, cursor = r.readIndex(cursor, r.guidSz) // Mvid
		_, cursor = r.readIndex(cursor, r.guidSz) // EncID
		_, cursor = r.readIndex(cursor, r.guidSz) // EncBaseID
		summary.ModuleName = r.readString(nameIdx)

	case metadata.TypeRef:
		var scope, nameIdx, nsIdx uint32
		scope, cursor = r.readIndex(cursor, r.resScopeSz)
		nameIdx, cursor = r.readIndex(cursor, r.strSz)
		nsIdx, cursor = r.readIndex(cursor, r.strSz)
		_ = scope
		summary.TypeRefs = append(summary.TypeRefs, TypeRefEntry{
			Namespace: r.readString(nsIdx),
			Name:      r.readString(nameIdx),
		})

	case metadata.TypeDef:
		if int(cursor)+4 > len(data) {
			return 0, bnderr.Newf(bnderr.Invariant, "TypeDef row truncated")
		}
		flags := binary.LittleEndian.Uint32(data[cursor:])
		cursor += 4
		var nameIdx, nsIdx, fieldList, methodList uint32
		nameIdx, cursor = r.readIndex(cursor, r.strSz)
		nsIdx, cursor = r.readIndex(cursor, r.strSz)
		_, cursor = r.readIndex(cursor, r.typeDefOrRefSz) // Extends
		fieldList, cursor = r.readIndex(cursor, r.tableSz[metadata.Field])
		methodList, cursor = r.readIndex(cursor, r.tableSz[metadata.MethodDef])
		summary.TypeDefs = append(summary.TypeDefs, TypeDefEntry{
			Namespace:  r.readString(nsIdx),
			Name:       r.readString(nameIdx),
			Flags:      flags,
			FieldList:  fieldList,
			MethodList: methodList,
		})

	case metadata.Field:
		if int(cursor)+2 > len(data) {
			return 0, bnderr.Newf(bnderr.Invariant, "Field row truncated")
		}
		cursor += 2 // Flags
		var nameIdx uint32
		nameIdx, cursor = r.readIndex(cursor, r.strSz)
		_, cursor = r.readIndex(cursor, r.blobSz) // Signature
		summary.Fields = append(summary.Fields, FieldEntry{Name: r.readString(nameIdx)})

	case metadata.MethodDef:
		if int(cursor)+8 > len(data) {
			return 0, bnderr.Newf(bnderr.Invariant, "MethodDef row truncated")
		}
		cursor += 4 + 2 + 2 // RVA, ImplFlags, Flags
		var nameIdx uint32
		nameIdx, cursor = r.readIndex(cursor, r.strSz)
		_, cursor = r.readIndex(cursor, r.blobSz)             // Signature
		_, cursor = r.readIndex(cursor, r.tableSz[metadata.Param]) // ParamList
		summary.Methods = append(summary.Methods, MethodDefEntry{Name: r.readString(nameIdx)})

	case metadata.Param:
		if int(cursor)+4 > len(data) {
			return 0, bnderr.Newf(bnderr.Invariant, "Param row truncated")
		}
		cursor += 4 // Flags, Sequence
		_, cursor = r.readIndex(cursor, r.strSz)

	case metadata.Constant:
		if int(cursor)+2 > len(data) {
			return 0, bnderr.Newf(bnderr.Invariant, "Constant row truncated")
		}
		cursor += 2 // Type, Padding
		_, cursor = r.readIndex(cursor, r.hasConstSz)
		_, cursor = r.readIndex(cursor, r.blobSz)

	case metadata.ClassLayout:
		if int(cursor)+6 > len(data) {
			return 0, bnderr.Newf(bnderr.Invariant, "ClassLayout row truncated")
		}
		packing := binary.LittleEndian.Uint16(data[cursor:])
		classSize := binary.LittleEndian.Uint32(data[cursor+2:])
		cursor += 6
		var parent uint32
		parent, cursor = r.readIndex(cursor, r.tableSz[metadata.TypeDef])
		summary.ClassLayouts = append(summary.ClassLayouts, ClassLayoutEntry{
			PackingSize: packing,
			ClassSize:   classSize,
			TypeDef:     parent,
		})

	case metadata.FieldLayout:
		if int(cursor)+4 > len(data) {
			return 0, bnderr.Newf(bnderr.Invariant, "FieldLayout row truncated")
		}
		offset := binary.LittleEndian.Uint32(data[cursor:])
		cursor += 4
		var field uint32
		field, cursor = r.readIndex(cursor, r.tableSz[metadata.Field])
		summary.FieldLayouts = append(summary.FieldLayouts, FieldLayoutEntry{Offset: offset, Field: field})

	case metadata.ModuleRef:
		var nameIdx uint32
		nameIdx, cursor = r.readIndex(cursor, r.strSz)
		summary.ModuleRefs = append(summary.ModuleRefs, ModuleRefEntry{Name: r.readString(nameIdx)})

	case metadata.ImplMap:
		if int(cursor)+2 > len(data) {
			return 0, bnderr.Newf(bnderr.Invariant, "ImplMap row truncated")
		}
		cursor += 2 // MappingFlags
		var memberFwd, nameIdx, scope uint32
		memberFwd, cursor = r.readIndex(cursor, r.memberFwdSz)
		nameIdx, cursor = r.readIndex(cursor, r.strSz)
		scope, cursor = r.readIndex(cursor, r.tableSz[metadata.ModuleRef])
		fwdTable, fwdRID := decodeCoded(idxMemberForwarded, memberFwd)
		summary.ImplMaps = append(summary.ImplMaps, ImplMapEntry{
			MemberForwardedTable: fwdTable,
			MemberForwardedRID:   fwdRID,
			ImportName:           r.readString(nameIdx),
			ImportScope:          scope,
		})

	case metadata.CustomAttribute:
		// Not decoded: Parent, Type and Value columns are skipped.
		hasCA := codedidx{tagbits: 5, idx: []int{metadata.MethodDef, metadata.Field, metadata.TypeRef, metadata.TypeDef, metadata.Param, metadata.InterfaceImpl, metadata.MemberRef, metadata.Module, metadata.DeclSecurity, metadata.Property, metadata.Event, metadata.StandAloneSig, metadata.ModuleRef, metadata.TypeSpec, metadata.Assembly, metadata.AssemblyRef, metadata.FileMD, metadata.ExportedType, metadata.ManifestResource, metadata.GenericParam, metadata.GenericParamConstraint, metadata.MethodSpec}}
		caType := codedidx{tagbits: 3, idx: []int{metadata.MethodDef, metadata.MemberRef}}
		_, cursor = r.readIndex(cursor, r.codedIndexSize(hasCA))
		_, cursor = r.readIndex(cursor, r.codedIndexSize(caType))
		_, cursor = r.readIndex(cursor, r.blobSz)

	default:
		// No column layout here: nothing is consumed. The emitter's only
		// other non-empty tables are Assembly and AssemblyRef, which come
		// after every table above, so no decoded row is read out of place.
	}
	return cursor, nil
}

func align4(v uint32) uint32 {
	if v%4 == 0 {
		return v
	}
	return v + (4 - v%4)
}
