// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package peimage builds the minimal PE32/COFF shell a WinMD assembly
// needs to host its CLR metadata: a DOS stub, COFF file header, PE32
// optional header with the CLR data directory populated, and a single
// .text section holding the CLR header and the metadata root. The
// layout mirrors what a PE analysis tool reads back, inverted for
// writing, scoped down to what a metadata-only, never-executed assembly
// requires — there is no import table, no base relocations, and
// AddressOfEntryPoint is left at zero, since nothing ever runs this
// image as native code (see the design notes in the repository root).
package peimage

import (
	"bytes"
	"encoding/binary"
)

const (
	imageDOSSignature = 0x5A4D // "MZ"
	imageNTSignature  = 0x00004550
	imageNtOptionalHdr32Magic = 0x10b

	imageFileMachineI386 = 0x014c
	imageFileExecutableImage = 0x0002
	imageFile32BitMachine    = 0x0100
	imageFileDLL             = 0x2000

	imageSubsystemWindowsCui = 3

	imageScnCntInitializedData = 0x00000040
	imageScnMemExecute         = 0x20000000
	imageScnMemRead            = 0x40000000

	fileAlignment    = 0x200
	sectionAlignment = 0x1000
	imageBase32      = 0x00400000

	numberOfDataDirectories = 16
	imageDirectoryEntryCLR  = 14

	dosStubSize = 0x80 // DOS header + stub, e_lfanew points right after it
)

// dosHeader is the 64-byte MZ header, laid out exactly as
// ImageDOSHeader in a PE reader, so a reader built against that same
// shape parses this output unmodified.
type dosHeader struct {
	Magic                    uint16
	BytesOnLastPageOfFile    uint16
	PagesInFile              uint16
	Relocations              uint16
	SizeOfHeader             uint16
	MinExtraParagraphsNeeded uint16
	MaxExtraParagraphsNeeded uint16
	InitialSS                uint16
	InitialSP                uint16
	Checksum                 uint16
	InitialIP                uint16
	InitialCS                uint16
	AddressOfRelocationTable uint16
	OverlayNumber            uint16
	ReservedWords1           [4]uint16
	OEMIdentifier            uint16
	OEMInformation           uint16
	ReservedWords2           [10]uint16
	AddressOfNewEXEHeader    uint32
}

type fileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

type dataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

type optionalHeader32 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	BaseOfData                  uint32
	ImageBase                   uint32
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint32
	SizeOfStackCommit           uint32
	SizeOfHeapReserve           uint32
	SizeOfHeapCommit            uint32
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
	DataDirectory               [numberOfDataDirectories]dataDirectory
}

type sectionHeader struct {
	Name                 [8]byte
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

const (
	imageCOR20HeaderSize = 72
	comImageFlagsILOnly  = 0x00000001
)

func computeHeadersSize() uint32 {
	return align(dosStubSize+4+uint32(binary.Size(fileHeader{}))+uint32(binary.Size(optionalHeader32{}))+uint32(binary.Size(sectionHeader{})), fileAlignment)
}

// BuildFromMetadataRoot builds the CLR 2.0 header (ECMA-335 §II.25.3.3)
// for metadataRoot, using the RVA this layout always places the .text
// section at, then hands the combined blob to Build. metadataRoot is
// whatever a metadata.Writer's Bytes method returned.
func BuildFromMetadataRoot(metadataRoot []byte) []byte {
	headersSize := computeHeadersSize()

	cor20 := make([]byte, imageCOR20HeaderSize)
	binary.LittleEndian.PutUint32(cor20[0:], imageCOR20HeaderSize) // cb
	binary.LittleEndian.PutUint16(cor20[4:], 2)                    // MajorRuntimeVersion
	binary.LittleEndian.PutUint16(cor20[6:], 5)                    // MinorRuntimeVersion
	binary.LittleEndian.PutUint32(cor20[8:], headersSize+imageCOR20HeaderSize) // MetaData.VirtualAddress
	binary.LittleEndian.PutUint32(cor20[12:], uint32(len(metadataRoot)))       // MetaData.Size
	binary.LittleEndian.PutUint32(cor20[16:], comImageFlagsILOnly)             // Flags
	// EntryPointToken and everything after MetaData/Flags are left
	// zeroed: no managed entry point, no resources, no strong-name
	// signature, nothing this metadata-only assembly needs.

	return Build(append(cor20, metadataRoot...))
}

// Build assembles a full PE32 image wrapping clrHeader and the metadata
// root it points at, both placed in a single .text section.
func Build(clrHeaderAndMetadata []byte) []byte {
	textSize := align(uint32(len(clrHeaderAndMetadata)), fileAlignment)

	headersSize := computeHeadersSize()

	var out bytes.Buffer
	writeDOSHeader(&out)
	stub := dosStub()
	if uint32(len(stub)) > dosStubSize-uint32(out.Len()) {
		stub = stub[:dosStubSize-uint32(out.Len())]
	}
	out.Write(stub)
	for uint32(out.Len()) < dosStubSize {
		out.WriteByte(0)
	}

	binary.Write(&out, binary.LittleEndian, uint32(imageNTSignature))
	binary.Write(&out, binary.LittleEndian, fileHeader{
		Machine:              imageFileMachineI386,
		NumberOfSections:     1,
		SizeOfOptionalHeader: uint16(binary.Size(optionalHeader32{})),
		Characteristics:      imageFileExecutableImage | imageFile32BitMachine | imageFileDLL,
	})

	oh := optionalHeader32{
		Magic:                 imageNtOptionalHdr32Magic,
		MajorLinkerVersion:    11,
		SizeOfInitializedData: textSize,
		// AddressOfEntryPoint left at 0: this image is never loaded as
		// native executable code, only read as a metadata container.
		BaseOfCode:          uint32(headersSize),
		BaseOfData:          uint32(headersSize),
		ImageBase:           imageBase32,
		SectionAlignment:    sectionAlignment,
		FileAlignment:       fileAlignment,
		MajorSubsystemVersion: 4,
		SizeOfImage:         align(headersSize+textSize, sectionAlignment),
		SizeOfHeaders:       headersSize,
		Subsystem:           imageSubsystemWindowsCui,
		SizeOfStackReserve:  0x100000,
		SizeOfStackCommit:   0x1000,
		SizeOfHeapReserve:   0x100000,
		SizeOfHeapCommit:    0x1000,
		NumberOfRvaAndSizes: numberOfDataDirectories,
	}
	oh.DataDirectory[imageDirectoryEntryCLR] = dataDirectory{
		VirtualAddress: headersSize,
		Size:           uint32(len(clrHeaderAndMetadata)),
	}
	binary.Write(&out, binary.LittleEndian, oh)

	var name [8]byte
	copy(name[:], ".text")
	binary.Write(&out, binary.LittleEndian, sectionHeader{
		Name:             name,
		VirtualSize:      uint32(len(clrHeaderAndMetadata)),
		VirtualAddress:   headersSize,
		SizeOfRawData:    textSize,
		PointerToRawData: headersSize,
		Characteristics:  imageScnCntInitializedData | imageScnMemExecute | imageScnMemRead,
	})

	for uint32(out.Len()) < headersSize {
		out.WriteByte(0)
	}

	out.Write(clrHeaderAndMetadata)
	for uint32(out.Len()) < headersSize+textSize {
		out.WriteByte(0)
	}

	return out.Bytes()
}

func writeDOSHeader(out *bytes.Buffer) {
	h := dosHeader{
		Magic:                    imageDOSSignature,
		BytesOnLastPageOfFile:    0x90,
		PagesInFile:              3,
		MaxExtraParagraphsNeeded: 0xffff,
		InitialSP:                0xb8,
		AddressOfRelocationTable: 0x40,
		AddressOfNewEXEHeader:    dosStubSize,
	}
	binary.Write(out, binary.LittleEndian, h)
}

// dosStub is the conventional "This program cannot be run in DOS mode"
// real-mode stub; its exact bytes are cosmetic; only e_lfanew matters to
// a conformant PE/CLR loader.
func dosStub() []byte {
	return []byte(
		"\x0e\x1f\xba\x0e\x00\xb4\x09\xcd\x21\xb8\x01\x4c\xcd\x21" +
			"This program cannot be run in DOS mode.\r\r\n$\x00\x00\x00\x00\x00\x00\x00",
	)
}

func align(v, to uint32) uint32 {
	if v%to == 0 {
		return v
	}
	return v + (to - v%to)
}
