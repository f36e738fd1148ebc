// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package peimage

import (
	"encoding/binary"
	"testing"
)

func TestBuildProducesMZAndPESignatures(t *testing.T) {
	out := Build([]byte("clr-header-and-metadata-stub"))
	if len(out) < 128 {
		t.Fatalf("image too short: %d bytes", len(out))
	}
	if binary.LittleEndian.Uint16(out[:2]) != imageDOSSignature {
		t.Fatalf("missing MZ signature")
	}
	lfanew := binary.LittleEndian.Uint32(out[0x3c:0x40])
	if lfanew != dosStubSize {
		t.Fatalf("e_lfanew = %#x, want %#x", lfanew, dosStubSize)
	}
	peSig := binary.LittleEndian.Uint32(out[lfanew : lfanew+4])
	if peSig != imageNTSignature {
		t.Fatalf("missing PE signature at e_lfanew")
	}
}

func TestBuildEntryPointIsZero(t *testing.T) {
	out := Build([]byte("x"))
	lfanew := binary.LittleEndian.Uint32(out[0x3c:0x40])
	fileHeaderOff := lfanew + 4
	optHeaderOff := fileHeaderOff + uint32(binary.Size(fileHeader{}))
	entry := binary.LittleEndian.Uint32(out[optHeaderOff+16 : optHeaderOff+20])
	if entry != 0 {
		t.Fatalf("AddressOfEntryPoint = %#x, want 0 (never executed as native code)", entry)
	}
}

func TestBuildFromMetadataRootPointsCLRDirectoryAtHeader(t *testing.T) {
	root := []byte("BSJB-stub-metadata-root")
	out := BuildFromMetadataRoot(root)

	lfanew := binary.LittleEndian.Uint32(out[0x3c:0x40])
	optHeaderOff := lfanew + 4 + uint32(binary.Size(fileHeader{}))
	clrDirOff := optHeaderOff + 96 + 14*8
	clrRVA := binary.LittleEndian.Uint32(out[clrDirOff : clrDirOff+4])
	clrSize := binary.LittleEndian.Uint32(out[clrDirOff+4 : clrDirOff+8])

	headersSize := computeHeadersSize()
	if clrRVA != headersSize {
		t.Fatalf("CLR directory RVA = %#x, want %#x", clrRVA, headersSize)
	}
	if clrSize != imageCOR20HeaderSize+uint32(len(root)) {
		t.Fatalf("CLR directory size = %d, want %d", clrSize, imageCOR20HeaderSize+len(root))
	}

	metaVA := binary.LittleEndian.Uint32(out[clrRVA+8 : clrRVA+12])
	metaSize := binary.LittleEndian.Uint32(out[clrRVA+12 : clrRVA+16])
	if metaVA != headersSize+imageCOR20HeaderSize {
		t.Fatalf("MetaData.VirtualAddress = %#x, want %#x", metaVA, headersSize+imageCOR20HeaderSize)
	}
	if metaSize != uint32(len(root)) {
		t.Fatalf("MetaData.Size = %d, want %d", metaSize, len(root))
	}
}

func TestBuildImageSizeIsSectionAligned(t *testing.T) {
	out := Build(make([]byte, 5000))
	lfanew := binary.LittleEndian.Uint32(out[0x3c:0x40])
	optHeaderOff := lfanew + 4 + uint32(binary.Size(fileHeader{}))
	sizeOfImageOff := optHeaderOff + 56
	sizeOfImage := binary.LittleEndian.Uint32(out[sizeOfImageOff : sizeOfImageOff+4])
	if sizeOfImage%sectionAlignment != 0 {
		t.Fatalf("SizeOfImage %d is not section-aligned", sizeOfImage)
	}
}
