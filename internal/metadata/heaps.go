// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package metadata

import "bytes"

// stringHeap is the #Strings heap builder: UTF-8, NUL-terminated entries,
// deduplicated by content, with the mandatory empty string at offset 0.
type stringHeap struct {
	buf     bytes.Buffer
	offsets map[string]uint32
}

func newStringHeap() *stringHeap {
	h := &stringHeap{offsets: make(map[string]uint32)}
	h.buf.WriteByte(0)
	h.offsets[""] = 0
	return h
}

// Add interns s and returns its offset into the heap.
func (h *stringHeap) Add(s string) uint32 {
	if off, ok := h.offsets[s]; ok {
		return off
	}
	off := uint32(h.buf.Len())
	h.buf.WriteString(s)
	h.buf.WriteByte(0)
	h.offsets[s] = off
	return off
}

func (h *stringHeap) Bytes() []byte { return padTo4(h.buf.Bytes()) }

// blobHeap is the #Blob heap builder: each entry is a compressed-length
// prefix followed by raw bytes, per ECMA-335 §II.23.2, with the mandatory
// empty blob at offset 0.
type blobHeap struct {
	buf     bytes.Buffer
	offsets map[string]uint32
}

func newBlobHeap() *blobHeap {
	h := &blobHeap{offsets: make(map[string]uint32)}
	h.buf.WriteByte(0)
	h.offsets[""] = 0
	return h
}

// Add interns blob (deduplicated by exact byte content) and returns its
// offset into the heap.
func (h *blobHeap) Add(blob []byte) uint32 {
	key := string(blob)
	if off, ok := h.offsets[key]; ok {
		return off
	}
	off := uint32(h.buf.Len())
	writeCompressedUint(&h.buf, uint32(len(blob)))
	h.buf.Write(blob)
	h.offsets[key] = off
	return off
}

func (h *blobHeap) Bytes() []byte { return padTo4(h.buf.Bytes()) }

// guidHeap is the #GUID heap: a flat array of 16-byte GUIDs, 1-based
// indexed (index 0 means "no GUID").
type guidHeap struct {
	guids [][16]byte
}

// Add appends g and returns its 1-based GUID heap index.
func (h *guidHeap) Add(g [16]byte) uint32 {
	h.guids = append(h.guids, g)
	return uint32(len(h.guids))
}

func (h *guidHeap) Bytes() []byte {
	buf := make([]byte, 0, len(h.guids)*16)
	for _, g := range h.guids {
		buf = append(buf, g[:]...)
	}
	return padTo4(buf)
}

// WriteCompressedUint encodes n as an ECMA-335 §II.23.2 compressed
// unsigned integer (1, 2, or 4 bytes depending on magnitude). Exported
// for signature blob builders outside this package.
func WriteCompressedUint(buf *bytes.Buffer, n uint32) {
	writeCompressedUint(buf, n)
}

func writeCompressedUint(buf *bytes.Buffer, n uint32) {
	switch {
	case n <= 0x7f:
		buf.WriteByte(byte(n))
	case n <= 0x3fff:
		buf.WriteByte(byte(0x80 | (n >> 8)))
		buf.WriteByte(byte(n))
	default:
		buf.WriteByte(byte(0xc0 | (n >> 24)))
		buf.WriteByte(byte(n >> 16))
		buf.WriteByte(byte(n >> 8))
		buf.WriteByte(byte(n))
	}
}

func padTo4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}
