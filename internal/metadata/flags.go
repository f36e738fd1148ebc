// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package metadata

// TypeAttributes bits relevant to the shapes this tool emits (ECMA-335
// §II.23.1.15). Only the subset spec.md §4.6 names is defined.
const (
	TypeAttrPublic          uint32 = 0x00000001
	TypeAttrSequentialLayout uint32 = 0x00000008
	TypeAttrExplicitLayout  uint32 = 0x00000010
	TypeAttrClassSemanticsMask uint32 = 0x00000020
	TypeAttrAbstract        uint32 = 0x00000080
	TypeAttrSealed          uint32 = 0x00000100
	TypeAttrRTSpecialName   uint32 = 0x00000800
	TypeAttrLayoutMask      uint32 = 0x00000018
)

// FieldAttributes bits (ECMA-335 §II.23.1.5).
const (
	FieldAttrPublic       uint16 = 0x0006
	FieldAttrStatic       uint16 = 0x0010
	FieldAttrLiteral      uint16 = 0x0040
	FieldAttrRTSpecialName uint16 = 0x0400
)

// MethodAttributes bits (ECMA-335 §II.23.1.10).
const (
	MethodAttrPublic      uint16 = 0x0006
	MethodAttrStatic      uint16 = 0x0010
	MethodAttrPInvokeImpl uint16 = 0x2000
)

// MethodImplAttributes bits (ECMA-335 §II.23.1.10).
const (
	MethodImplManaged uint16 = 0x0000
)

// ParamAttributes bits (ECMA-335 §II.23.1.13).
const (
	ParamAttrIn  uint16 = 0x0001
	ParamAttrOut uint16 = 0x0002
)

// PInvokeAttributes bits (ECMA-335 §II.23.1.8). CharSetAnsi / CallConvCdecl
// are the only conventions the extracted calling-convention model needs.
const (
	PInvokeNoMangle        uint16 = 0x0001
	PInvokeCharSetAnsi     uint16 = 0x0002
	PInvokeCallConvWinapi  uint16 = 0x0100
	PInvokeCallConvCdecl   uint16 = 0x0200
	PInvokeCallConvStdCall uint16 = 0x0300
	PInvokeCallConvFastcall uint16 = 0x0500
)

// ElementType values used by signature blobs (ECMA-335 §II.23.1.16).
const (
	ElementTypeVoid    byte = 0x01
	ElementTypeBoolean byte = 0x02
	ElementTypeChar    byte = 0x03
	ElementTypeI1      byte = 0x04
	ElementTypeU1      byte = 0x05
	ElementTypeI2      byte = 0x06
	ElementTypeU2      byte = 0x07
	ElementTypeI4      byte = 0x08
	ElementTypeU4      byte = 0x09
	ElementTypeI8      byte = 0x0a
	ElementTypeU8      byte = 0x0b
	ElementTypeR4      byte = 0x0c
	ElementTypeR8      byte = 0x0d
	ElementTypePtr     byte = 0x0f
	ElementTypeValueType byte = 0x11
	ElementTypeClass   byte = 0x12
	ElementTypeArray   byte = 0x14
	ElementTypeI      byte = 0x18
	ElementTypeU      byte = 0x19
	ElementTypeObject byte = 0x1c
	ElementTypeSZArray byte = 0x1d
	ElementTypeCModReqd byte = 0x1f

	// CallingConvention bits embedded in a MethodDefSig's first byte
	// (ECMA-335 §II.23.2.1).
	SigDefault uint8 = 0x00
	SigHasThis uint8 = 0x20

	// SigField is the leading byte of a FieldSig (ECMA-335 §II.23.2.4).
	SigField uint8 = 0x06
)
