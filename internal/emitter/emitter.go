// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package emitter is the policy layer of spec.md §4.6: it lowers the
// cdecl model (after registry dedup) into ECMA-335 metadata rows,
// choosing the TypeDef shape each C construct gets (enum, value type,
// delegate, static Apis holder) and enforcing the row-ordering
// invariant — every Field/Param/MethodDef for an owner is appended
// immediately after that owner, with nothing from another owner
// interleaved.
package emitter

import (
	"github.com/saferwall/bnd-winmd/internal/cdecl"
	"github.com/saferwall/bnd-winmd/internal/logx"
	"github.com/saferwall/bnd-winmd/internal/metadata"
	"github.com/saferwall/bnd-winmd/internal/registry"
)

// supportNamespace holds the marker attribute TypeDefs every emitted
// partition decorates its own types with.
const supportNamespace = "Attributes"

// Emitter accumulates one assembly's metadata rows across every
// partition it is handed, in declared order.
type Emitter struct {
	w   *metadata.Writer
	reg *registry.Registry
	log logx.Logger

	corlib uint32
	base   baseTypeRefs

	nativeTypedefAttrCtor uint32
	constAttrCtor         uint32

	// typeDefRidByName resolves a Named CType to a local TypeDef rid for
	// names already emitted within the partition currently being
	// processed; reset at the start of each partition.
	typeDefRidByName map[string]uint32

	// crossRefCache dedups same-module TypeRefs ("namespace.name" ->
	// TypeRef rid) across the whole assembly.
	crossRefCache map[string]uint32
}

// New builds an Emitter writing against a fresh metadata.Writer.
func New(reg *registry.Registry, log logx.Logger) *Emitter {
	return &Emitter{
		w:             metadata.New(),
		reg:           reg,
		log:           log,
		crossRefCache: make(map[string]uint32),
	}
}

// Emit lowers every partition into the writer, in the order given, and
// returns the finished writer.
func (e *Emitter) Emit(assemblyName string, partitions []cdecl.PartitionExtract) *metadata.Writer {
	e.w.AddModule(metadata.ModuleRow{Name: e.w.Strings.Add(assemblyName)})
	e.w.AddAssembly(metadata.AssemblyRow{Name: e.w.Strings.Add(assemblyName), MajorVersion: 1})
	e.setupBaseTypes()
	e.setupAttributeTypeDefs(supportNamespace)

	for _, p := range partitions {
		e.emitPartition(p)
	}
	return e.w
}

func (e *Emitter) emitPartition(p cdecl.PartitionExtract) {
	e.typeDefRidByName = make(map[string]uint32)

	for _, en := range p.Enums {
		e.emitEnum(p.Namespace, en)
	}
	for _, s := range p.Structs {
		if s.IsUnion {
			e.emitUnion(p.Namespace, s)
		}
	}
	for _, s := range p.Structs {
		if !s.IsUnion {
			e.emitStruct(p.Namespace, s)
		}
	}
	for _, td := range p.Typedefs {
		if !td.IsDelegate {
			e.emitTypedef(p.Namespace, td)
		}
	}
	for _, td := range p.Typedefs {
		if td.IsDelegate {
			e.emitDelegate(p.Namespace, td)
		}
	}
	if len(p.Funcs) > 0 || len(p.Consts) > 0 {
		e.emitApis(p.Namespace, p.Library, p.Funcs, p.Consts)
	}

	e.log.WithFields(logx.Fields{
		"namespace": p.Namespace,
		"structs":   len(p.Structs),
		"enums":     len(p.Enums),
		"typedefs":  len(p.Typedefs),
		"funcs":     len(p.Funcs),
		"consts":    len(p.Consts),
	}).Infof("emitted partition")
}

// resolveNamed maps a Named CType's referent to a TypeDefOrRef operand:
// a direct TypeDef reference when it was already emitted in the current
// partition, otherwise a same-module TypeRef keyed by (namespace, name).
// The TypeRef path also covers forward references within a partition —
// ECMA-335 allows a TypeRef whose ResolutionScope is the defining module
// itself, and a conformant reader resolves it by name, so this emitter
// never needs a TypeDef-reservation pre-pass.
func (e *Emitter) resolveNamed(name, namespace string) (table int, rid uint32, ok bool) {
	entry, found := e.reg.Lookup(name)
	if !found {
		return 0, 0, false
	}
	if entry.Namespace == namespace {
		if localRid, already := e.typeDefRidByName[name]; already {
			return metadata.TypeDef, localRid, true
		}
	}
	return metadata.TypeRef, e.crossTypeRef(entry.Namespace, name), true
}

func (e *Emitter) crossTypeRef(namespace, name string) uint32 {
	key := namespace + "." + name
	if rid, ok := e.crossRefCache[key]; ok {
		return rid
	}
	rid := e.w.AddTypeRef(metadata.TypeRefRow{
		ResolutionScope: metadata.ResolutionScope(metadata.Module, 1),
		TypeName:        e.w.Strings.Add(name),
		TypeNamespace:   e.w.Strings.Add(namespace),
	})
	e.crossRefCache[key] = rid
	return rid
}

// namedIsValueType reports whether a Named type's registry entry
// designates a value type (struct/enum/typedef wrapper) as opposed to a
// delegate, which extends MulticastDelegate and is therefore a class.
func (e *Emitter) namedIsValueType(name string) bool {
	entry, ok := e.reg.Lookup(name)
	if !ok {
		return true
	}
	return entry.Kind != registry.KindDelegate
}
