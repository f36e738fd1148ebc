// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package orchestrator

import (
	"github.com/saferwall/bnd-winmd/internal/bnderr"
	"github.com/saferwall/bnd-winmd/internal/cdecl"
	"github.com/saferwall/bnd-winmd/internal/peread"
)

// selfCheck re-reads the freshly built image through peread and compares
// what it decoded against what the emitter was given, the output.validate
// round trip spec.md §6/§8 describes ("round-trip identity"). A structural
// parse failure or a name/shape mismatch both surface as an Invariant
// error; neither should ever happen for a build this same process just
// produced, so either one means the emitter and peread have drifted out
// of sync with each other.
func selfCheck(assembly []byte, partitions []cdecl.PartitionExtract) error {
	summary, err := peread.Validate(assembly)
	if err != nil {
		return err
	}

	typeDefs := make(map[string]bool, len(summary.TypeDefs))
	for _, td := range summary.TypeDefs {
		typeDefs[td.Namespace+"."+td.Name] = true
	}

	nameByRid := make(map[uint32]string, len(summary.TypeDefs))
	for i, td := range summary.TypeDefs {
		nameByRid[uint32(i+1)] = td.Name
	}
	structByName := make(map[string]cdecl.StructDef)
	for _, p := range partitions {
		for _, s := range p.Structs {
			qualified := p.Namespace + "." + s.Name
			if !typeDefs[qualified] {
				return bnderr.Newf(bnderr.Invariant, "self-check: struct %q missing from round-tripped TypeDefs", qualified)
			}
			structByName[s.Name] = s
		}
		for _, en := range p.Enums {
			qualified := p.Namespace + "." + en.Name
			if !typeDefs[qualified] {
				return bnderr.Newf(bnderr.Invariant, "self-check: enum %q missing from round-tripped TypeDefs", qualified)
			}
		}
		for _, td := range p.Typedefs {
			qualified := p.Namespace + "." + td.Name
			if !typeDefs[qualified] {
				return bnderr.Newf(bnderr.Invariant, "self-check: typedef %q missing from round-tripped TypeDefs", qualified)
			}
		}
	}

	for _, cl := range summary.ClassLayouts {
		name, ok := nameByRid[cl.TypeDef]
		if !ok {
			continue
		}
		s, ok := structByName[name]
		if !ok {
			continue
		}
		if uint64(cl.ClassSize) != s.Size || uint32(cl.PackingSize) != uint32(s.Align) {
			return bnderr.Newf(bnderr.Invariant,
				"self-check: %q round-tripped as size=%d/packing=%d, emitter built size=%d/align=%d",
				name, cl.ClassSize, cl.PackingSize, s.Size, s.Align)
		}
	}

	return nil
}
