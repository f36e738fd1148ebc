// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package orchestrator drives a full build described by a config.Config
// end to end: resolve headers, parse each partition with libclang, lower
// into cdecl, build the cross-partition registry, apply first-writer-wins
// dedup, emit ECMA-335 rows, and wrap the metadata stream in a PE32 shell.
package orchestrator

import (
	"os"

	"github.com/saferwall/bnd-winmd/internal/bnderr"
	"github.com/saferwall/bnd-winmd/internal/cdecl"
	"github.com/saferwall/bnd-winmd/internal/clangdriver"
	"github.com/saferwall/bnd-winmd/internal/config"
	"github.com/saferwall/bnd-winmd/internal/dedup"
	"github.com/saferwall/bnd-winmd/internal/emitter"
	"github.com/saferwall/bnd-winmd/internal/extractor"
	"github.com/saferwall/bnd-winmd/internal/header"
	"github.com/saferwall/bnd-winmd/internal/logx"
	"github.com/saferwall/bnd-winmd/internal/peimage"
	"github.com/saferwall/bnd-winmd/internal/registry"
)

// Run builds the assembly described by cfg and writes it to cfg.Output.File.
// The arguments handed to clangdriver.New are built from cfg by
// clangArgs (e.g. one "-I" per entry of cfg.IncludePaths).
func Run(cfg *config.Config, log logx.Logger) error {
	bytes, partitions, err := build(cfg, log)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfg.Output.File, bytes, 0o644); err != nil {
		return bnderr.New(bnderr.IO, err)
	}
	log.WithFields(logx.Fields{
		"file":  cfg.Output.File,
		"bytes": len(bytes),
	}).Infof("wrote assembly")

	if cfg.Output.Validate {
		if err := selfCheck(bytes, partitions); err != nil {
			return err
		}
	}
	return nil
}

// Build runs every phase up to the final PE bytes without touching disk,
// so callers (including tests) can inspect the result directly.
func Build(cfg *config.Config, log logx.Logger) ([]byte, error) {
	bytes, _, err := build(cfg, log)
	return bytes, err
}

func build(cfg *config.Config, log logx.Logger) ([]byte, []cdecl.PartitionExtract, error) {
	resolver := header.New(cfg.IncludePaths)
	driver := clangdriver.New(resolver, clangArgs(cfg))
	defer driver.Dispose()

	partitions := make([]cdecl.PartitionExtract, 0, len(cfg.Partitions))
	for _, p := range cfg.Partitions {
		raw, err := driver.ParseHeaders(p.Headers)
		if err != nil {
			return nil, nil, err
		}

		traverse := p.Traverse
		if len(traverse) == 0 {
			traverse = p.Headers
		}
		ex := extractor.New(p.Namespace, p.Library, traverse, log)
		partitions = append(partitions, ex.Extract(raw))
	}

	reg := registry.Build(partitions)
	partitions = dedup.Apply(partitions, reg)

	e := emitter.New(reg, log)
	w := e.Emit(cfg.Output.Name, partitions)

	log.WithFields(logx.Fields{
		"partitions": len(partitions),
		"typedefs":   w.TypeDefCount(),
	}).Infof("build complete")

	return peimage.BuildFromMetadataRoot(w.Bytes()), partitions, nil
}

// clangArgs turns the configured include paths into -I flags, ahead of
// whatever extra arguments a future CLI flag might append.
func clangArgs(cfg *config.Config) []string {
	args := make([]string, 0, len(cfg.IncludePaths))
	for _, p := range cfg.IncludePaths {
		args = append(args, "-I"+p)
	}
	return args
}
