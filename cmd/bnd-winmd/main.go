// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// bnd-winmd turns a set of C headers into an ECMA-335 WinMD metadata
// assembly, driven by a TOML build description (see internal/config).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saferwall/bnd-winmd/internal/bnderr"
	"github.com/saferwall/bnd-winmd/internal/config"
	"github.com/saferwall/bnd-winmd/internal/logx"
	"github.com/saferwall/bnd-winmd/internal/orchestrator"
)

var (
	outputOverride string
	validateFlag   bool
)

func runBuild(cmd *cobra.Command, args []string) {
	configPath := "bnd-winmd.toml"
	if len(args) > 0 {
		configPath = args[0]
	}

	log := logx.New()

	cfg, err := config.Load(configPath)
	if err != nil {
		fail(log, err)
	}
	cfg.ApplyOutputOverride(outputOverride)
	if validateFlag {
		cfg.Output.Validate = true
	}

	if err := orchestrator.Run(cfg, log); err != nil {
		fail(log, err)
	}
}

// fail logs err and exits with a non-zero status, unless its Kind is
// Unsupported, which spec.md §7 treats as a warning that never aborts
// the build on its own.
func fail(log logx.Logger, err error) {
	if kind, ok := bnderr.KindOf(err); ok && !kind.Fatal() {
		log.Warnf("%v", err)
		return
	}
	log.Errorf("%v", err)
	os.Exit(1)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "bnd-winmd [config]",
		Short: "Generate an ECMA-335 WinMD metadata assembly from C headers",
		Long:  "bnd-winmd reads a TOML build description, extracts types, enums, typedefs, functions, and constants from the configured C headers, and emits a WinMD metadata assembly for Rust FFI generation.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runBuild,
	}
	rootCmd.Flags().StringVarP(&outputOverride, "output", "o", "", "override output.file from the config")
	rootCmd.Flags().BoolVar(&validateFlag, "validate", false, "re-read the emitted assembly through peread and compare it against what was built, in addition to output.validate from the config")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("bnd-winmd version 0.1.0")
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
