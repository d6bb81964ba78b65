// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/evaproject/eva/pkg/ckks"
	"github.com/evaproject/eva/pkg/util"
	"github.com/evaproject/eva/pkg/util/termio"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] program.json",
	Short: "compile a toy program into CKKS encryption parameters and an input signature.",
	Long: `Compile reads a toy JSON program (see pkg/cmd/toyprogram.go), runs the
compiler pipeline of spec.md §4.10 over it, and prints the synthesized prime
chain, ring degree, rotation keys and per-input signature.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		program, err := readToyProgram(args[0])
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		cfg := buildConfig(GetStringArray(cmd, "define"))
		stats := util.NewPerfStats()

		result, err := ckks.Compile(program, cfg)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		printCompileReport(cmd, result, stats)
	},
}

// rotationWarnThreshold is the rotation key count above which the report
// flags the "Rotation keys" row: each key costs a backend a full Galois
// key-switching key to generate and store, so a program that needs many
// distinct rotation steps is noticeably more expensive to key-generate
// for than one that reuses a handful of steps.
const rotationWarnThreshold = 8

func printCompileReport(cmd *cobra.Command, result *ckks.CompileResult, stats *util.PerfStats) {
	maxWidth := reportColumnWidth()

	tbl := termio.NewTablePrinter(2, 4)
	tbl.AnsiEscapes(term.IsTerminal(int(os.Stdout.Fd())))
	tbl.SetRow(0, "Terms", fmt.Sprintf("%d", result.Program.NumTerms()))
	tbl.SetRow(1, "Prime chain", primeChainSummary(result.Parameters))
	tbl.SetRow(2, "Ring degree", fmt.Sprintf("2^%d", log2u(result.Parameters.PolyModulusDegree)))
	tbl.SetRow(3, "Rotation keys", rotationSummary(result.Parameters))
	if len(result.Parameters.Rotations) > rotationWarnThreshold {
		tbl.SetEscape(1, 3, termio.NewAnsiEscape().FgColour(termio.TERM_YELLOW).Build())
	}
	tbl.SetMaxWidth(1, maxWidth)
	tbl.Print()

	if GetFlag(cmd, "verbose") {
		sig := termio.NewTablePrinter(4, uint(len(result.Signature.Inputs))+1)
		sig.SetRow(0, "Input", "Type", "Scale", "Level")
		names := make([]string, 0, len(result.Signature.Inputs))
		for name := range result.Signature.Inputs {
			names = append(names, name)
		}
		sort.Strings(names)
		for i, name := range names {
			in := result.Signature.Inputs[name]
			sig.SetRow(uint(i+1), name, in.Type.String(), fmt.Sprintf("%d", in.Scale), fmt.Sprintf("%d", in.Level))
		}
		sig.Print()
		stats.Log("compile")
	}
}

// reportColumnWidth bounds the "Prime chain"/"Rotation keys" columns (the
// two that grow with program size) to roughly half the terminal width, so a
// long chain or key set doesn't wrap unreadably in a narrow window. Falls
// back to a generous fixed width when stdout isn't a terminal (piped
// output, CI logs).
func reportColumnWidth() uint {
	const fallback = uint(80)
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return uint(w) / 2
}

func primeChainSummary(parms ckks.CKKSParameters) string {
	s := ""
	for i, b := range parms.PrimeBits {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d", b)
	}
	return s
}

func rotationSummary(parms ckks.CKKSParameters) string {
	steps := make([]int, 0, len(parms.Rotations))
	for step := range parms.Rotations {
		steps = append(steps, int(step))
	}
	sort.Ints(steps)
	s := ""
	for i, step := range steps {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d", step)
	}
	return s
}

func log2u(n uint64) uint64 {
	var l uint64
	for n > 1 {
		n >>= 1
		l++
	}
	return l
}

//nolint:errcheck
func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringArrayP("define", "D", []string{}, "set a ckks.Config option (e.g. -D rescaler=eager_waterline)")
}
