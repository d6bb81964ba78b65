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
	"encoding/json"
	"fmt"
	"os"

	"github.com/evaproject/eva/pkg/ir"
)

// toyNode is one entry of a toyProgram's node list: a minimal JSON
// encoding of a single ir.Term for manual command-line experimentation.
// This is deliberately not the persisted-Program format of spec §6.4
// (full serialization of programs and keys is out of scope, spec §1) —
// it exists only so `eva compile` has something to read without wiring a
// real front-end language.
type toyNode struct {
	Op       string  `json:"op"`
	Name     string  `json:"name,omitempty"`
	Type     string  `json:"type,omitempty"`
	Scale    uint32  `json:"scale,omitempty"`
	Range    uint32  `json:"range,omitempty"`
	Step     int32   `json:"step,omitempty"`
	Operand  int     `json:"operand,omitempty"`
	Operands []int   `json:"operands,omitempty"`
	Values   []float64 `json:"values,omitempty"`
}

// toyProgram is the top-level shape read by `eva compile`.
type toyProgram struct {
	Name    string    `json:"name"`
	VecSize uint64    `json:"vecSize"`
	Nodes   []toyNode `json:"nodes"`
}

// readToyProgram parses filename into an ir.Program, resolving each
// node's operand indices against the position of earlier nodes in the
// same file (a node may only reference nodes that precede it).
func readToyProgram(filename string) (*ir.Program, error) {
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var tp toyProgram
	if err := json.Unmarshal(bytes, &tp); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}

	program, err := ir.NewProgram(tp.Name, tp.VecSize)
	if err != nil {
		return nil, err
	}

	terms := make([]*ir.Term, len(tp.Nodes))
	resolve := func(i int) (ir.TermIndex, error) {
		if i < 0 || i >= len(terms) || terms[i] == nil {
			return 0, fmt.Errorf("node %d references undefined operand %d", i, i)
		}
		return terms[i].Index(), nil
	}

	for i, node := range tp.Nodes {
		var t *ir.Term
		switch node.Op {
		case "input":
			typ, err := parseType(node.Type)
			if err != nil {
				return nil, err
			}
			t = program.MakeInput(node.Name, typ)
			t.SetU32(ir.EncodeAtScaleAttribute, node.Scale)
		case "constant":
			t, err = program.MakeDenseConstant(node.Values)
			if err != nil {
				return nil, err
			}
			t.SetU32(ir.EncodeAtScaleAttribute, node.Scale)
		case "add", "sub", "mul":
			if len(node.Operands) != 2 {
				return nil, fmt.Errorf("node %d (%s) requires exactly two operands", i, node.Op)
			}
			lhs, err := resolve(node.Operands[0])
			if err != nil {
				return nil, err
			}
			rhs, err := resolve(node.Operands[1])
			if err != nil {
				return nil, err
			}
			t = program.MakeTerm(binaryOp(node.Op), lhs, rhs)
		case "negate":
			operand, err := resolve(node.Operand)
			if err != nil {
				return nil, err
			}
			t = program.MakeTerm(ir.Negate, operand)
		case "rotate_left":
			operand, err := resolve(node.Operand)
			if err != nil {
				return nil, err
			}
			t = program.MakeLeftRotation(program.Term(operand), node.Step)
		case "rotate_right":
			operand, err := resolve(node.Operand)
			if err != nil {
				return nil, err
			}
			t = program.MakeRightRotation(program.Term(operand), node.Step)
		case "output":
			operand, err := resolve(node.Operand)
			if err != nil {
				return nil, err
			}
			t = program.MakeOutput(node.Name, program.Term(operand))
			t.SetU32(ir.RangeAttribute, node.Range)
		default:
			return nil, fmt.Errorf("node %d: unknown op %q", i, node.Op)
		}
		terms[i] = t
	}

	return program, nil
}

func binaryOp(name string) ir.Op {
	switch name {
	case "add":
		return ir.Add
	case "sub":
		return ir.Sub
	default:
		return ir.Mul
	}
}

func parseType(name string) (ir.Type, error) {
	switch name {
	case "Cipher":
		return ir.Cipher, nil
	case "Raw":
		return ir.Raw, nil
	case "Plain":
		return ir.Plain, nil
	default:
		return ir.Undef, fmt.Errorf("unknown input type %q, expected Cipher, Raw or Plain", name)
	}
}
