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
package termio

import (
	"fmt"
)

// TablePrinter renders the two shapes the compile report needs: a fixed
// two-column summary (stats label/value pairs) and a wider per-input
// signature table, both addressed by row rather than by individual cell.
type TablePrinter struct {
	widths        []uint
	rows          [][]string
	escapes       [][]string
	enableEscapes bool
}

// NewTablePrinter constructs a new table with given dimensions.
func NewTablePrinter(width uint, height uint) *TablePrinter {
	widths := make([]uint, width)
	rows := make([][]string, height)
	escapes := make([][]string, height)
	// Construct the table
	for i := uint(0); i < height; i++ {
		rows[i] = make([]string, width)
		escapes[i] = make([]string, width)
	}

	return &TablePrinter{widths, rows, escapes, true}
}

// SetEscape set the colour to use when printing the contents of a given cell
func (p *TablePrinter) SetEscape(col uint, row uint, escape string) {
	p.escapes[row][col] = escape
}

// AnsiEscapes enables or disables the use of ANSI escapes (e.g. for showing
// colour). Disabling escapes is useful in environments that don't support
// them (piped output, CI logs), where otherwise you get raw escape
// characters printed.
func (p *TablePrinter) AnsiEscapes(enable bool) {
	p.enableEscapes = enable
}

// SetRow sets the contents of an entire row in this table
func (p *TablePrinter) SetRow(row uint, vals ...string) {
	if len(vals) != len(p.widths) {
		panic("incorrect number of columns")
	}
	// Update column widths
	for i := 0; i < len(p.widths); i++ {
		p.widths[i] = max(p.widths[i], uint(len(vals[i])))
	}
	// Done
	p.rows[row] = vals
}

// SetMaxWidth puts an upper bound on the width of any column.
func (p *TablePrinter) SetMaxWidth(col uint, width uint) {
	p.widths[col] = min(p.widths[col], width)
}

// Print the table.
func (p *TablePrinter) Print() {
	for i := 0; i < len(p.rows); i++ {
		row := p.rows[i]
		escapes := p.escapes[i]

		for j, cell := range row {
			val := cell
			width := p.widths[j]
			escape := escapes[j]
			// Print colour (if applicable)
			if p.enableEscapes && escape != "" {
				fmt.Print(escape)
			}
			// Print data
			if uint(len(cell)) > width {
				val = cell[0 : width-2]
				fmt.Printf(" %*s..", width-2, val)
			} else {
				fmt.Printf(" %*s", width, val)
			}
			// Cancel colour (if applicable)
			if p.enableEscapes && escape != "" {
				fmt.Print(ResetAnsiEscape().Build())
			}

			fmt.Print(" |")
		}

		fmt.Println()
	}
}
