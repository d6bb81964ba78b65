// Package ir implements the term-graph program representation shared by
// every compiler pass: nodes, operand/use edges, attributes and the
// per-term side maps the passes use to annotate the graph.
package ir

import "fmt"

// Op identifies the operation a Term performs. The set is closed: every
// pass dispatches on Op with an exhaustive switch, never open polymorphism.
type Op int

const (
	UndefOp Op = iota
	Input
	Output
	Constant
	Negate
	Add
	Sub
	Mul
	RotateLeftConst
	RotateRightConst
	Relinearize
	ModSwitch
	Rescale
	Encode
)

var opNames = map[Op]string{
	UndefOp:          "Undef",
	Input:            "Input",
	Output:           "Output",
	Constant:         "Constant",
	Negate:           "Negate",
	Add:              "Add",
	Sub:              "Sub",
	Mul:              "Mul",
	RotateLeftConst:  "RotateLeftConst",
	RotateRightConst: "RotateRightConst",
	Relinearize:      "Relinearize",
	ModSwitch:        "ModSwitch",
	Rescale:          "Rescale",
	Encode:           "Encode",
}

// String returns the op's name, matching the teacher's getOpName.
func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// IsReductionOp reports whether op is Add or Mul, the two ops the
// reduction balancer flattens and re-balances.
func IsReductionOp(op Op) bool { return op == Add || op == Mul }

// IsAdditionOp reports whether op is Add or Sub.
func IsAdditionOp(op Op) bool { return op == Add || op == Sub }

// IsMultiplicationOp reports whether op is Mul.
func IsMultiplicationOp(op Op) bool { return op == Mul }

// IsRotationOp reports whether op is a left or right constant rotation.
func IsRotationOp(op Op) bool { return op == RotateLeftConst || op == RotateRightConst }

// IsRescaleOp reports whether op is Rescale.
func IsRescaleOp(op Op) bool { return op == Rescale }

// IsModSwitchOp reports whether op is ModSwitch.
func IsModSwitchOp(op Op) bool { return op == ModSwitch }
