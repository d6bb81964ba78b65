// Package interp implements the unencrypted, double-precision reference
// interpreter of spec §6.2: a correctness oracle that runs a Program on
// plain vector<double> inputs under the same arithmetic semantics the
// CKKS backend must implement, so that compiled output can be
// cross-checked numerically (§8.3) without paying for encryption.
package interp

import (
	"fmt"

	"github.com/evaproject/eva/pkg/ir"
)

// Interpreter evaluates a Program term-by-term over float64 slots. Scheme
// operations that only exist to satisfy CKKS's noise/level bookkeeping —
// Encode, Rescale, ModSwitch, Relinearize — are pass-through copies here:
// they have no effect on the values a double-precision evaluation
// produces.
type Interpreter struct {
	program *ir.Program
	values  *ir.OptionalMap[[]float64]
}

// New creates an Interpreter bound to program. The returned Interpreter's
// side map is unregistered from program once Run has produced its
// outputs; callers that need to Run more than once should call New again.
func New(program *ir.Program) *Interpreter {
	return &Interpreter{
		program: program,
		values:  ir.NewOptionalMap[[]float64](program),
	}
}

// Run evaluates program with the given named inputs (each already
// expanded to program.VecSize slots) and returns the named outputs,
// expanded to the same width. It is an error for an input named by the
// program to be missing from inputs.
func (in *Interpreter) Run(inputs map[string][]float64) (map[string][]float64, error) {
	defer in.values.Release()

	slots := in.program.VecSize
	var runErr error

	ir.ForwardPass(in.program, func(t *ir.Term) {
		if runErr != nil {
			return
		}
		switch t.Op {
		case ir.Input:
			name := inputName(in.program, t.Index())
			vals, ok := inputs[name]
			if !ok {
				runErr = fmt.Errorf("interp: missing value for input %q", name)
				return
			}
			if uint64(len(vals)) != slots {
				runErr = fmt.Errorf("interp: input %q has %d values, expected %d", name, len(vals), slots)
				return
			}
			in.values.Set(t, append([]float64(nil), vals...))
		case ir.Constant:
			c := t.GetConstant(ir.ConstantValueAttribute)
			in.values.Set(t, append([]float64(nil), c.Expand(nil, slots)...))
		case ir.Add:
			runErr = in.binary(t, func(a, b float64) float64 { return a + b })
		case ir.Sub:
			runErr = in.binary(t, func(a, b float64) float64 { return a - b })
		case ir.Mul:
			runErr = in.binary(t, func(a, b float64) float64 { return a * b })
		case ir.Negate:
			runErr = in.unary(t, func(a float64) float64 { return -a })
		case ir.RotateLeftConst:
			runErr = in.rotate(t, int(t.GetI32(ir.RotationAttribute)))
		case ir.RotateRightConst:
			runErr = in.rotate(t, -int(t.GetI32(ir.RotationAttribute)))
		case ir.Encode, ir.Rescale, ir.ModSwitch, ir.Relinearize:
			// Scheme bookkeeping only; pass the operand's values through.
			in.values.Set(t, in.values.GetIdx(t.OperandAt(0)))
		case ir.Output:
			in.values.Set(t, in.values.GetIdx(t.OperandAt(0)))
		default:
			runErr = fmt.Errorf("interp: unhandled op %s", t.Op)
		}
	})
	if runErr != nil {
		return nil, runErr
	}

	outputs := make(map[string][]float64, len(in.program.Outputs()))
	for name, idx := range in.program.Outputs() {
		outputs[name] = append([]float64(nil), in.values.GetIdx(idx)...)
	}
	return outputs, nil
}

func (in *Interpreter) binary(t *ir.Term, op func(a, b float64) float64) error {
	if t.NumOperands() != 2 {
		return fmt.Errorf("interp: %s term t%d does not have exactly two operands", t.Op, t.Index())
	}
	lhs := in.values.GetIdx(t.OperandAt(0))
	rhs := in.values.GetIdx(t.OperandAt(1))
	out := make([]float64, len(lhs))
	for i := range out {
		out[i] = op(lhs[i], rhs[i])
	}
	in.values.Set(t, out)
	return nil
}

func (in *Interpreter) unary(t *ir.Term, op func(a float64) float64) error {
	src := in.values.GetIdx(t.OperandAt(0))
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = op(v)
	}
	in.values.Set(t, out)
	return nil
}

// rotate performs a cyclic shift by amount (positive rotates toward lower
// indices, i.e. "left", matching RotateLeftConst's convention).
func (in *Interpreter) rotate(t *ir.Term, amount int) error {
	src := in.values.GetIdx(t.OperandAt(0))
	n := len(src)
	if n == 0 {
		in.values.Set(t, src)
		return nil
	}
	shift := ((amount % n) + n) % n
	out := make([]float64, n)
	copy(out, src[shift:])
	copy(out[n-shift:], src[:shift])
	in.values.Set(t, out)
	return nil
}

func inputName(p *ir.Program, idx ir.TermIndex) string {
	for name, i := range p.Inputs() {
		if i == idx {
			return name
		}
	}
	return "<unknown>"
}
