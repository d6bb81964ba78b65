package ckks

import "github.com/evaproject/eva/pkg/ir"

// ConstantFold evaluates every all-Constant subgraph (§4.4): whenever all
// operands of a term are Constant, the term's uses are redirected to a
// freshly materialized dense Constant carrying the folded values, with
// scale equal to the max of the operand scales. Output and Encode pass
// through unchanged. Encountering a scheme-level op (Relinearize,
// ModSwitch, Rescale) on a wholly-unencrypted subgraph is a structural
// bug: the reference semantics for those ops are only defined once a
// rescaler has run.
func ConstantFold(program *ir.Program, scale *ir.OptionalMap[uint32]) error {
	var scratch1, scratch2 []float64
	var foldErr error

	ir.ForwardPass(program, func(t *ir.Term) {
		if foldErr != nil || t.NumOperands() == 0 {
			return
		}
		for _, opIdx := range t.Operands() {
			if program.Term(opIdx).Op != ir.Constant {
				return
			}
		}

		args := t.Operands()
		replace := func(values []float64, folded uint32) {
			newTerm, err := program.MakeDenseConstant(values)
			if err != nil {
				foldErr = err
				return
			}
			scale.Set(newTerm, folded)
			newTerm.SetU32(ir.EncodeAtScaleAttribute, folded)
			program.ReplaceAllUsesWith(t, newTerm.Index())
		}

		expandOperand := func(idx ir.TermIndex, scratch []float64) []float64 {
			c := program.Term(idx).GetConstant(ir.ConstantValueAttribute)
			return c.Expand(scratch, program.VecSize)
		}

		switch t.Op {
		case ir.Add:
			in1 := expandOperand(args[0], scratch1)
			in2 := expandOperand(args[1], scratch2)
			out := make([]float64, len(in1))
			for i := range out {
				out[i] = in1[i] + in2[i]
			}
			replace(out, maxU32(scale.GetIdx(args[0]), scale.GetIdx(args[1])))
		case ir.Sub:
			in1 := expandOperand(args[0], scratch1)
			in2 := expandOperand(args[1], scratch2)
			out := make([]float64, len(in1))
			for i := range out {
				out[i] = in1[i] - in2[i]
			}
			replace(out, maxU32(scale.GetIdx(args[0]), scale.GetIdx(args[1])))
		case ir.Mul:
			in1 := expandOperand(args[0], scratch1)
			in2 := expandOperand(args[1], scratch2)
			out := make([]float64, len(in1))
			for i := range out {
				out[i] = in1[i] * in2[i]
			}
			replace(out, maxU32(scale.GetIdx(args[0]), scale.GetIdx(args[1])))
		case ir.RotateLeftConst:
			in1 := expandOperand(args[0], scratch1)
			shift := normalizeShift(int(t.GetI32(ir.RotationAttribute)), len(in1))
			out := make([]float64, len(in1))
			copy(out, in1[shift:])
			copy(out[len(in1)-shift:], in1[:shift])
			replace(out, scale.GetIdx(args[0]))
		case ir.RotateRightConst:
			in1 := expandOperand(args[0], scratch1)
			shift := normalizeShift(int(t.GetI32(ir.RotationAttribute)), len(in1))
			out := make([]float64, len(in1))
			copy(out[shift:], in1[:len(in1)-shift])
			copy(out[:shift], in1[len(in1)-shift:])
			replace(out, scale.GetIdx(args[0]))
		case ir.Negate:
			in1 := expandOperand(args[0], scratch1)
			out := make([]float64, len(in1))
			for i := range out {
				out[i] = -in1[i]
			}
			replace(out, scale.GetIdx(args[0]))
		case ir.Output, ir.Encode:
			// Pass through unchanged.
		case ir.Relinearize, ir.ModSwitch, ir.Rescale:
			foldErr = newInternalError("encountered HE-specific operation %s in unencrypted computation", t.Op)
		default:
			foldErr = newInternalError("unhandled op %s in constant folder", t.Op)
		}
	})
	return foldErr
}

func normalizeShift(shift, size int) int {
	for shift < 0 {
		shift += size
	}
	return shift % size
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
