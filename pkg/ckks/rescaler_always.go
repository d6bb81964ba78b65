package ckks

import "github.com/evaproject/eva/pkg/ir"

// runAlwaysRescaler implements the Always policy of §4.6: every Mul is
// rescaled immediately down to minScale, and Add/Sub require their
// operands to already share scale (raw operands are exempt). This policy
// is not general — it assumes every source shares the same scale — and
// the ParameterChecker will reject programs that violate that assumption
// (design note §9's open question on policy applicability).
func runAlwaysRescaler(program *ir.Program, types *ir.DenseMap[ir.Type], scale *ir.OptionalMap[uint32]) error {
	s, err := newRescaleState(program, types, scale)
	if err != nil {
		return err
	}

	var passErr error
	ir.ForwardPass(program, func(t *ir.Term) {
		if passErr != nil || t.NumOperands() == 0 {
			return
		}
		if s.types.Get(t) == ir.Raw {
			s.handleRawScale(t)
			return
		}
		if t.Op == ir.Rescale {
			return
		}
		if !isMulOp(t.Op) {
			s.copyFirstOperandScale(t)
			if ir.IsAdditionOp(t.Op) {
				for _, opIdx := range t.Operands() {
					operand := program.Term(opIdx)
					if s.types.Get(operand) != ir.Raw && s.scale.GetIdx(opIdx) != s.scale.Get(t) {
						passErr = newInternalError("addition or subtraction in program has operands of non-equal scale under the always rescaler")
						return
					}
				}
			}
			return
		}

		var multScale uint32
		for _, opIdx := range t.Operands() {
			multScale += s.scale.GetIdx(opIdx)
		}
		if multScale == 0 {
			passErr = newInternalError("compiled program results in a 0 scale term")
			return
		}
		s.scale.Set(t, multScale)
		s.insertRescale(t, multScale-s.minScale)
	})
	return passErr
}
