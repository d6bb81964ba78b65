package ckks

import "github.com/evaproject/eva/pkg/ir"

// runMinimumRescaler implements the Minimum policy of §4.6: for Mul, let
// rescaleBy be the smaller operand's scale above minScale, capped at
// maxRescaleBits; if twice rescaleBy is at least maxRescaleBits, it
// pre-rescales both operands by rescaleBy before multiplying; otherwise
// it rescales the product post-multiplication in maxRescaleBits steps
// while above the waterline. Not general — see design note §9.
func runMinimumRescaler(program *ir.Program, types *ir.DenseMap[ir.Type], scale *ir.OptionalMap[uint32]) error {
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
				s.scale.Set(t, s.equalizeAdditionScales(t))
			}
			return
		}

		operands := append([]ir.TermIndex(nil), t.Operands()...)
		if len(operands) != 2 {
			passErr = newInternalError("minimum rescaler assumes exactly two multiplication operands")
			return
		}
		multScale := s.scale.GetIdx(operands[0]) + s.scale.GetIdx(operands[1])
		if multScale == 0 {
			passErr = newInternalError("compiled program results in a 0 scale term")
			return
		}
		s.scale.Set(t, multScale)

		minOfScales := s.scale.GetIdx(operands[0])
		if s.scale.GetIdx(operands[1]) < minOfScales {
			minOfScales = s.scale.GetIdx(operands[1])
		}
		rescaleBy := minOfScales - s.minScale
		if rescaleBy > maxRescaleBits {
			rescaleBy = maxRescaleBits
		}
		if 2*rescaleBy >= maxRescaleBits {
			op0 := program.Term(operands[0])
			op1 := program.Term(operands[1])
			s.insertRescaleBetween(op0, t, rescaleBy)
			if operands[0] != operands[1] {
				s.insertRescaleBetween(op1, t, rescaleBy)
			}
			s.scale.Set(t, multScale-2*rescaleBy)
		} else {
			temp := t
			for multScale >= maxRescaleBits+s.minScale {
				temp = s.insertRescale(temp, maxRescaleBits)
				multScale -= maxRescaleBits
			}
		}
	})
	return passErr
}
