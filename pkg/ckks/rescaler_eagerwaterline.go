package ckks

import "github.com/evaproject/eva/pkg/ir"

// runEagerWaterlineRescaler implements the EagerWaterline policy of §4.6:
// greedily rescales every Mul by maxRescaleBits-sized steps down to the
// waterline (minScale) immediately.
func runEagerWaterlineRescaler(program *ir.Program, types *ir.DenseMap[ir.Type], scale *ir.OptionalMap[uint32]) error {
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

		var multScale uint32
		for _, opIdx := range t.Operands() {
			multScale += s.scale.GetIdx(opIdx)
		}
		if multScale == 0 {
			passErr = newInternalError("compiled program results in a 0 scale term")
			return
		}
		s.scale.Set(t, multScale)

		temp := t
		for multScale >= maxRescaleBits+s.minScale {
			temp = s.insertRescale(temp, maxRescaleBits)
			multScale -= maxRescaleBits
		}
	})
	return passErr
}
