package ckks

import "github.com/evaproject/eva/pkg/ir"

// runLazyWaterlineRescaler implements the LazyWaterline policy of §4.6, the
// default. Unlike EagerWaterline, a Mul above the waterline is not rescaled
// immediately: it is marked pending and the mark is propagated forward
// through single-use chains, one hop at a time. At each hop the receiving
// term computes its own scale as usual (copying its first operand's scale,
// equalizing Add/Sub operands against it) — using the pending chain's full,
// un-rescaled scale as if it were already settled — and only then decides,
// from its own uses, whether to resolve now or hand the mark one hop
// further. A pending mark is only resolved (by inserting the waterline
// rescale chain) once deferring further would be unsound: the term feeds a
// Mul, it feeds an Output, or it has more than one use.
func runLazyWaterlineRescaler(program *ir.Program, types *ir.DenseMap[ir.Type], scale *ir.OptionalMap[uint32]) error {
	s, err := newRescaleState(program, types, scale)
	if err != nil {
		return err
	}

	pending := ir.NewDenseMap[bool](program)
	defer pending.Release()

	var passErr error

	// resolve inserts the waterline rescale chain for t (if still above
	// minScale) and clears its pending mark.
	resolve := func(t *ir.Term) *ir.Term {
		multScale := s.scale.Get(t)
		temp := t
		for multScale >= maxRescaleBits+s.minScale {
			temp = s.insertRescale(temp, maxRescaleBits)
			multScale -= maxRescaleBits
		}
		pending.Set(t, false)
		return temp
	}

	// settlePending is the shared decision point reached immediately after
	// t's own scale has been computed, whenever t's pending mark is set:
	// resolve t in place if t's uses make deferring unsound, otherwise hand
	// the mark to t's sole use so that use's own scale computation (which
	// copies t's still-unrescaled scale) carries the pending chain one hop
	// further.
	settlePending := func(t *ir.Term) {
		uses := t.Uses()
		mustResolve := len(uses) != 1
		if !mustResolve {
			use := program.Term(uses[0])
			mustResolve = isMulOp(use.Op) || use.Op == ir.Output
		}
		if mustResolve {
			resolve(t)
			return
		}
		pending.Set(program.Term(uses[0]), true)
	}

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

		if isMulOp(t.Op) {
			// A pending operand reaching a genuine Mul has already been
			// resolved: propagation only ever hands the mark to a sole
			// use, and settlePending resolves immediately whenever that
			// use is itself a Mul, before this term is ever visited.
			var multScale uint32
			for _, opIdx := range t.Operands() {
				multScale += s.scale.GetIdx(opIdx)
			}
			if multScale == 0 {
				passErr = newInternalError("compiled program results in a 0 scale term")
				return
			}
			s.scale.Set(t, multScale)
			if multScale >= maxRescaleBits+s.minScale {
				pending.Set(t, true)
				settlePending(t)
			}
			return
		}

		// Op::Add, Op::Sub, Negate, RotateLeftConst, RotateRightConst
		// all copy the first operand's scale; a first operand that is
		// itself a still-unresolved pending chain carries its full,
		// un-rescaled scale forward here, and equalizeAdditionScales uses
		// that same unresolved value as the target every other operand is
		// scaled up to match.
		s.copyFirstOperandScale(t)
		if ir.IsAdditionOp(t.Op) {
			s.scale.Set(t, s.equalizeAdditionScales(t))
		}
		if !pending.Get(t) {
			return
		}
		settlePending(t)
	})
	return passErr
}
