package ckks

import "github.com/evaproject/eva/pkg/ir"

// CheckLevels implements the LevelsChecker of §4.13: a forward pass that
// re-derives each term's reverse modulus level from scratch (sources and
// Encode terms read EncodeAtLevelAttribute, as stamped by ModSwitcher's
// finalization; Rescale and ModSwitch each add one) and asserts that
// every Cipher/Plain operand of a term shares that level with every
// other. A mismatch here is always a structural bug: ModSwitcher is
// supposed to have already inserted whatever ModSwitch nodes were needed
// to make this true (§7, category 3).
func CheckLevels(program *ir.Program, types *ir.DenseMap[ir.Type]) error {
	levels := ir.NewOptionalMap[uint32](program)
	defer levels.Release()

	var checkErr error
	ir.ForwardPass(program, func(t *ir.Term) {
		if checkErr != nil || types.Get(t) == ir.Raw {
			return
		}
		if t.NumOperands() == 0 || t.Op == ir.Encode {
			levels.Set(t, t.GetU32(ir.EncodeAtLevelAttribute))
			return
		}

		var level uint32
		var levelSet bool
		for _, opIdx := range t.Operands() {
			if types.GetIdx(opIdx) == ir.Raw {
				continue
			}
			l := levels.GetIdx(opIdx)
			if !levelSet {
				level, levelSet = l, true
				continue
			}
			if l != level {
				checkErr = newInternalError(
					"term t%d (%s) has Cipher/Plain operands at inconsistent levels (%d vs %d)", t.Index(), t.Op, level, l)
				return
			}
		}
		if t.Op == ir.Rescale || t.Op == ir.ModSwitch {
			level++
		}
		levels.Set(t, level)
	})
	return checkErr
}

// CheckParameters implements the ParameterChecker of §4.13: it rebuilds
// each term's parameter chain exactly as the ParameterSelector does
// (§4.11), but additionally records ModSwitch as a placeholder zero-bit
// prime (so that chain lengths remain comparable across a branch that
// rescaled and a branch that only mod-switched) and cross-checks that
// every pair of Cipher/Plain operands feeding a term impose mutually
// consistent chains: same length, and pairwise equal wherever both
// entries are non-zero. A mismatch is reported as InconsistentParameters,
// which the top-level compiler rephrases into a policy-naming PolicyError
// (§7, category 4).
func CheckParameters(program *ir.Program, types *ir.DenseMap[ir.Type]) error {
	chains := ir.NewOptionalMap[[]uint32](program)
	defer chains.Release()

	var checkErr error
	ir.ForwardPass(program, func(t *ir.Term) {
		if checkErr != nil || types.Get(t) == ir.Raw || t.Op == ir.Encode {
			return
		}
		if t.NumOperands() == 0 {
			return
		}

		var base []uint32
		var baseSet bool
		for _, opIdx := range t.Operands() {
			if types.GetIdx(opIdx) == ir.Raw {
				continue
			}
			chain := chains.GetIdx(opIdx)
			if !baseSet {
				base, baseSet = chain, true
				continue
			}
			if !parameterChainsConsistent(base, chain) {
				checkErr = &InconsistentParameters{Message: "term " + t.Op.String() +
					" has operands with inconsistent encryption parameter chains"}
				return
			}
		}

		newChain := append([]uint32(nil), base...)
		switch t.Op {
		case ir.Rescale:
			newChain = append(newChain, t.GetU32(ir.RescaleDivisorAttribute))
		case ir.ModSwitch:
			newChain = append(newChain, 0)
		}
		chains.Set(t, newChain)
	})
	return checkErr
}

// parameterChainsConsistent reports whether two parameter chains could
// belong to the same term: equal length, and equal wherever both entries
// are non-zero (a 0 is ModSwitch's placeholder and imposes no constraint).
func parameterChainsConsistent(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != 0 && b[i] != 0 && a[i] != b[i] {
			return false
		}
	}
	return true
}

// CheckScales implements the ScalesChecker of §4.13: a forward pass that
// re-derives each term's scale independently of whatever the active
// rescaler policy recorded (Mul sums; Rescale subtracts its divisor;
// Add/Sub require every non-Raw operand to already agree; every other op
// copies its first operand) and flags any term whose derived scale is
// zero as a structural bug.
func CheckScales(program *ir.Program, types *ir.DenseMap[ir.Type], scale *ir.OptionalMap[uint32]) error {
	derived := ir.NewOptionalMap[uint32](program)
	defer derived.Release()

	var checkErr error
	ir.ForwardPass(program, func(t *ir.Term) {
		if checkErr != nil {
			return
		}
		var s uint32
		switch {
		case t.NumOperands() == 0:
			s = scale.Get(t)
		case t.Op == ir.Mul:
			for _, opIdx := range t.Operands() {
				s += derived.GetIdx(opIdx)
			}
		case t.Op == ir.Rescale:
			s = derived.GetIdx(t.OperandAt(0)) - t.GetU32(ir.RescaleDivisorAttribute)
		case ir.IsAdditionOp(t.Op):
			var found bool
			for _, opIdx := range t.Operands() {
				if types.GetIdx(opIdx) == ir.Raw {
					continue
				}
				os := derived.GetIdx(opIdx)
				if !found {
					s, found = os, true
					continue
				}
				if os != s {
					checkErr = newInternalError(
						"term t%d (%s) has operands at mismatched scale (%d vs %d)", t.Index(), t.Op, s, os)
					return
				}
			}
			if !found {
				s = derived.GetIdx(t.OperandAt(0))
			}
		default:
			s = derived.GetIdx(t.OperandAt(0))
		}
		if checkErr != nil {
			return
		}
		if s == 0 {
			checkErr = newInternalError("term t%d (%s) has a zero scale", t.Index(), t.Op)
			return
		}
		derived.Set(t, s)
	})
	return checkErr
}
