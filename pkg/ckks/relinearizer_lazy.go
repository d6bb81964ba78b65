package ckks

import "github.com/evaproject/eva/pkg/ir"

// LazyRelinearizer implements the default relinearization policy of §4.8.
// A Cipher-by-Cipher Mul is marked pending rather than relinearized
// immediately. The pending mark propagates to a term's uses as long as
// every use is the very same single downstream term; it resolves into an
// inserted Relinearize node as soon as the term feeds a second
// encrypted Mul, a rotation, an Output, or more than one distinct use.
func LazyRelinearizer(program *ir.Program, types *ir.DenseMap[ir.Type], scale *ir.OptionalMap[uint32]) {
	pending := ir.NewDenseMap[bool](program)
	defer pending.Release()

	ir.ForwardPass(program, func(t *ir.Term) {
		if t.NumOperands() == 0 {
			return
		}

		if t.Op == ir.Mul && allOperandsEncrypted(program, types, t) {
			pending.Set(t, true)
		} else if !pending.Get(t) {
			return
		}

		uses := t.Uses()
		if len(uses) == 0 {
			return
		}
		mustInsert := false
		firstUse := uses[0]
		for _, useIdx := range uses {
			use := program.Term(useIdx)
			if (use.Op == ir.Mul && allOperandsEncrypted(program, types, use)) ||
				ir.IsRotationOp(use.Op) || use.Op == ir.Output || useIdx != firstUse {
				mustInsert = true
				break
			}
		}

		if mustInsert {
			relinNode := program.MakeTerm(ir.Relinearize, t.Index())
			types.Set(relinNode, types.Get(t))
			scale.Set(relinNode, scale.Get(t))
			program.ReplaceOtherUsesWith(t, relinNode.Index())
		} else {
			for _, useIdx := range uses {
				pending.SetIdx(useIdx, true)
			}
		}
	})
}
