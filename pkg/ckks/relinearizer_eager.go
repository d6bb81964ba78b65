package ckks

import "github.com/evaproject/eva/pkg/ir"

// EagerRelinearizer implements the non-lazy relinearization policy of
// §4.8: every Cipher-by-Cipher Mul is immediately followed by a
// Relinearize term, and every other use of the Mul is redirected to it.
func EagerRelinearizer(program *ir.Program, types *ir.DenseMap[ir.Type], scale *ir.OptionalMap[uint32]) {
	ir.ForwardPass(program, func(t *ir.Term) {
		if t.NumOperands() == 0 || t.Op != ir.Mul {
			return
		}
		if !allOperandsEncrypted(program, types, t) {
			return
		}
		relinNode := program.MakeTerm(ir.Relinearize, t.Index())
		types.Set(relinNode, types.Get(t))
		scale.Set(relinNode, scale.Get(t))
		program.ReplaceOtherUsesWith(t, relinNode.Index())
	})
}

func allOperandsEncrypted(program *ir.Program, types *ir.DenseMap[ir.Type], t *ir.Term) bool {
	for _, opIdx := range t.Operands() {
		if types.GetIdx(opIdx) != ir.Cipher {
			return false
		}
	}
	return true
}
