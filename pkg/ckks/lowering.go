package ckks

import "github.com/evaproject/eva/pkg/ir"

// LowerBackendGaps implements §4.14: a final rewrite pass that replaces
// terms the backend capability contract (§6.1) cannot execute directly
// with an equivalent composition it can. The one gap named by the spec is
// Sub(plain, cipher): SEAL-style backends only expose
// Ciphertext.sub(Plaintext) and Plaintext.sub(Ciphertext) is not offered,
// so `lhs - rhs` with a non-Cipher lhs and Cipher rhs is rewritten to
// `(-rhs) + lhs`, which every backend supports. Additional gap-fillers
// would be added here in parallel to this one, each a case in the same
// switch.
func LowerBackendGaps(program *ir.Program, types *ir.DenseMap[ir.Type], scale *ir.OptionalMap[uint32]) {
	ir.ForwardPass(program, func(t *ir.Term) {
		if t.Op != ir.Sub || t.NumOperands() != 2 {
			return
		}
		left, right := t.OperandAt(0), t.OperandAt(1)
		if types.GetIdx(left) == ir.Cipher || types.GetIdx(right) != ir.Cipher {
			return
		}

		negated := program.MakeTerm(ir.Negate, right)
		types.Set(negated, ir.Cipher)
		scale.Set(negated, scale.GetIdx(right))

		addNode := program.MakeTerm(ir.Add, negated.Index(), left)
		types.Set(addNode, ir.Cipher)
		scale.Set(addNode, scale.Get(t))

		program.ReplaceAllUsesWith(t, addNode.Index())
	})
}
