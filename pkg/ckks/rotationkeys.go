package ckks

import "github.com/evaproject/eva/pkg/ir"

// SelectRotationKeys implements §4.12: a forward pass collecting the set
// of rotation amounts a backend must generate Galois/rotation keys for.
// RotateLeftConst(k) contributes k; RotateRightConst(k) contributes -k;
// Raw terms (which the backend never rotates, since they are not yet
// ciphertexts) are skipped.
func SelectRotationKeys(program *ir.Program, types *ir.DenseMap[ir.Type]) map[int32]struct{} {
	rotations := make(map[int32]struct{})
	ir.ForwardPass(program, func(t *ir.Term) {
		if !ir.IsRotationOp(t.Op) || types.Get(t) == ir.Raw {
			return
		}
		step := t.GetI32(ir.RotationAttribute)
		if t.Op == ir.RotateLeftConst {
			rotations[step] = struct{}{}
		} else {
			rotations[-step] = struct{}{}
		}
	})
	return rotations
}
