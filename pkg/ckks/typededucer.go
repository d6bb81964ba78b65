package ckks

import "github.com/evaproject/eva/pkg/ir"

// TypeDeduce assigns {Cipher, Plain, Raw} to every term of program,
// following the lattice rule of §3.5: a term with no operands takes its
// declared TypeAttribute (Constant is always Raw); otherwise Encode
// always produces Plain, and any other op is Cipher if any operand is
// Cipher, else Raw. Re-runnable idempotently (§8.2).
func TypeDeduce(program *ir.Program, types *ir.DenseMap[ir.Type]) {
	ir.ForwardPass(program, func(t *ir.Term) {
		if t.NumOperands() == 0 {
			if t.Op == ir.Constant {
				types.Set(t, ir.Raw)
			} else {
				types.Set(t, t.GetType(ir.TypeAttribute))
			}
			return
		}
		if t.Op == ir.Encode {
			types.Set(t, ir.Plain)
			return
		}
		inferred := ir.Raw
		for _, opIdx := range t.Operands() {
			if types.GetIdx(opIdx) == ir.Cipher {
				inferred = ir.Cipher
				break
			}
		}
		types.Set(t, inferred)
	})
}
