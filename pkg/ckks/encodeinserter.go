package ckks

import "github.com/evaproject/eva/pkg/ir"

// EncodeInserter implements §4.7: wherever a binary term mixes a Cipher
// operand with a Raw operand, the Raw operand is wrapped in an Encode term
// (Plain-typed) before the op executes, since no CKKS operation accepts a
// raw double-precision operand directly. The Encode node's scale follows
// the addition-vs-multiplication rule below and is recorded both in the
// scale side map and as the Encode node's own EncodeAtScaleAttribute.
func EncodeInserter(program *ir.Program, types *ir.DenseMap[ir.Type], scale *ir.OptionalMap[uint32]) error {
	var passErr error
	ir.ForwardPass(program, func(t *ir.Term) {
		if passErr != nil {
			return
		}
		if t.NumOperands() == 0 {
			return
		}
		if t.NumOperands() != 2 {
			return
		}
		leftIdx, rightIdx := t.OperandAt(0), t.OperandAt(1)
		left, right := program.Term(leftIdx), program.Term(rightIdx)

		if types.Get(left) == ir.Cipher && types.Get(right) == ir.Raw {
			encoded := insertEncode(program, types, scale, t.Op, left, right)
			program.ReplaceOperand(t, rightIdx, encoded.Index())
		}
		if types.Get(right) == ir.Cipher && types.Get(left) == ir.Raw {
			encoded := insertEncode(program, types, scale, t.Op, right, left)
			program.ReplaceOperand(t, leftIdx, encoded.Index())
		}
	})
	return passErr
}

func insertEncode(program *ir.Program, types *ir.DenseMap[ir.Type], scale *ir.OptionalMap[uint32], op ir.Op, other, term *ir.Term) *ir.Term {
	newNode := program.MakeTerm(ir.Encode, term.Index())
	types.Set(newNode, ir.Plain)
	if ir.IsAdditionOp(op) {
		scale.Set(newNode, scale.Get(other))
	} else {
		scale.Set(newNode, scale.Get(term))
	}
	newNode.SetU32(ir.EncodeAtScaleAttribute, scale.Get(newNode))
	return newNode
}
