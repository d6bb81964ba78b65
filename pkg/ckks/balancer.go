package ckks

import (
	"sort"

	"github.com/evaproject/eva/pkg/ir"
)

// Combine flattens associative chains: an internal Add/Mul term whose sole
// use is another Add/Mul of the same op has its operands folded into the
// parent, producing a flattened variadic reduction (§4.5). The folded term
// is only detached from the parent: it is not erased, keeps its own operand
// edges, and stays in the program as a sink with no uses.
func Combine(program *ir.Program) {
	ir.ForwardPass(program, func(t *ir.Term) {
		if !t.IsInternal() || !ir.IsReductionOp(t.Op) {
			return
		}
		uses := t.Uses()
		if len(uses) != 1 {
			return
		}
		use := program.Term(uses[0])
		if use.Op != t.Op {
			return
		}
		for program.EraseOperand(use, t.Index()) {
			for _, operand := range t.Operands() {
				program.AddOperand(use, operand)
			}
		}
	})
}

// LogExpand rebalances any Add/Mul term with more than two operands into a
// balanced binary tree (§4.5). Operands are first sorted by a synthetic
// level-proxy tuple so that chains of similar level end up adjacent,
// limiting unnecessary scale accumulation: order 0 for Raw constants,
// order 1 for other Plain/Raw operands, and 2+scale for Cipher operands,
// where scale is computed as if no rescaling had occurred yet (Mul sums
// operand proxy-scales, every other op takes their max). Must run before
// any rescaler: encountering a Rescale/ModSwitch term means the proxy
// scale it relies on is already stale.
func LogExpand(program *ir.Program, types *ir.DenseMap[ir.Type]) error {
	proxyScale := ir.NewOptionalMap[uint32](program)
	defer proxyScale.Release()

	var expandErr error
	ir.ForwardPass(program, func(t *ir.Term) {
		if expandErr != nil {
			return
		}
		if t.Op == ir.Rescale || t.Op == ir.ModSwitch {
			expandErr = newInternalError("rescale or modswitch encountered, but LogExpand uses scale as a level proxy and assumes rescaling has not been performed yet")
			return
		}

		if t.NumOperands() == 0 {
			proxyScale.Set(t, t.GetU32(ir.EncodeAtScaleAttribute))
		} else if t.Op == ir.Mul {
			var sum uint32
			for _, opIdx := range t.Operands() {
				sum += proxyScale.GetIdx(opIdx)
			}
			proxyScale.Set(t, sum)
		} else {
			var max uint32
			for _, opIdx := range t.Operands() {
				if s := proxyScale.GetIdx(opIdx); s > max {
					max = s
				}
			}
			proxyScale.Set(t, max)
		}

		if !ir.IsReductionOp(t.Op) || t.NumOperands() <= 2 {
			return
		}

		type ordered struct {
			order  uint64
			pos    int
			idx    ir.TermIndex
		}
		entries := make([]ordered, len(t.Operands()))
		for i, opIdx := range t.Operands() {
			operand := program.Term(opIdx)
			var order uint64
			switch {
			case operand.Op == ir.Constant:
				order = 0
			case types.GetIdx(opIdx) == ir.Plain || types.GetIdx(opIdx) == ir.Raw:
				order = 1
			case types.GetIdx(opIdx) == ir.Cipher:
				order = 2 + uint64(proxyScale.GetIdx(opIdx))
			}
			entries[i] = ordered{order: order, pos: i, idx: opIdx}
		}
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

		operands := make([]ir.TermIndex, len(entries))
		for i, e := range entries {
			operands[i] = e.idx
		}

		for len(operands) > 2 {
			var next []ir.TermIndex
			i := 0
			for i+1 < len(operands) {
				newTerm := program.MakeTerm(t.Op, operands[i], operands[i+1])
				next = append(next, newTerm.Index())
				i += 2
			}
			if i < len(operands) {
				next = append(next, operands[i])
			}
			operands = next
		}
		program.SetOperands(t, operands)
	})
	return expandErr
}
