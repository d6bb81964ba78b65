package ckks

import (
	log "github.com/sirupsen/logrus"

	"github.com/evaproject/eva/pkg/ir"
)

// rescaleState bundles the type/scale side maps every rescaler policy of
// §4.6 reads and writes, plus the common insertion primitives grounded on
// the teacher's shared Rescaler base class.
type rescaleState struct {
	program  *ir.Program
	types    *ir.DenseMap[ir.Type]
	scale    *ir.OptionalMap[uint32]
	minScale uint32
}

// newRescaleState computes minScale as the max scale among the program's
// sources (§4.6's "waterline" precondition: every source's
// EncodeAtScaleAttribute must be set).
func newRescaleState(program *ir.Program, types *ir.DenseMap[ir.Type], scale *ir.OptionalMap[uint32]) (*rescaleState, error) {
	var minScale uint32
	for _, idx := range program.GetSources() {
		if s := scale.GetIdx(idx); s > minScale {
			minScale = s
		}
	}
	if minScale == 0 {
		return nil, newUserError("no source in the program has a non-zero scale; did you forget to set EncodeAtScaleAttribute on an input or constant?")
	}
	return &rescaleState{program: program, types: types, scale: scale, minScale: minScale}, nil
}

// insertRescale inserts a Rescale(term, bits) node, redirecting every use
// of term other than the rescale node itself to consume it instead (§4.6).
func (s *rescaleState) insertRescale(term *ir.Term, bits uint32) *ir.Term {
	rescaleNode := s.program.MakeRescale(term, bits)
	s.types.Set(rescaleNode, s.types.Get(term))
	s.scale.Set(rescaleNode, s.scale.Get(term)-bits)
	s.program.ReplaceOtherUsesWith(term, rescaleNode.Index())
	return rescaleNode
}

// insertRescaleBetween inserts a Rescale(term1, bits) node on the operand
// edge term2 -> term1 only, used by the Minimum policy to pre-rescale a
// multiplication operand without disturbing term1's other uses.
func (s *rescaleState) insertRescaleBetween(term1, term2 *ir.Term, bits uint32) {
	rescaleNode := s.program.MakeRescale(term1, bits)
	s.types.Set(rescaleNode, s.types.Get(term1))
	s.scale.Set(rescaleNode, s.scale.Get(term1)-bits)
	s.program.ReplaceOperand(term2, term1.Index(), rescaleNode.Index())
}

// handleRawScale assigns a Raw term's scale as the max of its operands'
// scale; no rescaling is ever inserted for Raw terms (§4.6).
func (s *rescaleState) handleRawScale(t *ir.Term) {
	if t.NumOperands() == 0 {
		return
	}
	var max uint32
	for _, opIdx := range t.Operands() {
		if sc := s.scale.GetIdx(opIdx); sc > max {
			max = sc
		}
	}
	s.scale.Set(t, max)
}

// equalizeAdditionScales implements the shared Add/Sub scale-matching step
// used by every policy but Always: raise any non-Raw operand whose scale
// is below the running max by multiplying it with a uniform constant of
// scale delta, then require all non-Raw operands to share maxScale.
func (s *rescaleState) equalizeAdditionScales(t *ir.Term) uint32 {
	maxScale := s.scale.Get(t)
	for _, opIdx := range t.Operands() {
		if sc := s.scale.GetIdx(opIdx); sc > maxScale {
			maxScale = sc
		}
	}
	for _, opIdx := range t.Operands() {
		operand := s.program.Term(opIdx)
		if s.scale.GetIdx(opIdx) < maxScale && s.types.Get(operand) != ir.Raw {
			log.Tracef("scaling up t%d from scale %d to match other addition operands at scale %d", opIdx, s.scale.GetIdx(opIdx), maxScale)
			scaleConstant := s.program.MakeUniformConstant(1)
			delta := maxScale - s.scale.GetIdx(opIdx)
			s.scale.Set(scaleConstant, delta)
			scaleConstant.SetU32(ir.EncodeAtScaleAttribute, delta)
			mulNode := s.program.MakeTerm(ir.Mul, opIdx, scaleConstant.Index())
			s.scale.Set(mulNode, maxScale)
			s.program.ReplaceOperand(t, opIdx, mulNode.Index())
		}
	}
	return maxScale
}

// copyFirstOperandScale implements the scale-propagation rule shared by
// Negate, Rotate* and (before equalization) Add/Sub: scale of the first
// operand.
func (s *rescaleState) copyFirstOperandScale(t *ir.Term) {
	s.scale.Set(t, s.scale.GetIdx(t.OperandAt(0)))
}

func isMulOp(op ir.Op) bool { return op == ir.Mul }

const maxRescaleBits uint32 = 60

// RunRescaler runs the configured rescaler policy over program, inserting
// Rescale terms and equalizing Add/Sub operand scales so that the scale
// invariants of §4.6/§8.1 hold afterward.
func RunRescaler(program *ir.Program, types *ir.DenseMap[ir.Type], scale *ir.OptionalMap[uint32], policy RescalePolicy) error {
	switch policy {
	case Always:
		return runAlwaysRescaler(program, types, scale)
	case Minimum:
		return runMinimumRescaler(program, types, scale)
	case EagerWaterline:
		return runEagerWaterlineRescaler(program, types, scale)
	case LazyWaterline:
		return runLazyWaterlineRescaler(program, types, scale)
	default:
		return newInternalError("unhandled rescaler policy %v", policy)
	}
}
