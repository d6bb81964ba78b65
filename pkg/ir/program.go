package ir

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// termMapBase is the resize hook every side map registers with its owning
// Program, mirroring the teacher's registerTermMap/unregisterTermMap pair
// (design note §9: side maps are resized whenever a new term is allocated).
type termMapBase interface {
	resize(n uint)
}

// Program owns a packed arena of terms and every side map keyed by term
// index; a Term is reachable only through its owning Program (§3.1).
type Program struct {
	Name    string
	VecSize uint64

	terms   []*Term
	sources *bitset.BitSet
	sinks   *bitset.BitSet

	inputs  map[string]TermIndex
	outputs map[string]TermIndex

	nextIndex TermIndex
	termMaps  []termMapBase
}

// NewProgram validates VecSize (strictly positive power of two, §3.1) and
// returns an empty Program.
func NewProgram(name string, vecSize uint64) (*Program, error) {
	if vecSize == 0 {
		return nil, fmt.Errorf("vector size must be non-zero")
	}
	if vecSize&(vecSize-1) != 0 {
		return nil, fmt.Errorf("vector size must be a power of two")
	}
	return &Program{
		Name:    name,
		VecSize: vecSize,
		sources: bitset.New(0),
		sinks:   bitset.New(0),
		inputs:  make(map[string]TermIndex),
		outputs: make(map[string]TermIndex),
	}, nil
}

func (p *Program) allocateIndex() TermIndex {
	idx := p.nextIndex
	p.nextIndex++
	for _, m := range p.termMaps {
		m.resize(uint(p.nextIndex))
	}
	return idx
}

func (p *Program) registerTermMap(m termMapBase) {
	m.resize(uint(p.nextIndex))
	p.termMaps = append(p.termMaps, m)
}

func (p *Program) unregisterTermMap(m termMapBase) {
	for i, o := range p.termMaps {
		if o == m {
			p.termMaps = append(p.termMaps[:i], p.termMaps[i+1:]...)
			return
		}
	}
}

// Term returns the term at idx. Panics if idx is out of range, matching the
// teacher's treatment of index misuse as a programmer bug rather than a
// recoverable error.
func (p *Program) Term(idx TermIndex) *Term { return p.terms[idx] }

// NumTerms returns the number of terms ever allocated. Terms are never
// removed from the arena, so a term a pass has detached from the graph is
// still counted.
func (p *Program) NumTerms() int { return len(p.terms) }

// MakeTerm creates a new term of the given op with the given operands; it
// is registered as a source iff operands is empty, and as a sink
// unconditionally until uses are added (§4.1).
func (p *Program) MakeTerm(op Op, operands ...TermIndex) *Term {
	idx := p.allocateIndex()
	t := &Term{Op: op, index: idx}
	p.terms = append(p.terms, t)
	p.sources.Set(uint(idx))
	p.sinks.Set(uint(idx))
	if len(operands) > 0 {
		p.SetOperands(t, operands)
	}
	return t
}

// AddOperand appends term as the last operand of t, keeping use-lists in
// sync on both endpoints (§4.1).
func (p *Program) AddOperand(t *Term, operand TermIndex) {
	if len(t.operands) == 0 {
		p.sources.Clear(uint(t.index))
	}
	t.operands = append(t.operands, operand)
	p.addUse(operand, t.index)
}

// EraseOperand removes the first operand edge to operand found in t's
// operand list and reports whether one was removed.
func (p *Program) EraseOperand(t *Term, operand TermIndex) bool {
	for i, o := range t.operands {
		if o == operand {
			p.eraseUse(operand, t.index)
			t.operands = append(t.operands[:i], t.operands[i+1:]...)
			if len(t.operands) == 0 {
				p.sources.Set(uint(t.index))
			}
			return true
		}
	}
	return false
}

// ReplaceOperand replaces every occurrence of oldOperand in t's operand
// list with newOperand, keeping use-lists in sync (§4.1).
func (p *Program) ReplaceOperand(t *Term, oldOperand, newOperand TermIndex) bool {
	replaced := false
	for i, o := range t.operands {
		if o == oldOperand {
			t.operands[i] = newOperand
			p.eraseUse(oldOperand, t.index)
			p.addUse(newOperand, t.index)
			replaced = true
		}
	}
	return replaced
}

// SetOperands replaces t's entire operand list, rewiring use-lists on every
// old and new operand.
func (p *Program) SetOperands(t *Term, operands []TermIndex) {
	wasSource := len(t.operands) == 0
	for _, o := range t.operands {
		p.eraseUse(o, t.index)
	}
	t.operands = append([]TermIndex(nil), operands...)
	for _, o := range t.operands {
		p.addUse(o, t.index)
	}
	isSource := len(t.operands) == 0
	if isSource && !wasSource {
		p.sources.Set(uint(t.index))
	} else if !isSource && wasSource {
		p.sources.Clear(uint(t.index))
	}
}

func (p *Program) addUse(defIdx, useIdx TermIndex) {
	def := p.terms[defIdx]
	if len(def.uses) == 0 {
		p.sinks.Clear(uint(defIdx))
	}
	def.uses = append(def.uses, useIdx)
}

// eraseUse removes one occurrence of useIdx from defIdx's use-list.
func (p *Program) eraseUse(defIdx, useIdx TermIndex) bool {
	def := p.terms[defIdx]
	for i, u := range def.uses {
		if u == useIdx {
			def.uses = append(def.uses[:i], def.uses[i+1:]...)
			if len(def.uses) == 0 {
				p.sinks.Set(uint(defIdx))
			}
			return true
		}
	}
	return false
}

// ReplaceUsesWithIf substitutes t with replacement in the operand list of
// every current use of t satisfying predicate.
func (p *Program) ReplaceUsesWithIf(t *Term, replacement TermIndex, predicate func(useIdx TermIndex) bool) {
	uses := append([]TermIndex(nil), t.uses...)
	for _, useIdx := range uses {
		if predicate(useIdx) {
			p.ReplaceOperand(p.terms[useIdx], t.index, replacement)
		}
	}
}

// ReplaceAllUsesWith substitutes t with replacement in every current use.
func (p *Program) ReplaceAllUsesWith(t *Term, replacement TermIndex) {
	p.ReplaceUsesWithIf(t, replacement, func(TermIndex) bool { return true })
}

// ReplaceOtherUsesWith substitutes t with replacement in every current use
// except replacement itself; used when inserting a term (e.g. Rescale) that
// consumes t and must not be rewired to consume itself.
func (p *Program) ReplaceOtherUsesWith(t *Term, replacement TermIndex) {
	p.ReplaceUsesWithIf(t, replacement, func(useIdx TermIndex) bool { return useIdx != replacement })
}

// MakeConstant creates a Constant term carrying value.
func (p *Program) MakeConstant(value ConstantValue) *Term {
	t := p.MakeTerm(Constant)
	t.SetConstant(ConstantValueAttribute, value)
	return t
}

// MakeDenseConstant creates a Constant term from a literal slice of values,
// tiling to fill VecSize.
func (p *Program) MakeDenseConstant(values []float64) (*Term, error) {
	dc, err := NewDenseConstant(p.VecSize, values)
	if err != nil {
		return nil, err
	}
	return p.MakeConstant(dc), nil
}

// MakeSparseConstant creates a Constant term from (index, value) pairs,
// tiling to fill VecSize.
func (p *Program) MakeSparseConstant(entries []SparseEntry) *Term {
	return p.MakeConstant(NewSparseConstant(p.VecSize, entries))
}

// MakeUniformConstant creates a dense constant of period 1 whose single
// value tiles across every slot, matching the original's
// Term::makeUniformConstant (used by the rescaler family to equalize scale
// on Add/Sub operands, §4.6).
func (p *Program) MakeUniformConstant(value float64) *Term {
	t, _ := p.MakeDenseConstant([]float64{value})
	return t
}

// MakeInput creates a named Input term of the given type.
func (p *Program) MakeInput(name string, typ Type) *Term {
	t := p.MakeTerm(Input)
	t.SetType(TypeAttribute, typ)
	p.inputs[name] = t.index
	return t
}

// MakeOutput creates a named Output term consuming source.
func (p *Program) MakeOutput(name string, source *Term) *Term {
	t := p.MakeTerm(Output, source.index)
	p.outputs[name] = t.index
	return t
}

// MakeLeftRotation creates a RotateLeftConst term rotating source left by
// slots.
func (p *Program) MakeLeftRotation(source *Term, slots int32) *Term {
	t := p.MakeTerm(RotateLeftConst, source.index)
	t.SetI32(RotationAttribute, slots)
	return t
}

// MakeRightRotation creates a RotateRightConst term rotating source right
// by slots.
func (p *Program) MakeRightRotation(source *Term, slots int32) *Term {
	t := p.MakeTerm(RotateRightConst, source.index)
	t.SetI32(RotationAttribute, slots)
	return t
}

// MakeRescale creates a Rescale term consuming source, dropping bits bits
// of scale (§4.6).
func (p *Program) MakeRescale(source *Term, bits uint32) *Term {
	t := p.MakeTerm(Rescale, source.index)
	t.SetU32(RescaleDivisorAttribute, bits)
	return t
}

// GetInput looks up a named input term.
func (p *Program) GetInput(name string) (*Term, bool) {
	idx, ok := p.inputs[name]
	if !ok {
		return nil, false
	}
	return p.terms[idx], true
}

// Inputs returns the name -> term-index map of named inputs.
func (p *Program) Inputs() map[string]TermIndex { return p.inputs }

// Outputs returns the name -> term-index map of named outputs.
func (p *Program) Outputs() map[string]TermIndex { return p.outputs }

// GetSources returns a snapshot of the terms with no operands.
func (p *Program) GetSources() []TermIndex { return bitsetMembers(p.sources) }

// GetSinks returns a snapshot of the terms with no uses.
func (p *Program) GetSinks() []TermIndex { return bitsetMembers(p.sinks) }

func bitsetMembers(b *bitset.BitSet) []TermIndex {
	out := make([]TermIndex, 0, b.Count())
	for i, ok := b.NextSet(0); ok; i, ok = b.NextSet(i + 1) {
		out = append(out, TermIndex(i))
	}
	return out
}

// DeepCopy clones the Program: a forward traversal allocates a fresh term
// per source term preserving op, operands and attributes, matching the
// teacher-grounded original's Program::deepCopy (§4.1).
func (p *Program) DeepCopy() (*Program, error) {
	newProg, err := NewProgram(p.Name, p.VecSize)
	if err != nil {
		return nil, err
	}
	oldToNew := make([]TermIndex, p.nextIndex)
	ForwardPass(p, func(t *Term) {
		newOperands := make([]TermIndex, len(t.operands))
		for i, o := range t.operands {
			newOperands[i] = oldToNew[o]
		}
		newTerm := newProg.MakeTerm(t.Op, newOperands...)
		newTerm.AssignFrom(&t.AttributeList)
		oldToNew[t.index] = newTerm.index
	})
	for name, idx := range p.inputs {
		newProg.inputs[name] = oldToNew[idx]
	}
	for name, idx := range p.outputs {
		newProg.outputs[name] = oldToNew[idx]
	}
	return newProg, nil
}
