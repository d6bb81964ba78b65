package ir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestNewProgramRejectsBadVecSize(t *testing.T) {
	if _, err := NewProgram("p", 0); err == nil {
		t.Errorf("expected error for zero vecSize")
	}
	if _, err := NewProgram("p", 3); err == nil {
		t.Errorf("expected error for non-power-of-two vecSize")
	}
	if _, err := NewProgram("p", 8); err != nil {
		t.Errorf("unexpected error for valid vecSize: %v", err)
	}
}

// TestEdgeSymmetry checks §8.1's edge-symmetry invariant: for every
// operand edge t->o there is a matching use edge o<-t, and conversely.
func TestEdgeSymmetry(t *testing.T) {
	p, _ := NewProgram("p", 8)
	a := p.MakeInput("a", Cipher)
	b := p.MakeInput("b", Cipher)
	m := p.MakeTerm(Mul, a.Index(), b.Index())
	p.MakeOutput("y", m)

	checkEdgeSymmetry(t, p)
}

func checkEdgeSymmetry(t *testing.T, p *Program) {
	for i := 0; i < p.NumTerms(); i++ {
		term := p.Term(TermIndex(i))
		for _, opIdx := range term.Operands() {
			operand := p.Term(opIdx)
			found := false
			for _, u := range operand.Uses() {
				if u == term.Index() {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("t%d has operand edge to t%d with no matching use edge", term.Index(), opIdx)
			}
		}
		for _, useIdx := range term.Uses() {
			use := p.Term(useIdx)
			found := false
			for _, o := range use.Operands() {
				if o == term.Index() {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("t%d has use edge to t%d with no matching operand edge", term.Index(), useIdx)
			}
		}
	}
}

// TestSourceSinkConsistency checks §8.1: t is a source iff its operand
// list is empty, and a sink iff its use list is empty.
func TestSourceSinkConsistency(t *testing.T) {
	p, _ := NewProgram("p", 8)
	a := p.MakeInput("a", Cipher)
	b := p.MakeInput("b", Cipher)
	m := p.MakeTerm(Mul, a.Index(), b.Index())
	p.MakeOutput("y", m)

	sources := memberSet(p.GetSources())
	sinks := memberSet(p.GetSinks())

	for i := 0; i < p.NumTerms(); i++ {
		term := p.Term(TermIndex(i))
		_, inSources := sources[term.Index()]
		_, inSinks := sinks[term.Index()]
		if inSources != term.IsSource() {
			t.Errorf("t%d: sources membership (%v) disagrees with IsSource() (%v)", term.Index(), inSources, term.IsSource())
		}
		if inSinks != term.IsSink() {
			t.Errorf("t%d: sinks membership (%v) disagrees with IsSink() (%v)", term.Index(), inSinks, term.IsSink())
		}
	}
}

func memberSet(idxs []TermIndex) map[TermIndex]struct{} {
	m := make(map[TermIndex]struct{}, len(idxs))
	for _, idx := range idxs {
		m[idx] = struct{}{}
	}
	return m
}

func TestEraseOperandRestoresSourceStatus(t *testing.T) {
	p, _ := NewProgram("p", 8)
	a := p.MakeInput("a", Cipher)
	neg := p.MakeTerm(Negate, a.Index())

	if neg.IsSource() {
		t.Fatalf("negate term should not be a source")
	}
	if !p.EraseOperand(neg, a.Index()) {
		t.Fatalf("EraseOperand reported no edge removed")
	}
	if !neg.IsSource() {
		t.Errorf("term with no operands left should be a source")
	}
	if !a.IsSink() {
		t.Errorf("a should be a sink again after its only use was erased")
	}
}

func TestReplaceAllUsesWith(t *testing.T) {
	p, _ := NewProgram("p", 8)
	a := p.MakeInput("a", Cipher)
	n1 := p.MakeTerm(Negate, a.Index())
	n2 := p.MakeTerm(Negate, n1.Index())
	n3 := p.MakeTerm(Negate, n1.Index())

	replacement := p.MakeTerm(Negate, a.Index())
	p.ReplaceAllUsesWith(n1, replacement.Index())

	if n2.OperandAt(0) != replacement.Index() {
		t.Errorf("n2 operand not rewired to replacement")
	}
	if n3.OperandAt(0) != replacement.Index() {
		t.Errorf("n3 operand not rewired to replacement")
	}
	if !n1.IsSink() {
		t.Errorf("n1 should have no uses left after ReplaceAllUsesWith")
	}
	checkEdgeSymmetry(t, p)
}

func TestReplaceOtherUsesWith(t *testing.T) {
	p, _ := NewProgram("p", 8)
	a := p.MakeInput("a", Cipher)
	m := p.MakeTerm(Mul, a.Index(), a.Index())
	other := p.MakeTerm(Negate, m.Index())

	rescale := p.MakeTerm(Rescale, m.Index())
	p.ReplaceOtherUsesWith(m, rescale.Index())

	if other.OperandAt(0) != rescale.Index() {
		t.Errorf("other use was not rewired to rescale node")
	}
	if len(m.Uses()) != 1 || m.Uses()[0] != rescale.Index() {
		t.Errorf("m should have exactly one use left: the rescale node itself, got %v", m.Uses())
	}
}

// TestDeepCopyIsomorphic checks part of §8.2's deepCopy property on a small
// program: the copy has the same number of terms, each input keeps its op,
// and the output keeps its RangeAttribute.
func TestDeepCopyIsomorphic(t *testing.T) {
	p, _ := NewProgram("p", 8)
	a := p.MakeInput("a", Cipher)
	b := p.MakeInput("b", Cipher)
	m := p.MakeTerm(Mul, a.Index(), b.Index())
	m.SetU32(RangeAttribute, 20)
	out := p.MakeOutput("y", m)
	out.SetU32(RangeAttribute, 20)

	q, err := p.DeepCopy()
	if err != nil {
		t.Fatalf("DeepCopy failed: %v", err)
	}

	if q.NumTerms() != p.NumTerms() {
		t.Fatalf("copy has %d terms, want %d", q.NumTerms(), p.NumTerms())
	}
	for name := range p.Inputs() {
		orig := p.Term(p.Inputs()[name])
		copied := q.Term(q.Inputs()[name])
		if orig.Op != copied.Op {
			t.Errorf("input %q: op mismatch after copy", name)
		}
	}
	origOut := p.Term(p.Outputs()["y"])
	copiedOut := q.Term(q.Outputs()["y"])
	if diff := cmp.Diff(origOut.GetU32(RangeAttribute), copiedOut.GetU32(RangeAttribute), cmpopts.EquateComparable()); diff != "" {
		t.Errorf("output RangeAttribute mismatch after copy (-orig +copy):\n%s", diff)
	}
}

// TestForwardPassSingleVisitation checks §8.1: over an unchanging graph,
// every term is visited exactly once.
func TestForwardPassSingleVisitation(t *testing.T) {
	p, _ := NewProgram("p", 8)
	a := p.MakeInput("a", Cipher)
	b := p.MakeInput("b", Cipher)
	add := p.MakeTerm(Add, a.Index(), b.Index())
	mul := p.MakeTerm(Mul, add.Index(), a.Index())
	p.MakeOutput("y", mul)

	visits := make(map[TermIndex]int)
	ForwardPass(p, func(term *Term) { visits[term.Index()]++ })

	for i := 0; i < p.NumTerms(); i++ {
		if visits[TermIndex(i)] != 1 {
			t.Errorf("t%d visited %d times, want 1", i, visits[TermIndex(i)])
		}
	}
}

func TestBackwardPassSingleVisitation(t *testing.T) {
	p, _ := NewProgram("p", 8)
	a := p.MakeInput("a", Cipher)
	b := p.MakeInput("b", Cipher)
	add := p.MakeTerm(Add, a.Index(), b.Index())
	mul := p.MakeTerm(Mul, add.Index(), a.Index())
	p.MakeOutput("y", mul)

	visits := make(map[TermIndex]int)
	BackwardPass(p, func(term *Term) { visits[term.Index()]++ })

	for i := 0; i < p.NumTerms(); i++ {
		if visits[TermIndex(i)] != 1 {
			t.Errorf("t%d visited %d times, want 1", i, visits[TermIndex(i)])
		}
	}
}

// TestForwardPassVisitsRewrittenUpstream checks that a visitor may add
// new terms upstream of the term being visited and still have them
// visited before the pass concludes (§4.2's rewrite-safety contract).
func TestForwardPassVisitsRewrittenUpstream(t *testing.T) {
	p, _ := NewProgram("p", 8)
	a := p.MakeInput("a", Cipher)
	out := p.MakeOutput("y", a)

	var visited []TermIndex
	inserted := false
	ForwardPass(p, func(term *Term) {
		visited = append(visited, term.Index())
		if term.Index() == a.Index() && !inserted {
			inserted = true
			neg := p.MakeTerm(Negate, a.Index())
			p.ReplaceOperand(out, a.Index(), neg.Index())
		}
	})

	found := false
	for _, idx := range visited {
		if p.Term(idx).Op == Negate {
			found = true
		}
	}
	if !found {
		t.Errorf("negate term inserted mid-pass was never visited")
	}
}
