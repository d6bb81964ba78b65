package ckks

import (
	"testing"

	"github.com/evaproject/eva/pkg/ir"
)

func mustProgram(t *testing.T, vecSize uint64) *ir.Program {
	t.Helper()
	p, err := ir.NewProgram(t.Name(), vecSize)
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	return p
}

// TestSingleMultiply implements spec §8.4 scenario 1: a single Cipher x
// Cipher multiply under LazyWaterline with lazy relinearization should
// end up with exactly one Relinearize and one Rescale on the path to the
// output, a two-prime chain, and input a's signature recording a scale at
// least its declared 30 bits.
func TestSingleMultiply(t *testing.T) {
	p := mustProgram(t, 8)
	a := p.MakeInput("a", ir.Cipher)
	a.SetU32(ir.EncodeAtScaleAttribute, 30)
	b := p.MakeInput("b", ir.Cipher)
	b.SetU32(ir.EncodeAtScaleAttribute, 30)
	m := p.MakeTerm(ir.Mul, a.Index(), b.Index())
	y := p.MakeOutput("y", m)
	y.SetU32(ir.RangeAttribute, 20)

	cfg := DefaultConfig()
	cfg.Rescaler = LazyWaterline
	cfg.LazyRelinearize = true

	result, err := Compile(p, cfg)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	relins, rescales := countOpsOnOutputPath(result.Program, "y")
	if relins != 1 {
		t.Errorf("expected exactly one Relinearize on the path to y, got %d", relins)
	}
	if rescales != 1 {
		t.Errorf("expected exactly one Rescale on the path to y, got %d", rescales)
	}
	if len(result.Parameters.PrimeBits) != 2 {
		t.Errorf("expected a 2-prime chain, got %v", result.Parameters.PrimeBits)
	}
	if result.Signature.Inputs["a"].Scale < 30 {
		t.Errorf("input a's signature scale %d is below its declared scale 30", result.Signature.Inputs["a"].Scale)
	}
}

func countOpsOnOutputPath(p *ir.Program, outputName string) (relins, rescales int) {
	outIdx := p.Outputs()[outputName]
	visited := make(map[ir.TermIndex]bool)
	var walk func(ir.TermIndex)
	walk = func(idx ir.TermIndex) {
		if visited[idx] {
			return
		}
		visited[idx] = true
		term := p.Term(idx)
		switch term.Op {
		case ir.Relinearize:
			relins++
		case ir.Rescale:
			rescales++
		}
		for _, opIdx := range term.Operands() {
			walk(opIdx)
		}
	}
	walk(outIdx)
	return
}

// TestAdditionScaleMismatch implements spec §8.4 scenario 2: y = a + b*c
// with all inputs at scale 30 requires the compiler to raise a's scale to
// 60 (via a multiply-by-uniform-1) before the addition, and the result
// must pass every validator.
func TestAdditionScaleMismatch(t *testing.T) {
	for _, policy := range []RescalePolicy{LazyWaterline, EagerWaterline} {
		p := mustProgram(t, 8)
		a := p.MakeInput("a", ir.Cipher)
		a.SetU32(ir.EncodeAtScaleAttribute, 30)
		b := p.MakeInput("b", ir.Cipher)
		b.SetU32(ir.EncodeAtScaleAttribute, 30)
		c := p.MakeInput("c", ir.Cipher)
		c.SetU32(ir.EncodeAtScaleAttribute, 30)
		mul := p.MakeTerm(ir.Mul, b.Index(), c.Index())
		add := p.MakeTerm(ir.Add, a.Index(), mul.Index())
		y := p.MakeOutput("y", add)
		y.SetU32(ir.RangeAttribute, 20)

		cfg := DefaultConfig()
		cfg.Rescaler = policy

		if _, err := Compile(p, cfg); err != nil {
			t.Errorf("policy %v: Compile failed: %v", policy, err)
		}
	}
}

// TestLazyWaterlinePendingMulThenAdd covers the case TestAdditionScaleMismatch
// cannot reach: a Mul whose scale sits above the waterline (so it is left
// pending rather than rescaled immediately) feeding a single-use Add. Here
// a*b at scale 120 (inputs at 60, waterline = maxRescaleBits+minScale =
// 120) must carry its un-rescaled scale into the Add's equalization of d
// before the Add itself is resolved, so both of the Add's operands still
// agree once the dust settles.
func TestLazyWaterlinePendingMulThenAdd(t *testing.T) {
	p := mustProgram(t, 8)
	a := p.MakeInput("a", ir.Cipher)
	a.SetU32(ir.EncodeAtScaleAttribute, 60)
	b := p.MakeInput("b", ir.Cipher)
	b.SetU32(ir.EncodeAtScaleAttribute, 60)
	d := p.MakeInput("d", ir.Cipher)
	d.SetU32(ir.EncodeAtScaleAttribute, 60)
	mul := p.MakeTerm(ir.Mul, a.Index(), b.Index())
	add := p.MakeTerm(ir.Add, mul.Index(), d.Index())
	y := p.MakeOutput("y", add)
	y.SetU32(ir.RangeAttribute, 20)

	cfg := DefaultConfig()
	cfg.Rescaler = LazyWaterline

	if _, err := Compile(p, cfg); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
}

// TestLazyWaterlinePendingChainThenAdd is the deeper variant from spec
// §4.6's worked example: (a*b)*c + d, with every input at scale 30, so the
// inner product (scale 60) stays below the 90-bit rescale threshold and is
// never marked pending, while the outer product reaches 90, is marked
// pending, and hands the mark to the Add.
func TestLazyWaterlinePendingChainThenAdd(t *testing.T) {
	p := mustProgram(t, 8)
	a := p.MakeInput("a", ir.Cipher)
	a.SetU32(ir.EncodeAtScaleAttribute, 30)
	b := p.MakeInput("b", ir.Cipher)
	b.SetU32(ir.EncodeAtScaleAttribute, 30)
	c := p.MakeInput("c", ir.Cipher)
	c.SetU32(ir.EncodeAtScaleAttribute, 30)
	d := p.MakeInput("d", ir.Cipher)
	d.SetU32(ir.EncodeAtScaleAttribute, 30)
	ab := p.MakeTerm(ir.Mul, a.Index(), b.Index())
	abc := p.MakeTerm(ir.Mul, ab.Index(), c.Index())
	add := p.MakeTerm(ir.Add, abc.Index(), d.Index())
	y := p.MakeOutput("y", add)
	y.SetU32(ir.RangeAttribute, 20)

	cfg := DefaultConfig()
	cfg.Rescaler = LazyWaterline

	if _, err := Compile(p, cfg); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
}

// TestAllRawConstantFold implements spec §8.4 scenario 3: negate(add(const,
// const)) over an all-Raw subgraph folds to a single Constant term.
func TestAllRawConstantFold(t *testing.T) {
	p := mustProgram(t, 2)
	c1, _ := p.MakeDenseConstant([]float64{1, 2})
	c1.SetU32(ir.EncodeAtScaleAttribute, 30)
	c2, _ := p.MakeDenseConstant([]float64{3, 4})
	c2.SetU32(ir.EncodeAtScaleAttribute, 30)
	add := p.MakeTerm(ir.Add, c1.Index(), c2.Index())
	neg := p.MakeTerm(ir.Negate, add.Index())
	y := p.MakeOutput("y", neg)
	_ = y

	scale := ir.NewOptionalMap[uint32](p)
	defer scale.Release()
	for _, idx := range p.GetSources() {
		scale.Set(p.Term(idx), p.Term(idx).GetU32(ir.EncodeAtScaleAttribute))
	}

	if err := ConstantFold(p, scale); err != nil {
		t.Fatalf("ConstantFold failed: %v", err)
	}

	outTerm := p.Term(p.Outputs()["y"])
	pred := p.Term(outTerm.OperandAt(0))
	if pred.Op != ir.Constant {
		t.Fatalf("expected output's predecessor to be a folded Constant, got %v", pred.Op)
	}
	values := pred.GetConstant(ir.ConstantValueAttribute).Expand(nil, 2)
	want := []float64{-4, -6}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("folded value[%d] = %v, want %v", i, values[i], want[i])
		}
	}
}

// TestReductionBalancing implements spec §8.4 scenario 4: y =
// ((((a+b)+c)+d)+e) combines into a 5-operand Add and then rebalances
// into a binary tree of depth ceil(log2(5)) = 3.
func TestReductionBalancing(t *testing.T) {
	p := mustProgram(t, 8)
	names := []string{"a", "b", "c", "d", "e"}
	inputs := make([]*ir.Term, len(names))
	for i, name := range names {
		in := p.MakeInput(name, ir.Cipher)
		in.SetU32(ir.EncodeAtScaleAttribute, 30)
		inputs[i] = in
	}
	acc := p.MakeTerm(ir.Add, inputs[0].Index(), inputs[1].Index())
	for i := 2; i < len(inputs); i++ {
		acc = p.MakeTerm(ir.Add, acc.Index(), inputs[i].Index())
	}
	y := p.MakeOutput("y", acc)
	y.SetU32(ir.RangeAttribute, 20)

	types := ir.NewDenseMap[ir.Type](p)
	defer types.Release()
	TypeDeduce(p, types)

	Combine(p)
	root := p.Term(p.Term(p.Outputs()["y"]).OperandAt(0))
	if root.NumOperands() != 5 {
		t.Fatalf("after Combine expected a 5-operand Add, got %d operands", root.NumOperands())
	}

	if err := LogExpand(p, types); err != nil {
		t.Fatalf("LogExpand failed: %v", err)
	}
	root = p.Term(p.Term(p.Outputs()["y"]).OperandAt(0))
	if root.NumOperands() != 2 {
		t.Fatalf("after LogExpand expected a binary Add at the root, got %d operands", root.NumOperands())
	}
	depth := addDepth(p, root)
	if depth != 3 {
		t.Errorf("expected balanced tree depth 3, got %d", depth)
	}
}

func addDepth(p *ir.Program, t *ir.Term) int {
	if t.Op != ir.Add {
		return 0
	}
	max := 0
	for _, opIdx := range t.Operands() {
		if d := addDepth(p, p.Term(opIdx)); d > max {
			max = d
		}
	}
	return max + 1
}

// TestRotationKeySelection implements spec §8.4 scenario 5: y =
// rotate_left(a, 3) + rotate_right(a, 5) collects {3, -5}.
func TestRotationKeySelection(t *testing.T) {
	p := mustProgram(t, 8)
	a := p.MakeInput("a", ir.Cipher)
	a.SetU32(ir.EncodeAtScaleAttribute, 30)
	left := p.MakeLeftRotation(a, 3)
	right := p.MakeRightRotation(a, 5)
	sum := p.MakeTerm(ir.Add, left.Index(), right.Index())
	y := p.MakeOutput("y", sum)
	y.SetU32(ir.RangeAttribute, 20)

	types := ir.NewDenseMap[ir.Type](p)
	defer types.Release()
	TypeDeduce(p, types)

	rotations := SelectRotationKeys(p, types)
	if _, ok := rotations[3]; !ok {
		t.Errorf("expected rotation step 3 in key set")
	}
	if _, ok := rotations[-5]; !ok {
		t.Errorf("expected rotation step -5 in key set")
	}
	if len(rotations) != 2 {
		t.Errorf("expected exactly 2 rotation keys, got %d: %v", len(rotations), rotations)
	}
}

// TestOutputRangeDrivesTopPrime implements spec §8.4 scenario 6: two
// programs differing only in output RangeAttribute (20 vs 80) produce
// prime chains whose top segment differs: with an existing 60-bit prime
// already on the output's chain (from one real rescale), range=20 pushes
// max(60,20)=60 as the sole top prime, while range=80 (over the 60-bit
// single-prime threshold) always pushes a 60-bit prime followed by
// max(20, 80-60)=20, regardless of the pre-existing chain.
func TestOutputRangeDrivesTopPrime(t *testing.T) {
	build := func(t *testing.T, rangeBits uint32) []uint32 {
		p := mustProgram(t, 8)
		a := p.MakeInput("a", ir.Cipher)
		a.SetU32(ir.EncodeAtScaleAttribute, 30)
		mul := p.MakeTerm(ir.Mul, a.Index(), a.Index())
		rescale := p.MakeRescale(mul, 60)
		y := p.MakeOutput("y", rescale)
		y.SetU32(ir.RangeAttribute, rangeBits)

		types := ir.NewDenseMap[ir.Type](p)
		defer types.Release()
		TypeDeduce(p, types)
		scale := ir.NewOptionalMap[uint32](p)
		defer scale.Release()
		scale.Set(a, 30)
		scale.Set(mul, 60)
		scale.Set(rescale, 0)
		scale.Set(y, 0)

		chain, err := SelectParameters(p, types, scale)
		if err != nil {
			t.Fatalf("SelectParameters failed: %v", err)
		}
		return chain
	}

	small := build(t, 20)
	large := build(t, 80)

	if len(small) == 0 || small[0] != 60 {
		t.Errorf("range=20: expected top prime max(60,20)=60, got %v", small)
	}
	if len(large) < 2 || large[0] != 60 || large[1] != 20 {
		t.Errorf("range=80: expected top segment [60, 20], got %v", large)
	}
}
