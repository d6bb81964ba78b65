package interp

import (
	"math"
	"testing"

	"github.com/evaproject/eva/pkg/ir"
)

func TestInterpretMulAndAdd(t *testing.T) {
	p, err := ir.NewProgram("t", 4)
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	a := p.MakeInput("a", ir.Cipher)
	b := p.MakeInput("b", ir.Cipher)
	mul := p.MakeTerm(ir.Mul, a.Index(), b.Index())
	add := p.MakeTerm(ir.Add, mul.Index(), a.Index())
	p.MakeOutput("y", add)

	result, err := New(p).Run(map[string][]float64{
		"a": {1, 2, 3, 4},
		"b": {10, 10, 10, 10},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []float64{11, 22, 33, 44}
	got := result["y"]
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("y[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestInterpretRotation(t *testing.T) {
	p, _ := ir.NewProgram("t", 4)
	a := p.MakeInput("a", ir.Cipher)
	left := p.MakeLeftRotation(a, 1)
	p.MakeOutput("y", left)

	result, err := New(p).Run(map[string][]float64{"a": {1, 2, 3, 4}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := []float64{2, 3, 4, 1}
	got := result["y"]
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("y[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestInterpretPassesThroughSchemeOps(t *testing.T) {
	p, _ := ir.NewProgram("t", 2)
	a := p.MakeInput("a", ir.Cipher)
	rescale := p.MakeRescale(a, 30)
	p.MakeOutput("y", rescale)

	result, err := New(p).Run(map[string][]float64{"a": {5, 6}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result["y"][0] != 5 || result["y"][1] != 6 {
		t.Errorf("Rescale should be a value pass-through, got %v", result["y"])
	}
}

func TestInterpretMissingInputIsError(t *testing.T) {
	p, _ := ir.NewProgram("t", 2)
	a := p.MakeInput("a", ir.Cipher)
	p.MakeOutput("y", a)

	if _, err := New(p).Run(map[string][]float64{}); err == nil {
		t.Errorf("expected an error for a missing input")
	}
}
