package backend

import (
	"sync"
	"testing"

	"github.com/evaproject/eva/pkg/ir"
)

// TestParallelDriverOrdering checks §5's ordering guarantee: a term's
// Visitor call begins only after all its operands' Visitor calls have
// returned. It is exercised with a chain deep enough that Go's scheduler
// would expose a violation if the driver failed to synchronize corretly.
func TestParallelDriverOrdering(t *testing.T) {
	p, err := ir.NewProgram("t", 8)
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	a := p.MakeInput("a", ir.Cipher)
	prev := a
	for i := 0; i < 64; i++ {
		prev = p.MakeTerm(ir.Negate, prev.Index())
	}
	p.MakeOutput("y", prev)

	var mu sync.Mutex
	visited := make(map[ir.TermIndex]bool, p.NumTerms())

	driver := NewParallelDriver(p)
	err = driver.Run(func(term *ir.Term) error {
		for _, opIdx := range term.Operands() {
			mu.Lock()
			ok := visited[opIdx]
			mu.Unlock()
			if !ok {
				t.Errorf("t%d visited before its operand t%d", term.Index(), opIdx)
			}
		}
		mu.Lock()
		visited[term.Index()] = true
		mu.Unlock()
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(visited) != p.NumTerms() {
		t.Errorf("visited %d of %d terms", len(visited), p.NumTerms())
	}
}

func TestParallelDriverPropagatesVisitorError(t *testing.T) {
	p, _ := ir.NewProgram("t", 8)
	a := p.MakeInput("a", ir.Cipher)
	p.MakeOutput("y", a)

	driver := NewParallelDriver(p)
	err := driver.Run(func(term *ir.Term) error {
		if term.Op == ir.Output {
			return errTestVisitor
		}
		return nil
	}, nil)
	if err != errTestVisitor {
		t.Errorf("expected the visitor's error to propagate, got %v", err)
	}
}

var errTestVisitor = errVisitorForTest{}

type errVisitorForTest struct{}

func (errVisitorForTest) Error() string { return "test visitor error" }
