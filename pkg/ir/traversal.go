package ir

import "github.com/bits-and-blooms/bitset"

// ForwardPass and BackwardPass implement rewrite-safe, ordered visitation
// of a Program's term graph (§4.2). A visitor is invoked exactly once per
// term that existed when the pass started, plus any term the visitor
// creates that is reachable (in the pass's direction) from a source/sink;
// visitors may freely create new terms upstream (forward) or downstream
// (backward) of the term currently being visited.
//
// ready/processed are packed per-term boolean side maps, backed by the
// same bitset.BitSet type as Program's source/sink membership, matching
// the "packed" bool map convention of §3.3.

// ForwardPass enqueues sources first and visits a term only after every
// one of its operands has been processed.
func ForwardPass(p *Program, visit func(*Term)) {
	traverse(p, true, visit)
}

// BackwardPass enqueues sinks first and visits a term only after every one
// of its uses has been processed.
func BackwardPass(p *Program, visit func(*Term)) {
	traverse(p, false, visit)
}

func traverse(p *Program, forward bool, visit func(*Term)) {
	processed := bitset.New(uint(p.nextIndex))
	ready := bitset.New(uint(p.nextIndex))

	var queue []TermIndex
	leaves := func() []TermIndex {
		if forward {
			return p.GetSources()
		}
		return p.GetSinks()
	}
	predecessorsOf := func(t *Term) []TermIndex {
		if forward {
			return t.operands
		}
		return t.uses
	}
	successorsOf := func(t *Term) []TermIndex {
		if forward {
			return t.uses
		}
		return t.operands
	}

	for _, idx := range leaves() {
		ready.Set(uint(idx))
		queue = append(queue, idx)
	}

	predecessorsDone := func(idx TermIndex) bool {
		for _, pred := range predecessorsOf(p.terms[idx]) {
			if !processed.Test(uint(pred)) {
				return false
			}
		}
		return true
	}

	for len(queue) > 0 {
		idx := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		term := p.terms[idx]

		// Snapshot successors before the visit: if the visitor removes
		// term, we'd otherwise lose track of who to re-check (§4.2).
		checkList := append([]TermIndex(nil), successorsOf(term)...)

		visit(term)
		processed.Set(uint(idx))

		for _, leaf := range leaves() {
			if !ready.Test(uint(leaf)) {
				ready.Set(uint(leaf))
				queue = append(queue, leaf)
			}
		}

		checkList = append(checkList, successorsOf(term)...)
		for _, succ := range checkList {
			if !ready.Test(uint(succ)) && predecessorsDone(succ) {
				ready.Set(uint(succ))
				queue = append(queue, succ)
			}
		}
	}
}
