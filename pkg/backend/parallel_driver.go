package backend

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/klauspost/cpuid/v2"

	"github.com/evaproject/eva/pkg/ir"
)

// errDeadlock is returned by Run if the ready queue drains before every
// term has been visited; this can only happen if the Program's edges
// violate the DAG invariant of §3.2, since a well-formed DAG always has
// at least one source and every non-source term's predecessors
// eventually reach zero.
var errDeadlock = errors.New("backend: parallel driver stalled before visiting every term; program is not a valid DAG")

// Visitor is the per-term unit of work a ParallelDriver schedules. It
// must express its work without mutating any compiler-side table (types,
// scale, level side maps): only Backend-side ciphertext/plaintext state
// may be touched, per design note §9's re-entrancy caveat for
// multithreaded execution.
type Visitor func(t *ir.Term) error

// FreeFunc is called once a term's last consumer has been visited, so an
// executor can release the ciphertext/plaintext state backing it.
type FreeFunc func(t *ir.Term)

// ParallelDriver executes a lowered Program's terms concurrently,
// following spec §5: two atomic per-term counters (predecessors- and
// successors-remaining) are seeded from the initial source set, and a
// term becomes ready for Visitor exactly when its predecessors-remaining
// count reaches zero. Ready terms go into one shared channel that every
// worker (one per logical core) pulls from; there is no per-worker queue
// or stealing, and a worker yields after each chunk of terms it
// processes. The chunk size is derived from the core count (cpuid does
// not report NUMA topology on most platforms, so it is not derived from
// sockets).
//
// Numerical and structural results produced by Run must be bit-identical
// to a single-threaded ir.ForwardPass over the same Visitor: the ordering
// guarantee below is what makes that true.
type ParallelDriver struct {
	program *ir.Program
	workers int
}

// NewParallelDriver creates a driver sized to the host's logical core
// count, matching cpuid.CPU.LogicalCores the way lattigo's ring package
// sizes its own vectorized loops off the same field.
func NewParallelDriver(program *ir.Program) *ParallelDriver {
	workers := cpuid.CPU.LogicalCores
	if workers < 1 {
		workers = 1
	}
	return &ParallelDriver{program: program, workers: workers}
}

// Run visits every term of the driver's program via visit, in an order
// consistent with the forward dependency graph (a term's Visitor call
// begins only after every operand's Visitor call has returned), calling
// free once a term's last use has been visited. It returns the first
// error any Visitor call reports; Run does not support mid-pass
// cancellation (§5): once an error is observed no further terms are
// dispatched, but in-flight worker goroutines are allowed to drain, and
// any output already computed is discarded by the caller.
func (d *ParallelDriver) Run(visit Visitor, free FreeFunc) error {
	n := d.program.NumTerms()
	predRemaining := make([]int32, n)
	succRemaining := make([]int32, n)

	for i := 0; i < n; i++ {
		t := d.program.Term(ir.TermIndex(i))
		predRemaining[i] = int32(t.NumOperands())
		succRemaining[i] = int32(t.NumUses())
	}

	if n == 0 {
		return nil
	}

	ready := make(chan ir.TermIndex, n)
	var pending int64
	var visitedCount int64
	var firstErr error
	var errOnce sync.Once
	var errMu sync.Mutex
	var closeOnce sync.Once

	sources := d.program.GetSources()
	if len(sources) == 0 {
		return errDeadlock
	}

	enqueue := func(idx ir.TermIndex) {
		atomic.AddInt64(&pending, 1)
		ready <- idx
	}
	// done is called after every decrement of pending; whichever goroutine
	// observes the count hit zero closes the queue exactly once, whether
	// that decrement came from finishing a term or from draining one after
	// an error was already recorded.
	done := func() {
		if atomic.AddInt64(&pending, -1) == 0 {
			closeOnce.Do(func() { close(ready) })
		}
	}
	for _, idx := range sources {
		enqueue(idx)
	}

	chunk := d.chunkSize(n)
	var wg sync.WaitGroup
	for w := 0; w < d.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processed := 0
			for idx := range ready {
				errMu.Lock()
				stop := firstErr != nil
				errMu.Unlock()
				if stop {
					done()
					continue
				}

				t := d.program.Term(idx)
				if err := visit(t); err != nil {
					errOnce.Do(func() {
						errMu.Lock()
						firstErr = err
						errMu.Unlock()
					})
				}
				atomic.AddInt64(&visitedCount, 1)

				for _, useIdx := range t.Uses() {
					if atomic.AddInt32(&predRemaining[useIdx], -1) == 0 {
						enqueue(useIdx)
					}
				}
				for _, opIdx := range t.Operands() {
					if atomic.AddInt32(&succRemaining[opIdx], -1) == 0 && free != nil {
						free(d.program.Term(opIdx))
					}
				}
				done()

				processed++
				if processed%chunk == 0 {
					// Yield to give other goroutines a chance at a slice
					// of the ready queue before this one drains it.
					runtime.Gosched()
				}
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if atomic.LoadInt64(&visitedCount) != int64(n) {
		return errDeadlock
	}
	return nil
}

// chunkSize derives a per-worker batch size from the term count and
// worker count, matching §5's "per-socket chunking" scheduler intent:
// enough terms per steal to amortize the enqueue/dequeue cost, but small
// enough that idle workers can pick up slack quickly.
func (d *ParallelDriver) chunkSize(n int) int {
	c := n / (d.workers * 4)
	if c < 1 {
		c = 1
	}
	return c
}
