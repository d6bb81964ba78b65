package backend

import (
	"encoding/binary"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/evaproject/eva/pkg/ckks"
)

// Context is whatever a Backend derives once from a CKKSParameters value
// and reuses across every encode/encrypt/evaluate call: SEAL calls this a
// SEALContext, lattigo a Parameters+Evaluator pair. The compiler never
// looks inside one; it only ever asks the cache for a handle.
type Context interface{ isBackendContext() }

// ContextCache is the reference-counted, hash-keyed cache described in
// spec §5: contexts are expensive to derive from a prime chain and ring
// degree, so distinct calls that happen to request the same encryption
// parameters share one Context. An entry is evicted once its last
// external holder releases its reference, mirroring SEAL's own
// reference-counted SEALContext.
type ContextCache struct {
	mu      sync.Mutex
	entries map[[32]byte]*cacheEntry
	build   func(ckks.CKKSParameters) (Context, error)
}

type cacheEntry struct {
	ctx      Context
	refCount int
}

// NewContextCache creates a cache that calls build to materialize a
// Context on a cache miss.
func NewContextCache(build func(ckks.CKKSParameters) (Context, error)) *ContextCache {
	return &ContextCache{
		entries: make(map[[32]byte]*cacheEntry),
		build:   build,
	}
}

// Acquire returns the Context for parms, building and caching one on
// first request and incrementing its reference count on every call
// (including the first). Callers must call Release exactly once per
// successful Acquire.
func (c *ContextCache) Acquire(parms ckks.CKKSParameters) (Context, error) {
	key := parameterKey(parms)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.refCount++
		c.mu.Unlock()
		return e.ctx, nil
	}
	c.mu.Unlock()

	ctx, err := c.build(parms)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		// Lost a race with a concurrent Acquire for the same key; keep
		// the entry that won and discard the redundant build.
		e.refCount++
		return e.ctx, nil
	}
	c.entries[key] = &cacheEntry{ctx: ctx, refCount: 1}
	return ctx, nil
}

// Release decrements parms' reference count, evicting the entry once it
// reaches zero.
func (c *ContextCache) Release(parms ckks.CKKSParameters) {
	key := parameterKey(parms)

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.refCount--
	if e.refCount <= 0 {
		delete(c.entries, key)
	}
}

// Len reports the number of distinct parameter structures currently
// cached; exposed for tests.
func (c *ContextCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// parameterKey hashes the structural content of a CKKSParameters value
// (prime chain, rotation set, ring degree) with blake3, the same hash
// lattigo's own key-switching code (sign/hash.go in the retrieval pack)
// uses for fast, collision-resistant domain separation of derived
// key material.
func parameterKey(parms ckks.CKKSParameters) [32]byte {
	h := blake3.New()
	var buf [8]byte

	binary.BigEndian.PutUint64(buf[:], parms.PolyModulusDegree)
	h.Write(buf[:])

	binary.BigEndian.PutUint64(buf[:], uint64(len(parms.PrimeBits)))
	h.Write(buf[:])
	for _, p := range parms.PrimeBits {
		binary.BigEndian.PutUint32(buf[:4], p)
		h.Write(buf[:4])
	}

	steps := make([]int32, 0, len(parms.Rotations))
	for step := range parms.Rotations {
		steps = append(steps, step)
	}
	sortInt32s(steps)
	binary.BigEndian.PutUint64(buf[:], uint64(len(steps)))
	h.Write(buf[:])
	for _, s := range steps {
		binary.BigEndian.PutUint32(buf[:4], uint32(s))
		h.Write(buf[:4])
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func sortInt32s(s []int32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
