package backend

import (
	"testing"

	"github.com/evaproject/eva/pkg/ckks"
)

type fakeContext struct{ id int }

func (*fakeContext) isBackendContext() {}

func TestContextCacheDeduplicatesByStructure(t *testing.T) {
	builds := 0
	cache := NewContextCache(func(ckks.CKKSParameters) (Context, error) {
		builds++
		return &fakeContext{id: builds}, nil
	})

	parmsA := ckks.CKKSParameters{PrimeBits: []uint32{60, 60, 60}, Rotations: map[int32]struct{}{1: {}}, PolyModulusDegree: 8192}
	parmsB := ckks.CKKSParameters{PrimeBits: []uint32{60, 60, 60}, Rotations: map[int32]struct{}{1: {}}, PolyModulusDegree: 8192}

	c1, err := cache.Acquire(parmsA)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	c2, err := cache.Acquire(parmsB)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if c1 != c2 {
		t.Errorf("structurally identical parameters should share one Context")
	}
	if builds != 1 {
		t.Errorf("expected exactly one build, got %d", builds)
	}
	if cache.Len() != 1 {
		t.Errorf("expected one cache entry, got %d", cache.Len())
	}

	cache.Release(parmsA)
	if cache.Len() != 1 {
		t.Errorf("entry should survive while parmsB's reference is outstanding")
	}
	cache.Release(parmsB)
	if cache.Len() != 0 {
		t.Errorf("entry should be evicted once every reference is released")
	}
}

func TestContextCacheDistinguishesRotationSets(t *testing.T) {
	cache := NewContextCache(func(ckks.CKKSParameters) (Context, error) {
		return &fakeContext{}, nil
	})

	parmsA := ckks.CKKSParameters{PrimeBits: []uint32{60}, Rotations: map[int32]struct{}{1: {}}, PolyModulusDegree: 8192}
	parmsB := ckks.CKKSParameters{PrimeBits: []uint32{60}, Rotations: map[int32]struct{}{2: {}}, PolyModulusDegree: 8192}

	if _, err := cache.Acquire(parmsA); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := cache.Acquire(parmsB); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if cache.Len() != 2 {
		t.Errorf("distinct rotation sets should not share a cache entry, got %d entries", cache.Len())
	}
}
