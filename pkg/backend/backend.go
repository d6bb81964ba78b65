// Package backend defines the boundary the compiler proper hands a
// lowered Program across: the CKKS capability contract of spec §6.1
// (encode/encrypt/decrypt/decode, ciphertext arithmetic, rotation,
// relinearization, modulus switching, key generation), plus the
// reference-counted context cache and optional parallel execution driver
// of spec §5. Nothing in this package performs cryptography; it is the
// abstract interface an actual CKKS library (SEAL, lattigo, HEAAN) is
// expected to implement, matching §1's framing of the backend as an
// external collaborator named only by the interface it provides.
package backend

import "github.com/evaproject/eva/pkg/ckks"

// Plaintext and Ciphertext are opaque handles: the compiler never
// inspects their contents, only threads them through Backend calls.
type Plaintext interface{ isPlaintext() }

// Ciphertext is the encrypted counterpart of Plaintext.
type Ciphertext interface{ isCiphertext() }

// KeySet bundles whatever key material a Backend's KeyGen produces:
// public/secret encryption keys, a relinearization key, and one rotation
// (Galois) key per step in Rotations.
type KeySet interface{ isKeySet() }

// Backend is the capability contract of spec §6.1. A lowered Program's
// terms are executed by dispatching each op to the matching method below;
// the compiler itself never calls these — that is the job of an executor
// built on top of this interface (see ParallelDriver).
type Backend interface {
	// Encode packs a plaintext vector into a Plaintext at the given
	// level and scale (bits).
	Encode(values []float64, level uint32, scale uint32) (Plaintext, error)
	Encrypt(pt Plaintext) (Ciphertext, error)
	Decrypt(ct Ciphertext) (Plaintext, error)
	Decode(pt Plaintext) ([]float64, error)

	AddCC(a, b Ciphertext) (Ciphertext, error)
	AddCP(a Ciphertext, b Plaintext) (Ciphertext, error)
	SubCC(a, b Ciphertext) (Ciphertext, error)
	SubCP(a Ciphertext, b Plaintext) (Ciphertext, error)
	MulCC(a, b Ciphertext) (Ciphertext, error)
	MulCP(a Ciphertext, b Plaintext) (Ciphertext, error)
	Negate(a Ciphertext) (Ciphertext, error)

	RotateVector(a Ciphertext, step int32) (Ciphertext, error)
	Relinearize(a Ciphertext) (Ciphertext, error)
	ModSwitchToNext(a Ciphertext) (Ciphertext, error)
	RescaleToNext(a Ciphertext) (Ciphertext, error)

	// KeyGen produces a fresh KeySet sized for the given prime chain,
	// ring degree, and rotation set, following ckks.CKKSParameters.
	KeyGen(parms ckks.CKKSParameters) (KeySet, error)
}
