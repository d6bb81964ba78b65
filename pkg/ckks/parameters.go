package ckks

import (
	log "github.com/sirupsen/logrus"

	"github.com/evaproject/eva/pkg/ir"
)

// CKKSParameters is the encryption-parameter artifact of §6.4: the prime
// bit-width chain (highest level first), the set of rotation steps a
// backend must generate Galois keys for, and the ring degree.
type CKKSParameters struct {
	PrimeBits []uint32
	Rotations map[int32]struct{}
	PolyModulusDegree uint64
}

// standardParamRow is one row of the HomomorphicEncryption.org security
// standard table (the same table SEAL's util/hestdparms.h and lattigo's
// DefaultParametersLiteral tiers are drawn from): for a given ring degree,
// the maximum total coefficient-modulus bit budget that still attains a
// security level, split into the classical and quantum-safe variants.
type standardParamRow struct {
	logN       uint64
	classical  map[uint32]uint64
	quantumSafe map[uint32]uint64
}

// standardParams is ordered by increasing degree; RingDegree walks it
// looking for the first row whose budget for (securityLevel, quantumSafe)
// is at least the requested bit total.
var standardParams = []standardParamRow{
	{logN: 10, classical: map[uint32]uint64{128: 27, 192: 19, 256: 14}, quantumSafe: map[uint32]uint64{128: 25, 192: 17, 256: 13}},
	{logN: 11, classical: map[uint32]uint64{128: 54, 192: 37, 256: 29}, quantumSafe: map[uint32]uint64{128: 51, 192: 35, 256: 27}},
	{logN: 12, classical: map[uint32]uint64{128: 109, 192: 75, 256: 58}, quantumSafe: map[uint32]uint64{128: 101, 192: 70, 256: 54}},
	{logN: 13, classical: map[uint32]uint64{128: 218, 192: 152, 256: 118}, quantumSafe: map[uint32]uint64{128: 202, 192: 141, 256: 109}},
	{logN: 14, classical: map[uint32]uint64{128: 438, 192: 305, 256: 237}, quantumSafe: map[uint32]uint64{128: 411, 192: 284, 256: 220}},
	{logN: 15, classical: map[uint32]uint64{128: 881, 192: 611, 256: 476}, quantumSafe: map[uint32]uint64{128: 827, 192: 571, 256: 443}},
	{logN: 16, classical: map[uint32]uint64{128: 1761, 192: 1228, 256: 955}, quantumSafe: map[uint32]uint64{128: 1654, 192: 1147, 256: 889}},
}

// budgetFor returns the bit budget a row offers at the given security
// level and quantum-safety choice, or 0 if the level is not tabulated.
func (r standardParamRow) budgetFor(securityLevel uint32, quantumSafe bool) uint64 {
	table := r.classical
	if quantumSafe {
		table = r.quantumSafe
	}
	return table[securityLevel]
}

// ParameterSelector implements §4.11's forward pass: primes[t] tracks, for
// each term, the ordered list of rescale divisors encountered on the path
// from any source to t (the longest such path dominates, since distinct
// branches of a DAG are required to agree by the ParameterChecker).
type ParameterSelector struct {
	primes *ir.OptionalMap[[]uint32]
}

// NewParameterSelector allocates the selector's side map, registered with
// program.
func NewParameterSelector(program *ir.Program) *ParameterSelector {
	return &ParameterSelector{primes: ir.NewOptionalMap[[]uint32](program)}
}

// Release unregisters the selector's side map.
func (s *ParameterSelector) Release() { s.primes.Release() }

// Visit implements one step of the forward pass described in §4.11: Raw
// and Encode terms contribute nothing; a non-source term's chain is the
// element-wise-longest of its operands' chains; a Rescale additionally
// appends its own divisor.
func (s *ParameterSelector) Visit(program *ir.Program, types *ir.DenseMap[ir.Type], t *ir.Term) {
	if types.Get(t) == ir.Raw || t.Op == ir.Encode {
		return
	}
	if t.NumOperands() == 0 {
		return
	}
	var longest []uint32
	for _, opIdx := range t.Operands() {
		if chain := s.primes.GetIdx(opIdx); len(chain) > len(longest) {
			longest = chain
		}
	}
	chain := append([]uint32(nil), longest...)
	if t.Op == ir.Rescale {
		divisor := t.GetU32(ir.RescaleDivisorAttribute)
		if divisor == 0 {
			panic("rescale term with zero divisor reached the parameter selector")
		}
		chain = append(chain, divisor)
	}
	s.primes.Set(t, chain)
}

// Chains exposes the per-term prime chains computed by a completed forward
// pass. CheckParameters does not read it; it derives its own chains.
func (s *ParameterSelector) Chains() *ir.OptionalMap[[]uint32] { return s.primes }

// SelectParameters runs the forward pass over program and synthesizes the
// global prime chain from every output's chain, following §4.11 steps 1-5
// exactly (top primes sized to the largest output, middle primes borrowed
// from whichever output has the longest chain, one key prime appended).
func SelectParameters(program *ir.Program, types *ir.DenseMap[ir.Type], scale *ir.OptionalMap[uint32]) ([]uint32, error) {
	selector := NewParameterSelector(program)
	defer selector.Release()

	ir.ForwardPass(program, func(t *ir.Term) { selector.Visit(program, types, t) })

	if len(program.Outputs()) == 0 {
		return nil, newUserError("program has no outputs; cannot select encryption parameters")
	}

	var maxOutputSize, maxParm uint32
	var maxLen int
	for _, idx := range program.Outputs() {
		output := program.Term(idx)
		if !output.Has(ir.RangeAttribute) {
			return nil, newUserError("output %q has no RangeAttribute set; every output must declare its value range in bits", outputName(program, idx))
		}
		size := output.GetU32(ir.RangeAttribute) + scale.GetIdx(idx)
		if size > maxOutputSize {
			maxOutputSize = size
		}
		chain := selector.primes.GetIdx(idx)
		if len(chain) > maxLen {
			maxLen = len(chain)
		}
		for _, p := range chain {
			if p > maxParm {
				maxParm = p
			}
		}
	}
	if maxOutputSize == 0 {
		return nil, newInternalError("computed output size of 0 bits while selecting encryption parameters")
	}

	var parms []uint32
	if maxOutputSize <= 60 {
		if maxOutputSize > maxParm {
			maxParm = maxOutputSize
		}
		parms = append(parms, maxParm)
	} else {
		maxParm = 60
		remaining := maxOutputSize
		for remaining >= 60 {
			parms = append(parms, 60)
			remaining -= 60
		}
		if remaining > 0 {
			top := remaining
			if top < 20 {
				top = 20
			}
			parms = append(parms, top)
		}
	}

	for _, idx := range program.Outputs() {
		chain := selector.primes.GetIdx(idx)
		if len(chain) == maxLen {
			for i := len(chain) - 1; i >= 0; i-- {
				parms = append(parms, chain[i])
			}
			break
		}
	}

	parms = append(parms, maxParm)
	return parms, nil
}

func outputName(program *ir.Program, idx ir.TermIndex) string {
	for name, outIdx := range program.Outputs() {
		if outIdx == idx {
			return name
		}
	}
	return "<unknown>"
}

// RingDegree picks the smallest power-of-two ring degree (starting at 1024,
// the smallest row the standard table carries) whose row admits totalBits
// at the requested security level, doubling until a sufficient row is
// found (§4.11). securityLevel must be one of 128, 192, 256.
func RingDegree(totalBits uint64, securityLevel uint32, quantumSafe bool) (uint64, error) {
	if securityLevel != 128 && securityLevel != 192 && securityLevel != 256 {
		return 0, newUserError("unsupported security level %d; supported levels are 128, 192, 256", securityLevel)
	}
	for _, row := range standardParams {
		if row.budgetFor(securityLevel, quantumSafe) >= totalBits {
			return uint64(1) << row.logN, nil
		}
	}
	last := standardParams[len(standardParams)-1]
	return 0, newUserError(
		"no ring degree in the standard parameter table admits a %d-bit modulus at %d-bit security (quantum_safe=%v); largest tabulated degree is 2^%d with a %d-bit budget",
		totalBits, securityLevel, quantumSafe, last.logN, last.budgetFor(securityLevel, quantumSafe))
}

// ReconcileVecSize adjusts N upward when the program's vector size exceeds
// the chosen degree's slot count, N/2 (an oversize input forces degree
// growth), and warns when it is smaller than necessary and warnVecSize is
// set, per §4.11's final paragraph.
func ReconcileVecSize(n uint64, vecSize uint64, warnVecSize bool) uint64 {
	if vecSize > n/2 {
		return 2 * vecSize
	}
	if vecSize < n/2 && warnVecSize {
		log.Warnf("vector size %d is smaller than the number of slots available (%d) for the selected ring degree; consider batching more values per ciphertext", vecSize, n/2)
	}
	return n
}
