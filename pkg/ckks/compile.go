package ckks

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/evaproject/eva/pkg/ir"
	"github.com/evaproject/eva/pkg/util"
)

// CompileResult bundles the three persisted artifacts of §6.4 that
// Compile produces from a source Program.
type CompileResult struct {
	Program    *ir.Program
	Parameters CKKSParameters
	Signature  CKKSSignature
}

// Compile runs the fixed pass pipeline of §4.10 over program, returning a
// lowered Program together with the encryption parameters and input
// signature a backend needs to execute it. program itself is never
// mutated: step 1 deep-copies it, and every subsequent step rewrites the
// copy.
//
// Failures are classified per §7: a UserError or InternalError propagates
// unchanged; a ParameterChecker InconsistentParameters is rephrased into
// a PolicyError naming the active rescaling policy, since the Minimum and
// Always policies are known to reject some otherwise-valid programs
// (design note §9's open question on policy applicability).
func Compile(program *ir.Program, cfg Config) (*CompileResult, error) {
	stats := util.NewPerfStats()

	// Step 1: deep-copy so the caller's program is untouched by rewriting.
	p, err := program.DeepCopy()
	if err != nil {
		return nil, err
	}
	stats.Lap("deep-copy")

	types := ir.NewDenseMap[ir.Type](p)
	defer types.Release()
	scale := ir.NewOptionalMap[uint32](p)
	defer scale.Release()

	seedScales(p, scale)

	// Step 2: TypeDeduce.
	TypeDeduce(p, types)
	stats.Lap("type-deduce")

	// Step 3: ConstantFold.
	if err := ConstantFold(p, scale); err != nil {
		return nil, err
	}
	stats.Lap("constant-fold")

	// Step 4: reduction balancing (optional).
	if cfg.BalanceReductions {
		Combine(p)
		if err := LogExpand(p, types); err != nil {
			return nil, err
		}
		stats.Lap("reduction-balancing")
	}

	// Step 5: one of the four rescaler policies.
	if err := RunRescaler(p, types, scale, cfg.Rescaler); err != nil {
		return nil, err
	}
	stats.Lap("rescaler:" + cfg.Rescaler.String())

	// Step 6: re-type after rewriting.
	TypeDeduce(p, types)

	// Step 7: encode insertion.
	if err := EncodeInserter(p, types, scale); err != nil {
		return nil, err
	}
	stats.Lap("encode-insertion")

	// Step 8: re-type.
	TypeDeduce(p, types)

	// Step 9: one of the two relinearizer policies.
	if cfg.LazyRelinearize {
		LazyRelinearizer(p, types, scale)
	} else {
		EagerRelinearizer(p, types, scale)
	}
	stats.Lap("relinearizer")

	// Step 10: re-type.
	TypeDeduce(p, types)

	// Step 11: modulus switching (backward).
	ModSwitcher(p, types, scale)
	stats.Lap("mod-switcher")

	// Step 12: re-type.
	TypeDeduce(p, types)

	// Step 13: backend lowering.
	LowerBackendGaps(p, types, scale)
	TypeDeduce(p, types)
	stats.Lap("lower-backend-gaps")

	// Step 14: validation.
	if err := CheckLevels(p, types); err != nil {
		return nil, err
	}
	if err := CheckParameters(p, types); err != nil {
		var inconsistent *InconsistentParameters
		if errors.As(err, &inconsistent) {
			return nil, &PolicyError{
				Policy: cfg.Rescaler,
				Message: "encryption parameter chains are inconsistent under the " + cfg.Rescaler.String() +
					" rescaling policy; this policy does not support every program shape, try rescaler=lazy_waterline or rescaler=eager_waterline instead (" +
					inconsistent.Message + ")",
			}
		}
		return nil, err
	}
	if err := CheckScales(p, types, scale); err != nil {
		return nil, err
	}
	stats.Lap("validation")

	// Step 15: parameter synthesis and rotation-key selection.
	primeBits, err := SelectParameters(p, types, scale)
	if err != nil {
		return nil, err
	}
	rotations := SelectRotationKeys(p, types)
	stats.Lap("parameter-selection")

	var totalBits uint64
	for _, b := range primeBits {
		totalBits += uint64(b)
	}
	degree, err := RingDegree(totalBits, cfg.SecurityLevel, cfg.QuantumSafe)
	if err != nil {
		return nil, err
	}
	degree = ReconcileVecSize(degree, p.VecSize, cfg.WarnVecSize)

	log.Debugf("compiled %q: %d terms, %d-bit prime chain (%d primes), degree 2^%d, %d rotation keys",
		p.Name, p.NumTerms(), totalBits, len(primeBits), log2(degree), len(rotations))

	// Step 16: extract signature.
	sig := ExtractSignature(p)
	stats.Log("compile " + p.Name)

	return &CompileResult{
		Program: p,
		Parameters: CKKSParameters{
			PrimeBits:         primeBits,
			Rotations:         rotations,
			PolyModulusDegree: degree,
		},
		Signature: sig,
	}, nil
}

// seedScales copies each Input/Constant source's declared scale (recorded
// on EncodeAtScaleAttribute by the caller who built the program) into the
// scale side map, which every subsequent pass reads and writes.
func seedScales(p *ir.Program, scale *ir.OptionalMap[uint32]) {
	for _, idx := range p.GetSources() {
		t := p.Term(idx)
		scale.Set(t, t.GetU32(ir.EncodeAtScaleAttribute))
	}
}

func log2(n uint64) uint64 {
	var l uint64
	for n > 1 {
		n >>= 1
		l++
	}
	return l
}
