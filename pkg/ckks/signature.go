package ckks

import "github.com/evaproject/eva/pkg/ir"

// InputSignature describes how a single named input must be encoded
// before it can be fed to the backend: its type, the scale (in bits) it
// must be encoded at, and the modulus level it must be encoded at (§6.4).
type InputSignature struct {
	Type  ir.Type
	Scale uint32
	Level uint32
}

// CKKSSignature is the third persisted artifact of §6.4: the program's
// vector size and, for every named input, the InputSignature a caller
// must honor when encoding/encrypting that input.
type CKKSSignature struct {
	VecSize uint64
	Inputs  map[string]InputSignature
}

// ExtractSignature reads the per-input type/scale/level directly off the
// lowered program's Input terms: TypeAttribute and EncodeAtScaleAttribute
// are set by the caller who built the program, and EncodeAtLevelAttribute
// is stamped by the ModSwitcher pass by the time this is called (§4.10
// step 16).
func ExtractSignature(program *ir.Program) CKKSSignature {
	sig := CKKSSignature{
		VecSize: program.VecSize,
		Inputs:  make(map[string]InputSignature, len(program.Inputs())),
	}
	for name, idx := range program.Inputs() {
		t := program.Term(idx)
		sig.Inputs[name] = InputSignature{
			Type:  t.GetType(ir.TypeAttribute),
			Scale: t.GetU32(ir.EncodeAtScaleAttribute),
			Level: t.GetU32(ir.EncodeAtLevelAttribute),
		}
	}
	return sig
}
