// Package ckks implements the compiler pipeline that lowers a program over
// the ir package's term graph into a form executable under the CKKS
// fully-homomorphic-encryption scheme, and synthesizes the encryption
// parameters and input signature that lowering requires (§4.10).
package ckks

import "fmt"

// UserError reports programming-surface misuse caught before rewriting
// begins: a missing input scale, a malformed vector size, an unsupported
// security level (§7, category 1). Callers can errors.As to distinguish it
// from a structural bug.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

func newUserError(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// InternalError reports a structural bug: a scale collapsing to zero mid
// pipeline, a scheme-level op reached on a pure-Raw subgraph, or any other
// violation of an invariant the compiler itself is responsible for
// maintaining (§7, category 3).
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string { return e.Message }

func newInternalError(format string, args ...any) error {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}

// InconsistentParameters is raised by the ParameterChecker when two
// operands of a term impose mutually incompatible prime chains (§4.13).
// The top-level compiler rephrases it into a PolicyError naming the active
// rescaling policy (§7, category 4).
type InconsistentParameters struct {
	Message string
}

func (e *InconsistentParameters) Error() string { return e.Message }

// PolicyError is the user-facing diagnostic the compiler raises when
// ParameterCheck fails, naming the active rescaling policy and
// recommending an alternative for policies that are not general
// (Minimum, Always; design note §9's open question on policy
// applicability).
type PolicyError struct {
	Policy  RescalePolicy
	Message string
}

func (e *PolicyError) Error() string { return e.Message }
