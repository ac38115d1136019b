package starkforge

import (
	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/protocols"
)

// FieldElement represents an element of the fixed Goldilocks field
// (p = 2^64 - 2^32 + 1) used throughout the VM and proof system.
type FieldElement = field.Element

// Proof represents a zkSTARK proof.
type Proof = protocols.Proof

// Claim represents public information about a computation.
type Claim = protocols.Claim

// Program represents a VM program.
type Program struct {
	Instructions []Instruction
}

// Instruction represents a single VM instruction.
type Instruction struct {
	Opcode   byte
	Argument *FieldElement
}

// Config represents configuration for the STARK prover/verifier.
type Config struct {
	// SecurityLevel is the conjectured security level in bits.
	SecurityLevel int

	// TraceLength is the (unpadded) trace length.
	TraceLength int

	// EvaluationDomain is the evaluation domain size.
	EvaluationDomain int

	// FRIQueries is the number of FRI colinearity checks for soundness.
	FRIQueries int

	// BlowupFactor is the FRI expansion factor for low-degree extension.
	BlowupFactor int
}

// VMConfig represents configuration for the VM.
type VMConfig struct {
	// ProgramAttestation enables binding proofs to a program digest.
	ProgramAttestation bool

	// PermutationChecks enables cross-table permutation arguments.
	PermutationChecks bool

	// LookupTables enables lookup-argument tables.
	LookupTables bool
}

// ExecutionTrace represents the execution trace of a VM program.
type ExecutionTrace struct {
	// Trace is the main execution trace (state transitions).
	Trace [][]FieldElement

	// Auxiliary holds auxiliary columns for cross-table arguments.
	Auxiliary [][]FieldElement

	// PublicInput is the public input to the computation.
	PublicInput []FieldElement

	// PublicOutput is the public output of the computation.
	PublicOutput []FieldElement

	// CycleCount is the number of VM cycles executed.
	CycleCount int

	// internalAET is the internal algebraic execution trace, used
	// internally for proof generation and not part of the public API.
	internalAET interface{}
}

// ProofVerificationResult represents the result of proof verification.
type ProofVerificationResult struct {
	// Valid reports whether the proof is valid.
	Valid bool

	// Error holds an error message if verification failed.
	Error string

	// VerificationTimeMs is the verification time in milliseconds.
	VerificationTimeMs int64
}
