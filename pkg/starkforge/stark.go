package starkforge

import (
	"github.com/starkforge/starkforge/internal/starkforge/protocols"
)

// DefaultConfig returns a default STARK configuration targeting 160-bit
// security.
func DefaultConfig() Config {
	params := protocols.DefaultSTARKParameters()
	return Config{
		SecurityLevel: params.SecurityLevel,
		FRIQueries:    params.NumCollinearityChecks,
		BlowupFactor:  params.FRIExpansionFactor,
	}
}

// toSTARKParameters converts a public Config into protocols.STARKParameters.
func (c Config) toSTARKParameters() protocols.STARKParameters {
	params := protocols.DefaultSTARKParameters()
	if c.SecurityLevel > 0 {
		params.SecurityLevel = c.SecurityLevel
	}
	if c.FRIQueries > 0 {
		params.NumCollinearityChecks = c.FRIQueries
	}
	if c.BlowupFactor > 0 {
		params.FRIExpansionFactor = c.BlowupFactor
	}
	return params
}

// Prover generates STARK proofs for executed programs.
type Prover struct {
	inner *protocols.Prover
}

// NewProver creates a new prover from the given configuration.
func NewProver(config Config) (*Prover, error) {
	inner, err := protocols.NewProver(config.toSTARKParameters())
	if err != nil {
		return nil, &VMError{
			Code:    ErrProofGeneration,
			Message: "failed to create prover: " + err.Error(),
			Cause:   err,
		}
	}
	return &Prover{inner: inner}, nil
}

// traceAdapter adapts the public ExecutionTrace to protocols.ExecutionTrace,
// bridging the internal AET without exposing it in the public API.
type traceAdapter struct {
	trace *ExecutionTrace
}

func (a traceAdapter) GetPaddedHeight() int {
	if getter, ok := a.trace.internalAET.(interface{ GetPaddedHeight() int }); ok {
		return getter.GetPaddedHeight()
	}
	return 0
}

func (a traceAdapter) GetTableData() interface{} {
	return a.trace.internalAET
}

func (a traceAdapter) GetTraceColumns() ([][]FieldElement, error) {
	if getter, ok := a.trace.internalAET.(interface {
		GetTraceColumns() ([][]FieldElement, error)
	}); ok {
		return getter.GetTraceColumns()
	}
	return a.trace.Trace, nil
}

// GenerateProof generates a STARK proof attesting to the given execution
// trace against a claim derived from the trace's public input and output.
func (p *Prover) GenerateProof(trace *ExecutionTrace) (*Proof, error) {
	digest := make([]FieldElement, 5)
	if len(trace.PublicOutput) >= 5 {
		copy(digest, trace.PublicOutput[:5])
	}

	claim := protocols.NewClaim(digest).
		WithInput(trace.PublicInput).
		WithOutput(trace.PublicOutput)

	proof, err := p.inner.Prove(claim, traceAdapter{trace: trace})
	if err != nil {
		return nil, &VMError{
			Code:    ErrProofGeneration,
			Message: "proof generation failed: " + err.Error(),
			Cause:   err,
		}
	}
	return proof, nil
}

// Verifier checks STARK proofs against claims.
type Verifier struct {
	inner *protocols.Verifier
}

// NewVerifier creates a new verifier from the given configuration.
func NewVerifier(config Config) (*Verifier, error) {
	inner, err := protocols.NewVerifier(config.toSTARKParameters())
	if err != nil {
		return nil, &VMError{
			Code:    ErrProofVerification,
			Message: "failed to create verifier: " + err.Error(),
			Cause:   err,
		}
	}
	return &Verifier{inner: inner}, nil
}

// Verify checks a proof against a claim.
func (v *Verifier) Verify(claim *Claim, proof *Proof) *ProofVerificationResult {
	if err := v.inner.Verify(claim, proof); err != nil {
		return &ProofVerificationResult{Valid: false, Error: err.Error()}
	}
	return &ProofVerificationResult{Valid: true}
}
