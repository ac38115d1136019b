package protocols

import (
	"fmt"

	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/hash"
)

// Claim contains the public information of a verifiably correct computation.
// A corresponding Proof is needed to verify the computation.
//
// This follows Triton VM's Claim structure, adapted for Starkforge.
type Claim struct {
	// ProgramDigest is the hash digest of the program that was executed
	// This ties the proof to a specific program (5 field elements per TIP-0006)
	ProgramDigest []field.Element

	// Version of the Starkforge ISA and proof system
	// Helps ensure proofs are only valid for their intended version
	Version uint32

	// PublicInput is the public input to the computation
	PublicInput []field.Element

	// PublicOutput is the public output of the computation
	PublicOutput []field.Element
}

// NewClaim creates a new Claim with a program digest
func NewClaim(programDigest []field.Element) *Claim {
	return &Claim{
		ProgramDigest: programDigest,
		Version:       CurrentVersion,
		PublicInput:   make([]field.Element, 0),
		PublicOutput:  make([]field.Element, 0),
	}
}

// WithInput sets the public input for the claim
func (c *Claim) WithInput(input []field.Element) *Claim {
	c.PublicInput = input
	return c
}

// WithOutput sets the public output for the claim
func (c *Claim) WithOutput(output []field.Element) *Claim {
	c.PublicOutput = output
	return c
}

// Validate checks if the claim is well-formed
func (c *Claim) Validate() error {
	if len(c.ProgramDigest) != 5 {
		return fmt.Errorf("program digest must be exactly 5 elements (per TIP-0006), got %d", len(c.ProgramDigest))
	}

	// No need to check individual elements as field.Element is a value type
	// All field elements are always valid

	return nil
}

// Hash computes a hash of the claim for Fiat-Shamir
func (c *Claim) Hash() (field.Element, error) {
	if err := c.Validate(); err != nil {
		return field.Zero, fmt.Errorf("invalid claim: %w", err)
	}

	// Collect all elements to hash
	elements := make([]field.Element, 0)
	elements = append(elements, c.ProgramDigest...)
	elements = append(elements, field.New(uint64(c.Version)))
	elements = append(elements, c.PublicInput...)
	elements = append(elements, c.PublicOutput...)

	// Use Tip5 hash for field-friendly hashing (10-element rate)
	// For larger claims, hash using variable-length mode
	digest := hash.HashVarlen(elements)

	// Return first element of digest as the claim hash
	return digest[0], nil
}

// CurrentVersion is the version of the Starkforge ISA and STARK proof system
// This changes whenever either the ISA or proof system changes
const CurrentVersion uint32 = 0

// Encode serializes the claim to a sequence of field elements, satisfying
// BFieldCodec so the claim can be absorbed into a proof stream's
// Fiat-Shamir state without being sent to the verifier as a proof item.
func (c *Claim) Encode() ([]field.Element, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	elements := make([]field.Element, 0, len(c.ProgramDigest)+1+len(c.PublicInput)+len(c.PublicOutput)+2)
	elements = append(elements, c.ProgramDigest...)
	elements = append(elements, field.New(uint64(c.Version)))
	elements = append(elements, field.New(uint64(len(c.PublicInput))))
	elements = append(elements, c.PublicInput...)
	elements = append(elements, field.New(uint64(len(c.PublicOutput))))
	elements = append(elements, c.PublicOutput...)
	return elements, nil
}

// Decode reconstructs a claim from the encoding produced by Encode.
func (c *Claim) Decode(data []field.Element) error {
	if len(data) < 6 {
		return fmt.Errorf("claim encoding too short: %d elements", len(data))
	}

	c.ProgramDigest = append([]field.Element{}, data[:5]...)
	c.Version = uint32(data[5].Value())
	pos := 6

	if pos >= len(data) {
		return fmt.Errorf("claim encoding truncated before public input length")
	}
	inputLen := int(data[pos].Value())
	pos++
	if pos+inputLen > len(data) {
		return fmt.Errorf("claim encoding truncated in public input")
	}
	c.PublicInput = append([]field.Element{}, data[pos:pos+inputLen]...)
	pos += inputLen

	if pos >= len(data) {
		return fmt.Errorf("claim encoding truncated before public output length")
	}
	outputLen := int(data[pos].Value())
	pos++
	if pos+outputLen > len(data) {
		return fmt.Errorf("claim encoding truncated in public output")
	}
	c.PublicOutput = append([]field.Element{}, data[pos:pos+outputLen]...)

	return c.Validate()
}
