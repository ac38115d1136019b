// Package sponge implements the absorb/squeeze sponge construction over
// a fixed-width permutation — the shared shell both Tip5 and Poseidon
// hashing go through when used as a STARK transcript or Merkle-leaf
// hasher rather than called directly.
package sponge

import (
	"fmt"

	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/hash"
)

// Rate is the number of field elements absorbed or squeezed per
// permutation call.
const Rate = 10

// Domain labels a sponge as meant for variable-length input or for
// always-rate-sized input. The label is stored on the sponge and carried
// over by Init; it does not enter the state, so identical data hashed
// under either domain gives identical output.
type Domain int

const (
	VariableLength Domain = iota
	FixedLength
)

func (d Domain) String() string {
	switch d {
	case VariableLength:
		return "VariableLength"
	case FixedLength:
		return "FixedLength"
	default:
		return "Unknown"
	}
}

// Sponge is implemented by any fixed-width permutation wrapped in the
// absorb/squeeze protocol.
type Sponge interface {
	Init() Sponge
	Absorb(input [Rate]field.Element)
	Squeeze() [Rate]field.Element
	// PadAndAbsorbAll absorbs arbitrary-length input, padding the final
	// chunk so the whole stream fits whole permutation calls.
	PadAndAbsorbAll(input []field.Element)
	Clone() Sponge
	Reset()
}

// padRateChunk copies up to Rate elements from input starting at offset
// into a chunk, and if that chunk doesn't fill exactly one permutation's
// rate, appends the sponge's 10-pad (a single 1 followed by zeros) so
// every absorbed chunk is unambiguously delimited.
func padRateChunk(input []field.Element, offset int) [Rate]field.Element {
	var chunk [Rate]field.Element
	n := copy(chunk[:], input[offset:])
	if offset+Rate >= len(input) && n < Rate {
		chunk[n] = field.One
	}
	return chunk
}

// permuteState5 runs permute over the first 5 elements of state — the
// width of the [5]field.Element functions Tip5Permutation and
// PoseidonPermutation take — leaving the remaining rate elements in
// place, and writes the result back into state.
func permuteState5(state *[Rate]field.Element, permute func([5]field.Element) [5]field.Element) {
	var digest [5]field.Element
	copy(digest[:], state[:])
	permuted := permute(digest)
	copy(state[:], permuted[:])
}

// Tip5Sponge is a Sponge backed by the Tip5 permutation.
type Tip5Sponge struct {
	state  [Rate]field.Element
	domain Domain
}

func NewTip5Sponge(domain Domain) *Tip5Sponge {
	return &Tip5Sponge{domain: domain}
}

func (s *Tip5Sponge) Init() Sponge { return NewTip5Sponge(s.domain) }

func (s *Tip5Sponge) Absorb(input [Rate]field.Element) {
	for i := range s.state {
		s.state[i] = s.state[i].Add(input[i])
	}
	s.permute()
}

func (s *Tip5Sponge) Squeeze() [Rate]field.Element {
	output := s.state
	s.permute()
	return output
}

func (s *Tip5Sponge) PadAndAbsorbAll(input []field.Element) {
	for i := 0; i < len(input); i += Rate {
		s.Absorb(padRateChunk(input, i))
	}
}

func (s *Tip5Sponge) Clone() Sponge {
	clone := *s
	return &clone
}

func (s *Tip5Sponge) Reset() { s.state = [Rate]field.Element{} }

func (s *Tip5Sponge) permute() {
	permuteState5(&s.state, hash.Tip5Permutation)
}

// PoseidonSponge is a Sponge backed by the Poseidon permutation, offered
// as an alternative to Tip5Sponge for the same absorb/squeeze protocol.
type PoseidonSponge struct {
	state  [Rate]field.Element
	domain Domain
}

func NewPoseidonSponge(domain Domain) *PoseidonSponge {
	return &PoseidonSponge{domain: domain}
}

func (s *PoseidonSponge) Init() Sponge { return NewPoseidonSponge(s.domain) }

func (s *PoseidonSponge) Absorb(input [Rate]field.Element) {
	for i := range s.state {
		s.state[i] = s.state[i].Add(input[i])
	}
	s.permute()
}

func (s *PoseidonSponge) Squeeze() [Rate]field.Element {
	output := s.state
	s.permute()
	return output
}

func (s *PoseidonSponge) PadAndAbsorbAll(input []field.Element) {
	for i := 0; i < len(input); i += Rate {
		s.Absorb(padRateChunk(input, i))
	}
}

func (s *PoseidonSponge) Clone() Sponge {
	clone := *s
	return &clone
}

func (s *PoseidonSponge) Reset() { s.state = [Rate]field.Element{} }

func (s *PoseidonSponge) permute() {
	permuteState5(&s.state, hash.PoseidonPermutation)
}

// HashVarlen resets sponge, absorbs all of input with padding, and
// squeezes one rate-sized chunk of output.
func HashVarlen(sponge Sponge, input []field.Element) []field.Element {
	sponge.Reset()
	sponge.PadAndAbsorbAll(input)
	output := sponge.Squeeze()
	return output[:]
}

// HashFixed hashes input known to fit within a single rate-sized chunk.
// Panics if it doesn't.
func HashFixed(sponge Sponge, input []field.Element) []field.Element {
	if len(input) > Rate {
		panic(fmt.Sprintf("input length %d exceeds RATE %d", len(input), Rate))
	}

	sponge.Reset()
	sponge.Absorb(padRateChunk(input, 0))
	output := sponge.Squeeze()
	return output[:]
}

// SampleIndices squeezes field elements from sponge and reduces each
// one modulo upperBound, retrying on duplicates, until numIndices
// distinct indices have been drawn. numIndices is capped at upperBound.
func SampleIndices(sponge Sponge, upperBound int, numIndices int) []int {
	if upperBound <= 0 || numIndices <= 0 {
		return []int{}
	}
	if numIndices > upperBound {
		numIndices = upperBound
	}

	indices := make([]int, 0, numIndices)
	used := make(map[int]bool, numIndices)

	for len(indices) < numIndices {
		for _, element := range sponge.Squeeze() {
			index := int(element.Value() % uint64(upperBound))
			if used[index] {
				continue
			}
			indices = append(indices, index)
			used[index] = true
			if len(indices) >= numIndices {
				break
			}
		}
	}
	return indices
}

func ValidateSpongeInput(input []field.Element) error {
	if len(input) == 0 {
		return fmt.Errorf("input cannot be empty")
	}

	const maxLength = 1024 * 1024
	if len(input) > maxLength {
		return fmt.Errorf("input too long: %d elements (max %d)", len(input), maxLength)
	}
	return nil
}

func GetSpongeRate() int { return Rate }

func IsValidDomain(domain Domain) bool {
	return domain == VariableLength || domain == FixedLength
}
