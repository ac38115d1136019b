package hash

import (
	"fmt"
	"math/big"

	"github.com/starkforge/starkforge/internal/starkforge/field"
)

// Poseidon is an alternate sponge permutation to Tip5, using the classic
// full/partial round structure with an x^5 S-box instead of split-and-
// lookup. Round constants and the MDS matrix are derived at construction
// time (Grain LFSR and a Cauchy matrix, respectively) rather than
// hardcoded, trading a one-time setup cost for not needing to ship large
// precomputed tables per parameter set.
//
// Reference: "Poseidon: A New Hash Function for Zero-Knowledge Proof
// Systems" (Grassi, Khovratovich, Rechberger, Roy, Schofnegger).
type Poseidon struct {
	roundsFull    int // RF
	roundsPartial int // RP
	sboxPower     int // alpha
	width         int // t
	rate          int // r

	roundConstants [][]field.Element
	mdsMatrix      [][]field.Element

	securityLevel int
}

// PoseidonParameters pins down one concrete instantiation of the
// permutation.
type PoseidonParameters struct {
	SecurityLevel int
	FieldSize     int
	Width         int
	Rate          int
	RoundsFull    int
	RoundsPartial int
	SboxPower     int
}

// GetDefaultPoseidonParameters returns parameters sized for the given
// security level over the 64-bit Goldilocks field. Unrecognized levels
// fall back to a conservative round count rather than erroring, since the
// caller already committed to that security target.
func GetDefaultPoseidonParameters(securityLevel int) *PoseidonParameters {
	const goldilocksBits = 64

	switch securityLevel {
	case 128:
		return &PoseidonParameters{
			SecurityLevel: 128, FieldSize: goldilocksBits,
			Width: 4, Rate: 3, RoundsFull: 8, RoundsPartial: 84, SboxPower: 5,
		}
	case 256:
		return &PoseidonParameters{
			SecurityLevel: 256, FieldSize: goldilocksBits,
			Width: 4, Rate: 3, RoundsFull: 8, RoundsPartial: 170, SboxPower: 5,
		}
	default:
		return &PoseidonParameters{
			SecurityLevel: securityLevel, FieldSize: goldilocksBits,
			Width: 4, Rate: 3, RoundsFull: 8, RoundsPartial: 100, SboxPower: 5,
		}
	}
}

// NewPoseidon builds a Poseidon instance, generating its round constants
// and MDS matrix. A nil params defaults to 128-bit security.
func NewPoseidon(params *PoseidonParameters) (*Poseidon, error) {
	if params == nil {
		params = GetDefaultPoseidonParameters(128)
	}

	roundConstants, err := generatePoseidonRoundConstants(params)
	if err != nil {
		return nil, fmt.Errorf("generating round constants: %w", err)
	}
	mdsMatrix, err := generatePoseidonMDSMatrix(params.Width)
	if err != nil {
		return nil, fmt.Errorf("generating MDS matrix: %w", err)
	}

	return &Poseidon{
		roundsFull:     params.RoundsFull,
		roundsPartial:  params.RoundsPartial,
		sboxPower:      params.SboxPower,
		width:          params.Width,
		rate:           params.Rate,
		roundConstants: roundConstants,
		mdsMatrix:      mdsMatrix,
		securityLevel:  params.SecurityLevel,
	}, nil
}

// Hash absorbs inputs in rate-sized chunks (summing into the state rather
// than overwriting it, so a partial final chunk still mixes in) and
// returns the first state element as the digest.
func (p *Poseidon) Hash(inputs []field.Element) field.Element {
	if len(inputs) == 0 {
		return field.Zero
	}

	state := make([]field.Element, p.width)
	for i := 0; i < len(inputs); i += p.rate {
		end := i + p.rate
		if end > len(inputs) {
			end = len(inputs)
		}
		for j, in := range inputs[i:end] {
			state[j] = state[j].Add(in)
		}
		state = p.poseidonPermutation(state)
	}

	return state[0]
}

func (p *Poseidon) HashElements(inputs []field.Element) field.Element {
	return p.Hash(inputs)
}

func (p *Poseidon) HashTwo(left, right field.Element) field.Element {
	return p.Hash([]field.Element{left, right})
}

// poseidonPermutation runs the full/partial/full round schedule:
// roundsFull/2 full rounds, then roundsPartial partial rounds, then
// roundsFull/2 more full rounds.
func (p *Poseidon) poseidonPermutation(state []field.Element) []field.Element {
	half := p.roundsFull / 2

	round := 0
	for i := 0; i < half; i++ {
		state = p.fullRound(state, round)
		round++
	}
	for i := 0; i < p.roundsPartial; i++ {
		state = p.partialRound(state, round)
		round++
	}
	for i := 0; i < half; i++ {
		state = p.fullRound(state, round)
		round++
	}

	return state
}

func (p *Poseidon) addRoundConstants(state []field.Element, round int) {
	if round >= len(p.roundConstants) {
		return
	}
	constants := p.roundConstants[round]
	for i := 0; i < p.width && i < len(constants); i++ {
		state[i] = state[i].Add(constants[i])
	}
}

func (p *Poseidon) fullRound(state []field.Element, round int) []field.Element {
	p.addRoundConstants(state, round)
	for i := range state {
		state[i] = p.sbox(state[i])
	}
	return p.applyMDSMatrix(state)
}

// partialRound differs from fullRound only in applying the S-box to a
// single element — the classic Poseidon optimization that keeps most of
// the round linear, which is what makes the construction cheap to prove.
func (p *Poseidon) partialRound(state []field.Element, round int) []field.Element {
	p.addRoundConstants(state, round)
	state[0] = p.sbox(state[0])
	return p.applyMDSMatrix(state)
}

// sbox computes x^sboxPower, with a shortcut for the common alpha=5 case.
func (p *Poseidon) sbox(x field.Element) field.Element {
	if p.sboxPower == 5 {
		squared := x.Square()
		fourth := squared.Square()
		return x.Mul(fourth)
	}

	result := x
	for i := 1; i < p.sboxPower; i++ {
		result = result.Mul(x)
	}
	return result
}

func (p *Poseidon) applyMDSMatrix(state []field.Element) []field.Element {
	next := make([]field.Element, p.width)
	for i := range next {
		acc := field.Zero
		if i < len(p.mdsMatrix) {
			row := p.mdsMatrix[i]
			for j := 0; j < p.width && j < len(row); j++ {
				acc = acc.Add(state[j].Mul(row[j]))
			}
		}
		next[i] = acc
	}
	return next
}

// generatePoseidonRoundConstants draws width field elements per round from
// a Grain LFSR seeded with this instance's parameters.
func generatePoseidonRoundConstants(params *PoseidonParameters) ([][]field.Element, error) {
	lfsr := NewGrainLFSR(params)

	totalRounds := params.RoundsFull + params.RoundsPartial
	constants := make([][]field.Element, totalRounds)
	for round := range constants {
		row := make([]field.Element, params.Width)
		for i := range row {
			row[i] = lfsr.NextFieldElement()
		}
		constants[round] = row
	}
	return constants, nil
}

// generatePoseidonMDSMatrix builds a width x width Cauchy matrix
// M[i][j] = 1/(x_i + y_j). Cauchy matrices are MDS whenever all the x_i
// and y_j (and hence all the pairwise sums) are distinct, which choosing
// x_i = i+1 and y_j = j+width+1 guarantees.
func generatePoseidonMDSMatrix(width int) ([][]field.Element, error) {
	matrix := make([][]field.Element, width)
	for i := range matrix {
		row := make([]field.Element, width)
		x := field.New(uint64(i + 1))
		for j := range row {
			y := field.New(uint64(j + width + 1))
			row[j] = x.Add(y).Inverse()
		}
		matrix[i] = row
	}
	return matrix, nil
}

// GrainLFSR is the self-shrinking Grain-type LFSR the Poseidon paper
// specifies for deriving round constants from a parameter set, so that
// constants don't need to be shipped as precomputed data.
type GrainLFSR struct {
	state  [80]bool
	params *PoseidonParameters
}

func NewGrainLFSR(params *PoseidonParameters) *GrainLFSR {
	g := &GrainLFSR{params: params}
	g.initialize()
	return g
}

// initialize loads the 80-bit state with the parameter encoding the spec
// defines (field type, S-box type, field size, width, round counts, then
// a run of ones) and discards the first 160 output bits as warm-up.
func (g *GrainLFSR) initialize() {
	setBits := func(offset, count, value int) {
		for i := 0; i < count; i++ {
			g.state[offset+i] = (value>>i)&1 == 1
		}
	}

	g.state[0] = true // field type: prime field
	g.state[1] = true
	setBits(2, 4, g.params.SboxPower)
	setBits(6, 12, g.params.FieldSize)
	setBits(18, 12, g.params.Width)
	setBits(30, 10, g.params.RoundsFull)
	setBits(40, 10, g.params.RoundsPartial)
	for i := 50; i < 80; i++ {
		g.state[i] = true
	}

	for i := 0; i < 160; i++ {
		g.update()
	}
}

// update advances the LFSR by one step using its fixed tap positions.
func (g *GrainLFSR) update() {
	newBit := g.state[62] != g.state[51] != g.state[38] != g.state[23] != g.state[13] != g.state[0]
	copy(g.state[:79], g.state[1:])
	g.state[79] = newBit
}

// NextFieldElement draws 64 bits via sampleBit (rejection-sampled in
// pairs) and reduces the result mod the field's prime.
func (g *GrainLFSR) NextFieldElement() field.Element {
	value := new(big.Int)
	for i := 0; i < 64; i++ {
		if g.sampleBit() {
			if g.sampleBit() {
				value.SetBit(value, i, 1)
			}
		} else {
			g.sampleBit()
		}
	}

	value.Mod(value, new(big.Int).SetUint64(field.P))
	return field.New(value.Uint64())
}

// sampleBit draws one uniform bit: advance twice, and if the first
// advance produced a 1, the second advance's bit is the (unbiased)
// output; otherwise discard both and retry.
func (g *GrainLFSR) sampleBit() bool {
	for {
		first := g.state[0]
		g.update()
		second := g.state[0]
		g.update()
		if first {
			return second
		}
	}
}

// PoseidonSponge wraps a Poseidon instance with absorb/squeeze state
// tracking, for callers hashing a stream rather than a fixed input.
type PoseidonSponge struct {
	poseidon *Poseidon
	state    []field.Element
	absorbed int
}

func NewPoseidonSponge(params *PoseidonParameters) (*PoseidonSponge, error) {
	poseidon, err := NewPoseidon(params)
	if err != nil {
		return nil, err
	}
	return &PoseidonSponge{
		poseidon: poseidon,
		state:    make([]field.Element, poseidon.width),
	}, nil
}

func (s *PoseidonSponge) Absorb(inputs []field.Element) {
	for _, in := range inputs {
		s.state[s.absorbed] = s.state[s.absorbed].Add(in)
		s.absorbed++
		if s.absorbed >= s.poseidon.rate {
			s.state = s.poseidon.poseidonPermutation(s.state)
			s.absorbed = 0
		}
	}
}

func (s *PoseidonSponge) Squeeze(outputLength int) []field.Element {
	outputs := make([]field.Element, outputLength)
	for i := range outputs {
		if s.absorbed >= s.poseidon.rate {
			s.state = s.poseidon.poseidonPermutation(s.state)
			s.absorbed = 0
		}
		outputs[i] = s.state[s.absorbed]
		s.absorbed++
	}
	return outputs
}

// PoseidonHash hashes with default 128-bit-security parameters.
func PoseidonHash(inputs []field.Element) field.Element {
	poseidon, err := NewPoseidon(nil)
	if err != nil {
		return field.Zero
	}
	return poseidon.Hash(inputs)
}

func PoseidonHashTwo(left, right field.Element) field.Element {
	return PoseidonHash([]field.Element{left, right})
}

// PoseidonPermutation runs the width-4 Poseidon permutation on state,
// mirroring Tip5Permutation's role for the Tip5 sponge. Only the first
// four elements carry through the permutation: the fifth input element
// does not affect the output, and the fifth output element is always zero.
func PoseidonPermutation(state [5]field.Element) [5]field.Element {
	poseidon, err := NewPoseidon(nil)
	if err != nil {
		return state
	}

	working := make([]field.Element, len(state))
	copy(working, state[:])
	permuted := poseidon.poseidonPermutation(working)

	var result [5]field.Element
	copy(result[:], permuted)
	return result
}
