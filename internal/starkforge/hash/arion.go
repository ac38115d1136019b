// This file implements Arion, a second alternate permutation built on
// Generalized Triangular Dynamical Systems (GTDS) rather than a classic
// SPN round. It trades Poseidon's uniform S-box layer for a triangular
// dependency between branches, which the paper argues proves cheaper in
// zkSNARK circuits.
//
// Reference: "ARION: Arithmetization-Oriented Permutation and Hashing
// from Generalized Triangular Dynamical Systems", https://eprint.iacr.org/2023/1479
package hash

import (
	"github.com/starkforge/starkforge/internal/starkforge/field"
)

const (
	ArionStateSize  = 3 // N
	ArionRate       = 2
	ArionCapacity   = 1
	ArionRounds     = 10
	ArionD1         = 3   // low-degree S-box exponent
	ArionD2         = 121 // high-degree GTDS exponent
	ArionDigestSize = DigestLen
)

// Arion holds the 3-element GTDS state plus its derived round constants
// and MDS matrix.
type Arion struct {
	state          [ArionStateSize]field.Element
	roundConstants [][ArionStateSize]field.Element
	mdsMatrix      [ArionStateSize][ArionStateSize]field.Element
}

// arionQuadraticParams are the per-branch coefficients of the two
// quadratics g_i(x) = x² + α1·x + α2 and h_i(x) = x² + β·x that the GTDS
// layer evaluates. They're chosen so α1² - 4·α2 is a quadratic
// non-residue mod P, which keeps g_i from having roots in the field.
type arionQuadraticParams struct {
	alpha1 field.Element
	alpha2 field.Element
	beta   field.Element
}

var arionQuadraticParamsGoldilocks = [ArionStateSize]arionQuadraticParams{
	{alpha1: field.New(18446744069414584320), alpha2: field.New(2), beta: field.Zero}, // alpha1 = -1 mod P
	{alpha1: field.New(18446744069414584320), alpha2: field.New(2), beta: field.Zero},
	{alpha1: field.Zero, alpha2: field.Zero, beta: field.Zero},
}

// arionInverseExponent is E such that (x^ArionD2)^E = x, i.e. E is D2's
// inverse mod P-1. Used to invert the high-degree branch directly instead
// of solving for a D2-th root another way.
var arionInverseExponent = field.New(4878477770423691721)

// NewArion builds an Arion permutation state for the given domain and
// regenerates its round constants and MDS matrix.
func NewArion(domain Domain) *Arion {
	a := &Arion{
		roundConstants: generateArionRoundConstants(),
		mdsMatrix:      generateArionMDSMatrix(),
	}
	if domain == FixedLength {
		for i := ArionRate; i < ArionStateSize; i++ {
			a.state[i] = field.One
		}
	}
	return a
}

// Permutation runs ArionRounds rounds, each a GTDS layer followed by an
// affine (MDS + round constants) layer.
func (a *Arion) Permutation() {
	for round := 0; round < ArionRounds; round++ {
		a.gtdsLayer()
		a.affineLayer(round)
	}
}

// gtdsLayer computes, for branches N-2 down to 0,
//
//	f_i = x_i^D1 · g_i(sigma) + h_i(sigma), sigma = sum_{j>i} (x_j + f_j)
//
// with the top branch handled specially as f_{N-1} = x_{N-1}^E (the
// inverse of the high-degree map), then adds f_i back into each x_i. The
// dependency of f_i on every f_j for j > i is what makes this
// "triangular" rather than a uniform per-branch S-box.
func (a *Arion) gtdsLayer() {
	n := ArionStateSize
	var f [ArionStateSize]field.Element

	f[n-1] = a.powerD2Inverse(a.state[n-1])
	for i := n - 2; i >= 0; i-- {
		sigma := field.Zero
		for j := i + 1; j < n; j++ {
			sigma = sigma.Add(a.state[j].Add(f[j]))
		}

		params := arionQuadraticParamsGoldilocks[i]
		xiPowD1 := a.powerD1(a.state[i])
		f[i] = xiPowD1.Mul(a.evaluateG(sigma, params)).Add(a.evaluateH(sigma, params))
	}

	for i := range a.state {
		a.state[i] = a.state[i].Add(f[i])
	}
}

// evaluateG computes g_i(x) = x² + alpha1·x + alpha2.
func (a *Arion) evaluateG(x field.Element, params arionQuadraticParams) field.Element {
	return x.Mul(x).Add(params.alpha1.Mul(x)).Add(params.alpha2)
}

// evaluateH computes h_i(x) = x² + beta·x.
func (a *Arion) evaluateH(x field.Element, params arionQuadraticParams) field.Element {
	return x.Mul(x).Add(params.beta.Mul(x))
}

func (a *Arion) powerD1(x field.Element) field.Element {
	return x.Mul(x).Mul(x)
}

func (a *Arion) powerD2Inverse(x field.Element) field.Element {
	return x.ModPow(arionInverseExponent.Value())
}

func (a *Arion) affineLayer(round int) {
	mixed := a.applyMDSMatrix()
	for i := range a.state {
		a.state[i] = mixed[i].Add(a.roundConstants[round][i])
	}
}

// applyMDSMatrix multiplies the state by the circulant matrix circ(1, 2,
// ..., N) in O(N) instead of O(N^2), via the running-sum recurrence:
// w_0 = sigma + sum(i * v_i), w_i = w_{i-1} - sigma + N * v_{i-1}, where
// sigma = sum(v_i).
func (a *Arion) applyMDSMatrix() [ArionStateSize]field.Element {
	n := ArionStateSize
	var result [ArionStateSize]field.Element

	sigma := field.Zero
	for _, v := range a.state {
		sigma = sigma.Add(v)
	}

	result[0] = sigma
	for i, v := range a.state {
		result[0] = result[0].Add(field.New(uint64(i)).Mul(v))
	}

	nField := field.New(uint64(n))
	for i := 1; i < n; i++ {
		result[i] = result[i-1].Sub(sigma).Add(nField.Mul(a.state[i-1]))
	}

	return result
}

// generateArionRoundConstants derives constants deterministically from a
// fixed domain-separation seed, round index, and branch position, mixed
// through a Fibonacci-hash/LCG combination. Not cryptographically drawn
// from a Grain LFSR like Poseidon's, but fixed and reproducible.
func generateArionRoundConstants() [][ArionStateSize]field.Element {
	seed := []byte("Arion-Goldilocks-N3-R10")
	seedMix := uint64(0)
	for i, b := range seed {
		seedMix ^= uint64(b) << (i % 64)
	}

	constants := make([][ArionStateSize]field.Element, ArionRounds)
	for round := range constants {
		for pos := 0; pos < ArionStateSize; pos++ {
			val := seedMix
			val ^= uint64(round) * 0x9E3779B97F4A7C15
			val ^= uint64(pos) * 0x517CC1B727220A95
			val = val*6364136223846793005 + 1442695040888963407
			constants[round][pos] = field.New(val)
		}
	}
	return constants
}

// generateArionMDSMatrix builds circ(1, 2, ..., N): row 0 is [1..N], and
// each following row is the previous one rotated right by one.
func generateArionMDSMatrix() [ArionStateSize][ArionStateSize]field.Element {
	var matrix [ArionStateSize][ArionStateSize]field.Element
	for j := range matrix[0] {
		matrix[0][j] = field.New(uint64(j + 1))
	}
	for i := 1; i < ArionStateSize; i++ {
		for j := range matrix[i] {
			matrix[i][j] = matrix[0][(j-i+ArionStateSize)%ArionStateSize]
		}
	}
	return matrix
}

// absorbChunk sums up to ArionRate elements of chunk into the rate
// portion of the state and permutes; shared by every Arion entry point
// that absorbs fixed-size input.
func (a *Arion) absorbChunk(chunk []field.Element) {
	for j := 0; j < len(chunk) && j < ArionRate; j++ {
		a.state[j] = a.state[j].Add(chunk[j])
	}
	a.Permutation()
}

// HashVarLen hashes a variable-length sequence via sponge absorption,
// padding the final (possibly empty) chunk with a single 1 followed by
// zeros.
func (a *Arion) HashVarLen(input []field.Element) Digest {
	*a = *NewArion(VariableLength)

	i := 0
	for ; i+ArionRate <= len(input); i += ArionRate {
		a.absorbChunk(input[i : i+ArionRate])
	}

	last := make([]field.Element, ArionRate)
	remaining := copy(last, input[i:])
	last[remaining] = field.One
	a.absorbChunk(last)

	return a.Squeeze()
}

// Squeeze reads DigestLen elements from the state, permuting for more
// output if the digest is wider than the state itself.
func (a *Arion) Squeeze() Digest {
	var digest Digest
	for i := 0; i < ArionDigestSize && i < ArionStateSize; i++ {
		digest[i] = a.state[i]
	}
	for i := ArionStateSize; i < ArionDigestSize; i++ {
		if i%ArionStateSize == 0 {
			a.Permutation()
		}
		digest[i] = a.state[i%ArionStateSize]
	}
	return digest
}

// ArionHash10 hashes exactly 10 field elements (no padding needed).
func ArionHash10(input [10]field.Element) Digest {
	arion := NewArion(FixedLength)
	for i := 0; i < 10; i += ArionRate {
		end := i + ArionRate
		if end > 10 {
			end = 10
		}
		arion.absorbChunk(input[i:end])
	}
	return arion.Squeeze()
}

// ArionHashPair hashes two digests together, for Merkle tree construction
// using the Arion permutation instead of Tip5.
func ArionHashPair(left, right Digest) Digest {
	arion := NewArion(FixedLength)
	for _, digest := range []Digest{left, right} {
		for i := 0; i < DigestLen; i += ArionRate {
			end := i + ArionRate
			if end > DigestLen {
				end = DigestLen
			}
			arion.absorbChunk(digest[i:end])
		}
	}
	return arion.Squeeze()
}

// Trace runs the permutation and records the state after each round,
// for AIR constraints over the Arion hash table.
func (a *Arion) Trace() [ArionRounds + 1][ArionStateSize]field.Element {
	var trace [ArionRounds + 1][ArionStateSize]field.Element
	trace[0] = a.state
	for round := 0; round < ArionRounds; round++ {
		a.gtdsLayer()
		a.affineLayer(round)
		trace[round+1] = a.state
	}
	return trace
}

func (a *Arion) Reset(domain Domain) {
	*a = *NewArion(domain)
}

// ArionHash hashes a variable-length input, the primary entry point for
// most callers.
func ArionHash(input []field.Element) Digest {
	return NewArion(VariableLength).HashVarLen(input)
}
