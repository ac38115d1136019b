// Package hash implements the arithmetization-oriented hash functions used
// throughout the protocol: Tip5 (the sponge used for Merkle trees and
// Fiat-Shamir challenges) and Poseidon/Arion (alternate permutations kept
// for comparison and for experiments that need a different S-box).
// Tip5 reference: https://eprint.iacr.org/2023/107.pdf
package hash

import (
	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/xfield"
)

const (
	StateSize         = 16
	NumSplitAndLookup = 4
	Log2StateSize     = 4
	Capacity          = 6
	Rate              = 10
	NumRounds         = 5
)

// Domain selects how a Tip5 sponge's capacity is initialized.
type Domain int

const (
	// VariableLength is for inputs that may exceed one rate's worth of
	// elements; capacity starts at zero.
	VariableLength Domain = iota
	// FixedLength is for inputs known to fit within Rate elements;
	// capacity starts at all-ones, domain-separating it from
	// VariableLength hashes of the same bytes.
	FixedLength
)

// Tip5 holds the 16-element permutation state.
type Tip5 struct {
	state [StateSize]field.Element
}

// sBoxTable maps an 8-bit value through Tip5's chosen permutation; used by
// splitAndLookup as the non-linear layer for the state's first four words.
var sBoxTable = [256]uint8{
	0, 7, 26, 63, 124, 215, 85, 254, 214, 228, 45, 185, 140, 173, 33, 240, 29, 177, 176, 32, 8,
	110, 87, 202, 204, 99, 150, 106, 230, 14, 235, 128, 213, 239, 212, 138, 23, 130, 208, 6, 44,
	71, 93, 116, 146, 189, 251, 81, 199, 97, 38, 28, 73, 179, 95, 84, 152, 48, 35, 119, 49, 88,
	242, 3, 148, 169, 72, 120, 62, 161, 166, 83, 175, 191, 137, 19, 100, 129, 112, 55, 221, 102,
	218, 61, 151, 237, 68, 164, 17, 147, 46, 234, 203, 216, 22, 141, 65, 57, 123, 12, 244, 54, 219,
	231, 96, 77, 180, 154, 5, 253, 133, 165, 98, 195, 205, 134, 245, 30, 9, 188, 59, 142, 186, 197,
	181, 144, 92, 31, 224, 163, 111, 74, 58, 69, 113, 196, 67, 246, 225, 10, 121, 50, 60, 157, 90,
	122, 2, 250, 101, 75, 178, 159, 24, 36, 201, 11, 243, 132, 198, 190, 114, 233, 39, 52, 21, 209,
	108, 238, 91, 187, 18, 104, 194, 37, 153, 34, 200, 143, 126, 155, 236, 118, 64, 80, 172, 89,
	94, 193, 135, 183, 86, 107, 252, 13, 167, 206, 136, 220, 207, 103, 171, 160, 76, 182, 227, 217,
	158, 56, 174, 4, 66, 109, 139, 162, 184, 211, 249, 47, 125, 232, 117, 43, 16, 42, 127, 20, 241,
	25, 149, 105, 156, 51, 53, 168, 145, 247, 223, 79, 78, 226, 15, 222, 82, 115, 70, 210, 27, 41,
	1, 170, 40, 131, 192, 229, 248, 255,
}

// LookupTable is sBoxTable exposed for callers outside this package that
// build their own AIR constraints over the split-and-lookup S-box.
var LookupTable = sBoxTable

// roundConstants are the fixed per-round additive constants. They are
// generated deterministically from the Tip5 specification and must not be
// altered independently of the permutation's soundness proof.
var roundConstants = [NumRounds * StateSize]field.Element{
	field.New(13630775303355457758),
	field.New(16896927574093233874),
	field.New(10379449653650130495),
	field.New(1965408364413093495),
	field.New(15232538947090185111),
	field.New(15892634398091747074),
	field.New(3989134140024871768),
	field.New(2851411912127730865),
	field.New(8709136439293758776),
	field.New(3694858669662939734),
	field.New(12692440244315327141),
	field.New(10722316166358076749),
	field.New(12745429320441639448),
	field.New(17932424223723990421),
	field.New(7558102534867937463),
	field.New(15551047435855531404),
	field.New(17532528648579384106),
	field.New(5216785850422679555),
	field.New(15418071332095031847),
	field.New(11921929762955146258),
	field.New(9738718993677019874),
	field.New(3464580399432997147),
	field.New(13408434769117164050),
	field.New(264428218649616431),
	field.New(4436247869008081381),
	field.New(4063129435850804221),
	field.New(2865073155741120117),
	field.New(5749834437609765994),
	field.New(6804196764189408435),
	field.New(17060469201292988508),
	field.New(9475383556737206708),
	field.New(12876344085611465020),
	field.New(13835756199368269249),
	field.New(1648753455944344172),
	field.New(9836124473569258483),
	field.New(12867641597107932229),
	field.New(11254152636692960595),
	field.New(16550832737139861108),
	field.New(11861573970480733262),
	field.New(1256660473588673495),
	field.New(13879506000676455136),
	field.New(10564103842682358721),
	field.New(16142842524796397521),
	field.New(3287098591948630584),
	field.New(685911471061284805),
	field.New(5285298776918878023),
	field.New(18310953571768047354),
	field.New(3142266350630002035),
	field.New(549990724933663297),
	field.New(4901984846118077401),
	field.New(11458643033696775769),
	field.New(8706785264119212710),
	field.New(12521758138015724072),
	field.New(11877914062416978196),
	field.New(11333318251134523752),
	field.New(3933899631278608623),
	field.New(16635128972021157924),
	field.New(10291337173108950450),
	field.New(4142107155024199350),
	field.New(16973934533787743537),
	field.New(11068111539125175221),
	field.New(17546769694830203606),
	field.New(5315217744825068993),
	field.New(4609594252909613081),
	field.New(3350107164315270407),
	field.New(17715942834299349177),
	field.New(9600609149219873996),
	field.New(12894357635820003949),
	field.New(4597649658040514631),
	field.New(7735563950920491847),
	field.New(1663379455870887181),
	field.New(13889298103638829706),
	field.New(7375530351220884434),
	field.New(3502022433285269151),
	field.New(9231805330431056952),
	field.New(9252272755288523725),
	field.New(10014268662326746219),
	field.New(15565031632950843234),
	field.New(1209725273521819323),
	field.New(6024642864597845108),
}

// RoundConstants exposes roundConstants for callers building constraints
// over the permutation outside this package.
var RoundConstants = roundConstants

// New builds a Tip5 sponge with the given domain's capacity initialization.
func New(domain Domain) *Tip5 {
	t := &Tip5{}
	if domain == FixedLength {
		for i := Rate; i < StateSize; i++ {
			t.state[i] = field.One
		}
	}
	return t
}

// Init builds a Tip5 sponge for variable-length hashing.
func Init() *Tip5 {
	return New(VariableLength)
}

// Permutation runs all NumRounds rounds over the state in place.
func (t *Tip5) Permutation() {
	for round := 0; round < NumRounds; round++ {
		t.round(round)
	}
}

func (t *Tip5) round(roundIndex int) {
	t.sboxLayer()
	t.mdsLayer()
	base := roundIndex * StateSize
	for i := range t.state {
		t.state[i] = t.state[i].Add(roundConstants[base+i])
	}
}

// sboxLayer applies the split-and-lookup S-box to the first
// NumSplitAndLookup words and x^7 to the rest.
func (t *Tip5) sboxLayer() {
	for i := 0; i < NumSplitAndLookup; i++ {
		splitAndLookup(&t.state[i])
	}
	for i := NumSplitAndLookup; i < StateSize; i++ {
		squared := t.state[i].Square()
		fourth := squared.Square()
		t.state[i] = t.state[i].Mul(squared).Mul(fourth)
	}
}

// splitAndLookup runs element's 8 Montgomery-form bytes through sBoxTable
// independently, then reassembles them.
func splitAndLookup(element *field.Element) {
	bytes := element.ToBytes()
	for i, b := range bytes {
		bytes[i] = sBoxTable[b]
	}
	*element = field.FromBytes(bytes)
}

// mdsLayer applies the MDS matrix via mixColumnHalves, which operates on
// the low and high 32-bit halves of each state word separately and then
// recombines them — an optimization equivalent to, but much cheaper than,
// a direct 16x16 matrix-vector product.
func (t *Tip5) mdsLayer() {
	var lowHalves, highHalves [StateSize]uint64
	for i, e := range t.state {
		raw := e.RawValue()
		highHalves[i] = raw >> 32
		lowHalves[i] = raw & 0xFFFFFFFF
	}

	lowHalves = mixColumnHalves(lowHalves)
	highHalves = mixColumnHalves(highHalves)

	for i := range t.state {
		combined := (uint128(lowHalves[i]) >> 4) + (uint128(highHalves[i]) << 28)
		hi := uint64(combined >> 32)
		lo := uint64(combined)

		result := lo + hi*0xFFFFFFFF
		if result < lo {
			result += 0xFFFFFFFF
		}
		t.state[i] = field.NewFromRaw(result)
	}
}

// uint128 is wide enough to hold the sum used in mdsLayer's recombination
// step; not an actual 128-bit type, just 64 bits used with care.
type uint128 uint64

// mixColumnHalves is the precomputed, factored form of multiplying a
// 16-element vector by Tip5's circulant MDS matrix. The factorization
// (naming its intermediates generically: node0, node1, ...) was derived
// once from the matrix and is not meant to be read as hand-written
// arithmetic.
func mixColumnHalves(input [StateSize]uint64) [StateSize]uint64 {
	node34 := input[0] + input[8]
	node38 := input[4] + input[12]
	node36 := input[2] + input[10]
	node40 := input[6] + input[14]
	node35 := input[1] + input[9]
	node39 := input[5] + input[13]
	node37 := input[3] + input[11]
	node41 := input[7] + input[15]

	node50 := node34 + node38
	node52 := node36 + node40
	node51 := node35 + node39
	node53 := node37 + node41

	node160 := input[0] - input[8]
	node161 := input[1] - input[9]
	node165 := input[5] - input[13]
	node163 := input[3] - input[11]
	node167 := input[7] - input[15]
	node162 := input[2] - input[10]
	node166 := input[6] - input[14]
	node164 := input[4] - input[12]

	node58 := node50 + node52
	node59 := node51 + node53
	node90 := node34 - node38
	node91 := node35 - node39
	node93 := node37 - node41
	node92 := node36 - node40

	node64 := (node58 + node59) * 524757
	node67 := (node58 - node59) * 52427
	node71 := node50 - node52
	node72 := node51 - node53

	node177 := node161 + node165
	node179 := node163 + node167
	node178 := node162 + node166
	node176 := node160 + node164

	node69 := node64 + node67
	node397 := node71*18446744073709525744 - node72*53918
	node1857 := node90 * 395512
	node99 := node91 + node93
	node1865 := node91 * 18446744073709254400
	node1869 := node93 * 179380
	node1873 := node92 * 18446744073709509368
	node1879 := node160 * 35608
	node185 := node161 + node163
	node1915 := node161 * 18446744073709340312
	node1921 := node163 * 18446744073709494992
	node1927 := node162 * 18446744073709450808
	node228 := node165 + node167
	node1939 := node165 * 18446744073709420056
	node1945 := node167 * 18446744073709505128
	node1951 := node166 * 216536
	node1957 := node164 * 18446744073709515080

	node70 := node64 - node67
	node702 := node71*53918 + node72*18446744073709525744
	node1961 := node90 * 18446744073709254400
	node1963 := node91 * 395512
	node1965 := node92 * 179380
	node1967 := node93 * 18446744073709509368
	node1970 := node160 * 18446744073709340312
	node1973 := node161 * 35608
	node1982 := node162 * 18446744073709494992
	node1985 := node163 * 18446744073709450808
	node1988 := node166 * 18446744073709505128
	node1991 := node167 * 216536
	node1994 := node164 * 18446744073709420056
	node1997 := node165 * 18446744073709515080

	node98 := node90 + node92
	node184 := node160 + node162
	node227 := node164 + node166

	node86 := node69 + node397
	node403 := node1857 - (node99*18446744073709433780 - node1865 - node1869 + node1873)
	node271 := node177 + node179
	node1891 := node177 * 18446744073709208752
	node1897 := node179 * 18446744073709448504
	node1903 := node178 * 115728
	node1909 := node185 * 18446744073709283688
	node1933 := node228 * 18446744073709373568

	node88 := node70 + node702
	node708 := node1961 + node1963 - (node1965 + node1967)
	node1976 := node178 * 18446744073709448504
	node1979 := node179 * 115728

	node87 := node69 - node397
	node897 := node1865 + node98*353264 - node1857 - node1873 - node1869
	node2007 := node184 * 18446744073709486416
	node2013 := node227 * 180000

	node89 := node70 - node702
	node1077 := node98*18446744073709433780 + node99*353264 - (node1961 + node1963) - (node1965 + node1967)
	node2020 := node184 * 18446744073709283688
	node2023 := node185 * 18446744073709486416
	node2026 := node227 * 18446744073709373568
	node2029 := node228 * 180000
	node2035 := node176 * 18446744073709550688
	node2038 := node176 * 18446744073709208752
	node2041 := node177 * 18446744073709550688

	node270 := node176 + node178

	node152 := node86 + node403
	node412 := node1879 + node185*18446744073709433780 - node1915 - node1921 - node1927
	node1237 := node2035 - node1891 - node1897 - node1903 - node1909

	node154 := node88 + node708
	node717 := node1921 + node2007 - node1970 - node1973 - node1982 - node1985
	node1375 := node1927 + node2013 - node1994 - node1997 - node1988 - node1991

	node156 := node87 + node897
	node906 := node1873 + node1909 + node2020 - node1879 - node1915 - node1921 - node1927
	node1492 := node1951 + node1933 + node2026 - node1939 - node1945 - node1957 - node1997

	node158 := node89 + node1077
	node1086 := node1961 + node1963 + node1979 + node2023 - node1973 - node1982 - node1985 - node1976
	node1657 := node1994 + node1997 + node1991 + node2029 - node1939 - node1945 - node1957 - node1988

	node153 := node270*114800 + node271*18446744073709433780 - node2038 - node2041 - node1976 - node1979 - (node2020 + node2023 - node1970 - node1973 - node1982 - node1985) - (node2026 + node2029 - node1994 - node1997 - node1988 - node1991)
	node155 := node270*18446744073709433780 + node271*114800 - node1891 - node1897 - node1903 - (node1879 + node1909 + node2020 - node1915 - node1921 - node1927) - (node1939 + node1933 + node2026 - node1951 - node1957 - node1988 - node1991)
	node157 := node1879 + node270*353264 - node2035 - node2038 - node2041 - node1976 - node1979 - (node1915 + node1909 + node2020 + node2023 - node1927 - node1982 - node1985 - node1973) - (node1939 + node1933 + node2026 + node2029 - node1951 - node1957 - node1988 - node1991)
	node159 := node1939 + node271*114800 - node2038 - node2041 - node1976 - node1979 - (node2020 + node2023 - node1970 - node1973 - node1982 - node1985) - (node2026 + node2029 - node1994 - node1997 - node1988 - node1991)

	return [StateSize]uint64{
		node152 + node412, node154 + node717, node156 + node906, node158 + node1086,
		node153 + node1237, node155 + node1375, node157 + node1492, node159 + node1657,
		node152 - node412, node154 - node717, node156 - node906, node158 - node1086,
		node153 - node1237, node155 - node1375, node157 - node1492, node159 - node1657,
	}
}

// squeezeDigest runs permutation rounds over a freshly initialized sponge
// that already has its rate loaded, then reads back the first DigestLen
// elements. It backs Hash10 and HashPair, which differ only in what they
// load into the rate before calling this.
func squeezeDigest(t *Tip5) [DigestLen]field.Element {
	t.Permutation()
	var digest [DigestLen]field.Element
	copy(digest[:], t.state[:DigestLen])
	return digest
}

// Hash10 hashes exactly one rate's worth (10) of field elements.
func Hash10(input [Rate]field.Element) [DigestLen]field.Element {
	sponge := New(FixedLength)
	copy(sponge.state[:Rate], input[:])
	return squeezeDigest(sponge)
}

// HashPair hashes two digests together, the operation Merkle tree
// construction uses at every internal node.
func HashPair(left, right [DigestLen]field.Element) [DigestLen]field.Element {
	sponge := New(FixedLength)
	copy(sponge.state[:DigestLen], left[:])
	copy(sponge.state[DigestLen:2*DigestLen], right[:])
	return squeezeDigest(sponge)
}

// HashVarlen hashes an arbitrary-length sequence of field elements.
func HashVarlen(input []field.Element) [DigestLen]field.Element {
	sponge := Init()
	sponge.PadAndAbsorbAll(input)
	var digest [DigestLen]field.Element
	copy(digest[:], sponge.state[:DigestLen])
	return digest
}

// Tip5Permutation runs the permutation over a standalone 5-element state,
// for callers (e.g. the Fiat-Shamir transcript) that don't need a full
// sponge lifecycle.
func Tip5Permutation(state [5]field.Element) [5]field.Element {
	t := New(VariableLength)
	copy(t.state[:5], state[:])
	t.Permutation()
	var result [5]field.Element
	copy(result[:], t.state[:5])
	return result
}

// Absorb loads Rate elements into the state and permutes.
func (t *Tip5) Absorb(input [Rate]field.Element) {
	copy(t.state[:Rate], input[:])
	t.Permutation()
}

// Squeeze reads Rate elements out of the state and permutes again, ready
// for the next squeeze.
func (t *Tip5) Squeeze() [Rate]field.Element {
	var output [Rate]field.Element
	copy(output[:], t.state[:Rate])
	t.Permutation()
	return output
}

// PadAndAbsorbAll absorbs input in Rate-sized chunks, appending a single
// 1 followed by zeros to the final (possibly empty) chunk.
func (t *Tip5) PadAndAbsorbAll(input []field.Element) {
	i := 0
	for ; i+Rate <= len(input); i += Rate {
		var chunk [Rate]field.Element
		copy(chunk[:], input[i:i+Rate])
		t.Absorb(chunk)
	}

	var last [Rate]field.Element
	remaining := copy(last[:], input[i:])
	last[remaining] = field.One
	t.Absorb(last)
}

// Trace runs the permutation and returns the state after every round,
// including the initial state — the full execution trace a hash-table AIR
// constraint needs, where Permutation alone only gives the final state.
func (t *Tip5) Trace() [1 + NumRounds][StateSize]field.Element {
	var trace [1 + NumRounds][StateSize]field.Element
	trace[0] = t.state
	for round := 0; round < NumRounds; round++ {
		t.round(round)
		trace[1+round] = t.state
	}
	return trace
}

// SampleIndices draws numIndices pseudorandom values uniformly from
// [0, upperBound) (a power of two) via squeeze-then-reject sampling: an
// element whose canonical value equals field.Max would bias the low bits,
// so such draws are discarded and re-squeezed.
func (t *Tip5) SampleIndices(upperBound uint32, numIndices int) []uint32 {
	if upperBound == 0 || (upperBound&(upperBound-1)) != 0 {
		panic("upperBound must be a power of 2")
	}

	indices := make([]uint32, 0, numIndices)
	var pool []field.Element

	for len(indices) < numIndices {
		if len(pool) == 0 {
			squeezed := t.Squeeze()
			pool = make([]field.Element, Rate)
			for i, e := range squeezed {
				pool[Rate-1-i] = e
			}
		}

		candidate := pool[len(pool)-1]
		pool = pool[:len(pool)-1]

		if candidate != field.Max {
			indices = append(indices, uint32(candidate.Value())%upperBound)
		}
	}

	return indices
}

// SampleScalars draws numElements pseudorandom extension-field scalars,
// each built from 3 consecutive squeezed base elements. If the squeeze
// count isn't an exact multiple of what's needed, the remainder of the
// last squeeze is simply left unused.
func (t *Tip5) SampleScalars(numElements int) ([]xfield.XFieldElement, error) {
	const extensionDegree = 3

	numSqueezes := (numElements*extensionDegree + Rate - 1) / Rate
	pool := make([]field.Element, 0, numSqueezes*Rate)
	for i := 0; i < numSqueezes; i++ {
		squeezed := t.Squeeze()
		pool = append(pool, squeezed[:]...)
	}

	scalars := make([]xfield.XFieldElement, 0, numElements)
	for i := 0; i+extensionDegree <= len(pool) && len(scalars) < numElements; i += extensionDegree {
		scalars = append(scalars, xfield.New([extensionDegree]field.Element{pool[i], pool[i+1], pool[i+2]}))
	}

	return scalars, nil
}
