package protocols

import (
	"fmt"

	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/hash"
	"github.com/starkforge/starkforge/internal/starkforge/merkle"
	"github.com/starkforge/starkforge/internal/starkforge/xfield"
)

// Fri implements the FRI low-degree proximity protocol over the extension
// field. The domain is the coset offset*<omega> of length DomainLength.
//
// Grounded on the round structure used throughout: a commit phase that
// repeatedly folds the codeword and commits each round's values to a
// Merkle tree, a Fiat-Shamir index-sampling phase, and a query phase
// that reveals authenticated openings at the sampled indices for every
// pair of consecutive rounds.
type Fri struct {
	Offset                 xfield.XFieldElement
	Omega                  xfield.XFieldElement
	DomainLength           int
	ExpansionFactor        int
	ColinearityChecksCount int
}

// CodewordEvaluation pairs a domain index with the function value revealed
// there during the first round of querying.
type CodewordEvaluation struct {
	Index int
	Value xfield.XFieldElement
}

// NewFri constructs a Fri instance over the coset offset*<omega>.
func NewFri(offset, omega field.Element, domainLength, expansionFactor, colinearityChecksCount int) *Fri {
	return &Fri{
		Offset:                 xfield.NewConst(offset),
		Omega:                  xfield.NewConst(omega),
		DomainLength:           domainLength,
		ExpansionFactor:        expansionFactor,
		ColinearityChecksCount: colinearityChecksCount,
	}
}

// NumRounds returns the number of folding rounds together with the maximum
// admissible degree of the codeword handed to the final round.
//
// When the requested number of colinearity checks exceeds the expansion
// factor, the last rounds are dropped: folding stops early, leaving a final
// codeword whose honest degree is bounded by 2^missed - 1 rather than 0,
// since continuing to fold would leave fewer codeword positions than the
// check budget needs to query.
func (f *Fri) NumRounds() (roundsCount int, maxDegreeOfLastRound int) {
	maxDegree := f.DomainLength/f.ExpansionFactor - 1
	roundsCount = log2Ceil(uint64(maxDegree) + 1)

	if f.ExpansionFactor < f.ColinearityChecksCount {
		ratio := (f.ColinearityChecksCount + f.ExpansionFactor - 1) / f.ExpansionFactor
		numMissedRounds := log2Ceil(uint64(ratio))
		roundsCount -= numMissedRounds
		maxDegreeOfLastRound = (1 << uint(numMissedRounds)) - 1
	}

	return roundsCount, maxDegreeOfLastRound
}

// log2Ceil returns ceil(log2(x)) for x >= 1.
func log2Ceil(x uint64) int {
	if x <= 1 {
		return 0
	}
	n := 0
	v := x - 1
	for v > 0 {
		v >>= 1
		n++
	}
	return n
}

// Prove runs the FRI commit and query phases against the given codeword,
// writing every round's Merkle root, the final codeword, and the queried
// authentication structures directly to the proof stream. It returns the
// top-level indices sampled for querying, which the caller (the STARK
// prover) needs to correlate FRI's opened values with its own trace and
// quotient openings.
func (f *Fri) Prove(codeword []xfield.XFieldElement, ps *ProofStream) ([]int, error) {
	if len(codeword) != f.DomainLength {
		return nil, fmt.Errorf("fri: codeword length %d does not match domain length %d", len(codeword), f.DomainLength)
	}

	codewords, trees, err := f.commit(codeword, ps)
	if err != nil {
		return nil, err
	}

	lastCodeword := codewords[len(codewords)-1]
	flat := xfield.AsFlatSlice(lastCodeword)
	if err := ps.Enqueue(ProofItem{Type: ProofItemFieldElements, Data: flat}); err != nil {
		return nil, fmt.Errorf("fri: failed to enqueue final codeword: %w", err)
	}

	rounds, _ := f.NumRounds()
	lastCodewordLength := f.DomainLength >> uint(rounds)
	if f.ColinearityChecksCount > lastCodewordLength {
		return nil, fmt.Errorf("fri: colinearity checks count %d exceeds last codeword length %d", f.ColinearityChecksCount, lastCodewordLength)
	}

	topLevelIndices, err := ps.SampleIndices(lastCodewordLength, f.ColinearityChecksCount)
	if err != nil {
		return nil, fmt.Errorf("fri: failed to sample indices: %w", err)
	}

	cIndices := append([]int{}, topLevelIndices...)
	for i := 0; i < len(trees)-1; i++ {
		halfLen := len(codewords[i]) / 2
		for j := range cIndices {
			cIndices[j] = cIndices[j] % halfLen
		}
		if err := f.query(trees[i], trees[i+1], cIndices, ps); err != nil {
			return nil, fmt.Errorf("fri: query failed at round %d: %w", i, err)
		}
	}

	return topLevelIndices, nil
}

// commit performs the repeated folding and returns every round's codeword
// and the Merkle tree committing to it, in round order.
func (f *Fri) commit(codeword []xfield.XFieldElement, ps *ProofStream) ([][]xfield.XFieldElement, []*merkle.MerkleTree, error) {
	rounds, _ := f.NumRounds()

	generator := f.Omega
	offset := f.Offset
	current := codeword

	codewords := make([][]xfield.XFieldElement, 0, rounds+1)
	trees := make([]*merkle.MerkleTree, 0, rounds+1)

	tree, err := buildXFieldMerkleTree(current)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to commit initial codeword: %w", err)
	}
	if err := ps.Enqueue(ProofItem{Type: ProofItemMerkleRoot, Data: digestToBytes(tree.Root())}); err != nil {
		return nil, nil, err
	}
	codewords = append(codewords, current)
	trees = append(trees, tree)

	two := xfield.NewConst(field.New(2))
	twoInv := two.Inverse()

	for round := 0; round < rounds; round++ {
		n := len(current)

		scalars, err := ps.SampleScalars(1)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to sample round %d challenge: %w", round, err)
		}
		alpha := scalars[0]

		next := make([]xfield.XFieldElement, n/2)
		x := offset
		for i := 0; i < n/2; i++ {
			aAlpha := alpha.Mul(x.Inverse())
			onePlus := xfield.One.Add(aAlpha)
			oneMinus := xfield.One.Sub(aAlpha)
			next[i] = twoInv.Mul(onePlus.Mul(current[i]).Add(oneMinus.Mul(current[i+n/2])))
			x = x.Mul(generator)
		}

		generator = generator.Mul(generator)
		offset = offset.Mul(offset)
		current = next

		nextTree, err := buildXFieldMerkleTree(current)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to commit round %d codeword: %w", round, err)
		}
		if err := ps.Enqueue(ProofItem{Type: ProofItemMerkleRoot, Data: digestToBytes(nextTree.Root())}); err != nil {
			return nil, nil, err
		}
		codewords = append(codewords, current)
		trees = append(trees, nextTree)
	}

	return codewords, trees, nil
}

// query reveals, via de-duplicated authentication structures, the a/b
// openings on the current round's tree and the c openings on the next
// round's tree, for the given folded indices.
func (f *Fri) query(current, next *merkle.MerkleTree, cIndices []int, ps *ProofStream) error {
	halfLeafs := int(current.NumLeafs()) / 2

	abIndices := make([]merkle.MerkleTreeLeafIndex, 0, 2*len(cIndices))
	for _, idx := range cIndices {
		abIndices = append(abIndices, merkle.MerkleTreeLeafIndex(idx))
	}
	for _, idx := range cIndices {
		abIndices = append(abIndices, merkle.MerkleTreeLeafIndex(idx+halfLeafs))
	}

	abProof, err := current.NewInclusionProof(abIndices)
	if err != nil {
		return fmt.Errorf("failed to build a/b proof: %w", err)
	}
	if err := ps.Enqueue(ProofItem{Type: ProofItemAuthenticationStructure, Data: abProof}); err != nil {
		return err
	}

	cLeafIndices := make([]merkle.MerkleTreeLeafIndex, len(cIndices))
	for i, idx := range cIndices {
		cLeafIndices[i] = merkle.MerkleTreeLeafIndex(idx)
	}
	cProof, err := next.NewInclusionProof(cLeafIndices)
	if err != nil {
		return fmt.Errorf("failed to build c proof: %w", err)
	}
	if err := ps.Enqueue(ProofItem{Type: ProofItemAuthenticationStructure, Data: cProof}); err != nil {
		return err
	}

	return nil
}

// Verify checks a FRI proof read from the proof stream and returns the
// first round's codeword evaluations for the caller to cross-check
// against its own combination codeword.
func (f *Fri) Verify(ps *ProofStream) ([]CodewordEvaluation, error) {
	rounds, degreeOfLastRound := f.NumRounds()

	omega := f.Omega
	offset := f.Offset

	roots := make([]hash.Digest, 0, rounds+1)
	alphas := make([]xfield.XFieldElement, 0, rounds)

	root0, err := dequeueRoot(ps)
	if err != nil {
		return nil, err
	}
	roots = append(roots, root0)

	for i := 0; i < rounds; i++ {
		scalars, err := ps.SampleScalars(1)
		if err != nil {
			return nil, fmt.Errorf("fri: failed to sample round %d challenge: %w", i, err)
		}
		alphas = append(alphas, scalars[0])

		root, err := dequeueRoot(ps)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}

	lastCodeword, err := dequeueXFieldElements(ps)
	if err != nil {
		return nil, err
	}

	lastTree, err := buildXFieldMerkleTree(lastCodeword)
	if err != nil {
		return nil, fmt.Errorf("fri: failed to rebuild last codeword tree: %w", err)
	}
	if !lastTree.Root().Equal(roots[len(roots)-1]) {
		return nil, fmt.Errorf("fri: bad Merkle root for last codeword")
	}

	lastOmega := omega
	lastOffset := offset
	for i := 0; i < rounds; i++ {
		lastOmega = lastOmega.Mul(lastOmega)
		lastOffset = lastOffset.Mul(lastOffset)
	}

	coeffs := interpolateCoset(lastCodeword, lastOffset, lastOmega)
	if xfieldDegree(coeffs) > degreeOfLastRound {
		return nil, fmt.Errorf("fri: last codeword has degree exceeding %d", degreeOfLastRound)
	}

	lastCodewordLength := f.DomainLength >> uint(rounds)
	topLevelIndices, err := ps.SampleIndices(lastCodewordLength, f.ColinearityChecksCount)
	if err != nil {
		return nil, fmt.Errorf("fri: failed to sample indices: %w", err)
	}

	var evaluations []CodewordEvaluation

	for r := 0; r < rounds; r++ {
		codewordLength := f.DomainLength >> uint(r+1)

		aIndices := make([]int, len(topLevelIndices))
		bIndices := make([]int, len(topLevelIndices))
		for i, idx := range topLevelIndices {
			aIndices[i] = idx % codewordLength
			bIndices[i] = aIndices[i] + codewordLength
		}

		abItem, err := ps.Dequeue()
		if err != nil {
			return nil, fmt.Errorf("fri: failed to dequeue a/b proof at round %d: %w", r, err)
		}
		abProof, ok := abItem.Data.(*merkle.MerkleTreeInclusionProof)
		if !ok {
			return nil, fmt.Errorf("fri: malformed a/b proof at round %d", r)
		}

		cItem, err := ps.Dequeue()
		if err != nil {
			return nil, fmt.Errorf("fri: failed to dequeue c proof at round %d: %w", r, err)
		}
		cProof, ok := cItem.Data.(*merkle.MerkleTreeInclusionProof)
		if !ok {
			return nil, fmt.Errorf("fri: malformed c proof at round %d", r)
		}

		if !abProof.Verify(roots[r]) || !cProof.Verify(roots[r+1]) {
			return nil, fmt.Errorf("fri: bad Merkle proof at round %d", r)
		}

		if len(abProof.IndexedLeafs) != 2*f.ColinearityChecksCount || len(cProof.IndexedLeafs) != f.ColinearityChecksCount {
			return nil, fmt.Errorf("fri: unexpected proof size at round %d", r)
		}

		abValues := indexedDigestsToMap(abProof.IndexedLeafs)
		cValues := indexedDigestsToMap(cProof.IndexedLeafs)

		for i := 0; i < f.ColinearityChecksCount; i++ {
			ax := offset.Mul(omega.Pow(uint64(aIndices[i])))
			bx := offset.Mul(omega.Pow(uint64(bIndices[i])))
			cx := alphas[r]

			ay, ok := abValues[uint64(aIndices[i])]
			if !ok {
				return nil, fmt.Errorf("fri: missing a value at round %d index %d", r, aIndices[i])
			}
			by, ok := abValues[uint64(bIndices[i])]
			if !ok {
				return nil, fmt.Errorf("fri: missing b value at round %d index %d", r, bIndices[i])
			}
			cy, ok := cValues[uint64(aIndices[i])]
			if !ok {
				return nil, fmt.Errorf("fri: missing c value at round %d index %d", r, aIndices[i])
			}

			if !areColinear(ax, ay, bx, by, cx, cy) {
				return nil, fmt.Errorf("fri: colinearity check failed at round %d point %d", r, i)
			}

			if r == 0 {
				evaluations = append(evaluations, CodewordEvaluation{Index: aIndices[i], Value: ay})
				evaluations = append(evaluations, CodewordEvaluation{Index: bIndices[i], Value: by})
			}
		}

		omega = omega.Mul(omega)
		offset = offset.Mul(offset)
	}

	return evaluations, nil
}

// areColinear checks whether (x0,y0), (x1,y1), (x2,y2) lie on a single
// line over the extension field, without computing a division: the cross
// product (y1-y0)*(x2-x0) must equal (y2-y0)*(x1-x0).
func areColinear(x0, y0, x1, y1, x2, y2 xfield.XFieldElement) bool {
	lhs := y1.Sub(y0).Mul(x2.Sub(x0))
	rhs := y2.Sub(y0).Mul(x1.Sub(x0))
	return lhs.Equal(rhs)
}

// interpolateCoset computes the coefficient representation of the unique
// degree < n polynomial through (offset*omega^i, codeword[i]) for i in
// [0, n), via an O(n^2) coset inverse DFT. Last-round codewords are small
// enough that this does not need the fast NTT machinery.
func interpolateCoset(codeword []xfield.XFieldElement, offset, omega xfield.XFieldElement) []xfield.XFieldElement {
	n := len(codeword)
	if n == 0 {
		return nil
	}

	omegaInv := omega.Inverse()
	nInv := xfield.NewConst(field.New(uint64(n)).Inverse())
	offsetInv := offset.Inverse()

	d := make([]xfield.XFieldElement, n)
	for j := 0; j < n; j++ {
		omegaInvJ := omegaInv.Pow(uint64(j))
		sum := xfield.Zero
		power := xfield.One
		for i := 0; i < n; i++ {
			sum = sum.Add(codeword[i].Mul(power))
			power = power.Mul(omegaInvJ)
		}
		d[j] = sum.Mul(nInv)
	}

	coeffs := make([]xfield.XFieldElement, n)
	offsetInvPow := xfield.One
	for j := 0; j < n; j++ {
		coeffs[j] = d[j].Mul(offsetInvPow)
		offsetInvPow = offsetInvPow.Mul(offsetInv)
	}

	return coeffs
}

// xfieldDegree returns the degree of a coefficient slice, or -1 for the
// zero polynomial.
func xfieldDegree(coeffs []xfield.XFieldElement) int {
	for i := len(coeffs) - 1; i >= 0; i-- {
		if !coeffs[i].IsZero() {
			return i
		}
	}
	return -1
}

func buildXFieldMerkleTree(codeword []xfield.XFieldElement) (*merkle.MerkleTree, error) {
	leafs := make([]hash.Digest, len(codeword))
	for i, v := range codeword {
		leafs[i] = hash.Digest(v.ToDigest())
	}
	return merkle.New(leafs)
}

func digestToBytes(d hash.Digest) []byte {
	b := d.ToBytes()
	return b[:]
}

func dequeueRoot(ps *ProofStream) (hash.Digest, error) {
	item, err := ps.Dequeue()
	if err != nil {
		return hash.Digest{}, fmt.Errorf("fri: failed to dequeue Merkle root: %w", err)
	}
	raw, ok := item.Data.([]byte)
	if !ok || len(raw) != hash.DigestLen*8 {
		return hash.Digest{}, fmt.Errorf("fri: malformed Merkle root item")
	}
	var arr [hash.DigestLen * 8]byte
	copy(arr[:], raw)
	return hash.DigestFromBytes(arr), nil
}

func dequeueXFieldElements(ps *ProofStream) ([]xfield.XFieldElement, error) {
	item, err := ps.Dequeue()
	if err != nil {
		return nil, fmt.Errorf("fri: failed to dequeue final codeword: %w", err)
	}
	flat, ok := item.Data.([]field.Element)
	if !ok || len(flat)%xfield.ExtensionDegree != 0 {
		return nil, fmt.Errorf("fri: malformed final codeword item")
	}
	result := make([]xfield.XFieldElement, len(flat)/xfield.ExtensionDegree)
	for i := range result {
		xfe, err := xfield.FromBFieldSlice(flat[i*xfield.ExtensionDegree : (i+1)*xfield.ExtensionDegree])
		if err != nil {
			return nil, err
		}
		result[i] = *xfe
	}
	return result, nil
}

func indexedDigestsToMap(pairs []merkle.LeafIndexDigestPair) map[uint64]xfield.XFieldElement {
	out := make(map[uint64]xfield.XFieldElement, len(pairs))
	for _, pair := range pairs {
		xfe := xfield.FromDigest(pair.Digest.Values())
		if xfe == nil {
			continue
		}
		out[uint64(pair.Index)] = *xfe
	}
	return out
}
