package protocols

import (
	"crypto/rand"
	"fmt"

	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/hash"
	"github.com/starkforge/starkforge/internal/starkforge/merkle"
	"github.com/starkforge/starkforge/internal/starkforge/polynomial"
	"github.com/starkforge/starkforge/internal/starkforge/xfield"
)

// Prover generates STARK proofs for VM execution traces.
//
// The Prover implements the following workflow:
// 1. Derives arithmetic domains for all polynomial operations
// 2. Constructs and commits to the execution trace
// 3. Samples challenges via the proof stream's Fiat-Shamir sponge
// 4. Computes quotient polynomials from the AIR constraints
// 5. Applies the DEEP technique and runs the FRI protocol
// 6. Packages everything into a Proof
type Prover struct {
	params STARKParameters

	// randomnessSeed must be sampled uniformly at random and kept secret
	// from the verifier; it seeds the trace randomizers used for
	// zero-knowledge.
	randomnessSeed []byte
}

// NewProver creates a new prover with the given parameters.
func NewProver(params STARKParameters) (*Prover, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid STARK parameters: %w", err)
	}

	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to generate randomness seed: %w", err)
	}

	return &Prover{
		params:         params,
		randomnessSeed: seed,
	}, nil
}

// SetRandomnessSeed sets a deterministic seed for testing.
//
// WARNING: Using a fixed seed breaks zero-knowledge! Only use this for
// testing or when zero-knowledge is not required.
func (p *Prover) SetRandomnessSeed(seed []byte) *Prover {
	p.randomnessSeed = seed
	return p
}

// ExecutionTrace is what the prover needs from an execution trace. This
// interface avoids a circular import between protocols and vm.
type ExecutionTrace interface {
	GetPaddedHeight() int
	GetTableData() interface{}
	GetTraceColumns() ([][]field.Element, error)
}

// numChallenges is the number of Fiat-Shamir challenges sampled as the
// weights that combine the AIR constraints into the composition polynomial.
const numChallenges = 20

// Prove generates a STARK proof for the given claim and execution trace.
func (p *Prover) Prove(claim *Claim, trace ExecutionTrace) (*Proof, error) {
	if claim == nil {
		return nil, fmt.Errorf("claim cannot be nil")
	}
	if trace == nil {
		return nil, fmt.Errorf("trace cannot be nil")
	}
	if err := claim.Validate(); err != nil {
		return nil, fmt.Errorf("invalid claim: %w", err)
	}

	ps := NewProofStream()
	if err := ps.AlterFiatShamirStateWith(claim); err != nil {
		return nil, fmt.Errorf("failed to absorb claim into transcript: %w", err)
	}

	paddedHeight := trace.GetPaddedHeight()
	if err := ps.Enqueue(ProofItem{Type: ProofItemLog2PaddedHeight, Data: ilog2(paddedHeight)}); err != nil {
		return nil, fmt.Errorf("failed to enqueue padded height: %w", err)
	}

	domains, err := p.deriveDomains(paddedHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to derive domains: %w", err)
	}

	masterTable, err := p.createMasterTable(trace.GetTableData(), domains)
	if err != nil {
		return nil, fmt.Errorf("failed to create master table: %w", err)
	}

	if err := p.extendTable(masterTable, domains); err != nil {
		return nil, fmt.Errorf("failed to extend table: %w", err)
	}

	traceTree, err := masterTable.BuildMerkleTree()
	if err != nil {
		return nil, fmt.Errorf("failed to commit to trace: %w", err)
	}
	if err := ps.Enqueue(ProofItem{Type: ProofItemMerkleRoot, Data: digestToBytes(traceTree.Root())}); err != nil {
		return nil, fmt.Errorf("failed to enqueue trace root: %w", err)
	}

	challenges := sampleFieldElements(ps, numChallenges)

	quotients, err := p.computeQuotients(masterTable, domains, challenges)
	if err != nil {
		return nil, fmt.Errorf("failed to compute quotients: %w", err)
	}

	quotientEvaluations, quotientTree, err := p.commitToQuotients(quotients, domains)
	if err != nil {
		return nil, fmt.Errorf("failed to commit to quotients: %w", err)
	}
	if err := ps.Enqueue(ProofItem{Type: ProofItemMerkleRoot, Data: digestToBytes(quotientTree.Root())}); err != nil {
		return nil, fmt.Errorf("failed to enqueue quotient root: %w", err)
	}

	oodPoint := sampleFieldElements(ps, 1)[0]

	oodValues, err := p.evaluateAtOOD(masterTable, quotients, oodPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate at OOD point: %w", err)
	}
	if err := ps.Enqueue(ProofItem{Type: ProofItemFieldElements, Data: oodValues}); err != nil {
		return nil, fmt.Errorf("failed to enqueue OOD evaluations: %w", err)
	}

	quotientOOD := oodValues[len(oodValues)-len(quotients):]
	deepCodeword, err := p.applyDEEP(quotientEvaluations, domains, oodPoint, quotientOOD)
	if err != nil {
		return nil, fmt.Errorf("failed to apply DEEP: %w", err)
	}

	fri := NewFri(domains.FRI.Offset, domains.FRI.Generator, len(deepCodeword), p.params.FRIExpansionFactor, p.params.NumCollinearityChecks)
	xCodeword := make([]xfield.XFieldElement, len(deepCodeword))
	for i, v := range deepCodeword {
		xCodeword[i] = xfield.NewConst(v)
	}
	topLevelIndices, err := fri.Prove(xCodeword, ps)
	if err != nil {
		return nil, fmt.Errorf("FRI protocol failed: %w", err)
	}

	if err := p.openQueryRows(masterTable, quotientEvaluations, traceTree, quotientTree, domains, topLevelIndices, ps); err != nil {
		return nil, fmt.Errorf("failed to open query rows: %w", err)
	}

	proof := ps.ToProof()
	if err := proof.Validate(); err != nil {
		return nil, fmt.Errorf("generated invalid proof: %w", err)
	}

	return proof, nil
}

// sampleFieldElements draws n base-field elements directly from the proof
// stream's Fiat-Shamir sponge, squeezing additional rate-sized blocks as
// needed.
func sampleFieldElements(ps *ProofStream, n int) []field.Element {
	out := make([]field.Element, 0, n)
	for len(out) < n {
		squeezed := ps.Sponge.Squeeze()
		out = append(out, squeezed[:]...)
	}
	return out[:n]
}

// deriveDomains computes all arithmetic domains needed for proving.
func (p *Prover) deriveDomains(paddedHeight int) (*ProverDomains, error) {
	randomizedLen := p.params.RandomizedTraceLength(paddedHeight)
	friDomainSize := randomizedLen * p.params.FRIExpansionFactor
	friDomain, err := NewArithmeticDomain(friDomainSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create FRI arithmetic domain: %w", err)
	}
	friDomain = friDomain.WithOffset(field.Generator())

	maxDegree := p.params.MaxDegree(paddedHeight)

	domains, err := DeriveProverDomains(paddedHeight, p.params.NumTraceRandomizers, friDomain, maxDegree)
	if err != nil {
		return nil, fmt.Errorf("failed to derive domains (paddedHeight=%d, randomizers=%d, friDomainSize=%d): %w",
			paddedHeight, p.params.NumTraceRandomizers, friDomainSize, err)
	}

	return domains, nil
}

// createMasterTable creates the master execution table from trace data.
func (p *Prover) createMasterTable(traceData interface{}, domains *ProverDomains) (*MasterTable, error) {
	return NewMasterTable(traceData, domains, p.params.NumTraceRandomizers, p.randomnessSeed)
}

// extendTable performs low-degree extension on all table columns.
func (p *Prover) extendTable(table *MasterTable, domains *ProverDomains) error {
	return table.LowDegreeExtend(domains)
}

// computeQuotients computes the constraint quotient polynomials.
func (p *Prover) computeQuotients(
	table *MasterTable,
	domains *ProverDomains,
	challenges []field.Element,
) ([]*polynomial.Polynomial, error) {
	return table.ComputeQuotients(domains, challenges)
}

// commitToQuotients evaluates the quotients over the FRI domain and
// returns both the evaluations and the Merkle tree committing to them.
func (p *Prover) commitToQuotients(quotients []*polynomial.Polynomial, domains *ProverDomains) ([][]field.Element, *merkle.MerkleTree, error) {
	evaluations := make([][]field.Element, len(quotients))
	for i, q := range quotients {
		evals, err := domains.FRI.Evaluate(q)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to evaluate quotient %d: %w", i, err)
		}
		evaluations[i] = evals
	}

	tree, err := buildRowMerkleTree(evaluations)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build quotient Merkle tree: %w", err)
	}

	return evaluations, tree, nil
}

// buildRowMerkleTree hashes each row across a set of columns into a single
// Tip5 digest and commits those digests into a Merkle tree.
func buildRowMerkleTree(columns [][]field.Element) (*merkle.MerkleTree, error) {
	if len(columns) == 0 || len(columns[0]) == 0 {
		return nil, fmt.Errorf("cannot build Merkle tree over zero columns or rows")
	}

	numRows := len(columns[0])
	leafs := make([]hash.Digest, numRows)
	row := make([]field.Element, len(columns))
	for r := 0; r < numRows; r++ {
		for c := range columns {
			row[c] = columns[c][r]
		}
		leafs[r] = hash.Digest(hash.HashVarlen(row))
	}

	return merkle.New(leafs)
}

// evaluateAtOOD evaluates the trace columns and the quotients at the
// out-of-domain point.
func (p *Prover) evaluateAtOOD(
	table *MasterTable,
	quotients []*polynomial.Polynomial,
	oodPoint field.Element,
) ([]field.Element, error) {
	values, err := table.EvaluateAtPoint(oodPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate trace at OOD: %w", err)
	}

	for _, q := range quotients {
		values = append(values, q.Evaluate(oodPoint))
	}

	return values, nil
}

// applyDEEP applies the DEEP (sampling outside the box) technique:
// (f(X) - f(z)) / (X - z), where z is the out-of-domain point. This
// transforms the low-degree proximity problem so a quotient that is
// genuinely low-degree stays low-degree, while a cheating quotient is
// revealed as a pole at z.
func (p *Prover) applyDEEP(
	quotientEvaluations [][]field.Element,
	domains *ProverDomains,
	oodPoint field.Element,
	oodValues []field.Element,
) ([]field.Element, error) {
	if len(quotientEvaluations) == 0 {
		return nil, fmt.Errorf("no quotient evaluations")
	}

	codeword := quotientEvaluations[0]
	oodValue := oodValues[0]
	friDomainElements := domains.FRI.Elements()

	if len(codeword) != len(friDomainElements) {
		return nil, fmt.Errorf("codeword length %d doesn't match FRI domain length %d",
			len(codeword), len(friDomainElements))
	}

	deepCodeword := make([]field.Element, len(codeword))
	for i, x := range friDomainElements {
		numerator := codeword[i].Sub(oodValue)
		denominator := x.Sub(oodPoint)
		if denominator.IsZero() {
			return nil, fmt.Errorf("DEEP division by zero at index %d", i)
		}
		deepCodeword[i] = numerator.Div(denominator)
	}

	return deepCodeword, nil
}

// openQueryRows reveals, for every FRI-queried domain position, the full
// trace row and quotient row underneath it, together with their Merkle
// authentication structures. This ties FRI's low-degree claim about the
// DEEP codeword back to the actual committed execution trace: the
// verifier recomputes the DEEP value from the opened rows and checks it
// against the value FRI itself reports for that position.
//
// Indices are interleaved as [a0, b0, a1, b1, ...] to match the order in
// which Fri.Verify reports its round-0 codeword evaluations.
func (p *Prover) openQueryRows(
	table *MasterTable,
	quotientEvaluations [][]field.Element,
	traceTree, quotientTree *merkle.MerkleTree,
	domains *ProverDomains,
	topLevelIndices []int,
	ps *ProofStream,
) error {
	domainHalf := domains.FRI.Length / 2

	leafIndices := make([]merkle.MerkleTreeLeafIndex, 0, 2*len(topLevelIndices))
	queryIndices := make([]int, 0, 2*len(topLevelIndices))
	for _, idx := range topLevelIndices {
		a := idx % domainHalf
		b := a + domainHalf
		leafIndices = append(leafIndices, merkle.MerkleTreeLeafIndex(a), merkle.MerkleTreeLeafIndex(b))
		queryIndices = append(queryIndices, a, b)
	}

	traceRows, err := table.GetRows(queryIndices)
	if err != nil {
		return fmt.Errorf("failed to extract trace rows: %w", err)
	}
	traceProof, err := traceTree.NewInclusionProof(leafIndices)
	if err != nil {
		return fmt.Errorf("failed to build trace query proof: %w", err)
	}
	if err := ps.Enqueue(ProofItem{Type: ProofItemMasterMainTableRows, Data: traceRows}); err != nil {
		return err
	}
	if err := ps.Enqueue(ProofItem{Type: ProofItemAuthenticationStructure, Data: traceProof}); err != nil {
		return err
	}

	quotientRows := rowsAt(quotientEvaluations, queryIndices)
	quotientProof, err := quotientTree.NewInclusionProof(leafIndices)
	if err != nil {
		return fmt.Errorf("failed to build quotient query proof: %w", err)
	}
	if err := ps.Enqueue(ProofItem{Type: ProofItemQuotientSegmentsElements, Data: quotientRows}); err != nil {
		return err
	}
	if err := ps.Enqueue(ProofItem{Type: ProofItemAuthenticationStructure, Data: quotientProof}); err != nil {
		return err
	}

	return nil
}

// rowsAt extracts a sparse set of rows, indexed by position, from a set of
// columns.
func rowsAt(columns [][]field.Element, indices []int) [][]field.Element {
	rows := make([][]field.Element, len(indices))
	for i, idx := range indices {
		row := make([]field.Element, len(columns))
		for c := range columns {
			row[c] = columns[c][idx]
		}
		rows[i] = row
	}
	return rows
}

// ilog2 computes the integer log2 (number of bits - 1).
func ilog2(n int) int {
	if n <= 0 {
		return 0
	}
	log := 0
	for n > 1 {
		n >>= 1
		log++
	}
	return log
}
