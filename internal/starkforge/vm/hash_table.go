package vm

import (
	"fmt"

	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/protocols"
)

// hashTableWidth is the width of the Poseidon state this table records one
// round of per row.
const hashTableWidth = 16

// HashTableImpl records every round of every Poseidon permutation run
// during execution, so hash operations can be proved correct via an
// evaluation argument against the processor table.
//
// Triton VM's hash table is built around Tip5; ours is built around
// Poseidon instead, for field-friendly arithmetic and because it shares
// more of its structure with this codebase's existing sponge and S-box
// implementations.
type HashTableImpl struct {
	// state[k] is column k of the 16-wide Poseidon state, one entry per row.
	state [hashTableWidth][]field.Element

	roundNumber    []field.Element
	isFullRound    []field.Element // boolean: full S-box round?
	isPartialRound []field.Element // boolean: partial S-box round?

	hashEvalArg []field.Element // cross-table evaluation argument

	height       int
	paddedHeight int

	poseidonWidth int
	numRounds     int
}

func NewHashTable(poseidonWidth, numRounds int) *HashTableImpl {
	ht := &HashTableImpl{
		roundNumber:    make([]field.Element, 0),
		isFullRound:    make([]field.Element, 0),
		isPartialRound: make([]field.Element, 0),
		hashEvalArg:    make([]field.Element, 0),
		poseidonWidth:  poseidonWidth,
		numRounds:      numRounds,
	}
	for i := range ht.state {
		ht.state[i] = make([]field.Element, 0)
	}
	return ht
}

func (ht *HashTableImpl) GetID() TableID { return HashTable }

func (ht *HashTableImpl) GetHeight() int { return ht.height }

func (ht *HashTableImpl) GetPaddedHeight() int { return ht.paddedHeight }

func (ht *HashTableImpl) GetMainColumns() [][]field.Element {
	cols := make([][]field.Element, 0, hashTableWidth+3)
	for i := range ht.state {
		cols = append(cols, ht.state[i])
	}
	return append(cols, ht.roundNumber, ht.isFullRound, ht.isPartialRound)
}

func (ht *HashTableImpl) GetAuxiliaryColumns() [][]field.Element {
	return [][]field.Element{ht.hashEvalArg}
}

// AddRow appends one Poseidon round's state and control bits to the table.
func (ht *HashTableImpl) AddRow(entry *HashEntry) error {
	if entry == nil {
		return fmt.Errorf("hash entry cannot be nil")
	}
	if len(entry.State) != hashTableWidth {
		return fmt.Errorf("hash entry state must have exactly %d elements, got %d", hashTableWidth, len(entry.State))
	}

	for i := 0; i < hashTableWidth; i++ {
		ht.state[i] = append(ht.state[i], entry.State[i])
	}
	ht.roundNumber = append(ht.roundNumber, entry.RoundNumber)
	ht.isFullRound = append(ht.isFullRound, entry.IsFullRound)
	ht.isPartialRound = append(ht.isPartialRound, entry.IsPartialRound)
	ht.hashEvalArg = append(ht.hashEvalArg, field.Zero) // filled in during proving

	ht.height++
	return nil
}

// Pad repeats the table's last row until it reaches targetHeight.
func (ht *HashTableImpl) Pad(targetHeight int) error {
	if targetHeight < ht.height {
		return fmt.Errorf("target height %d is less than current height %d", targetHeight, ht.height)
	}
	if ht.height == 0 {
		return fmt.Errorf("cannot pad empty table")
	}

	lastIdx := ht.height - 1
	paddingRows := targetHeight - ht.height
	for i := 0; i < paddingRows; i++ {
		for k := 0; k < hashTableWidth; k++ {
			ht.state[k] = append(ht.state[k], ht.state[k][lastIdx])
		}
		ht.roundNumber = append(ht.roundNumber, ht.roundNumber[lastIdx])
		ht.isFullRound = append(ht.isFullRound, ht.isFullRound[lastIdx])
		ht.isPartialRound = append(ht.isPartialRound, ht.isPartialRound[lastIdx])
		ht.hashEvalArg = append(ht.hashEvalArg, ht.hashEvalArg[lastIdx])
	}

	ht.paddedHeight = targetHeight
	return nil
}

// CreateInitialConstraints would pin row 0: roundNumber = 0, isFullRound =
// 1, isPartialRound = 0, hashEvalArg at its default initial value. Not yet
// encoded as AIRConstraint values — the table tracks what the constraint
// set needs to say, not yet how to say it as polynomials.
func (ht *HashTableImpl) CreateInitialConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

// CreateConsistencyConstraints would enforce: isFullRound and
// isPartialRound are each boolean, exactly one of them holds per row, and
// roundNumber stays within [0, numRounds) via a range-check lookup.
func (ht *HashTableImpl) CreateConsistencyConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

// CreateTransitionConstraints would enforce the Poseidon round function
// itself between consecutive rows: round-constant addition, S-box
// (full rounds apply it to every state element, partial rounds to state[0]
// only), the MDS mix, round-number advance/wraparound, and the hashEvalArg
// update at hash boundaries (roundNumber == 0 on absorb, roundNumber ==
// numRounds-1 on squeeze).
func (ht *HashTableImpl) CreateTransitionConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

// CreateTerminalConstraints would tie the table's final hashEvalArg value
// to the matching evaluation argument accumulated in the processor table.
func (ht *HashTableImpl) CreateTerminalConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

// UpdateHashEvaluationArgument recomputes the hashEvalArg column against a
// verifier-supplied indeterminate, linking this table's rows to the
// processor table's hash operations.
//
// The boundary logic (detecting absorb/squeeze rows and folding in
// compressed input/output) is not yet implemented; this carries the first
// row's value forward unchanged.
func (ht *HashTableImpl) UpdateHashEvaluationArgument(indeterminate field.Element) error {
	if ht.height == 0 {
		return fmt.Errorf("cannot update hash evaluation on empty table")
	}

	ht.hashEvalArg[0] = field.Zero
	for i := 1; i < ht.height; i++ {
		ht.hashEvalArg[i] = ht.hashEvalArg[i-1]
	}
	return nil
}

// HashEntry is one row of the hash table: a full Poseidon state snapshot
// plus the round metadata describing where in the permutation it sits.
type HashEntry struct {
	State          []field.Element
	RoundNumber    field.Element
	IsFullRound    field.Element
	IsPartialRound field.Element
}

func boolElement(b bool) field.Element {
	if b {
		return field.One
	}
	return field.Zero
}

func NewHashEntry(state []field.Element, roundNumber field.Element, isFullRound, isPartialRound bool) (*HashEntry, error) {
	if len(state) != hashTableWidth {
		return nil, fmt.Errorf("state must have exactly %d elements, got %d", hashTableWidth, len(state))
	}
	return &HashEntry{
		State:          state,
		RoundNumber:    roundNumber,
		IsFullRound:    boolElement(isFullRound),
		IsPartialRound: boolElement(isPartialRound),
	}, nil
}
