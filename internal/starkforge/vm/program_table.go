package vm

import (
	"fmt"

	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/protocols"
)

// ProgramTableImpl answers the processor table's instruction-lookup queries
// and proves program attestation: that the instruction stream the processor
// actually ran hashes to ProgramDigest (TIP-0006).
//
// Instructions are grouped into fixed-size chunks (chunkRate wide) as they
// go into the Poseidon sponge that produces the digest; indexInChunk and
// maxMinusIndexInv track position within the current chunk so transition
// constraints can detect chunk boundaries.
type ProgramTableImpl struct {
	address            []field.Element // instruction address in program memory
	instruction        []field.Element
	lookupMultiplicity []field.Element // how many times the processor looked this up
	indexInChunk       []field.Element
	maxMinusIndexInv   []field.Element // inverse of (chunkRate-1 - indexInChunk), for boundary detection
	isHashInputPadding []field.Element
	isTablePadding     []field.Element

	instrLookupLogDeriv []field.Element // server side of the instruction lookup argument
	prepareChunkRunEval []field.Element // running evaluation absorbing instructions into the current chunk
	sendChunkRunEval    []field.Element // running evaluation of chunk digests sent to the hash table

	height       int
	paddedHeight int
	chunkRate    int
}

func NewProgramTable(chunkRate int) *ProgramTableImpl {
	return &ProgramTableImpl{
		address:             make([]field.Element, 0),
		instruction:         make([]field.Element, 0),
		lookupMultiplicity:  make([]field.Element, 0),
		indexInChunk:        make([]field.Element, 0),
		maxMinusIndexInv:    make([]field.Element, 0),
		isHashInputPadding:  make([]field.Element, 0),
		isTablePadding:      make([]field.Element, 0),
		instrLookupLogDeriv: make([]field.Element, 0),
		prepareChunkRunEval: make([]field.Element, 0),
		sendChunkRunEval:    make([]field.Element, 0),
		chunkRate:           chunkRate,
	}
}

func (pt *ProgramTableImpl) GetID() TableID { return ProgramTable }

func (pt *ProgramTableImpl) GetHeight() int { return pt.height }

func (pt *ProgramTableImpl) GetPaddedHeight() int { return pt.paddedHeight }

func (pt *ProgramTableImpl) GetMainColumns() [][]field.Element {
	return [][]field.Element{
		pt.address, pt.instruction, pt.lookupMultiplicity, pt.indexInChunk,
		pt.maxMinusIndexInv, pt.isHashInputPadding, pt.isTablePadding,
	}
}

func (pt *ProgramTableImpl) GetAuxiliaryColumns() [][]field.Element {
	return [][]field.Element{pt.instrLookupLogDeriv, pt.prepareChunkRunEval, pt.sendChunkRunEval}
}

// AddRow appends one (address, instruction) pair. Address monotonicity,
// opcode validity, and the indexInChunk range are left to consistency and
// transition constraints rather than checked here.
func (pt *ProgramTableImpl) AddRow(entry *ProgramEntry) error {
	if entry == nil {
		return fmt.Errorf("program entry cannot be nil")
	}

	pt.address = append(pt.address, entry.Address)
	pt.instruction = append(pt.instruction, entry.Instruction)
	pt.lookupMultiplicity = append(pt.lookupMultiplicity, entry.LookupMultiplicity)
	pt.indexInChunk = append(pt.indexInChunk, entry.IndexInChunk)
	pt.maxMinusIndexInv = append(pt.maxMinusIndexInv, entry.MaxMinusIndexInv)
	pt.isHashInputPadding = append(pt.isHashInputPadding, entry.IsHashInputPadding)
	pt.isTablePadding = append(pt.isTablePadding, entry.IsTablePadding)

	pt.instrLookupLogDeriv = append(pt.instrLookupLogDeriv, field.Zero)
	pt.prepareChunkRunEval = append(pt.prepareChunkRunEval, field.Zero)
	pt.sendChunkRunEval = append(pt.sendChunkRunEval, field.Zero)

	pt.height++
	return nil
}

// Pad repeats the last row to reach targetHeight, tagging every padding row
// as table padding and zeroing its lookup multiplicity (padding rows are
// never actually looked up).
func (pt *ProgramTableImpl) Pad(targetHeight int) error {
	if targetHeight < pt.height {
		return fmt.Errorf("target height %d is less than current height %d", targetHeight, pt.height)
	}
	if pt.height == 0 {
		return fmt.Errorf("cannot pad empty table")
	}

	lastIdx := pt.height - 1
	n := targetHeight - pt.height

	pt.address = padColumn(pt.address, lastIdx, n)
	pt.instruction = padColumn(pt.instruction, lastIdx, n)
	for i := 0; i < n; i++ {
		pt.lookupMultiplicity = append(pt.lookupMultiplicity, field.Zero)
		pt.isTablePadding = append(pt.isTablePadding, field.One)
	}
	pt.indexInChunk = padColumn(pt.indexInChunk, lastIdx, n)
	pt.maxMinusIndexInv = padColumn(pt.maxMinusIndexInv, lastIdx, n)
	pt.isHashInputPadding = padColumn(pt.isHashInputPadding, lastIdx, n)
	pt.instrLookupLogDeriv = padColumn(pt.instrLookupLogDeriv, lastIdx, n)
	pt.prepareChunkRunEval = padColumn(pt.prepareChunkRunEval, lastIdx, n)
	pt.sendChunkRunEval = padColumn(pt.sendChunkRunEval, lastIdx, n)

	pt.paddedHeight = targetHeight
	return nil
}

// CreateInitialConstraints would pin row 0: address = 0, indexInChunk = 0,
// isHashInputPadding = 0, instrLookupLogDeriv at its default initial value,
// prepareChunkRunEval seeded with the first instruction, and
// sendChunkRunEval at its default initial value.
func (pt *ProgramTableImpl) CreateInitialConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

// CreateConsistencyConstraints would enforce: maxMinusIndexInv is either
// zero or the true inverse of (chunkRate-1 - indexInChunk), via the usual
// two-polynomial inverse-or-zero idiom, and isHashInputPadding /
// isTablePadding are each boolean.
func (pt *ProgramTableImpl) CreateConsistencyConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

// CreateTransitionConstraints would enforce: address holds or advances by
// exactly one row to row; indexInChunk increments modulo chunkRate;
// instrLookupLogDeriv advances by lookupMultiplicity/(indeterminate -
// compressed(address, instruction)) per UpdateInstructionLookupLogDerivative's
// recurrence; prepareChunkRunEval folds in the next instruction or resets
// at a chunk boundary; and sendChunkRunEval absorbs the finished chunk's
// Poseidon digest at each boundary, holding otherwise. Program attestation
// falls out of chaining these three: chunks are assembled
// (prepareChunkRunEval), hashed, and the hashes accumulated
// (sendChunkRunEval) into a value the terminal constraint ties to the
// public program digest.
func (pt *ProgramTableImpl) CreateTransitionConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

// CreateTerminalConstraints would tie the final sendChunkRunEval to the
// publicly known program digest, completing the attestation.
func (pt *ProgramTableImpl) CreateTerminalConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

// UpdateInstructionLookupLogDerivative recomputes the server side of the
// lookup argument the processor table uses to prove every instruction it
// executed actually appears in the program.
func (pt *ProgramTableImpl) UpdateInstructionLookupLogDerivative(challenges map[string]field.Element) error {
	if pt.height == 0 {
		return fmt.Errorf("cannot update instruction lookup on empty table")
	}

	indeterminate, ok := challenges["instruction_lookup_indeterminate"]
	if !ok {
		return fmt.Errorf("missing instruction_lookup_indeterminate challenge")
	}
	addressWeight, ok := challenges["instruction_address_weight"]
	if !ok {
		return fmt.Errorf("missing instruction_address_weight challenge")
	}
	instrWeight, ok := challenges["instruction_weight"]
	if !ok {
		return fmt.Errorf("missing instruction_weight challenge")
	}

	pt.instrLookupLogDeriv[0] = field.Zero

	for i := 1; i < pt.height; i++ {
		multiplicity := pt.lookupMultiplicity[i-1]
		if multiplicity.Equal(field.Zero) {
			pt.instrLookupLogDeriv[i] = pt.instrLookupLogDeriv[i-1]
			continue
		}

		compressedRow := addressWeight.Mul(pt.address[i-1]).Add(instrWeight.Mul(pt.instruction[i-1]))
		inverse := indeterminate.Sub(compressedRow).Inverse()
		contribution := multiplicity.Mul(inverse)
		pt.instrLookupLogDeriv[i] = pt.instrLookupLogDeriv[i-1].Add(contribution)
	}

	return nil
}

// ProgramEntry is one (address, instruction) pair awaiting insertion into
// the program table.
type ProgramEntry struct {
	Address            field.Element
	Instruction        field.Element
	LookupMultiplicity field.Element
	IndexInChunk       field.Element
	MaxMinusIndexInv   field.Element
	IsHashInputPadding field.Element
	IsTablePadding     field.Element
}

func NewProgramEntry(address, instruction, lookupMultiplicity, indexInChunk field.Element) (*ProgramEntry, error) {
	return &ProgramEntry{
		Address:            address,
		Instruction:        instruction,
		LookupMultiplicity: lookupMultiplicity,
		IndexInChunk:       indexInChunk,
		MaxMinusIndexInv:   field.Zero, // filled in during preprocessing
		IsHashInputPadding: field.Zero,
		IsTablePadding:     field.Zero,
	}, nil
}
