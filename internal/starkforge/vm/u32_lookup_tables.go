package vm

import (
	"fmt"

	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/protocols"
)

// lookup8BitSBox evaluates L(x) = (x+1)^3 - 1, the 8-bit S-box TIP-0005
// uses for its cascading range-check argument.
func lookup8BitSBox(x byte) field.Element {
	xPlusOne := field.New(uint64(x)).Add(field.One)
	cubed := xPlusOne.Mul(xPlusOne).Mul(xPlusOne)
	return cubed.Sub(field.One)
}

// Lookup8Bit is the exported form of lookup8BitSBox, used wherever a
// caller outside this file needs the raw S-box value.
func Lookup8Bit(x byte) field.Element { return lookup8BitSBox(x) }

// noConstraints is the constant empty constraint set every not-yet-wired
// Create*Constraints method below returns.
func noConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

// U32TableImpl proves correctness of 32-bit bitwise and comparison
// operations (AND, XOR, LT, shifts, ...) via a lookup argument rather than
// by encoding each operation's bit logic directly into AIR constraints.
type U32TableImpl struct {
	copyFlag           []field.Element // is this row a carry-over copy of the previous one?
	bits               []field.Element // bit width remaining in the operation (0-33)
	bitsMinus33Inv     []field.Element // inverse of (bits - 33), for boundary detection
	ci                 []field.Element // which U32 operation this row belongs to
	lhs                []field.Element
	lhsInv             []field.Element // inverse of lhs, for zero detection
	rhs                []field.Element
	rhsInv             []field.Element
	result             []field.Element
	lookupMultiplicity []field.Element

	lookupLogDeriv []field.Element // server side of the lookup argument

	height       int
	paddedHeight int
}

func NewU32Table() *U32TableImpl {
	return &U32TableImpl{
		copyFlag:           make([]field.Element, 0),
		bits:               make([]field.Element, 0),
		bitsMinus33Inv:     make([]field.Element, 0),
		ci:                 make([]field.Element, 0),
		lhs:                make([]field.Element, 0),
		lhsInv:             make([]field.Element, 0),
		rhs:                make([]field.Element, 0),
		rhsInv:             make([]field.Element, 0),
		result:             make([]field.Element, 0),
		lookupMultiplicity: make([]field.Element, 0),
		lookupLogDeriv:     make([]field.Element, 0),
	}
}

func (ut *U32TableImpl) GetID() TableID { return U32Table }

func (ut *U32TableImpl) GetHeight() int { return ut.height }

func (ut *U32TableImpl) GetPaddedHeight() int { return ut.paddedHeight }

func (ut *U32TableImpl) GetMainColumns() [][]field.Element {
	return [][]field.Element{
		ut.copyFlag, ut.bits, ut.bitsMinus33Inv, ut.ci,
		ut.lhs, ut.lhsInv, ut.rhs, ut.rhsInv,
		ut.result, ut.lookupMultiplicity,
	}
}

func (ut *U32TableImpl) GetAuxiliaryColumns() [][]field.Element {
	return [][]field.Element{ut.lookupLogDeriv}
}

func (ut *U32TableImpl) AddRow(entry *U32Entry) error {
	if entry == nil {
		return fmt.Errorf("U32 entry cannot be nil")
	}

	ut.copyFlag = append(ut.copyFlag, entry.CopyFlag)
	ut.bits = append(ut.bits, entry.Bits)
	ut.bitsMinus33Inv = append(ut.bitsMinus33Inv, entry.BitsMinus33Inv)
	ut.ci = append(ut.ci, entry.CurrentInstruction)
	ut.lhs = append(ut.lhs, entry.LHS)
	ut.lhsInv = append(ut.lhsInv, entry.LHSInv)
	ut.rhs = append(ut.rhs, entry.RHS)
	ut.rhsInv = append(ut.rhsInv, entry.RHSInv)
	ut.result = append(ut.result, entry.Result)
	ut.lookupMultiplicity = append(ut.lookupMultiplicity, entry.LookupMultiplicity)
	ut.lookupLogDeriv = append(ut.lookupLogDeriv, field.Zero)

	ut.height++
	return nil
}

func (ut *U32TableImpl) Pad(targetHeight int) error {
	if targetHeight < ut.height || ut.height == 0 {
		return fmt.Errorf("invalid padding: target=%d, current=%d", targetHeight, ut.height)
	}

	lastIdx := ut.height - 1
	n := targetHeight - ut.height

	ut.copyFlag = padColumn(ut.copyFlag, lastIdx, n)
	ut.bits = padColumn(ut.bits, lastIdx, n)
	ut.bitsMinus33Inv = padColumn(ut.bitsMinus33Inv, lastIdx, n)
	ut.ci = padColumn(ut.ci, lastIdx, n)
	ut.lhs = padColumn(ut.lhs, lastIdx, n)
	ut.lhsInv = padColumn(ut.lhsInv, lastIdx, n)
	ut.rhs = padColumn(ut.rhs, lastIdx, n)
	ut.rhsInv = padColumn(ut.rhsInv, lastIdx, n)
	ut.result = padColumn(ut.result, lastIdx, n)
	for i := 0; i < n; i++ {
		ut.lookupMultiplicity = append(ut.lookupMultiplicity, field.Zero)
	}
	ut.lookupLogDeriv = padColumn(ut.lookupLogDeriv, lastIdx, n)

	ut.paddedHeight = targetHeight
	return nil
}

// CreateInitialConstraints would pin row 0's bits, lhs, rhs, and result to
// their operation-specific starting values.
func (ut *U32TableImpl) CreateInitialConstraints() ([]protocols.AIRConstraint, error) { return noConstraints() }

// CreateConsistencyConstraints would enforce copyFlag is boolean and that
// lhsInv/rhsInv are each zero or the true inverse of lhs/rhs.
func (ut *U32TableImpl) CreateConsistencyConstraints() ([]protocols.AIRConstraint, error) {
	return noConstraints()
}

// CreateTransitionConstraints would enforce that every U32 operation's bit
// logic (AND, XOR, LT, shift, ...) is consistent row to row; this table
// leans on the lookup argument against the cascade table rather than
// encoding each operation's semantics directly.
func (ut *U32TableImpl) CreateTransitionConstraints() ([]protocols.AIRConstraint, error) {
	return noConstraints()
}

func (ut *U32TableImpl) CreateTerminalConstraints() ([]protocols.AIRConstraint, error) { return noConstraints() }

// U32Entry is one 32-bit operation's input/output tuple awaiting insertion
// into the U32 table.
type U32Entry struct {
	CopyFlag           field.Element
	Bits               field.Element
	BitsMinus33Inv     field.Element
	CurrentInstruction field.Element
	LHS                field.Element
	LHSInv             field.Element
	RHS                field.Element
	RHSInv             field.Element
	Result             field.Element
	LookupMultiplicity field.Element
}

// CascadeTableImpl is the TIP-0005 cascade table: it decomposes every
// 16-bit value the hash table needs range-checked into two 8-bit limbs,
// acting as a lookup server to the hash table and a lookup client of the
// 8-bit table below.
type CascadeTableImpl struct {
	lookInHi           []field.Element
	lookInLo           []field.Element
	lookOutHi          []field.Element
	lookOutLo          []field.Element
	lookupMultiplicity []field.Element
	isPadding          []field.Element

	hashTableLogDeriv   []field.Element // server role: hash table's lookups into this table
	lookupTableLogDeriv []field.Element // client role: this table's lookups into the 8-bit table

	height       int
	paddedHeight int
}

func NewCascadeTable() *CascadeTableImpl {
	return &CascadeTableImpl{
		lookInHi:            make([]field.Element, 0),
		lookInLo:            make([]field.Element, 0),
		lookOutHi:           make([]field.Element, 0),
		lookOutLo:           make([]field.Element, 0),
		lookupMultiplicity:  make([]field.Element, 0),
		isPadding:           make([]field.Element, 0),
		hashTableLogDeriv:   make([]field.Element, 0),
		lookupTableLogDeriv: make([]field.Element, 0),
	}
}

func (ct *CascadeTableImpl) GetID() TableID { return CascadeTable }

func (ct *CascadeTableImpl) GetHeight() int { return ct.height }

func (ct *CascadeTableImpl) GetPaddedHeight() int { return ct.paddedHeight }

func (ct *CascadeTableImpl) GetMainColumns() [][]field.Element {
	return [][]field.Element{ct.lookInHi, ct.lookInLo, ct.lookOutHi, ct.lookOutLo, ct.lookupMultiplicity, ct.isPadding}
}

func (ct *CascadeTableImpl) GetAuxiliaryColumns() [][]field.Element {
	return [][]field.Element{ct.hashTableLogDeriv, ct.lookupTableLogDeriv}
}

// AddRow decomposes a 16-bit input into high/low bytes and records both
// halves' S-box outputs.
func (ct *CascadeTableImpl) AddRow(input16 uint16, multiplicity uint64) error {
	inputLo := byte(input16 & 0xff)
	inputHi := byte((input16 >> 8) & 0xff)

	ct.lookInHi = append(ct.lookInHi, field.New(uint64(inputHi)))
	ct.lookInLo = append(ct.lookInLo, field.New(uint64(inputLo)))
	ct.lookOutHi = append(ct.lookOutHi, lookup8BitSBox(inputHi))
	ct.lookOutLo = append(ct.lookOutLo, lookup8BitSBox(inputLo))
	ct.lookupMultiplicity = append(ct.lookupMultiplicity, field.New(multiplicity))
	ct.isPadding = append(ct.isPadding, field.Zero)

	ct.hashTableLogDeriv = append(ct.hashTableLogDeriv, field.Zero)
	ct.lookupTableLogDeriv = append(ct.lookupTableLogDeriv, field.Zero)

	ct.height++
	return nil
}

func (ct *CascadeTableImpl) Pad(targetHeight int) error {
	if targetHeight < ct.height || ct.height == 0 {
		return fmt.Errorf("invalid padding")
	}
	lastIdx := ct.height - 1
	n := targetHeight - ct.height

	ct.lookInHi = padColumn(ct.lookInHi, lastIdx, n)
	ct.lookInLo = padColumn(ct.lookInLo, lastIdx, n)
	ct.lookOutHi = padColumn(ct.lookOutHi, lastIdx, n)
	ct.lookOutLo = padColumn(ct.lookOutLo, lastIdx, n)
	for i := 0; i < n; i++ {
		ct.lookupMultiplicity = append(ct.lookupMultiplicity, field.Zero)
		ct.isPadding = append(ct.isPadding, field.One)
	}
	ct.hashTableLogDeriv = padColumn(ct.hashTableLogDeriv, lastIdx, n)
	ct.lookupTableLogDeriv = padColumn(ct.lookupTableLogDeriv, lastIdx, n)

	ct.paddedHeight = targetHeight
	return nil
}

func (ct *CascadeTableImpl) CreateInitialConstraints() ([]protocols.AIRConstraint, error) { return noConstraints() }

func (ct *CascadeTableImpl) CreateConsistencyConstraints() ([]protocols.AIRConstraint, error) {
	return noConstraints()
}

// CreateTransitionConstraints would enforce lookOutHi/lookOutLo equal
// lookup8BitSBox applied to lookInHi/lookInLo, tying this table's rows to
// the 8-bit lookup table via a lookup argument instead of recomputing the
// S-box in-circuit.
func (ct *CascadeTableImpl) CreateTransitionConstraints() ([]protocols.AIRConstraint, error) {
	return noConstraints()
}

func (ct *CascadeTableImpl) CreateTerminalConstraints() ([]protocols.AIRConstraint, error) { return noConstraints() }

// LookupTableImpl is the base 8-bit lookup table: all 256 inputs and their
// S-box outputs, each tagged with how many times cascade rows referenced
// it. Every range check in the system bottoms out here.
type LookupTableImpl struct {
	lookupIndex        []field.Element
	lookupValue        []field.Element
	lookupMultiplicity []field.Element

	lookupLogDeriv []field.Element

	height       int
	paddedHeight int
}

func NewLookupTable() *LookupTableImpl {
	return &LookupTableImpl{
		lookupIndex:        make([]field.Element, 0),
		lookupValue:        make([]field.Element, 0),
		lookupMultiplicity: make([]field.Element, 0),
		lookupLogDeriv:     make([]field.Element, 0),
	}
}

func (lt *LookupTableImpl) GetID() TableID { return LookupTable }

func (lt *LookupTableImpl) GetHeight() int { return lt.height }

func (lt *LookupTableImpl) GetPaddedHeight() int { return lt.paddedHeight }

func (lt *LookupTableImpl) GetMainColumns() [][]field.Element {
	return [][]field.Element{lt.lookupIndex, lt.lookupValue, lt.lookupMultiplicity}
}

func (lt *LookupTableImpl) GetAuxiliaryColumns() [][]field.Element {
	return [][]field.Element{lt.lookupLogDeriv}
}

func (lt *LookupTableImpl) AddRow(index, value, multiplicity field.Element) error {
	lt.lookupIndex = append(lt.lookupIndex, index)
	lt.lookupValue = append(lt.lookupValue, value)
	lt.lookupMultiplicity = append(lt.lookupMultiplicity, multiplicity)
	lt.lookupLogDeriv = append(lt.lookupLogDeriv, field.Zero)
	lt.height++
	return nil
}

func (lt *LookupTableImpl) Pad(targetHeight int) error {
	if targetHeight < lt.height || lt.height == 0 {
		return fmt.Errorf("invalid padding")
	}
	lastIdx := lt.height - 1
	n := targetHeight - lt.height

	lt.lookupIndex = padColumn(lt.lookupIndex, lastIdx, n)
	lt.lookupValue = padColumn(lt.lookupValue, lastIdx, n)
	for i := 0; i < n; i++ {
		lt.lookupMultiplicity = append(lt.lookupMultiplicity, field.Zero)
	}
	lt.lookupLogDeriv = padColumn(lt.lookupLogDeriv, lastIdx, n)

	lt.paddedHeight = targetHeight
	return nil
}

func (lt *LookupTableImpl) CreateInitialConstraints() ([]protocols.AIRConstraint, error) { return noConstraints() }

func (lt *LookupTableImpl) CreateConsistencyConstraints() ([]protocols.AIRConstraint, error) {
	return noConstraints()
}

func (lt *LookupTableImpl) CreateTransitionConstraints() ([]protocols.AIRConstraint, error) {
	return noConstraints()
}

func (lt *LookupTableImpl) CreateTerminalConstraints() ([]protocols.AIRConstraint, error) { return noConstraints() }

// PrecomputeLookupTable builds a lookup table of the identity function over
// [0, maxValue], useful for plain range checks that don't need the
// TIP-0005 S-box.
func PrecomputeLookupTable(maxValue int) *LookupTableImpl {
	table := NewLookupTable()
	for i := 0; i <= maxValue; i++ {
		index := field.New(uint64(i))
		_ = table.AddRow(index, index, field.Zero) // multiplicity filled in during execution
	}
	return table
}

// Fill populates all 256 rows of the base lookup table with the TIP-0005
// S-box and the multiplicities accumulated during execution.
func (lt *LookupTableImpl) Fill(multiplicities [256]uint64) error {
	const tableSize = 256

	lt.lookupIndex = make([]field.Element, tableSize)
	lt.lookupValue = make([]field.Element, tableSize)
	lt.lookupMultiplicity = make([]field.Element, tableSize)
	lt.lookupLogDeriv = make([]field.Element, tableSize)

	for i := 0; i < tableSize; i++ {
		lt.lookupIndex[i] = field.New(uint64(i))
		lt.lookupValue[i] = lookup8BitSBox(byte(i))
		lt.lookupMultiplicity[i] = field.New(multiplicities[i])
		lt.lookupLogDeriv[i] = field.Zero // filled in during extension
	}

	lt.height = tableSize
	return nil
}
