package vm

import (
	"fmt"

	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/protocols"
)

// stackWidth is the number of on-chip stack registers the processor table
// tracks per row.
const stackWidth = 16

// ProcessorTableImpl is the backbone trace: one row per VM cycle, carrying
// the clock, instruction pointer, decoded instruction bits, jump stack
// state, and the 16 on-chip stack registers. Every other coprocessor table
// is tied back to this one via permutation, evaluation, or lookup
// arguments.
type ProcessorTableImpl struct {
	clk           []field.Element // clock cycle
	ip            []field.Element // instruction pointer
	ci            []field.Element // current instruction
	nia           []field.Element // next instruction (or its argument)
	ib0, ib1, ib2 []field.Element // instruction bits, for decoding
	jsp, jso, jsd []field.Element // jump stack pointer, origin, destination
	stack         [stackWidth][]field.Element

	permArg []field.Element // permutation argument accumulator
	evalArg []field.Element // evaluation argument accumulator
	permrp  []field.Element // TIP-0007: permutation running product

	height       int
	paddedHeight int
}

func NewProcessorTable() *ProcessorTableImpl {
	pt := &ProcessorTableImpl{
		clk:     make([]field.Element, 0),
		ip:      make([]field.Element, 0),
		ci:      make([]field.Element, 0),
		nia:     make([]field.Element, 0),
		ib0:     make([]field.Element, 0),
		ib1:     make([]field.Element, 0),
		ib2:     make([]field.Element, 0),
		jsp:     make([]field.Element, 0),
		jso:     make([]field.Element, 0),
		jsd:     make([]field.Element, 0),
		permArg: make([]field.Element, 0),
		evalArg: make([]field.Element, 0),
		permrp:  make([]field.Element, 0),
	}
	for i := range pt.stack {
		pt.stack[i] = make([]field.Element, 0)
	}
	return pt
}

func (pt *ProcessorTableImpl) GetID() TableID { return ProcessorTable }

func (pt *ProcessorTableImpl) GetHeight() int { return pt.height }

func (pt *ProcessorTableImpl) GetPaddedHeight() int { return pt.paddedHeight }

func (pt *ProcessorTableImpl) GetMainColumns() [][]field.Element {
	cols := [][]field.Element{
		pt.clk, pt.ip, pt.ci, pt.nia,
		pt.ib0, pt.ib1, pt.ib2,
		pt.jsp, pt.jso, pt.jsd,
	}
	for i := range pt.stack {
		cols = append(cols, pt.stack[i])
	}
	return cols
}

func (pt *ProcessorTableImpl) GetAuxiliaryColumns() [][]field.Element {
	return [][]field.Element{pt.permArg, pt.evalArg, pt.permrp}
}

// GetColumns returns main and auxiliary columns concatenated, the shape
// the prover consumes when committing to the processor table's trace.
func (pt *ProcessorTableImpl) GetColumns() ([][]field.Element, error) {
	mainCols := pt.GetMainColumns()
	auxCols := pt.GetAuxiliaryColumns()

	allCols := make([][]field.Element, 0, len(mainCols)+len(auxCols))
	allCols = append(allCols, mainCols...)
	allCols = append(allCols, auxCols...)
	return allCols, nil
}

// AddRow appends one cycle's processor state.
func (pt *ProcessorTableImpl) AddRow(state *ProcessorState) error {
	if state == nil {
		return fmt.Errorf("processor state cannot be nil")
	}
	if len(state.Stack) != stackWidth {
		return fmt.Errorf("processor state must have exactly %d stack registers, got %d", stackWidth, len(state.Stack))
	}

	pt.clk = append(pt.clk, state.Clock)
	pt.ip = append(pt.ip, state.InstructionPointer)
	pt.ci = append(pt.ci, state.CurrentInstruction)
	pt.nia = append(pt.nia, state.NextInstructionOrArg)
	pt.ib0 = append(pt.ib0, state.InstructionBit0)
	pt.ib1 = append(pt.ib1, state.InstructionBit1)
	pt.ib2 = append(pt.ib2, state.InstructionBit2)
	pt.jsp = append(pt.jsp, state.JumpStackPointer)
	pt.jso = append(pt.jso, state.JumpStackOrigin)
	pt.jsd = append(pt.jsd, state.JumpStackDestination)

	for i := 0; i < stackWidth; i++ {
		pt.stack[i] = append(pt.stack[i], state.Stack[i])
	}

	pt.permArg = append(pt.permArg, field.Zero)
	pt.evalArg = append(pt.evalArg, field.Zero)
	pt.permrp = append(pt.permrp, field.One) // TIP-0007: running product starts at 1

	pt.height++
	return nil
}

// Pad repeats the last row to reach targetHeight.
func (pt *ProcessorTableImpl) Pad(targetHeight int) error {
	if targetHeight < pt.height {
		return fmt.Errorf("target height %d is less than current height %d", targetHeight, pt.height)
	}
	if pt.height == 0 {
		return fmt.Errorf("cannot pad empty table")
	}

	lastIdx := pt.height - 1
	n := targetHeight - pt.height

	pt.clk = padColumn(pt.clk, lastIdx, n)
	pt.ip = padColumn(pt.ip, lastIdx, n)
	pt.ci = padColumn(pt.ci, lastIdx, n)
	pt.nia = padColumn(pt.nia, lastIdx, n)
	pt.ib0 = padColumn(pt.ib0, lastIdx, n)
	pt.ib1 = padColumn(pt.ib1, lastIdx, n)
	pt.ib2 = padColumn(pt.ib2, lastIdx, n)
	pt.jsp = padColumn(pt.jsp, lastIdx, n)
	pt.jso = padColumn(pt.jso, lastIdx, n)
	pt.jsd = padColumn(pt.jsd, lastIdx, n)
	for i := range pt.stack {
		pt.stack[i] = padColumn(pt.stack[i], lastIdx, n)
	}
	pt.permArg = padColumn(pt.permArg, lastIdx, n)
	pt.evalArg = padColumn(pt.evalArg, lastIdx, n)
	if len(pt.permrp) > 0 {
		pt.permrp = padColumn(pt.permrp, lastIdx, n)
	}

	pt.paddedHeight = targetHeight
	return nil
}

// CreateInitialConstraints would pin row 0: clk, ip, jsp, and every stack
// register at zero — the VM's clean boot state.
func (pt *ProcessorTableImpl) CreateInitialConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

// CreateConsistencyConstraints would enforce: ib0, ib1, and ib2 are each
// boolean, and ci decodes to the instruction bits via
// ci = ib0 + 2*ib1 + 4*ib2 + ... (InstructionBits' encoding).
func (pt *ProcessorTableImpl) CreateConsistencyConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

// CreateTransitionConstraints would enforce, per instruction: clk advances
// by exactly one; ip advances sequentially except where CALL, RETURN,
// RECURSE, RECURSE_OR_RETURN, or a conditional jump redirect it; jsp/jso/jsd
// update only on CALL and RETURN; and the stack registers shift according
// to the instruction's argument count, with values beyond the 16 on-chip
// registers carried by the operational stack table instead. These are
// necessarily instruction-specific — one transition polynomial per opcode
// family, selected by the decoded instruction bits.
func (pt *ProcessorTableImpl) CreateTransitionConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

// CreateTerminalConstraints would pin the final row's current instruction
// to HALT, proving the program actually finished rather than the trace
// being truncated early.
func (pt *ProcessorTableImpl) CreateTerminalConstraints() ([]protocols.AIRConstraint, error) {
	return make([]protocols.AIRConstraint, 0), nil
}

// ProcessorState is a snapshot of the processor at a single cycle, ready to
// append to the processor table.
type ProcessorState struct {
	Clock                field.Element
	InstructionPointer   field.Element
	CurrentInstruction   field.Element
	NextInstructionOrArg field.Element
	InstructionBit0      field.Element
	InstructionBit1      field.Element
	InstructionBit2      field.Element
	JumpStackPointer     field.Element
	JumpStackOrigin      field.Element
	JumpStackDestination field.Element
	Stack                []field.Element // exactly stackWidth elements
}

// NewProcessorState returns a zeroed processor state, the VM's boot state.
func NewProcessorState() *ProcessorState {
	stack := make([]field.Element, stackWidth)
	for i := range stack {
		stack[i] = field.Zero
	}

	return &ProcessorState{
		Clock:                field.Zero,
		InstructionPointer:   field.Zero,
		CurrentInstruction:   field.Zero,
		NextInstructionOrArg: field.Zero,
		InstructionBit0:      field.Zero,
		InstructionBit1:      field.Zero,
		InstructionBit2:      field.Zero,
		JumpStackPointer:     field.Zero,
		JumpStackOrigin:      field.Zero,
		JumpStackDestination: field.Zero,
		Stack:                stack,
	}
}
