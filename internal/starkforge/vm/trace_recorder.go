package vm

import (
	"fmt"

	"github.com/starkforge/starkforge/internal/starkforge/field"
)

// SimpleTraceRecorder builds an AET by watching the processor execute one
// cycle at a time. It only populates the processor table directly;
// coprocessor tables (hash, RAM, U32, ...) are filled in by the VM's
// instruction handlers via recordCoProcessorCall as they run.
type SimpleTraceRecorder struct {
	aet        *AET
	cycleCount uint64
}

func NewSimpleTraceRecorder(program *Program) (*SimpleTraceRecorder, error) {
	if program == nil {
		return nil, fmt.Errorf("program cannot be nil")
	}

	aet, err := NewAET(program)
	if err != nil {
		return nil, fmt.Errorf("failed to create AET: %w", err)
	}

	return &SimpleTraceRecorder{aet: aet}, nil
}

// RecordState snapshots vm's state before the current instruction executes
// and bumps that instruction's execution count.
func (str *SimpleTraceRecorder) RecordState(vm *VMState) error {
	if vm.InstructionPointer < len(str.aet.InstructionMultiplicities) {
		str.aet.InstructionMultiplicities[vm.InstructionPointer]++
	}

	if err := str.recordProcessorState(vm); err != nil {
		return err
	}

	str.cycleCount++
	return nil
}

// currentInstruction returns the instruction at vm's instruction pointer,
// or Nop if the pointer has run off the end of the program.
func currentInstruction(vm *VMState) Instruction {
	inst, err := vm.CurrentInstruction()
	if err != nil {
		return Nop
	}
	return inst.Instruction
}

// jumpStackTop returns the origin and destination of the top jump stack
// frame, or zero for both if the jump stack is empty.
func jumpStackTop(vm *VMState) (origin, destination field.Element) {
	if len(vm.JumpStack) == 0 {
		return field.Zero, field.Zero
	}
	top := vm.JumpStack[len(vm.JumpStack)-1]
	return field.New(uint64(top.Origin)), field.New(uint64(top.Destination))
}

// stackSnapshot captures the top stackWidth elements of vm's stack,
// deepest-in-trace first, zero-filling any registers the stack hasn't
// reached yet.
func stackSnapshot(vm *VMState) []field.Element {
	snapshot := make([]field.Element, stackWidth)
	for i := range snapshot {
		if i < len(vm.Stack) {
			snapshot[i] = vm.Stack[len(vm.Stack)-1-i]
		} else {
			snapshot[i] = field.Zero
		}
	}
	return snapshot
}

func (str *SimpleTraceRecorder) recordProcessorState(vm *VMState) error {
	inst := currentInstruction(vm)
	nia := vm.InstructionPointer + inst.Size()

	opcode := uint64(uint32(inst))
	jso, jsd := jumpStackTop(vm)

	state := &ProcessorState{
		Clock:                field.New(vm.CycleCount),
		InstructionPointer:   field.New(uint64(vm.InstructionPointer)),
		CurrentInstruction:   field.New(uint64(inst)),
		NextInstructionOrArg: field.New(uint64(nia)),
		InstructionBit0:      field.New(opcode & 1),
		InstructionBit1:      field.New((opcode >> 1) & 1),
		InstructionBit2:      field.New((opcode >> 2) & 1),
		JumpStackPointer:     field.New(uint64(len(vm.JumpStack))),
		JumpStackOrigin:      jso,
		JumpStackDestination: jsd,
		Stack:                stackSnapshot(vm),
	}

	return str.aet.ProcessorTable.AddRow(state)
}

// GenerateAET pads every table to a common height and returns the finished
// trace, ready for proof generation.
func (str *SimpleTraceRecorder) GenerateAET() (*AET, error) {
	if err := str.aet.Pad(); err != nil {
		return nil, fmt.Errorf("failed to pad AET: %w", err)
	}
	return str.aet, nil
}
