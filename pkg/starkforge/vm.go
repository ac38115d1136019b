package starkforge

import (
	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/vm"
)

// VM is the public interface for the STARK virtual machine.
type VM interface {
	// Execute runs a program on the VM and returns the execution trace.
	Execute(program *Program, publicInput []FieldElement, secretInput []FieldElement) (*ExecutionTrace, error)

	// GetState returns the current VM state.
	GetState() *VMState
}

// VMState represents the current state of the VM (read-only).
type VMState struct {
	// InstructionPointer is the current instruction pointer.
	InstructionPointer int

	// StackPointer is the current stack pointer.
	StackPointer int

	// CycleCount is the number of cycles executed so far.
	CycleCount int

	// Halted reports whether the VM has halted.
	Halted bool

	// PublicOutput is the public output stream so far.
	PublicOutput []FieldElement
}

// vmImpl is the internal implementation of VM.
type vmImpl struct {
	config  *VMConfig
	vmState *vm.VMState
	program *vm.Program
}

// NewVM creates a new VM with the given configuration.
func NewVM(config *VMConfig) (VM, error) {
	if config == nil {
		return nil, &VMError{
			Code:    ErrInvalidConfig,
			Message: "config cannot be nil",
		}
	}

	return &vmImpl{config: config}, nil
}

// Execute runs a program on the VM and returns the execution trace.
func (v *vmImpl) Execute(program *Program, publicInput []FieldElement, secretInput []FieldElement) (*ExecutionTrace, error) {
	internalProgram := vm.NewProgram()

	for _, inst := range program.Instructions {
		var arg *field.Element
		if inst.Argument != nil {
			a := *inst.Argument
			arg = &a
		}
		internalInst := &vm.EncodedInstruction{
			Instruction: vm.Instruction(inst.Opcode),
			Argument:    arg,
		}
		internalProgram.AddInstruction(internalInst)
	}

	v.vmState = vm.NewVMState(internalProgram, publicInput, secretInput)
	v.program = internalProgram

	aet, err := v.vmState.ExecuteAndTrace()
	if err != nil {
		return nil, &VMError{
			Code:    ErrVMExecution,
			Message: "VM execution failed: " + err.Error(),
			Cause:   err,
		}
	}

	trace := &ExecutionTrace{
		PublicInput:  publicInput,
		PublicOutput: v.vmState.PublicOutput,
		CycleCount:   int(v.vmState.CycleCount),
		internalAET:  aet,
	}

	return trace, nil
}

// GetState returns the current VM state.
func (v *vmImpl) GetState() *VMState {
	if v.vmState == nil {
		return &VMState{}
	}

	return &VMState{
		InstructionPointer: v.vmState.InstructionPointer,
		StackPointer:       v.vmState.StackPointer,
		CycleCount:         int(v.vmState.CycleCount),
		Halted:             v.vmState.Halting,
		PublicOutput:       v.vmState.PublicOutput,
	}
}

// DefaultVMConfig returns a default VM configuration.
func DefaultVMConfig() *VMConfig {
	return &VMConfig{
		ProgramAttestation: true,
		PermutationChecks:  true,
		LookupTables:       true,
	}
}
