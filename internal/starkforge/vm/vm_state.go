package vm

import (
	"fmt"

	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/hash"
)

// VMState is the full mutable state of one program run: registers, stack,
// RAM, I/O streams, and the bookkeeping the AIR tables need to turn a run
// into an execution trace.
type VMState struct {
	// Program memory (read-only)
	Program *Program

	// Public I/O
	PublicInput  []field.Element // Input stream
	PublicOutput []field.Element // Output stream
	InputPointer int             // Current position in public input

	// Secret inputs (for prover)
	SecretInput   []field.Element   // Non-deterministic divine inputs
	SecretDigests [][]field.Element // Merkle step digests (for Poseidon!)
	SecretPointer int               // Current position in secret input
	DigestPointer int               // Current position in secret digests

	// Random Access Memory
	RAM      map[field.Element]field.Element // Address -> Value
	RAMCalls []RAMCall                       // Record all RAM operations for trace

	// Operational Stack (16 on-chip registers + underflow to RAM)
	Stack        []field.Element // Stack elements (st0 is top)
	StackPointer int             // Number of elements on stack

	// Jump Stack (for call/return)
	JumpStack []VMJumpStackEntry

	// Execution state
	CycleCount         uint64 // Total cycles executed
	InstructionPointer int    // Current instruction address

	// Sponge state for Poseidon hashing
	Sponge *PoseidonSponge

	// Halting state
	Halting bool

	// Co-processor calls (recorded during execution)
	CoProcessorCalls []CoProcessorCall

	// TIP-0007: Permutation Check State
	PermutationRunningProduct field.Element   // Current running product (permrp)
	PermutationWeights        []field.Element // Fiat-Shamir weights for inner product (5 elements)
	PermutationAlpha          field.Element   // Fiat-Shamir indeterminate α
}

// VMJumpStackEntry represents an entry on the VM's jump stack
// (Different from the JumpStackEntry used in the JumpStack table)
type VMJumpStackEntry struct {
	Origin      int // Return address (where CALL was)
	Destination int // Target address (where we jumped to)
}

// RAMCall represents a RAM operation
type RAMCall struct {
	Clock   uint64
	IsWrite bool
	Address field.Element
	Value   field.Element
}

// CoProcessorCall represents a call to a coprocessor
type CoProcessorCall struct {
	Type CoProcessorType
	Data interface{} // Type-specific data
}

// CoProcessorType identifies which coprocessor was called
type CoProcessorType int

const (
	HashCoProcessor CoProcessorType = iota
	U32CoProcessor
	OpStackCoProcessor
	RAMCoProcessor
	SpongeResetCoProcessor
)

// PoseidonSponge represents the Poseidon sponge state
// This is our innovation - using Poseidon instead of Tip5!
type PoseidonSponge struct {
	State []field.Element // Full Poseidon state (16 elements)
	Rate  int             // Rate (how many elements absorbed/squeezed at once)
}

// NewVMState creates a new VM state with TIP-0006 program attestation
// Following Triton VM's approach: the operational stack is ALWAYS initialized with the program digest
func NewVMState(
	program *Program,
	publicInput []field.Element,
	secretInput []field.Element,
) *VMState {
	// TIP-0006: compute the program digest used for attestation.
	programDigest := computeProgramDigest(program)

	// Initialize stack with 16 zeros (on-chip registers)
	stack := make([]field.Element, 16)
	for i := 0; i < 16; i++ {
		stack[i] = field.Zero
	}

	// TIP-0006: Initialize stack with program digest (st0-st4)
	// Digest goes in reverse order: st0=digest[4], st1=digest[3], ..., st4=digest[0]
	// This matches Triton: stack[..Digest::LEN].copy_from_slice(&reverse_digest)
	for i := 0; i < 5 && i < len(programDigest); i++ {
		stack[i] = programDigest[4-i]
	}

	// TIP-0006: Initialize public output with program digest
	// The first 5 elements of public output are the program digest in standard order
	publicOutput := make([]field.Element, 5)
	copy(publicOutput, programDigest[:])

	return &VMState{
		Program:            program,
		PublicInput:        publicInput,
		PublicOutput:       publicOutput,
		InputPointer:       0,
		SecretInput:        secretInput,
		SecretDigests:      make([][]field.Element, 0),
		SecretPointer:      0,
		DigestPointer:      0,
		RAM:                make(map[field.Element]field.Element),
		RAMCalls:           make([]RAMCall, 0),
		Stack:              stack,
		StackPointer:       5, // TIP-0006: Stack initialized with 5 digest elements (matches Triton)
		JumpStack:          make([]VMJumpStackEntry, 0),
		CycleCount:         0,
		InstructionPointer: 0,
		Sponge:             nil,
		Halting:            false,
		CoProcessorCalls:   make([]CoProcessorCall, 0),

		// TIP-0007: Initialize permutation state
		// Running product starts at 1
		PermutationRunningProduct: field.One,
		// Weights and alpha: During VM execution, use deterministic values
		// During proof generation, these are replaced with Fiat-Shamir challenges
		PermutationWeights: generatePermutationWeights(),
		PermutationAlpha:   generatePermutationAlpha(),
	}
}

// generatePermutationWeights generates Fiat-Shamir weights for TIP-0007
// During VM execution: returns deterministic values for consistent behavior
// During proof generation: replaced with actual Fiat-Shamir transcript values
func generatePermutationWeights() []field.Element {
	// Generate 5 weights for inner product with top 5 stack elements
	// Using powers of a generator for pseudo-random values
	weights := make([]field.Element, 5)
	base := field.New(17) // Arbitrary non-zero generator
	weights[0] = field.One
	for i := 1; i < 5; i++ {
		weights[i] = weights[i-1].Mul(base)
	}
	return weights
}

// generatePermutationAlpha generates Fiat-Shamir indeterminate α for TIP-0007
// During VM execution: returns deterministic value for consistent behavior
// During proof generation: replaced with actual Fiat-Shamir transcript value
func generatePermutationAlpha() field.Element {
	// Use a fixed non-zero value distinct from weights
	return field.New(23)
}

// Run executes the program until halt or error
func (vm *VMState) Run() error {
	for !vm.Halting {
		if err := vm.Step(); err != nil {
			return fmt.Errorf("execution failed at cycle %d, IP %d: %w",
				vm.CycleCount, vm.InstructionPointer, err)
		}

		// Safety check to prevent infinite loops
		if vm.CycleCount > 1000000 {
			return fmt.Errorf("execution exceeded maximum cycles (1M)")
		}
	}
	return nil
}

// Step executes one instruction
func (vm *VMState) Step() error {
	if vm.Halting {
		return fmt.Errorf("machine already halted")
	}

	// Fetch instruction
	inst, err := vm.CurrentInstruction()
	if err != nil {
		return fmt.Errorf("failed to fetch instruction: %w", err)
	}

	// Check stack depth
	stackEffect := inst.Instruction.StackEffect()
	if stackEffect < 0 && vm.StackPointer < -stackEffect {
		return fmt.Errorf("stack underflow: need %d elements, have %d", -stackEffect, vm.StackPointer)
	}

	// Execute instruction (dispatch to handler)
	if err := vm.ExecuteInstruction(inst); err != nil {
		return fmt.Errorf("failed to execute %s: %w", inst.Instruction.String(), err)
	}

	// Increment cycle count
	vm.CycleCount++

	return nil
}

// CurrentInstruction fetches the current instruction
func (vm *VMState) CurrentInstruction() (*EncodedInstruction, error) {
	if vm.InstructionPointer < 0 || vm.InstructionPointer >= vm.Program.Length {
		return nil, fmt.Errorf("instruction pointer out of bounds: %d", vm.InstructionPointer)
	}

	// Get program words
	words := vm.Program.ToWords()

	// Decode instruction at current IP
	inst, err := DecodeInstruction(words, vm.InstructionPointer)
	if err != nil {
		return nil, fmt.Errorf("failed to decode instruction: %w", err)
	}

	return inst, nil
}

// instructionHandler executes one decoded instruction against vm state.
type instructionHandler func(*VMState, *EncodedInstruction) error

// dispatchTable maps every opcode to its handler. It replaces a per-call
// type switch with a single map lookup built once at package init, and it
// is the one place that must stay in sync with instructionRegistry: a gap
// here surfaces as "no handler" rather than a silent no-op.
var dispatchTable = buildDispatchTable()

func buildDispatchTable() map[Instruction]instructionHandler {
	arg := func(f func(*VMState, *EncodedInstruction) error) instructionHandler { return f }
	noArg := func(f func(*VMState) error) instructionHandler {
		return func(vm *VMState, _ *EncodedInstruction) error { return f(vm) }
	}

	return map[Instruction]instructionHandler{
		// stack manipulation
		Pop:    arg((*VMState).execPop),
		Push:   arg((*VMState).execPush),
		Divine: arg((*VMState).execDivine),
		Pick:   arg((*VMState).execPick),
		Place:  arg((*VMState).execPlace),
		Dup:    arg((*VMState).execDup),
		Swap:   arg((*VMState).execSwap),

		// control flow
		Halt:            noArg((*VMState).execHalt),
		Nop:             noArg((*VMState).execNop),
		Skiz:            noArg((*VMState).execSkiz),
		Call:            arg((*VMState).execCall),
		Return:          noArg((*VMState).execReturn),
		Recurse:         noArg((*VMState).execRecurse),
		RecurseOrReturn: noArg((*VMState).execRecurseOrReturn),
		Assert:          noArg((*VMState).execAssert),

		// memory access
		ReadMem:  arg((*VMState).execReadMem),
		WriteMem: arg((*VMState).execWriteMem),

		// hashing (Poseidon sponge)
		Hash:            noArg((*VMState).execHash),
		AssertVector:    noArg((*VMState).execAssertVector),
		SpongeInit:      noArg((*VMState).execSpongeInit),
		SpongeAbsorb:    noArg((*VMState).execSpongeAbsorb),
		SpongeAbsorbMem: noArg((*VMState).execSpongeAbsorbMem),
		SpongeSqueeze:   noArg((*VMState).execSpongeSqueeze),

		// base field arithmetic
		Add:    noArg((*VMState).execAdd),
		AddI:   arg((*VMState).execAddI),
		Mul:    noArg((*VMState).execMul),
		Invert: noArg((*VMState).execInvert),
		Eq:     noArg((*VMState).execEq),

		// u32 coprocessor
		Split:     noArg((*VMState).execSplit),
		Lt:        noArg((*VMState).execLt),
		And:       noArg((*VMState).execAnd),
		Xor:       noArg((*VMState).execXor),
		Log2Floor: noArg((*VMState).execLog2Floor),
		Pow:       noArg((*VMState).execPow),
		DivMod:    noArg((*VMState).execDivMod),
		PopCount:  noArg((*VMState).execPopCount),

		// extension field arithmetic
		XxAdd:   noArg((*VMState).execXxAdd),
		XxMul:   noArg((*VMState).execXxMul),
		XInvert: noArg((*VMState).execXInvert),
		XbMul:   noArg((*VMState).execXbMul),

		// public I/O
		ReadIo:  arg((*VMState).execReadIo),
		WriteIo: arg((*VMState).execWriteIo),

		// Merkle authentication and dot-product accumulation
		MerkleStep:    noArg((*VMState).execMerkleStep),
		MerkleStepMem: noArg((*VMState).execMerkleStepMem),
		XxDotStep:     noArg((*VMState).execXxDotStep),
		XbDotStep:     noArg((*VMState).execXbDotStep),

		// permutation-argument bookkeeping (TIP-0007)
		PushPerm:   noArg((*VMState).execPushPerm),
		PopPerm:    noArg((*VMState).execPopPerm),
		AssertPerm: noArg((*VMState).execAssertPerm),
	}
}

// ExecuteInstruction looks up and runs the handler for inst.Instruction.
func (vm *VMState) ExecuteInstruction(inst *EncodedInstruction) error {
	handler, ok := dispatchTable[inst.Instruction]
	if !ok {
		return fmt.Errorf("unknown instruction: %d", inst.Instruction)
	}
	return handler(vm, inst)
}

// Stack access helpers

// StackPush pushes value onto the stack. The first 16 slots live in the
// on-chip register array; beyond that, values overflow into RAM, addressed
// by how far past 16 the stack pointer has grown.
func (vm *VMState) StackPush(value field.Element) error {
	if vm.StackPointer < 16 {
		// Store in on-chip register (stack array)
		vm.Stack[vm.StackPointer] = value
		vm.StackPointer++
		return nil
	}

	// Stack overflow: store in RAM
	// Use stack pointer as RAM address (offset from base address 0)
	// In Triton VM, underflow values are stored at addresses based on the overflow count
	ramAddress := field.New(uint64(vm.StackPointer - 16))

	// Store value in RAM
	if vm.RAM == nil {
		vm.RAM = make(map[field.Element]field.Element)
	}
	vm.RAM[ramAddress] = value

	// Record RAM operation for trace
	vm.RAMCalls = append(vm.RAMCalls, RAMCall{
		Clock:   vm.CycleCount,
		IsWrite: true,
		Address: ramAddress,
		Value:   value,
	})

	vm.StackPointer++
	return nil
}

// StackPop pops the top of the stack, reading from RAM instead of the
// register array once the stack pointer has dropped back below the
// overflow threshold.
func (vm *VMState) StackPop() (field.Element, error) {
	if vm.StackPointer <= 0 {
		return field.Zero, fmt.Errorf("stack underflow")
	}

	vm.StackPointer--

	if vm.StackPointer < 16 {
		// Pop from on-chip register
		value := vm.Stack[vm.StackPointer]
		vm.Stack[vm.StackPointer] = field.Zero // Clear for safety
		return value, nil
	}

	// Stack underflow: read from RAM
	// Use stack pointer as RAM address (offset from base address 0)
	ramAddress := field.New(uint64(vm.StackPointer - 16))

	// Read value from RAM
	if vm.RAM == nil {
		return field.Zero, fmt.Errorf("stack underflow: RAM not initialized")
	}

	value, exists := vm.RAM[ramAddress]
	if !exists {
		return field.Zero, fmt.Errorf("stack underflow: value not found in RAM at address %d", ramAddress.Value())
	}

	// Record RAM read operation for trace
	vm.RAMCalls = append(vm.RAMCalls, RAMCall{
		Clock:   vm.CycleCount,
		IsWrite: false,
		Address: ramAddress,
		Value:   value,
	})

	return value, nil
}

// Peek at stack element (0 = top)
func (vm *VMState) StackPeek(depth int) (field.Element, error) {
	if depth < 0 || depth >= vm.StackPointer {
		return field.Zero, fmt.Errorf("stack peek out of bounds: depth %d, size %d", depth, vm.StackPointer)
	}

	return vm.Stack[vm.StackPointer-1-depth], nil
}

// Set stack element (0 = top)
func (vm *VMState) StackSet(depth int, value field.Element) error {
	if depth < 0 || depth >= vm.StackPointer {
		return fmt.Errorf("stack set out of bounds: depth %d, size %d", depth, vm.StackPointer)
	}

	vm.Stack[vm.StackPointer-1-depth] = value
	return nil
}

// RAM access helpers

// Read from RAM
func (vm *VMState) RAMRead(address field.Element) field.Element {
	if value, exists := vm.RAM[address]; exists {
		// Record RAM read
		vm.RAMCalls = append(vm.RAMCalls, RAMCall{
			Clock:   vm.CycleCount,
			IsWrite: false,
			Address: address,
			Value:   value,
		})
		return value
	}

	// Uninitialized RAM returns zero
	zero := field.Zero
	vm.RAMCalls = append(vm.RAMCalls, RAMCall{
		Clock:   vm.CycleCount,
		IsWrite: false,
		Address: address,
		Value:   zero,
	})
	return zero
}

// Write to RAM
func (vm *VMState) RAMWrite(address field.Element, value field.Element) {
	vm.RAM[address] = value

	// Record RAM write
	vm.RAMCalls = append(vm.RAMCalls, RAMCall{
		Clock:   vm.CycleCount,
		IsWrite: true,
		Address: address,
		Value:   value,
	})
}

// IncrementIP advances the instruction pointer past the current instruction
func (vm *VMState) IncrementIP() error {
	inst, err := vm.CurrentInstruction()
	if err != nil {
		return err
	}

	vm.InstructionPointer += inst.Instruction.Size()
	return nil
}

// Execute executes the loaded program step by step
func (vm *VMState) Execute() error {
	for vm.InstructionPointer < vm.Program.Length {
		// Fetch and execute current instruction
		inst, err := vm.CurrentInstruction()
		if err != nil {
			return fmt.Errorf("failed to fetch instruction at IP %d: %w", vm.InstructionPointer, err)
		}

		// Check for halt before execution
		if inst.Instruction == Halt {
			break
		}

		// Execute instruction
		if err := vm.ExecuteInstruction(inst); err != nil {
			return fmt.Errorf("execution failed at cycle %d, IP %d: %w",
				vm.CycleCount, vm.InstructionPointer, err)
		}

		// Increment cycle count
		vm.CycleCount++
	}
	return nil
}

// ExecuteAndTrace executes the loaded program and records the execution trace.
// Returns the Algebraic Execution Trace (AET) for proof generation.
//
// This follows Triton VM's approach:
// 1. Record state BEFORE each instruction
// 2. Execute the instruction
//
// Phase 4a focuses on processor trace. Coprocessor traces (RAM, Hash, U32)
// are deferred to Phase 4b.
func (vm *VMState) ExecuteAndTrace() (*AET, error) {
	// Create simple trace recorder (processor-focused)
	recorder, err := NewSimpleTraceRecorder(vm.Program)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace recorder: %w", err)
	}

	for vm.InstructionPointer < vm.Program.Length {
		// Fetch current instruction
		inst, err := vm.CurrentInstruction()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch instruction at IP %d: %w", vm.InstructionPointer, err)
		}

		// Check for halt before execution
		if inst.Instruction == Halt {
			// Record halt state
			if err := recorder.RecordState(vm); err != nil {
				return nil, fmt.Errorf("failed to record halt state: %w", err)
			}
			break
		}

		// STEP 1: Record state BEFORE execution (Triton's approach)
		if err := recorder.RecordState(vm); err != nil {
			return nil, fmt.Errorf("failed to record state at cycle %d: %w", vm.CycleCount, err)
		}

		// STEP 2: Execute instruction
		if err := vm.ExecuteInstruction(inst); err != nil {
			return nil, fmt.Errorf("execution failed at cycle %d, IP %d: %w",
				vm.CycleCount, vm.InstructionPointer, err)
		}

		// Increment cycle count
		vm.CycleCount++
	}

	// Generate final AET (pad tables, compute auxiliary columns)
	aet, err := recorder.GenerateAET()
	if err != nil {
		return nil, fmt.Errorf("failed to generate AET: %w", err)
	}

	return aet, nil
}

// ===========================================================================
// TIP-0006: Program Attestation Helpers
// ===========================================================================

// computeProgramDigest computes the Poseidon hash digest of a program
// Returns a 5-element digest for program attestation (TIP-0006)
func computeProgramDigest(program *Program) [5]field.Element {
	// Encode program instructions as field elements
	programElements := make([]field.Element, 0, len(program.Instructions)*2)
	for _, instr := range program.Instructions {
		// Add instruction opcode
		programElements = append(programElements, field.New(uint64(instr.Instruction)))

		// Add argument if present
		if instr.Argument != nil {
			programElements = append(programElements, *instr.Argument)
		} else {
			programElements = append(programElements, field.Zero)
		}
	}

	// Hash the program description using Poseidon
	digestElement := hash.PoseidonHash(programElements)

	// Create 5-element digest (in full implementation, use Tip5)
	digest := [5]field.Element{
		digestElement,
		field.Zero,
		field.Zero,
		field.Zero,
		field.Zero,
	}

	return digest
}
