// Package vm implements the instruction set, execution engine, and AIR
// table construction for the Starkforge virtual machine.
package vm

import (
	"fmt"

	"github.com/starkforge/starkforge/internal/starkforge/field"
)

// Instruction identifies one opcode in the Starkforge ISA. The numeric
// values are load-bearing: they are read directly off the stack during
// instruction decoding and their low-order bits feed the processor table's
// instruction-bit columns (see processor_table.go), so they are never
// renumbered once assigned.
type Instruction uint32

// Opcode assignments for the Starkforge ISA, grouped by the coprocessor
// each instruction drives. The layout follows Triton VM's instruction set,
// adapted here to dispatch into the Poseidon sponge rather than Tip5.
const (
	// stack manipulation

	Pop    Instruction = 3
	Push   Instruction = 1
	Divine Instruction = 9
	Pick   Instruction = 17
	Place  Instruction = 25
	Dup    Instruction = 33
	Swap   Instruction = 41

	// control flow

	Halt            Instruction = 0
	Nop             Instruction = 8
	Skiz            Instruction = 2
	Call            Instruction = 49
	Return          Instruction = 16
	Recurse         Instruction = 24
	RecurseOrReturn Instruction = 32
	Assert          Instruction = 10

	// memory access

	ReadMem  Instruction = 57
	WriteMem Instruction = 11

	// hashing (Poseidon sponge)

	Hash            Instruction = 18
	AssertVector    Instruction = 26
	SpongeInit      Instruction = 40
	SpongeAbsorb    Instruction = 34
	SpongeAbsorbMem Instruction = 48
	SpongeSqueeze   Instruction = 56

	// base field arithmetic

	Add    Instruction = 42
	AddI   Instruction = 65
	Mul    Instruction = 50
	Invert Instruction = 64
	Eq     Instruction = 58

	// u32 coprocessor

	Split     Instruction = 4
	Lt        Instruction = 6
	And       Instruction = 14
	Xor       Instruction = 22
	Log2Floor Instruction = 12
	Pow       Instruction = 30
	DivMod    Instruction = 20
	PopCount  Instruction = 28

	// extension field arithmetic

	XxAdd   Instruction = 66
	XxMul   Instruction = 74
	XInvert Instruction = 72
	XbMul   Instruction = 82

	// public I/O

	ReadIo  Instruction = 73
	WriteIo Instruction = 19

	// Merkle authentication and dot-product accumulation

	MerkleStep    Instruction = 36
	MerkleStepMem Instruction = 44
	XxDotStep     Instruction = 80
	XbDotStep     Instruction = 88

	// permutation-argument bookkeeping (TIP-0007)

	PushPerm   Instruction = 90
	PopPerm    Instruction = 91
	AssertPerm Instruction = 92
)

// InstructionCount is the total number of opcodes in the Starkforge ISA.
const InstructionCount = 49

// instructionInfo holds the static metadata the decoder, assembler, and AIR
// constraints need for one opcode.
type instructionInfo struct {
	name        string
	description string
	words       int  // instruction size in field elements (1 or 2)
	stackDelta  int  // net stack-depth change (positive pushes, negative pops)
	takesArg    bool
}

// instructionGroup bundles one coprocessor's opcodes together so the
// registry below can be assembled by category instead of as one flat
// literal; it mirrors how the opcode constants themselves are grouped.
type instructionGroup struct {
	category string
	entries  map[Instruction]instructionInfo
}

var instructionGroups = []instructionGroup{
	{
		category: "stack",
		entries: map[Instruction]instructionInfo{
			Pop:    {"pop", "remove n elements from stack", 2, -1, true},
			Push:   {"push", "push an immediate value", 2, 1, true},
			Divine: {"divine", "push n prover-supplied elements", 2, 1, true},
			Pick:   {"pick", "copy stack[i] to the top", 2, 1, true},
			Place:  {"place", "move the top element to stack[i]", 2, -1, true},
			Dup:    {"dup", "duplicate stack[i] to the top", 2, 1, true},
			Swap:   {"swap", "swap the top element with stack[i]", 2, 0, true},
		},
	},
	{
		category: "control",
		entries: map[Instruction]instructionInfo{
			Halt:            {"halt", "terminate execution", 1, 0, false},
			Nop:             {"nop", "no operation", 1, 0, false},
			Skiz:            {"skiz", "skip the next instruction if the top is zero", 1, -1, false},
			Call:            {"call", "call a function", 2, 0, true},
			Return:          {"return", "return from the current function", 1, 0, false},
			Recurse:         {"recurse", "jump back to the start of the current function", 1, 0, false},
			RecurseOrReturn: {"recurse_or_return", "recurse if the jump stack is non-empty, else return", 1, 0, false},
			Assert:          {"assert", "halt unless the top of stack is one", 1, -1, false},
		},
	},
	{
		category: "memory",
		entries: map[Instruction]instructionInfo{
			ReadMem:  {"read_mem", "read n words from RAM at the address on top", 2, 1, true},
			WriteMem: {"write_mem", "write n words to RAM at the address on top", 2, -2, true},
		},
	},
	{
		category: "hashing",
		entries: map[Instruction]instructionInfo{
			Hash:            {"hash", "Poseidon-hash stack[0..10]", 1, -5, false},
			AssertVector:    {"assert_vector", "assert stack[0..5] equals stack[5..10]", 1, -10, false},
			SpongeInit:      {"sponge_init", "reset the Poseidon sponge state", 1, 0, false},
			SpongeAbsorb:    {"sponge_absorb", "absorb 10 elements into the sponge", 1, -10, false},
			SpongeAbsorbMem: {"sponge_absorb_mem", "absorb n elements from RAM into the sponge", 1, 0, false},
			SpongeSqueeze:   {"sponge_squeeze", "squeeze 10 elements from the sponge", 1, 10, false},
		},
	},
	{
		category: "base field",
		entries: map[Instruction]instructionInfo{
			Add:    {"add", "add the top two elements", 1, -1, false},
			AddI:   {"addi", "add an immediate to the top", 2, 0, true},
			Mul:    {"mul", "multiply the top two elements", 1, -1, false},
			Invert: {"invert", "multiplicative inverse of the top", 1, 0, false},
			Eq:     {"eq", "compare the top two elements for equality", 1, -1, false},
		},
	},
	{
		category: "u32",
		entries: map[Instruction]instructionInfo{
			Split:     {"split", "split the top into high/low 32-bit halves", 1, 1, false},
			Lt:        {"lt", "unsigned less-than of the top two elements", 1, -1, false},
			And:       {"and", "bitwise AND of the top two elements", 1, -1, false},
			Xor:       {"xor", "bitwise XOR of the top two elements", 1, -1, false},
			Log2Floor: {"log_2_floor", "floor(log2(top))", 1, 0, false},
			Pow:       {"pow", "raise the second element to the top's power", 1, -1, false},
			DivMod:    {"div_mod", "quotient and remainder of the top two elements", 1, 0, false},
			PopCount:  {"pop_count", "count set bits in the top element", 1, 0, false},
		},
	},
	{
		category: "extension field",
		entries: map[Instruction]instructionInfo{
			XxAdd:   {"xx_add", "add two extension-field elements", 1, -3, false},
			XxMul:   {"xx_mul", "multiply two extension-field elements", 1, -3, false},
			XInvert: {"x_invert", "invert an extension-field element", 1, 0, false},
			XbMul:   {"xb_mul", "multiply an extension by a base element", 1, -1, false},
		},
	},
	{
		category: "io",
		entries: map[Instruction]instructionInfo{
			ReadIo:  {"read_io", "read n elements from standard input", 2, 1, true},
			WriteIo: {"write_io", "write n elements to standard output", 2, -1, true},
		},
	},
	{
		category: "merkle and dot-product",
		entries: map[Instruction]instructionInfo{
			MerkleStep:    {"merkle_step", "verify one Merkle authentication step", 1, -1, false},
			MerkleStepMem: {"merkle_step_mem", "merkle_step reading sibling data from RAM", 1, 0, false},
			XxDotStep:     {"xx_dot_step", "one step of an extension-field dot product", 1, -2, false},
			XbDotStep:     {"xb_dot_step", "one step of a base/extension dot product", 1, -1, false},
		},
	},
	{
		category: "permutation argument",
		entries: map[Instruction]instructionInfo{
			// PushPerm/PopPerm fold the top 5 stack elements into a
			// Fiat-Shamir inner product p = sum(st_i * a_i) and multiply or
			// divide (alpha - p) into the running product permrp.
			PushPerm:   {"push_perm", "fold top 5 elements into the permutation accumulator", 1, -5, false},
			PopPerm:    {"pop_perm", "remove top 5 elements from the permutation accumulator", 1, -5, false},
			AssertPerm: {"assert_perm", "assert the permutation accumulator equals one", 1, 0, false},
		},
	},
}

// instructionRegistry is assembled once from instructionGroups rather than
// declared as one flat map literal, so that adding a coprocessor only means
// adding a group above.
var instructionRegistry = buildInstructionRegistry(instructionGroups)

func buildInstructionRegistry(groups []instructionGroup) map[Instruction]instructionInfo {
	registry := make(map[Instruction]instructionInfo, InstructionCount)
	for _, group := range groups {
		for opcode, info := range group.entries {
			registry[opcode] = info
		}
	}
	return registry
}

// String returns the assembler mnemonic for the instruction.
func (i Instruction) String() string {
	if info, ok := instructionRegistry[i]; ok {
		return info.name
	}
	return fmt.Sprintf("unknown(%d)", i)
}

// lookup returns the metadata for an instruction or an error naming it.
func (i Instruction) lookup() (instructionInfo, error) {
	info, ok := instructionRegistry[i]
	if !ok {
		return instructionInfo{}, fmt.Errorf("unknown instruction: %d", i)
	}
	return info, nil
}

// Size returns the number of field elements the instruction occupies in
// program memory.
func (i Instruction) Size() int {
	info, err := i.lookup()
	if err != nil {
		return 1
	}
	return info.words
}

// StackEffect returns the net change in stack depth caused by the
// instruction: positive for a net push, negative for a net pop.
func (i Instruction) StackEffect() int {
	info, err := i.lookup()
	if err != nil {
		return 0
	}
	return info.stackDelta
}

// HasArgument reports whether the instruction is followed by an immediate
// argument word.
func (i Instruction) HasArgument() bool {
	info, err := i.lookup()
	if err != nil {
		return false
	}
	return info.takesArg
}

// InstructionBit indexes one of the opcode bits the processor table exposes
// as its own AIR column (ib0..ib6), used by transition constraints to
// decode which instruction is active without a full opcode comparison.
type InstructionBit uint8

// instructionBitWidth is the number of low-order opcode bits exposed as
// dedicated processor-table columns.
const instructionBitWidth = 7

const (
	IB0 InstructionBit = iota
	IB1
	IB2
	IB3
	IB4
	IB5
	IB6
)

// GetInstructionBit extracts bit `bit` of the opcode, as consumed by the
// processor table's instruction-bit columns.
func (i Instruction) GetInstructionBit(bit InstructionBit) uint32 {
	return (uint32(i) >> uint(bit)) & 1
}

// InstructionBits returns all instructionBitWidth opcode bits, low bit
// first, for callers that need the full decomposition at once.
func (i Instruction) InstructionBits() [instructionBitWidth]uint32 {
	var bits [instructionBitWidth]uint32
	for b := 0; b < instructionBitWidth; b++ {
		bits[b] = i.GetInstructionBit(InstructionBit(b))
	}
	return bits
}

// EncodedInstruction is an opcode paired with its optional immediate
// argument, ready to be written into program memory.
type EncodedInstruction struct {
	Instruction Instruction
	Argument    *field.Element // nil when the opcode takes no argument
}

// NewEncodedInstruction builds an EncodedInstruction, rejecting an argument
// mismatch against the opcode's arity.
func NewEncodedInstruction(inst Instruction, arg *field.Element) (*EncodedInstruction, error) {
	info, err := inst.lookup()
	if err != nil {
		return nil, err
	}

	switch {
	case info.takesArg && arg == nil:
		return nil, fmt.Errorf("instruction %s requires an argument", inst)
	case !info.takesArg && arg != nil:
		return nil, fmt.Errorf("instruction %s does not take an argument", inst)
	}

	return &EncodedInstruction{Instruction: inst, Argument: arg}, nil
}

// Words renders the instruction as the field elements stored in program
// memory: the opcode alone for a one-word instruction, or opcode followed
// by argument (zero if absent) for a two-word one.
func (ei *EncodedInstruction) Words() []field.Element {
	info, err := ei.Instruction.lookup()
	if err != nil {
		return []field.Element{field.New(uint64(ei.Instruction))}
	}

	if info.words == 1 {
		return []field.Element{field.New(uint64(ei.Instruction))}
	}

	arg := field.Zero
	if ei.Argument != nil {
		arg = *ei.Argument
	}
	return []field.Element{field.New(uint64(ei.Instruction)), arg}
}

// DecodeInstruction reads one instruction out of program memory starting at
// offset, consuming its argument word if the opcode requires one.
func DecodeInstruction(words []field.Element, offset int) (*EncodedInstruction, error) {
	if offset >= len(words) {
		return nil, fmt.Errorf("offset %d out of bounds", offset)
	}

	opcode := Instruction(words[offset].Value())
	info, err := opcode.lookup()
	if err != nil {
		return nil, fmt.Errorf("unknown opcode: %d", opcode)
	}

	var arg *field.Element
	if info.takesArg {
		if offset+1 >= len(words) {
			return nil, fmt.Errorf("instruction %s requires an argument but none follows", opcode)
		}
		arg = &words[offset+1]
	}

	return NewEncodedInstruction(opcode, arg)
}

// Program is a sequence of encoded instructions plus their combined length
// in field elements, as consumed by the VM's fetch/decode loop.
type Program struct {
	Instructions []*EncodedInstruction
	Length       int
}

// NewProgram returns an empty program ready for AddInstruction calls.
func NewProgram() *Program {
	return &Program{Instructions: make([]*EncodedInstruction, 0)}
}

// AddInstruction appends inst to the program and advances its word length.
func (p *Program) AddInstruction(inst *EncodedInstruction) {
	p.Instructions = append(p.Instructions, inst)
	p.Length += inst.Instruction.Size()
}

// ToWords flattens the program into the field elements the VM fetches from
// during execution.
func (p *Program) ToWords() []field.Element {
	words := make([]field.Element, 0, p.Length)
	for _, inst := range p.Instructions {
		words = append(words, inst.Words()...)
	}
	return words
}

// ValidateProgram rejects programs that cannot be executed: empty programs,
// and programs that do not terminate in Halt.
func ValidateProgram(program *Program) error {
	if len(program.Instructions) == 0 {
		return fmt.Errorf("empty program")
	}

	last := program.Instructions[len(program.Instructions)-1]
	if last.Instruction != Halt {
		return fmt.Errorf("program must end with Halt instruction")
	}

	return nil
}
