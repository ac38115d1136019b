package vm

import (
	"fmt"
	"sort"

	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/protocols"
)

// AET (Algebraic Execution Trace) is the witness a Starkforge run produces:
// every coprocessor table populated during execution, plus the bookkeeping
// (multiplicities, program digest, heights) the prover needs to turn it
// into a STARK.
type AET struct {
	Program *Program

	// InstructionMultiplicities counts how many times each program
	// instruction was executed, indexed by position in Program.Instructions.
	InstructionMultiplicities []uint64

	ProcessorTable   *ProcessorTableImpl
	OpStackTable     *OpStackTableImpl
	RAMTable         *RAMTableImpl
	JumpStackTable   *JumpStackTableImpl
	ProgramTable     *ProgramTableImpl
	ProgramHashTable *ProgramHashTableImpl // TIP-0006: program attestation
	HashTable        *HashTableImpl
	U32Table         *U32TableImpl
	CascadeTable     *CascadeTableImpl
	LookupTable      *LookupTableImpl

	// TIP-0005: lookup-argument bookkeeping. CascadeLookupMultiplicities
	// tracks how often each 16-bit value was looked up; LookupTableMultiplicities
	// tracks the constituent 8-bit lookups.
	CascadeLookupMultiplicities map[uint16]uint64
	LookupTableMultiplicities   [256]uint64

	// ProgramDigest is the TIP-0006 attestation digest: a hash of the
	// program's instruction stream, used to identify it across proofs.
	ProgramDigest [5]field.Element

	Height       int
	PaddedHeight int
}

// NewAET builds an empty trace scaffold for program: one fresh table per
// coprocessor, plus the program's attestation digest.
func NewAET(program *Program) (*AET, error) {
	if program == nil {
		return nil, fmt.Errorf("program cannot be nil")
	}

	programHashTable := NewProgramHashTable()
	programDigest, err := programHashTable.ComputeProgramDigest(program)
	if err != nil {
		return nil, fmt.Errorf("failed to compute program digest: %w", err)
	}

	return &AET{
		Program:                     program,
		InstructionMultiplicities:   make([]uint64, len(program.Instructions)),
		ProcessorTable:              NewProcessorTable(),
		OpStackTable:                NewOpStackTable(),
		RAMTable:                    NewRAMTable(),
		JumpStackTable:              NewJumpStackTable(),
		ProgramTable:                NewProgramTable(16),
		ProgramHashTable:            programHashTable,
		HashTable:                   NewHashTable(8, 83), // Poseidon 128-bit security: RF=8, RP=83
		U32Table:                    NewU32Table(),
		CascadeTable:                NewCascadeTable(),
		LookupTable:                 NewLookupTable(),
		CascadeLookupMultiplicities: make(map[uint16]uint64),
		ProgramDigest:               programDigest,
	}, nil
}

// paddableTable pairs a table with the name Pad's errors should report for
// it.
type paddableTable struct {
	name  string
	table interface {
		GetHeight() int
		Pad(int) error
	}
}

func (aet *AET) paddableTables() []paddableTable {
	return []paddableTable{
		{"processor", aet.ProcessorTable},
		{"opstack", aet.OpStackTable},
		{"ram", aet.RAMTable},
		{"jumpstack", aet.JumpStackTable},
		{"program", aet.ProgramTable},
		{"hash", aet.HashTable},
		{"u32", aet.U32Table},
		{"cascade", aet.CascadeTable},
		{"lookup", aet.LookupTable},
		{"program hash", aet.ProgramHashTable},
	}
}

// Pad extends every table to a common power-of-two height so their trace
// polynomials can share an FFT domain. Tables with no rows (common for
// coprocessors a given program never exercises) are left untouched.
func (aet *AET) Pad() error {
	maxHeight := 0
	for _, pt := range aet.paddableTables() {
		if h := pt.table.GetHeight(); h > maxHeight {
			maxHeight = h
		}
	}

	paddedHeight := nextPowerOf2(maxHeight)
	if paddedHeight == 0 {
		paddedHeight = 1
	}

	if err := aet.ProcessorTable.Pad(paddedHeight); err != nil {
		return fmt.Errorf("failed to pad processor table: %w", err)
	}
	for _, pt := range aet.paddableTables()[1:] {
		if pt.table.GetHeight() == 0 {
			continue
		}
		if err := pt.table.Pad(paddedHeight); err != nil {
			return fmt.Errorf("failed to pad %s table: %w", pt.name, err)
		}
	}

	aet.Height = maxHeight
	aet.PaddedHeight = paddedHeight
	return nil
}

// tableConstraints pulls all four constraint kinds (initial, consistency,
// transition, terminal) from one table, labeling errors with name.
func tableConstraints(name string, table ExecutionTable) ([]protocols.AIRConstraint, error) {
	var out []protocols.AIRConstraint

	initial, err := table.CreateInitialConstraints()
	if err != nil {
		return nil, fmt.Errorf("%s initial constraints: %w", name, err)
	}
	out = append(out, initial...)

	consistency, err := table.CreateConsistencyConstraints()
	if err != nil {
		return nil, fmt.Errorf("%s consistency constraints: %w", name, err)
	}
	out = append(out, consistency...)

	transition, err := table.CreateTransitionConstraints()
	if err != nil {
		return nil, fmt.Errorf("%s transition constraints: %w", name, err)
	}
	out = append(out, transition...)

	terminal, err := table.CreateTerminalConstraints()
	if err != nil {
		return nil, fmt.Errorf("%s terminal constraints: %w", name, err)
	}
	out = append(out, terminal...)

	return out, nil
}

// GenerateAIRConstraints collects every table's AIR constraints. Only the
// processor, opstack, and RAM tables are wired up so far; the remaining
// tables (jump stack, program, hash, u32, cascade, lookup) still need their
// constraint sets written before this can cover the full architecture.
func (aet *AET) GenerateAIRConstraints() ([]protocols.AIRConstraint, error) {
	var allConstraints []protocols.AIRConstraint

	for _, pair := range []struct {
		name  string
		table ExecutionTable
	}{
		{"processor", aet.ProcessorTable},
		{"opstack", aet.OpStackTable},
		{"ram", aet.RAMTable},
	} {
		constraints, err := tableConstraints(pair.name, pair.table)
		if err != nil {
			return nil, err
		}
		allConstraints = append(allConstraints, constraints...)
	}

	return allConstraints, nil
}

// GetTables returns every execution table the AET owns.
func (aet *AET) GetTables() []ExecutionTable {
	return []ExecutionTable{
		aet.ProcessorTable,
		aet.OpStackTable,
		aet.RAMTable,
		aet.JumpStackTable,
		aet.ProgramTable,
		aet.HashTable,
		aet.U32Table,
		aet.CascadeTable,
		aet.LookupTable,
	}
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	power := 1
	for power < n {
		power *= 2
	}
	return power
}

// GetPaddedHeight implements the trace-adapter interface the prover uses
// to query trace shape without depending on the vm package directly.
func (aet *AET) GetPaddedHeight() int {
	return aet.PaddedHeight
}

func (aet *AET) GetTableData() interface{} {
	return aet
}

// GetTraceColumns returns the processor table's trace columns — the
// backbone column set every cross-table argument is checked against.
func (aet *AET) GetTraceColumns() ([][]field.Element, error) {
	if aet.ProcessorTable == nil {
		return nil, fmt.Errorf("AET has no processor table")
	}
	return aet.ProcessorTable.GetColumns()
}

// --- TIP-0005: cascade and lookup table integration ---

// RecordCascadeLookup records one 16-bit cascade lookup and its two
// constituent 8-bit lookups.
func (aet *AET) RecordCascadeLookup(value16 uint16) {
	aet.CascadeLookupMultiplicities[value16]++

	lowByte := byte(value16 & 0xff)
	highByte := byte((value16 >> 8) & 0xff)
	aet.LookupTableMultiplicities[lowByte]++
	aet.LookupTableMultiplicities[highByte]++
}

// Record8BitLookup records a direct 8-bit lookup (not decomposed from a
// 16-bit value).
func (aet *AET) Record8BitLookup(value8 byte) {
	aet.LookupTableMultiplicities[value8]++
}

// RecordU32Value splits a 32-bit value into its two 16-bit limbs and
// records a cascade lookup for each.
func (aet *AET) RecordU32Value(value32 uint32) {
	aet.RecordCascadeLookup(uint16(value32 & 0xFFFF))
	aet.RecordCascadeLookup(uint16((value32 >> 16) & 0xFFFF))
}

// ProcessU32TableForCascade walks every U32 table row and records cascade
// lookups for its operands and result. Must run before FinalizeLookupTables
// so the u32 coprocessor's lookup argument has multiplicities to draw on.
func (aet *AET) ProcessU32TableForCascade() {
	for i := 0; i < aet.U32Table.GetHeight(); i++ {
		if lhs := aet.U32Table.lhs[i].Value(); lhs <= 0xFFFFFFFF {
			aet.RecordU32Value(uint32(lhs))
		}
		if rhs := aet.U32Table.rhs[i].Value(); rhs <= 0xFFFFFFFF {
			aet.RecordU32Value(uint32(rhs))
		}
		if result := aet.U32Table.result[i].Value(); result <= 0xFFFFFFFF {
			aet.RecordU32Value(uint32(result))
		}
	}
}

// FinalizeLookupTables populates the cascade and 8-bit lookup tables from
// the multiplicities accumulated during execution. Run once, after
// execution completes and before proof generation.
func (aet *AET) FinalizeLookupTables() error {
	aet.ProcessU32TableForCascade()

	if err := aet.LookupTable.Fill(aet.LookupTableMultiplicities); err != nil {
		return fmt.Errorf("failed to fill lookup table: %w", err)
	}

	var entries []CascadeLookupEntry
	for value16, multiplicity := range aet.CascadeLookupMultiplicities {
		if multiplicity > 0 {
			entries = append(entries, CascadeLookupEntry{Input: value16, Multiplicity: multiplicity})
		}
	}
	// Map iteration order is random; sort so row order is reproducible
	// across runs of the same program.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Input < entries[j].Input })

	for _, entry := range entries {
		if err := aet.CascadeTable.AddRow(entry.Input, entry.Multiplicity); err != nil {
			return fmt.Errorf("failed to add cascade row: %w", err)
		}
	}

	return nil
}

// CascadeLookupEntry is one row awaiting insertion into the cascade table.
type CascadeLookupEntry struct {
	Input        uint16
	Multiplicity uint64
}

// GetCascadeLookupCount returns the number of distinct 16-bit values looked
// up during execution.
func (aet *AET) GetCascadeLookupCount() int {
	return len(aet.CascadeLookupMultiplicities)
}

// GetTotalCascadeLookups returns the total number of cascade lookups,
// counted with multiplicity.
func (aet *AET) GetTotalCascadeLookups() uint64 {
	total := uint64(0)
	for _, count := range aet.CascadeLookupMultiplicities {
		total += count
	}
	return total
}

// GetTotal8BitLookups returns the total number of 8-bit lookups, counted
// with multiplicity.
func (aet *AET) GetTotal8BitLookups() uint64 {
	total := uint64(0)
	for _, count := range aet.LookupTableMultiplicities {
		total += count
	}
	return total
}

// GetProgramDigest returns the TIP-0006 attestation digest that uniquely
// identifies the executed program.
func (aet *AET) GetProgramDigest() []field.Element {
	return aet.ProgramDigest[:]
}
