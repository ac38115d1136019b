package vm

import (
	"fmt"

	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/protocols"
)

// TableID names one of the ten tables the algebraic execution trace is
// split across.
type TableID int

const (
	ProcessorTable TableID = iota
	OperationalStackTable
	RAMTable
	JumpStackTable
	HashTable
	U32Table
	ProgramTable
	CascadeTable
	LookupTable
	ProgramHashTable // TIP-0006: program digest computation
)

var tableNames = map[TableID]string{
	ProcessorTable:        "Processor",
	OperationalStackTable: "OperationalStack",
	RAMTable:              "RAM",
	JumpStackTable:        "JumpStack",
	HashTable:             "Hash",
	U32Table:              "U32",
	ProgramTable:          "Program",
	CascadeTable:          "Cascade",
	LookupTable:           "Lookup",
	ProgramHashTable:      "ProgramHash",
}

func (id TableID) String() string {
	if name, ok := tableNames[id]; ok {
		return name
	}
	return "Unknown"
}

// ExecutionTable is satisfied by every table in the multi-table
// architecture, giving the AET a uniform way to pad, measure, and pull AIR
// constraints from each one.
type ExecutionTable interface {
	GetID() TableID
	GetHeight() int
	GetPaddedHeight() int
	GetMainColumns() [][]field.Element
	GetAuxiliaryColumns() [][]field.Element
	Pad(targetHeight int) error

	CreateInitialConstraints() ([]protocols.AIRConstraint, error)
	CreateConsistencyConstraints() ([]protocols.AIRConstraint, error)
	CreateTransitionConstraints() ([]protocols.AIRConstraint, error)
	CreateTerminalConstraints() ([]protocols.AIRConstraint, error)
}

// LinkageType identifies the cross-table argument a TableLinkage encodes.
type LinkageType int

const (
	// PermutationArgument proves one table is a permutation of another.
	PermutationArgument LinkageType = iota
	// EvaluationArgument links a table to public input/output.
	EvaluationArgument
	// LookupArgument proves values in one table appear in another.
	LookupArgument
	// ContiguityArgument proves memory pointer regions are contiguous.
	ContiguityArgument
)

func (lt LinkageType) String() string {
	switch lt {
	case PermutationArgument:
		return "Permutation"
	case EvaluationArgument:
		return "Evaluation"
	case LookupArgument:
		return "Lookup"
	case ContiguityArgument:
		return "Contiguity"
	default:
		return "Unknown"
	}
}

// TableLinkage records one cross-table argument: which tables it relates,
// what kind of argument it is, and the verifier challenge it was built
// from.
type TableLinkage struct {
	FromTable TableID
	ToTable   TableID
	LinkType  LinkageType
	Challenge field.Element
}

// AlgebraicExecutionTrace holds all ten tables, the linkages proving they
// agree with each other, and the common padded height they share.
type AlgebraicExecutionTrace struct {
	Processor        ExecutionTable
	OperationalStack ExecutionTable
	RAM              ExecutionTable
	JumpStack        ExecutionTable
	Hash             ExecutionTable
	U32              ExecutionTable
	Program          ExecutionTable
	ProgramHash      ExecutionTable // TIP-0006
	Cascade          ExecutionTable
	Lookup           ExecutionTable

	Linkages []TableLinkage

	PaddedHeight int
}

func NewAlgebraicExecutionTrace() *AlgebraicExecutionTrace {
	return &AlgebraicExecutionTrace{Linkages: make([]TableLinkage, 0)}
}

// slots returns every (ID, table) pair, in the fixed order tables should
// be iterated in. nil tables are included so GetTable can report a
// uniform "not initialized" error.
func (aet *AlgebraicExecutionTrace) slots() []struct {
	id    TableID
	table ExecutionTable
} {
	return []struct {
		id    TableID
		table ExecutionTable
	}{
		{ProcessorTable, aet.Processor},
		{OperationalStackTable, aet.OperationalStack},
		{RAMTable, aet.RAM},
		{JumpStackTable, aet.JumpStack},
		{HashTable, aet.Hash},
		{U32Table, aet.U32},
		{ProgramTable, aet.Program},
		{ProgramHashTable, aet.ProgramHash},
		{CascadeTable, aet.Cascade},
		{LookupTable, aet.Lookup},
	}
}

// GetTable retrieves a specific table by ID, or an error if it hasn't been
// built yet or id is unrecognized.
func (aet *AlgebraicExecutionTrace) GetTable(id TableID) (ExecutionTable, error) {
	for _, slot := range aet.slots() {
		if slot.id != id {
			continue
		}
		if slot.table == nil {
			return nil, fmt.Errorf("%s table not initialized", id)
		}
		return slot.table, nil
	}
	return nil, fmt.Errorf("invalid table ID: %d", id)
}

// GetAllTables returns every table that has been built, in canonical
// order.
func (aet *AlgebraicExecutionTrace) GetAllTables() []ExecutionTable {
	tables := make([]ExecutionTable, 0, 10)
	for _, slot := range aet.slots() {
		if slot.table != nil {
			tables = append(tables, slot.table)
		}
	}
	return tables
}

// ComputePaddedHeight finds the smallest power of two at least as tall as
// the tallest built table, records it, and returns it.
func (aet *AlgebraicExecutionTrace) ComputePaddedHeight() int {
	maxHeight := 0
	for _, table := range aet.GetAllTables() {
		if height := table.GetHeight(); height > maxHeight {
			maxHeight = height
		}
	}

	paddedHeight := 1
	for paddedHeight < maxHeight {
		paddedHeight <<= 1
	}

	aet.PaddedHeight = paddedHeight
	return paddedHeight
}

// PadAllTables pads every built table to the AET's padded height,
// computing that height first if it hasn't been set yet.
func (aet *AlgebraicExecutionTrace) PadAllTables() error {
	if aet.PaddedHeight == 0 {
		aet.ComputePaddedHeight()
	}
	for _, table := range aet.GetAllTables() {
		if err := table.Pad(aet.PaddedHeight); err != nil {
			return fmt.Errorf("failed to pad %s table: %w", table.GetID(), err)
		}
	}
	return nil
}

func (aet *AlgebraicExecutionTrace) AddLinkage(linkage TableLinkage) {
	aet.Linkages = append(aet.Linkages, linkage)
}

// GetLinkages filters the AET's linkages down to one argument type.
func (aet *AlgebraicExecutionTrace) GetLinkages(linkType LinkageType) []TableLinkage {
	result := make([]TableLinkage, 0)
	for _, linkage := range aet.Linkages {
		if linkage.LinkType == linkType {
			result = append(result, linkage)
		}
	}
	return result
}

// Validate checks that the AET has a processor table, that every built
// table shares the same padded height, and that every linkage references a
// table that actually exists.
func (aet *AlgebraicExecutionTrace) Validate() error {
	if aet.Processor == nil {
		return fmt.Errorf("processor table is required")
	}

	if aet.PaddedHeight == 0 {
		aet.ComputePaddedHeight()
	}

	for _, table := range aet.GetAllTables() {
		if table.GetPaddedHeight() != aet.PaddedHeight {
			return fmt.Errorf("%s table has incorrect padded height: got %d, expected %d",
				table.GetID(), table.GetPaddedHeight(), aet.PaddedHeight)
		}
	}

	for i, linkage := range aet.Linkages {
		if _, err := aet.GetTable(linkage.FromTable); err != nil {
			return fmt.Errorf("linkage %d: invalid from table: %w", i, err)
		}
		if _, err := aet.GetTable(linkage.ToTable); err != nil {
			return fmt.Errorf("linkage %d: invalid to table: %w", i, err)
		}
	}

	return nil
}

// standardLinkage is one entry of the fixed cross-table argument topology
// CreateStandardLinkages wires up; challengeIdx picks its verifier
// challenge out of the shared challenge vector.
type standardLinkage struct {
	from, to     TableID
	kind         LinkageType
	challengeIdx int
}

// CreateStandardLinkages wires up the architecture's ten standard
// cross-table arguments: instruction lookup, stack/RAM/jump-stack
// consistency, hashing and u32 evaluation/lookup, the cascade/lookup
// chain, RAM contiguity, and public I/O.
func (aet *AlgebraicExecutionTrace) CreateStandardLinkages(challenges []field.Element) error {
	if len(challenges) < 10 {
		return fmt.Errorf("need at least 10 challenges for standard linkages")
	}

	standard := []standardLinkage{
		{ProcessorTable, ProgramTable, PermutationArgument, 0},
		{ProcessorTable, OperationalStackTable, PermutationArgument, 1},
		{ProcessorTable, RAMTable, PermutationArgument, 2},
		{ProcessorTable, JumpStackTable, PermutationArgument, 3},
		{ProcessorTable, HashTable, EvaluationArgument, 4},
		{ProcessorTable, U32Table, LookupArgument, 5},
		{U32Table, CascadeTable, LookupArgument, 6},
		{CascadeTable, LookupTable, LookupArgument, 7},
		{RAMTable, RAMTable, ContiguityArgument, 8},
		{ProcessorTable, ProcessorTable, EvaluationArgument, 9}, // self-reference for public I/O
	}

	for _, link := range standard {
		aet.AddLinkage(TableLinkage{
			FromTable: link.from,
			ToTable:   link.to,
			LinkType:  link.kind,
			Challenge: challenges[link.challengeIdx],
		})
	}

	return nil
}

// TableStats summarizes one table's shape for diagnostics and reporting.
type TableStats struct {
	Height           int
	PaddedHeight     int
	MainColumns      int
	AuxiliaryColumns int
}

// GetTableStatistics reports shape statistics for every built table.
func (aet *AlgebraicExecutionTrace) GetTableStatistics() map[TableID]TableStats {
	stats := make(map[TableID]TableStats)
	for _, table := range aet.GetAllTables() {
		stats[table.GetID()] = TableStats{
			Height:           table.GetHeight(),
			PaddedHeight:     table.GetPaddedHeight(),
			MainColumns:      len(table.GetMainColumns()),
			AuxiliaryColumns: len(table.GetAuxiliaryColumns()),
		}
	}
	return stats
}
