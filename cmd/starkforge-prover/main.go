package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/pkg/starkforge"
)

// Input format matches Triton VM's interface
type ClaimInput struct {
	ProgramDigest string   `json:"program_digest"` // Hex string
	Version       uint32   `json:"version"`
	Input         []uint64 `json:"input"`
	Output        []uint64 `json:"output"`
}

type ProgramInput struct {
	Instructions   []string               `json:"instructions"` // String format like "Halt", "Push(42)"
	AddressToLabel map[string]uint64      `json:"address_to_label,omitempty"`
	DebugInfo      map[string]interface{} `json:"debug_information,omitempty"`
}

type NonDeterminismInput struct {
	IndividualTokens []uint64          `json:"individual_tokens"`
	Digests          []string          `json:"digests"`
	Ram              map[string]uint64 `json:"ram"`
}

func main() {
	// Read JSON lines from stdin (like Triton VM prover)
	scanner := bufio.NewScanner(os.Stdin)

	// Line 1: Claim
	if !scanner.Scan() {
		fatal("Failed to read claim")
	}
	var claimInput ClaimInput
	if err := json.Unmarshal(scanner.Bytes(), &claimInput); err != nil {
		fatal(fmt.Sprintf("Failed to parse claim: %v", err))
	}

	// Line 2: Program
	if !scanner.Scan() {
		fatal("Failed to read program")
	}
	var programInput ProgramInput
	if err := json.Unmarshal(scanner.Bytes(), &programInput); err != nil {
		fatal(fmt.Sprintf("Failed to parse program: %v", err))
	}

	// Line 3: NonDeterminism
	if !scanner.Scan() {
		fatal("Failed to read non_determinism")
	}
	var nonDetInput NonDeterminismInput
	if err := json.Unmarshal(scanner.Bytes(), &nonDetInput); err != nil {
		fatal(fmt.Sprintf("Failed to parse non_determinism: %v", err))
	}

	// Line 4: Max padded height (optional)
	if !scanner.Scan() {
		fatal("Failed to read max_log2_padded_height")
	}
	var maxPaddedHeight *uint8
	if err := json.Unmarshal(scanner.Bytes(), &maxPaddedHeight); err != nil {
		fatal(fmt.Sprintf("Failed to parse max_log2_padded_height: %v", err))
	}

	// Line 5: Environment variables
	if !scanner.Scan() {
		fatal("Failed to read env_variables")
	}
	var envVars map[string]interface{}
	if err := json.Unmarshal(scanner.Bytes(), &envVars); err != nil {
		fatal(fmt.Sprintf("Failed to parse env_variables: %v", err))
	}

	// Convert inputs to starkforge VM format
	program, err := convertProgram(programInput)
	if err != nil {
		fatal(fmt.Sprintf("Failed to convert program: %v", err))
	}

	publicInput := convertFieldElements(claimInput.Input)
	secretInput := convertFieldElements(nonDetInput.IndividualTokens)

	// Create VM and execute
	logStderr("Creating VM...")
	vm, err := starkforge.NewVM(starkforge.DefaultVMConfig())
	if err != nil {
		fatal(fmt.Sprintf("Failed to create VM: %v", err))
	}

	// Execute program
	logStderr("Executing program...")
	trace, err := vm.Execute(program, publicInput, secretInput)
	if err != nil {
		fatal(fmt.Sprintf("Execution failed: %v", err))
	}

	logStderr(fmt.Sprintf("Execution completed in %d cycles", trace.CycleCount))

	// Create prover with proper security parameters
	config := starkforge.DefaultConfig()
	config.FRIQueries = 80 // at least SecurityLevel/3 = 160/3 = 53 checks are required; 80 is the default

	// Adjust config based on padded height if needed
	if maxPaddedHeight != nil {
		logStderr(fmt.Sprintf("Max log2 padded height: %d", *maxPaddedHeight))
	}

	logStderr("Creating prover...")
	prover, err := starkforge.NewProver(config)
	if err != nil {
		fatal(fmt.Sprintf("Failed to create prover: %v", err))
	}

	// Generate proof
	logStderr("Generating proof...")
	proof, err := prover.GenerateProof(trace)
	if err != nil {
		fatal(fmt.Sprintf("Proof generation failed: %v", err))
	}

	logStderr("Proof generated successfully")

	// Serialize proof
	proofBytes, err := json.Marshal(proof)
	if err != nil {
		fatal(fmt.Sprintf("Failed to serialize proof: %v", err))
	}

	checksum := sha3.Sum256(proofBytes)
	logStderr(fmt.Sprintf("Proof checksum (sha3-256): %x", checksum))

	// Write proof to stdout (like Triton VM)
	os.Stdout.Write(proofBytes)
	os.Stdout.Write([]byte("\n"))
}

func convertProgram(input ProgramInput) (*starkforge.Program, error) {
	instructions := make([]starkforge.Instruction, len(input.Instructions))

	for i, instStr := range input.Instructions {
		opcode, arg, err := parseInstruction(instStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse instruction %d (%s): %w", i, instStr, err)
		}

		instructions[i] = starkforge.Instruction{
			Opcode:   opcode,
			Argument: arg,
		}
	}

	return &starkforge.Program{
		Instructions: instructions,
	}, nil
}

func parseInstruction(instStr string) (byte, *starkforge.FieldElement, error) {
	// Parse Triton VM instruction format: "Halt", "Push(42)", "ReadIo(1)", etc.

	// Simple instructions without arguments
	switch instStr {
	case "Halt":
		return 0, nil, nil
	case "Divine":
		return 9, nil, nil
	case "Return":
		return 16, nil, nil
	case "Dup":
		return 33, nil, nil
	case "Eq":
		return 58, nil, nil
	case "Skiz":
		return 2, nil, nil
	case "Recurse":
		return 24, nil, nil
	case "Add":
		return 42, nil, nil
	case "Mul":
		return 50, nil, nil
	}

	// Instructions with arguments: "Push(42)", "ReadIo(1)", etc.
	if strings.Contains(instStr, "(") {
		parts := strings.Split(instStr, "(")
		if len(parts) != 2 {
			return 0, nil, fmt.Errorf("invalid instruction format: %s", instStr)
		}

		opName := parts[0]
		argStr := strings.TrimSuffix(parts[1], ")")

		// Parse argument as uint64
		var argVal uint64
		_, err := fmt.Sscanf(argStr, "%d", &argVal)
		if err != nil {
			return 0, nil, fmt.Errorf("invalid argument: %s", argStr)
		}

		arg := convertFieldElement(argVal)

		switch opName {
		case "Push":
			return 1, &arg, nil
		case "ReadIo":
			return 73, &arg, nil
		case "WriteIo":
			return 19, &arg, nil
		case "Call":
			return 49, &arg, nil
		default:
			return 0, nil, fmt.Errorf("unknown instruction: %s", opName)
		}
	}

	return 0, nil, fmt.Errorf("unknown instruction: %s", instStr)
}

func convertFieldElements(values []uint64) []starkforge.FieldElement {
	result := make([]starkforge.FieldElement, len(values))
	for i, val := range values {
		result[i] = convertFieldElement(val)
	}
	return result
}

func convertFieldElement(val uint64) starkforge.FieldElement {
	return field.New(val)
}

func logStderr(msg string) {
	fmt.Fprintln(os.Stderr, "starkforge-prover:", msg)
}

func fatal(msg string) {
	logStderr("ERROR: " + msg)
	os.Exit(1)
}
