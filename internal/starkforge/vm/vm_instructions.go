package vm

import (
	"fmt"
	"math/big"

	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/hash"
	"github.com/starkforge/starkforge/internal/starkforge/xfield"
)

// This file holds the handler for every opcode in instructionRegistry. Each
// handler reads its operands off the stack (and sometimes RAM or the
// sponge), advances vm.InstructionPointer via IncrementIP, and records a
// CoProcessorCall when the operation belongs to one of the lookup-argument
// coprocessors (u32, hashing).

// popVector pops n elements and returns them in stack order (oldest pushed
// first), undoing the LIFO order they come off in. Used by every
// instruction that treats a contiguous run of stack slots as one operand.
func (vm *VMState) popVector(n int) ([]field.Element, error) {
	out := make([]field.Element, n)
	for i := n - 1; i >= 0; i-- {
		v, err := vm.StackPop()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// pushVector pushes vals in order, so vals[len(vals)-1] ends up on top.
func (vm *VMState) pushVector(vals []field.Element) error {
	for _, v := range vals {
		if err := vm.StackPush(v); err != nil {
			return err
		}
	}
	return nil
}

// u32Operand decodes a stack element as the unsigned 32-bit integer the u32
// coprocessor instructions operate on.
func u32Operand(e field.Element) *big.Int {
	return new(big.Int).And(big.NewInt(int64(e.Value())), big.NewInt((1<<32)-1))
}

func (vm *VMState) recordCoProcessorCall(kind CoProcessorType, data map[string]interface{}) {
	vm.CoProcessorCalls = append(vm.CoProcessorCalls, CoProcessorCall{Type: kind, Data: data})
}

func argCount(inst *EncodedInstruction, low int) (int, error) {
	n := int(inst.Argument.Value())
	if n < low || n > 5 {
		return 0, fmt.Errorf("invalid operand count %d (must be %d-5)", n, low)
	}
	return n, nil
}

// --- stack manipulation ---

func (vm *VMState) execPop(inst *EncodedInstruction) error {
	n, err := argCount(inst, 1)
	if err != nil {
		return err
	}
	if vm.StackPointer < n {
		return fmt.Errorf("stack underflow: cannot pop %d elements from stack of size %d", n, vm.StackPointer)
	}
	for i := 0; i < n; i++ {
		if _, err := vm.StackPop(); err != nil {
			return err
		}
	}
	return vm.IncrementIP()
}

func (vm *VMState) execPush(inst *EncodedInstruction) error {
	if err := vm.StackPush(*inst.Argument); err != nil {
		return err
	}
	return vm.IncrementIP()
}

// execDivine pushes n prover-supplied (non-deterministic) values from the
// secret input tape.
func (vm *VMState) execDivine(inst *EncodedInstruction) error {
	n, err := argCount(inst, 1)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if vm.SecretPointer >= len(vm.SecretInput) {
			return fmt.Errorf("secret input exhausted")
		}
		value := vm.SecretInput[vm.SecretPointer]
		vm.SecretPointer++
		if err := vm.StackPush(value); err != nil {
			return err
		}
	}
	return vm.IncrementIP()
}

func (vm *VMState) execPick(inst *EncodedInstruction) error {
	index := int(inst.Argument.Value())
	if index < 0 || index >= 16 {
		return fmt.Errorf("invalid pick index: %d (must be 0-15)", index)
	}
	value, err := vm.StackPeek(index)
	if err != nil {
		return err
	}
	if err := vm.StackPush(value); err != nil {
		return err
	}
	return vm.IncrementIP()
}

// execPlace pops the top of the stack and inserts it at depth index,
// shifting everything above that slot down by one.
func (vm *VMState) execPlace(inst *EncodedInstruction) error {
	index := int(inst.Argument.Value())
	if index < 0 || index >= 16 {
		return fmt.Errorf("invalid place index: %d (must be 0-15)", index)
	}
	value, err := vm.StackPop()
	if err != nil {
		return err
	}
	for i := vm.StackPointer; i > index; i-- {
		vm.Stack[i] = vm.Stack[i-1]
	}
	vm.Stack[index] = value
	vm.StackPointer++
	return vm.IncrementIP()
}

func (vm *VMState) execDup(inst *EncodedInstruction) error {
	index := int(inst.Argument.Value())
	if index < 0 || index >= 16 {
		return fmt.Errorf("invalid dup index: %d (must be 0-15)", index)
	}
	value, err := vm.StackPeek(index)
	if err != nil {
		return err
	}
	if err := vm.StackPush(value); err != nil {
		return err
	}
	return vm.IncrementIP()
}

// execSwap exchanges the top of the stack with the element index slots
// below it.
func (vm *VMState) execSwap(inst *EncodedInstruction) error {
	index := int(inst.Argument.Value())
	if index < 0 || index >= 16 {
		return fmt.Errorf("invalid swap index: %d (must be 0-15)", index)
	}
	if index >= vm.StackPointer {
		return fmt.Errorf("swap index out of bounds")
	}
	top := vm.StackPointer - 1
	vm.Stack[top], vm.Stack[top-index] = vm.Stack[top-index], vm.Stack[top]
	return vm.IncrementIP()
}

// --- control flow ---

func (vm *VMState) execHalt() error {
	vm.Halting = true
	return nil
}

func (vm *VMState) execNop() error {
	return vm.IncrementIP()
}

// execSkiz pops the top of the stack and, if it was zero, skips the next
// instruction entirely (including any argument word it carries).
func (vm *VMState) execSkiz() error {
	st0, err := vm.StackPop()
	if err != nil {
		return err
	}
	if err := vm.IncrementIP(); err != nil {
		return err
	}
	if st0.IsZero() {
		inst, err := vm.CurrentInstruction()
		if err != nil {
			return err
		}
		vm.InstructionPointer += inst.Instruction.Size()
	}
	return nil
}

func (vm *VMState) execCall(inst *EncodedInstruction) error {
	target := int(inst.Argument.Value())
	returnAddr := vm.InstructionPointer + inst.Instruction.Size()
	vm.JumpStack = append(vm.JumpStack, VMJumpStackEntry{Origin: returnAddr, Destination: target})
	vm.InstructionPointer = target
	return nil
}

func (vm *VMState) execReturn() error {
	if len(vm.JumpStack) == 0 {
		return fmt.Errorf("jump stack underflow: cannot return without call")
	}
	entry := vm.JumpStack[len(vm.JumpStack)-1]
	vm.JumpStack = vm.JumpStack[:len(vm.JumpStack)-1]
	vm.InstructionPointer = entry.Origin
	return nil
}

// execRecurse re-enters the function at the top jump-stack entry's
// destination, pushing a fresh return address without consuming the entry.
func (vm *VMState) execRecurse() error {
	if len(vm.JumpStack) == 0 {
		return fmt.Errorf("recurse requires at least one call on jump stack")
	}
	target := vm.JumpStack[len(vm.JumpStack)-1].Destination
	returnAddr := vm.InstructionPointer + 1
	vm.JumpStack = append(vm.JumpStack, VMJumpStackEntry{Origin: returnAddr, Destination: target})
	vm.InstructionPointer = target
	return nil
}

// execRecurseOrReturn recurses while more than one call frame is open and
// returns once only the outermost frame remains.
func (vm *VMState) execRecurseOrReturn() error {
	switch {
	case len(vm.JumpStack) > 1:
		return vm.execRecurse()
	case len(vm.JumpStack) == 1:
		return vm.execReturn()
	default:
		return fmt.Errorf("recurse_or_return requires at least one call")
	}
}

func (vm *VMState) execAssert() error {
	st0, err := vm.StackPop()
	if err != nil {
		return err
	}
	if !st0.Equal(field.One) {
		return fmt.Errorf("assertion failed: expected 1, got %s", st0.String())
	}
	return vm.IncrementIP()
}

// --- memory access ---

func (vm *VMState) execReadMem(inst *EncodedInstruction) error {
	n, err := argCount(inst, 1)
	if err != nil {
		return err
	}
	addrElement, err := vm.StackPop()
	if err != nil {
		return err
	}
	addr := int64(addrElement.Value())
	for i := 0; i < n; i++ {
		value := vm.RAMRead(field.New(uint64(addr + int64(i))))
		if err := vm.StackPush(value); err != nil {
			return err
		}
	}
	return vm.IncrementIP()
}

// execWriteMem pops n values off the stack (deepest address first) followed
// by the base address, then writes each value to its offset.
func (vm *VMState) execWriteMem(inst *EncodedInstruction) error {
	n, err := argCount(inst, 1)
	if err != nil {
		return err
	}
	values, err := vm.popVector(n)
	if err != nil {
		return err
	}
	addrElement, err := vm.StackPop()
	if err != nil {
		return err
	}
	addr := int64(addrElement.Value())
	for i := 0; i < n; i++ {
		vm.RAMWrite(field.New(uint64(addr+int64(i))), values[i])
	}
	return vm.IncrementIP()
}

// --- base field arithmetic ---

func (vm *VMState) execAdd() error {
	b, err := vm.StackPop()
	if err != nil {
		return err
	}
	a, err := vm.StackPop()
	if err != nil {
		return err
	}
	return vm.pushResult(a.Add(b))
}

func (vm *VMState) execAddI(inst *EncodedInstruction) error {
	a, err := vm.StackPop()
	if err != nil {
		return err
	}
	return vm.pushResult(a.Add(*inst.Argument))
}

func (vm *VMState) execMul() error {
	b, err := vm.StackPop()
	if err != nil {
		return err
	}
	a, err := vm.StackPop()
	if err != nil {
		return err
	}
	return vm.pushResult(a.Mul(b))
}

func (vm *VMState) execInvert() error {
	a, err := vm.StackPop()
	if err != nil {
		return err
	}
	if a.IsZero() {
		return fmt.Errorf("cannot invert zero")
	}
	return vm.pushResult(a.Inverse())
}

func (vm *VMState) execEq() error {
	b, err := vm.StackPop()
	if err != nil {
		return err
	}
	a, err := vm.StackPop()
	if err != nil {
		return err
	}
	if a.Equal(b) {
		return vm.pushResult(field.One)
	}
	return vm.pushResult(field.Zero)
}

// pushResult pushes a single value and advances the instruction pointer —
// the common tail shared by every single-output base-field op.
func (vm *VMState) pushResult(v field.Element) error {
	if err := vm.StackPush(v); err != nil {
		return err
	}
	return vm.IncrementIP()
}

// --- public I/O ---

func (vm *VMState) execReadIo(inst *EncodedInstruction) error {
	n, err := argCount(inst, 1)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if vm.InputPointer >= len(vm.PublicInput) {
			return fmt.Errorf("public input exhausted")
		}
		value := vm.PublicInput[vm.InputPointer]
		vm.InputPointer++
		if err := vm.StackPush(value); err != nil {
			return err
		}
	}
	return vm.IncrementIP()
}

func (vm *VMState) execWriteIo(inst *EncodedInstruction) error {
	n, err := argCount(inst, 1)
	if err != nil {
		return err
	}
	values, err := vm.popVector(n)
	if err != nil {
		return err
	}
	vm.PublicOutput = append(vm.PublicOutput, values...)
	return vm.IncrementIP()
}

// --- u32 coprocessor ---

// execSplit decomposes the top of the stack into 32-bit high and low limbs,
// pushing high first so the low limb ends up on top.
func (vm *VMState) execSplit() error {
	a, err := vm.StackPop()
	if err != nil {
		return err
	}
	value := big.NewInt(int64(a.Value()))
	mask := big.NewInt((1 << 32) - 1)
	low := new(big.Int).And(value, mask)
	high := new(big.Int).Rsh(value, 32)

	if err := vm.StackPush(field.New(high.Uint64())); err != nil {
		return err
	}
	if err := vm.StackPush(field.New(low.Uint64())); err != nil {
		return err
	}
	vm.recordCoProcessorCall(U32CoProcessor, map[string]interface{}{
		"operation": "split", "input": value, "high": high, "low": low,
	})
	return vm.IncrementIP()
}

func (vm *VMState) execLt() error {
	b, err := vm.StackPop()
	if err != nil {
		return err
	}
	a, err := vm.StackPop()
	if err != nil {
		return err
	}
	aValue, bValue := u32Operand(a), u32Operand(b)
	result := field.Zero
	if aValue.Cmp(bValue) < 0 {
		result = field.One
	}
	if err := vm.StackPush(result); err != nil {
		return err
	}
	vm.recordCoProcessorCall(U32CoProcessor, map[string]interface{}{
		"operation": "lt", "a": aValue, "b": bValue, "result": result.Equal(field.One),
	})
	return vm.IncrementIP()
}

func (vm *VMState) execAnd() error {
	b, err := vm.StackPop()
	if err != nil {
		return err
	}
	a, err := vm.StackPop()
	if err != nil {
		return err
	}
	result := new(big.Int).And(big.NewInt(int64(a.Value())), big.NewInt(int64(b.Value())))
	if err := vm.StackPush(field.New(result.Uint64())); err != nil {
		return err
	}
	vm.recordCoProcessorCall(U32CoProcessor, map[string]interface{}{
		"operation": "and", "a": big.NewInt(int64(a.Value())), "b": big.NewInt(int64(b.Value())), "result": result,
	})
	return vm.IncrementIP()
}

func (vm *VMState) execXor() error {
	b, err := vm.StackPop()
	if err != nil {
		return err
	}
	a, err := vm.StackPop()
	if err != nil {
		return err
	}
	result := new(big.Int).Xor(big.NewInt(int64(a.Value())), big.NewInt(int64(b.Value())))
	if err := vm.StackPush(field.New(result.Uint64())); err != nil {
		return err
	}
	vm.recordCoProcessorCall(U32CoProcessor, map[string]interface{}{
		"operation": "xor", "a": big.NewInt(int64(a.Value())), "b": big.NewInt(int64(b.Value())), "result": result,
	})
	return vm.IncrementIP()
}

func (vm *VMState) execLog2Floor() error {
	a, err := vm.StackPop()
	if err != nil {
		return err
	}
	if a.IsZero() {
		return fmt.Errorf("log2 of zero is undefined")
	}
	value := big.NewInt(int64(a.Value()))
	log2 := value.BitLen() - 1
	if err := vm.StackPush(field.New(uint64(log2))); err != nil {
		return err
	}
	vm.recordCoProcessorCall(U32CoProcessor, map[string]interface{}{
		"operation": "log2_floor", "input": value, "result": log2,
	})
	return vm.IncrementIP()
}

func (vm *VMState) execPow() error {
	expElement, err := vm.StackPop()
	if err != nil {
		return err
	}
	base, err := vm.StackPop()
	if err != nil {
		return err
	}
	return vm.pushResult(base.ModPow(expElement.Value()))
}

// execDivMod pops divisor then dividend and pushes quotient, then
// remainder, so the remainder ends up on top.
func (vm *VMState) execDivMod() error {
	divisor, err := vm.StackPop()
	if err != nil {
		return err
	}
	dividend, err := vm.StackPop()
	if err != nil {
		return err
	}
	if divisor.IsZero() {
		return fmt.Errorf("division by zero")
	}
	q, r := new(big.Int), new(big.Int)
	q.DivMod(big.NewInt(int64(dividend.Value())), big.NewInt(int64(divisor.Value())), r)
	if err := vm.StackPush(field.New(q.Uint64())); err != nil {
		return err
	}
	if err := vm.StackPush(field.New(r.Uint64())); err != nil {
		return err
	}
	return vm.IncrementIP()
}

func (vm *VMState) execPopCount() error {
	a, err := vm.StackPop()
	if err != nil {
		return err
	}
	count := 0
	value := new(big.Int).Set(big.NewInt(int64(a.Value())))
	for value.Sign() > 0 {
		if value.Bit(0) == 1 {
			count++
		}
		value.Rsh(value, 1)
	}
	if err := vm.StackPush(field.New(uint64(count))); err != nil {
		return err
	}
	vm.recordCoProcessorCall(U32CoProcessor, map[string]interface{}{
		"operation": "pop_count", "input": big.NewInt(int64(a.Value())), "result": count,
	})
	return vm.IncrementIP()
}

// --- hashing (Poseidon sponge) ---

// execHash pops the 10-element input block and pushes a 5-element
// Poseidon digest (replicated to fill the 5 output slots — see
// applyPoseidonPermutation for why the digest isn't yet a true 5-wide
// state extraction).
func (vm *VMState) execHash() error {
	input, err := vm.popVector(10)
	if err != nil {
		return fmt.Errorf("hash requires 10 stack elements: %w", err)
	}
	result := hash.PoseidonHash(input)
	for i := 0; i < 5; i++ {
		if err := vm.StackPush(result); err != nil {
			return err
		}
	}
	vm.recordCoProcessorCall(HashCoProcessor, map[string]interface{}{
		"operation": "hash", "input": input, "output": result,
	})
	return vm.IncrementIP()
}

// execAssertVector checks that the two 5-element vectors on top of the
// stack are componentwise equal.
func (vm *VMState) execAssertVector() error {
	vector2, err := vm.popVector(5)
	if err != nil {
		return err
	}
	vector1, err := vm.popVector(5)
	if err != nil {
		return err
	}
	for i := 0; i < 5; i++ {
		if !vector1[i].Equal(vector2[i]) {
			return fmt.Errorf("assert_vector failed: vector1[%d] (%s) != vector2[%d] (%s)",
				i, vector1[i].String(), i, vector2[i].String())
		}
	}
	return vm.IncrementIP()
}

func (vm *VMState) execSpongeInit() error {
	vm.Sponge = &PoseidonSponge{State: make([]field.Element, 16), Rate: 10}
	for i := range vm.Sponge.State {
		vm.Sponge.State[i] = field.Zero
	}
	vm.recordCoProcessorCall(SpongeResetCoProcessor, nil)
	return vm.IncrementIP()
}

// execSpongeAbsorb folds 10 popped elements into the sponge's rate portion
// and runs the permutation.
func (vm *VMState) execSpongeAbsorb() error {
	if vm.Sponge == nil {
		return fmt.Errorf("sponge not initialized (call sponge_init first)")
	}
	input, err := vm.popVector(10)
	if err != nil {
		return err
	}
	for i := 0; i < 10; i++ {
		vm.Sponge.State[i] = vm.Sponge.State[i].Add(input[i])
	}
	if err := vm.applyPoseidonPermutation(); err != nil {
		return fmt.Errorf("sponge permutation failed: %w", err)
	}
	vm.recordCoProcessorCall(HashCoProcessor, map[string]interface{}{
		"operation": "sponge_absorb", "input": input, "state": vm.Sponge.State,
	})
	return vm.IncrementIP()
}

// execSpongeAbsorbMem is execSpongeAbsorb with the rate block read from RAM
// at a popped base address rather than from the stack.
func (vm *VMState) execSpongeAbsorbMem() error {
	if vm.Sponge == nil {
		return fmt.Errorf("sponge not initialized")
	}
	addrElement, err := vm.StackPop()
	if err != nil {
		return err
	}
	addr := int64(addrElement.Value())
	input := make([]field.Element, 10)
	for i := 0; i < 10; i++ {
		input[i] = vm.RAMRead(field.New(uint64(addr + int64(i))))
	}
	for i := 0; i < 10; i++ {
		vm.Sponge.State[i] = vm.Sponge.State[i].Add(input[i])
	}
	if err := vm.applyPoseidonPermutation(); err != nil {
		return err
	}
	vm.recordCoProcessorCall(HashCoProcessor, map[string]interface{}{
		"operation": "sponge_absorb_mem", "address": addr, "input": input,
	})
	return vm.IncrementIP()
}

func (vm *VMState) execSpongeSqueeze() error {
	if vm.Sponge == nil {
		return fmt.Errorf("sponge not initialized")
	}
	if err := vm.applyPoseidonPermutation(); err != nil {
		return err
	}
	output := make([]field.Element, 10)
	for i := 0; i < 10; i++ {
		output[i] = vm.Sponge.State[i]
		if err := vm.StackPush(output[i]); err != nil {
			return err
		}
	}
	vm.recordCoProcessorCall(HashCoProcessor, map[string]interface{}{
		"operation": "sponge_squeeze", "output": output,
	})
	return vm.IncrementIP()
}

// applyPoseidonPermutation runs the Poseidon permutation over the sponge's
// rate portion. A full Tip5-style permutation would scramble all 16 state
// elements; this folds the rate down to a single Poseidon digest and
// writes it back into state[0], which is sufficient for the permutation
// argument bookkeeping this VM needs but not a general-purpose 16-wide
// permutation.
func (vm *VMState) applyPoseidonPermutation() error {
	if vm.Sponge == nil {
		return fmt.Errorf("sponge not initialized")
	}
	rateElements := vm.Sponge.State[:10]
	vm.Sponge.State[0] = hash.PoseidonHash(rateElements)
	return nil
}

// --- extension field arithmetic ---

// popExtensionPair pops two extension-field elements (3 components each),
// second-popped first, matching the stack layout [..., a0,a1,a2, b0,b1,b2].
func (vm *VMState) popExtensionPair() (a0, a1, a2, b0, b1, b2 field.Element, err error) {
	b2, err = vm.StackPop()
	if err != nil {
		return
	}
	b1, err = vm.StackPop()
	if err != nil {
		return
	}
	b0, err = vm.StackPop()
	if err != nil {
		return
	}
	a2, err = vm.StackPop()
	if err != nil {
		return
	}
	a1, err = vm.StackPop()
	if err != nil {
		return
	}
	a0, err = vm.StackPop()
	return
}

func (vm *VMState) execXxAdd() error {
	a0, a1, a2, b0, b1, b2, err := vm.popExtensionPair()
	if err != nil {
		return err
	}
	return vm.pushTriple(a0.Add(b0), a1.Add(b1), a2.Add(b2))
}

// execXxMul multiplies two elements of the cubic extension field
// F_p[X]/(X^3 - X + 1) (package xfield).
func (vm *VMState) execXxMul() error {
	a0, a1, a2, b0, b1, b2, err := vm.popExtensionPair()
	if err != nil {
		return err
	}
	r := xfield.New([3]field.Element{a0, a1, a2}).Mul(xfield.New([3]field.Element{b0, b1, b2}))
	return vm.pushTriple(r.Coefficients[0], r.Coefficients[1], r.Coefficients[2])
}

// execXInvert inverts an extension field element with xfield's Inverse.
func (vm *VMState) execXInvert() error {
	a2, err := vm.StackPop()
	if err != nil {
		return err
	}
	a1, err := vm.StackPop()
	if err != nil {
		return err
	}
	a0, err := vm.StackPop()
	if err != nil {
		return err
	}
	if a0.IsZero() && a1.IsZero() && a2.IsZero() {
		return fmt.Errorf("cannot invert zero in extension field")
	}
	inv := xfield.New([3]field.Element{a0, a1, a2}).Inverse()
	return vm.pushTriple(inv.Coefficients[0], inv.Coefficients[1], inv.Coefficients[2])
}

func (vm *VMState) execXbMul() error {
	scalar, err := vm.StackPop()
	if err != nil {
		return err
	}
	a2, err := vm.StackPop()
	if err != nil {
		return err
	}
	a1, err := vm.StackPop()
	if err != nil {
		return err
	}
	a0, err := vm.StackPop()
	if err != nil {
		return err
	}
	return vm.pushTriple(a0.Mul(scalar), a1.Mul(scalar), a2.Mul(scalar))
}

func (vm *VMState) pushTriple(r0, r1, r2 field.Element) error {
	if err := vm.StackPush(r0); err != nil {
		return err
	}
	if err := vm.StackPush(r1); err != nil {
		return err
	}
	if err := vm.StackPush(r2); err != nil {
		return err
	}
	return vm.IncrementIP()
}

// --- Merkle authentication ---

// merkleParent hashes current and sibling in the order dictated by
// nodeIndex's parity (even index => current is the left child).
func merkleParent(nodeIndex field.Element, current, sibling []field.Element) field.Element {
	var hashInput []field.Element
	if (nodeIndex.Value() & 1) == 0 {
		hashInput = append(current, sibling...)
	} else {
		hashInput = append(sibling, current...)
	}
	return hash.PoseidonHash(hashInput)
}

// execMerkleStep verifies one Merkle authentication-path step: it hashes
// the current digest against a stack-supplied sibling and replaces the
// current digest with their parent.
func (vm *VMState) execMerkleStep() error {
	nodeIndex, err := vm.StackPop()
	if err != nil {
		return err
	}
	sibling, err := vm.popVector(5)
	if err != nil {
		return err
	}
	current, err := vm.popVector(5)
	if err != nil {
		return err
	}
	parent := merkleParent(nodeIndex, current, sibling)
	for i := 0; i < 5; i++ {
		if err := vm.StackPush(parent); err != nil {
			return err
		}
	}
	vm.recordCoProcessorCall(HashCoProcessor, map[string]interface{}{
		"operation": "merkle_step", "current": current, "sibling": sibling, "parent": parent,
	})
	return vm.IncrementIP()
}

// execMerkleStepMem is execMerkleStep with the sibling digest read from RAM
// instead of the stack.
func (vm *VMState) execMerkleStepMem() error {
	addr, err := vm.StackPop()
	if err != nil {
		return err
	}
	nodeIndex, err := vm.StackPop()
	if err != nil {
		return err
	}
	sibling := make([]field.Element, 5)
	for i := 0; i < 5; i++ {
		sibling[i] = vm.RAMRead(field.New(uint64(int64(addr.Value()) + int64(i))))
	}
	current, err := vm.popVector(5)
	if err != nil {
		return err
	}
	parent := merkleParent(nodeIndex, current, sibling)
	for i := 0; i < 5; i++ {
		if err := vm.StackPush(parent); err != nil {
			return err
		}
	}
	return vm.IncrementIP()
}

// --- dot product accumulation ---

// execXxDotStep folds one extension-field-by-extension-field product into
// a running accumulator: acc += a * b.
func (vm *VMState) execXxDotStep() error {
	acc2, err := vm.StackPop()
	if err != nil {
		return err
	}
	acc1, err := vm.StackPop()
	if err != nil {
		return err
	}
	acc0, err := vm.StackPop()
	if err != nil {
		return err
	}
	a0, a1, a2, b0, b1, b2, err := vm.popExtensionPair()
	if err != nil {
		return err
	}
	prod := xfield.New([3]field.Element{a0, a1, a2}).Mul(xfield.New([3]field.Element{b0, b1, b2}))
	return vm.pushTriple(acc0.Add(prod.Coefficients[0]), acc1.Add(prod.Coefficients[1]), acc2.Add(prod.Coefficients[2]))
}

// execXbDotStep folds one extension-field-by-base-field product into a
// running accumulator: acc += scalar * a.
func (vm *VMState) execXbDotStep() error {
	acc2, err := vm.StackPop()
	if err != nil {
		return err
	}
	acc1, err := vm.StackPop()
	if err != nil {
		return err
	}
	acc0, err := vm.StackPop()
	if err != nil {
		return err
	}
	scalar, err := vm.StackPop()
	if err != nil {
		return err
	}
	a2, err := vm.StackPop()
	if err != nil {
		return err
	}
	a1, err := vm.StackPop()
	if err != nil {
		return err
	}
	a0, err := vm.StackPop()
	if err != nil {
		return err
	}
	return vm.pushTriple(acc0.Add(a0.Mul(scalar)), acc1.Add(a1.Mul(scalar)), acc2.Add(a2.Mul(scalar)))
}

// --- TIP-0007 permutation-argument bookkeeping ---

// permutationInnerProduct computes Σ(st_i · weight_i) over the top 5 stack
// elements without popping them.
func (vm *VMState) permutationInnerProduct() field.Element {
	innerProduct := field.Zero
	for i := 0; i < 5; i++ {
		innerProduct = innerProduct.Add(vm.Stack[vm.StackPointer-1-i].Mul(vm.PermutationWeights[i]))
	}
	return innerProduct
}

func (vm *VMState) popPermutationOperand() error {
	for i := 0; i < 5; i++ {
		if _, err := vm.StackPop(); err != nil {
			return fmt.Errorf("failed to pop element %d: %w", i, err)
		}
	}
	return nil
}

// execPushPerm folds the top 5 stack elements into the running permutation
// product as permrp' = permrp · (α - Σ(st_i · a_i)), then discards them.
func (vm *VMState) execPushPerm() error {
	if vm.StackPointer < 5 {
		return fmt.Errorf("push_perm requires 5 stack elements, have %d", vm.StackPointer)
	}
	alphaMinusP := vm.PermutationAlpha.Sub(vm.permutationInnerProduct())
	vm.PermutationRunningProduct = vm.PermutationRunningProduct.Mul(alphaMinusP)
	if err := vm.popPermutationOperand(); err != nil {
		return err
	}
	return vm.IncrementIP()
}

// execPopPerm is the inverse of execPushPerm: permrp' = permrp / (α - p).
func (vm *VMState) execPopPerm() error {
	if vm.StackPointer < 5 {
		return fmt.Errorf("pop_perm requires 5 stack elements, have %d", vm.StackPointer)
	}
	alphaMinusP := vm.PermutationAlpha.Sub(vm.permutationInnerProduct())
	if alphaMinusP.IsZero() {
		return fmt.Errorf("pop_perm division by zero: α = p")
	}
	vm.PermutationRunningProduct = vm.PermutationRunningProduct.Mul(alphaMinusP.Inverse())
	if err := vm.popPermutationOperand(); err != nil {
		return err
	}
	return vm.IncrementIP()
}

// execAssertPerm checks that every push_perm has been matched by a
// pop_perm on the same multiset, i.e. the running product collapsed to 1.
func (vm *VMState) execAssertPerm() error {
	if !vm.PermutationRunningProduct.Equal(field.One) {
		return fmt.Errorf("assert_perm failed: permutation running product is not 1 (got %s)",
			vm.PermutationRunningProduct.String())
	}
	return vm.IncrementIP()
}
