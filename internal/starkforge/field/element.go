// Package field implements arithmetic over the Goldilocks prime field
// F_p, p = 2^64 - 2^32 + 1. Elements are stored in Montgomery form so that
// Mul can reduce with shifts and adds instead of a 128-bit division.
package field

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"math/bits"
)

// P is the field's prime modulus.
const P uint64 = 0xFFFFFFFF00000001

// r2 is 2^128 mod P, the constant that converts a canonical value into
// Montgomery form in a single reduction.
const r2 uint64 = 0xFFFFFFFE00000001

// minusTwoInverse is -2^(-1) mod P, kept alongside the modulus for callers
// that need it without recomputing an inverse.
const minusTwoInverse uint64 = 0x7FFFFFFF80000000

// Element is a Goldilocks field element. The zero value is the field's
// zero. All arithmetic methods operate on the Montgomery-form value
// directly; conversion to and from canonical form only happens at the
// edges (New, Value, byte (de)serialization).
type Element struct {
	value uint64 // x * 2^64 mod P
}

var (
	Zero = Element{0}
	One  = New(1)
	Max  = New(P - 1)
)

// --- construction ---

// New builds an element from a canonical uint64, reducing mod P and
// converting into Montgomery form.
func New(value uint64) Element {
	return Element{value: montgomeryReduce(widenMul(value, r2))}
}

// NewFromRaw wraps a value that is already in Montgomery form, e.g. one
// read back from a prior RawValue call.
func NewFromRaw(raw uint64) Element {
	return Element{value: raw}
}

// NewFromInt64 builds an element from a signed value, mapping negatives to
// P - |value|.
func NewFromInt64(value int64) Element {
	if value >= 0 {
		return New(uint64(value) % P)
	}
	absValue := uint64(-value) % P
	if absValue == 0 {
		return Zero
	}
	return New(P - absValue)
}

// NewFromBigInt reduces an arbitrary-precision integer mod P.
func NewFromBigInt(value *big.Int) Element {
	mod := new(big.Int).SetUint64(P)
	reduced := new(big.Int).Mod(value, mod)
	if reduced.Sign() < 0 {
		reduced.Add(reduced, mod)
	}
	return New(reduced.Uint64())
}

// Generator returns a multiplicative generator of the full field; 7 for
// Goldilocks.
func Generator() Element {
	return New(7)
}

// --- reading back out ---

// Value returns the canonical (non-Montgomery) representative in [0, P).
func (e Element) Value() uint64 {
	return montgomeryReduce(wideUint{lo: e.value})
}

// RawValue exposes the underlying Montgomery-form value, for callers that
// round-trip through NewFromRaw rather than through canonical form.
func (e Element) RawValue() uint64 {
	return e.value
}

func (e Element) String() string {
	return fmt.Sprintf("%d", e.Value())
}

func (e Element) Hex() string {
	return fmt.Sprintf("%x", e.Value())
}

func (e Element) HexUpper() string {
	return fmt.Sprintf("%X", e.Value())
}

// --- predicates and ordering ---

func (e Element) IsZero() bool { return e.value == 0 }

func (e Element) IsOne() bool { return e.Equal(One) }

func (e Element) Equal(other Element) bool { return e.value == other.value }

// Less and Greater compare canonical values, not the raw Montgomery
// representation, so ordering matches what a reader expects from the
// field's usual [0, P) ordering.
func (e Element) Less(other Element) bool { return e.Value() < other.Value() }

func (e Element) Greater(other Element) bool { return e.Value() > other.Value() }

// --- arithmetic ---

// Add computes a + b via a - (P - b), which folds the modular reduction
// into the borrow the subtraction already produces.
func (e Element) Add(other Element) Element {
	diff, borrowed := bits.Sub64(e.value, P-other.value, 0)
	if borrowed != 0 {
		return Element{value: diff + P}
	}
	return Element{value: diff}
}

// Sub computes a - b, adding P back in whenever the subtraction borrows.
func (e Element) Sub(other Element) Element {
	diff, borrowed := bits.Sub64(e.value, other.value, 0)
	return Element{value: diff - ((1 + ^P) * borrowed)}
}

// Mul computes a * b by widening to 128 bits and Montgomery-reducing.
func (e Element) Mul(other Element) Element {
	return Element{value: montgomeryReduce(widenMul(e.value, other.value))}
}

func (e Element) Div(other Element) Element {
	return e.Mul(other.Inverse())
}

func (e Element) Square() Element {
	return e.Mul(e)
}

// Inverse computes a^(P-2), the multiplicative inverse, via a fixed
// addition chain over P-2's bit pattern. Panics on zero, which has no
// inverse.
func (e Element) Inverse() Element {
	if e.IsZero() {
		panic("attempted to find the multiplicative inverse of zero")
	}

	repeatedSquare := func(base Element, times uint64) Element {
		acc := base
		for i := uint64(0); i < times; i++ {
			acc = acc.Square()
		}
		return acc
	}

	ones3 := e.Square().Mul(e)                           // e^3
	ones7 := ones3.Square().Mul(e)                       // e^7
	ones63 := repeatedSquare(ones7, 3).Mul(ones7)        // e^(2^6-1)
	ones4095 := repeatedSquare(ones63, 6).Mul(ones63)    // e^(2^12-1)
	ones24 := repeatedSquare(ones4095, 12).Mul(ones4095) // e^(2^24-1)
	ones30 := repeatedSquare(ones24, 6).Mul(ones63)      // e^(2^30-1)
	ones31 := ones30.Square().Mul(e)                     // e^(2^31-1)
	ones31Shifted := ones31.Square()                     // e^(2^32-2)
	ones32 := ones31.Square().Mul(e)                     // e^(2^32-1)

	return repeatedSquare(ones31Shifted, 32).Mul(ones32)
}

// ModPow computes e^exp via square-and-multiply over exp's bits, most
// significant first.
func (e Element) ModPow(exp uint64) Element {
	if exp == 0 {
		return One
	}

	acc := One
	width := bits.Len64(exp)
	for i := 0; i < width; i++ {
		acc = acc.Square()
		if exp&(1<<(width-1-i)) != 0 {
			acc = acc.Mul(e)
		}
	}
	return acc
}

func (e Element) Neg() Element {
	if e.IsZero() {
		return Zero
	}
	return Element{value: P - e.value}
}

// --- conversions ---

func (e Element) ToBigInt() *big.Int {
	return new(big.Int).SetUint64(e.Value())
}

// ToBytes returns the element's little-endian Montgomery-form bytes.
func (e Element) ToBytes() [8]byte {
	var out [8]byte
	binary.LittleEndian.PutUint64(out[:], e.value)
	return out
}

// FromBytes is ToBytes's inverse.
func FromBytes(bytes [8]byte) Element {
	return NewFromRaw(binary.LittleEndian.Uint64(bytes[:]))
}

func (e Element) MarshalBinary() ([]byte, error) {
	raw := e.ToBytes()
	return raw[:], nil
}

func (e *Element) UnmarshalBinary(data []byte) error {
	if len(data) != 8 {
		return fmt.Errorf("invalid data length: expected 8 bytes, got %d", len(data))
	}
	var raw [8]byte
	copy(raw[:], data)
	*e = FromBytes(raw)
	return nil
}

// --- Montgomery internals ---

// wideUint is a 128-bit unsigned integer split into two 64-bit limbs.
type wideUint struct {
	lo, hi uint64
}

// widenMul computes the full 128-bit product of two 64-bit values.
func widenMul(a, b uint64) wideUint {
	hi, lo := bits.Mul64(a, b)
	return wideUint{lo: lo, hi: hi}
}

// montgomeryReduce reduces a 128-bit value x (interpreted as x in
// Montgomery domain scaled by 2^64) down to a 64-bit value in the same
// domain, using P's special shape (2^64 - 2^32 + 1) to replace the usual
// multiply-by-modulus-inverse step with shifts and adds.
func montgomeryReduce(x wideUint) uint64 {
	lowShifted, carried := bits.Add64(x.lo, x.lo<<32, 0)
	reduced := lowShifted - (lowShifted >> 32) - carried
	result, borrowed := bits.Sub64(x.hi, reduced, 0)
	return result - ((1 + ^P) * borrowed)
}
