// Package bfieldcodec serializes values to and from sequences of
// Goldilocks field elements — the wire format STARK proofs, Merkle
// leaves, and Fiat-Shamir transcripts all exchange instead of raw bytes.
//
// Fixed-size types encode to a constant number of elements; dynamic
// types (slices, options) are prefixed with their length so a decoder
// knows how much of the sequence to consume.
package bfieldcodec

import (
	"fmt"
	"math/big"

	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/xfield"
)

type ErrorType int

const (
	ErrorEmptySequence ErrorType = iota
	ErrorSequenceTooShort
	ErrorSequenceTooLong
	ErrorElementOutOfRange
	ErrorMissingLengthIndicator
	ErrorInvalidLengthIndicator
	ErrorInnerDecodingFailure
	ErrorUnsupportedType
)

// BFieldCodecError reports a malformed or out-of-range encoding.
type BFieldCodecError struct {
	Type    ErrorType
	Message string
}

func (e BFieldCodecError) Error() string {
	return fmt.Sprintf("BFieldCodec error [%d]: %s", e.Type, e.Message)
}

func errf(t ErrorType, format string, args ...any) error {
	return BFieldCodecError{t, fmt.Sprintf(format, args...)}
}

// BFieldCodec is implemented by any type with a fixed serialization into
// field elements. Go's interfaces can't express Rust-style associated
// constants, so StaticLength is a method instead of a trait constant.
type BFieldCodec interface {
	Encode() []field.Element
	// Decode reconstructs a value from sequence. Callers type-assert the
	// returned BFieldCodec to the concrete type they expect.
	Decode(sequence []field.Element) (BFieldCodec, error)
	// StaticLength returns the element count for fixed-size types, or
	// nil for types that need a length prefix.
	StaticLength() *int
}

func EncodeBFieldElement(element field.Element) []field.Element {
	return []field.Element{element}
}

func DecodeBFieldElement(sequence []field.Element) (field.Element, error) {
	if len(sequence) == 0 {
		return field.Zero, errf(ErrorEmptySequence, "empty sequence")
	}
	if len(sequence) > 1 {
		return field.Zero, errf(ErrorSequenceTooLong, "sequence too long for single element")
	}
	return sequence[0], nil
}

// decodeSingleElement reads exactly one field element and checks it
// fits within max, the shared shape behind DecodeUint8/16/32/Bool.
func decodeSingleElement(sequence []field.Element, max uint64, label string) (uint64, error) {
	if len(sequence) == 0 {
		return 0, errf(ErrorEmptySequence, "empty sequence")
	}
	if len(sequence) > 1 {
		return 0, errf(ErrorSequenceTooLong, "sequence too long for %s", label)
	}
	value := sequence[0].Value()
	if value > max {
		return 0, errf(ErrorElementOutOfRange, "element out of range for %s", label)
	}
	return value, nil
}

// EncodeUint64 splits value into its low and high 32-bit halves, each
// stored as its own element so the result always fits a single field
// element's value range.
func EncodeUint64(value uint64) []field.Element {
	return []field.Element{
		field.New(value & 0xFFFFFFFF),
		field.New((value >> 32) & 0xFFFFFFFF),
	}
}

func DecodeUint64(sequence []field.Element) (uint64, error) {
	if len(sequence) < 2 {
		return 0, errf(ErrorSequenceTooShort, "need at least 2 elements for uint64")
	}
	if len(sequence) > 2 {
		return 0, errf(ErrorSequenceTooLong, "too many elements for uint64")
	}

	low, high := sequence[0].Value(), sequence[1].Value()
	if low > 0xFFFFFFFF || high > 0xFFFFFFFF {
		return 0, errf(ErrorElementOutOfRange, "element out of range for uint64")
	}
	return (high << 32) | low, nil
}

func EncodeUint32(value uint32) []field.Element {
	return []field.Element{field.New(uint64(value))}
}

func DecodeUint32(sequence []field.Element) (uint32, error) {
	value, err := decodeSingleElement(sequence, 0xFFFFFFFF, "uint32")
	return uint32(value), err
}

func EncodeUint16(value uint16) []field.Element {
	return []field.Element{field.New(uint64(value))}
}

func DecodeUint16(sequence []field.Element) (uint16, error) {
	value, err := decodeSingleElement(sequence, 0xFFFF, "uint16")
	return uint16(value), err
}

func EncodeUint8(value uint8) []field.Element {
	return []field.Element{field.New(uint64(value))}
}

func DecodeUint8(sequence []field.Element) (uint8, error) {
	value, err := decodeSingleElement(sequence, 0xFF, "uint8")
	return uint8(value), err
}

func EncodeBool(value bool) []field.Element {
	if value {
		return []field.Element{field.One}
	}
	return []field.Element{field.Zero}
}

func DecodeBool(sequence []field.Element) (bool, error) {
	value, err := decodeSingleElement(sequence, 1, "bool")
	return value == 1, err
}

func EncodeXFieldElement(element xfield.XFieldElement) []field.Element {
	return append([]field.Element(nil), element.Coefficients[:]...)
}

func DecodeXFieldElement(sequence []field.Element) (xfield.XFieldElement, error) {
	if len(sequence) < 3 {
		return xfield.Zero, errf(ErrorSequenceTooShort, "need at least 3 elements for XFieldElement")
	}
	if len(sequence) > 3 {
		return xfield.Zero, errf(ErrorSequenceTooLong, "too many elements for XFieldElement")
	}
	return xfield.New([3]field.Element{sequence[0], sequence[1], sequence[2]}), nil
}

// EncodeSlice prefixes the encoded elements with the slice length.
func EncodeSlice[T BFieldCodec](slice []T) []field.Element {
	if len(slice) == 0 {
		return []field.Element{field.Zero}
	}

	result := []field.Element{field.New(uint64(len(slice)))}
	for _, item := range slice {
		result = append(result, item.Encode()...)
	}
	return result
}

// DecodeSlice reads a length prefix, then decodes that many items —
// each either StaticLength()-sized or, for dynamic-length element
// types, itself length-prefixed.
func DecodeSlice[T BFieldCodec](sequence []field.Element, constructor func() T) ([]T, error) {
	if len(sequence) == 0 {
		return nil, errf(ErrorEmptySequence, "empty sequence")
	}

	numItems := sequence[0].Value()
	sequence = sequence[1:]
	if numItems == 0 {
		return []T{}, nil
	}

	result := make([]T, numItems)
	staticLen := constructor().StaticLength()

	for i := 0; i < int(numItems); i++ {
		var itemSequence []field.Element

		if staticLen != nil {
			itemLength := *staticLen
			if len(sequence) < itemLength {
				return nil, errf(ErrorSequenceTooShort, "sequence too short for item %d (need %d elements)", i, itemLength)
			}
			itemSequence, sequence = sequence[:itemLength], sequence[itemLength:]
		} else {
			if len(sequence) == 0 {
				return nil, errf(ErrorMissingLengthIndicator, "missing length indicator for item %d", i)
			}
			itemLength := int(sequence[0].Value())
			if len(sequence) < 1+itemLength {
				return nil, errf(ErrorSequenceTooShort, "sequence too short for item %d (need %d elements after prefix)", i, itemLength)
			}
			itemSequence, sequence = sequence[1:1+itemLength], sequence[1+itemLength:]
		}

		typedItem, err := decodeAs[T](constructor(), itemSequence, i)
		if err != nil {
			return nil, err
		}
		result[i] = typedItem
	}

	if len(sequence) > 0 {
		return nil, errf(ErrorSequenceTooLong, "trailing data after decoding all items")
	}
	return result, nil
}

// decodeAs runs item.Decode and type-asserts the result back to T,
// wrapping both failure modes (a decode error, or Decode returning the
// wrong concrete type) as BFieldCodecErrors tagged with the item index.
func decodeAs[T BFieldCodec](item T, sequence []field.Element, index int) (T, error) {
	var zero T

	decoded, err := item.Decode(sequence)
	if err != nil {
		return zero, errf(ErrorInnerDecodingFailure, "failed to decode item %d: %v", index, err)
	}
	typed, ok := decoded.(T)
	if !ok {
		return zero, errf(ErrorUnsupportedType, "decoded item %d has unexpected type", index)
	}
	return typed, nil
}

func EncodeTuple(values ...BFieldCodec) []field.Element {
	var result []field.Element
	for _, value := range values {
		result = append(result, value.Encode()...)
	}
	return result
}

// EncodeOption prefixes the encoded value with a 0/1 presence flag.
func EncodeOption[T BFieldCodec](value *T) []field.Element {
	if value == nil {
		return []field.Element{field.Zero}
	}
	return append([]field.Element{field.One}, (*value).Encode()...)
}

func DecodeOption[T BFieldCodec](sequence []field.Element, constructor func() T) (*T, error) {
	if len(sequence) == 0 {
		return nil, errf(ErrorEmptySequence, "empty sequence")
	}

	isSome, err := DecodeBool(sequence[0:1])
	if err != nil {
		return nil, errf(ErrorInnerDecodingFailure, "failed to decode option indicator: %v", err)
	}
	if !isSome {
		if len(sequence) > 1 {
			return nil, errf(ErrorSequenceTooLong, "None option should not have trailing data")
		}
		return nil, nil
	}

	typed, err := decodeAs[T](constructor(), sequence[1:], 0)
	if err != nil {
		return nil, err
	}
	return &typed, nil
}

func EncodeArray[T BFieldCodec](array []T) []field.Element {
	var result []field.Element
	for _, item := range array {
		result = append(result, item.Encode()...)
	}
	return result
}

// DecodeArray decodes exactly length consecutive static-length items —
// unlike DecodeSlice there's no length prefix to read, since the caller
// already knows how many elements to expect. Dynamic-length element
// types aren't supported here: without per-item length prefixes there's
// no way to find each item's boundary.
func DecodeArray[T BFieldCodec](sequence []field.Element, length int, constructor func() T) ([]T, error) {
	if len(sequence) == 0 && length > 0 {
		return nil, errf(ErrorEmptySequence, "empty sequence")
	}

	staticLen := constructor().StaticLength()
	if staticLen == nil && length > 0 {
		return nil, errf(ErrorUnsupportedType, "cannot decode arrays of dynamic-length items without length indicators")
	}

	result := make([]T, length)
	offset := 0
	for i := 0; i < length; i++ {
		itemLength := *staticLen
		if offset+itemLength > len(sequence) {
			return nil, errf(ErrorSequenceTooShort, "sequence too short for element %d (need %d elements at offset %d)", i, itemLength, offset)
		}

		typedItem, err := decodeAs[T](constructor(), sequence[offset:offset+itemLength], i)
		if err != nil {
			return nil, err
		}
		result[i] = typedItem
		offset += itemLength
	}

	if offset != len(sequence) {
		return nil, errf(ErrorSequenceTooLong, "sequence length mismatch: expected %d elements, got %d", offset, len(sequence))
	}
	return result, nil
}

// EncodeLengthPrefix prepends the element count of an already-encoded
// sequence, the building block every dynamic-length encoder uses.
func EncodeLengthPrefix(encoded []field.Element) []field.Element {
	return append([]field.Element{field.New(uint64(len(encoded)))}, encoded...)
}

func DecodeLengthPrefix(sequence []field.Element) (length int, remaining []field.Element, err error) {
	if len(sequence) == 0 {
		return 0, nil, errf(ErrorEmptySequence, "empty sequence")
	}

	length = int(sequence[0].Value())
	if len(sequence) < 1+length {
		return 0, nil, errf(ErrorSequenceTooShort, "sequence too short for indicated length")
	}
	return length, sequence[1:], nil
}

func ValidateSequenceLength(sequence []field.Element, expected int) error {
	if len(sequence) < expected {
		return errf(ErrorSequenceTooShort, "need at least %d elements", expected)
	}
	if len(sequence) > expected {
		return errf(ErrorSequenceTooLong, "too many elements, expected %d", expected)
	}
	return nil
}

func ConvertToBigInt(element field.Element) *big.Int {
	return big.NewInt(int64(element.Value()))
}

// ConvertFromBigInt reduces value modulo the field prime before
// converting, so out-of-range big.Ints don't silently truncate.
func ConvertFromBigInt(value *big.Int) field.Element {
	prime := new(big.Int).SetUint64(field.P)
	mod := new(big.Int).Mod(value, prime)
	return field.New(mod.Uint64())
}
