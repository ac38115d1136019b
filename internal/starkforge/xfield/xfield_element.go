// Package xfield implements the cubic extension field F_p^3 built over the
// Goldilocks base field, via the irreducible polynomial x³ - x + 1 (so
// x³ = x - 1 inside the extension). STARK proofs work over this extension
// to get enough soundness out of a field too small to use directly.
package xfield

import (
	"encoding/json"
	"fmt"

	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/polynomial"
)

// ExtensionDegree is the degree of the field extension: every element is a
// triple of base-field coefficients.
const ExtensionDegree = 3

// XFieldElement is c0 + c1*x + c2*x^2 for base-field coefficients c0, c1, c2.
type XFieldElement struct {
	Coefficients [ExtensionDegree]field.Element
}

var (
	Zero = XFieldElement{[ExtensionDegree]field.Element{field.Zero, field.Zero, field.Zero}}
	One  = XFieldElement{[ExtensionDegree]field.Element{field.One, field.Zero, field.Zero}}
)

func New(coefficients [ExtensionDegree]field.Element) XFieldElement {
	return XFieldElement{Coefficients: coefficients}
}

// NewConst lifts a base field element into the extension as a constant:
// element + 0*x + 0*x^2.
func NewConst(element field.Element) XFieldElement {
	return XFieldElement{Coefficients: [ExtensionDegree]field.Element{element, field.Zero, field.Zero}}
}

func NewU64(value uint64) XFieldElement {
	return NewConst(field.New(value))
}

func (x XFieldElement) IsZero() bool {
	return x.Coefficients[0].IsZero() && x.Coefficients[1].IsZero() && x.Coefficients[2].IsZero()
}

func (x XFieldElement) IsOne() bool {
	return x.Coefficients[0].IsOne() && x.Coefficients[1].IsZero() && x.Coefficients[2].IsZero()
}

func (x XFieldElement) Equal(other XFieldElement) bool {
	return x.Coefficients[0].Equal(other.Coefficients[0]) &&
		x.Coefficients[1].Equal(other.Coefficients[1]) &&
		x.Coefficients[2].Equal(other.Coefficients[2])
}

// Unlift returns the base field element this extension element represents,
// if it is actually a constant (c1 = c2 = 0); nil otherwise.
func (x XFieldElement) Unlift() *field.Element {
	if x.Coefficients[1].IsZero() && x.Coefficients[2].IsZero() {
		constant := x.Coefficients[0]
		return &constant
	}
	return nil
}

func (x XFieldElement) String() string {
	if constant := x.Unlift(); constant != nil {
		return fmt.Sprintf("%s_xfe", constant.String())
	}
	c0, c1, c2 := x.Coefficients[0], x.Coefficients[1], x.Coefficients[2]
	return fmt.Sprintf("(%020d·x² + %020d·x + %020d)", c2.Value(), c1.Value(), c0.Value())
}

// combineCoefficients applies op to each coefficient pair of x and other,
// backing Add/Sub/Neg and any other elementwise operation.
func combineCoefficients(x, other XFieldElement, op func(a, b field.Element) field.Element) XFieldElement {
	var out [ExtensionDegree]field.Element
	for i := range out {
		out[i] = op(x.Coefficients[i], other.Coefficients[i])
	}
	return XFieldElement{Coefficients: out}
}

func (x XFieldElement) Add(other XFieldElement) XFieldElement {
	return combineCoefficients(x, other, field.Element.Add)
}

// AddConst adds a base field element into the constant term only.
func (x XFieldElement) AddConst(other field.Element) XFieldElement {
	out := x.Coefficients
	out[0] = out[0].Add(other)
	return XFieldElement{Coefficients: out}
}

func (x XFieldElement) Sub(other XFieldElement) XFieldElement {
	return combineCoefficients(x, other, field.Element.Sub)
}

func (x XFieldElement) SubConst(other field.Element) XFieldElement {
	out := x.Coefficients
	out[0] = out[0].Sub(other)
	return XFieldElement{Coefficients: out}
}

func (x XFieldElement) Neg() XFieldElement {
	var out [ExtensionDegree]field.Element
	for i, c := range x.Coefficients {
		out[i] = c.Neg()
	}
	return XFieldElement{Coefficients: out}
}

// Mul multiplies two extension elements modulo x³ - x + 1.
//
// Writing x = a·t² + b·t + c and other = d·t² + e·t + f, the raw product
// has degree 4; substituting t³ = t - 1 (and so t⁴ = t² - t) to fold the
// degree-3 and degree-4 terms back down leaves:
//
//	r0 = cf - ae - bd
//	r1 = bf + ce - ad + ae + bd
//	r2 = af + be + cd + ad
func (x XFieldElement) Mul(other XFieldElement) XFieldElement {
	c, b, a := x.Coefficients[0], x.Coefficients[1], x.Coefficients[2]
	f, e, d := other.Coefficients[0], other.Coefficients[1], other.Coefficients[2]

	ae := a.Mul(e)
	bd := b.Mul(d)

	r0 := c.Mul(f).Sub(ae).Sub(bd)
	r1 := b.Mul(f).Add(c.Mul(e)).Sub(a.Mul(d)).Add(ae).Add(bd)
	r2 := a.Mul(f).Add(b.Mul(e)).Add(c.Mul(d)).Add(a.Mul(d))

	return XFieldElement{Coefficients: [ExtensionDegree]field.Element{r0, r1, r2}}
}

// MulConst scales every coefficient by a base field scalar.
func (x XFieldElement) MulConst(scalar field.Element) XFieldElement {
	var out [ExtensionDegree]field.Element
	for i, c := range x.Coefficients {
		out[i] = c.Mul(scalar)
	}
	return XFieldElement{Coefficients: out}
}

// ShahPolynomial returns the degree-3 polynomial x³ - x + 1 that defines
// this extension.
func ShahPolynomial() *polynomial.Polynomial {
	return polynomial.New([]field.Element{field.One, field.One.Neg(), field.Zero, field.One})
}

// Inverse computes the multiplicative inverse. Constants (c1 = c2 = 0)
// invert directly in the base field; anything else goes through the
// extended Euclidean algorithm against the Shah polynomial, since there's
// no closed-form inverse as simple as Mul's.
func (x XFieldElement) Inverse() XFieldElement {
	if x.IsZero() {
		panic("cannot invert the zero element in the extension field")
	}

	a, b, c := x.Coefficients[0], x.Coefficients[1], x.Coefficients[2]
	if b.IsZero() && c.IsZero() {
		return NewConst(a.Inverse())
	}

	asPoly := polynomial.New([]field.Element{a, b, c})
	shah := ShahPolynomial()

	// asPoly and shah are coprime (shah is irreducible), so their gcd is a
	// unit; the Bezout coefficient on asPoly, reduced mod shah, is x's
	// inverse.
	_, bezoutCoeff, _ := polynomial.XGCD(asPoly, shah)
	_, remainder := bezoutCoeff.Divide(shah)

	coeffs := remainder.Coefficients()
	var out [ExtensionDegree]field.Element
	for i := range out {
		if i < len(coeffs) {
			out[i] = coeffs[i]
		} else {
			out[i] = field.Zero
		}
	}
	return XFieldElement{Coefficients: out}
}

func (x XFieldElement) Div(other XFieldElement) XFieldElement {
	return x.Mul(other.Inverse())
}

// Pow computes x^exponent via square-and-multiply, least significant bit
// first.
func (x XFieldElement) Pow(exponent uint64) XFieldElement {
	result := One
	base := x
	for exponent > 0 {
		if exponent&1 == 1 {
			result = result.Mul(base)
		}
		base = base.Mul(base)
		exponent >>= 1
	}
	return result
}

// MarshalJSON serializes the three coefficients as a JSON array of their
// canonical uint64 values.
func (x XFieldElement) MarshalJSON() ([]byte, error) {
	values := [ExtensionDegree]uint64{
		x.Coefficients[0].Value(),
		x.Coefficients[1].Value(),
		x.Coefficients[2].Value(),
	}
	return json.Marshal(values)
}

func (x *XFieldElement) UnmarshalJSON(data []byte) error {
	var values [ExtensionDegree]uint64
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	x.Coefficients = [ExtensionDegree]field.Element{
		field.New(values[0]), field.New(values[1]), field.New(values[2]),
	}
	return nil
}

// ToDigest embeds an extension element into a 5-wide digest (the Poseidon
// sponge's rate), zero-padding the remaining two slots.
func (x XFieldElement) ToDigest() [5]field.Element {
	return [5]field.Element{x.Coefficients[0], x.Coefficients[1], x.Coefficients[2], field.Zero, field.Zero}
}

// FromDigest is ToDigest's inverse; returns nil if the digest's padding
// slots aren't actually zero, meaning it didn't come from ToDigest.
func FromDigest(digest [5]field.Element) *XFieldElement {
	if !digest[3].IsZero() || !digest[4].IsZero() {
		return nil
	}
	return &XFieldElement{Coefficients: [ExtensionDegree]field.Element{digest[0], digest[1], digest[2]}}
}

// AsFlatSlice flattens a slice of extension elements into their base-field
// coefficients, in order, for zero-copy hashing and similar bulk
// operations: [xfe[0].c0, xfe[0].c1, xfe[0].c2, xfe[1].c0, ...].
func AsFlatSlice(xfes []XFieldElement) []field.Element {
	if len(xfes) == 0 {
		return nil
	}
	out := make([]field.Element, len(xfes)*ExtensionDegree)
	for i, xfe := range xfes {
		base := i * ExtensionDegree
		out[base] = xfe.Coefficients[0]
		out[base+1] = xfe.Coefficients[1]
		out[base+2] = xfe.Coefficients[2]
	}
	return out
}

// FromBFieldSlice packs exactly ExtensionDegree base field elements into
// one extension element.
func FromBFieldSlice(elements []field.Element) (*XFieldElement, error) {
	if len(elements) != ExtensionDegree {
		return nil, fmt.Errorf("invalid length %d, expected %d", len(elements), ExtensionDegree)
	}
	return &XFieldElement{Coefficients: [ExtensionDegree]field.Element{elements[0], elements[1], elements[2]}}, nil
}
