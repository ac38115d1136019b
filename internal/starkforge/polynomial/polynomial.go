// Package polynomial implements univariate polynomial arithmetic over the
// Goldilocks field: the representation STARK constraints, quotients, and
// FRI layers all get expressed in before they're committed to via Merkle
// trees or evaluated over an NTT domain.
package polynomial

import (
	"fmt"

	"github.com/starkforge/starkforge/internal/starkforge/field"
)

// Polynomial is a coefficient vector in order of increasing degree:
// coefficients[0] is the constant term. The zero polynomial is an empty
// slice, never stored with a redundant leading-zero tail.
type Polynomial struct {
	coefficients []field.Element
}

func New(coefficients []field.Element) *Polynomial {
	p := &Polynomial{coefficients: append([]field.Element(nil), coefficients...)}
	p.normalize()
	return p
}

func Zero() *Polynomial { return &Polynomial{} }

func One() *Polynomial { return &Polynomial{coefficients: []field.Element{field.One}} }

func X() *Polynomial { return &Polynomial{coefficients: []field.Element{field.Zero, field.One}} }

func XToThe(n int) *Polynomial {
	if n < 0 {
		panic("negative exponent")
	}
	if n == 0 {
		return One()
	}
	coeffs := make([]field.Element, n+1)
	coeffs[n] = field.One
	return &Polynomial{coefficients: coeffs}
}

// linearFactor builds the degree-1 polynomial (x - root); Shift,
// Interpolate, and Zerofier all multiply by one of these per point.
func linearFactor(root field.Element) *Polynomial {
	return &Polynomial{coefficients: []field.Element{root.Neg(), field.One}}
}

// Degree returns -1 for the zero polynomial, otherwise the highest index
// with a non-zero coefficient.
func (p *Polynomial) Degree() int {
	deg := len(p.coefficients) - 1
	for deg >= 0 && p.coefficients[deg].IsZero() {
		deg--
	}
	return deg
}

// Coefficients returns coefficients up to and including the leading
// (guaranteed non-zero, except for the zero polynomial) term.
func (p *Polynomial) Coefficients() []field.Element {
	deg := p.Degree()
	if deg < 0 {
		return nil
	}
	return p.coefficients[:deg+1]
}

func (p *Polynomial) LeadingCoefficient() field.Element {
	if deg := p.Degree(); deg >= 0 {
		return p.coefficients[deg]
	}
	return field.Zero
}

func (p *Polynomial) IsZero() bool { return p.Degree() < 0 }

func (p *Polynomial) IsOne() bool {
	return p.Degree() == 0 && p.coefficients[0].IsOne()
}

func (p *Polynomial) IsX() bool {
	return p.Degree() == 1 && p.coefficients[0].IsZero() && p.coefficients[1].IsOne()
}

func (p *Polynomial) Equal(other *Polynomial) bool {
	if p.Degree() != other.Degree() {
		return false
	}
	for i := 0; i <= p.Degree(); i++ {
		if !p.coefficients[i].Equal(other.coefficients[i]) {
			return false
		}
	}
	return true
}

func (p *Polynomial) Clone() *Polynomial {
	return &Polynomial{coefficients: append([]field.Element(nil), p.coefficients...)}
}

func (p *Polynomial) normalize() {
	for len(p.coefficients) > 0 && p.coefficients[len(p.coefficients)-1].IsZero() {
		p.coefficients = p.coefficients[:len(p.coefficients)-1]
	}
}

// coefficientAt returns coeffs[i] if in range, else field.Zero — the
// padding Add/Sub need when the two operands have different lengths.
func coefficientAt(coeffs []field.Element, i int) field.Element {
	if i < len(coeffs) {
		return coeffs[i]
	}
	return field.Zero
}

// zipCoefficients combines p's and other's coefficients position-wise,
// zero-padding the shorter operand, backing both Add and Sub.
func zipCoefficients(p, other *Polynomial, op func(a, b field.Element) field.Element) *Polynomial {
	n := len(p.coefficients)
	if len(other.coefficients) > n {
		n = len(other.coefficients)
	}

	coeffs := make([]field.Element, n)
	for i := range coeffs {
		coeffs[i] = op(coefficientAt(p.coefficients, i), coefficientAt(other.coefficients, i))
	}
	return New(coeffs)
}

func (p *Polynomial) Add(other *Polynomial) *Polynomial {
	return zipCoefficients(p, other, field.Element.Add)
}

func (p *Polynomial) Sub(other *Polynomial) *Polynomial {
	return zipCoefficients(p, other, field.Element.Sub)
}

func (p *Polynomial) Neg() *Polynomial {
	coeffs := make([]field.Element, len(p.coefficients))
	for i, c := range p.coefficients {
		coeffs[i] = c.Neg()
	}
	return &Polynomial{coefficients: coeffs}
}

// Mul multiplies via the naive O(n^2) convolution. For large operands,
// MulNTT is asymptotically faster.
func (p *Polynomial) Mul(other *Polynomial) *Polynomial {
	if p.IsZero() || other.IsZero() {
		return Zero()
	}

	degP, degQ := p.Degree(), other.Degree()
	coeffs := make([]field.Element, degP+degQ+1)
	for i := 0; i <= degP; i++ {
		for j := 0; j <= degQ; j++ {
			coeffs[i+j] = coeffs[i+j].Add(p.coefficients[i].Mul(other.coefficients[j]))
		}
	}
	return &Polynomial{coefficients: coeffs}
}

func (p *Polynomial) ScalarMul(scalar field.Element) *Polynomial {
	if scalar.IsZero() {
		return Zero()
	}
	coeffs := make([]field.Element, len(p.coefficients))
	for i, c := range p.coefficients {
		coeffs[i] = c.Mul(scalar)
	}
	return &Polynomial{coefficients: coeffs}
}

// Evaluate computes p(x) via Horner's method.
func (p *Polynomial) Evaluate(x field.Element) field.Element {
	if p.IsZero() {
		return field.Zero
	}
	result := p.coefficients[len(p.coefficients)-1]
	for i := len(p.coefficients) - 2; i >= 0; i-- {
		result = result.Mul(x).Add(p.coefficients[i])
	}
	return result
}

func (p *Polynomial) BatchEvaluate(points []field.Element) []field.Element {
	results := make([]field.Element, len(points))
	for i, point := range points {
		results[i] = p.Evaluate(point)
	}
	return results
}

// FormalDerivative returns p'(x): for p = sum(a_i * x^i), p' = sum(i *
// a_i * x^(i-1)).
func (p *Polynomial) FormalDerivative() *Polynomial {
	if p.Degree() <= 0 {
		return Zero()
	}
	coeffs := make([]field.Element, len(p.coefficients)-1)
	for i := 1; i < len(p.coefficients); i++ {
		coeffs[i-1] = p.coefficients[i].Mul(field.New(uint64(i)))
	}
	return New(coeffs)
}

// Shift returns p(x - offset), computed by Horner's method using
// (x - offset) as the "variable" being multiplied in at each step.
func (p *Polynomial) Shift(offset field.Element) *Polynomial {
	if p.IsZero() {
		return Zero()
	}

	xMinusOffset := linearFactor(offset)
	result := New([]field.Element{p.coefficients[len(p.coefficients)-1]})
	for i := len(p.coefficients) - 2; i >= 0; i-- {
		result = result.Mul(xMinusOffset).Add(New([]field.Element{p.coefficients[i]}))
	}
	return result
}

// Scale returns p(alpha * x).
func (p *Polynomial) Scale(alpha field.Element) *Polynomial {
	if p.IsZero() || alpha.IsZero() {
		return Zero()
	}

	coeffs := make([]field.Element, len(p.coefficients))
	power := field.One
	for i, c := range p.coefficients {
		coeffs[i] = c.Mul(power)
		power = power.Mul(alpha)
	}
	return New(coeffs)
}

// Monic scales p so its leading coefficient is 1. Panics on the zero
// polynomial, which has no leading coefficient to normalize.
func (p *Polynomial) Monic() *Polynomial {
	if p.IsZero() {
		panic("cannot make zero polynomial monic")
	}
	lc := p.LeadingCoefficient()
	if lc.IsOne() {
		return p.Clone()
	}
	return p.ScalarMul(lc.Inverse())
}

func (p *Polynomial) String() string {
	if p.IsZero() {
		return "0"
	}

	result := ""
	for i := p.Degree(); i >= 0; i-- {
		coeff := p.coefficients[i]
		if coeff.IsZero() {
			continue
		}
		if result != "" {
			result += " + "
		}
		if !coeff.IsOne() || i == 0 {
			result += fmt.Sprintf("%v", coeff.Value())
		}
		switch i {
		case 0:
		case 1:
			result += "x"
		default:
			result += fmt.Sprintf("x^%d", i)
		}
	}

	if result == "" {
		return "0"
	}
	return result
}

// Interpolate returns the unique polynomial of degree < len(points) that
// passes through every (x, y) pair, via Lagrange interpolation. Panics on
// an empty point set or duplicate x-coordinates.
func Interpolate(points [][2]field.Element) *Polynomial {
	if len(points) == 0 {
		panic("cannot interpolate through zero points")
	}
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			if points[i][0].Equal(points[j][0]) {
				panic("duplicate x-coordinates in interpolation points")
			}
		}
	}

	result := Zero()
	for i, point := range points {
		xi, yi := point[0], point[1]

		basis := One()
		denominator := field.One
		for j, other := range points {
			if i == j {
				continue
			}
			basis = basis.Mul(linearFactor(other[0]))
			denominator = denominator.Mul(xi.Sub(other[0]))
		}

		result = result.Add(basis.ScalarMul(yi.Mul(denominator.Inverse())))
	}
	return result
}

// Zerofier returns the monic polynomial vanishing at exactly the given
// points: prod_i (x - points[i]).
func Zerofier(points []field.Element) *Polynomial {
	result := One()
	for _, point := range points {
		result = result.Mul(linearFactor(point))
	}
	return result
}

// XGCD runs the extended Euclidean algorithm, returning (gcd, a, b) with
// gcd = a*x + b*y and gcd normalized to be monic. Used to invert
// polynomials modulo an irreducible modulus (e.g. the extension field's
// Shah polynomial).
func XGCD(x, y *Polynomial) (gcd, a, b *Polynomial) {
	remainderPrev, remainderCur := x.Clone(), y.Clone()
	aPrev, aCur := One(), Zero()
	bPrev, bCur := Zero(), One()

	for !remainderCur.IsZero() {
		quotient, remainder := remainderPrev.Divide(remainderCur)

		aNext := aPrev.Sub(quotient.Mul(aCur))
		bNext := bPrev.Sub(quotient.Mul(bCur))

		remainderPrev, remainderCur = remainderCur, remainder
		aPrev, aCur = aCur, aNext
		bPrev, bCur = bCur, bNext
	}

	lc := remainderPrev.LeadingCoefficient()
	if lc.IsZero() {
		lc = field.One
	}
	lcInv := lc.Inverse()

	return remainderPrev.ScalarMul(lcInv), aPrev.ScalarMul(lcInv), bPrev.ScalarMul(lcInv)
}
