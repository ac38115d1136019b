package polynomial

import (
	"github.com/starkforge/starkforge/internal/starkforge/field"
	"github.com/starkforge/starkforge/internal/starkforge/ntt"
)

// mulNTTThreshold is the degree below which naive convolution beats
// paying for two forward transforms and an inverse one.
const mulNTTThreshold = 8

// padToSize copies coeffs into a zero-padded slice of the given length.
// size must already be a power of two; callers enforce that via
// ntt.NextPowerOfTwo before calling.
func padToSize(coeffs []field.Element, size int) []field.Element {
	padded := make([]field.Element, size)
	copy(padded, coeffs)
	return padded
}

// MulNTT multiplies via forward NTT, pointwise multiplication, and
// inverse NTT — O(n log n) against Mul's O(n^2), once both operands are
// large enough that the transform overhead pays for itself.
func (p *Polynomial) MulNTT(other *Polynomial) *Polynomial {
	if p.IsZero() || other.IsZero() {
		return Zero()
	}

	degP, degQ := p.Degree(), other.Degree()
	if degP < mulNTTThreshold && degQ < mulNTTThreshold {
		return p.Mul(other)
	}

	size := ntt.NextPowerOfTwo(degP + degQ + 1)
	pCoeffs := padToSize(p.coefficients, size)
	qCoeffs := padToSize(other.coefficients, size)

	ntt.NTT(pCoeffs)
	ntt.NTT(qCoeffs)
	for i := range pCoeffs {
		pCoeffs[i] = pCoeffs[i].Mul(qCoeffs[i])
	}
	ntt.INTT(pCoeffs)

	return New(pCoeffs)
}

// EvaluateNTT evaluates p at every power of a domainSize-th root of
// unity in one pass — faster than BatchEvaluate whenever the evaluation
// points happen to form such a domain, which is the common case for
// STARK trace and quotient evaluation.
func (p *Polynomial) EvaluateNTT(domainSize int) []field.Element {
	if !ntt.IsPowerOfTwo(domainSize) {
		panic("domain size must be a power of 2")
	}

	coeffs := padToSize(p.coefficients, domainSize)
	ntt.NTT(coeffs)
	return coeffs
}

// InterpolateNTT is EvaluateNTT's inverse: given values[i] = p(omega^i)
// for a primitive len(values)-th root of unity omega, recovers p's
// coefficients.
func InterpolateNTT(values []field.Element) *Polynomial {
	if len(values) == 0 {
		return Zero()
	}
	if !ntt.IsPowerOfTwo(len(values)) {
		panic("number of values must be a power of 2")
	}

	coeffs := append([]field.Element(nil), values...)
	ntt.INTT(coeffs)
	return New(coeffs)
}

// DivideNTT exists as the NTT-domain counterpart to EvaluateNTT and
// InterpolateNTT, but fast polynomial division (Newton iteration over a
// power-series inverse of the divisor) isn't implemented yet — it
// always delegates to the naive long division in Divide. Kept as its
// own entry point so call sites that expect an NTT-path API don't need
// to change once the fast path lands.
func (p *Polynomial) DivideNTT(other *Polynomial) (quotient, remainder *Polynomial) {
	return p.Divide(other)
}

// Divide performs schoolbook polynomial long division, returning
// (quotient, remainder) with p = quotient*other + remainder and
// remainder.Degree() < other.Degree(). Panics on division by the zero
// polynomial.
func (p *Polynomial) Divide(other *Polynomial) (quotient, remainder *Polynomial) {
	if other.IsZero() {
		panic("division by zero polynomial")
	}

	degP, degQ := p.Degree(), other.Degree()
	if degP < degQ {
		return Zero(), p.Clone()
	}

	remainder = p.Clone()
	quotientCoeffs := make([]field.Element, degP-degQ+1)
	divisorLCInv := other.LeadingCoefficient().Inverse()

	// At the start of iteration i, the remainder's degree should be
	// exactly degQ+i so that eliminating its leading term produces the
	// quotient coefficient at position i. If a lower-degree term
	// vanished and left a gap, skip the position: its coefficient is
	// zero.
	for i := degP - degQ; i >= 0; i-- {
		remainder.normalize()
		remDeg := remainder.Degree()
		if remDeg < degQ {
			break
		}
		if remDeg != degQ+i {
			continue
		}

		coeff := remainder.LeadingCoefficient().Mul(divisorLCInv)
		quotientCoeffs[i] = coeff

		for j := 0; j <= degQ; j++ {
			idx := i + j
			if idx < len(remainder.coefficients) {
				remainder.coefficients[idx] = remainder.coefficients[idx].Sub(other.coefficients[j].Mul(coeff))
			}
		}
	}

	quotient = &Polynomial{coefficients: quotientCoeffs}
	quotient.normalize()
	remainder.normalize()
	return quotient, remainder
}

// Mod returns p mod other, i.e. Divide's remainder.
func (p *Polynomial) Mod(other *Polynomial) *Polynomial {
	_, remainder := p.Divide(other)
	return remainder
}
