// Package ntt implements the Number Theoretic Transform, the finite-field
// analogue of the FFT: it converts a polynomial between its coefficient
// and evaluation forms in O(n log n), which is what makes STARK proving
// over large polynomials tractable. Reference: Longa & Naehrig,
// https://eprint.iacr.org/2016/504.pdf.
package ntt

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/starkforge/starkforge/internal/starkforge/field"
)

// elementCache memoizes a per-domain-size computation behind a
// double-checked RWMutex, so concurrent callers transforming different
// domain sizes don't serialize on each other.
type elementCache struct {
	mu   sync.RWMutex
	data map[uint32][][]field.Element
}

func newElementCache() *elementCache {
	return &elementCache{data: make(map[uint32][][]field.Element)}
}

func (c *elementCache) get(n uint32, compute func() [][]field.Element) [][]field.Element {
	c.mu.RLock()
	if v, ok := c.data[n]; ok {
		c.mu.RUnlock()
		return v
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[n]; ok {
		return v
	}
	v := compute()
	c.data[n] = v
	return v
}

var (
	forwardTwiddles = newElementCache()
	inverseTwiddles = newElementCache()

	swapIndicesMu    sync.RWMutex
	swapIndicesCache = make(map[uint32][]int)
)

// validateTransformLength panics if n isn't a power of two the transform
// can handle, naming which transform in the message.
func validateTransformLength(name string, n int) {
	if n&(n-1) != 0 {
		panic(fmt.Sprintf("%s requires power-of-2 length, got %d", name, n))
	}
	if n > (1 << 31) {
		panic(fmt.Sprintf("%s length too large: %d", name, n))
	}
}

// NTT transforms x from coefficient form to evaluation form in place.
// len(x) must be a power of two no larger than 2^31.
func NTT(x []field.Element) {
	if len(x) == 0 {
		return
	}
	validateTransformLength("NTT", len(x))
	transform(x, getTwiddleFactors(uint32(len(x)), false))
}

// INTT transforms x from evaluation form back to coefficient form in
// place. len(x) must be a power of two no larger than 2^31.
func INTT(x []field.Element) {
	if len(x) == 0 {
		return
	}
	validateTransformLength("INTT", len(x))
	transform(x, getTwiddleFactors(uint32(len(x)), true))
	scaleByInverseLength(x)
}

// transform runs the Cooley-Tukey butterfly network shared by NTT and
// INTT; which one it computes depends entirely on which twiddle factors
// (forward or inverse root of unity) the caller supplies.
func transform(x []field.Element, twiddles [][]field.Element) {
	n := uint32(len(x))
	if n <= 1 {
		return
	}

	swapIndices := getSwapIndices(n)
	for i, revI := range swapIndices {
		if revI > 0 {
			x[i], x[revI] = x[revI], x[i]
		}
	}

	m := uint32(1)
	for _, twiddleRow := range twiddles {
		for k := uint32(0); k < n; k += 2 * m {
			for j := uint32(0); j < m; j++ {
				lo, hi := k+j, k+j+m
				u := x[lo]
				v := x[hi].Mul(twiddleRow[j])
				x[lo] = u.Add(v)
				x[hi] = u.Sub(v)
			}
		}
		m *= 2
	}
}

// scaleByInverseLength multiplies every element by 1/len(x), the final
// step INTT needs that NTT doesn't.
func scaleByInverseLength(x []field.Element) {
	if len(x) == 0 {
		return
	}
	inv := field.New(uint64(len(x))).Inverse()
	for i := range x {
		x[i] = x[i].Mul(inv)
	}
}

// getTwiddleFactors returns, for a domain of size n, one row of powers of
// the (inverse, if requested) primitive root of unity per butterfly
// stage. Cached per (n, inverse) pair.
func getTwiddleFactors(n uint32, inverse bool) [][]field.Element {
	cache := forwardTwiddles
	if inverse {
		cache = inverseTwiddles
	}

	return cache.get(n, func() [][]field.Element {
		omega := field.PrimitiveRootOfUnity(uint64(n))
		if omega.IsZero() {
			panic(fmt.Sprintf("no primitive root of unity for n=%d", n))
		}
		if inverse {
			omega = omega.Inverse()
		}

		log2N := bits.Len32(n) - 1
		twiddles := make([][]field.Element, log2N)
		for i := uint32(0); i < uint32(log2N); i++ {
			m := uint32(1) << i
			step := omega.ModPow(uint64(n / (2 * m)))

			row := make([]field.Element, m)
			row[0] = field.One
			for j := uint32(1); j < m; j++ {
				row[j] = row[j-1].Mul(step)
			}
			twiddles[i] = row
		}
		return twiddles
	})
}

// getSwapIndices returns the bit-reversal permutation for a domain of
// size n: swapIndices[i] is the index i trades places with, or 0 if i
// needs no swap (either it's its own mirror or the pair was already
// handled from the other side).
func getSwapIndices(n uint32) []int {
	swapIndicesMu.RLock()
	if indices, ok := swapIndicesCache[n]; ok {
		swapIndicesMu.RUnlock()
		return indices
	}
	swapIndicesMu.RUnlock()

	swapIndicesMu.Lock()
	defer swapIndicesMu.Unlock()
	if indices, ok := swapIndicesCache[n]; ok {
		return indices
	}

	log2N := uint32(bits.Len32(n) - 1)
	indices := make([]int, n)
	for k := uint32(0); k < n; k++ {
		revK := bitReverse(k, log2N)
		if k < revK {
			indices[k] = int(revK)
		}
	}

	swapIndicesCache[n] = indices
	return indices
}

// bitReverse reverses the low log2N bits of k.
func bitReverse(k, log2N uint32) uint32 {
	k = ((k & 0x55555555) << 1) | ((k & 0xaaaaaaaa) >> 1)
	k = ((k & 0x33333333) << 2) | ((k & 0xcccccccc) >> 2)
	k = ((k & 0x0f0f0f0f) << 4) | ((k & 0xf0f0f0f0) >> 4)
	k = ((k & 0x00ff00ff) << 8) | ((k & 0xff00ff00) >> 8)
	k = bits.RotateLeft32(k, 16)
	return k >> (32 - log2N)
}

// NextPowerOfTwo returns the smallest power of two >= n (or 1 if n <= 0).
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	if n&(n-1) == 0 {
		return n
	}
	return 1 << bits.Len(uint(n))
}

func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
